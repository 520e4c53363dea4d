package logging

import (
	"context"
	"log/slog"
	"regexp"
)

// TokenMasker wraps a slog.Handler and hides Telegram bot tokens in messages and attributes.
type TokenMasker struct {
	handler slog.Handler
}

// NewTokenMasker creates a masking handler around h
func NewTokenMasker(h slog.Handler) *TokenMasker {
	return &TokenMasker{handler: h}
}

var botTokenRegex = regexp.MustCompile(`\b(bot)?\d{5,}:[A-Za-z0-9_-]{30,}`)

const tokenMask = "***masked-token***"

// MaskTokens replaces every bot token found in s
func MaskTokens(s string) string {
	return botTokenRegex.ReplaceAllString(s, tokenMask)
}

func (h *TokenMasker) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *TokenMasker) Handle(ctx context.Context, record slog.Record) error {
	// slog may reuse the original record, so build a fresh one.
	r := slog.NewRecord(record.Time, record.Level, MaskTokens(record.Message), record.PC)
	record.Attrs(func(a slog.Attr) bool {
		r.AddAttrs(maskAttr(a))
		return true
	})
	return h.handler.Handle(ctx, r)
}

func (h *TokenMasker) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = maskAttr(a)
	}
	return &TokenMasker{handler: h.handler.WithAttrs(masked)}
}

func (h *TokenMasker) WithGroup(name string) slog.Handler {
	return &TokenMasker{handler: h.handler.WithGroup(name)}
}

func maskAttr(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return slog.String(a.Key, MaskTokens(v.String()))
	case slog.KindGroup:
		group := v.Group()
		masked := make([]any, len(group))
		for i, g := range group {
			masked[i] = maskAttr(g)
		}
		return slog.Group(a.Key, masked...)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return slog.String(a.Key, MaskTokens(err.Error()))
		}
		return slog.Attr{Key: a.Key, Value: v}
	default:
		return slog.Attr{Key: a.Key, Value: v}
	}
}
