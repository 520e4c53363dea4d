package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	chatDomain "github.com/reshetovitsme/booru-telegram-feed/internal/modules/chat/domain"
	"github.com/reshetovitsme/booru-telegram-feed/internal/modules/delivery/domain"
	deliveryRepo "github.com/reshetovitsme/booru-telegram-feed/internal/modules/delivery/repository"
	postDomain "github.com/reshetovitsme/booru-telegram-feed/internal/modules/post/domain"
	"github.com/reshetovitsme/booru-telegram-feed/internal/shared/errors"
	"github.com/samber/oops"
)

// Telegram Bot API limits
const (
	MaxUploadSize      = 50 << 20
	MaxRemoteSize      = 20 << 20
	MaxPhotoSize       = 10 << 20
	MaxRemotePhotoSize = 5 << 20
	MaxPhotoDimensions = 10000
	MaxPhotoRatio      = 20
)

// Transport sends prepared payloads to a chat. Implementations return an
// error wrapping errors.ErrPayloadRejected when the remote side refused the
// file itself, e.g. because it could not fetch the URL.
type Transport interface {
	SendText(ctx context.Context, chatID int64, text string, buttons []domain.Button) error
	SendPhoto(ctx context.Context, chatID int64, file domain.File, caption string, buttons []domain.Button) error
	SendVideo(ctx context.Context, chatID int64, file domain.File, caption string, buttons []domain.Button) error
	SendAnimation(ctx context.Context, chatID int64, file domain.File, caption string, buttons []domain.Button) error
	SendDocument(ctx context.Context, chatID int64, file domain.File, caption string, buttons []domain.Button) error
}

// Downloader fetches media bytes
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// Poster turns posts into payloads and sends them
type Poster struct {
	transport  Transport
	downloader Downloader
	records    deliveryRepo.Repository
	cache      *Cache
	baseURL    string
	sampler    chatDomain.Sampler
	now        func() time.Time
}

// NewPoster creates a Poster. records may be nil when nothing should be logged.
func NewPoster(baseURL string, transport Transport, downloader Downloader, records deliveryRepo.Repository, cache *Cache) *Poster {
	return &Poster{
		transport:  transport,
		downloader: downloader,
		records:    records,
		cache:      cache,
		baseURL:    baseURL,
		sampler:    chatDomain.RandomSampler,
		now:        time.Now,
	}
}

// Prepare decides how a post is sent to a chat with the given configuration
func (p *Poster) Prepare(cfg *chatDomain.Config, post *postDomain.Post) (*domain.Payload, error) {
	caption, err := chatDomain.FormatCaption(cfg, post, p.sampler)
	if err != nil {
		return nil, oops.With("chat_id", cfg.ChatID, "post_id", post.ID).Wrap(err)
	}

	payload := &domain.Payload{
		Caption: caption,
		Buttons: p.buttons(cfg, post),
		File: domain.File{
			Name: post.Filename(),
			URL:  post.BestFileURL(),
		},
	}

	size := post.FileSize
	switch {
	case payload.File.URL == "":
		payload.Kind = domain.MediaKindText
	case size > MaxUploadSize:
		payload.Kind = domain.MediaKindText
		payload.Caption = fmt.Sprintf("File too large to send (%.1f MB): %s\n\n%s", float64(size)/(1<<20), post.URL(p.baseURL), caption)
	case chatDomain.PostAboveThreshold(cfg, post):
		payload.Kind = domain.MediaKindDocument
	case post.IsImage():
		if photoCompatible(post) {
			payload.Kind = domain.MediaKindPhoto
			payload.File.Upload = size > MaxRemotePhotoSize
		} else {
			payload.Kind = domain.MediaKindDocument
		}
	case post.IsGif():
		payload.Kind = domain.MediaKindAnimation
	case post.IsVideo():
		payload.Kind = domain.MediaKindVideo
	default:
		payload.Kind = domain.MediaKindDocument
	}

	if payload.Kind != domain.MediaKindText && size > MaxRemoteSize {
		payload.File.Upload = true
	}
	if payload.Kind == domain.MediaKindText {
		payload.File = domain.File{}
	}

	return payload, nil
}

func photoCompatible(post *postDomain.Post) bool {
	if post.FileSize > MaxPhotoSize {
		return false
	}
	if post.Width <= 0 || post.Height <= 0 {
		return true
	}
	if post.Width+post.Height > MaxPhotoDimensions {
		return false
	}
	long, short := max(post.Width, post.Height), min(post.Width, post.Height)
	return long/short < MaxPhotoRatio
}

func (p *Poster) buttons(cfg *chatDomain.Config, post *postDomain.Post) []domain.Button {
	var buttons []domain.Button
	if cfg.ShowDanbooruButton {
		buttons = append(buttons, domain.Button{Text: "Danbooru", URL: post.URL(p.baseURL)})
	}
	if source := post.SourceURL(); cfg.ShowSourceButton && source != "" {
		buttons = append(buttons, domain.Button{Text: "Source", URL: source})
	}
	if direct := post.BestFileURL(); cfg.ShowDirectButton && direct != "" {
		buttons = append(buttons, domain.Button{Text: "Direct", URL: direct})
	}
	return buttons
}

// Send prepares and sends a post without logging the delivery. A payload the
// transport rejects is retried once with locally downloaded bytes.
func (p *Poster) Send(ctx context.Context, chatID int64, cfg *chatDomain.Config, post *postDomain.Post) (*domain.Payload, error) {
	payload, err := p.Prepare(cfg, post)
	if err != nil {
		return nil, err
	}

	if payload.File.Upload {
		if err := p.attach(ctx, &payload.File); err != nil {
			return nil, oops.With("chat_id", chatID, "post_id", post.ID).Wrap(err)
		}
	}

	err = p.dispatch(ctx, chatID, payload)
	if err != nil && stderrors.Is(err, errors.ErrPayloadRejected) && payload.Kind != domain.MediaKindText && !payload.File.IsLocal() {
		slog.Warn("Transport rejected remote file, retrying with upload", "chat_id", chatID, "post_id", post.ID, "error", err)
		if err := p.attach(ctx, &payload.File); err != nil {
			return nil, oops.With("chat_id", chatID, "post_id", post.ID, "context", "failed to download rejected file").Wrap(err)
		}
		err = p.dispatch(ctx, chatID, payload)
	}
	if err != nil {
		return nil, oops.With("chat_id", chatID, "post_id", post.ID, "kind", payload.Kind.String()).Wrap(err)
	}

	slog.Info("Delivered post", "chat_id", chatID, "post_id", post.ID, "kind", payload.Kind.String())
	return payload, nil
}

// Deliver sends a post and appends it to the chat's delivery log
func (p *Poster) Deliver(ctx context.Context, chatID int64, cfg *chatDomain.Config, post *postDomain.Post) error {
	payload, err := p.Send(ctx, chatID, cfg, post)
	if err != nil {
		return err
	}
	if p.records == nil {
		return nil
	}

	record := &domain.Record{
		ChatID:      chatID,
		PostID:      post.ID,
		Kind:        payload.Kind,
		Caption:     payload.Caption,
		PostURL:     post.URL(p.baseURL),
		FileURL:     post.BestFileURL(),
		PreviewURL:  post.PreviewFileURL,
		Rating:      post.Rating.Label(),
		Tags:        post.Tags(),
		PostedAt:    post.CreatedAt,
		DeliveredAt: p.now(),
	}
	if err := p.records.SaveRecord(record); err != nil {
		slog.Error("Failed to record delivery", "chat_id", chatID, "post_id", post.ID, "error", err)
	}
	return nil
}

func (p *Poster) attach(ctx context.Context, file *domain.File) error {
	if file.IsLocal() {
		return nil
	}
	if p.cache != nil {
		if data, ok := p.cache.Get(file.URL); ok {
			file.Data = data
			return nil
		}
	}

	data, err := p.downloader.Download(ctx, file.URL)
	if err != nil {
		return err
	}
	if p.cache != nil {
		p.cache.Put(file.URL, data)
	}
	file.Data = data
	return nil
}

func (p *Poster) dispatch(ctx context.Context, chatID int64, payload *domain.Payload) error {
	switch payload.Kind {
	case domain.MediaKindPhoto:
		return p.transport.SendPhoto(ctx, chatID, payload.File, payload.Caption, payload.Buttons)
	case domain.MediaKindVideo:
		return p.transport.SendVideo(ctx, chatID, payload.File, payload.Caption, payload.Buttons)
	case domain.MediaKindAnimation:
		return p.transport.SendAnimation(ctx, chatID, payload.File, payload.Caption, payload.Buttons)
	case domain.MediaKindDocument:
		return p.transport.SendDocument(ctx, chatID, payload.File, payload.Caption, payload.Buttons)
	default:
		return p.transport.SendText(ctx, chatID, payload.Caption, payload.Buttons)
	}
}
