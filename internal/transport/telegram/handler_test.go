package telegram

import (
	"testing"
	"time"

	"github.com/go-telegram/bot/models"
	chatDomain "github.com/reshetovitsme/booru-telegram-feed/internal/modules/chat/domain"
	pollDomain "github.com/reshetovitsme/booru-telegram-feed/internal/modules/poll/domain"
	postDomain "github.com/reshetovitsme/booru-telegram-feed/internal/modules/post/domain"
	"github.com/stretchr/testify/assert"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		text string
		name string
		args []string
	}{
		{"/start", "start", []string{}},
		{"/Cancel", "cancel", []string{}},
		{"/post 123", "post", []string{"123"}},
		{"/post@booru_bot  42  extra", "post", []string{"42", "extra"}},
		{"hello /post", "", nil},
		{"", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			name, args := parseCommand(tt.text)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestMatchCommand(t *testing.T) {
	match := matchCommand("cancel")

	assert.True(t, match(&models.Update{Message: &models.Message{Text: "/CANCEL"}}))
	assert.True(t, match(&models.Update{Message: &models.Message{Text: "/cancel@booru_bot"}}))
	assert.False(t, match(&models.Update{Message: &models.Message{Text: "/cancelled"}}))
	assert.False(t, match(&models.Update{Message: &models.Message{Text: "cancel"}}))
	assert.False(t, match(&models.Update{}))
}

func TestResultText(t *testing.T) {
	text := resultText(pollDomain.Result{Processed: 5, Delivered: 3, Failed: 1})
	assert.Equal(t, "✅ Refresh finished\nProcessed: 5\nDelivered: 3\nFailed: 1", text)

	text = resultText(pollDomain.Result{Cancelled: true})
	assert.Contains(t, text, "Refresh cancelled")
}

func TestStatusText(t *testing.T) {
	cfg := chatDomain.NewConfig(1)
	_, err := cfg.AddGroup("yuri")
	assert.NoError(t, err)
	cfg.SendAsFilesThreshold = postDomain.RatingQuestionable

	next := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	status := pollDomain.Status{
		Mode:       pollDomain.ModeSearch,
		Scheduled:  true,
		LastPostID: 7000,
		Tracked:    12,
	}

	text := statusText(status, next, cfg, true, 60)
	assert.Contains(t, text, "Mode: search")
	assert.Contains(t, text, "Polling: active")
	assert.Contains(t, text, "Next refresh: 2024-05-01 12:30:00")
	assert.Contains(t, text, "Last post: 7000")
	assert.Contains(t, text, "Tracked posts: 12")
	assert.Contains(t, text, "Receiving posts: yes")
	assert.Contains(t, text, "Subscription groups: 1 (ANY)")
	assert.Contains(t, text, "Send as files from: questionable")
	assert.NotContains(t, text, "Last refresh")

	status = pollDomain.Status{Mode: pollDomain.ModeNumeric}
	text = statusText(status, time.Time{}, chatDomain.NewConfig(1), false, 60)
	assert.Contains(t, text, "Polling: stopped")
	assert.NotContains(t, text, "Next refresh")
	assert.NotContains(t, text, "Tracked posts")
	assert.Contains(t, text, "Send as files from: disabled")
}
