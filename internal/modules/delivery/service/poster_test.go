package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	chatDomain "github.com/reshetovitsme/booru-telegram-feed/internal/modules/chat/domain"
	"github.com/reshetovitsme/booru-telegram-feed/internal/modules/delivery/domain"
	deliveryRepo "github.com/reshetovitsme/booru-telegram-feed/internal/modules/delivery/repository"
	postDomain "github.com/reshetovitsme/booru-telegram-feed/internal/modules/post/domain"
	"github.com/reshetovitsme/booru-telegram-feed/internal/shared/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	chatID  int64
	kind    domain.MediaKind
	file    domain.File
	caption string
	buttons []domain.Button
}

type fakeTransport struct {
	mu       sync.Mutex
	sent     []sent
	rejectN  int
	failWith error
}

func (f *fakeTransport) record(chatID int64, kind domain.MediaKind, file domain.File, caption string, buttons []domain.Button) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	if f.rejectN > 0 && !file.IsLocal() {
		f.rejectN--
		return fmt.Errorf("wrong file identifier/HTTP URL specified: %w", errors.ErrPayloadRejected)
	}
	f.sent = append(f.sent, sent{chatID: chatID, kind: kind, file: file, caption: caption, buttons: buttons})
	return nil
}

func (f *fakeTransport) SendText(_ context.Context, chatID int64, text string, buttons []domain.Button) error {
	return f.record(chatID, domain.MediaKindText, domain.File{}, text, buttons)
}

func (f *fakeTransport) SendPhoto(_ context.Context, chatID int64, file domain.File, caption string, buttons []domain.Button) error {
	return f.record(chatID, domain.MediaKindPhoto, file, caption, buttons)
}

func (f *fakeTransport) SendVideo(_ context.Context, chatID int64, file domain.File, caption string, buttons []domain.Button) error {
	return f.record(chatID, domain.MediaKindVideo, file, caption, buttons)
}

func (f *fakeTransport) SendAnimation(_ context.Context, chatID int64, file domain.File, caption string, buttons []domain.Button) error {
	return f.record(chatID, domain.MediaKindAnimation, file, caption, buttons)
}

func (f *fakeTransport) SendDocument(_ context.Context, chatID int64, file domain.File, caption string, buttons []domain.Button) error {
	return f.record(chatID, domain.MediaKindDocument, file, caption, buttons)
}

type fakeDownloader struct {
	calls int
	err   error
}

func (f *fakeDownloader) Download(_ context.Context, url string) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []byte("bytes of " + url), nil
}

func testPost() *postDomain.Post {
	return &postDomain.Post{
		ID:               42,
		CreatedAt:        time.Date(2024, 1, 2, 3, 4, 0, 0, time.UTC),
		TagString:        "1girl solo",
		TagStringGeneral: "1girl solo",
		Rating:           postDomain.RatingGeneral,
		FileURL:          "https://cdn.example/42.jpg",
		FileExt:          "jpg",
		FileSize:         1 << 20,
		Width:            1000,
		Height:           1500,
		Source:           "https://twitter.com/someone/status/1",
	}
}

func newTestPoster(transport Transport, downloader Downloader, records deliveryRepo.Repository) *Poster {
	p := NewPoster("https://danbooru.example", transport, downloader, records, NewCache(time.Minute, 4))
	p.sampler = func(tags []string, n int) []string { return tags }
	return p
}

func TestPrepareKinds(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *postDomain.Post, cfg *chatDomain.Config)
		kind   domain.MediaKind
		upload bool
	}{
		{"photo", func(p *postDomain.Post, cfg *chatDomain.Config) {}, domain.MediaKindPhoto, false},
		{"large photo is uploaded", func(p *postDomain.Post, cfg *chatDomain.Config) { p.FileSize = 7 << 20 }, domain.MediaKindPhoto, true},
		{"huge photo becomes document", func(p *postDomain.Post, cfg *chatDomain.Config) { p.FileSize = 12 << 20 }, domain.MediaKindDocument, false},
		{"oversized dimensions", func(p *postDomain.Post, cfg *chatDomain.Config) { p.Width, p.Height = 8000, 4000 }, domain.MediaKindDocument, false},
		{"extreme ratio", func(p *postDomain.Post, cfg *chatDomain.Config) { p.Width, p.Height = 100, 2500 }, domain.MediaKindDocument, false},
		{"gif", func(p *postDomain.Post, cfg *chatDomain.Config) { p.FileExt = "gif" }, domain.MediaKindAnimation, false},
		{"video", func(p *postDomain.Post, cfg *chatDomain.Config) { p.FileExt = "mp4" }, domain.MediaKindVideo, false},
		{"big video is uploaded", func(p *postDomain.Post, cfg *chatDomain.Config) { p.FileExt, p.FileSize = "webm", 30 << 20 }, domain.MediaKindVideo, true},
		{"too large", func(p *postDomain.Post, cfg *chatDomain.Config) { p.FileExt, p.FileSize = "mp4", 60 << 20 }, domain.MediaKindText, false},
		{"no file", func(p *postDomain.Post, cfg *chatDomain.Config) { p.FileURL = "" }, domain.MediaKindText, false},
		{"other extension", func(p *postDomain.Post, cfg *chatDomain.Config) { p.FileExt = "swf" }, domain.MediaKindDocument, false},
		{"above threshold", func(p *postDomain.Post, cfg *chatDomain.Config) {
			cfg.SendAsFilesThreshold = postDomain.RatingGeneral
		}, domain.MediaKindDocument, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			post := testPost()
			cfg := chatDomain.NewConfig(1)
			tt.mutate(post, cfg)

			payload, err := newTestPoster(&fakeTransport{}, &fakeDownloader{}, nil).Prepare(cfg, post)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, payload.Kind)
			assert.Equal(t, tt.upload, payload.File.Upload)
		})
	}
}

func TestPrepareTooLargeNotice(t *testing.T) {
	post := testPost()
	post.FileSize = 60 << 20

	payload, err := newTestPoster(&fakeTransport{}, &fakeDownloader{}, nil).Prepare(chatDomain.NewConfig(1), post)
	require.NoError(t, err)
	assert.Contains(t, payload.Caption, "File too large")
	assert.Contains(t, payload.Caption, "https://danbooru.example/posts/42")
	assert.Empty(t, payload.File.URL)
}

func TestPrepareButtons(t *testing.T) {
	cfg := chatDomain.NewConfig(1)
	poster := newTestPoster(&fakeTransport{}, &fakeDownloader{}, nil)

	payload, err := poster.Prepare(cfg, testPost())
	require.NoError(t, err)
	assert.Equal(t, []domain.Button{
		{Text: "Danbooru", URL: "https://danbooru.example/posts/42"},
		{Text: "Source", URL: "https://twitter.com/someone/status/1"},
		{Text: "Direct", URL: "https://cdn.example/42.jpg"},
	}, payload.Buttons)

	cfg.ShowDanbooruButton = false
	cfg.ShowDirectButton = false
	payload, err = poster.Prepare(cfg, testPost())
	require.NoError(t, err)
	assert.Equal(t, []domain.Button{{Text: "Source", URL: "https://twitter.com/someone/status/1"}}, payload.Buttons)
}

func TestPrepareInvalidTemplate(t *testing.T) {
	cfg := chatDomain.NewConfig(1)
	cfg.Template = "{nope}"

	_, err := newTestPoster(&fakeTransport{}, &fakeDownloader{}, nil).Prepare(cfg, testPost())
	assert.ErrorIs(t, err, errors.ErrInvalidTemplate)
}

func TestSendRetriesRejectedWithUpload(t *testing.T) {
	transport := &fakeTransport{rejectN: 1}
	downloader := &fakeDownloader{}
	poster := newTestPoster(transport, downloader, nil)

	payload, err := poster.Send(context.Background(), 5, chatDomain.NewConfig(5), testPost())
	require.NoError(t, err)
	assert.Equal(t, domain.MediaKindPhoto, payload.Kind)
	require.Len(t, transport.sent, 1)
	assert.Equal(t, []byte("bytes of https://cdn.example/42.jpg"), transport.sent[0].file.Data)
	assert.Equal(t, 1, downloader.calls)
}

func TestSendRejectedTwiceFails(t *testing.T) {
	transport := &fakeTransport{failWith: errors.ErrPayloadRejected}
	poster := newTestPoster(transport, &fakeDownloader{}, nil)

	_, err := poster.Send(context.Background(), 5, chatDomain.NewConfig(5), testPost())
	assert.ErrorIs(t, err, errors.ErrPayloadRejected)
	assert.Empty(t, transport.sent)
}

func TestSendDownloadFailure(t *testing.T) {
	post := testPost()
	post.FileSize = 7 << 20
	poster := newTestPoster(&fakeTransport{}, &fakeDownloader{err: fmt.Errorf("connection reset")}, nil)

	_, err := poster.Send(context.Background(), 5, chatDomain.NewConfig(5), post)
	assert.Error(t, err)
}

func TestSendUsesCache(t *testing.T) {
	post := testPost()
	post.FileSize = 7 << 20
	transport := &fakeTransport{}
	downloader := &fakeDownloader{}
	poster := newTestPoster(transport, downloader, nil)

	for _, chatID := range []int64{1, 2, 3} {
		_, err := poster.Send(context.Background(), chatID, chatDomain.NewConfig(chatID), post)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, downloader.calls)
	assert.Len(t, transport.sent, 3)
}

func TestDeliverRecords(t *testing.T) {
	records, err := deliveryRepo.NewFileStorage(t.TempDir(), 0)
	require.NoError(t, err)
	transport := &fakeTransport{}
	poster := newTestPoster(transport, &fakeDownloader{}, records)

	require.NoError(t, poster.Deliver(context.Background(), 9, chatDomain.NewConfig(9), testPost()))

	logged, err := records.GetRecords(9, 10)
	require.NoError(t, err)
	require.Len(t, logged, 1)
	assert.Equal(t, int64(42), logged[0].PostID)
	assert.Equal(t, domain.MediaKindPhoto, logged[0].Kind)
	assert.Equal(t, "https://danbooru.example/posts/42", logged[0].PostURL)
	assert.Equal(t, transport.sent[0].caption, logged[0].Caption)
}
