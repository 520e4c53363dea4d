package telegram

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	deliveryDomain "github.com/reshetovitsme/booru-telegram-feed/internal/modules/delivery/domain"
	settingsDomain "github.com/reshetovitsme/booru-telegram-feed/internal/modules/settings/domain"
	"github.com/reshetovitsme/booru-telegram-feed/internal/shared/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "123456:test-token"

const okMessage = `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"}}}`

type apiServer struct {
	mu      sync.Mutex
	methods []string
}

func (a *apiServer) calls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string{}, a.methods...)
}

func newTestSender(t *testing.T) (*Sender, *apiServer) {
	t.Helper()
	api := &apiServer{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/file/") {
			_, _ = io.WriteString(w, `{"chat_id":1}`)
			return
		}

		method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		api.mu.Lock()
		api.methods = append(api.methods, method)
		api.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch method {
		case "sendPhoto":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"ok":false,"error_code":400,"description":"Bad Request: wrong file identifier/HTTP URL specified"}`)
		case "sendVideo":
			w.WriteHeader(http.StatusForbidden)
			_, _ = io.WriteString(w, `{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`)
		case "getFile":
			_, _ = io.WriteString(w, `{"ok":true,"result":{"file_id":"doc","file_unique_id":"u","file_size":12,"file_path":"documents/file_1.json"}}`)
		default:
			_, _ = io.WriteString(w, okMessage)
		}
	}))
	t.Cleanup(srv.Close)

	b, err := bot.New(testToken, bot.WithServerURL(srv.URL), bot.WithSkipGetMe())
	require.NoError(t, err)

	sender := NewSender()
	sender.SetBot(b)
	return sender, api
}

func TestSenderWithoutBot(t *testing.T) {
	err := NewSender().SendText(context.Background(), 1, "hi", nil)
	assert.Error(t, err)
}

func TestSenderMapsBadRequest(t *testing.T) {
	sender, api := newTestSender(t)
	ctx := context.Background()

	require.NoError(t, sender.SendText(ctx, 42, "hello", []deliveryDomain.Button{{Text: "Danbooru", URL: "https://danbooru.donmai.us/posts/1"}}))

	err := sender.SendPhoto(ctx, 42, deliveryDomain.File{URL: "https://cdn.example/a.jpg"}, "caption", nil)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrPayloadRejected))

	err = sender.SendVideo(ctx, 42, deliveryDomain.File{URL: "https://cdn.example/a.mp4"}, "caption", nil)
	require.Error(t, err)
	assert.False(t, stderrors.Is(err, errors.ErrPayloadRejected))

	require.NoError(t, sender.SendDocument(ctx, 42, deliveryDomain.File{Name: "a.png", Data: []byte("png")}, "caption", nil))
	require.NoError(t, sender.SendAnimation(ctx, 42, deliveryDomain.File{URL: "https://cdn.example/a.gif"}, "", nil))

	assert.Equal(t, []string{"sendMessage", "sendPhoto", "sendVideo", "sendDocument", "sendAnimation"}, api.calls())
}

func TestSenderReply(t *testing.T) {
	sender, api := newTestSender(t)

	err := sender.Reply(context.Background(), 42, []settingsDomain.Reply{
		{Document: &settingsDomain.Attachment{Name: "42.json", Data: []byte("{}")}},
		{Text: "SETTINGS", Keyboard: [][]string{{"Close"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"sendDocument", "sendMessage"}, api.calls())
}

func TestSenderFetch(t *testing.T) {
	sender, api := newTestSender(t)

	data, err := sender.Fetch(context.Background(), "doc")
	require.NoError(t, err)
	assert.Equal(t, `{"chat_id":1}`, string(data))
	assert.Equal(t, []string{"getFile"}, api.calls())
}

func TestInputFile(t *testing.T) {
	remote := inputFile(deliveryDomain.File{URL: "https://cdn.example/a.jpg"})
	assert.Equal(t, &models.InputFileString{Data: "https://cdn.example/a.jpg"}, remote)

	local := inputFile(deliveryDomain.File{Name: "a.jpg", URL: "https://cdn.example/a.jpg", Data: []byte("jpg")})
	upload, ok := local.(*models.InputFileUpload)
	require.True(t, ok)
	assert.Equal(t, "a.jpg", upload.Filename)
}

func TestInlineButtons(t *testing.T) {
	assert.Nil(t, inlineButtons(nil))

	markup := inlineButtons([]deliveryDomain.Button{
		{Text: "Danbooru", URL: "https://danbooru.donmai.us/posts/1"},
		{Text: "Source", URL: "https://example.com"},
	})
	inline, ok := markup.(*models.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, inline.InlineKeyboard, 1)
	assert.Equal(t, "Source", inline.InlineKeyboard[0][1].Text)
	assert.Equal(t, "https://example.com", inline.InlineKeyboard[0][1].URL)
}

func TestReplyMarkup(t *testing.T) {
	assert.Nil(t, replyMarkup(settingsDomain.Reply{Text: "plain"}))

	removed, ok := replyMarkup(settingsDomain.Reply{RemoveKeyboard: true, Keyboard: [][]string{{"x"}}}).(*models.ReplyKeyboardRemove)
	require.True(t, ok)
	assert.True(t, removed.RemoveKeyboard)

	keyboard, ok := replyMarkup(settingsDomain.Reply{Keyboard: [][]string{{"Include", "Exclude"}, {"Save"}}}).(*models.ReplyKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, keyboard.Keyboard, 2)
	assert.Equal(t, "Exclude", keyboard.Keyboard[0][1].Text)
	assert.True(t, keyboard.ResizeKeyboard)
}
