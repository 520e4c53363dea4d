package telegram

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	deliveryDomain "github.com/reshetovitsme/booru-telegram-feed/internal/modules/delivery/domain"
	settingsDomain "github.com/reshetovitsme/booru-telegram-feed/internal/modules/settings/domain"
	"github.com/reshetovitsme/booru-telegram-feed/internal/shared/errors"
	"github.com/samber/lo"
	"github.com/samber/oops"
)

// maxDownloadSize is the largest file the Bot API lets bots download
const maxDownloadSize = 20 << 20

// Sender talks to the Bot API on behalf of the delivery and settings modules
type Sender struct {
	mu         sync.RWMutex
	bot        *bot.Bot
	httpClient *http.Client
}

// NewSender creates a sender. The bot is attached later with SetBot.
func NewSender() *Sender {
	return &Sender{httpClient: http.DefaultClient}
}

// SetBot sets the bot instance
func (s *Sender) SetBot(b *bot.Bot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bot = b
}

func (s *Sender) client() (*bot.Bot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.bot == nil {
		return nil, oops.Errorf("telegram bot is not initialized")
	}
	return s.bot, nil
}

func (s *Sender) SendText(ctx context.Context, chatID int64, text string, buttons []deliveryDomain.Button) error {
	b, err := s.client()
	if err != nil {
		return err
	}
	_, err = b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: inlineButtons(buttons),
	})
	return classify(err, chatID)
}

func (s *Sender) SendPhoto(ctx context.Context, chatID int64, file deliveryDomain.File, caption string, buttons []deliveryDomain.Button) error {
	b, err := s.client()
	if err != nil {
		return err
	}
	_, err = b.SendPhoto(ctx, &bot.SendPhotoParams{
		ChatID:      chatID,
		Photo:       inputFile(file),
		Caption:     caption,
		ReplyMarkup: inlineButtons(buttons),
	})
	return classify(err, chatID)
}

func (s *Sender) SendVideo(ctx context.Context, chatID int64, file deliveryDomain.File, caption string, buttons []deliveryDomain.Button) error {
	b, err := s.client()
	if err != nil {
		return err
	}
	_, err = b.SendVideo(ctx, &bot.SendVideoParams{
		ChatID:            chatID,
		Video:             inputFile(file),
		Caption:           caption,
		SupportsStreaming: true,
		ReplyMarkup:       inlineButtons(buttons),
	})
	return classify(err, chatID)
}

func (s *Sender) SendAnimation(ctx context.Context, chatID int64, file deliveryDomain.File, caption string, buttons []deliveryDomain.Button) error {
	b, err := s.client()
	if err != nil {
		return err
	}
	_, err = b.SendAnimation(ctx, &bot.SendAnimationParams{
		ChatID:      chatID,
		Animation:   inputFile(file),
		Caption:     caption,
		ReplyMarkup: inlineButtons(buttons),
	})
	return classify(err, chatID)
}

func (s *Sender) SendDocument(ctx context.Context, chatID int64, file deliveryDomain.File, caption string, buttons []deliveryDomain.Button) error {
	b, err := s.client()
	if err != nil {
		return err
	}
	_, err = b.SendDocument(ctx, &bot.SendDocumentParams{
		ChatID:      chatID,
		Document:    inputFile(file),
		Caption:     caption,
		ReplyMarkup: inlineButtons(buttons),
	})
	return classify(err, chatID)
}

// Fetch downloads a file a user uploaded to the bot
func (s *Sender) Fetch(ctx context.Context, fileID string) ([]byte, error) {
	b, err := s.client()
	if err != nil {
		return nil, err
	}

	file, err := b.GetFile(ctx, &bot.GetFileParams{FileID: fileID})
	if err != nil {
		return nil, oops.With("file_id", fileID, "context", "failed to get file").Wrap(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.FileDownloadLink(file), nil)
	if err != nil {
		return nil, oops.With("file_id", fileID).Wrap(err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, oops.With("file_id", fileID, "context", "failed to download file").Wrap(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, oops.With("file_id", fileID, "status", resp.StatusCode).Errorf("unexpected status downloading file")
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadSize))
	if err != nil {
		return nil, oops.With("file_id", fileID, "context", "failed to read file").Wrap(err)
	}
	return data, nil
}

// Reply sends settings replies in order
func (s *Sender) Reply(ctx context.Context, chatID int64, replies []settingsDomain.Reply) error {
	b, err := s.client()
	if err != nil {
		return err
	}

	for _, reply := range replies {
		if reply.Document != nil {
			_, err = b.SendDocument(ctx, &bot.SendDocumentParams{
				ChatID:   chatID,
				Document: &models.InputFileUpload{Filename: reply.Document.Name, Data: bytes.NewReader(reply.Document.Data)},
				Caption:  reply.Text,
			})
		} else {
			_, err = b.SendMessage(ctx, &bot.SendMessageParams{
				ChatID:      chatID,
				Text:        reply.Text,
				ReplyMarkup: replyMarkup(reply),
			})
		}
		if err != nil {
			return oops.With("chat_id", chatID, "context", "failed to send reply").Wrap(err)
		}
	}
	return nil
}

func inputFile(file deliveryDomain.File) models.InputFile {
	if file.IsLocal() {
		return &models.InputFileUpload{Filename: file.Name, Data: bytes.NewReader(file.Data)}
	}
	return &models.InputFileString{Data: file.URL}
}

func inlineButtons(buttons []deliveryDomain.Button) models.ReplyMarkup {
	if len(buttons) == 0 {
		return nil
	}
	row := lo.Map(buttons, func(button deliveryDomain.Button, _ int) models.InlineKeyboardButton {
		return models.InlineKeyboardButton{Text: button.Text, URL: button.URL}
	})
	return &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{row}}
}

func replyMarkup(reply settingsDomain.Reply) models.ReplyMarkup {
	switch {
	case reply.RemoveKeyboard:
		return &models.ReplyKeyboardRemove{RemoveKeyboard: true, Selective: true}
	case len(reply.Keyboard) > 0:
		rows := lo.Map(reply.Keyboard, func(row []string, _ int) []models.KeyboardButton {
			return lo.Map(row, func(text string, _ int) models.KeyboardButton {
				return models.KeyboardButton{Text: text}
			})
		})
		return &models.ReplyKeyboardMarkup{Keyboard: rows, ResizeKeyboard: true, Selective: true}
	default:
		return nil
	}
}

// classify marks Bot API bad requests as rejected payloads
func classify(err error, chatID int64) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, bot.ErrorBadRequest) {
		return oops.With("chat_id", chatID).Wrap(fmt.Errorf("%w: %w", errors.ErrPayloadRejected, err))
	}
	return oops.With("chat_id", chatID).Wrap(err)
}
