package service

import (
	"fmt"
	"html"
	"strings"

	"github.com/gorilla/feeds"
	chatRepo "github.com/reshetovitsme/booru-telegram-feed/internal/modules/chat/repository"
	deliveryDomain "github.com/reshetovitsme/booru-telegram-feed/internal/modules/delivery/domain"
	deliveryRepo "github.com/reshetovitsme/booru-telegram-feed/internal/modules/delivery/repository"
	"github.com/reshetovitsme/booru-telegram-feed/internal/modules/feed/domain"
	"github.com/samber/lo"
	"github.com/samber/oops"
)

// Service handles RSS feed generation for delivered posts
type Service struct {
	chatRepo     chatRepo.Repository
	deliveryRepo deliveryRepo.Repository
}

// New creates a new feed service
func New(chatRepo chatRepo.Repository, deliveryRepo deliveryRepo.Repository) *Service {
	return &Service{
		chatRepo:     chatRepo,
		deliveryRepo: deliveryRepo,
	}
}

// Info returns the feed metadata of a chat
func (s *Service) Info(chatID int64, baseURL string) (*domain.FeedInfo, error) {
	if _, err := s.chatRepo.GetConfig(chatID); err != nil {
		return nil, oops.With("chat_id", chatID, "context", "chat not found").Wrap(err)
	}

	info := &domain.FeedInfo{
		ChatID: chatID,
		Title:  fmt.Sprintf("Posts delivered to chat %d", chatID),
		Link:   fmt.Sprintf("%s/rss/%d", strings.TrimRight(baseURL, "/"), chatID),
	}

	latest, err := s.deliveryRepo.GetRecords(chatID, 1)
	if err != nil {
		return nil, oops.With("chat_id", chatID, "context", "failed to get records").Wrap(err)
	}
	if len(latest) > 0 {
		info.Updated = latest[0].DeliveredAt
	}
	return info, nil
}

// GenerateFeed generates an RSS feed of the posts delivered to a chat
func (s *Service) GenerateFeed(chatID int64, baseURL string) (*feeds.Feed, error) {
	info, err := s.Info(chatID, baseURL)
	if err != nil {
		return nil, err
	}

	records, err := s.deliveryRepo.GetRecords(chatID, domain.DefaultItemLimit)
	if err != nil {
		return nil, oops.With("chat_id", chatID, "context", "failed to get records").Wrap(err)
	}

	feed := &feeds.Feed{
		Title:       info.Title,
		Link:        &feeds.Link{Href: info.Link},
		Description: fmt.Sprintf("Image board posts forwarded to Telegram chat %d", chatID),
		Updated:     info.Updated,
	}
	feed.Items = lo.Map(records, func(record *deliveryDomain.Record, _ int) *feeds.Item {
		return recordToFeedItem(record)
	})
	return feed, nil
}

func recordToFeedItem(record *deliveryDomain.Record) *feeds.Item {
	description := record.Caption
	if description == "" {
		description = fmt.Sprintf("Post %d", record.PostID)
	}

	content := fmt.Sprintf("<p>%s</p>", strings.ReplaceAll(html.EscapeString(description), "\n", "<br>"))
	if record.PreviewURL != "" {
		content = fmt.Sprintf(`<p><a href="%s"><img src="%s"></a></p>`, html.EscapeString(record.PostURL), html.EscapeString(record.PreviewURL)) + content
	}

	item := &feeds.Item{
		Title:       fmt.Sprintf("Post #%d (%s)", record.PostID, record.Rating),
		Link:        &feeds.Link{Href: record.PostURL},
		Description: description,
		Content:     content,
		Created:     record.DeliveredAt,
		Id:          fmt.Sprintf("%d-%d", record.ChatID, record.PostID),
	}
	if record.FileURL != "" {
		item.Enclosure = &feeds.Enclosure{Url: record.FileURL, Type: mimeType(record.FileURL), Length: "0"}
	}
	return item
}

func mimeType(fileURL string) string {
	ext := strings.ToLower(fileURL[strings.LastIndex(fileURL, ".")+1:])
	switch ext {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png", "gif", "webp":
		return "image/" + ext
	case "mp4", "webm":
		return "video/" + ext
	default:
		return "application/octet-stream"
	}
}
