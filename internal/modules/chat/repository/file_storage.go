package repository

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/reshetovitsme/booru-telegram-feed/internal/modules/chat/domain"
	"github.com/reshetovitsme/booru-telegram-feed/internal/shared/errors"
	"github.com/samber/lo"
	"github.com/samber/oops"
)

// FileStorage keeps one JSON document per chat
type FileStorage struct {
	basePath string
	mu       sync.RWMutex
}

// NewFileStorage creates a new file-based chat repository
func NewFileStorage(basePath string) (Repository, error) {
	chatPath := filepath.Join(basePath, "chats")
	if err := os.MkdirAll(chatPath, 0755); err != nil {
		return nil, oops.With("base_path", basePath, "context", "failed to create chats directory").Wrap(err)
	}

	return &FileStorage{basePath: chatPath}, nil
}

func (s *FileStorage) path(chatID int64) string {
	return filepath.Join(s.basePath, strconv.FormatInt(chatID, 10)+".json")
}

func (s *FileStorage) SaveConfig(cfg *domain.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return oops.With("chat_id", cfg.ChatID, "context", "failed to marshal chat config").Wrap(err)
	}

	// replace atomically
	tmp := s.path(cfg.ChatID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return oops.With("chat_id", cfg.ChatID, "context", "failed to write chat config").Wrap(err)
	}
	if err := os.Rename(tmp, s.path(cfg.ChatID)); err != nil {
		return oops.With("chat_id", cfg.ChatID, "context", "failed to replace chat config").Wrap(err)
	}
	return nil
}

func (s *FileStorage) GetConfig(chatID int64) (*domain.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(chatID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ErrChatNotFound
		}
		return nil, oops.With("chat_id", chatID, "context", "failed to read chat config").Wrap(err)
	}

	cfg, err := decode(data)
	if err != nil {
		return nil, oops.With("chat_id", chatID).Wrap(err)
	}
	cfg.ChatID = chatID
	return cfg, nil
}

func (s *FileStorage) GetAllConfigs() ([]*domain.Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, oops.With("directory", s.basePath, "context", "failed to read chats directory").Wrap(err)
	}

	configs := lo.FilterMap(entries, func(entry os.DirEntry, _ int) (*domain.Config, bool) {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			return nil, false
		}
		chatID, err := strconv.ParseInt(entry.Name()[:len(entry.Name())-len(".json")], 10, 64)
		if err != nil {
			return nil, false
		}

		data, err := os.ReadFile(filepath.Join(s.basePath, entry.Name()))
		if err != nil {
			return nil, false
		}

		cfg, err := decode(data)
		if err != nil {
			return nil, false
		}
		cfg.ChatID = chatID
		return cfg, true
	})

	return configs, nil
}

func (s *FileStorage) DeleteConfig(chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(chatID)); err != nil && !os.IsNotExist(err) {
		return oops.With("chat_id", chatID, "context", "failed to delete chat config").Wrap(err)
	}
	return nil
}

func decode(data []byte) (*domain.Config, error) {
	cfg := &domain.Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, oops.With("context", "failed to unmarshal chat config").Wrap(err)
	}
	if cfg.SubscriptionGroups == nil {
		cfg.SubscriptionGroups = []*domain.SubscriptionGroup{}
	}
	return cfg, nil
}
