package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/reshetovitsme/booru-telegram-feed/internal/modules/delivery/domain"
	"github.com/samber/lo"
	"github.com/samber/oops"
)

// DefaultKeep is how many records a chat log retains
const DefaultKeep = 200

// FileStorage implements Repository using one directory per chat
type FileStorage struct {
	basePath string
	keep     int
	mu       sync.RWMutex
}

// NewFileStorage creates a new file-based delivery log
func NewFileStorage(basePath string, keep int) (Repository, error) {
	deliveryPath := filepath.Join(basePath, "deliveries")
	if err := os.MkdirAll(deliveryPath, 0755); err != nil {
		return nil, oops.With("base_path", basePath, "context", "failed to create deliveries directory").Wrap(err)
	}
	if keep <= 0 {
		keep = DefaultKeep
	}

	return &FileStorage{basePath: deliveryPath, keep: keep}, nil
}

func (s *FileStorage) chatDir(chatID int64) string {
	return filepath.Join(s.basePath, strconv.FormatInt(chatID, 10))
}

func (s *FileStorage) SaveRecord(record *domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.chatDir(record.ChatID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return oops.With("record_dir", dir, "context", "failed to create record directory").Wrap(err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%d.json", record.PostID))
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return oops.With("chat_id", record.ChatID, "post_id", record.PostID, "context", "failed to marshal record").Wrap(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return oops.With("chat_id", record.ChatID, "post_id", record.PostID, "context", "failed to write record").Wrap(err)
	}

	return s.prune(record.ChatID)
}

func (s *FileStorage) GetRecords(chatID int64, limit int) ([]*domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, err := s.load(chatID)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (s *FileStorage) GetRecentRecords(chatID int64, since time.Time) ([]*domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, err := s.load(chatID)
	if err != nil {
		return nil, err
	}
	return lo.Filter(records, func(r *domain.Record, _ int) bool {
		return r.DeliveredAt.After(since)
	}), nil
}

// load reads every record of a chat, newest first
func (s *FileStorage) load(chatID int64) ([]*domain.Record, error) {
	dir := s.chatDir(chatID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*domain.Record{}, nil
		}
		return nil, oops.With("chat_id", chatID, "record_dir", dir, "context", "failed to read records directory").Wrap(err)
	}

	records := lo.FilterMap(entries, func(entry os.DirEntry, _ int) (*domain.Record, bool) {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			return nil, false
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, false
		}

		var record domain.Record
		if err := json.Unmarshal(data, &record); err != nil {
			return nil, false
		}
		return &record, true
	})

	sort.SliceStable(records, func(i, j int) bool {
		if records[i].DeliveredAt.Equal(records[j].DeliveredAt) {
			return records[i].PostID > records[j].PostID
		}
		return records[i].DeliveredAt.After(records[j].DeliveredAt)
	})
	return records, nil
}

func (s *FileStorage) prune(chatID int64) error {
	records, err := s.load(chatID)
	if err != nil {
		return err
	}
	if len(records) <= s.keep {
		return nil
	}

	for _, record := range records[s.keep:] {
		path := filepath.Join(s.chatDir(chatID), fmt.Sprintf("%d.json", record.PostID))
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return oops.With("chat_id", chatID, "post_id", record.PostID, "context", "failed to prune record").Wrap(err)
		}
	}
	return nil
}
