package repository

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/reshetovitsme/booru-telegram-feed/internal/modules/poll/domain"
	"github.com/samber/lo"
	"github.com/samber/oops"
)

const (
	cursorFile  = "last_post.txt"
	trackerFile = "tracker.txt"
)

// FileStorage keeps the cursor and tracker as small text files
type FileStorage struct {
	basePath string
	mu       sync.RWMutex
}

// NewFileStorage creates a new file-based poll state repository
func NewFileStorage(basePath string) (Repository, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, oops.With("base_path", basePath, "context", "failed to create storage directory").Wrap(err)
	}

	return &FileStorage{basePath: basePath}, nil
}

func (s *FileStorage) LoadCursor() (domain.Cursor, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path := filepath.Join(s.basePath, cursorFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Cursor{}, false, nil
		}
		return domain.Cursor{}, false, oops.With("path", path, "context", "failed to read cursor").Wrap(err)
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return domain.Cursor{}, false, nil
	}
	id, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return domain.Cursor{}, false, oops.With("path", path, "content", text, "context", "malformed cursor").Wrap(err)
	}
	return domain.Cursor{LastPostID: id}, true, nil
}

func (s *FileStorage) SaveCursor(cursor domain.Cursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.basePath, cursorFile)
	if err := os.WriteFile(path, []byte(strconv.FormatInt(cursor.LastPostID, 10)), 0644); err != nil {
		return oops.With("path", path, "context", "failed to write cursor").Wrap(err)
	}
	return nil
}

func (s *FileStorage) LoadTracker() (*domain.Tracker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path := filepath.Join(s.basePath, trackerFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.NewTracker(domain.TrackerSize), nil
		}
		return nil, oops.With("path", path, "context", "failed to read tracker").Wrap(err)
	}

	ids := lo.FilterMap(strings.Fields(string(data)), func(field string, _ int) (int64, bool) {
		id, err := strconv.ParseInt(field, 10, 64)
		return id, err == nil
	})
	return domain.NewTracker(domain.TrackerSize, ids...), nil
}

func (s *FileStorage) SaveTracker(tracker *domain.Tracker) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	content := strings.Join(lo.Map(tracker.IDs(), func(id int64, _ int) string {
		return strconv.FormatInt(id, 10)
	}), " ")

	path := filepath.Join(s.basePath, trackerFile)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return oops.With("path", path, "context", "failed to write tracker").Wrap(err)
	}
	return nil
}
