package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/reshetovitsme/booru-telegram-feed/internal/modules/operator/domain"
	"github.com/reshetovitsme/booru-telegram-feed/internal/shared/errors"
	"github.com/samber/oops"
)

// FileStorage implements Repository using file system
type FileStorage struct {
	basePath string
	mu       sync.RWMutex
}

// NewFileStorage creates a new file-based operator repository
func NewFileStorage(basePath string) (Repository, error) {
	operatorPath := filepath.Join(basePath, "operators")
	if err := os.MkdirAll(operatorPath, 0755); err != nil {
		return nil, oops.With("base_path", basePath, "context", "failed to create operators directory").Wrap(err)
	}

	return &FileStorage{basePath: operatorPath}, nil
}

func (s *FileStorage) SaveOperator(operator *domain.Operator) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.basePath, fmt.Sprintf("%d.json", operator.ID))
	data, err := json.MarshalIndent(operator, "", "  ")
	if err != nil {
		return oops.With("user_id", operator.ID, "context", "failed to marshal operator").Wrap(err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return oops.With("user_id", operator.ID, "context", "failed to write operator").Wrap(err)
	}
	return nil
}

func (s *FileStorage) GetOperator(userID int64) (*domain.Operator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path := filepath.Join(s.basePath, fmt.Sprintf("%d.json", userID))
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, oops.With("user_id", userID).Wrap(errors.ErrUnauthorized)
		}
		return nil, oops.With("user_id", userID, "context", "failed to read operator").Wrap(err)
	}

	var operator domain.Operator
	if err := json.Unmarshal(data, &operator); err != nil {
		return nil, oops.With("user_id", userID, "context", "failed to unmarshal operator").Wrap(err)
	}

	return &operator, nil
}

func (s *FileStorage) GetAllOperators() ([]*domain.Operator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, oops.With("directory", s.basePath, "context", "failed to read operators directory").Wrap(err)
	}

	var operators []*domain.Operator
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.basePath, entry.Name()))
		if err != nil {
			continue
		}

		var operator domain.Operator
		if err := json.Unmarshal(data, &operator); err != nil {
			continue
		}

		operators = append(operators, &operator)
	}

	sort.Slice(operators, func(i, j int) bool {
		return operators[i].AddedAt.Before(operators[j].AddedAt)
	})
	return operators, nil
}
