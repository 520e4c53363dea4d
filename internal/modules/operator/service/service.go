package service

import (
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	"github.com/reshetovitsme/booru-telegram-feed/internal/modules/operator/domain"
	"github.com/reshetovitsme/booru-telegram-feed/internal/modules/operator/repository"
	"github.com/reshetovitsme/booru-telegram-feed/internal/shared/config"
	"github.com/reshetovitsme/booru-telegram-feed/internal/shared/errors"
	"github.com/samber/lo"
	"github.com/samber/oops"
)

// Service decides who may control the bot. With an allow-list configured
// only listed users are operators; otherwise the first user to register
// becomes the admin and the only operator.
type Service struct {
	allowed []int64
	repo    repository.Repository
	now     func() time.Time
	mu      sync.Mutex
}

// New creates a new operator service
func New(cfg *config.Config, repo repository.Repository) *Service {
	return &Service{
		allowed: cfg.AllowedUsers,
		repo:    repo,
		now:     time.Now,
	}
}

// IsAuthorized checks if a user is an operator
func (s *Service) IsAuthorized(userID int64) bool {
	if len(s.allowed) > 0 {
		return lo.Contains(s.allowed, userID)
	}

	_, err := s.repo.GetOperator(userID)
	if err != nil && !stderrors.Is(err, errors.ErrUnauthorized) {
		slog.Error("Failed to look up operator", "user_id", userID, "error", err)
	}
	return err == nil
}

// Register records the user as an operator. It fails with
// errors.ErrUnauthorized for users outside the allow-list, or for anyone
// but the first user when no allow-list is configured.
func (s *Service) Register(userID int64, username string) (*domain.Operator, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.repo.GetOperator(userID)
	if err == nil {
		return existing, nil
	}
	if !stderrors.Is(err, errors.ErrUnauthorized) {
		return nil, err
	}

	isAdmin := false
	if len(s.allowed) > 0 {
		if !lo.Contains(s.allowed, userID) {
			return nil, oops.With("user_id", userID).Wrap(errors.ErrUnauthorized)
		}
		isAdmin = s.allowed[0] == userID
	} else {
		operators, err := s.repo.GetAllOperators()
		if err != nil {
			return nil, err
		}
		if len(operators) > 0 {
			return nil, oops.With("user_id", userID).Wrap(errors.ErrUnauthorized)
		}
		isAdmin = true
	}

	operator := &domain.Operator{ID: userID, Username: username, AddedAt: s.now(), IsAdmin: isAdmin}
	if err := s.repo.SaveOperator(operator); err != nil {
		return nil, err
	}

	slog.Info("Registered operator", "user_id", userID, "username", username, "is_admin", isAdmin)
	return operator, nil
}

// Operators lists registered operators, oldest first
func (s *Service) Operators() ([]*domain.Operator, error) {
	return s.repo.GetAllOperators()
}
