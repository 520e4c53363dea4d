package service

import (
	stderrors "errors"
	"log/slog"
	"sync"

	"github.com/reshetovitsme/booru-telegram-feed/internal/modules/chat/domain"
	chatRepo "github.com/reshetovitsme/booru-telegram-feed/internal/modules/chat/repository"
	"github.com/reshetovitsme/booru-telegram-feed/internal/shared/config"
	"github.com/reshetovitsme/booru-telegram-feed/internal/shared/errors"
	"github.com/samber/lo"
	"github.com/samber/oops"
)

// Service handles chat configuration business logic
type Service struct {
	cfg  *config.Config
	repo chatRepo.Repository
	mu   sync.Mutex

	locksMu sync.Mutex
	locks   map[int64]*sync.Mutex
}

// New creates a new chat service
func New(cfg *config.Config, repo chatRepo.Repository) *Service {
	return &Service{
		cfg:   cfg,
		repo:  repo,
		locks: make(map[int64]*sync.Mutex),
	}
}

// Lock serializes read-modify-write cycles on one chat's configuration.
// Call the returned func to release it.
func (s *Service) Lock(chatID int64) func() {
	s.locksMu.Lock()
	l, ok := s.locks[chatID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[chatID] = l
	}
	s.locksMu.Unlock()

	l.Lock()
	return l.Unlock
}

// Get returns the chat's configuration, creating the defaults on first use
func (s *Service) Get(chatID int64) (*domain.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.repo.GetConfig(chatID)
	if err == nil {
		return cfg, nil
	}
	if !stderrors.Is(err, errors.ErrChatNotFound) {
		return nil, err
	}

	cfg = domain.NewConfig(chatID)
	if err := s.repo.SaveConfig(cfg); err != nil {
		return nil, oops.With("chat_id", chatID, "context", "failed to create chat config").Wrap(err)
	}
	slog.Info("Created chat configuration", "chat_id", chatID)
	return cfg, nil
}

// Save validates and persists a configuration
func (s *Service) Save(cfg *domain.Config) error {
	if err := cfg.Validate(); err != nil {
		return oops.With("chat_id", cfg.ChatID).Wrap(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.SaveConfig(cfg)
}

// All returns every stored chat configuration
func (s *Service) All() ([]*domain.Config, error) {
	return s.repo.GetAllConfigs()
}

// SetSubscribed toggles whether a chat receives polled posts
func (s *Service) SetSubscribed(chatID int64, subscribed bool) (*domain.Config, error) {
	unlock := s.Lock(chatID)
	defer unlock()

	cfg, err := s.Get(chatID)
	if err != nil {
		return nil, err
	}
	cfg.Subscribed = subscribed
	if err := s.Save(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Subscribers returns the configurations of every chat polled posts go to:
// the configured target chats plus every chat that subscribed itself.
func (s *Service) Subscribers() ([]*domain.Config, error) {
	stored, err := s.All()
	if err != nil {
		return nil, err
	}
	subscribed := lo.Filter(stored, func(cfg *domain.Config, _ int) bool {
		return cfg.Subscribed
	})

	targets := make([]*domain.Config, 0, len(s.cfg.ChatIDs)+len(subscribed))
	for _, chatID := range lo.Uniq(s.cfg.ChatIDs) {
		cfg, err := s.Get(chatID)
		if err != nil {
			slog.Error("Failed to load target chat", "chat_id", chatID, "error", err)
			continue
		}
		targets = append(targets, cfg)
	}
	for _, cfg := range subscribed {
		if lo.Contains(s.cfg.ChatIDs, cfg.ChatID) {
			continue
		}
		targets = append(targets, cfg)
	}

	return targets, nil
}
