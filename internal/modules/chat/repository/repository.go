package repository

import (
	"github.com/reshetovitsme/booru-telegram-feed/internal/modules/chat/domain"
)

// Repository defines the interface for chat configuration persistence
type Repository interface {
	SaveConfig(cfg *domain.Config) error
	GetConfig(chatID int64) (*domain.Config, error)
	GetAllConfigs() ([]*domain.Config, error)
	DeleteConfig(chatID int64) error
}
