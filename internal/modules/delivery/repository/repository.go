package repository

import (
	"time"

	"github.com/reshetovitsme/booru-telegram-feed/internal/modules/delivery/domain"
)

// Repository defines the interface for the delivered-post log
type Repository interface {
	SaveRecord(record *domain.Record) error
	GetRecords(chatID int64, limit int) ([]*domain.Record, error)
	GetRecentRecords(chatID int64, since time.Time) ([]*domain.Record, error)
}
