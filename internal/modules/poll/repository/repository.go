package repository

import (
	"github.com/reshetovitsme/booru-telegram-feed/internal/modules/poll/domain"
)

// Repository persists the polling cursor and the tracker
type Repository interface {
	// LoadCursor reports false when no cursor was ever saved
	LoadCursor() (domain.Cursor, bool, error)
	SaveCursor(cursor domain.Cursor) error
	LoadTracker() (*domain.Tracker, error)
	SaveTracker(tracker *domain.Tracker) error
}
