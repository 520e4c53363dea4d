package repository

import (
	"context"

	"github.com/reshetovitsme/booru-telegram-feed/internal/modules/post/domain"
)

// Repository is the read side of the image board. Implementations must
// report restricted or missing posts with errors.ErrRestrictedPost.
type Repository interface {
	Search(ctx context.Context, tags string, limit int) ([]*domain.Post, error)
	Get(ctx context.Context, id int64) (*domain.Post, error)
	Download(ctx context.Context, url string) ([]byte, error)
}
