package service

import (
	stderrors "errors"
	"testing"

	"github.com/reshetovitsme/booru-telegram-feed/internal/modules/operator/repository"
	"github.com/reshetovitsme/booru-telegram-feed/internal/shared/config"
	"github.com/reshetovitsme/booru-telegram-feed/internal/shared/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T, allowed ...int64) *Service {
	t.Helper()
	repo, err := repository.NewFileStorage(t.TempDir())
	require.NoError(t, err)
	return New(&config.Config{AllowedUsers: allowed}, repo)
}

func TestFirstUserBecomesAdmin(t *testing.T) {
	svc := newService(t)
	assert.False(t, svc.IsAuthorized(10))

	op, err := svc.Register(10, "owner")
	require.NoError(t, err)
	assert.True(t, op.IsAdmin)
	assert.True(t, svc.IsAuthorized(10))

	again, err := svc.Register(10, "owner")
	require.NoError(t, err)
	assert.Equal(t, op.AddedAt.Unix(), again.AddedAt.Unix())

	_, err = svc.Register(11, "stranger")
	assert.True(t, stderrors.Is(err, errors.ErrUnauthorized))
	assert.False(t, svc.IsAuthorized(11))
}

func TestAllowList(t *testing.T) {
	svc := newService(t, 5, 6)

	assert.True(t, svc.IsAuthorized(5))
	assert.True(t, svc.IsAuthorized(6))
	assert.False(t, svc.IsAuthorized(7))

	_, err := svc.Register(7, "intruder")
	assert.True(t, stderrors.Is(err, errors.ErrUnauthorized))

	first, err := svc.Register(5, "a")
	require.NoError(t, err)
	assert.True(t, first.IsAdmin)

	second, err := svc.Register(6, "b")
	require.NoError(t, err)
	assert.False(t, second.IsAdmin)

	ops, err := svc.Operators()
	require.NoError(t, err)
	assert.Len(t, ops, 2)
}
