package service

import (
	"testing"
	"time"

	"github.com/reshetovitsme/booru-telegram-feed/internal/modules/chat/domain"
	chatRepo "github.com/reshetovitsme/booru-telegram-feed/internal/modules/chat/repository"
	"github.com/reshetovitsme/booru-telegram-feed/internal/shared/config"
	"github.com/reshetovitsme/booru-telegram-feed/internal/shared/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T, chatIDs ...int64) *Service {
	t.Helper()
	repo, err := chatRepo.NewFileStorage(t.TempDir())
	require.NoError(t, err)
	return New(&config.Config{ChatIDs: chatIDs}, repo)
}

func TestGetCreatesDefaults(t *testing.T) {
	svc := newService(t)

	cfg, err := svc.Get(10)
	require.NoError(t, err)
	assert.Equal(t, domain.NewConfig(10), cfg)

	cfg.ShowDirectButton = false
	require.NoError(t, svc.Save(cfg))

	again, err := svc.Get(10)
	require.NoError(t, err)
	assert.False(t, again.ShowDirectButton)
}

func TestSaveRejectsInvalid(t *testing.T) {
	svc := newService(t)

	cfg, err := svc.Get(1)
	require.NoError(t, err)
	cfg.Template = "{broken"
	assert.ErrorIs(t, svc.Save(cfg), errors.ErrInvalidConfig)

	stored, err := svc.Get(1)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultTemplate, stored.Template)
}

func TestSubscribers(t *testing.T) {
	svc := newService(t, 100, 200)

	_, err := svc.SetSubscribed(1, true)
	require.NoError(t, err)
	_, err = svc.SetSubscribed(2, true)
	require.NoError(t, err)
	_, err = svc.SetSubscribed(2, false)
	require.NoError(t, err)
	_, err = svc.SetSubscribed(100, true)
	require.NoError(t, err)

	targets, err := svc.Subscribers()
	require.NoError(t, err)

	ids := make([]int64, 0, len(targets))
	for _, cfg := range targets {
		ids = append(ids, cfg.ChatID)
	}
	assert.Equal(t, []int64{100, 200, 1}, ids)
}

func TestSetSubscribedWaitsForChatLock(t *testing.T) {
	svc := newService(t)

	unlock := svc.Lock(1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := svc.SetSubscribed(1, true)
		assert.NoError(t, err)
	}()

	assert.Never(t, func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}, 100*time.Millisecond, 10*time.Millisecond)

	unlock()
	<-done
	cfg, err := svc.Get(1)
	require.NoError(t, err)
	assert.True(t, cfg.Subscribed)
}
