package service

import (
	"context"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/reshetovitsme/booru-telegram-feed/internal/modules/poll/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRefresher struct {
	refreshes atomic.Int32
	cancels   atomic.Int32
}

func (c *countingRefresher) Refresh(context.Context) (domain.Result, error) {
	c.refreshes.Add(1)
	return domain.Result{}, nil
}

func (c *countingRefresher) Cancel() bool {
	c.cancels.Add(1)
	return false
}

func TestSchedulerRunsAndStops(t *testing.T) {
	refresher := &countingRefresher{}
	scheduler := NewScheduler(refresher, time.Second)

	require.NoError(t, scheduler.Start(context.Background()))
	require.NoError(t, scheduler.Start(context.Background()))
	assert.True(t, scheduler.Running())

	next, ok := scheduler.Next()
	assert.True(t, ok)
	assert.False(t, next.IsZero())

	assert.Eventually(t, func() bool {
		return refresher.refreshes.Load() >= 1
	}, 3*time.Second, 50*time.Millisecond)

	scheduler.Stop()
	assert.False(t, scheduler.Running())
	assert.Equal(t, int32(1), refresher.cancels.Load())

	_, ok = scheduler.Next()
	assert.False(t, ok)

	scheduler.Stop()
	assert.Equal(t, int32(1), refresher.cancels.Load())
}

func TestSchedulerStopsWithContext(t *testing.T) {
	refresher := &countingRefresher{}
	scheduler := NewScheduler(refresher, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, scheduler.Start(ctx))
	cancel()

	assert.Eventually(t, func() bool {
		return !scheduler.Running()
	}, time.Second, 10*time.Millisecond)
}

func TestSchedulerResume(t *testing.T) {
	refresher := &countingRefresher{}
	scheduler := NewScheduler(refresher, time.Hour)

	assert.Error(t, scheduler.Resume())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, scheduler.Start(ctx))
	scheduler.Stop()
	require.False(t, scheduler.Running())

	require.NoError(t, scheduler.Resume())
	assert.True(t, scheduler.Running())

	cancel()
	assert.Eventually(t, func() bool {
		return !scheduler.Running()
	}, time.Second, 10*time.Millisecond)
	assert.Error(t, scheduler.Resume())
}

func TestSchedulerStopResumeCyclesDoNotAccumulateGoroutines(t *testing.T) {
	scheduler := NewScheduler(&countingRefresher{}, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, scheduler.Start(ctx))
	scheduler.Stop()
	baseline := runtime.NumGoroutine()

	for range 50 {
		require.NoError(t, scheduler.Resume())
		scheduler.Stop()
	}

	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() < baseline+10
	}, time.Second, 10*time.Millisecond)
}
