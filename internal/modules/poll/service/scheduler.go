package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/reshetovitsme/booru-telegram-feed/internal/modules/poll/domain"
	"github.com/reshetovitsme/booru-telegram-feed/internal/shared/errors"
	"github.com/robfig/cron/v3"
	"github.com/samber/oops"
)

// Refresher runs one polling cycle
type Refresher interface {
	Refresh(ctx context.Context) (domain.Result, error)
	Cancel() bool
}

// Scheduler triggers refresh cycles on a fixed interval
type Scheduler struct {
	refresher Refresher
	interval  time.Duration

	mu      sync.Mutex
	base    context.Context
	cron    *cron.Cron
	entryID cron.EntryID
}

// NewScheduler creates a scheduler for the given interval
func NewScheduler(refresher Refresher, interval time.Duration) *Scheduler {
	return &Scheduler{
		refresher: refresher,
		interval:  interval,
	}
}

// Start schedules refresh cycles until Stop is called or ctx is done.
// Starting a running scheduler is a no-op. The first ctx is the one
// Resume reuses and whose end stops the schedule.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return nil
	}
	if s.base == nil {
		s.base = ctx
		go func() {
			<-ctx.Done()
			s.Stop()
		}()
	}

	c := cron.New()
	entryID, err := c.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		s.run(ctx)
	})
	if err != nil {
		return oops.With("interval", s.interval.String(), "context", "could not set up refresh job").Wrap(err)
	}

	c.Start()
	s.cron = c
	s.entryID = entryID
	slog.Info("Refresh scheduled", "interval", s.interval.String())
	return nil
}

func (s *Scheduler) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.refresher.Refresh(ctx); err != nil {
		if stderrors.Is(err, errors.ErrRefreshRunning) {
			slog.Info("Previous refresh still running, skipping tick")
			return
		}
		slog.Error("Scheduled refresh failed", "error", err)
	}
}

// Resume restarts a stopped schedule with the context of the first Start
func (s *Scheduler) Resume() error {
	s.mu.Lock()
	base := s.base
	s.mu.Unlock()

	if base == nil {
		return oops.Errorf("scheduler was never started")
	}
	if err := base.Err(); err != nil {
		return oops.With("context", "application is shutting down").Wrap(err)
	}
	return s.Start(base)
}

// Stop removes the job and cancels a refresh in progress
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	done := c.Stop()
	s.refresher.Cancel()
	<-done.Done()
	slog.Info("Refresh schedule stopped")
}

// Running reports whether refreshes are scheduled
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cron != nil
}

// Next returns the time of the next scheduled refresh
func (s *Scheduler) Next() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil {
		return time.Time{}, false
	}
	return s.cron.Entry(s.entryID).Next, true
}
