// Package jobs runs periodic maintenance in the API process.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// SessionPruner deletes sessions that expired before a cutoff.
type SessionPruner interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// Janitor prunes expired database sessions on a cron schedule.
type Janitor struct {
	sessions SessionPruner
	schedule string
	timeout  time.Duration
	now      func() time.Time
	logger   *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

// NewJanitor validates schedule (standard five-field cron or a descriptor
// such as "@every 1h").
func NewJanitor(sessions SessionPruner, schedule string, logger *slog.Logger) (*Janitor, error) {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid janitor schedule %q: %w", schedule, err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{
		sessions: sessions,
		schedule: schedule,
		timeout:  time.Minute,
		now:      time.Now,
		logger:   logger.With("job", "session_janitor"),
	}, nil
}

// RunOnce deletes every session whose expiry is in the past.
func (j *Janitor) RunOnce(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	n, err := j.sessions.DeleteExpired(ctx, j.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	if n > 0 {
		j.logger.InfoContext(ctx, "pruned expired sessions", "count", n)
	}
	return n, nil
}

// Start schedules the janitor. The schedule stops when ctx is cancelled or
// Stop is called.
func (j *Janitor) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cron != nil {
		return fmt.Errorf("janitor already started")
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(j.schedule, func() {
		if _, err := j.RunOnce(ctx); err != nil {
			j.logger.ErrorContext(ctx, "janitor run failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule janitor: %w", err)
	}
	c.Start()
	j.cron = c
	j.logger.Info("janitor scheduled", "schedule", j.schedule)

	go func() {
		<-ctx.Done()
		j.Stop()
	}()
	return nil
}

// Stop halts the schedule and waits for a running prune to finish.
func (j *Janitor) Stop() {
	j.mu.Lock()
	c := j.cron
	j.cron = nil
	j.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}
