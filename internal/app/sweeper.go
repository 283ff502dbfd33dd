/**
 * @description
 * Periodic housekeeping for live tracking: evicts users who stopped sending updates and
 * purges expired notification cooldowns.
 */
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/transfa/proximity-service/internal/metrics"
	"github.com/transfa/proximity-service/internal/store"
)

const DefaultIdleTimeout = 5 * time.Minute

// Sweeper removes idle tracking state.
type Sweeper struct {
	sessions    store.SessionStore
	metrics     *metrics.ProximityMetrics
	logger      *slog.Logger
	idleTimeout time.Duration
	now         func() time.Time
}

func NewSweeper(sessions store.SessionStore, m *metrics.ProximityMetrics, logger *slog.Logger, idleTimeout time.Duration) *Sweeper {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &Sweeper{
		sessions:    sessions,
		metrics:     m,
		logger:      logger,
		idleTimeout: idleTimeout,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Sweep runs one eviction pass and returns the number of users evicted.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.idleTimeout)
	evicted, err := s.sessions.ExpireIdleUserStates(ctx, cutoff)
	if err != nil {
		return len(evicted), fmt.Errorf("expire idle users: %w", err)
	}
	if err := s.sessions.PurgeExpiredCooldowns(ctx); err != nil {
		return len(evicted), fmt.Errorf("purge cooldowns: %w", err)
	}

	remaining, err := s.sessions.CountUserStates(ctx)
	if err != nil {
		s.logger.Warn("failed to count tracked users", "error", err)
		remaining = 0
	}
	s.metrics.RecordSweep(len(evicted), remaining)
	return len(evicted), nil
}

// Run is the cron entry point.
func (s *Sweeper) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	evicted, err := s.Sweep(ctx)
	if err != nil {
		s.logger.Error("idle sweep failed", "error", err, "evicted", evicted)
		return
	}
	if evicted > 0 {
		s.logger.Info("evicted idle tracking sessions", "count", evicted, "idle_timeout", s.idleTimeout.String())
	}
}

// Scheduler drives the sweeper on a cron schedule.
type Scheduler struct {
	cron     *cron.Cron
	sweeper  *Sweeper
	logger   *slog.Logger
	schedule string
}

func NewScheduler(sweeper *Sweeper, logger *slog.Logger, schedule string) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))

	return &Scheduler{
		cron:     c,
		sweeper:  sweeper,
		logger:   logger,
		schedule: schedule,
	}
}

// Start registers the sweep job and starts the cron scheduler.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.sweeper.Run); err != nil {
		s.logger.Error("failed to schedule idle sweep job", "error", err, "schedule", s.schedule)
		return fmt.Errorf("schedule idle sweep: %w", err)
	}
	s.logger.Info("scheduled idle sweep job", "schedule", s.schedule)
	s.cron.Start()
	return nil
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}
