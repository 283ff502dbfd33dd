package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/transfa/proximity-service/internal/domain"
	"github.com/transfa/proximity-service/internal/metrics"
	"github.com/transfa/proximity-service/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSweeper_EvictsIdleUsers(t *testing.T) {
	ctx := context.Background()
	sessions := store.NewMemorySessionStore()
	m, err := metrics.NewProximityMetrics(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	_ = sessions.PutUserState(ctx, domain.UserLocationState{UserID: "idle", LastUpdated: now.Add(-6 * time.Minute)})
	_ = sessions.PutUserState(ctx, domain.UserLocationState{UserID: "active", LastUpdated: now.Add(-30 * time.Second)})

	sweeper := NewSweeper(sessions, m, discardLogger(), 5*time.Minute)
	sweeper.now = func() time.Time { return now }

	evicted, err := sweeper.Sweep(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if evicted != 1 {
		t.Fatalf("expected one eviction, got %d", evicted)
	}
	if _, err := sessions.GetUserState(ctx, "active"); err != nil {
		t.Fatalf("expected active user to survive, got %v", err)
	}
	if got := testutil.ToFloat64(m.TrackedUsers); got != 1 {
		t.Fatalf("expected tracked users gauge 1, got %v", got)
	}
	if got := testutil.ToFloat64(m.IdleEvictionsTotal); got != 1 {
		t.Fatalf("expected one eviction counted, got %v", got)
	}
}

func TestSweeper_DefaultIdleTimeout(t *testing.T) {
	sweeper := NewSweeper(store.NewMemorySessionStore(), nil, discardLogger(), 0)
	if sweeper.idleTimeout != DefaultIdleTimeout {
		t.Fatalf("expected default idle timeout, got %s", sweeper.idleTimeout)
	}
	// Run must tolerate nil metrics.
	sweeper.Run()
}

func TestScheduler_StartAndStop(t *testing.T) {
	sweeper := NewSweeper(store.NewMemorySessionStore(), nil, discardLogger(), time.Minute)

	scheduler := NewScheduler(sweeper, discardLogger(), "@every 1m")
	if err := scheduler.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	<-scheduler.Stop().Done()
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	sweeper := NewSweeper(store.NewMemorySessionStore(), nil, discardLogger(), time.Minute)

	scheduler := NewScheduler(sweeper, discardLogger(), "not a schedule")
	if err := scheduler.Start(); err == nil {
		t.Fatalf("expected invalid schedule to be rejected")
	}
}
