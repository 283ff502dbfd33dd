package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/transfa/proximity-service/internal/domain"
)

func TestMemorySessionStore_UserStateRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySessionStore()

	if _, err := s.GetUserState(ctx, "user-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	now := time.Now().UTC()
	if err := s.PutUserState(ctx, domain.UserLocationState{UserID: "user-1", Latitude: 6.5, Longitude: 3.3, LastUpdated: now}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.GetUserState(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Latitude != 6.5 || got.Longitude != 3.3 || !got.LastUpdated.Equal(now) {
		t.Fatalf("unexpected state: %+v", got)
	}

	// Mutating the returned copy must not leak back into the store.
	got.Latitude = 0
	again, _ := s.GetUserState(ctx, "user-1")
	if again.Latitude != 6.5 {
		t.Fatalf("expected stored state to be isolated, got latitude %f", again.Latitude)
	}

	if err := s.DeleteUserState(ctx, "user-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n, _ := s.CountUserStates(ctx); n != 0 {
		t.Fatalf("expected empty store, got %d", n)
	}
}

func TestMemorySessionStore_ExpireIdleUserStates(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySessionStore()
	now := time.Now().UTC()

	_ = s.PutUserState(ctx, domain.UserLocationState{UserID: "idle", LastUpdated: now.Add(-6 * time.Minute)})
	_ = s.PutUserState(ctx, domain.UserLocationState{UserID: "fresh", LastUpdated: now.Add(-time.Minute)})
	_ = s.PutUserState(ctx, domain.UserLocationState{UserID: "boundary", LastUpdated: now.Add(-5 * time.Minute)})

	evicted, err := s.ExpireIdleUserStates(ctx, now.Add(-5*time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(evicted) != 1 || evicted[0] != "idle" {
		t.Fatalf("expected only idle user evicted, got %v", evicted)
	}
	if _, err := s.GetUserState(ctx, "fresh"); err != nil {
		t.Fatalf("expected fresh user to survive, got %v", err)
	}
	if _, err := s.GetUserState(ctx, "boundary"); err != nil {
		t.Fatalf("expected user exactly at the cutoff to survive, got %v", err)
	}
}

func TestMemorySessionStore_ExpireSeesRefreshedTimestamp(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySessionStore()
	now := time.Now().UTC()

	_ = s.PutUserState(ctx, domain.UserLocationState{UserID: "user-1", LastUpdated: now.Add(-10 * time.Minute)})
	// A new update arrives before the sweep runs.
	_ = s.PutUserState(ctx, domain.UserLocationState{UserID: "user-1", LastUpdated: now})

	evicted, _ := s.ExpireIdleUserStates(ctx, now.Add(-5*time.Minute))
	if len(evicted) != 0 {
		t.Fatalf("expected refreshed user to survive, evicted %v", evicted)
	}
}

func TestMemorySessionStore_ClaimCooldown(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySessionStore()

	claimed, err := s.ClaimCooldown(ctx, "user-1", "loc-1", time.Hour)
	if err != nil || !claimed {
		t.Fatalf("expected first claim to succeed, got claimed=%v err=%v", claimed, err)
	}
	claimed, _ = s.ClaimCooldown(ctx, "user-1", "loc-1", time.Hour)
	if claimed {
		t.Fatalf("expected second claim to fail while cooldown is active")
	}
	if has, _ := s.HasCooldown(ctx, "user-1", "loc-1"); !has {
		t.Fatalf("expected cooldown to be reported")
	}
	if has, _ := s.HasCooldown(ctx, "user-1", "loc-2"); has {
		t.Fatalf("expected cooldown to be scoped to the location")
	}

	if err := s.ReleaseCooldown(ctx, "user-1", "loc-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	claimed, _ = s.ClaimCooldown(ctx, "user-1", "loc-1", time.Hour)
	if !claimed {
		t.Fatalf("expected claim to succeed after release")
	}
}

func TestMemorySessionStore_CooldownExpires(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySessionStore()

	if claimed, _ := s.ClaimCooldown(ctx, "user-1", "loc-1", 20*time.Millisecond); !claimed {
		t.Fatalf("expected claim to succeed")
	}
	time.Sleep(40 * time.Millisecond)

	if has, _ := s.HasCooldown(ctx, "user-1", "loc-1"); has {
		t.Fatalf("expected cooldown to have expired")
	}
	if err := s.PurgeExpiredCooldowns(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claimed, _ := s.ClaimCooldown(ctx, "user-1", "loc-1", time.Hour); !claimed {
		t.Fatalf("expected claim to succeed after expiry")
	}
}

func TestMemorySessionStore_ConcurrentClaimsOnlyOneWins(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySessionStore()

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if claimed, _ := s.ClaimCooldown(ctx, "user-1", "loc-1", time.Hour); claimed {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one winning claim, got %d", wins)
	}
}
