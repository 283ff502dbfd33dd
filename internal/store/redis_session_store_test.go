package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/transfa/proximity-service/internal/domain"
)

func newTestRedisSessionStore(t *testing.T) (*RedisSessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSessionStore(client, "test:proximity"), mr
}

func TestNewRedisSessionStore_NormalizesPrefix(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		want   string
	}{
		{name: "empty falls back", prefix: "", want: "transfa:proximity"},
		{name: "whitespace falls back", prefix: "   ", want: "transfa:proximity"},
		{name: "trailing colon trimmed", prefix: "staging:proximity:", want: "staging:proximity"},
		{name: "kept as is", prefix: "custom", want: "custom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewRedisSessionStore(nil, tt.prefix)
			if s.prefix != tt.want {
				t.Fatalf("expected prefix %q, got %q", tt.want, s.prefix)
			}
		})
	}
}

func TestRedisSessionStore_Keys(t *testing.T) {
	s := NewRedisSessionStore(nil, "transfa:proximity")

	if got := s.usersKey(); got != "transfa:proximity:users" {
		t.Fatalf("unexpected users key %q", got)
	}
	if got := s.lastSeenKey(); got != "transfa:proximity:users:last_seen" {
		t.Fatalf("unexpected last-seen key %q", got)
	}
	if got := s.cooldownKey("user-1", "loc-1"); got != "transfa:proximity:cooldown:user-1:loc-1" {
		t.Fatalf("unexpected cooldown key %q", got)
	}
}

func TestRedisSessionStore_UserStateRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisSessionStore(t)

	if _, err := s.GetUserState(ctx, "user-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	state := domain.UserLocationState{UserID: "user-1", Latitude: 6.5, Longitude: 3.3, LastUpdated: now, ProximityRadiusMeters: 80}
	if err := s.PutUserState(ctx, state); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.GetUserState(ctx, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Latitude != 6.5 || got.Longitude != 3.3 || !got.LastUpdated.Equal(now) {
		t.Fatalf("unexpected state: %+v", got)
	}
	if got.ProximityRadiusMeters != 80 {
		t.Fatalf("expected subscription radius to survive, got %f", got.ProximityRadiusMeters)
	}
	if score, err := mr.ZScore("test:proximity:users:last_seen", "user-1"); err != nil || score != float64(now.UnixMilli()) {
		t.Fatalf("expected last-seen score %d, got %f (err=%v)", now.UnixMilli(), score, err)
	}
	if n, _ := s.CountUserStates(ctx); n != 1 {
		t.Fatalf("expected one tracked user, got %d", n)
	}

	if err := s.DeleteUserState(ctx, "user-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n, _ := s.CountUserStates(ctx); n != 0 {
		t.Fatalf("expected empty store, got %d", n)
	}
	if members, _ := mr.ZMembers("test:proximity:users:last_seen"); len(members) != 0 {
		t.Fatalf("expected last-seen entry removed, got %v", members)
	}
}

func TestRedisSessionStore_ExpireIdleUserStates(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestRedisSessionStore(t)
	now := time.Now().UTC().Truncate(time.Millisecond)

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
	if _, err := s.GetUserState(ctx, "idle"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected idle user removed, got %v", err)
	}
	if _, err := s.GetUserState(ctx, "fresh"); err != nil {
		t.Fatalf("expected fresh user to survive, got %v", err)
	}
	if _, err := s.GetUserState(ctx, "boundary"); err != nil {
		t.Fatalf("expected user exactly at the cutoff to survive, got %v", err)
	}
}

func TestRedisSessionStore_ExpireSeesRefreshedTimestamp(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestRedisSessionStore(t)
	now := time.Now().UTC().Truncate(time.Millisecond)
	cutoff := now.Add(-5 * time.Minute)

	_ = s.PutUserState(ctx, domain.UserLocationState{UserID: "user-1", LastUpdated: now.Add(-10 * time.Minute)})
	// A new update lands after the sweep scanned its candidates but before it evicts.
	_ = s.PutUserState(ctx, domain.UserLocationState{UserID: "user-1", LastUpdated: now})

	keys := []string{s.usersKey(), s.lastSeenKey()}
	removed, err := expireIdleScript.Run(ctx, s.client, keys, "user-1", cutoff.UnixMilli()-1).Int()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed != 0 {
		t.Fatalf("expected refreshed user to be kept by the eviction script")
	}
	if _, err := s.GetUserState(ctx, "user-1"); err != nil {
		t.Fatalf("expected refreshed user to survive, got %v", err)
	}

	evicted, _ := s.ExpireIdleUserStates(ctx, cutoff)
	if len(evicted) != 0 {
		t.Fatalf("expected refreshed user to survive the sweep, evicted %v", evicted)
	}
}

func TestRedisSessionStore_ClaimCooldown(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisSessionStore(t)

	claimed, err := s.ClaimCooldown(ctx, "user-1", "loc-1", time.Hour)
	if err != nil || !claimed {
		t.Fatalf("expected first claim to succeed, got claimed=%v err=%v", claimed, err)
	}
	if ttl := mr.TTL("test:proximity:cooldown:user-1:loc-1"); ttl != time.Hour {
		t.Fatalf("expected cooldown ttl of one hour, got %v", ttl)
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
	if has, _ := s.HasCooldown(ctx, "user-1", "loc-1"); has {
		t.Fatalf("expected cooldown to be gone after release")
	}
	claimed, _ = s.ClaimCooldown(ctx, "user-1", "loc-1", time.Hour)
	if !claimed {
		t.Fatalf("expected claim to succeed after release")
	}
}

func TestRedisSessionStore_CooldownExpires(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisSessionStore(t)

	if claimed, _ := s.ClaimCooldown(ctx, "user-1", "loc-1", 24*time.Hour); !claimed {
		t.Fatalf("expected claim to succeed")
	}
	mr.FastForward(24*time.Hour + time.Second)

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

func TestRedisSessionStore_ConcurrentClaimsOnlyOneWins(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestRedisSessionStore(t)

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := s.ClaimCooldown(ctx, "user-1", "loc-1", time.Hour)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if claimed {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one winning claim, got %d", wins)
	}
}

func TestRedisSessionStore_SeparatePrefixesDoNotShareCooldowns(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisSessionStore(t)
	other := NewRedisSessionStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "other:proximity")
	t.Cleanup(func() { _ = other.client.Close() })

	if claimed, _ := s.ClaimCooldown(ctx, "user-1", "loc-1", time.Hour); !claimed {
		t.Fatalf("expected claim to succeed")
	}
	if claimed, _ := other.ClaimCooldown(ctx, "user-1", "loc-1", time.Hour); !claimed {
		t.Fatalf("expected claim under another prefix to succeed")
	}
}
