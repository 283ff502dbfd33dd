package store

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/transfa/proximity-service/internal/domain"
)

// MemorySessionStore keeps tracking state in process. It is the default for a single
// instance deployment; use RedisSessionStore when running more than one replica.
type MemorySessionStore struct {
	// mu makes the read-check-delete in ExpireIdleUserStates atomic with PutUserState.
	mu        sync.Mutex
	users     *cache.Cache
	cooldowns *cache.Cache
}

// NewMemorySessionStore creates an empty in-process session store. Expiry is driven by
// the sweeper, so neither cache runs its own janitor goroutine.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		users:     cache.New(cache.NoExpiration, 0),
		cooldowns: cache.New(cache.NoExpiration, 0),
	}
}

func (s *MemorySessionStore) PutUserState(ctx context.Context, state domain.UserLocationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users.Set(state.UserID, state, cache.NoExpiration)
	return nil
}

func (s *MemorySessionStore) GetUserState(ctx context.Context, userID string) (*domain.UserLocationState, error) {
	v, ok := s.users.Get(userID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	state := v.(domain.UserLocationState)
	return &state, nil
}

func (s *MemorySessionStore) DeleteUserState(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users.Delete(userID)
	return nil
}

func (s *MemorySessionStore) ExpireIdleUserStates(ctx context.Context, cutoff time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted []string
	for userID, item := range s.users.Items() {
		state, ok := item.Object.(domain.UserLocationState)
		if !ok || state.LastUpdated.Before(cutoff) {
			s.users.Delete(userID)
			evicted = append(evicted, userID)
		}
	}
	return evicted, nil
}

func (s *MemorySessionStore) CountUserStates(ctx context.Context) (int, error) {
	return s.users.ItemCount(), nil
}

func (s *MemorySessionStore) HasCooldown(ctx context.Context, userID, locationID string) (bool, error) {
	_, ok := s.cooldowns.Get(cooldownKey(userID, locationID))
	return ok, nil
}

func (s *MemorySessionStore) ClaimCooldown(ctx context.Context, userID, locationID string, ttl time.Duration) (bool, error) {
	// Add fails when an unexpired entry already exists.
	if err := s.cooldowns.Add(cooldownKey(userID, locationID), time.Now().Add(ttl), ttl); err != nil {
		return false, nil
	}
	return true, nil
}

func (s *MemorySessionStore) ReleaseCooldown(ctx context.Context, userID, locationID string) error {
	s.cooldowns.Delete(cooldownKey(userID, locationID))
	return nil
}

func (s *MemorySessionStore) PurgeExpiredCooldowns(ctx context.Context) error {
	s.cooldowns.DeleteExpired()
	return nil
}
