package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/transfa/proximity-service/internal/domain"
)

// expireIdleScript removes a user only if the stored last-seen score is still at or
// before the cutoff, so an update that lands between the scan and the delete survives.
var expireIdleScript = redis.NewScript(`
local score = redis.call("ZSCORE", KEYS[2], ARGV[1])
if score and tonumber(score) <= tonumber(ARGV[2]) then
  redis.call("ZREM", KEYS[2], ARGV[1])
  redis.call("HDEL", KEYS[1], ARGV[1])
  return 1
end
return 0
`)

// RedisSessionStore shares tracking state and cooldowns between service replicas.
// User states live in one hash keyed by user id, with a sorted set of last-seen
// timestamps used by the idle sweep. Cooldowns are plain keys with a TTL.
type RedisSessionStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisSessionStore(client redis.UniversalClient, prefix string) *RedisSessionStore {
	trimmedPrefix := strings.TrimSpace(prefix)
	if trimmedPrefix == "" {
		trimmedPrefix = "transfa:proximity"
	}
	trimmedPrefix = strings.TrimSuffix(trimmedPrefix, ":")

	return &RedisSessionStore{
		client: client,
		prefix: trimmedPrefix,
	}
}

func (r *RedisSessionStore) usersKey() string {
	return r.prefix + ":users"
}

func (r *RedisSessionStore) lastSeenKey() string {
	return r.prefix + ":users:last_seen"
}

func (r *RedisSessionStore) cooldownKey(userID, locationID string) string {
	return fmt.Sprintf("%s:cooldown:%s", r.prefix, cooldownKey(userID, locationID))
}

func (r *RedisSessionStore) PutUserState(ctx context.Context, state domain.UserLocationState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal user state: %w", err)
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.usersKey(), state.UserID, payload)
		pipe.ZAdd(ctx, r.lastSeenKey(), redis.Z{Score: float64(state.LastUpdated.UnixMilli()), Member: state.UserID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("store user state: %w", err)
	}
	return nil
}

func (r *RedisSessionStore) GetUserState(ctx context.Context, userID string) (*domain.UserLocationState, error) {
	raw, err := r.client.HGet(ctx, r.usersKey(), userID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	var state domain.UserLocationState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("decode user state: %w", err)
	}
	return &state, nil
}

func (r *RedisSessionStore) DeleteUserState(ctx context.Context, userID string) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, r.usersKey(), userID)
		pipe.ZRem(ctx, r.lastSeenKey(), userID)
		return nil
	})
	return err
}

func (r *RedisSessionStore) ExpireIdleUserStates(ctx context.Context, cutoff time.Time) ([]string, error) {
	cutoffMs := cutoff.UnixMilli()
	// The sorted set is inclusive on Max; shift by one so "before cutoff" is strict.
	maxScore := strconv.FormatInt(cutoffMs-1, 10)

	candidates, err := r.client.ZRangeByScore(ctx, r.lastSeenKey(), &redis.ZRangeBy{Min: "-inf", Max: maxScore}).Result()
	if err != nil {
		return nil, fmt.Errorf("scan idle users: %w", err)
	}

	var evicted []string
	keys := []string{r.usersKey(), r.lastSeenKey()}
	for _, userID := range candidates {
		removed, err := expireIdleScript.Run(ctx, r.client, keys, userID, cutoffMs-1).Int()
		if err != nil {
			return evicted, fmt.Errorf("expire user %s: %w", userID, err)
		}
		if removed == 1 {
			evicted = append(evicted, userID)
		}
	}
	return evicted, nil
}

func (r *RedisSessionStore) CountUserStates(ctx context.Context) (int, error) {
	n, err := r.client.HLen(ctx, r.usersKey()).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (r *RedisSessionStore) HasCooldown(ctx context.Context, userID, locationID string) (bool, error) {
	n, err := r.client.Exists(ctx, r.cooldownKey(userID, locationID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *RedisSessionStore) ClaimCooldown(ctx context.Context, userID, locationID string, ttl time.Duration) (bool, error) {
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}
	return r.client.SetNX(ctx, r.cooldownKey(userID, locationID), time.Now().UTC().Format(time.RFC3339), ttl).Result()
}

func (r *RedisSessionStore) ReleaseCooldown(ctx context.Context, userID, locationID string) error {
	return r.client.Del(ctx, r.cooldownKey(userID, locationID)).Err()
}

// PurgeExpiredCooldowns is a no-op: Redis expires cooldown keys itself.
func (r *RedisSessionStore) PurgeExpiredCooldowns(ctx context.Context) error {
	return nil
}
