/**
 * @description
 * This file defines the storage contracts the proximity-service depends on. The location
 * and preference data is owned by other services and only read here; live-tracking state
 * is owned by this service and kept behind SessionStore so the in-process implementation
 * can be swapped for a shared one without touching the matching logic.
 *
 * @dependencies
 * - context, errors, time: Standard Go libraries.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/transfa/proximity-service/internal/domain"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrPreferencesNotFound = errors.New("notification preferences not found")
	ErrSessionNotFound     = errors.New("user location state not found")
)

// Repository is the read-only view of the shared Postgres database.
type Repository interface {
	// Resolve internal UUID from Clerk user id (e.g., "user_abc123").
	FindUserIDByClerkUserID(ctx context.Context, clerkUserID string) (string, error)

	// Spatial candidate query: active locations inside the box with their completed
	// transactions and destination accounts embedded.
	FindLocationsInBox(ctx context.Context, box domain.BoundingBox, nameFilter string, activeOnly bool) ([]domain.LocationWithTransactions, error)

	// Returns ErrPreferencesNotFound when the user has no settings row.
	GetNotificationPreferences(ctx context.Context, userID string) (*domain.NotificationPreferences, error)
}

// SessionStore holds ephemeral per-user tracking state and notification cooldowns.
type SessionStore interface {
	PutUserState(ctx context.Context, state domain.UserLocationState) error
	// Returns ErrSessionNotFound when the user is not tracked.
	GetUserState(ctx context.Context, userID string) (*domain.UserLocationState, error)
	DeleteUserState(ctx context.Context, userID string) error
	// ExpireIdleUserStates removes every state whose LastUpdated is before cutoff,
	// re-reading the stored timestamp at removal time. It returns the evicted user ids.
	ExpireIdleUserStates(ctx context.Context, cutoff time.Time) ([]string, error)
	CountUserStates(ctx context.Context) (int, error)

	HasCooldown(ctx context.Context, userID, locationID string) (bool, error)
	// ClaimCooldown atomically creates the cooldown entry if none exists and reports
	// whether this caller created it.
	ClaimCooldown(ctx context.Context, userID, locationID string, ttl time.Duration) (bool, error)
	ReleaseCooldown(ctx context.Context, userID, locationID string) error
	PurgeExpiredCooldowns(ctx context.Context) error
}

func cooldownKey(userID, locationID string) string {
	return userID + ":" + locationID
}
