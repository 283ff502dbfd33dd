/**
 * @description
 * This file contains the service facade used by the HTTP handlers. It answers the
 * stateless exact and nearby queries directly from the matcher and delegates live
 * tracking to the Tracker.
 *
 * @dependencies
 * - internal/proximity: the matching engine.
 * - internal/store: user id resolution.
 * - internal/metrics: query counters and latency.
 */
package app

import (
	"context"
	"time"

	"github.com/transfa/proximity-service/internal/domain"
	"github.com/transfa/proximity-service/internal/metrics"
	"github.com/transfa/proximity-service/internal/proximity"
)

// UserResolver maps Clerk subject ids onto internal user ids.
type UserResolver interface {
	FindUserIDByClerkUserID(ctx context.Context, clerkUserID string) (string, error)
}

// Service provides the proximity use cases.
type Service struct {
	users   UserResolver
	matcher *proximity.Matcher
	tracker *Tracker
	metrics *metrics.ProximityMetrics
}

// NewService creates a new proximity service instance.
func NewService(users UserResolver, matcher *proximity.Matcher, tracker *Tracker, m *metrics.ProximityMetrics) *Service {
	return &Service{
		users:   users,
		matcher: matcher,
		tracker: tracker,
		metrics: m,
	}
}

// ResolveInternalUserID converts a Clerk user id (e.g., "user_abc123") into the internal UUID.
func (s *Service) ResolveInternalUserID(ctx context.Context, clerkUserID string) (string, error) {
	return s.users.FindUserIDByClerkUserID(ctx, clerkUserID)
}

// FindExactMatch returns the single confident match at the caller's position, or nil.
func (s *Service) FindExactMatch(ctx context.Context, lat, lon float64, name string, radiusMeters float64) *domain.LocationMatch {
	start := time.Now()
	match := s.matcher.FindExact(ctx, lat, lon, name, radiusMeters)
	s.metrics.RecordQuery("exact", match != nil, time.Since(start))
	return match
}

// FindNearbyMatches returns ranked nearby places with deduplicated suggestions.
func (s *Service) FindNearbyMatches(ctx context.Context, lat, lon float64, radiusMeters float64, limit int) []domain.LocationMatch {
	start := time.Now()
	matches := s.matcher.FindNearby(ctx, lat, lon, radiusMeters, limit)
	s.metrics.RecordQuery("nearby", len(matches) > 0, time.Since(start))
	if matches == nil {
		matches = []domain.LocationMatch{}
	}
	return matches
}

func (s *Service) UpdateLocation(ctx context.Context, userID string, update domain.LocationUpdate) domain.ProximityResult {
	return s.tracker.UpdateLocation(ctx, userID, update)
}

func (s *Service) Subscribe(ctx context.Context, userID string, req domain.SubscribeRequest) error {
	return s.tracker.Subscribe(ctx, userID, req)
}

func (s *Service) Disconnect(ctx context.Context, userID string) error {
	return s.tracker.Disconnect(ctx, userID)
}
