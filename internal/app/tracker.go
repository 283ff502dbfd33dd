/**
 * @description
 * The Tracker holds the live side of proximity matching. Every location update refreshes
 * the user's tracking state, runs a tight-radius nearby search and, when the user is at a
 * place with business payment suggestions, asks the notification-service to push a
 * "Back at ...?" prompt at most once per cooldown window.
 *
 * Key features:
 * - The proximity result is always returned, whatever happens to the notification.
 * - Cooldown check, dispatch and cooldown record are serialized per (user, location)
 *   with an in-process lock and an atomic claim in the session store, so concurrent
 *   updates from one user, on one replica or several, cannot double-notify.
 *
 * @dependencies
 * - internal/store: session state and cooldowns.
 * - internal/proximity: coordinate validation.
 * - internal/metrics: notification outcome counters.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/transfa/proximity-service/internal/domain"
	"github.com/transfa/proximity-service/internal/metrics"
	"github.com/transfa/proximity-service/internal/proximity"
	"github.com/transfa/proximity-service/internal/store"
)

const (
	MinUpdateFrequencySeconds = 1
	MaxUpdateFrequencySeconds = 300
	MinProximityRadiusMeters  = 10.0
	MaxProximityRadiusMeters  = 200.0

	maxTitleNameLength      = 20
	notificationBody        = "Tap to pay a business you've paid here before."
	NotificationTypeNearby  = "proximity_payment_suggestion"
	notificationTitleFormat = "Back at %s? "
)

var ErrInvalidSubscription = errors.New("invalid subscription settings")

// NearbyFinder is the ranked nearby search the tracker builds on.
type NearbyFinder interface {
	FindNearby(ctx context.Context, lat, lon float64, radiusMeters float64, limit int) []domain.LocationMatch
}

// PreferenceStore reads the user's notification toggles.
type PreferenceStore interface {
	GetNotificationPreferences(ctx context.Context, userID string) (*domain.NotificationPreferences, error)
}

// NotificationDispatcher hands a push notification off for delivery.
type NotificationDispatcher interface {
	Send(ctx context.Context, userID, title, body string, data map[string]interface{}) error
}

// TrackerOptions holds the live-tracking thresholds.
type TrackerOptions struct {
	TrackingRadiusMeters float64
	TrackingLimit        int
	Cooldown             time.Duration
}

func DefaultTrackerOptions() TrackerOptions {
	return TrackerOptions{
		TrackingRadiusMeters: 40,
		TrackingLimit:        5,
		Cooldown:             24 * time.Hour,
	}
}

// Tracker processes live location updates and subscriptions.
type Tracker struct {
	sessions   store.SessionStore
	finder     NearbyFinder
	prefs      PreferenceStore
	dispatcher NotificationDispatcher
	metrics    *metrics.ProximityMetrics
	opts       TrackerOptions
	locks      *keyedMutex
	now        func() time.Time
}

// NewTracker creates a Tracker. metrics may be nil.
func NewTracker(sessions store.SessionStore, finder NearbyFinder, prefs PreferenceStore, dispatcher NotificationDispatcher, m *metrics.ProximityMetrics, opts TrackerOptions) *Tracker {
	d := DefaultTrackerOptions()
	if opts.TrackingRadiusMeters <= 0 {
		opts.TrackingRadiusMeters = d.TrackingRadiusMeters
	}
	if opts.TrackingLimit <= 0 {
		opts.TrackingLimit = d.TrackingLimit
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = d.Cooldown
	}
	return &Tracker{
		sessions:   sessions,
		finder:     finder,
		prefs:      prefs,
		dispatcher: dispatcher,
		metrics:    m,
		opts:       opts,
		locks:      newKeyedMutex(),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// UpdateLocation records the user's position and reports whether they are at a place
// with payment suggestions. It never fails; degraded lookups yield a not-nearby result.
func (t *Tracker) UpdateLocation(ctx context.Context, userID string, update domain.LocationUpdate) domain.ProximityResult {
	if !proximity.ValidCoordinates(update.Latitude, update.Longitude) {
		t.metrics.RecordLocationUpdate("invalid")
		return domain.NotNearby()
	}

	state := t.upsertState(ctx, userID, update)

	radius := t.opts.TrackingRadiusMeters
	if state.ProximityRadiusMeters > 0 {
		radius = state.ProximityRadiusMeters
	}

	var match *domain.LocationMatch
	for _, m := range t.finder.FindNearby(ctx, update.Latitude, update.Longitude, radius, t.opts.TrackingLimit) {
		if len(m.PaymentSuggestions) > 0 {
			m := m
			match = &m
			break
		}
	}
	if match == nil {
		t.metrics.RecordLocationUpdate("not_nearby")
		return domain.NotNearby()
	}
	t.metrics.RecordLocationUpdate("nearby")

	t.maybeNotify(ctx, userID, match)

	distance := match.Distance
	return domain.ProximityResult{
		IsNearby:           true,
		LocationName:       match.Name,
		Distance:           &distance,
		LocationAddress:    match.Address,
		LocationID:         match.LocationID,
		PaymentSuggestions: match.PaymentSuggestions,
	}
}

func (t *Tracker) upsertState(ctx context.Context, userID string, update domain.LocationUpdate) domain.UserLocationState {
	unlock := t.locks.Lock("user:" + userID)
	defer unlock()

	state := domain.UserLocationState{UserID: userID}
	existing, err := t.sessions.GetUserState(ctx, userID)
	switch {
	case err == nil:
		state = *existing
	case !errors.Is(err, store.ErrSessionNotFound):
		log.Printf("level=warn component=tracker msg=\"user state lookup failed\" user_id=%s err=%v", userID, err)
	}

	state.Latitude = update.Latitude
	state.Longitude = update.Longitude
	state.Accuracy = update.Accuracy
	state.Speed = update.Speed
	state.Heading = update.Heading
	state.Altitude = update.Altitude
	state.LastUpdated = t.now()

	if err := t.sessions.PutUserState(ctx, state); err != nil {
		log.Printf("level=warn component=tracker msg=\"user state write failed\" user_id=%s err=%v", userID, err)
	}
	return state
}

func (t *Tracker) maybeNotify(ctx context.Context, userID string, match *domain.LocationMatch) {
	unlock := t.locks.Lock("notify:" + userID + ":" + match.LocationID)
	defer unlock()

	active, err := t.sessions.HasCooldown(ctx, userID, match.LocationID)
	if err != nil {
		log.Printf("level=warn component=tracker msg=\"cooldown lookup failed; skipping notification\" user_id=%s location_id=%s err=%v", userID, match.LocationID, err)
		t.metrics.RecordNotification(metrics.NotificationSkippedLookupFailed)
		return
	}
	if active {
		t.metrics.RecordNotification(metrics.NotificationSkippedCooldown)
		return
	}

	prefs, err := t.prefs.GetNotificationPreferences(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrPreferencesNotFound) {
			t.metrics.RecordNotification(metrics.NotificationSkippedPreferences)
			return
		}
		log.Printf("level=warn component=tracker msg=\"preference lookup failed; skipping notification\" user_id=%s err=%v", userID, err)
		t.metrics.RecordNotification(metrics.NotificationSkippedLookupFailed)
		return
	}
	if !prefs.AllowsLocationNotifications() {
		t.metrics.RecordNotification(metrics.NotificationSkippedPreferences)
		return
	}

	claimed, err := t.sessions.ClaimCooldown(ctx, userID, match.LocationID, t.opts.Cooldown)
	if err != nil {
		log.Printf("level=warn component=tracker msg=\"cooldown claim failed; skipping notification\" user_id=%s location_id=%s err=%v", userID, match.LocationID, err)
		t.metrics.RecordNotification(metrics.NotificationSkippedLookupFailed)
		return
	}
	if !claimed {
		// Another replica won the claim.
		t.metrics.RecordNotification(metrics.NotificationSkippedCooldown)
		return
	}

	title := fmt.Sprintf(notificationTitleFormat, TruncateLocationName(match.Name, maxTitleNameLength))
	data := map[string]interface{}{
		"type":            NotificationTypeNearby,
		"locationId":      match.LocationID,
		"locationName":    match.Name,
		"distance":        match.Distance,
		"suggestionCount": len(match.PaymentSuggestions),
	}

	if err := t.dispatcher.Send(ctx, userID, title, notificationBody, data); err != nil {
		log.Printf("level=warn component=tracker msg=\"proximity notification dispatch failed\" user_id=%s location_id=%s err=%v", userID, match.LocationID, err)
		if releaseErr := t.sessions.ReleaseCooldown(ctx, userID, match.LocationID); releaseErr != nil {
			log.Printf("level=warn component=tracker msg=\"cooldown release failed\" user_id=%s location_id=%s err=%v", userID, match.LocationID, releaseErr)
		}
		t.metrics.RecordNotification(metrics.NotificationFailed)
		return
	}

	log.Printf("level=info component=tracker msg=\"proximity notification dispatched\" user_id=%s location_id=%s", userID, match.LocationID)
	t.metrics.RecordNotification(metrics.NotificationSent)
}

// Subscribe turns live tracking on or off for a user. Enabling stores the optional
// update frequency and radius on the user's state; disabling removes the state.
func (t *Tracker) Subscribe(ctx context.Context, userID string, req domain.SubscribeRequest) error {
	if !req.Enabled {
		return t.Disconnect(ctx, userID)
	}
	if err := validateSubscription(req); err != nil {
		return err
	}

	unlock := t.locks.Lock("user:" + userID)
	defer unlock()

	state := domain.UserLocationState{UserID: userID}
	existing, err := t.sessions.GetUserState(ctx, userID)
	switch {
	case err == nil:
		state = *existing
	case !errors.Is(err, store.ErrSessionNotFound):
		return fmt.Errorf("load user state: %w", err)
	}

	if req.UpdateFrequencySeconds != nil {
		state.UpdateFrequencySeconds = *req.UpdateFrequencySeconds
	}
	if req.ProximityRadiusMeters != nil {
		state.ProximityRadiusMeters = *req.ProximityRadiusMeters
	}
	state.LastUpdated = t.now()

	if err := t.sessions.PutUserState(ctx, state); err != nil {
		return fmt.Errorf("store user state: %w", err)
	}
	log.Printf("level=info component=tracker msg=\"location tracking subscribed\" user_id=%s update_frequency_seconds=%d proximity_radius_meters=%.0f", userID, state.UpdateFrequencySeconds, state.ProximityRadiusMeters)
	return nil
}

// Disconnect stops tracking a user. It is idempotent.
func (t *Tracker) Disconnect(ctx context.Context, userID string) error {
	unlock := t.locks.Lock("user:" + userID)
	defer unlock()

	if err := t.sessions.DeleteUserState(ctx, userID); err != nil {
		return fmt.Errorf("delete user state: %w", err)
	}
	log.Printf("level=info component=tracker msg=\"location tracking stopped\" user_id=%s", userID)
	return nil
}

func validateSubscription(req domain.SubscribeRequest) error {
	if f := req.UpdateFrequencySeconds; f != nil && (*f < MinUpdateFrequencySeconds || *f > MaxUpdateFrequencySeconds) {
		return fmt.Errorf("%w: update_frequency_seconds must be between %d and %d", ErrInvalidSubscription, MinUpdateFrequencySeconds, MaxUpdateFrequencySeconds)
	}
	if r := req.ProximityRadiusMeters; r != nil && !(*r >= MinProximityRadiusMeters && *r <= MaxProximityRadiusMeters) {
		return fmt.Errorf("%w: proximity_radius_meters must be between %.0f and %.0f", ErrInvalidSubscription, MinProximityRadiusMeters, MaxProximityRadiusMeters)
	}
	return nil
}

// TruncateLocationName shortens name to at most maxLen characters for a notification title,
// cutting at the last word boundary when there is one and appending an ellipsis.
func TruncateLocationName(name string, maxLen int) string {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) <= maxLen {
		return name
	}

	runes := []rune(name)
	// Include the rune right after the limit so a space there counts as a boundary.
	window := string(runes[:maxLen+1])
	if idx := strings.LastIndex(window, " "); idx > 0 {
		return strings.TrimRight(window[:idx], " ") + "..."
	}
	return string(runes[:maxLen]) + "..."
}
