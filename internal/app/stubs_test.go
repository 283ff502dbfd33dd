package app

import (
	"context"
	"sync"
	"time"

	"github.com/transfa/proximity-service/internal/domain"
	"github.com/transfa/proximity-service/internal/store"
)

type finderStub struct {
	mu      sync.Mutex
	matches []domain.LocationMatch
	radii   []float64
	limits  []int
}

func (f *finderStub) FindNearby(ctx context.Context, lat, lon float64, radiusMeters float64, limit int) []domain.LocationMatch {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.radii = append(f.radii, radiusMeters)
	f.limits = append(f.limits, limit)
	return f.matches
}

type prefsStub struct {
	prefs *domain.NotificationPreferences
	err   error
}

func (p *prefsStub) GetNotificationPreferences(ctx context.Context, userID string) (*domain.NotificationPreferences, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.prefs, nil
}

type sentNotification struct {
	userID string
	title  string
	body   string
	data   map[string]interface{}
}

type dispatcherStub struct {
	mu    sync.Mutex
	sent  []sentNotification
	err   error
	delay time.Duration
}

func (d *dispatcherStub) Send(ctx context.Context, userID, title, body string, data map[string]interface{}) error {
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.sent = append(d.sent, sentNotification{userID: userID, title: title, body: body, data: data})
	return nil
}

func (d *dispatcherStub) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sent)
}

// sessionStoreStub wraps the in-memory store and lets tests inject failures.
type sessionStoreStub struct {
	store.SessionStore
	hasCooldownErr error
	putErr         error
}

func (s *sessionStoreStub) HasCooldown(ctx context.Context, userID, locationID string) (bool, error) {
	if s.hasCooldownErr != nil {
		return false, s.hasCooldownErr
	}
	return s.SessionStore.HasCooldown(ctx, userID, locationID)
}

func (s *sessionStoreStub) PutUserState(ctx context.Context, state domain.UserLocationState) error {
	if s.putErr != nil {
		return s.putErr
	}
	return s.SessionStore.PutUserState(ctx, state)
}

type publisherStub struct {
	mu         sync.Mutex
	exchange   string
	routingKey string
	body       interface{}
	err        error
}

func (p *publisherStub) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exchange = exchange
	p.routingKey = routingKey
	p.body = body
	return p.err
}

func (p *publisherStub) Close() {}

var kingsStoreMatch = domain.LocationMatch{
	LocationID: "loc-kings",
	Name:       "Kings Store",
	Address:    "12 Allen Avenue, Ikeja",
	Latitude:   6.5244,
	Longitude:  3.3792,
	Distance:   1.6,
	Confidence: 0.85,
	PaymentSuggestions: []domain.PaymentSuggestion{
		{AccountNumber: "0123456789", BankName: "GTBank", AccountName: "Kings Store Ltd", Frequency: 3},
	},
}

func allowAll() *prefsStub {
	return &prefsStub{prefs: &domain.NotificationPreferences{NotificationsEnabled: true, LocationNotificationsEnabled: true}}
}

func lagos() domain.LocationUpdate {
	return domain.LocationUpdate{Latitude: 6.5244, Longitude: 3.3792}
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }
