// Package metrics provides custom Prometheus metrics for the proximity-service.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Notification outcomes recorded by RecordNotification.
const (
	NotificationSent                = "sent"
	NotificationFailed              = "failed"
	NotificationSkippedCooldown     = "skipped_cooldown"
	NotificationSkippedPreferences  = "skipped_preferences"
	NotificationSkippedLookupFailed = "skipped_lookup_failed"
)

// ProximityMetrics contains the Prometheus metrics for matching, tracking and dispatch.
// All Record methods are safe to call on a nil receiver.
type ProximityMetrics struct {
	LocationUpdatesTotal *prometheus.CounterVec   // Updates by result: nearby, not_nearby, invalid
	QueriesTotal         *prometheus.CounterVec   // Matcher queries by kind and result
	QueryDuration        *prometheus.HistogramVec // Matcher latency by kind
	NotificationsTotal   *prometheus.CounterVec   // Dispatch decisions by outcome
	TrackedUsers         prometheus.Gauge         // Users with live state after the last sweep
	IdleEvictionsTotal   prometheus.Counter       // Users evicted by the idle sweep

	registry *prometheus.Registry
}

// NewProximityMetrics creates and registers the proximity metrics on registry.
func NewProximityMetrics(registry *prometheus.Registry) (*ProximityMetrics, error) {
	m := &ProximityMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register proximity metrics: %w", err)
	}
	return m, nil
}

func (m *ProximityMetrics) initMetrics() {
	m.LocationUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proximity_location_updates_total",
			Help: "Total number of live location updates processed, by result",
		},
		[]string{"result"},
	)

	m.QueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proximity_queries_total",
			Help: "Total number of exact and nearby match queries, by query kind and result",
		},
		[]string{"query", "result"}, // result: hit, miss
	)

	m.QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "proximity_query_duration_seconds",
			Help:    "Time taken to answer a match query, by query kind",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		},
		[]string{"query"},
	)

	m.NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proximity_notifications_total",
			Help: "Total number of proximity notification decisions, by outcome",
		},
		[]string{"outcome"},
	)

	m.TrackedUsers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "proximity_tracked_users",
			Help: "Number of users with live tracking state",
		},
	)

	m.IdleEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "proximity_idle_evictions_total",
			Help: "Total number of user tracking states evicted for inactivity",
		},
	)
}

// RecordLocationUpdate counts one processed location update.
func (m *ProximityMetrics) RecordLocationUpdate(result string) {
	if m == nil {
		return
	}
	m.LocationUpdatesTotal.WithLabelValues(result).Inc()
}

// RecordQuery counts a matcher query and observes its latency.
func (m *ProximityMetrics) RecordQuery(query string, hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.QueriesTotal.WithLabelValues(query, result).Inc()
	m.QueryDuration.WithLabelValues(query).Observe(duration.Seconds())
}

// RecordNotification counts a dispatch decision.
func (m *ProximityMetrics) RecordNotification(outcome string) {
	if m == nil {
		return
	}
	m.NotificationsTotal.WithLabelValues(outcome).Inc()
}

// RecordSweep records the result of one idle sweep.
func (m *ProximityMetrics) RecordSweep(evicted, remaining int) {
	if m == nil {
		return
	}
	m.IdleEvictionsTotal.Add(float64(evicted))
	m.TrackedUsers.Set(float64(remaining))
}

// Collect implements the prometheus.Collector interface.
func (m *ProximityMetrics) Collect(ch chan<- prometheus.Metric) {
	m.LocationUpdatesTotal.Collect(ch)
	m.QueriesTotal.Collect(ch)
	m.QueryDuration.Collect(ch)
	m.NotificationsTotal.Collect(ch)
	m.TrackedUsers.Collect(ch)
	m.IdleEvictionsTotal.Collect(ch)
}

// Describe implements the prometheus.Collector interface.
func (m *ProximityMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.LocationUpdatesTotal.Describe(ch)
	m.QueriesTotal.Describe(ch)
	m.QueryDuration.Describe(ch)
	m.NotificationsTotal.Describe(ch)
	m.TrackedUsers.Describe(ch)
	m.IdleEvictionsTotal.Describe(ch)
}
