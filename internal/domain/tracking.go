/**
 * @description
 * Ephemeral live-tracking models. None of these are persisted in Postgres; they live in
 * the session store (in-process or Redis) and expire on their own.
 */
package domain

import "time"

// LocationUpdate is a single position report from a client.
type LocationUpdate struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
	Speed     *float64 `json:"speed,omitempty"`
	Heading   *float64 `json:"heading,omitempty"`
	Altitude  *float64 `json:"altitude,omitempty"`
}

// UserLocationState is the last known position of a tracked user.
type UserLocationState struct {
	UserID                 string    `json:"user_id"`
	Latitude               float64   `json:"latitude"`
	Longitude              float64   `json:"longitude"`
	Accuracy               *float64  `json:"accuracy,omitempty"`
	Speed                  *float64  `json:"speed,omitempty"`
	Heading                *float64  `json:"heading,omitempty"`
	Altitude               *float64  `json:"altitude,omitempty"`
	UpdateFrequencySeconds int       `json:"update_frequency_seconds,omitempty"`
	ProximityRadiusMeters  float64   `json:"proximity_radius_meters,omitempty"`
	LastUpdated            time.Time `json:"last_updated"`
}

// SubscribeRequest toggles live tracking for a user.
type SubscribeRequest struct {
	Enabled                bool     `json:"enabled"`
	UpdateFrequencySeconds *int     `json:"update_frequency_seconds,omitempty"`
	ProximityRadiusMeters  *float64 `json:"proximity_radius_meters,omitempty"`
}

// NotificationPreferences mirrors the user settings the tracker consults before notifying.
type NotificationPreferences struct {
	NotificationsEnabled         bool `json:"notifications_enabled"`
	LocationNotificationsEnabled bool `json:"location_notifications_enabled"`
}

// AllowsLocationNotifications reports whether both switches are on.
func (p NotificationPreferences) AllowsLocationNotifications() bool {
	return p.NotificationsEnabled && p.LocationNotificationsEnabled
}
