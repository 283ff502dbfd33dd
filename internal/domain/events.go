package domain

import "time"

// LocationUpdatedEvent is consumed from the transfa.events exchange when a client
// streams its position through the realtime gateway.
type LocationUpdatedEvent struct {
	EventID    string         `json:"event_id"`
	UserID     string         `json:"user_id"`
	Location   LocationUpdate `json:"location"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// TrackingStoppedEvent is consumed when a client disconnects or stops sharing location.
type TrackingStoppedEvent struct {
	EventID    string    `json:"event_id"`
	UserID     string    `json:"user_id"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PushNotificationRequestedEvent is published for the notification-service to deliver.
type PushNotificationRequestedEvent struct {
	EventID     string                 `json:"event_id"`
	UserID      string                 `json:"user_id"`
	Title       string                 `json:"title"`
	Body        string                 `json:"body"`
	Data        map[string]interface{} `json:"data,omitempty"`
	RequestedAt time.Time              `json:"requested_at"`
}
