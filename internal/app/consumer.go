/**
 * @description
 * Consumer for location events streamed by the realtime gateway over the
 * `transfa.events` exchange. Live tracking is best-effort, so every message is
 * acknowledged, including malformed ones; a stale position is never worth a redelivery.
 */
package app

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/transfa/proximity-service/internal/domain"
	"github.com/transfa/proximity-service/pkg/rabbitmq"
)

const (
	RoutingKeyLocationUpdated = "location.updated"
	RoutingKeyTrackingStopped = "location.tracking.stopped"
	DefaultLocationEventQueue = "proximity_service.location_updates"
)

// LocationEventConsumer routes location events into the tracker.
type LocationEventConsumer struct {
	tracker *Tracker
}

func NewLocationEventConsumer(tracker *Tracker) *LocationEventConsumer {
	return &LocationEventConsumer{tracker: tracker}
}

// Bindings returns the routing key handlers to register with the RabbitMQ consumer.
func (c *LocationEventConsumer) Bindings() map[string]rabbitmq.Handler {
	return map[string]rabbitmq.Handler{
		RoutingKeyLocationUpdated: c.HandleLocationUpdated,
		RoutingKeyTrackingStopped: c.HandleTrackingStopped,
	}
}

func (c *LocationEventConsumer) HandleLocationUpdated(ctx context.Context, body []byte) bool {
	var event domain.LocationUpdatedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("level=warn component=location_consumer msg=\"malformed location.updated event; dropping\" err=%v", err)
		return true
	}
	userID := strings.TrimSpace(event.UserID)
	if userID == "" {
		log.Printf("level=warn component=location_consumer msg=\"location.updated event without user_id; dropping\" event_id=%s", event.EventID)
		return true
	}

	result := c.tracker.UpdateLocation(ctx, userID, event.Location)
	if result.IsNearby {
		log.Printf("level=info component=location_consumer msg=\"user near location\" user_id=%s location_id=%s", userID, result.LocationID)
	}
	return true
}

func (c *LocationEventConsumer) HandleTrackingStopped(ctx context.Context, body []byte) bool {
	var event domain.TrackingStoppedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("level=warn component=location_consumer msg=\"malformed location.tracking.stopped event; dropping\" err=%v", err)
		return true
	}
	userID := strings.TrimSpace(event.UserID)
	if userID == "" {
		return true
	}
	if err := c.tracker.Disconnect(ctx, userID); err != nil {
		log.Printf("level=warn component=location_consumer msg=\"disconnect failed\" user_id=%s reason=%s err=%v", userID, event.Reason, err)
	}
	return true
}
