package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/transfa/proximity-service/internal/domain"
	"github.com/transfa/proximity-service/pkg/rabbitmq"
)

const (
	EventsExchange                    = "transfa.events"
	RoutingKeyPushNotificationRequest = "notification.push.requested"
)

// EventDispatcher delivers notifications by publishing a push request event that the
// notification-service turns into a device push.
type EventDispatcher struct {
	publisher rabbitmq.Publisher
	exchange  string
	now       func() time.Time
}

func NewEventDispatcher(publisher rabbitmq.Publisher, exchange string) *EventDispatcher {
	if exchange == "" {
		exchange = EventsExchange
	}
	return &EventDispatcher{
		publisher: publisher,
		exchange:  exchange,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (d *EventDispatcher) Send(ctx context.Context, userID, title, body string, data map[string]interface{}) error {
	event := domain.PushNotificationRequestedEvent{
		EventID:     uuid.NewString(),
		UserID:      userID,
		Title:       title,
		Body:        body,
		Data:        data,
		RequestedAt: d.now(),
	}
	return d.publisher.Publish(ctx, d.exchange, RoutingKeyPushNotificationRequest, event)
}
