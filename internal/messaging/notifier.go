package messaging

import (
	"context"
	"time"

	"parkly/internal/models"
)

// Publisher is the transport side of NATSClient
type Publisher interface {
	Publish(subject string, data interface{}) error
}

// Notifier hands notification requests to the consumer process over NATS
type Notifier struct {
	publisher Publisher
	now       func() time.Time
}

func NewNotifier(publisher Publisher) *Notifier {
	return &Notifier{publisher: publisher, now: time.Now}
}

func (n *Notifier) Notify(_ context.Context, event models.NotificationEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = n.now()
	}
	return n.publisher.Publish(models.SubjectBookingNotification, event)
}
