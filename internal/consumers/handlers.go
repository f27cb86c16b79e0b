package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"parkly/internal/models"

	"github.com/google/uuid"
	"github.com/nats-io/stan.go"
)

// NotificationWriter stores inbox rows
type NotificationWriter interface {
	Create(ctx context.Context, n *models.Notification) error
}

type Handlers struct {
	notifications NotificationWriter
	newID         func() string
	timeout       time.Duration
}

func NewHandlers(notifications NotificationWriter) *Handlers {
	return &Handlers{
		notifications: notifications,
		newID:         func() string { return uuid.New().String() },
		timeout:       10 * time.Second,
	}
}

// HandleNotification writes a notification request to the recipient's inbox.
// Messages are acked only once stored so a failed write is redelivered.
func (h *Handlers) HandleNotification(m *stan.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if err := h.storeNotification(ctx, m.Data); err != nil {
		slog.Error("Failed to process notification", "error", err, "sequence", m.Sequence)
		if isPoison(err) {
			ack(m)
		}
		return
	}
	ack(m)
}

// HandleTransition records the audit trail of booking status changes
func (h *Handlers) HandleTransition(m *stan.Msg) {
	if err := logTransition(m.Data); err != nil {
		slog.Error("Failed to process booking transition", "error", err, "sequence", m.Sequence)
	}
	ack(m)
}

type poisonError struct{ err error }

func (e poisonError) Error() string { return e.err.Error() }
func (e poisonError) Unwrap() error { return e.err }

// isPoison reports errors that a redelivery cannot fix
func isPoison(err error) bool {
	var p poisonError
	return errors.As(err, &p)
}

func (h *Handlers) storeNotification(ctx context.Context, data []byte) error {
	var event models.NotificationEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return poisonError{fmt.Errorf("failed to unmarshal notification event: %w", err)}
	}
	if event.UserID == "" {
		return poisonError{errors.New("notification event has no recipient")}
	}

	createdAt := event.Timestamp
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	notification := &models.Notification{
		ID:        h.newID(),
		UserID:    event.UserID,
		Title:     event.Title,
		Message:   event.Message,
		CreatedAt: createdAt,
	}
	if event.BookingID != "" {
		bookingID := event.BookingID
		notification.BookingID = &bookingID
	}

	if err := h.notifications.Create(ctx, notification); err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}

	slog.Debug("Stored notification", "user_id", event.UserID, "booking_id", event.BookingID)
	return nil
}

func logTransition(data []byte) error {
	var event models.BookingTransitionEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return fmt.Errorf("failed to unmarshal booking transition event: %w", err)
	}

	slog.Info("Booking transition",
		"booking_id", event.BookingID,
		"spot_id", event.SpotID,
		"action", event.Action,
		"from", event.From,
		"to", event.To,
		"reason", event.Reason,
		"at", event.Timestamp)
	return nil
}

func ack(m *stan.Msg) {
	if err := m.Ack(); err != nil {
		slog.Error("Failed to ack message", "error", err, "subject", m.Subject, "sequence", m.Sequence)
	}
}
