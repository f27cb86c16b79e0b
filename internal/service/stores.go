package service

import (
	"context"
	"time"

	"parkly/internal/availability"
	"parkly/internal/external"
	"parkly/internal/models"
)

// PaymentGateway is the third-party processor
type PaymentGateway interface {
	Authorize(ctx context.Context, idempotencyKey string, amount int64, currency, paymentMethodID, orderID string) (*external.AuthorizeResult, error)
	Capture(ctx context.Context, idempotencyKey, intentID string) (*external.CaptureResult, error)
	Void(ctx context.Context, idempotencyKey, intentID string) error
	Refund(ctx context.Context, idempotencyKey, chargeID string, amount int64, reason string) (*external.RefundResult, error)
}

// BookingStore persists bookings. Create and AppendExtension report a lost race as a conflict error.
type BookingStore interface {
	Create(ctx context.Context, b *models.Booking) error
	GetByID(ctx context.Context, id string) (*models.Booking, error)
	ListByRenter(ctx context.Context, renterID string) ([]models.Booking, error)
	ListByHost(ctx context.Context, hostID string) ([]models.Booking, error)
	// UpdateStatus writes status and payment fields only if the stored status is still from
	UpdateStatus(ctx context.Context, b *models.Booking, from models.BookingStatus) (bool, error)
	// AppendExtension records ext and moves end_at to newEnd only if end_at is still previousEnd
	AppendExtension(ctx context.Context, ext *models.ExtensionCharge, previousEnd, newEnd time.Time, hostEarnings int64, statuses []models.BookingStatus) (bool, error)
	ListElapsed(ctx context.Context, now time.Time, statuses []models.BookingStatus, limit int) ([]models.Booking, error)
}

// HoldStore keeps the short-lived exclusivity markers
type HoldStore interface {
	Acquire(ctx context.Context, hold *models.BookingHold) error
	ReleaseByBooking(ctx context.Context, bookingID string) error
	ListExpired(ctx context.Context, now time.Time, limit int) ([]models.BookingHold, error)
}

type SpotStore interface {
	GetByID(ctx context.Context, id string) (*models.Spot, error)
}

// CalendarStore is the read/write side of rules and overrides
type CalendarStore interface {
	availability.Store
	ListRules(ctx context.Context, spotID string) ([]models.AvailabilityRule, error)
	ReplaceRules(ctx context.Context, spotID string, rules []models.AvailabilityRule) error
	ListOverrides(ctx context.Context, spotID string) ([]models.CalendarOverride, error)
	// ReplaceOverride deletes the override of the same spot and date, then inserts o
	ReplaceOverride(ctx context.Context, o *models.CalendarOverride) error
	DeleteOverride(ctx context.Context, spotID, date string) (bool, error)
}

// ExtensionStore holds extensions awaiting customer confirmation
type ExtensionStore interface {
	Save(ctx context.Context, p *models.PendingExtension) error
	Get(ctx context.Context, token string) (*models.PendingExtension, error)
	Delete(ctx context.Context, token string) error
	// ListExpired returns entries past their confirmation window that were not deleted
	ListExpired(ctx context.Context, now time.Time, limit int) ([]models.PendingExtension, error)
}

// NotificationStore is the in-app inbox
type NotificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUser(ctx context.Context, userID string, limit int) ([]models.Notification, error)
}

// Notifier delivers booking messages; delivery is fire-and-forget
type Notifier interface {
	Notify(ctx context.Context, event models.NotificationEvent) error
}

// EventPublisher publishes domain events
type EventPublisher interface {
	Publish(subject string, data interface{}) error
}
