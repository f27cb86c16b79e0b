package service

import (
	"context"
	"time"

	"parkly/internal/availability"
	"parkly/internal/logger"
	"parkly/internal/metrics"
	"parkly/internal/models"
)

// Options tune the lifecycle engine
type Options struct {
	Fees    FeePolicy
	HoldTTL time.Duration
	// RefundExtensionOnCommitFailure refunds an extension charge that was captured
	// but could not be recorded. When false the charge is left for support.
	RefundExtensionOnCommitFailure bool
}

// Deps are the collaborators of the services
type Deps struct {
	Bookings      BookingStore
	Holds         HoldStore
	Spots         SpotStore
	Calendar      CalendarStore
	Extensions    ExtensionStore
	Notifications NotificationStore
	Gateway       PaymentGateway
	Notifier      Notifier
	Publisher     EventPublisher
}

type Services struct {
	Bookings      *BookingService
	Availability  *AvailabilityService
	Blocks        *BlockService
	Notifications *NotificationService
}

func NewServices(deps Deps, opts Options) *Services {
	engine := availability.NewEngine(deps.Calendar)
	bookingService := NewBookingService(deps, engine, opts)

	return &Services{
		Bookings:      bookingService,
		Availability:  NewAvailabilityService(deps.Spots, deps.Calendar, engine),
		Blocks:        NewBlockService(bookingService, deps.Calendar),
		Notifications: NewNotificationService(deps.Notifications),
	}
}

// notify delivers a message; failures are logged and never fail the caller
func notify(ctx context.Context, notifier Notifier, userID, title, message, bookingID string) {
	if notifier == nil || userID == "" {
		return
	}

	event := models.NotificationEvent{
		UserID:    userID,
		Title:     title,
		Message:   message,
		BookingID: bookingID,
		Timestamp: time.Now(),
	}

	if err := notifier.Notify(ctx, event); err != nil {
		metrics.NotificationsFailed.Inc()
		logger.WithContext(ctx).Warn("Failed to deliver notification",
			"error", err,
			"user_id", userID,
			"booking_id", bookingID)
	}
}
