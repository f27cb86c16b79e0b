package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"parkly/internal/availability"
	apperr "parkly/internal/errors"
	"parkly/internal/external"
	"parkly/internal/logger"
	"parkly/internal/metrics"
	"parkly/internal/models"

	"github.com/google/uuid"
)

const (
	jobBatchSize = 100

	reasonHoldExpired     = "hold expired"
	reasonDeclinedByHost  = "declined by host"
	reasonCanceledByUser  = "canceled by renter"
	reasonCanceledByHost  = "canceled by host"
	reasonRefundedByHost  = "refunded by host"
	startGracePeriod      = time.Minute
	maxBookingLengthHours = 24 * 30
)

// BookingService is the booking lifecycle engine
type BookingService struct {
	bookings   BookingStore
	holds      HoldStore
	spots      SpotStore
	extensions ExtensionStore
	payments   *payments
	engine     *availability.Engine
	notifier   Notifier
	publisher  EventPublisher
	opts       Options
	now        func() time.Time
}

func NewBookingService(deps Deps, engine *availability.Engine, opts Options) *BookingService {
	return &BookingService{
		bookings:   deps.Bookings,
		holds:      deps.Holds,
		spots:      deps.Spots,
		extensions: deps.Extensions,
		payments:   &payments{gateway: deps.Gateway},
		engine:     engine,
		notifier:   deps.Notifier,
		publisher:  deps.Publisher,
		opts:       opts,
		now:        time.Now,
	}
}

// Create places a hold on the spot and, when a payment method is given, authorizes the total.
// Instant-book spots are captured right away.
func (s *BookingService) Create(ctx context.Context, caller models.Caller, req *models.CreateBookingRequest) (*models.CreateBookingResponse, error) {
	const op = "bookings.create"
	now := s.now()

	if err := validateCreate(op, caller, req, now); err != nil {
		s.audit(ctx, models.ActionCreate, nil, "", err)
		return nil, err
	}

	spot, err := s.spots.GetByID(ctx, req.SpotID)
	if err != nil {
		return nil, fmt.Errorf("failed to get spot: %w", err)
	}
	if spot == nil {
		return nil, apperr.NotFound(op, "spot not found")
	}
	if caller.IsHostOf(spot) {
		return nil, apperr.Authorization(op, "hosts cannot book their own spot")
	}

	iv := models.Interval{Start: req.StartAt, End: req.EndAt}
	available, err := s.engine.IsAvailable(ctx, spot, iv)
	if err != nil {
		return nil, fmt.Errorf("failed to check availability: %w", err)
	}
	if !available {
		err := apperr.Conflict(op, nil, "the spot is not available for the requested time")
		s.audit(ctx, models.ActionCreate, nil, "", err)
		return nil, err
	}

	booking, guestToken, err := s.newBooking(ctx, caller, req, spot, iv)
	if err != nil {
		return nil, err
	}

	hold := &models.BookingHold{
		ID:        uuid.NewString(),
		BookingID: booking.ID,
		SpotID:    spot.ID,
		OwnerKey:  models.RecipientOf(booking),
		StartAt:   iv.Start,
		EndAt:     iv.End,
		ExpiresAt: s.holdExpiry(now, iv.Start),
		CreatedAt: now,
	}
	if err := s.holds.Acquire(ctx, hold); err != nil {
		s.audit(ctx, models.ActionCreate, booking, "", err)
		if apperr.IsConflict(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to acquire hold: %w", err)
	}

	var auth *external.AuthorizeResult
	if req.PaymentMethodID != "" {
		auth, err = s.payments.authorize(ctx, authKey(booking.ID, req.PaymentMethodID), booking.TotalAmount, booking.Currency, req.PaymentMethodID, booking.ID)
		if err != nil {
			s.releaseHold(ctx, booking.ID)
			s.audit(ctx, models.ActionCreate, booking, "", err)
			return nil, err
		}
		booking.PaymentMethodID = &req.PaymentMethodID
		booking.PaymentIntentID = &auth.IntentID
		booking.Status = models.StatusHeld
	}

	if err := s.bookings.Create(ctx, booking); err != nil {
		if auth != nil {
			s.voidQuietly(ctx, auth.IntentID)
		}
		s.releaseHold(ctx, booking.ID)
		s.audit(ctx, models.ActionCreate, booking, "", err)
		if apperr.IsConflict(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}
	s.audit(ctx, models.ActionCreate, booking, "", nil)

	resp := &models.CreateBookingResponse{Booking: booking, GuestToken: guestToken}
	if auth != nil {
		if auth.RequiresAction() {
			resp.RequiresAction = true
			resp.ClientSecret = auth.ClientSecret
		} else if spot.InstantBook {
			if err := s.captureInstant(ctx, spot, booking); err != nil {
				return nil, err
			}
		}
	}

	s.notifyHostOfRequest(ctx, spot, booking)
	return resp, nil
}

func validateCreate(op string, caller models.Caller, req *models.CreateBookingRequest, now time.Time) error {
	if strings.TrimSpace(req.SpotID) == "" {
		return apperr.Validation(op, "spot_id is required")
	}
	if req.StartAt.IsZero() || req.EndAt.IsZero() {
		return apperr.Validation(op, "start_at and end_at are required")
	}
	if !req.EndAt.After(req.StartAt) {
		return apperr.Validation(op, "end_at must be after start_at")
	}
	if req.StartAt.Before(now.Add(-startGracePeriod)) {
		return apperr.Validation(op, "start_at is in the past")
	}
	if req.EndAt.Sub(req.StartAt) > maxBookingLengthHours*time.Hour {
		return apperr.Validation(op, "bookings are limited to %d days", maxBookingLengthHours/24)
	}
	if caller.ID == "" {
		email := strings.TrimSpace(req.GuestEmail)
		if email == "" {
			return apperr.Validation(op, "guest_email is required when booking as a guest")
		}
		if _, err := mail.ParseAddress(email); err != nil {
			return apperr.Validation(op, "guest_email is not a valid email address")
		}
	}
	return nil
}

func (s *BookingService) newBooking(ctx context.Context, caller models.Caller, req *models.CreateBookingRequest, spot *models.Spot, iv models.Interval) (*models.Booking, string, error) {
	rate, err := s.engine.HourlyRate(ctx, spot, iv.Start)
	if err != nil {
		return nil, "", fmt.Errorf("failed to resolve hourly rate: %w", err)
	}
	quote := s.opts.Fees.Quote(rate, iv, spot.Currency)
	now := s.now()

	booking := &models.Booking{
		ID:           uuid.NewString(),
		SpotID:       spot.ID,
		Status:       models.StatusPending,
		StartAt:      iv.Start,
		EndAt:        iv.End,
		HourlyRate:   quote.HourlyRate,
		Subtotal:     quote.Subtotal,
		ServiceFee:   quote.ServiceFee,
		TotalAmount:  quote.Total,
		HostEarnings: quote.HostEarnings,
		FeeVersion:   quote.FeeVersion,
		Currency:     quote.Currency,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	var guestToken string
	if caller.ID != "" {
		renterID := caller.ID
		booking.RenterID = &renterID
	} else {
		email := strings.TrimSpace(req.GuestEmail)
		guestToken = uuid.NewString()
		hash := models.HashGuestToken(guestToken)
		booking.IsGuest = true
		booking.GuestEmail = &email
		booking.GuestTokenHash = &hash
	}

	return booking, guestToken, nil
}

// Authorize attaches a payment method to a pending booking
func (s *BookingService) Authorize(ctx context.Context, caller models.Caller, id, paymentMethodID string) (*models.CreateBookingResponse, error) {
	const op = "bookings.authorize"

	b, spot, err := s.load(ctx, op, id)
	if err != nil {
		return nil, err
	}
	from := b.Status

	resp, err := s.authorizePending(ctx, op, caller, b, spot, paymentMethodID)
	s.audit(ctx, models.ActionAuthorize, b, from, err)
	if err != nil {
		return nil, err
	}

	if !resp.RequiresAction && spot.InstantBook {
		if err := s.captureInstant(ctx, spot, b); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func (s *BookingService) authorizePending(ctx context.Context, op string, caller models.Caller, b *models.Booking, spot *models.Spot, paymentMethodID string) (*models.CreateBookingResponse, error) {
	if !caller.IsRenterOf(b) {
		return nil, apperr.Authorization(op, "only the renter can pay for this booking")
	}
	to, err := next(op, b, models.ActionAuthorize)
	if err != nil {
		return nil, err
	}

	auth, err := s.payments.authorize(ctx, authKey(b.ID, paymentMethodID), b.TotalAmount, b.Currency, paymentMethodID, b.ID)
	if err != nil {
		return nil, err
	}

	from := b.Status
	b.PaymentMethodID = &paymentMethodID
	b.PaymentIntentID = &auth.IntentID
	b.Status = to
	if err := s.commit(ctx, op, b, from); err != nil {
		s.voidQuietly(ctx, auth.IntentID)
		return nil, err
	}

	resp := &models.CreateBookingResponse{Booking: b}
	if auth.RequiresAction() {
		resp.RequiresAction = true
		resp.ClientSecret = auth.ClientSecret
	}
	return resp, nil
}

// captureInstant confirms an instant-book booking. A failed capture leaves the booking held
// with its hold, and the host is asked to approve it, which retries the capture.
func (s *BookingService) captureInstant(ctx context.Context, spot *models.Spot, b *models.Booking) error {
	const op = "bookings.capture"
	from := b.Status

	to, err := next(op, b, models.ActionCapture)
	if err != nil {
		return err
	}

	res, err := s.payments.capture(ctx, *b.PaymentIntentID)
	if err != nil {
		s.audit(ctx, models.ActionCapture, b, from, err)
		logger.WithContext(ctx).Warn("Instant capture failed; booking left for host approval", "booking_id", b.ID)
		s.notifyHostOfRequest(ctx, spot, b)
		return err
	}

	b.ChargeID = &res.ChargeID
	b.Status = to
	err = s.commit(ctx, op, b, from)
	s.audit(ctx, models.ActionCapture, b, from, err)
	if err != nil {
		return err
	}
	s.releaseHold(ctx, b.ID)
	return nil
}

// Approve captures the authorized payment of a held booking. Only the spot's host may approve.
func (s *BookingService) Approve(ctx context.Context, caller models.Caller, id string) (*models.Booking, error) {
	const op = "bookings.approve"

	b, spot, err := s.load(ctx, op, id)
	if err != nil {
		return nil, err
	}
	from := b.Status

	err = s.approve(ctx, op, caller, b, spot)
	s.audit(ctx, models.ActionApprove, b, from, err)
	if err != nil {
		return nil, err
	}

	notify(ctx, s.notifier, models.RecipientOf(b), "Booking approved",
		fmt.Sprintf("Your booking at %s on %s was approved.", spot.Title, formatStart(b, spot)), b.ID)
	return b, nil
}

func (s *BookingService) approve(ctx context.Context, op string, caller models.Caller, b *models.Booking, spot *models.Spot) error {
	if !caller.IsHostOf(spot) {
		return apperr.Authorization(op, "only the host of this spot can approve bookings")
	}
	to, err := next(op, b, models.ActionApprove)
	if err != nil {
		return err
	}
	if b.PaymentIntentID == nil {
		return apperr.Precondition(op, "booking has no authorized payment")
	}

	res, err := s.payments.capture(ctx, *b.PaymentIntentID)
	if err != nil {
		return err
	}

	from := b.Status
	b.ChargeID = &res.ChargeID
	b.Status = to
	ok, err := s.bookings.UpdateStatus(ctx, b, from)
	if err != nil {
		b.Status = from
		return fmt.Errorf("failed to update booking: %w", err)
	}
	if !ok {
		current, gerr := s.bookings.GetByID(ctx, b.ID)
		if gerr == nil && current != nil && current.Status == to && current.ChargeID != nil && *current.ChargeID == res.ChargeID {
			*b = *current
			return nil
		}
		logger.WithContext(ctx).Error("Payment captured but booking changed status; needs support follow-up",
			"booking_id", b.ID,
			"charge_id", res.ChargeID)
		b.Status = from
		return apperr.Precondition(op, "booking status changed while it was being approved")
	}

	s.releaseHold(ctx, b.ID)
	return nil
}

// Decline rejects a pending or held booking and voids its authorization; nothing is captured.
func (s *BookingService) Decline(ctx context.Context, caller models.Caller, id, reason string) (*models.Booking, error) {
	const op = "bookings.decline"

	b, spot, err := s.load(ctx, op, id)
	if err != nil {
		return nil, err
	}
	from := b.Status

	err = s.decline(ctx, op, caller, b, spot, reason)
	s.audit(ctx, models.ActionDecline, b, from, err)
	if err != nil {
		return nil, err
	}

	notify(ctx, s.notifier, models.RecipientOf(b), "Booking declined",
		fmt.Sprintf("Your booking at %s was declined: %s. Your card was not charged.", spot.Title, *b.CancellationReason), b.ID)
	return b, nil
}

func (s *BookingService) decline(ctx context.Context, op string, caller models.Caller, b *models.Booking, spot *models.Spot, reason string) error {
	if !caller.IsHostOf(spot) {
		return apperr.Authorization(op, "only the host of this spot can decline bookings")
	}
	to, err := next(op, b, models.ActionDecline)
	if err != nil {
		return err
	}

	if b.PaymentIntentID != nil {
		if err := s.payments.void(ctx, *b.PaymentIntentID); err != nil {
			return err
		}
	}

	if strings.TrimSpace(reason) == "" {
		reason = reasonDeclinedByHost
	}
	from := b.Status
	b.Status = to
	b.CancellationReason = &reason
	if err := s.commit(ctx, op, b, from); err != nil {
		return err
	}

	s.releaseHold(ctx, b.ID)
	return nil
}

// Cancel terminates a booking before it starts. Captured charges are refunded in full,
// authorizations are voided. The renter, its guest token holder or the host may cancel.
func (s *BookingService) Cancel(ctx context.Context, caller models.Caller, id, reason string) (*models.Booking, error) {
	const op = "bookings.cancel"

	b, spot, err := s.load(ctx, op, id)
	if err != nil {
		return nil, err
	}

	byHost := caller.IsHostOf(spot)
	if !byHost && !caller.IsRenterOf(b) {
		err := apperr.Authorization(op, "only the renter or the host can cancel this booking")
		s.audit(ctx, models.ActionCancel, b, b.Status, err)
		return nil, err
	}

	if strings.TrimSpace(reason) == "" {
		reason = reasonCanceledByUser
		if byHost {
			reason = reasonCanceledByHost
		}
	}

	if err := s.cancel(ctx, op, b, reason); err != nil {
		return nil, err
	}

	if byHost {
		notify(ctx, s.notifier, models.RecipientOf(b), "Booking canceled by host", cancellationMessage(b, spot), b.ID)
	} else {
		notify(ctx, s.notifier, spot.HostID, "Booking canceled",
			fmt.Sprintf("A booking at %s on %s was canceled by the renter.", spot.Title, formatStart(b, spot)), b.ID)
	}
	return b, nil
}

// cancel runs the cancel transition without an ownership check; callers authorize first
func (s *BookingService) cancel(ctx context.Context, op string, b *models.Booking, reason string) (err error) {
	from := b.Status
	defer func() { s.audit(ctx, models.ActionCancel, b, from, err) }()

	to, err := next(op, b, models.ActionCancel)
	if err != nil {
		return err
	}
	if !s.now().Before(b.StartAt) {
		return apperr.Precondition(op, "booking has already started and can no longer be canceled")
	}

	refunded, err := s.settle(ctx, b, reason)
	if err != nil {
		return err
	}

	b.Status = to
	b.CancellationReason = &reason
	b.RefundedAmount += refunded
	if err := s.commit(ctx, op, b, from); err != nil {
		return err
	}

	s.releaseHold(ctx, b.ID)
	return nil
}

// Refund returns every captured charge of a booking that already started or completed
func (s *BookingService) Refund(ctx context.Context, caller models.Caller, id, reason string) (*models.Booking, error) {
	const op = "bookings.refund"

	b, spot, err := s.load(ctx, op, id)
	if err != nil {
		return nil, err
	}
	from := b.Status

	err = s.refund(ctx, op, caller, b, spot, reason)
	s.audit(ctx, models.ActionRefund, b, from, err)
	if err != nil {
		return nil, err
	}

	notify(ctx, s.notifier, models.RecipientOf(b), "Booking refunded",
		fmt.Sprintf("Your booking at %s was refunded (%s).", spot.Title, formatAmount(b.RefundedAmount, b.Currency)), b.ID)
	return b, nil
}

func (s *BookingService) refund(ctx context.Context, op string, caller models.Caller, b *models.Booking, spot *models.Spot, reason string) error {
	if !caller.IsHostOf(spot) {
		return apperr.Authorization(op, "only the host of this spot can refund bookings")
	}
	b.Status = b.EffectiveStatus(s.now())
	to, err := next(op, b, models.ActionRefund)
	if err != nil {
		return err
	}
	if s.now().Before(b.StartAt) {
		return apperr.Precondition(op, "booking has not started yet; cancel it instead")
	}
	if b.ChargeID == nil {
		return apperr.Precondition(op, "booking has no captured payment")
	}

	if strings.TrimSpace(reason) == "" {
		reason = reasonRefundedByHost
	}
	refunded, err := s.settle(ctx, b, reason)
	if err != nil {
		return err
	}

	from := b.Status
	b.Status = to
	b.CancellationReason = &reason
	b.RefundedAmount += refunded
	return s.commitAny(ctx, op, b, from, models.SourcesFor(models.ActionRefund))
}

// settle refunds every captured charge, or voids an authorization that was never captured
func (s *BookingService) settle(ctx context.Context, b *models.Booking, reason string) (int64, error) {
	if b.ChargeID != nil {
		refunded, err := s.payments.refund(ctx, *b.ChargeID, b.TotalAmount, reason)
		if err != nil {
			return 0, err
		}
		for _, ext := range b.ExtensionCharges {
			amount, err := s.payments.refund(ctx, ext.ChargeID, ext.Amount, reason)
			if err != nil {
				return 0, err
			}
			refunded += amount
		}
		return refunded, nil
	}

	if b.PaymentIntentID != nil {
		return 0, s.payments.void(ctx, *b.PaymentIntentID)
	}
	return 0, nil
}

// Get returns a booking visible to its renter, guest token holder or host
func (s *BookingService) Get(ctx context.Context, caller models.Caller, id string) (*models.Booking, error) {
	const op = "bookings.get"

	b, spot, err := s.load(ctx, op, id)
	if err != nil {
		return nil, err
	}
	if !caller.IsRenterOf(b) && !caller.IsHostOf(spot) {
		return nil, apperr.Authorization(op, "you do not have access to this booking")
	}

	b.Status = b.EffectiveStatus(s.now())
	return b, nil
}

// List returns the caller's bookings as renter, or the bookings on its spots as host
func (s *BookingService) List(ctx context.Context, caller models.Caller, asHost bool) ([]models.Booking, error) {
	const op = "bookings.list"
	if caller.ID == "" {
		return nil, apperr.Authorization(op, "sign in to list bookings")
	}

	var (
		bookings []models.Booking
		err      error
	)
	if asHost {
		bookings, err = s.bookings.ListByHost(ctx, caller.ID)
	} else {
		bookings, err = s.bookings.ListByRenter(ctx, caller.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}

	now := s.now()
	for i := range bookings {
		bookings[i].Status = bookings[i].EffectiveStatus(now)
	}
	return bookings, nil
}

// Quote previews the price of an interval on a spot
func (s *BookingService) Quote(ctx context.Context, spotID string, iv models.Interval) (*models.Quote, error) {
	const op = "bookings.quote"
	if !iv.Valid() {
		return nil, apperr.Validation(op, "end_at must be after start_at")
	}

	spot, err := s.spots.GetByID(ctx, spotID)
	if err != nil {
		return nil, fmt.Errorf("failed to get spot: %w", err)
	}
	if spot == nil {
		return nil, apperr.NotFound(op, "spot not found")
	}

	rate, err := s.engine.HourlyRate(ctx, spot, iv.Start)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve hourly rate: %w", err)
	}

	quote := s.opts.Fees.Quote(rate, iv, spot.Currency)
	return &quote, nil
}

// ExpireHolds cancels pending and held bookings whose hold ran out
func (s *BookingService) ExpireHolds(ctx context.Context) (int, error) {
	holds, err := s.holds.ListExpired(ctx, s.now(), jobBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired holds: %w", err)
	}

	expired := 0
	for _, h := range holds {
		ok, err := s.expire(ctx, h.BookingID)
		if err != nil {
			logger.WithContext(ctx).Error("Failed to expire booking", "booking_id", h.BookingID, "error", err)
			continue
		}
		if ok {
			expired++
		}
	}
	return expired, nil
}

func (s *BookingService) expire(ctx context.Context, id string) (bool, error) {
	const op = "bookings.expire"

	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to get booking: %w", err)
	}
	if b == nil {
		s.releaseHold(ctx, id)
		return false, nil
	}

	to, ok := b.Status.Transition(models.ActionExpire)
	if !ok {
		s.releaseHold(ctx, id)
		return false, nil
	}

	from := b.Status
	if b.PaymentIntentID != nil && b.ChargeID == nil {
		if err := s.payments.void(ctx, *b.PaymentIntentID); err != nil {
			s.audit(ctx, models.ActionExpire, b, from, err)
			return false, err
		}
	}

	reason := reasonHoldExpired
	b.Status = to
	b.CancellationReason = &reason
	err = s.commit(ctx, op, b, from)
	s.audit(ctx, models.ActionExpire, b, from, err)
	if err != nil {
		return false, err
	}
	s.releaseHold(ctx, id)

	notify(ctx, s.notifier, models.RecipientOf(b), "Booking expired",
		"Your booking request expired before it was confirmed. Your card was not charged.", b.ID)
	return true, nil
}

// CompleteElapsed marks confirmed bookings whose interval has passed as completed
func (s *BookingService) CompleteElapsed(ctx context.Context) (int, error) {
	const op = "bookings.complete"

	due, err := s.bookings.ListElapsed(ctx, s.now(), models.SourcesFor(models.ActionComplete), jobBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list elapsed bookings: %w", err)
	}

	completed := 0
	for i := range due {
		b := &due[i]
		from := b.Status
		to, err := next(op, b, models.ActionComplete)
		if err == nil {
			b.Status = to
			err = s.commit(ctx, op, b, from)
		}
		s.audit(ctx, models.ActionComplete, b, from, err)
		if err == nil {
			completed++
		}
	}
	return completed, nil
}

func (s *BookingService) load(ctx context.Context, op, id string) (*models.Booking, *models.Spot, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get booking: %w", err)
	}
	if b == nil {
		return nil, nil, apperr.NotFound(op, "booking not found")
	}

	spot, err := s.spots.GetByID(ctx, b.SpotID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get spot: %w", err)
	}
	if spot == nil {
		return nil, nil, apperr.NotFound(op, "spot not found")
	}
	return b, spot, nil
}

// next resolves the target status of action or reports a precondition failure
func next(op string, b *models.Booking, action models.Action) (models.BookingStatus, error) {
	to, ok := b.Status.Transition(action)
	if !ok {
		return "", apperr.Precondition(op, "cannot %s a booking that is %s", action, b.Status)
	}
	return to, nil
}

// commit persists b if its stored status is still from
func (s *BookingService) commit(ctx context.Context, op string, b *models.Booking, from models.BookingStatus) error {
	return s.commitAny(ctx, op, b, from, nil)
}

// commitAny persists b if its stored status is from, or any of alternatives when the
// in-memory status was derived
func (s *BookingService) commitAny(ctx context.Context, op string, b *models.Booking, from models.BookingStatus, alternatives []models.BookingStatus) error {
	candidates := []models.BookingStatus{from}
	for _, alt := range alternatives {
		if alt != from {
			candidates = append(candidates, alt)
		}
	}

	for _, candidate := range candidates {
		ok, err := s.bookings.UpdateStatus(ctx, b, candidate)
		if err != nil {
			b.Status = from
			return fmt.Errorf("failed to update booking: %w", err)
		}
		if ok {
			b.UpdatedAt = s.now()
			return nil
		}
	}

	b.Status = from
	return apperr.Precondition(op, "booking status changed concurrently; reload and try again")
}

func (s *BookingService) holdExpiry(now, start time.Time) time.Time {
	expiry := now.Add(s.opts.HoldTTL)
	if s.opts.HoldTTL <= 0 || start.Before(expiry) {
		return start
	}
	return expiry
}

func (s *BookingService) releaseHold(ctx context.Context, bookingID string) {
	if err := s.holds.ReleaseByBooking(ctx, bookingID); err != nil {
		logger.WithContext(ctx).Warn("Failed to release booking hold", "booking_id", bookingID, "error", err)
	}
}

func (s *BookingService) voidQuietly(ctx context.Context, intentID string) {
	if err := s.payments.void(ctx, intentID); err != nil {
		logger.WithContext(ctx).Error("Failed to void authorization; needs support follow-up", "intent_id", intentID, "error", err)
	}
}

func (s *BookingService) notifyHostOfRequest(ctx context.Context, spot *models.Spot, b *models.Booking) {
	switch b.Status {
	case models.StatusPaid:
		notify(ctx, s.notifier, spot.HostID, "New booking",
			fmt.Sprintf("%s was booked for %s.", spot.Title, formatStart(b, spot)), b.ID)
	case models.StatusHeld:
		notify(ctx, s.notifier, spot.HostID, "New booking request",
			fmt.Sprintf("%s was requested for %s. Approve or decline it.", spot.Title, formatStart(b, spot)), b.ID)
	}
}

// audit logs every attempted transition with its outcome and publishes committed ones
func (s *BookingService) audit(ctx context.Context, action models.Action, b *models.Booking, from models.BookingStatus, err error) {
	log := logger.WithContext(ctx).With("action", string(action))
	if b != nil {
		log = log.With("booking_id", b.ID, "spot_id", b.SpotID, "from", string(from))
	}

	if err != nil {
		outcome := metrics.OutcomeFailed
		switch apperr.KindOf(err) {
		case apperr.KindValidation, apperr.KindAuthorization, apperr.KindConflict, apperr.KindPrecondition, apperr.KindNotFound:
			outcome = metrics.OutcomeRejected
		}
		metrics.Transitions.WithLabelValues(string(action), outcome).Inc()
		log.Warn("Booking transition failed", "outcome", outcome, "error", err)
		return
	}

	metrics.Transitions.WithLabelValues(string(action), metrics.OutcomeOK).Inc()
	log.Info("Booking transition", "to", string(b.Status), "outcome", metrics.OutcomeOK)

	if s.publisher == nil {
		return
	}
	event := models.BookingTransitionEvent{
		BookingID: b.ID,
		SpotID:    b.SpotID,
		Action:    action,
		From:      from,
		To:        b.Status,
		Timestamp: s.now(),
	}
	if b.CancellationReason != nil {
		event.Reason = *b.CancellationReason
	}
	if err := s.publisher.Publish(models.SubjectBookingTransition, event); err != nil {
		logger.WithContext(ctx).Error("Failed to publish booking transition event",
			"error", err,
			"booking_id", b.ID,
			"event_type", models.SubjectBookingTransition)
	}
}

func authKey(bookingID, paymentMethodID string) string {
	return "auth-" + bookingID + "-" + paymentMethodID
}

func formatStart(b *models.Booking, spot *models.Spot) string {
	return b.StartAt.In(spot.Location()).Format("Mon Jan 2 15:04")
}

func formatAmount(amount int64, currency string) string {
	return fmt.Sprintf("%d.%02d %s", amount/100, amount%100, strings.ToUpper(currency))
}

func cancellationMessage(b *models.Booking, spot *models.Spot) string {
	msg := fmt.Sprintf("Your booking at %s on %s was canceled: %s.", spot.Title, formatStart(b, spot), *b.CancellationReason)
	if b.RefundedAmount > 0 {
		msg += fmt.Sprintf(" %s will be refunded to your card.", formatAmount(b.RefundedAmount, b.Currency))
	}
	return msg
}
