package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	apperr "parkly/internal/errors"
	"parkly/internal/logger"
	"parkly/internal/models"

	"github.com/google/uuid"
)

const (
	minExtensionMinutes = 15
	maxExtensionMinutes = 1440
)

// Extend adds time to a confirmed booking. The first call authorizes a new charge; when the
// gateway asks for customer confirmation the response carries a pending token and the booking
// is untouched until a second call with Finalize set commits it.
func (s *BookingService) Extend(ctx context.Context, caller models.Caller, id string, req *models.ExtendBookingRequest) (*models.ExtensionResponse, error) {
	if req.Finalize.Bool() {
		return s.FinalizeExtension(ctx, caller, id, req.PendingToken)
	}

	const op = "bookings.extend"
	if req.ExtensionMinutes < minExtensionMinutes || req.ExtensionMinutes > maxExtensionMinutes {
		err := apperr.Validation(op, "extensions must add between %d and %d minutes", minExtensionMinutes, maxExtensionMinutes)
		s.audit(ctx, models.ActionExtend, nil, "", err)
		return nil, err
	}

	b, spot, err := s.load(ctx, op, id)
	if err != nil {
		return nil, err
	}
	from := b.Status

	resp, err := s.initiateExtension(ctx, op, caller, b, spot, req)
	if err != nil {
		s.audit(ctx, models.ActionExtend, b, from, err)
		return nil, err
	}

	if resp.Status == models.ExtensionRequiresAction {
		logger.WithContext(ctx).Info("Extension awaiting customer confirmation",
			"booking_id", b.ID,
			"minutes", req.ExtensionMinutes,
			"amount", resp.Amount)
		return resp, nil
	}

	s.audit(ctx, models.ActionExtend, b, from, nil)
	s.notifyHostOfExtension(ctx, spot, b, req.ExtensionMinutes)
	return resp, nil
}

func (s *BookingService) initiateExtension(ctx context.Context, op string, caller models.Caller, b *models.Booking, spot *models.Spot, req *models.ExtendBookingRequest) (*models.ExtensionResponse, error) {
	if !caller.IsRenterOf(b) {
		return nil, apperr.Authorization(op, "only the renter can extend this booking")
	}
	if _, err := next(op, b, models.ActionExtend); err != nil {
		return nil, err
	}
	if !s.now().Before(b.EndAt) {
		return nil, apperr.Precondition(op, "booking has already ended")
	}

	paymentMethodID := req.PaymentMethodID
	if paymentMethodID == "" && b.PaymentMethodID != nil {
		paymentMethodID = *b.PaymentMethodID
	}
	if paymentMethodID == "" {
		return nil, apperr.Payment(op, apperr.ErrPaymentMethodRequired, "add a payment method to extend this booking")
	}

	added := models.Interval{Start: b.EndAt, End: b.EndAt.Add(time.Duration(req.ExtensionMinutes) * time.Minute)}
	available, err := s.engine.IsAvailable(ctx, spot, added, b.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check availability: %w", err)
	}
	if !available {
		return nil, apperr.Conflict(op, nil, "the spot is not available for the extra time")
	}

	amount, hostEarnings := s.opts.Fees.Extension(b.HourlyRate, req.ExtensionMinutes)
	auth, err := s.payments.authorize(ctx, extensionKey(b, req.ExtensionMinutes, paymentMethodID), amount, b.Currency, paymentMethodID, b.ID)
	if err != nil {
		return nil, err
	}

	pending := &models.PendingExtension{
		Token:         uuid.NewString(),
		BookingID:     b.ID,
		IntentID:      auth.IntentID,
		ClientSecret:  auth.ClientSecret,
		Minutes:       req.ExtensionMinutes,
		Amount:        amount,
		HostEarnings:  hostEarnings,
		PreviousEndAt: b.EndAt,
		NewEndAt:      added.End,
		CreatedAt:     s.now(),
	}

	if auth.RequiresAction() {
		if err := s.extensions.Save(ctx, pending); err != nil {
			s.voidQuietly(ctx, auth.IntentID)
			return nil, fmt.Errorf("failed to save pending extension: %w", err)
		}
		return &models.ExtensionResponse{
			Status:       models.ExtensionRequiresAction,
			Booking:      b,
			Amount:       amount,
			PendingToken: pending.Token,
			ClientSecret: auth.ClientSecret,
		}, nil
	}

	if err := s.commitExtension(ctx, op, b, pending, true); err != nil {
		return nil, err
	}
	return &models.ExtensionResponse{Status: models.ExtensionCompleted, Booking: b, Amount: amount}, nil
}

// FinalizeExtension commits an extension after the customer confirmed the payment.
// Finalizing an already committed extension returns the booking unchanged.
func (s *BookingService) FinalizeExtension(ctx context.Context, caller models.Caller, id, token string) (*models.ExtensionResponse, error) {
	const op = "bookings.extend.finalize"
	if token == "" {
		return nil, apperr.Validation(op, "pending_token is required to finalize an extension")
	}

	b, spot, err := s.load(ctx, op, id)
	if err != nil {
		return nil, err
	}
	if !caller.IsRenterOf(b) {
		err := apperr.Authorization(op, "only the renter can extend this booking")
		s.audit(ctx, models.ActionExtend, b, b.Status, err)
		return nil, err
	}

	pending, err := s.extensions.Get(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending extension: %w", err)
	}
	if pending == nil || pending.BookingID != b.ID {
		return nil, apperr.NotFound(op, "extension request not found or expired; start a new extension")
	}

	if b.HasExtensionIntent(pending.IntentID) {
		return &models.ExtensionResponse{Status: models.ExtensionCompleted, Booking: b, Amount: pending.Amount}, nil
	}

	from := b.Status
	err = s.finalize(ctx, op, b, pending)
	s.audit(ctx, models.ActionExtend, b, from, err)
	if err != nil {
		return nil, err
	}

	s.notifyHostOfExtension(ctx, spot, b, pending.Minutes)
	return &models.ExtensionResponse{Status: models.ExtensionCompleted, Booking: b, Amount: pending.Amount}, nil
}

func (s *BookingService) finalize(ctx context.Context, op string, b *models.Booking, pending *models.PendingExtension) error {
	if _, err := next(op, b, models.ActionExtend); err != nil {
		s.abandonPending(ctx, pending)
		return err
	}
	if !b.EndAt.Equal(pending.PreviousEndAt) {
		s.abandonPending(ctx, pending)
		return apperr.Precondition(op, "booking changed since the extension was requested; start a new extension")
	}
	return s.commitExtension(ctx, op, b, pending, false)
}

// commitExtension captures the extension charge and records it. A failed capture of an
// immediate extension voids its authorization; a pending one stays retryable.
func (s *BookingService) commitExtension(ctx context.Context, op string, b *models.Booking, pending *models.PendingExtension, voidOnFailure bool) error {
	res, err := s.payments.capture(ctx, pending.IntentID)
	if err != nil {
		if voidOnFailure {
			s.voidQuietly(ctx, pending.IntentID)
		}
		return err
	}

	ext := &models.ExtensionCharge{
		ID:        uuid.NewString(),
		BookingID: b.ID,
		IntentID:  pending.IntentID,
		ChargeID:  res.ChargeID,
		Amount:    pending.Amount,
		Minutes:   pending.Minutes,
		CreatedAt: s.now(),
	}

	ok, err := s.bookings.AppendExtension(ctx, ext, pending.PreviousEndAt, pending.NewEndAt, pending.HostEarnings, models.SourcesFor(models.ActionExtend))
	if err == nil && ok {
		b.EndAt = pending.NewEndAt
		b.HostEarnings += pending.HostEarnings
		b.ExtensionCharges = append(b.ExtensionCharges, *ext)
		b.UpdatedAt = ext.CreatedAt
		return nil
	}

	s.uncommittedExtension(ctx, b, ext)
	if err != nil {
		if apperr.IsConflict(err) {
			return apperr.Conflict(op, err, "the spot is no longer available for the extra time")
		}
		return fmt.Errorf("failed to record extension: %w", err)
	}
	return apperr.Precondition(op, "booking changed while the extension was being processed")
}

// uncommittedExtension handles a captured extension charge that could not be recorded
func (s *BookingService) uncommittedExtension(ctx context.Context, b *models.Booking, ext *models.ExtensionCharge) {
	log := logger.WithContext(ctx).With(
		"booking_id", b.ID,
		"intent_id", ext.IntentID,
		"charge_id", ext.ChargeID,
		"amount", ext.Amount)

	if !s.opts.RefundExtensionOnCommitFailure {
		log.Error("Extension charge captured but not recorded; needs support follow-up")
		return
	}

	if _, err := s.payments.refund(ctx, ext.ChargeID, ext.Amount, "extension could not be applied"); err != nil {
		log.Error("Extension charge captured but not recorded and refund failed; needs support follow-up", "error", err)
		return
	}
	log.Warn("Extension charge captured but not recorded; refunded")
}

// abandonPending releases the authorization of a pending extension that will never be captured
func (s *BookingService) abandonPending(ctx context.Context, pending *models.PendingExtension) {
	s.voidQuietly(ctx, pending.IntentID)
	if err := s.extensions.Delete(ctx, pending.Token); err != nil {
		logger.WithContext(ctx).Warn("Failed to delete pending extension", "token", pending.Token, "error", err)
	}
}

// ExpirePendingExtensions voids the authorizations of extensions the customer never confirmed
func (s *BookingService) ExpirePendingExtensions(ctx context.Context) (int, error) {
	expired, err := s.extensions.ListExpired(ctx, s.now(), jobBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired extensions: %w", err)
	}

	released := 0
	for i := range expired {
		pending := &expired[i]
		b, err := s.bookings.GetByID(ctx, pending.BookingID)
		if err != nil {
			logger.WithContext(ctx).Error("Failed to load booking of expired extension", "booking_id", pending.BookingID, "error", err)
			continue
		}

		// a committed extension keeps its charge; only the marker goes
		if b != nil && b.HasExtensionIntent(pending.IntentID) {
			s.discardPending(ctx, pending)
			continue
		}

		s.abandonPending(ctx, pending)
		released++
		logger.WithContext(ctx).Info("Released unconfirmed extension",
			"booking_id", pending.BookingID,
			"intent_id", pending.IntentID,
			"amount", pending.Amount)
	}
	return released, nil
}

func (s *BookingService) discardPending(ctx context.Context, pending *models.PendingExtension) {
	if err := s.extensions.Delete(ctx, pending.Token); err != nil {
		logger.WithContext(ctx).Warn("Failed to delete pending extension", "token", pending.Token, "error", err)
	}
}

func (s *BookingService) notifyHostOfExtension(ctx context.Context, spot *models.Spot, b *models.Booking, minutes int) {
	notify(ctx, s.notifier, spot.HostID, "Booking extended",
		fmt.Sprintf("A booking at %s was extended by %d minutes and now ends at %s.",
			spot.Title, minutes, b.EndAt.In(spot.Location()).Format("Mon Jan 2 15:04")), b.ID)
}

func extensionKey(b *models.Booking, minutes int, paymentMethodID string) string {
	return "ext-" + b.ID + "-" + strconv.FormatInt(b.EndAt.Unix(), 10) + "-" + strconv.Itoa(minutes) + "-" + paymentMethodID
}
