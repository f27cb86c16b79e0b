package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "parkly/internal/errors"
	"parkly/internal/external"
	"parkly/internal/models"
)

func TestCreate_HeldWithAuthorization(t *testing.T) {
	h := newHarness(t)

	b := h.create(t, 14, 16)

	assert.Equal(t, models.StatusHeld, b.Status)
	require.NotNil(t, b.PaymentIntentID)
	assert.Nil(t, b.ChargeID)
	assert.Equal(t, int64(2000), b.Subtotal)
	assert.Equal(t, int64(200), b.ServiceFee)
	assert.Equal(t, int64(2200), b.TotalAmount)
	assert.Equal(t, int64(1700), b.HostEarnings)
	assert.Equal(t, "test-1", b.FeeVersion)

	assert.True(t, h.holds.forBooking(b.ID))
	assert.Equal(t, 0, h.gateway.charges())
	assert.Equal(t, []string{"New booking request"}, h.notifier.titlesFor("host-1"))

	stored := h.bookings.get(b.ID)
	require.NotNil(t, stored)
	assert.Equal(t, models.StatusHeld, stored.Status)
}

func TestCreate_WithoutPaymentMethodIsPending(t *testing.T) {
	h := newHarness(t)

	resp, err := h.svc.Bookings.Create(context.Background(), renter, &models.CreateBookingRequest{
		SpotID:  "spot-1",
		StartAt: h.at(14, 0),
		EndAt:   h.at(15, 0),
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, resp.Booking.Status)
	assert.Nil(t, resp.Booking.PaymentIntentID)
	assert.Equal(t, 0, h.gateway.calls())
	assert.True(t, h.holds.forBooking(resp.Booking.ID))
}

func TestCreate_OverlappingIntervalsConflict(t *testing.T) {
	tests := []struct {
		name       string
		start, end time.Duration
		conflict   bool
	}{
		{"same interval", 14 * time.Hour, 16 * time.Hour, true},
		{"starts inside", 15 * time.Hour, 17 * time.Hour, true},
		{"ends inside", 13 * time.Hour, 15 * time.Hour, true},
		{"contains", 13 * time.Hour, 17 * time.Hour, true},
		{"touches end", 16 * time.Hour, 17 * time.Hour, false},
		{"touches start", 13 * time.Hour, 14 * time.Hour, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.create(t, 14, 16)

			day := h.at(0, 0)
			_, err := h.svc.Bookings.Create(context.Background(), stranger, &models.CreateBookingRequest{
				SpotID:          "spot-1",
				StartAt:         day.Add(tt.start),
				EndAt:           day.Add(tt.end),
				PaymentMethodID: "pm_card",
			})

			if tt.conflict {
				assert.True(t, apperr.IsConflict(err), "expected conflict, got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCreate_LostHoldRaceDoesNotAuthorize(t *testing.T) {
	h := newHarness(t)

	// a concurrent request holds the interval but has not written its booking yet
	require.NoError(t, h.holds.Acquire(context.Background(), &models.BookingHold{
		ID:        "hold-other",
		BookingID: "booking-other",
		SpotID:    "spot-1",
		StartAt:   h.at(15, 0),
		EndAt:     h.at(17, 0),
		ExpiresAt: h.at(13, 0),
	}))

	_, err := h.svc.Bookings.Create(context.Background(), renter, &models.CreateBookingRequest{
		SpotID:          "spot-1",
		StartAt:         h.at(14, 0),
		EndAt:           h.at(16, 0),
		PaymentMethodID: "pm_card",
	})

	assert.True(t, apperr.IsConflict(err))
	assert.Equal(t, 0, h.gateway.calls())
	assert.Equal(t, 1, h.holds.count())
}

func TestCreate_Validation(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name   string
		caller models.Caller
		req    models.CreateBookingRequest
	}{
		{"missing spot", renter, models.CreateBookingRequest{StartAt: h.at(14, 0), EndAt: h.at(15, 0)}},
		{"missing times", renter, models.CreateBookingRequest{SpotID: "spot-1"}},
		{"end before start", renter, models.CreateBookingRequest{SpotID: "spot-1", StartAt: h.at(15, 0), EndAt: h.at(14, 0)}},
		{"in the past", renter, models.CreateBookingRequest{SpotID: "spot-1", StartAt: h.at(9, 0), EndAt: h.at(10, 0)}},
		{"guest without email", models.Caller{}, models.CreateBookingRequest{SpotID: "spot-1", StartAt: h.at(14, 0), EndAt: h.at(15, 0)}},
		{"guest with bad email", models.Caller{}, models.CreateBookingRequest{SpotID: "spot-1", StartAt: h.at(14, 0), EndAt: h.at(15, 0), GuestEmail: "nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := h.svc.Bookings.Create(context.Background(), tt.caller, &req)
			assert.True(t, apperr.IsValidation(err), "expected validation error, got %v", err)
		})
	}
	assert.Equal(t, 0, h.gateway.calls())
}

func TestCreate_UnknownSpot(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Bookings.Create(context.Background(), renter, &models.CreateBookingRequest{
		SpotID:  "missing",
		StartAt: h.at(14, 0),
		EndAt:   h.at(15, 0),
	})
	assert.True(t, apperr.IsNotFound(err))
}

func TestCreate_DeclinedCardReleasesHold(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Bookings.Create(context.Background(), renter, &models.CreateBookingRequest{
		SpotID:          "spot-1",
		StartAt:         h.at(14, 0),
		EndAt:           h.at(15, 0),
		PaymentMethodID: "pm_declined",
	})

	assert.True(t, apperr.IsPayment(err))
	assert.Contains(t, apperr.Message(err), "declined")
	assert.Equal(t, 0, h.holds.count())
	assert.Empty(t, h.bookings.items)
}

func TestCreate_InstantBookCapturesImmediately(t *testing.T) {
	h := newHarness(t)

	resp, err := h.svc.Bookings.Create(context.Background(), renter, &models.CreateBookingRequest{
		SpotID:          "spot-instant",
		StartAt:         h.at(14, 0),
		EndAt:           h.at(15, 0),
		PaymentMethodID: "pm_card",
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusPaid, resp.Booking.Status)
	require.NotNil(t, resp.Booking.ChargeID)
	assert.Equal(t, 1, h.gateway.charges())
	assert.False(t, h.holds.forBooking(resp.Booking.ID))
	assert.Equal(t, []string{"New booking"}, h.notifier.titlesFor("host-1"))
}

func TestCreate_InstantCaptureFailureLeavesBookingHeld(t *testing.T) {
	h := newHarness(t)
	h.gateway.captureErr = errors.New("connection reset")

	_, err := h.svc.Bookings.Create(context.Background(), renter, &models.CreateBookingRequest{
		SpotID:          "spot-instant",
		StartAt:         h.at(14, 0),
		EndAt:           h.at(15, 0),
		PaymentMethodID: "pm_card",
	})
	assert.True(t, apperr.IsPayment(err))

	list, err := h.svc.Bookings.List(context.Background(), renter, false)
	require.NoError(t, err)
	require.Len(t, list, 1)
	b := list[0]
	assert.Equal(t, models.StatusHeld, b.Status)
	assert.True(t, h.holds.forBooking(b.ID))
	assert.Empty(t, h.gateway.voids)
	assert.Equal(t, []string{"New booking request"}, h.notifier.titlesFor("host-1"))

	// the host approval retries the capture
	h.gateway.captureErr = nil
	approved, err := h.svc.Bookings.Approve(context.Background(), host, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, approved.Status)
	assert.Equal(t, 1, h.gateway.charges())
}

func TestCreate_InsertConflictVoidsAuthorization(t *testing.T) {
	h := newHarness(t)
	h.bookings.createErr = apperr.Conflict("bookings.create", nil, "the spot is already booked for an overlapping time")

	_, err := h.svc.Bookings.Create(context.Background(), renter, &models.CreateBookingRequest{
		SpotID:          "spot-1",
		StartAt:         h.at(14, 0),
		EndAt:           h.at(15, 0),
		PaymentMethodID: "pm_card",
	})

	assert.True(t, apperr.IsConflict(err))
	require.Len(t, h.gateway.voids, 1)
	assert.Equal(t, external.IntentCanceled, h.gateway.intentStatus(h.gateway.voids[0]))
	assert.Equal(t, 0, h.gateway.charges())
	assert.Equal(t, 0, h.holds.count())
	assert.Empty(t, h.bookings.items)
}

func TestCreate_GuestAccessByToken(t *testing.T) {
	h := newHarness(t)

	resp, err := h.svc.Bookings.Create(context.Background(), models.Caller{}, &models.CreateBookingRequest{
		SpotID:          "spot-1",
		StartAt:         h.at(14, 0),
		EndAt:           h.at(15, 0),
		PaymentMethodID: "pm_card",
		GuestEmail:      "guest@example.com",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.GuestToken)
	assert.True(t, resp.Booking.IsGuest)
	assert.Nil(t, resp.Booking.RenterID)

	guest := models.Caller{Role: models.RoleGuest, GuestToken: resp.GuestToken}
	got, err := h.svc.Bookings.Get(context.Background(), guest, resp.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, resp.Booking.ID, got.ID)

	impostor := models.Caller{Role: models.RoleGuest, GuestToken: "wrong"}
	_, err = h.svc.Bookings.Get(context.Background(), impostor, resp.Booking.ID)
	assert.True(t, apperr.IsAuthorization(err))
}

func TestCreate_HostCannotBookOwnSpot(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Bookings.Create(context.Background(), host, &models.CreateBookingRequest{
		SpotID:  "spot-1",
		StartAt: h.at(14, 0),
		EndAt:   h.at(15, 0),
	})
	assert.True(t, apperr.IsAuthorization(err))
}

func TestAuthorize_PendingBecomesHeld(t *testing.T) {
	h := newHarness(t)
	resp, err := h.svc.Bookings.Create(context.Background(), renter, &models.CreateBookingRequest{
		SpotID:  "spot-1",
		StartAt: h.at(14, 0),
		EndAt:   h.at(15, 0),
	})
	require.NoError(t, err)

	_, err = h.svc.Bookings.Authorize(context.Background(), stranger, resp.Booking.ID, "pm_card")
	assert.True(t, apperr.IsAuthorization(err))

	authorized, err := h.svc.Bookings.Authorize(context.Background(), renter, resp.Booking.ID, "pm_card")
	require.NoError(t, err)
	assert.Equal(t, models.StatusHeld, authorized.Booking.Status)
	assert.Equal(t, models.StatusHeld, h.bookings.get(resp.Booking.ID).Status)

	_, err = h.svc.Bookings.Authorize(context.Background(), renter, resp.Booking.ID, "pm_card")
	assert.True(t, apperr.IsPrecondition(err))
}

func TestApprove_CapturesHeldBooking(t *testing.T) {
	h := newHarness(t)
	b := h.create(t, 14, 16)

	approved, err := h.svc.Bookings.Approve(context.Background(), host, b.ID)
	require.NoError(t, err)

	assert.Equal(t, models.StatusActive, approved.Status)
	require.NotNil(t, approved.ChargeID)
	assert.Equal(t, 1, h.gateway.charges())
	assert.False(t, h.holds.forBooking(b.ID))
	assert.Equal(t, []string{"Booking approved"}, h.notifier.titlesFor("renter-1"))

	stored := h.bookings.get(b.ID)
	assert.Equal(t, models.StatusActive, stored.Status)
	assert.Equal(t, *approved.ChargeID, *stored.ChargeID)
}

func TestApprove_OnlyFromHeld(t *testing.T) {
	for _, status := range []models.BookingStatus{
		models.StatusPending, models.StatusPaid, models.StatusActive, models.StatusCompleted,
		models.StatusCanceled, models.StatusRefunded, models.StatusDeclined,
	} {
		t.Run(string(status), func(t *testing.T) {
			h := newHarness(t)
			h.bookings.put(models.Booking{
				ID:              "b-1",
				SpotID:          "spot-1",
				RenterID:        strPtr("renter-1"),
				Status:          status,
				StartAt:         h.at(14, 0),
				EndAt:           h.at(15, 0),
				PaymentIntentID: strPtr("pi_seed"),
			})

			_, err := h.svc.Bookings.Approve(context.Background(), host, "b-1")

			assert.True(t, apperr.IsPrecondition(err), "expected precondition error, got %v", err)
			assert.Equal(t, status, h.bookings.get("b-1").Status)
			assert.Equal(t, 0, h.gateway.calls())
		})
	}
}

func TestApprove_RequiresSpotHost(t *testing.T) {
	h := newHarness(t)
	b := h.create(t, 14, 16)

	for _, caller := range []models.Caller{renter, stranger, {ID: "host-2", Role: models.RoleHost}} {
		_, err := h.svc.Bookings.Approve(context.Background(), caller, b.ID)
		assert.True(t, apperr.IsAuthorization(err))
	}

	assert.Equal(t, models.StatusHeld, h.bookings.get(b.ID).Status)
	assert.Equal(t, 0, h.gateway.charges())
}

func TestApprove_CaptureFailureKeepsBookingHeld(t *testing.T) {
	h := newHarness(t)
	b := h.create(t, 14, 16)
	h.gateway.captureErr = errors.New("connection reset")

	_, err := h.svc.Bookings.Approve(context.Background(), host, b.ID)

	assert.True(t, apperr.IsPayment(err))
	assert.Contains(t, apperr.Message(err), "try again")
	assert.Equal(t, models.StatusHeld, h.bookings.get(b.ID).Status)
	assert.Empty(t, h.notifier.titlesFor("renter-1"))
}

func TestApprove_RepeatedCaptureProducesOneCharge(t *testing.T) {
	h := newHarness(t)
	b := h.create(t, 14, 16)

	approved, err := h.svc.Bookings.Approve(context.Background(), host, b.ID)
	require.NoError(t, err)

	// a retried capture of the same intent replays the first charge
	res, err := h.svc.Bookings.payments.capture(context.Background(), *approved.PaymentIntentID)
	require.NoError(t, err)
	assert.True(t, res.AlreadyCaptured)
	assert.Equal(t, *approved.ChargeID, res.ChargeID)

	_, err = h.svc.Bookings.Approve(context.Background(), host, b.ID)
	assert.True(t, apperr.IsPrecondition(err))

	assert.Equal(t, 1, h.gateway.charges())
}

func TestDecline_VoidsWithoutCapture(t *testing.T) {
	h := newHarness(t)
	b := h.create(t, 14, 16)

	declined, err := h.svc.Bookings.Decline(context.Background(), host, b.ID, "")
	require.NoError(t, err)

	assert.Equal(t, models.StatusDeclined, declined.Status)
	require.NotNil(t, declined.CancellationReason)
	assert.Equal(t, "declined by host", *declined.CancellationReason)
	assert.Equal(t, []string{*b.PaymentIntentID}, h.gateway.voids)
	assert.Equal(t, 0, h.gateway.charges())
	assert.False(t, h.holds.forBooking(b.ID))
	assert.Equal(t, []string{"Booking declined"}, h.notifier.titlesFor("renter-1"))

	_, err = h.svc.Bookings.Approve(context.Background(), host, b.ID)
	assert.True(t, apperr.IsPrecondition(err))
	assert.Equal(t, 0, h.gateway.charges())
}

func TestDecline_RequiresSpotHost(t *testing.T) {
	h := newHarness(t)
	b := h.create(t, 14, 16)

	_, err := h.svc.Bookings.Decline(context.Background(), renter, b.ID, "no")

	assert.True(t, apperr.IsAuthorization(err))
	assert.Empty(t, h.gateway.voids)
}

func TestCancel_ConfirmedBookingRefundsTotal(t *testing.T) {
	h := newHarness(t)
	b := h.approved(t, 14, 16)

	canceled, err := h.svc.Bookings.Cancel(context.Background(), renter, b.ID, "")
	require.NoError(t, err)

	assert.Equal(t, models.StatusCanceled, canceled.Status)
	assert.Equal(t, b.TotalAmount, canceled.RefundedAmount)
	assert.Equal(t, []refundCall{{ChargeID: *b.ChargeID, Amount: b.TotalAmount}}, h.gateway.refunds)
	assert.Equal(t, "canceled by renter", *h.bookings.get(b.ID).CancellationReason)
	assert.Contains(t, h.notifier.titlesFor("host-1"), "Booking canceled")
}

func TestCancel_HeldBookingVoids(t *testing.T) {
	h := newHarness(t)
	b := h.create(t, 14, 16)

	canceled, err := h.svc.Bookings.Cancel(context.Background(), renter, b.ID, "changed plans")
	require.NoError(t, err)

	assert.Equal(t, models.StatusCanceled, canceled.Status)
	assert.Equal(t, int64(0), canceled.RefundedAmount)
	assert.Equal(t, []string{*b.PaymentIntentID}, h.gateway.voids)
	assert.Empty(t, h.gateway.refunds)
	assert.False(t, h.holds.forBooking(b.ID))
}

func TestCancel_ByHostNotifiesRenter(t *testing.T) {
	h := newHarness(t)
	b := h.approved(t, 14, 16)

	_, err := h.svc.Bookings.Cancel(context.Background(), host, b.ID, "")
	require.NoError(t, err)

	assert.Equal(t, "canceled by host", *h.bookings.get(b.ID).CancellationReason)
	assert.Contains(t, h.notifier.titlesFor("renter-1"), "Booking canceled by host")
}

func TestCancel_RejectedAfterStart(t *testing.T) {
	h := newHarness(t)
	b := h.approved(t, 14, 16)
	h.now = h.at(14, 30)

	_, err := h.svc.Bookings.Cancel(context.Background(), renter, b.ID, "")

	assert.True(t, apperr.IsPrecondition(err))
	assert.Empty(t, h.gateway.refunds)
	assert.Equal(t, models.StatusActive, h.bookings.get(b.ID).Status)
}

func TestCancel_RejectsStranger(t *testing.T) {
	h := newHarness(t)
	b := h.approved(t, 14, 16)

	_, err := h.svc.Bookings.Cancel(context.Background(), stranger, b.ID, "")

	assert.True(t, apperr.IsAuthorization(err))
	assert.Empty(t, h.gateway.refunds)
}

func TestCancel_RefundsExtensionCharges(t *testing.T) {
	h := newHarness(t)
	b := h.approved(t, 14, 16)

	_, err := h.svc.Bookings.Extend(context.Background(), renter, b.ID, &models.ExtendBookingRequest{ExtensionMinutes: 60})
	require.NoError(t, err)

	canceled, err := h.svc.Bookings.Cancel(context.Background(), renter, b.ID, "")
	require.NoError(t, err)

	assert.Equal(t, int64(2200+1000), canceled.RefundedAmount)
	assert.Len(t, h.gateway.refunds, 2)
}

func TestRefund_HostRefundsStartedBooking(t *testing.T) {
	h := newHarness(t)
	b := h.approved(t, 14, 16)
	h.now = h.at(15, 0)

	_, err := h.svc.Bookings.Refund(context.Background(), renter, b.ID, "")
	assert.True(t, apperr.IsAuthorization(err))

	refunded, err := h.svc.Bookings.Refund(context.Background(), host, b.ID, "")
	require.NoError(t, err)

	assert.Equal(t, models.StatusRefunded, refunded.Status)
	assert.Equal(t, b.TotalAmount, refunded.RefundedAmount)
	assert.Equal(t, models.StatusRefunded, h.bookings.get(b.ID).Status)
}

func TestRefund_CompletedBooking(t *testing.T) {
	h := newHarness(t)
	b := h.approved(t, 14, 16)

	// completion was derived on read; the job never ran
	h.now = h.at(20, 0)
	refunded, err := h.svc.Bookings.Refund(context.Background(), host, b.ID, "damaged gate")
	require.NoError(t, err)

	assert.Equal(t, models.StatusRefunded, refunded.Status)
	assert.Equal(t, "damaged gate", *h.bookings.get(b.ID).CancellationReason)
}

func TestRefund_BeforeStartRejected(t *testing.T) {
	h := newHarness(t)
	b := h.approved(t, 14, 16)

	_, err := h.svc.Bookings.Refund(context.Background(), host, b.ID, "")

	assert.True(t, apperr.IsPrecondition(err))
	assert.Empty(t, h.gateway.refunds)
}

func TestExpireHolds_CancelsUnconfirmedBookings(t *testing.T) {
	h := newHarness(t)
	held := h.create(t, 14, 16)
	pending, err := h.svc.Bookings.Create(context.Background(), stranger, &models.CreateBookingRequest{
		SpotID:  "spot-2",
		StartAt: h.at(18, 0),
		EndAt:   h.at(19, 0),
	})
	require.NoError(t, err)

	n, err := h.svc.Bookings.ExpireHolds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	h.now = h.at(13, 30)
	n, err = h.svc.Bookings.ExpireHolds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for _, id := range []string{held.ID, pending.Booking.ID} {
		stored := h.bookings.get(id)
		assert.Equal(t, models.StatusCanceled, stored.Status)
		assert.Equal(t, "hold expired", *stored.CancellationReason)
	}
	assert.Equal(t, []string{*held.PaymentIntentID}, h.gateway.voids)
	assert.Equal(t, 0, h.holds.count())
}

func TestExpireHolds_SkipsApprovedBooking(t *testing.T) {
	h := newHarness(t)
	b := h.create(t, 14, 16)

	_, err := h.svc.Bookings.Approve(context.Background(), host, b.ID)
	require.NoError(t, err)

	// a hold left behind by an approved booking must not cancel it
	require.NoError(t, h.holds.Acquire(context.Background(), &models.BookingHold{
		ID: "stale", BookingID: b.ID, SpotID: "spot-2",
		StartAt: h.at(14, 0), EndAt: h.at(16, 0), ExpiresAt: h.at(12, 0),
	}))

	n, err := h.svc.Bookings.ExpireHolds(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, n)
	assert.Equal(t, models.StatusActive, h.bookings.get(b.ID).Status)
	assert.Equal(t, 0, h.holds.count())
}

func TestCompleteElapsed(t *testing.T) {
	h := newHarness(t)
	b := h.approved(t, 14, 16)
	h.now = h.at(16, 0)

	got, err := h.svc.Bookings.Get(context.Background(), renter, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Equal(t, models.StatusActive, h.bookings.get(b.ID).Status)

	n, err := h.svc.Bookings.CompleteElapsed(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, n)
	assert.Equal(t, models.StatusCompleted, h.bookings.get(b.ID).Status)
}

func TestList_DerivesCompletion(t *testing.T) {
	h := newHarness(t)
	h.approved(t, 14, 16)
	h.now = h.at(17, 0)

	asRenter, err := h.svc.Bookings.List(context.Background(), renter, false)
	require.NoError(t, err)
	require.Len(t, asRenter, 1)
	assert.Equal(t, models.StatusCompleted, asRenter[0].Status)

	asHost, err := h.svc.Bookings.List(context.Background(), host, true)
	require.NoError(t, err)
	assert.Len(t, asHost, 1)

	_, err = h.svc.Bookings.List(context.Background(), models.Caller{}, false)
	assert.True(t, apperr.IsAuthorization(err))
}

func TestNotifierFailureDoesNotFailTransition(t *testing.T) {
	h := newHarness(t)
	b := h.create(t, 14, 16)
	h.notifier.err = errors.New("broker down")

	approved, err := h.svc.Bookings.Approve(context.Background(), host, b.ID)

	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, approved.Status)
}

func TestTransitionsArePublished(t *testing.T) {
	h := newHarness(t)
	b := h.approved(t, 14, 16)

	var actions []models.Action
	for _, e := range h.publisher.events {
		event, ok := e.(models.BookingTransitionEvent)
		require.True(t, ok)
		assert.Equal(t, b.ID, event.BookingID)
		actions = append(actions, event.Action)
	}
	assert.Equal(t, []models.Action{models.ActionCreate, models.ActionApprove}, actions)
}
