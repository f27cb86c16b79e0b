package models

import (
	"time"
)

// Spot is a parking spot listed by a host
type Spot struct {
	ID          string    `json:"id" db:"id"`
	HostID      string    `json:"host_id" db:"host_id"`
	Title       string    `json:"title" db:"title"`
	HourlyRate  int64     `json:"hourly_rate" db:"hourly_rate"`
	Currency    string    `json:"currency" db:"currency"`
	Timezone    string    `json:"timezone" db:"timezone"`
	InstantBook bool      `json:"instant_book" db:"instant_book"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Location returns the spot's time zone, UTC when unset or unknown
func (s *Spot) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Booking represents a reservation of one spot for [StartAt, EndAt)
type Booking struct {
	ID                 string            `json:"id" db:"id"`
	SpotID             string            `json:"spot_id" db:"spot_id"`
	RenterID           *string           `json:"renter_id,omitempty" db:"renter_id"`
	IsGuest            bool              `json:"is_guest" db:"is_guest"`
	GuestEmail         *string           `json:"guest_email,omitempty" db:"guest_email"`
	GuestTokenHash     *string           `json:"-" db:"guest_token_hash"`
	Status             BookingStatus     `json:"status" db:"status"`
	StartAt            time.Time         `json:"start_at" db:"start_at"`
	EndAt              time.Time         `json:"end_at" db:"end_at"`
	HourlyRate         int64             `json:"hourly_rate" db:"hourly_rate"`
	Subtotal           int64             `json:"subtotal" db:"subtotal"`
	ServiceFee         int64             `json:"service_fee" db:"service_fee"`
	TotalAmount        int64             `json:"total_amount" db:"total_amount"`
	HostEarnings       int64             `json:"host_earnings" db:"host_earnings"`
	FeeVersion         string            `json:"fee_version" db:"fee_version"`
	Currency           string            `json:"currency" db:"currency"`
	PaymentMethodID    *string           `json:"-" db:"payment_method_id"`
	PaymentIntentID    *string           `json:"payment_intent_id,omitempty" db:"payment_intent_id"`
	ChargeID           *string           `json:"charge_id,omitempty" db:"charge_id"`
	CancellationReason *string           `json:"cancellation_reason,omitempty" db:"cancellation_reason"`
	RefundedAmount     int64             `json:"refunded_amount" db:"refunded_amount"`
	ExtensionCharges   []ExtensionCharge `json:"extension_charges"` // filled separately
	CreatedAt          time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at" db:"updated_at"`
}

// Interval returns the booked interval
func (b *Booking) Interval() Interval {
	return Interval{Start: b.StartAt, End: b.EndAt}
}

// IsLive reports whether the booking interval contains now
func (b *Booking) IsLive(now time.Time) bool {
	return b.Interval().Contains(now)
}

// EffectiveStatus derives completion for confirmed bookings whose interval has elapsed
func (b *Booking) EffectiveStatus(now time.Time) BookingStatus {
	if b.Status.IsConfirmed() && !now.Before(b.EndAt) {
		return StatusCompleted
	}
	return b.Status
}

// ExtensionTotal sums the amounts of recorded extensions
func (b *Booking) ExtensionTotal() int64 {
	var total int64
	for _, ext := range b.ExtensionCharges {
		total += ext.Amount
	}
	return total
}

// HasExtensionIntent reports whether an extension for the given intent was already committed
func (b *Booking) HasExtensionIntent(intentID string) bool {
	for _, ext := range b.ExtensionCharges {
		if ext.IntentID == intentID {
			return true
		}
	}
	return false
}

// BookingHold is a short-lived exclusivity marker on (spot, interval)
type BookingHold struct {
	ID        string    `json:"id" db:"id"`
	BookingID string    `json:"booking_id" db:"booking_id"`
	SpotID    string    `json:"spot_id" db:"spot_id"`
	OwnerKey  string    `json:"owner_key" db:"owner_key"`
	StartAt   time.Time `json:"start_at" db:"start_at"`
	EndAt     time.Time `json:"end_at" db:"end_at"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// AvailabilityRule is a recurring weekly rule, at most one per spot and weekday
type AvailabilityRule struct {
	ID          int64  `json:"id" db:"id"`
	SpotID      string `json:"spot_id" db:"spot_id"`
	DayOfWeek   int    `json:"day_of_week" db:"day_of_week"`
	StartTime   Clock  `json:"start_time" db:"start_time"`
	EndTime     Clock  `json:"end_time" db:"end_time"`
	IsAvailable bool   `json:"is_available" db:"is_available"`
	CustomRate  *int64 `json:"custom_rate,omitempty" db:"custom_rate"`
}

// CalendarOverride is a date-specific exception that supersedes the weekly rule.
// Nil bounds cover the whole day.
type CalendarOverride struct {
	ID           int64     `json:"id" db:"id"`
	SpotID       string    `json:"spot_id" db:"spot_id"`
	OverrideDate string    `json:"override_date" db:"override_date"` // YYYY-MM-DD
	IsAvailable  bool      `json:"is_available" db:"is_available"`
	StartTime    *Clock    `json:"start_time,omitempty" db:"start_time"`
	EndTime      *Clock    `json:"end_time,omitempty" db:"end_time"`
	Reason       *string   `json:"reason,omitempty" db:"reason"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// WholeDay reports whether the override has no time bounds
func (o *CalendarOverride) WholeDay() bool {
	return o.StartTime == nil || o.EndTime == nil
}

// SameEffect reports whether two overrides block or open the same window
func (o *CalendarOverride) SameEffect(other *CalendarOverride) bool {
	if other == nil {
		return false
	}
	if o.SpotID != other.SpotID || o.OverrideDate != other.OverrideDate || o.IsAvailable != other.IsAvailable {
		return false
	}
	if o.WholeDay() || other.WholeDay() {
		return o.WholeDay() == other.WholeDay()
	}
	return *o.StartTime == *other.StartTime && o.EndTime.Normalize() == other.EndTime.Normalize()
}

// ExtensionCharge is an append-only record of a paid time extension
type ExtensionCharge struct {
	ID        string    `json:"id" db:"id"`
	BookingID string    `json:"booking_id" db:"booking_id"`
	IntentID  string    `json:"intent_id" db:"intent_id"`
	ChargeID  string    `json:"charge_id" db:"charge_id"`
	Amount    int64     `json:"amount" db:"amount"`
	Minutes   int       `json:"minutes" db:"minutes"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// HoursAdded returns the extension length in hours
func (e ExtensionCharge) HoursAdded() float64 {
	return float64(e.Minutes) / 60.0
}

// PendingExtension is an extension awaiting client-side payment confirmation
type PendingExtension struct {
	Token         string    `json:"token"`
	BookingID     string    `json:"booking_id"`
	IntentID      string    `json:"intent_id"`
	ClientSecret  string    `json:"client_secret"`
	Minutes       int       `json:"minutes"`
	Amount        int64     `json:"amount"`
	HostEarnings  int64     `json:"host_earnings"`
	PreviousEndAt time.Time `json:"previous_end_at"`
	NewEndAt      time.Time `json:"new_end_at"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// Notification is an in-app inbox entry
type Notification struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Title     string    `json:"title" db:"title"`
	Message   string    `json:"message" db:"message"`
	BookingID *string   `json:"booking_id,omitempty" db:"booking_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
