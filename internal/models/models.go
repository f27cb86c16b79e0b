package models

import (
	"fmt"
	"strings"
	"time"
)

// FlexibleBool accepts booleans encoded as strings or numbers
type FlexibleBool bool

// UnmarshalJSON parses true/false, 1/0, yes/no, on/off
func (fb *FlexibleBool) UnmarshalJSON(data []byte) error {
	str := strings.Trim(string(data), `"`)

	switch strings.ToLower(str) {
	case "true", "1", "yes", "on":
		*fb = true
	case "false", "0", "no", "off", "null", "":
		*fb = false
	default:
		return fmt.Errorf("invalid boolean value: %s", str)
	}
	return nil
}

// Bool returns the plain bool value
func (fb FlexibleBool) Bool() bool {
	return bool(fb)
}

// CreateBookingRequest - body of POST /api/bookings
type CreateBookingRequest struct {
	SpotID          string    `json:"spot_id" binding:"required"`
	StartAt         time.Time `json:"start_at"`
	EndAt           time.Time `json:"end_at"`
	PaymentMethodID string    `json:"payment_method_id,omitempty"`
	GuestEmail      string    `json:"guest_email,omitempty"`
}

// CreateBookingResponse - result of a booking creation
type CreateBookingResponse struct {
	Booking        *Booking `json:"booking"`
	GuestToken     string   `json:"guest_token,omitempty"`
	RequiresAction bool     `json:"requires_action"`
	ClientSecret   string   `json:"client_secret,omitempty"`
}

// AuthorizeBookingRequest attaches a payment method to a pending booking
type AuthorizeBookingRequest struct {
	PaymentMethodID string `json:"payment_method_id" binding:"required"`
}

// DeclineBookingRequest - host rejection
type DeclineBookingRequest struct {
	Reason string `json:"reason,omitempty"`
}

// CancelBookingRequest - cancellation by renter, guest or host
type CancelBookingRequest struct {
	Reason string `json:"reason,omitempty"`
}

// RefundBookingRequest - host refund of a started or completed booking
type RefundBookingRequest struct {
	Reason string `json:"reason,omitempty"`
}

// ExtendBookingRequest drives both steps of an extension.
// The second step sets Finalize and PendingToken.
type ExtendBookingRequest struct {
	ExtensionMinutes int          `json:"extension_minutes"`
	PaymentMethodID  string       `json:"payment_method_id,omitempty"`
	Finalize         FlexibleBool `json:"finalize,omitempty"`
	PendingToken     string       `json:"pending_token,omitempty"`
}

// Extension outcome statuses
const (
	ExtensionCompleted      = "completed"
	ExtensionRequiresAction = "requires_action"
)

// ExtensionResponse - result of either extension step
type ExtensionResponse struct {
	Status       string   `json:"status"`
	Booking      *Booking `json:"booking"`
	Amount       int64    `json:"amount"`
	PendingToken string   `json:"pending_token,omitempty"`
	ClientSecret string   `json:"client_secret,omitempty"`
}

// Quote is the priced breakdown of an interval on a spot
type Quote struct {
	Minutes      int64  `json:"minutes"`
	HourlyRate   int64  `json:"hourly_rate"`
	Subtotal     int64  `json:"subtotal"`
	ServiceFee   int64  `json:"service_fee"`
	Total        int64  `json:"total"`
	HostEarnings int64  `json:"host_earnings"`
	FeeVersion   string `json:"fee_version"`
	Currency     string `json:"currency"`
}

// AvailabilityResponse - answer of GET /api/spots/:id/availability
type AvailabilityResponse struct {
	SpotID    string    `json:"spot_id"`
	StartAt   time.Time `json:"start_at"`
	EndAt     time.Time `json:"end_at"`
	Available bool      `json:"available"`
}

// ReplaceRulesRequest replaces the weekly rules of a spot
type ReplaceRulesRequest struct {
	Rules []AvailabilityRule `json:"rules"`
}

// BlockAvailabilityRequest - host "block my spot" action
type BlockAvailabilityRequest struct {
	SpotIDs  []string     `json:"spot_ids" binding:"required"`
	Date     string       `json:"date,omitempty"`
	FromTime *Clock       `json:"from_time,omitempty"`
	Reason   string       `json:"reason,omitempty"`
	Confirm  FlexibleBool `json:"confirm,omitempty"`
}

// ConflictItem is a booking standing in the way of a block
type ConflictItem struct {
	BookingID string    `json:"booking_id"`
	SpotID    string    `json:"spot_id"`
	StartAt   time.Time `json:"start_at"`
	EndAt     time.Time `json:"end_at"`
	Status    string    `json:"status"`
}

// Block item outcomes
const (
	BlockOutcomeCanceled = "canceled"
	BlockOutcomeDeferred = "deferred"
	BlockOutcomeFailed   = "failed"
)

// BlockItemResult is the outcome for one conflicting booking
type BlockItemResult struct {
	BookingID string `json:"booking_id"`
	SpotID    string `json:"spot_id"`
	Outcome   string `json:"outcome"`
	Refunded  int64  `json:"refunded,omitempty"`
	Error     string `json:"error,omitempty"`
}

// BlockResult is returned by the block action
type BlockResult struct {
	RequiresConfirmation bool               `json:"requires_confirmation"`
	Live                 []ConflictItem     `json:"live"`
	Upcoming             []ConflictItem     `json:"upcoming"`
	Items                []BlockItemResult  `json:"items"`
	Overrides            []CalendarOverride `json:"overrides"`
	CanceledCount        int                `json:"canceled_count"`
	DeferredCount        int                `json:"deferred_count"`
	FailedCount          int                `json:"failed_count"`
}

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
