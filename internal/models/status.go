package models

import "fmt"

// BookingStatus is the lifecycle state of a booking
type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusHeld      BookingStatus = "held"
	StatusPaid      BookingStatus = "paid"
	StatusActive    BookingStatus = "active"
	StatusCompleted BookingStatus = "completed"
	StatusCanceled  BookingStatus = "canceled"
	StatusRefunded  BookingStatus = "refunded"
	StatusDeclined  BookingStatus = "declined"
)

// ConflictStatuses are the statuses that occupy a spot
var ConflictStatuses = []BookingStatus{StatusPending, StatusPaid, StatusActive, StatusHeld}

// Action is a lifecycle operation applied to a booking
type Action string

const (
	ActionCreate    Action = "create"
	ActionAuthorize Action = "authorize"
	ActionApprove   Action = "approve"
	ActionCapture   Action = "capture"
	ActionDecline   Action = "decline"
	ActionCancel    Action = "cancel"
	ActionExtend    Action = "extend"
	ActionComplete  Action = "complete"
	ActionRefund    Action = "refund"
	ActionExpire    Action = "expire"
)

type transitionKey struct {
	from   BookingStatus
	action Action
}

// transitions is the complete state machine: (from, action) -> to
var transitions = map[transitionKey]BookingStatus{
	{StatusPending, ActionAuthorize}: StatusHeld,
	{StatusPending, ActionDecline}:   StatusDeclined,
	{StatusPending, ActionCancel}:    StatusCanceled,
	{StatusPending, ActionExpire}:    StatusCanceled,

	{StatusHeld, ActionApprove}: StatusActive,
	{StatusHeld, ActionCapture}: StatusPaid,
	{StatusHeld, ActionDecline}: StatusDeclined,
	{StatusHeld, ActionCancel}:  StatusCanceled,
	{StatusHeld, ActionExpire}:  StatusCanceled,

	{StatusPaid, ActionExtend}:   StatusPaid,
	{StatusPaid, ActionCancel}:   StatusCanceled,
	{StatusPaid, ActionComplete}: StatusCompleted,
	{StatusPaid, ActionRefund}:   StatusRefunded,

	{StatusActive, ActionExtend}:   StatusActive,
	{StatusActive, ActionCancel}:   StatusCanceled,
	{StatusActive, ActionComplete}: StatusCompleted,
	{StatusActive, ActionRefund}:   StatusRefunded,

	{StatusCompleted, ActionRefund}: StatusRefunded,
}

// Transition returns the target status for applying action in status s
func (s BookingStatus) Transition(action Action) (BookingStatus, bool) {
	to, ok := transitions[transitionKey{from: s, action: action}]
	return to, ok
}

// Allows reports whether action is legal from s
func (s BookingStatus) Allows(action Action) bool {
	_, ok := s.Transition(action)
	return ok
}

// SourcesFor lists every status from which action is legal
func SourcesFor(action Action) []BookingStatus {
	var from []BookingStatus
	for _, s := range AllStatuses {
		if s.Allows(action) {
			from = append(from, s)
		}
	}
	return from
}

// AllStatuses in lifecycle order
var AllStatuses = []BookingStatus{
	StatusPending, StatusHeld, StatusPaid, StatusActive,
	StatusCompleted, StatusCanceled, StatusRefunded, StatusDeclined,
}

// IsValid reports whether s is a known status
func (s BookingStatus) IsValid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the booking can no longer change status except by refund
func (s BookingStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCanceled, StatusRefunded, StatusDeclined:
		return true
	}
	return false
}

// IsConfirmed reports whether payment has been captured and the booking is in effect
func (s BookingStatus) IsConfirmed() bool {
	return s == StatusPaid || s == StatusActive
}

// OccupiesSpot reports whether the status blocks other bookings
func (s BookingStatus) OccupiesSpot() bool {
	for _, c := range ConflictStatuses {
		if s == c {
			return true
		}
	}
	return false
}

func (s BookingStatus) String() string {
	return string(s)
}

// ParseBookingStatus converts a string to a BookingStatus
func ParseBookingStatus(s string) (BookingStatus, error) {
	status := BookingStatus(s)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid booking status: %s", s)
	}
	return status, nil
}
