package models

import "time"

// NATS subjects
const (
	SubjectBookingNotification = "booking.notification"
	SubjectBookingTransition   = "booking.transition"
)

// NotificationEvent asks the consumer to deliver a message to a user
type NotificationEvent struct {
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	BookingID string    `json:"booking_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// BookingTransitionEvent records a committed status change
type BookingTransitionEvent struct {
	BookingID string        `json:"booking_id"`
	SpotID    string        `json:"spot_id"`
	Action    Action        `json:"action"`
	From      BookingStatus `json:"from"`
	To        BookingStatus `json:"to"`
	Reason    string        `json:"reason,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}
