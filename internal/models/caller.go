package models

import (
	"crypto/sha256"
	"encoding/hex"
)

// Role is the capacity a caller acts in
type Role string

const (
	RoleRenter Role = "renter"
	RoleHost   Role = "host"
	RoleGuest  Role = "guest"
)

// Caller is the authenticated identity behind a request.
// Guests carry the access token handed out when their booking was created.
type Caller struct {
	ID         string
	Role       Role
	GuestToken string
}

// IsAnonymous reports whether the caller has neither a user id nor a guest token
func (c Caller) IsAnonymous() bool {
	return c.ID == "" && c.GuestToken == ""
}

// HashGuestToken returns the stored form of a guest access token
func HashGuestToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// IsRenterOf reports whether the caller owns the booking, as the renter or its guest token holder
func (c Caller) IsRenterOf(b *Booking) bool {
	if c.ID != "" && b.RenterID != nil && *b.RenterID == c.ID {
		return true
	}
	return c.GuestToken != "" && b.IsGuest && b.GuestTokenHash != nil &&
		*b.GuestTokenHash == HashGuestToken(c.GuestToken)
}

// IsHostOf reports whether the caller owns the spot
func (c Caller) IsHostOf(s *Spot) bool {
	return c.ID != "" && s.HostID == c.ID
}

// RecipientOf returns the notification recipient of a booking's renter side
func RecipientOf(b *Booking) string {
	if b.RenterID != nil {
		return *b.RenterID
	}
	if b.GuestEmail != nil {
		return "guest:" + *b.GuestEmail
	}
	return ""
}
