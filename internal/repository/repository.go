package repository

import (
	"errors"
	"strings"

	"parkly/internal/database"
	apperr "parkly/internal/errors"
	"parkly/internal/models"

	"github.com/lib/pq"
)

// postgres error codes raised by the exclusivity constraints
const (
	uniqueViolation    = "23505"
	exclusionViolation = "23P01"
)

type Repositories struct {
	Bookings      *BookingRepository
	Holds         *HoldRepository
	Spots         *SpotRepository
	Calendar      *CalendarRepository
	Notifications *NotificationRepository
}

func NewRepositories(db *database.DB) *Repositories {
	return &Repositories{
		Bookings:      NewBookingRepository(db),
		Holds:         NewHoldRepository(db),
		Spots:         NewSpotRepository(db),
		Calendar:      NewCalendarRepository(db),
		Notifications: NewNotificationRepository(db),
	}
}

// conflictOr turns a constraint violation into a conflict error and returns other errors unchanged
func conflictOr(op string, err error, message string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case uniqueViolation, exclusionViolation:
			return apperr.Conflict(op, err, "%s", message)
		}
	}
	return err
}

func statusStrings(statuses []models.BookingStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// prefixed qualifies every column of a comma separated list with alias
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
