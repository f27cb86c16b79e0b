package repository

import (
	"context"
	"time"

	"parkly/internal/database"
	"parkly/internal/models"
)

type HoldRepository struct {
	db *database.DB
}

func NewHoldRepository(db *database.DB) *HoldRepository {
	return &HoldRepository{db: db}
}

// Acquire inserts the hold; the exclusion constraint rejects an overlapping hold on the same spot
func (r *HoldRepository) Acquire(ctx context.Context, hold *models.BookingHold) error {
	query := `
		INSERT INTO booking_holds (id, booking_id, spot_id, owner_key, start_at, end_at, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(ctx, query,
		hold.ID,
		hold.BookingID,
		hold.SpotID,
		hold.OwnerKey,
		hold.StartAt,
		hold.EndAt,
		hold.ExpiresAt,
		hold.CreatedAt,
	)
	if err != nil {
		return conflictOr("holds.acquire", err, "someone else is booking this spot for an overlapping time")
	}
	return nil
}

func (r *HoldRepository) ReleaseByBooking(ctx context.Context, bookingID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM booking_holds WHERE booking_id = $1`, bookingID)
	return err
}

// ListExpired returns the oldest holds whose expiry is not after now
func (r *HoldRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]models.BookingHold, error) {
	query := `
		SELECT id, booking_id, spot_id, owner_key, start_at, end_at, expires_at, created_at
		FROM booking_holds
		WHERE expires_at <= $1
		ORDER BY expires_at ASC
		LIMIT $2`

	rows, err := r.db.QueryWithRetry(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holds []models.BookingHold
	for rows.Next() {
		var h models.BookingHold
		if err := rows.Scan(
			&h.ID,
			&h.BookingID,
			&h.SpotID,
			&h.OwnerKey,
			&h.StartAt,
			&h.EndAt,
			&h.ExpiresAt,
			&h.CreatedAt,
		); err != nil {
			return nil, err
		}
		holds = append(holds, h)
	}
	return holds, rows.Err()
}
