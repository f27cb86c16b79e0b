package repository

import (
	"context"
	"database/sql"

	"parkly/internal/database"
	"parkly/internal/models"
)

type SpotRepository struct {
	db *database.DB
}

func NewSpotRepository(db *database.DB) *SpotRepository {
	return &SpotRepository{db: db}
}

func (r *SpotRepository) GetByID(ctx context.Context, id string) (*models.Spot, error) {
	spot := &models.Spot{}
	query := `
		SELECT id, host_id, title, hourly_rate, currency, timezone, instant_book, created_at
		FROM spots
		WHERE id = $1`

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&spot.ID,
		&spot.HostID,
		&spot.Title,
		&spot.HourlyRate,
		&spot.Currency,
		&spot.Timezone,
		&spot.InstantBook,
		&spot.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}

	return spot, err
}
