package repository

import (
	"context"
	"database/sql"
	"time"

	"parkly/internal/database"
	"parkly/internal/models"

	"github.com/lib/pq"
)

const (
	ruleColumns     = `id, spot_id, day_of_week, start_time, end_time, is_available, custom_rate`
	overrideColumns = `id, spot_id, to_char(override_date, 'YYYY-MM-DD'), is_available, start_time, end_time, reason, created_at`
)

// CalendarRepository stores weekly rules and date overrides, and answers the
// booking range queries of the availability engine
type CalendarRepository struct {
	db *database.DB
}

func NewCalendarRepository(db *database.DB) *CalendarRepository {
	return &CalendarRepository{db: db}
}

func scanRule(row rowScanner, r *models.AvailabilityRule) error {
	return row.Scan(
		&r.ID,
		&r.SpotID,
		&r.DayOfWeek,
		&r.StartTime,
		&r.EndTime,
		&r.IsAvailable,
		&r.CustomRate,
	)
}

func scanOverride(row rowScanner, o *models.CalendarOverride) error {
	return row.Scan(
		&o.ID,
		&o.SpotID,
		&o.OverrideDate,
		&o.IsAvailable,
		&o.StartTime,
		&o.EndTime,
		&o.Reason,
		&o.CreatedAt,
	)
}

// normalizeOverride maps a stored 23:59 end back to the end of the day
func normalizeOverride(o *models.CalendarOverride) {
	if o.EndTime != nil {
		end := o.EndTime.Normalize()
		o.EndTime = &end
	}
}

func (r *CalendarRepository) GetRule(ctx context.Context, spotID string, weekday time.Weekday) (*models.AvailabilityRule, error) {
	rule := &models.AvailabilityRule{}
	query := `SELECT ` + ruleColumns + ` FROM availability_rules WHERE spot_id = $1 AND day_of_week = $2`

	err := scanRule(r.db.QueryRowContext(ctx, query, spotID, int(weekday)), rule)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	rule.EndTime = rule.EndTime.Normalize()
	return rule, nil
}

func (r *CalendarRepository) GetOverride(ctx context.Context, spotID, date string) (*models.CalendarOverride, error) {
	override := &models.CalendarOverride{}
	query := `SELECT ` + overrideColumns + ` FROM calendar_overrides WHERE spot_id = $1 AND override_date = $2`

	err := scanOverride(r.db.QueryRowContext(ctx, query, spotID, date), override)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	normalizeOverride(override)
	return override, nil
}

// FindBookingsInRange returns bookings of the spots in statuses that overlap iv, ordered by start
func (r *CalendarRepository) FindBookingsInRange(ctx context.Context, spotIDs []string, iv models.Interval, statuses []models.BookingStatus) ([]models.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE spot_id = ANY($1)
		  AND status = ANY($2)
		  AND start_at < $4
		  AND end_at > $3
		ORDER BY start_at ASC`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(spotIDs), pq.Array(statusStrings(statuses)), iv.Start, iv.End)
	return queryBookings(rows, err)
}

func (r *CalendarRepository) ListRules(ctx context.Context, spotID string) ([]models.AvailabilityRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM availability_rules WHERE spot_id = $1 ORDER BY day_of_week`

	rows, err := r.db.QueryContext(ctx, query, spotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := []models.AvailabilityRule{}
	for rows.Next() {
		var rule models.AvailabilityRule
		if err := scanRule(rows, &rule); err != nil {
			return nil, err
		}
		rule.EndTime = rule.EndTime.Normalize()
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// ReplaceRules swaps every rule of the spot in one transaction
func (r *CalendarRepository) ReplaceRules(ctx context.Context, spotID string, rules []models.AvailabilityRule) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM availability_rules WHERE spot_id = $1`, spotID); err != nil {
			return err
		}

		for i := range rules {
			rule := &rules[i]
			err := tx.QueryRowContext(ctx, `
				INSERT INTO availability_rules (spot_id, day_of_week, start_time, end_time, is_available, custom_rate)
				VALUES ($1, $2, $3, $4, $5, $6)
				RETURNING id`,
				spotID, rule.DayOfWeek, rule.StartTime, rule.EndTime, rule.IsAvailable, rule.CustomRate,
			).Scan(&rule.ID)
			if err != nil {
				return conflictOr("calendar.replace_rules", err, "only one rule per day is allowed")
			}
		}
		return nil
	})
}

func (r *CalendarRepository) ListOverrides(ctx context.Context, spotID string) ([]models.CalendarOverride, error) {
	query := `SELECT ` + overrideColumns + ` FROM calendar_overrides WHERE spot_id = $1 ORDER BY override_date`

	rows, err := r.db.QueryContext(ctx, query, spotID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	overrides := []models.CalendarOverride{}
	for rows.Next() {
		var o models.CalendarOverride
		if err := scanOverride(rows, &o); err != nil {
			return nil, err
		}
		normalizeOverride(&o)
		overrides = append(overrides, o)
	}
	return overrides, rows.Err()
}

// ReplaceOverride deletes the override of the same spot and date and inserts o
func (r *CalendarRepository) ReplaceOverride(ctx context.Context, o *models.CalendarOverride) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM calendar_overrides WHERE spot_id = $1 AND override_date = $2`,
			o.SpotID, o.OverrideDate); err != nil {
			return err
		}

		err := tx.QueryRowContext(ctx, `
			INSERT INTO calendar_overrides (spot_id, override_date, is_available, start_time, end_time, reason, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			o.SpotID, o.OverrideDate, o.IsAvailable, o.StartTime, o.EndTime, o.Reason, o.CreatedAt,
		).Scan(&o.ID)
		if err != nil {
			return conflictOr("calendar.replace_override", err, "the override was changed concurrently; try again")
		}
		return nil
	})
}

func (r *CalendarRepository) DeleteOverride(ctx context.Context, spotID, date string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM calendar_overrides WHERE spot_id = $1 AND override_date = $2`, spotID, date)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
