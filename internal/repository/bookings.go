package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"parkly/internal/database"
	"parkly/internal/models"

	"github.com/lib/pq"
)

const bookingColumns = `
	id, spot_id, renter_id, is_guest, guest_email, guest_token_hash, status,
	start_at, end_at, hourly_rate, subtotal, service_fee, total_amount, host_earnings,
	fee_version, currency, payment_method_id, payment_intent_id, charge_id,
	cancellation_reason, refunded_amount, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(row rowScanner, b *models.Booking) error {
	return row.Scan(
		&b.ID,
		&b.SpotID,
		&b.RenterID,
		&b.IsGuest,
		&b.GuestEmail,
		&b.GuestTokenHash,
		&b.Status,
		&b.StartAt,
		&b.EndAt,
		&b.HourlyRate,
		&b.Subtotal,
		&b.ServiceFee,
		&b.TotalAmount,
		&b.HostEarnings,
		&b.FeeVersion,
		&b.Currency,
		&b.PaymentMethodID,
		&b.PaymentIntentID,
		&b.ChargeID,
		&b.CancellationReason,
		&b.RefundedAmount,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
}

func queryBookings(rows *sql.Rows, err error) ([]models.Booking, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		var b models.Booking
		if err := scanBooking(rows, &b); err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

type BookingRepository struct {
	db *database.DB
}

func NewBookingRepository(db *database.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// Create inserts a booking. An overlapping occupying booking on the same spot is a conflict.
func (r *BookingRepository) Create(ctx context.Context, b *models.Booking) error {
	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)`

	_, err := r.db.ExecContext(ctx, query,
		b.ID,
		b.SpotID,
		b.RenterID,
		b.IsGuest,
		b.GuestEmail,
		b.GuestTokenHash,
		b.Status,
		b.StartAt,
		b.EndAt,
		b.HourlyRate,
		b.Subtotal,
		b.ServiceFee,
		b.TotalAmount,
		b.HostEarnings,
		b.FeeVersion,
		b.Currency,
		b.PaymentMethodID,
		b.PaymentIntentID,
		b.ChargeID,
		b.CancellationReason,
		b.RefundedAmount,
		b.CreatedAt,
		b.UpdatedAt,
	)
	if err != nil {
		return conflictOr("bookings.insert", err, "the spot is already booked for an overlapping time")
	}
	return nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id string) (*models.Booking, error) {
	b := &models.Booking{}
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	err := scanBooking(r.db.QueryRowContext(ctx, query, id), b)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	extensions, err := r.extensionsOf(ctx, []string{b.ID})
	if err != nil {
		return nil, err
	}
	b.ExtensionCharges = chargesOf(extensions, b.ID)
	return b, nil
}

func (r *BookingRepository) ListByRenter(ctx context.Context, renterID string) ([]models.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE renter_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, renterID)
	bookings, err := queryBookings(rows, err)
	if err != nil {
		return nil, err
	}
	return r.withExtensions(ctx, bookings)
}

func (r *BookingRepository) ListByHost(ctx context.Context, hostID string) ([]models.Booking, error) {
	query := `
		SELECT ` + prefixed("b", bookingColumns) + `
		FROM bookings b
		JOIN spots s ON s.id = b.spot_id
		WHERE s.host_id = $1
		ORDER BY b.start_at DESC`

	rows, err := r.db.QueryContext(ctx, query, hostID)
	bookings, err := queryBookings(rows, err)
	if err != nil {
		return nil, err
	}
	return r.withExtensions(ctx, bookings)
}

// UpdateStatus writes the status and payment fields of b if the stored status is still from
func (r *BookingRepository) UpdateStatus(ctx context.Context, b *models.Booking, from models.BookingStatus) (bool, error) {
	query := `
		UPDATE bookings
		SET status = $1, payment_method_id = $2, payment_intent_id = $3, charge_id = $4,
		    cancellation_reason = $5, refunded_amount = $6, updated_at = NOW()
		WHERE id = $7 AND status = $8`

	res, err := r.db.ExecContext(ctx, query,
		b.Status,
		b.PaymentMethodID,
		b.PaymentIntentID,
		b.ChargeID,
		b.CancellationReason,
		b.RefundedAmount,
		b.ID,
		from,
	)
	if err != nil {
		return false, conflictOr("bookings.update_status", err, "the spot is already booked for an overlapping time")
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// AppendExtension moves end_at and records the extension in one transaction, provided end_at is
// still previousEnd and the status is one of statuses
func (r *BookingRepository) AppendExtension(ctx context.Context, ext *models.ExtensionCharge, previousEnd, newEnd time.Time, hostEarnings int64, statuses []models.BookingStatus) (bool, error) {
	const op = "bookings.append_extension"
	applied := false

	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE bookings
			SET end_at = $1, host_earnings = host_earnings + $2, updated_at = NOW()
			WHERE id = $3 AND end_at = $4 AND status = ANY($5)`,
			newEnd, hostEarnings, ext.BookingID, previousEnd, pq.Array(statusStrings(statuses)))
		if err != nil {
			return conflictOr(op, err, "the spot is already booked for an overlapping time")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO booking_extensions (id, booking_id, intent_id, charge_id, amount, minutes, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			ext.ID, ext.BookingID, ext.IntentID, ext.ChargeID, ext.Amount, ext.Minutes, ext.CreatedAt)
		if err != nil {
			return conflictOr(op, err, "this extension was already recorded")
		}

		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// ListElapsed returns bookings in statuses whose end_at is not after now
func (r *BookingRepository) ListElapsed(ctx context.Context, now time.Time, statuses []models.BookingStatus, limit int) ([]models.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status = ANY($1) AND end_at <= $2
		ORDER BY end_at ASC
		LIMIT $3`

	rows, err := r.db.QueryWithRetry(ctx, query, pq.Array(statusStrings(statuses)), now, limit)
	return queryBookings(rows, err)
}

func (r *BookingRepository) withExtensions(ctx context.Context, bookings []models.Booking) ([]models.Booking, error) {
	if len(bookings) == 0 {
		return bookings, nil
	}

	ids := make([]string, len(bookings))
	for i, b := range bookings {
		ids[i] = b.ID
	}
	extensions, err := r.extensionsOf(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range bookings {
		bookings[i].ExtensionCharges = chargesOf(extensions, bookings[i].ID)
	}
	return bookings, nil
}

func (r *BookingRepository) extensionsOf(ctx context.Context, bookingIDs []string) (map[string][]models.ExtensionCharge, error) {
	query := `
		SELECT id, booking_id, intent_id, charge_id, amount, minutes, created_at
		FROM booking_extensions
		WHERE booking_id = ANY($1)
		ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(bookingIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to load extensions: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]models.ExtensionCharge, len(bookingIDs))
	for rows.Next() {
		var ext models.ExtensionCharge
		if err := rows.Scan(
			&ext.ID,
			&ext.BookingID,
			&ext.IntentID,
			&ext.ChargeID,
			&ext.Amount,
			&ext.Minutes,
			&ext.CreatedAt,
		); err != nil {
			return nil, err
		}
		out[ext.BookingID] = append(out[ext.BookingID], ext)
	}
	return out, rows.Err()
}

func chargesOf(extensions map[string][]models.ExtensionCharge, bookingID string) []models.ExtensionCharge {
	if charges, ok := extensions[bookingID]; ok {
		return charges
	}
	return []models.ExtensionCharge{}
}
