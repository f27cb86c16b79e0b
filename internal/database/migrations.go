package database

import (
	"fmt"
	"log/slog"
)

func (db *DB) RunMigrations() error {
	slog.Info("Running database migrations...")

	migrations := []string{
		createExtensions,
		createSpotsTable,
		createBookingsTable,
		createBookingIndexes,
		createBookingHoldsTable,
		createBookingExtensionsTable,
		createAvailabilityRulesTable,
		createCalendarOverridesTable,
		createNotificationsTable,
	}

	for i, migration := range migrations {
		slog.Info("Running migration", "step", i+1)
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	slog.Info("All migrations completed successfully")
	return nil
}

// btree_gist lets exclusion constraints mix equality on spot_id with range overlap
const createExtensions = `
CREATE EXTENSION IF NOT EXISTS btree_gist;`

const createSpotsTable = `
CREATE TABLE IF NOT EXISTS spots (
    id VARCHAR(64) PRIMARY KEY,
    host_id VARCHAR(64) NOT NULL,
    title VARCHAR(255) NOT NULL,
    hourly_rate BIGINT NOT NULL CHECK (hourly_rate >= 0),
    currency VARCHAR(3) NOT NULL DEFAULT 'usd',
    timezone VARCHAR(64) NOT NULL DEFAULT 'UTC',
    instant_book BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_spots_host ON spots(host_id);`

const createBookingsTable = `
CREATE TABLE IF NOT EXISTS bookings (
    id VARCHAR(64) PRIMARY KEY,
    spot_id VARCHAR(64) NOT NULL REFERENCES spots(id),
    renter_id VARCHAR(64),
    is_guest BOOLEAN NOT NULL DEFAULT FALSE,
    guest_email VARCHAR(255),
    guest_token_hash VARCHAR(64),
    status VARCHAR(20) NOT NULL,
    start_at TIMESTAMPTZ NOT NULL,
    end_at TIMESTAMPTZ NOT NULL,
    hourly_rate BIGINT NOT NULL,
    subtotal BIGINT NOT NULL,
    service_fee BIGINT NOT NULL,
    total_amount BIGINT NOT NULL,
    host_earnings BIGINT NOT NULL,
    fee_version VARCHAR(32) NOT NULL,
    currency VARCHAR(3) NOT NULL,
    payment_method_id VARCHAR(255),
    payment_intent_id VARCHAR(255),
    charge_id VARCHAR(255),
    cancellation_reason TEXT,
    refunded_amount BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT bookings_interval_check CHECK (end_at > start_at),
    CONSTRAINT bookings_owner_check CHECK (renter_id IS NOT NULL OR guest_email IS NOT NULL),
    CONSTRAINT bookings_no_overlap EXCLUDE USING gist (
        spot_id WITH =,
        tstzrange(start_at, end_at, '[)') WITH &&
    ) WHERE (status IN ('pending', 'held', 'paid', 'active'))
);`

const createBookingIndexes = `
CREATE INDEX IF NOT EXISTS idx_bookings_renter ON bookings(renter_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_bookings_spot_start ON bookings(spot_id, start_at);
CREATE INDEX IF NOT EXISTS idx_bookings_status_end ON bookings(status, end_at);`

const createBookingHoldsTable = `
CREATE TABLE IF NOT EXISTS booking_holds (
    id VARCHAR(64) PRIMARY KEY,
    booking_id VARCHAR(64) NOT NULL,
    spot_id VARCHAR(64) NOT NULL REFERENCES spots(id),
    owner_key VARCHAR(255) NOT NULL,
    start_at TIMESTAMPTZ NOT NULL,
    end_at TIMESTAMPTZ NOT NULL,
    expires_at TIMESTAMPTZ NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT booking_holds_no_overlap EXCLUDE USING gist (
        spot_id WITH =,
        tstzrange(start_at, end_at, '[)') WITH &&
    )
);
CREATE INDEX IF NOT EXISTS idx_booking_holds_booking ON booking_holds(booking_id);
CREATE INDEX IF NOT EXISTS idx_booking_holds_expires ON booking_holds(expires_at);`

const createBookingExtensionsTable = `
CREATE TABLE IF NOT EXISTS booking_extensions (
    id VARCHAR(64) PRIMARY KEY,
    booking_id VARCHAR(64) NOT NULL REFERENCES bookings(id),
    intent_id VARCHAR(255) NOT NULL UNIQUE,
    charge_id VARCHAR(255) NOT NULL,
    amount BIGINT NOT NULL CHECK (amount >= 0),
    minutes INTEGER NOT NULL CHECK (minutes BETWEEN 15 AND 1440),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_booking_extensions_booking ON booking_extensions(booking_id, created_at);`

const createAvailabilityRulesTable = `
CREATE TABLE IF NOT EXISTS availability_rules (
    id BIGSERIAL PRIMARY KEY,
    spot_id VARCHAR(64) NOT NULL REFERENCES spots(id),
    day_of_week SMALLINT NOT NULL CHECK (day_of_week BETWEEN 0 AND 6),
    start_time TIME NOT NULL,
    end_time TIME NOT NULL,
    is_available BOOLEAN NOT NULL DEFAULT TRUE,
    custom_rate BIGINT CHECK (custom_rate >= 0),
    UNIQUE (spot_id, day_of_week)
);`

const createCalendarOverridesTable = `
CREATE TABLE IF NOT EXISTS calendar_overrides (
    id BIGSERIAL PRIMARY KEY,
    spot_id VARCHAR(64) NOT NULL REFERENCES spots(id),
    override_date DATE NOT NULL,
    is_available BOOLEAN NOT NULL,
    start_time TIME,
    end_time TIME,
    reason TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (spot_id, override_date)
);`

const createNotificationsTable = `
CREATE TABLE IF NOT EXISTS notifications (
    id VARCHAR(64) PRIMARY KEY,
    user_id VARCHAR(255) NOT NULL,
    title VARCHAR(255) NOT NULL,
    message TEXT NOT NULL,
    booking_id VARCHAR(64),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at DESC);`
