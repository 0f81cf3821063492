package crdb

import (
	"context"

	"github.com/cockroachdb/errors"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS bookings (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL,
		court_id UUID NOT NULL,
		time_slot_id UUID NOT NULL,
		date DATE NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('unpaid', 'paid', 'confirmed', 'completed', 'no_show', 'cancelled', 'cancelled_by_override')),
		payment_method TEXT NOT NULL DEFAULT '',
		payment_status TEXT NOT NULL DEFAULT 'pending',
		total_amount INT8 NOT NULL,
		credit_used INT8 NOT NULL DEFAULT 0,
		overridden_booking_id UUID,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS bookings_active_slot_key
		ON bookings (court_id, time_slot_id, date)
		WHERE status IN ('unpaid', 'paid', 'confirmed')`,
	`CREATE INDEX IF NOT EXISTS bookings_user_date ON bookings (user_id, date DESC)`,
	`CREATE INDEX IF NOT EXISTS bookings_date_status ON bookings (date, status)`,
	`CREATE TABLE IF NOT EXISTS slot_locks (
		court_id UUID NOT NULL,
		time_slot_id UUID NOT NULL,
		date DATE NOT NULL,
		user_id UUID NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (court_id, time_slot_id, date)
	)`,
	`CREATE TABLE IF NOT EXISTS user_credits (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL,
		booking_id UUID,
		amount INT8 NOT NULL,
		reason TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS user_credits_user ON user_credits (user_id)`,
	`CREATE TABLE IF NOT EXISTS user_fines (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL,
		booking_id UUID,
		amount INT8 NOT NULL,
		reason TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('pending', 'paid')),
		settles_fine_id UUID UNIQUE,
		paid_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS user_fines_user ON user_fines (user_id)`,
	`CREATE TABLE IF NOT EXISTS outbox (
		id UUID PRIMARY KEY,
		aggregate_type TEXT NOT NULL,
		aggregate_id UUID NOT NULL,
		event_type TEXT NOT NULL,
		payload_json JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		published_at TIMESTAMPTZ,
		status TEXT NOT NULL CHECK (status IN ('NEW', 'PUBLISHED', 'FAILED')),
		dedupe_key TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS outbox_status_created ON outbox (status, created_at)`,
}

// EnsureSchema creates the tables and indexes the repository relies on.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return errors.Wrap(err, "ensure schema")
		}
	}
	return nil
}
