package crdb

import (
	"context"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robertarktes/court-reservations/internal/domain"
	"github.com/robertarktes/court-reservations/internal/observability"
)

const (
	SerializationFailureCode = "40001"
	UniqueViolationCode      = "23505"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repository) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	started := time.Now()
	defer func() { observability.DBTxDuration.Observe(time.Since(started).Seconds()) }()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, "SET TRANSACTION ISOLATION LEVEL SERIALIZABLE")
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		return mapErr(err)
	}
	return mapErr(tx.Commit(ctx))
}

func mapErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case SerializationFailureCode:
			return domain.ErrSerializationFailure
		case UniqueViolationCode:
			return errors.Mark(err, domain.ErrConflict)
		}
	}
	return err
}

const bookingColumns = `id, user_id, court_id, time_slot_id, date, status, payment_method,
	payment_status, total_amount, credit_used, overridden_booking_id, created_at`

func scanBooking(row pgx.Row) (domain.Booking, error) {
	var (
		b                     domain.Booking
		status, method, payst string
	)
	err := row.Scan(&b.ID, &b.CustomerID, &b.CourtID, &b.TimeSlotID, &b.Date, &status, &method,
		&payst, &b.TotalAmount, &b.CreditUsed, &b.OverriddenBookingID, &b.CreatedAt)
	if err != nil {
		return domain.Booking{}, err
	}
	b.Status = domain.BookingStatus(status)
	b.PaymentMethod = domain.PaymentMethod(method)
	b.PaymentStatus = domain.PaymentStatus(payst)
	b.Date = domain.DateOnly(b.Date)
	return b, nil
}

func insertBooking(ctx context.Context, q interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
}, b domain.Booking) error {
	result, err := q.Exec(ctx, `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (court_id, time_slot_id, date) WHERE status IN ('unpaid', 'paid', 'confirmed') DO NOTHING
	`, b.ID, b.CustomerID, b.CourtID, b.TimeSlotID, b.Date, string(b.Status), string(b.PaymentMethod),
		string(b.PaymentStatus), b.TotalAmount, b.CreditUsed, b.OverriddenBookingID, b.CreatedAt)
	if err != nil {
		return mapErr(err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *Repository) InsertBooking(ctx context.Context, b domain.Booking) error {
	return insertBooking(ctx, r.pool, b)
}

func (r *Repository) GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	b, err := scanBooking(r.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *Repository) ActiveBookingForSlot(ctx context.Context, key domain.SlotKey) (*domain.Booking, error) {
	b, err := scanBooking(r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE court_id = $1 AND time_slot_id = $2 AND date = $3
		  AND status IN ('unpaid', 'paid', 'confirmed')
		LIMIT 1
	`, key.CourtID, key.TimeSlotID, key.Date))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *Repository) ListBookings(ctx context.Context, f domain.BookingFilter) ([]domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE true`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.CustomerID != nil {
		query += ` AND user_id = ` + arg(*f.CustomerID)
	}
	if f.CourtID != nil {
		query += ` AND court_id = ` + arg(*f.CourtID)
	}
	if !f.From.IsZero() {
		query += ` AND date >= ` + arg(domain.DateOnly(f.From))
	}
	if !f.To.IsZero() {
		query += ` AND date <= ` + arg(domain.DateOnly(f.To))
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		query += ` AND status = ANY(` + arg(statuses) + `)`
	}
	query += ` ORDER BY date DESC, created_at DESC`
	if f.Limit > 0 {
		query += ` LIMIT ` + arg(f.Limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *Repository) ReplaceUnpaidBooking(ctx context.Context, displacedID uuid.UUID, b domain.Booking) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			UPDATE bookings SET status = 'cancelled_by_override'
			WHERE id = $1 AND status = 'unpaid'
		`, displacedID)
		if err != nil {
			return err
		}
		if result.RowsAffected() == 0 {
			return domain.ErrStaleBooking
		}
		return insertBooking(ctx, tx, b)
	})
}

func (r *Repository) SetBookingStatus(ctx context.Context, id uuid.UUID, from []domain.BookingStatus, to domain.BookingStatus) error {
	expected := make([]string, len(from))
	for i, s := range from {
		expected[i] = string(s)
	}
	result, err := r.pool.Exec(ctx, `
		UPDATE bookings SET status = $3 WHERE id = $1 AND status = ANY($2)
	`, id, expected, string(to))
	if err != nil {
		return mapErr(err)
	}
	if result.RowsAffected() == 0 {
		return r.staleOrMissing(ctx, id)
	}
	return nil
}

func (r *Repository) MarkBookingPaid(ctx context.Context, id uuid.UUID, method domain.PaymentMethod, creditUsed int64) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE bookings
		SET status = 'paid', payment_status = 'completed', payment_method = $2, credit_used = $3
		WHERE id = $1 AND status = 'unpaid'
	`, id, string(method), creditUsed)
	if err != nil {
		return mapErr(err)
	}
	if result.RowsAffected() == 0 {
		return r.staleOrMissing(ctx, id)
	}
	return nil
}

func (r *Repository) staleOrMissing(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrBookingNotFound
	}
	return domain.ErrStaleBooking
}
