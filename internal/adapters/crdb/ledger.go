package crdb

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/court-reservations/internal/domain"
)

func (r *Repository) InsertCredit(ctx context.Context, e domain.CreditEntry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_credits (id, user_id, booking_id, amount, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.ID, e.CustomerID, e.BookingID, e.Amount, e.Reason, e.CreatedAt)
	return mapErr(err)
}

// DebitCredit appends a negative entry after re-reading the balance in the same
// serializable transaction, so concurrent debits cannot overdraw the customer.
func (r *Repository) DebitCredit(ctx context.Context, e domain.CreditEntry) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		var balance int64
		err := tx.QueryRow(ctx, `
			SELECT COALESCE(SUM(amount), 0)::INT8 FROM user_credits WHERE user_id = $1
		`, e.CustomerID).Scan(&balance)
		if err != nil {
			return err
		}
		if balance+e.Amount < 0 {
			return domain.ErrInsufficientCredit
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO user_credits (id, user_id, booking_id, amount, reason, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, e.ID, e.CustomerID, e.BookingID, e.Amount, e.Reason, e.CreatedAt)
		return err
	})
}

func (r *Repository) CreditBalance(ctx context.Context, customerID uuid.UUID) (int64, error) {
	var balance int64
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)::INT8 FROM user_credits WHERE user_id = $1
	`, customerID).Scan(&balance)
	return balance, err
}

func (r *Repository) InsertFine(ctx context.Context, f domain.FineEntry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_fines (id, user_id, booking_id, amount, reason, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, f.ID, f.CustomerID, f.BookingID, f.Amount, f.Reason, string(f.Status), f.CreatedAt)
	return mapErr(err)
}

const fineSelect = `
	SELECT f.id, f.user_id, f.booking_id, f.amount, f.reason, f.created_at, s.paid_at
	FROM user_fines f
	LEFT JOIN user_fines s ON s.settles_fine_id = f.id
	WHERE f.settles_fine_id IS NULL`

func scanFine(row pgx.Row) (domain.FineEntry, error) {
	var f domain.FineEntry
	if err := row.Scan(&f.ID, &f.CustomerID, &f.BookingID, &f.Amount, &f.Reason, &f.CreatedAt, &f.PaidAt); err != nil {
		return domain.FineEntry{}, err
	}
	f.Status = domain.FinePending
	if f.PaidAt != nil {
		f.Status = domain.FinePaid
	}
	return f, nil
}

func (r *Repository) PendingFines(ctx context.Context, customerID uuid.UUID) ([]domain.FineEntry, error) {
	rows, err := r.pool.Query(ctx, fineSelect+`
		AND f.user_id = $1 AND s.id IS NULL
		ORDER BY f.created_at ASC
	`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fines []domain.FineEntry
	for rows.Next() {
		f, err := scanFine(rows)
		if err != nil {
			return nil, err
		}
		fines = append(fines, f)
	}
	return fines, rows.Err()
}

func (r *Repository) GetFine(ctx context.Context, id uuid.UUID) (*domain.FineEntry, error) {
	f, err := scanFine(r.pool.QueryRow(ctx, fineSelect+` AND f.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrFineNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// SettleFine appends the settlement row. The unique settles_fine_id makes a second
// settlement of the same fine a conflict instead of a double charge.
func (r *Repository) SettleFine(ctx context.Context, s domain.FineEntry) error {
	result, err := r.pool.Exec(ctx, `
		INSERT INTO user_fines (id, user_id, booking_id, amount, reason, status, settles_fine_id, paid_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (settles_fine_id) DO NOTHING
	`, s.ID, s.CustomerID, s.BookingID, s.Amount, s.Reason, string(s.Status), s.SettlesFineID, s.PaidAt, s.CreatedAt)
	if err != nil {
		return mapErr(err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}
