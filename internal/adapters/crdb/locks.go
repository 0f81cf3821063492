package crdb

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/court-reservations/internal/domain"
)

// LockStore keeps slot locks in the slot_locks table, keyed by (court, time slot, date).
type LockStore struct {
	*Repository
}

func (r *Repository) Locks() *LockStore {
	return &LockStore{Repository: r}
}

func (s *LockStore) DeleteExpiredLock(ctx context.Context, key domain.SlotKey, now time.Time) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM slot_locks
		WHERE court_id = $1 AND time_slot_id = $2 AND date = $3 AND expires_at <= $4
	`, key.CourtID, key.TimeSlotID, key.Date, now)
	return err
}

func (s *LockStore) InsertLock(ctx context.Context, l domain.SlotLock) error {
	result, err := s.pool.Exec(ctx, `
		INSERT INTO slot_locks (court_id, time_slot_id, date, user_id, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (court_id, time_slot_id, date) DO NOTHING
	`, l.Key.CourtID, l.Key.TimeSlotID, l.Key.Date, l.CustomerID, l.ExpiresAt)
	if err != nil {
		return mapErr(err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (s *LockStore) GetLock(ctx context.Context, key domain.SlotKey) (*domain.SlotLock, error) {
	l := domain.SlotLock{Key: key}
	err := s.pool.QueryRow(ctx, `
		SELECT user_id, expires_at FROM slot_locks
		WHERE court_id = $1 AND time_slot_id = $2 AND date = $3
	`, key.CourtID, key.TimeSlotID, key.Date).Scan(&l.CustomerID, &l.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *LockStore) DeleteLock(ctx context.Context, key domain.SlotKey, owner uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM slot_locks
		WHERE court_id = $1 AND time_slot_id = $2 AND date = $3 AND user_id = $4
	`, key.CourtID, key.TimeSlotID, key.Date, owner)
	return err
}
