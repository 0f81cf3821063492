// Package lock provides the short-lived advisory lock taken while a payment for
// a slot is in flight.
package lock

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/court-reservations/internal/domain"
	"github.com/robertarktes/court-reservations/internal/observability"
)

const DefaultTTL = 2 * time.Minute

// Store persists slot locks. InsertLock returns domain.ErrConflict when a row for
// the key already exists, whoever holds it. GetLock returns (nil, nil) when absent.
type Store interface {
	DeleteExpiredLock(ctx context.Context, key domain.SlotKey, now time.Time) error
	InsertLock(ctx context.Context, l domain.SlotLock) error
	GetLock(ctx context.Context, key domain.SlotKey) (*domain.SlotLock, error)
	DeleteLock(ctx context.Context, key domain.SlotKey, owner uuid.UUID) error
}

type Manager struct {
	store  Store
	ttl    time.Duration
	now    func() time.Time
	logger observability.Logger
}

func NewManager(store Store, ttl time.Duration, logger observability.Logger) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{store: store, ttl: ttl, now: time.Now, logger: logger}
}

// WithClock replaces the time source. Used by tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Acquire takes the lock on key for customerID. Re-acquiring a lock the customer
// already holds succeeds and leaves the original expiry in place. A lock held by
// someone else yields domain.ErrSlotLocked.
func (m *Manager) Acquire(ctx context.Context, key domain.SlotKey, customerID uuid.UUID) error {
	// one extra round covers a row that expired or vanished between insert and read
	for attempt := 0; attempt < 2; attempt++ {
		now := m.now()
		if err := m.store.DeleteExpiredLock(ctx, key, now); err != nil {
			return errors.Wrap(err, "sweep expired lock")
		}

		err := m.store.InsertLock(ctx, domain.NewSlotLock(key, customerID, m.ttl, now))
		if err == nil {
			observability.SlotLockAcquisitions.WithLabelValues("acquired").Inc()
			return nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return errors.Wrap(err, "insert lock")
		}

		held, err := m.store.GetLock(ctx, key)
		if err != nil {
			return errors.Wrap(err, "read lock")
		}
		if held == nil || held.Expired(now) {
			continue
		}
		if held.CustomerID == customerID {
			observability.SlotLockAcquisitions.WithLabelValues("reentered").Inc()
			return nil
		}
		observability.SlotLockAcquisitions.WithLabelValues("contended").Inc()
		m.logger.WithFields(map[string]interface{}{
			"slot":     key.String(),
			"customer": customerID,
			"holder":   held.CustomerID,
		}).Debug("slot lock held by another customer")
		return domain.ErrSlotLocked
	}
	observability.SlotLockAcquisitions.WithLabelValues("contended").Inc()
	return domain.ErrSlotLocked
}

// Release deletes the lock if customerID holds it. Releasing a missing lock is a no-op.
func (m *Manager) Release(ctx context.Context, key domain.SlotKey, customerID uuid.UUID) error {
	if err := m.store.DeleteLock(ctx, key, customerID); err != nil {
		return errors.Wrap(err, "release lock")
	}
	return nil
}
