// Package ledger keeps the append-only credit and fine rows of each customer.
// Balances are folds over those rows; nothing is updated in place.
package ledger

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/court-reservations/internal/domain"
	"github.com/robertarktes/court-reservations/internal/observability"
)

// Store is the persistence port of the ledger.
//
// DebitCredit must append the (negative) entry only if the live balance covers it,
// returning domain.ErrInsufficientCredit otherwise. SettleFine returns
// domain.ErrConflict when the fine already has a settlement row.
type Store interface {
	InsertCredit(ctx context.Context, e domain.CreditEntry) error
	DebitCredit(ctx context.Context, e domain.CreditEntry) error
	CreditBalance(ctx context.Context, customerID uuid.UUID) (int64, error)

	InsertFine(ctx context.Context, f domain.FineEntry) error
	PendingFines(ctx context.Context, customerID uuid.UUID) ([]domain.FineEntry, error)
	GetFine(ctx context.Context, id uuid.UUID) (*domain.FineEntry, error)
	SettleFine(ctx context.Context, settlement domain.FineEntry) error
}

const debitAttempts = 3

type Ledger struct {
	store  Store
	now    func() time.Time
	logger observability.Logger
}

func New(store Store, logger observability.Logger) *Ledger {
	return &Ledger{store: store, now: time.Now, logger: logger}
}

func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

func (l *Ledger) Balance(ctx context.Context, customerID uuid.UUID) (int64, error) {
	bal, err := l.store.CreditBalance(ctx, customerID)
	if err != nil {
		return 0, errors.Wrap(err, "credit balance")
	}
	return bal, nil
}

// Debit records the use of amount credit for bookingID. Serialization failures are retried.
func (l *Ledger) Debit(ctx context.Context, customerID, bookingID uuid.UUID, amount int64) error {
	if amount <= 0 {
		return nil
	}
	entry := domain.CreditEntry{
		ID:         uuid.New(),
		CustomerID: customerID,
		BookingID:  &bookingID,
		Amount:     -amount,
		Reason:     domain.CreditReasonBookingPayment,
		CreatedAt:  l.now(),
	}

	var err error
	for attempt := 0; attempt < debitAttempts; attempt++ {
		err = l.store.DebitCredit(ctx, entry)
		if !errors.Is(err, domain.ErrSerializationFailure) {
			break
		}
	}
	if err != nil {
		return errors.Wrapf(err, "debit %d credit for booking %s", amount, bookingID)
	}
	return nil
}

// Refund grants amount credit to the customer.
func (l *Ledger) Refund(ctx context.Context, customerID, bookingID uuid.UUID, amount int64, reason string) error {
	if amount <= 0 {
		return nil
	}
	err := l.store.InsertCredit(ctx, domain.CreditEntry{
		ID:         uuid.New(),
		CustomerID: customerID,
		BookingID:  &bookingID,
		Amount:     amount,
		Reason:     reason,
		CreatedAt:  l.now(),
	})
	if err != nil {
		return errors.Wrapf(err, "refund %d credit for booking %s", amount, bookingID)
	}
	return nil
}

// Levy appends a pending fine.
func (l *Ledger) Levy(ctx context.Context, customerID, bookingID uuid.UUID, amount int64, reason string) (domain.FineEntry, error) {
	fine := domain.FineEntry{
		ID:         uuid.New(),
		CustomerID: customerID,
		BookingID:  &bookingID,
		Amount:     amount,
		Reason:     reason,
		Status:     domain.FinePending,
		CreatedAt:  l.now(),
	}
	if amount <= 0 {
		return fine, nil
	}
	if err := l.store.InsertFine(ctx, fine); err != nil {
		return domain.FineEntry{}, errors.Wrapf(err, "levy fine for booking %s", bookingID)
	}
	return fine, nil
}
