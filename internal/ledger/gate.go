package ledger

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/court-reservations/internal/domain"
	"github.com/robertarktes/court-reservations/internal/observability"
)

type Eligibility struct {
	CanBook           bool               `json:"can_book"`
	PendingFinesTotal int64              `json:"pending_fines_total"`
	Fines             []domain.FineEntry `json:"fines"`
}

// Gate decides whether a customer may book, based on their pending fines.
type Gate struct {
	store  Store
	now    func() time.Time
	logger observability.Logger
}

func NewGate(store Store, logger observability.Logger) *Gate {
	return &Gate{store: store, now: time.Now, logger: logger}
}

func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// CheckCanBook sums the customer's pending fines. A store failure lets the customer through.
func (g *Gate) CheckCanBook(ctx context.Context, customerID uuid.UUID) Eligibility {
	fines, err := g.store.PendingFines(ctx, customerID)
	if err != nil {
		g.logger.WithError(err).WithField("customer", customerID).Warn("eligibility check failed, allowing booking")
		return Eligibility{CanBook: true, Fines: []domain.FineEntry{}}
	}

	var total int64
	for _, f := range fines {
		total += f.Amount
	}
	if fines == nil {
		fines = []domain.FineEntry{}
	}
	return Eligibility{CanBook: total <= 0, PendingFinesTotal: total, Fines: fines}
}

// PayFine settles fineID on behalf of customerID. Paying a settled fine again succeeds without a new row.
func (g *Gate) PayFine(ctx context.Context, fineID, customerID uuid.UUID) (domain.FineEntry, error) {
	fine, err := g.store.GetFine(ctx, fineID)
	if err != nil {
		return domain.FineEntry{}, errors.Wrap(err, "get fine")
	}
	if fine.CustomerID != customerID {
		return domain.FineEntry{}, domain.ErrNotOwner
	}
	if fine.Status == domain.FinePaid {
		return *fine, nil
	}

	now := g.now()
	settles := fine.ID
	err = g.store.SettleFine(ctx, domain.FineEntry{
		ID:            uuid.New(),
		CustomerID:    fine.CustomerID,
		BookingID:     fine.BookingID,
		Amount:        -fine.Amount,
		Reason:        domain.FineReasonSettlement,
		Status:        domain.FinePaid,
		SettlesFineID: &settles,
		PaidAt:        &now,
		CreatedAt:     now,
	})
	if err != nil && !errors.Is(err, domain.ErrConflict) {
		return domain.FineEntry{}, errors.Wrap(err, "settle fine")
	}

	fine.Status = domain.FinePaid
	if err == nil {
		fine.PaidAt = &now
	}
	return *fine, nil
}
