package reservation

import (
	"context"

	"github.com/google/uuid"
	"github.com/robertarktes/court-reservations/internal/domain"
	"github.com/robertarktes/court-reservations/internal/ledger"
)

func (e *Engine) CheckCanBook(ctx context.Context, customerID uuid.UUID) ledger.Eligibility {
	return e.gate.CheckCanBook(ctx, customerID)
}

func (e *Engine) CreditBalance(ctx context.Context, customerID uuid.UUID) (int64, error) {
	return e.ledger.Balance(ctx, customerID)
}

// ListCustomerBookings returns the customer's bookings, newest date first.
func (e *Engine) ListCustomerBookings(ctx context.Context, customerID uuid.UUID, limit int) ([]domain.Booking, error) {
	return e.bookings.ListBookings(ctx, domain.BookingFilter{CustomerID: &customerID, Limit: limit})
}

// PayFine settles one fine of the customer.
func (e *Engine) PayFine(ctx context.Context, fineID, customerID uuid.UUID) (fine domain.FineEntry, err error) {
	ctx, span := e.startSpan(ctx, "PayFine")
	defer func() { endSpan(span, err) }()

	fine, err = e.gate.PayFine(ctx, fineID, customerID)
	if err != nil {
		return domain.FineEntry{}, err
	}
	e.auditAfterCommit(ctx, AuditFinePaid, customerID, map[string]interface{}{
		"fine_id": fine.ID.String(),
		"amount":  fine.Amount,
	})
	return fine, nil
}

// BookingHistory returns the audit trail of a booking. Staff only.
func (e *Engine) BookingHistory(ctx context.Context, bookingID uuid.UUID, actor domain.Actor) (history []domain.AuditRecord, err error) {
	ctx, span := e.startSpan(ctx, "BookingHistory")
	defer func() { endSpan(span, err) }()

	if !actor.IsStaff() {
		return nil, domain.ErrForbidden
	}
	if _, err := e.bookings.GetBooking(ctx, bookingID); err != nil {
		return nil, err
	}
	if e.audit == nil {
		return []domain.AuditRecord{}, nil
	}
	return e.audit.BookingHistory(ctx, bookingID)
}
