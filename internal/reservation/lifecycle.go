package reservation

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/court-reservations/internal/domain"
	"github.com/robertarktes/court-reservations/internal/observability"
)

type CancelResult struct {
	Booking domain.Booking
	Outcome domain.CancellationOutcome
	Fine    *domain.FineEntry
}

// Cancel cancels an active booking before its slot starts. Owners may cancel their own
// bookings, staff may cancel any. The refund or fine is written after the status change.
func (e *Engine) Cancel(ctx context.Context, bookingID uuid.UUID, actor domain.Actor) (res CancelResult, err error) {
	ctx, span := e.startSpan(ctx, "Cancel")
	defer func() { endSpan(span, err) }()

	b, err := e.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return CancelResult{}, err
	}
	if b.CustomerID != actor.ID && !actor.IsStaff() {
		return CancelResult{}, domain.ErrNotOwner
	}
	if !b.Status.IsActive() {
		return CancelResult{}, domain.ErrNotCancellable
	}

	start, _, err := e.slotWindow(ctx, b.TimeSlotID, b.Date)
	if err != nil {
		return CancelResult{}, err
	}
	until := start.Sub(e.now())
	if until <= 0 {
		return CancelResult{}, domain.ErrSlotInPast
	}

	outcome := e.cancel.Evaluate(*b, until)
	if err := e.bookings.SetBookingStatus(ctx, b.ID, []domain.BookingStatus{b.Status}, domain.StatusCancelled); err != nil {
		return CancelResult{}, err
	}
	b.Status = domain.StatusCancelled
	res = CancelResult{Booking: *b, Outcome: outcome}

	wctx := context.WithoutCancel(ctx)
	if outcome.RefundAmount > 0 {
		if err := e.ledger.Refund(wctx, b.CustomerID, b.ID, outcome.RefundAmount, outcome.RefundReason); err != nil {
			observability.LedgerWriteFailures.WithLabelValues("refund").Inc()
			e.logger.WithError(err).WithField("booking", b.ID).Error("refund failed after cancellation")
		}
	}
	if outcome.FineAmount > 0 {
		fine, err := e.ledger.Levy(wctx, b.CustomerID, b.ID, outcome.FineAmount, domain.FineReasonLateCancel)
		if err != nil {
			observability.LedgerWriteFailures.WithLabelValues("fine").Inc()
			e.logger.WithError(err).WithField("booking", b.ID).Error("fine failed after cancellation")
		} else {
			res.Fine = &fine
		}
	}

	e.decision("cancel", cancelOutcomeLabel(outcome))
	data := bookingAuditData(*b)
	data["refund_amount"] = outcome.RefundAmount
	data["fine_amount"] = outcome.FineAmount
	data["cancelled_by"] = actor.ID.String()
	e.auditAfterCommit(ctx, AuditBookingCancelled, b.CustomerID, data)
	return res, nil
}

func cancelOutcomeLabel(o domain.CancellationOutcome) string {
	switch {
	case o.FineAmount > 0:
		return "fined"
	case o.LateCancellation:
		return "late_refund"
	case o.RefundAmount > 0:
		return "refund"
	}
	return "free"
}

// MarkNoShow records that a paid customer did not turn up. Only staff may call it, and only
// once the slot has ended.
func (e *Engine) MarkNoShow(ctx context.Context, bookingID uuid.UUID, actor domain.Actor) (b *domain.Booking, err error) {
	ctx, span := e.startSpan(ctx, "MarkNoShow")
	defer func() { endSpan(span, err) }()

	if !actor.IsStaff() {
		return nil, domain.ErrForbidden
	}
	b, err = e.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !b.Status.IsPaid() {
		return nil, domain.ErrNotPaid
	}

	_, end, err := e.slotWindow(ctx, b.TimeSlotID, b.Date)
	if err != nil {
		return nil, err
	}
	if e.now().Before(end) {
		return nil, domain.ErrSlotNotEnded
	}

	if err := e.bookings.SetBookingStatus(ctx, b.ID, domain.PaidStatuses, domain.StatusNoShow); err != nil {
		if errors.Is(err, domain.ErrStaleBooking) {
			return nil, domain.ErrNotPaid
		}
		return nil, err
	}
	b.Status = domain.StatusNoShow

	e.decision("no_show", "marked")
	data := bookingAuditData(*b)
	data["marked_by"] = actor.ID.String()
	e.auditAfterCommit(ctx, AuditBookingNoShow, b.CustomerID, data)
	return b, nil
}

// PendingNoShows lists the paid bookings of today whose slot has ended within the no-show window.
func (e *Engine) PendingNoShows(ctx context.Context) ([]domain.Booking, error) {
	date := e.today()
	bookings, err := e.bookings.ListBookings(ctx, domain.BookingFilter{
		From:     date,
		To:       date,
		Statuses: domain.PaidStatuses,
	})
	if err != nil {
		return nil, errors.Wrap(err, "list bookings")
	}

	now := e.now()
	out := make([]domain.Booking, 0, len(bookings))
	for _, b := range bookings {
		_, end, err := e.slotWindow(ctx, b.TimeSlotID, b.Date)
		if err != nil {
			return nil, err
		}
		if !now.Before(end) && now.Before(end.Add(e.policy.NoShowWindow)) {
			out = append(out, b)
		}
	}
	return out, nil
}

// CompleteElapsed moves paid bookings whose no-show window has closed to completed.
// It returns how many bookings were completed.
func (e *Engine) CompleteElapsed(ctx context.Context) (n int, err error) {
	ctx, span := e.startSpan(ctx, "CompleteElapsed")
	defer func() { endSpan(span, err) }()

	bookings, err := e.bookings.ListBookings(ctx, domain.BookingFilter{
		To:       e.today(),
		Statuses: domain.PaidStatuses,
	})
	if err != nil {
		return 0, errors.Wrap(err, "list bookings")
	}

	slots, err := e.catalog.ListTimeSlots(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "list time slots")
	}
	byID := make(map[uuid.UUID]domain.TimeSlot, len(slots))
	for _, ts := range slots {
		byID[ts.ID] = ts
	}

	now := e.now()
	for _, b := range bookings {
		ts, ok := byID[b.TimeSlotID]
		if !ok {
			e.logger.WithField("booking", b.ID).Warn("booking references unknown time slot")
			continue
		}
		_, end, err := ts.Window(b.Date, e.policy.Location)
		if err != nil {
			return n, err
		}
		if now.Before(end.Add(e.policy.NoShowWindow)) {
			continue
		}

		err = e.bookings.SetBookingStatus(ctx, b.ID, domain.PaidStatuses, domain.StatusCompleted)
		if errors.Is(err, domain.ErrStaleBooking) {
			continue
		}
		if err != nil {
			return n, errors.Wrapf(err, "complete booking %s", b.ID)
		}
		n++
		b.Status = domain.StatusCompleted
		e.decision("complete", "completed")
		e.auditAfterCommit(ctx, AuditBookingCompleted, b.CustomerID, bookingAuditData(b))
	}
	return n, nil
}
