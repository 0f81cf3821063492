package reservation

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/court-reservations/internal/domain"
)

type CreateRequest struct {
	CustomerID    uuid.UUID
	CourtID       uuid.UUID
	TimeSlotID    uuid.UUID
	Date          time.Time
	IsPaying      bool
	PaymentMethod domain.PaymentMethod
	UseCredit     bool
	MobileMethod  domain.PaymentMethod
}

func (r CreateRequest) validate() error {
	switch {
	case r.CustomerID == uuid.Nil:
		return errors.Mark(errors.New("customer id is required"), domain.ErrInvalidInput)
	case r.CourtID == uuid.Nil:
		return errors.Mark(errors.New("court id is required"), domain.ErrInvalidInput)
	case r.TimeSlotID == uuid.Nil:
		return errors.Mark(errors.New("time slot id is required"), domain.ErrInvalidInput)
	case r.Date.IsZero():
		return errors.Mark(errors.New("date is required"), domain.ErrInvalidInput)
	case r.PaymentMethod != "" && !r.PaymentMethod.Valid():
		return errors.Mark(errors.Newf("unknown payment method %q", r.PaymentMethod), domain.ErrInvalidInput)
	}
	return nil
}

// CreateBooking books a slot, or overrides another customer's unpaid hold when paying.
func (e *Engine) CreateBooking(ctx context.Context, req CreateRequest) (res Result, err error) {
	ctx, span := e.startSpan(ctx, "CreateBooking")
	defer func() { endSpan(span, err) }()

	if err := req.validate(); err != nil {
		return Result{}, err
	}

	if elig := e.gate.CheckCanBook(ctx, req.CustomerID); !elig.CanBook {
		e.decision("create", "pending_fines")
		return Result{}, domain.ErrPendingFines
	}

	court, err := e.catalog.GetCourt(ctx, req.CourtID)
	if err != nil {
		return Result{}, err
	}
	if !court.Active {
		return Result{}, domain.ErrCourtNotFound
	}

	key := domain.NewSlotKey(req.CourtID, req.TimeSlotID, req.Date)
	start, _, err := e.slotWindow(ctx, req.TimeSlotID, key.Date)
	if err != nil {
		return Result{}, err
	}
	if !e.now().Before(start) {
		return Result{}, domain.ErrSlotInPast
	}

	if req.IsPaying {
		if err := e.locks.Acquire(ctx, key, req.CustomerID); err != nil {
			e.decision("create", "slot_locked")
			return Result{}, err
		}
		defer func() {
			if err := e.locks.Release(context.WithoutCancel(ctx), key, req.CustomerID); err != nil {
				e.logger.WithError(err).WithField("slot", key.String()).Error("failed to release slot lock")
			}
		}()
	}

	for attempt := 0; attempt < e.policy.MaxDecisionAttempts; attempt++ {
		existing, err := e.bookings.ActiveBookingForSlot(ctx, key)
		if err != nil {
			return Result{}, errors.Wrap(err, "read slot")
		}

		res, err := e.decide(ctx, req, *court, key, existing)
		if errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrStaleBooking) ||
			errors.Is(err, domain.ErrSerializationFailure) {
			e.logger.WithFields(map[string]interface{}{
				"slot":    key.String(),
				"attempt": attempt + 1,
			}).Debug("lost slot write race, deciding again")
			continue
		}
		return res, err
	}
	e.decision("create", "contended")
	return Result{}, domain.ErrSlotAlreadyBooked
}

func (e *Engine) decide(ctx context.Context, req CreateRequest, court domain.Court, key domain.SlotKey, existing *domain.Booking) (Result, error) {
	switch {
	case existing == nil && !req.IsPaying:
		return e.createUnpaid(ctx, req, court, key)

	case existing == nil:
		return e.createPaid(ctx, req, court, key)

	case existing.CustomerID == req.CustomerID && existing.Status.IsPaid():
		e.decision("create", "already_paid_by_self")
		return Result{}, domain.ErrAlreadyPaidBySelf

	case existing.CustomerID == req.CustomerID:
		e.decision("create", "own_unpaid_booking")
		return Result{Booking: existing, OwnUnpaidBooking: true}, nil

	case existing.Status.IsPaid() || !req.IsPaying:
		e.decision("create", "slot_already_booked")
		return Result{}, domain.ErrSlotAlreadyBooked

	default:
		return e.override(ctx, req, court, key, *existing)
	}
}

func (e *Engine) createUnpaid(ctx context.Context, req CreateRequest, court domain.Court, key domain.SlotKey) (Result, error) {
	b := domain.NewUnpaidBooking(req.CustomerID, key, court.Price, e.now())
	if err := e.bookings.InsertBooking(ctx, b); err != nil {
		return Result{}, err
	}

	e.decision("create", "unpaid")
	e.auditAfterCommit(ctx, AuditBookingCreated, b.CustomerID, bookingAuditData(b))
	return Result{Booking: &b}, nil
}

func (e *Engine) createPaid(ctx context.Context, req CreateRequest, court domain.Court, key domain.SlotKey) (Result, error) {
	bd, err := e.breakdown(ctx, req.CustomerID, court.Price, payment{
		method:    req.PaymentMethod,
		useCredit: req.UseCredit,
		mobile:    req.MobileMethod,
	})
	if err != nil {
		return Result{}, err
	}

	b := domain.NewPaidBooking(req.CustomerID, key, bd, e.now())
	if err := e.bookings.InsertBooking(ctx, b); err != nil {
		return Result{}, err
	}

	e.decision("create", "paid")
	e.debitAfterCommit(ctx, b)
	e.auditAfterCommit(ctx, AuditBookingCreated, b.CustomerID, bookingAuditData(b))
	return Result{Booking: &b, Breakdown: &bd}, nil
}

func (e *Engine) override(ctx context.Context, req CreateRequest, court domain.Court, key domain.SlotKey, displaced domain.Booking) (Result, error) {
	bd, err := e.breakdown(ctx, req.CustomerID, court.Price, payment{
		method:    req.PaymentMethod,
		useCredit: req.UseCredit,
		mobile:    req.MobileMethod,
	})
	if err != nil {
		return Result{}, err
	}

	b := domain.NewPaidBooking(req.CustomerID, key, bd, e.now())
	displacedID := displaced.ID
	b.OverriddenBookingID = &displacedID
	if err := e.bookings.ReplaceUnpaidBooking(ctx, displaced.ID, b); err != nil {
		return Result{}, err
	}
	displaced.Status = domain.StatusCancelledByOverride

	e.decision("create", "override")
	e.debitAfterCommit(ctx, b)
	e.notifyAfterCommit(ctx, overrideNotification(displaced, court, b))
	e.auditAfterCommit(ctx, AuditBookingOverridden, displaced.CustomerID, bookingAuditData(displaced))
	e.auditAfterCommit(ctx, AuditBookingCreated, b.CustomerID, bookingAuditData(b))
	return Result{Booking: &b, Breakdown: &bd, Overridden: &displaced}, nil
}

func overrideNotification(displaced domain.Booking, court domain.Court, by domain.Booking) domain.Notification {
	return domain.Notification{
		CustomerID: displaced.CustomerID,
		Type:       domain.NotificationBookingOverridden,
		Title:      "Booking cancelled",
		Message: fmt.Sprintf("Your unpaid booking of %s on %s was taken by a paying customer.",
			court.Name, domain.FormatDate(displaced.Date)),
		Data: map[string]any{
			"booking_id":     displaced.ID.String(),
			"new_booking_id": by.ID.String(),
			"court_id":       displaced.CourtID.String(),
			"time_slot_id":   displaced.TimeSlotID.String(),
			"date":           domain.FormatDate(displaced.Date),
		},
	}
}
