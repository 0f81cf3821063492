// Package reservation owns the booking lifecycle: creation, override, payment,
// cancellation, no-show and completion.
package reservation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/court-reservations/internal/availability"
	"github.com/robertarktes/court-reservations/internal/domain"
	"github.com/robertarktes/court-reservations/internal/ledger"
	"github.com/robertarktes/court-reservations/internal/lock"
	"github.com/robertarktes/court-reservations/internal/notify"
	"github.com/robertarktes/court-reservations/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// BookingStore is the persistence port for bookings.
//
// InsertBooking returns domain.ErrConflict when the slot already has an active booking.
// ReplaceUnpaidBooking moves displacedID from unpaid to cancelled_by_override and inserts b,
// atomically; it returns domain.ErrStaleBooking when displacedID is no longer unpaid.
// SetBookingStatus and MarkBookingPaid only touch a booking in one of the expected statuses
// and return domain.ErrStaleBooking otherwise.
type BookingStore interface {
	GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	ActiveBookingForSlot(ctx context.Context, key domain.SlotKey) (*domain.Booking, error)
	ListBookings(ctx context.Context, f domain.BookingFilter) ([]domain.Booking, error)
	InsertBooking(ctx context.Context, b domain.Booking) error
	ReplaceUnpaidBooking(ctx context.Context, displacedID uuid.UUID, b domain.Booking) error
	SetBookingStatus(ctx context.Context, id uuid.UUID, from []domain.BookingStatus, to domain.BookingStatus) error
	MarkBookingPaid(ctx context.Context, id uuid.UUID, method domain.PaymentMethod, creditUsed int64) error
}

// AuditTrail records transitions. BookingHistory returns them oldest first.
type AuditTrail interface {
	LogEvent(ctx context.Context, action string, userID uuid.UUID, data map[string]interface{}) error
	BookingHistory(ctx context.Context, bookingID uuid.UUID) ([]domain.AuditRecord, error)
}

const (
	AuditBookingCreated    = "booking.created"
	AuditBookingOverridden = "booking.overridden"
	AuditBookingPaid       = "booking.paid"
	AuditBookingCancelled  = "booking.cancelled"
	AuditBookingNoShow     = "booking.no_show"
	AuditBookingCompleted  = "booking.completed"
	AuditFinePaid          = "fine.paid"
)

type Policy struct {
	LateCancelWindow     time.Duration
	NoShowWindow         time.Duration
	DefaultPaymentMethod domain.PaymentMethod
	Location             *time.Location
	// MaxDecisionAttempts bounds how often a create re-reads the slot after losing a write race.
	MaxDecisionAttempts int
}

func (p Policy) withDefaults() Policy {
	if p.LateCancelWindow <= 0 {
		p.LateCancelWindow = domain.DefaultLateCancelWindow
	}
	if p.NoShowWindow <= 0 {
		p.NoShowWindow = 2 * time.Hour
	}
	if p.DefaultPaymentMethod == "" {
		p.DefaultPaymentMethod = domain.MethodOrangeMoney
	}
	if p.Location == nil {
		p.Location = time.UTC
	}
	if p.MaxDecisionAttempts <= 0 {
		p.MaxDecisionAttempts = 3
	}
	return p
}

type Deps struct {
	Bookings BookingStore
	Catalog  availability.Catalog
	Ledger   *ledger.Ledger
	Gate     *ledger.Gate
	Locks    *lock.Manager
	Notifier notify.Dispatcher
	Audit    AuditTrail
	Logger   observability.Logger
	Now      func() time.Time
}

type Engine struct {
	bookings BookingStore
	catalog  availability.Catalog
	ledger   *ledger.Ledger
	gate     *ledger.Gate
	locks    *lock.Manager
	notifier notify.Dispatcher
	audit    AuditTrail
	logger   observability.Logger
	now      func() time.Time
	policy   Policy
	cancel   domain.CancellationPolicy
	tracer   trace.Tracer
}

func NewEngine(d Deps, p Policy) *Engine {
	p = p.withDefaults()
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		bookings: d.Bookings,
		catalog:  d.Catalog,
		ledger:   d.Ledger,
		gate:     d.Gate,
		locks:    d.Locks,
		notifier: d.Notifier,
		audit:    d.Audit,
		logger:   d.Logger,
		now:      now,
		policy:   p,
		cancel:   domain.CancellationPolicy{LateWindow: p.LateCancelWindow},
		tracer:   otel.Tracer("reservation"),
	}
}

// Result is the outcome of a create or pay call. OwnUnpaidBooking is a redirect marker,
// not a failure: the caller already holds an unpaid booking for the slot and should pay it.
type Result struct {
	Booking          *domain.Booking
	Breakdown        *domain.Breakdown
	Overridden       *domain.Booking
	OwnUnpaidBooking bool
}

func (e *Engine) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, "reservation."+name)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, domain.Code(err))
	}
	span.End()
}

func (e *Engine) decision(op, outcome string) {
	observability.BookingDecisions.WithLabelValues(op, outcome).Inc()
}

func (e *Engine) slotWindow(ctx context.Context, timeSlotID uuid.UUID, date time.Time) (start, end time.Time, err error) {
	ts, err := e.catalog.GetTimeSlot(ctx, timeSlotID)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return ts.Window(date, e.policy.Location)
}

// today is the current calendar day in the venue's timezone.
func (e *Engine) today() time.Time {
	return domain.DateOnly(e.now().In(e.policy.Location))
}

// Post-commit side effects run on a context detached from the caller so a dropped
// client connection does not skip them.

func (e *Engine) debitAfterCommit(ctx context.Context, b domain.Booking) {
	if b.CreditUsed <= 0 {
		return
	}
	if err := e.ledger.Debit(context.WithoutCancel(ctx), b.CustomerID, b.ID, b.CreditUsed); err != nil {
		observability.LedgerWriteFailures.WithLabelValues("credit_debit").Inc()
		e.logger.WithError(err).WithFields(map[string]interface{}{
			"booking":  b.ID,
			"customer": b.CustomerID,
			"amount":   b.CreditUsed,
		}).Error("credit debit failed after booking commit")
	}
}

func (e *Engine) notifyAfterCommit(ctx context.Context, n domain.Notification) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.Dispatch(context.WithoutCancel(ctx), n); err != nil {
		observability.NotificationFailures.Inc()
		e.logger.WithError(err).WithFields(map[string]interface{}{
			"customer": n.CustomerID,
			"type":     n.Type,
		}).Error("notification dispatch failed")
	}
}

func (e *Engine) auditAfterCommit(ctx context.Context, action string, userID uuid.UUID, data map[string]interface{}) {
	if e.audit == nil {
		return
	}
	if err := e.audit.LogEvent(context.WithoutCancel(ctx), action, userID, data); err != nil {
		e.logger.WithError(err).WithField("action", action).Error("audit write failed")
	}
}

func bookingAuditData(b domain.Booking) map[string]interface{} {
	data := map[string]interface{}{
		"booking_id":     b.ID.String(),
		"court_id":       b.CourtID.String(),
		"time_slot_id":   b.TimeSlotID.String(),
		"date":           domain.FormatDate(b.Date),
		"status":         string(b.Status),
		"total_amount":   b.TotalAmount,
		"credit_used":    b.CreditUsed,
		"payment_method": string(b.PaymentMethod),
	}
	if b.OverriddenBookingID != nil {
		data["overridden_booking_id"] = b.OverriddenBookingID.String()
	}
	return data
}
