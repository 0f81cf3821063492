package reservation

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/court-reservations/internal/domain"
)

type payment struct {
	method    domain.PaymentMethod
	useCredit bool
	mobile    domain.PaymentMethod
}

// breakdown splits total across the customer's credit and a payment method.
// Without credit the method is the explicit one, else the mobile one, else the default.
func (e *Engine) breakdown(ctx context.Context, customerID uuid.UUID, total int64, p payment) (domain.Breakdown, error) {
	var balance int64
	if p.useCredit {
		var err error
		if balance, err = e.ledger.Balance(ctx, customerID); err != nil {
			return domain.Breakdown{}, err
		}
	}

	bd, err := domain.ComputeBreakdown(total, balance, p.useCredit, p.mobile)
	if err != nil {
		return domain.Breakdown{}, err
	}
	if bd.CreditAmount > 0 {
		return bd, nil
	}

	method := p.method
	if method == "" {
		method = p.mobile
	}
	if method == "" {
		method = e.policy.DefaultPaymentMethod
	}
	if method == domain.MethodCredit || method == domain.MethodCreditAndMobile {
		return domain.Breakdown{}, errors.Mark(errors.Newf("payment method %q needs use_credit", method), domain.ErrInvalidInput)
	}
	bd.Method = method
	if method.IsMobile() {
		bd.MobileMethod = method
	} else {
		bd.MobileMethod = ""
	}
	return bd, nil
}

type PayRequest struct {
	CustomerID    uuid.UUID
	BookingID     uuid.UUID
	PaymentMethod domain.PaymentMethod
	UseCredit     bool
	MobileMethod  domain.PaymentMethod
}

// PayExisting pays the caller's own unpaid booking. The conditional status update is the
// concurrency anchor: if an override or another payment got there first the call fails
// with domain.ErrStaleBooking.
func (e *Engine) PayExisting(ctx context.Context, req PayRequest) (res Result, err error) {
	ctx, span := e.startSpan(ctx, "PayExisting")
	defer func() { endSpan(span, err) }()

	if req.CustomerID == uuid.Nil || req.BookingID == uuid.Nil {
		return Result{}, errors.Mark(errors.New("customer id and booking id are required"), domain.ErrInvalidInput)
	}
	if req.PaymentMethod != "" && !req.PaymentMethod.Valid() {
		return Result{}, errors.Mark(errors.Newf("unknown payment method %q", req.PaymentMethod), domain.ErrInvalidInput)
	}
	if !req.UseCredit && req.PaymentMethod == "" {
		return Result{}, domain.ErrPaymentRequired
	}

	b, err := e.bookings.GetBooking(ctx, req.BookingID)
	if err != nil {
		return Result{}, err
	}
	if b.CustomerID != req.CustomerID {
		return Result{}, domain.ErrNotOwner
	}
	if b.Status.IsPaid() {
		return Result{}, domain.ErrAlreadyPaid
	}
	if b.Status != domain.StatusUnpaid {
		return Result{}, domain.ErrNotUnpaid
	}

	start, _, err := e.slotWindow(ctx, b.TimeSlotID, b.Date)
	if err != nil {
		return Result{}, err
	}
	if !e.now().Before(start) {
		return Result{}, domain.ErrSlotInPast
	}

	bd, err := e.breakdown(ctx, req.CustomerID, b.TotalAmount, payment{
		method:    req.PaymentMethod,
		useCredit: req.UseCredit,
		mobile:    req.MobileMethod,
	})
	if err != nil {
		return Result{}, err
	}

	if err := e.bookings.MarkBookingPaid(ctx, b.ID, bd.Method, bd.CreditAmount); err != nil {
		e.decision("pay", "stale")
		return Result{}, err
	}
	b.Status = domain.StatusPaid
	b.PaymentStatus = domain.PaymentCompleted
	b.PaymentMethod = bd.Method
	b.CreditUsed = bd.CreditAmount

	e.decision("pay", "paid")
	e.debitAfterCommit(ctx, *b)
	e.notifyAfterCommit(ctx, domain.Notification{
		CustomerID: b.CustomerID,
		Type:       domain.NotificationBookingPaid,
		Title:      "Booking confirmed",
		Message:    fmt.Sprintf("Your booking on %s is paid.", domain.FormatDate(b.Date)),
		Data: map[string]any{
			"booking_id":    b.ID.String(),
			"amount":        b.TotalAmount,
			"credit_amount": bd.CreditAmount,
			"mobile_amount": bd.MobileAmount,
		},
	})
	e.auditAfterCommit(ctx, AuditBookingPaid, b.CustomerID, bookingAuditData(*b))
	return Result{Booking: b, Breakdown: &bd}, nil
}
