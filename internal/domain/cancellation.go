package domain

import "time"

// DefaultLateCancelWindow separates free cancellation from late cancellation.
const DefaultLateCancelWindow = 12 * time.Hour

// CancellationOutcome is the money consequence of cancelling a booking.
type CancellationOutcome struct {
	RefundAmount     int64
	RefundReason     string
	FineAmount       int64
	LateCancellation bool
}

// CancellationPolicy prices a cancellation from the time left before the slot starts.
type CancellationPolicy struct {
	LateWindow time.Duration
}

func (p CancellationPolicy) window() time.Duration {
	if p.LateWindow <= 0 {
		return DefaultLateCancelWindow
	}
	return p.LateWindow
}

// Evaluate returns the refund or fine owed when b is cancelled with untilStart left.
// Early: a paid booking is refunded in full, an unpaid one costs nothing.
// Late: a paid booking gets half back as credit, an unpaid hold is fined half its price.
func (p CancellationPolicy) Evaluate(b Booking, untilStart time.Duration) CancellationOutcome {
	late := untilStart < p.window()
	out := CancellationOutcome{LateCancellation: late}

	switch {
	case b.Status.IsPaid() && !late:
		out.RefundAmount = b.TotalAmount
		out.RefundReason = CreditReasonCancelRefund
	case b.Status.IsPaid() && late:
		out.RefundAmount = b.TotalAmount / 2
		out.RefundReason = CreditReasonLateCancelRefund
	case b.Status == StatusUnpaid && late:
		out.FineAmount = b.TotalAmount / 2
	}
	return out
}
