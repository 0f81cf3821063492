package domain_test

import (
	"testing"
	"time"

	"github.com/robertarktes/court-reservations/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestCancellationPolicy_Evaluate(t *testing.T) {
	policy := domain.CancellationPolicy{LateWindow: 12 * time.Hour}
	paid := domain.Booking{Status: domain.StatusPaid, TotalAmount: 1000}
	confirmed := domain.Booking{Status: domain.StatusConfirmed, TotalAmount: 1000}
	unpaid := domain.Booking{Status: domain.StatusUnpaid, TotalAmount: 1000}

	tests := []struct {
		name    string
		booking domain.Booking
		until   time.Duration
		want    domain.CancellationOutcome
	}{
		{
			name:    "paid early gets full refund",
			booking: paid,
			until:   20 * time.Hour,
			want:    domain.CancellationOutcome{RefundAmount: 1000, RefundReason: domain.CreditReasonCancelRefund},
		},
		{
			name:    "paid exactly at the window is early",
			booking: paid,
			until:   12 * time.Hour,
			want:    domain.CancellationOutcome{RefundAmount: 1000, RefundReason: domain.CreditReasonCancelRefund},
		},
		{
			name:    "paid late gets half",
			booking: paid,
			until:   3 * time.Hour,
			want: domain.CancellationOutcome{
				RefundAmount:     500,
				RefundReason:     domain.CreditReasonLateCancelRefund,
				LateCancellation: true,
			},
		},
		{
			name:    "confirmed behaves like paid",
			booking: confirmed,
			until:   3 * time.Hour,
			want: domain.CancellationOutcome{
				RefundAmount:     500,
				RefundReason:     domain.CreditReasonLateCancelRefund,
				LateCancellation: true,
			},
		},
		{
			name:    "unpaid early is free",
			booking: unpaid,
			until:   20 * time.Hour,
			want:    domain.CancellationOutcome{},
		},
		{
			name:    "unpaid late is fined half",
			booking: unpaid,
			until:   3 * time.Hour,
			want:    domain.CancellationOutcome{FineAmount: 500, LateCancellation: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.Evaluate(tt.booking, tt.until))
		})
	}
}

func TestCancellationPolicy_DefaultWindow(t *testing.T) {
	out := domain.CancellationPolicy{}.Evaluate(domain.Booking{Status: domain.StatusUnpaid, TotalAmount: 1501}, 11*time.Hour)
	assert.True(t, out.LateCancellation)
	assert.Equal(t, int64(750), out.FineAmount)
}
