package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/court-reservations/internal/adapters/memory"
	"github.com/robertarktes/court-reservations/internal/availability"
	"github.com/robertarktes/court-reservations/internal/domain"
	"github.com/robertarktes/court-reservations/internal/ledger"
	"github.com/robertarktes/court-reservations/internal/lock"
	"github.com/robertarktes/court-reservations/internal/outbox"
	"github.com/robertarktes/court-reservations/internal/reservation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ reservation.BookingStore = (*memory.Store)(nil)
	_ reservation.AuditTrail   = (*memory.Store)(nil)
	_ availability.Catalog     = (*memory.Store)(nil)
	_ ledger.Store             = (*memory.Store)(nil)
	_ lock.Store               = (*memory.Store)(nil)
	_ outbox.Store             = (*memory.Store)(nil)
)

func TestStore_ListBookings(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	customer := uuid.New()
	court := uuid.New()
	day := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	created := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	older := domain.NewUnpaidBooking(customer, domain.NewSlotKey(court, uuid.New(), day), 1000, created)
	newer := domain.NewUnpaidBooking(customer, domain.NewSlotKey(court, uuid.New(), day.AddDate(0, 0, 1)), 1000, created)
	other := domain.NewUnpaidBooking(uuid.New(), domain.NewSlotKey(court, uuid.New(), day), 1000, created)
	for _, b := range []domain.Booking{older, newer, other} {
		require.NoError(t, s.InsertBooking(ctx, b))
	}

	got, err := s.ListBookings(ctx, domain.BookingFilter{CustomerID: &customer})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, newer.ID, got[0].ID)
	assert.Equal(t, older.ID, got[1].ID)

	got, err = s.ListBookings(ctx, domain.BookingFilter{CourtID: &court, From: day, To: day})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = s.ListBookings(ctx, domain.BookingFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestStore_ConditionalUpdates(t *testing.T) {
	ctx := context.Background()
	s := memory.NewStore()
	b := domain.NewUnpaidBooking(uuid.New(), domain.NewSlotKey(uuid.New(), uuid.New(), time.Now()), 1000, time.Now())
	require.NoError(t, s.InsertBooking(ctx, b))

	dup := domain.NewUnpaidBooking(uuid.New(), b.Key(), 1000, time.Now())
	assert.True(t, errors.Is(s.InsertBooking(ctx, dup), domain.ErrConflict))

	require.NoError(t, s.MarkBookingPaid(ctx, b.ID, domain.MethodOrangeMoney, 0))
	assert.True(t, errors.Is(s.MarkBookingPaid(ctx, b.ID, domain.MethodOrangeMoney, 0), domain.ErrStaleBooking))
	assert.True(t, errors.Is(s.SetBookingStatus(ctx, uuid.New(), []domain.BookingStatus{domain.StatusPaid}, domain.StatusCancelled), domain.ErrBookingNotFound))
}
