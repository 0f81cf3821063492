package availability_test

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/court-reservations/internal/adapters/memory"
	"github.com/robertarktes/court-reservations/internal/availability"
	"github.com/robertarktes/court-reservations/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store    *memory.Store
	resolver *availability.Resolver
	court    domain.Court
	morning  domain.TimeSlot
	noon     domain.TimeSlot
	evening  domain.TimeSlot
	date     time.Time
}

// The clock sits at 12:30: the morning slot is over, noon is running, evening is ahead.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   memory.NewStore(),
		court:   domain.Court{ID: uuid.New(), Name: "Court A", Price: 1000, Active: true},
		morning: domain.TimeSlot{ID: uuid.New(), StartTime: "08:00", EndTime: "09:00", Order: 1},
		noon:    domain.TimeSlot{ID: uuid.New(), StartTime: "12:00", EndTime: "13:00", Order: 2},
		evening: domain.TimeSlot{ID: uuid.New(), StartTime: "18:00", EndTime: "19:00", Order: 3},
		date:    time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	f.store.PutCourt(f.court)
	for _, ts := range []domain.TimeSlot{f.evening, f.morning, f.noon} {
		f.store.PutTimeSlot(ts)
	}
	now := time.Date(2026, 6, 1, 12, 30, 0, 0, time.UTC)
	f.resolver = availability.NewResolver(f.store, f.store, time.UTC).WithClock(func() time.Time { return now })
	return f
}

func (f *fixture) book(t *testing.T, slot domain.TimeSlot, customer uuid.UUID, status domain.BookingStatus) domain.Booking {
	t.Helper()
	b := domain.NewUnpaidBooking(customer, domain.NewSlotKey(f.court.ID, slot.ID, f.date), f.court.Price, time.Now())
	b.Status = status
	require.NoError(t, f.store.InsertBooking(context.Background(), b))
	return b
}

func TestResolver_Slots(t *testing.T) {
	f := newFixture(t)
	owner, viewer := uuid.New(), uuid.New()
	f.book(t, f.noon, owner, domain.StatusUnpaid)
	hold := f.book(t, f.evening, owner, domain.StatusUnpaid)

	views, err := f.resolver.Slots(context.Background(), f.court.ID, f.date, viewer)
	require.NoError(t, err)
	require.Len(t, views, 3)

	assert.Equal(t, f.morning.ID, views[0].SlotID)
	assert.Equal(t, availability.SlotPast, views[0].Status)
	assert.Nil(t, views[0].BookingID)

	assert.Equal(t, availability.SlotUnpaid, views[1].Status)
	assert.False(t, views[1].CanOverride, "started slots cannot be overridden")

	assert.Equal(t, availability.SlotUnpaid, views[2].Status)
	assert.True(t, views[2].CanOverride)
	require.NotNil(t, views[2].BookingID)
	assert.Equal(t, hold.ID, *views[2].BookingID)

	own, err := f.resolver.Slots(context.Background(), f.court.ID, f.date, owner)
	require.NoError(t, err)
	assert.False(t, own[2].CanOverride, "owners cannot override themselves")
}

func TestResolver_PaidAndCancelled(t *testing.T) {
	f := newFixture(t)
	f.book(t, f.evening, uuid.New(), domain.StatusConfirmed)
	f.book(t, f.noon, uuid.New(), domain.StatusCancelled)

	views, err := f.resolver.Slots(context.Background(), f.court.ID, f.date, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, availability.SlotPast, views[1].Status, "cancelled bookings free the slot")
	assert.Equal(t, availability.SlotPaid, views[2].Status)
	assert.False(t, views[2].CanOverride)
}

func TestResolver_UnknownCourt(t *testing.T) {
	f := newFixture(t)
	_, err := f.resolver.Slots(context.Background(), uuid.New(), f.date, uuid.Nil)
	assert.True(t, errors.Is(err, domain.ErrCourtNotFound), "got %v", err)
}

func TestResolver_DaySchedule(t *testing.T) {
	f := newFixture(t)
	other := domain.Court{ID: uuid.New(), Name: "Court B", Price: 1500, Active: true}
	f.store.PutCourt(other)
	f.store.PutCourt(domain.Court{ID: uuid.New(), Name: "Closed", Active: false})
	paid := f.book(t, f.evening, uuid.New(), domain.StatusPaid)

	schedule, err := f.resolver.DaySchedule(context.Background(), f.date)
	require.NoError(t, err)
	require.Len(t, schedule, 2)

	assert.Equal(t, "Court A", schedule[0].Court.Name)
	require.Len(t, schedule[0].Slots, 3)
	assert.Equal(t, availability.SlotPaid, schedule[0].Slots[2].Status)
	require.NotNil(t, schedule[0].Slots[2].Booking)
	assert.Equal(t, paid.CustomerID, schedule[0].Slots[2].Booking.CustomerID)

	assert.Equal(t, "Court B", schedule[1].Court.Name)
	assert.Equal(t, availability.SlotFree, schedule[1].Slots[2].Status)
	assert.Equal(t, availability.SlotPast, schedule[1].Slots[0].Status)
}
