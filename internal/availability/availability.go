// Package availability computes what each time slot of a court looks like on a given day.
package availability

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/court-reservations/internal/domain"
	"golang.org/x/sync/errgroup"
)

type SlotStatus string

const (
	SlotFree   SlotStatus = "free"
	SlotUnpaid SlotStatus = "unpaid"
	SlotPaid   SlotStatus = "paid"
	SlotPast   SlotStatus = "past"
)

// Catalog is the read side of courts and time-slot templates.
type Catalog interface {
	GetCourt(ctx context.Context, id uuid.UUID) (*domain.Court, error)
	ListCourts(ctx context.Context) ([]domain.Court, error)
	GetTimeSlot(ctx context.Context, id uuid.UUID) (*domain.TimeSlot, error)
	ListTimeSlots(ctx context.Context) ([]domain.TimeSlot, error)
}

type BookingLister interface {
	ListBookings(ctx context.Context, f domain.BookingFilter) ([]domain.Booking, error)
}

type SlotView struct {
	SlotID      uuid.UUID       `json:"slot_id"`
	StartTime   string          `json:"start_time"`
	EndTime     string          `json:"end_time"`
	Status      SlotStatus      `json:"status"`
	CanOverride bool            `json:"can_override"`
	BookingID   *uuid.UUID      `json:"booking_id,omitempty"`
	Booking     *domain.Booking `json:"-"`
}

type CourtSchedule struct {
	Court domain.Court `json:"court"`
	Slots []SlotView   `json:"slots"`
}

type Resolver struct {
	catalog  Catalog
	bookings BookingLister
	loc      *time.Location
	now      func() time.Time
}

func NewResolver(catalog Catalog, bookings BookingLister, loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{catalog: catalog, bookings: bookings, loc: loc, now: time.Now}
}

func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	r.now = now
	return r
}

// Slots returns every time slot of the court on date as seen by viewer.
// A zero viewer never owns a booking, so any unpaid hold in the future is overridable.
func (r *Resolver) Slots(ctx context.Context, courtID uuid.UUID, date time.Time, viewer uuid.UUID) ([]SlotView, error) {
	date = domain.DateOnly(date)

	var (
		slots    []domain.TimeSlot
		bookings []domain.Booking
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := r.catalog.GetCourt(gctx, courtID)
		return err
	})
	g.Go(func() error {
		var err error
		slots, err = r.catalog.ListTimeSlots(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		bookings, err = r.bookings.ListBookings(gctx, domain.BookingFilter{
			CourtID:  &courtID,
			From:     date,
			To:       date,
			Statuses: domain.ActiveStatuses,
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "load availability")
	}

	bySlot := indexBySlot(bookings)
	now := r.now()
	views := make([]SlotView, 0, len(slots))
	for _, ts := range slots {
		v, err := r.view(ts, date, bySlot[ts.ID], viewer, now)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

// DaySchedule returns every active court with every slot of the day, booking included.
func (r *Resolver) DaySchedule(ctx context.Context, date time.Time) ([]CourtSchedule, error) {
	date = domain.DateOnly(date)

	var (
		courts   []domain.Court
		slots    []domain.TimeSlot
		bookings []domain.Booking
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		courts, err = r.catalog.ListCourts(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		slots, err = r.catalog.ListTimeSlots(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		bookings, err = r.bookings.ListBookings(gctx, domain.BookingFilter{
			From:     date,
			To:       date,
			Statuses: domain.ActiveStatuses,
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "load schedule")
	}

	byCourt := make(map[uuid.UUID][]domain.Booking)
	for _, b := range bookings {
		byCourt[b.CourtID] = append(byCourt[b.CourtID], b)
	}

	now := r.now()
	out := make([]CourtSchedule, 0, len(courts))
	for _, c := range courts {
		bySlot := indexBySlot(byCourt[c.ID])
		cs := CourtSchedule{Court: c, Slots: make([]SlotView, 0, len(slots))}
		for _, ts := range slots {
			v, err := r.view(ts, date, bySlot[ts.ID], uuid.Nil, now)
			if err != nil {
				return nil, err
			}
			cs.Slots = append(cs.Slots, v)
		}
		out = append(out, cs)
	}
	return out, nil
}

func (r *Resolver) view(ts domain.TimeSlot, date time.Time, b *domain.Booking, viewer uuid.UUID, now time.Time) (SlotView, error) {
	start, _, err := ts.Window(date, r.loc)
	if err != nil {
		return SlotView{}, err
	}
	started := !now.Before(start)

	v := SlotView{SlotID: ts.ID, StartTime: ts.StartTime, EndTime: ts.EndTime, Status: SlotFree}
	switch {
	case b == nil && started:
		v.Status = SlotPast
	case b == nil:
	case b.Status.IsPaid():
		v.Status = SlotPaid
	default:
		v.Status = SlotUnpaid
		v.CanOverride = !started && b.CustomerID != viewer
	}
	if b != nil {
		id := b.ID
		v.BookingID = &id
		v.Booking = b
	}
	return v, nil
}

func indexBySlot(bookings []domain.Booking) map[uuid.UUID]*domain.Booking {
	out := make(map[uuid.UUID]*domain.Booking, len(bookings))
	for i := range bookings {
		out[bookings[i].TimeSlotID] = &bookings[i]
	}
	return out
}
