package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/robertarktes/court-reservations/internal/domain"
)

func (s *Store) GetBooking(_ context.Context, id uuid.UUID) (*domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, domain.ErrBookingNotFound
	}
	return &b, nil
}

func (s *Store) ActiveBookingForSlot(_ context.Context, key domain.SlotKey) (*domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b := s.activeLocked(key); b != nil {
		cp := *b
		return &cp, nil
	}
	return nil, nil
}

func (s *Store) activeLocked(key domain.SlotKey) *domain.Booking {
	for _, b := range s.bookings {
		if b.Status.IsActive() && b.Key() == key {
			return &b
		}
	}
	return nil
}

// ListBookings returns matching bookings, newest date first.
func (s *Store) ListBookings(_ context.Context, f domain.BookingFilter) ([]domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Booking, 0)
	for _, b := range s.bookings {
		if f.Matches(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) InsertBooking(_ context.Context, b domain.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bookings[b.ID]; ok {
		return domain.ErrConflict
	}
	if b.Status.IsActive() && s.activeLocked(b.Key()) != nil {
		return domain.ErrConflict
	}
	s.bookings[b.ID] = b
	return nil
}

func (s *Store) ReplaceUnpaidBooking(_ context.Context, displacedID uuid.UUID, b domain.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	displaced, ok := s.bookings[displacedID]
	if !ok || displaced.Status != domain.StatusUnpaid {
		return domain.ErrStaleBooking
	}
	displaced.Status = domain.StatusCancelledByOverride
	if active := s.activeLocked(b.Key()); active != nil && active.ID != displacedID {
		return domain.ErrConflict
	}
	s.bookings[displacedID] = displaced
	s.bookings[b.ID] = b
	return nil
}

func (s *Store) SetBookingStatus(_ context.Context, id uuid.UUID, from []domain.BookingStatus, to domain.BookingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return domain.ErrBookingNotFound
	}
	if !statusIn(b.Status, from) {
		return domain.ErrStaleBooking
	}
	b.Status = to
	s.bookings[id] = b
	return nil
}

func (s *Store) MarkBookingPaid(_ context.Context, id uuid.UUID, method domain.PaymentMethod, creditUsed int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return domain.ErrBookingNotFound
	}
	if b.Status != domain.StatusUnpaid {
		return domain.ErrStaleBooking
	}
	b.Status = domain.StatusPaid
	b.PaymentStatus = domain.PaymentCompleted
	b.PaymentMethod = method
	b.CreditUsed = creditUsed
	s.bookings[id] = b
	return nil
}

func statusIn(s domain.BookingStatus, set []domain.BookingStatus) bool {
	for _, x := range set {
		if s == x {
			return true
		}
	}
	return false
}
