// Package memory is an in-process implementation of every store port. It backs
// STORE_BACKEND=memory and the engine tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/court-reservations/internal/domain"
	"github.com/robertarktes/court-reservations/internal/outbox"
)

type Store struct {
	mu sync.Mutex

	courts    map[uuid.UUID]domain.Court
	timeSlots map[uuid.UUID]domain.TimeSlot
	bookings  map[uuid.UUID]domain.Booking
	locks     map[string]domain.SlotLock
	credits   []domain.CreditEntry
	fines     []domain.FineEntry
	outbox    []outbox.Record
	audit     []domain.AuditRecord
}

func NewStore() *Store {
	return &Store{
		courts:    make(map[uuid.UUID]domain.Court),
		timeSlots: make(map[uuid.UUID]domain.TimeSlot),
		bookings:  make(map[uuid.UUID]domain.Booking),
		locks:     make(map[string]domain.SlotLock),
	}
}

func (s *Store) PutCourt(c domain.Court) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.courts[c.ID] = c
}

func (s *Store) PutTimeSlot(ts domain.TimeSlot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeSlots[ts.ID] = ts
}

func (s *Store) GetCourt(_ context.Context, id uuid.UUID) (*domain.Court, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.courts[id]
	if !ok {
		return nil, domain.ErrCourtNotFound
	}
	return &c, nil
}

// ListCourts returns the active courts ordered by name.
func (s *Store) ListCourts(_ context.Context) ([]domain.Court, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Court, 0, len(s.courts))
	for _, c := range s.courts {
		if c.Active {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetTimeSlot(_ context.Context, id uuid.UUID) (*domain.TimeSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts, ok := s.timeSlots[id]
	if !ok {
		return nil, domain.ErrTimeSlotNotFound
	}
	return &ts, nil
}

func (s *Store) ListTimeSlots(_ context.Context) ([]domain.TimeSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.TimeSlot, 0, len(s.timeSlots))
	for _, ts := range s.timeSlots {
		out = append(out, ts)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}

func (s *Store) LogEvent(_ context.Context, action string, userID uuid.UUID, data map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, domain.NewAuditRecord(action, userID, data, time.Now()))
	return nil
}

// AuditEvents returns a copy of the audit trail in write order.
func (s *Store) AuditEvents() []domain.AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AuditRecord(nil), s.audit...)
}

func (s *Store) BookingHistory(_ context.Context, bookingID uuid.UUID) ([]domain.AuditRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AuditRecord, 0)
	for _, rec := range s.audit {
		if rec.BookingID != nil && *rec.BookingID == bookingID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *Store) InsertOutbox(_ context.Context, rec outbox.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.Status == "" {
		rec.Status = outbox.StatusNew
	}
	s.outbox = append(s.outbox, rec)
	return nil
}

func (s *Store) GetUnpublishedOutbox(_ context.Context, limit int) ([]outbox.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []outbox.Record
	for _, rec := range s.outbox {
		if rec.Status != outbox.StatusNew {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) MarkPublished(_ context.Context, id uuid.UUID, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.outbox {
		if s.outbox[i].ID == id {
			at := publishedAt
			s.outbox[i].Status = outbox.StatusPublished
			s.outbox[i].PublishedAt = &at
			return nil
		}
	}
	return domain.ErrNotFound
}

// Outbox returns a copy of every outbox record.
func (s *Store) Outbox() []outbox.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]outbox.Record(nil), s.outbox...)
}
