package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/court-reservations/internal/domain"
)

func (s *Store) DeleteExpiredLock(_ context.Context, key domain.SlotKey, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.locks[key.String()]; ok && l.Expired(now) {
		delete(s.locks, key.String())
	}
	return nil
}

func (s *Store) InsertLock(_ context.Context, l domain.SlotLock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.locks[l.Key.String()]; ok {
		return domain.ErrConflict
	}
	s.locks[l.Key.String()] = l
	return nil
}

func (s *Store) GetLock(_ context.Context, key domain.SlotKey) (*domain.SlotLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key.String()]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (s *Store) DeleteLock(_ context.Context, key domain.SlotKey, owner uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.locks[key.String()]; ok && l.CustomerID == owner {
		delete(s.locks, key.String())
	}
	return nil
}
