package memory

import (
	"context"

	"github.com/google/uuid"
	"github.com/robertarktes/court-reservations/internal/domain"
)

func (s *Store) InsertCredit(_ context.Context, e domain.CreditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credits = append(s.credits, e)
	return nil
}

func (s *Store) DebitCredit(_ context.Context, e domain.CreditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.balanceLocked(e.CustomerID)+e.Amount < 0 {
		return domain.ErrInsufficientCredit
	}
	s.credits = append(s.credits, e)
	return nil
}

func (s *Store) CreditBalance(_ context.Context, customerID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balanceLocked(customerID), nil
}

func (s *Store) balanceLocked(customerID uuid.UUID) int64 {
	var sum int64
	for _, e := range s.credits {
		if e.CustomerID == customerID {
			sum += e.Amount
		}
	}
	return sum
}

// CreditEntries returns the customer's credit rows in write order.
func (s *Store) CreditEntries(customerID uuid.UUID) []domain.CreditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.CreditEntry
	for _, e := range s.credits {
		if e.CustomerID == customerID {
			out = append(out, e)
		}
	}
	return out
}

func (s *Store) InsertFine(_ context.Context, f domain.FineEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fines = append(s.fines, f)
	return nil
}

func (s *Store) PendingFines(_ context.Context, customerID uuid.UUID) ([]domain.FineEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.FineEntry
	for _, f := range s.fines {
		if f.CustomerID != customerID || f.SettlesFineID != nil {
			continue
		}
		if s.settlementLocked(f.ID) == nil {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *Store) GetFine(_ context.Context, id uuid.UUID) (*domain.FineEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.fines {
		if f.ID != id || f.SettlesFineID != nil {
			continue
		}
		if st := s.settlementLocked(id); st != nil {
			f.Status = domain.FinePaid
			f.PaidAt = st.PaidAt
		}
		return &f, nil
	}
	return nil, domain.ErrFineNotFound
}

func (s *Store) SettleFine(_ context.Context, settlement domain.FineEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if settlement.SettlesFineID == nil {
		return domain.ErrInvalidInput
	}
	if s.settlementLocked(*settlement.SettlesFineID) != nil {
		return domain.ErrConflict
	}
	s.fines = append(s.fines, settlement)
	return nil
}

func (s *Store) settlementLocked(fineID uuid.UUID) *domain.FineEntry {
	for i := range s.fines {
		if s.fines[i].SettlesFineID != nil && *s.fines[i].SettlesFineID == fineID {
			return &s.fines[i]
		}
	}
	return nil
}

// FineEntries returns every fine row of the customer, settlements included.
func (s *Store) FineEntries(customerID uuid.UUID) []domain.FineEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.FineEntry
	for _, f := range s.fines {
		if f.CustomerID == customerID {
			out = append(out, f)
		}
	}
	return out
}
