package domain

import (
	"time"

	"github.com/google/uuid"
)

func NewSlotLock(key SlotKey, customerID uuid.UUID, ttl time.Duration, now time.Time) SlotLock {
	return SlotLock{
		Key:        key,
		CustomerID: customerID,
		ExpiresAt:  now.Add(ttl),
	}
}

// NewUnpaidBooking builds a provisional hold priced at the court's fixed rate.
func NewUnpaidBooking(customerID uuid.UUID, key SlotKey, price int64, now time.Time) Booking {
	return Booking{
		ID:            uuid.New(),
		CustomerID:    customerID,
		CourtID:       key.CourtID,
		TimeSlotID:    key.TimeSlotID,
		Date:          key.Date,
		Status:        StatusUnpaid,
		PaymentStatus: PaymentPending,
		TotalAmount:   price,
		CreatedAt:     now,
	}
}

func NewPaidBooking(customerID uuid.UUID, key SlotKey, bd Breakdown, now time.Time) Booking {
	return Booking{
		ID:            uuid.New(),
		CustomerID:    customerID,
		CourtID:       key.CourtID,
		TimeSlotID:    key.TimeSlotID,
		Date:          key.Date,
		Status:        StatusPaid,
		PaymentMethod: bd.Method,
		PaymentStatus: PaymentCompleted,
		TotalAmount:   bd.TotalAmount,
		CreditUsed:    bd.CreditAmount,
		CreatedAt:     now,
	}
}
