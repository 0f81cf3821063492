package domain

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	StatusUnpaid              BookingStatus = "unpaid"
	StatusPaid                BookingStatus = "paid"
	StatusConfirmed           BookingStatus = "confirmed" // legacy alias of paid
	StatusCompleted           BookingStatus = "completed"
	StatusNoShow              BookingStatus = "no_show"
	StatusCancelled           BookingStatus = "cancelled"
	StatusCancelledByOverride BookingStatus = "cancelled_by_override"
)

// ActiveStatuses hold a slot. At most one booking per slot key may be in one of them.
var ActiveStatuses = []BookingStatus{StatusUnpaid, StatusPaid, StatusConfirmed}

// PaidStatuses are the statuses that count as settled.
var PaidStatuses = []BookingStatus{StatusPaid, StatusConfirmed}

func (s BookingStatus) IsActive() bool {
	return s == StatusUnpaid || s.IsPaid()
}

func (s BookingStatus) IsPaid() bool {
	return s == StatusPaid || s == StatusConfirmed
}

func (s BookingStatus) Valid() bool {
	switch s {
	case StatusUnpaid, StatusPaid, StatusConfirmed, StatusCompleted, StatusNoShow, StatusCancelled, StatusCancelledByOverride:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

type PaymentMethod string

const (
	MethodOrangeMoney     PaymentMethod = "orange_money"
	MethodWave            PaymentMethod = "wave"
	MethodCash            PaymentMethod = "cash"
	MethodCredit          PaymentMethod = "credit"
	MethodCreditAndMobile PaymentMethod = "credit_and_mobile"
)

// IsMobile reports whether the method is a mobile-money wallet.
func (m PaymentMethod) IsMobile() bool {
	return m == MethodOrangeMoney || m == MethodWave
}

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodOrangeMoney, MethodWave, MethodCash, MethodCredit, MethodCreditAndMobile:
		return true
	}
	return false
}

type Court struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Slug            string    `json:"slug"`
	Sport           string    `json:"sport_type"`
	Price           int64     `json:"price"`
	DurationMinutes int       `json:"duration_minutes"`
	Description     string    `json:"description,omitempty"`
	ImageURL        string    `json:"image_url,omitempty"`
	Active          bool      `json:"is_active"`
}

// TimeSlot is a daily template. StartTime and EndTime are wall-clock "15:04" or "15:04:05".
type TimeSlot struct {
	ID        uuid.UUID `json:"id"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	Order     int       `json:"slot_order"`
}

// SlotKey addresses one bookable unit: a court, a time-slot template and a calendar day.
type SlotKey struct {
	CourtID    uuid.UUID
	TimeSlotID uuid.UUID
	Date       time.Time
}

func NewSlotKey(courtID, timeSlotID uuid.UUID, date time.Time) SlotKey {
	return SlotKey{CourtID: courtID, TimeSlotID: timeSlotID, Date: DateOnly(date)}
}

func (k SlotKey) String() string {
	return k.CourtID.String() + ":" + k.TimeSlotID.String() + ":" + FormatDate(k.Date)
}

type Booking struct {
	ID                  uuid.UUID
	CustomerID          uuid.UUID
	CourtID             uuid.UUID
	TimeSlotID          uuid.UUID
	Date                time.Time
	Status              BookingStatus
	PaymentMethod       PaymentMethod
	PaymentStatus       PaymentStatus
	TotalAmount         int64
	CreditUsed          int64
	CreatedAt           time.Time
	OverriddenBookingID *uuid.UUID
}

func (b Booking) Key() SlotKey {
	return NewSlotKey(b.CourtID, b.TimeSlotID, b.Date)
}

type SlotLock struct {
	Key        SlotKey
	CustomerID uuid.UUID
	ExpiresAt  time.Time
}

func (l SlotLock) Expired(now time.Time) bool {
	return !l.ExpiresAt.After(now)
}

const (
	CreditReasonBookingPayment   = "booking_payment"
	CreditReasonCancelRefund     = "cancellation_refund"
	CreditReasonLateCancelRefund = "late_cancellation_refund"

	FineReasonLateCancel = "late_cancellation_unpaid"
	FineReasonSettlement = "fine_payment"
)

// CreditEntry is an immutable signed ledger row. Negative amounts are debits.
type CreditEntry struct {
	ID         uuid.UUID
	CustomerID uuid.UUID
	BookingID  *uuid.UUID
	Amount     int64
	Reason     string
	CreatedAt  time.Time
}

type FineStatus string

const (
	FinePending FineStatus = "pending"
	FinePaid    FineStatus = "paid"
)

// FineEntry is an immutable fine row. A settlement row carries a negative amount
// and points at the fine it settles through SettlesFineID.
type FineEntry struct {
	ID            uuid.UUID  `json:"id"`
	CustomerID    uuid.UUID  `json:"user_id"`
	BookingID     *uuid.UUID `json:"booking_id,omitempty"`
	Amount        int64      `json:"amount"`
	Reason        string     `json:"reason"`
	Status        FineStatus `json:"status"`
	SettlesFineID *uuid.UUID `json:"-"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

const (
	NotificationBookingOverridden = "booking_overridden"
	NotificationBookingPaid       = "booking_paid"
)

type Notification struct {
	CustomerID uuid.UUID
	Type       string
	Title      string
	Message    string
	Data       map[string]any
}

type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   uuid.UUID
	Role Role
}

func (a Actor) IsStaff() bool {
	return a.Role == RoleStaff
}

// BookingFilter narrows a booking listing. Zero values do not filter. From and To are inclusive dates.
type BookingFilter struct {
	CustomerID *uuid.UUID
	CourtID    *uuid.UUID
	From       time.Time
	To         time.Time
	Statuses   []BookingStatus
	Limit      int
}

// Matches reports whether b passes the filter.
func (f BookingFilter) Matches(b Booking) bool {
	if f.CustomerID != nil && b.CustomerID != *f.CustomerID {
		return false
	}
	if f.CourtID != nil && b.CourtID != *f.CourtID {
		return false
	}
	d := DateOnly(b.Date)
	if !f.From.IsZero() && d.Before(DateOnly(f.From)) {
		return false
	}
	if !f.To.IsZero() && d.After(DateOnly(f.To)) {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if b.Status == s {
			return true
		}
	}
	return false
}
