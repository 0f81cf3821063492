package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/court-reservations/internal/domain"
)

type errorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	ErrorCode string `json:"error_code"`
	Retryable bool   `json:"retryable,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(code string) int {
	switch code {
	case domain.CodePendingFines, domain.CodeNotOwner, domain.CodeForbidden:
		return http.StatusForbidden
	case domain.CodeCourtNotFound, domain.CodeTimeSlotNotFound, domain.CodeBookingNotFound, domain.CodeFineNotFound:
		return http.StatusNotFound
	case domain.CodeSlotLocked, domain.CodeSlotAlreadyBooked, domain.CodeStaleBooking, domain.CodeSerializationFailed,
		domain.CodeRequestInProgress:
		return http.StatusConflict
	case domain.CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.Code(err)
	msg := err.Error()
	if code == domain.CodeInternal {
		loggerFrom(r.Context()).WithError(err).Error("request failed")
		msg = "internal error"
	}
	writeJSON(w, statusFor(code), errorResponse{
		Error:     msg,
		ErrorCode: code,
		Retryable: domain.Retryable(err),
	})
}

type bookingDTO struct {
	ID                  uuid.UUID  `json:"id"`
	CustomerID          uuid.UUID  `json:"user_id"`
	CourtID             uuid.UUID  `json:"court_id"`
	TimeSlotID          uuid.UUID  `json:"time_slot_id"`
	Date                string     `json:"date"`
	Status              string     `json:"status"`
	PaymentMethod       string     `json:"payment_method,omitempty"`
	PaymentStatus       string     `json:"payment_status"`
	TotalAmount         int64      `json:"total_amount"`
	CreditUsed          int64      `json:"credit_used"`
	OverriddenBookingID *uuid.UUID `json:"overridden_booking_id,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

func toBookingDTO(b domain.Booking) bookingDTO {
	return bookingDTO{
		ID:                  b.ID,
		CustomerID:          b.CustomerID,
		CourtID:             b.CourtID,
		TimeSlotID:          b.TimeSlotID,
		Date:                domain.FormatDate(b.Date),
		Status:              string(b.Status),
		PaymentMethod:       string(b.PaymentMethod),
		PaymentStatus:       string(b.PaymentStatus),
		TotalAmount:         b.TotalAmount,
		CreditUsed:          b.CreditUsed,
		OverriddenBookingID: b.OverriddenBookingID,
		CreatedAt:           b.CreatedAt,
	}
}

func toBookingDTOs(bookings []domain.Booking) []bookingDTO {
	out := make([]bookingDTO, len(bookings))
	for i, b := range bookings {
		out[i] = toBookingDTO(b)
	}
	return out
}
