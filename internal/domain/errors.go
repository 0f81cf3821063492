package domain

import "github.com/cockroachdb/errors"

var (
	ErrSerializationFailure = errors.New("serialization failure")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrInvalidInput         = errors.New("invalid input")

	ErrPendingFines       = errors.New("customer has pending fines")
	ErrCourtNotFound      = errors.New("court not found")
	ErrTimeSlotNotFound   = errors.New("time slot not found")
	ErrSlotLocked         = errors.New("slot is being booked by another customer")
	ErrSlotAlreadyBooked  = errors.New("slot already booked by another customer")
	ErrAlreadyPaidBySelf  = errors.New("slot already paid by this customer")
	ErrOwnUnpaidBooking   = errors.New("customer already holds an unpaid booking for this slot")
	ErrBookingNotFound    = errors.New("booking not found")
	ErrNotOwner           = errors.New("not the owner")
	ErrNotUnpaid          = errors.New("booking cannot be paid")
	ErrAlreadyPaid        = errors.New("booking already paid")
	ErrSlotInPast         = errors.New("slot has already started")
	ErrMobileRequired     = errors.New("mobile payment method required to complete credit")
	ErrPaymentRequired    = errors.New("payment method required")
	ErrNotCancellable     = errors.New("booking cannot be cancelled")
	ErrNotPaid            = errors.New("booking is not paid")
	ErrSlotNotEnded       = errors.New("slot has not ended")
	ErrStaleBooking       = errors.New("booking changed concurrently")
	ErrFineNotFound       = errors.New("fine not found")
	ErrInsufficientCredit = errors.New("insufficient credit")
	ErrForbidden          = errors.New("forbidden")
	ErrRequestInProgress  = errors.New("request with this idempotency key is still running")
)

const (
	CodeValidation          = "VALIDATION_ERROR"
	CodePendingFines        = "PENDING_FINES"
	CodeCourtNotFound       = "COURT_NOT_FOUND"
	CodeTimeSlotNotFound    = "TIME_SLOT_NOT_FOUND"
	CodeSlotLocked          = "SLOT_LOCKED"
	CodeSlotAlreadyBooked   = "SLOT_ALREADY_BOOKED"
	CodeAlreadyPaidBySelf   = "ALREADY_PAID_BY_SELF"
	CodeOwnUnpaidBooking    = "OWN_UNPAID_BOOKING"
	CodeBookingNotFound     = "BOOKING_NOT_FOUND"
	CodeNotOwner            = "NOT_OWNER"
	CodeNotUnpaid           = "NOT_UNPAID"
	CodeAlreadyPaid         = "ALREADY_PAID"
	CodeSlotInPast          = "SLOT_IN_PAST"
	CodeMobileRequired      = "MOBILE_METHOD_REQUIRED"
	CodePaymentRequired     = "PAYMENT_METHOD_REQUIRED"
	CodeNotCancellable      = "NOT_CANCELLABLE"
	CodeNotPaid             = "NOT_PAID"
	CodeSlotNotEnded        = "SLOT_NOT_ENDED"
	CodeStaleBooking        = "STALE_BOOKING"
	CodeFineNotFound        = "FINE_NOT_FOUND"
	CodeInsufficientCredit  = "INSUFFICIENT_CREDIT"
	CodeForbidden           = "FORBIDDEN"
	CodeSerializationFailed = "SERIALIZATION_FAILURE"
	CodeRequestInProgress   = "REQUEST_IN_PROGRESS"
	CodeInternal            = "INTERNAL"
)

var codes = []struct {
	err  error
	code string
}{
	{ErrInvalidInput, CodeValidation},
	{ErrPendingFines, CodePendingFines},
	{ErrCourtNotFound, CodeCourtNotFound},
	{ErrTimeSlotNotFound, CodeTimeSlotNotFound},
	{ErrSlotLocked, CodeSlotLocked},
	{ErrSlotAlreadyBooked, CodeSlotAlreadyBooked},
	{ErrAlreadyPaidBySelf, CodeAlreadyPaidBySelf},
	{ErrOwnUnpaidBooking, CodeOwnUnpaidBooking},
	{ErrBookingNotFound, CodeBookingNotFound},
	{ErrNotOwner, CodeNotOwner},
	{ErrNotUnpaid, CodeNotUnpaid},
	{ErrAlreadyPaid, CodeAlreadyPaid},
	{ErrSlotInPast, CodeSlotInPast},
	{ErrMobileRequired, CodeMobileRequired},
	{ErrPaymentRequired, CodePaymentRequired},
	{ErrNotCancellable, CodeNotCancellable},
	{ErrNotPaid, CodeNotPaid},
	{ErrSlotNotEnded, CodeSlotNotEnded},
	{ErrStaleBooking, CodeStaleBooking},
	{ErrFineNotFound, CodeFineNotFound},
	{ErrInsufficientCredit, CodeInsufficientCredit},
	{ErrForbidden, CodeForbidden},
	{ErrSerializationFailure, CodeSerializationFailed},
	{ErrRequestInProgress, CodeRequestInProgress},
}

// Code returns the wire error code for err, or CodeInternal when err is not a known sentinel.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

// Retryable reports whether the client may retry the same request unchanged.
func Retryable(err error) bool {
	return errors.Is(err, ErrSlotLocked) ||
		errors.Is(err, ErrSlotAlreadyBooked) ||
		errors.Is(err, ErrSerializationFailure) ||
		errors.Is(err, ErrStaleBooking) ||
		errors.Is(err, ErrRequestInProgress)
}
