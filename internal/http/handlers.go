package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/robertarktes/court-reservations/internal/availability"
	"github.com/robertarktes/court-reservations/internal/domain"
	"github.com/robertarktes/court-reservations/internal/ledger"
	"github.com/robertarktes/court-reservations/internal/reservation"
)

type Handlers struct {
	engine   *reservation.Engine
	resolver *availability.Resolver
	catalog  availability.Catalog
	loc      *time.Location
	ready    func(ctx context.Context) error
	now      func() time.Time
}

// NewHandlers wires the HTTP surface to the engine. ready backs /v1/readyz and may be nil.
func NewHandlers(engine *reservation.Engine, resolver *availability.Resolver, catalog availability.Catalog, loc *time.Location, ready func(ctx context.Context) error) *Handlers {
	if loc == nil {
		loc = time.UTC
	}
	return &Handlers{engine: engine, resolver: resolver, catalog: catalog, loc: loc, ready: ready, now: time.Now}
}

func (h *Handlers) WithClock(now func() time.Time) *Handlers {
	h.now = now
	return h
}

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, errors.Mark(errors.Newf("invalid %s", name), domain.ErrInvalidInput)
	}
	return id, nil
}

// queryDate reads ?date=YYYY-MM-DD, defaulting to today in the venue timezone.
func (h *Handlers) queryDate(r *http.Request) (time.Time, error) {
	if s := r.URL.Query().Get("date"); s != "" {
		return domain.ParseDate(s)
	}
	return domain.DateOnly(h.now().In(h.loc)), nil
}

func (h *Handlers) ListCourts(w http.ResponseWriter, r *http.Request) {
	courts, err := h.catalog.ListCourts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "courts": courts})
}

func (h *Handlers) CourtSlots(w http.ResponseWriter, r *http.Request) {
	courtID, err := pathID(r, "courtID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	date, err := h.queryDate(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	slots, err := h.resolver.Slots(r.Context(), courtID, date, actorFrom(r.Context()).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"court_id": courtID,
		"date":     domain.FormatDate(date),
		"slots":    slots,
	})
}

type createBookingRequest struct {
	CourtID       string `json:"court_id" validate:"required,uuid"`
	TimeSlotID    string `json:"time_slot_id" validate:"required,uuid"`
	Date          string `json:"date" validate:"required,datetime=2006-01-02"`
	IsPaying      bool   `json:"is_paying"`
	PaymentMethod string `json:"payment_method" validate:"omitempty,oneof=orange_money wave cash credit credit_and_mobile"`
	UseCredit     bool   `json:"use_credit"`
	MobileMethod  string `json:"mobile_method" validate:"omitempty,oneof=orange_money wave"`
}

type bookingResponse struct {
	Success             bool              `json:"success"`
	Booking             *bookingDTO       `json:"booking,omitempty"`
	Breakdown           *domain.Breakdown `json:"breakdown,omitempty"`
	OverriddenBookingID *uuid.UUID        `json:"overridden_booking_id,omitempty"`
}

// ownUnpaidResponse tells the client to pay its existing hold instead of booking again.
type ownUnpaidResponse struct {
	errorResponse
	OwnUnpaidBooking bool      `json:"own_unpaid_booking"`
	BookingID        uuid.UUID `json:"booking_id"`
}

func writeResult(w http.ResponseWriter, status int, res reservation.Result) {
	if res.OwnUnpaidBooking {
		writeJSON(w, http.StatusOK, ownUnpaidResponse{
			errorResponse: errorResponse{
				Error:     domain.ErrOwnUnpaidBooking.Error(),
				ErrorCode: domain.CodeOwnUnpaidBooking,
			},
			OwnUnpaidBooking: true,
			BookingID:        res.Booking.ID,
		})
		return
	}
	resp := bookingResponse{Success: true, Breakdown: res.Breakdown}
	if res.Booking != nil {
		dto := toBookingDTO(*res.Booking)
		resp.Booking = &dto
	}
	if res.Overridden != nil {
		resp.OverriddenBookingID = &res.Overridden.ID
	}
	writeJSON(w, status, resp)
}

func (h *Handlers) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := decode(r.Body, &req); err != nil {
		writeError(w, r, err)
		return
	}
	date, err := domain.ParseDate(req.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.engine.CreateBooking(r.Context(), reservation.CreateRequest{
		CustomerID:    actorFrom(r.Context()).ID,
		CourtID:       uuid.MustParse(req.CourtID),
		TimeSlotID:    uuid.MustParse(req.TimeSlotID),
		Date:          date,
		IsPaying:      req.IsPaying,
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
		UseCredit:     req.UseCredit,
		MobileMethod:  domain.PaymentMethod(req.MobileMethod),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusCreated, res)
}

func (h *Handlers) ListBookings(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 || n > 500 {
			writeError(w, r, errors.Mark(errors.New("limit must be between 1 and 500"), domain.ErrInvalidInput))
			return
		}
		limit = n
	}
	bookings, err := h.engine.ListCustomerBookings(r.Context(), actorFrom(r.Context()).ID, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "bookings": toBookingDTOs(bookings)})
}

type payBookingRequest struct {
	PaymentMethod string `json:"payment_method" validate:"omitempty,oneof=orange_money wave cash credit credit_and_mobile"`
	UseCredit     bool   `json:"use_credit"`
	MobileMethod  string `json:"mobile_method" validate:"omitempty,oneof=orange_money wave"`
}

func (h *Handlers) PayBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "bookingID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req payBookingRequest
	if err := decode(r.Body, &req); err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.engine.PayExisting(r.Context(), reservation.PayRequest{
		CustomerID:    actorFrom(r.Context()).ID,
		BookingID:     id,
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
		UseCredit:     req.UseCredit,
		MobileMethod:  domain.PaymentMethod(req.MobileMethod),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeResult(w, http.StatusOK, res)
}

type cancelResponse struct {
	Success          bool              `json:"success"`
	Booking          bookingDTO        `json:"booking"`
	RefundAmount     int64             `json:"refund_amount"`
	FineAmount       int64             `json:"fine_amount"`
	LateCancellation bool              `json:"late_cancellation"`
	Fine             *domain.FineEntry `json:"fine,omitempty"`
}

func (h *Handlers) CancelBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "bookingID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.engine.Cancel(r.Context(), id, actorFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cancelResponse{
		Success:          true,
		Booking:          toBookingDTO(res.Booking),
		RefundAmount:     res.Outcome.RefundAmount,
		FineAmount:       res.Outcome.FineAmount,
		LateCancellation: res.Outcome.LateCancellation,
		Fine:             res.Fine,
	})
}

func (h *Handlers) MarkNoShow(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "bookingID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := h.engine.MarkNoShow(r.Context(), id, actorFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "booking": toBookingDTO(*b)})
}

func (h *Handlers) BookingHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "bookingID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	history, err := h.engine.BookingHistory(r.Context(), id, actorFrom(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "history": history})
}

func (h *Handlers) Eligibility(w http.ResponseWriter, r *http.Request) {
	elig := h.engine.CheckCanBook(r.Context(), actorFrom(r.Context()).ID)
	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		ledger.Eligibility
	}{Success: true, Eligibility: elig})
}

func (h *Handlers) CreditBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.engine.CreditBalance(r.Context(), actorFrom(r.Context()).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "balance": balance})
}

func (h *Handlers) PayFine(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "fineID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	fine, err := h.engine.PayFine(r.Context(), id, actorFrom(r.Context()).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "fine": fine})
}

type scheduleSlot struct {
	availability.SlotView
	Booking *bookingDTO `json:"booking,omitempty"`
}

type scheduleCourt struct {
	Court domain.Court   `json:"court"`
	Slots []scheduleSlot `json:"slots"`
}

func (h *Handlers) DaySchedule(w http.ResponseWriter, r *http.Request) {
	date, err := h.queryDate(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	schedule, err := h.resolver.DaySchedule(r.Context(), date)
	if err != nil {
		writeError(w, r, err)
		return
	}

	courts := make([]scheduleCourt, len(schedule))
	for i, cs := range schedule {
		courts[i] = scheduleCourt{Court: cs.Court, Slots: make([]scheduleSlot, len(cs.Slots))}
		for j, v := range cs.Slots {
			slot := scheduleSlot{SlotView: v}
			if v.Booking != nil {
				dto := toBookingDTO(*v.Booking)
				slot.Booking = &dto
			}
			courts[i].Slots[j] = slot
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"date":    domain.FormatDate(date),
		"courts":  courts,
	})
}

func (h *Handlers) PendingNoShows(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.engine.PendingNoShows(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "bookings": toBookingDTOs(bookings)})
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			loggerFrom(r.Context()).WithError(err).Warn("not ready")
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Ready"))
}
