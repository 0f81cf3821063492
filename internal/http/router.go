package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robertarktes/court-reservations/internal/idempotency"
	"github.com/robertarktes/court-reservations/internal/observability"
	"github.com/robertarktes/court-reservations/internal/rateLimit"
)

// RouterOptions carries the optional redis-backed middleware. Nil members are skipped.
type RouterOptions struct {
	RateLimiter        *rateLimit.RateLimiter
	RateLimitPerMinute int
	Idempotency        *idempotency.Idempotency
}

func SetupRouter(h *Handlers, logger observability.Logger, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)
	r.Use(MetricsMiddleware)

	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/v1", func(r chi.Router) {
		r.Use(IdentityMiddleware)
		r.Use(RateLimitMiddleware(opts.RateLimiter, opts.RateLimitPerMinute))
		r.Use(IdempotencyMiddleware(opts.Idempotency))

		r.Get("/courts", h.ListCourts)
		r.Get("/courts/{courtID}/slots", h.CourtSlots)

		r.Post("/bookings", h.CreateBooking)
		r.Get("/bookings", h.ListBookings)
		r.Post("/bookings/{bookingID}/pay", h.PayBooking)
		r.Post("/bookings/{bookingID}/cancel", h.CancelBooking)

		r.Get("/me/eligibility", h.Eligibility)
		r.Get("/me/credit", h.CreditBalance)
		r.Post("/fines/{fineID}/pay", h.PayFine)

		r.Group(func(r chi.Router) {
			r.Use(StaffOnly)
			r.Post("/bookings/{bookingID}/no-show", h.MarkNoShow)
			r.Get("/bookings/{bookingID}/history", h.BookingHistory)
			r.Get("/staff/schedule", h.DaySchedule)
			r.Get("/staff/no-shows", h.PendingNoShows)
		})
	})

	return r
}
