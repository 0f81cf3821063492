package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/robertarktes/court-reservations/internal/domain"
	"github.com/robertarktes/court-reservations/internal/idempotency"
	"github.com/robertarktes/court-reservations/internal/observability"
	"github.com/robertarktes/court-reservations/internal/rateLimit"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

type ctxKey int

const (
	loggerKey ctxKey = iota
	actorKey
)

const (
	HeaderCustomerID     = "X-Customer-ID"
	HeaderCustomerRole   = "X-Customer-Role"
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"
)

var discardLogger = func() observability.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return observability.FromLogrus(l)
}()

func RequestIDMiddleware(next http.Handler) http.Handler {
	return middleware.RequestID(next)
}

func LoggerMiddleware(logger observability.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := middleware.GetReqID(r.Context())
			entry := logger.WithField("request_id", reqID)
			ctx := context.WithValue(r.Context(), loggerKey, entry)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func loggerFrom(ctx context.Context) observability.Logger {
	if l, ok := ctx.Value(loggerKey).(observability.Logger); ok {
		return l
	}
	return discardLogger
}

// MetricsMiddleware counts requests by route pattern, status code and method.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		observability.RequestsTotal.WithLabelValues(route, strconv.Itoa(ww.Status()), r.Method).Inc()
	})
}

// IdentityMiddleware reads the caller set by the upstream auth gateway.
func IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.Header.Get(HeaderCustomerID))
		if err != nil || id == uuid.Nil {
			writeJSON(w, http.StatusUnauthorized, errorResponse{
				Error:     "missing or invalid " + HeaderCustomerID,
				ErrorCode: "UNAUTHENTICATED",
			})
			return
		}
		actor := domain.Actor{ID: id, Role: domain.RoleCustomer}
		if domain.Role(r.Header.Get(HeaderCustomerRole)) == domain.RoleStaff {
			actor.Role = domain.RoleStaff
		}
		ctx := context.WithValue(r.Context(), actorKey, actor)
		ctx = context.WithValue(ctx, loggerKey, loggerFrom(ctx).WithField("customer_id", id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func actorFrom(ctx context.Context) domain.Actor {
	a, _ := ctx.Value(actorKey).(domain.Actor)
	return a
}

func StaffOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !actorFrom(r.Context()).IsStaff() {
			writeError(w, r, domain.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimitMiddleware limits each customer and each client IP to rate requests per minute.
// A nil limiter or a zero rate disables it; counter errors let the request through.
func RateLimitMiddleware(rl *rateLimit.RateLimiter, rate int) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if rl == nil || rate <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}
			keys := []string{"ip:" + ip}
			if actor := actorFrom(r.Context()); actor.ID != uuid.Nil {
				keys = append(keys, "customer:"+actor.ID.String())
			}
			for _, key := range keys {
				ok, err := rl.Allow(r.Context(), key, rate, time.Minute)
				if err != nil {
					loggerFrom(r.Context()).WithError(err).Warn("rate limiter unavailable")
					break
				}
				if !ok {
					observability.RateLimitExceeded.Inc()
					writeJSON(w, http.StatusTooManyRequests, errorResponse{
						Error:     "rate limit exceeded",
						ErrorCode: "RATE_LIMITED",
						Retryable: true,
					})
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

type recorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (r *recorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *recorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// storable reports whether a response may be replayed for the rest of the key's lifetime.
// Anything the client is expected to retry is released instead.
func storable(rec *recorder) bool {
	if rec.status == 0 || rec.status >= http.StatusInternalServerError || rec.status == http.StatusConflict ||
		rec.status == http.StatusTooManyRequests {
		return false
	}
	var body struct {
		Retryable bool `json:"retryable"`
	}
	if err := json.Unmarshal(rec.body.Bytes(), &body); err == nil && body.Retryable {
		return false
	}
	return true
}

// IdempotencyMiddleware replays the stored response of a POST carrying an Idempotency-Key
// already seen for the same customer. The key is reserved before the handler runs, so a
// concurrent duplicate gets REQUEST_IN_PROGRESS instead of running twice.
func IdempotencyMiddleware(idemp *idempotency.Idempotency) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if idemp == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(HeaderIdempotencyKey)
			if r.Method != http.MethodPost || key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > 128 {
				writeError(w, r, domain.ErrInvalidInput)
				return
			}
			scope := actorFrom(r.Context()).ID.String()
			logger := loggerFrom(r.Context()).WithField("idempotency_key", key)

			reserved, err := idemp.Reserve(r.Context(), scope, key)
			if err != nil {
				logger.WithError(err).Warn("idempotency reservation failed")
				next.ServeHTTP(w, r)
				return
			}
			if !reserved {
				existing, err := idemp.Get(r.Context(), scope, key)
				if err != nil {
					logger.WithError(err).Warn("idempotency lookup failed")
				}
				if existing == nil || existing.Pending() {
					writeError(w, r, domain.ErrRequestInProgress)
					return
				}
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set(HeaderReplayed, "true")
				w.WriteHeader(existing.Status)
				_, _ = w.Write(existing.Result)
				return
			}

			rec := &recorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			ctx := context.WithoutCancel(r.Context())
			if !storable(rec) {
				if err := idemp.Release(ctx, scope, key); err != nil {
					logger.WithError(err).Warn("failed to release idempotency key")
				}
				return
			}
			resp := idempotency.Response{Status: rec.status, Result: rec.body.Bytes()}
			if err := idemp.Set(ctx, scope, key, resp); err != nil {
				logger.WithError(err).Warn("failed to store idempotent response")
			}
		})
	}
}

func TracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		tracer := otel.Tracer("http")
		ctx, span := tracer.Start(ctx, r.Method+" "+r.URL.Path)
		defer span.End()

		span.SetAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.url", r.URL.String()),
		)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
