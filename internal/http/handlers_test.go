package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/robertarktes/court-reservations/internal/adapters/memory"
	redisadapter "github.com/robertarktes/court-reservations/internal/adapters/redis"
	"github.com/robertarktes/court-reservations/internal/availability"
	"github.com/robertarktes/court-reservations/internal/domain"
	api "github.com/robertarktes/court-reservations/internal/http"
	"github.com/robertarktes/court-reservations/internal/idempotency"
	"github.com/robertarktes/court-reservations/internal/ledger"
	"github.com/robertarktes/court-reservations/internal/lock"
	"github.com/robertarktes/court-reservations/internal/notify"
	"github.com/robertarktes/court-reservations/internal/observability"
	"github.com/robertarktes/court-reservations/internal/rateLimit"
	"github.com/robertarktes/court-reservations/internal/reservation"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type server struct {
	store  *memory.Store
	router http.Handler
	court  domain.Court
	slot   domain.TimeSlot
	date   string
}

// The clock sits at 08:00 on 2026-05-10; the slot runs 18:00 to 19:00 UTC that day.
func newServer(t *testing.T, opts api.RouterOptions) *server {
	t.Helper()
	logrusLogger, _ := test.NewNullLogger()
	logger := observability.FromLogrus(logrusLogger)
	now := func() time.Time { return time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC) }

	s := &server{
		store: memory.NewStore(),
		court: domain.Court{ID: uuid.New(), Name: "Court 1", Price: 1000, DurationMinutes: 60, Active: true},
		slot:  domain.TimeSlot{ID: uuid.New(), StartTime: "18:00", EndTime: "19:00", Order: 1},
		date:  "2026-05-10",
	}
	s.store.PutCourt(s.court)
	s.store.PutTimeSlot(s.slot)

	engine := reservation.NewEngine(reservation.Deps{
		Bookings: s.store,
		Catalog:  s.store,
		Ledger:   ledger.New(s.store, logger),
		Gate:     ledger.NewGate(s.store, logger),
		Locks:    lock.NewManager(s.store, lock.DefaultTTL, logger).WithClock(now),
		Notifier: notify.NewOutboxDispatcher(s.store),
		Audit:    s.store,
		Logger:   logger,
		Now:      now,
	}, reservation.Policy{})
	resolver := availability.NewResolver(s.store, s.store, time.UTC).WithClock(now)
	h := api.NewHandlers(engine, resolver, s.store, time.UTC, nil).WithClock(now)
	s.router = api.SetupRouter(h, logger, opts)
	return s
}

func (s *server) do(t *testing.T, method, path string, customer uuid.UUID, role domain.Role, body interface{}, headers ...string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if customer != uuid.Nil {
		req.Header.Set(api.HeaderCustomerID, customer.String())
	}
	if role != "" {
		req.Header.Set(api.HeaderCustomerRole, string(role))
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var out map[string]interface{}
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func (s *server) book(t *testing.T, customer uuid.UUID, paying bool) map[string]interface{} {
	t.Helper()
	rec, out := s.do(t, http.MethodPost, "/v1/bookings", customer, "", map[string]interface{}{
		"court_id":     s.court.ID,
		"time_slot_id": s.slot.ID,
		"date":         s.date,
		"is_paying":    paying,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return out["booking"].(map[string]interface{})
}

func TestCreateBooking(t *testing.T) {
	s := newServer(t, api.RouterOptions{})
	alice := uuid.New()

	booking := s.book(t, alice, false)
	assert.Equal(t, "unpaid", booking["status"])
	assert.Equal(t, s.date, booking["date"])

	t.Run("own unpaid booking redirects", func(t *testing.T) {
		rec, out := s.do(t, http.MethodPost, "/v1/bookings", alice, "", map[string]interface{}{
			"court_id": s.court.ID, "time_slot_id": s.slot.ID, "date": s.date,
		})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, false, out["success"])
		assert.Equal(t, "OWN_UNPAID_BOOKING", out["error_code"])
		assert.Equal(t, true, out["own_unpaid_booking"])
		assert.Equal(t, booking["id"], out["booking_id"])
	})

	t.Run("non-paying request cannot take the slot", func(t *testing.T) {
		rec, out := s.do(t, http.MethodPost, "/v1/bookings", uuid.New(), "", map[string]interface{}{
			"court_id": s.court.ID, "time_slot_id": s.slot.ID, "date": s.date,
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "SLOT_ALREADY_BOOKED", out["error_code"])
		assert.Equal(t, true, out["retryable"])
	})

	t.Run("paying request overrides", func(t *testing.T) {
		rec, out := s.do(t, http.MethodPost, "/v1/bookings", uuid.New(), "", map[string]interface{}{
			"court_id": s.court.ID, "time_slot_id": s.slot.ID, "date": s.date, "is_paying": true, "payment_method": "wave",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, booking["id"], out["overridden_booking_id"])
		assert.Equal(t, "paid", out["booking"].(map[string]interface{})["status"])
		assert.Equal(t, "wave", out["booking"].(map[string]interface{})["payment_method"])

		outbox := s.store.Outbox()
		require.Len(t, outbox, 1)
		assert.Equal(t, "notification.booking_overridden", outbox[0].EventType)
	})
}

func TestCreateBooking_Validation(t *testing.T) {
	s := newServer(t, api.RouterOptions{})

	rec, out := s.do(t, http.MethodPost, "/v1/bookings", uuid.New(), "", map[string]interface{}{
		"court_id": "not-a-uuid", "date": "10/05/2026", "payment_method": "cheque",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", out["error_code"])
	assert.Contains(t, out["error"], "court_id must be a valid UUID")
	assert.Contains(t, out["error"], "time_slot_id is required")
	assert.Contains(t, out["error"], "payment_method must be one of")

	rec, out = s.do(t, http.MethodPost, "/v1/bookings", uuid.New(), "", map[string]interface{}{
		"court_id": uuid.New(), "time_slot_id": s.slot.ID, "date": s.date,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "COURT_NOT_FOUND", out["error_code"])
}

func TestIdentityRequired(t *testing.T) {
	s := newServer(t, api.RouterOptions{})
	rec, out := s.do(t, http.MethodGet, "/v1/courts", uuid.Nil, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHENTICATED", out["error_code"])

	rec, _ = s.do(t, http.MethodGet, "/v1/healthz", uuid.Nil, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSlotsAndCourts(t *testing.T) {
	s := newServer(t, api.RouterOptions{})
	alice := uuid.New()
	s.book(t, alice, false)

	rec, out := s.do(t, http.MethodGet, "/v1/courts", alice, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, out["courts"], 1)

	rec, out = s.do(t, http.MethodGet, "/v1/courts/"+s.court.ID.String()+"/slots?date="+s.date, uuid.New(), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	slots := out["slots"].([]interface{})
	require.Len(t, slots, 1)
	slot := slots[0].(map[string]interface{})
	assert.Equal(t, "unpaid", slot["status"])
	assert.Equal(t, true, slot["can_override"])

	rec, out = s.do(t, http.MethodGet, "/v1/courts/"+s.court.ID.String()+"/slots?date=tomorrow", alice, "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", out["error_code"])
}

func TestPayAndCancel(t *testing.T) {
	s := newServer(t, api.RouterOptions{})
	alice := uuid.New()
	booking := s.book(t, alice, false)
	id := booking["id"].(string)

	rec, out := s.do(t, http.MethodPost, "/v1/bookings/"+id+"/pay", uuid.New(), "", map[string]interface{}{"payment_method": "wave"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "NOT_OWNER", out["error_code"])

	rec, out = s.do(t, http.MethodPost, "/v1/bookings/"+id+"/pay", alice, "", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "PAYMENT_METHOD_REQUIRED", out["error_code"])

	rec, out = s.do(t, http.MethodPost, "/v1/bookings/"+id+"/pay", alice, "", map[string]interface{}{"payment_method": "orange_money"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "paid", out["booking"].(map[string]interface{})["status"])

	// 10 hours before start: late cancellation of a paid booking refunds half as credit.
	rec, out = s.do(t, http.MethodPost, "/v1/bookings/"+id+"/cancel", alice, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(500), out["refund_amount"])
	assert.Equal(t, true, out["late_cancellation"])

	rec, out = s.do(t, http.MethodGet, "/v1/me/credit", alice, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(500), out["balance"])

	rec, out = s.do(t, http.MethodGet, "/v1/bookings", alice, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, out["bookings"], 1)
	assert.Equal(t, "cancelled", out["bookings"].([]interface{})[0].(map[string]interface{})["status"])
}

func TestFinesBlockBooking(t *testing.T) {
	s := newServer(t, api.RouterOptions{})
	alice := uuid.New()
	booking := s.book(t, alice, false)

	rec, out := s.do(t, http.MethodPost, "/v1/bookings/"+booking["id"].(string)+"/cancel", alice, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(500), out["fine_amount"])
	fineID := out["fine"].(map[string]interface{})["id"].(string)

	rec, out = s.do(t, http.MethodGet, "/v1/me/eligibility", alice, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, out["can_book"])
	assert.Equal(t, float64(500), out["pending_fines_total"])

	rec, out = s.do(t, http.MethodPost, "/v1/bookings", alice, "", map[string]interface{}{
		"court_id": s.court.ID, "time_slot_id": s.slot.ID, "date": s.date,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "PENDING_FINES", out["error_code"])

	rec, _ = s.do(t, http.MethodPost, "/v1/fines/"+fineID+"/pay", alice, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, out = s.do(t, http.MethodGet, "/v1/me/eligibility", alice, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["can_book"])
}

func TestStaffRoutes(t *testing.T) {
	s := newServer(t, api.RouterOptions{})
	alice, staff := uuid.New(), uuid.New()
	booking := s.book(t, alice, true)

	rec, out := s.do(t, http.MethodGet, "/v1/staff/schedule?date="+s.date, alice, "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", out["error_code"])

	rec, out = s.do(t, http.MethodGet, "/v1/staff/schedule?date="+s.date, staff, domain.RoleStaff, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	courts := out["courts"].([]interface{})
	require.Len(t, courts, 1)
	slot := courts[0].(map[string]interface{})["slots"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "paid", slot["status"])
	assert.Equal(t, booking["id"], slot["booking"].(map[string]interface{})["id"])

	rec, out = s.do(t, http.MethodPost, "/v1/bookings/"+booking["id"].(string)+"/no-show", staff, domain.RoleStaff, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "SLOT_NOT_ENDED", out["error_code"])

	rec, out = s.do(t, http.MethodGet, "/v1/staff/no-shows", staff, domain.RoleStaff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, out["bookings"])

	rec, _ = s.do(t, http.MethodGet, "/v1/bookings/"+booking["id"].(string)+"/history", alice, "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, out = s.do(t, http.MethodGet, "/v1/bookings/"+booking["id"].(string)+"/history", staff, domain.RoleStaff, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	history := out["history"].([]interface{})
	require.Len(t, history, 1)
	entry := history[0].(map[string]interface{})
	assert.Equal(t, "booking.created", entry["action"])
	assert.Equal(t, "paid", entry["status"])
	assert.Equal(t, booking["id"], entry["booking_id"])
}

func newRedis(t *testing.T) *goredis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestIdempotentReplay(t *testing.T) {
	client := newRedis(t)
	s := newServer(t, api.RouterOptions{
		Idempotency: idempotency.NewIdempotency(redisadapter.NewIdempotency(client), time.Hour),
	})
	alice := uuid.New()
	body := map[string]interface{}{"court_id": s.court.ID, "time_slot_id": s.slot.ID, "date": s.date}

	first, out1 := s.do(t, http.MethodPost, "/v1/bookings", alice, "", body, api.HeaderIdempotencyKey, "create-1")
	require.Equal(t, http.StatusCreated, first.Code)

	second, out2 := s.do(t, http.MethodPost, "/v1/bookings", alice, "", body, api.HeaderIdempotencyKey, "create-1")
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get(api.HeaderReplayed))
	assert.Equal(t, out1, out2)

	bookings, err := s.store.ListBookings(context.Background(), domain.BookingFilter{CustomerID: &alice})
	require.NoError(t, err)
	assert.Len(t, bookings, 1)

	third, out3 := s.do(t, http.MethodPost, "/v1/bookings", alice, "", body, api.HeaderIdempotencyKey, "create-2")
	assert.Equal(t, http.StatusOK, third.Code)
	assert.Equal(t, "OWN_UNPAID_BOOKING", out3["error_code"])
}

func TestIdempotency_RetryableConflictIsNotReplayed(t *testing.T) {
	client := newRedis(t)
	s := newServer(t, api.RouterOptions{
		Idempotency: idempotency.NewIdempotency(redisadapter.NewIdempotency(client), time.Hour),
	})
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	date, err := domain.ParseDate(s.date)
	require.NoError(t, err)
	key := domain.NewSlotKey(s.court.ID, s.slot.ID, date)
	now := time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC)
	require.NoError(t, s.store.InsertLock(ctx, domain.NewSlotLock(key, bob, lock.DefaultTTL, now)))

	body := map[string]interface{}{"court_id": s.court.ID, "time_slot_id": s.slot.ID, "date": s.date, "is_paying": true}
	first, out := s.do(t, http.MethodPost, "/v1/bookings", alice, "", body, api.HeaderIdempotencyKey, "pay-1")
	require.Equal(t, http.StatusConflict, first.Code)
	assert.Equal(t, "SLOT_LOCKED", out["error_code"])

	require.NoError(t, s.store.DeleteLock(ctx, key, bob))

	retry, out := s.do(t, http.MethodPost, "/v1/bookings", alice, "", body, api.HeaderIdempotencyKey, "pay-1")
	require.Equal(t, http.StatusCreated, retry.Code, retry.Body.String())
	assert.Empty(t, retry.Header().Get(api.HeaderReplayed))
	assert.Equal(t, "paid", out["booking"].(map[string]interface{})["status"])

	replay, _ := s.do(t, http.MethodPost, "/v1/bookings", alice, "", body, api.HeaderIdempotencyKey, "pay-1")
	assert.Equal(t, http.StatusCreated, replay.Code)
	assert.Equal(t, "true", replay.Header().Get(api.HeaderReplayed))
}

func TestIdempotency_ConcurrentDuplicateIsRejected(t *testing.T) {
	client := newRedis(t)
	idem := idempotency.NewIdempotency(redisadapter.NewIdempotency(client), time.Hour)
	s := newServer(t, api.RouterOptions{Idempotency: idem})
	alice := uuid.New()

	reserved, err := idem.Reserve(context.Background(), alice.String(), "create-1")
	require.NoError(t, err)
	require.True(t, reserved)

	body := map[string]interface{}{"court_id": s.court.ID, "time_slot_id": s.slot.ID, "date": s.date}
	rec, out := s.do(t, http.MethodPost, "/v1/bookings", alice, "", body, api.HeaderIdempotencyKey, "create-1")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "REQUEST_IN_PROGRESS", out["error_code"])
	assert.Equal(t, true, out["retryable"])

	bookings, err := s.store.ListBookings(context.Background(), domain.BookingFilter{CustomerID: &alice})
	require.NoError(t, err)
	assert.Empty(t, bookings, "the duplicate never reaches the engine")
}

func TestRateLimit(t *testing.T) {
	client := newRedis(t)
	s := newServer(t, api.RouterOptions{
		RateLimiter:        rateLimit.NewRateLimiter(redisadapter.NewCache(client)),
		RateLimitPerMinute: 2,
	})
	alice := uuid.New()

	for i := 0; i < 2; i++ {
		rec, _ := s.do(t, http.MethodGet, "/v1/courts", alice, "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec, out := s.do(t, http.MethodGet, "/v1/courts", alice, "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMITED", out["error_code"])
}
