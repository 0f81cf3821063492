// Package idempotency stores the first response given to an Idempotency-Key so
// a retried request replays it instead of running twice.
package idempotency

import (
	"context"
	"time"

	redisadapter "github.com/robertarktes/court-reservations/internal/adapters/redis"
)

// ReservationTTL bounds how long a key stays claimed by a request that never finishes.
const ReservationTTL = time.Minute

type Idempotency struct {
	redis *redisadapter.Idempotency
	ttl   time.Duration
}

func NewIdempotency(redis *redisadapter.Idempotency, ttl time.Duration) *Idempotency {
	return &Idempotency{redis: redis, ttl: ttl}
}

type Response struct {
	Status int
	Result []byte
}

// Pending reports whether the key is claimed but the first request has not answered yet.
func (r Response) Pending() bool {
	return r.Status == 0
}

// Keys are scoped per caller so two customers may reuse the same key.
func scoped(scope, key string) string {
	return scope + ":" + key
}

func (i *Idempotency) Get(ctx context.Context, scope, key string) (*Response, error) {
	stored, err := i.redis.Get(ctx, scoped(scope, key))
	if err != nil || stored == nil {
		return nil, err
	}
	return &Response{Status: stored.Status, Result: stored.Result}, nil
}

// Reserve claims the key before the request runs. False means another request holds it.
func (i *Idempotency) Reserve(ctx context.Context, scope, key string) (bool, error) {
	ttl := ReservationTTL
	if i.ttl < ttl {
		ttl = i.ttl
	}
	return i.redis.Reserve(ctx, scoped(scope, key), ttl)
}

func (i *Idempotency) Set(ctx context.Context, scope, key string, resp Response) error {
	return i.redis.Put(ctx, scoped(scope, key), redisadapter.IdempResponse{Status: resp.Status, Result: resp.Result}, i.ttl)
}

// Release drops a reservation so the same key can be retried.
func (i *Idempotency) Release(ctx context.Context, scope, key string) error {
	return i.redis.Delete(ctx, scoped(scope, key))
}
