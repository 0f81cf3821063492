package rateLimit

import (
	"context"
	"time"

	redisadapter "github.com/robertarktes/court-reservations/internal/adapters/redis"
)

type RateLimiter struct {
	redis *redisadapter.Cache
}

func NewRateLimiter(redis *redisadapter.Cache) *RateLimiter {
	return &RateLimiter{redis: redis}
}

// Allow counts one request against key and reports whether it stays within rate per period.
func (rl *RateLimiter) Allow(ctx context.Context, key string, rate int, period time.Duration) (bool, error) {
	n, err := rl.redis.IncrWindow(ctx, key, period)
	if err != nil {
		return true, err
	}
	return n <= int64(rate), nil
}
