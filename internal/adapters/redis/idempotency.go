package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

type Idempotency struct {
	client *redis.Client
}

func NewIdempotency(client *redis.Client) *Idempotency {
	return &Idempotency{client: client}
}

// IdempResponse is a stored response. Status 0 marks a key reserved by a request still running.
type IdempResponse struct {
	Status int
	Result []byte
}

func (r IdempResponse) Pending() bool {
	return r.Status == 0
}

func (i *Idempotency) Get(ctx context.Context, key string) (*IdempResponse, error) {
	val, err := i.client.Get(ctx, "idemp:"+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var resp IdempResponse
	if err := json.Unmarshal(val, &resp); err != nil {
		return nil, errors.Wrap(err, "decode idempotent response")
	}
	return &resp, nil
}

// Reserve claims key for one request and reports whether the claim was taken.
func (i *Idempotency) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(IdempResponse{})
	if err != nil {
		return false, err
	}
	return i.client.SetNX(ctx, "idemp:"+key, data, ttl).Result()
}

// Put stores the final response for key, replacing its reservation.
func (i *Idempotency) Put(ctx context.Context, key string, resp IdempResponse, ttl time.Duration) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return i.client.Set(ctx, "idemp:"+key, data, ttl).Err()
}

func (i *Idempotency) Delete(ctx context.Context, key string) error {
	return i.client.Del(ctx, "idemp:"+key).Err()
}
