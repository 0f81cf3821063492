package redis_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	redisadapter "github.com/robertarktes/court-reservations/internal/adapters/redis"
	"github.com/robertarktes/court-reservations/internal/domain"
	"github.com/robertarktes/court-reservations/internal/lock"
	"github.com/robertarktes/court-reservations/internal/observability"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ lock.Store = (*redisadapter.Cache)(nil)

func newClient(t *testing.T) (*goredis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func slotKey() domain.SlotKey {
	return domain.NewSlotKey(uuid.New(), uuid.New(), time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC))
}

func TestCache_SlotLocks(t *testing.T) {
	ctx := context.Background()
	client, _ := newClient(t)
	cache := redisadapter.NewCache(client)
	key := slotKey()
	owner := uuid.New()
	expires := time.Now().Add(time.Minute).Truncate(time.Millisecond)

	require.NoError(t, cache.InsertLock(ctx, domain.SlotLock{Key: key, CustomerID: owner, ExpiresAt: expires}))
	err := cache.InsertLock(ctx, domain.SlotLock{Key: key, CustomerID: uuid.New(), ExpiresAt: expires})
	assert.True(t, errors.Is(err, domain.ErrConflict))

	got, err := cache.GetLock(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, owner, got.CustomerID)
	assert.True(t, expires.Equal(got.ExpiresAt))

	require.NoError(t, cache.DeleteExpiredLock(ctx, key, expires.Add(-time.Second)))
	got, err = cache.GetLock(ctx, key)
	require.NoError(t, err)
	assert.NotNil(t, got, "unexpired lock survives the sweep")

	require.NoError(t, cache.DeleteLock(ctx, key, uuid.New()))
	got, err = cache.GetLock(ctx, key)
	require.NoError(t, err)
	assert.NotNil(t, got, "only the owner can delete")

	require.NoError(t, cache.DeleteExpiredLock(ctx, key, expires))
	got, err = cache.GetLock(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCache_SlotLocksExpireInRedis(t *testing.T) {
	ctx := context.Background()
	client, mr := newClient(t)
	cache := redisadapter.NewCache(client)
	key := slotKey()

	require.NoError(t, cache.InsertLock(ctx, domain.SlotLock{Key: key, CustomerID: uuid.New(), ExpiresAt: time.Now().Add(time.Minute)}))
	mr.FastForward(2 * time.Minute)

	got, err := cache.GetLock(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCache_LockManagerContention(t *testing.T) {
	ctx := context.Background()
	client, _ := newClient(t)
	logger, _ := test.NewNullLogger()
	m := lock.NewManager(redisadapter.NewCache(client), time.Minute, observability.FromLogrus(logger))
	key := slotKey()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.Acquire(ctx, key, uuid.New()) == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, winners)
}

func TestCache_IncrWindow(t *testing.T) {
	ctx := context.Background()
	client, mr := newClient(t)
	cache := redisadapter.NewCache(client)

	for want := int64(1); want <= 3; want++ {
		n, err := cache.IncrWindow(ctx, "customer:1", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	mr.FastForward(time.Minute + time.Second)
	n, err := cache.IncrWindow(ctx, "customer:1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "the window resets once the counter expires")
}

func TestIdempotency(t *testing.T) {
	ctx := context.Background()
	client, mr := newClient(t)
	idem := redisadapter.NewIdempotency(client)

	got, err := idem.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Nil(t, got)

	reserved, err := idem.Reserve(ctx, "k1", time.Minute)
	require.NoError(t, err)
	assert.True(t, reserved)

	reserved, err = idem.Reserve(ctx, "k1", time.Minute)
	require.NoError(t, err)
	assert.False(t, reserved, "the first request keeps the key")

	got, err = idem.Get(ctx, "k1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Pending())

	require.NoError(t, idem.Put(ctx, "k1", redisadapter.IdempResponse{Status: 201, Result: []byte(`{"success":true}`)}, time.Hour))

	got, err = idem.Get(ctx, "k1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.Pending())
	assert.Equal(t, 201, got.Status)
	assert.JSONEq(t, `{"success":true}`, string(got.Result))

	mr.FastForward(2 * time.Hour)
	got, err = idem.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, idem.Put(ctx, "k2", redisadapter.IdempResponse{Status: 201}, time.Hour))
	require.NoError(t, idem.Delete(ctx, "k2"))
	got, err = idem.Get(ctx, "k2")
	require.NoError(t, err)
	assert.Nil(t, got)
}
