package redis

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/robertarktes/court-reservations/internal/domain"
)

type Cache struct {
	client *redis.Client
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Client() *redis.Client {
	return c.client
}

// IncrWindow bumps the counter behind key and returns its value. The counter
// expires one period after it was created.
func (c *Cache) IncrWindow(ctx context.Context, key string, period time.Duration) (int64, error) {
	fullKey := "rl:" + key

	n, err := c.client.Incr(ctx, fullKey).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if err := c.client.Expire(ctx, fullKey, period).Err(); err != nil {
			return n, err
		}
	}
	return n, nil
}

// Slot locks are stored as "<owner>|<expiry unix millis>" under a key per slot.
// The key also carries a redis TTL so abandoned locks disappear on their own.

func lockKey(key domain.SlotKey) string {
	return "slotlock:" + key.String()
}

func lockValue(l domain.SlotLock) string {
	return l.CustomerID.String() + "|" + strconv.FormatInt(l.ExpiresAt.UnixMilli(), 10)
}

func parseLockValue(key domain.SlotKey, v string) (*domain.SlotLock, error) {
	owner, expiry, ok := strings.Cut(v, "|")
	if !ok {
		return nil, errors.Newf("malformed slot lock %q", v)
	}
	id, err := uuid.Parse(owner)
	if err != nil {
		return nil, errors.Wrap(err, "parse slot lock owner")
	}
	ms, err := strconv.ParseInt(expiry, 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "parse slot lock expiry")
	}
	return &domain.SlotLock{Key: key, CustomerID: id, ExpiresAt: time.UnixMilli(ms)}, nil
}

var deleteExpiredScript = redis.NewScript(`
local v = redis.call("GET", KEYS[1])
if not v then return 0 end
local sep = string.find(v, "|", 1, true)
if sep and tonumber(string.sub(v, sep + 1)) <= tonumber(ARGV[1]) then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var deleteOwnedScript = redis.NewScript(`
local v = redis.call("GET", KEYS[1])
if v and string.sub(v, 1, string.len(ARGV[1]) + 1) == ARGV[1] .. "|" then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (c *Cache) DeleteExpiredLock(ctx context.Context, key domain.SlotKey, now time.Time) error {
	return deleteExpiredScript.Run(ctx, c.client, []string{lockKey(key)}, now.UnixMilli()).Err()
}

func (c *Cache) InsertLock(ctx context.Context, l domain.SlotLock) error {
	ttl := time.Until(l.ExpiresAt)
	if ttl < time.Second {
		ttl = time.Second
	}
	ok, err := c.client.SetNX(ctx, lockKey(l.Key), lockValue(l), ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrConflict
	}
	return nil
}

func (c *Cache) GetLock(ctx context.Context, key domain.SlotKey) (*domain.SlotLock, error) {
	v, err := c.client.Get(ctx, lockKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return parseLockValue(key, v)
}

func (c *Cache) DeleteLock(ctx context.Context, key domain.SlotKey, owner uuid.UUID) error {
	return deleteOwnedScript.Run(ctx, c.client, []string{lockKey(key)}, owner.String()).Err()
}
