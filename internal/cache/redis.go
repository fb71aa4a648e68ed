package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Domenick1991/salonbooking/config"
	"github.com/redis/go-redis/v9"
)

// pendingMarker holds a claimed key until the reservation id is known.
const pendingMarker = "pending"

// releaseScript deletes a key only while it is still pending, so a late
// release never erases a completed result.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisCache struct {
	client *redis.Client
	prefix string
}

func NewRedisCache(cfg config.RedisConfig) *RedisCache {
	return NewRedisCacheFromClient(redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}))
}

func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, prefix: "idempotency:reservation:"}
}

// ClaimRequest marks key as in progress. It reports false when another
// request already holds or finished the key.
func (c *RedisCache) ClaimRequest(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, c.requestKey(key), pendingMarker, ttl).Result()
}

// LookupRequest returns the reservation id stored for key. found is true and
// the id empty while the original request is still running.
func (c *RedisCache) LookupRequest(ctx context.Context, key string) (string, bool, error) {
	value, err := c.client.Get(ctx, c.requestKey(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	if value == pendingMarker {
		return "", true, nil
	}
	return value, true, nil
}

func (c *RedisCache) CompleteRequest(ctx context.Context, key, reservationID string, ttl time.Duration) error {
	return c.client.Set(ctx, c.requestKey(key), reservationID, ttl).Err()
}

func (c *RedisCache) ReleaseRequest(ctx context.Context, key string) error {
	return releaseScript.Run(ctx, c.client, []string{c.requestKey(key)}, pendingMarker).Err()
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) requestKey(key string) string {
	return c.prefix + strings.TrimSpace(key)
}
