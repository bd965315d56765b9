package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shule-app/shule/core/session"
)

const keyPrefix = "shule:qc:"

// RedisCache is the redis-backed query cache. Entries expire on their own as
// a safety net; correctness still depends on the explicit purges.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ QueryCache = (*RedisCache)(nil)

func NewRedisCache(redisURL string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return NewRedisCacheWithClient(redis.NewClient(opts), ttl), nil
}

func NewRedisCacheWithClient(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) key(tenant session.TenantID, key string) string {
	return keyPrefix + tenant.String() + ":" + key
}

func (c *RedisCache) Get(ctx context.Context, tenant session.TenantID, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.key(tenant, key)).Bytes()
	if err == redis.Nil {
		return nil, ErrMiss
	}
	return val, err
}

func (c *RedisCache) Set(ctx context.Context, tenant session.TenantID, key string, value []byte) error {
	return c.client.Set(ctx, c.key(tenant, key), value, c.ttl).Err()
}

func (c *RedisCache) ClearTenant(ctx context.Context, tenant session.TenantID) error {
	return c.deleteByPattern(ctx, keyPrefix+tenant.String()+":*")
}

func (c *RedisCache) Clear(ctx context.Context) error {
	return c.deleteByPattern(ctx, keyPrefix+"*")
}

func (c *RedisCache) deleteByPattern(ctx context.Context, pattern string) error {
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (c *RedisCache) Close() error { return c.client.Close() }
