package rediscache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"medrag-orchestrator/internal/domain"
)

// RedisCache implements the response cache on Redis. When the store is
// unreachable it presents as a no-op cache: Get always misses, Set and Delete
// report false, nothing raises. Callers never special-case cache
// availability.
type RedisCache struct {
	client *redis.Client
	logger *slog.Logger
}

// New creates a cache backed by the given Redis address.
func New(addr string, logger *slog.Logger) *RedisCache {
	client := redis.NewClient(&redis.Options{Addr: addr})
	return &RedisCache{client: client, logger: logger}
}

// NewFromURL creates a cache from a redis:// URL.
func NewFromURL(url string, logger *slog.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisCache{client: redis.NewClient(opts), logger: logger}, nil
}

// Get returns the value and true on a hit; false on miss, expiry, or store
// failure.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	value, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache_get_failed", slog.String("error", err.Error()))
		}
		return nil, false
	}
	return value, true
}

// Set stores value under key for ttl; false on failure.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.logger.Warn("cache_set_failed", slog.String("error", err.Error()))
		return false
	}
	return true
}

// Delete removes key; false on failure.
func (c *RedisCache) Delete(ctx context.Context, key string) bool {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Warn("cache_delete_failed", slog.String("error", err.Error()))
		return false
	}
	return true
}

// Ping reports whether the backing store is reachable. Used by readiness
// probes only; pipeline callers rely on the no-op degradation instead.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the client's connections.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

var _ domain.ResponseCache = (*RedisCache)(nil)
