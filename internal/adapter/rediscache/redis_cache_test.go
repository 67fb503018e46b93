package rediscache_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"medrag-orchestrator/internal/adapter/rediscache"
	"medrag-orchestrator/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestCache(t *testing.T) (*rediscache.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := rediscache.New(mr.Addr(), testLogger())
	t.Cleanup(func() { _ = cache.Close() })
	return cache, mr
}

func TestRedisCache_RoundTrip(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	key := domain.CacheKey("retrieve", "what a1c indicates diabetes")
	ok := cache.Set(ctx, key, []byte(`[{"id":"d1"}]`), time.Minute)
	require.True(t, ok)

	value, hit := cache.Get(ctx, key)
	assert.True(t, hit)
	assert.Equal(t, []byte(`[{"id":"d1"}]`), value)
}

func TestRedisCache_MissOnAbsentKey(t *testing.T) {
	cache, _ := newTestCache(t)

	value, hit := cache.Get(context.Background(), domain.CacheKey("retrieve", "never stored"))
	assert.False(t, hit)
	assert.Nil(t, value)
}

func TestRedisCache_TTLExpiry(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	key := domain.CacheKey("retrieve", "expiring query")
	require.True(t, cache.Set(ctx, key, []byte("value"), 5*time.Minute))

	_, hit := cache.Get(ctx, key)
	require.True(t, hit)

	mr.FastForward(5*time.Minute + time.Second)

	_, hit = cache.Get(ctx, key)
	assert.False(t, hit, "entry must expire after its TTL")
}

func TestRedisCache_Delete(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	key := domain.CacheKey("retrieve", "q")
	require.True(t, cache.Set(ctx, key, []byte("v"), time.Minute))
	assert.True(t, cache.Delete(ctx, key))

	_, hit := cache.Get(ctx, key)
	assert.False(t, hit)
}

func TestRedisCache_UnreachableStoreActsAsNoop(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()
	key := domain.CacheKey("retrieve", "q")

	mr.Close()

	_, hit := cache.Get(ctx, key)
	assert.False(t, hit, "dead store must read as a miss")
	assert.False(t, cache.Set(ctx, key, []byte("v"), time.Minute))
	assert.False(t, cache.Delete(ctx, key))
	assert.Error(t, cache.Ping(ctx))
}

func TestRedisCache_DistinctOperationsDoNotCollide(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	keyA := domain.CacheKey("retrieve", "same text")
	keyB := domain.CacheKey("answer", "same text")
	require.NotEqual(t, keyA, keyB)

	require.True(t, cache.Set(ctx, keyA, []byte("retrieval"), time.Minute))

	_, hit := cache.Get(ctx, keyB)
	assert.False(t, hit)
}
