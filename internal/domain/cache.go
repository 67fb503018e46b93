package domain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// ResponseCache is an exact-match key-value store with TTL. Keys are one-way
// hashes derived by the caller, so the store never holds raw query text.
//
// When the backing store is unreachable the implementation must present as a
// no-op cache: Get always misses, Set and Delete report false without
// raising. Callers never special-case cache unavailability.
type ResponseCache interface {
	// Get returns the cached value and true on a hit, or false when the key
	// is absent, expired, or the store is unreachable.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores value under key for ttl. Returns false on failure.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool

	// Delete removes key. Returns false on failure.
	Delete(ctx context.Context, key string) bool
}

// CacheKey derives the store key for an (operation, text) pair. One-way so
// the backing store never sees raw query text.
func CacheKey(operation, text string) string {
	sum := sha256.Sum256([]byte(operation + "\x00" + text))
	return "medrag:" + operation + ":" + hex.EncodeToString(sum[:])
}
