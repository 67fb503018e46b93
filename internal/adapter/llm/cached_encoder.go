package llm

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"medrag-orchestrator/internal/domain"
)

// CachedEncoder memoizes query embeddings in an in-process expirable LRU.
// Questions repeat heavily (retry rounds, identical user queries), and the
// embedding of a fixed text under a fixed model is deterministic, so the
// memo is safe. Only single-text encodes are cached; indexing batches pass
// straight through.
type CachedEncoder struct {
	inner domain.VectorEncoder
	cache *expirable.LRU[string, []float32]
}

// NewCachedEncoder wraps an encoder with an LRU of the given size and TTL.
func NewCachedEncoder(inner domain.VectorEncoder, size int, ttl time.Duration) *CachedEncoder {
	return &CachedEncoder{
		inner: inner,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

// Encode serves single-text requests from the memo when possible.
func (c *CachedEncoder) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) != 1 {
		return c.inner.Encode(ctx, texts)
	}

	if vec, ok := c.cache.Get(texts[0]); ok {
		return [][]float32{vec}, nil
	}

	embeddings, err := c.inner.Encode(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 1 {
		c.cache.Add(texts[0], embeddings[0])
	}
	return embeddings, nil
}

// Version returns the wrapped encoder's version.
func (c *CachedEncoder) Version() string {
	return c.inner.Version()
}

var _ domain.VectorEncoder = (*CachedEncoder)(nil)
