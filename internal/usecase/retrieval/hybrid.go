package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"medrag-orchestrator/internal/domain"
)

const (
	// DefaultTopK bounds the fused result list.
	DefaultTopK = 10
	// DefaultCacheTTL is how long a fused retrieval stays memoized.
	DefaultCacheTTL = 5 * time.Minute

	cacheOperation = "retrieve"
)

// Config holds the retrieval knobs, set once at construction.
type Config struct {
	TopK     int
	RRFK     float64
	CacheTTL time.Duration
}

// DefaultConfig returns the standard retrieval settings.
func DefaultConfig() Config {
	return Config{
		TopK:     DefaultTopK,
		RRFK:     DefaultRRFK,
		CacheTTL: DefaultCacheTTL,
	}
}

// Validate checks the retrieval configuration.
func (c Config) Validate() error {
	if c.TopK <= 0 {
		return fmt.Errorf("retrieval topK must be positive, got %d", c.TopK)
	}
	if c.RRFK <= 0 {
		return fmt.Errorf("retrieval rrfK must be positive, got %f", c.RRFK)
	}
	return nil
}

// HybridRetriever runs lexical and vector search against the index and fuses
// the rankings. Failures never propagate: each degradation rung appends an
// advisory error string and the worst case is an empty result list.
type HybridRetriever struct {
	encoder domain.VectorEncoder
	lexical domain.LexicalIndex
	chunks  domain.ChunkRepository
	cache   domain.ResponseCache
	cfg     Config
	logger  *slog.Logger
}

// NewHybridRetriever wires the retriever. cache may be a no-op implementation
// but must not be nil.
func NewHybridRetriever(
	encoder domain.VectorEncoder,
	lexical domain.LexicalIndex,
	chunks domain.ChunkRepository,
	cache domain.ResponseCache,
	cfg Config,
	logger *slog.Logger,
) *HybridRetriever {
	return &HybridRetriever{
		encoder: encoder,
		lexical: lexical,
		chunks:  chunks,
		cache:   cache,
		cfg:     cfg,
		logger:  logger,
	}
}

// Retrieve returns up to topK documents ordered by fused relevance, highest
// first, plus any advisory errors accumulated along the degradation ladder.
// topK <= 0 uses the configured default.
func (r *HybridRetriever) Retrieve(ctx context.Context, query string, topK int) ([]domain.RetrievedDocument, []string) {
	if topK <= 0 {
		topK = r.cfg.TopK
	}

	key := domain.CacheKey(cacheOperation, query)
	if cached, ok := r.cache.Get(ctx, key); ok {
		var docs []domain.RetrievedDocument
		if err := json.Unmarshal(cached, &docs); err == nil {
			r.logger.Info("retrieval_cache_hit",
				slog.Int("doc_count", len(docs)))
			return docs, nil
		}
		// Corrupt entry: drop it and fall through to the backends.
		r.cache.Delete(ctx, key)
	}

	var errs []string

	lexDocs, lexErr := r.searchLexical(ctx, query, topK)
	if lexErr != nil {
		errs = append(errs, fmt.Sprintf("lexical search failed: %v", lexErr))
	}

	vecDocs, vecErr := r.searchVector(ctx, query, topK)
	if vecErr != nil {
		errs = append(errs, fmt.Sprintf("vector search failed: %v", vecErr))
	}

	if lexErr != nil && vecErr != nil {
		r.logger.Warn("retrieval_fully_degraded",
			slog.String("lexical_error", lexErr.Error()),
			slog.String("vector_error", vecErr.Error()))
		return []domain.RetrievedDocument{}, errs
	}

	fused := FuseRankings(lexDocs, vecDocs, r.cfg.RRFK, topK)

	r.logger.Info("hybrid_retrieval_completed",
		slog.Int("lexical_count", len(lexDocs)),
		slog.Int("vector_count", len(vecDocs)),
		slog.Int("fused_count", len(fused)))

	// Memoize only clean fused rounds. An embedding or backend failure means
	// the list is degraded and must not be served to later requests.
	if lexErr == nil && vecErr == nil {
		if payload, err := json.Marshal(fused); err == nil {
			r.cache.Set(ctx, key, payload, r.cfg.CacheTTL)
		}
	}

	return fused, errs
}

func (r *HybridRetriever) searchLexical(ctx context.Context, query string, topK int) ([]domain.RetrievedDocument, error) {
	hits, err := r.lexical.Search(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	docs := make([]domain.RetrievedDocument, len(hits))
	for i, hit := range hits {
		docs[i] = domain.RetrievedDocument{
			ID:       hit.ID,
			Text:     hit.Content,
			RawScore: hit.Score,
			Title:    hit.Title,
			Section:  hit.Section,
			Metadata: map[string]string{"source": "lexical"},
		}
	}
	return docs, nil
}

func (r *HybridRetriever) searchVector(ctx context.Context, query string, topK int) ([]domain.RetrievedDocument, error) {
	embeddings, err := r.encoder.Encode(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(embeddings))
	}

	hits, err := r.chunks.Search(ctx, embeddings[0], topK)
	if err != nil {
		return nil, err
	}
	docs := make([]domain.RetrievedDocument, len(hits))
	for i, hit := range hits {
		docs[i] = domain.RetrievedDocument{
			ID:       hit.Chunk.ID.String(),
			Text:     hit.Chunk.Content,
			RawScore: hit.Score,
			Title:    hit.Chunk.Title,
			Section:  hit.Chunk.Section,
			Metadata: map[string]string{"source": "vector"},
		}
	}
	return docs, nil
}
