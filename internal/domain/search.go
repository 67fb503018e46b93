package domain

import (
	"context"

	"github.com/google/uuid"
)

// LexicalIndex defines full-text search and index maintenance against the
// keyword search engine (Meilisearch).
type LexicalIndex interface {
	// Search performs keyword search and returns ranked hits, highest
	// relevance first, Rank populated 1-based.
	Search(ctx context.Context, query string, limit int) ([]LexicalHit, error)

	// IndexChunks upserts chunks into the full-text index.
	IndexChunks(ctx context.Context, chunks []DocChunk) error

	// DeleteDocument removes all chunks belonging to a corpus document.
	DeleteDocument(ctx context.Context, documentID string) error
}

// ChunkRepository defines vector storage and k-NN search over chunk
// embeddings.
type ChunkRepository interface {
	// Search performs a cosine k-NN search for the query vector.
	Search(ctx context.Context, queryVector []float32, limit int) ([]VectorHit, error)

	// BulkInsertChunks inserts chunks with their embeddings.
	BulkInsertChunks(ctx context.Context, chunks []DocChunk) error

	// DeleteByDocumentID removes all chunks for a corpus document.
	DeleteByDocumentID(ctx context.Context, documentID string) error
}

// IndexJobRepository is the queue the HTTP layer enqueues indexing work into
// and the worker drains.
type IndexJobRepository interface {
	Enqueue(ctx context.Context, job *IndexJob) error

	// AcquireNextJob atomically claims the oldest new job, or returns
	// (nil, nil) when the queue is empty.
	AcquireNextJob(ctx context.Context) (*IndexJob, error)

	MarkDone(ctx context.Context, jobID uuid.UUID) error
	MarkFailed(ctx context.Context, jobID uuid.UUID, reason string) error
}
