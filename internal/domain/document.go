package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// RetrievedDocument is a single search-index hit. Instances are never mutated
// after creation; re-fusing or re-grading produces new records.
type RetrievedDocument struct {
	ID       string
	Text     string
	RawScore float64
	Title    string
	Section  string
	Metadata map[string]string
}

// DocChunk is a persistable chunk of a corpus document with its embedding.
type DocChunk struct {
	ID         uuid.UUID
	DocumentID string
	Ordinal    int
	Title      string
	Section    string
	Content    string
	Embedding  pgvector.Vector
	CreatedAt  time.Time
}

// VectorHit is a chunk found via k-NN search, with its backend-native score.
type VectorHit struct {
	Chunk DocChunk
	Score float64
}

// LexicalHit is a chunk found via full-text search. Rank is the 1-based
// position in the backend's ranking, kept for reciprocal rank fusion.
type LexicalHit struct {
	ID      string
	Title   string
	Section string
	Content string
	Score   float64
	Rank    int
}

// IndexJob is a queued indexing request processed by the background worker.
type IndexJob struct {
	ID        uuid.UUID
	JobType   string
	Payload   map[string]interface{}
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}
