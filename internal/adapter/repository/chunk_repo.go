package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"medrag-orchestrator/internal/domain"
)

type chunkRepository struct {
	pool *pgxpool.Pool
}

// NewChunkRepository creates the pgvector-backed chunk store.
func NewChunkRepository(pool *pgxpool.Pool) domain.ChunkRepository {
	return &chunkRepository{pool: pool}
}

func (r *chunkRepository) BulkInsertChunks(ctx context.Context, chunks []domain.DocChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	rows := make([][]interface{}, len(chunks))
	for i, chunk := range chunks {
		rows[i] = []interface{}{
			chunk.ID,
			chunk.DocumentID,
			chunk.Ordinal,
			chunk.Title,
			chunk.Section,
			chunk.Content,
			chunk.Embedding,
			chunk.CreatedAt,
		}
	}

	_, err := r.pool.CopyFrom(
		ctx,
		pgx.Identifier{"doc_chunks"},
		[]string{"id", "document_id", "ordinal", "title", "section", "content", "embedding", "created_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to bulk insert chunks: %w", err)
	}
	return nil
}

func (r *chunkRepository) Search(ctx context.Context, queryVector []float32, limit int) ([]domain.VectorHit, error) {
	query := `
		SELECT id, document_id, ordinal, title, section, content, created_at,
		       1 - (embedding <=> $1) AS score
		FROM doc_chunks
		ORDER BY embedding <=> $1
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, pgvector.NewVector(queryVector), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	var hits []domain.VectorHit
	for rows.Next() {
		var hit domain.VectorHit
		if err := rows.Scan(
			&hit.Chunk.ID,
			&hit.Chunk.DocumentID,
			&hit.Chunk.Ordinal,
			&hit.Chunk.Title,
			&hit.Chunk.Section,
			&hit.Chunk.Content,
			&hit.Chunk.CreatedAt,
			&hit.Score,
		); err != nil {
			return nil, fmt.Errorf("failed to scan chunk hit: %w", err)
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return hits, nil
}

func (r *chunkRepository) DeleteByDocumentID(ctx context.Context, documentID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM doc_chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return fmt.Errorf("failed to delete chunks for document %s: %w", documentID, err)
	}
	return nil
}
