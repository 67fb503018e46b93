package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"golang.org/x/sync/errgroup"

	"medrag-orchestrator/internal/domain"
)

// UpsertDocumentInput carries pre-chunked document content. Chunking and PDF
// parsing happen upstream; this boundary only sees plain data.
type UpsertDocumentInput struct {
	DocumentID string
	Title      string
	Chunks     []ChunkInput
}

// ChunkInput is one chunk of document text with its section label.
type ChunkInput struct {
	Section string
	Text    string
}

// IndexDocumentUsecase writes document chunks into both retrieval backends:
// embeddings into the vector store, text into the full-text index. Chunk ids
// are shared across backends so fusion can merge hits by id.
type IndexDocumentUsecase interface {
	// Upsert replaces the document's chunks in both backends. It is idempotent.
	Upsert(ctx context.Context, input UpsertDocumentInput) error
	// Delete removes the document's chunks from both backends.
	Delete(ctx context.Context, documentID string) error
}

type indexDocumentUsecase struct {
	encoder domain.VectorEncoder
	lexical domain.LexicalIndex
	chunks  domain.ChunkRepository
	logger  *slog.Logger
}

// NewIndexDocumentUsecase creates the indexing usecase.
func NewIndexDocumentUsecase(
	encoder domain.VectorEncoder,
	lexical domain.LexicalIndex,
	chunks domain.ChunkRepository,
	logger *slog.Logger,
) IndexDocumentUsecase {
	return &indexDocumentUsecase{
		encoder: encoder,
		lexical: lexical,
		chunks:  chunks,
		logger:  logger,
	}
}

func (u *indexDocumentUsecase) Upsert(ctx context.Context, input UpsertDocumentInput) error {
	if strings.TrimSpace(input.DocumentID) == "" {
		return fmt.Errorf("document_id is required")
	}
	if len(input.Chunks) == 0 {
		return fmt.Errorf("document %s has no chunks", input.DocumentID)
	}

	texts := make([]string, len(input.Chunks))
	for i, chunk := range input.Chunks {
		texts[i] = chunk.Text
	}

	embeddings, err := u.encoder.Encode(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to encode chunks: %w", err)
	}
	if len(embeddings) != len(texts) {
		return fmt.Errorf("expected %d embeddings, got %d", len(texts), len(embeddings))
	}

	now := time.Now()
	docChunks := make([]domain.DocChunk, len(input.Chunks))
	for i, chunk := range input.Chunks {
		docChunks[i] = domain.DocChunk{
			ID:         uuid.New(),
			DocumentID: input.DocumentID,
			Ordinal:    i,
			Title:      input.Title,
			Section:    chunk.Section,
			Content:    chunk.Text,
			Embedding:  pgvector.NewVector(embeddings[i]),
			CreatedAt:  now,
		}
	}

	if err := u.Delete(ctx, input.DocumentID); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := u.chunks.BulkInsertChunks(gctx, docChunks); err != nil {
			return fmt.Errorf("failed to insert chunk embeddings: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := u.lexical.IndexChunks(gctx, docChunks); err != nil {
			return fmt.Errorf("failed to index chunks for full-text search: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	u.logger.Info("document_indexed",
		slog.String("document_id", input.DocumentID),
		slog.Int("chunk_count", len(docChunks)),
		slog.String("embedder_version", u.encoder.Version()))
	return nil
}

func (u *indexDocumentUsecase) Delete(ctx context.Context, documentID string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := u.chunks.DeleteByDocumentID(gctx, documentID); err != nil {
			return fmt.Errorf("failed to delete chunk embeddings: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := u.lexical.DeleteDocument(gctx, documentID); err != nil {
			return fmt.Errorf("failed to delete from full-text index: %w", err)
		}
		return nil
	})
	return g.Wait()
}
