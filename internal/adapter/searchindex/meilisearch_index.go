package searchindex

import (
	"context"
	"fmt"

	"github.com/meilisearch/meilisearch-go"

	"medrag-orchestrator/internal/domain"
)

// meiliTaskTimeout is the task-wait interval in milliseconds.
const meiliTaskTimeout = 15 * 1000

// chunkDocument is the shape stored in the Meilisearch index. The id matches
// the chunk's vector-store id so rank fusion can merge hits across backends.
type chunkDocument struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	Section    string `json:"section"`
	Content    string `json:"content"`
}

// MeilisearchIndex is the lexical side of the search index.
type MeilisearchIndex struct {
	client meilisearch.ServiceManager
	index  meilisearch.IndexManager
}

// NewMeilisearchIndex binds to the named index.
func NewMeilisearchIndex(client meilisearch.ServiceManager, indexName string) *MeilisearchIndex {
	return &MeilisearchIndex{
		client: client,
		index:  client.Index(indexName),
	}
}

// Search performs keyword search, returning hits ranked best-first with Rank
// populated 1-based.
func (m *MeilisearchIndex) Search(ctx context.Context, query string, limit int) ([]domain.LexicalHit, error) {
	result, err := m.index.Search(query, &meilisearch.SearchRequest{
		Query:            query,
		Limit:            int64(limit),
		ShowRankingScore: true,
	})
	if err != nil {
		return nil, fmt.Errorf("meilisearch search failed: %w", err)
	}

	hits := make([]domain.LexicalHit, 0, len(result.Hits))
	for i, hit := range result.Hits {
		hitMap, ok := hit.(map[string]interface{})
		if !ok {
			continue
		}
		hits = append(hits, domain.LexicalHit{
			ID:      getString(hitMap, "id"),
			Title:   getString(hitMap, "title"),
			Section: getString(hitMap, "section"),
			Content: getString(hitMap, "content"),
			Score:   getFloat(hitMap, "_rankingScore"),
			Rank:    i + 1,
		})
	}
	return hits, nil
}

// IndexChunks upserts chunks into the index and waits for the task.
func (m *MeilisearchIndex) IndexChunks(ctx context.Context, chunks []domain.DocChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	docs := make([]chunkDocument, len(chunks))
	for i, chunk := range chunks {
		docs[i] = chunkDocument{
			ID:         chunk.ID.String(),
			DocumentID: chunk.DocumentID,
			Title:      chunk.Title,
			Section:    chunk.Section,
			Content:    chunk.Content,
		}
	}

	task, err := m.index.AddDocuments(docs)
	if err != nil {
		return fmt.Errorf("meilisearch add documents failed: %w", err)
	}
	if _, err := m.index.WaitForTask(task.TaskUID, meiliTaskTimeout); err != nil {
		return fmt.Errorf("meilisearch indexing task failed: %w", err)
	}
	return nil
}

// DeleteDocument removes every chunk of the given corpus document.
func (m *MeilisearchIndex) DeleteDocument(ctx context.Context, documentID string) error {
	task, err := m.index.DeleteDocumentsByFilter(fmt.Sprintf("document_id = %q", documentID))
	if err != nil {
		return fmt.Errorf("meilisearch delete failed: %w", err)
	}
	if _, err := m.index.WaitForTask(task.TaskUID, meiliTaskTimeout); err != nil {
		return fmt.Errorf("meilisearch delete task failed: %w", err)
	}
	return nil
}

// EnsureIndex makes sure the index exists with document_id filterable.
// Meilisearch creates an index lazily on first document write, so a missing
// index is bootstrapped with a throwaway document.
func (m *MeilisearchIndex) EnsureIndex(ctx context.Context) error {
	if _, err := m.index.FetchInfo(); err != nil {
		seed := []chunkDocument{{
			ID:         "init",
			DocumentID: "init",
			Title:      "Initialization document",
			Content:    "This document is used to create the index",
		}}
		task, err := m.index.AddDocuments(seed)
		if err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
		if _, err := m.index.WaitForTask(task.TaskUID, meiliTaskTimeout); err != nil {
			return fmt.Errorf("failed to wait for index creation: %w", err)
		}
		if deleteTask, err := m.index.DeleteDocument("init"); err == nil {
			_, _ = m.index.WaitForTask(deleteTask.TaskUID, meiliTaskTimeout)
		}
	}

	task, err := m.index.UpdateFilterableAttributes(&[]string{"document_id"})
	if err != nil {
		return fmt.Errorf("failed to set filterable attributes: %w", err)
	}
	if _, err := m.index.WaitForTask(task.TaskUID, meiliTaskTimeout); err != nil {
		return fmt.Errorf("filterable attributes task failed: %w", err)
	}
	return nil
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func getFloat(m map[string]interface{}, key string) float64 {
	if v, ok := m[key].(float64); ok {
		return v
	}
	return 0
}

var _ domain.LexicalIndex = (*MeilisearchIndex)(nil)
