package retrieval

import (
	"sort"

	"medrag-orchestrator/internal/domain"
)

// DefaultRRFK is the damping constant for reciprocal rank fusion. k=60 is the
// standard starting point (Weaviate/LlamaIndex guidance).
const DefaultRRFK = 60.0

// FuseRankings merges the lexical and vector rankings with reciprocal rank
// fusion: each list contributes 1/(k+rank) per document, summed by document
// id. Rank-based fusion is deliberate — the two backends score on
// incomparable scales, so magnitudes must not be mixed.
//
// Ties break stably toward the vector list: vector-list insertion order
// first, then lexical-list order for documents only the lexical side saw.
// Vector rank reflects semantic proximity to the query, so on equal fused
// scores the semantically closer document wins.
func FuseRankings(lexical []domain.RetrievedDocument, vector []domain.RetrievedDocument, k float64, topK int) []domain.RetrievedDocument {
	type fused struct {
		doc   domain.RetrievedDocument
		score float64
		seen  int
	}
	order := 0
	fusedMap := make(map[string]*fused, len(lexical)+len(vector))

	accumulate := func(docs []domain.RetrievedDocument) {
		for rank, doc := range docs {
			entry, exists := fusedMap[doc.ID]
			if !exists {
				entry = &fused{doc: doc, seen: order}
				order++
				fusedMap[doc.ID] = entry
			}
			entry.score += 1.0 / (k + float64(rank+1))
		}
	}
	accumulate(vector)
	accumulate(lexical)

	results := make([]*fused, 0, len(fusedMap))
	for _, entry := range fusedMap {
		results = append(results, entry)
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].seen < results[j].seen
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}

	docs := make([]domain.RetrievedDocument, len(results))
	for i, entry := range results {
		doc := entry.doc
		doc.RawScore = entry.score
		docs[i] = doc
	}
	return docs
}
