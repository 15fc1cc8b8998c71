package ranking

import (
	"sort"

	"github.com/hyperjump/kioku/internal/vector"
	"github.com/hyperjump/kioku/models"
)

// RankedResult holds a document with its computed score.
type RankedResult struct {
	// Index is the document's position in the store, preserved so callers
	// can break ties by insertion order.
	Index    int
	Document models.Document
	Score    float64
}

// RankDocuments scores every document against the query embedding and
// returns all of them ordered by descending cosine similarity. Ties keep
// their insertion order.
func RankDocuments(query []float32, docs []models.Document) []RankedResult {
	results := make([]RankedResult, 0, len(docs))

	for i, doc := range docs {
		results = append(results, RankedResult{
			Index:    i,
			Document: doc,
			Score:    vector.CosineSimilarity(query, doc.Embedding),
		})
	}

	// Sort by score descending; stable so equal scores stay in store order.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	return results
}

// TopN returns the top N results.
func TopN(results []RankedResult, n int) []RankedResult {
	if n >= len(results) {
		return results
	}
	return results[:n]
}
