package memory

import (
	"context"
	"log"
)

// DefaultTopK is the number of memories retrieved per turn when the
// caller doesn't specify one.
const DefaultTopK = 3

// Retriever finds past summaries relevant to the current user input.
type Retriever struct {
	index Index
}

// NewRetriever creates a Retriever over the given index.
func NewRetriever(index Index) *Retriever {
	return &Retriever{index: index}
}

// Retrieve returns the k most relevant prior summaries for query, scoped
// to sessionID, in descending similarity order. k <= 0 falls back to
// DefaultTopK.
//
// Retrieval never blocks a turn: any index error is logged and treated as
// "no memories found".
func (r *Retriever) Retrieve(ctx context.Context, query string, sessionID string, k int) []Record {
	if k <= 0 {
		k = DefaultTopK
	}

	hits, err := r.index.Search(ctx, query, k, sessionID)
	if err != nil {
		log.Printf("[MEMORY] Retrieval failed, continuing without memories: %v", err)
		return []Record{}
	}

	records := make([]Record, 0, len(hits))
	for _, hit := range hits {
		records = append(records, Record{
			Text:     hit.Text,
			Metadata: hit.Metadata,
		})
	}

	log.Printf("[MEMORY] Retrieved %d memories for query: %q", len(records), truncateLog(query, 50))
	return records
}

// truncateLog truncates text for logging.
func truncateLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
