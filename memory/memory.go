// Package memory provides long-term conversational memory: turn summaries
// are persisted into a vector index and retrieved by semantic similarity
// on later turns.
//
// Architecture:
//   - Index: vector storage boundary (chromem-go for durable storage,
//     in-memory mock for tests)
//   - Store: single persistence entry point; stamps write-time metadata
//   - Retriever: similarity lookup, maps raw hits into Records
//
// The index is the only shared mutable resource between concurrent turns;
// implementations must support concurrent Search and Add. Retrieval and
// persistence both degrade on index failure rather than failing the turn.
package memory

import "context"

// Record is a retrieved memory as surfaced to the generation stage:
// the stored summary text plus its stored metadata.
type Record struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

// Hit is a raw similarity-search result from an Index.
type Hit struct {
	Text       string
	Metadata   map[string]string
	Similarity float32
}

// Index is the vector storage backend boundary. The pipeline depends only
// on Add and Search plus durability; the embedding function is entirely
// encapsulated behind the implementation.
//
// Search with a non-empty sessionID returns only documents stored under
// that session. An empty sessionID searches globally.
type Index interface {
	// Add stores texts with their metadata and returns one document id
	// per stored text. len(texts) must equal len(metadatas).
	Add(ctx context.Context, texts []string, metadatas []map[string]string) ([]string, error)

	// Search returns up to k documents most similar to query, in
	// descending similarity order.
	Search(ctx context.Context, query string, k int, sessionID string) ([]Hit, error)

	// Close releases index resources.
	Close() error
}
