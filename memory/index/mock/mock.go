// Package mock provides an in-memory Index for tests and offline runs.
// It is the authoritative test double for the vector index boundary:
// brute-force cosine similarity over embeddings from any Embedder.
package mock

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/recallhq/recall/memory"
	"github.com/recallhq/recall/memory/embedder"
)

type document struct {
	id        string
	text      string
	metadata  map[string]string
	embedding []float32
}

// Index is a lock-protected in-memory vector index.
type Index struct {
	mu       sync.RWMutex
	embedder embedder.Embedder
	docs     []document

	// FailAdd and FailSearch force errors for degradation tests.
	FailAdd    error
	FailSearch error
}

// New creates an empty index using emb for both documents and queries.
func New(emb embedder.Embedder) *Index {
	return &Index{embedder: emb}
}

// Add embeds and stores each text with its metadata.
func (x *Index) Add(ctx context.Context, texts []string, metadatas []map[string]string) ([]string, error) {
	if x.FailAdd != nil {
		return nil, x.FailAdd
	}
	if len(texts) != len(metadatas) {
		return nil, fmt.Errorf("texts/metadatas length mismatch: %d != %d", len(texts), len(metadatas))
	}

	ids := make([]string, 0, len(texts))
	for i, text := range texts {
		vec, err := x.embedder.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed document: %w", err)
		}

		meta := make(map[string]string, len(metadatas[i]))
		for k, v := range metadatas[i] {
			meta[k] = v
		}

		doc := document{
			id:        uuid.New().String(),
			text:      text,
			metadata:  meta,
			embedding: vec,
		}

		x.mu.Lock()
		x.docs = append(x.docs, doc)
		x.mu.Unlock()

		ids = append(ids, doc.id)
	}
	return ids, nil
}

// Search returns up to k documents by descending cosine similarity,
// filtered to sessionID when non-empty.
func (x *Index) Search(ctx context.Context, query string, k int, sessionID string) ([]memory.Hit, error) {
	if x.FailSearch != nil {
		return nil, x.FailSearch
	}

	queryVec, err := x.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	hits := make([]memory.Hit, 0, len(x.docs))
	for _, doc := range x.docs {
		if sessionID != "" && doc.metadata["session_id"] != sessionID {
			continue
		}
		hits = append(hits, memory.Hit{
			Text:       doc.text,
			Metadata:   doc.metadata,
			Similarity: cosineSimilarity(queryVec, doc.embedding),
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})

	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Close is a no-op; everything lives in process memory.
func (x *Index) Close() error {
	return nil
}

// Len returns the number of stored documents.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.docs)
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
