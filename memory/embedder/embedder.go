// Package embedder converts text into vectors for similarity search.
//
// The embedding function is an implementation detail of the vector index:
// the pipeline never calls it directly. Implementations:
//   - Local: deterministic, offline, no model files required
//   - cache.Cached: ristretto-backed decorator over any Embedder
//   - chromem-go's OpenAI embedding funcs (selected in cmd wiring)
package embedder

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// Embedder converts text to vector embeddings.
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// FromFunc adapts a raw embedding function (for example one of
// chromem-go's built-in embedding funcs) to the Embedder interface.
func FromFunc(fn func(ctx context.Context, text string) ([]float32, error), dims int) Embedder {
	return funcEmbedder{fn: fn, dims: dims}
}

type funcEmbedder struct {
	fn   func(ctx context.Context, text string) ([]float32, error)
	dims int
}

func (f funcEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.fn(ctx, text)
}

func (f funcEmbedder) Dimensions() int { return f.dims }

// Local generates deterministic embeddings without a model.
// Each token maps to a pseudo-random unit direction seeded by its hash;
// a text's embedding is the normalized sum of its token vectors, so texts
// sharing tokens land close together under cosine similarity. Good enough
// for offline development and tests; swap in a real embedding func for
// production quality.
type Local struct {
	dimensions int
}

// NewLocal creates a local embedder.
func NewLocal() *Local {
	return &Local{
		dimensions: 384, // Match all-MiniLM-L6-v2 dimensions
	}
}

// Embed creates a deterministic embedding from text.
func (l *Local) Embed(ctx context.Context, text string) ([]float32, error) {
	embedding := make([]float32, l.dimensions)

	for _, token := range tokenize(text) {
		h := fnv.New64a()
		h.Write([]byte(token))
		seed := h.Sum64()

		for i := 0; i < l.dimensions; i++ {
			// Simple LCG (Linear Congruential Generator)
			seed = seed*6364136223846793005 + 1442695040888963407
			embedding[i] += float32(int64(seed)) / float32(math.MaxInt64)
		}
	}

	return Normalize(embedding), nil
}

// Dimensions returns the embedding size.
func (l *Local) Dimensions() int {
	return l.dimensions
}

// tokenize lowercases and splits on non-alphanumeric runes.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		isAlnum := r >= 'a' && r <= 'z' || r >= '0' && r <= '9'
		return !isAlnum
	})
}

// Normalize converts an embedding to a unit vector.
func Normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}

	if norm == 0 {
		return vec
	}

	norm = float32(math.Sqrt(float64(norm)))
	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = v / norm
	}

	return normalized
}
