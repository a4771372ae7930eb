// Package cache provides a ristretto-backed embedding cache.
package cache

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"

	"github.com/recallhq/recall/memory/embedder"
)

// Cached wraps an Embedder with an in-process cache keyed by input text.
// Repeated queries (the common case for short chat messages) skip the
// underlying embedding call entirely. Cost accounting uses the vector's
// byte size so MaxBytes bounds actual memory, not entry count.
type Cached struct {
	inner embedder.Embedder
	cache *ristretto.Cache
}

// Config holds cache sizing.
type Config struct {
	// MaxBytes caps total cached vector bytes. Default: 64 MiB.
	MaxBytes int64

	// MaxEntries is the counter space hint for admission. Default: 100k.
	MaxEntries int64
}

// New creates a cached embedder around inner.
func New(inner embedder.Embedder, cfg Config) (*Cached, error) {
	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = 64 << 20
	}
	if cfg.MaxEntries == 0 {
		cfg.MaxEntries = 100_000
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.MaxEntries * 10,
		MaxCost:     cfg.MaxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create ristretto cache: %w", err)
	}

	return &Cached{inner: inner, cache: cache}, nil
}

// Embed returns the cached vector for text, or embeds and caches it.
func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		if vec, ok := v.([]float32); ok {
			return vec, nil
		}
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.cache.Set(text, vec, int64(len(vec)*4))
	return vec, nil
}

// Dimensions returns the inner embedder's vector size.
func (c *Cached) Dimensions() int {
	return c.inner.Dimensions()
}

// Wait blocks until buffered cache writes are applied. Ristretto admits
// entries asynchronously; callers that need read-your-write semantics
// (tests, warmup) call this.
func (c *Cached) Wait() {
	c.cache.Wait()
}

// Close releases cache resources.
func (c *Cached) Close() {
	c.cache.Close()
}
