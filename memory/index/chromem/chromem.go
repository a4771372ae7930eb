// Package chromem backs the memory Index with chromem-go, an embedded
// pure-Go vector database. With a persist directory configured, stored
// documents survive process restarts.
package chromem

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/google/uuid"

	"github.com/recallhq/recall/memory"
)

// globalCollection holds documents stored without a session id.
const globalCollection = "memories"

// Config configures the index.
type Config struct {
	// PersistDir is the on-disk storage directory. Empty means
	// in-memory only (no durability).
	PersistDir string

	// Compress gzips persisted collections.
	Compress bool

	// Embedding converts text to vectors for both documents and
	// queries. Required.
	Embedding chromem.EmbeddingFunc
}

// Index stores memory documents in per-session chromem collections.
// Session isolation is structural: a session's documents live in their
// own collection, so a scoped search cannot see other sessions.
type Index struct {
	db          *chromem.DB
	embedding   chromem.EmbeddingFunc
	collections map[string]*chromem.Collection
	mu          sync.RWMutex
}

// New opens (or creates) the index.
func New(cfg Config) (*Index, error) {
	if cfg.Embedding == nil {
		return nil, fmt.Errorf("chromem index: embedding func is required")
	}

	var db *chromem.DB
	if cfg.PersistDir != "" {
		var err error
		db, err = chromem.NewPersistentDB(cfg.PersistDir, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("open persistent db: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	x := &Index{
		db:          db,
		embedding:   cfg.Embedding,
		collections: make(map[string]*chromem.Collection),
	}

	// Collections restored from disk come back without an embedding
	// func; GetCollection re-attaches ours.
	for name := range db.ListCollections() {
		if col := db.GetCollection(name, cfg.Embedding); col != nil {
			x.collections[name] = col
		}
	}

	return x, nil
}

// collection returns the collection for a session, creating it on first
// write or scoped search. Empty session names map to the shared global
// collection.
func (x *Index) collection(sessionID string) (*chromem.Collection, error) {
	name := collectionName(sessionID)

	x.mu.RLock()
	col, exists := x.collections[name]
	x.mu.RUnlock()
	if exists {
		return col, nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	// Double-check after acquiring write lock
	if col, exists := x.collections[name]; exists {
		return col, nil
	}

	col, err := x.db.GetOrCreateCollection(name, nil, x.embedding)
	if err != nil {
		return nil, fmt.Errorf("create collection %s: %w", name, err)
	}

	x.collections[name] = col
	return col, nil
}

// Add stores each text in the collection named by its session_id
// metadata. Embeddings are computed by the collection's embedding func.
func (x *Index) Add(ctx context.Context, texts []string, metadatas []map[string]string) ([]string, error) {
	if len(texts) != len(metadatas) {
		return nil, fmt.Errorf("texts/metadatas length mismatch: %d != %d", len(texts), len(metadatas))
	}

	ids := make([]string, 0, len(texts))
	for i, text := range texts {
		meta := metadatas[i]

		col, err := x.collection(meta["session_id"])
		if err != nil {
			return nil, err
		}

		id := uuid.New().String()
		err = col.AddDocument(ctx, chromem.Document{
			ID:       id,
			Content:  text,
			Metadata: meta,
		})
		if err != nil {
			return nil, fmt.Errorf("add document: %w", err)
		}

		log.Printf("[CHROMEM] Stored document %s (session=%s)", id, meta["session_id"])
		ids = append(ids, id)
	}
	return ids, nil
}

// Search queries a single session's collection, or every collection when
// sessionID is empty, merging results by descending similarity.
func (x *Index) Search(ctx context.Context, query string, k int, sessionID string) ([]memory.Hit, error) {
	if k <= 0 {
		return nil, nil
	}

	var cols []*chromem.Collection
	if sessionID != "" {
		col, err := x.collection(sessionID)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	} else {
		x.mu.RLock()
		for _, col := range x.collections {
			cols = append(cols, col)
		}
		x.mu.RUnlock()
	}

	var hits []memory.Hit
	for _, col := range cols {
		results, err := x.queryCollection(ctx, col, query, k)
		if err != nil {
			return nil, err
		}
		hits = append(hits, results...)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})
	if k < len(hits) {
		hits = hits[:k]
	}

	log.Printf("[CHROMEM] Search returned %d hits (session=%q)", len(hits), sessionID)
	return hits, nil
}

// queryCollection runs one collection query with nResults clamped to the
// collection size; chromem rejects requests for more results than it has
// documents.
func (x *Index) queryCollection(ctx context.Context, col *chromem.Collection, query string, k int) ([]memory.Hit, error) {
	count := col.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	results, err := col.Query(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	hits := make([]memory.Hit, 0, len(results))
	for _, res := range results {
		hits = append(hits, memory.Hit{
			Text:       res.Content,
			Metadata:   res.Metadata,
			Similarity: res.Similarity,
		})
	}
	return hits, nil
}

// Close releases nothing today; chromem persists on write. Kept so the
// caller owns the index lifecycle end to end.
func (x *Index) Close() error {
	return nil
}

// collectionName maps a session id onto a chromem-safe collection name.
// chromem restricts names to [a-zA-Z0-9._-] with bounded length.
func collectionName(sessionID string) string {
	if sessionID == "" {
		return globalCollection
	}

	var b strings.Builder
	b.WriteString("session-")
	for _, r := range sessionID {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}

	name := b.String()
	if len(name) > 63 {
		name = name[:63]
	}
	return name
}
