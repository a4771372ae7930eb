package memory

import (
	"context"
	"fmt"
	"log"
	"time"
)

// DocTypeSummary tags every document this system writes.
const DocTypeSummary = "summary"

// Store writes turn summaries into the index. It is the single
// persistence entry point: nothing else appends documents.
type Store struct {
	index Index
	now   func() time.Time
}

// NewStore creates a Store over the given index.
func NewStore(index Index) *Store {
	return &Store{index: index, now: time.Now}
}

// Persist writes one summary document tagged with sessionID and returns
// its document id. The stored document always carries type="summary" and
// a fresh write-time timestamp; both win over any caller-supplied values
// under the same keys. Caller metadata is otherwise carried through.
//
// An index that accepts zero documents is a soft failure: logged, empty
// id returned, no error.
func (s *Store) Persist(ctx context.Context, sessionID string, summary string, meta map[string]string) (string, error) {
	doc := make(map[string]string, len(meta)+3)
	for k, v := range meta {
		doc[k] = v
	}
	doc["type"] = DocTypeSummary
	doc["timestamp"] = s.now().UTC().Format(time.RFC3339)
	doc["session_id"] = sessionID

	ids, err := s.index.Add(ctx, []string{summary}, []map[string]string{doc})
	if err != nil {
		return "", fmt.Errorf("add document: %w", err)
	}
	if len(ids) == 0 {
		log.Printf("[MEMORY] Index accepted zero documents for session %s", sessionID)
		return "", nil
	}

	log.Printf("[MEMORY] Stored summary %s for session %s", ids[0], sessionID)
	return ids[0], nil
}
