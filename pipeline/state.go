package pipeline

import (
	"errors"
	"strings"

	"github.com/recallhq/recall/memory"
)

// ErrEmptyInput reports a caller that violated the state contract by
// invoking the pipeline without a user input. This is the only failure
// the pipeline surfaces to its caller; runtime failures degrade inside
// their stage instead.
var ErrEmptyInput = errors.New("pipeline: state has no user input")

// Metadata travels with a turn. SessionID identifies the memory owner
// and is set once at pipeline entry, never mutated downstream: Patch has
// no session field, so stages cannot touch it. Timestamps accumulates
// one RFC3339 entry per stage that ran, keyed by stage name.
type Metadata struct {
	SessionID  string            `json:"session_id"`
	Timestamps map[string]string `json:"timestamps"`
}

// State is the value threaded through the pipeline for one turn. It is
// owned by a single invocation, never shared across concurrent turns,
// and discarded once the final stage returns.
type State struct {
	UserInput         string          `json:"user_input"`
	RetrievedMemories []memory.Record `json:"retrieved_memories"`
	Response          string          `json:"response"`
	Summary           string          `json:"summary"`
	Meta              Metadata        `json:"metadata"`
}

// NewState builds the initial state for one inbound turn.
func NewState(userInput string, sessionID string) State {
	return State{
		UserInput:         userInput,
		RetrievedMemories: []memory.Record{},
		Meta: Metadata{
			SessionID:  sessionID,
			Timestamps: map[string]string{},
		},
	}
}

// Patch is a per-stage partial update. nil fields mean "no change";
// set scalars overwrite, Timestamps merges key-wise into the state's map.
type Patch struct {
	RetrievedMemories []memory.Record
	Response          *string
	Summary           *string
	Timestamps        map[string]string
}

// merge applies a patch to a state and returns the updated state.
// Mapping-valued fields are unioned (existing keys kept unless the patch
// rewrites them); scalar fields are overwritten when present. The
// timestamps map is copied, never mutated in place, so callers holding
// earlier states see stable values.
func merge(s State, p Patch) State {
	if p.RetrievedMemories != nil {
		s.RetrievedMemories = p.RetrievedMemories
	}
	if p.Response != nil {
		s.Response = *p.Response
	}
	if p.Summary != nil {
		s.Summary = *p.Summary
	}
	if len(p.Timestamps) > 0 {
		merged := make(map[string]string, len(s.Meta.Timestamps)+len(p.Timestamps))
		for k, v := range s.Meta.Timestamps {
			merged[k] = v
		}
		for k, v := range p.Timestamps {
			merged[k] = v
		}
		s.Meta.Timestamps = merged
	}
	return s
}

// validate enforces the state contract at pipeline entry.
func validate(s State) error {
	if strings.TrimSpace(s.UserInput) == "" {
		return ErrEmptyInput
	}
	return nil
}
