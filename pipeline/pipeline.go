// Package pipeline orchestrates one chat turn as a linear staged state
// machine: ingest -> retrieve -> generate -> summarize -> store.
//
// Each stage merges a partial update into the turn state and always
// hands control to its successor; a stage that fails degrades its own
// output (empty retrieval, error-text response, fallback summary,
// skipped write) instead of aborting. The caller therefore always gets
// a final state with a textual response, except for contract errors.
package pipeline

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/recallhq/recall/llm"
	"github.com/recallhq/recall/memory"
	"github.com/recallhq/recall/observability"
	"github.com/recallhq/recall/prompt"
)

// Stage names, also the keys under which each stage stamps its start
// time into the state's timestamps map.
const (
	StageIngest    = "ingest"
	StageRetrieve  = "retrieve"
	StageGenerate  = "generate"
	StageSummarize = "summarize"
	StageStore     = "store"
)

// stageTimestampsKey carries the pipeline's per-stage timestamps map,
// JSON-encoded, on the persisted document.
const stageTimestampsKey = "stage_timestamps"

// Config tunes one pipeline instance.
type Config struct {
	// TopK is how many memories to retrieve per turn. <= 0 uses
	// memory.DefaultTopK.
	TopK int

	// GenTemperature is the sampling temperature for response
	// generation.
	GenTemperature float64

	// SummaryTemperature is the sampling temperature for turn
	// summarization. Kept low for consistent summaries.
	SummaryTemperature float64

	// SummaryMaxTokens caps the summary length.
	SummaryMaxTokens int64

	// CallTimeout bounds each external call (generation, index search,
	// index write). Zero disables the bound.
	CallTimeout time.Duration
}

// DefaultConfig mirrors the tuning of the original memory pipeline.
var DefaultConfig = Config{
	TopK:               memory.DefaultTopK,
	GenTemperature:     0.7,
	SummaryTemperature: 0.3,
	SummaryMaxTokens:   150,
	CallTimeout:        30 * time.Second,
}

// stage is one step of the chain: reads state, returns a partial update.
type stage struct {
	name string
	run  func(ctx context.Context, s State) Patch
}

// Pipeline sequences the five stages over a shared retriever, store, and
// generation backend. One Invoke call == one user turn; a Pipeline is
// safe for concurrent Invoke calls because each turn owns its state and
// the vector index handles its own locking.
type Pipeline struct {
	retriever *memory.Retriever
	store     *memory.Store
	backend   llm.Client
	cfg       Config
	metrics   *observability.Metrics
	now       func() time.Time
	stages    []stage
}

// Option configures the pipeline.
type Option func(*Pipeline)

// WithMetrics attaches Prometheus instruments.
func WithMetrics(m *observability.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// New builds a pipeline. All collaborators are injected; the pipeline
// owns no global state.
func New(retriever *memory.Retriever, store *memory.Store, backend llm.Client, cfg Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		retriever: retriever,
		store:     store,
		backend:   backend,
		cfg:       cfg,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.stages = []stage{
		{StageIngest, p.ingest},
		{StageRetrieve, p.retrieve},
		{StageGenerate, p.generate},
		{StageSummarize, p.summarize},
		{StageStore, p.storeSummary},
	}
	return p
}

// Invoke runs one turn through the full chain and returns the final
// state. The only error it returns is a contract violation in the
// initial state; everything else degrades stage-locally.
func (p *Pipeline) Invoke(ctx context.Context, initial State) (State, error) {
	if err := validate(initial); err != nil {
		return initial, err
	}

	start := p.now()
	s := initial
	if s.Meta.Timestamps == nil {
		s.Meta.Timestamps = map[string]string{}
	}

	for _, st := range p.stages {
		s = merge(s, Patch{Timestamps: map[string]string{
			st.name: p.now().UTC().Format(time.RFC3339Nano),
		}})
		s = merge(s, st.run(ctx, s))
	}

	p.metrics.RecordTurn(p.now().Sub(start), len(s.RetrievedMemories))
	return s, nil
}

// ingest is the entry stage. Its timestamp is stamped by the loop; it
// performs no other mutation and always succeeds.
func (p *Pipeline) ingest(ctx context.Context, s State) Patch {
	return Patch{}
}

// retrieve loads relevant past summaries. The retriever already maps
// index failures to an empty result, so this stage cannot fail.
func (p *Pipeline) retrieve(ctx context.Context, s State) Patch {
	callCtx, cancel := p.callContext(ctx)
	defer cancel()

	records := p.retriever.Retrieve(callCtx, s.UserInput, s.Meta.SessionID, p.cfg.TopK)
	return Patch{RetrievedMemories: records}
}

// generate produces the assistant response. Backend failure becomes a
// user-visible error string rather than a pipeline abort.
func (p *Pipeline) generate(ctx context.Context, s State) Patch {
	var formatted string
	if len(s.RetrievedMemories) > 0 {
		texts := make([]string, 0, len(s.RetrievedMemories))
		for _, rec := range s.RetrievedMemories {
			texts = append(texts, rec.Text)
		}
		formatted = prompt.FormatMemories(texts)
	}

	callCtx, cancel := p.callContext(ctx)
	defer cancel()

	response, err := p.backend.Complete(callCtx, llm.Request{
		System:      prompt.BuildSystemPrompt(s.UserInput, formatted),
		User:        s.UserInput,
		Temperature: p.cfg.GenTemperature,
	})
	if err != nil {
		log.Printf("[PIPELINE] Generation failed: %v", err)
		p.metrics.RecordStageFailure(StageGenerate)
		response = "Error generating response: " + err.Error()
	}

	return Patch{Response: &response}
}

// summarize compresses the turn into a 3-5 line factual summary. On
// backend failure it falls back to a minimal deterministic summary so
// persistence always has something to write when a session id exists.
func (p *Pipeline) summarize(ctx context.Context, s State) Patch {
	callCtx, cancel := p.callContext(ctx)
	defer cancel()

	summary, err := p.backend.Complete(callCtx, llm.Request{
		User:        prompt.SummaryPrompt(s.UserInput, s.Response),
		Temperature: p.cfg.SummaryTemperature,
		MaxTokens:   p.cfg.SummaryMaxTokens,
	})
	if err != nil {
		log.Printf("[PIPELINE] Summarization failed: %v", err)
		p.metrics.RecordStageFailure(StageSummarize)
		summary = "User said: " + s.UserInput
	}
	summary = strings.TrimSpace(summary)

	return Patch{Summary: &summary}
}

// storeSummary is the terminal stage and the single persistence point:
// it writes iff both the summary and the session id are non-empty.
// Missing either skips the write without error.
func (p *Pipeline) storeSummary(ctx context.Context, s State) Patch {
	if s.Summary == "" || s.Meta.SessionID == "" {
		return Patch{}
	}

	meta := map[string]string{}
	if ts, err := json.Marshal(s.Meta.Timestamps); err == nil {
		meta[stageTimestampsKey] = string(ts)
	}

	callCtx, cancel := p.callContext(ctx)
	defer cancel()

	id, err := p.store.Persist(callCtx, s.Meta.SessionID, s.Summary, meta)
	if err != nil {
		log.Printf("[PIPELINE] Persist failed, turn continues: %v", err)
		p.metrics.RecordStageFailure(StageStore)
		return Patch{}
	}
	if id != "" {
		p.metrics.RecordPersist()
	}
	return Patch{}
}

// callContext bounds one external call when a timeout is configured.
func (p *Pipeline) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.CallTimeout > 0 {
		return context.WithTimeout(ctx, p.cfg.CallTimeout)
	}
	return ctx, func() {}
}
