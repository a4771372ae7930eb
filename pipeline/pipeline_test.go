package pipeline_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recallhq/recall/llm"
	"github.com/recallhq/recall/memory"
	"github.com/recallhq/recall/memory/embedder"
	"github.com/recallhq/recall/memory/index/mock"
	"github.com/recallhq/recall/pipeline"
)

// recordingBackend scripts completions and captures every request.
// Generation requests carry a system prompt; summarization requests
// don't, which is how the two are told apart here.
type recordingBackend struct {
	mu       sync.Mutex
	requests []llm.Request

	generate  func(req llm.Request) (string, error)
	summarize func(req llm.Request) (string, error)
}

func (b *recordingBackend) Complete(ctx context.Context, req llm.Request) (string, error) {
	b.mu.Lock()
	b.requests = append(b.requests, req)
	b.mu.Unlock()

	if req.System != "" {
		return b.generate(req)
	}
	return b.summarize(req)
}

func (b *recordingBackend) recorded() []llm.Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]llm.Request(nil), b.requests...)
}

func newPipeline(t *testing.T, idx *mock.Index, backend llm.Client) *pipeline.Pipeline {
	t.Helper()
	cfg := pipeline.DefaultConfig
	cfg.CallTimeout = 5 * time.Second
	return pipeline.New(memory.NewRetriever(idx), memory.NewStore(idx), backend, cfg)
}

func TestInvoke_EndToEndMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	idx := mock.New(embedder.NewLocal())

	backend := &recordingBackend{
		generate: func(req llm.Request) (string, error) {
			return "Nice to meet you, Alex!", nil
		},
		summarize: func(req llm.Request) (string, error) {
			return "User's name is Alex.", nil
		},
	}
	pipe := newPipeline(t, idx, backend)

	// Turn 1: introduce a fact.
	final, err := pipe.Invoke(ctx, pipeline.NewState("My name is Alex", "u1"))
	require.NoError(t, err)
	assert.Equal(t, "Nice to meet you, Alex!", final.Response)
	assert.Contains(t, final.Summary, "Alex")
	require.Equal(t, 1, idx.Len(), "exactly one document per completed turn")

	hits, err := idx.Search(ctx, "name", 5, "u1")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "u1", hits[0].Metadata["session_id"])
	assert.Equal(t, "summary", hits[0].Metadata["type"])
	assert.NotEmpty(t, hits[0].Metadata["timestamp"])

	// Turn 2: the fact comes back through retrieval and the prompt.
	backend.generate = func(req llm.Request) (string, error) {
		return "Your name is Alex.", nil
	}
	final, err = pipe.Invoke(ctx, pipeline.NewState("What is my name?", "u1"))
	require.NoError(t, err)

	require.NotEmpty(t, final.RetrievedMemories)
	assert.Equal(t, "User's name is Alex.", final.RetrievedMemories[0].Text)

	var genSystem string
	for _, req := range backend.recorded() {
		if req.System != "" && strings.Contains(req.System, "What is my name?") {
			genSystem = req.System
		}
	}
	require.NotEmpty(t, genSystem, "generation request for turn 2 not captured")
	assert.Contains(t, genSystem, "Alex")
	assert.Contains(t, genSystem, "1. User's name is Alex.")
}

func TestInvoke_PersistenceGuard(t *testing.T) {
	ctx := context.Background()

	t.Run("no session id", func(t *testing.T) {
		idx := mock.New(embedder.NewLocal())
		backend := &recordingBackend{
			generate:  func(llm.Request) (string, error) { return "hi", nil },
			summarize: func(llm.Request) (string, error) { return "a summary", nil },
		}
		pipe := newPipeline(t, idx, backend)

		final, err := pipe.Invoke(ctx, pipeline.NewState("hello", ""))
		require.NoError(t, err)
		assert.Equal(t, "a summary", final.Summary)
		assert.Equal(t, 0, idx.Len(), "no session id means no write")
	})

	t.Run("empty summary", func(t *testing.T) {
		idx := mock.New(embedder.NewLocal())
		backend := &recordingBackend{
			generate:  func(llm.Request) (string, error) { return "hi", nil },
			summarize: func(llm.Request) (string, error) { return "   ", nil },
		}
		pipe := newPipeline(t, idx, backend)

		_, err := pipe.Invoke(ctx, pipeline.NewState("hello", "u1"))
		require.NoError(t, err)
		assert.Equal(t, 0, idx.Len(), "blank summary means no write")
	})
}

func TestInvoke_BackendFailureDegrades(t *testing.T) {
	ctx := context.Background()
	idx := mock.New(embedder.NewLocal())

	boom := errors.New("backend unavailable")
	backend := &recordingBackend{
		generate:  func(llm.Request) (string, error) { return "", boom },
		summarize: func(llm.Request) (string, error) { return "", boom },
	}
	pipe := newPipeline(t, idx, backend)

	final, err := pipe.Invoke(ctx, pipeline.NewState("hello", "u1"))
	require.NoError(t, err, "pipeline must not raise on backend failure")

	assert.NotEmpty(t, final.Response)
	assert.Contains(t, final.Response, "Error generating response")
	assert.Equal(t, "User said: hello", final.Summary)
	assert.Equal(t, 1, idx.Len(), "fallback summary still persists")
}

func TestInvoke_RetrievalAndStoreOutages(t *testing.T) {
	ctx := context.Background()
	idx := mock.New(embedder.NewLocal())
	idx.FailSearch = errors.New("index down")
	idx.FailAdd = errors.New("index down")

	backend := &recordingBackend{
		generate:  func(llm.Request) (string, error) { return "hi there", nil },
		summarize: func(llm.Request) (string, error) { return "a summary", nil },
	}
	pipe := newPipeline(t, idx, backend)

	final, err := pipe.Invoke(ctx, pipeline.NewState("hello", "u1"))
	require.NoError(t, err, "index outage must not fail the turn")
	assert.Empty(t, final.RetrievedMemories)
	assert.Equal(t, "hi there", final.Response)
}

func TestInvoke_SessionScopedRetrieval(t *testing.T) {
	ctx := context.Background()
	idx := mock.New(embedder.NewLocal())

	backend := &recordingBackend{
		generate:  func(llm.Request) (string, error) { return "ok", nil },
		summarize: func(llm.Request) (string, error) { return "User's name is Alex.", nil },
	}
	pipe := newPipeline(t, idx, backend)

	_, err := pipe.Invoke(ctx, pipeline.NewState("My name is Alex", "u1"))
	require.NoError(t, err)

	final, err := pipe.Invoke(ctx, pipeline.NewState("What is my name?", "u2"))
	require.NoError(t, err)
	assert.Empty(t, final.RetrievedMemories, "u2 must not see u1's memories")
}

func TestInvoke_TimestampsMonotonic(t *testing.T) {
	ctx := context.Background()
	idx := mock.New(embedder.NewLocal())
	backend := &recordingBackend{
		generate:  func(llm.Request) (string, error) { return "hi", nil },
		summarize: func(llm.Request) (string, error) { return "sum", nil },
	}

	// Deterministic clock: every read advances by 1ms.
	base := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	var ticks int
	clock := func() time.Time {
		ticks++
		return base.Add(time.Duration(ticks) * time.Millisecond)
	}

	pipe := pipeline.New(
		memory.NewRetriever(idx), memory.NewStore(idx), backend,
		pipeline.DefaultConfig, pipeline.WithClock(clock),
	)

	final, err := pipe.Invoke(ctx, pipeline.NewState("hello", "u1"))
	require.NoError(t, err)

	stages := []string{"ingest", "retrieve", "generate", "summarize", "store"}
	var prev time.Time
	for i, name := range stages {
		raw, ok := final.Meta.Timestamps[name]
		require.True(t, ok, "missing timestamp for stage %s", name)

		ts, err := time.Parse(time.RFC3339Nano, raw)
		require.NoError(t, err)
		if i > 0 {
			assert.True(t, ts.After(prev), "stage %s not after its predecessor", name)
		}
		prev = ts
	}
	assert.Len(t, final.Meta.Timestamps, len(stages), "no extra or dropped keys")
}

func TestInvoke_EmptyInputIsContractError(t *testing.T) {
	idx := mock.New(embedder.NewLocal())
	backend := &recordingBackend{
		generate:  func(llm.Request) (string, error) { return "hi", nil },
		summarize: func(llm.Request) (string, error) { return "sum", nil },
	}
	pipe := newPipeline(t, idx, backend)

	_, err := pipe.Invoke(context.Background(), pipeline.NewState("", "u1"))
	assert.ErrorIs(t, err, pipeline.ErrEmptyInput)
	assert.Equal(t, 0, idx.Len())
}

func TestInvoke_ConcurrentTurns(t *testing.T) {
	ctx := context.Background()
	idx := mock.New(embedder.NewLocal())
	backend := &recordingBackend{
		generate:  func(llm.Request) (string, error) { return "hi", nil },
		summarize: func(llm.Request) (string, error) { return "a summary", nil },
	}
	pipe := newPipeline(t, idx, backend)

	const turns = 8
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := pipe.Invoke(ctx, pipeline.NewState("hello there", "u1"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// Concurrent same-session turns may race and all persist; that is
	// the append-only model.
	assert.Equal(t, turns, idx.Len())
}
