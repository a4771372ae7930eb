// Package llm is the generation backend boundary: a chat completion
// capability the pipeline calls for both response generation and turn
// summarization. The core never depends on a specific vendor.
package llm

import "context"

// Request is one completion call.
type Request struct {
	// System is the system prompt.
	System string

	// User is the user message.
	User string

	// Temperature controls sampling. Zero value means backend default.
	Temperature float64

	// MaxTokens caps the response length. Zero value means backend default.
	MaxTokens int64
}

// Client generates a text completion for a request.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}
