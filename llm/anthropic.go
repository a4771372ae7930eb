package llm

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-sonnet-4-20250514"

// DefaultMaxTokens caps responses when no limit is configured.
const DefaultMaxTokens = 1024

// Anthropic implements Client on the Anthropic Messages API.
type Anthropic struct {
	client *anthropic.Client
	model  string
}

// NewAnthropic creates a Client backed by the given Anthropic client.
// An empty model selects DefaultModel.
func NewAnthropic(client *anthropic.Client, model string) *Anthropic {
	if model == "" {
		model = DefaultModel
	}
	return &Anthropic{client: client, model: model}
}

// Complete sends one system+user exchange and returns the concatenated
// text blocks of the response.
func (a *Anthropic) Complete(ctx context.Context, req Request) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}
