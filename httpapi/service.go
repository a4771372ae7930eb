package httpapi

import (
	"context"
	"log"

	"github.com/recallhq/recall/pipeline"
)

// DefaultUserID is used when a chat request omits user_id.
const DefaultUserID = "default_user"

// Invoker runs one turn through the memory pipeline.
type Invoker interface {
	Invoke(ctx context.Context, initial pipeline.State) (pipeline.State, error)
}

// ChatService maps API requests onto pipeline invocations. The pipeline
// is built once at startup; the service holds no per-request state.
type ChatService struct {
	pipe Invoker
}

// NewChatService wraps a pipeline.
func NewChatService(pipe Invoker) *ChatService {
	return &ChatService{pipe: pipe}
}

// ProcessMessage runs one turn and always returns user-visible text:
// pipeline contract errors and empty responses are mapped to fallback
// strings rather than propagated.
func (s *ChatService) ProcessMessage(ctx context.Context, message string, userID string) string {
	final, err := s.pipe.Invoke(ctx, pipeline.NewState(message, userID))
	if err != nil {
		log.Printf("[HTTP] Pipeline invocation failed: %v", err)
		return "Internal error: " + err.Error()
	}

	if final.Response == "" {
		log.Printf("[HTTP] Pipeline returned no response for user %s", userID)
		return "Sorry, I couldn't generate a response."
	}
	return final.Response
}
