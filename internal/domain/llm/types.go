package llm

import (
	"context"
	"errors"

	"github.com/tetkool/concierge/internal/domain/conversation"
	"github.com/tetkool/concierge/internal/domain/tool"
)

// ToolChoiceAuto lets the service decide between answering and calling tools.
const ToolChoiceAuto = "auto"

var (
	ErrNoChoices      = errors.New("completion returned no choices")
	ErrEmptyAssistant = errors.New("completion returned neither content nor tool calls")
)

// Provider defines the contract for calling a chat completion endpoint.
type Provider interface {
	CreateChatCompletion(ctx context.Context, req CompletionRequest) (*Completion, error)
}

// CompletionRequest is the request sent to the completion service. Tools and
// ToolChoice are omitted on follow-up requests.
type CompletionRequest struct {
	Model      string
	Messages   []conversation.Message
	Tools      []tool.Definition
	ToolChoice string
}

// Completion is the assistant message chosen by the service.
type Completion struct {
	Message      conversation.Message
	FinishReason string
	Usage        Usage
}

// HasToolCalls reports whether the assistant asked for tools.
func (c *Completion) HasToolCalls() bool {
	return c != nil && len(c.Message.ToolCalls) > 0
}

// Usage contains token accounting metadata.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}
