package llmprovider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"github.com/tetkool/concierge/internal/domain/conversation"
	"github.com/tetkool/concierge/internal/domain/llm"
	"github.com/tetkool/concierge/internal/domain/tool"
)

const (
	OpenAIBaseURL     = "https://api.openai.com/v1"
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
)

var ErrUpstreamStatus = errors.New("completion service returned an error status")

// Config describes an OpenAI-compatible endpoint.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// Headers are sent with every request, e.g. OpenRouter attribution headers.
	Headers map[string]string
}

// Client implements llm.Provider over POST {BaseURL}/chat/completions.
type Client struct {
	httpClient *resty.Client
	log        zerolog.Logger
}

// NewClient creates a Resty-backed client. Requests are never retried.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = OpenAIBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 75 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.Timeout)
	if cfg.APIKey != "" {
		httpClient.SetAuthToken(cfg.APIKey)
	}
	for key, value := range cfg.Headers {
		if value != "" {
			httpClient.SetHeader(key, value)
		}
	}

	return &Client{
		httpClient: httpClient,
		log:        log.With().Str("component", "llm-client").Logger(),
	}
}

// CreateChatCompletion sends one non-streaming completion request.
func (c *Client) CreateChatCompletion(ctx context.Context, req llm.CompletionRequest) (*llm.Completion, error) {
	var (
		completion openai.ChatCompletionResponse
		apiErr     openai.ErrorResponse
	)

	started := time.Now()
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(toOpenAIRequest(req)).
		SetResult(&completion).
		SetError(&apiErr).
		Post("/chat/completions")
	if err != nil {
		return nil, fmt.Errorf("call completion service: %w", err)
	}
	if resp.IsError() {
		message := resp.String()
		if apiErr.Error != nil && apiErr.Error.Message != "" {
			message = apiErr.Error.Message
		}
		return nil, fmt.Errorf("%w: %d %s", ErrUpstreamStatus, resp.StatusCode(), message)
	}

	c.log.Debug().
		Str("model", req.Model).
		Int("status", resp.StatusCode()).
		Int("total_tokens", completion.Usage.TotalTokens).
		Dur("duration", time.Since(started)).
		Msg("completion received")

	return fromOpenAIResponse(completion)
}

func toOpenAIRequest(req llm.CompletionRequest) openai.ChatCompletionRequest {
	out := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(req.Messages)),
	}
	for _, msg := range req.Messages {
		out.Messages = append(out.Messages, toOpenAIMessage(msg))
	}
	if len(req.Tools) > 0 {
		out.Tools = make([]openai.Tool, 0, len(req.Tools))
		for _, def := range req.Tools {
			out.Tools = append(out.Tools, toOpenAITool(def))
		}
		if req.ToolChoice != "" {
			out.ToolChoice = req.ToolChoice
		}
	}
	return out
}

func toOpenAIMessage(msg conversation.Message) openai.ChatCompletionMessage {
	out := openai.ChatCompletionMessage{
		Role:    string(msg.Role),
		Content: msg.Content,
	}
	switch msg.Role {
	case conversation.RoleAssistant:
		for _, call := range msg.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, openai.ToolCall{
				ID:   call.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      call.Name,
					Arguments: call.Arguments,
				},
			})
		}
	case conversation.RoleTool:
		out.ToolCallID = msg.ToolCallID
		out.Name = msg.ToolName
	}
	return out
}

func toOpenAITool(def tool.Definition) openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        def.Name,
			Description: def.Description,
			Parameters:  def.Parameters,
		},
	}
}

func fromOpenAIResponse(resp openai.ChatCompletionResponse) (*llm.Completion, error) {
	if len(resp.Choices) == 0 {
		return nil, llm.ErrNoChoices
	}
	choice := resp.Choices[0]

	msg := conversation.Message{
		Role:    conversation.RoleAssistant,
		Content: choice.Message.Content,
	}
	for _, call := range choice.Message.ToolCalls {
		id := call.ID
		if id == "" {
			id = "call_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
		}
		msg.ToolCalls = append(msg.ToolCalls, conversation.ToolCall{
			ID:        id,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	if msg.Content == "" && len(msg.ToolCalls) == 0 {
		return nil, llm.ErrEmptyAssistant
	}

	return &llm.Completion{
		Message:      msg,
		FinishReason: string(choice.FinishReason),
		Usage: llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// Ensure interface compliance.
var _ llm.Provider = (*Client)(nil)
