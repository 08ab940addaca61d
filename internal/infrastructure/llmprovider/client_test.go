package llmprovider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tetkool/concierge/internal/domain/conversation"
	"github.com/tetkool/concierge/internal/domain/llm"
	"github.com/tetkool/concierge/internal/domain/tool"
)

func newServer(t *testing.T, handler func(t *testing.T, body map[string]any, w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		handler(t, body, w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newClient(url string) *Client {
	return NewClient(Config{BaseURL: url + "/v1/", APIKey: "sk-test", Timeout: 2 * time.Second}, zerolog.Nop())
}

func TestCreateChatCompletionSendsToolsAndHistory(t *testing.T) {
	srv := newServer(t, func(t *testing.T, body map[string]any, w http.ResponseWriter, _ *http.Request) {
		assert.Equal(t, "gpt-4o", body["model"])
		assert.Equal(t, "auto", body["tool_choice"])

		tools := body["tools"].([]any)
		require.Len(t, tools, 1)
		fn := tools[0].(map[string]any)["function"].(map[string]any)
		assert.Equal(t, "get_courses", fn["name"])

		messages := body["messages"].([]any)
		require.Len(t, messages, 4)
		assistant := messages[2].(map[string]any)
		calls := assistant["tool_calls"].([]any)
		assert.Equal(t, "call_1", calls[0].(map[string]any)["id"])
		toolMsg := messages[3].(map[string]any)
		assert.Equal(t, "tool", toolMsg["role"])
		assert.Equal(t, "call_1", toolMsg["tool_call_id"])

		writeJSON(w, http.StatusOK, openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{
				Message:      openai.ChatCompletionMessage{Role: "assistant", Content: "Вот курсы по IT"},
				FinishReason: openai.FinishReasonStop,
			}},
			Usage: openai.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
		})
	})

	call := conversation.ToolCall{ID: "call_1", Name: "get_courses", Arguments: `{"category":"IT"}`}
	completion, err := newClient(srv.URL).CreateChatCompletion(context.Background(), llm.CompletionRequest{
		Model: "gpt-4o",
		Messages: []conversation.Message{
			conversation.SystemMessage("sys"),
			conversation.UserMessage("IT"),
			conversation.AssistantMessage("", []conversation.ToolCall{call}),
			conversation.ToolResultMessage(call, "[]"),
		},
		Tools:      []tool.Definition{{Name: "get_courses", Parameters: map[string]any{"type": "object"}}},
		ToolChoice: llm.ToolChoiceAuto,
	})
	require.NoError(t, err)
	assert.Equal(t, "Вот курсы по IT", completion.Message.Content)
	assert.Equal(t, conversation.RoleAssistant, completion.Message.Role)
	assert.Equal(t, "stop", completion.FinishReason)
	assert.Equal(t, 15, completion.Usage.TotalTokens)
	assert.False(t, completion.HasToolCalls())
}

func TestCreateChatCompletionOmitsToolsOnFollowup(t *testing.T) {
	srv := newServer(t, func(t *testing.T, body map[string]any, w http.ResponseWriter, _ *http.Request) {
		assert.NotContains(t, body, "tools")
		assert.NotContains(t, body, "tool_choice")
		writeJSON(w, http.StatusOK, openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "ok"}}},
		})
	})

	_, err := newClient(srv.URL).CreateChatCompletion(context.Background(), llm.CompletionRequest{
		Model:    "gpt-4o",
		Messages: []conversation.Message{conversation.SystemMessage("sys")},
	})
	require.NoError(t, err)
}

func TestCreateChatCompletionToolCalls(t *testing.T) {
	srv := newServer(t, func(t *testing.T, _ map[string]any, w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{
					Role: "assistant",
					ToolCalls: []openai.ToolCall{
						{ID: "call_a", Type: openai.ToolTypeFunction, Function: openai.FunctionCall{Name: "get_courses", Arguments: `{}`}},
						{Type: openai.ToolTypeFunction, Function: openai.FunctionCall{Name: "send_email_to_manager", Arguments: `{"user_contact":"x"}`}},
					},
				},
				FinishReason: openai.FinishReasonToolCalls,
			}},
		})
	})

	completion, err := newClient(srv.URL).CreateChatCompletion(context.Background(), llm.CompletionRequest{Model: "m"})
	require.NoError(t, err)
	require.True(t, completion.HasToolCalls())
	require.Len(t, completion.Message.ToolCalls, 2)
	assert.Equal(t, "call_a", completion.Message.ToolCalls[0].ID)
	assert.Equal(t, "get_courses", completion.Message.ToolCalls[0].Name)
	assert.NotEmpty(t, completion.Message.ToolCalls[1].ID)
	assert.Equal(t, `{"user_contact":"x"}`, completion.Message.ToolCalls[1].Arguments)
	assert.Equal(t, "tool_calls", completion.FinishReason)
}

func TestCreateChatCompletionFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    any
		wantErr error
		msg     string
	}{
		{
			name:    "error status with api error",
			status:  http.StatusUnauthorized,
			body:    map[string]any{"error": map[string]any{"message": "invalid api key", "type": "auth"}},
			wantErr: ErrUpstreamStatus,
			msg:     "invalid api key",
		},
		{
			name:    "server error",
			status:  http.StatusBadGateway,
			body:    map[string]any{"detail": "upstream down"},
			wantErr: ErrUpstreamStatus,
			msg:     "502",
		},
		{
			name:    "no choices",
			status:  http.StatusOK,
			body:    openai.ChatCompletionResponse{},
			wantErr: llm.ErrNoChoices,
		},
		{
			name:   "empty message",
			status: http.StatusOK,
			body: openai.ChatCompletionResponse{Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{Role: "assistant"},
			}}},
			wantErr: llm.ErrEmptyAssistant,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, func(t *testing.T, _ map[string]any, w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})
			completion, err := newClient(srv.URL).CreateChatCompletion(context.Background(), llm.CompletionRequest{Model: "m"})
			assert.Nil(t, completion)
			assert.ErrorIs(t, err, tt.wantErr)
			if tt.msg != "" {
				assert.Contains(t, err.Error(), tt.msg)
			}
		})
	}
}

func TestCreateChatCompletionTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newClient(url).CreateChatCompletion(context.Background(), llm.CompletionRequest{Model: "m"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUpstreamStatus)
}

func TestCreateChatCompletionHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := newClient(srv.URL).CreateChatCompletion(ctx, llm.CompletionRequest{Model: "m"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewClientExtraHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		writeJSON(w, http.StatusOK, openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: "ok"}}},
		})
	}))
	t.Cleanup(srv.Close)

	client := NewClient(Config{
		BaseURL: srv.URL,
		APIKey:  "sk-or",
		Headers: map[string]string{"X-Title": "Tetkool Bot", "HTTP-Referer": ""},
	}, zerolog.Nop())
	_, err := client.CreateChatCompletion(context.Background(), llm.CompletionRequest{Model: "m"})
	require.NoError(t, err)
	assert.Equal(t, "Tetkool Bot", got.Get("X-Title"))
	assert.Empty(t, got.Get("HTTP-Referer"))
	assert.Equal(t, "Bearer sk-or", got.Get("Authorization"))
}
