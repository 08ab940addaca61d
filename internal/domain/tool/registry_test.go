package tool

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tetkool/concierge/internal/domain/conversation"
)

func echoHandler(_ context.Context, args json.RawMessage) (string, error) {
	return string(args), nil
}

func TestRegisterValidation(t *testing.T) {
	r := NewRegistry()

	assert.ErrorIs(t, r.Register(Definition{Name: " "}, echoHandler), ErrToolNameEmpty)
	assert.ErrorIs(t, r.Register(Definition{Name: "echo"}, nil), ErrNilHandler)
	require.NoError(t, r.Register(Definition{Name: "echo"}, echoHandler))
	assert.ErrorIs(t, r.Register(Definition{Name: "echo"}, echoHandler), ErrDuplicateTool)
}

func TestDefinitionsKeepRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, r.Register(Definition{Name: name, Description: name + " tool"}, echoHandler))
	}

	defs := r.Definitions()
	require.Len(t, defs, 3)
	assert.Equal(t, "zeta", defs[0].Name)
	assert.Equal(t, "alpha", defs[1].Name)
	assert.Equal(t, "mid", defs[2].Name)
	assert.Equal(t, "object", defs[0].Parameters["type"])
}

func TestResolve(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Definition{Name: "echo"}, echoHandler))

	_, ok := r.Resolve("echo")
	assert.True(t, ok)
	_, ok = r.Resolve("missing")
	assert.False(t, ok)
}

func TestInvoke(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Definition{Name: "echo"}, echoHandler))
	require.NoError(t, r.Register(Definition{Name: "fail"}, func(context.Context, json.RawMessage) (string, error) {
		return "", errors.New("mail server down")
	}))
	require.NoError(t, r.Register(Definition{Name: "panic"}, func(context.Context, json.RawMessage) (string, error) {
		panic("nil map")
	}))
	require.NoError(t, r.Register(Definition{Name: "silent"}, func(context.Context, json.RawMessage) (string, error) {
		return "  ", nil
	}))

	tests := []struct {
		name        string
		call        conversation.ToolCall
		wantContent string
		wantErr     error
	}{
		{
			name:        "success",
			call:        conversation.ToolCall{ID: "1", Name: "echo", Arguments: `{"a":1}`},
			wantContent: `{"a":1}`,
		},
		{
			name:        "empty arguments become empty object",
			call:        conversation.ToolCall{ID: "2", Name: "echo"},
			wantContent: `{}`,
		},
		{
			name:        "unknown tool",
			call:        conversation.ToolCall{ID: "3", Name: "nope"},
			wantContent: `Error: tool is not registered: "nope"`,
			wantErr:     ErrToolNotFound,
		},
		{
			name:    "malformed arguments",
			call:    conversation.ToolCall{ID: "4", Name: "echo", Arguments: `{"a":`},
			wantErr: ErrInvalidPayload,
		},
		{
			name:        "handler error",
			call:        conversation.ToolCall{ID: "5", Name: "fail"},
			wantContent: "Error: mail server down",
		},
		{
			name:    "handler panic",
			call:    conversation.ToolCall{ID: "6", Name: "panic"},
			wantErr: ErrToolPanicked,
		},
		{
			name:        "blank result",
			call:        conversation.ToolCall{ID: "7", Name: "silent"},
			wantContent: emptyResultText,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := r.Invoke(context.Background(), tt.call)
			assert.Equal(t, tt.call.ID, result.CallID)
			assert.Equal(t, tt.call.Name, result.Name)
			if tt.wantContent != "" {
				assert.Equal(t, tt.wantContent, result.Content)
			}
			if tt.wantErr != nil {
				assert.ErrorIs(t, result.Err, tt.wantErr)
				assert.True(t, result.Failed())
				assert.Contains(t, result.Content, "Error: ")
			}
		})
	}
}

type sampleArgs struct {
	Category string `json:"category,omitempty" jsonschema_description:"The category, e.g. 'IT', 'Business'."`
	Contact  string `json:"contact" jsonschema_description:"How to reach the user."`
}

func TestSchemaFor(t *testing.T) {
	schema, err := SchemaFor(&sampleArgs{})
	require.NoError(t, err)

	assert.Equal(t, "object", schema["type"])
	assert.NotContains(t, schema, "$schema")

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, props, "category")
	category := props["category"].(map[string]any)
	assert.Equal(t, "string", category["type"])
	assert.Equal(t, "The category, e.g. 'IT', 'Business'.", category["description"])

	assert.Equal(t, []any{"contact"}, schema["required"])
}
