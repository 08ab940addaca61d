package redisstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tetkool/concierge/internal/domain/conversation"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "concierge:conversation:42", conversationKey("concierge:", "42"))
	assert.Equal(t, "concierge:lock:42", lockKey("concierge:", "42"))
}

func TestEncodeDecodeKeepsToolLinks(t *testing.T) {
	call := conversation.ToolCall{ID: "call_1", Name: "get_courses", Arguments: `{"category":"IT"}`}
	conv := conversation.New("42", "sys")
	conv.Append(
		conversation.UserMessage("IT courses?"),
		conversation.AssistantMessage("", []conversation.ToolCall{call}),
		conversation.ToolResultMessage(call, "[]"),
		conversation.AssistantMessage("Nothing yet", nil),
	)

	data, err := encode(conv)
	require.NoError(t, err)

	decoded, err := decode(data)
	require.NoError(t, err)
	assert.Equal(t, conv.Messages, decoded.Messages)
}

func TestDecodeRejectsBrokenHistory(t *testing.T) {
	_, err := decode([]byte(`[{"role":"user","content":"hi"}]`))
	assert.ErrorIs(t, err, conversation.ErrMissingSystem)

	_, err = decode([]byte(`not json`))
	assert.Error(t, err)
}
