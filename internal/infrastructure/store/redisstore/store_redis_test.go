package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tetkool/concierge/internal/domain/conversation"
)

const testPrefix = "concierge:"

func TestStoreGetCreatesConversationLazily(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewStore(client, Config{KeyPrefix: testPrefix}, "sys", zerolog.Nop())

	assert.False(t, mr.Exists("concierge:conversation:7"))

	conv, err := store.Get(context.Background(), "7")
	require.NoError(t, err)
	require.Equal(t, 1, conv.Len())
	assert.Equal(t, "7", conv.UserID)
	assert.Equal(t, conversation.RoleSystem, conv.Messages[0].Role)
	assert.True(t, mr.Exists("concierge:conversation:7"))
}

func TestStoreSaveRoundTripAndReset(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()
	store := NewStore(client, Config{KeyPrefix: testPrefix}, "sys", zerolog.Nop())

	call := conversation.ToolCall{ID: "call_1", Name: "get_courses", Arguments: `{"category":"IT"}`}
	conv, err := store.Get(ctx, "7")
	require.NoError(t, err)
	conv.Append(
		conversation.UserMessage("Какие есть курсы по IT?"),
		conversation.AssistantMessage("", []conversation.ToolCall{call}),
		conversation.ToolResultMessage(call, "[]"),
		conversation.AssistantMessage("Пока ничего нет", nil),
	)
	require.NoError(t, store.Save(ctx, conv))

	loaded, err := store.Get(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, conv.Messages, loaded.Messages)

	other, err := store.Get(ctx, "8")
	require.NoError(t, err)
	assert.Equal(t, 1, other.Len())

	reset, err := store.Reset(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, 1, reset.Len())

	loaded, err = store.Get(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Len())
}

func TestStoreSaveRejectsBrokenHistory(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewStore(client, Config{KeyPrefix: testPrefix}, "sys", zerolog.Nop())

	err := store.Save(context.Background(), &conversation.Conversation{
		UserID:   "7",
		Messages: []conversation.Message{conversation.UserMessage("hi")},
	})
	assert.ErrorIs(t, err, conversation.ErrMissingSystem)
}

func TestStoreConversationExpires(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()
	store := NewStore(client, Config{KeyPrefix: testPrefix, TTL: time.Hour}, "sys", zerolog.Nop())

	conv, err := store.Get(ctx, "7")
	require.NoError(t, err)
	conv.Append(conversation.UserMessage("hi"), conversation.AssistantMessage("hello", nil))
	require.NoError(t, store.Save(ctx, conv))
	assert.Equal(t, time.Hour, mr.TTL("concierge:conversation:7"))

	mr.FastForward(30 * time.Minute)
	loaded, err := store.Get(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Len())

	mr.FastForward(31 * time.Minute)
	assert.False(t, mr.Exists("concierge:conversation:7"))
	loaded, err = store.Get(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Len())
}

func TestStoreResetsUnreadableConversation(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewStore(client, Config{KeyPrefix: testPrefix}, "sys", zerolog.Nop())
	require.NoError(t, mr.Set("concierge:conversation:7", "not json"))

	conv, err := store.Get(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, 1, conv.Len())
}

func TestStoreReportsRedisErrors(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewStore(client, Config{KeyPrefix: testPrefix}, "sys", zerolog.Nop())

	mr.SetError("ERR injected failure")
	defer mr.SetError("")
	_, err := store.Get(context.Background(), "7")
	assert.ErrorContains(t, err, "get conversation 7")
}
