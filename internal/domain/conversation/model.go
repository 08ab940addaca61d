package conversation

import (
	"errors"
	"fmt"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

var (
	ErrEmptyConversation = errors.New("conversation is empty")
	ErrMissingSystem     = errors.New("conversation must start with a system message")
	ErrOrphanToolResult  = errors.New("tool message does not answer a preceding tool call")
)

// ToolCall is one invocation requested by the assistant.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is one entry of a dialogue.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolName   string     `json:"tool_name,omitempty"`
}

func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func AssistantMessage(content string, calls []ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

func ToolResultMessage(call ToolCall, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: call.ID, ToolName: call.Name}
}

// Conversation is the ordered message history of a single user.
type Conversation struct {
	UserID   string    `json:"user_id"`
	Messages []Message `json:"messages"`
}

// New starts a conversation seeded with the system prompt.
func New(userID, systemPrompt string) *Conversation {
	return &Conversation{
		UserID:   userID,
		Messages: []Message{SystemMessage(systemPrompt)},
	}
}

// Append adds messages to the end of the history.
func (c *Conversation) Append(messages ...Message) {
	c.Messages = append(c.Messages, messages...)
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Messages)
}

// Clone returns a deep copy so callers can mutate it without touching stored state.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	out := &Conversation{
		UserID:   c.UserID,
		Messages: make([]Message, len(c.Messages)),
	}
	for i, msg := range c.Messages {
		if len(msg.ToolCalls) > 0 {
			msg.ToolCalls = append([]ToolCall(nil), msg.ToolCalls...)
		}
		out.Messages[i] = msg
	}
	return out
}

// Validate checks the structural invariants of a stored history.
func (c *Conversation) Validate() error {
	if c.Len() == 0 {
		return ErrEmptyConversation
	}
	if c.Messages[0].Role != RoleSystem {
		return ErrMissingSystem
	}

	var pending map[string]struct{}
	for i, msg := range c.Messages {
		switch msg.Role {
		case RoleTool:
			if _, ok := pending[msg.ToolCallID]; !ok {
				return fmt.Errorf("%w: message %d references %q", ErrOrphanToolResult, i, msg.ToolCallID)
			}
		case RoleAssistant:
			pending = make(map[string]struct{}, len(msg.ToolCalls))
			for _, call := range msg.ToolCalls {
				pending[call.ID] = struct{}{}
			}
		default:
			pending = nil
		}
	}
	return nil
}
