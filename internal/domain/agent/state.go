package agent

import (
	"github.com/tetkool/concierge/internal/domain/conversation"
)

// turnState is the position of a turn in the two-phase completion protocol:
// AwaitingInitialCompletion -> (ToolCallsPending | Final),
// ToolCallsPending -> AwaitingFollowupCompletion -> Final.
type turnState int

const (
	stateAwaitingInitialCompletion turnState = iota
	stateToolCallsPending
	stateAwaitingFollowupCompletion
	stateFinal
)

func (s turnState) String() string {
	switch s {
	case stateAwaitingInitialCompletion:
		return "awaiting_initial_completion"
	case stateToolCallsPending:
		return "tool_calls_pending"
	case stateAwaitingFollowupCompletion:
		return "awaiting_followup_completion"
	case stateFinal:
		return "final"
	default:
		return "unknown"
	}
}

// turn holds the working copy of a conversation while the loop runs.
type turn struct {
	id        string
	conv      *conversation.Conversation
	state     turnState
	pending   []conversation.ToolCall
	usedTools bool
	reply     string
}

func (t *turn) finish(reply string) {
	t.conv.Append(conversation.AssistantMessage(reply, nil))
	t.reply = reply
	t.pending = nil
	t.state = stateFinal
}

func (t *turn) status() TurnStatus {
	if t.usedTools {
		return TurnStatusToolAnswered
	}
	return TurnStatusAnswered
}
