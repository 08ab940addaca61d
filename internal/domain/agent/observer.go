package agent

import (
	"time"

	"github.com/tetkool/concierge/internal/domain/tool"
)

// TurnStatus is the outcome label of one turn.
type TurnStatus string

const (
	TurnStatusAnswered     TurnStatus = "answered"
	TurnStatusToolAnswered TurnStatus = "tool_answered"
	TurnStatusFailed       TurnStatus = "failed"
)

// Phase names the two completion requests of a turn.
type Phase string

const (
	PhaseInitial  Phase = "initial"
	PhaseFollowup Phase = "followup"
)

// Observer receives measurements from the orchestration loop.
type Observer interface {
	CompletionFinished(phase Phase, duration time.Duration, err error)
	ToolFinished(result tool.Result, duration time.Duration)
	TurnFinished(status TurnStatus, duration time.Duration)
}

type nopObserver struct{}

func (nopObserver) CompletionFinished(Phase, time.Duration, error) {}
func (nopObserver) ToolFinished(tool.Result, time.Duration) {}
func (nopObserver) TurnFinished(TurnStatus, time.Duration) {}
