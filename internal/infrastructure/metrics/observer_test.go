package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/tetkool/concierge/internal/domain/agent"
	"github.com/tetkool/concierge/internal/domain/tool"
)

func TestAgentObserverRecordsPrometheus(t *testing.T) {
	observer, err := NewAgentObserver(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	turnsBefore := testutil.ToFloat64(TurnsTotal.WithLabelValues(string(agent.TurnStatusToolAnswered)))
	failedCompletionsBefore := testutil.ToFloat64(CompletionsTotal.WithLabelValues(string(agent.PhaseFollowup), "error"))
	toolErrorsBefore := testutil.ToFloat64(ToolCallsTotal.WithLabelValues("get_courses", "error"))
	toolOKBefore := testutil.ToFloat64(ToolCallsTotal.WithLabelValues("get_courses", "success"))

	observer.TurnFinished(agent.TurnStatusToolAnswered, 2*time.Second)
	observer.CompletionFinished(agent.PhaseFollowup, time.Second, errors.New("boom"))
	observer.ToolFinished(tool.Result{Name: "get_courses", Err: errors.New("bad args")}, time.Millisecond)
	observer.ToolFinished(tool.Result{Name: "get_courses", Content: "[]"}, time.Millisecond)

	assert.Equal(t, turnsBefore+1, testutil.ToFloat64(TurnsTotal.WithLabelValues(string(agent.TurnStatusToolAnswered))))
	assert.Equal(t, failedCompletionsBefore+1, testutil.ToFloat64(CompletionsTotal.WithLabelValues(string(agent.PhaseFollowup), "error")))
	assert.Equal(t, toolErrorsBefore+1, testutil.ToFloat64(ToolCallsTotal.WithLabelValues("get_courses", "error")))
	assert.Equal(t, toolOKBefore+1, testutil.ToFloat64(ToolCallsTotal.WithLabelValues("get_courses", "success")))
}

func TestRecordMessage(t *testing.T) {
	before := testutil.ToFloat64(MessagesTotal.WithLabelValues("telegram", "command"))
	RecordMessage("telegram", "command")
	assert.Equal(t, before+1, testutil.ToFloat64(MessagesTotal.WithLabelValues("telegram", "command")))
}
