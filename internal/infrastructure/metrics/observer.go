package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/tetkool/concierge/internal/domain/agent"
	"github.com/tetkool/concierge/internal/domain/tool"
)

// AgentObserver records orchestration measurements to Prometheus and, through
// the given meter, to OpenTelemetry.
type AgentObserver struct {
	turns       metric.Int64Counter
	completions metric.Int64Counter
	toolCalls   metric.Int64Counter
	turnLatency metric.Float64Histogram
}

func NewAgentObserver(meter metric.Meter) (*AgentObserver, error) {
	turns, err := meter.Int64Counter("concierge.turns",
		metric.WithDescription("User turns by outcome"))
	if err != nil {
		return nil, fmt.Errorf("create turns counter: %w", err)
	}
	completions, err := meter.Int64Counter("concierge.llm.completions",
		metric.WithDescription("Completion requests by phase and outcome"))
	if err != nil {
		return nil, fmt.Errorf("create completions counter: %w", err)
	}
	toolCalls, err := meter.Int64Counter("concierge.tool.calls",
		metric.WithDescription("Tool calls by tool and outcome"))
	if err != nil {
		return nil, fmt.Errorf("create tool calls counter: %w", err)
	}
	turnLatency, err := meter.Float64Histogram("concierge.turn.duration",
		metric.WithDescription("Turn duration"), metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("create turn histogram: %w", err)
	}
	return &AgentObserver{
		turns:       turns,
		completions: completions,
		toolCalls:   toolCalls,
		turnLatency: turnLatency,
	}, nil
}

func (o *AgentObserver) CompletionFinished(phase agent.Phase, duration time.Duration, err error) {
	result := outcome(err != nil)
	CompletionsTotal.WithLabelValues(string(phase), result).Inc()
	CompletionDuration.WithLabelValues(string(phase)).Observe(duration.Seconds())
	o.completions.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("phase", string(phase)),
		attribute.String("outcome", result),
	))
}

func (o *AgentObserver) ToolFinished(result tool.Result, duration time.Duration) {
	status := outcome(result.Failed())
	ToolCallsTotal.WithLabelValues(result.Name, status).Inc()
	ToolDuration.WithLabelValues(result.Name).Observe(duration.Seconds())
	o.toolCalls.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("tool", result.Name),
		attribute.String("outcome", status),
	))
}

func (o *AgentObserver) TurnFinished(status agent.TurnStatus, duration time.Duration) {
	TurnsTotal.WithLabelValues(string(status)).Inc()
	TurnDuration.WithLabelValues(string(status)).Observe(duration.Seconds())
	attrs := metric.WithAttributes(attribute.String("status", string(status)))
	o.turns.Add(context.Background(), 1, attrs)
	o.turnLatency.Record(context.Background(), duration.Seconds(), attrs)
}

var _ agent.Observer = (*AgentObserver)(nil)
