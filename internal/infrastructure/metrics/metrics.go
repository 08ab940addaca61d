package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Concierge metrics
var (
	// HTTP request counters
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "concierge",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"method", "endpoint"},
	)

	// Inbound messages by transport and kind (text, command, ignored)
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "adapter",
			Name:      "messages_total",
			Help:      "Total number of inbound messages",
		},
		[]string{"transport", "kind"},
	)

	// Turns waiting behind an earlier turn of the same user
	PendingTurns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "concierge",
			Subsystem: "worker",
			Name:      "pending_turns",
			Help:      "Number of submitted turns that have not finished",
		},
	)

	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "agent",
			Name:      "turns_total",
			Help:      "Total number of user turns by outcome",
		},
		[]string{"status"},
	)

	TurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "concierge",
			Subsystem: "agent",
			Name:      "turn_duration_seconds",
			Help:      "End-to-end turn duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		},
		[]string{"status"},
	)

	CompletionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "llm",
			Name:      "completions_total",
			Help:      "Total number of completion requests",
		},
		[]string{"phase", "outcome"},
	)

	CompletionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "concierge",
			Subsystem: "llm",
			Name:      "completion_duration_seconds",
			Help:      "Completion request duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"phase"},
	)

	ToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "concierge",
			Subsystem: "tools",
			Name:      "calls_total",
			Help:      "Total number of tool calls",
		},
		[]string{"tool", "outcome"},
	)

	ToolDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "concierge",
			Subsystem: "tools",
			Name:      "call_duration_seconds",
			Help:      "Tool call duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 45},
		},
		[]string{"tool"},
	)
)

// RecordMessage counts an inbound message.
func RecordMessage(transport, kind string) {
	MessagesTotal.WithLabelValues(transport, kind).Inc()
}

func outcome(failed bool) string {
	if failed {
		return "error"
	}
	return "success"
}
