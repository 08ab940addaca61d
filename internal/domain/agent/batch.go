package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/tetkool/concierge/internal/domain/conversation"
	"github.com/tetkool/concierge/internal/domain/tool"
)

// ErrBatchLimitExceeded is reported for calls past MaxToolCallsPerBatch.
var ErrBatchLimitExceeded = errors.New("too many tool calls in one response")

// executeBatch runs the calls concurrently and returns one result per call, in call order.
func (o *Orchestrator) executeBatch(ctx context.Context, calls []conversation.ToolCall, log zerolog.Logger) []tool.Result {
	results := make([]tool.Result, len(calls))

	var g errgroup.Group
	for i, call := range calls {
		if i >= o.cfg.MaxToolCallsPerBatch {
			err := fmt.Errorf("%w: limit is %d", ErrBatchLimitExceeded, o.cfg.MaxToolCallsPerBatch)
			results[i] = tool.Result{CallID: call.ID, Name: call.Name, Content: tool.ErrorText(err), Err: err}
			o.observer.ToolFinished(results[i], 0)
			continue
		}
		i, call := i, call
		g.Go(func() error {
			results[i] = o.invoke(ctx, call)
			return nil
		})
	}
	_ = g.Wait()

	for _, result := range results {
		event := log.Info()
		if result.Failed() {
			event = log.Warn().AnErr("tool_error", result.Err)
		}
		event.Str("tool", result.Name).Str("call_id", result.CallID).Msg("tool call finished")
	}
	return results
}

func (o *Orchestrator) invoke(ctx context.Context, call conversation.ToolCall) tool.Result {
	ctx, span := o.tracer.Start(ctx, "tool."+call.Name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("tool.name", call.Name),
			attribute.String("tool.call_id", call.ID),
		),
	)
	defer span.End()

	if o.cfg.ToolCallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.ToolCallTimeout)
		defer cancel()
	}

	started := time.Now()
	result := o.tools.Invoke(ctx, call)
	o.observer.ToolFinished(result, time.Since(started))

	if result.Failed() {
		span.RecordError(result.Err)
		span.SetStatus(codes.Error, result.Err.Error())
	}
	return result
}
