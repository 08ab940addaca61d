package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/tetkool/concierge/internal/domain/conversation"
	"github.com/tetkool/concierge/internal/domain/llm"
	"github.com/tetkool/concierge/internal/domain/tool"
	"github.com/tetkool/concierge/internal/utils/platformerrors"
)

// DefaultApology is returned to the user whenever a turn cannot be completed.
const DefaultApology = "Извините, произошла ошибка при обработке вашего запроса."

var (
	ErrCompletionFailed = errors.New("completion service failed")
	ErrStoreFailed      = errors.New("conversation store failed")
	ErrLockFailed       = errors.New("could not acquire conversation lock")
)

// ToolSet is the part of the tool registry the loop depends on.
type ToolSet interface {
	Definitions() []tool.Definition
	Invoke(ctx context.Context, call conversation.ToolCall) tool.Result
}

// Config holds the tunables of the orchestration loop.
type Config struct {
	Model                string
	MaxToolCallsPerBatch int
	ToolCallTimeout      time.Duration
	Apology              string
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

func WithObserver(observer Observer) Option {
	return func(o *Orchestrator) {
		if observer != nil {
			o.observer = observer
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// Orchestrator runs user turns: completion, optional tool batch, follow-up completion.
type Orchestrator struct {
	provider llm.Provider
	tools    ToolSet
	store    conversation.Store
	locker   conversation.Locker
	cfg      Config
	observer Observer
	tracer   trace.Tracer
	log      zerolog.Logger
}

// NewOrchestrator constructs the loop. Store and locker are injected so a shared
// backend can replace the in-memory one without touching the loop.
func NewOrchestrator(
	provider llm.Provider,
	tools ToolSet,
	store conversation.Store,
	locker conversation.Locker,
	cfg Config,
	log zerolog.Logger,
	opts ...Option,
) *Orchestrator {
	if cfg.MaxToolCallsPerBatch <= 0 {
		cfg.MaxToolCallsPerBatch = 8
	}
	if strings.TrimSpace(cfg.Apology) == "" {
		cfg.Apology = DefaultApology
	}

	o := &Orchestrator{
		provider: provider,
		tools:    tools,
		store:    store,
		locker:   locker,
		cfg:      cfg,
		observer: nopObserver{},
		tracer:   noop.NewTracerProvider().Tracer("agent"),
		log:      log.With().Str("component", "orchestrator").Logger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Apology returns the fixed text sent when a turn fails.
func (o *Orchestrator) Apology() string {
	return o.cfg.Apology
}

// HandleTurn processes one user message and returns the reply text. The returned
// text is always presentable to the user: on failure it is the apology and err
// explains why. A failed turn leaves the stored conversation untouched.
func (o *Orchestrator) HandleTurn(ctx context.Context, userID, text string) (string, error) {
	started := time.Now()
	t := &turn{id: uuid.NewString(), state: stateAwaitingInitialCompletion}

	ctx = platformerrors.WithRequestID(ctx, t.id)
	ctx, span := o.tracer.Start(ctx, "agent.turn",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("turn.id", t.id)),
	)
	defer span.End()

	log := o.log.With().Str("turn_id", t.id).Str("user_id", userID).Logger()
	log.Debug().Int("text_length", len(text)).Msg("turn started")

	reply, err := o.handleLocked(ctx, userID, text, t, log)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("turn.failed_state", t.state.String()))
		platformerrors.LogError(log, err, "turn aborted")
		o.observer.TurnFinished(TurnStatusFailed, time.Since(started))
		return o.cfg.Apology, err
	}

	span.SetAttributes(
		attribute.Int("turn.messages", t.conv.Len()),
		attribute.Bool("turn.used_tools", t.usedTools),
	)
	o.observer.TurnFinished(t.status(), time.Since(started))
	log.Info().
		Bool("used_tools", t.usedTools).
		Int("history_length", t.conv.Len()).
		Dur("duration", time.Since(started)).
		Msg("turn completed")
	return reply, nil
}

func (o *Orchestrator) handleLocked(ctx context.Context, userID, text string, t *turn, log zerolog.Logger) (string, error) {
	unlock, err := o.locker.Lock(ctx, userID)
	if err != nil {
		return "", platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConflict,
			"lock conversation", fmt.Errorf("%w: %w", ErrLockFailed, err))
	}
	defer unlock()

	conv, err := o.store.Get(ctx, userID)
	if err != nil {
		return "", platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeInternal,
			"load conversation", fmt.Errorf("%w: %w", ErrStoreFailed, err))
	}
	t.conv = conv
	t.conv.Append(conversation.UserMessage(text))

	if err := o.run(ctx, t, log); err != nil {
		return "", err
	}

	if err := o.store.Save(ctx, t.conv); err != nil {
		return "", platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeInternal,
			"save conversation", fmt.Errorf("%w: %w", ErrStoreFailed, err))
	}
	return t.reply, nil
}

// Reset discards the user's history. It waits for an in-flight turn of the same user.
func (o *Orchestrator) Reset(ctx context.Context, userID string) error {
	unlock, err := o.locker.Lock(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLockFailed, err)
	}
	defer unlock()

	if _, err := o.store.Reset(ctx, userID); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreFailed, err)
	}
	o.log.Info().Str("user_id", userID).Msg("conversation reset")
	return nil
}

func (o *Orchestrator) run(ctx context.Context, t *turn, log zerolog.Logger) error {
	for t.state != stateFinal {
		switch t.state {
		case stateAwaitingInitialCompletion:
			completion, err := o.complete(ctx, PhaseInitial, llm.CompletionRequest{
				Model:      o.cfg.Model,
				Messages:   t.conv.Messages,
				Tools:      o.tools.Definitions(),
				ToolChoice: llm.ToolChoiceAuto,
			})
			if err != nil {
				return err
			}
			if !completion.HasToolCalls() {
				if strings.TrimSpace(completion.Message.Content) == "" {
					return o.completionError(ctx, PhaseInitial, llm.ErrEmptyAssistant)
				}
				t.finish(completion.Message.Content)
				continue
			}
			calls := completion.Message.ToolCalls
			t.conv.Append(conversation.AssistantMessage(completion.Message.Content, calls))
			t.pending = calls
			t.usedTools = true
			t.state = stateToolCallsPending
			log.Debug().Int("tool_calls", len(calls)).Msg("model requested tools")

		case stateToolCallsPending:
			for _, result := range o.executeBatch(ctx, t.pending, log) {
				t.conv.Append(conversation.ToolResultMessage(
					conversation.ToolCall{ID: result.CallID, Name: result.Name},
					result.Content,
				))
			}
			t.pending = nil
			t.state = stateAwaitingFollowupCompletion

		case stateAwaitingFollowupCompletion:
			completion, err := o.complete(ctx, PhaseFollowup, llm.CompletionRequest{
				Model:    o.cfg.Model,
				Messages: t.conv.Messages,
			})
			if err != nil {
				return err
			}
			if completion.HasToolCalls() {
				log.Warn().Int("tool_calls", len(completion.Message.ToolCalls)).Msg("ignoring tool calls in follow-up completion")
			}
			if strings.TrimSpace(completion.Message.Content) == "" {
				return o.completionError(ctx, PhaseFollowup, llm.ErrEmptyAssistant)
			}
			t.finish(completion.Message.Content)

		default:
			return fmt.Errorf("unexpected turn state %s", t.state)
		}
	}
	return nil
}

func (o *Orchestrator) complete(ctx context.Context, phase Phase, req llm.CompletionRequest) (*llm.Completion, error) {
	ctx, span := o.tracer.Start(ctx, "llm.completion."+string(phase),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("llm.model", req.Model),
			attribute.Int("llm.messages", len(req.Messages)),
			attribute.Int("llm.tools", len(req.Tools)),
		),
	)
	defer span.End()

	started := time.Now()
	completion, err := o.provider.CreateChatCompletion(ctx, req)
	if err == nil && completion == nil {
		err = llm.ErrNoChoices
	}
	o.observer.CompletionFinished(phase, time.Since(started), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, o.completionError(ctx, phase, err)
	}

	span.SetAttributes(
		attribute.String("llm.finish_reason", completion.FinishReason),
		attribute.Int("llm.usage.total_tokens", completion.Usage.TotalTokens),
		attribute.Int("llm.tool_calls", len(completion.Message.ToolCalls)),
	)
	return completion, nil
}

func (o *Orchestrator) completionError(ctx context.Context, phase Phase, err error) error {
	errorType := platformerrors.ErrorTypeExternal
	if errors.Is(err, context.DeadlineExceeded) {
		errorType = platformerrors.ErrorTypeTimeout
	}
	return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain, errorType,
		"completion request failed", fmt.Errorf("%w: %w", ErrCompletionFailed, err),
		map[string]any{"phase": string(phase)})
}
