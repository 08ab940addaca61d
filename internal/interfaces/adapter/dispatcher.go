package adapter

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tetkool/concierge/internal/infrastructure/metrics"
	"github.com/tetkool/concierge/internal/infrastructure/telemetry"
	"github.com/tetkool/concierge/internal/utils/platformerrors"
	"github.com/tetkool/concierge/internal/worker"
)

const (
	// DefaultGreeting is sent on /start; {name} is replaced with the user's display name.
	DefaultGreeting = "Привет, {name}! 👋\nЯ помогу тебе подобрать лучший курс. Напиши, что тебя интересует!"

	fallbackName = "друг"
)

var ErrIgnored = errors.New("message ignored")

// Agent is what the adapter needs from the orchestration loop.
type Agent interface {
	HandleTurn(ctx context.Context, userID, text string) (string, error)
	Reset(ctx context.Context, userID string) error
	Apology() string
}

// Inbound is a transport-neutral incoming message.
type Inbound struct {
	Transport   string
	UserID      string
	// DisplayName is the sender's full name as shown by the transport, if any.
	DisplayName string
	// Text is empty for non-text updates such as stickers or photos.
	Text string
}

// ReplyFunc delivers the reply to the user on the originating transport.
type ReplyFunc func(ctx context.Context, text string) error

// Dispatcher routes inbound messages to commands or the orchestration loop.
type Dispatcher struct {
	agent     Agent
	pool      *worker.Pool
	greeting  string
	sanitizer *telemetry.Sanitizer
	log       zerolog.Logger
}

func NewDispatcher(agent Agent, pool *worker.Pool, greeting string, sanitizer *telemetry.Sanitizer, log zerolog.Logger) *Dispatcher {
	if greeting == "" {
		greeting = DefaultGreeting
	}
	if sanitizer == nil {
		sanitizer = telemetry.NewSanitizer(telemetry.PIILevelHashed, "")
	}
	return &Dispatcher{
		agent:     agent,
		pool:      pool,
		greeting:  greeting,
		sanitizer: sanitizer,
		log:       log.With().Str("component", "dispatcher").Logger(),
	}
}

// Dispatch queues msg behind earlier messages of the same user and returns
// immediately. The reply is delivered through reply.
func (d *Dispatcher) Dispatch(msg Inbound, reply ReplyFunc) error {
	return d.pool.Submit(msg.UserID, func(ctx context.Context) {
		text, err := d.Process(ctx, msg)
		if errors.Is(err, ErrIgnored) {
			return
		}
		if err := reply(ctx, text); err != nil {
			platformerrors.LogError(d.log, platformerrors.NewErrorWithContext(ctx,
				platformerrors.LayerTransport, platformerrors.ErrorTypeExternal, "deliver reply", err,
				map[string]any{"transport": msg.Transport, "user_id": d.sanitizer.UserID(msg.UserID)},
			), "failed to deliver reply")
		}
	})
}

// DispatchAndWait queues msg like Dispatch and waits for the reply text.
func (d *Dispatcher) DispatchAndWait(ctx context.Context, msg Inbound) (string, error) {
	type outcome struct {
		text string
		err  error
	}
	result := make(chan outcome, 1)
	err := d.pool.Submit(msg.UserID, func(taskCtx context.Context) {
		text, err := d.Process(taskCtx, msg)
		result <- outcome{text: text, err: err}
	})
	if err != nil {
		return "", err
	}

	select {
	case out := <-result:
		return out.text, out.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Process handles one message synchronously and returns the reply text. Errors
// from the loop are logged here; the returned text is still sent to the user.
// ErrIgnored means there is nothing to send.
func (d *Dispatcher) Process(ctx context.Context, msg Inbound) (string, error) {
	log := d.log.With().
		Str("transport", msg.Transport).
		Str("user_id", d.sanitizer.UserID(msg.UserID)).
		Logger()

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		metrics.RecordMessage(msg.Transport, "ignored")
		log.Debug().Msg("ignoring non-text message")
		return "", ErrIgnored
	}

	if command, ok := parseCommand(text); ok && (command == "start" || command == "reset") {
		metrics.RecordMessage(msg.Transport, "command")
		if err := d.agent.Reset(ctx, msg.UserID); err != nil {
			log.Error().Err(err).Str("command", command).Msg("failed to reset conversation")
			return d.agent.Apology(), nil
		}
		log.Info().Str("command", command).Msg("conversation reset")
		return d.Greeting(msg.DisplayName), nil
	}

	metrics.RecordMessage(msg.Transport, "text")
	log.Debug().Str("text", d.sanitizer.Text(text)).Msg("user message received")

	reply, err := d.agent.HandleTurn(ctx, msg.UserID, text)
	if err != nil {
		// HandleTurn already logged the cause; the reply is the apology.
		log.Warn().Err(err).Msg("turn failed, sending apology")
	}
	return reply, nil
}

// Greeting renders the /start greeting.
func (d *Dispatcher) Greeting(displayName string) string {
	name := strings.TrimSpace(displayName)
	if name == "" {
		name = fallbackName
	}
	return strings.ReplaceAll(d.greeting, "{name}", name)
}

// parseCommand extracts "start" from "/start", "/start@tetkool_bot" or "/start payload".
func parseCommand(text string) (string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	word := strings.Fields(text)[0][1:]
	if at := strings.IndexByte(word, '@'); at >= 0 {
		word = word[:at]
	}
	if word == "" {
		return "", false
	}
	return strings.ToLower(word), true
}
