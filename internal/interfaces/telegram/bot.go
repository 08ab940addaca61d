package telegram

import (
	"context"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/tetkool/concierge/internal/interfaces/adapter"
	"github.com/tetkool/concierge/internal/utils/platformerrors"
)

const transportName = "telegram"

// API is the part of the Bot API the bot uses.
type API interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error)
	SendMessage(ctx context.Context, chatID int64, text string) error
	SetWebhook(ctx context.Context, url, secret string) error
	DeleteWebhook(ctx context.Context) error
}

// Dispatcher queues inbound messages for processing.
type Dispatcher interface {
	Dispatch(msg adapter.Inbound, reply adapter.ReplyFunc) error
}

// Bot turns Telegram updates into dispatcher messages and sends replies back.
type Bot struct {
	api          API
	dispatcher   Dispatcher
	pollTimeout  time.Duration
	retryBackoff time.Duration
	log          zerolog.Logger
}

func NewBot(api API, dispatcher Dispatcher, pollTimeout time.Duration, log zerolog.Logger) *Bot {
	if pollTimeout <= 0 {
		pollTimeout = 30 * time.Second
	}
	return &Bot{
		api:          api,
		dispatcher:   dispatcher,
		pollTimeout:  pollTimeout,
		retryBackoff: 3 * time.Second,
		log:          log.With().Str("component", "telegram-bot").Logger(),
	}
}

// HandleUpdate dispatches one update. Updates without a message are ignored.
func (b *Bot) HandleUpdate(update Update) error {
	msg := update.Message
	if msg == nil {
		b.log.Debug().Int64("update_id", update.UpdateID).Msg("ignoring update without message")
		return nil
	}

	inbound := adapter.Inbound{
		Transport: transportName,
		UserID:    strconv.FormatInt(msg.Chat.ID, 10),
		Text:      msg.Text,
	}
	if msg.From != nil {
		inbound.UserID = strconv.FormatInt(msg.From.ID, 10)
		inbound.DisplayName = msg.From.FullName()
	}

	chatID := msg.Chat.ID
	return b.dispatcher.Dispatch(inbound, func(ctx context.Context, text string) error {
		return b.api.SendMessage(ctx, chatID, text)
	})
}

// Poll receives updates with getUpdates until ctx is cancelled.
func (b *Bot) Poll(ctx context.Context) error {
	if err := b.api.DeleteWebhook(ctx); err != nil {
		b.log.Warn().Err(err).Msg("failed to delete webhook before polling")
	}
	b.log.Info().Dur("poll_timeout", b.pollTimeout).Msg("telegram polling started")

	var offset int64
	for {
		if ctx.Err() != nil {
			b.log.Info().Msg("telegram polling stopped")
			return nil
		}

		updates, err := b.api.GetUpdates(ctx, offset, b.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			platformerrors.LogError(b.log, platformerrors.NewError(ctx,
				platformerrors.LayerTransport, platformerrors.ErrorTypeExternal, "getUpdates", err,
			), "telegram polling failed")
			select {
			case <-ctx.Done():
			case <-time.After(b.retryBackoff):
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			if err := b.HandleUpdate(update); err != nil {
				b.log.Error().Err(err).Int64("update_id", update.UpdateID).Msg("failed to dispatch update")
			}
		}
	}
}

// RegisterWebhook points Telegram at the webhook endpoint.
func (b *Bot) RegisterWebhook(ctx context.Context, url, secret string) error {
	if err := b.api.SetWebhook(ctx, url, secret); err != nil {
		return err
	}
	b.log.Info().Str("url", url).Msg("telegram webhook registered")
	return nil
}
