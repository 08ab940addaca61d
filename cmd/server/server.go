package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tetkool/concierge/internal/app"
	"github.com/tetkool/concierge/internal/config"
	"github.com/tetkool/concierge/internal/infrastructure/logger"
	"github.com/tetkool/concierge/internal/interfaces/httpserver"
	"github.com/tetkool/concierge/internal/interfaces/telegram"
)

// Application runs the HTTP server and, for the Telegram transport, the bot.
type Application struct {
	cfg        *config.Config
	httpServer *httpserver.HTTPServer
	bot        *telegram.Bot
	components *app.Components
	log        zerolog.Logger
}

func NewApplication(cfg *config.Config, httpServer *httpserver.HTTPServer, bot *telegram.Bot, components *app.Components, log zerolog.Logger) *Application {
	return &Application{
		cfg:        cfg,
		httpServer: httpServer,
		bot:        bot,
		components: components,
		log:        log,
	}
}

// Start blocks until ctx is cancelled or a component fails.
func (a *Application) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.httpServer.Run(ctx)
	})

	if a.bot != nil {
		switch a.cfg.TelegramMode {
		case config.TelegramModeWebhook:
			if err := a.bot.RegisterWebhook(ctx, a.cfg.TelegramWebhookURL, a.cfg.TelegramWebhookSecret); err != nil {
				return fmt.Errorf("register telegram webhook: %w", err)
			}
		default:
			g.Go(func() error {
				return a.bot.Poll(ctx)
			})
		}
	}

	return g.Wait()
}

// Close drains in-flight turns and releases resources.
func (a *Application) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.components.Close(ctx); err != nil {
		a.log.Error().Err(err).Msg("shutdown components")
	}
}

func main() {
	loadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("assemble application")
	}

	bot := newTelegramBot(cfg, components, log)
	httpServer := httpserver.New(cfg, log, components.Dispatcher, newUpdateHandler(bot))
	application := NewApplication(cfg, httpServer, bot, components, log)
	defer application.Close()

	log.Info().
		Str("transport", cfg.Transport).
		Str("telegram_mode", cfg.TelegramMode).
		Str("store", cfg.StoreBackend).
		Msg("concierge starting")

	if err := application.Start(ctx); err != nil {
		log.Error().Err(err).Msg("application stopped with error")
		return
	}
	log.Info().Msg("application exited cleanly")
}

func newTelegramBot(cfg *config.Config, components *app.Components, log zerolog.Logger) *telegram.Bot {
	if cfg.Transport != config.TransportTelegram {
		return nil
	}
	client := telegram.NewClient(cfg.TelegramAPIURL, cfg.TelegramBotToken, cfg.TelegramPollTimeout+15*time.Second, log)
	return telegram.NewBot(client, components.Dispatcher, cfg.TelegramPollTimeout, log)
}

func newUpdateHandler(bot *telegram.Bot) httpserver.UpdateHandler {
	if bot == nil {
		return nil
	}
	return bot
}

func loadEnvFiles() {
	paths := []string{".env", "../.env"}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}
