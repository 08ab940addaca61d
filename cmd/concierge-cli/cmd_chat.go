package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tetkool/concierge/internal/app"
	"github.com/tetkool/concierge/internal/config"
	"github.com/tetkool/concierge/internal/infrastructure/logger"
	"github.com/tetkool/concierge/internal/interfaces/console"
)

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the bot in the terminal",
		Long: `Start an interactive session that goes through the same orchestration loop,
tools and conversation store as the server. Type /reset to start over and /exit to quit.`,
		RunE: runChat,
	}
	cmd.Flags().String("name", "", "First name used in the greeting")
	cmd.Flags().String("user", "console", "User id the conversation is stored under")
	return cmd
}

func runChat(cmd *cobra.Command, _ []string) error {
	_ = godotenv.Load()
	// The console is the transport here, so Telegram settings are not required.
	if err := os.Setenv("TRANSPORT", config.TransportHTTP); err != nil {
		return err
	}
	if path, _ := cmd.Flags().GetString("catalog-file"); path != "" {
		if err := os.Setenv("CATALOG_PATH", path); err != nil {
			return err
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.LogLevel == "info" {
		cfg.LogLevel = "warn"
	}
	log := logger.NewWithWriter(cfg, cmd.ErrOrStderr())

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := components.Close(closeCtx); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
		}
	}()

	name, _ := cmd.Flags().GetString("name")
	userID, _ := cmd.Flags().GetString("user")
	repl := console.NewREPL(components.Dispatcher, userID, name, cmd.InOrStdin(), cmd.OutOrStdout(), log)
	return repl.Run(ctx)
}
