package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tetkool/concierge/internal/config"
	"github.com/tetkool/concierge/internal/domain/agent"
	"github.com/tetkool/concierge/internal/domain/catalog"
	"github.com/tetkool/concierge/internal/domain/conversation"
	"github.com/tetkool/concierge/internal/domain/llm"
	"github.com/tetkool/concierge/internal/domain/tool"
	"github.com/tetkool/concierge/internal/infrastructure/catalogfile"
	"github.com/tetkool/concierge/internal/infrastructure/llmprovider"
	"github.com/tetkool/concierge/internal/infrastructure/mailer"
	"github.com/tetkool/concierge/internal/infrastructure/metrics"
	"github.com/tetkool/concierge/internal/infrastructure/observability"
	"github.com/tetkool/concierge/internal/infrastructure/store/memory"
	"github.com/tetkool/concierge/internal/infrastructure/store/redisstore"
	"github.com/tetkool/concierge/internal/infrastructure/telemetry"
	"github.com/tetkool/concierge/internal/infrastructure/tools"
	"github.com/tetkool/concierge/internal/interfaces/adapter"
	"github.com/tetkool/concierge/internal/worker"
)

// Components is the assembled object graph shared by the server and the CLI.
type Components struct {
	Config       *config.Config
	Log          zerolog.Logger
	Telemetry    *observability.Provider
	Sanitizer    *telemetry.Sanitizer
	Catalog      *catalog.Catalog
	Registry     *tool.Registry
	Orchestrator *agent.Orchestrator
	Pool         *worker.Pool
	Dispatcher   *adapter.Dispatcher

	closers []func(context.Context) error
}

// Close stops the worker pool first, then releases stores and telemetry.
func (c *Components) Close(ctx context.Context) error {
	if c.Pool != nil {
		c.Pool.Stop()
	}
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// Build assembles every component from cfg. On error, anything already opened is closed.
func Build(ctx context.Context, cfg *config.Config, log zerolog.Logger) (_ *Components, err error) {
	c := &Components{
		Config:    cfg,
		Log:       log,
		Sanitizer: telemetry.NewSanitizer(telemetry.ParsePIILevel(cfg.PIILevel), cfg.ServiceName),
	}
	defer func() {
		if err != nil {
			_ = c.Close(context.WithoutCancel(ctx))
		}
	}()

	c.Telemetry, err = observability.Setup(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("initialize observability: %w", err)
	}
	c.closers = append(c.closers, c.Telemetry.Shutdown)

	c.Catalog, err = catalogfile.Load(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	log.Info().
		Int("categories", len(c.Catalog.Categories())).
		Int("courses", c.Catalog.Size()).
		Msg("catalog loaded")

	c.Registry, err = NewRegistry(cfg, c.Catalog, c.Sanitizer, log)
	if err != nil {
		return nil, err
	}

	store, locker, closeStore, err := NewConversationStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, closeStore)

	observer, err := metrics.NewAgentObserver(c.Telemetry.Meter)
	if err != nil {
		return nil, fmt.Errorf("create agent observer: %w", err)
	}

	c.Orchestrator = agent.NewOrchestrator(
		NewCompletionProvider(cfg, log),
		c.Registry,
		store,
		locker,
		agent.Config{
			Model:                cfg.LLMModel,
			MaxToolCallsPerBatch: cfg.MaxToolCallsPerBatch,
			ToolCallTimeout:      cfg.ToolTimeout,
			Apology:              cfg.ApologyText,
		},
		log,
		agent.WithObserver(observer),
		agent.WithTracer(c.Telemetry.Tracer),
	)

	c.Pool = worker.NewPool(worker.Config{ShutdownTimeout: cfg.ShutdownTimeout}, log)
	c.Dispatcher = adapter.NewDispatcher(c.Orchestrator, c.Pool, cfg.GreetingTemplate, c.Sanitizer, log)
	return c, nil
}

// NewRegistry registers the catalog lookup and, when notifications are enabled,
// the manager notifier.
func NewRegistry(cfg *config.Config, cat *catalog.Catalog, sanitizer *telemetry.Sanitizer, log zerolog.Logger) (*tool.Registry, error) {
	registry := tool.NewRegistry()
	lookup := tools.NewCourseLookup(cat, cfg.NothingFoundText, log)

	var notifier *tools.ManagerNotifier
	if cfg.NotifyEnabled {
		sender := mailer.NewSMTP(mailer.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.GmailUser,
			Password: cfg.GmailAppPassword,
			From:     cfg.GmailUser,
		}, log)
		notifier = tools.NewManagerNotifier(sender, tools.NotifySettings{
			SenderAddress:   cfg.GmailUser,
			SenderPassword:  cfg.GmailAppPassword,
			OperatorAddress: cfg.ManagerEmail,
			Subject:         cfg.EmailSubject,
		}, sanitizer, log)
	}

	if err := tools.Register(registry, lookup, notifier); err != nil {
		return nil, fmt.Errorf("register tools: %w", err)
	}
	return registry, nil
}

// NewCompletionProvider targets OpenRouter when its key is set, else OpenAI.
func NewCompletionProvider(cfg *config.Config, log zerolog.Logger) llm.Provider {
	providerCfg := llmprovider.Config{
		BaseURL: cfg.CompletionBaseURL(),
		APIKey:  cfg.CompletionAPIKey(),
		Timeout: cfg.LLMTimeout,
	}
	if cfg.UseOpenRouter() {
		providerCfg.Headers = map[string]string{
			"HTTP-Referer": cfg.OpenRouterSite,
			"X-Title":      cfg.OpenRouterTitle,
		}
	}
	log.Info().
		Str("base_url", providerCfg.BaseURL).
		Str("model", cfg.LLMModel).
		Bool("openrouter", cfg.UseOpenRouter()).
		Msg("completion provider configured")
	return llmprovider.NewClient(providerCfg, log)
}

// NewConversationStore builds the configured store backend and its per-user locker.
func NewConversationStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (conversation.Store, conversation.Locker, func(context.Context) error, error) {
	switch cfg.StoreBackend {
	case config.StoreBackendRedis:
		client, err := redisstore.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		store := redisstore.NewStore(client, redisstore.Config{
			KeyPrefix: cfg.RedisKeyPrefix,
			TTL:       cfg.ConversationTTL,
		}, cfg.SystemPrompt, log)
		locker := redisstore.NewLocker(client, redisstore.LockerConfig{
			KeyPrefix:  cfg.RedisKeyPrefix,
			Expiry:     cfg.LockExpiry,
			RetryDelay: cfg.LockRetryDelay,
			MaxWait:    cfg.LockMaxWait,
		}, log)
		log.Info().Str("backend", "redis").Msg("conversation store ready")
		return store, locker, func(context.Context) error { return client.Close() }, nil

	default:
		store, err := memory.NewStore(cfg.SystemPrompt, cfg.ConversationCacheSize, log)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("create memory store: %w", err)
		}
		log.Info().Str("backend", "memory").Int("capacity", cfg.ConversationCacheSize).Msg("conversation store ready")
		return store, memory.NewLocker(), func(context.Context) error { return nil }, nil
	}
}
