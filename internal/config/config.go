package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

const (
	TransportTelegram = "telegram"
	TransportHTTP     = "http"

	TelegramModePolling = "polling"
	TelegramModeWebhook = "webhook"

	StoreBackendMemory = "memory"
	StoreBackendRedis  = "redis"
)

const (
	defaultSystemPrompt = "Ты вежливый консультант образовательной платформы Tetkool. " +
		"Помогай подобрать курс, для поиска курсов используй инструмент get_courses. " +
		"Если пользователь хочет связаться с менеджером, используй send_email_to_manager."
)

// Config holds the environment driven configuration for the concierge service.
type Config struct {
	ServiceName     string        `env:"SERVICE_NAME" envDefault:"concierge"`
	Environment     string        `env:"ENVIRONMENT" envDefault:"development"`
	HTTPPort        int           `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"console"`
	EnableTracing   bool          `env:"ENABLE_TRACING" envDefault:"false"`
	OTLPEndpoint    string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:""`
	PIILevel        string        `env:"PII_LEVEL" envDefault:"hashed"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Completion service
	LLMModel         string        `env:"LLM_MODEL" envDefault:"gpt-4o"`
	OpenAIAPIKey     string        `env:"OPENAI_API_KEY"`
	OpenRouterAPIKey string        `env:"OPENROUTER_API_KEY"`
	LLMBaseURL       string        `env:"LLM_BASE_URL"`
	LLMTimeout       time.Duration `env:"LLM_TIMEOUT" envDefault:"75s"`
	OpenRouterTitle  string        `env:"OPENROUTER_APP_TITLE" envDefault:"Tetkool Bot"`
	OpenRouterSite   string        `env:"OPENROUTER_SITE_URL"`

	// Transport
	Transport             string        `env:"TRANSPORT" envDefault:"telegram"`
	TelegramBotToken      string        `env:"TELEGRAM_BOT_TOKEN"`
	TelegramAPIURL        string        `env:"TELEGRAM_API_URL" envDefault:"https://api.telegram.org"`
	TelegramMode          string        `env:"TELEGRAM_MODE" envDefault:"polling"`
	TelegramPollTimeout   time.Duration `env:"TELEGRAM_POLL_TIMEOUT" envDefault:"30s"`
	TelegramWebhookURL    string        `env:"TELEGRAM_WEBHOOK_URL"`
	TelegramWebhookSecret string        `env:"TELEGRAM_WEBHOOK_SECRET"`

	// Manager notifications
	NotifyEnabled    bool   `env:"NOTIFY_ENABLED" envDefault:"true"`
	GmailUser        string `env:"GMAIL_USER"`
	GmailAppPassword string `env:"GMAIL_APP_PASSWORD"`
	ManagerEmail     string `env:"MANAGER_EMAIL"`
	SMTPHost         string `env:"SMTP_HOST" envDefault:"smtp.gmail.com"`
	SMTPPort         int    `env:"SMTP_PORT" envDefault:"587"`
	EmailSubject     string `env:"EMAIL_SUBJECT" envDefault:"New Inquiry from Tetkool Bot"`

	// Content
	SystemPromptPath string `env:"SYSTEM_PROMPT_PATH"`
	CatalogPath      string `env:"CATALOG_PATH" envDefault:"data/courses.yaml"`
	ApologyText      string `env:"APOLOGY_TEXT" envDefault:"Извините, произошла ошибка при обработке вашего запроса."`
	NothingFoundText string `env:"NOTHING_FOUND_TEXT" envDefault:"К сожалению, по вашему запросу ничего не найдено."`
	GreetingTemplate string `env:"GREETING_TEMPLATE"`

	// Conversation store
	StoreBackend          string        `env:"STORE_BACKEND" envDefault:"memory"`
	ConversationCacheSize int           `env:"CONVERSATION_CACHE_SIZE" envDefault:"0"`
	RedisURL              string        `env:"REDIS_URL"`
	RedisKeyPrefix        string        `env:"REDIS_KEY_PREFIX" envDefault:"concierge:"`
	ConversationTTL       time.Duration `env:"CONVERSATION_TTL" envDefault:"0s"`
	LockExpiry            time.Duration `env:"CONVERSATION_LOCK_EXPIRY" envDefault:"4m"`
	LockRetryDelay        time.Duration `env:"CONVERSATION_LOCK_RETRY_DELAY" envDefault:"250ms"`
	LockMaxWait           time.Duration `env:"CONVERSATION_LOCK_MAX_WAIT" envDefault:"10m"`

	// Orchestration
	MaxToolCallsPerBatch int           `env:"MAX_TOOL_CALLS_PER_BATCH" envDefault:"8"`
	ToolTimeout          time.Duration `env:"TOOL_EXECUTION_TIMEOUT" envDefault:"45s"`

	// SystemPrompt is resolved from SystemPromptPath or the built-in default.
	SystemPrompt string
}

// Load parses environment variables into Config and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	if err := cfg.resolveSystemPrompt(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fails fast on settings the process cannot run without.
func (c *Config) Validate() error {
	var errs []error
	required := func(value, name, reason string) {
		if strings.TrimSpace(value) == "" {
			errs = append(errs, fmt.Errorf("%s is required%s", name, reason))
		}
	}

	required(c.LLMModel, "LLM_MODEL", "")
	if strings.TrimSpace(c.OpenAIAPIKey) == "" && strings.TrimSpace(c.OpenRouterAPIKey) == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY or OPENROUTER_API_KEY is required"))
	}

	switch c.Transport {
	case TransportTelegram:
		required(c.TelegramBotToken, "TELEGRAM_BOT_TOKEN", " when TRANSPORT is telegram")
		switch c.TelegramMode {
		case TelegramModePolling:
		case TelegramModeWebhook:
			required(c.TelegramWebhookURL, "TELEGRAM_WEBHOOK_URL", " when TELEGRAM_MODE is webhook")
			required(c.TelegramWebhookSecret, "TELEGRAM_WEBHOOK_SECRET", " when TELEGRAM_MODE is webhook")
		default:
			errs = append(errs, fmt.Errorf("TELEGRAM_MODE must be %q or %q, got %q", TelegramModePolling, TelegramModeWebhook, c.TelegramMode))
		}
	case TransportHTTP:
	default:
		errs = append(errs, fmt.Errorf("TRANSPORT must be %q or %q, got %q", TransportTelegram, TransportHTTP, c.Transport))
	}

	if c.NotifyEnabled {
		reason := " when NOTIFY_ENABLED is true"
		required(c.GmailUser, "GMAIL_USER", reason)
		required(c.GmailAppPassword, "GMAIL_APP_PASSWORD", reason)
		required(c.ManagerEmail, "MANAGER_EMAIL", reason)
		required(c.SMTPHost, "SMTP_HOST", reason)
	}

	switch c.StoreBackend {
	case StoreBackendMemory:
	case StoreBackendRedis:
		required(c.RedisURL, "REDIS_URL", " when STORE_BACKEND is redis")
		if longest := c.LongestTurn(); c.LockExpiry <= longest {
			errs = append(errs, fmt.Errorf("CONVERSATION_LOCK_EXPIRY must exceed the longest turn (2*LLM_TIMEOUT + TOOL_EXECUTION_TIMEOUT = %s), got %s", longest, c.LockExpiry))
		}
		if c.LockRetryDelay <= 0 {
			errs = append(errs, fmt.Errorf("CONVERSATION_LOCK_RETRY_DELAY must be positive, got %s", c.LockRetryDelay))
		}
		if c.LockMaxWait < 0 {
			errs = append(errs, fmt.Errorf("CONVERSATION_LOCK_MAX_WAIT must not be negative, got %s", c.LockMaxWait))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", StoreBackendMemory, StoreBackendRedis, c.StoreBackend))
	}

	required(c.CatalogPath, "CATALOG_PATH", "")
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("HTTP_PORT out of range: %d", c.HTTPPort))
	}
	if c.MaxToolCallsPerBatch <= 0 {
		errs = append(errs, fmt.Errorf("MAX_TOOL_CALLS_PER_BATCH must be positive, got %d", c.MaxToolCallsPerBatch))
	}
	if c.ToolTimeout <= 0 {
		errs = append(errs, fmt.Errorf("TOOL_EXECUTION_TIMEOUT must be positive, got %s", c.ToolTimeout))
	}
	if c.ConversationCacheSize < 0 {
		errs = append(errs, fmt.Errorf("CONVERSATION_CACHE_SIZE must not be negative, got %d", c.ConversationCacheSize))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// LongestTurn is the worst-case duration of one turn: two completion calls and
// one tool batch.
func (c *Config) LongestTurn() time.Duration {
	return 2*c.LLMTimeout + c.ToolTimeout
}

func (c *Config) resolveSystemPrompt() error {
	if strings.TrimSpace(c.SystemPromptPath) == "" {
		c.SystemPrompt = defaultSystemPrompt
		return nil
	}
	raw, err := os.ReadFile(c.SystemPromptPath)
	if err != nil {
		return fmt.Errorf("read SYSTEM_PROMPT_PATH: %w", err)
	}
	prompt := strings.TrimSpace(string(raw))
	if prompt == "" {
		return fmt.Errorf("SYSTEM_PROMPT_PATH %s is empty", c.SystemPromptPath)
	}
	c.SystemPrompt = prompt
	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// UseOpenRouter reports whether completions go through OpenRouter.
func (c *Config) UseOpenRouter() bool {
	return strings.TrimSpace(c.OpenRouterAPIKey) != ""
}

// CompletionBaseURL returns the completion endpoint root, honouring LLM_BASE_URL.
func (c *Config) CompletionBaseURL() string {
	if c.LLMBaseURL != "" {
		return c.LLMBaseURL
	}
	if c.UseOpenRouter() {
		return "https://openrouter.ai/api/v1"
	}
	return "https://api.openai.com/v1"
}

// CompletionAPIKey returns the key matching CompletionBaseURL.
func (c *Config) CompletionAPIKey() string {
	if c.UseOpenRouter() {
		return c.OpenRouterAPIKey
	}
	return c.OpenAIAPIKey
}
