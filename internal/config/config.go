// Package config loads Shannon's layered configuration: a YAML file with
// environment-variable overrides under the SHANNON_ prefix (nested keys
// joined with "__"), mirroring the teacher's config.Load/applyEnvOverrides
// pipeline.
package config

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration document.
type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Auth      AuthConfig      `yaml:"auth"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Webhooks  WebhooksConfig  `yaml:"webhooks"`
	Context   ContextConfig   `yaml:"context"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
	Transports TransportsConfig `yaml:"transports"`
}

// TransportsConfig enables the concrete chat transports. Each transport is
// an out-of-scope collaborator (spec §1): the core only depends on the
// Start/Stop/SendMessage contract, so leaving a section disabled (the
// zero value) simply means that transport is never constructed.
type TransportsConfig struct {
	Discord  DiscordConfig  `yaml:"discord"`
	Slack    SlackConfig    `yaml:"slack"`
	Telegram TelegramConfig `yaml:"telegram"`
}

// DiscordConfig configures the Discord bot transport.
type DiscordConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
}

// SlackConfig configures the Slack Socket Mode transport.
type SlackConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BotToken string `yaml:"bot_token"`
	AppToken string `yaml:"app_token"`
}

// TelegramConfig configures the Telegram long-polling transport.
type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
}

// LLMConfig selects and configures the LLM provider.
type LLMConfig struct {
	Provider      string  `yaml:"provider"` // "anthropic", "openai", "bedrock", "local"
	Model         string  `yaml:"model"`
	APIKey        string  `yaml:"api_key"`
	LocalEndpoint string  `yaml:"local_endpoint"`
	MaxTokens     int     `yaml:"max_tokens"`
	Temperature   float64 `yaml:"temperature"`
	// ReactFallback forces the ReAct prompt-only tool-use protocol even if
	// the selected provider supports native tool calling. Useful for
	// providers reachable only through LocalEndpoint.
	ReactFallback bool `yaml:"react_fallback"`
}

// AuthConfig lists trust levels and rate limiting.
type AuthConfig struct {
	AdminUsers         []string `yaml:"admin_users"`
	OperatorUsers      []string `yaml:"operator_users"`
	TrustedUsers       []string `yaml:"trusted_users"`
	RateLimitPerMinute int      `yaml:"rate_limit_per_minute"`
	SudoTimeoutSeconds int      `yaml:"sudo_timeout_seconds"`
	JWTSecret          string   `yaml:"jwt_secret"`
}

// SchedulerConfig configures the heartbeat and cron jobs.
type SchedulerConfig struct {
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	Jobs              []CronJob     `yaml:"jobs"`
}

// CronJob is one scheduled firing.
type CronJob struct {
	ID      string         `yaml:"id"`
	Cron    string         `yaml:"cron"`
	Command string         `yaml:"command"`
	Payload map[string]any `yaml:"payload"`
}

// WebhooksConfig configures the webhook HTTP ingress.
type WebhooksConfig struct {
	Enabled   bool             `yaml:"enabled"`
	Bind      string           `yaml:"bind"`
	Port      int              `yaml:"port"`
	Endpoints []WebhookEndpoint `yaml:"endpoints"`
}

// WebhookEndpoint is one configured ingestion path.
type WebhookEndpoint struct {
	Name           string `yaml:"name"`
	Path           string `yaml:"path"`
	Provider       string `yaml:"provider"` // "github", "sentry", "generic"
	Secret         string `yaml:"secret"`
	Channel        string `yaml:"channel"` // "platform:channel"
	PromptTemplate string `yaml:"prompt_template"`
}

// ContextConfig bounds the conversation window and summarization trigger.
type ContextConfig struct {
	MaxMessages         int     `yaml:"max_messages"`
	SummarizeThreshold  float64 `yaml:"summarize_threshold"` // fraction of context window, e.g. 0.7
	ContextWindowTokens int     `yaml:"context_window_tokens"`
}

// StorageConfig selects the SQL backend for context/memory/plans/jobs.
type StorageConfig struct {
	Driver   string `yaml:"driver"` // "sqlite" (default) or "postgres"
	DataDir  string `yaml:"data_dir"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// LoggingConfig configures the root logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Load reads path, expands ${VAR} references, decodes YAML strictly,
// applies SHANNON_-prefixed environment overrides, fills defaults, and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := dec.Decode(new(struct{})); err != io.EOF {
		return nil, fmt.Errorf("parse config: expected a single YAML document")
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 4096
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.7
	}
	if cfg.Auth.RateLimitPerMinute == 0 {
		cfg.Auth.RateLimitPerMinute = 20
	}
	if cfg.Auth.SudoTimeoutSeconds == 0 {
		cfg.Auth.SudoTimeoutSeconds = 900
	}
	if cfg.Scheduler.HeartbeatInterval == 0 {
		cfg.Scheduler.HeartbeatInterval = 30 * time.Second
	}
	if cfg.Webhooks.Port == 0 {
		cfg.Webhooks.Port = 8420
	}
	if cfg.Context.MaxMessages == 0 {
		cfg.Context.MaxMessages = 200
	}
	if cfg.Context.SummarizeThreshold == 0 {
		cfg.Context.SummarizeThreshold = 0.7
	}
	if cfg.Context.ContextWindowTokens == 0 {
		cfg.Context.ContextWindowTokens = 100_000
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "./data"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// applyEnvOverrides mirrors the teacher's per-field override list, using
// the SHANNON_ prefix with "__" as the nesting separator.
func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("SHANNON_LLM__PROVIDER")); v != "" {
		cfg.LLM.Provider = v
	}
	if v := strings.TrimSpace(os.Getenv("SHANNON_LLM__MODEL")); v != "" {
		cfg.LLM.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("SHANNON_LLM__API_KEY")); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("SHANNON_LLM__LOCAL_ENDPOINT")); v != "" {
		cfg.LLM.LocalEndpoint = v
	}
	if v := strings.TrimSpace(os.Getenv("SHANNON_AUTH__JWT_SECRET")); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := strings.TrimSpace(os.Getenv("SHANNON_AUTH__RATE_LIMIT_PER_MINUTE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Auth.RateLimitPerMinute = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("SHANNON_WEBHOOKS__PORT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Webhooks.Port = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("SHANNON_WEBHOOKS__BIND")); v != "" {
		cfg.Webhooks.Bind = v
	}
	if v := strings.TrimSpace(os.Getenv("SHANNON_STORAGE__DRIVER")); v != "" {
		cfg.Storage.Driver = v
	}
	if v := strings.TrimSpace(os.Getenv("SHANNON_STORAGE__POSTGRES_DSN")); v != "" {
		cfg.Storage.PostgresDSN = v
	}
	if v := strings.TrimSpace(os.Getenv("SHANNON_LOGGING__LEVEL")); v != "" {
		cfg.Logging.Level = v
	}
	if v := strings.TrimSpace(os.Getenv("SHANNON_TRANSPORTS__DISCORD__TOKEN")); v != "" {
		cfg.Transports.Discord.Token = v
	}
	if v := strings.TrimSpace(os.Getenv("SHANNON_TRANSPORTS__SLACK__BOT_TOKEN")); v != "" {
		cfg.Transports.Slack.BotToken = v
	}
	if v := strings.TrimSpace(os.Getenv("SHANNON_TRANSPORTS__SLACK__APP_TOKEN")); v != "" {
		cfg.Transports.Slack.AppToken = v
	}
	if v := strings.TrimSpace(os.Getenv("SHANNON_TRANSPORTS__TELEGRAM__TOKEN")); v != "" {
		cfg.Transports.Telegram.Token = v
	}
}

// ValidationError aggregates every problem found by validate.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validate(cfg *Config) error {
	var issues []string

	switch cfg.LLM.Provider {
	case "anthropic", "openai", "bedrock", "local":
	default:
		issues = append(issues, fmt.Sprintf("llm.provider %q is not one of anthropic|openai|bedrock|local", cfg.LLM.Provider))
	}
	if cfg.Storage.Driver != "sqlite" && cfg.Storage.Driver != "postgres" {
		issues = append(issues, "storage.driver must be \"sqlite\" or \"postgres\"")
	}
	if cfg.Storage.Driver == "postgres" && strings.TrimSpace(cfg.Storage.PostgresDSN) == "" {
		issues = append(issues, "storage.postgres_dsn is required when storage.driver is postgres")
	}
	for _, ep := range cfg.Webhooks.Endpoints {
		if strings.TrimSpace(ep.Path) == "" {
			issues = append(issues, fmt.Sprintf("webhooks.endpoints[%s].path is required", ep.Name))
		}
		if !strings.Contains(ep.Channel, ":") {
			issues = append(issues, fmt.Sprintf("webhooks.endpoints[%s].channel must be \"platform:channel\"", ep.Name))
		}
	}
	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}
