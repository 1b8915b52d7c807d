package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot transport settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	AdminID int64  `yaml:"admin_id" envconfig:"TELEGRAM_ADMIN_ID"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
	// RateLimitIntervalMS throttles repeated text messages per user; 0 disables.
	RateLimitIntervalMS int `yaml:"rate_limit_interval_ms" envconfig:"TELEGRAM_RATE_LIMIT_INTERVAL_MS"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LedgerConfig points at the external service of record that persists
// completed transactions.
type LedgerConfig struct {
	URL            string `yaml:"url" envconfig:"LEDGER_URL"`
	TimeoutSeconds int    `yaml:"timeout_seconds" envconfig:"LEDGER_TIMEOUT_SECONDS"`
}

// JournalConfig controls the optional local submission journal.
type JournalConfig struct {
	Enabled  bool   `yaml:"enabled" envconfig:"JOURNAL_ENABLED"`
	Host     string `yaml:"host" envconfig:"JOURNAL_DB_HOST"`
	Port     string `yaml:"port" envconfig:"JOURNAL_DB_PORT"`
	User     string `yaml:"user" envconfig:"JOURNAL_DB_USER"`
	Password string `yaml:"password" envconfig:"JOURNAL_DB_PASSWORD"`
	Name     string `yaml:"name" envconfig:"JOURNAL_DB_NAME"`
	SSLMode  string `yaml:"sslmode" envconfig:"JOURNAL_DB_SSLMODE"`
	// MaxConnections bounds the pool; journal traffic is one row per submission.
	MaxConnections int `yaml:"max_connections" envconfig:"JOURNAL_DB_MAX_CONNECTIONS"`
}

// EntryConfig tunes the conversation entry flow.
type EntryConfig struct {
	// IdleExpiryMinutes drops conversations older than this; 0 disables the sweep.
	IdleExpiryMinutes int `yaml:"idle_expiry_minutes" envconfig:"ENTRY_IDLE_EXPIRY_MINUTES"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
	Dir     string `yaml:"dir"`
	BotFile string `yaml:"bot_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

// Config aggregates all application configuration.
type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Journal  JournalConfig  `yaml:"journal"`
	Entry    EntryConfig    `yaml:"entry"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" {
		rm = RunModeLongpoll
	}
	if rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	if cfg.Telegram.RateLimitIntervalMS < 0 {
		return fmt.Errorf("telegram.rate_limit_interval_ms must be >= 0")
	}

	raw := strings.TrimSpace(cfg.Ledger.URL)
	if raw == "" {
		return fmt.Errorf("ledger.url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("ledger.url %q is not an absolute URL", raw)
	}
	cfg.Ledger.URL = raw
	if cfg.Ledger.TimeoutSeconds < 0 {
		return fmt.Errorf("ledger.timeout_seconds must be >= 0")
	}
	if cfg.Ledger.TimeoutSeconds == 0 {
		cfg.Ledger.TimeoutSeconds = 15
	}

	if cfg.Entry.IdleExpiryMinutes < 0 {
		return fmt.Errorf("entry.idle_expiry_minutes must be >= 0")
	}

	if cfg.Journal.Enabled {
		if strings.TrimSpace(cfg.Journal.Host) == "" {
			return fmt.Errorf("journal.host is required when journal.enabled is true")
		}
		if strings.TrimSpace(cfg.Journal.Name) == "" {
			return fmt.Errorf("journal.name is required when journal.enabled is true")
		}
		if strings.TrimSpace(cfg.Journal.Port) == "" {
			cfg.Journal.Port = "5432"
		}
		if strings.TrimSpace(cfg.Journal.SSLMode) == "" {
			cfg.Journal.SSLMode = "disable"
		}
		if cfg.Journal.MaxConnections <= 0 {
			cfg.Journal.MaxConnections = 2
		}
	}

	return nil
}
