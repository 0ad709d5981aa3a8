package config

import (
	"fmt"
	"strings"
)

const (
	// RunModeWebhook receives updates over a webhook listener.
	RunModeWebhook = "webhook"
	// RunModeLongpoll pulls updates with long polling.
	RunModeLongpoll = "longpoll"

	// DefaultAPIURL is the public Bot API endpoint.
	DefaultAPIURL = "https://api.telegram.org"
)

const (
	// UpdateCallback names callback updates in rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage names message updates in rate limit exclusions.
	UpdateMessage = "message"
	// UpdateInlineQuery names inline query updates in rate limit exclusions.
	UpdateInlineQuery = "inline_query"
)

// TelegramConfig holds the gateway bot's own connection settings.
type TelegramConfig struct {
	Token string `yaml:"token" envconfig:"BOT_TOKEN"`
	// APIURL overrides the Bot API base URL, mainly for tests and local
	// Bot API servers.
	APIURL  string `yaml:"api_url" envconfig:"TELEGRAM_API_URL"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds is the long polling timeout; 0 uses the default.
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
}

// WebhookConfig is the listener used when run_mode is webhook.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// GatewayConfig holds settings specific to the bot gateway service.
type GatewayConfig struct {
	// ServiceURL is the base URL of the webhook-activation service that
	// connected bots are registered with.
	ServiceURL string `yaml:"service_url" envconfig:"SERVICE_URL"`
	// SessionTTLMinutes bounds how long an abandoned token prompt lives;
	// 0 disables the sweep.
	SessionTTLMinutes int `yaml:"session_ttl_minutes" envconfig:"SESSION_TTL_MINUTES"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir"`
	BotFile     string `yaml:"bot_file"`
	// Profile selects the environment profile, e.g. "debug" or "prod".
	Profile string `yaml:"profile"`
}

// RateLimitConfig throttles per-user update handling. ExcludeUpdates lists
// update kinds that bypass the limit: callback, message, inline_query.
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config is the reusable core configuration.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// Normalize validates required fields and canonicalizes values in place.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}
	if strings.TrimSpace(cfg.Gateway.ServiceURL) == "" {
		return fmt.Errorf("gateway service_url is required")
	}
	if strings.TrimSpace(cfg.Telegram.APIURL) == "" {
		cfg.Telegram.APIURL = DefaultAPIURL
	}
	cfg.Telegram.APIURL = strings.TrimRight(strings.TrimSpace(cfg.Telegram.APIURL), "/")

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	switch rm {
	case "":
		rm = RunModeLongpoll
	case "polling": // accepted alias
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

	if cfg.Gateway.SessionTTLMinutes < 0 {
		return fmt.Errorf("gateway.session_ttl_minutes must be >= 0")
	}
	cfg.Gateway.ServiceURL = strings.TrimRight(strings.TrimSpace(cfg.Gateway.ServiceURL), "/")

	allowed := map[string]struct{}{
		UpdateCallback:    {},
		UpdateMessage:     {},
		UpdateInlineQuery: {},
	}
	for i, v := range cfg.RateLimit.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message, inline_query", v)
		}
		cfg.RateLimit.ExcludeUpdates[i] = key
	}
	return nil
}
