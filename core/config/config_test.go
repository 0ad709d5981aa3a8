package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{Token: "111:Aaa"},
		Gateway:  GatewayConfig{ServiceURL: "https://gateway.internal"},
	}
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, DefaultAPIURL, cfg.Telegram.APIURL)
	assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)
}

func TestNormalizeRequiresToken(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.Token = ""
	err := Normalize(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token")
}

func TestNormalizeRequiresServiceURL(t *testing.T) {
	cfg := validConfig()
	cfg.Gateway.ServiceURL = "   "
	err := Normalize(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service_url")
}

func TestNormalizeTrimsTrailingSlashes(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.APIURL = "https://api.example.org/"
	cfg.Gateway.ServiceURL = "https://gateway.internal/"
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, "https://api.example.org", cfg.Telegram.APIURL)
	assert.Equal(t, "https://gateway.internal", cfg.Gateway.ServiceURL)
}

func TestNormalizePollingAlias(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.RunMode = "Polling"
	require.NoError(t, Normalize(cfg))
	assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)
}

func TestNormalizeWebhookModeRequiresEndpoint(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.RunMode = RunModeWebhook
	err := Normalize(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook.url")

	cfg.Webhook = WebhookConfig{URL: "https://bot.example.org", Listen: "0.0.0.0", Port: 8443}
	require.NoError(t, Normalize(cfg))
}
