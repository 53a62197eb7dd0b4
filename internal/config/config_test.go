package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10*time.Second, cfg.Engine.PollInterval.Duration)
	assert.Equal(t, "MOCK", cfg.Bot.MarketMode)
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
log_level = "debug"

[bot]
base_capital_usd = 2500

[risk]
max_concurrent_events = 2

[engine]
poll_interval = "3s"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("NEARBOT_RISK_MAX_CONSECUTIVE_LOSSES", "5")
	t.Setenv("NEARBOT_SERVER_CORS_ORIGINS", "http://a, http://b")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 2500.0, cfg.Bot.BaseCapitalUSD)
	assert.Equal(t, 2, cfg.Risk.MaxConcurrentEvents)
	assert.Equal(t, 5, cfg.Risk.MaxConsecutiveLosses)
	assert.Equal(t, 3*time.Second, cfg.Engine.PollInterval.Duration)
	assert.Equal(t, []string{"http://a", "http://b"}, cfg.Server.CORSOrigins)
	// untouched sections keep their defaults
	assert.Equal(t, 0.86, cfg.Strategy.EntryPriceMin)
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults().Bot.BaseCapitalUSD, cfg.Bot.BaseCapitalUSD)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Bot.BaseCapitalUSD = 0
	cfg.Bot.MarketMode = "LIVE"
	cfg.Risk.MaxDailyLossPct = 0.1
	cfg.Strategy.EntryPriceMin = 0.95

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "base_capital_usd")
	assert.Contains(t, msg, "market_mode")
	assert.Contains(t, msg, "max_daily_loss_pct")
	assert.Contains(t, msg, "entry band")
}

func TestValidateOptionalBackends(t *testing.T) {
	cfg := Defaults()
	cfg.Redis.Addr = ""
	require.NoError(t, cfg.Validate(), "disabled redis is not validated")

	cfg.Redis.Enabled = true
	require.ErrorContains(t, cfg.Validate(), "redis: addr")
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Supabase.Password = "pw"
	cfg.Notify.TelegramToken = "tok"
	cfg.Server.APIKey = "k"

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Supabase.Password)
	assert.Equal(t, "***", out.Notify.TelegramToken)
	assert.Equal(t, "***", out.Server.APIKey)
	assert.Empty(t, out.S3.SecretKey)
	assert.Equal(t, "pw", cfg.Supabase.Password)

	out.Notify.Events[0] = "changed"
	assert.NotEqual(t, "changed", cfg.Notify.Events[0])
}

func TestExampleConfigMatchesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config.example.toml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, Defaults(), *cfg)
}
