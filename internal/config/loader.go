package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies NEARBOT_* environment variable overrides, and
// returns the final Config. An empty path skips the file and starts from the
// defaults. The returned Config has NOT been validated; the caller should
// invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known NEARBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Bot ──
	setFloat64(&cfg.Bot.BaseCapitalUSD, "NEARBOT_BOT_BASE_CAPITAL_USD")
	setStr(&cfg.Bot.MarketMode, "NEARBOT_BOT_MARKET_MODE")
	setBool(&cfg.Bot.Enabled, "NEARBOT_BOT_ENABLED")

	// ── Risk ──
	setFloat64(&cfg.Risk.MaxDailyLossPct, "NEARBOT_RISK_MAX_DAILY_LOSS_PCT")
	setInt(&cfg.Risk.MaxConsecutiveLosses, "NEARBOT_RISK_MAX_CONSECUTIVE_LOSSES")
	setInt(&cfg.Risk.MaxConcurrentEvents, "NEARBOT_RISK_MAX_CONCURRENT_EVENTS")
	setFloat64(&cfg.Risk.MaxCapitalPerEventPct, "NEARBOT_RISK_MAX_CAPITAL_PER_EVENT_PCT")

	// ── Strategy ──
	setFloat64(&cfg.Strategy.EntryPriceMin, "NEARBOT_STRATEGY_ENTRY_PRICE_MIN")
	setFloat64(&cfg.Strategy.EntryPriceMax, "NEARBOT_STRATEGY_ENTRY_PRICE_MAX")
	setFloat64(&cfg.Strategy.MinHoursToExpiryForEntry, "NEARBOT_STRATEGY_MIN_HOURS_TO_EXPIRY_FOR_ENTRY")
	setFloat64(&cfg.Strategy.MaxVolatility30mForEntry, "NEARBOT_STRATEGY_MAX_VOLATILITY_30M_FOR_ENTRY")
	setInt(&cfg.Strategy.MaxEntryTranchesPerEvent, "NEARBOT_STRATEGY_MAX_ENTRY_TRANCHES_PER_EVENT")
	setFloat64(&cfg.Strategy.FirstEntrySize, "NEARBOT_STRATEGY_FIRST_ENTRY_SIZE")
	setFloat64(&cfg.Strategy.TrancheSize, "NEARBOT_STRATEGY_TRANCHE_SIZE")
	setFloat64(&cfg.Strategy.TakeProfitMin, "NEARBOT_STRATEGY_TAKE_PROFIT_MIN")
	setFloat64(&cfg.Strategy.TakeProfitMax, "NEARBOT_STRATEGY_TAKE_PROFIT_MAX")
	setFloat64(&cfg.Strategy.ForceExitMinutesBeforeExpiry, "NEARBOT_STRATEGY_FORCE_EXIT_MINUTES_BEFORE_EXPIRY")
	setFloat64(&cfg.Strategy.StopLossDropPctInMinutes, "NEARBOT_STRATEGY_STOP_LOSS_DROP_PCT_IN_MINUTES")
	setFloat64(&cfg.Strategy.StopLossWindowMinutes, "NEARBOT_STRATEGY_STOP_LOSS_WINDOW_MINUTES")

	// ── Engine / executor / feeds ──
	setDuration(&cfg.Engine.PollInterval, "NEARBOT_ENGINE_POLL_INTERVAL")
	setFloat64(&cfg.Executor.SlippageBps, "NEARBOT_EXECUTOR_SLIPPAGE_BPS")
	setDuration(&cfg.Executor.FillDelay, "NEARBOT_EXECUTOR_FILL_DELAY")
	setInt64(&cfg.Mock.Seed, "NEARBOT_MOCK_SEED")
	setDuration(&cfg.Mock.TickStep, "NEARBOT_MOCK_TICK_STEP")
	setStr(&cfg.Replay.Dir, "NEARBOT_REPLAY_DIR")
	setStr(&cfg.Replay.FilePath, "NEARBOT_REPLAY_FILE_PATH")
	setStr(&cfg.Replay.BlobPrefix, "NEARBOT_REPLAY_BLOB_PREFIX")
	setStr(&cfg.Replay.EventID, "NEARBOT_REPLAY_EVENT_ID")
	setStr(&cfg.Replay.MarketTitle, "NEARBOT_REPLAY_MARKET_TITLE")
	setStr(&cfg.Replay.ResolutionTS, "NEARBOT_REPLAY_RESOLUTION_TS")
	setFloat64(&cfg.Replay.Speed, "NEARBOT_REPLAY_SPEED")

	// ── Journal ──
	setStr(&cfg.Journal.Path, "NEARBOT_JOURNAL_PATH")
	setStr(&cfg.Journal.ArchivePrefix, "NEARBOT_JOURNAL_ARCHIVE_PREFIX")

	// ── Supabase ──
	setBool(&cfg.Supabase.Enabled, "NEARBOT_SUPABASE_ENABLED")
	setStr(&cfg.Supabase.DSN, "NEARBOT_SUPABASE_DSN")
	setStr(&cfg.Supabase.DSN, "NEARBOT_SUPABASE_URL") // compatibility alias
	setStr(&cfg.Supabase.Host, "NEARBOT_SUPABASE_HOST")
	setInt(&cfg.Supabase.Port, "NEARBOT_SUPABASE_PORT")
	setStr(&cfg.Supabase.Database, "NEARBOT_SUPABASE_DATABASE")
	setStr(&cfg.Supabase.User, "NEARBOT_SUPABASE_USER")
	setStr(&cfg.Supabase.Password, "NEARBOT_SUPABASE_PASSWORD")
	setStr(&cfg.Supabase.SSLMode, "NEARBOT_SUPABASE_SSL_MODE")
	setInt(&cfg.Supabase.PoolMaxConns, "NEARBOT_SUPABASE_POOL_MAX_CONNS")
	setInt(&cfg.Supabase.PoolMinConns, "NEARBOT_SUPABASE_POOL_MIN_CONNS")
	setBool(&cfg.Supabase.RunMigrations, "NEARBOT_SUPABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "NEARBOT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "NEARBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "NEARBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "NEARBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "NEARBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "NEARBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "NEARBOT_REDIS_TLS_ENABLED")
	setInt(&cfg.Redis.StreamMaxLen, "NEARBOT_REDIS_STREAM_MAX_LEN")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "NEARBOT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "NEARBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "NEARBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "NEARBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "NEARBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "NEARBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "NEARBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "NEARBOT_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "NEARBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "NEARBOT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "NEARBOT_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "NEARBOT_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "NEARBOT_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.StatusPushInterval, "NEARBOT_SERVER_STATUS_PUSH_INTERVAL")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "NEARBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "NEARBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "NEARBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "NEARBOT_NOTIFY_EVENTS")
	setDuration(&cfg.Notify.Cooldown, "NEARBOT_NOTIFY_COOLDOWN")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "NEARBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
