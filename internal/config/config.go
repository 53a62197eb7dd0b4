// Package config defines the top-level configuration for the near-threshold
// bot and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by NEARBOT_* environment variables.
type Config struct {
	Bot      BotConfig      `toml:"bot"`
	Risk     RiskConfig     `toml:"risk"`
	Strategy StrategyConfig `toml:"strategy"`
	Engine   EngineConfig   `toml:"engine"`
	Executor ExecutorConfig `toml:"executor"`
	Mock     MockConfig     `toml:"mock"`
	Replay   ReplayConfig   `toml:"replay"`
	Journal  JournalConfig  `toml:"journal"`
	Supabase SupabaseConfig `toml:"supabase"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	LogLevel string         `toml:"log_level"`
}

// BotConfig holds account-level simulation parameters.
type BotConfig struct {
	BaseCapitalUSD float64 `toml:"base_capital_usd" json:"baseCapitalUsd"`
	// MarketMode is the initial market data source: MOCK or REPLAY.
	MarketMode string `toml:"market_mode" json:"marketMode"`
	// Enabled starts the engine as soon as the process is up.
	Enabled bool `toml:"enabled" json:"enabled"`
}

// RiskConfig holds the account risk limits.
type RiskConfig struct {
	// MaxDailyLossPct is negative, e.g. -0.02 for a 2% daily stop.
	MaxDailyLossPct       float64 `toml:"max_daily_loss_pct" json:"maxDailyLossPct"`
	MaxConsecutiveLosses  int     `toml:"max_consecutive_losses" json:"maxConsecutiveLosses"`
	MaxConcurrentEvents   int     `toml:"max_concurrent_events" json:"maxConcurrentEvents"`
	MaxCapitalPerEventPct float64 `toml:"max_capital_per_event_pct" json:"maxCapitalPerEventPct"`
}

// StrategyConfig holds the near-threshold entry and exit parameters.
type StrategyConfig struct {
	EntryPriceMin            float64 `toml:"entry_price_min" json:"entryPriceMin"`
	EntryPriceMax            float64 `toml:"entry_price_max" json:"entryPriceMax"`
	MinHoursToExpiryForEntry float64 `toml:"min_hours_to_expiry_for_entry" json:"minHoursToExpiryForEntry"`
	MaxVolatility30mForEntry float64 `toml:"max_volatility_30m_for_entry" json:"maxVolatility30mForEntry"`
	MaxEntryTranchesPerEvent int     `toml:"max_entry_tranches_per_event" json:"maxEntryTranchesPerEvent"`
	FirstEntrySize           float64 `toml:"first_entry_size" json:"firstEntrySize"`
	TrancheSize              float64 `toml:"tranche_size" json:"trancheSize"`

	TakeProfitMin                float64 `toml:"take_profit_min" json:"takeProfitMin"`
	TakeProfitMax                float64 `toml:"take_profit_max" json:"takeProfitMax"`
	ForceExitMinutesBeforeExpiry float64 `toml:"force_exit_minutes_before_expiry" json:"forceExitMinutesBeforeExpiry"`
	// StopLossDropPctInMinutes is negative, e.g. -0.06.
	StopLossDropPctInMinutes float64 `toml:"stop_loss_drop_pct_in_minutes" json:"stopLossDropPctInMinutes"`
	StopLossWindowMinutes    float64 `toml:"stop_loss_window_minutes" json:"stopLossWindowMinutes"`
}

// EngineConfig controls the cycle loop.
type EngineConfig struct {
	PollInterval duration `toml:"poll_interval" json:"pollInterval"`
}

// ExecutorConfig holds simulated fill parameters.
type ExecutorConfig struct {
	SlippageBps float64  `toml:"slippage_bps" json:"slippageBps"`
	FillDelay   duration `toml:"fill_delay" json:"fillDelay"`
}

// MockConfig holds the scripted feed parameters.
type MockConfig struct {
	// Seed fixes the noise generator; zero seeds from the clock.
	Seed     int64    `toml:"seed" json:"seed"`
	TickStep duration `toml:"tick_step" json:"tickStep"`
}

// ReplayConfig holds replay feed parameters.
type ReplayConfig struct {
	Dir          string  `toml:"dir" json:"dir"`
	FilePath     string  `toml:"file_path" json:"filePath"`
	BlobPrefix   string  `toml:"blob_prefix" json:"blobPrefix"`
	EventID      string  `toml:"event_id" json:"eventId"`
	MarketTitle  string  `toml:"market_title" json:"marketTitle"`
	ResolutionTS string  `toml:"resolution_ts" json:"resolutionTs"`
	Speed        float64 `toml:"speed" json:"speed"`
}

// JournalConfig controls structured decision log persistence.
type JournalConfig struct {
	Path string `toml:"path" json:"path"`
	// ArchivePrefix is the blob prefix journal files are uploaded under on
	// reset and shutdown when S3 is enabled.
	ArchivePrefix string `toml:"archive_prefix" json:"archivePrefix"`
}

// SupabaseConfig holds PostgreSQL / Supabase connection parameters.
type SupabaseConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled      bool   `toml:"enabled"`
	Addr         string `toml:"addr"`
	Password     string `toml:"password"`
	DB           int    `toml:"db"`
	PoolSize     int    `toml:"pool_size"`
	MaxRetries   int    `toml:"max_retries"`
	TLSEnabled   bool   `toml:"tls_enabled"`
	StreamMaxLen int    `toml:"stream_max_len"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	// RateLimit is the number of control requests allowed per client per
	// second when Redis is enabled. Zero disables limiting.
	RateLimit int `toml:"rate_limit"`
	// StatusPushInterval is how often the WebSocket hub pushes a status
	// snapshot to connected clients.
	StatusPushInterval duration `toml:"status_push_interval"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
	// Cooldown drops repeats of one event type inside the interval.
	Cooldown duration `toml:"cooldown"`
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Bot: BotConfig{
			BaseCapitalUSD: 1000,
			MarketMode:     "MOCK",
		},
		Risk: RiskConfig{
			MaxDailyLossPct:       -0.02,
			MaxConsecutiveLosses:  2,
			MaxConcurrentEvents:   3,
			MaxCapitalPerEventPct: 0.05,
		},
		Strategy: StrategyConfig{
			EntryPriceMin:                0.86,
			EntryPriceMax:                0.89,
			MinHoursToExpiryForEntry:     3,
			MaxVolatility30mForEntry:     0.01,
			MaxEntryTranchesPerEvent:     2,
			FirstEntrySize:               0.03,
			TrancheSize:                  0.02,
			TakeProfitMin:                0.92,
			TakeProfitMax:                0.96,
			ForceExitMinutesBeforeExpiry: 30,
			StopLossDropPctInMinutes:     -0.06,
			StopLossWindowMinutes:        10,
		},
		Engine: EngineConfig{
			PollInterval: duration{10 * time.Second},
		},
		Executor: ExecutorConfig{
			SlippageBps: 0,
			FillDelay:   duration{200 * time.Millisecond},
		},
		Mock: MockConfig{
			TickStep: duration{10 * time.Second},
		},
		Replay: ReplayConfig{
			Dir:         "data/replays",
			BlobPrefix:  "replays/",
			EventID:     "replay-event-1",
			MarketTitle: "Replay Event",
			Speed:       60,
		},
		Journal: JournalConfig{
			Path:          "logs/bot-decisions.jsonl",
			ArchivePrefix: "journal/",
		},
		Supabase: SupabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			PoolSize:     20,
			MaxRetries:   3,
			StreamMaxLen: 10000,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "nearbot-data",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:            true,
			Port:               4000,
			CORSOrigins:        []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:          20,
			StatusPushInterval: duration{2 * time.Second},
		},
		Notify: NotifyConfig{
			Events:   []string{"stop_loss", "force_exit", "risk_halt", "error"},
			Cooldown: duration{time.Minute},
		},
		LogLevel: "info",
	}
}

// validMarketModes enumerates the accepted values for BotConfig.MarketMode.
var validMarketModes = map[string]bool{
	"MOCK":   true,
	"REPLAY": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Bot
	if c.Bot.BaseCapitalUSD <= 0 {
		errs = append(errs, "bot: base_capital_usd must be > 0")
	}
	if !validMarketModes[strings.ToUpper(c.Bot.MarketMode)] {
		errs = append(errs, fmt.Sprintf("bot: unknown market_mode %q (valid: MOCK, REPLAY)", c.Bot.MarketMode))
	}

	// Risk
	if c.Risk.MaxDailyLossPct >= 0 {
		errs = append(errs, "risk: max_daily_loss_pct must be negative")
	}
	if c.Risk.MaxConsecutiveLosses < 1 {
		errs = append(errs, "risk: max_consecutive_losses must be >= 1")
	}
	if c.Risk.MaxConcurrentEvents < 1 {
		errs = append(errs, "risk: max_concurrent_events must be >= 1")
	}
	if c.Risk.MaxCapitalPerEventPct <= 0 || c.Risk.MaxCapitalPerEventPct > 1 {
		errs = append(errs, "risk: max_capital_per_event_pct must be in (0, 1]")
	}

	// Strategy
	s := c.Strategy
	if s.EntryPriceMin <= 0 || s.EntryPriceMax >= 1 || s.EntryPriceMin > s.EntryPriceMax {
		errs = append(errs, "strategy: entry band must satisfy 0 < entry_price_min <= entry_price_max < 1")
	}
	if s.TakeProfitMin > s.TakeProfitMax {
		errs = append(errs, "strategy: take_profit_min must not exceed take_profit_max")
	}
	if s.MaxEntryTranchesPerEvent < 1 {
		errs = append(errs, "strategy: max_entry_tranches_per_event must be >= 1")
	}
	if s.FirstEntrySize <= 0 || s.TrancheSize <= 0 {
		errs = append(errs, "strategy: first_entry_size and tranche_size must be > 0")
	}
	if s.StopLossDropPctInMinutes >= 0 {
		errs = append(errs, "strategy: stop_loss_drop_pct_in_minutes must be negative")
	}
	if s.StopLossWindowMinutes <= 0 {
		errs = append(errs, "strategy: stop_loss_window_minutes must be > 0")
	}

	// Engine
	if c.Engine.PollInterval.Duration <= 0 {
		errs = append(errs, "engine: poll_interval must be > 0")
	}

	// Executor
	if c.Executor.SlippageBps < 0 {
		errs = append(errs, "executor: slippage_bps must be >= 0")
	}
	if c.Executor.FillDelay.Duration < 0 {
		errs = append(errs, "executor: fill_delay must be >= 0")
	}

	// Replay
	if c.Replay.Speed <= 0 {
		errs = append(errs, "replay: speed must be > 0")
	}
	if c.Replay.ResolutionTS != "" {
		if _, err := time.Parse(time.RFC3339, c.Replay.ResolutionTS); err != nil {
			errs = append(errs, fmt.Sprintf("replay: resolution_ts %q is not RFC3339", c.Replay.ResolutionTS))
		}
	}

	// Journal
	if strings.TrimSpace(c.Journal.Path) == "" {
		errs = append(errs, "journal: path must not be empty")
	}

	// Supabase
	if c.Supabase.Enabled {
		if strings.TrimSpace(c.Supabase.DSN) == "" {
			if c.Supabase.Host == "" {
				errs = append(errs, "supabase: host must not be empty (or set supabase.dsn)")
			}
			if c.Supabase.Port <= 0 || c.Supabase.Port > 65535 {
				errs = append(errs, fmt.Sprintf("supabase: port must be 1-65535, got %d", c.Supabase.Port))
			}
			if c.Supabase.Database == "" {
				errs = append(errs, "supabase: database must not be empty")
			}
		}
		if c.Supabase.PoolMaxConns < 1 {
			errs = append(errs, "supabase: pool_max_conns must be >= 1")
		}
		if c.Supabase.PoolMinConns > c.Supabase.PoolMaxConns {
			errs = append(errs, "supabase: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
