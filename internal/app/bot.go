package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/alanyoungcy/nearbot/internal/blob/s3"
	"github.com/alanyoungcy/nearbot/internal/config"
	"github.com/alanyoungcy/nearbot/internal/domain"
	"github.com/alanyoungcy/nearbot/internal/engine"
	"github.com/alanyoungcy/nearbot/internal/executor"
	"github.com/alanyoungcy/nearbot/internal/feed"
	"github.com/alanyoungcy/nearbot/internal/journal"
	"github.com/alanyoungcy/nearbot/internal/metrics"
	"github.com/alanyoungcy/nearbot/internal/risk"
	"github.com/alanyoungcy/nearbot/internal/state"
	"github.com/alanyoungcy/nearbot/internal/strategy"
)

// Bot is the assembled trading core: feeds, ledger, journal and engine.
type Bot struct {
	Engine  *engine.Engine
	Feeds   *feed.Selector
	Replay  *feed.Replay
	Runtime *state.Runtime
	Metrics *metrics.Metrics
	Journal *journal.Journal

	journalPath string
}

// EngineConfig maps the file configuration onto the engine parameters.
func EngineConfig(cfg *config.Config) engine.Config {
	s := cfg.Strategy
	return engine.Config{
		BaseCapitalUSD: cfg.Bot.BaseCapitalUSD,
		PollInterval:   cfg.Engine.PollInterval.Duration,
		Strategy: strategy.Params{
			EntryPriceMin:            s.EntryPriceMin,
			EntryPriceMax:            s.EntryPriceMax,
			MinHoursToExpiryForEntry: s.MinHoursToExpiryForEntry,
			MaxVolatility30mForEntry: s.MaxVolatility30mForEntry,
			MaxEntryTranchesPerEvent: s.MaxEntryTranchesPerEvent,
			FirstEntrySize:           s.FirstEntrySize,
			TrancheSize:              s.TrancheSize,
		},
		Exits: engine.ExitParams{
			TakeProfitMin:                s.TakeProfitMin,
			TakeProfitMax:                s.TakeProfitMax,
			ForceExitMinutesBeforeExpiry: s.ForceExitMinutesBeforeExpiry,
			StopLossDropPct:              s.StopLossDropPctInMinutes,
			StopLossWindow:               time.Duration(s.StopLossWindowMinutes * float64(time.Minute)),
		},
		Risk: risk.Config{
			BaseCapitalUSD:        cfg.Bot.BaseCapitalUSD,
			MaxDailyLossPct:       cfg.Risk.MaxDailyLossPct,
			MaxConsecutiveLosses:  cfg.Risk.MaxConsecutiveLosses,
			MaxConcurrentEvents:   cfg.Risk.MaxConcurrentEvents,
			MaxCapitalPerEventPct: cfg.Risk.MaxCapitalPerEventPct,
		},
	}
}

// NewBot assembles the trading core on top of deps. bus may be nil.
func NewBot(ctx context.Context, cfg *config.Config, deps *Dependencies, bus engine.Publisher, logger *slog.Logger) (*Bot, error) {
	// --- Journal ---
	jrnl := journal.New(logger)
	fileSink, err := journal.OpenFile(cfg.Journal.Path)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}
	jrnl.Add("file", fileSink)
	if deps.SignalBus != nil {
		jrnl.Add("stream", journal.NewStreamSink(deps.SignalBus))
	}
	if deps.AuditStore != nil {
		jrnl.Add("audit", journal.NewAuditSink(deps.AuditStore))
	}

	// --- Market data ---
	mock := feed.NewMock(feed.MockConfig{
		Seed:     cfg.Mock.Seed,
		TickStep: cfg.Mock.TickStep.Duration,
	}, logger)

	replayCfg := feed.ReplayConfig{
		EventID:     cfg.Replay.EventID,
		MarketTitle: cfg.Replay.MarketTitle,
		Speed:       cfg.Replay.Speed,
	}
	if cfg.Replay.ResolutionTS != "" {
		ts, err := time.Parse(time.RFC3339, cfg.Replay.ResolutionTS)
		if err != nil {
			_ = jrnl.Close()
			return nil, fmt.Errorf("app: replay resolution_ts: %w", err)
		}
		replayCfg.ResolutionTime = ts
	}
	replay := feed.NewReplay(replayCfg, logger)
	if cfg.Replay.FilePath != "" {
		n, err := replay.LoadFile(cfg.Replay.FilePath)
		if err != nil {
			logger.WarnContext(ctx, "replay preload failed",
				slog.String("path", cfg.Replay.FilePath),
				slog.String("error", err.Error()),
			)
		} else {
			logger.InfoContext(ctx, "replay preloaded",
				slog.String("path", cfg.Replay.FilePath),
				slog.Int("rows", n),
			)
		}
	}

	mode, err := feed.ParseMode(cfg.Bot.MarketMode)
	if err != nil {
		_ = jrnl.Close()
		return nil, fmt.Errorf("app: %w", err)
	}
	feeds, err := feed.NewSelector(mode, mock, replay, logger)
	if err != nil {
		_ = jrnl.Close()
		return nil, fmt.Errorf("app: %w", err)
	}

	// --- Engine ---
	runtime := state.NewRuntime(cfg.Bot.Enabled, state.DefaultLogCapacity)
	m := metrics.New()

	engDeps := engine.Deps{
		Feed: feeds,
		Executor: executor.NewSim(executor.SimConfig{
			SlippageBps: cfg.Executor.SlippageBps,
			FillDelay:   cfg.Executor.FillDelay.Duration,
		}, nil, logger),
		Runtime:   runtime,
		Journal:   jrnl,
		Metrics:   m,
		Bus:       bus,
		Prices:    deps.PriceCache,
		Positions: deps.PositionStore,
		Orders:    deps.OrderStore,
		Logger:    logger,
	}
	if deps.Notifier != nil && deps.Notifier.Enabled() {
		engDeps.Notifier = deps.Notifier
	}
	if deps.Archiver != nil {
		engDeps.Archiver = deps.Archiver
	}

	b := &Bot{
		Engine:      engine.New(EngineConfig(cfg), engDeps),
		Feeds:       feeds,
		Replay:      replay,
		Runtime:     runtime,
		Metrics:     m,
		Journal:     jrnl,
		journalPath: fileSink.Path(),
	}
	replay.OnEnd(func() { b.publishReplayEnd(bus, logger) })
	return b, nil
}

// publishReplayEnd announces the end of playback on the status channel.
func (b *Bot) publishReplayEnd(bus engine.Publisher, logger *slog.Logger) {
	if bus == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"event":  "replay_finished",
		"source": b.Replay.Source(),
	})
	if err != nil {
		return
	}
	if err := bus.Publish(context.Background(), domain.ChannelStatus, payload); err != nil {
		logger.Warn("replay end publish failed", slog.String("error", err.Error()))
	}
}

// Shutdown stops the engine, flushes the journal and, when archiving is
// configured, uploads the journal file.
func (b *Bot) Shutdown(ctx context.Context, archiver *s3blob.Archiver, logger *slog.Logger) {
	b.Engine.Stop()
	if err := b.Journal.Close(); err != nil {
		logger.WarnContext(ctx, "journal close failed", slog.String("error", err.Error()))
	}
	if archiver == nil {
		return
	}
	if _, err := archiver.ArchiveJournal(ctx, b.journalPath); err != nil {
		logger.WarnContext(ctx, "journal archive failed", slog.String("error", err.Error()))
	}
}
