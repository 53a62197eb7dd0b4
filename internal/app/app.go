// Package app provides the top-level application lifecycle of the
// near-threshold bot. It wires the optional backends (Postgres, Redis, S3,
// notifications), assembles the trading core and serves the control surface
// until the context is cancelled.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/nearbot/internal/config"
	"github.com/alanyoungcy/nearbot/internal/engine"
	"github.com/alanyoungcy/nearbot/internal/server"
	"github.com/alanyoungcy/nearbot/internal/server/handler"
	"github.com/alanyoungcy/nearbot/internal/server/ws"
)

// shutdownTimeout bounds the graceful HTTP shutdown and the final journal
// upload.
const shutdownTimeout = 5 * time.Second

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies, starts the engine (when enabled at boot), the
// WebSocket hub and the HTTP server, and blocks until the context is
// cancelled. The engine is stopped and the journal archived before it
// returns.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("market_mode", a.cfg.Bot.MarketMode),
		slog.Bool("bot_enabled", a.cfg.Bot.Enabled),
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	// The hub is created before the engine so it can carry engine events
	// when Redis is off; its status source is bound once the handlers exist.
	var (
		hub    *ws.Hub
		botH   *handler.BotHandler
		bus    engine.Publisher
		status = func() any { return botH.BuildStatus() }
	)
	if a.cfg.Server.Enabled {
		hub = ws.NewHub(deps.SignalBus, a.logger, ws.Config{
			Status:         status,
			StatusInterval: a.cfg.Server.StatusPushInterval.Duration,
		})
	}
	switch {
	case deps.SignalBus != nil:
		bus = deps.SignalBus
	case hub != nil:
		bus = hub
	}

	bot, err := NewBot(ctx, a.cfg, deps, bus, a.logger)
	if err != nil {
		return fmt.Errorf("app: build bot: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	if a.cfg.Server.Enabled {
		botH = handler.NewBotHandler(bot.Engine, bot.Feeds, bot.Runtime, config.RedactedConfig(a.cfg), a.logger)
		srv := server.NewServer(server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			APIKey:      a.cfg.Server.APIKey,
			RateLimit:   a.cfg.Server.RateLimit,
			RateWindow:  time.Second,
		}, server.Handlers{
			Health:     handler.NewHealthHandler(deps.HealthChecks, a.logger),
			Bot:        botH,
			MarketMode: handler.NewMarketModeHandler(bot.Feeds, bot.Engine, a.logger),
			Replay:     handler.NewReplayHandler(bot.Replay, a.cfg.Replay.Dir, deps.BlobReader, a.cfg.Replay.BlobPrefix, a.logger),
			History:    handler.NewHistoryHandler(deps.PositionStore, deps.OrderStore, deps.AuditStore, a.logger),
			Metrics:    bot.Metrics.Handler(),
		}, hub, deps.RateLimiter, a.logger)

		g.Go(func() error {
			return hub.Run(gctx)
		})
		g.Go(func() error {
			return srv.Start()
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if a.cfg.Bot.Enabled {
		bot.Engine.Start(gctx)
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		bot.Shutdown(shutdownCtx, deps.Archiver, a.logger)
		return nil
	})

	return g.Wait()
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
