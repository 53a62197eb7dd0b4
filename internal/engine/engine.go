// Package engine drives the trading cycle: it polls the market feed, closes
// positions on stop-loss, take-profit or expiry, evaluates entries and routes
// admitted orders through the risk gate to the executor.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/nearbot/internal/domain"
	"github.com/alanyoungcy/nearbot/internal/executor"
	"github.com/alanyoungcy/nearbot/internal/feed"
	"github.com/alanyoungcy/nearbot/internal/journal"
	"github.com/alanyoungcy/nearbot/internal/metrics"
	"github.com/alanyoungcy/nearbot/internal/risk"
	"github.com/alanyoungcy/nearbot/internal/state"
	"github.com/alanyoungcy/nearbot/internal/strategy"
)

// DefaultPollInterval is the cycle period used when none is configured.
const DefaultPollInterval = 10 * time.Second

// ExitParams holds the rules applied to open positions.
type ExitParams struct {
	TakeProfitMin                float64
	TakeProfitMax                float64
	ForceExitMinutesBeforeExpiry float64
	// StopLossDropPct is the (negative) relative move that triggers a stop.
	StopLossDropPct float64
	StopLossWindow  time.Duration
}

// Config holds the engine parameters.
type Config struct {
	BaseCapitalUSD float64
	PollInterval   time.Duration
	Strategy       strategy.Params
	Exits          ExitParams
	Risk           risk.Config
}

// Notifier delivers operator alerts.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Publisher broadcasts engine events.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Archiver stores a copy of a finished scenario before it is reset.
type Archiver interface {
	Archive(ctx context.Context, snap state.Snapshot) error
}

// Deps are the collaborators of the engine. Feed, Executor and Runtime are
// required; every other field is optional.
type Deps struct {
	Feed      feed.Feed
	Executor  executor.Executor
	Runtime   *state.Runtime
	Journal   *journal.Journal
	Metrics   *metrics.Metrics
	Notifier  Notifier
	Bus       Publisher
	Prices    domain.PriceCache
	Positions domain.PositionStore
	Orders    domain.OrderStore
	Archiver  Archiver
	Logger    *slog.Logger
	// Clock overrides time.Now for fills, logs and risk day boundaries.
	Clock func() time.Time
}

// Engine runs the trading loop. Cycles, Start, Stop, Reset and SetEnabled are
// serialised by one mutex; a cycle in flight always runs to completion.
type Engine struct {
	cfg  Config
	deps Deps

	mu      sync.Mutex
	risk    atomic.Pointer[risk.Manager]
	cancel  context.CancelFunc
	done    chan struct{}
	halted  bool
	running atomic.Bool

	now    func() time.Time
	logger *slog.Logger
}

// New creates a stopped engine.
func New(cfg Config, deps Deps) *Engine {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		cfg:    cfg,
		deps:   deps,
		now:    now,
		logger: logger.With(slog.String("component", "engine")),
	}
	e.risk.Store(e.newRiskManager())
	if deps.Journal != nil {
		deps.Journal.OnError(e.onJournalError)
	}
	deps.Metrics.SetBotEnabled(deps.Runtime.BotEnabled())
	return e
}

func (e *Engine) newRiskManager() *risk.Manager {
	return risk.NewManager(e.cfg.Risk, e.logger).WithClock(e.now)
}

// Start launches the cycle loop and the feed's playback. Calling Start on a
// running engine does nothing.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.startLocked(ctx)
}

func (e *Engine) startLocked(ctx context.Context) {
	if e.cancel != nil {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	e.cancel = cancel
	e.done = done
	e.running.Store(true)

	e.deps.Feed.Start()
	go e.loop(loopCtx, done)

	e.logger.InfoContext(ctx, "engine started",
		slog.Duration("poll_interval", e.cfg.PollInterval),
	)
}

func (e *Engine) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.mu.Lock()
			if ctx.Err() != nil {
				e.mu.Unlock()
				return
			}
			e.cycle(context.WithoutCancel(ctx))
			e.mu.Unlock()
		}
	}
}

// Stop halts the loop and the feed's playback. It waits for an in-flight
// cycle to finish and does nothing when already stopped.
func (e *Engine) Stop() {
	e.mu.Lock()
	done := e.stopLocked()
	e.mu.Unlock()

	if done != nil {
		<-done
	}
}

func (e *Engine) stopLocked() chan struct{} {
	if e.cancel == nil {
		return nil
	}
	e.cancel()
	e.cancel = nil
	done := e.done
	e.done = nil
	e.running.Store(false)
	e.deps.Feed.Stop()
	e.logger.Info("engine stopped")
	return done
}

// Running reports whether the cycle loop is active.
func (e *Engine) Running() bool { return e.running.Load() }

// RunCycle runs one cycle synchronously. It ignores Start and Stop and runs
// even when the loop is stopped; it only serializes with loop cycles.
func (e *Engine) RunCycle(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	e.cycle(ctx)
	return nil
}

// SetEnabled sets the trading flag without touching the loop.
func (e *Engine) SetEnabled(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deps.Runtime.SetBotEnabled(enabled)
	e.deps.Metrics.SetBotEnabled(enabled)
}

// Toggle flips the trading flag and starts or stops the loop to match. It
// returns the new flag value. When the flag is set but the loop is stopped,
// as after Reset or a market mode switch, Toggle starts the loop and leaves
// the flag set. A loop started here outlives ctx and ends with Stop.
func (e *Engine) Toggle(ctx context.Context) bool {
	e.mu.Lock()
	enabled := true
	if !e.deps.Runtime.BotEnabled() || e.cancel != nil {
		enabled = e.deps.Runtime.ToggleBotEnabled()
	}
	e.deps.Metrics.SetBotEnabled(enabled)

	var done chan struct{}
	if enabled {
		e.startLocked(context.WithoutCancel(ctx))
	} else {
		done = e.stopLocked()
	}
	e.mu.Unlock()

	if done != nil {
		<-done
	}
	return enabled
}

// Reset stops the loop and rolls every piece of scenario state back: the
// runtime ledger, all feeds and the risk manager. The enabled flag survives
// and the loop stays stopped.
func (e *Engine) Reset(ctx context.Context) {
	e.mu.Lock()
	done := e.stopLocked()
	e.mu.Unlock()
	if done != nil {
		<-done
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.deps.Archiver != nil {
		if err := e.deps.Archiver.Archive(ctx, e.deps.Runtime.Snapshot()); err != nil {
			e.logger.WarnContext(ctx, "scenario archive failed", slog.String("error", err.Error()))
		}
	}

	e.deps.Runtime.Reset()
	e.deps.Feed.Reset()
	e.risk.Store(e.newRiskManager())
	e.halted = false

	e.deps.Metrics.SetPnL(0, 0)
	e.deps.Metrics.SetOpenPositions(0)
	e.logger.InfoContext(ctx, "scenario reset")
}

// RiskState returns the current risk ledger.
func (e *Engine) RiskState() risk.State {
	return e.risk.Load().State()
}

// Status is the engine view served to the control surface.
type Status struct {
	state.Snapshot
	EngineRunning bool `json:"engineRunning"`
	// TodayPnLUSD is the realized PnL of the current UTC day.
	TodayPnLUSD float64    `json:"todayPnlUsd"`
	Risk        risk.State `json:"risk"`
}

// Snapshot returns the runtime ledger plus engine and risk state.
func (e *Engine) Snapshot() Status {
	rs := e.RiskState()
	return Status{
		Snapshot:      e.deps.Runtime.Snapshot(),
		EngineRunning: e.Running(),
		TodayPnLUSD:   rs.DailyRealizedPnLUSD,
		Risk:          rs,
	}
}
