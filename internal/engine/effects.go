package engine

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/nearbot/internal/domain"
	"github.com/alanyoungcy/nearbot/internal/risk"
)

// Notification event types, matched against the notifier's event filter.
const (
	NotifyStopLoss  = "stop_loss"
	NotifyForceExit = "force_exit"
	NotifyRiskHalt  = "risk_halt"
	NotifyError     = "error"
)

const notifyTimeout = 10 * time.Second

func notifyEventFor(reason domain.ExitReason) string {
	if reason == domain.ExitStopLoss {
		return NotifyStopLoss
	}
	return NotifyForceExit
}

// emit stamps a log entry and delivers it to the ring, the journal and the
// bus.
func (e *Engine) emit(ctx context.Context, entry domain.LogEntry) {
	entry.ID = uuid.NewString()
	entry.Timestamp = e.now()
	e.deps.Runtime.AppendLog(entry)

	e.logger.Log(ctx, slogLevel(entry.Level), entry.Message,
		slog.String("event_id", entry.EventID),
		slog.String("trigger", string(entry.Trigger)),
	)

	if e.deps.Journal != nil {
		// failures are counted and reported by onJournalError
		_ = e.deps.Journal.Record(ctx, entry)
	}
	e.publish(ctx, domain.ChannelLogs, entry)
}

func slogLevel(l domain.LogLevel) slog.Level {
	switch l {
	case domain.LevelDebug:
		return slog.LevelDebug
	case domain.LevelWarn:
		return slog.LevelWarn
	case domain.LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (e *Engine) onJournalError(ctx context.Context, sink string, err error) {
	e.deps.Metrics.IncJournalFailure(sink)
	e.notify(ctx, NotifyError, "journal write failed", err.Error())
}

// publish marshals v and broadcasts it on channel. Failures are logged only.
func (e *Engine) publish(ctx context.Context, channel string, v any) {
	if e.deps.Bus == nil {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		e.logger.WarnContext(ctx, "marshal bus event failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := e.deps.Bus.Publish(ctx, channel, payload); err != nil {
		e.logger.WarnContext(ctx, "publish event failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}

// notify sends an alert without blocking the cycle.
func (e *Engine) notify(ctx context.Context, event, title, message string) {
	if e.deps.Notifier == nil {
		return
	}
	go func() {
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()
		if err := e.deps.Notifier.Notify(nctx, event, title, message); err != nil {
			e.logger.WarnContext(nctx, "notification failed",
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// checkHalt alerts once when the account-level risk limits start blocking
// entries.
func (e *Engine) checkHalt(ctx context.Context, rm *risk.Manager) {
	d := rm.Halted()
	halted := !d.Allowed
	if halted && !e.halted {
		e.logger.WarnContext(ctx, "trading halted by risk limits", slog.String("reason", d.Reason))
		e.notify(ctx, NotifyRiskHalt, "trading halted", d.Reason)
	}
	e.halted = halted
}

func (e *Engine) cachePrices(ctx context.Context, ticks []domain.MarketTick) {
	if e.deps.Prices == nil {
		return
	}
	for _, t := range ticks {
		if err := e.deps.Prices.SetPrice(ctx, t.Event.ID, t.YesPrice, t.Timestamp); err != nil {
			e.logger.WarnContext(ctx, "cache price failed",
				slog.String("event_id", t.Event.ID),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (e *Engine) persistPosition(ctx context.Context, pos domain.Position) {
	if e.deps.Positions == nil {
		return
	}
	if err := e.deps.Positions.Upsert(ctx, pos); err != nil {
		e.logger.ErrorContext(ctx, "persist position failed",
			slog.String("position_id", pos.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (e *Engine) persistFill(ctx context.Context, fill domain.ExecutedOrder, pos domain.Position) {
	if e.deps.Orders != nil {
		if err := e.deps.Orders.Insert(ctx, fill); err != nil {
			e.logger.ErrorContext(ctx, "persist order failed",
				slog.String("order_id", fill.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	e.persistPosition(ctx, pos)
}
