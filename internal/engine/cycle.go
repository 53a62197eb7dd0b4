package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/nearbot/internal/domain"
	"github.com/alanyoungcy/nearbot/internal/strategy"
)

// cycle runs one poll: price snapshot, exit pass, entry pass. The caller must
// hold e.mu.
func (e *Engine) cycle(ctx context.Context) {
	if !e.deps.Runtime.BotEnabled() {
		return
	}
	start := e.now()

	ticks := e.deps.Feed.Ticks()
	byEvent := make(map[string]domain.MarketTick, len(ticks))
	prices := make([]domain.PriceSnapshot, 0, len(ticks))
	for _, t := range ticks {
		byEvent[t.Event.ID] = t
		prices = append(prices, domain.SnapshotOf(t))
		e.deps.Runtime.EnsurePhase(t.Event.ID, domain.PhaseIdle, start)
	}
	e.deps.Runtime.SetPrices(prices)
	e.cachePrices(ctx, ticks)

	e.exitPass(ctx, byEvent)
	e.entryPass(ctx, ticks, byEvent)

	e.updateGauges()
	e.deps.Metrics.ObserveCycle(e.now().Sub(start))
}

// exitPass applies stop-loss, take-profit and forced exit, in that order, to
// every open position with a tick in this batch.
func (e *Engine) exitPass(ctx context.Context, byEvent map[string]domain.MarketTick) {
	p := e.cfg.Exits
	for _, pos := range e.deps.Runtime.OpenPositions() {
		tick, ok := byEvent[pos.EventID]
		if !ok {
			continue
		}
		current := tick.PriceFor(pos.Side)

		switch {
		case e.stopLossHit(pos, tick, current):
			e.closePosition(ctx, pos, tick, current, domain.ExitStopLoss)
		case current >= p.TakeProfitMin && current <= p.TakeProfitMax:
			e.closePosition(ctx, pos, tick, current, domain.ExitTakeProfit)
		case tick.MinutesToResolution() <= p.ForceExitMinutesBeforeExpiry:
			e.closePosition(ctx, pos, tick, current, domain.ExitForce)
		default:
			upnl := domain.PnL(pos.Side, pos.AvgEntryPrice, current, pos.Size, e.cfg.BaseCapitalUSD)
			e.deps.Runtime.SetUnrealized(pos.ID, upnl)
			e.deps.Runtime.SetPhase(pos.EventID, domain.PhaseInPosition, e.now())
		}
	}
}

// stopLossHit compares the current price with the newest history point at or
// before tick time minus the stop-loss window. Without such a point, or when
// that point is more than a full window older than the cutoff, no stop fires.
// History holds YES prices; NO positions use the complement.
func (e *Engine) stopLossHit(pos domain.Position, tick domain.MarketTick, current float64) bool {
	window := e.cfg.Exits.StopLossWindow
	if window <= 0 {
		return false
	}
	cutoff := tick.Timestamp.Add(-window)
	oldest := cutoff.Add(-window)

	hist := e.deps.Feed.PriceHistory(pos.EventID)
	for i := len(hist) - 1; i >= 0; i-- {
		pt := hist[i]
		if pt.Timestamp.After(cutoff) {
			continue
		}
		if pt.Timestamp.Before(oldest) {
			return false
		}
		past := pt.Price
		if pos.Side == domain.SideNo {
			past = 1 - past
		}
		if past <= 0 {
			return false
		}
		return (current-past)/past <= e.cfg.Exits.StopLossDropPct
	}
	return false
}

func (e *Engine) closePosition(ctx context.Context, pos domain.Position, tick domain.MarketTick, exitPrice float64, reason domain.ExitReason) {
	now := e.now()
	closed, err := e.deps.Runtime.ClosePosition(pos.ID, exitPrice, reason, now, e.cfg.BaseCapitalUSD)
	if err != nil {
		e.logger.WarnContext(ctx, "close position failed",
			slog.String("position_id", pos.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	rm := e.risk.Load()
	rm.OnPositionClosed(closed)
	e.deps.Runtime.SetPhase(closed.EventID, domain.PhaseExited, now)
	e.deps.Metrics.IncExit(string(reason), string(closed.Side))

	pnl := closed.RealizedPnLUSD
	level := domain.LevelInfo
	if pnl < 0 {
		level = domain.LevelWarn
	}
	e.emit(ctx, domain.LogEntry{
		Level:    level,
		EventID:  closed.EventID,
		Message:  fmt.Sprintf("position closed (%s) side=%s price=%.3f pnlUsd=%.2f", reason, closed.Side, exitPrice, pnl),
		Trigger:  domain.TriggerFor(reason),
		Snapshot: domain.MarketSnapshotOf(tick, exitPrice),
		Payload: map[string]any{
			"entryPrice":     closed.AvgEntryPrice,
			"exitPrice":      exitPrice,
			"size":           closed.Size,
			"realizedPnlUsd": pnl,
			"holdingMs":      closed.HoldingTime().Milliseconds(),
		},
	})

	e.persistPosition(ctx, closed)
	e.publish(ctx, domain.ChannelPositions, map[string]any{
		"event":        "position_closed",
		"position_id":  closed.ID,
		"event_id":     closed.EventID,
		"side":         string(closed.Side),
		"exit_price":   exitPrice,
		"exit_reason":  string(reason),
		"realized_pnl": pnl,
	})

	if reason != domain.ExitTakeProfit {
		e.notify(ctx, notifyEventFor(reason),
			fmt.Sprintf("%s on %s", reason, closed.EventID),
			fmt.Sprintf("side=%s entry=%.3f exit=%.3f pnl=%.2f USD", closed.Side, closed.AvgEntryPrice, exitPrice, pnl))
	}
	e.checkHalt(ctx, rm)
}

// entryPass evaluates the strategy against the batch and attempts every
// candidate order in order.
func (e *Engine) entryPass(ctx context.Context, ticks []domain.MarketTick, byEvent map[string]domain.MarketTick) {
	tranches := make(map[string]int)
	hasOpen := make(map[string]bool)
	for _, p := range e.deps.Runtime.OpenPositions() {
		tranches[p.EventID]++
		hasOpen[p.EventID] = true
	}

	rm := e.risk.Load()
	orders := strategy.Evaluate(ticks, strategy.Context{
		Risk:         rm,
		OpenTranches: tranches,
		HasOpen:      hasOpen,
	}, e.cfg.Strategy)

	for _, order := range orders {
		e.emit(ctx, domain.LogEntry{
			Level:    domain.LevelDebug,
			EventID:  order.EventID,
			Message:  "entry signal",
			Trigger:  domain.TriggerEntrySignal,
			Snapshot: domain.MarketSnapshotOf(byEvent[order.EventID], order.Price),
			Payload: map[string]any{
				"side":  string(order.Side),
				"price": order.Price,
				"size":  order.Size,
			},
		})
		if !hasOpen[order.EventID] {
			e.deps.Runtime.SetPhase(order.EventID, domain.PhaseWaitEntry, e.now())
		}
		e.tryEntry(ctx, order, byEvent[order.EventID])
	}
}

// tryEntry gates order on risk and, when admitted, fills it and opens a
// position. A rejected order has no effect beyond its log entry.
func (e *Engine) tryEntry(ctx context.Context, order domain.OrderRequest, tick domain.MarketTick) {
	rm := e.risk.Load()
	notional := order.Notional(e.cfg.BaseCapitalUSD)

	decision := rm.CanPlaceOrder(order, notional)
	if !decision.Allowed {
		e.deps.Metrics.IncRiskReject(decision.Code)
		e.emit(ctx, domain.LogEntry{
			Level:    domain.LevelWarn,
			EventID:  order.EventID,
			Message:  "entry rejected by risk limits: " + decision.Reason,
			Trigger:  domain.TriggerRiskReject,
			Snapshot: domain.MarketSnapshotOf(tick, order.Price),
			Payload: map[string]any{
				"reason":      decision.Reason,
				"notionalUsd": notional,
				"side":        string(order.Side),
			},
		})
		return
	}

	fill, err := e.deps.Executor.Execute(ctx, order)
	if err != nil {
		e.deps.Metrics.IncExecutorError()
		e.emit(ctx, domain.LogEntry{
			Level:   domain.LevelError,
			EventID: order.EventID,
			Message: "order execution failed: " + err.Error(),
			Payload: map[string]any{
				"side":  string(order.Side),
				"price": order.Price,
				"size":  order.Size,
			},
		})
		return
	}

	pos := domain.Position{
		ID:            fill.ID,
		EventID:       fill.EventID,
		Side:          fill.Side,
		AvgEntryPrice: fill.FilledPrice,
		Size:          fill.Size,
		OpenedAt:      fill.Timestamp,
	}
	e.deps.Runtime.AddOrder(fill)
	e.deps.Runtime.AddPosition(pos)
	rm.OnPositionOpened(pos)
	e.deps.Runtime.SetPhase(order.EventID, domain.PhaseInPosition, e.now())
	e.deps.Metrics.IncOrder(string(order.Side))

	e.emit(ctx, domain.LogEntry{
		Level:    domain.LevelInfo,
		EventID:  order.EventID,
		Message:  fmt.Sprintf("entry filled (%s) side=%s price=%.3f size=%g filled=%.3f", order.Kind, order.Side, order.Price, order.Size, fill.FilledPrice),
		Trigger:  domain.TriggerOrderFilled,
		Snapshot: domain.MarketSnapshotOf(tick, order.Price),
		Payload: map[string]any{
			"orderId":     fill.ID,
			"side":        string(order.Side),
			"orderPrice":  order.Price,
			"filledPrice": fill.FilledPrice,
			"size":        order.Size,
			"notionalUsd": notional,
		},
	})

	e.persistFill(ctx, fill, pos)
	e.publish(ctx, domain.ChannelOrders, map[string]any{
		"event":        "order_filled",
		"order_id":     fill.ID,
		"event_id":     fill.EventID,
		"side":         string(fill.Side),
		"price":        fill.Price,
		"filled_price": fill.FilledPrice,
		"size":         fill.Size,
	})
	e.publish(ctx, domain.ChannelPositions, map[string]any{
		"event":       "position_opened",
		"position_id": pos.ID,
		"event_id":    pos.EventID,
		"side":        string(pos.Side),
		"entry_price": pos.AvgEntryPrice,
		"size":        pos.Size,
	})
}

func (e *Engine) updateGauges() {
	rs := e.risk.Load().State()
	e.deps.Metrics.SetPnL(e.deps.Runtime.RealizedPnL(), rs.DailyRealizedPnLUSD)
	e.deps.Metrics.SetOpenPositions(len(e.deps.Runtime.OpenPositions()))
}
