// Package metrics exposes the bot's Prometheus metrics:
//
//	nearbot_cycles_total                     engine cycles run
//	nearbot_cycle_duration_seconds           engine cycle latency
//	nearbot_orders_total{side}               entry orders filled
//	nearbot_exits_total{reason,side}         positions closed by exit rule
//	nearbot_risk_rejects_total{code}         entries blocked by the risk gate
//	nearbot_executor_errors_total            orders the executor failed to fill
//	nearbot_journal_failures_total{sink}     journal sink write failures
//	nearbot_realized_pnl_usd                 cumulative realized PnL
//	nearbot_daily_pnl_usd                    realized PnL for the current UTC day
//	nearbot_open_positions                   open positions
//	nearbot_bot_enabled                      1 while trading is enabled
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so several instances can coexist in tests.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	reg *prometheus.Registry

	cycles          prometheus.Counter
	cycleDuration   prometheus.Histogram
	orders          *prometheus.CounterVec
	exits           *prometheus.CounterVec
	riskRejects     *prometheus.CounterVec
	executorErrors  prometheus.Counter
	journalFailures *prometheus.CounterVec
	realizedPnL     prometheus.Gauge
	dailyPnL        prometheus.Gauge
	openPositions   prometheus.Gauge
	botEnabled      prometheus.Gauge
}

// New creates and registers every collector, plus the Go runtime and process
// collectors.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nearbot_cycles_total",
			Help: "Engine cycles run",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "nearbot_cycle_duration_seconds",
			Help:    "Engine cycle latency",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nearbot_orders_total",
			Help: "Entry orders filled",
		}, []string{"side"}),
		exits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nearbot_exits_total",
			Help: "Positions closed, split by exit reason and side",
		}, []string{"reason", "side"}),
		riskRejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nearbot_risk_rejects_total",
			Help: "Entry orders rejected by the risk gate",
		}, []string{"code"}),
		executorErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nearbot_executor_errors_total",
			Help: "Orders the executor failed to fill",
		}),
		journalFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nearbot_journal_failures_total",
			Help: "Journal sink write failures",
		}, []string{"sink"}),
		realizedPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nearbot_realized_pnl_usd",
			Help: "Cumulative realized PnL in USD since the last reset",
		}),
		dailyPnL: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nearbot_daily_pnl_usd",
			Help: "Realized PnL in USD for the current UTC day",
		}),
		openPositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nearbot_open_positions",
			Help: "Open positions",
		}),
		botEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nearbot_bot_enabled",
			Help: "1 while trading is enabled",
		}),
	}

	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.cycles, m.cycleDuration, m.orders, m.exits, m.riskRejects,
		m.executorErrors, m.journalFailures,
		m.realizedPnL, m.dailyPnL, m.openPositions, m.botEnabled,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) ObserveCycle(d time.Duration) {
	if m == nil {
		return
	}
	m.cycles.Inc()
	m.cycleDuration.Observe(d.Seconds())
}

func (m *Metrics) IncOrder(side string) {
	if m == nil {
		return
	}
	m.orders.WithLabelValues(side).Inc()
}

func (m *Metrics) IncExit(reason, side string) {
	if m == nil {
		return
	}
	m.exits.WithLabelValues(reason, side).Inc()
}

func (m *Metrics) IncRiskReject(code string) {
	if m == nil {
		return
	}
	m.riskRejects.WithLabelValues(code).Inc()
}

func (m *Metrics) IncExecutorError() {
	if m == nil {
		return
	}
	m.executorErrors.Inc()
}

func (m *Metrics) IncJournalFailure(sink string) {
	if m == nil {
		return
	}
	m.journalFailures.WithLabelValues(sink).Inc()
}

// SetPnL updates both PnL gauges.
func (m *Metrics) SetPnL(realized, daily float64) {
	if m == nil {
		return
	}
	m.realizedPnL.Set(realized)
	m.dailyPnL.Set(daily)
}

func (m *Metrics) SetOpenPositions(n int) {
	if m == nil {
		return
	}
	m.openPositions.Set(float64(n))
}

func (m *Metrics) SetBotEnabled(enabled bool) {
	if m == nil {
		return
	}
	if enabled {
		m.botEnabled.Set(1)
		return
	}
	m.botEnabled.Set(0)
}
