package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// value returns the value of the series of name whose labels match.
func value(t *testing.T, m *Metrics, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, s := range f.GetMetric() {
			if !labelsMatch(s, labels) {
				continue
			}
			switch {
			case s.Counter != nil:
				return s.GetCounter().GetValue()
			case s.Gauge != nil:
				return s.GetGauge().GetValue()
			case s.Histogram != nil:
				return float64(s.GetHistogram().GetSampleCount())
			}
		}
	}
	t.Fatalf("series %s%v not found", name, labels)
	return 0
}

func labelsMatch(s *dto.Metric, want map[string]string) bool {
	got := make(map[string]string, len(s.GetLabel()))
	for _, l := range s.GetLabel() {
		got[l.GetName()] = l.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestMetrics_Record(t *testing.T) {
	m := New()
	m.ObserveCycle(5 * time.Millisecond)
	m.ObserveCycle(7 * time.Millisecond)
	m.IncOrder("YES")
	m.IncExit("STOP_LOSS", "YES")
	m.IncRiskReject("daily_loss")
	m.IncRiskReject("daily_loss")
	m.IncExecutorError()
	m.IncJournalFailure("file")
	m.SetPnL(12.5, -3)
	m.SetOpenPositions(2)
	m.SetBotEnabled(true)

	assert.Equal(t, 2.0, value(t, m, "nearbot_cycles_total", nil))
	assert.Equal(t, 2.0, value(t, m, "nearbot_cycle_duration_seconds", nil))
	assert.Equal(t, 1.0, value(t, m, "nearbot_orders_total", map[string]string{"side": "YES"}))
	assert.Equal(t, 1.0, value(t, m, "nearbot_exits_total", map[string]string{"reason": "STOP_LOSS", "side": "YES"}))
	assert.Equal(t, 2.0, value(t, m, "nearbot_risk_rejects_total", map[string]string{"code": "daily_loss"}))
	assert.Equal(t, 1.0, value(t, m, "nearbot_executor_errors_total", nil))
	assert.Equal(t, 1.0, value(t, m, "nearbot_journal_failures_total", map[string]string{"sink": "file"}))
	assert.Equal(t, 12.5, value(t, m, "nearbot_realized_pnl_usd", nil))
	assert.Equal(t, -3.0, value(t, m, "nearbot_daily_pnl_usd", nil))
	assert.Equal(t, 2.0, value(t, m, "nearbot_open_positions", nil))
	assert.Equal(t, 1.0, value(t, m, "nearbot_bot_enabled", nil))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveCycle(time.Second)
		m.IncOrder("YES")
		m.IncExit("TAKE_PROFIT", "NO")
		m.IncRiskReject("x")
		m.IncExecutorError()
		m.IncJournalFailure("file")
		m.SetPnL(1, 1)
		m.SetOpenPositions(1)
		m.SetBotEnabled(false)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.IncOrder("NO")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `nearbot_orders_total{side="NO"} 1`)
}
