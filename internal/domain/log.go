package domain

import "time"

// LogLevel is the severity of a bot log entry.
type LogLevel string

const (
	LevelDebug LogLevel = "DEBUG"
	LevelInfo  LogLevel = "INFO"
	LevelWarn  LogLevel = "WARN"
	LevelError LogLevel = "ERROR"
)

// DecisionTrigger names the decision that produced a log entry.
type DecisionTrigger string

const (
	TriggerEntrySignal DecisionTrigger = "ENTRY_SIGNAL"
	TriggerTakeProfit  DecisionTrigger = "TAKE_PROFIT"
	TriggerStopLoss    DecisionTrigger = "STOP_LOSS"
	TriggerForceExit   DecisionTrigger = "FORCE_EXIT"
	TriggerRiskReject  DecisionTrigger = "RISK_REJECT"
	TriggerOrderFilled DecisionTrigger = "ORDER_FILLED"
)

// TriggerFor maps an exit reason to its decision trigger.
func TriggerFor(reason ExitReason) DecisionTrigger {
	switch reason {
	case ExitStopLoss:
		return TriggerStopLoss
	case ExitForce:
		return TriggerForceExit
	default:
		return TriggerTakeProfit
	}
}

// MarketSnapshot captures the market state a decision was taken on.
type MarketSnapshot struct {
	EventID             string    `json:"eventId"`
	Price               float64   `json:"price"`
	Volatility          float64   `json:"volatility"`
	TimeToResolutionMin float64   `json:"timeToResolutionMin"`
	Timestamp           time.Time `json:"timestamp"`
}

// MarketSnapshotOf builds the snapshot for a tick, quoted at price.
func MarketSnapshotOf(t MarketTick, price float64) *MarketSnapshot {
	return &MarketSnapshot{
		EventID:             t.Event.ID,
		Price:               price,
		Volatility:          t.Volatility30m,
		TimeToResolutionMin: t.MinutesToResolution(),
		Timestamp:           t.Timestamp,
	}
}

// LogEntry is one bot decision log record.
type LogEntry struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Level     LogLevel        `json:"level"`
	EventID   string          `json:"eventId,omitempty"`
	Message   string          `json:"message"`
	Trigger   DecisionTrigger `json:"decisionTrigger,omitempty"`
	Snapshot  *MarketSnapshot `json:"marketSnapshot,omitempty"`
	Payload   map[string]any  `json:"payload,omitempty"`
}
