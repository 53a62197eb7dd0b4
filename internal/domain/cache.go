package domain

import (
	"context"
	"time"
)

// PriceCache provides fast access to the latest YES price of each event.
type PriceCache interface {
	SetPrice(ctx context.Context, eventID string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, eventID string) (float64, time.Time, error)
	GetPrices(ctx context.Context, eventIDs []string) (map[string]float64, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// StreamMessage represents a single entry from a stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// Bus channels and streams used by the bot.
const (
	ChannelPositions = "positions"
	ChannelOrders    = "orders"
	ChannelLogs      = "logs"
	ChannelStatus    = "status"
	StreamJournal    = "journal"
)
