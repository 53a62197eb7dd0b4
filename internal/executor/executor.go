// Package executor turns order requests into simulated fills.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/nearbot/internal/domain"
)

// Executor fills an order request.
type Executor interface {
	Execute(ctx context.Context, req domain.OrderRequest) (domain.ExecutedOrder, error)
}

// SimConfig holds the simulation parameters.
type SimConfig struct {
	// SlippageBps bounds the random price deviation in either direction.
	SlippageBps float64
	// FillDelay is waited before every fill.
	FillDelay time.Duration
}

const (
	minFillPrice = 0.01
	maxFillPrice = 0.99
)

// Sim is an in-memory executor. Every request is filled at the requested
// price, moved by at most SlippageBps, after a fixed delay.
type Sim struct {
	cfg    SimConfig
	now    func() time.Time
	mu     sync.Mutex
	rng    *rand.Rand
	logger *slog.Logger
}

// NewSim creates a Sim executor. A nil rng seeds from the clock.
func NewSim(cfg SimConfig, rng *rand.Rand, logger *slog.Logger) *Sim {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1))
	}
	return &Sim{
		cfg:    cfg,
		now:    time.Now,
		rng:    rng,
		logger: logger.With(slog.String("component", "executor")),
	}
}

// WithClock swaps the time source used for fill timestamps.
func (s *Sim) WithClock(now func() time.Time) *Sim {
	if now != nil {
		s.now = now
	}
	return s
}

// Execute fills req. The delay always runs to completion so an in-flight
// fill is never abandoned halfway.
func (s *Sim) Execute(ctx context.Context, req domain.OrderRequest) (domain.ExecutedOrder, error) {
	if req.Price <= 0 || req.Size <= 0 {
		return domain.ExecutedOrder{}, fmt.Errorf("executor: invalid order %s %s price=%.4f size=%.4f",
			req.EventID, req.Side, req.Price, req.Size)
	}

	if s.cfg.FillDelay > 0 {
		time.Sleep(s.cfg.FillDelay)
	}

	filled := s.slip(req.Price)
	out := domain.ExecutedOrder{
		OrderRequest: req,
		ID:           uuid.New().String(),
		FilledPrice:  filled,
		Timestamp:    s.now(),
	}

	s.logger.DebugContext(ctx, "order filled",
		slog.String("order_id", out.ID),
		slog.String("event_id", req.EventID),
		slog.String("side", string(req.Side)),
		slog.Float64("price", req.Price),
		slog.Float64("filled_price", filled),
	)
	return out, nil
}

// slip moves price by a uniform random fraction of SlippageBps and clamps it
// to the tradable range.
func (s *Sim) slip(price float64) float64 {
	if s.cfg.SlippageBps <= 0 {
		return price
	}
	s.mu.Lock()
	u := s.rng.Float64()*2 - 1
	s.mu.Unlock()

	p := price * (1 + u*s.cfg.SlippageBps/10_000)
	return min(max(p, minFillPrice), maxFillPrice)
}

var _ Executor = (*Sim)(nil)
