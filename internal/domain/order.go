package domain

import "time"

// OrderKind is the order type. Only limit orders are simulated.
type OrderKind string

// OrderKindLimitBuy is the only kind the strategy emits; exits are
// recorded on the position rather than as orders.
const OrderKindLimitBuy OrderKind = "LIMIT_BUY"

// OrderRequest is a candidate order produced by the strategy. Size is in
// units of base capital.
type OrderRequest struct {
	EventID string    `json:"eventId"`
	Side    Side      `json:"side"`
	Price   float64   `json:"price"`
	Size    float64   `json:"size"`
	Kind    OrderKind `json:"kind"`
}

// Notional returns the dollar exposure of the order.
func (o OrderRequest) Notional(baseCapital float64) float64 {
	return o.Price * o.Size * baseCapital
}

// ExecutedOrder is a filled order returned by an executor.
type ExecutedOrder struct {
	OrderRequest
	ID          string    `json:"id"`
	FilledPrice float64   `json:"filledPrice"`
	Timestamp   time.Time `json:"timestamp"`
}
