package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// PositionStore persists positions. Upsert is called on open and on close.
type PositionStore interface {
	Upsert(ctx context.Context, pos Position) error
	List(ctx context.Context, opts ListOpts) ([]Position, error)
}

// OrderStore persists executed orders.
type OrderStore interface {
	Insert(ctx context.Context, order ExecutedOrder) error
	List(ctx context.Context, opts ListOpts) ([]ExecutedOrder, error)
}

// AuditEntry is a persisted journal record.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"createdAt"`
}

// AuditStore stores journal records.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
