package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/nearbot/internal/domain"
)

// OrderStore implements domain.OrderStore using PostgreSQL.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore creates a new OrderStore backed by the given connection pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// Insert records a fill. Re-inserting the same fill is a no-op.
func (s *OrderStore) Insert(ctx context.Context, o domain.ExecutedOrder) error {
	const query = `
		INSERT INTO executed_orders (id, event_id, side, kind, price, size, filled_price, filled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		o.ID, o.EventID, string(o.Side), string(o.Kind),
		o.Price, o.Size, o.FilledPrice, o.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert order %s: %w", o.ID, err)
	}
	return nil
}

// List returns fills newest first.
func (s *OrderStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.ExecutedOrder, error) {
	query, args := listQuery(
		`SELECT id, event_id, side, kind, price, size, filled_price, filled_at FROM executed_orders`,
		"filled_at", opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.ExecutedOrder
	for rows.Next() {
		var (
			o          domain.ExecutedOrder
			side, kind string
		)
		if err := rows.Scan(&o.ID, &o.EventID, &side, &kind, &o.Price, &o.Size, &o.FilledPrice, &o.Timestamp); err != nil {
			return nil, fmt.Errorf("postgres: scan order: %w", err)
		}
		o.Side = domain.Side(side)
		o.Kind = domain.OrderKind(kind)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list orders rows: %w", err)
	}
	return orders, nil
}

var _ domain.OrderStore = (*OrderStore)(nil)
