package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/nearbot/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a new PositionStore backed by the given connection pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

const positionSelectCols = `id, event_id, side, avg_entry_price, size, opened_at,
	realized_pnl_usd, unrealized_pnl_usd, closed, closed_at, exit_price, exit_reason`

func scanPositionRows(rows pgx.Rows) ([]domain.Position, error) {
	var positions []domain.Position
	for rows.Next() {
		var (
			p      domain.Position
			side   string
			reason *string
		)
		if err := rows.Scan(
			&p.ID, &p.EventID, &side, &p.AvgEntryPrice, &p.Size, &p.OpenedAt,
			&p.RealizedPnLUSD, &p.UnrealizedPnLUSD, &p.Closed, &p.ClosedAt, &p.ExitPrice, &reason,
		); err != nil {
			return nil, err
		}
		p.Side = domain.Side(side)
		if reason != nil {
			p.ExitReason = domain.ExitReason(*reason)
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// Upsert inserts the position or overwrites the stored row with its current
// state. A closed row is never reopened.
func (s *PositionStore) Upsert(ctx context.Context, p domain.Position) error {
	const query = `
		INSERT INTO positions (
			id, event_id, side, avg_entry_price, size, opened_at,
			realized_pnl_usd, unrealized_pnl_usd, closed, closed_at, exit_price, exit_reason, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12, NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			realized_pnl_usd   = EXCLUDED.realized_pnl_usd,
			unrealized_pnl_usd = EXCLUDED.unrealized_pnl_usd,
			closed             = EXCLUDED.closed,
			closed_at          = EXCLUDED.closed_at,
			exit_price         = EXCLUDED.exit_price,
			exit_reason        = EXCLUDED.exit_reason,
			updated_at         = NOW()
		WHERE NOT positions.closed`

	var reason *string
	if p.ExitReason != "" {
		r := string(p.ExitReason)
		reason = &r
	}
	_, err := s.pool.Exec(ctx, query,
		p.ID, p.EventID, string(p.Side), p.AvgEntryPrice, p.Size, p.OpenedAt,
		p.RealizedPnLUSD, p.UnrealizedPnLUSD, p.Closed, p.ClosedAt, p.ExitPrice, reason,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert position %s: %w", p.ID, err)
	}
	return nil
}

// List returns positions newest first, filtered on opened_at.
func (s *PositionStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Position, error) {
	query, args := listQuery(`SELECT `+positionSelectCols+` FROM positions`, "opened_at", opts)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list positions: %w", err)
	}
	defer rows.Close()

	positions, err := scanPositionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan positions: %w", err)
	}
	return positions, nil
}

var _ domain.PositionStore = (*PositionStore)(nil)
