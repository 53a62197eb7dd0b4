package postgres

import (
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/nearbot/internal/domain"
)

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://bot:pw@db:5432/nearbot?sslmode=disable",
		DSN(ClientConfig{Host: "db", Database: "nearbot", User: "bot", Password: "pw"}))
	assert.Equal(t, "postgres://x", DSN(ClientConfig{DSN: "postgres://x", Host: "ignored"}))
}

func TestListQuery(t *testing.T) {
	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	q, args := listQuery("SELECT id FROM positions", "opened_at", domain.ListOpts{})
	assert.Equal(t, "SELECT id FROM positions WHERE 1=1 ORDER BY opened_at DESC", q)
	assert.Empty(t, args)

	q, args = listQuery("SELECT id FROM positions", "opened_at", domain.ListOpts{Since: &since, Limit: 10, Offset: 20})
	assert.Equal(t, "SELECT id FROM positions WHERE 1=1 AND opened_at >= $1 ORDER BY opened_at DESC LIMIT $2 OFFSET $3", q)
	assert.Equal(t, []any{since, 10, 20}, args)
}

func TestMigrationNamesSorted(t *testing.T) {
	names, err := migrationNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"001_positions.sql", "002_executed_orders.sql", "003_audit_log.sql"}, names)
}

// newTestClient connects to NEARBOT_TEST_POSTGRES_DSN and migrates, or skips.
func newTestClient(t *testing.T) *Client {
	t.Helper()
	dsn := os.Getenv("NEARBOT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("NEARBOT_TEST_POSTGRES_DSN not set")
	}
	c, err := New(t.Context(), ClientConfig{DSN: dsn})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	require.NoError(t, c.RunMigrations(t.Context()))
	require.NoError(t, c.RunMigrations(t.Context()), "migrations are idempotent")
	return c
}

func TestPositionStore_Integration(t *testing.T) {
	c := newTestClient(t)
	store := NewPositionStore(c.Pool())
	opened := time.Now().UTC().Truncate(time.Microsecond)

	p := domain.Position{
		ID:            uuid.NewString(),
		EventID:       "event-1",
		Side:          domain.SideYes,
		AvgEntryPrice: 0.87,
		Size:          0.03,
		OpenedAt:      opened,
	}
	require.NoError(t, store.Upsert(t.Context(), p))

	_, err := p.Close(0.93, domain.ExitTakeProfit, opened.Add(time.Minute), 1000)
	require.NoError(t, err)
	require.NoError(t, store.Upsert(t.Context(), p))

	since := opened.Add(-time.Second)
	got, err := store.List(t.Context(), domain.ListOpts{Since: &since, Limit: 100})
	require.NoError(t, err)

	var found *domain.Position
	for i := range got {
		if got[i].ID == p.ID {
			found = &got[i]
		}
	}
	require.NotNil(t, found)
	assert.True(t, found.Closed)
	assert.Equal(t, domain.ExitTakeProfit, found.ExitReason)
	assert.InDelta(t, 1.8, found.RealizedPnLUSD, 1e-9)
}

func TestOrderAndAuditStore_Integration(t *testing.T) {
	c := newTestClient(t)
	orders := NewOrderStore(c.Pool())
	audit := NewAuditStore(c.Pool())

	o := domain.ExecutedOrder{
		OrderRequest: domain.OrderRequest{EventID: "event-1", Side: domain.SideNo, Price: 0.88, Size: 0.02, Kind: domain.OrderKindLimitBuy},
		ID:           uuid.NewString(),
		FilledPrice:  0.881,
		Timestamp:    time.Now().UTC(),
	}
	require.NoError(t, orders.Insert(t.Context(), o))
	require.NoError(t, orders.Insert(t.Context(), o))

	list, err := orders.List(t.Context(), domain.ListOpts{Limit: 50})
	require.NoError(t, err)
	assert.NotEmpty(t, list)

	require.NoError(t, audit.Log(t.Context(), "journal.STOP_LOSS", map[string]any{"event_id": "event-1"}))
	entries, err := audit.List(t.Context(), domain.ListOpts{Limit: 1})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "journal.STOP_LOSS", entries[0].Event)
	assert.Equal(t, "event-1", entries[0].Detail["event_id"])
}
