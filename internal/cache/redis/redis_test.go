package redis

import (
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/nearbot/internal/domain"
)

// newTestClient connects to NEARBOT_TEST_REDIS_ADDR under a throwaway key
// prefix, or skips.
func newTestClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("NEARBOT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("NEARBOT_TEST_REDIS_ADDR not set")
	}
	c, err := New(t.Context(), ClientConfig{Addr: addr, KeyPrefix: "nearbot-test-" + uuid.NewString()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestClient_Key(t *testing.T) {
	c := &Client{prefix: DefaultKeyPrefix}
	assert.Equal(t, "nearbot:price:event-1", c.Key("price", "event-1"))
	assert.Equal(t, "nearbot:stream:journal", c.Key("stream", domain.StreamJournal))
}

func TestParsePrice(t *testing.T) {
	price, ts, err := parsePrice(map[string]string{"price": "0.87", "ts": "1700000000000000000"})
	require.NoError(t, err)
	assert.Equal(t, 0.87, price)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), ts)

	_, _, err = parsePrice(map[string]string{})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, _, err = parsePrice(map[string]string{"price": "abc", "ts": "1"})
	assert.Error(t, err)
}

func TestHasPattern(t *testing.T) {
	assert.True(t, hasPattern("logs*"))
	assert.False(t, hasPattern("positions"))
}

func TestPriceCache_Integration(t *testing.T) {
	c := newTestClient(t)
	pc := NewPriceCache(c, time.Minute)
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_, _, err := pc.GetPrice(t.Context(), "event-1")
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, pc.SetPrice(t.Context(), "event-1", 0.88, ts))
	require.NoError(t, pc.SetPrice(t.Context(), "event-2", 0.91, ts))

	price, got, err := pc.GetPrice(t.Context(), "event-1")
	require.NoError(t, err)
	assert.Equal(t, 0.88, price)
	assert.Equal(t, ts, got)

	prices, err := pc.GetPrices(t.Context(), []string{"event-1", "event-2", "missing"})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"event-1": 0.88, "event-2": 0.91}, prices)
}

func TestSignalBus_Integration(t *testing.T) {
	c := newTestClient(t)
	bus := NewSignalBus(c, 100)

	sub, err := bus.Subscribe(t.Context(), domain.ChannelLogs)
	require.NoError(t, err)
	require.NoError(t, bus.Publish(t.Context(), domain.ChannelLogs, []byte(`{"level":"INFO"}`)))

	select {
	case msg := <-sub:
		assert.JSONEq(t, `{"level":"INFO"}`, string(msg))
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}

	require.NoError(t, bus.StreamAppend(t.Context(), domain.StreamJournal, []byte("a")))
	require.NoError(t, bus.StreamAppend(t.Context(), domain.StreamJournal, []byte("b")))
	msgs, err := bus.StreamRead(t.Context(), domain.StreamJournal, "0", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, []byte("b"), msgs[1].Payload)

	msgs, err = bus.StreamRead(t.Context(), domain.StreamJournal, msgs[1].ID, 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestRateLimiter_Integration(t *testing.T) {
	c := newTestClient(t)
	rl := NewRateLimiter(c)
	now := time.Now()
	rl.now = func() time.Time { return now }

	for range 3 {
		ok, err := rl.Allow(t.Context(), "client", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := rl.Allow(t.Context(), "client", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	now = now.Add(2 * time.Minute)
	ok, err = rl.Allow(t.Context(), "client", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "window slid past old requests")
}
