package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordSender struct {
	mu     sync.Mutex
	name   string
	err    error
	titles []string
}

func (r *recordSender) Send(_ context.Context, title, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.titles = append(r.titles, title)
	return r.err
}

func (r *recordSender) Name() string { return r.name }

func TestNotifier_FiltersEvents(t *testing.T) {
	s := &recordSender{name: "rec"}
	n := NewNotifier([]Sender{s}, []string{"stop_loss", " risk_halt "}, 0, slog.New(slog.DiscardHandler))

	require.NoError(t, n.Notify(t.Context(), "stop_loss", "a", "m"))
	require.NoError(t, n.Notify(t.Context(), "force_exit", "b", "m"))
	require.NoError(t, n.Notify(t.Context(), "risk_halt", "c", "m"))
	require.NoError(t, n.NotifyAll(t.Context(), "d", "m"))

	assert.Equal(t, []string{"a", "c", "d"}, s.titles)
}

func TestNotifier_Cooldown(t *testing.T) {
	s := &recordSender{name: "rec"}
	n := NewNotifier([]Sender{s}, nil, time.Minute, slog.New(slog.DiscardHandler))
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	n.now = func() time.Time { return now }

	require.NoError(t, n.Notify(t.Context(), "error", "first", ""))
	require.NoError(t, n.Notify(t.Context(), "error", "repeat", ""))
	require.NoError(t, n.Notify(t.Context(), "stop_loss", "other", ""))
	now = now.Add(time.Minute)
	require.NoError(t, n.Notify(t.Context(), "error", "later", ""))

	assert.Equal(t, []string{"first", "other", "later"}, s.titles)
}

func TestNotifier_OneFailureDoesNotStopOthers(t *testing.T) {
	bad := &recordSender{name: "bad", err: errors.New("boom")}
	good := &recordSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, 0, slog.New(slog.DiscardHandler))

	err := n.Notify(t.Context(), "error", "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: boom")
	assert.Equal(t, []string{"t"}, good.titles)
	assert.True(t, n.Enabled())
}

func TestTelegramSender(t *testing.T) {
	var got map[string]string
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender(srv.URL+"/", "TOKEN", "42")
	require.NoError(t, s.Send(t.Context(), "STOP_LOSS on event-1", "pnl=-2.10 USD"))

	assert.Equal(t, "/botTOKEN/sendMessage", path)
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "*STOP_LOSS on event-1*\npnl=-2.10 USD", got["text"])
}

func TestDiscordSender_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(t.Context(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "discord: unexpected status 429")
}
