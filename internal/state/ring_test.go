package state

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/nearbot/internal/domain"
)

func TestLogRing_EvictsOldestFirst(t *testing.T) {
	r := NewLogRing(200)
	for i := range 205 {
		r.Append(domain.LogEntry{ID: strconv.Itoa(i)})
	}

	require.Equal(t, 200, r.Len())
	entries := r.Entries()
	assert.Equal(t, "5", entries[0].ID)
	assert.Equal(t, "204", entries[199].ID)
}

func TestLogRing_EntriesIsACopy(t *testing.T) {
	r := NewLogRing(3)
	r.Append(domain.LogEntry{Message: "a"})

	entries := r.Entries()
	entries[0].Message = "changed"
	assert.Equal(t, "a", r.Entries()[0].Message)

	r.Reset()
	assert.Zero(t, r.Len())
	assert.Empty(t, r.Entries())
}

func TestNewLogRing_DefaultCapacity(t *testing.T) {
	r := NewLogRing(0)
	for range DefaultLogCapacity + 1 {
		r.Append(domain.LogEntry{})
	}
	assert.Equal(t, DefaultLogCapacity, r.Len())
}
