package state

import "github.com/alanyoungcy/nearbot/internal/domain"

// DefaultLogCapacity is the number of log entries kept in memory.
const DefaultLogCapacity = 200

// LogRing is a bounded log buffer that drops its oldest entries first. It is
// not safe for concurrent use; Runtime guards it.
type LogRing struct {
	entries []domain.LogEntry
	cap     int
}

// NewLogRing creates a ring holding at most capacity entries.
func NewLogRing(capacity int) *LogRing {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	return &LogRing{cap: capacity}
}

// Append adds e and evicts from the front until the ring fits its capacity.
func (r *LogRing) Append(e domain.LogEntry) {
	r.entries = append(r.entries, e)
	if over := len(r.entries) - r.cap; over > 0 {
		n := copy(r.entries, r.entries[over:])
		clear(r.entries[n:])
		r.entries = r.entries[:n]
	}
}

// Entries returns a copy of the buffered entries, oldest first.
func (r *LogRing) Entries() []domain.LogEntry {
	out := make([]domain.LogEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

func (r *LogRing) Len() int { return len(r.entries) }

func (r *LogRing) Reset() {
	clear(r.entries)
	r.entries = r.entries[:0]
}
