package journal

import (
	"time"

	"github.com/alanyoungcy/nearbot/internal/domain"
)

// Line is one persisted journal record: the log entry plus flat copies of the
// fields most often used for post-hoc analysis.
type Line struct {
	domain.LogEntry

	FlatEventID         string                 `json:"event_id,omitempty"`
	TickTS              *time.Time             `json:"tick_ts,omitempty"`
	Price               *float64               `json:"price,omitempty"`
	TimeToResolutionMin *float64               `json:"time_to_resolution_min,omitempty"`
	FlatTrigger         domain.DecisionTrigger `json:"trigger,omitempty"`
}

// NewLine flattens e into a journal line.
func NewLine(e domain.LogEntry) Line {
	l := Line{
		LogEntry:    e,
		FlatEventID: e.EventID,
		FlatTrigger: e.Trigger,
	}
	if s := e.Snapshot; s != nil {
		ts := s.Timestamp.UTC()
		price := s.Price
		ttr := s.TimeToResolutionMin
		l.TickTS = &ts
		l.Price = &price
		l.TimeToResolutionMin = &ttr
		if l.FlatEventID == "" {
			l.FlatEventID = s.EventID
		}
	}
	return l
}
