package domain

import "time"

// Phase is a coarse lifecycle label for an event. It is observational only.
type Phase string

const (
	PhaseIdle       Phase = "IDLE"
	PhaseWaitEntry  Phase = "WAIT_ENTRY"
	PhaseInPosition Phase = "IN_POSITION"
	PhaseExited     Phase = "EXITED"
)

// EventPhaseState is the latest phase of one event.
type EventPhaseState struct {
	EventID   string    `json:"eventId"`
	Phase     Phase     `json:"phase"`
	UpdatedAt time.Time `json:"updatedAt"`
}
