package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrPositionClosed  = errors.New("position already closed")
	ErrInvalidMode     = errors.New("invalid market data mode")
	ErrUnsupportedMode = errors.New("market data mode not supported")
	ErrNoReplayData    = errors.New("no replay data loaded")
	ErrInvalidSpeed    = errors.New("replay speed must be positive")
)
