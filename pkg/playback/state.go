package playback

import (
	"errors"
	"time"
)

// ErrInvalidState is returned when a command does not apply to the current
// state, e.g. Pause while Ready.
var ErrInvalidState = errors.New("playback: command not valid in current state")

// State is the controller's lifecycle state.
type State int

const (
	StateEmpty State = iota
	StateLoading
	StateReady
	StatePlaying
	StatePaused
	StateEnded
	StateError
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateEnded:
		return "ended"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Terminal reports whether s ends a playback attempt.
func (s State) Terminal() bool {
	return s == StateEnded || s == StateError
}

// ErrorCode classifies a playback failure.
type ErrorCode string

const (
	CodeAborted         ErrorCode = "aborted"
	CodeNetwork         ErrorCode = "network"
	CodeDecode          ErrorCode = "decode"
	CodeUnsupported     ErrorCode = "unsupported"
	CodeBlockedByPolicy ErrorCode = "blocked-by-policy"
	CodeTimeout         ErrorCode = "timeout"
)

// Status is a snapshot of a controller.
type Status struct {
	State    State
	Source   string
	Position time.Duration
	Duration time.Duration
	// Simulated is true for sentinel sources played on a local timer.
	Simulated bool
	// Code and Err are set in StateError.
	Code ErrorCode
	Err  error
}
