package voice

import (
	"errors"
	"math"

	"github.com/voiceforge/voiceforge/internal/emotion"
)

// Sentinel is the audio reference returned when no real audio exists. Players
// recognise the fallback:// scheme and simulate playback.
const Sentinel = "fallback://simulated"

// ErrInvalidInput is the only error [Orchestrator.Synthesize] returns.
var ErrInvalidInput = errors.New("voice: invalid input")

// Kind tells real audio from simulated audio.
type Kind string

const (
	KindSuccess  Kind = "success"
	KindFallback Kind = "fallback"
)

// Reason explains a fallback.
type Reason string

const (
	ReasonTimeout       Reason = "timeout"
	ReasonProviderError Reason = "provider_error"
	ReasonUnavailable   Reason = "unavailable"
	ReasonPanic         Reason = "panic"
	ReasonCircuitOpen   Reason = "circuit_open"
	// ReasonCanceled means the caller went away; such results are usually
	// dropped before anyone sees them.
	ReasonCanceled Reason = "canceled"
)

// Request is one synthesis request.
type Request struct {
	SessionID   string
	Text        string
	CharacterID string
}

// Params are the voice parameters actually sent to the provider.
type Params struct {
	VoiceID string  `json:"voice_id"`
	Speed   float64 `json:"speed"`
	Pitch   float64 `json:"pitch"`
}

// Result is what a client receives for a request. The emotion is present for
// both kinds.
type Result struct {
	AudioURL    string         `json:"audio_url"`
	Emotion     emotion.Result `json:"emotion"`
	CharacterID string         `json:"character_id"`
	Text        string         `json:"text"`
	Kind        Kind           `json:"kind"`
	Reason      Reason         `json:"reason,omitempty"`
	Voice       Params         `json:"voice"`
}

// Fallback reports whether r carries the sentinel instead of real audio.
func (r Result) Fallback() bool {
	return r.Kind == KindFallback
}

// Range is an inclusive bound for an effective voice parameter.
type Range struct {
	Min float64
	Max float64
}

// DefaultRange is the accepted range for both speed and pitch.
var DefaultRange = Range{Min: 0.5, Max: 2.0}

// Clamp limits v to r. Non-finite values become 1.0 before clamping.
func (r Range) Clamp(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 1.0
	}
	return max(r.Min, min(r.Max, v))
}

// Valid reports whether r is a non-empty positive range.
func (r Range) Valid() bool {
	return r.Min > 0 && r.Max >= r.Min
}
