// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., Murf, ElevenLabs or a
// local Coqui server) and turns one utterance into one piece of audio. Hosted
// services usually return a URL to the rendered file; local or streaming
// services return the encoded bytes, which the caller persists.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable is returned when a provider cannot be used at all, for
// example because no credentials are configured.
var ErrUnavailable = errors.New("tts: provider unavailable")

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize renders req.Text with the requested voice and prosody. It
	// must honour ctx cancellation and deadlines. Exactly one attempt is made;
	// implementations do not retry.
	Synthesize(ctx context.Context, req Request) (Audio, error)

	// ListVoices returns the voices available from this provider.
	ListVoices(ctx context.Context) ([]VoiceProfile, error)
}

// StatusError reports a non-success HTTP status from a provider API.
type StatusError struct {
	Provider string
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s: unexpected status %d: %s", e.Provider, e.Status, e.Body)
	}
	return fmt.Sprintf("%s: unexpected status %d", e.Provider, e.Status)
}
