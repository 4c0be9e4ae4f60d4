package resilience

import (
	"context"

	"github.com/voiceforge/voiceforge/pkg/provider/tts"
)

// TTSFallback implements [tts.Provider] with automatic failover across multiple
// TTS backends. Each backend has its own circuit breaker.
type TTSFallback struct {
	group *FallbackGroup[tts.Provider]
}

// Compile-time interface assertion.
var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred backend.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg FallbackConfig) *TTSFallback {
	return &TTSFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional TTS provider as a fallback.
func (f *TTSFallback) AddFallback(name string, provider tts.Provider) {
	f.group.AddFallback(name, provider)
}

// Synthesize renders req with the first healthy provider. A provider that
// fails or times out is recorded against its breaker and the next one is
// tried.
func (f *TTSFallback) Synthesize(ctx context.Context, req tts.Request) (tts.Audio, error) {
	return ExecuteWithResult(ctx, f.group, func(p tts.Provider) (tts.Audio, error) {
		return p.Synthesize(ctx, req)
	})
}

// ListVoices returns available voices from the first healthy provider.
func (f *TTSFallback) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	return ExecuteWithResult(ctx, f.group, func(p tts.Provider) ([]tts.VoiceProfile, error) {
		return p.ListVoices(ctx)
	})
}

// Status reports the breaker state of each backend.
func (f *TTSFallback) Status() []EntryStatus {
	return f.group.Status()
}
