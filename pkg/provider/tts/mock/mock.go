// Package mock provides a test double for the tts.Provider interface.
//
// Use Provider to return controlled audio or errors to the orchestrator and to
// verify which voice parameters reached the TTS backend.
//
// Example:
//
//	p := &mock.Provider{
//	    SynthesizeResult: tts.Audio{URL: "https://cdn.example/a.wav"},
//	    Delay:            50 * time.Millisecond,
//	}
//	audio, err := p.Synthesize(ctx, tts.Request{Text: "hi", VoiceID: "v1"})
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/voiceforge/voiceforge/pkg/provider/tts"
)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	// Ctx is the context passed to Synthesize.
	Ctx context.Context
	// Request is the request passed to Synthesize.
	Request tts.Request
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// SynthesizeResult is returned by Synthesize when SynthesizeErr is nil.
	SynthesizeResult tts.Audio

	// SynthesizeErr, if non-nil, is returned as the error from Synthesize.
	SynthesizeErr error

	// Delay makes Synthesize wait before answering. The wait ends early with
	// ctx.Err() if ctx is done first.
	Delay time.Duration

	// Panic, if non-empty, makes Synthesize panic with this value.
	Panic string

	// Block, if non-nil, makes Synthesize wait until the channel is closed or
	// ctx is done. Used to hold a request in flight.
	Block chan struct{}

	// ListVoicesResult is returned by ListVoices.
	ListVoicesResult []tts.VoiceProfile

	// ListVoicesErr, if non-nil, is returned as the error from ListVoices.
	ListVoicesErr error

	// --- Call records ---

	// SynthesizeCalls records every call to Synthesize in order.
	SynthesizeCalls []SynthesizeCall

	// ListVoicesCalls counts calls to ListVoices.
	ListVoicesCalls int

	// Started, if non-nil, receives the request each time Synthesize begins.
	// Sends do not block.
	Started chan tts.Request
}

// Synthesize records the call, waits according to Delay and Block, then
// returns SynthesizeResult or SynthesizeErr.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (tts.Audio, error) {
	p.mu.Lock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Ctx: ctx, Request: req})
	result, err := p.SynthesizeResult, p.SynthesizeErr
	delay, block, panicMsg, started := p.Delay, p.Block, p.Panic, p.Started
	p.mu.Unlock()

	if started != nil {
		select {
		case started <- req:
		default:
		}
	}
	if panicMsg != "" {
		panic(panicMsg)
	}
	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return tts.Audio{}, ctx.Err()
		}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return tts.Audio{}, ctx.Err()
		}
	}
	if err != nil {
		return tts.Audio{}, err
	}
	return result, nil
}

// ListVoices records the call and returns ListVoicesResult, ListVoicesErr.
func (p *Provider) ListVoices(_ context.Context) ([]tts.VoiceProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ListVoicesCalls++
	return p.ListVoicesResult, p.ListVoicesErr
}

// Calls returns a copy of the recorded Synthesize calls. Thread-safe.
func (p *Provider) Calls() []SynthesizeCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]SynthesizeCall, len(p.SynthesizeCalls))
	copy(out, p.SynthesizeCalls)
	return out
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = nil
	p.ListVoicesCalls = 0
}

// Ensure Provider implements tts.Provider at compile time.
var _ tts.Provider = (*Provider)(nil)
