// Package voice turns a line of text into a voice result: it analyses the
// text's emotion, resolves the speaking character, derives effective voice
// parameters and asks the TTS provider for audio.
//
// [Orchestrator.Synthesize] never surfaces a provider problem as an error.
// Timeouts, provider failures, panics, a missing provider and an open circuit
// all produce a [KindFallback] result carrying the [Sentinel] URL and the
// analysed emotion, so a client can still react to the line.
package voice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/voiceforge/voiceforge/internal/character"
	"github.com/voiceforge/voiceforge/internal/emotion"
	"github.com/voiceforge/voiceforge/internal/observe"
	"github.com/voiceforge/voiceforge/internal/resilience"
	"github.com/voiceforge/voiceforge/pkg/provider/tts"
)

// DefaultTimeout bounds a single provider call.
const DefaultTimeout = 10 * time.Second

// CatalogSource yields the character catalog for one operation.
// [character.Store] implements it.
type CatalogSource interface {
	Current() *character.Catalog
}

// AudioSaver persists provider bytes and returns a playable URL.
// [audiostore.Store] implements it.
type AudioSaver interface {
	Save(data []byte, contentType, prefix string) (string, error)
}

// Option configures an [Orchestrator].
type Option func(*Orchestrator)

// WithProvider sets the TTS provider and the name used in metrics. A nil
// provider makes every request fall back with [ReasonUnavailable].
func WithProvider(name string, p tts.Provider) Option {
	return func(o *Orchestrator) {
		o.providerName = name
		o.provider = p
	}
}

// WithAudioStore sets where byte audio is written. Without a store, providers
// that return bytes instead of a URL produce a fallback.
func WithAudioStore(s AudioSaver) Option {
	return func(o *Orchestrator) { o.store = s }
}

// WithTimeout sets the per-call provider timeout. Default: 10s.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithSpeedRange overrides the effective speed bounds.
func WithSpeedRange(r Range) Option {
	return func(o *Orchestrator) {
		if r.Valid() {
			o.speed = r
		}
	}
}

// WithPitchRange overrides the effective pitch bounds.
func WithPitchRange(r Range) Option {
	return func(o *Orchestrator) {
		if r.Valid() {
			o.pitch = r
		}
	}
}

// WithAnalyzer replaces the default emotion analyzer.
func WithAnalyzer(a *emotion.Analyzer) Option {
	return func(o *Orchestrator) {
		if a != nil {
			o.analyzer = a
		}
	}
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

// Orchestrator combines emotion analysis, character resolution and speech
// synthesis. It holds no per-request state and is safe for concurrent use.
type Orchestrator struct {
	analyzer     *emotion.Analyzer
	catalogs     CatalogSource
	provider     tts.Provider
	providerName string
	store        AudioSaver
	timeout      time.Duration
	speed        Range
	pitch        Range
	metrics      *observe.Metrics
}

// New creates an Orchestrator reading characters from catalogs.
func New(catalogs CatalogSource, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		analyzer:     emotion.New(),
		catalogs:     catalogs,
		providerName: "tts",
		timeout:      DefaultTimeout,
		speed:        DefaultRange,
		pitch:        DefaultRange,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	return o
}

// Synthesize produces the voice result for req. The only error is
// [ErrInvalidInput] for blank text, returned before the provider is called.
func (o *Orchestrator) Synthesize(ctx context.Context, req Request) (Result, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return Result{}, fmt.Errorf("%w: text is empty", ErrInvalidInput)
	}

	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "voice.synthesize",
		trace.WithAttributes(attribute.String("character.requested", req.CharacterID)))
	defer span.End()
	log := observe.Logger(ctx).With("session_id", req.SessionID)

	em := o.analyzer.Analyze(text)

	ch, substituted := o.catalogs.Current().Resolve(req.CharacterID)
	if substituted {
		log.Info("unknown character, using default", "requested", req.CharacterID, "character_id", ch.ID)
	}

	params := Params{
		VoiceID: ch.Voice.ProviderVoiceID,
		Speed:   o.speed.Clamp(ch.Voice.BaseSpeed * em.Modifiers.Speed),
		Pitch:   o.pitch.Clamp(ch.Voice.BasePitch * em.Modifiers.Pitch),
	}

	res := Result{
		Emotion:     em,
		CharacterID: ch.ID,
		Text:        text,
		Voice:       params,
	}

	url, reason, err := o.render(ctx, tts.Request{
		Text:    text,
		VoiceID: params.VoiceID,
		Speed:   params.Speed,
		Pitch:   params.Pitch,
	}, ch.ID+"_"+string(em.Primary))

	if reason == "" {
		res.Kind = KindSuccess
		res.AudioURL = url
	} else {
		res.Kind = KindFallback
		res.Reason = reason
		res.AudioURL = Sentinel
		log.Warn("synthesis fell back to simulated audio",
			"reason", string(reason), "character_id", ch.ID, "err", err)
	}

	span.SetAttributes(
		attribute.String("character.id", ch.ID),
		attribute.String("emotion", string(em.Primary)),
		attribute.String("kind", string(res.Kind)),
	)
	o.metrics.RecordSynthesis(ctx, time.Since(start).Seconds(), string(res.Kind), string(res.Reason))
	return res, nil
}

// render runs one bounded provider call and turns its outcome into a URL or a
// fallback reason. err is the underlying cause, for logging only.
func (o *Orchestrator) render(ctx context.Context, req tts.Request, prefix string) (url string, reason Reason, err error) {
	if o.provider == nil {
		return "", ReasonUnavailable, tts.ErrUnavailable
	}

	audio, err := o.call(ctx, req)
	if err != nil {
		o.metrics.RecordProviderRequest(ctx, o.providerName, "tts", "error")
		o.metrics.RecordProviderError(ctx, o.providerName, "tts")
		return "", classify(ctx, err), err
	}
	o.metrics.RecordProviderRequest(ctx, o.providerName, "tts", "ok")

	switch {
	case audio.URL != "":
		return audio.URL, "", nil
	case len(audio.Data) > 0:
		if o.store == nil {
			return "", ReasonProviderError, errors.New("voice: provider returned bytes but no audio store is configured")
		}
		u, err := o.store.Save(audio.Data, audio.ContentType, prefix)
		if err != nil {
			return "", ReasonProviderError, err
		}
		return u, "", nil
	default:
		return "", ReasonProviderError, errors.New("voice: provider returned no audio")
	}
}

// call invokes the provider under the timeout. The provider runs on its own
// goroutine so a call that ignores its context still cannot hold the caller
// past the deadline.
func (o *Orchestrator) call(ctx context.Context, req tts.Request) (tts.Audio, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	type outcome struct {
		audio tts.Audio
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: &panicError{value: r}}
			}
		}()
		a, err := o.provider.Synthesize(ctx, req)
		done <- outcome{audio: a, err: err}
	}()

	select {
	case out := <-done:
		return out.audio, out.err
	case <-ctx.Done():
		return tts.Audio{}, ctx.Err()
	}
}

// classify maps a provider error onto a fallback reason.
func classify(ctx context.Context, err error) Reason {
	var pe *panicError
	switch {
	case errors.As(err, &pe):
		return ReasonPanic
	case errors.Is(err, resilience.ErrCircuitOpen):
		return ReasonCircuitOpen
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		return ReasonCanceled
	case errors.Is(err, tts.ErrUnavailable):
		return ReasonUnavailable
	default:
		return ReasonProviderError
	}
}

type panicError struct {
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("voice: provider panicked: %v", e.value)
}
