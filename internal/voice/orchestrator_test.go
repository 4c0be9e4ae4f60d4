package voice

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/voiceforge/voiceforge/internal/audiostore"
	"github.com/voiceforge/voiceforge/internal/character"
	"github.com/voiceforge/voiceforge/internal/emotion"
	"github.com/voiceforge/voiceforge/internal/observe"
	"github.com/voiceforge/voiceforge/internal/resilience"
	"github.com/voiceforge/voiceforge/pkg/provider/tts"
	ttsmock "github.com/voiceforge/voiceforge/pkg/provider/tts/mock"
)

func builtinStore(t *testing.T) *character.Store {
	t.Helper()
	cat, err := character.NewCatalog(character.Builtin(), "")
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	return character.NewStore(cat)
}

func TestSynthesize_Success(t *testing.T) {
	t.Parallel()

	p := &ttsmock.Provider{SynthesizeResult: tts.Audio{URL: "https://cdn.example/a.mp3"}}
	o := New(builtinStore(t), WithProvider("mock", p))

	res, err := o.Synthesize(context.Background(), Request{Text: "  I am so sad and lonely today ", CharacterID: "villain"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if res.Kind != KindSuccess || res.Reason != "" || res.AudioURL != "https://cdn.example/a.mp3" {
		t.Errorf("result = %+v, want success with provider url", res)
	}
	if res.CharacterID != "villain" || res.Text != "I am so sad and lonely today" {
		t.Errorf("character/text = %q/%q", res.CharacterID, res.Text)
	}
	if res.Emotion.Primary != emotion.Sad {
		t.Errorf("emotion = %q, want sad", res.Emotion.Primary)
	}

	calls := p.Calls()
	if len(calls) != 1 {
		t.Fatalf("provider called %d times, want 1", len(calls))
	}
	got := calls[0].Request
	if got.VoiceID != "en-US-terrell" {
		t.Errorf("voice id = %q", got.VoiceID)
	}
	if math.Abs(got.Speed-0.85*0.85) > 1e-9 || math.Abs(got.Pitch-0.85*0.9) > 1e-9 {
		t.Errorf("speed/pitch = %g/%g, want base times emotion modifier", got.Speed, got.Pitch)
	}
	if got.Speed != res.Voice.Speed || got.Pitch != res.Voice.Pitch {
		t.Errorf("result voice %+v does not match request %+v", res.Voice, got)
	}
}

func TestSynthesize_UnknownCharacterUsesDefault(t *testing.T) {
	t.Parallel()

	p := &ttsmock.Provider{SynthesizeResult: tts.Audio{URL: "u"}}
	o := New(builtinStore(t), WithProvider("mock", p))

	for _, id := range []string{"ghost", ""} {
		res, err := o.Synthesize(context.Background(), Request{Text: "Hello there", CharacterID: id})
		if err != nil {
			t.Fatalf("Synthesize(%q): %v", id, err)
		}
		if res.CharacterID != character.DefaultID {
			t.Errorf("character %q resolved to %q, want %q", id, res.CharacterID, character.DefaultID)
		}
	}
	for _, c := range p.Calls() {
		if c.Request.VoiceID != "en-US-natalie" {
			t.Errorf("voice id = %q, want narrator voice", c.Request.VoiceID)
		}
	}
}

func TestSynthesize_EmptyText(t *testing.T) {
	t.Parallel()

	p := &ttsmock.Provider{}
	o := New(builtinStore(t), WithProvider("mock", p))

	for _, text := range []string{"", "   \n\t"} {
		if _, err := o.Synthesize(context.Background(), Request{Text: text}); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("Synthesize(%q) error = %v, want ErrInvalidInput", text, err)
		}
	}
	if n := len(p.Calls()); n != 0 {
		t.Errorf("provider called %d times, want 0", n)
	}
}

func TestSynthesize_Fallbacks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		provider tts.Provider
		want     Reason
	}{
		{name: "timeout", provider: &ttsmock.Provider{Delay: time.Second}, want: ReasonTimeout},
		{name: "provider error", provider: &ttsmock.Provider{SynthesizeErr: &tts.StatusError{Provider: "x", Status: 500}}, want: ReasonProviderError},
		{name: "unavailable", provider: &ttsmock.Provider{SynthesizeErr: tts.ErrUnavailable}, want: ReasonUnavailable},
		{name: "no provider", provider: nil, want: ReasonUnavailable},
		{name: "panic", provider: &ttsmock.Provider{Panic: "boom"}, want: ReasonPanic},
		{name: "circuit open", provider: &ttsmock.Provider{SynthesizeErr: resilience.ErrCircuitOpen}, want: ReasonCircuitOpen},
		{name: "empty audio", provider: &ttsmock.Provider{}, want: ReasonProviderError},
		{name: "bytes without store", provider: &ttsmock.Provider{SynthesizeResult: tts.Audio{Data: []byte{1}}}, want: ReasonProviderError},
	}

	const text = "This is absolutely incredible!"
	want := emotion.New().Analyze(text)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var opts []Option
			if tt.provider != nil {
				opts = append(opts, WithProvider("mock", tt.provider))
			}
			opts = append(opts, WithTimeout(20*time.Millisecond))
			o := New(builtinStore(t), opts...)

			res, err := o.Synthesize(context.Background(), Request{Text: text, CharacterID: "hero"})
			if err != nil {
				t.Fatalf("Synthesize: %v", err)
			}
			if res.Kind != KindFallback || res.Reason != tt.want {
				t.Errorf("kind/reason = %q/%q, want fallback/%q", res.Kind, res.Reason, tt.want)
			}
			if res.AudioURL != Sentinel || !res.Fallback() {
				t.Errorf("audio url = %q, want sentinel", res.AudioURL)
			}
			if res.Emotion.Primary != want.Primary || res.Emotion.Confidence != want.Confidence {
				t.Errorf("emotion = %+v, want %+v", res.Emotion, want)
			}
			if res.CharacterID != "hero" {
				t.Errorf("character = %q", res.CharacterID)
			}
		})
	}
}

func TestSynthesize_WrappedCircuitOpen(t *testing.T) {
	t.Parallel()

	primary := &ttsmock.Provider{SynthesizeErr: errors.New("down")}
	fb := resilience.NewTTSFallback(primary, "primary", resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour},
	})
	o := New(builtinStore(t), WithProvider("primary", fb))

	first, _ := o.Synthesize(context.Background(), Request{Text: "hello"})
	if first.Reason != ReasonProviderError {
		t.Fatalf("first reason = %q, want provider_error", first.Reason)
	}
	second, _ := o.Synthesize(context.Background(), Request{Text: "hello"})
	if second.Reason != ReasonCircuitOpen {
		t.Errorf("second reason = %q, want circuit_open", second.Reason)
	}
	if n := len(primary.Calls()); n != 1 {
		t.Errorf("primary called %d times, want 1", n)
	}
}

func TestSynthesize_SavesByteAudio(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := audiostore.New(dir, "http://localhost:8000")
	if err != nil {
		t.Fatalf("audiostore.New: %v", err)
	}
	p := &ttsmock.Provider{SynthesizeResult: tts.Audio{Data: []byte("RIFFdata"), ContentType: "audio/wav"}}
	o := New(builtinStore(t), WithProvider("mock", p), WithAudioStore(store))

	res, err := o.Synthesize(context.Background(), Request{Text: "I am so sad and lonely today", CharacterID: "hero"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	prefix := "http://localhost:8000" + audiostore.URLPath + "hero_sad_"
	if res.Kind != KindSuccess || !strings.HasPrefix(res.AudioURL, prefix) || !strings.HasSuffix(res.AudioURL, ".wav") {
		t.Fatalf("result = %+v, want stored wav url with prefix %q", res, prefix)
	}
	name := strings.TrimPrefix(res.AudioURL, "http://localhost:8000"+audiostore.URLPath)
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("read stored file: %v", err)
	}
	if string(data) != "RIFFdata" {
		t.Errorf("stored data = %q", data)
	}
}

func TestSynthesize_ClampsParameters(t *testing.T) {
	t.Parallel()

	chars := []character.Character{
		{ID: character.DefaultID, Voice: character.Voice{ProviderVoiceID: "n"}},
		{ID: "fast", Voice: character.Voice{ProviderVoiceID: "f", BaseSpeed: 2.0, BasePitch: 2.0}},
		{ID: "slow", Voice: character.Voice{ProviderVoiceID: "s", BaseSpeed: 0.5, BasePitch: 0.5}},
	}
	cat, err := character.NewCatalog(chars, "")
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	p := &ttsmock.Provider{SynthesizeResult: tts.Audio{URL: "u"}}
	o := New(character.NewStore(cat), WithProvider("mock", p))

	fast, _ := o.Synthesize(context.Background(), Request{Text: "This is absolutely incredible!", CharacterID: "fast"})
	if fast.Voice.Speed != 2.0 || fast.Voice.Pitch != 2.0 {
		t.Errorf("fast voice = %+v, want clamped to 2.0", fast.Voice)
	}
	slow, _ := o.Synthesize(context.Background(), Request{Text: "I am so sad and lonely today", CharacterID: "slow"})
	if slow.Voice.Speed != 0.5 || slow.Voice.Pitch != 0.5 {
		t.Errorf("slow voice = %+v, want clamped to 0.5", slow.Voice)
	}
}

func TestSynthesize_CallerCancel(t *testing.T) {
	t.Parallel()

	p := &ttsmock.Provider{Block: make(chan struct{}), Started: make(chan tts.Request, 1)}
	o := New(builtinStore(t), WithProvider("mock", p))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-p.Started
		cancel()
	}()
	res, err := o.Synthesize(ctx, Request{Text: "hello"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if res.Reason != ReasonCanceled {
		t.Errorf("reason = %q, want canceled", res.Reason)
	}
}

func TestSynthesize_RecordsFallbackMetric(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	o := New(builtinStore(t), WithMetrics(m))
	if _, err := o.Synthesize(context.Background(), Request{Text: "hello"}); err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	var found bool
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name != "voiceforge.synthesis.fallbacks" {
				continue
			}
			sum, ok := met.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("fallbacks data = %T", met.Data)
			}
			for _, dp := range sum.DataPoints {
				if v, ok := dp.Attributes.Value("reason"); ok && v.AsString() == string(ReasonUnavailable) && dp.Value == 1 {
					found = true
				}
			}
		}
	}
	if !found {
		t.Error("no fallback data point with reason=unavailable")
	}
}

func TestRange_Clamp(t *testing.T) {
	t.Parallel()

	for in, want := range map[float64]float64{0.1: 0.5, 1.3: 1.3, 5: 2.0, math.NaN(): 1.0, math.Inf(1): 1.0} {
		if got := DefaultRange.Clamp(in); got != want {
			t.Errorf("Clamp(%g) = %g, want %g", in, got, want)
		}
	}
}
