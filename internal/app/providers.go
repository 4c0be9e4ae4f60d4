package app

import (
	"errors"
	"fmt"
	"log/slog"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/voiceforge/voiceforge/internal/config"
	"github.com/voiceforge/voiceforge/internal/resilience"
	"github.com/voiceforge/voiceforge/pkg/audio"
	"github.com/voiceforge/voiceforge/pkg/provider/llm"
	"github.com/voiceforge/voiceforge/pkg/provider/llm/anyllm"
	llmmock "github.com/voiceforge/voiceforge/pkg/provider/llm/mock"
	"github.com/voiceforge/voiceforge/pkg/provider/llm/openai"
	"github.com/voiceforge/voiceforge/pkg/provider/tts"
	"github.com/voiceforge/voiceforge/pkg/provider/tts/coqui"
	"github.com/voiceforge/voiceforge/pkg/provider/tts/elevenlabs"
	ttsmock "github.com/voiceforge/voiceforge/pkg/provider/tts/mock"
	"github.com/voiceforge/voiceforge/pkg/provider/tts/murf"
)

// Providers holds the instantiated backends. A nil field means the
// capability is not configured: synthesis answers with simulated audio and
// dialogue uses canned lines.
type Providers struct {
	TTS     tts.Provider
	TTSName string

	// Breakers reports per-backend breaker state when TTS is a failover
	// group.
	Breakers *resilience.TTSFallback

	LLM     llm.Provider
	LLMName string
}

// defaultModels is used when an LLM entry names no model.
var defaultModels = map[string]string{
	"openai":    "gpt-4o-mini",
	"gemini":    "gemini-2.5-flash",
	"anthropic": "claude-3-5-haiku-latest",
	"ollama":    "llama3.2",
	"deepseek":  "deepseek-chat",
	"mistral":   "mistral-small-latest",
	"groq":      "llama-3.1-8b-instant",
}

// RegisterBuiltinProviders wires all built-in provider factories into reg.
func RegisterBuiltinProviders(reg *config.Registry) {
	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("murf", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []murf.Option
		if entry.BaseURL != "" {
			opts = append(opts, murf.WithBaseURL(entry.BaseURL))
		}
		if f := optString(entry.Options, "format"); f != "" {
			opts = append(opts, murf.WithFormat(f))
		}
		if entry.Timeout > 0 {
			opts = append(opts, murf.WithTimeout(entry.Timeout))
		}
		return murf.New(entry.APIKey, opts...)
	})

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if outputFmt := optString(entry.Options, "output_format"); outputFmt != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(outputFmt))
		}
		if ws := optString(entry.Options, "ws_base_url"); ws != "" && entry.BaseURL != "" {
			opts = append(opts, elevenlabs.WithBaseURLs(ws, entry.BaseURL))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	reg.RegisterTTS("coqui", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []coqui.Option
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, coqui.WithLanguage(lang))
		}
		if mode := optString(entry.Options, "api_mode"); mode != "" {
			opts = append(opts, coqui.WithAPIMode(coqui.APIMode(mode)))
		}
		if entry.Timeout > 0 {
			opts = append(opts, coqui.WithTimeout(entry.Timeout))
		}
		return coqui.New(entry.BaseURL, opts...)
	})

	// mock renders one second of silence; useful without any credentials.
	reg.RegisterTTS("mock", func(config.ProviderEntry) (tts.Provider, error) {
		return &ttsmock.Provider{
			SynthesizeResult: tts.Audio{Data: audio.EncodeWAV(make([]byte, 32000), 16000, 1), ContentType: "audio/wav"},
		}, nil
	})

	// ── LLM ───────────────────────────────────────────────────────────────────

	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		if entry.Timeout > 0 {
			opts = append(opts, openai.WithTimeout(entry.Timeout))
		}
		return openai.New(entry.APIKey, modelFor(entry), opts...)
	})

	// The remaining hosted backends share the any-llm pattern: optional
	// APIKey + optional BaseURL.
	for _, providerName := range []string{
		"anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, modelFor(entry), opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", modelFor(entry), opts...)
	})

	reg.RegisterLLM("mock", func(entry config.ProviderEntry) (llm.Provider, error) {
		line := optString(entry.Options, "line")
		if line == "" {
			line = "The tale goes on."
		}
		return &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: line}}, nil
	})

	slog.Debug("registered providers", "tts", reg.TTSNames(), "llm", reg.LLMNames())
}

// BuildProviders instantiates the providers named in cfg. A TTS backend
// without credentials is skipped with a warning; the primary and every
// configured fallback are combined into one failover group with a circuit
// breaker per backend. An LLM that cannot be created leaves dialogue on
// canned lines.
func BuildProviders(cfg *config.Config, reg *config.Registry) (*Providers, error) {
	ps := &Providers{}

	type named struct {
		name string
		p    tts.Provider
	}
	var backends []named
	for _, entry := range append([]config.ProviderEntry{cfg.Providers.TTS}, cfg.Synthesis.FallbackProviders...) {
		p, err := reg.CreateTTS(entry)
		switch {
		case errors.Is(err, tts.ErrUnavailable):
			slog.Warn("tts provider not configured, skipping", "name", entry.Name, "err", err)
			continue
		case err != nil:
			return nil, fmt.Errorf("create tts provider %q: %w", entry.Name, err)
		}
		backends = append(backends, named{name: entry.Name, p: p})
		slog.Info("provider created", "kind", "tts", "name", entry.Name)
	}

	cb := cfg.Synthesis.CircuitBreaker
	fbCfg := resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  cb.MaxFailures,
			ResetTimeout: cb.ResetTimeout,
			HalfOpenMax:  cb.HalfOpenMax,
		},
	}

	if len(backends) > 0 {
		group := resilience.NewTTSFallback(backends[0].p, backends[0].name, fbCfg)
		for _, b := range backends[1:] {
			group.AddFallback(b.name, b.p)
		}
		ps.TTS, ps.TTSName, ps.Breakers = group, backends[0].name, group
	} else {
		slog.Warn("no tts provider available, synthesis will return simulated audio")
	}

	if entry := cfg.Providers.LLM; entry.Name != "" {
		p, err := reg.CreateLLM(entry)
		if err != nil {
			slog.Warn("llm provider unavailable, using canned dialogue", "name", entry.Name, "err", err)
		} else {
			ps.LLM, ps.LLMName = resilience.NewLLMFallback(p, entry.Name, fbCfg), entry.Name
			slog.Info("provider created", "kind", "llm", "name", entry.Name, "model", modelFor(entry))
		}
	}
	return ps, nil
}

func modelFor(entry config.ProviderEntry) string {
	if entry.Model != "" {
		return entry.Model
	}
	return defaultModels[entry.Name]
}

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	s, _ := opts[key].(string)
	return s
}
