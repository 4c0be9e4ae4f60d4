package config_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/voiceforge/voiceforge/internal/config"
	"github.com/voiceforge/voiceforge/pkg/provider/llm"
	llmmock "github.com/voiceforge/voiceforge/pkg/provider/llm/mock"
	"github.com/voiceforge/voiceforge/pkg/provider/tts"
	ttsmock "github.com/voiceforge/voiceforge/pkg/provider/tts/mock"
)

// ── helpers ──────────────────────────────────────────────────────────────────

const sampleYAML = `
server:
  listen_addr: ":8080"
  public_url: "https://voice.example"
  log_level: debug
  allowed_origins: ["https://app.example"]

providers:
  tts:
    name: elevenlabs
    api_key: el-test
    timeout: 20s
  llm:
    name: openai
    api_key: sk-test
    model: gpt-4o-mini

synthesis:
  timeout: 5s
  speed_range: {min: 0.7, max: 1.5}
  circuit_breaker:
    max_failures: 2
    reset_timeout: 10s
  fallback_providers:
    - name: coqui
      base_url: http://localhost:5002

characters:
  default: sage
  entries:
    - id: sage
      name: Greymantle
      personality: speaks in riddles
      voice:
        provider_voice_id: sage-v1
        base_speed: 0.9

audio:
  max_files: 10
`

// ── YAML loading ──────────────────────────────────────────────────────────────

func TestLoadFromReader_Valid(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("server.listen_addr: got %q, want %q", cfg.Server.ListenAddr, ":8080")
	}
	if cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("server.log_level: got %q, want %q", cfg.Server.LogLevel, config.LogDebug)
	}
	if cfg.Providers.TTS.Timeout != 20*time.Second {
		t.Errorf("providers.tts.timeout: got %v, want 20s", cfg.Providers.TTS.Timeout)
	}
	if cfg.Synthesis.Timeout != 5*time.Second {
		t.Errorf("synthesis.timeout: got %v, want 5s", cfg.Synthesis.Timeout)
	}
	if cfg.Synthesis.SpeedRange != (config.Range{Min: 0.7, Max: 1.5}) {
		t.Errorf("synthesis.speed_range: got %+v", cfg.Synthesis.SpeedRange)
	}
	if cfg.Synthesis.PitchRange != config.DefaultRange {
		t.Errorf("synthesis.pitch_range: got %+v, want default", cfg.Synthesis.PitchRange)
	}
	if cfg.Synthesis.CircuitBreaker.MaxFailures != 2 || cfg.Synthesis.CircuitBreaker.ResetTimeout != 10*time.Second {
		t.Errorf("synthesis.circuit_breaker: got %+v", cfg.Synthesis.CircuitBreaker)
	}
	if len(cfg.Synthesis.FallbackProviders) != 1 || cfg.Synthesis.FallbackProviders[0].Name != "coqui" {
		t.Errorf("synthesis.fallback_providers: got %+v", cfg.Synthesis.FallbackProviders)
	}
	if len(cfg.Characters.Entries) != 1 {
		t.Fatalf("characters.entries: got %d, want 1", len(cfg.Characters.Entries))
	}
	if v := cfg.Characters.Entries[0].Voice; v.ProviderVoiceID != "sage-v1" || v.BaseSpeed != 0.9 {
		t.Errorf("characters.entries[0].voice: got %+v", v)
	}
	if cfg.Audio.MaxFiles != 10 {
		t.Errorf("audio.max_files: got %d, want 10", cfg.Audio.MaxFiles)
	}
}

func TestLoadFromReader_EmptyUsesDefaults(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("unexpected error for empty config: %v", err)
	}
	if cfg.Server.ListenAddr != config.DefaultListenAddr {
		t.Errorf("listen_addr: got %q", cfg.Server.ListenAddr)
	}
	if cfg.Providers.TTS.Name != config.DefaultTTSProvider {
		t.Errorf("providers.tts.name: got %q", cfg.Providers.TTS.Name)
	}
	if cfg.Synthesis.Timeout != config.DefaultSynthesisTimeout {
		t.Errorf("synthesis.timeout: got %v", cfg.Synthesis.Timeout)
	}
	if cfg.Audio.Dir != "static/audio" {
		t.Errorf("audio.dir: got %q, want static/audio", cfg.Audio.Dir)
	}
	if cfg.Audio.MaxFiles != config.DefaultMaxFiles || cfg.Audio.SimulatedDuration != config.DefaultSimulatedDuration {
		t.Errorf("audio: got %+v", cfg.Audio)
	}
	if len(cfg.Server.AllowedOrigins) != 2 {
		t.Errorf("allowed_origins: got %v", cfg.Server.AllowedOrigins)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader("server:\n  listen_adr: \":1\"\n"))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestLogLevel_Level(t *testing.T) {
	tests := map[config.LogLevel]string{
		config.LogDebug: "DEBUG",
		config.LogInfo:  "INFO",
		config.LogWarn:  "WARN",
		config.LogError: "ERROR",
		"bogus":         "INFO",
	}
	for in, want := range tests {
		if got := in.Level().String(); got != want {
			t.Errorf("%q.Level() = %s, want %s", in, got, want)
		}
	}
}

// ── Registry ──────────────────────────────────────────────────────────────────

func TestRegistry_UnknownTTS(t *testing.T) {
	reg := config.NewRegistry()
	_, err := reg.CreateTTS(config.ProviderEntry{Name: "nope"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("expected ErrProviderNotRegistered, got %v", err)
	}
}

func TestRegistry_UnknownLLM(t *testing.T) {
	reg := config.NewRegistry()
	_, err := reg.CreateLLM(config.ProviderEntry{Name: "nope"})
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Errorf("expected ErrProviderNotRegistered, got %v", err)
	}
}

func TestRegistry_Registered(t *testing.T) {
	reg := config.NewRegistry()
	want := &ttsmock.Provider{}
	var gotEntry config.ProviderEntry
	reg.RegisterTTS("mock", func(e config.ProviderEntry) (tts.Provider, error) {
		gotEntry = e
		return want, nil
	})
	reg.RegisterLLM("mock", func(config.ProviderEntry) (llm.Provider, error) {
		return &llmmock.Provider{}, nil
	})

	p, err := reg.CreateTTS(config.ProviderEntry{Name: "mock", APIKey: "k"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != want {
		t.Error("CreateTTS returned a different provider")
	}
	if gotEntry.APIKey != "k" {
		t.Errorf("factory entry: got %+v", gotEntry)
	}
	if _, err := reg.CreateLLM(config.ProviderEntry{Name: "mock"}); err != nil {
		t.Errorf("CreateLLM: %v", err)
	}
	if names := reg.TTSNames(); len(names) != 1 || names[0] != "mock" {
		t.Errorf("TTSNames: got %v", names)
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	reg := config.NewRegistry()
	reg.RegisterTTS("murf", func(config.ProviderEntry) (tts.Provider, error) {
		return nil, tts.ErrUnavailable
	})
	_, err := reg.CreateTTS(config.ProviderEntry{Name: "murf"})
	if !errors.Is(err, tts.ErrUnavailable) {
		t.Errorf("expected factory error, got %v", err)
	}
}

func TestRegistry_Check(t *testing.T) {
	reg := config.NewRegistry()
	reg.RegisterTTS("murf", func(config.ProviderEntry) (tts.Provider, error) { return nil, nil })

	cfg := &config.Config{}
	cfg.Providers.TTS.Name = "murf"
	if err := reg.Check(cfg); err != nil {
		t.Errorf("Check with registered tts and no llm: %v", err)
	}

	cfg.Providers.LLM.Name = "openai"
	cfg.Synthesis.FallbackProviders = []config.ProviderEntry{{Name: "coqui"}}
	err := reg.Check(cfg)
	if !errors.Is(err, config.ErrProviderNotRegistered) {
		t.Fatalf("Check: got %v, want ErrProviderNotRegistered", err)
	}
	for _, want := range []string{"providers.llm", "fallback_providers[0]"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should mention %s", err, want)
		}
	}
}
