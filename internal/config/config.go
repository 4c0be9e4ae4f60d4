// Package config provides the configuration schema, loader, provider registry
// and hot-reload watcher for the VoiceForge server.
//
// Configuration is read from a YAML file and then overlaid with environment
// variables (including those from a .env file), so a deployment can run with
// no file at all.
package config

import (
	"log/slog"
	"time"

	"github.com/voiceforge/voiceforge/internal/character"
)

// LogLevel controls log verbosity for the server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level maps l to a [slog.Level]. Unknown values map to info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Config is the root configuration structure.
// It is typically loaded with [Load] or [LoadFromReader].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Synthesis  SynthesisConfig  `yaml:"synthesis"`
	Characters CharactersConfig `yaml:"characters"`
	Audio      AudioConfig      `yaml:"audio"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8000").
	ListenAddr string `yaml:"listen_addr"`

	// PublicURL is the externally reachable base URL used in audio links.
	PublicURL string `yaml:"public_url"`

	// LogLevel controls verbosity. It can be changed without a restart.
	LogLevel LogLevel `yaml:"log_level"`

	// AllowedOrigins lists origins allowed by CORS and the websocket
	// handshake. "*" allows any origin.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// StaticDir is served under /static/.
	StaticDir string `yaml:"static_dir"`
}

// ProvidersConfig selects the speech and language providers.
type ProvidersConfig struct {
	TTS ProviderEntry `yaml:"tts"`
	LLM ProviderEntry `yaml:"llm"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "murf", "openai").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any. Hosted
	// providers without a key are treated as unavailable.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model or voice engine within the provider.
	Model string `yaml:"model"`

	// Timeout bounds a single HTTP call made by the adapter. Zero keeps the
	// adapter's default.
	Timeout time.Duration `yaml:"timeout"`

	// Options holds provider-specific values not covered above.
	Options map[string]any `yaml:"options"`
}

// SynthesisConfig tunes the voice orchestrator.
type SynthesisConfig struct {
	// Timeout bounds one provider call. Default: 10s.
	Timeout time.Duration `yaml:"timeout"`

	// SpeedRange and PitchRange clamp the effective voice parameters.
	SpeedRange Range `yaml:"speed_range"`
	PitchRange Range `yaml:"pitch_range"`

	// CircuitBreaker applies to every TTS provider.
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`

	// FallbackProviders are tried in order after the primary TTS provider.
	FallbackProviders []ProviderEntry `yaml:"fallback_providers"`
}

// Range is an inclusive numeric range.
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// CircuitBreakerConfig mirrors the breaker's tuning knobs. Zero values keep
// the breaker's defaults.
type CircuitBreakerConfig struct {
	MaxFailures  int           `yaml:"max_failures"`
	ResetTimeout time.Duration `yaml:"reset_timeout"`
	HalfOpenMax  int           `yaml:"half_open_max"`
}

// CharactersConfig lists where characters come from. The built-in cast is
// always present.
type CharactersConfig struct {
	// Default is the character used for unknown ids. Default: narrator.
	Default string `yaml:"default"`

	// File is an optional YAML file of characters.
	File string `yaml:"file"`

	// PostgresDSN enables the characters table when set.
	PostgresDSN string `yaml:"postgres_dsn"`

	// Entries are inline characters.
	Entries []character.Character `yaml:"entries"`
}

// AudioConfig controls stored audio and simulated playback.
type AudioConfig struct {
	// Dir is where provider audio bytes are written. Default: {static_dir}/audio.
	Dir string `yaml:"dir"`

	// MaxFiles is how many stored files are kept. Default: 50.
	MaxFiles int `yaml:"max_files"`

	// CleanupInterval is how often old files are pruned. Default: 1m.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`

	// SimulatedDuration is how long clients play a fallback sentinel.
	// Default: 3s.
	SimulatedDuration time.Duration `yaml:"simulated_duration"`
}
