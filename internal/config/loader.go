package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// MaxSynthesisTimeout is the largest accepted synthesis.timeout.
const MaxSynthesisTimeout = 2 * time.Minute

// ValidProviderNames lists known provider names per kind.
var ValidProviderNames = map[string][]string{
	"tts": {"murf", "elevenlabs", "coqui", "mock"},
	"llm": {"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile", "mock"},
}

// Load reads the YAML file at path, overlays the process environment (after
// loading a .env file from the working directory, if any) and validates the
// result. A missing file yields defaults plus the environment.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if path != "" {
		f, err := os.Open(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			slog.Info("config file not found, using defaults", "path", path)
		case err != nil:
			return nil, fmt.Errorf("config: open %q: %w", path, err)
		default:
			defer f.Close()
			cfg, err = Decode(f)
			if err != nil {
				return nil, fmt.Errorf("config: %q: %w", path, err)
			}
		}
	}

	if err := ApplyEnv(cfg, os.Getenv); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r, applies defaults and validates. The
// environment is not consulted.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg, err := Decode(r)
	if err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode parses YAML from r. Unknown keys are rejected.
func Decode(r io.Reader) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return &cfg, nil
}

// ApplyEnv overlays environment values read through getenv onto cfg. Set
// variables win over file values.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	var errs []error
	s := &cfg.Server

	if v := getenv("VOICEFORGE_LISTEN_ADDR"); v != "" {
		s.ListenAddr = v
	} else if host, port := getenv("VOICEFORGE_HOST"), getenv("VOICEFORGE_PORT"); host != "" || port != "" {
		if port == "" {
			port = "8000"
		}
		s.ListenAddr = host + ":" + port
	}
	if v := getenv("VOICEFORGE_LOG_LEVEL"); v != "" {
		s.LogLevel = LogLevel(strings.ToLower(v))
	}
	if v := getenv("VOICEFORGE_PUBLIC_URL"); v != "" {
		s.PublicURL = v
	}
	if v := getenv("ALLOWED_ORIGINS"); v != "" {
		s.AllowedOrigins = splitList(v)
	}

	t := &cfg.Providers.TTS
	if v := getenv("TTS_PROVIDER"); v != "" {
		t.Name = v
	}
	if v := firstEnv(getenv, "TTS_API_KEY", keyEnvFor(t.Name, "tts")); v != "" {
		t.APIKey = v
	}
	if v := getenv("TTS_BASE_URL"); v != "" {
		t.BaseURL = v
	}
	if v := getenv("TTS_TIMEOUT"); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: TTS_TIMEOUT: %w", err))
		} else {
			t.Timeout = d
		}
	}

	l := &cfg.Providers.LLM
	if v := getenv("LLM_PROVIDER"); v != "" {
		l.Name = v
	}
	if l.Name == "" {
		switch {
		case getenv("GEMINI_API_KEY") != "":
			l.Name = "gemini"
		case getenv("OPENAI_API_KEY") != "":
			l.Name = "openai"
		}
	}
	if v := firstEnv(getenv, "LLM_API_KEY", keyEnvFor(l.Name, "llm")); v != "" {
		l.APIKey = v
	}
	if v := getenv("LLM_MODEL"); v != "" {
		l.Model = v
	}

	if v := getenv("DATABASE_URL"); v != "" {
		cfg.Characters.PostgresDSN = v
	}
	return errors.Join(errs...)
}

// keyEnvFor returns the vendor-specific API key variable for a provider name.
func keyEnvFor(name, kind string) string {
	switch kind + "/" + name {
	case "tts/murf", "tts/":
		return "MURF_API_KEY"
	case "tts/elevenlabs":
		return "ELEVENLABS_API_KEY"
	case "llm/openai":
		return "OPENAI_API_KEY"
	case "llm/gemini":
		return "GEMINI_API_KEY"
	}
	return ""
}

func firstEnv(getenv func(string) string, keys ...string) string {
	for _, k := range keys {
		if k == "" {
			continue
		}
		if v := getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// parseDuration accepts Go durations ("10s") and bare seconds ("10").
func parseDuration(v string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(v)
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks cfg for consistency and returns all problems joined into
// one error. It expects defaults to have been applied.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level: invalid value %q (want debug|info|warn|error)", cfg.Server.LogLevel))
	}
	if cfg.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr: must not be empty"))
	}

	errs = append(errs, validateProviderName("providers.tts", "tts", cfg.Providers.TTS.Name, true))
	errs = append(errs, validateProviderName("providers.llm", "llm", cfg.Providers.LLM.Name, false))
	for i, fb := range cfg.Synthesis.FallbackProviders {
		errs = append(errs, validateProviderName(fmt.Sprintf("synthesis.fallback_providers[%d]", i), "tts", fb.Name, true))
	}
	if cfg.Providers.TTS.Timeout < 0 {
		errs = append(errs, errors.New("providers.tts.timeout: must not be negative"))
	}

	syn := cfg.Synthesis
	if syn.Timeout <= 0 || syn.Timeout > MaxSynthesisTimeout {
		errs = append(errs, fmt.Errorf("synthesis.timeout: must be in (0, %s], got %s", MaxSynthesisTimeout, syn.Timeout))
	}
	errs = append(errs, validateRange("synthesis.speed_range", syn.SpeedRange))
	errs = append(errs, validateRange("synthesis.pitch_range", syn.PitchRange))
	cb := syn.CircuitBreaker
	if cb.MaxFailures < 0 || cb.HalfOpenMax < 0 || cb.ResetTimeout < 0 {
		errs = append(errs, errors.New("synthesis.circuit_breaker: values must not be negative"))
	}

	seen := make(map[string]int, len(cfg.Characters.Entries))
	for i := range cfg.Characters.Entries {
		ch := &cfg.Characters.Entries[i]
		if err := ch.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("characters.entries[%d]: %w", i, err))
		}
		if prev, dup := seen[ch.ID]; dup && ch.ID != "" {
			errs = append(errs, fmt.Errorf("characters.entries[%d]: duplicate id %q (first at index %d)", i, ch.ID, prev))
		} else {
			seen[ch.ID] = i
		}
	}

	if cfg.Audio.MaxFiles < 0 {
		errs = append(errs, fmt.Errorf("audio.max_files: must not be negative, got %d", cfg.Audio.MaxFiles))
	}
	if cfg.Audio.SimulatedDuration < 0 || cfg.Audio.CleanupInterval < 0 {
		errs = append(errs, errors.New("audio: durations must not be negative"))
	}

	return errors.Join(errs...)
}

func validateProviderName(field, kind, name string, required bool) error {
	if name == "" {
		if required {
			return fmt.Errorf("%s.name: must not be empty", field)
		}
		return nil
	}
	for _, n := range ValidProviderNames[kind] {
		if n == name {
			return nil
		}
	}
	return fmt.Errorf("%s.name: unknown provider %q", field, name)
}

func validateRange(field string, r Range) error {
	if r.Min <= 0 || r.Max < r.Min {
		return fmt.Errorf("%s: want 0 < min <= max, got [%g, %g]", field, r.Min, r.Max)
	}
	return nil
}
