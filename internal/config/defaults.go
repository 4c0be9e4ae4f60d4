package config

import (
	"path/filepath"
	"time"
)

// Default values applied by [ApplyDefaults].
const (
	DefaultListenAddr        = ":8000"
	DefaultPublicURL         = "http://localhost:8000"
	DefaultStaticDir         = "static"
	DefaultTTSProvider       = "murf"
	DefaultSynthesisTimeout  = 10 * time.Second
	DefaultMaxFiles          = 50
	DefaultCleanupInterval   = time.Minute
	DefaultSimulatedDuration = 3 * time.Second
)

// DefaultAllowedOrigins are the development front-end origins.
var DefaultAllowedOrigins = []string{"http://localhost:3000", "http://127.0.0.1:3000"}

// DefaultRange bounds effective speed and pitch.
var DefaultRange = Range{Min: 0.5, Max: 2.0}

// ApplyDefaults fills every zero field of cfg that has a default.
func ApplyDefaults(cfg *Config) {
	s := &cfg.Server
	if s.ListenAddr == "" {
		s.ListenAddr = DefaultListenAddr
	}
	if s.PublicURL == "" {
		s.PublicURL = DefaultPublicURL
	}
	if s.LogLevel == "" {
		s.LogLevel = LogInfo
	}
	if len(s.AllowedOrigins) == 0 {
		s.AllowedOrigins = append([]string(nil), DefaultAllowedOrigins...)
	}
	if s.StaticDir == "" {
		s.StaticDir = DefaultStaticDir
	}

	if cfg.Providers.TTS.Name == "" {
		cfg.Providers.TTS.Name = DefaultTTSProvider
	}

	syn := &cfg.Synthesis
	if syn.Timeout == 0 {
		syn.Timeout = DefaultSynthesisTimeout
	}
	if syn.SpeedRange == (Range{}) {
		syn.SpeedRange = DefaultRange
	}
	if syn.PitchRange == (Range{}) {
		syn.PitchRange = DefaultRange
	}

	a := &cfg.Audio
	if a.Dir == "" {
		a.Dir = filepath.Join(s.StaticDir, "audio")
	}
	if a.MaxFiles == 0 {
		a.MaxFiles = DefaultMaxFiles
	}
	if a.CleanupInterval == 0 {
		a.CleanupInterval = DefaultCleanupInterval
	}
	if a.SimulatedDuration == 0 {
		a.SimulatedDuration = DefaultSimulatedDuration
	}
}
