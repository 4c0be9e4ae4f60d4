package config

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/voiceforge/voiceforge/pkg/provider/llm"
	"github.com/voiceforge/voiceforge/pkg/provider/tts"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu  sync.RWMutex
	llm map[string]func(ProviderEntry) (llm.Provider, error)
	tts map[string]func(ProviderEntry) (tts.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		llm: make(map[string]func(ProviderEntry) (llm.Provider, error)),
		tts: make(map[string]func(ProviderEntry) (tts.Provider, error)),
	}
}

// RegisterLLM registers an LLM provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterLLM(name string, factory func(ProviderEntry) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = factory
}

// RegisterTTS registers a TTS provider factory under name.
func (r *Registry) RegisterTTS(name string, factory func(ProviderEntry) (tts.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts[name] = factory
}

// CreateLLM instantiates the LLM provider named by entry.Name.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	f, ok := r.llm[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: llm/%q", ErrProviderNotRegistered, entry.Name)
	}
	return f(entry)
}

// CreateTTS instantiates the TTS provider named by entry.Name.
func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Provider, error) {
	r.mu.RLock()
	f, ok := r.tts[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: tts/%q", ErrProviderNotRegistered, entry.Name)
	}
	return f(entry)
}

// TTSNames returns the registered TTS provider names, sorted.
func (r *Registry) TTSNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.tts)
}

// LLMNames returns the registered LLM provider names, sorted.
func (r *Registry) LLMNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.llm)
}

// Check reports every provider named in cfg that has no registered factory.
// An empty LLM name is allowed and means canned dialogue only.
func (r *Registry) Check(cfg *Config) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	if _, ok := r.tts[cfg.Providers.TTS.Name]; !ok {
		errs = append(errs, fmt.Errorf("providers.tts: %w: %q", ErrProviderNotRegistered, cfg.Providers.TTS.Name))
	}
	for i, fb := range cfg.Synthesis.FallbackProviders {
		if _, ok := r.tts[fb.Name]; !ok {
			errs = append(errs, fmt.Errorf("synthesis.fallback_providers[%d]: %w: %q", i, ErrProviderNotRegistered, fb.Name))
		}
	}
	if name := cfg.Providers.LLM.Name; name != "" {
		if _, ok := r.llm[name]; !ok {
			errs = append(errs, fmt.Errorf("providers.llm: %w: %q", ErrProviderNotRegistered, name))
		}
	}
	return errors.Join(errs...)
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
