// Package character holds the character profiles that give each synthesized
// line its base voice.
//
// Profiles come from three sources, merged by id in this order (later wins):
// the built-in cast ([Builtin]), a YAML file ([LoadFile]) or inline config
// entries, and an optional PostgreSQL table ([PostgresStore]). The merged set
// is frozen into an immutable [Catalog]; a [Store] publishes the current
// catalog to readers and lets a reload swap in a new one atomically.
package character

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned by lookups that do not substitute the default.
var ErrNotFound = errors.New("character: not found")

// Provider-accepted ranges for base voice values.
const (
	MinBase = 0.5
	MaxBase = 2.0
)

// Voice is a character's base voice configuration.
type Voice struct {
	// ProviderVoiceID is the voice identifier passed to the TTS provider.
	ProviderVoiceID string `yaml:"provider_voice_id" json:"provider_voice_id"`

	// BaseSpeed is the speaking rate before emotion modifiers (1.0 = normal).
	BaseSpeed float64 `yaml:"base_speed" json:"base_speed"`

	// BasePitch is the pitch factor before emotion modifiers (1.0 = normal).
	BasePitch float64 `yaml:"base_pitch" json:"base_pitch"`
}

// Character is a named speaker profile. Values are copied out of the catalog,
// so callers may not affect other readers.
type Character struct {
	ID            string `yaml:"id" json:"id"`
	Name          string `yaml:"name" json:"name"`
	Description   string `yaml:"description" json:"description"`
	Personality   string `yaml:"personality" json:"personality"`
	SpeakingStyle string `yaml:"speaking_style" json:"speaking_style"`
	Voice         Voice  `yaml:"voice" json:"voice"`
}

// withDefaults fills a zero base speed or pitch with 1.0.
func (c Character) withDefaults() Character {
	if c.Voice.BaseSpeed == 0 {
		c.Voice.BaseSpeed = 1.0
	}
	if c.Voice.BasePitch == 0 {
		c.Voice.BasePitch = 1.0
	}
	if c.Name == "" {
		c.Name = c.ID
	}
	return c
}

// Validate returns every problem found in c joined into one error, or nil.
// A zero base speed or pitch is valid and means 1.0.
func (c *Character) Validate() error {
	var errs []error
	if strings.TrimSpace(c.ID) == "" {
		errs = append(errs, errors.New("character: id must not be empty"))
	}
	if c.Voice.BaseSpeed != 0 && (c.Voice.BaseSpeed < MinBase || c.Voice.BaseSpeed > MaxBase) {
		errs = append(errs, fmt.Errorf("character %q: voice base_speed must be in [%g, %g], got %g", c.ID, MinBase, MaxBase, c.Voice.BaseSpeed))
	}
	if c.Voice.BasePitch != 0 && (c.Voice.BasePitch < MinBase || c.Voice.BasePitch > MaxBase) {
		errs = append(errs, fmt.Errorf("character %q: voice base_pitch must be in [%g, %g], got %g", c.ID, MinBase, MaxBase, c.Voice.BasePitch))
	}
	return errors.Join(errs...)
}
