package config_test

import (
	"slices"
	"testing"

	"github.com/voiceforge/voiceforge/internal/character"
	"github.com/voiceforge/voiceforge/internal/config"
)

func baseConfig() *config.Config {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Characters.Entries = []character.Character{
		{ID: "sage", Personality: "wise", Voice: character.Voice{ProviderVoiceID: "v1"}},
		{ID: "imp", Personality: "sly"},
	}
	return cfg
}

func TestDiff_NoChanges(t *testing.T) {
	d := config.Diff(baseConfig(), baseConfig())
	if d.Changed() {
		t.Errorf("expected no changes, got %+v", d)
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	old, new := baseConfig(), baseConfig()
	new.Server.LogLevel = config.LogDebug

	d := config.Diff(old, new)
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
		t.Errorf("log level diff: got %+v", d)
	}
	if len(d.RestartRequired) != 0 {
		t.Errorf("log level alone should not require restart, got %v", d.RestartRequired)
	}
}

func TestDiff_Characters(t *testing.T) {
	old, new := baseConfig(), baseConfig()
	new.Characters.Entries[0].Voice.BaseSpeed = 1.2
	new.Characters.Entries[1] = character.Character{ID: "golem"}

	d := config.Diff(old, new)
	if !d.CharactersChanged {
		t.Fatal("CharactersChanged = false, want true")
	}
	want := []config.CharacterDiff{
		{ID: "golem", Added: true},
		{ID: "imp", Removed: true},
		{ID: "sage", VoiceChanged: true},
	}
	if !slices.Equal(d.CharacterChanges, want) {
		t.Errorf("character changes:\n got %+v\nwant %+v", d.CharacterChanges, want)
	}
}

func TestDiff_CharacterText(t *testing.T) {
	old, new := baseConfig(), baseConfig()
	new.Characters.Entries[1].Personality = "cunning"

	d := config.Diff(old, new)
	if len(d.CharacterChanges) != 1 || !d.CharacterChanges[0].TextChanged || d.CharacterChanges[0].VoiceChanged {
		t.Errorf("character changes: got %+v", d.CharacterChanges)
	}
}

func TestDiff_CharacterSources(t *testing.T) {
	old, new := baseConfig(), baseConfig()
	new.Characters.File = "cast.yaml"
	if d := config.Diff(old, new); !d.CharactersChanged || len(d.CharacterChanges) != 0 {
		t.Errorf("file change: got %+v", d)
	}
}

func TestDiff_RestartRequired(t *testing.T) {
	old, new := baseConfig(), baseConfig()
	new.Server.ListenAddr = ":9999"
	new.Providers.TTS.APIKey = "rotated"
	new.Audio.MaxFiles = 3

	d := config.Diff(old, new)
	want := []string{"server", "providers", "audio"}
	if !slices.Equal(d.RestartRequired, want) {
		t.Errorf("RestartRequired: got %v, want %v", d.RestartRequired, want)
	}
	if d.CharactersChanged || d.LogLevelChanged {
		t.Errorf("unexpected hot changes: %+v", d)
	}
}
