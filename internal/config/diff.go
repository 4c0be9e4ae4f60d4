package config

import (
	"reflect"
	"sort"

	"github.com/voiceforge/voiceforge/internal/character"
)

// ConfigDiff describes what changed between two configs.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// CharactersChanged is true when the catalog must be rebuilt: a
	// character source or the default id changed.
	CharactersChanged bool
	CharacterChanges  []CharacterDiff

	// RestartRequired names changed sections that only take effect after a
	// restart.
	RestartRequired []string
}

// CharacterDiff describes what changed for a single inline character.
type CharacterDiff struct {
	ID           string
	Added        bool
	Removed      bool
	VoiceChanged bool
	TextChanged  bool
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	oc, nc := old.Characters, new.Characters
	if oc.Default != nc.Default || oc.File != nc.File || oc.PostgresDSN != nc.PostgresDSN {
		d.CharactersChanged = true
	}
	d.CharacterChanges = diffCharacters(oc.Entries, nc.Entries)
	if len(d.CharacterChanges) > 0 {
		d.CharactersChanged = true
	}

	oldServer, newServer := old.Server, new.Server
	oldServer.LogLevel, newServer.LogLevel = "", ""
	for _, s := range []struct {
		name     string
		old, new any
	}{
		{"server", oldServer, newServer},
		{"providers", old.Providers, new.Providers},
		{"synthesis", old.Synthesis, new.Synthesis},
		{"audio", old.Audio, new.Audio},
	} {
		if !reflect.DeepEqual(s.old, s.new) {
			d.RestartRequired = append(d.RestartRequired, s.name)
		}
	}
	return d
}

// Changed reports whether d records any difference.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.CharactersChanged || len(d.RestartRequired) > 0
}

func diffCharacters(old, new []character.Character) []CharacterDiff {
	oldByID := make(map[string]character.Character, len(old))
	for _, c := range old {
		oldByID[c.ID] = c
	}
	newByID := make(map[string]character.Character, len(new))
	for _, c := range new {
		newByID[c.ID] = c
	}

	var out []CharacterDiff
	for id, o := range oldByID {
		n, ok := newByID[id]
		if !ok {
			out = append(out, CharacterDiff{ID: id, Removed: true})
			continue
		}
		cd := CharacterDiff{ID: id, VoiceChanged: o.Voice != n.Voice}
		o.Voice, n.Voice = character.Voice{}, character.Voice{}
		cd.TextChanged = o != n
		if cd.VoiceChanged || cd.TextChanged {
			out = append(out, cd)
		}
	}
	for id := range newByID {
		if _, ok := oldByID[id]; !ok {
			out = append(out, CharacterDiff{ID: id, Added: true})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
