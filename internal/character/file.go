package character

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// fileFormat is the top-level shape of a character YAML file.
type fileFormat struct {
	Characters []Character `yaml:"characters"`
}

// LoadFile reads characters from the YAML file at path.
func LoadFile(path string) ([]Character, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("character: open %q: %w", path, err)
	}
	defer f.Close()
	chars, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("character: %q: %w", path, err)
	}
	return chars, nil
}

// Decode parses a character YAML document of the form
//
//	characters:
//	  - id: hero
//	    name: Alex Hero
//	    voice: {provider_voice_id: en-US-marcus, base_speed: 1.1, base_pitch: 1.1}
//
// Unknown fields are rejected.
func Decode(r io.Reader) ([]Character, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	var ff fileFormat
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&ff); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return ff.Characters, nil
}
