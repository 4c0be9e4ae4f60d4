package health

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/voiceforge/voiceforge/internal/voice"
)

// Catalog fails when no character catalog is published or it is empty.
func Catalog(src voice.CatalogSource) Checker {
	return Checker{Name: "catalog", Check: func(context.Context) error {
		c := src.Current()
		if c == nil || c.Len() == 0 {
			return errors.New("no characters loaded")
		}
		return nil
	}}
}

// DirWritable fails when a file cannot be created in dir.
func DirWritable(name, dir string) Checker {
	return Checker{Name: name, Check: func(context.Context) error {
		f, err := os.CreateTemp(dir, ".readyz-*")
		if err != nil {
			return fmt.Errorf("not writable: %w", err)
		}
		path := f.Name()
		f.Close()
		return os.Remove(filepath.Clean(path))
	}}
}

// Pinger is implemented by database handles such as *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping wraps p as a checker.
func Ping(name string, p Pinger) Checker {
	return Checker{Name: name, Check: p.Ping}
}
