package character

import (
	"context"
	"fmt"
)

// Lister is a source of persisted characters, such as [PostgresStore].
type Lister interface {
	List(ctx context.Context) ([]Character, error)
}

// Sources describes where a catalog's characters come from.
type Sources struct {
	// Entries are inline characters, typically from the main config file.
	Entries []Character

	// File is an optional character YAML file.
	File string

	// DB is an optional persisted source.
	DB Lister

	// Default is the default character id. Empty means [DefaultID].
	Default string
}

// Build merges the built-in cast with every configured source and freezes the
// result into a [Catalog]. Precedence, lowest first: built-ins, Entries, File,
// DB.
func Build(ctx context.Context, src Sources, opts ...CatalogOption) (*Catalog, error) {
	layers := [][]Character{Builtin(), src.Entries}
	if src.File != "" {
		fromFile, err := LoadFile(src.File)
		if err != nil {
			return nil, err
		}
		layers = append(layers, fromFile)
	}
	if src.DB != nil {
		fromDB, err := src.DB.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("character: load from database: %w", err)
		}
		layers = append(layers, fromDB)
	}
	return NewCatalog(Merge(layers...), src.Default, opts...)
}
