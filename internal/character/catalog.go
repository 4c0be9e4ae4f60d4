package character

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/antzucaro/matchr"
)

// defaultFuzzyThreshold is the minimum Jaro-Winkler similarity for a near-miss
// id (e.g. "vilain") to resolve to an existing character.
const defaultFuzzyThreshold = 0.92

// Catalog is an immutable, indexed set of characters with a designated
// default. It is safe for concurrent use without locking.
type Catalog struct {
	byID      map[string]Character
	byFolded  map[string]string
	ids       []string
	defaultID string
	threshold float64
}

// CatalogOption is a functional option for [NewCatalog].
type CatalogOption func(*Catalog)

// WithFuzzyThreshold sets the minimum Jaro-Winkler similarity accepted for
// near-miss ids. A value above 1 disables fuzzy matching. Default: 0.92.
func WithFuzzyThreshold(t float64) CatalogOption {
	return func(c *Catalog) {
		c.threshold = t
	}
}

// NewCatalog validates chars and freezes them into a Catalog. Later entries
// replace earlier ones with the same id. defaultID must name one of the
// characters; an empty defaultID means [DefaultID].
func NewCatalog(chars []Character, defaultID string, opts ...CatalogOption) (*Catalog, error) {
	if defaultID == "" {
		defaultID = DefaultID
	}
	c := &Catalog{
		byID:      make(map[string]Character, len(chars)),
		byFolded:  make(map[string]string, len(chars)),
		defaultID: defaultID,
		threshold: defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(c)
	}

	var errs []error
	for _, ch := range chars {
		if err := ch.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := c.byID[ch.ID]; !dup {
			c.ids = append(c.ids, ch.ID)
		}
		c.byID[ch.ID] = ch.withDefaults()
		c.byFolded[strings.ToLower(ch.ID)] = ch.ID
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if _, ok := c.byID[defaultID]; !ok {
		return nil, fmt.Errorf("character: default %q is not in the catalog", defaultID)
	}
	sort.Strings(c.ids)
	return c, nil
}

// Lookup finds the character for id by exact match, then case-insensitive
// match, then Jaro-Winkler near miss. It returns [ErrNotFound] when nothing
// matches.
func (c *Catalog) Lookup(id string) (Character, error) {
	id = strings.TrimSpace(id)
	if ch, ok := c.byID[id]; ok {
		return ch, nil
	}
	folded := strings.ToLower(id)
	if real, ok := c.byFolded[folded]; ok {
		return c.byID[real], nil
	}
	if folded == "" {
		return Character{}, ErrNotFound
	}

	bestID, bestScore := "", 0.0
	for f, real := range c.byFolded {
		score := matchr.JaroWinkler(folded, f, false)
		if score > bestScore || (score == bestScore && real < bestID) {
			bestID, bestScore = real, score
		}
	}
	if bestID != "" && bestScore >= c.threshold {
		return c.byID[bestID], nil
	}
	return Character{}, fmt.Errorf("%w: %q", ErrNotFound, id)
}

// Resolve returns the character for id, or the default character when id is
// empty or unknown. substituted reports whether the default was used in place
// of a non-empty id.
func (c *Catalog) Resolve(id string) (ch Character, substituted bool) {
	if strings.TrimSpace(id) == "" {
		return c.Default(), false
	}
	ch, err := c.Lookup(id)
	if err != nil {
		return c.Default(), true
	}
	return ch, false
}

// Default returns the default character.
func (c *Catalog) Default() Character {
	return c.byID[c.defaultID]
}

// DefaultID returns the id of the default character.
func (c *Catalog) DefaultID() string {
	return c.defaultID
}

// List returns all characters sorted by id.
func (c *Catalog) List() []Character {
	out := make([]Character, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, c.byID[id])
	}
	return out
}

// Len returns the number of characters.
func (c *Catalog) Len() int {
	return len(c.ids)
}

// Store publishes the current [Catalog]. Readers call Current per operation
// and keep the returned snapshot for its duration; Replace swaps in a new
// snapshot without disturbing readers of the old one.
type Store struct {
	cur atomic.Pointer[Catalog]
}

// NewStore returns a Store publishing initial, which must not be nil.
func NewStore(initial *Catalog) *Store {
	s := &Store{}
	s.cur.Store(initial)
	return s
}

// Current returns the published catalog.
func (s *Store) Current() *Catalog {
	return s.cur.Load()
}

// Replace publishes c. A nil c is ignored.
func (s *Store) Replace(c *Catalog) {
	if c != nil {
		s.cur.Store(c)
	}
}

// Merge concatenates character sources so that later sources win on
// conflicting ids when passed to [NewCatalog].
func Merge(sources ...[]Character) []Character {
	var n int
	for _, s := range sources {
		n += len(s)
	}
	out := make([]Character, 0, n)
	for _, s := range sources {
		out = append(out, s...)
	}
	return out
}
