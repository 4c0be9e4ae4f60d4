// Package audiostore persists synthesized audio bytes under a directory that
// is served at /static/audio/ and keeps that directory bounded.
//
// File names are "{prefix}_{xid}{ext}" where prefix is sanitised to
// [a-z0-9_-]. Writes go through a temp file and a rename so the file server
// never sees a partial file.
package audiostore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"
)

// DefaultMaxFiles is the number of audio files kept when no limit is given.
const DefaultMaxFiles = 50

// URLPath is the path prefix the stored files are served under.
const URLPath = "/static/audio/"

// ErrEmpty is returned by Save for zero-length audio.
var ErrEmpty = errors.New("audiostore: empty audio")

// Store writes audio files into Dir and builds their public URLs.
type Store struct {
	dir       string
	publicURL string
	maxFiles  int

	// mu serialises Cleanup against itself; Save is lock-free.
	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithMaxFiles sets how many files Cleanup keeps. Values <= 0 keep the default.
func WithMaxFiles(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxFiles = n
		}
	}
}

// New creates the directory if needed and returns a Store. publicURL is the
// externally reachable base URL of the server, e.g. "http://localhost:8000".
func New(dir, publicURL string, opts ...Option) (*Store, error) {
	if dir == "" {
		return nil, errors.New("audiostore: dir must not be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("audiostore: create %s: %w", dir, err)
	}
	s := &Store{
		dir:       dir,
		publicURL: strings.TrimRight(publicURL, "/"),
		maxFiles:  DefaultMaxFiles,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Dir returns the directory files are written to.
func (s *Store) Dir() string { return s.dir }

// Save writes data to a new file and returns its public URL.
func (s *Store) Save(data []byte, contentType, prefix string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmpty
	}
	name := sanitize(prefix) + "_" + xid.New().String() + extension(contentType)

	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("audiostore: save: %w", err)
	}
	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("audiostore: save: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("audiostore: save: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("audiostore: save: %w", err)
	}
	return s.publicURL + URLPath + name, nil
}

// Cleanup removes the oldest audio files until at most maxFiles remain and
// returns how many were removed. Temp files and other extensions are left
// alone.
func (s *Store) Cleanup() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("audiostore: cleanup: %w", err)
	}

	type file struct {
		path string
		mod  time.Time
	}
	var files []file
	for _, e := range entries {
		if e.IsDir() || !isAudio(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, file{path: filepath.Join(s.dir, e.Name()), mod: info.ModTime()})
	}
	if len(files) <= s.maxFiles {
		return 0, nil
	}

	// Oldest first; xid names sort by creation time when mtimes tie.
	slices.SortFunc(files, func(a, b file) int {
		if c := a.mod.Compare(b.mod); c != 0 {
			return c
		}
		return strings.Compare(idOf(a.path), idOf(b.path))
	})

	var (
		removed int
		errs    []error
	)
	for _, f := range files[:len(files)-s.maxFiles] {
		if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

// Run calls Cleanup every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			n, err := s.Cleanup()
			if err != nil {
				slog.Warn("audio cleanup failed", "dir", s.dir, "err", err)
			} else if n > 0 {
				slog.Debug("audio cleanup", "dir", s.dir, "removed", n)
			}
		}
	}
}

func extension(contentType string) string {
	ct, _, _ := strings.Cut(strings.ToLower(contentType), ";")
	switch strings.TrimSpace(ct) {
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/ogg":
		return ".ogg"
	default:
		return ".wav"
	}
}

func isAudio(name string) bool {
	switch filepath.Ext(name) {
	case ".wav", ".mp3", ".ogg":
		return !strings.HasPrefix(name, ".")
	}
	return false
}

// idOf returns the xid part of a stored file name.
func idOf(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if i := strings.LastIndexByte(base, '_'); i >= 0 {
		return base[i+1:]
	}
	return base
}

func sanitize(prefix string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(prefix) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '.':
			b.WriteByte('-')
		}
	}
	if b.Len() == 0 {
		return "audio"
	}
	return b.String()
}
