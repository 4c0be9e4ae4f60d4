// Package session tracks connected clients. Each session owns one transport,
// carries its selected character and runs at most one synthesis at a time;
// a second voice request while one is in flight is rejected as busy.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/voiceforge/voiceforge/internal/observe"
	"github.com/voiceforge/voiceforge/internal/voice"
)

// ErrSessionClosed is returned when sending on a closed session.
var ErrSessionClosed = errors.New("session: closed")

// Synthesizer produces voice results. [voice.Orchestrator] implements it.
type Synthesizer interface {
	Synthesize(ctx context.Context, req voice.Request) (voice.Result, error)
}

// Transport is the outbound half of a client channel.
type Transport interface {
	// Send writes one JSON message.
	Send(ctx context.Context, msg any) error
	// Close tears the channel down. It may be called more than once.
	Close(reason string)
}

// Option configures a [Manager].
type Option func(*Manager)

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(mg *Manager) {
		if m != nil {
			mg.metrics = m
		}
	}
}

// Manager is the registry of open sessions. All methods are safe for
// concurrent use.
type Manager struct {
	synth    Synthesizer
	catalogs voice.CatalogSource
	metrics  *observe.Metrics

	mu       sync.Mutex
	sessions map[string]*Session

	inflight sync.WaitGroup
}

// NewManager creates a Manager dispatching voice requests to synth and
// resolving character switches against catalogs.
func NewManager(synth Synthesizer, catalogs voice.CatalogSource, opts ...Option) *Manager {
	m := &Manager{
		synth:    synth,
		catalogs: catalogs,
		sessions: make(map[string]*Session),
	}
	for _, o := range opts {
		o(m)
	}
	if m.metrics == nil {
		m.metrics = observe.DefaultMetrics()
	}
	return m
}

// Open registers a new session for id. An existing session with the same id
// is closed first and its transport torn down.
func (m *Manager) Open(id string, t Transport) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:        id,
		mgr:       m,
		transport: t,
		ctx:       ctx,
		cancel:    cancel,
	}
	s.characterID = m.catalogs.Current().DefaultID()

	m.mu.Lock()
	old := m.sessions[id]
	m.sessions[id] = s
	m.mu.Unlock()

	if old != nil {
		observe.Logger(ctx).Info("session replaced by new connection", "session_id", id)
		old.closeWith("session replaced")
	}
	m.metrics.ActiveSessions.Add(ctx, 1)
	observe.Logger(ctx).Info("session opened", "session_id", id)
	return s
}

// Get returns the open session for id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// CloseAll closes every session and waits for in-flight dispatches to
// finish or be discarded.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.mu.Unlock()

	for _, s := range all {
		s.closeWith("server shutting down")
	}
	m.inflight.Wait()
}

// remove drops s from the registry unless a newer session took its id.
func (m *Manager) remove(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[s.id] == s {
		delete(m.sessions, s.id)
	}
}
