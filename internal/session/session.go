package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voiceforge/voiceforge/internal/observe"
	"github.com/voiceforge/voiceforge/internal/voice"
)

const sendTimeout = 5 * time.Second

// State is a session's lifecycle state.
type State int32

const (
	// StateIdle accepts a voice request.
	StateIdle State = iota
	// StateBusy has one voice request in flight.
	StateBusy
	// StateClosed is terminal.
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBusy:
		return "busy"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is one connected client. Handle must be called from a single
// goroutine (the transport's read loop); everything else is safe for
// concurrent use.
type Session struct {
	id        string
	mgr       *Manager
	transport Transport

	// ctx is cancelled on close and bounds in-flight synthesis.
	ctx    context.Context
	cancel context.CancelFunc

	state     atomic.Int32
	closeOnce sync.Once

	mu          sync.Mutex
	characterID string

	// sendMu orders outbound messages and the Busy->Idle transition.
	sendMu sync.Mutex
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// CharacterID returns the character used for requests that name none.
func (s *Session) CharacterID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.characterID
}

// Done is closed when the session closes.
func (s *Session) Done() <-chan struct{} { return s.ctx.Done() }

// Handle processes one inbound frame.
func (s *Session) Handle(data []byte) {
	if s.State() == StateClosed {
		return
	}
	var msg Inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		s.reply(newError(CodeBadMessage, "invalid JSON message"))
		return
	}
	switch msg.Type {
	case TypeVoiceRequest:
		s.handleVoiceRequest(msg)
	case TypeCharacterSwitch:
		s.handleCharacterSwitch(msg)
	case "":
		s.reply(newError(CodeBadMessage, "message has no type"))
	default:
		s.reply(newError(CodeUnknownType, fmt.Sprintf("unknown message type %q", msg.Type)))
	}
}

func (s *Session) handleVoiceRequest(msg Inbound) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		s.reply(newError(CodeInvalidInput, "text is required"))
		return
	}
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateBusy)) {
		if s.State() == StateBusy {
			s.mgr.metrics.RecordBusy(s.ctx)
			observe.Logger(s.ctx).Debug("voice request rejected, session busy", "session_id", s.id)
			s.reply(newError(CodeBusy, "a voice request is already in progress"))
		}
		return
	}

	characterID := strings.TrimSpace(msg.CharacterID)
	if characterID == "" {
		characterID = s.CharacterID()
	}
	req := voice.Request{SessionID: s.id, Text: text, CharacterID: characterID}

	s.mgr.inflight.Add(1)
	go s.dispatch(req)
}

// dispatch runs one synthesis and delivers the outcome unless the session
// closed meanwhile.
func (s *Session) dispatch(req voice.Request) {
	defer s.mgr.inflight.Done()

	var out any
	res, err := s.mgr.synth.Synthesize(s.ctx, req)
	switch {
	case errors.Is(err, voice.ErrInvalidInput):
		out = newError(CodeInvalidInput, "text is required")
	case err != nil:
		// Unexpected; report it rather than leaving the client waiting.
		observe.Logger(s.ctx).Error("voice synthesis failed", "session_id", s.id, "err", err)
		out = newError(CodeInternal, "voice synthesis failed")
	default:
		out = VoiceResponse{Type: TypeVoiceResponse, Result: res}
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if !s.state.CompareAndSwap(int32(StateBusy), int32(StateIdle)) {
		observe.Logger(s.ctx).Debug("discarding late voice result", "session_id", s.id)
		return
	}
	if err := s.send(out); err != nil && s.State() != StateClosed {
		observe.Logger(s.ctx).Warn("failed to deliver voice response", "session_id", s.id, "err", err)
	}
}

func (s *Session) handleCharacterSwitch(msg Inbound) {
	ch, substituted := s.mgr.catalogs.Current().Resolve(msg.CharacterID)
	if substituted {
		observe.Logger(s.ctx).Info("unknown character, switching to default",
			"session_id", s.id, "requested", msg.CharacterID, "character_id", ch.ID)
	}
	s.mu.Lock()
	s.characterID = ch.ID
	s.mu.Unlock()

	s.reply(CharacterSwitched{Type: TypeCharacterSwitched, Character: ch.ID, Profile: ch})
}

// reply sends a control message in order with voice responses.
func (s *Session) reply(msg any) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	if err := s.send(msg); err != nil && !errors.Is(err, ErrSessionClosed) && s.State() != StateClosed {
		observe.Logger(s.ctx).Warn("failed to send message", "session_id", s.id, "err", err)
	}
}

// send must be called with sendMu held.
func (s *Session) send(msg any) error {
	if s.State() == StateClosed {
		return ErrSessionClosed
	}
	ctx, cancel := context.WithTimeout(s.ctx, sendTimeout)
	defer cancel()
	return s.transport.Send(ctx, msg)
}

// Close ends the session: it cancels any in-flight synthesis, whose result
// is then discarded, and removes the session from the registry.
func (s *Session) Close() {
	s.closeWith("")
}

func (s *Session) closeWith(reason string) {
	s.closeOnce.Do(func() {
		s.state.Store(int32(StateClosed))
		s.cancel()
		// Wait out a send that passed its state check before the store.
		s.sendMu.Lock()
		s.sendMu.Unlock()
		s.mgr.remove(s)
		s.mgr.metrics.ActiveSessions.Add(context.Background(), -1)
		if reason != "" {
			s.transport.Close(reason)
		}
		observe.Logger(context.Background()).Info("session closed", "session_id", s.id)
	})
}
