package session

import (
	"context"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/xid"

	"github.com/voiceforge/voiceforge/internal/observe"
)

// readLimit caps inbound frames; voice requests are short text.
const readLimit = 64 << 10

// wsTransport adapts a websocket connection to [Transport].
type wsTransport struct {
	conn *websocket.Conn
}

func (t wsTransport) Send(ctx context.Context, msg any) error {
	return wsjson.Write(ctx, t.conn, msg)
}

// Close runs the close handshake in the background; the read loop observes
// the closed connection and exits.
func (t wsTransport) Close(reason string) {
	go func() { _ = t.conn.Close(websocket.StatusPolicyViolation, reason) }()
}

// HandlerConfig configures [Manager.Handler].
type HandlerConfig struct {
	// OriginPatterns are host patterns allowed to connect cross-origin. "*"
	// allows any origin.
	OriginPatterns []string
}

// Handler returns the HTTP handler for the session channel. It expects to be
// mounted at a pattern with a {session_id} wildcard; an empty id gets a
// generated one.
func (m *Manager) Handler(cfg HandlerConfig) http.Handler {
	opts := &websocket.AcceptOptions{}
	for _, p := range cfg.OriginPatterns {
		if p == "*" {
			opts.InsecureSkipVerify = true
			continue
		}
		opts.OriginPatterns = append(opts.OriginPatterns, hostPattern(p))
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("session_id")
		if id == "" {
			id = xid.New().String()
		}

		conn, err := websocket.Accept(w, r, opts)
		if err != nil {
			observe.Logger(r.Context()).Warn("websocket accept failed", "session_id", id, "err", err)
			return
		}
		defer conn.CloseNow()
		conn.SetReadLimit(readLimit)

		s := m.Open(id, wsTransport{conn: conn})
		m.serve(r.Context(), s, conn)

		// The session closes first so a late result is dropped instead of
		// being written to a closing connection.
		s.Close()
		_ = conn.Close(websocket.StatusNormalClosure, "")
	})
}

// serve reads frames until the peer goes away or the session closes.
func (m *Manager) serve(ctx context.Context, s *Session, conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && ctx.Err() == nil {
				observe.Logger(ctx).Debug("websocket read ended", "session_id", s.ID(), "err", err)
			}
			return
		}
		if typ != websocket.MessageText {
			s.reply(newError(CodeBadMessage, "binary frames are not supported"))
			continue
		}
		s.Handle(data)
	}
}

// hostPattern strips a scheme so configured origins such as
// "http://localhost:3000" match the host patterns websocket.Accept expects.
func hostPattern(origin string) string {
	if i := strings.Index(origin, "://"); i >= 0 {
		origin = origin[i+3:]
	}
	return strings.TrimRight(origin, "/")
}
