package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/voiceforge/voiceforge/internal/character"
	"github.com/voiceforge/voiceforge/internal/emotion"
	"github.com/voiceforge/voiceforge/internal/session"
	"github.com/voiceforge/voiceforge/internal/voice"
	"github.com/voiceforge/voiceforge/pkg/playback"
)

func TestHTTPBase(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"ws://localhost:8000", "http://localhost:8000"},
		{"ws://localhost:8000/", "http://localhost:8000"},
		{"wss://voice.example", "https://voice.example"},
		{"http://already", "http://already"},
	}
	for _, tt := range tests {
		if got := httpBase(tt.in); got != tt.want {
			t.Errorf("httpBase(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDecodeReply(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{name: "match", data: `{"type":"voice_response","audio_url":"fallback://simulated","kind":"fallback"}`},
		{name: "server error", data: `{"type":"error","code":"busy","message":"request in progress"}`, wantErr: "busy"},
		{name: "other type", data: `{"type":"character_switched","character":"hero"}`, wantErr: "unexpected reply"},
		{name: "not json", data: `nope`, wantErr: "decode reply"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var r session.VoiceResponse
			err := decodeReply([]byte(tt.data), session.TypeVoiceResponse, &r)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("decodeReply: %v", err)
				}
				if r.AudioURL != voice.Sentinel || r.Kind != voice.KindFallback {
					t.Errorf("decoded %+v", r.Result)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestSimulatedDuration(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok","simulated_duration_ms":250}`))
	}))
	t.Cleanup(srv.Close)

	ctx := context.Background()
	if got := simulatedDuration(ctx, wsURL(srv.URL)); got != 250*time.Millisecond {
		t.Errorf("simulatedDuration = %v, want 250ms", got)
	}
	if got := simulatedDuration(ctx, wsURL(srv.URL)+"/missing"); got != playback.DefaultSimulatedDuration {
		t.Errorf("simulatedDuration without health = %v, want default", got)
	}
}

// synthFunc adapts a function to [session.Synthesizer].
type synthFunc func(ctx context.Context, req voice.Request) (voice.Result, error)

func (f synthFunc) Synthesize(ctx context.Context, req voice.Request) (voice.Result, error) {
	return f(ctx, req)
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func TestClient_SwitchAndSpeak(t *testing.T) {
	t.Parallel()

	cat, err := character.NewCatalog(character.Builtin(), "")
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	store := character.NewStore(cat)
	synth := synthFunc(func(_ context.Context, req voice.Request) (voice.Result, error) {
		return voice.Result{
			AudioURL:    voice.Sentinel,
			CharacterID: req.CharacterID,
			Text:        req.Text,
			Kind:        voice.KindFallback,
			Reason:      voice.ReasonUnavailable,
			Emotion:     emotion.Result{Primary: emotion.Emotion("joy"), Confidence: 0.75},
		}, nil
	})
	mgr := session.NewManager(synth, store)
	t.Cleanup(mgr.CloseAll)

	mux := http.NewServeMux()
	mux.Handle("GET /ws/{session_id}", mgr.Handler(session.HandlerConfig{OriginPatterns: []string{"*"}}))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, wsURL(srv.URL)+"/ws/cli-test", nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.CloseNow()

	var out bytes.Buffer
	c := &client{conn: conn, out: &out, simulated: 30 * time.Millisecond}

	if err := c.switchCharacter(ctx, "nobody"); err != nil {
		t.Fatalf("switchCharacter: %v", err)
	}
	if !strings.Contains(out.String(), `character "nobody" unknown`) {
		t.Errorf("output = %q, want an unknown character notice", out.String())
	}
	out.Reset()

	if err := c.speak(ctx, "What a lovely day"); err != nil {
		t.Fatalf("speak: %v", err)
	}
	got := out.String()
	for _, want := range []string{"emotion=joy (0.75)", "fallback=unavailable", "played 0s"} {
		if !strings.Contains(got, want) {
			t.Errorf("output = %q, want it to contain %q", got, want)
		}
	}

	if err := c.speak(ctx, "   "); err == nil || !strings.Contains(err.Error(), session.CodeInvalidInput) {
		t.Errorf("blank speak err = %v, want %s", err, session.CodeInvalidInput)
	}
}
