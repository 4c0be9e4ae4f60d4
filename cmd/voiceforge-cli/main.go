// Command voiceforge-cli is a terminal client for the VoiceForge session
// channel. It sends its arguments, or each line of stdin, as a voice
// request, prints the detected emotion and plays the returned audio.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/xid"

	"github.com/voiceforge/voiceforge/internal/session"
	"github.com/voiceforge/voiceforge/internal/voice"
	"github.com/voiceforge/voiceforge/pkg/playback"
)

func main() {
	os.Exit(run())
}

func run() int {
	server := flag.String("url", "ws://localhost:8000", "server websocket base URL")
	sessionID := flag.String("session", "", "session id; generated when empty")
	characterID := flag.String("character", "", "character to speak as")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	lvl := slog.LevelInfo
	if *verbose {
		lvl = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *sessionID == "" {
		*sessionID = xid.New().String()
	}
	url := strings.TrimSuffix(*server, "/") + "/ws/" + *sessionID
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "voiceforge-cli: dial %s: %v\n", url, err)
		return 1
	}
	defer conn.CloseNow()
	slog.Debug("connected", "session_id", *sessionID)

	c := &client{conn: conn, out: os.Stdout, simulated: simulatedDuration(ctx, *server)}
	if *characterID != "" {
		if err := c.switchCharacter(ctx, *characterID); err != nil {
			fmt.Fprintf(os.Stderr, "voiceforge-cli: %v\n", err)
			return 1
		}
	}

	lines := []string{strings.Join(flag.Args(), " ")}
	if flag.NArg() == 0 {
		lines = nil
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines = append(lines, sc.Text())
		}
	}

	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := c.speak(ctx, line); err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			fmt.Fprintf(os.Stderr, "voiceforge-cli: %v\n", err)
			return 1
		}
	}
	_ = conn.Close(websocket.StatusNormalClosure, "")
	return 0
}

type client struct {
	conn      *websocket.Conn
	out       io.Writer
	simulated time.Duration
}

// httpBase maps a websocket base URL to the server's HTTP base URL.
func httpBase(wsURL string) string {
	base := strings.TrimSuffix(wsURL, "/")
	switch {
	case strings.HasPrefix(base, "wss://"):
		return "https://" + strings.TrimPrefix(base, "wss://")
	case strings.HasPrefix(base, "ws://"):
		return "http://" + strings.TrimPrefix(base, "ws://")
	}
	return base
}

// simulatedDuration asks the server how long a fallback sentinel plays.
// Any failure falls back to the controller default.
func simulatedDuration(ctx context.Context, wsURL string) time.Duration {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, httpBase(wsURL)+"/health", nil)
	if err != nil {
		return playback.DefaultSimulatedDuration
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Debug("health request failed", "err", err)
		return playback.DefaultSimulatedDuration
	}
	defer resp.Body.Close()
	var body struct {
		SimulatedMillis int64 `json:"simulated_duration_ms"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.SimulatedMillis <= 0 {
		return playback.DefaultSimulatedDuration
	}
	return time.Duration(body.SimulatedMillis) * time.Millisecond
}

// decodeReply decodes data into out when its type is want. An error message
// from the server becomes an error.
func decodeReply(data []byte, want string, out any) error {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}
	switch env.Type {
	case want:
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode %s: %w", want, err)
		}
		return nil
	case session.TypeError:
		var e session.ErrorMessage
		if err := json.Unmarshal(data, &e); err != nil {
			return fmt.Errorf("decode error reply: %w", err)
		}
		return fmt.Errorf("server error %s: %s", e.Code, e.Message)
	default:
		return fmt.Errorf("unexpected reply %q, want %q", env.Type, want)
	}
}

func (c *client) roundTrip(ctx context.Context, msg session.Inbound, want string, out any) error {
	if err := wsjson.Write(ctx, c.conn, msg); err != nil {
		return fmt.Errorf("send %s: %w", msg.Type, err)
	}
	var raw json.RawMessage
	if err := wsjson.Read(ctx, c.conn, &raw); err != nil {
		return fmt.Errorf("read reply: %w", err)
	}
	return decodeReply(raw, want, out)
}

func (c *client) switchCharacter(ctx context.Context, id string) error {
	var r session.CharacterSwitched
	msg := session.Inbound{Type: session.TypeCharacterSwitch, CharacterID: id}
	if err := c.roundTrip(ctx, msg, session.TypeCharacterSwitched, &r); err != nil {
		return err
	}
	if r.Character != id {
		fmt.Fprintf(c.out, "character %q unknown, using %q\n", id, r.Character)
	}
	return nil
}

func (c *client) speak(ctx context.Context, text string) error {
	var r session.VoiceResponse
	msg := session.Inbound{Type: session.TypeVoiceRequest, Text: text}
	if err := c.roundTrip(ctx, msg, session.TypeVoiceResponse, &r); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "[%s] emotion=%s (%.2f)", r.CharacterID, r.Emotion.Primary, r.Emotion.Confidence)
	if r.Kind == voice.KindFallback {
		fmt.Fprintf(c.out, " fallback=%s", r.Reason)
	}
	fmt.Fprintln(c.out)

	player := playback.New(
		playback.WithAutoPlay(true),
		playback.WithSimulatedDuration(c.simulated),
		playback.WithOnChange(func(st playback.Status) {
			slog.Debug("playback", "state", st.State, "position", st.Position)
		}),
	)
	defer player.Close()
	if err := player.Load(r.AudioURL); err != nil {
		return err
	}

	tick := time.NewTicker(500 * time.Millisecond)
	defer tick.Stop()
	done := make(chan struct{})
	var final playback.Status
	var waitErr error
	go func() {
		final, waitErr = player.Wait(ctx)
		close(done)
	}()
	for {
		select {
		case <-tick.C:
			st := player.Status()
			if st.State == playback.StatePlaying && st.Duration > 0 {
				fmt.Fprintf(c.out, "\r  %s / %s", st.Position.Truncate(100*time.Millisecond), st.Duration.Truncate(100*time.Millisecond))
			}
		case <-done:
			fmt.Fprint(c.out, "\r")
			if waitErr != nil {
				_ = player.Fail(playback.CodeAborted, waitErr)
				return waitErr
			}
			if final.State == playback.StateError {
				fmt.Fprintf(c.out, "  playback failed: %s: %v\n", final.Code, final.Err)
				return nil
			}
			fmt.Fprintf(c.out, "  played %s\n", final.Duration.Truncate(100*time.Millisecond))
			return nil
		}
	}
}
