package dialogue

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/voiceforge/voiceforge/internal/character"
	"github.com/voiceforge/voiceforge/internal/emotion"
	"github.com/voiceforge/voiceforge/pkg/provider/llm"
	llmmock "github.com/voiceforge/voiceforge/pkg/provider/llm/mock"
)

func villain() character.Character {
	for _, ch := range character.Builtin() {
		if ch.ID == "villain" {
			return ch
		}
	}
	panic("villain missing from builtin cast")
}

func TestGenerate_NoProviderUsesCanned(t *testing.T) {
	t.Parallel()

	g := New()
	line, src, err := g.GenerateWithSource(context.Background(), Prompt{Character: villain(), Emotion: emotion.Angry})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if src != SourceCanned || line != Canned("villain", emotion.Angry) {
		t.Errorf("line = %q from %q", line, src)
	}
}

func TestGenerate_LLM(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "  \"The shadows answer to me.\" "}}
	g := New(WithProvider("mock", p))

	line, src, err := g.GenerateWithSource(context.Background(), Prompt{
		Character: villain(),
		Situation: "the hero arrives",
		Emotion:   emotion.Calm,
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if src != SourceLLM || line != "The shadows answer to me." {
		t.Errorf("line = %q from %q", line, src)
	}

	calls := p.Calls()
	if len(calls) != 1 {
		t.Fatalf("Complete called %d times, want 1", len(calls))
	}
	req := calls[0].Req
	if !strings.Contains(req.SystemPrompt, "Dr. Shadow") || !strings.Contains(req.SystemPrompt, "Cold and threatening") {
		t.Errorf("system prompt = %q", req.SystemPrompt)
	}
	if len(req.Messages) != 1 || !strings.Contains(req.Messages[0].Content, "the hero arrives") ||
		!strings.Contains(req.Messages[0].Content, "Emotion: calm") {
		t.Errorf("messages = %+v", req.Messages)
	}
	if _, ok := calls[0].Ctx.Deadline(); !ok {
		t.Error("LLM call has no deadline")
	}
}

func TestGenerate_FallsBackToCanned(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		p    *llmmock.Provider
	}{
		{name: "error", p: &llmmock.Provider{CompleteErr: errors.New("quota")}},
		{name: "nil response", p: &llmmock.Provider{}},
		{name: "blank content", p: &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "  "}}},
		{name: "timeout", p: &llmmock.Provider{Delay: time.Second, CompleteResponse: &llm.CompletionResponse{Content: "late"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := New(WithProvider("mock", tt.p), WithTimeout(20*time.Millisecond))
			line, src, err := g.GenerateWithSource(context.Background(), Prompt{})
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if src != SourceCanned || line != Canned(character.DefaultID, emotion.Neutral) {
				t.Errorf("line = %q from %q, want narrator neutral canned line", line, src)
			}
		})
	}
}

func TestGenerate_DefaultsPrompt(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "ok"}}
	g := New(WithProvider("mock", p))
	if _, err := g.Generate(context.Background(), Prompt{}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	msg := p.Calls()[0].Req.Messages[0].Content
	if !strings.Contains(msg, DefaultSituation) || !strings.Contains(msg, "Emotion: neutral") {
		t.Errorf("user prompt = %q", msg)
	}
}

func TestGenerate_ContextDone(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().Generate(ctx, Prompt{}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestCanned(t *testing.T) {
	t.Parallel()

	tests := []struct {
		id   string
		e    emotion.Emotion
		want string
	}{
		{"hero", emotion.Excited, "This is amazing! The possibilities are endless!"},
		{"hero", emotion.Fear, "We need to consider all our options before moving forward."},
		{"ghost", emotion.Sad, "A heavy silence fell upon the land, as hope seemed to drift away like morning mist."},
	}
	for _, tt := range tests {
		if got := Canned(tt.id, tt.e); got != tt.want {
			t.Errorf("Canned(%q, %q) = %q, want %q", tt.id, tt.e, got, tt.want)
		}
	}
}
