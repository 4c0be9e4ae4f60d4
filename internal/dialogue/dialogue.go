// Package dialogue writes a short in-character line for a situation and
// emotion. It asks an LLM when one is configured and otherwise, or when the
// call fails, picks a canned line.
package dialogue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/voiceforge/voiceforge/internal/character"
	"github.com/voiceforge/voiceforge/internal/emotion"
	"github.com/voiceforge/voiceforge/internal/observe"
	"github.com/voiceforge/voiceforge/pkg/provider/llm"
)

// Defaults applied to empty prompt fields.
const (
	DefaultSituation = "general conversation"
	DefaultEmotion   = emotion.Neutral
)

const (
	defaultTimeout   = 15 * time.Second
	defaultMaxTokens = 120
)

// Prompt describes the line to write.
type Prompt struct {
	Character character.Character
	Situation string
	Emotion   emotion.Emotion
}

// Source tells where a line came from.
type Source string

const (
	SourceLLM    Source = "llm"
	SourceCanned Source = "canned"
)

// Option configures a [Generator].
type Option func(*Generator)

// WithProvider sets the LLM used for generation. name labels metrics.
func WithProvider(name string, p llm.Provider) Option {
	return func(g *Generator) {
		g.providerName = name
		g.provider = p
	}
}

// WithTimeout bounds one LLM call. Default: 15s.
func WithTimeout(d time.Duration) Option {
	return func(g *Generator) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithTemperature sets the sampling temperature sent to the LLM.
func WithTemperature(t float64) Option {
	return func(g *Generator) { g.temperature = t }
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(g *Generator) {
		if m != nil {
			g.metrics = m
		}
	}
}

// Generator produces dialogue lines. It is safe for concurrent use.
type Generator struct {
	provider     llm.Provider
	providerName string
	timeout      time.Duration
	temperature  float64
	metrics      *observe.Metrics
}

// New returns a Generator. Without [WithProvider] every line is canned.
func New(opts ...Option) *Generator {
	g := &Generator{
		providerName: "llm",
		timeout:      defaultTimeout,
		temperature:  0.8,
	}
	for _, o := range opts {
		o(g)
	}
	if g.metrics == nil {
		g.metrics = observe.DefaultMetrics()
	}
	return g
}

// Generate returns a line for p. Provider failures degrade to a canned line;
// the only error is the context's, when ctx is already done.
func (g *Generator) Generate(ctx context.Context, p Prompt) (string, error) {
	line, _, err := g.GenerateWithSource(ctx, p)
	return line, err
}

// GenerateWithSource is [Generator.Generate] that also reports where the line
// came from.
func (g *Generator) GenerateWithSource(ctx context.Context, p Prompt) (string, Source, error) {
	if err := ctx.Err(); err != nil {
		return "", "", fmt.Errorf("dialogue: %w", err)
	}
	p = normalise(p)
	if g.provider == nil {
		return Canned(p.Character.ID, p.Emotion), SourceCanned, nil
	}

	ctx, span := observe.StartSpan(ctx, "dialogue.generate")
	defer span.End()

	line, err := g.complete(ctx, p)
	if err != nil {
		observe.Logger(ctx).Warn("dialogue generation failed, using canned line",
			"provider", g.providerName, "character_id", p.Character.ID, "err", err)
		return Canned(p.Character.ID, p.Emotion), SourceCanned, nil
	}
	return line, SourceLLM, nil
}

func (g *Generator) complete(ctx context.Context, p Prompt) (string, error) {
	text, err := g.ask(ctx, SystemPrompt(p.Character), UserPrompt(p), defaultMaxTokens)
	if err != nil {
		return "", err
	}
	line := clean(text)
	if line == "" {
		return "", llm.ErrEmptyResponse
	}
	return line, nil
}

// ask runs one bounded completion and returns the raw reply text.
func (g *Generator) ask(ctx context.Context, system, user string, maxTokens int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: system,
		Messages:     []llm.Message{{Role: "user", Content: user}},
		Temperature:  g.temperature,
		MaxTokens:    maxTokens,
	})
	g.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		g.metrics.RecordProviderRequest(ctx, g.providerName, "llm", "error")
		g.metrics.RecordProviderError(ctx, g.providerName, "llm")
		return "", err
	}
	g.metrics.RecordProviderRequest(ctx, g.providerName, "llm", "ok")

	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", llm.ErrEmptyResponse
	}
	return resp.Content, nil
}

func normalise(p Prompt) Prompt {
	if strings.TrimSpace(p.Situation) == "" {
		p.Situation = DefaultSituation
	}
	if p.Emotion == "" {
		p.Emotion = DefaultEmotion
	}
	if p.Character.ID == "" {
		p.Character.ID = character.DefaultID
	}
	if p.Character.Name == "" {
		p.Character.Name = p.Character.ID
	}
	return p
}

// SystemPrompt describes the character to the model.
func SystemPrompt(ch character.Character) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are writing a line of dialogue for a voice actor playing %s.", ch.Name)
	if d := strings.TrimSpace(ch.Description); d != "" {
		fmt.Fprintf(&sb, "\nDescription: %s", d)
	}
	if v := strings.TrimSpace(ch.Personality); v != "" {
		fmt.Fprintf(&sb, "\nPersonality: %s", v)
	}
	if v := strings.TrimSpace(ch.SpeakingStyle); v != "" {
		fmt.Fprintf(&sb, "\nSpeaking style: %s", v)
	}
	return sb.String()
}

// UserPrompt asks for the line itself.
func UserPrompt(p Prompt) string {
	return fmt.Sprintf("Situation: %s\nEmotion: %s\n\n"+
		"Produce a single line (1-2 sentences) that fits the character. Do not include quotes or names.",
		p.Situation, p.Emotion)
}

// clean strips whitespace and wrapping quotes the model adds despite being
// told not to.
func clean(s string) string {
	s = strings.TrimSpace(s)
	for len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			s = strings.TrimSpace(s[1 : len(s)-1])
			continue
		}
		break
	}
	return s
}
