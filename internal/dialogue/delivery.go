package dialogue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/voiceforge/voiceforge/internal/character"
	"github.com/voiceforge/voiceforge/internal/observe"
)

const (
	deliveryMaxTokens = 200
	profileMaxTokens  = 400

	// longLineWords is the word count above which a line gets a
	// mid-sentence pause.
	longLineWords = 10
)

// ErrNameRequired is returned by [Generator.CreateCharacter] for a blank name.
var ErrNameRequired = errors.New("dialogue: character name is required")

// Delivery is direction for speaking a line in character.
type Delivery struct {
	Emotion       string   `json:"emotion"`
	Pacing        string   `json:"pacing"`
	EmphasisWords []string `json:"emphasis_words"`
	Inflection    string   `json:"inflection"`
	Pauses        []string `json:"pauses"`
	ToneNotes     string   `json:"tone_notes"`
}

// Profile is a generated character sheet.
type Profile struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name"`
	Description          string   `json:"description"`
	PersonalityTraits    []string `json:"personality_traits"`
	SpeakingStyle        string   `json:"speaking_style"`
	EmotionalRange       []string `json:"emotional_range"`
	VoiceCharacteristics string   `json:"voice_characteristics"`
	TypicalPhrases       []string `json:"typical_phrases"`
	Background           string   `json:"background"`
}

// AnalyzeDelivery suggests how ch should speak text. Like
// [Generator.Generate] it degrades to a local heuristic when no LLM is
// configured or the reply is unusable.
func (g *Generator) AnalyzeDelivery(ctx context.Context, ch character.Character, text string) (Delivery, Source, error) {
	if err := ctx.Err(); err != nil {
		return Delivery{}, "", fmt.Errorf("dialogue: %w", err)
	}
	if ch.ID == "" {
		ch.ID = character.DefaultID
	}
	if g.provider == nil {
		return MockDelivery(ch.ID, text), SourceCanned, nil
	}

	ctx, span := observe.StartSpan(ctx, "dialogue.analyze_delivery")
	defer span.End()

	var d Delivery
	err := g.askJSON(ctx, SystemPrompt(normalise(Prompt{Character: ch}).Character), DeliveryPrompt(text), deliveryMaxTokens, &d)
	if err == nil && d.Emotion == "" {
		err = errors.New("reply has no emotion")
	}
	if err != nil {
		observe.Logger(ctx).Warn("delivery analysis failed, using heuristic",
			"provider", g.providerName, "character_id", ch.ID, "err", err)
		return MockDelivery(ch.ID, text), SourceCanned, nil
	}
	if d.EmphasisWords == nil {
		d.EmphasisWords = []string{}
	}
	if d.Pauses == nil {
		d.Pauses = []string{}
	}
	return d, SourceLLM, nil
}

// CreateCharacter drafts a character sheet from a name, a description and
// personality traits, falling back to a generic sheet.
func (g *Generator) CreateCharacter(ctx context.Context, name, description string, traits []string) (Profile, Source, error) {
	if err := ctx.Err(); err != nil {
		return Profile{}, "", fmt.Errorf("dialogue: %w", err)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Profile{}, "", ErrNameRequired
	}
	if traits == nil {
		traits = []string{}
	}
	base := MockProfile(name, description, traits)
	if g.provider == nil {
		return base, SourceCanned, nil
	}

	ctx, span := observe.StartSpan(ctx, "dialogue.create_character")
	defer span.End()

	var p Profile
	if err := g.askJSON(ctx, "You design characters for voice acting.", ProfilePrompt(name, description, traits), profileMaxTokens, &p); err != nil {
		observe.Logger(ctx).Warn("character creation failed, using generic profile",
			"provider", g.providerName, "name", name, "err", err)
		return base, SourceCanned, nil
	}
	// Identity comes from the caller, not the model.
	p.ID, p.Name, p.Description, p.PersonalityTraits = base.ID, base.Name, base.Description, base.PersonalityTraits
	return p, SourceLLM, nil
}

func (g *Generator) askJSON(ctx context.Context, system, user string, maxTokens int, v any) error {
	text, err := g.ask(ctx, system, user, maxTokens)
	if err != nil {
		return err
	}
	obj, ok := extractJSON(text)
	if !ok {
		return errors.New("reply has no JSON object")
	}
	if err := json.Unmarshal([]byte(obj), v); err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}
	return nil
}

// DeliveryPrompt asks for delivery direction as JSON.
func DeliveryPrompt(text string) string {
	return fmt.Sprintf("Analyze the following text for delivery by your character. Return JSON keys: "+
		"emotion (string), pacing (string), emphasis_words (array), inflection (string), pauses (array), tone_notes (string).\n\n"+
		"Text: %q", text)
}

// ProfilePrompt asks for a character sheet as JSON.
func ProfilePrompt(name, description string, traits []string) string {
	return fmt.Sprintf("Create a detailed character profile for a voice acting scenario:\n\n"+
		"Name: %s\nDescription: %s\nPersonality Traits: %s\n\n"+
		"Return a JSON object with keys: speaking_style (string), emotional_range (array of strings), "+
		"voice_characteristics (string), typical_phrases (array), background (string).",
		name, description, strings.Join(traits, ", "))
}

// MockDelivery derives direction from punctuation and capitalisation.
func MockDelivery(characterID, text string) Delivery {
	d := Delivery{
		Emotion:       "neutral",
		Pacing:        "medium",
		EmphasisWords: []string{},
		Inflection:    "declarative",
		Pauses:        []string{},
		ToneNotes:     "Deliver in character as " + characterID,
	}
	switch {
	case strings.Contains(text, "!"):
		d.Emotion = "excited"
	case strings.Contains(text, "?"):
		d.Emotion = "questioning"
	case strings.Contains(text, "..."):
		d.Emotion = "contemplative"
	}
	if characterID == "villain" {
		d.Pacing = "slow"
	}

	words := strings.Fields(text)
	for _, w := range words {
		if shouted(w) {
			d.EmphasisWords = append(d.EmphasisWords, strings.Trim(w, ".,!?"))
		}
	}
	if len(words) > longLineWords {
		d.Pauses = append(d.Pauses, "mid-sentence")
	}
	return d
}

// MockProfile is the generic sheet used without an LLM.
func MockProfile(name, description string, traits []string) Profile {
	return Profile{
		ID:                   strings.ReplaceAll(strings.ToLower(name), " ", "_"),
		Name:                 name,
		Description:          description,
		PersonalityTraits:    traits,
		SpeakingStyle:        "Natural and expressive",
		EmotionalRange:       []string{"neutral", "happy", "sad", "excited"},
		VoiceCharacteristics: "Clear and engaging tone",
		TypicalPhrases:       []string{"Let me think about that.", "That's interesting."},
		Background:           "A well-developed character with unique traits",
	}
}

// shouted reports whether w has letters and all of them are upper case.
func shouted(w string) bool {
	cased := false
	for _, r := range w {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			cased = true
		}
	}
	return cased
}

// extractJSON returns the outermost {...} span of s, which models often wrap
// in prose or code fences.
func extractJSON(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}
