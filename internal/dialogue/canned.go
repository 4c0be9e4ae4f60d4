package dialogue

import (
	"github.com/voiceforge/voiceforge/internal/character"
	"github.com/voiceforge/voiceforge/internal/emotion"
)

var cannedLines = map[string]map[emotion.Emotion]string{
	"hero": {
		emotion.Happy:   "We did it! I knew we could overcome this challenge together!",
		emotion.Sad:     "This is difficult, but we must press on for everyone counting on us.",
		emotion.Angry:   "This injustice cannot stand! We will make this right!",
		emotion.Excited: "This is amazing! The possibilities are endless!",
		emotion.Calm:    "Let's take a step back and think this through carefully.",
		emotion.Neutral: "We need to consider all our options before moving forward.",
	},
	"villain": {
		emotion.Happy:   "Excellent... everything is proceeding exactly according to plan.",
		emotion.Sad:     "You think you've won, but this is merely a minor setback.",
		emotion.Angry:   "You fools! You have no idea what forces you've unleashed!",
		emotion.Excited: "At last! The moment I've been waiting for has arrived!",
		emotion.Calm:    "Patience... all good things come to those who wait.",
		emotion.Neutral: "Interesting... this development requires careful consideration.",
	},
	character.DefaultID: {
		emotion.Happy:   "And so, joy filled the hearts of all who witnessed this remarkable moment.",
		emotion.Sad:     "A heavy silence fell upon the land, as hope seemed to drift away like morning mist.",
		emotion.Angry:   "The storm of conflict raged with unprecedented fury across the realm.",
		emotion.Excited: "The air crackled with anticipation as destiny hung in the balance!",
		emotion.Calm:    "Peace settled over the world like a gentle blanket of starlight.",
		emotion.Neutral: "The story continues to unfold in ways both mysterious and profound.",
	},
}

// Canned returns the stock line for a character and emotion. Characters
// without lines use the narrator's; emotions without a line use neutral.
func Canned(characterID string, e emotion.Emotion) string {
	lines, ok := cannedLines[characterID]
	if !ok {
		lines = cannedLines[character.DefaultID]
	}
	if line, ok := lines[e]; ok {
		return line
	}
	return lines[emotion.Neutral]
}
