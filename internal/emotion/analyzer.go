// Package emotion classifies free text into one of a fixed set of emotions and
// derives multiplicative voice modifiers from the classification.
//
// The analysis is a single keyword pass:
//
//  1. The text is split into lowercase word tokens.
//  2. Each token that belongs to a category keyword set increments that
//     category's raw count, unless a negator precedes it within two tokens.
//  3. Raw counts are normalised per category to [0,1]; the highest score wins
//     and ties resolve to [Neutral].
//  4. Confidence is the winning score scaled by how much text there was, and
//     the modifier table entry for the winner is blended toward 1.0 by
//     (1 - confidence).
//
// Sentiment is tallied over the same tokens and reported alongside; it never
// influences the modifiers.
//
// An [Analyzer] holds no mutable state and is safe for concurrent use.
package emotion

import (
	"math"
	"strings"
	"unicode"
)

// Emotion is a label from the closed emotion set.
type Emotion string

// Supported emotions.
const (
	Happy    Emotion = "happy"
	Sad      Emotion = "sad"
	Angry    Emotion = "angry"
	Excited  Emotion = "excited"
	Calm     Emotion = "calm"
	Fear     Emotion = "fear"
	Surprise Emotion = "surprise"
	Neutral  Emotion = "neutral"
)

// Categories lists the keyword-driven emotions in tie-break order.
// Neutral is not a category; it is what remains when no category wins.
var Categories = []Emotion{Happy, Sad, Angry, Excited, Calm, Fear, Surprise}

// Valid reports whether e is one of the supported labels.
func (e Emotion) Valid() bool {
	if e == Neutral {
		return true
	}
	_, ok := modifierTable[e]
	return ok
}

// Sentiment is a compound polarity tally.
type Sentiment struct {
	// Compound is the overall polarity in [-1, 1].
	Compound float64 `json:"compound"`
	Positive float64 `json:"pos"`
	Neutral  float64 `json:"neu"`
	Negative float64 `json:"neg"`
}

// Modifiers are multiplicative adjustments to a voice's base speed and pitch.
type Modifiers struct {
	Speed float64 `json:"speed_modifier"`
	Pitch float64 `json:"pitch_modifier"`
}

// NeutralModifiers leaves the base voice unchanged.
var NeutralModifiers = Modifiers{Speed: 1.0, Pitch: 1.0}

// Result is the outcome of a single analysis. It is never mutated after
// [Analyzer.Analyze] returns it.
type Result struct {
	Primary    Emotion             `json:"primary_emotion"`
	Scores     map[Emotion]float64 `json:"emotion_scores"`
	Confidence float64             `json:"confidence"`
	Sentiment  Sentiment           `json:"sentiment_scores"`
	Modifiers  Modifiers           `json:"voice_modifiers"`
}

// NeutralResult returns the result reported for empty or unrecognised text.
func NeutralResult() Result {
	scores := make(map[Emotion]float64, len(Categories)+1)
	for _, c := range Categories {
		scores[c] = 0
	}
	scores[Neutral] = 1
	return Result{
		Primary:   Neutral,
		Scores:    scores,
		Sentiment: Sentiment{Neutral: 1},
		Modifiers: NeutralModifiers,
	}
}

const (
	defaultAdequateWords = 4
	negationWindow       = 2
	// compoundAlpha approximates the maximum expected squared tally so the
	// compound score stays well inside (-1, 1) for short texts.
	compoundAlpha = 15.0
)

// Option is a functional option for configuring an [Analyzer].
type Option func(*Analyzer)

// WithAdequateWords sets the number of words at which a text is long enough
// for full confidence. Shorter texts scale confidence linearly. Default: 4.
func WithAdequateWords(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.adequateWords = n
		}
	}
}

// WithSensitivity overrides the raw keyword count at which emotion e
// saturates to a score of 1.0. Non-positive values are ignored.
func WithSensitivity(e Emotion, constant float64) Option {
	return func(a *Analyzer) {
		if constant > 0 {
			a.normalization[e] = constant
		}
	}
}

// Analyzer maps text to a [Result].
type Analyzer struct {
	lx            lexicon
	normalization map[Emotion]float64
	adequateWords int
}

// New returns an Analyzer with the built-in lexicon.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		lx:            buildLexicon(),
		normalization: make(map[Emotion]float64, len(normalization)),
		adequateWords: defaultAdequateWords,
	}
	for e, c := range normalization {
		a.normalization[e] = c
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Analyze classifies text. It never fails: text that is empty or contains no
// recognised keyword yields [NeutralResult] (sentiment may still be non-zero).
func (a *Analyzer) Analyze(text string) Result {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return NeutralResult()
	}

	raw := make(map[Emotion]int, len(Categories))
	var pos, neg int
	for i, tok := range tokens {
		negated := a.negated(tokens, i)
		if emo, ok := a.lx.category[tok]; ok && !negated {
			raw[emo]++
		}
		if p := a.lx.polarity[tok]; p != 0 {
			if negated {
				p = -p
			}
			if p > 0 {
				pos++
			} else {
				neg++
			}
		}
	}

	res := Result{
		Primary:   Neutral,
		Scores:    make(map[Emotion]float64, len(Categories)+1),
		Sentiment: sentiment(pos, neg, len(tokens)),
		Modifiers: NeutralModifiers,
	}

	var best float64
	tied := false
	for _, c := range Categories {
		s := math.Min(1.0, float64(raw[c])/a.normalization[c])
		res.Scores[c] = s
		switch {
		case s > best:
			best = s
			res.Primary = c
			tied = false
		case s == best && s > 0:
			tied = true
		}
	}
	res.Scores[Neutral] = 1 - best
	if best == 0 || tied {
		res.Primary = Neutral
		return res
	}

	adequacy := math.Min(1.0, float64(len(tokens))/float64(a.adequateWords))
	res.Confidence = clamp01(best * adequacy)
	res.Modifiers = blend(modifierTable[res.Primary], res.Confidence)
	return res
}

// negated reports whether a negator appears within negationWindow tokens
// before tokens[i].
func (a *Analyzer) negated(tokens []string, i int) bool {
	for j := i - 1; j >= 0 && j >= i-negationWindow; j-- {
		if isNegator(tokens[j]) {
			return true
		}
	}
	return false
}

func isNegator(tok string) bool {
	if _, ok := negators[tok]; ok {
		return true
	}
	return strings.HasSuffix(tok, "n't")
}

// blend pulls m toward 1.0 in proportion to (1 - confidence).
func blend(m Modifiers, confidence float64) Modifiers {
	out := Modifiers{
		Speed: 1 + (m.Speed-1)*confidence,
		Pitch: 1 + (m.Pitch-1)*confidence,
	}
	if !finitePositive(out.Speed) {
		out.Speed = 1
	}
	if !finitePositive(out.Pitch) {
		out.Pitch = 1
	}
	return out
}

func sentiment(pos, neg, total int) Sentiment {
	if total == 0 {
		return Sentiment{Neutral: 1}
	}
	x := float64(pos - neg)
	s := Sentiment{
		Compound: x / math.Sqrt(x*x+compoundAlpha),
		Positive: float64(pos) / float64(total),
		Negative: float64(neg) / float64(total),
	}
	s.Neutral = clamp01(1 - s.Positive - s.Negative)
	return s
}

// tokenize lowercases text and splits it into words made of letters, digits
// and inner apostrophes.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\'' && r != '’'
	})
	tokens := fields[:0]
	for _, f := range fields {
		f = strings.ReplaceAll(f, "’", "'")
		f = strings.Trim(f, "'")
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
