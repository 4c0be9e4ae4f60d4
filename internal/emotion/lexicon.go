package emotion

// keywords maps each emotional category to the words that count toward its
// raw score. A word may appear in at most one category.
var keywords = map[Emotion][]string{
	Happy: {
		"happy", "joy", "joyful", "glad", "delighted", "cheerful", "pleased",
		"wonderful", "lovely", "love", "smile", "smiling", "yay", "laugh", "fun",
	},
	Sad: {
		"sad", "unhappy", "sorrow", "sorry", "mourn", "depressed", "miserable",
		"upset", "gloomy", "cry", "crying", "tears", "lonely", "heartbroken", "grief",
	},
	Angry: {
		"angry", "mad", "furious", "rage", "irritated", "annoyed", "hate",
		"outraged", "livid", "enraged", "hostile",
	},
	Excited: {
		"excited", "exciting", "thrilled", "amazing", "incredible", "awesome",
		"fantastic", "energetic", "enthusiastic", "thrilling", "epic",
	},
	Calm: {
		"calm", "peaceful", "serene", "relaxed", "tranquil", "gentle", "quiet",
		"steady", "soothing", "rest",
	},
	Fear: {
		"afraid", "scared", "fear", "terrified", "nervous", "anxious", "worried",
		"frightened", "panic", "dread", "uneasy", "unsure", "doubt",
	},
	Surprise: {
		"surprised", "surprise", "astonished", "shocked", "wow", "whoa",
		"unexpected", "unbelievable", "suddenly", "stunned",
	},
}

// normalization is the raw count at which a category saturates to 1.0.
var normalization = map[Emotion]float64{
	Happy:    1.5,
	Sad:      1.5,
	Angry:    1.0,
	Excited:  1.0,
	Calm:     1.5,
	Fear:     1.5,
	Surprise: 1.0,
}

// modifierTable holds the undamped speed and pitch factors per primary emotion.
var modifierTable = map[Emotion]Modifiers{
	Happy:    {Speed: 1.1, Pitch: 1.05},
	Sad:      {Speed: 0.85, Pitch: 0.9},
	Angry:    {Speed: 1.05, Pitch: 0.95},
	Excited:  {Speed: 1.15, Pitch: 1.1},
	Calm:     {Speed: 0.9, Pitch: 0.95},
	Fear:     {Speed: 1.1, Pitch: 1.15},
	Surprise: {Speed: 1.2, Pitch: 1.15},
	Neutral:  {Speed: 1.0, Pitch: 1.0},
}

// Sentiment polarity words beyond the emotional keywords.
var (
	extraPositive = []string{
		"good", "great", "nice", "best", "beautiful", "brave", "hope", "win",
		"victory", "glorious", "kind", "thanks", "perfect", "absolutely",
	}
	extraNegative = []string{
		"bad", "terrible", "awful", "worst", "evil", "pain", "hurt", "die",
		"death", "doom", "ruin", "horrible", "wrong",
	}
)

var negators = map[string]struct{}{
	"not": {}, "no": {}, "never": {}, "nor": {}, "none": {}, "nobody": {},
	"nothing": {}, "neither": {}, "without": {}, "cannot": {},
}

// lexicon is the compiled lookup form of the tables above.
type lexicon struct {
	category map[string]Emotion
	polarity map[string]int
}

func buildLexicon() lexicon {
	lx := lexicon{
		category: make(map[string]Emotion),
		polarity: make(map[string]int),
	}
	for emo, words := range keywords {
		for _, w := range words {
			lx.category[w] = emo
		}
	}
	for _, emo := range []Emotion{Happy, Excited, Calm} {
		for _, w := range keywords[emo] {
			lx.polarity[w] = 1
		}
	}
	for _, emo := range []Emotion{Sad, Angry, Fear} {
		for _, w := range keywords[emo] {
			lx.polarity[w] = -1
		}
	}
	for _, w := range extraPositive {
		lx.polarity[w] = 1
	}
	for _, w := range extraNegative {
		lx.polarity[w] = -1
	}
	return lx
}
