package character

// DefaultID is the character used when a request names no or an unknown
// character.
const DefaultID = "narrator"

// Builtin returns the stock cast. The slice is freshly allocated on each call.
func Builtin() []Character {
	return []Character{
		{
			ID:            "hero",
			Name:          "Alex Hero",
			Description:   "A brave and optimistic protagonist",
			Personality:   "Courageous, determined, optimistic",
			SpeakingStyle: "Confident and inspiring",
			Voice: Voice{
				ProviderVoiceID: "en-US-marcus",
				BaseSpeed:       1.1,
				BasePitch:       1.1,
			},
		},
		{
			ID:            "villain",
			Name:          "Dr. Shadow",
			Description:   "A cunning and menacing antagonist",
			Personality:   "Calculating, menacing, intelligent",
			SpeakingStyle: "Cold and threatening",
			Voice: Voice{
				ProviderVoiceID: "en-US-terrell",
				BaseSpeed:       0.85,
				BasePitch:       0.85,
			},
		},
		{
			ID:            DefaultID,
			Name:          "The Storyteller",
			Description:   "A wise narrator who guides the story",
			Personality:   "Wise, neutral, descriptive",
			SpeakingStyle: "Clear and engaging",
			Voice: Voice{
				ProviderVoiceID: "en-US-natalie",
				BaseSpeed:       1.0,
				BasePitch:       1.0,
			},
		},
	}
}
