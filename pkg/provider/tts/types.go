package tts

// Request is a single synthesis job.
type Request struct {
	// Text is the utterance to speak. Never empty.
	Text string

	// VoiceID is the provider-specific voice identifier.
	VoiceID string

	// Speed is the speaking-rate factor (1.0 = normal), already clamped by
	// the caller to the provider-accepted range.
	Speed float64

	// Pitch is the pitch factor (1.0 = normal), already clamped.
	Pitch float64
}

// Audio is the output of a synthesis call. Exactly one of URL or Data is set.
type Audio struct {
	// URL is a resolvable locator for audio hosted by the provider.
	URL string

	// Data holds encoded audio when the provider returns bytes.
	Data []byte

	// ContentType is the media type of Data (e.g. "audio/wav").
	ContentType string
}

// VoiceProfile describes a voice offered by a provider.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier.
	ID string `json:"id"`

	// Name is the human-readable voice name.
	Name string `json:"name"`

	// Provider identifies which TTS provider this voice belongs to.
	Provider string `json:"provider"`

	// Metadata holds provider-specific voice attributes (gender, accent, etc.).
	Metadata map[string]string `json:"metadata,omitempty"`
}
