package session

import (
	"github.com/voiceforge/voiceforge/internal/character"
	"github.com/voiceforge/voiceforge/internal/voice"
)

// Message types on the session channel.
const (
	TypeVoiceRequest      = "voice_request"
	TypeCharacterSwitch   = "character_switch"
	TypeVoiceResponse     = "voice_response"
	TypeCharacterSwitched = "character_switched"
	TypeError             = "error"
)

// Error codes sent in [ErrorMessage].
const (
	CodeInvalidInput = "invalid_input"
	CodeBusy         = "busy"
	CodeBadMessage   = "bad_message"
	CodeUnknownType  = "unknown_type"
	CodeInternal     = "internal"
)

// Inbound is any client message. Fields that do not apply to Type are empty.
type Inbound struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	CharacterID string `json:"character_id,omitempty"`
}

// VoiceResponse delivers a synthesis result.
type VoiceResponse struct {
	Type string `json:"type"`
	voice.Result
}

// CharacterSwitched acknowledges a character switch. Character is the id the
// session now uses; Profile is its full profile.
type CharacterSwitched struct {
	Type      string              `json:"type"`
	Character string              `json:"character"`
	Profile   character.Character `json:"profile"`
}

// ErrorMessage reports a rejected message.
type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newError(code, msg string) ErrorMessage {
	return ErrorMessage{Type: TypeError, Code: code, Message: msg}
}
