// Package murf provides a Murf.ai-backed TTS provider using the Murf REST API.
// It implements the tts.Provider interface.
//
// Murf renders the whole utterance server-side and answers with a URL to the
// hosted file, so Synthesize returns a tts.Audio with URL set and no data.
//
// Speed and pitch factors are translated to Murf's percentage offsets:
// a factor of 1.0 is 0, 1.2 is +20 and so on, limited to [-50, 50].
package murf

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/voiceforge/voiceforge/pkg/provider/tts"
)

const (
	defaultBaseURL   = "https://api.murf.ai"
	generateEndpoint = "/v1/speech/generate"
	voicesEndpoint   = "/v1/speech/voices"
	defaultFormat    = "MP3"
	defaultRate      = 24000
	maxOffset        = 50
	maxErrorBody     = 512
)

// Compile-time interface assertion.
var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Murf Provider.
type Option func(*Provider)

// WithBaseURL overrides the API base URL. Used for tests and proxies.
func WithBaseURL(u string) Option {
	return func(p *Provider) {
		p.baseURL = strings.TrimRight(u, "/")
	}
}

// WithFormat sets the output container ("MP3", "WAV", "FLAC"). Default: MP3.
func WithFormat(format string) Option {
	return func(p *Provider) {
		p.format = strings.ToUpper(format)
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// WithTimeout sets the HTTP client timeout. The caller's context deadline
// still applies.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// Provider implements tts.Provider backed by the Murf REST API.
type Provider struct {
	apiKey     string
	baseURL    string
	format     string
	httpClient *http.Client
}

// New creates a new Murf Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("murf: %w: api key must not be empty", tts.ErrUnavailable)
	}
	p := &Provider{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		format:     defaultFormat,
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// generateRequest is the JSON body sent to POST /v1/speech/generate.
type generateRequest struct {
	VoiceID    string `json:"voiceId"`
	Text       string `json:"text"`
	Rate       int    `json:"rate"`
	Pitch      int    `json:"pitch"`
	Format     string `json:"format"`
	SampleRate int    `json:"sampleRate"`
}

// generateResponse is the subset of the Murf response the provider uses.
type generateResponse struct {
	AudioFile            string  `json:"audioFile"`
	AudioLengthInSeconds float64 `json:"audioLengthInSeconds"`
	ErrorMessage         string  `json:"errorMessage,omitempty"`
}

// Synthesize renders req via Murf and returns the hosted file URL.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (tts.Audio, error) {
	if req.VoiceID == "" {
		return tts.Audio{}, errors.New("murf: voice id must not be empty")
	}
	body, err := json.Marshal(generateRequest{
		VoiceID:    req.VoiceID,
		Text:       req.Text,
		Rate:       factorToOffset(req.Speed),
		Pitch:      factorToOffset(req.Pitch),
		Format:     p.format,
		SampleRate: defaultRate,
	})
	if err != nil {
		return tts.Audio{}, fmt.Errorf("murf: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+generateEndpoint, bytes.NewReader(body))
	if err != nil {
		return tts.Audio{}, fmt.Errorf("murf: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("api-key", p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return tts.Audio{}, fmt.Errorf("murf: POST %s: %w", generateEndpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return tts.Audio{}, &tts.StatusError{Provider: "murf", Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return tts.Audio{}, fmt.Errorf("murf: decode response: %w", err)
	}
	if gr.AudioFile == "" {
		if gr.ErrorMessage != "" {
			return tts.Audio{}, fmt.Errorf("murf: %s", gr.ErrorMessage)
		}
		return tts.Audio{}, errors.New("murf: response missing audioFile")
	}
	return tts.Audio{URL: gr.AudioFile}, nil
}

// murfVoice is a single voice entry from GET /v1/speech/voices.
type murfVoice struct {
	VoiceID     string `json:"voiceId"`
	DisplayName string `json:"displayName"`
	Locale      string `json:"locale"`
	Gender      string `json:"gender"`
	Accent      string `json:"accent"`
}

// ListVoices returns all voices available to the configured API key.
func (p *Provider) ListVoices(ctx context.Context) ([]tts.VoiceProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+voicesEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("murf: list voices: %w", err)
	}
	req.Header.Set("api-key", p.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("murf: list voices HTTP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &tts.StatusError{Provider: "murf", Status: resp.StatusCode}
	}

	var voices []murfVoice
	if err := json.NewDecoder(resp.Body).Decode(&voices); err != nil {
		return nil, fmt.Errorf("murf: list voices decode: %w", err)
	}

	profiles := make([]tts.VoiceProfile, 0, len(voices))
	for _, v := range voices {
		meta := map[string]string{}
		if v.Locale != "" {
			meta["locale"] = v.Locale
		}
		if v.Gender != "" {
			meta["gender"] = v.Gender
		}
		if v.Accent != "" {
			meta["accent"] = v.Accent
		}
		profiles = append(profiles, tts.VoiceProfile{
			ID:       v.VoiceID,
			Name:     v.DisplayName,
			Provider: "murf",
			Metadata: meta,
		})
	}
	return profiles, nil
}

// factorToOffset maps a multiplicative factor to Murf's percent offset.
// Zero means "not set" and maps to 0.
func factorToOffset(f float64) int {
	if f == 0 || math.IsNaN(f) {
		return 0
	}
	off := int(math.Round((f - 1) * 100))
	return max(-maxOffset, min(maxOffset, off))
}
