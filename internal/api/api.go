// Package api serves the REST surface: character and voice listings, emotion
// analysis, one-shot speech synthesis, dialogue generation and the stored
// audio under /static/.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/voiceforge/voiceforge/internal/character"
	"github.com/voiceforge/voiceforge/internal/dialogue"
	"github.com/voiceforge/voiceforge/internal/emotion"
	"github.com/voiceforge/voiceforge/internal/observe"
	"github.com/voiceforge/voiceforge/internal/resilience"
	"github.com/voiceforge/voiceforge/internal/voice"
	"github.com/voiceforge/voiceforge/pkg/provider/tts"
)

const maxBodyBytes = 64 << 10

// Synthesizer renders one line of speech.
type Synthesizer interface {
	Synthesize(ctx context.Context, req voice.Request) (voice.Result, error)
}

// DialogueGenerator writes lines, delivery direction and character sheets.
type DialogueGenerator interface {
	Generate(ctx context.Context, p dialogue.Prompt) (string, error)
	AnalyzeDelivery(ctx context.Context, ch character.Character, text string) (dialogue.Delivery, dialogue.Source, error)
	CreateCharacter(ctx context.Context, name, description string, traits []string) (dialogue.Profile, dialogue.Source, error)
}

// VoiceLister lists the voices a provider offers.
type VoiceLister interface {
	ListVoices(ctx context.Context) ([]tts.VoiceProfile, error)
}

// Option configures a [Server].
type Option func(*Server)

// WithDialogue enables POST /api/v1/generate-dialogue, analyze-delivery and
// create-character.
func WithDialogue(g DialogueGenerator) Option {
	return func(s *Server) { s.dialogue = g }
}

// WithVoices adds provider voices to GET /api/v1/voices.
func WithVoices(l VoiceLister) Option {
	return func(s *Server) { s.voices = l }
}

// WithAnalyzer replaces the default emotion analyzer.
func WithAnalyzer(a *emotion.Analyzer) Option {
	return func(s *Server) {
		if a != nil {
			s.analyzer = a
		}
	}
}

// WithStaticDir serves dir under /static/.
func WithStaticDir(dir string) Option {
	return func(s *Server) { s.staticDir = dir }
}

// WithAudioDir serves dir under /static/audio/, overriding the static
// directory for that prefix.
func WithAudioDir(dir string) Option {
	return func(s *Server) { s.audioDir = dir }
}

// WithVersion sets the version reported by GET /.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithProviderConfigured sets the flag reported by GET /health.
func WithProviderConfigured(ok bool) Option {
	return func(s *Server) { s.providerConfigured = ok }
}

// WithSimulatedDuration sets the sentinel playback length advertised by
// GET /health.
func WithSimulatedDuration(d time.Duration) Option {
	return func(s *Server) { s.simulated = d }
}

// BreakerReporter reports the circuit state of each synthesis backend.
type BreakerReporter interface {
	Status() []resilience.EntryStatus
}

// WithBreakers adds per-backend breaker state to GET /health.
func WithBreakers(b BreakerReporter) Option {
	return func(s *Server) { s.breakers = b }
}

// Server holds the REST handlers.
type Server struct {
	synth     Synthesizer
	catalogs  voice.CatalogSource
	analyzer  *emotion.Analyzer
	dialogue  DialogueGenerator
	voices    VoiceLister
	staticDir string
	audioDir  string
	version   string

	providerConfigured bool
	breakers           BreakerReporter
	simulated          time.Duration
}

// New creates a [Server].
func New(synth Synthesizer, catalogs voice.CatalogSource, opts ...Option) *Server {
	s := &Server{
		synth:    synth,
		catalogs: catalogs,
		analyzer: emotion.New(),
		version:  "dev",
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register adds the REST routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /characters", s.handleCharacters)
	mux.HandleFunc("GET /api/v1/characters", s.handleCharacters)
	mux.HandleFunc("GET /api/v1/voices", s.handleVoices)
	mux.HandleFunc("POST /api/v1/analyze-emotion", s.handleAnalyze)
	mux.HandleFunc("POST /api/v1/generate-speech", s.handleSpeech)
	if s.dialogue != nil {
		mux.HandleFunc("POST /api/v1/generate-dialogue", s.handleDialogue)
		mux.HandleFunc("POST /generate-dialogue", s.handleDialogue)
		mux.HandleFunc("POST /api/v1/analyze-delivery", s.handleDelivery)
		mux.HandleFunc("POST /api/v1/create-character", s.handleCreateCharacter)
	}
	if s.staticDir != "" {
		mux.Handle("GET /static/", fileServer("/static/", s.staticDir))
	}
	if s.audioDir != "" {
		mux.Handle("GET /static/audio/", fileServer("/static/audio/", s.audioDir))
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "VoiceForge API is running!",
		"version": s.version,
	})
}

type healthResponse struct {
	Status             string           `json:"status"`
	ProviderConfigured bool             `json:"provider_configured"`
	Characters         int              `json:"characters"`
	SimulatedMillis    int64            `json:"simulated_duration_ms,omitempty"`
	Providers          []providerHealth `json:"providers,omitempty"`
}

type providerHealth struct {
	Name    string `json:"name"`
	Circuit string `json:"circuit"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	n := 0
	if c := s.catalogs.Current(); c != nil {
		n = c.Len()
	}
	res := healthResponse{
		Status:             "healthy",
		ProviderConfigured: s.providerConfigured,
		Characters:         n,
		SimulatedMillis:    s.simulated.Milliseconds(),
	}
	if s.breakers != nil {
		for _, st := range s.breakers.Status() {
			res.Providers = append(res.Providers, providerHealth{Name: st.Name, Circuit: st.State.String()})
		}
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCharacters(w http.ResponseWriter, _ *http.Request) {
	var list []character.Character
	if c := s.catalogs.Current(); c != nil {
		list = c.List()
	}
	writeJSON(w, http.StatusOK, map[string]any{"characters": list})
}

// VoiceInfo is one entry of GET /api/v1/voices.
type VoiceInfo struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	BaseSpeed   float64           `json:"base_speed"`
	BasePitch   float64           `json:"base_pitch"`
	Provider    string            `json:"provider,omitempty"`
	VoiceID     string            `json:"provider_voice_id,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func (s *Server) handleVoices(w http.ResponseWriter, r *http.Request) {
	var out []VoiceInfo
	if c := s.catalogs.Current(); c != nil {
		for _, ch := range c.List() {
			out = append(out, VoiceInfo{
				ID:          ch.ID,
				Name:        ch.Name,
				Description: "Character voice for " + ch.Name,
				BaseSpeed:   ch.Voice.BaseSpeed,
				BasePitch:   ch.Voice.BasePitch,
				VoiceID:     ch.Voice.ProviderVoiceID,
			})
		}
	}
	if s.voices != nil {
		profiles, err := s.voices.ListVoices(r.Context())
		if err != nil {
			observe.Logger(r.Context()).Warn("provider voices unavailable", "err", err)
		}
		for _, p := range profiles {
			out = append(out, VoiceInfo{
				ID:          p.ID,
				Name:        p.Name,
				Description: p.Provider + " voice",
				BaseSpeed:   1.0,
				BasePitch:   1.0,
				Provider:    p.Provider,
				VoiceID:     p.ID,
				Metadata:    p.Metadata,
			})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"voices": out})
}

type textRequest struct {
	Text        string `json:"text"`
	CharacterID string `json:"character_id"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "Text is required")
		return
	}
	writeJSON(w, http.StatusOK, s.analyzer.Analyze(req.Text))
}

func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.synth.Synthesize(r.Context(), voice.Request{
		SessionID:   observe.RequestID(r.Context()),
		Text:        req.Text,
		CharacterID: req.CharacterID,
	})
	switch {
	case errors.Is(err, voice.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "Text is required")
		return
	case err != nil:
		observe.Logger(r.Context()).Error("speech generation failed", "err", err)
		writeError(w, http.StatusInternalServerError, "speech generation failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type dialogueRequest struct {
	CharacterID string `json:"character_id"`
	Situation   string `json:"situation"`
	Emotion     string `json:"emotion"`
}

type dialogueResponse struct {
	Dialogue    string `json:"dialogue"`
	CharacterID string `json:"character_id"`
}

func (s *Server) handleDialogue(w http.ResponseWriter, r *http.Request) {
	var req dialogueRequest
	if !decode(w, r, &req) {
		return
	}
	cat := s.catalogs.Current()
	if cat == nil {
		writeError(w, http.StatusServiceUnavailable, "no characters loaded")
		return
	}
	ch, _ := cat.Resolve(req.CharacterID)
	line, err := s.dialogue.Generate(r.Context(), dialogue.Prompt{
		Character: ch,
		Situation: req.Situation,
		Emotion:   emotion.Emotion(req.Emotion),
	})
	if err != nil {
		slog.Debug("dialogue request abandoned", "err", err)
		writeError(w, http.StatusServiceUnavailable, "dialogue generation canceled")
		return
	}
	writeJSON(w, http.StatusOK, dialogueResponse{Dialogue: line, CharacterID: ch.ID})
}

type deliveryRequest struct {
	Text        string `json:"text"`
	CharacterID string `json:"character_id"`
}

type deliveryResponse struct {
	dialogue.Delivery
	CharacterID string          `json:"character_id"`
	Source      dialogue.Source `json:"source"`
}

func (s *Server) handleDelivery(w http.ResponseWriter, r *http.Request) {
	var req deliveryRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	cat := s.catalogs.Current()
	if cat == nil {
		writeError(w, http.StatusServiceUnavailable, "no characters loaded")
		return
	}
	ch, _ := cat.Resolve(req.CharacterID)
	d, src, err := s.dialogue.AnalyzeDelivery(r.Context(), ch, req.Text)
	if err != nil {
		slog.Debug("delivery request abandoned", "err", err)
		writeError(w, http.StatusServiceUnavailable, "delivery analysis canceled")
		return
	}
	writeJSON(w, http.StatusOK, deliveryResponse{Delivery: d, CharacterID: ch.ID, Source: src})
}

type createCharacterRequest struct {
	Name              string   `json:"name"`
	Description       string   `json:"description"`
	PersonalityTraits []string `json:"personality_traits"`
}

type createCharacterResponse struct {
	dialogue.Profile
	Source dialogue.Source `json:"source"`
}

func (s *Server) handleCreateCharacter(w http.ResponseWriter, r *http.Request) {
	var req createCharacterRequest
	if !decode(w, r, &req) {
		return
	}
	p, src, err := s.dialogue.CreateCharacter(r.Context(), req.Name, req.Description, req.PersonalityTraits)
	switch {
	case errors.Is(err, dialogue.ErrNameRequired):
		writeError(w, http.StatusBadRequest, "name is required")
		return
	case err != nil:
		slog.Debug("character request abandoned", "err", err)
		writeError(w, http.StatusServiceUnavailable, "character creation canceled")
		return
	}
	writeJSON(w, http.StatusOK, createCharacterResponse{Profile: p, Source: src})
}

// decode reads a JSON body into v. An empty body leaves v zero. On failure
// it writes a 400 and returns false.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeError(w, http.StatusBadRequest, "invalid JSON body")
	return false
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// fileServer serves dir under prefix without directory listings.
func fileServer(prefix, dir string) http.Handler {
	files := http.StripPrefix(prefix, http.FileServer(http.Dir(dir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
}
