// Package app wires all VoiceForge subsystems into a running server.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP and runs the background loops until the
// context ends, and Shutdown releases what New acquired.
//
// For testing, inject doubles via functional options (WithCharacterDB,
// WithListener, ...). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/voiceforge/voiceforge/internal/api"
	"github.com/voiceforge/voiceforge/internal/audiostore"
	"github.com/voiceforge/voiceforge/internal/character"
	"github.com/voiceforge/voiceforge/internal/config"
	"github.com/voiceforge/voiceforge/internal/dialogue"
	"github.com/voiceforge/voiceforge/internal/health"
	"github.com/voiceforge/voiceforge/internal/observe"
	"github.com/voiceforge/voiceforge/internal/session"
	"github.com/voiceforge/voiceforge/internal/voice"
)

const (
	shutdownTimeout = 10 * time.Second
	reloadTimeout   = 15 * time.Second
)

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	metrics        *observe.Metrics
	metricsHandler http.Handler
	level          *slog.LevelVar
	version        string
	configPath     string
	listener       net.Listener

	charDB   character.Lister
	pinger   health.Pinger
	catalogs *character.Store
	audio    *audiostore.Store
	voice    *voice.Orchestrator
	dialogue *dialogue.Generator
	sessions *session.Manager
	server   *http.Server

	// closers are called in order during Shutdown.
	closers  []func() error
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithMetrics sets the metric instruments and the /metrics handler. Without
// it the global meter provider is used and /metrics is not served.
func WithMetrics(m *observe.Metrics, handler http.Handler) Option {
	return func(a *App) {
		a.metrics = m
		a.metricsHandler = handler
	}
}

// WithLevelVar lets config reloads change the log level.
func WithLevelVar(lv *slog.LevelVar) Option {
	return func(a *App) { a.level = lv }
}

// WithVersion sets the version reported by GET /.
func WithVersion(v string) Option {
	return func(a *App) { a.version = v }
}

// WithConfigWatch makes Run watch path and apply hot-reloadable changes.
func WithConfigWatch(path string) Option {
	return func(a *App) { a.configPath = path }
}

// WithCharacterDB injects a persisted character source instead of
// connecting to characters.postgres_dsn.
func WithCharacterDB(db character.Lister) Option {
	return func(a *App) { a.charDB = db }
}

// WithListener makes Run serve on ln instead of listening on
// server.listen_addr.
func WithListener(ln net.Listener) Option {
	return func(a *App) { a.listener = ln }
}

// New performs all initialisation synchronously: database connection and
// migration, catalog build, audio directory, orchestrator, dialogue and
// session manager construction, and HTTP routing.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
		version:   "dev",
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Character database ────────────────────────────────────────────
	if err := a.initDatabase(ctx); err != nil {
		a.runClosers()
		return nil, fmt.Errorf("app: init database: %w", err)
	}

	// ── 2. Character catalog ─────────────────────────────────────────────
	cat, err := a.buildCatalog(ctx, cfg)
	if err != nil {
		a.runClosers()
		return nil, fmt.Errorf("app: build catalog: %w", err)
	}
	a.catalogs = character.NewStore(cat)
	slog.Info("character catalog loaded", "characters", cat.Len(), "default", cat.DefaultID())

	// ── 3. Audio store ───────────────────────────────────────────────────
	a.audio, err = audiostore.New(cfg.Audio.Dir, cfg.Server.PublicURL, audiostore.WithMaxFiles(cfg.Audio.MaxFiles))
	if err != nil {
		a.runClosers()
		return nil, fmt.Errorf("app: %w", err)
	}

	// ── 4. Orchestrator, dialogue, sessions ──────────────────────────────
	vopts := []voice.Option{
		voice.WithAudioStore(a.audio),
		voice.WithTimeout(cfg.Synthesis.Timeout),
		voice.WithSpeedRange(voice.Range(cfg.Synthesis.SpeedRange)),
		voice.WithPitchRange(voice.Range(cfg.Synthesis.PitchRange)),
		voice.WithMetrics(a.metrics),
	}
	if providers.TTS != nil {
		vopts = append(vopts, voice.WithProvider(providers.TTSName, providers.TTS))
	}
	a.voice = voice.New(a.catalogs, vopts...)

	dopts := []dialogue.Option{dialogue.WithMetrics(a.metrics)}
	if providers.LLM != nil {
		dopts = append(dopts, dialogue.WithProvider(providers.LLMName, providers.LLM))
	}
	a.dialogue = dialogue.New(dopts...)

	a.sessions = session.NewManager(a.voice, a.catalogs, session.WithMetrics(a.metrics))

	// ── 5. HTTP ──────────────────────────────────────────────────────────
	a.server = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           a.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initDatabase connects to PostgreSQL when a DSN is configured and no
// character source was injected.
func (a *App) initDatabase(ctx context.Context) error {
	if a.charDB != nil || a.cfg.Characters.PostgresDSN == "" {
		if p, ok := a.charDB.(health.Pinger); ok {
			a.pinger = p
		}
		return nil
	}

	pool, err := pgxpool.New(ctx, a.cfg.Characters.PostgresDSN)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() error { pool.Close(); return nil })

	store := character.NewPostgresStore(pool)
	if err := store.Migrate(ctx); err != nil {
		return err
	}
	a.charDB = store
	a.pinger = pool
	slog.Info("character database connected")
	return nil
}

func (a *App) buildCatalog(ctx context.Context, cfg *config.Config) (*character.Catalog, error) {
	return character.Build(ctx, character.Sources{
		Entries: cfg.Characters.Entries,
		File:    cfg.Characters.File,
		DB:      a.charDB,
		Default: cfg.Characters.Default,
	})
}

func (a *App) routes() http.Handler {
	cfg := a.cfg
	mux := http.NewServeMux()

	apiOpts := []api.Option{
		api.WithDialogue(a.dialogue),
		api.WithStaticDir(cfg.Server.StaticDir),
		api.WithVersion(a.version),
		api.WithProviderConfigured(a.providers.TTS != nil),
		api.WithSimulatedDuration(cfg.Audio.SimulatedDuration),
	}
	if abs, err := filepath.Abs(cfg.Audio.Dir); err == nil {
		if sabs, err := filepath.Abs(filepath.Join(cfg.Server.StaticDir, "audio")); err == nil && abs != sabs {
			apiOpts = append(apiOpts, api.WithAudioDir(cfg.Audio.Dir))
		}
	}
	if a.providers.TTS != nil {
		apiOpts = append(apiOpts, api.WithVoices(a.providers.TTS))
	}
	if a.providers.Breakers != nil {
		apiOpts = append(apiOpts, api.WithBreakers(a.providers.Breakers))
	}
	api.New(a.voice, a.catalogs, apiOpts...).Register(mux)

	checkers := []health.Checker{
		health.Catalog(a.catalogs),
		health.DirWritable("audio_dir", cfg.Audio.Dir),
	}
	if a.pinger != nil {
		checkers = append(checkers, health.Ping("database", a.pinger))
	}
	health.New(checkers).Register(mux)

	if a.metricsHandler != nil {
		mux.Handle("GET /metrics", a.metricsHandler)
	}

	ws := a.sessions.Handler(session.HandlerConfig{OriginPatterns: cfg.Server.AllowedOrigins})
	mux.Handle("GET /ws/{session_id}", ws)
	mux.Handle("GET /ws", ws)

	return observe.Middleware(a.metrics)(api.CORS(cfg.Server.AllowedOrigins)(mux))
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Catalogs returns the published character catalog.
func (a *App) Catalogs() *character.Store {
	return a.catalogs
}

// Sessions returns the session manager.
func (a *App) Sessions() *session.Manager {
	return a.sessions
}

// Run serves HTTP, prunes stored audio and, when configured, watches the
// config file. It blocks until ctx is cancelled or a component fails, then
// closes all sessions and drains the server.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	ln := a.listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", a.cfg.Server.ListenAddr)
		if err != nil {
			return fmt.Errorf("app: listen: %w", err)
		}
	}
	slog.Info("http server listening", "addr", ln.Addr().String())

	g.Go(func() error {
		if err := a.server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.sessions.CloseAll()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.server.Shutdown(sctx)
	})

	g.Go(func() error {
		return a.audio.Run(gctx, a.cfg.Audio.CleanupInterval)
	})

	if a.configPath != "" {
		w, err := config.NewWatcher(a.configPath, a.ApplyConfig)
		if err != nil {
			slog.Warn("config watcher disabled", "path", a.configPath, "err", err)
		} else {
			g.Go(func() error { return w.Run(gctx) })
		}
	}

	slog.Info("app running", "tts", a.providers.TTSName, "llm", a.providers.LLMName)
	return g.Wait()
}

// ApplyConfig applies the hot-reloadable differences between old and next:
// the log level and the character catalog. Other changes are logged as
// requiring a restart.
func (a *App) ApplyConfig(old, next *config.Config) {
	d := config.Diff(old, next)

	if d.LogLevelChanged && a.level != nil {
		a.level.Set(d.NewLogLevel.Level())
		slog.Info("log level changed", "level", d.NewLogLevel)
	}

	if d.CharactersChanged {
		if old.Characters.PostgresDSN != next.Characters.PostgresDSN {
			slog.Warn("characters.postgres_dsn changed; the connection is kept until restart")
		}
		ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
		defer cancel()
		a.ReloadCatalog(ctx, next)
	}

	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes require a restart", "sections", d.RestartRequired)
	}
}

// ReloadCatalog rebuilds the character catalog from cfg and publishes it.
// On failure the current catalog stays in place.
func (a *App) ReloadCatalog(ctx context.Context, cfg *config.Config) error {
	cat, err := a.buildCatalog(ctx, cfg)
	if err != nil {
		a.metrics.RecordCatalogReload(ctx, "error")
		slog.Error("character catalog reload failed, keeping previous", "err", err)
		return err
	}
	a.catalogs.Replace(cat)
	a.metrics.RecordCatalogReload(ctx, "ok")
	slog.Info("character catalog reloaded", "characters", cat.Len(), "default", cat.DefaultID())
	return nil
}

// Shutdown closes all sessions and releases resources acquired by New. It
// respects the context deadline: if ctx expires before all closers finish,
// remaining closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		a.sessions.CloseAll()
		if err := a.server.Shutdown(ctx); err != nil {
			slog.Warn("http shutdown error", "err", err)
		}
		shutdownErr = a.closeAll(ctx)
		slog.Info("shutdown complete")
	})
	return shutdownErr
}

func (a *App) closeAll(ctx context.Context) error {
	for i, closer := range a.closers {
		select {
		case <-ctx.Done():
			slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
			return ctx.Err()
		default:
		}
		if err := closer(); err != nil {
			slog.Warn("closer error", "index", i, "err", err)
		}
	}
	return nil
}

// runClosers releases partial state when New fails.
func (a *App) runClosers() {
	_ = a.closeAll(context.Background())
}
