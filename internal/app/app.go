package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"wine-cellar/internal/cellar"
	"wine-cellar/internal/config"
	"wine-cellar/internal/database"
	"wine-cellar/internal/evening"
	"wine-cellar/internal/insight"
	"wine-cellar/internal/llm"
	"wine-cellar/internal/metrics"
	"wine-cellar/internal/session"
	"wine-cellar/internal/supabase"
)

// draftTTL bounds how long an unstarted lineup survives.
const draftTTL = 12 * time.Hour

const draftSession = "evening_draft"

var (
	// ErrNoPlan is returned when a plan command has nothing to act on.
	ErrNoPlan = errors.New("no evening plan in progress")
	// ErrLLMUnavailable is returned by AI features when no model key is configured.
	ErrLLMUnavailable = errors.New("no language model configured")
)

// App holds the application's dependencies.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	db        *database.DB
	source    cellar.Source
	bottles   *cellar.Repository
	snapshots insight.SnapshotStore
	engine    *insight.Engine
	machine   *evening.Machine
	drafts    *session.Repository
	metrics   *metrics.Store

	textGen llm.TextGenerator
	closers []llm.Closer
}

// Option customizes an App built by New.
type Option func(*App)

// WithTextGenerator replaces the model clients built from the config.
func WithTextGenerator(gen llm.TextGenerator) Option {
	return func(a *App) { a.textGen = gen }
}

// WithSource replaces the bottle source built from the config.
func WithSource(src cellar.Source) Option {
	return func(a *App) { a.source = src }
}

// New opens the database and wires every component from cfg.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	db, err := database.NewDB(cfg.DBPath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	a := &App{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		bottles: cellar.NewRepository(db.SQL),
		drafts:  session.NewRepository(db.SQL),
		metrics: metrics.NewStore(db.SQL),
		machine: evening.NewMachine(evening.NewSQLitePlanStore(db.SQL), logger),
	}
	a.source = a.bottles
	if cfg.UseSupabase() {
		a.source = supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseAnonKey, cfg.SupabaseJWTSecret)
		logger.Info("reading bottles from supabase", zap.String("url", cfg.SupabaseURL))
	}

	a.snapshots = insight.NewSQLiteSnapshotStore(db.SQL)
	if cfg.SnapshotDir != "" {
		fileStore, err := insight.NewFileSnapshotStore(cfg.SnapshotDir)
		if err != nil {
			db.Close()
			return nil, err
		}
		a.snapshots = fileStore
	}
	a.engine = insight.NewEngine(a.snapshots, logger,
		insight.WithThreshold(cfg.StandoutRating),
		insight.WithLookback(cfg.DeltaLookback),
	)

	if err := a.initLLM(ctx); err != nil {
		db.Close()
		return nil, err
	}

	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

func (a *App) initLLM(ctx context.Context) error {
	var gens []llm.TextGenerator
	if a.cfg.GeminiAPIKey != "" {
		gemini, err := llm.NewGeminiClient(ctx, a.cfg.GeminiAPIKey, a.cfg.GeminiModel)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, gemini)
		gens = append(gens, gemini)
	}
	if a.cfg.GroqAPIKey != "" {
		gens = append(gens, llm.NewGroqClient(a.cfg.GroqAPIKey))
	}
	if len(gens) > 0 {
		a.textGen = llm.NewFallback(a.logger, gens...)
	}
	return nil
}

// Close releases the model clients and the database.
func (a *App) Close() error {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Warn("failed to close model client", zap.Error(err))
		}
	}
	return a.db.Close()
}

// Config returns the configuration the app was built with.
func (a *App) Config() *config.Config {
	return a.cfg
}

// DataDir is the directory holding the database and snapshot files.
func (a *App) DataDir() string {
	return filepath.Dir(a.cfg.DBPath)
}
