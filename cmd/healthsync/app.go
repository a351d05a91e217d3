package main

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hyperengineering/healthsync/internal/annotation"
	"github.com/hyperengineering/healthsync/internal/config"
	"github.com/hyperengineering/healthsync/internal/generation"
	"github.com/hyperengineering/healthsync/internal/ingest"
	"github.com/hyperengineering/healthsync/internal/merge"
	"github.com/hyperengineering/healthsync/internal/store"
	"github.com/hyperengineering/healthsync/internal/types"
	"github.com/hyperengineering/healthsync/internal/worker"
)

// app holds the wired components shared by every command.
type app struct {
	cfg       *config.Config
	store     *store.SQLiteStore
	engine    *merge.Engine
	cache     *annotation.Cache
	pool      *worker.Pool
	modelName string
}

// loadApp loads configuration, installs the logger writing to logOut and
// wires the components.
func loadApp(logOut io.Writer) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	slog.Info("configuration loaded")

	slog.SetDefault(newLogger(logOut, cfg.Log))
	slog.Info("logger initialized", "level", cfg.Log.Level, "format", cfg.Log.Format)

	return newApp(cfg)
}

// newApp wires the components for cfg.
func newApp(cfg *config.Config) (*app, error) {
	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	slog.Info("store initialized", "path", cfg.Database.Path)

	var adapter ingest.Adapter = ingest.Disabled{}
	if cfg.IngestEnabled() {
		adapter = ingest.NewHTTPAdapter(cfg.Ingest.BaseURL, cfg.Ingest.Token, time.Duration(cfg.Ingest.Timeout))
		slog.Info("ingest adapter initialized", "base_url", cfg.Ingest.BaseURL)
	} else {
		slog.Info("ingest disabled, no base_url configured")
	}
	engine := merge.NewEngine(db, adapter, cfg.Location())

	// A nil generator disables annotation without failing startup
	var gen generation.Generator
	modelName := ""
	if cfg.AnnotationEnabled() {
		g, err := generation.NewOpenAI(cfg.Annotation.APIKey, cfg.Annotation.Model)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("create generator: %w", err)
		}
		gen = g
		modelName = g.ModelName()
		slog.Info("generator initialized", "model", modelName)
	} else {
		slog.Info("annotation disabled, no OPENAI_API_KEY configured")
	}

	pool := worker.NewPool(cfg.Annotation.QueueSize, cfg.Annotation.Workers)
	cache := annotation.NewCache(db, gen, pool, time.Duration(cfg.Annotation.Timeout))

	return &app{
		cfg:       cfg,
		store:     db,
		engine:    engine,
		cache:     cache,
		pool:      pool,
		modelName: modelName,
	}, nil
}

// today is the current calendar date in the configured zone.
func (a *app) today() types.Date {
	return types.DateOf(time.Now().In(a.cfg.Location()))
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		slog.Error("store close error", "error", err)
	}
}

// newLogger builds the process logger from the log settings.
func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
