package main

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/taskwire/taskwire/internal/api"
	"github.com/taskwire/taskwire/internal/bus"
	"github.com/taskwire/taskwire/internal/cache"
	"github.com/taskwire/taskwire/internal/config"
	"github.com/taskwire/taskwire/internal/state"
	"github.com/taskwire/taskwire/internal/telemetry"
)

// app is the shared bootstrap for one-shot subcommands. Watch mode wires its
// own, larger graph in runWatch.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	logClose io.Closer
	bus      *bus.Bus
	sessions *state.SessionStore
	client   *api.Client
	store    *cache.Store
}

// newApp loads config and builds the API client plus local stores. Logs go
// to the file only; subcommand output on stdout/stderr stays clean.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	logger, logClose, err := telemetry.NewLogger(cfg.HomeDir, cfg.LogLevel, true)
	if err != nil {
		return nil, fmt.Errorf("logger init: %w", err)
	}
	slog.SetDefault(logger)

	sessions, err := state.NewSessionStore(cfg.HomeDir)
	if err != nil {
		logClose.Close()
		return nil, fmt.Errorf("session store: %w", err)
	}

	store, err := cache.Open(filepath.Join(cfg.HomeDir, "cache.db"))
	if err != nil {
		logClose.Close()
		return nil, fmt.Errorf("open cache: %w", err)
	}

	b := bus.New()
	client := api.New(api.Config{
		BaseURL:  cfg.ServerURL,
		Sessions: sessions,
		Bus:      b,
		Logger:   logger,
		Timeout:  time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
	})

	return &app{
		cfg:      cfg,
		logger:   logger,
		logClose: logClose,
		bus:      b,
		sessions: sessions,
		client:   client,
		store:    store,
	}, nil
}

func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
	if a.logClose != nil {
		a.logClose.Close()
	}
}

// requireSession fails fast for subcommands that need a logged-in user.
func (a *app) requireSession() (state.Session, error) {
	sess, ok := a.sessions.Current()
	if !ok || sess.Token == "" {
		return state.Session{}, fmt.Errorf("not logged in; run %q first", "taskwire login")
	}
	return sess, nil
}
