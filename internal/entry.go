// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/slipbox/internal/api"
	"github.com/starford/slipbox/internal/noteservice"
	"github.com/starford/slipbox/internal/reconcile"
	"github.com/starford/slipbox/internal/registry"
	"github.com/starford/slipbox/internal/sse"
	"github.com/starford/slipbox/internal/storage"
	"github.com/starford/slipbox/internal/workspace"
)

// App is an opened slip box.
type App struct {
	Config    *Config
	Logger    *slog.Logger
	Registry  *registry.DB
	Workspace *workspace.Workspace
	Engine    *reconcile.Engine
	Service   *noteservice.Service
}

// Open loads the slip box described by the options: logger, storage,
// registry and engine. The caller must Close the App.
func Open(opts ...Option) (*App, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	out := app.logOutput
	if out == nil {
		out = os.Stdout
	}
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("workspace_root", cfg.Workspace.Root),
		slog.String("notes_dir", cfg.Workspace.NotesDir),
		slog.String("manifest", cfg.Workspace.Manifest),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	if err := os.MkdirAll(cfg.Workspace.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace dir: %w", err)
	}
	store, err := storage.NewFS(cfg.Workspace.Root)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	db, err := registry.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init registry: %w", err)
	}

	ws := workspace.New(store, db, cfg.Workspace.Layout())
	engineOpts := []reconcile.Option{
		reconcile.WithLogger(logger),
		reconcile.WithCallbacks(app.callbacks),
	}
	if app.resolver != nil {
		engineOpts = append(engineOpts, reconcile.WithResolver(app.resolver))
	}
	eng := reconcile.New(ws, engineOpts...)

	return &App{
		Config:    cfg,
		Logger:    logger,
		Registry:  db,
		Workspace: ws,
		Engine:    eng,
		Service:   noteservice.NewService(eng),
	}, nil
}

// Close releases the registry.
func (a *App) Close() error {
	return a.Registry.Close()
}

// Run serves the HTTP API and watches the notes directory until ctx is
// cancelled or a shutdown signal arrives.
func Run(ctx context.Context, opts ...Option) error {
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	app, err := Open(append(opts, WithCallbacks(broker.Callbacks()))...)
	if err != nil {
		return err
	}
	defer app.Close()
	cfg, logger := app.Config, app.Logger

	// Run initial sync.
	if rep, err := app.Engine.Sync(); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	} else if err := rep.Err(); err != nil {
		logger.Warn("initial sync finished with failures", slog.String("error", err.Error()))
	}

	apiRouter := api.NewRouter(app.Service, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		if _, err := app.Registry.ListDocuments(); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"registry unavailable"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := os.MkdirAll(cfg.Workspace.NotesPath(), 0o755); err != nil {
			return fmt.Errorf("create notes dir: %w", err)
		}
		return reconcile.Watch(gCtx, app.Engine, cfg.Workspace.NotesPath(), cfg.Watch.Options())
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return context.Canceled
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
