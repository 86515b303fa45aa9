// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/keycat/internal/api"
	"github.com/starford/keycat/internal/assets"
	"github.com/starford/keycat/internal/catalog"
	"github.com/starford/keycat/internal/entryservice"
	"github.com/starford/keycat/internal/mcpserver"
	"github.com/starford/keycat/internal/sse"
	"github.com/starford/keycat/internal/storage"
	"github.com/starford/keycat/internal/watch"
)

// NewLogger builds the structured JSON logger and installs it as default.
func NewLogger(level slog.Level, w io.Writer) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

func newApplication(opts []Option, defaultOutput io.Writer) (*application, error) {
	app := &application{logOutput: defaultOutput}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// openCatalog wires the catalog store, its service and the asset library.
func openCatalog(ctx context.Context, cfg *Config, logger *slog.Logger, cb entryservice.EventCallback) (*entryservice.Service, *assets.Library, error) {
	if err := os.MkdirAll(cfg.Catalog.AssetsDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create assets dir: %w", err)
	}
	assetStore, err := storage.NewFS(cfg.Catalog.AssetsDir)
	if err != nil {
		return nil, nil, fmt.Errorf("init asset storage: %w", err)
	}

	store := catalog.New(catalog.WithLogger(logger))
	svc := entryservice.New(store, cfg.Catalog.Path,
		entryservice.WithAutosave(cfg.Catalog.Autosave),
		entryservice.WithEventCallback(cb),
		entryservice.WithLogger(logger))
	if err := svc.Open(ctx); err != nil {
		return nil, nil, fmt.Errorf("open catalog: %w", err)
	}
	return svc, assets.New(assetStore), nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts, os.Stdout)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := NewLogger(cfg.App.LogLevel, app.logOutput)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("catalog_path", cfg.Catalog.Path),
		slog.String("assets_dir", cfg.Catalog.AssetsDir),
		slog.String("log_level", cfg.App.LogLevel.String()))

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	svc, lib, err := openCatalog(ctx, cfg, logger, broker.PublishEntryEvent)
	if err != nil {
		return err
	}

	apiRouter := api.NewRouter(svc, lib, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
		w.Header().Set("Content-Type", "application/json")
		if _, err := os.Stat(cfg.Catalog.AssetsDir); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"assets unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Catalog.Watch {
		g.Go(func() error {
			if err := watch.Watch(gCtx, svc, cfg.Catalog.Path, watch.DefaultDebounce, logger); err != nil {
				logger.Warn("watcher disabled", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

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

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		if !cfg.Catalog.Autosave {
			if err := svc.Save(shutdownCtx); err != nil {
				logger.Error("final save failed", slog.String("error", err.Error()))
			}
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the catalog over MCP on stdin/stdout until stdin closes.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts, os.Stderr)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := NewLogger(cfg.App.LogLevel, app.logOutput)

	svc, lib, err := openCatalog(ctx, cfg, logger, nil)
	if err != nil {
		return err
	}
	srv := mcpserver.New(svc, lib)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Catalog.Watch {
		g.Go(func() error {
			if err := watch.Watch(gCtx, svc, cfg.Catalog.Path, watch.DefaultDebounce, logger); err != nil {
				logger.Warn("watcher disabled", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	g.Go(func() error {
		defer cancel()
		logger.Info("MCP server listening on stdio", slog.String("catalog_path", cfg.Catalog.Path))
		return srv.ServeStdio()
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	if !cfg.Catalog.Autosave {
		return svc.Save(context.Background())
	}
	return nil
}
