// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
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

	"github.com/starford/folio/internal/api"
	"github.com/starford/folio/internal/content"
	"github.com/starford/folio/internal/index"
	"github.com/starford/folio/internal/postservice"
	"github.com/starford/folio/internal/sse"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{version: "dev"}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	logger := app.logger
	if logger == nil {
		logger = NewLogger(os.Stdout, cfg.App.LogLevel, true)
	}
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("content_root", cfg.Content.Root),
		slog.String("content_pattern", cfg.Content.Pattern),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Bool("watch", cfg.Live.Watch),
		slog.String("log_level", cfg.App.LogLevel.String()))

	broker := sse.NewBroker(cfg.Live.TaxonomyThrottle.Std(), sse.WithHeartbeat(cfg.Live.Heartbeat.Std()))
	defer broker.Close()

	var services *Services
	notify := func(kind, path string) {
		broker.PublishPostEvent(sse.PostEvent{
			Kind:    kind,
			Path:    path,
			URL:     content.URLFor(path),
			Version: services.Posts.Version(),
		})
	}

	services, err := OpenServices(cfg, logger, postservice.WithNotifier(notify))
	if err != nil {
		return err
	}
	defer services.Close()

	// Initial sync and load.
	if err := services.Service.Rebuild(ctx); err != nil {
		logger.Warn("initial rebuild failed", slog.String("error", err.Error()))
	}

	apiRouter := api.NewRouter(services.Service, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeHealth(w, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		writeHealth(w, map[string]string{
			"status":   "ok",
			"version":  app.version,
			"content":  services.Posts.Version(),
			"built_at": services.Posts.BuiltAt().UTC().Format(time.RFC3339),
		})
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Live.Watch {
		// Each batch of index changes reloads the collection once and is
		// pushed to SSE clients.
		g.Go(func() error {
			err := index.Watch(gCtx, services.DB, services.Store, services.Posts.Match, logger, func(changes []index.Change) {
				if err := services.Posts.Rebuild(gCtx); err != nil {
					logger.Warn("rebuild after change failed", slog.Int("changes", len(changes)), slog.String("error", err.Error()))
					return
				}
				for _, c := range changes {
					notify(c.Kind, c.Path)
				}
			}, index.WithDebounce(cfg.Live.Debounce.Std()))
			if err != nil {
				logger.Error("watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Shut down on SIGINT/SIGTERM or when another goroutine fails.
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down server...")

		// Ends open event streams; Shutdown waits for active handlers.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

func writeHealth(w http.ResponseWriter, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(body)
}
