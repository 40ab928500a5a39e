// connsolve - puzzle assistant server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/connsolve/internal/api"
	"github.com/ashureev/connsolve/internal/config"
	"github.com/ashureev/connsolve/internal/live"
	"github.com/ashureev/connsolve/internal/middleware"
	"github.com/ashureev/connsolve/internal/recommend"
	"github.com/ashureev/connsolve/internal/session"
	"github.com/ashureev/connsolve/internal/store"
	"github.com/ashureev/connsolve/internal/strategy/builtin"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped successfully")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "default_strategy", cfg.DefaultStrategy)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var archive store.Archive
	if cfg.ArchiveEnabled {
		repo, err := store.NewSQLite(cfg.DBPath)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := repo.Close(); closeErr != nil {
				slog.Error("Failed to close archive", "error", closeErr)
			}
		}()
		if err := repo.Ping(ctx); err != nil {
			return err
		}
		slog.Info("Game archive connected", "path", cfg.DBPath)
		archive = repo
	} else {
		slog.Info("Game archive disabled")
	}

	strategies, closeStrategies := builtin.NewRegistry(ctx, cfg, logger)
	defer closeStrategies()

	sessions := session.NewStore(session.Options{
		AllowLatest: cfg.AllowLatestSession,
		Logger:      logger,
	})
	if cfg.AllowLatestSession {
		slog.Warn("Latest-session targeting is enabled; it is deprecated and only safe for single-game deployments")
	}

	orch := recommend.New(recommend.Config{
		Sessions:        sessions,
		Strategies:      strategies,
		DefaultStrategy: cfg.DefaultStrategy,
		Logger:          logger,
	})
	hub := live.NewHub(sessions, cfg.AllowedOrigins(), logger)

	handler := api.NewHandler(api.Deps{
		Sessions:         sessions,
		Recommender:      orch,
		Archive:          archive,
		Hub:              hub,
		RecommendTimeout: cfg.RecommendTimeout,
		Logger:           logger,
	})

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins()))
	handler.RegisterRoutes(r)

	// No WriteTimeout: websocket streams stay open.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
