// Engage - proactive storefront engagement engine
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

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/shopnudge/engage/internal/api"
	"github.com/shopnudge/engage/internal/cart"
	"github.com/shopnudge/engage/internal/config"
	"github.com/shopnudge/engage/internal/decision"
	"github.com/shopnudge/engage/internal/identity"
	"github.com/shopnudge/engage/internal/middleware"
	"github.com/shopnudge/engage/internal/page"
	"github.com/shopnudge/engage/internal/store"
	"github.com/shopnudge/engage/internal/stream"
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

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("Starting engage", "port", cfg.Port, "dev", cfg.IsDevelopment(),
		"decision_configured", cfg.DecisionConfigured())

	// A broken store degrades to in-memory inside Open; the page never pays
	// for our storage problems.
	repo := store.Open(cfg.DBPath)
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Store health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Store connected")

	classifier := page.New()
	if cfg.RulesPath != "" {
		rules, err := page.LoadRules(cfg.RulesPath)
		if err != nil {
			slog.Warn("Could not load page rules, using defaults",
				"path", cfg.RulesPath, "error", err)
		} else {
			classifier = page.NewFromRules(rules)
			slog.Info("Page rules loaded", "path", cfg.RulesPath, "rules", len(rules))
		}
	}

	carts := cart.NewFetcher()
	decisions := decision.NewClient(cfg.DecisionEndpoint)
	registry := stream.NewRegistry()

	streamHandler := stream.NewHandler(repo, classifier, carts, decisions, registry, cfg)
	apiHandler := api.NewHandler(repo, decisions, registry, cfg)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(identity.Middleware(cfg.IsDevelopment()))

	r.Get("/healthz", apiHandler.Healthz)
	r.Get("/track/config", apiHandler.TrackConfig)
	r.Post("/track/beacon", apiHandler.TrackBeacon)
	r.Get("/track/stream", streamHandler.ServeHTTP)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
		// Websocket streams live for the whole page visit, so no write
		// timeout.
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store.StartSweeper(ctx, repo, cfg.SessionTTL, registry.Close)

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
