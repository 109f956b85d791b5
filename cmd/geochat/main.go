// GeoChat - streaming map-chat client core
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

	"github.com/avolkov/geochat/internal/auth"
	"github.com/avolkov/geochat/internal/config"
	"github.com/avolkov/geochat/internal/extract"
	"github.com/avolkov/geochat/internal/gateway"
	"github.com/avolkov/geochat/internal/geo"
	"github.com/avolkov/geochat/internal/middleware"
	"github.com/avolkov/geochat/internal/session"
	"github.com/avolkov/geochat/internal/store"
	"github.com/avolkov/geochat/internal/transport"
	"github.com/avolkov/geochat/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

const geocodeCacheMaxAge = 30 * 24 * time.Hour

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting geochat", "port", cfg.Port, "assistant", cfg.AssistantURL, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize geocode cache", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close geocode cache", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Geocode cache health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Geocode cache ready")

	geocoder := geo.NewCachedGeocoder(geo.NewHTTPGeocoder(cfg.GeocoderURL), repo, logger)
	resolver := geo.NewResolver(geocoder, logger)
	extractor := extract.New(logger)
	tokens := auth.NewStaticProvider(cfg.AuthToken)
	dialer := &transport.WebsocketDialer{URL: cfg.AssistantURL}

	sess := session.New(dialer, tokens, cfg.Reconnect, extractor, resolver, logger)
	defer sess.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initial connect. Transport failures are retried with backoff by the
	// session itself; only log here.
	if err := sess.Connect(ctx); err != nil {
		slog.Warn("Initial assistant connection failed", "error", err)
	}

	gw := gateway.New(sess, cfg, logger)
	go gw.Run(ctx)

	store.StartPruneWorker(ctx, repo, geocodeCacheMaxAge)

	// Setup router.
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	corsOrigins := []string{"*"}
	if !cfg.IsDevelopment() {
		corsOrigins = []string{cfg.FrontendURL}
	}
	r.Use(middleware.CORS(corsOrigins))

	gw.RegisterRoutes(r)

	// Embedded frontend, with index.html fallback for client-side routes.
	r.Handle("/*", web.SPAHandler())

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 30 * time.Second,
		// No write timeout: the UI websocket is long-lived.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("Gateway listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Gateway failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Gateway forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Geochat stopped")
}
