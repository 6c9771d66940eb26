package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/jusunglee/hankyu-go/api/handlers"
	"github.com/jusunglee/hankyu-go/internal/auth"
	"github.com/jusunglee/hankyu-go/internal/config"
	"github.com/jusunglee/hankyu-go/internal/kv"
	"github.com/jusunglee/hankyu-go/internal/render"
	"github.com/jusunglee/hankyu-go/pkg/timetable"
)

func main() {
	port := flag.String("port", "", "Server port (overrides PORT)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}
	if *port != "" {
		cfg.Port = *port
	}
	if cfg.AuthURL == "" {
		slog.Error("AUTH_URL is required")
		os.Exit(1)
	}

	ctx := context.Background()

	sessions, err := kv.Open(ctx, cfg.KVBackend, cfg.KVDSN)
	if err != nil {
		slog.Error("Failed to open session store", "backend", cfg.KVBackend, "error", err)
		os.Exit(1)
	}
	defer sessions.Close()

	authenticator, err := auth.NewRemoteAuthenticator(cfg.AuthURL, cfg.AuthTimeout)
	if err != nil {
		slog.Error("Failed to create authenticator", "error", err)
		os.Exit(1)
	}
	gate := auth.NewGate(sessions, authenticator, cfg.SessionWindow)

	client, err := timetable.NewLocal(ctx, timetable.Config{
		DataSource:     cfg.DataSource,
		Lines:          cfg.Lines,
		Directions:     cfg.Directions,
		Location:       cfg.Location,
		ResultLimit:    cfg.ResultLimit,
		LoadTimeout:    cfg.LoadTimeout,
		UpdateInterval: cfg.RefreshInterval,
	})
	if err != nil {
		slog.Error("Failed to load timetable", "source", cfg.DataSource, "error", err)
		os.Exit(1)
	}
	defer client.Close()

	renderer, err := render.NewRenderer()
	if err != nil {
		slog.Error("Failed to parse page template", "error", err)
		os.Exit(1)
	}

	r := mux.NewRouter()
	h := handlers.NewHandler(client, gate, renderer, cfg.Location)
	h.RegisterRoutes(r)

	handler := loggingMiddleware(r)
	// CORS wraps the router so preflight requests never reach route matching
	if withCORS := corsMiddleware(cfg.AllowedOrigins); withCORS != nil {
		handler = withCORS(handler)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("Server starting", "port", cfg.Port, "timezone", cfg.TimeZone, "kv", cfg.KVBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server stopped")
}
