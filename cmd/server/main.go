// Command server exposes a Qoyllur engine over a JSON HTTP API with
// Prometheus metrics and optional graph hot reload.
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

	"github.com/brunobiangulo/qoyllur"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (YAML or JSON)")
	addr := flag.String("addr", ":8080", "Listen address")
	watch := flag.Bool("watch", false, "Reload the graph when its file changes")
	flag.Parse()

	cfg, err := qoyllur.LoadConfig(*configPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}
	level, err := qoyllur.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		slog.Error("parsing log level", "error", err)
		os.Exit(1)
	}

	// Structured JSON logging.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})))

	apiKey := os.Getenv("QOYLLUR_API_KEY")
	corsOrigins := os.Getenv("QOYLLUR_CORS_ORIGINS")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, err := qoyllur.New(ctx, cfg)
	if err != nil {
		slog.Error("creating engine", "error", err)
		os.Exit(1)
	}

	m := newMetrics()
	box := newEngineBox(engine, m)

	var watcher *graphWatcher
	if *watch {
		watcher, err = newGraphWatcher(box, cfg, 0)
		if err != nil {
			slog.Error("watching graph", "path", cfg.GraphPath, "error", err)
			os.Exit(1)
		}
		go watcher.run(ctx)
	}

	srv := &http.Server{
		Addr:         *addr,
		Handler:      newRouter(box, m, apiKey, corsOrigins),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", *addr, "graph", cfg.GraphPath, "entities", engine.Stats().Entities)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}
	if watcher != nil {
		watcher.wait()
	}

	slog.Info("server stopped")
}

// newRouter wires the routes and the middleware chain:
// recovery -> cors -> request id -> auth -> logging -> mux.
func newRouter(box *engineBox, m *metrics, apiKey, corsOrigins string) http.Handler {
	h := newHandler(box, m)
	mux := http.NewServeMux()

	mux.HandleFunc("POST /ask", h.handleAsk)
	mux.HandleFunc("GET /search", h.handleSearch)
	mux.HandleFunc("GET /entities/{id}", h.handleEntity)
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.Handle("GET /metrics", m.handler())

	var handler http.Handler = mux
	handler = logMiddleware(m, handler)
	handler = authMiddleware(apiKey, handler)
	handler = requestIDMiddleware(handler)
	handler = corsMiddleware(corsOrigins, handler)
	handler = recoveryMiddleware(handler)
	return handler
}
