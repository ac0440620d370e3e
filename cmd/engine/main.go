package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rekindle/internal/config"
	"rekindle/internal/database"
	"rekindle/internal/engine"
	"rekindle/internal/handlers"
	"rekindle/internal/logger"
	"rekindle/internal/utils"
	"rekindle/internal/websocket"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger.Init(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

// app is everything run() needs to serve and later tear down.
type app struct {
	db     database.DBAdapter
	hub    *websocket.Hub
	engine *engine.Engine
	server *handlers.Server
}

// build wires storage, actors, the websocket hub and the HTTP server.
func build(ctx context.Context, cfg *config.Config) (*app, error) {
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := utils.NewMetricsCollector(registry)

	hub := websocket.NewHub()
	system := actor.NewActorSystem()
	eng := engine.NewEngine(system, db, metrics, engine.Options{
		OperationTimeout: cfg.Database.OperationTimeout,
		HideFlagged:      cfg.Moderation.HideFlagged,
		Events:           hub,
	})

	server := handlers.NewServer(cfg, system, eng, metrics, hub, db)
	if cfg.Server.MetricsEnabled {
		server.MetricsHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	}
	return &app{db: db, hub: hub, engine: eng, server: server}, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	a, err := build(ctx, cfg)
	if err != nil {
		return err
	}
	return a.serve(ctx, cfg.Addr(), cfg.Database.Type)
}

// serve blocks until ctx is cancelled or the listener fails. Both exits go
// through the same teardown.
func (a *app) serve(ctx context.Context, addr, dbType string) error {
	hubCtx, stopHub := context.WithCancel(context.Background())
	go a.hub.Run(hubCtx)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           a.server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "addr", httpServer.Addr, "database", dbType)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case serveErr = <-errCh:
		if serveErr != nil {
			logger.Error("HTTP server failed", "error", serveErr)
		}
	}

	a.shutdown(httpServer, stopHub)
	return serveErr
}

// shutdown stops the HTTP server, then the hub, the actors and the store.
func (a *app) shutdown(httpServer *http.Server, stopHub context.CancelFunc) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	stopHub()
	a.engine.Stop()
	if err := a.db.Close(shutdownCtx); err != nil {
		logger.Warn("Failed to close database", "error", err)
	}
	logger.Info("Server stopped")
}
