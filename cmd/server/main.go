package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pscheid92/databoard/internal/adapter/backend"
	"github.com/pscheid92/databoard/internal/adapter/httpserver"
	"github.com/pscheid92/databoard/internal/adapter/metrics"
	"github.com/pscheid92/databoard/internal/adapter/websocket"
	"github.com/pscheid92/databoard/internal/app"
	"github.com/pscheid92/databoard/internal/broadcast"
	"github.com/pscheid92/databoard/internal/domain"
	"github.com/pscheid92/databoard/internal/logstore"
	"github.com/pscheid92/databoard/internal/platform/config"
	"github.com/pscheid92/databoard/internal/platform/logging"
	"github.com/pscheid92/databoard/internal/platform/version"
)

const (
	startupTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

func runGracefulShutdown(srv *httpserver.Server, hub *broadcast.Hub) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		hub.Stop()

		close(done)
	}()

	return done
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupBackend(cfg *config.Config, reg prometheus.Registerer) (logstore.Backend, func()) {
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	b, closeFn, err := backend.Open(ctx, cfg, reg)
	if err != nil {
		slog.Error("Failed to open store backend", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	return b, closeFn
}

// loadInitialLog loads the stored log once so a corrupt store stops the server
// before any client connects. A corrupt log is reported, never replaced.
func loadInitialLog(ctx context.Context, store *logstore.Store) (int, error) {
	entries, err := store.Load(ctx)
	if errors.Is(err, domain.ErrCorruptLog) {
		return 0, fmt.Errorf("%w; inspect it with 'boardctl dump --raw', then repair it or run 'boardctl reset --yes'", err)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load stored log: %w", err)
	}
	return len(entries), nil
}

func verifyLog(cfg *config.Config, store *logstore.Store) {
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	n, err := loadInitialLog(ctx, store)
	if err != nil {
		slog.Error("Refusing to start", "backend", store.Backend(), "location", cfg.StoreLocation(), "error", err)
		os.Exit(1)
	}
	slog.Info("Log loaded", "backend", store.Backend(), "location", cfg.StoreLocation(), "entries", n)
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	// Initialize structured logging
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "backend", cfg.StoreBackend, "version", version.Get().String())

	reg := metrics.NewRegistry()
	httpMetrics := metrics.NewHTTPMetrics(reg)
	wsMetrics := metrics.NewWebSocketMetrics(reg)
	storeMetrics := metrics.NewStoreMetrics(reg)

	storeBackend, closeBackend := setupBackend(cfg, reg)
	defer closeBackend()

	store := logstore.New(storeBackend, cfg.StoreTimeout, storeMetrics)
	verifyLog(cfg, store)

	hub := broadcast.NewHub(clock, cfg.MaxWebSocketConnections, wsMetrics)
	appSvc := app.NewService(store, hub, clock)

	checkOrigin := websocket.NewCheckOrigin(cfg.AppURL, cfg.IsDevelopment())
	wsHandler := websocket.NewHandler(appSvc, hub, checkOrigin, wsMetrics)

	healthChecks := []httpserver.HealthCheck{
		{Name: store.Backend(), Check: store.Ping},
	}
	srv := httpserver.NewServer(cfg, appSvc, wsHandler, metrics.Handler(reg), httpMetrics, healthChecks)

	done := runGracefulShutdown(srv, hub)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
