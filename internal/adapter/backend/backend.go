// Package backend opens the log store backend selected by STORE_BACKEND.
// The server and boardctl share it so both always talk to the same storage.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pscheid92/databoard/internal/adapter/filestore"
	"github.com/pscheid92/databoard/internal/adapter/metrics"
	"github.com/pscheid92/databoard/internal/adapter/postgres"
	"github.com/pscheid92/databoard/internal/adapter/redis"
	"github.com/pscheid92/databoard/internal/adapter/sqlite"
	"github.com/pscheid92/databoard/internal/logstore"
	"github.com/pscheid92/databoard/internal/platform/config"
)

// Open connects the configured backend, running migrations where the backend
// has any. The returned close function releases its resources.
func Open(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (logstore.Backend, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendFile:
		return filestore.New(cfg.DataFile), func() {}, nil

	case config.BackendSQLite:
		b, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite backend: %w", err)
		}
		return b, func() { closeLogged("sqlite", b.Close) }, nil

	case config.BackendPostgres:
		tracer := postgres.NewMetricsTracer(metrics.NewDBMetrics(reg))
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL, tracer)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		if err := postgres.RunMigrationsWithLock(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return postgres.NewBackend(pool), pool.Close, nil

	case config.BackendRedis:
		rdb, err := redis.NewClient(ctx, cfg.RedisURL, metrics.NewRedisMetrics(reg))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		b := redis.NewBackend(rdb, cfg.RedisKey)
		return b, func() { closeLogged("redis", b.Close) }, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func closeLogged(name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		slog.Error("Failed to close store backend", "backend", name, "error", err)
	}
}
