// Command boardctl inspects and repairs the stored board log. It reads the
// same environment configuration as the server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pscheid92/databoard/internal/adapter/backend"
	"github.com/pscheid92/databoard/internal/logstore"
	"github.com/pscheid92/databoard/internal/platform/config"
	"github.com/pscheid92/databoard/internal/platform/logging"
)

func main() {
	if err := newRootCmd(openStore).Execute(); err != nil {
		os.Exit(1)
	}
}

// openStore opens the configured backend. Logs go to stderr so they never
// mix with command output.
func openStore(ctx context.Context) (*logstore.Store, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	slog.SetDefault(logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat))

	b, closeFn, err := backend.Open(ctx, cfg, prometheus.NewRegistry())
	if err != nil {
		return nil, nil, err
	}
	return logstore.New(b, cfg.StoreTimeout, nil), closeFn, nil
}
