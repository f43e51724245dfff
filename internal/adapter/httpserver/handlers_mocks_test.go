package httpserver

import (
	"context"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/databoard/internal/domain"
	"github.com/pscheid92/databoard/internal/platform/config"
	apperrors "github.com/pscheid92/databoard/internal/platform/errors"
)

// --- Mock implementations ---

type mockEntryReader struct {
	entriesFn   func(ctx context.Context) (domain.Log, error)
	entriesAtFn func(ctx context.Context, timestamp int64) (domain.Log, error)
}

func (m *mockEntryReader) Entries(ctx context.Context) (domain.Log, error) {
	if m.entriesFn != nil {
		return m.entriesFn(ctx)
	}
	return domain.Log{}, nil
}

func (m *mockEntryReader) EntriesAt(ctx context.Context, timestamp int64) (domain.Log, error) {
	if m.entriesAtFn != nil {
		return m.entriesAtFn(ctx, timestamp)
	}
	return domain.Log{}, nil
}

// --- Test helpers ---

func newTestServer(t *testing.T, entries entryReader, opts ...func(*Server)) *Server {
	t.Helper()

	e := echo.New()

	srv := &Server{
		echo:    e,
		config:  &config.Config{Port: "0", StaticDir: t.TempDir(), StoreBackend: config.BackendFile},
		entries: entries,
	}

	for _, opt := range opts {
		opt(srv)
	}

	// Register routes so endpoints are available for testing
	srv.registerRoutes()

	return srv
}

func withHealthChecks(checks ...HealthCheck) func(*Server) {
	return func(s *Server) {
		s.healthChecks = checks
	}
}

func withStaticDir(dir string) func(*Server) {
	return func(s *Server) {
		s.config.StaticDir = dir
	}
}

func withWebsocketHandler(h http.Handler) func(*Server) {
	return func(s *Server) {
		s.websocketHandler = h
	}
}

func withMetricsHandler(h http.Handler) func(*Server) {
	return func(s *Server) {
		s.metricsHandler = h
	}
}

// callHandler wraps a handler with error middleware, matching production behavior
func callHandler(handler echo.HandlerFunc, c echo.Context) error {
	return apperrors.Middleware(nil)(handler)(c)
}
