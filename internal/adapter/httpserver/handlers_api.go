package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	apperrors "github.com/pscheid92/databoard/internal/platform/errors"
)

func (s *Server) registerAPIRoutes() {
	s.echo.GET("/api/entries", s.handleListEntries)
	s.echo.GET("/api/entries/:timestamp", s.handleGetEntries)
}

func (s *Server) handleListEntries(c echo.Context) error {
	log, err := s.entries.Entries(c.Request().Context())
	if err != nil {
		return loadError(err)
	}

	if err := c.JSON(http.StatusOK, log); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleGetEntries(c echo.Context) error {
	raw := c.Param("timestamp")
	timestamp, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return apperrors.ValidationError("timestamp must be an integer").WithField("timestamp", raw)
	}

	log, err := s.entries.EntriesAt(c.Request().Context(), timestamp)
	if err != nil {
		return loadError(err).WithField("timestamp", timestamp)
	}
	if len(log) == 0 {
		return apperrors.NotFoundError("no entries with this timestamp").WithField("timestamp", timestamp)
	}

	if err := c.JSON(http.StatusOK, log); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func loadError(err error) *apperrors.Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.ExternalError("storage timed out", err)
	}
	return apperrors.InternalError("failed to load entries", err)
}
