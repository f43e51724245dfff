package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	cause := fmt.Errorf("disk full")

	tests := []struct {
		name       string
		err        *Error
		wantType   ErrorType
		wantStatus int
		wantCause  error
	}{
		{"validation", ValidationError("bad timestamp"), TypeValidation, http.StatusBadRequest, nil},
		{"not found", NotFoundError("no entries"), TypeNotFound, http.StatusNotFound, nil},
		{"conflict", ConflictError("concurrent update", cause), TypeConflict, http.StatusConflict, cause},
		{"internal", InternalError("write failed", cause), TypeInternal, http.StatusInternalServerError, cause},
		{"external", ExternalError("backend down", cause), TypeExternal, http.StatusServiceUnavailable, cause},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.err.Type)
			assert.Equal(t, tt.wantStatus, tt.err.HTTPStatus())
			assert.Equal(t, tt.wantCause, tt.err.Cause)
			assert.NotNil(t, tt.err.Context)
			assert.Contains(t, tt.err.Error(), string(tt.wantType))
		})
	}
}

func TestError_WithoutCauseOmitsNil(t *testing.T) {
	err := InternalError("something went wrong", nil)
	assert.Equal(t, "internal: something went wrong", err.Error())
}

func TestError_Unwrap(t *testing.T) {
	sentinel := errors.New("sentinel")
	err := InternalError("wrapped", fmt.Errorf("layer: %w", sentinel))
	assert.ErrorIs(t, err, sentinel)
}

func TestWithField(t *testing.T) {
	err := ValidationError("bad").WithField("event", "delete_entry").WithField("conn_id", "c1")

	resp := err.ToResponse()
	assert.Equal(t, "bad", resp.Error)
	assert.Equal(t, TypeValidation, resp.Type)
	assert.Equal(t, map[string]any{"event": "delete_entry", "conn_id": "c1"}, resp.Context)
}

func TestAsStructuredError(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.Nil(t, AsStructuredError(nil))
	})

	t.Run("structured passes through", func(t *testing.T) {
		orig := NotFoundError("missing")
		assert.Same(t, orig, AsStructuredError(fmt.Errorf("handler: %w", orig)))
	})

	t.Run("deadline becomes external", func(t *testing.T) {
		got := AsStructuredError(fmt.Errorf("load: %w", context.DeadlineExceeded))
		assert.Equal(t, TypeExternal, got.Type)
	})

	t.Run("plain error becomes internal", func(t *testing.T) {
		got := AsStructuredError(errors.New("boom"))
		assert.Equal(t, TypeInternal, got.Type)
		assert.Equal(t, "internal server error", got.Message)
	})
}

func TestMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		handlerErr error
		wantStatus int
		wantType   ErrorType
	}{
		{"structured validation", ValidationError("bad timestamp"), http.StatusBadRequest, TypeValidation},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, TypeInternal},
		{"echo http error", echo.NewHTTPError(http.StatusNotFound, "nope"), http.StatusNotFound, TypeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_errors_total"}, []string{"type"})

			e := echo.New()
			e.Use(Middleware(counter))
			e.GET("/", func(echo.Context) error { return tt.handlerErr })

			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.InDelta(t, 1, testutil.ToFloat64(counter.WithLabelValues(string(tt.wantType))), 0)
		})
	}
}

func TestMiddleware_NilCounter(t *testing.T) {
	e := echo.New()
	e.Use(Middleware(nil))
	e.GET("/", func(echo.Context) error { return ValidationError("bad") })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"bad","type":"validation"}`, rec.Body.String())
}

func TestFromHTTPError(t *testing.T) {
	err := FromHTTPError(&echo.HTTPError{Code: http.StatusServiceUnavailable})
	assert.Equal(t, TypeExternal, err.Type)
	assert.Equal(t, "Service Unavailable", err.Message)
}
