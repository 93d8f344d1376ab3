package errors

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_HTTPStatus(t *testing.T) {
	tests := []struct {
		err    *Error
		status int
	}{
		{ValidationError("bad input"), http.StatusBadRequest},
		{NotFoundError("missing"), http.StatusNotFound},
		{ConflictError("dupe"), http.StatusConflict},
		{InternalError("boom", nil), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.status, tt.err.HTTPStatus())
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := InternalError("wrapper", cause)

	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "root cause")
}

func TestError_WithField(t *testing.T) {
	err := ValidationError("bad code").WithField("code", "1234")
	assert.Equal(t, "1234", err.Fields["code"])
}

func TestToResponse_HidesInternalCause(t *testing.T) {
	err := InternalError("db exploded", errors.New("pq: connection refused"))
	resp := err.ToResponse()

	assert.Equal(t, "internal server error", resp.Message)
	assert.NotContains(t, fmt.Sprint(resp), "connection refused")
}

func TestAsStructuredError(t *testing.T) {
	structured := NotFoundError("nope")
	assert.Same(t, structured, AsStructuredError(structured))

	plain := errors.New("something")
	converted := AsStructuredError(plain)
	assert.Equal(t, TypeInternal, converted.Type)
	assert.True(t, errors.Is(converted, plain))
}

func TestMiddleware_ConvertsStructuredErrors(t *testing.T) {
	e := echo.New()
	e.Use(Middleware())
	e.GET("/boom", func(c echo.Context) error {
		return ValidationError("invalid thing")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid thing")
}

func TestMiddleware_PassesThroughEchoErrors(t *testing.T) {
	e := echo.New()
	e.Use(Middleware())
	e.GET("/gone", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusTeapot, "teapot")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/gone", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestMiddleware_NoErrorPassesUntouched(t *testing.T) {
	e := echo.New()
	e.Use(Middleware())
	e.GET("/ok", func(c echo.Context) error {
		return c.String(http.StatusOK, "fine")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ok", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fine", rec.Body.String())
}
