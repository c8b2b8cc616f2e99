package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

type checkerFunc func(ctx context.Context) error

func (f checkerFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

func TestHealthHandler_Live(t *testing.T) {
	handler := NewHealthHandler(nil, zaptest.NewLogger(t))

	rec := httptest.NewRecorder()
	handler.Live(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthHandler_ReadyAllPassing(t *testing.T) {
	handler := NewHealthHandler(map[string]HealthChecker{
		"database": checkerFunc(func(ctx context.Context) error { return nil }),
	}, zaptest.NewLogger(t))

	rec := httptest.NewRecorder()
	handler.Ready(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthHandler_ReadyFailingDependency(t *testing.T) {
	handler := NewHealthHandler(map[string]HealthChecker{
		"database": checkerFunc(func(ctx context.Context) error { return errors.New("connection refused") }),
	}, zaptest.NewLogger(t))

	rec := httptest.NewRecorder()
	handler.Ready(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}
