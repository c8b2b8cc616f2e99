package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trustplane/trustplane/models"
	"github.com/trustplane/trustplane/services/metrics"
	"go.uber.org/zap/zaptest"
)

func newMetricsHandler(t *testing.T) (*MetricsHandler, *metrics.Service) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	service := metrics.NewService(metrics.DefaultConfig(), logger)
	t.Cleanup(service.Close)
	return NewMetricsHandler(service, logger), service
}

func TestMetricsHandler_Aggregate(t *testing.T) {
	handler, service := newMetricsHandler(t)

	now := time.Now()
	service.ReplayAudit([]*models.AuditRecord{
		{Decision: models.Decision{Outcome: models.DecisionAuto, OperationType: models.OperationTypeGit, DecidedAt: now}, RecordedAt: now},
		{Decision: models.Decision{Outcome: models.DecisionManual, OperationType: models.OperationTypeFile, DecidedAt: now}, RecordedAt: now},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics/aggregate", nil)
	rec := httptest.NewRecorder()
	handler.Aggregate(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var agg models.AggregatedMetrics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &agg))
	assert.Equal(t, 2, agg.TotalOperations)
	assert.InDelta(t, 50.0, agg.AutoApprovalRate, 0.0001)
}

func TestMetricsHandler_AggregateRejectsBadWindow(t *testing.T) {
	handler, _ := newMetricsHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics/aggregate?from=notatime", nil)
	rec := httptest.NewRecorder()
	handler.Aggregate(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsHandler_Snapshot(t *testing.T) {
	handler, _ := newMetricsHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics/snapshot", nil)
	rec := httptest.NewRecorder()
	handler.Snapshot(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var snapshot models.MetricsSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Zero(t, snapshot.TodayOperations)
}
