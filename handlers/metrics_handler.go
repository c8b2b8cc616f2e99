package handlers

import (
	"net/http"
	"time"

	"github.com/trustplane/trustplane/services/metrics"
	"github.com/trustplane/trustplane/utils"
	"go.uber.org/zap"
)

// MetricsHandler serves the aggregated metrics endpoints
type MetricsHandler struct {
	metrics *metrics.Service
	logger  *zap.Logger
}

// NewMetricsHandler creates a new MetricsHandler
func NewMetricsHandler(metricsService *metrics.Service, logger *zap.Logger) *MetricsHandler {
	return &MetricsHandler{
		metrics: metricsService,
		logger:  logger,
	}
}

// Aggregate handles GET /api/v1/metrics/aggregate?from=RFC3339&to=RFC3339.
// Defaults to the last 24 hours.
func (h *MetricsHandler) Aggregate(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	from := now.Add(-24 * time.Hour)
	to := now

	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			_ = utils.WriteBadRequest(w, "Invalid 'from' timestamp, expected RFC3339", nil)
			return
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			_ = utils.WriteBadRequest(w, "Invalid 'to' timestamp, expected RFC3339", nil)
			return
		}
		to = parsed
	}
	if !from.Before(to) {
		_ = utils.WriteBadRequest(w, "'from' must be before 'to'", nil)
		return
	}

	_ = utils.WriteOK(w, h.metrics.Aggregate(from, to))
}

// Snapshot handles GET /api/v1/metrics/snapshot
func (h *MetricsHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, h.metrics.CurrentSnapshot())
}
