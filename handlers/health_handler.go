package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/trustplane/trustplane/utils"
	"go.uber.org/zap"
)

// HealthChecker is implemented by dependencies that can report readiness
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	checkers map[string]HealthChecker
	logger   *zap.Logger
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(checkers map[string]HealthChecker, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		checkers: checkers,
		logger:   logger,
	}
}

// Live handles GET /healthz
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, map[string]string{"status": "ok"})
}

// Ready handles GET /readyz: every registered dependency must pass
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	failures := make(map[string]interface{})
	for name, checker := range h.checkers {
		if err := checker.HealthCheck(ctx); err != nil {
			h.logger.Warn("readiness check failed",
				zap.String("dependency", name),
				zap.Error(err))
			failures[name] = err.Error()
		}
	}

	if len(failures) > 0 {
		_ = utils.WriteServiceUnavailable(w, "Not ready", failures)
		return
	}
	_ = utils.WriteOK(w, map[string]string{"status": "ready"})
}
