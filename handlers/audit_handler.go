package handlers

import (
	"net/http"
	"time"

	"github.com/trustplane/trustplane/services/audit"
	"github.com/trustplane/trustplane/utils"
	"go.uber.org/zap"
)

// AuditHandler serves the audit trail query endpoint
type AuditHandler struct {
	audit  *audit.Service
	logger *zap.Logger
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(auditService *audit.Service, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{
		audit:  auditService,
		logger: logger,
	}
}

// Query handles GET /api/v1/audit/records?from=RFC3339&to=RFC3339.
// The window is half-open [from, to); it defaults to the last 24 hours.
func (h *AuditHandler) Query(w http.ResponseWriter, r *http.Request) {
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

	records, err := h.audit.Query(r.Context(), from, to)
	if err != nil {
		h.logger.Error("audit query failed", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "")
		return
	}

	_ = utils.WriteOK(w, map[string]interface{}{
		"from":    from,
		"to":      to,
		"count":   len(records),
		"records": records,
	})
}
