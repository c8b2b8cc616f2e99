package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/trustplane/trustplane/middleware"
	"github.com/trustplane/trustplane/models"
	"github.com/trustplane/trustplane/services/audit"
	"github.com/trustplane/trustplane/services/decision"
	"github.com/trustplane/trustplane/utils"
	"go.uber.org/zap"
)

// DecisionHandler serves approval decisions for agent operations
type DecisionHandler struct {
	engine *decision.Engine
	logger *zap.Logger
}

// NewDecisionHandler creates a new DecisionHandler
func NewDecisionHandler(engine *decision.Engine, logger *zap.Logger) *DecisionHandler {
	return &DecisionHandler{
		engine: engine,
		logger: logger,
	}
}

// DecisionRequest is the request body for POST /api/v1/decisions
type DecisionRequest struct {
	Command string   `json:"command" validate:"required"`
	Args    []string `json:"args"`
	Context struct {
		WorkingDirectory string `json:"working_directory"`
		UserID           string `json:"user_id"`
	} `json:"context"`
}

// Decide handles POST /api/v1/decisions
func (h *DecisionHandler) Decide(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(req); err != nil {
		details := make(map[string]interface{})
		for field, msg := range utils.GetValidationFields(err) {
			details[field] = msg
		}
		_ = utils.WriteBadRequest(w, "Validation failed", details)
		return
	}

	op := models.NewOperation(req.Command, req.Args).
		WithContext(req.Context.WorkingDirectory, req.Context.UserID)

	result, err := h.engine.Decide(ctx, *op)
	if err != nil {
		var auditErr *audit.Error
		if errors.As(err, &auditErr) {
			// Fail closed: without a durable audit record the operation
			// is withheld and the caller must fall back to manual review.
			h.logger.Error("decision withheld, audit unavailable",
				zap.String("request_id", requestID),
				zap.String("command", req.Command),
				zap.Error(err))
			_ = utils.WriteServiceUnavailable(w, "Audit trail unavailable, manual approval required", map[string]interface{}{
				"outcome": string(models.DecisionManual),
			})
			return
		}

		h.logger.Error("decision failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteInternalServerError(w, "")
		return
	}

	_ = utils.WriteOK(w, result)
}
