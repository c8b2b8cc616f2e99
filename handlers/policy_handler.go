package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/trustplane/trustplane/middleware"
	"github.com/trustplane/trustplane/models"
	"github.com/trustplane/trustplane/services/policyreport"
	"github.com/trustplane/trustplane/services/policystore"
	"github.com/trustplane/trustplane/utils"
	"go.uber.org/zap"
)

// PolicyHandler serves the policy administration endpoints
type PolicyHandler struct {
	store    *policystore.Store
	reporter *policyreport.Service
	logger   *zap.Logger
}

// NewPolicyHandler creates a new PolicyHandler
func NewPolicyHandler(store *policystore.Store, reporter *policyreport.Service, logger *zap.Logger) *PolicyHandler {
	return &PolicyHandler{
		store:    store,
		reporter: reporter,
		logger:   logger,
	}
}

// Get handles GET /api/v1/policy
func (h *PolicyHandler) Get(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, h.store.Current())
}

// ReplaceResponse is the response body for PUT /api/v1/policy
type ReplaceResponse struct {
	Policy *models.TrustPolicy        `json:"policy"`
	Report *models.PolicyChangeReport `json:"report"`
}

// Replace handles PUT /api/v1/policy. The change report is generated
// against the version being replaced and returned with the new document.
func (h *PolicyHandler) Replace(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestIDFromContext(r.Context())

	next := &models.TrustPolicy{}
	if err := json.NewDecoder(r.Body).Decode(next); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid policy document", nil)
		return
	}

	previous := h.store.Current()
	if err := h.store.Replace(next); err != nil {
		var conflict *policystore.ConflictError
		if errors.As(err, &conflict) {
			_ = utils.WriteConflict(w, "Policy document conflicts with itself", map[string]interface{}{
				"field":   conflict.Field,
				"pattern": conflict.Pattern,
			})
			return
		}
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	installed := h.store.Current()
	report := h.reporter.Generate(previous, installed, h.generatedBy(r))

	h.logger.Info("policy updated",
		zap.String("request_id", requestID),
		zap.Int("version", installed.Version),
		zap.String("report_id", report.ID.String()))

	_ = utils.WriteOK(w, ReplaceResponse{
		Policy: installed,
		Report: report,
	})
}

// Diff handles POST /api/v1/policy/diff: a dry-run change report against
// the active policy, without installing anything. With ?format=markdown
// the rendered report is returned instead of JSON.
func (h *PolicyHandler) Diff(w http.ResponseWriter, r *http.Request) {
	candidate := &models.TrustPolicy{}
	if err := json.NewDecoder(r.Body).Decode(candidate); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid policy document", nil)
		return
	}

	report := h.reporter.Generate(h.store.Current(), candidate, h.generatedBy(r))

	if r.URL.Query().Get("format") == "markdown" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(h.reporter.RenderMarkdown(report)))
		return
	}

	_ = utils.WriteOK(w, report)
}

// generatedBy attributes a report to the authenticated admin when known
func (h *PolicyHandler) generatedBy(r *http.Request) string {
	if claims := middleware.GetClaimsFromContext(r.Context()); claims != nil && claims.Subject != "" {
		return claims.Subject
	}
	return "anonymous"
}
