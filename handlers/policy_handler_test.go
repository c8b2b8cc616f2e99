package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trustplane/trustplane/models"
	"github.com/trustplane/trustplane/services/policyreport"
	"github.com/trustplane/trustplane/services/policystore"
	"go.uber.org/zap/zaptest"
)

func newPolicyHandler(t *testing.T) (*PolicyHandler, *policystore.Store) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	store, err := policystore.NewStore(nil, logger)
	require.NoError(t, err)
	return NewPolicyHandler(store, policyreport.NewService(logger), logger), store
}

func TestPolicyHandler_Get(t *testing.T) {
	handler, _ := newPolicyHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/policy", nil)
	rec := httptest.NewRecorder()
	handler.Get(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var policy models.TrustPolicy
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &policy))
	assert.Equal(t, 1, policy.Version)
	assert.NotEmpty(t, policy.AutoApprove.GitOperations)
}

func TestPolicyHandler_ReplaceReturnsReport(t *testing.T) {
	handler, store := newPolicyHandler(t)

	next := models.DefaultTrustPolicy()
	next.AutoApprove.GitOperations = append(next.AutoApprove.GitOperations, "stash")
	body, err := json.Marshal(next)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/policy", bytes.NewBuffer(body))
	rec := httptest.NewRecorder()
	handler.Replace(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp ReplaceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Policy.Version)
	require.NotEmpty(t, resp.Report.Changes)
	assert.Equal(t, "heuristic_estimate", resp.Report.ImpactAnalysis.Method)

	assert.Equal(t, 2, store.Current().Version)
}

func TestPolicyHandler_ReplaceConflict(t *testing.T) {
	handler, store := newPolicyHandler(t)
	before := store.Current()

	next := models.DefaultTrustPolicy()
	next.AutoApprove.GitOperations = append(next.AutoApprove.GitOperations, "branch -D")

	body, err := json.Marshal(next)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/policy", bytes.NewBuffer(body))
	rec := httptest.NewRecorder()
	handler.Replace(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "branch -D")

	// The previous version stays active.
	assert.Same(t, before, store.Current())
}

func TestPolicyHandler_ReplaceInvalidBody(t *testing.T) {
	handler, _ := newPolicyHandler(t)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/policy", bytes.NewBufferString("{broken"))
	rec := httptest.NewRecorder()
	handler.Replace(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPolicyHandler_DiffDoesNotInstall(t *testing.T) {
	handler, store := newPolicyHandler(t)
	before := store.Current()

	candidate := models.DefaultTrustPolicy()
	candidate.Security.MaxAutoApprovalPerHour = 10
	body, err := json.Marshal(candidate)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/policy/diff", bytes.NewBuffer(body))
	rec := httptest.NewRecorder()
	handler.Diff(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var report models.PolicyChangeReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Len(t, report.Changes, 1)
	assert.Equal(t, "max_auto_approval_per_hour", report.Changes[0].Field)

	assert.Same(t, before, store.Current())
}

func TestPolicyHandler_DiffMarkdown(t *testing.T) {
	handler, _ := newPolicyHandler(t)

	candidate := models.DefaultTrustPolicy()
	candidate.AutoApprove.GitOperations = append(candidate.AutoApprove.GitOperations, "stash")
	body, err := json.Marshal(candidate)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/policy/diff?format=markdown", bytes.NewBuffer(body))
	rec := httptest.NewRecorder()
	handler.Diff(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/markdown")
	assert.Contains(t, rec.Body.String(), "# Policy Change Report")
}
