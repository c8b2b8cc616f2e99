package utils

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	err := WriteJSON(rec, 200, map[string]string{"status": "ok"})
	require.NoError(t, err)

	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestWriteJSON_NilBody(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteJSON(rec, 204, nil))
	assert.Equal(t, 204, rec.Code)
	assert.Empty(t, rec.Body.Bytes())
}

func TestWriteBadRequest(t *testing.T) {
	rec := httptest.NewRecorder()
	err := WriteBadRequest(rec, "command is required", map[string]interface{}{"field": "command"})
	require.NoError(t, err)

	assert.Equal(t, 400, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "bad_request", resp.Error)
	assert.Equal(t, "command is required", resp.Message)
	assert.Equal(t, "command", resp.Details["field"])
}

func TestWriteServiceUnavailable(t *testing.T) {
	rec := httptest.NewRecorder()
	err := WriteServiceUnavailable(rec, "audit trail unavailable", nil)
	require.NoError(t, err)

	assert.Equal(t, 503, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "service_unavailable", resp.Error)
}

func TestWriteUnauthorized_DefaultMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, WriteUnauthorized(rec, ""))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Authentication required", resp.Message)
}
