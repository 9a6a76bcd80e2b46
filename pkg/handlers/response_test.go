package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		errorCode  string
		message    string
	}{
		{"bad request", http.StatusBadRequest, "invalid_parameters", "query is required"},
		{"not found", http.StatusNotFound, "not_found", "No metadata sync has completed yet"},
		{"internal error", http.StatusInternalServerError, "sync_failed", "Failed to read the metadata catalog"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()

			require.NoError(t, ErrorResponse(rr, tt.statusCode, tt.errorCode, tt.message))

			assert.Equal(t, tt.statusCode, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

			var body map[string]string
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
			assert.Equal(t, tt.errorCode, body["error"])
			assert.Equal(t, tt.message, body["message"])
		})
	}
}

func TestWriteJSON(t *testing.T) {
	rr := httptest.NewRecorder()

	require.NoError(t, WriteJSON(rr, http.StatusCreated, ApiResponse{Success: true, Data: map[string]int{"count": 2}}))

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"success":true,"data":{"count":2}}`, rr.Body.String())
}

func TestWriteJSON_UnencodableData(t *testing.T) {
	rr := httptest.NewRecorder()
	assert.Error(t, WriteJSON(rr, http.StatusOK, make(chan int)))
}

func TestDecodeJSON(t *testing.T) {
	var dst analyzeRequest

	t.Run("valid", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"sql":"SELECT 1"}`))
		require.NoError(t, decodeJSON(httptest.NewRecorder(), r, &dst))
		assert.Equal(t, "SELECT 1", dst.SQL)
	})

	t.Run("empty", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
		assert.EqualError(t, decodeJSON(httptest.NewRecorder(), r, &dst), "request body is empty")
	})

	t.Run("too large", func(t *testing.T) {
		body := `{"sql":"` + strings.Repeat("x", maxRequestBodyBytes) + `"}`
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		assert.Error(t, decodeJSON(httptest.NewRecorder(), r, &dst))
	})
}
