package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlgen/pkg/config"
	"github.com/ekaya-inc/ekaya-sqlgen/pkg/vectorindex"
)

func TestHealthHandler_Health(t *testing.T) {
	h := NewHealthHandler(&config.Config{}, nil, zap.NewNop())

	rr := httptest.NewRecorder()
	h.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
}

func TestHealthHandler_Ping(t *testing.T) {
	cfg := &config.Config{Version: "test-version", Env: "test"}
	cfg.LLM.APIKey = "key"
	cfg.LLM.Model = "gpt-4o-mini"
	indexes := map[string]*vectorindex.Handle{
		"metadata":  vectorindex.NewStaticHandle("metadata", nil),
		"documents": vectorindex.NewStaticHandle("documents", vectorindex.NewMockStore(nil)),
	}
	h := NewHealthHandler(cfg, indexes, zap.NewNop())

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ping", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp PingResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "test-version", resp.Version)
	assert.Equal(t, "ekaya-sqlgen", resp.Service)
	assert.Equal(t, "test", resp.Environment)
	assert.True(t, resp.LLMConfigured)
	assert.Equal(t, map[string]bool{"metadata": false, "documents": true}, resp.VectorIndexes)
}
