package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ekaya-inc/ekaya-sqlgen/pkg/audit"
)

func TestRequestLogger_LogsRequests(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)

	handler := RequestLogger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("SELECT 1"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/ai/query", nil))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "HTTP request", entry.Message)
	assert.Equal(t, zapcore.DebugLevel, entry.Level)

	fields := entry.ContextMap()
	assert.Equal(t, int64(http.StatusOK), fields["status"])
	assert.Equal(t, int64(len("SELECT 1")), fields["bytes"])
	assert.Equal(t, "/api/v1/ai/query", fields["path"])
	assert.NotEmpty(t, fields["request_id"])
	assert.Equal(t, fields["request_id"], rec.Header().Get(RequestIDHeader))
}

func TestRequestLogger_KeepsClientRequestID(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	handler := RequestLogger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))
	assert.Equal(t, "req-123", logs.All()[0].ContextMap()["request_id"])
}

func TestRequestLogger_AttachesRequestInfo(t *testing.T) {
	core, _ := observer.New(zap.DebugLevel)
	var info audit.RequestInfo
	handler := RequestLogger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info = audit.RequestInfoFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ai/query", nil)
	req.Header.Set(RequestIDHeader, "req-9")
	req.RemoteAddr = "10.1.2.3:5555"
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "req-9", info.RequestID)
	assert.Equal(t, "10.1.2.3:5555", info.ClientIP)
}

func TestRequestLogger_ServerErrorsLogAtWarn(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	handler := RequestLogger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/metadata/sync", nil))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zapcore.WarnLevel, logs.All()[0].Level)
	assert.Equal(t, "HTTP request failed", logs.All()[0].Message)
}

func TestRequestLogger_NilLogger_PassesThrough(t *testing.T) {
	called := false
	handler := RequestLogger(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.True(t, called)
}

func TestRequestLogger_FirstStatusWins(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	handler := RequestLogger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/rag/search", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, int64(http.StatusBadRequest), logs.All()[0].ContextMap()["status"])
	assert.Equal(t, zapcore.DebugLevel, logs.All()[0].Level)
}
