package handlers

import (
	"net/http"
	"os"
	"runtime"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlgen/pkg/config"
	"github.com/ekaya-inc/ekaya-sqlgen/pkg/vectorindex"
)

// PingResponse contains service status and version information.
type PingResponse struct {
	Status        string          `json:"status"`
	Version       string          `json:"version"`
	Service       string          `json:"service"`
	GoVersion     string          `json:"go_version"`
	Hostname      string          `json:"hostname"`
	Environment   string          `json:"environment"`
	LLMConfigured bool            `json:"llm_configured"`
	VectorIndexes map[string]bool `json:"vector_indexes,omitempty"`
}

// HealthHandler handles health check and ping endpoints.
type HealthHandler struct {
	cfg     *config.Config
	indexes map[string]*vectorindex.Handle
	logger  *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. indexes is reported by name
// on /ping; a handle that has not been used yet reports available.
func NewHealthHandler(cfg *config.Config, indexes map[string]*vectorindex.Handle, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, indexes: indexes, logger: logger}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ping", h.Ping)
}

// Health handles GET /health requests.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ping handles GET /ping requests.
// Returns service information and whether the model and vector indexes are usable.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		http.Error(w, "failed to get hostname", http.StatusInternalServerError)
		return
	}

	response := PingResponse{
		Status:        "ok",
		Version:       h.cfg.Version,
		Service:       "ekaya-sqlgen",
		GoVersion:     runtime.Version(),
		Hostname:      hostname,
		Environment:   h.cfg.Env,
		LLMConfigured: h.cfg.LLM.IsConfigured(),
	}
	if len(h.indexes) > 0 {
		response.VectorIndexes = make(map[string]bool, len(h.indexes))
		for name, idx := range h.indexes {
			response.VectorIndexes[name] = idx.Available()
		}
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}
