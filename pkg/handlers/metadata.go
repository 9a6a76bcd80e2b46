package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlgen/pkg/logging"
	"github.com/ekaya-inc/ekaya-sqlgen/pkg/services"
)

// MetadataHandler exposes the metadata synchronizer.
type MetadataHandler struct {
	sync   services.MetadataSyncService
	logger *zap.Logger
}

// NewMetadataHandler creates a new metadata handler.
func NewMetadataHandler(sync services.MetadataSyncService, logger *zap.Logger) *MetadataHandler {
	return &MetadataHandler{sync: sync, logger: logger}
}

// RegisterRoutes registers the metadata handler's routes on the given mux.
func (h *MetadataHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/metadata/sync", h.Sync)
	mux.HandleFunc("GET /api/v1/metadata/sync/last", h.LastSync)
	mux.HandleFunc("GET /api/v1/metadata/index/counts", h.IndexCounts)
}

// Sync handles POST /api/v1/metadata/sync
func (h *MetadataHandler) Sync(w http.ResponseWriter, r *http.Request) {
	summary, err := h.sync.SyncAll(r.Context())
	if err != nil {
		h.logger.Error("Metadata sync failed", zap.String("error", logging.SanitizeError(err)))
		ErrorResponse(w, http.StatusInternalServerError, "sync_failed", "Failed to read the metadata catalog")
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: summary}); err != nil {
		h.logger.Error("Failed to write sync response", zap.Error(err))
	}
}

// LastSync handles GET /api/v1/metadata/sync/last
func (h *MetadataHandler) LastSync(w http.ResponseWriter, r *http.Request) {
	summary, err := h.sync.LastSyncSummary(r.Context())
	if err != nil {
		h.logger.Error("Failed to read last sync summary", zap.String("error", logging.SanitizeError(err)))
		ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to read last sync summary")
		return
	}
	if summary == nil {
		ErrorResponse(w, http.StatusNotFound, "not_found", "No metadata sync has completed yet")
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: summary}); err != nil {
		h.logger.Error("Failed to write last sync response", zap.Error(err))
	}
}

// IndexCounts handles GET /api/v1/metadata/index/counts
func (h *MetadataHandler) IndexCounts(w http.ResponseWriter, r *http.Request) {
	counts := h.sync.IndexCountsByType(r.Context())
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: counts}); err != nil {
		h.logger.Error("Failed to write index counts response", zap.Error(err))
	}
}
