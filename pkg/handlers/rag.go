package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlgen/pkg/logging"
	"github.com/ekaya-inc/ekaya-sqlgen/pkg/models"
	"github.com/ekaya-inc/ekaya-sqlgen/pkg/services"
)

const maxSearchTopK = 50

// RAGHandler manages documents in the retrieval store.
type RAGHandler struct {
	rag    services.RAGService
	topK   int
	logger *zap.Logger
}

// NewRAGHandler creates a new RAG handler.
func NewRAGHandler(rag services.RAGService, topK int, logger *zap.Logger) *RAGHandler {
	if topK <= 0 {
		topK = services.DefaultRAGTopK
	}
	return &RAGHandler{rag: rag, topK: topK, logger: logger}
}

// RegisterRoutes registers the RAG handler's routes on the given mux.
func (h *RAGHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/rag/documents", h.UpsertDocuments)
	mux.HandleFunc("GET /api/v1/rag/search", h.Search)
}

type upsertDocumentsRequest struct {
	Documents []models.Document `json:"documents"`
}

type upsertDocumentsResponse struct {
	Count int      `json:"count"`
	IDs   []string `json:"ids"`
}

type searchResponse struct {
	Query  string                  `json:"query"`
	Chunks []models.RetrievalChunk `json:"chunks"`
}

// UpsertDocuments handles POST /api/v1/rag/documents
func (h *RAGHandler) UpsertDocuments(w http.ResponseWriter, r *http.Request) {
	var req upsertDocumentsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if len(req.Documents) == 0 {
		ErrorResponse(w, http.StatusBadRequest, "invalid_parameters", "documents must not be empty")
		return
	}
	for i, d := range req.Documents {
		if strings.TrimSpace(d.Text) == "" {
			ErrorResponse(w, http.StatusBadRequest, "invalid_parameters", "documents["+strconv.Itoa(i)+"].text is required")
			return
		}
	}

	written, err := h.rag.UpsertDocuments(r.Context(), req.Documents)
	if err != nil {
		h.logger.Error("Failed to upsert documents", zap.String("error", logging.SanitizeError(err)))
		ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Failed to store documents")
		return
	}

	resp := upsertDocumentsResponse{Count: len(written), IDs: make([]string, 0, len(written))}
	for _, d := range written {
		resp.IDs = append(resp.IDs, d.ID)
	}
	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: resp}); err != nil {
		h.logger.Error("Failed to write upsert response", zap.Error(err))
	}
}

// Search handles GET /api/v1/rag/search?q=...&top_k=...
func (h *RAGHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		ErrorResponse(w, http.StatusBadRequest, "invalid_parameters", "q is required")
		return
	}

	topK := h.topK
	if raw := r.URL.Query().Get("top_k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxSearchTopK {
			ErrorResponse(w, http.StatusBadRequest, "invalid_parameters", "top_k must be between 1 and "+strconv.Itoa(maxSearchTopK))
			return
		}
		topK = n
	}

	chunks := h.rag.Search(r.Context(), query, topK)
	if chunks == nil {
		chunks = []models.RetrievalChunk{}
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: searchResponse{Query: query, Chunks: chunks}}); err != nil {
		h.logger.Error("Failed to write search response", zap.Error(err))
	}
}
