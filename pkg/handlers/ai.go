package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlgen/pkg/logging"
	"github.com/ekaya-inc/ekaya-sqlgen/pkg/models"
	"github.com/ekaya-inc/ekaya-sqlgen/pkg/services"
	sqlpkg "github.com/ekaya-inc/ekaya-sqlgen/pkg/sql"
)

// AIHandler serves natural-language SQL generation and SQL shape analysis.
type AIHandler struct {
	generator services.SQLGenerationService
	rag       services.RAGService
	ragTopK   int
	logger    *zap.Logger
}

// NewAIHandler creates a new AI handler. rag may be nil to disable document retrieval.
func NewAIHandler(generator services.SQLGenerationService, rag services.RAGService, ragTopK int, logger *zap.Logger) *AIHandler {
	if ragTopK <= 0 {
		ragTopK = services.DefaultRAGTopK
	}
	return &AIHandler{
		generator: generator,
		rag:       rag,
		ragTopK:   ragTopK,
		logger:    logger,
	}
}

// RegisterRoutes registers the AI handler's routes on the given mux.
func (h *AIHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/ai/query", h.Query)
	mux.HandleFunc("POST /api/v1/ai/analyze", h.Analyze)
}

type aiQueryRequest struct {
	Query          string     `json:"query"`
	Context        string     `json:"context,omitempty"`
	UseRAG         bool       `json:"use_rag"`
	RAGContext     string     `json:"rag_context,omitempty"`
	TopK           int        `json:"top_k,omitempty"`
	ConversationID *uuid.UUID `json:"conversation_id,omitempty"`
}

type aiQueryResponse struct {
	SQL        string                  `json:"sql"`
	Strategy   models.Strategy         `json:"strategy"`
	Attempts   int                     `json:"attempts"`
	UsedRAG    bool                    `json:"used_rag"`
	Analysis   *models.SQLShape        `json:"analysis"`
	RAGChunks  []models.RetrievalChunk `json:"rag_chunks"`
	RAGContext string                  `json:"rag_context,omitempty"`
}

type analyzeRequest struct {
	SQL string `json:"sql"`
}

// Query handles POST /api/v1/ai/query.
// The response always carries SQL; generation failures degrade to heuristics
// or the placeholder statement instead of an error status.
func (h *AIHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req aiQueryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		ErrorResponse(w, http.StatusBadRequest, "invalid_parameters", "query is required")
		return
	}

	topK := req.TopK
	if topK <= 0 {
		topK = h.ragTopK
	}

	// Retrieve chunks once so the same ones are returned and used as context.
	chunks := []models.RetrievalChunk{}
	ragContext := req.RAGContext
	useRAG := req.UseRAG
	if useRAG && ragContext == "" && h.rag != nil {
		if found := h.rag.Search(r.Context(), req.Query, topK); len(found) > 0 {
			chunks = found
		}
		ragContext = h.rag.ContextFromChunks(req.Query, chunks)
		if ragContext == "" {
			useRAG = false
		}
	}

	result := h.generator.GenerateSQL(r.Context(), &models.SQLGenerationRequest{
		Query:          req.Query,
		UserContext:    req.Context,
		UseRAG:         useRAG,
		RAGContext:     ragContext,
		ConversationID: req.ConversationID,
	})

	h.logger.Debug("Generated SQL for request",
		zap.String("query", logging.TruncateForLog(req.Query)),
		zap.String("strategy", string(result.Strategy)),
		zap.Int("rag_chunks", len(chunks)))

	resp := aiQueryResponse{
		SQL:        result.SQL,
		Strategy:   result.Strategy,
		Attempts:   result.Attempts,
		UsedRAG:    result.UsedRAG,
		Analysis:   sqlpkg.Analyze(result.SQL),
		RAGChunks:  chunks,
		RAGContext: ragContext,
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: resp}); err != nil {
		h.logger.Error("Failed to write query response", zap.Error(err))
	}
}

// Analyze handles POST /api/v1/ai/analyze.
func (h *AIHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	if strings.TrimSpace(req.SQL) == "" {
		ErrorResponse(w, http.StatusBadRequest, "invalid_parameters", "sql is required")
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: sqlpkg.Analyze(req.SQL)}); err != nil {
		h.logger.Error("Failed to write analyze response", zap.Error(err))
	}
}
