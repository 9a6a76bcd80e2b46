package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-sqlgen/pkg/models"
)

// LLMCallRepository persists call accounting records. Append-only.
type LLMCallRepository interface {
	Save(ctx context.Context, call *models.LLMCall) error
}

type llmCallRepository struct {
	db DBTX
}

// NewLLMCallRepository creates a new LLMCallRepository.
func NewLLMCallRepository(db DBTX) LLMCallRepository {
	return &llmCallRepository{db: db}
}

var _ LLMCallRepository = (*llmCallRepository)(nil)

func (r *llmCallRepository) Save(ctx context.Context, call *models.LLMCall) error {
	if call.ID == uuid.Nil {
		call.ID = uuid.New()
	}
	if call.CreatedAt.IsZero() {
		call.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO engine_llm_calls (
			id, conversation_id, model, endpoint,
			prompt_tokens, completion_tokens, total_tokens,
			duration_ms, attempts, used_rag, used_metadata, injection_flagged,
			status, error_message, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := r.db.Exec(ctx, query,
		call.ID, call.ConversationID, call.Model, call.Endpoint,
		call.PromptTokens, call.CompletionTokens, call.TotalTokens,
		call.DurationMs, call.Attempts, call.UsedRAG, call.UsedMetadata, call.InjectionFlagged,
		call.Status, call.ErrorMessage, call.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save llm call: %w", err)
	}
	return nil
}
