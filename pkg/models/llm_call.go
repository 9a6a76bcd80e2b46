package models

import (
	"time"

	"github.com/google/uuid"
)

// LLMCall is the accounting record written once per model-invoking SQL
// generation request, after the final attempt.
type LLMCall struct {
	ID             uuid.UUID  `json:"id"`
	ConversationID *uuid.UUID `json:"conversation_id,omitempty"`

	// Model info
	Model    string `json:"model"`
	Endpoint string `json:"endpoint"`

	// Metrics, summed over attempts that returned a response
	PromptTokens     int   `json:"prompt_tokens"`
	CompletionTokens int   `json:"completion_tokens"`
	TotalTokens      int   `json:"total_tokens"`
	DurationMs       int64 `json:"duration_ms"`
	Attempts         int   `json:"attempts"`

	UsedRAG          bool `json:"used_rag"`
	UsedMetadata     bool `json:"used_metadata"`
	InjectionFlagged bool `json:"injection_flagged"`

	// Status
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Status values for LLM calls.
const (
	LLMCallStatusSuccess  = "success"  // Model returned a usable statement
	LLMCallStatusDegraded = "degraded" // Model answered but the output sanitized to nothing
	LLMCallStatusError    = "error"    // Every attempt failed
)
