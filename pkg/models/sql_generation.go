package models

import "github.com/google/uuid"

// PlaceholderSQL is returned when neither the model nor the heuristics can
// produce a statement. It is always valid, read-only SQL.
const PlaceholderSQL = "SELECT 1 AS placeholder"

// Strategy records which tier produced the SQL.
type Strategy string

const (
	StrategyLLM         Strategy = "llm"
	StrategyHeuristic   Strategy = "heuristic"
	StrategyPlaceholder Strategy = "placeholder"
)

// SQLGenerationRequest is the input to SQL generation.
type SQLGenerationRequest struct {
	Query          string     `json:"query"`
	UserContext    string     `json:"context,omitempty"`
	UseRAG         bool       `json:"use_rag"`
	RAGContext     string     `json:"rag_context,omitempty"`
	ConversationID *uuid.UUID `json:"conversation_id,omitempty"`
}

// SQLGenerationResult carries the generated SQL and how it was produced.
type SQLGenerationResult struct {
	SQL                string   `json:"sql"`
	Strategy           Strategy `json:"strategy"`
	Attempts           int      `json:"attempts"`
	UsedRAG            bool     `json:"used_rag"`
	MetadataContextLen int      `json:"metadata_context_len"`
	RAGContextLen      int      `json:"rag_context_len"`
}
