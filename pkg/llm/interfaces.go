// Package llm provides the chat-completion and embedding clients used for SQL generation.
package llm

import (
	"context"
)

// GenerateResponseResult is the text and token usage of one completion.
type GenerateResponseResult struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// LLMClient defines the interface for chat completion.
// Use this interface for dependency injection to enable mocking in tests.
type LLMClient interface {
	// GenerateResponse sends a system instruction and user prompt and returns the completion.
	// maxTokens <= 0 leaves the response length to the provider default.
	GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64, maxTokens int) (*GenerateResponseResult, error)

	// GetModel returns the configured model name.
	GetModel() string

	// GetEndpoint returns the configured endpoint.
	GetEndpoint() string
}

// EmbeddingClient turns texts into vectors.
type EmbeddingClient interface {
	// CreateEmbeddings returns one vector per input, in input order.
	CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error)

	// GetModel returns the embedding model name.
	GetModel() string
}

// Ensure implementations satisfy the interfaces at compile time.
var (
	_ LLMClient       = (*Client)(nil)
	_ EmbeddingClient = (*Client)(nil)
	_ LLMClient       = (*AnthropicClient)(nil)
)
