package llm

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlgen/pkg/config"
)

// NewClientFromConfig creates the chat client selected by cfg.Provider.
// Returns (nil, nil) when no credential or model is configured; callers treat
// that as heuristic-only mode.
func NewClientFromConfig(cfg *config.LLMConfig, logger *zap.Logger) (LLMClient, error) {
	if !cfg.IsConfigured() {
		return nil, nil
	}

	clientCfg := &Config{
		Endpoint: cfg.BaseURL,
		Model:    cfg.Model,
		APIKey:   cfg.APIKey,
	}

	switch strings.ToLower(cfg.Provider) {
	case "", "openai":
		client, err := NewClient(clientCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("create openai client: %w", err)
		}
		return client, nil
	case "anthropic":
		client, err := NewAnthropicClient(clientCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("create anthropic client: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}

// NewEmbeddingClientFromConfig creates the embeddings client.
// Returns (nil, nil) when embeddings are not configured; the vector index is
// then unavailable and retrieval degrades to its fallbacks.
func NewEmbeddingClientFromConfig(cfg *config.EmbeddingConfig, logger *zap.Logger) (EmbeddingClient, error) {
	if !cfg.IsConfigured() {
		return nil, nil
	}

	client, err := NewClient(&Config{
		Endpoint: cfg.BaseURL,
		Model:    cfg.Model,
		APIKey:   cfg.APIKey,
	}, logger.Named("embeddings"))
	if err != nil {
		return nil, fmt.Errorf("create embedding client: %w", err)
	}
	return client, nil
}
