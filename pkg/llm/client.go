package llm

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Client provides access to OpenAI-compatible chat and embedding endpoints.
type Client struct {
	client   *openai.Client
	endpoint string
	model    string
	logger   *zap.Logger
}

// Config holds configuration for creating an LLM client.
type Config struct {
	Endpoint string // Base URL, e.g., "https://api.openai.com/v1". Empty uses the provider default.
	Model    string // Model name, e.g., "gpt-4o"
	APIKey   string
}

// NewClient creates a new OpenAI-compatible client.
func NewClient(cfg *Config, logger *zap.Logger) (*Client, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	endpoint := clientConfig.BaseURL
	if cfg.Endpoint != "" {
		endpoint = strings.TrimSuffix(cfg.Endpoint, "/")
		clientConfig.BaseURL = endpoint
	}

	return &Client{
		client:   openai.NewClientWithConfig(clientConfig),
		endpoint: endpoint,
		model:    cfg.Model,
		logger:   logger.Named("llm"),
	}, nil
}

// GenerateResponse generates a chat completion response with usage stats.
func (c *Client) GenerateResponse(
	ctx context.Context,
	prompt string,
	systemMessage string,
	temperature float64,
	maxTokens int,
) (*GenerateResponseResult, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: systemMessage},
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	}

	c.logger.Debug("LLM request",
		zap.String("model", c.model),
		zap.Int("prompt_len", len(prompt)),
		zap.Float64("temperature", temperature),
		zap.Int("max_tokens", maxTokens))

	start := time.Now()

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: requestTemperature(temperature),
	}
	if maxTokens > 0 {
		req.MaxTokens = maxTokens
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		c.logger.Warn("LLM request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, c.parseError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, NewErrorWithContext(ErrorTypeUnknown, "no choices in response", true, nil, c.model, c.endpoint, 0)
	}

	content := resp.Choices[0].Message.Content

	c.logger.Info("LLM request completed",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))

	return &GenerateResponseResult{
		Content:          content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}, nil
}

// CreateEmbeddings generates embeddings for multiple inputs with the configured model.
func (c *Client) CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(c.model),
		Input: inputs,
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", c.parseError(err))
	}

	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("create embeddings: expected %d vectors, got %d", len(inputs), len(resp.Data))
	}

	embeddings := make([][]float32, len(inputs))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(inputs) {
			return nil, fmt.Errorf("create embeddings: index %d out of range", d.Index)
		}
		embeddings[d.Index] = d.Embedding
	}

	return embeddings, nil
}

// GetModel returns the configured model name.
func (c *Client) GetModel() string {
	return c.model
}

// GetEndpoint returns the configured endpoint.
func (c *Client) GetEndpoint() string {
	return c.endpoint
}

// parseError categorizes OpenAI API errors using the structured Error type.
func (c *Client) parseError(err error) error {
	llmErr := ClassifyError(err)
	if llmErr.Model == "" {
		llmErr.Model = c.model
	}
	if llmErr.Endpoint == "" {
		llmErr.Endpoint = c.endpoint
	}
	return llmErr
}

// requestTemperature maps 0 to the smallest positive float32. go-openai tags
// Temperature with omitempty, so a literal 0 would be dropped and the provider
// default used instead.
func requestTemperature(temperature float64) float32 {
	if temperature <= 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(temperature)
}
