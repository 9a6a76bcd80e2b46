package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"
)

// defaultAnthropicMaxTokens is used when the caller leaves maxTokens unset;
// the Messages API requires a value.
const defaultAnthropicMaxTokens = 1024

// AnthropicClient implements LLMClient over the Anthropic Messages API.
type AnthropicClient struct {
	client   *anthropic.Client
	endpoint string
	model    string
	logger   *zap.Logger
}

// NewAnthropicClient creates a Messages API client.
func NewAnthropicClient(cfg *Config, logger *zap.Logger) (*AnthropicClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	var opts []anthropic.ClientOption
	endpoint := "https://api.anthropic.com/v1"
	if cfg.Endpoint != "" {
		endpoint = strings.TrimSuffix(cfg.Endpoint, "/")
		opts = append(opts, anthropic.WithBaseURL(endpoint))
	}

	return &AnthropicClient{
		client:   anthropic.NewClient(cfg.APIKey, opts...),
		endpoint: endpoint,
		model:    cfg.Model,
		logger:   logger.Named("llm"),
	}, nil
}

// GenerateResponse sends one user message with the system instruction.
func (c *AnthropicClient) GenerateResponse(
	ctx context.Context,
	prompt string,
	systemMessage string,
	temperature float64,
	maxTokens int,
) (*GenerateResponseResult, error) {
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	temp := float32(temperature)

	c.logger.Debug("LLM request",
		zap.String("model", c.model),
		zap.Int("prompt_len", len(prompt)),
		zap.Float64("temperature", temperature),
		zap.Int("max_tokens", maxTokens))

	start := time.Now()

	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(c.model),
		System:      systemMessage,
		MaxTokens:   maxTokens,
		Temperature: &temp,
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{
				{Type: "text", Text: &prompt},
			}},
		},
	})
	if err != nil {
		c.logger.Warn("LLM request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, c.parseError(err)
	}

	content := extractText(resp)

	c.logger.Info("LLM request completed",
		zap.Int("prompt_tokens", resp.Usage.InputTokens),
		zap.Int("completion_tokens", resp.Usage.OutputTokens),
		zap.Duration("elapsed", time.Since(start)))

	return &GenerateResponseResult{
		Content:          content,
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
		TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
	}, nil
}

// GetModel returns the configured model name.
func (c *AnthropicClient) GetModel() string {
	return c.model
}

// GetEndpoint returns the configured endpoint.
func (c *AnthropicClient) GetEndpoint() string {
	return c.endpoint
}

func (c *AnthropicClient) parseError(err error) error {
	llmErr := ClassifyError(err)
	var reqErr *anthropic.RequestError
	if errors.As(err, &reqErr) && llmErr.StatusCode == 0 {
		llmErr.StatusCode = reqErr.StatusCode
	}
	if llmErr.Model == "" {
		llmErr.Model = c.model
	}
	if llmErr.Endpoint == "" {
		llmErr.Endpoint = c.endpoint
	}
	return llmErr
}

// extractText concatenates the text blocks of a response.
func extractText(resp anthropic.MessagesResponse) string {
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			sb.WriteString(*block.Text)
		}
	}
	return sb.String()
}
