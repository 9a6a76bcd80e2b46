package llm

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/ekaya-inc/ekaya-sqlgen/pkg/models"
)

// MockLLMClient is a configurable mock for testing LLM functionality.
// Set the function fields to control behavior in tests.
type MockLLMClient struct {
	// GenerateResponseFunc is called when GenerateResponse is invoked.
	// If nil, returns empty result and nil error.
	GenerateResponseFunc func(ctx context.Context, prompt string, systemMessage string, temperature float64, maxTokens int) (*GenerateResponseResult, error)

	// Model is returned by GetModel. Defaults to "mock-model".
	Model string

	// Endpoint is returned by GetEndpoint. Defaults to "http://mock-endpoint".
	Endpoint string

	mu                    sync.Mutex
	generateResponseCalls int
	lastPrompt            string
	lastMaxTokens         int
}

// NewMockLLMClient creates a new mock with sensible defaults.
func NewMockLLMClient() *MockLLMClient {
	return &MockLLMClient{
		Model:    "mock-model",
		Endpoint: "http://mock-endpoint",
	}
}

// GenerateResponse implements LLMClient.
func (m *MockLLMClient) GenerateResponse(ctx context.Context, prompt string, systemMessage string, temperature float64, maxTokens int) (*GenerateResponseResult, error) {
	m.mu.Lock()
	m.generateResponseCalls++
	m.lastPrompt = prompt
	m.lastMaxTokens = maxTokens
	m.mu.Unlock()

	if m.GenerateResponseFunc != nil {
		return m.GenerateResponseFunc(ctx, prompt, systemMessage, temperature, maxTokens)
	}
	return &GenerateResponseResult{}, nil
}

// GenerateResponseCalls returns how many times GenerateResponse ran.
func (m *MockLLMClient) GenerateResponseCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generateResponseCalls
}

// LastPrompt returns the prompt of the most recent call.
func (m *MockLLMClient) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPrompt
}

// LastMaxTokens returns the response budget of the most recent call.
func (m *MockLLMClient) LastMaxTokens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastMaxTokens
}

// GetModel implements LLMClient.
func (m *MockLLMClient) GetModel() string {
	if m.Model == "" {
		return "mock-model"
	}
	return m.Model
}

// GetEndpoint implements LLMClient.
func (m *MockLLMClient) GetEndpoint() string {
	if m.Endpoint == "" {
		return "http://mock-endpoint"
	}
	return m.Endpoint
}

// Ensure MockLLMClient implements LLMClient at compile time.
var _ LLMClient = (*MockLLMClient)(nil)

// MockEmbeddingClient produces deterministic bag-of-words vectors so that texts
// sharing words end up close under cosine distance.
type MockEmbeddingClient struct {
	// CreateEmbeddingsFunc overrides the default hashing behavior when set.
	CreateEmbeddingsFunc func(ctx context.Context, inputs []string) ([][]float32, error)

	// Dimensions of the produced vectors. Defaults to 64.
	Dimensions int

	mu    sync.Mutex
	calls int
}

// CreateEmbeddings implements EmbeddingClient.
func (m *MockEmbeddingClient) CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.CreateEmbeddingsFunc != nil {
		return m.CreateEmbeddingsFunc(ctx, inputs)
	}

	dims := m.Dimensions
	if dims <= 0 {
		dims = 64
	}
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		vec := make([]float32, dims)
		for _, word := range strings.Fields(strings.ToLower(in)) {
			h := fnv.New32a()
			_, _ = h.Write([]byte(word))
			vec[int(h.Sum32()%uint32(dims))] += 1
		}
		// Keep the zero vector out; cosine distance is undefined for it.
		vec[0] += 0.01
		out[i] = vec
	}
	return out, nil
}

// Calls returns how many times CreateEmbeddings ran.
func (m *MockEmbeddingClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// GetModel implements EmbeddingClient.
func (m *MockEmbeddingClient) GetModel() string {
	return "mock-embedding"
}

var _ EmbeddingClient = (*MockEmbeddingClient)(nil)

// MockCallRecorder collects records in memory.
type MockCallRecorder struct {
	mu      sync.Mutex
	records []*models.LLMCall
}

// Record implements CallRecorder.
func (m *MockCallRecorder) Record(call *models.LLMCall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, call)
}

// Records returns a copy of everything recorded so far.
func (m *MockCallRecorder) Records() []*models.LLMCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.LLMCall(nil), m.records...)
}

var _ CallRecorder = (*MockCallRecorder)(nil)
