package vectorindex

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlgen/pkg/llm"
	"github.com/ekaya-inc/ekaya-sqlgen/pkg/logging"
)

// Embedder turns texts into vectors, one per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// LLMEmbedder adapts an llm.EmbeddingClient to Embedder.
type LLMEmbedder struct {
	client llm.EmbeddingClient
}

// NewLLMEmbedder wraps the embedding client.
func NewLLMEmbedder(client llm.EmbeddingClient) *LLMEmbedder {
	return &LLMEmbedder{client: client}
}

func (e *LLMEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vecs, err := e.client.CreateEmbeddings(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(vecs), len(texts))
	}
	return vecs, nil
}

func (e *LLMEmbedder) Model() string {
	return e.client.GetModel()
}

var _ Embedder = (*LLMEmbedder)(nil)

// CachedEmbedder caches embeddings in Redis keyed by model and text hash.
// Redis failures degrade to uncached embedding; they are never returned.
type CachedEmbedder struct {
	next   Embedder
	redis  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedEmbedder wraps next with a Redis cache.
func NewCachedEmbedder(next Embedder, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedEmbedder {
	return &CachedEmbedder{
		next:   next,
		redis:  client,
		ttl:    ttl,
		logger: logger.Named("embedding-cache"),
	}
}

func (e *CachedEmbedder) Model() string {
	return e.next.Model()
}

func (e *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	keys := make([]string, len(texts))
	for i, t := range texts {
		keys[i] = e.cacheKey(t)
	}

	out := make([][]float32, len(texts))
	cached, err := e.redis.MGet(ctx, keys...).Result()
	if err != nil {
		e.logger.Warn("Embedding cache read failed",
			zap.String("error", logging.SanitizeError(err)))
		cached = nil
	}
	for i, v := range cached {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var vec []float32
		if err := json.Unmarshal([]byte(s), &vec); err == nil && len(vec) > 0 {
			out[i] = vec
		}
	}

	var missIdx []int
	var missTexts []string
	for i, vec := range out {
		if vec == nil {
			missIdx = append(missIdx, i)
			missTexts = append(missTexts, texts[i])
		}
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	fresh, err := e.next.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}

	pipe := e.redis.Pipeline()
	for j, i := range missIdx {
		out[i] = fresh[j]
		payload, err := json.Marshal(fresh[j])
		if err != nil {
			continue
		}
		pipe.Set(ctx, keys[i], payload, e.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		e.logger.Warn("Embedding cache write failed",
			zap.String("error", logging.SanitizeError(err)))
	}

	e.logger.Debug("Embedded texts",
		zap.Int("cached", len(texts)-len(missTexts)),
		zap.Int("computed", len(missTexts)))
	return out, nil
}

func (e *CachedEmbedder) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "emb:" + e.next.Model() + ":" + hex.EncodeToString(sum[:])
}

var _ Embedder = (*CachedEmbedder)(nil)
