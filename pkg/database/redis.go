package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ekaya-inc/ekaya-sqlgen/pkg/config"
)

// Redis only backs the embedding cache. Tight timeouts keep a slow cache from
// stalling retrieval; a miss just recomputes the embedding.
const (
	cacheDialTimeout = 2 * time.Second
	cacheIOTimeout   = 500 * time.Millisecond
)

// NewEmbeddingCacheClient connects to the Redis used for cached embeddings.
// Returns (nil, nil) when Redis is not configured (host is empty).
func NewEmbeddingCacheClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	if cfg.Host == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		ClientName:   ApplicationName,
		DialTimeout:  cacheDialTimeout,
		ReadTimeout:  cacheIOTimeout,
		WriteTimeout: cacheIOTimeout,
		MaxRetries:   1,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to embedding cache at %s: %w", cfg.Addr(), err)
	}

	return client, nil
}
