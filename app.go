package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlgen/pkg/config"
	"github.com/ekaya-inc/ekaya-sqlgen/pkg/database"
	"github.com/ekaya-inc/ekaya-sqlgen/pkg/llm"
	"github.com/ekaya-inc/ekaya-sqlgen/pkg/logging"
	"github.com/ekaya-inc/ekaya-sqlgen/pkg/repositories"
	"github.com/ekaya-inc/ekaya-sqlgen/pkg/services"
	"github.com/ekaya-inc/ekaya-sqlgen/pkg/vectorindex"
)

const callRecorderQueueSize = 256

// app holds every long-lived dependency. Build it with newApp and release it
// with close.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	db       *database.DB
	redis    *redis.Client
	recorder *llm.AsyncCallRecorder

	metadataIndex *vectorindex.Handle
	documentIndex *vectorindex.Handle

	catalog   repositories.CatalogRepository
	metadata  services.MetadataSearchService
	rag       services.RAGService
	sync      services.MetadataSyncService
	generator services.SQLGenerationService
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	db, err := database.Connect(ctx, cfg.Database.URL(), database.PoolOptionsFromConfig(&cfg.Database))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.db = db

	if err := database.Migrate(cfg.Database.URL(), logger.Named("migrations")); err != nil {
		a.close()
		return nil, err
	}

	redisClient, err := database.NewEmbeddingCacheClient(ctx, &cfg.Redis)
	if err != nil {
		// The cache is optional; embeddings are computed on every call without it.
		logger.Warn("Redis unavailable, embedding cache disabled",
			zap.String("addr", cfg.Redis.Addr()),
			zap.String("error", logging.SanitizeError(err)))
	}
	a.redis = redisClient

	client, err := llm.NewClientFromConfig(&cfg.LLM, logger.Named("llm"))
	if err != nil {
		a.close()
		return nil, err
	}
	if client == nil {
		logger.Info("No LLM configured, SQL generation runs on heuristics only")
	}

	embedder, err := a.newEmbedder()
	if err != nil {
		a.close()
		return nil, err
	}
	a.metadataIndex = a.newIndexHandle(cfg.VectorIndex.MetadataCollection, embedder)
	a.documentIndex = a.newIndexHandle(cfg.VectorIndex.DocumentCollection, embedder)

	keywords := services.DefaultKeywordTables()
	if cfg.Heuristics.KeywordsFile != "" {
		keywords, err = services.LoadKeywordTables(cfg.Heuristics.KeywordsFile)
		if err != nil {
			a.close()
			return nil, err
		}
	}

	a.catalog = repositories.NewCatalogRepository(db)
	summaries := repositories.NewSyncSummaryRepository(db)
	a.recorder = llm.NewAsyncCallRecorder(repositories.NewLLMCallRepository(db), logger, callRecorderQueueSize)

	fallback := services.NewFallbackDocumentStore(cfg.RAG.FallbackStorePath, logger)
	a.metadata = services.NewMetadataSearchService(a.metadataIndex, logger)
	a.rag = services.NewRAGService(a.documentIndex, fallback, keywords, logger)
	a.sync = services.NewMetadataSyncService(a.catalog, summaries, a.metadataIndex, a.rag, keywords, logger)

	heuristic := services.NewRuleBasedSQLGenerator(a.metadata, a.catalog, keywords, logger)
	a.generator = services.NewSQLGenerationService(a.metadata, a.rag, heuristic, client, a.recorder, generationConfig(cfg), logger)

	return a, nil
}

// newEmbedder returns nil when no embeddings endpoint is configured.
func (a *app) newEmbedder() (vectorindex.Embedder, error) {
	client, err := llm.NewEmbeddingClientFromConfig(&a.cfg.Embedding, a.logger)
	if err != nil {
		return nil, err
	}
	if client == nil {
		a.logger.Info("No embedding model configured, vector index disabled")
		return nil, nil
	}

	var embedder vectorindex.Embedder = vectorindex.NewLLMEmbedder(client)
	if a.redis != nil {
		ttl := time.Duration(a.cfg.Embedding.CacheTTLMinutes) * time.Minute
		embedder = vectorindex.NewCachedEmbedder(embedder, a.redis, ttl, a.logger)
	}
	return embedder, nil
}

func (a *app) newIndexHandle(collection string, embedder vectorindex.Embedder) *vectorindex.Handle {
	if embedder == nil {
		return vectorindex.NewStaticHandle(collection, nil)
	}
	return vectorindex.NewHandle(collection, func(ctx context.Context) (vectorindex.Store, error) {
		return vectorindex.NewPgvectorStore(ctx, a.db, collection, embedder, a.logger)
	}, a.logger)
}

func generationConfig(cfg *config.Config) services.SQLGenerationConfig {
	gen := services.DefaultSQLGenerationConfig()
	gen.MaxRetries = cfg.LLM.MaxRetries
	if cfg.LLM.MaxBackoffSeconds > 0 {
		gen.MaxBackoff = time.Duration(cfg.LLM.MaxBackoffSeconds) * time.Second
	}
	if cfg.LLM.TimeoutSeconds > 0 {
		gen.CallTimeout = cfg.LLM.Timeout()
	}
	gen.MinResponseTokens = cfg.LLM.MinResponseTokens
	gen.MaxResponseTokens = cfg.LLM.MaxResponseTokens
	if cfg.RAG.TopK > 0 {
		gen.RAGTopK = cfg.RAG.TopK
	}
	return gen
}

func (a *app) indexes() map[string]*vectorindex.Handle {
	return map[string]*vectorindex.Handle{
		a.cfg.VectorIndex.MetadataCollection: a.metadataIndex,
		a.cfg.VectorIndex.DocumentCollection: a.documentIndex,
	}
}

// close flushes pending call records before the pool goes away.
func (a *app) close() {
	if a.recorder != nil {
		a.recorder.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("Failed to close Redis client", zap.Error(err))
		}
	}
	if a.db != nil {
		a.db.Close()
	}
}
