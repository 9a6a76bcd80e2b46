package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for ekaya-sqlgen.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3443"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// Database configuration (PostgreSQL, also hosts the pgvector index)
	Database DatabaseConfig `yaml:"database"`

	// Redis is optional; when Host is empty the embedding cache is disabled.
	Redis RedisConfig `yaml:"redis"`

	LLM         LLMConfig         `yaml:"llm"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	VectorIndex VectorIndexConfig `yaml:"vector_index"`
	RAG         RAGConfig         `yaml:"rag"`
	Sync        SyncConfig        `yaml:"sync"`
	Heuristics  HeuristicsConfig  `yaml:"heuristics"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"ekaya"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"ekaya_sqlgen"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	MaxIdleConns   int32  `yaml:"max_idle_conns" env:"PGMAX_IDLE_CONNS" env-default:"5"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// RedisConfig holds the optional Redis connection used for caching embeddings.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// LLMConfig configures the chat-completion endpoint used for SQL generation.
type LLMConfig struct {
	// Provider is "openai" (any OpenAI-compatible endpoint) or "anthropic".
	Provider          string `yaml:"provider" env:"LLM_PROVIDER" env-default:"openai"`
	BaseURL           string `yaml:"base_url" env:"LLM_BASE_URL" env-default:""`
	Model             string `yaml:"model" env:"LLM_MODEL" env-default:""`
	APIKey            string `yaml:"-" env:"LLM_API_KEY"` // Secret - not in YAML
	TimeoutSeconds    int    `yaml:"timeout_seconds" env:"LLM_TIMEOUT_SECONDS" env-default:"30"`
	MaxRetries        int    `yaml:"max_retries" env:"LLM_MAX_RETRIES" env-default:"2"`
	MaxBackoffSeconds int    `yaml:"max_backoff_seconds" env:"LLM_MAX_BACKOFF_SECONDS" env-default:"4"`
	MinResponseTokens int    `yaml:"min_response_tokens" env:"LLM_MIN_RESPONSE_TOKENS" env-default:"256"`
	MaxResponseTokens int    `yaml:"max_response_tokens" env:"LLM_MAX_RESPONSE_TOKENS" env-default:"1024"`
}

// IsConfigured returns true if enough is set to call the model.
// Without it the generator runs in heuristic-only mode.
func (c *LLMConfig) IsConfigured() bool {
	return c.APIKey != "" && c.Model != ""
}

// Timeout returns the per-call timeout.
func (c *LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// EmbeddingConfig configures the OpenAI-compatible embeddings endpoint.
type EmbeddingConfig struct {
	BaseURL         string `yaml:"base_url" env:"EMBEDDING_BASE_URL" env-default:""`
	Model           string `yaml:"model" env:"EMBEDDING_MODEL" env-default:"text-embedding-3-small"`
	APIKey          string `yaml:"-" env:"EMBEDDING_API_KEY"` // Secret - not in YAML
	CacheTTLMinutes int    `yaml:"cache_ttl_minutes" env:"EMBEDDING_CACHE_TTL_MINUTES" env-default:"1440"`
}

// IsConfigured returns true if an embeddings endpoint can be called.
func (c *EmbeddingConfig) IsConfigured() bool {
	return c.APIKey != "" && c.Model != ""
}

// VectorIndexConfig names the two logical collections in the vector store.
type VectorIndexConfig struct {
	MetadataCollection string `yaml:"metadata_collection" env:"VECTOR_METADATA_COLLECTION" env-default:"metadata_embeddings"`
	DocumentCollection string `yaml:"document_collection" env:"VECTOR_DOCUMENT_COLLECTION" env-default:"query_embeddings"`
}

// RAGConfig configures the document retriever.
type RAGConfig struct {
	FallbackStorePath string `yaml:"fallback_store_path" env:"RAG_FALLBACK_STORE_PATH" env-default:"./data/fallback_rag_store.jsonl"`
	TopK              int    `yaml:"top_k" env:"RAG_TOP_K" env-default:"4"`
}

// SyncConfig controls the background metadata synchronizer.
type SyncConfig struct {
	Enabled         bool `yaml:"enabled" env:"METADATA_SYNC_ENABLED" env-default:"true"`
	IntervalMinutes int  `yaml:"interval_minutes" env:"METADATA_SYNC_INTERVAL_MINUTES" env-default:"60"`
}

// Interval returns the scheduler interval.
func (c *SyncConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// HeuristicsConfig points at an optional YAML file overriding the keyword tables.
type HeuristicsConfig struct {
	KeywordsFile string `yaml:"keywords_file" env:"HEURISTICS_KEYWORDS_FILE" env-default:""`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	return LoadFrom("config.yaml", version)
}

// LoadFrom is Load with an explicit file path.
func LoadFrom(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = (&url.URL{
			Scheme: "http",
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch strings.ToLower(c.LLM.Provider) {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("llm.provider must be openai or anthropic, got %q", c.LLM.Provider)
	}
	if c.LLM.MinResponseTokens > c.LLM.MaxResponseTokens {
		return fmt.Errorf("llm.min_response_tokens (%d) exceeds llm.max_response_tokens (%d)",
			c.LLM.MinResponseTokens, c.LLM.MaxResponseTokens)
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("llm.max_retries must not be negative")
	}
	if c.Sync.Enabled && c.Sync.IntervalMinutes <= 0 {
		return fmt.Errorf("sync.interval_minutes must be positive when sync is enabled")
	}
	if c.VectorIndex.MetadataCollection == c.VectorIndex.DocumentCollection {
		return fmt.Errorf("vector_index collections must differ")
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// URL returns the connection string in URL form, as expected by golang-migrate.
func (c *DatabaseConfig) URL() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

// Addr returns host:port for the Redis client.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
