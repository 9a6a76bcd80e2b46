package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ekaya-inc/ekaya-sqlgen/pkg/config"
)

// ApplicationName tags every session so catalog and vector queries are
// identifiable in pg_stat_activity.
const ApplicationName = "ekaya-sqlgen"

const (
	defaultMaxConns        = 25
	defaultMaxConnLifetime = time.Hour
	defaultMaxConnIdleTime = 30 * time.Minute
)

// DB wraps the pool shared by the catalog, accounting and vector stores.
type DB struct {
	*pgxpool.Pool
}

// PoolOptions tunes the pool. Zero values fall back to the defaults above.
type PoolOptions struct {
	MaxConnections  int32
	MinConnections  int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// PoolOptionsFromConfig maps the database section of the service config.
// Idle connections are kept warm so the first sync after a quiet period does
// not pay the connect cost.
func PoolOptionsFromConfig(cfg *config.DatabaseConfig) PoolOptions {
	return PoolOptions{
		MaxConnections: cfg.MaxConnections,
		MinConnections: min(cfg.MaxIdleConns, cfg.MaxConnections),
	}
}

// Connect opens a pool on url and verifies it with a ping.
func Connect(ctx context.Context, url string, opts PoolOptions) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = opts.MaxConnections
	if poolConfig.MaxConns <= 0 {
		poolConfig.MaxConns = defaultMaxConns
	}
	poolConfig.MinConns = max(opts.MinConnections, 0)
	poolConfig.MaxConnLifetime = cmpOr(opts.MaxConnLifetime, defaultMaxConnLifetime)
	poolConfig.MaxConnIdleTime = cmpOr(opts.MaxConnIdleTime, defaultMaxConnIdleTime)

	if _, ok := poolConfig.ConnConfig.RuntimeParams["application_name"]; !ok {
		poolConfig.ConnConfig.RuntimeParams["application_name"] = ApplicationName
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}

func cmpOr(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
