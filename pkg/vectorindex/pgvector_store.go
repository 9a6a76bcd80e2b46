package vectorindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlgen/pkg/repositories"
)

// PgvectorStore keeps one collection in engine_vector_entries.
// Vectors are compared with cosine distance; entries embedded at a different
// dimension than the current model are ignored by queries.
type PgvectorStore struct {
	db         repositories.DBTX
	collection string
	embedder   Embedder
	logger     *zap.Logger
}

// NewPgvectorStore enables the vector extension if needed, creates
// engine_vector_entries if missing and returns a store for the collection.
// An error here marks the owning Handle unavailable.
func NewPgvectorStore(ctx context.Context, db repositories.DBTX, collection string, embedder Embedder, logger *zap.Logger) (*PgvectorStore, error) {
	if embedder == nil {
		return nil, errors.New("no embedding model configured")
	}
	if collection == "" {
		return nil, errors.New("collection name is required")
	}

	if err := ensureSchema(ctx, db); err != nil {
		return nil, err
	}

	return &PgvectorStore{
		db:         db,
		collection: collection,
		embedder:   embedder,
		logger:     logger.Named("pgvector").With(zap.String("collection", collection)),
	}, nil
}

var _ Store = (*PgvectorStore)(nil)

// The advisory lock serializes concurrent first acquisitions of the two
// collections; CREATE ... IF NOT EXISTS alone can still race on the catalog.
const vectorSchemaDDL = `
DO $$
BEGIN
    PERFORM pg_advisory_xact_lock(hashtext('engine_vector_entries'));

    CREATE EXTENSION IF NOT EXISTS vector;

    -- collection partitions the metadata projection from the free-text
    -- document store. The embedding column is untyped so the embedding model
    -- can change without a migration; other dimensions are skipped by queries.
    CREATE TABLE IF NOT EXISTS engine_vector_entries (
        collection TEXT NOT NULL,
        id         TEXT NOT NULL,
        document   TEXT NOT NULL,
        metadata   JSONB NOT NULL DEFAULT '{}'::jsonb,
        embedding  vector,
        dimensions INTEGER NOT NULL DEFAULT 0,
        updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
        PRIMARY KEY (collection, id)
    );

    CREATE INDEX IF NOT EXISTS idx_engine_vector_entries_metadata
        ON engine_vector_entries USING GIN (metadata jsonb_path_ops);
END $$`

func ensureSchema(ctx context.Context, db repositories.DBTX) error {
	var available, installed bool
	err := db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM pg_available_extensions WHERE name = 'vector'),
		       EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'vector')`).Scan(&available, &installed)
	if err != nil {
		return fmt.Errorf("failed to check vector extension: %w", err)
	}
	if !available && !installed {
		return errors.New("postgres vector extension is not available")
	}

	if _, err := db.Exec(ctx, vectorSchemaDDL); err != nil {
		return fmt.Errorf("failed to create vector schema: %w", err)
	}
	return nil
}

func (s *PgvectorStore) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = e.Document
	}
	vecs, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed %d entries: %w", len(entries), err)
	}

	query := `
		INSERT INTO engine_vector_entries (collection, id, document, metadata, embedding, dimensions, updated_at)
		VALUES ($1, $2, $3, $4::jsonb, $5::text::vector, $6, NOW())
		ON CONFLICT (collection, id) DO UPDATE SET
			document = EXCLUDED.document,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding,
			dimensions = EXCLUDED.dimensions,
			updated_at = EXCLUDED.updated_at`

	batch := &pgx.Batch{}
	for i, e := range entries {
		meta, err := marshalTags(e.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata for %s: %w", e.ID, err)
		}
		batch.Queue(query, s.collection, e.ID, e.Document, meta, pgvector.NewVector(vecs[i]), len(vecs[i]))
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()
	for range entries {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to upsert vector entry: %w", err)
		}
	}

	s.logger.Debug("Upserted vector entries", zap.Int("count", len(entries)))
	return nil
}

func (s *PgvectorStore) Query(ctx context.Context, text string, topK int, filter Filter) ([]Hit, error) {
	if topK <= 0 {
		return nil, nil
	}

	vecs, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	queryVec := vecs[0]

	tags, err := marshalTags(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal filter: %w", err)
	}

	rows, err := s.db.Query(ctx, `
		SELECT id, document, metadata, embedding <=> $2::text::vector AS distance
		FROM engine_vector_entries
		WHERE collection = $1 AND dimensions = $3 AND metadata @> $4::jsonb
		ORDER BY distance
		LIMIT $5`,
		s.collection, pgvector.NewVector(queryVec), len(queryVec), tags, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to query vector entries: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		var raw []byte
		if err := rows.Scan(&h.ID, &h.Document, &raw, &h.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan vector hit: %w", err)
		}
		if err := json.Unmarshal(raw, &h.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata for %s: %w", h.ID, err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating vector hits: %w", err)
	}
	return hits, nil
}

func (s *PgvectorStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.Exec(ctx,
		`DELETE FROM engine_vector_entries WHERE collection = $1 AND id = ANY($2)`,
		s.collection, ids)
	if err != nil {
		return fmt.Errorf("failed to delete vector entries: %w", err)
	}
	return nil
}

func (s *PgvectorStore) IDs(ctx context.Context, filter Filter) ([]string, error) {
	tags, err := marshalTags(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal filter: %w", err)
	}

	rows, err := s.db.Query(ctx,
		`SELECT id FROM engine_vector_entries WHERE collection = $1 AND metadata @> $2::jsonb ORDER BY id`,
		s.collection, tags)
	if err != nil {
		return nil, fmt.Errorf("failed to list vector ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan vector id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating vector ids: %w", err)
	}
	return ids, nil
}

func (s *PgvectorStore) Count(ctx context.Context, filter Filter) (int, error) {
	tags, err := marshalTags(filter)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal filter: %w", err)
	}

	var n int
	err = s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM engine_vector_entries WHERE collection = $1 AND metadata @> $2::jsonb`,
		s.collection, tags).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count vector entries: %w", err)
	}
	return n, nil
}

func marshalTags[M ~map[string]any](m M) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
