//go:build integration

package vectorindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlgen/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sqlgen/pkg/llm"
	"github.com/ekaya-inc/ekaya-sqlgen/pkg/testhelpers"
)

func newPgvectorTestStore(t *testing.T, collection string) *PgvectorStore {
	t.Helper()
	engineDB := testhelpers.GetEngineDB(t)

	s, err := NewPgvectorStore(context.Background(), engineDB.DB, collection,
		NewLLMEmbedder(&llm.MockEmbeddingClient{}), zap.NewNop())
	require.NoError(t, err)
	engineDB.Truncate(t, "engine_vector_entries")
	return s
}

func TestPgvectorStore_RoundTrip(t *testing.T) {
	s := newPgvectorTestStore(t, "metadata_embeddings")
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, []Entry{
		{ID: "table:1", Document: "orders amount order_date", Metadata: map[string]any{"type": "table", "table_id": 1}},
		{ID: "table:2", Document: "customers email city", Metadata: map[string]any{"type": "table", "table_id": 2}},
		{ID: "column:5", Document: "orders amount", Metadata: map[string]any{"type": "column", "table_id": 1}},
	}))

	hits, err := s.Query(ctx, "orders amount", 2, Filter{"type": "table"})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "table:1", hits[0].ID)
	assert.Equal(t, "table", hits[0].Metadata["type"])
	assert.Equal(t, float64(1), hits[0].Metadata["table_id"])

	ids, err := s.IDs(ctx, Filter{"type": "column"})
	require.NoError(t, err)
	assert.Equal(t, []string{"column:5"}, ids)

	require.NoError(t, s.Upsert(ctx, []Entry{
		{ID: "table:2", Document: "customers v2", Metadata: map[string]any{"type": "table"}},
	}))
	n, err := s.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, s.Delete(ctx, []string{"table:2", "column:5"}))
	n, err = s.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPgvectorStore_CollectionsAreIsolated(t *testing.T) {
	metadata := newPgvectorTestStore(t, "metadata_embeddings")
	engineDB := testhelpers.GetEngineDB(t)
	docs, err := NewPgvectorStore(context.Background(), engineDB.DB, "query_embeddings",
		NewLLMEmbedder(&llm.MockEmbeddingClient{}), zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, metadata.Upsert(ctx, []Entry{{ID: "source:1", Document: "shop", Metadata: map[string]any{"type": "source"}}}))
	require.NoError(t, docs.Upsert(ctx, []Entry{{ID: "source:1", Document: "shop doc"}}))

	n, err := metadata.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	hits, err := docs.Query(ctx, "shop", 5, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "shop doc", hits[0].Document)
}

func TestNewPgvectorStore_RequiresEmbedder(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	_, err := NewPgvectorStore(context.Background(), engineDB.DB, "x", nil, zap.NewNop())
	require.Error(t, err)
}

func TestNewPgvectorStore_CreatesSchema(t *testing.T) {
	s := newPgvectorTestStore(t, "metadata_embeddings")
	engineDB := testhelpers.GetEngineDB(t)

	var exists bool
	err := engineDB.DB.QueryRow(context.Background(),
		"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'engine_vector_entries')").Scan(&exists)
	require.NoError(t, err)
	assert.True(t, exists)

	// Acquiring a second time is a no-op.
	_, err = NewPgvectorStore(context.Background(), engineDB.DB, "query_embeddings",
		NewLLMEmbedder(&llm.MockEmbeddingClient{}), zap.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestHandle_UnavailableWithoutVectorExtension(t *testing.T) {
	plainDB := testhelpers.GetPlainEngineDB(t)
	embedder := NewLLMEmbedder(&llm.MockEmbeddingClient{})

	handle := NewHandle("metadata_embeddings", func(ctx context.Context) (Store, error) {
		return NewPgvectorStore(ctx, plainDB.DB, "metadata_embeddings", embedder, zap.NewNop())
	}, zap.NewNop())

	_, err := handle.Get(context.Background())
	require.ErrorIs(t, err, apperrors.ErrUnavailable)
	assert.Contains(t, err.Error(), "vector extension is not available")
	assert.False(t, handle.Available())
}
