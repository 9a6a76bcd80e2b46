package vectorindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-sqlgen/pkg/llm"
)

func newTestStore() *MockStore {
	return NewMockStore(NewLLMEmbedder(&llm.MockEmbeddingClient{}))
}

func TestMockStore_UpsertIsLastWriteWins(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	require.NoError(t, s.Upsert(ctx, []Entry{{ID: "table:1", Document: "orders", Metadata: map[string]any{"type": "table"}}}))
	require.NoError(t, s.Upsert(ctx, []Entry{{ID: "table:1", Document: "orders v2", Metadata: map[string]any{"type": "table"}}}))

	n, err := s.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	e, ok := s.Get("table:1")
	require.True(t, ok)
	assert.Equal(t, "orders v2", e.Document)
}

func TestMockStore_QueryRanksAndFilters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	require.NoError(t, s.Upsert(ctx, []Entry{
		{ID: "table:1", Document: "orders amount order_date", Metadata: map[string]any{"type": "table"}},
		{ID: "table:2", Document: "customers email city", Metadata: map[string]any{"type": "table"}},
		{ID: "column:7", Document: "orders amount", Metadata: map[string]any{"type": "column", "table_id": int64(1)}},
	}))

	hits, err := s.Query(ctx, "orders amount", 5, Filter{"type": "table"})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "table:1", hits[0].ID)
	assert.Less(t, hits[0].Distance, hits[1].Distance)

	hits, err = s.Query(ctx, "orders", 5, Filter{"table_id": float64(1)})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "column:7", hits[0].ID)
}

func TestMockStore_DeleteAndIDs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore()

	require.NoError(t, s.Upsert(ctx, []Entry{
		{ID: "column:2", Document: "b", Metadata: map[string]any{"type": "column"}},
		{ID: "column:1", Document: "a", Metadata: map[string]any{"type": "column"}},
		{ID: "source:1", Document: "s", Metadata: map[string]any{"type": "source"}},
	}))
	require.NoError(t, s.Delete(ctx, []string{"column:2", "missing"}))

	ids, err := s.IDs(ctx, Filter{"type": "column"})
	require.NoError(t, err)
	assert.Equal(t, []string{"column:1"}, ids)

	all, err := s.IDs(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"column:1", "source:1"}, all)
}

func TestCosineDistance(t *testing.T) {
	assert.InDelta(t, 0.0, cosineDistance([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 1.0, cosineDistance([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 2.0, cosineDistance([]float32{1}, []float32{1, 0}))
}
