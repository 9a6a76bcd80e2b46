package services

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlgen/pkg/models"
	"github.com/ekaya-inc/ekaya-sqlgen/pkg/vectorindex"
)

type syncFixture struct {
	svc       MetadataSyncService
	catalog   *fakeCatalog
	summaries *fakeSummaries
	index     *vectorindex.MockStore
	docs      *vectorindex.MockStore
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()
	f := &syncFixture{
		catalog:   ordersCatalog(),
		summaries: &fakeSummaries{},
		index:     newMockIndex(),
		docs:      newMockIndex(),
	}
	fallback := NewFallbackDocumentStore(filepath.Join(t.TempDir(), "rag.jsonl"), zap.NewNop())
	rag := NewRAGService(vectorindex.NewStaticHandle("documents", f.docs), fallback, nil, zap.NewNop())
	f.svc = NewMetadataSyncService(f.catalog, f.summaries, vectorindex.NewStaticHandle("metadata", f.index), rag, nil, zap.NewNop())
	return f
}

func (f *syncFixture) indexIDs(t *testing.T, et models.EntityType) []string {
	t.Helper()
	ids, err := f.index.IDs(context.Background(), vectorindex.Filter{"type": string(et)})
	require.NoError(t, err)
	return ids
}

func catalogIDs(snap models.CatalogSnapshot, et models.EntityType) []string {
	var ids []string
	switch et {
	case models.EntityTypeSource:
		for _, s := range snap.Sources {
			ids = append(ids, models.EntityID(et, s.ID))
		}
	case models.EntityTypeTable:
		for _, tb := range snap.Tables {
			ids = append(ids, models.EntityID(et, tb.ID))
		}
	case models.EntityTypeColumn:
		for _, c := range snap.Columns {
			ids = append(ids, models.EntityID(et, c.ID))
		}
	}
	sort.Strings(ids)
	return ids
}

func TestMetadataSync_FirstRun(t *testing.T) {
	f := newSyncFixture(t)

	summary, err := f.svc.SyncAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[models.EntityType]int{"source": 1, "table": 2, "column": 8}, summary.Totals())
	assert.Equal(t, summary.Totals(), summary.Upserted())
	assert.Equal(t, map[models.EntityType]int{"source": 0, "table": 0, "column": 0}, summary.Deleted())
	assert.Equal(t, 3, summary.TaskDocuments)
	assert.False(t, summary.SyncedAt.IsZero())

	count, err := f.docs.Count(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	entry, ok := f.index.Get("column:102")
	require.True(t, ok)
	assert.Equal(t, "[column] name:amount type:decimal nullable:false dimension:false metric:true order:3 table_id:10 table:orders", entry.Document)
}

func TestMetadataSync_Idempotent(t *testing.T) {
	f := newSyncFixture(t)

	_, err := f.svc.SyncAll(context.Background())
	require.NoError(t, err)
	second, err := f.svc.SyncAll(context.Background())
	require.NoError(t, err)

	for _, et := range models.AllEntityTypes {
		assert.Zero(t, second.Deleted()[et], "type %s", et)
		assert.Equal(t, second.Totals()[et], second.Upserted()[et], "type %s", et)
	}
	assert.Equal(t, 2, f.summaries.count())
}

func TestMetadataSync_ReconcilesWithCatalog(t *testing.T) {
	f := newSyncFixture(t)

	_, err := f.svc.SyncAll(context.Background())
	require.NoError(t, err)

	// A stale entry left by an older catalog state, and a column dropped since.
	require.NoError(t, f.index.Upsert(context.Background(), []vectorindex.Entry{
		{ID: "column:999", Document: "[column] name:legacy", Metadata: map[string]any{"type": "column"}},
	}))
	f.catalog.mu.Lock()
	f.catalog.snap.Columns = f.catalog.snap.Columns[:len(f.catalog.snap.Columns)-1]
	f.catalog.mu.Unlock()

	summary, err := f.svc.SyncAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.ColumnsDeleted)
	assert.Equal(t, 7, summary.ColumnsUpserted)

	for _, et := range models.AllEntityTypes {
		assert.Equal(t, catalogIDs(f.catalog.snap, et), f.indexIDs(t, et), "type %s", et)
	}
}

func TestMetadataSync_UnavailableIndexReturnsZeroedSummary(t *testing.T) {
	summaries := &fakeSummaries{}
	svc := NewMetadataSyncService(ordersCatalog(), summaries, vectorindex.NewStaticHandle("metadata", nil), nil, nil, zap.NewNop())

	summary, err := svc.SyncAll(context.Background())
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Zero(t, summary.SourcesTotal)
	assert.Zero(t, summary.ColumnsUpserted)
	assert.False(t, summary.SyncedAt.IsZero())
	assert.Zero(t, summaries.count(), "zeroed summaries are not persisted")
}

func TestMetadataSync_CatalogFailureIsFatal(t *testing.T) {
	f := newSyncFixture(t)
	f.catalog.err = errors.New("relation does not exist")

	summary, err := f.svc.SyncAll(context.Background())
	require.Error(t, err)
	assert.Nil(t, summary)
	assert.Contains(t, err.Error(), "failed to read catalog")
}

func TestMetadataSync_SummaryInsertFailureIsNotFatal(t *testing.T) {
	f := newSyncFixture(t)
	f.summaries.err = errors.New("disk full")

	summary, err := f.svc.SyncAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 8, summary.ColumnsUpserted)
}

func TestMetadataSync_LastSyncSummary(t *testing.T) {
	f := newSyncFixture(t)

	last, err := f.svc.LastSyncSummary(context.Background())
	require.NoError(t, err)
	assert.Nil(t, last)

	_, err = f.svc.SyncAll(context.Background())
	require.NoError(t, err)

	last, err = f.svc.LastSyncSummary(context.Background())
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, int64(1), last.ID)
	assert.Equal(t, 8, last.ColumnsTotal)
}

func TestMetadataSync_IndexCountsByType(t *testing.T) {
	f := newSyncFixture(t)
	assert.Equal(t, map[string]int{"source": 0, "table": 0, "column": 0}, f.svc.IndexCountsByType(context.Background()))

	_, err := f.svc.SyncAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"source": 1, "table": 2, "column": 8}, f.svc.IndexCountsByType(context.Background()))

	unavailable := NewMetadataSyncService(ordersCatalog(), &fakeSummaries{}, vectorindex.NewStaticHandle("metadata", nil), nil, nil, zap.NewNop())
	assert.Equal(t, map[string]int{"source": 0, "table": 0, "column": 0}, unavailable.IndexCountsByType(context.Background()))
}

func TestMetadataSync_SchedulerRunsUntilCancelled(t *testing.T) {
	f := newSyncFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := f.svc.RunScheduler(ctx, 10*time.Millisecond)

	require.Eventually(t, func() bool { return f.summaries.count() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}
}

func TestMetadataSync_SchedulerSkipsCancelledContext(t *testing.T) {
	f := newSyncFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	select {
	case <-f.svc.RunScheduler(ctx, time.Hour):
	case <-time.After(time.Second):
		t.Fatal("scheduler did not exit")
	}
	assert.Zero(t, f.summaries.count())
}
