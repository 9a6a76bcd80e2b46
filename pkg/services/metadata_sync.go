package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlgen/pkg/logging"
	"github.com/ekaya-inc/ekaya-sqlgen/pkg/models"
	"github.com/ekaya-inc/ekaya-sqlgen/pkg/repositories"
	"github.com/ekaya-inc/ekaya-sqlgen/pkg/vectorindex"
)

// DefaultSyncInterval is how often the scheduler reconciles the index.
const DefaultSyncInterval = time.Hour

// metadataTagSource marks index entries written by the sync.
const metadataTagSource = "metadata"

// MetadataSyncService reconciles the metadata partition of the vector index
// with the relational catalog.
type MetadataSyncService interface {
	// SyncAll deletes index entries whose catalog row is gone and rewrites
	// every current row. It returns an error only when the catalog cannot
	// be read; an unavailable index yields a zeroed, unpersisted summary.
	SyncAll(ctx context.Context) (*models.SyncSummary, error)

	// LastSyncSummary returns the most recent persisted summary, or nil.
	LastSyncSummary(ctx context.Context) (*models.SyncSummary, error)

	// IndexCountsByType returns entry counts keyed by entity type. All
	// counts are zero when the index is unavailable.
	IndexCountsByType(ctx context.Context) map[string]int

	// RunScheduler syncs once immediately, then on every interval until ctx
	// is cancelled. The returned channel is closed when the loop exits.
	RunScheduler(ctx context.Context, interval time.Duration) <-chan struct{}
}

type metadataSyncService struct {
	catalog   repositories.CatalogRepository
	summaries repositories.SyncSummaryRepository
	index     *vectorindex.Handle
	documents DocumentUpserter
	keywords  *KeywordTables
	logger    *zap.Logger

	// serializes SyncAll so scheduled and manual runs never interleave
	mu sync.Mutex
}

// NewMetadataSyncService creates a sync service. documents may be nil, in
// which case task documents are not generated.
func NewMetadataSyncService(
	catalog repositories.CatalogRepository,
	summaries repositories.SyncSummaryRepository,
	index *vectorindex.Handle,
	documents DocumentUpserter,
	keywords *KeywordTables,
	logger *zap.Logger,
) MetadataSyncService {
	if keywords == nil {
		keywords = DefaultKeywordTables()
	}
	return &metadataSyncService{
		catalog:   catalog,
		summaries: summaries,
		index:     index,
		documents: documents,
		keywords:  keywords,
		logger:    logger.Named("metadata-sync"),
	}
}

var _ MetadataSyncService = (*metadataSyncService)(nil)

func (s *metadataSyncService) SyncAll(ctx context.Context) (*models.SyncSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()

	store, err := s.index.Get(ctx)
	if err != nil {
		s.logger.Warn("Vector index unavailable; skipping metadata sync",
			zap.String("error", logging.SanitizeError(err)))
		return &models.SyncSummary{SyncedAt: time.Now().UTC()}, nil
	}

	snap, err := s.catalog.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	entries := buildIndexEntries(snap)
	summary := &models.SyncSummary{
		SourcesTotal: len(snap.Sources),
		TablesTotal:  len(snap.Tables),
		ColumnsTotal: len(snap.Columns),
	}

	for _, t := range models.AllEntityTypes {
		deleted, upserted := s.reconcileType(ctx, store, t, entries[t])
		switch t {
		case models.EntityTypeSource:
			summary.SourcesDeleted, summary.SourcesUpserted = deleted, upserted
		case models.EntityTypeTable:
			summary.TablesDeleted, summary.TablesUpserted = deleted, upserted
		case models.EntityTypeColumn:
			summary.ColumnsDeleted, summary.ColumnsUpserted = deleted, upserted
		}
	}

	if s.documents != nil {
		docs := BuildTaskDocuments(snap, s.keywords)
		if len(docs) > 0 {
			if written, err := s.documents.UpsertDocuments(ctx, docs); err != nil {
				s.logger.Warn("Failed to upsert task documents",
					zap.Int("count", len(docs)),
					zap.String("error", logging.SanitizeError(err)))
			} else {
				summary.TaskDocuments = len(written)
			}
		}
	}

	summary.DurationMs = time.Since(start).Milliseconds()
	summary.SyncedAt = time.Now().UTC()

	if err := s.summaries.Insert(ctx, summary); err != nil {
		s.logger.Warn("Failed to persist sync summary", zap.String("error", logging.SanitizeError(err)))
	}

	s.logger.Info("Metadata sync completed",
		zap.Any("totals", summary.Totals()),
		zap.Any("deleted", summary.Deleted()),
		zap.Any("upserted", summary.Upserted()),
		zap.Int("task_documents", summary.TaskDocuments),
		zap.Int64("duration_ms", summary.DurationMs))

	return summary, nil
}

// reconcileType deletes stale ids of one entity type and upserts the wanted
// entries. Index failures are logged and counted as zero work.
func (s *metadataSyncService) reconcileType(ctx context.Context, store vectorindex.Store, t models.EntityType, want []vectorindex.Entry) (deleted, upserted int) {
	wantIDs := make(map[string]struct{}, len(want))
	for _, e := range want {
		wantIDs[e.ID] = struct{}{}
	}

	have, err := store.IDs(ctx, vectorindex.Filter{"type": string(t)})
	if err != nil {
		s.logger.Warn("Failed to list index ids; treating as empty",
			zap.String("type", string(t)),
			zap.String("error", logging.SanitizeError(err)))
		have = nil
	}

	var stale []string
	for _, id := range have {
		if _, ok := wantIDs[id]; !ok {
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		if err := store.Delete(ctx, stale); err != nil {
			s.logger.Warn("Failed to delete stale index entries",
				zap.String("type", string(t)),
				zap.Int("count", len(stale)),
				zap.String("error", logging.SanitizeError(err)))
		} else {
			deleted = len(stale)
		}
	}

	if len(want) > 0 {
		if err := store.Upsert(ctx, want); err != nil {
			s.logger.Warn("Failed to upsert index entries",
				zap.String("type", string(t)),
				zap.Int("count", len(want)),
				zap.String("error", logging.SanitizeError(err)))
		} else {
			upserted = len(want)
		}
	}

	s.logger.Debug("Reconciled entity type",
		zap.String("type", string(t)),
		zap.Int("want", len(want)),
		zap.Int("have", len(have)),
		zap.Int("deleted", deleted),
		zap.Int("upserted", upserted))
	return deleted, upserted
}

func (s *metadataSyncService) LastSyncSummary(ctx context.Context) (*models.SyncSummary, error) {
	summary, err := s.summaries.Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read last sync summary: %w", err)
	}
	return summary, nil
}

func (s *metadataSyncService) IndexCountsByType(ctx context.Context) map[string]int {
	counts := make(map[string]int, len(models.AllEntityTypes))
	for _, t := range models.AllEntityTypes {
		counts[string(t)] = 0
	}

	store, err := s.index.Get(ctx)
	if err != nil {
		return counts
	}
	for _, t := range models.AllEntityTypes {
		n, err := store.Count(ctx, vectorindex.Filter{"type": string(t)})
		if err != nil {
			s.logger.Warn("Failed to count index entries",
				zap.String("type", string(t)),
				zap.String("error", logging.SanitizeError(err)))
			continue
		}
		counts[string(t)] = n
	}
	return counts
}

func (s *metadataSyncService) RunScheduler(ctx context.Context, interval time.Duration) <-chan struct{} {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	done := make(chan struct{})

	go func() {
		defer close(done)
		if ctx.Err() != nil {
			return
		}

		s.logger.Info("Metadata sync scheduler started", zap.Duration("interval", interval))

		// Run immediately on startup, then at each interval
		s.runScheduled(ctx)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("Metadata sync scheduler stopped")
				return
			case <-ticker.C:
				if ctx.Err() != nil {
					continue
				}
				s.runScheduled(ctx)
			}
		}
	}()

	return done
}

func (s *metadataSyncService) runScheduled(ctx context.Context) {
	if _, err := s.SyncAll(ctx); err != nil {
		s.logger.Error("Scheduled metadata sync failed", zap.String("error", logging.SanitizeError(err)))
	}
}

// buildIndexEntries renders every catalog row as an index entry, grouped by type.
func buildIndexEntries(snap *models.CatalogSnapshot) map[models.EntityType][]vectorindex.Entry {
	entries := map[models.EntityType][]vectorindex.Entry{
		models.EntityTypeSource: make([]vectorindex.Entry, 0, len(snap.Sources)),
		models.EntityTypeTable:  make([]vectorindex.Entry, 0, len(snap.Tables)),
		models.EntityTypeColumn: make([]vectorindex.Entry, 0, len(snap.Columns)),
	}

	for _, src := range snap.Sources {
		entries[models.EntityTypeSource] = append(entries[models.EntityTypeSource], sourceEntry(src))
	}

	tableNames := make(map[int64]string, len(snap.Tables))
	for _, t := range snap.Tables {
		tableNames[t.ID] = t.TableName
		entries[models.EntityTypeTable] = append(entries[models.EntityTypeTable], tableEntry(t))
	}

	for _, c := range snap.Columns {
		if c.TableName == "" {
			c.TableName = tableNames[c.TableID]
		}
		entries[models.EntityTypeColumn] = append(entries[models.EntityTypeColumn], columnEntry(c))
	}

	return entries
}

func sourceEntry(s models.DataSource) vectorindex.Entry {
	text := joinFields("[source]",
		"name", s.Name,
		"type", s.Type,
		"description", s.Description,
		"host", s.Host+":"+strconv.Itoa(s.Port),
		"database", s.DatabaseName,
		"user", s.Username)
	return vectorindex.Entry{
		ID:       models.EntityID(models.EntityTypeSource, s.ID),
		Document: text,
		Metadata: map[string]any{
			"type":        string(models.EntityTypeSource),
			"source":      metadataTagSource,
			"source_id":   s.ID,
			"source_name": s.Name,
			"source_type": s.Type,
		},
	}
}

func tableEntry(t models.DataTable) vectorindex.Entry {
	text := joinFields("[table]",
		"name", t.TableName,
		"description", t.Description,
		"category", t.Category,
		"source", strconv.FormatInt(t.SourceID, 10),
		"rows", strconv.FormatInt(t.RowCount, 10),
		"size_mb", strconv.FormatFloat(t.SizeMB, 'f', -1, 64))
	return vectorindex.Entry{
		ID:       models.EntityID(models.EntityTypeTable, t.ID),
		Document: text,
		Metadata: map[string]any{
			"type":               string(models.EntityTypeTable),
			"source":             metadataTagSource,
			"table_id":           t.ID,
			"table_name":         t.TableName,
			"display_name":       t.DisplayName,
			"table_display_name": t.DisplayName,
			"data_source_id":     t.SourceID,
			"category":           t.Category,
		},
	}
}

func columnEntry(c models.TableColumn) vectorindex.Entry {
	text := joinFields("[column]",
		"name", c.ColumnName,
		"type", c.DataType,
		"nullable", strconv.FormatBool(c.IsNullable),
		"dimension", strconv.FormatBool(c.IsDimension),
		"metric", strconv.FormatBool(c.IsMetric),
		"order", strconv.Itoa(c.Ordinal),
		"description", c.Description,
		"table_id", strconv.FormatInt(c.TableID, 10),
		"table", c.TableName)
	return vectorindex.Entry{
		ID:       models.EntityID(models.EntityTypeColumn, c.ID),
		Document: text,
		Metadata: map[string]any{
			"type":               string(models.EntityTypeColumn),
			"source":             metadataTagSource,
			"column_id":          c.ID,
			"column_name":        c.ColumnName,
			"data_type":          c.DataType,
			"is_dimension":       c.IsDimension,
			"is_metric":          c.IsMetric,
			"table_id":           c.TableID,
			"table_name":         c.TableName,
			"table_display_name": c.TableDisplayName,
		},
	}
}

// joinFields renders "prefix k1:v1 k2:v2 ...", skipping empty values.
func joinFields(prefix string, kv ...string) string {
	parts := []string{prefix}
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] == "" {
			continue
		}
		parts = append(parts, kv[i]+":"+kv[i+1])
	}
	return strings.Join(parts, " ")
}
