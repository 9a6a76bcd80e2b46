package models

import "time"

// SyncSummary is the append-only record of one metadata synchronization run.
type SyncSummary struct {
	ID              int64     `json:"id,omitempty"`
	SourcesTotal    int       `json:"sources_total"`
	TablesTotal     int       `json:"tables_total"`
	ColumnsTotal    int       `json:"columns_total"`
	SourcesDeleted  int       `json:"deleted_sources"`
	TablesDeleted   int       `json:"deleted_tables"`
	ColumnsDeleted  int       `json:"deleted_columns"`
	SourcesUpserted int       `json:"upserted_sources"`
	TablesUpserted  int       `json:"upserted_tables"`
	ColumnsUpserted int       `json:"upserted_columns"`
	TaskDocuments   int       `json:"task_documents"`
	DurationMs      int64     `json:"duration_ms"`
	SyncedAt        time.Time `json:"last_sync_time"`
}

// Totals returns the per-type row counts keyed by entity type.
func (s *SyncSummary) Totals() map[EntityType]int {
	return map[EntityType]int{
		EntityTypeSource: s.SourcesTotal,
		EntityTypeTable:  s.TablesTotal,
		EntityTypeColumn: s.ColumnsTotal,
	}
}

// Deleted returns the per-type deletion counts keyed by entity type.
func (s *SyncSummary) Deleted() map[EntityType]int {
	return map[EntityType]int{
		EntityTypeSource: s.SourcesDeleted,
		EntityTypeTable:  s.TablesDeleted,
		EntityTypeColumn: s.ColumnsDeleted,
	}
}

// Upserted returns the per-type upsert counts keyed by entity type.
func (s *SyncSummary) Upserted() map[EntityType]int {
	return map[EntityType]int{
		EntityTypeSource: s.SourcesUpserted,
		EntityTypeTable:  s.TablesUpserted,
		EntityTypeColumn: s.ColumnsUpserted,
	}
}
