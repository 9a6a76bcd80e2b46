package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-sqlgen/pkg/models"
)

// SyncSummaryRepository appends and reads metadata sync summaries.
type SyncSummaryRepository interface {
	Insert(ctx context.Context, summary *models.SyncSummary) error
	// Latest returns the most recent summary, or nil if no sync has completed.
	Latest(ctx context.Context) (*models.SyncSummary, error)
}

type syncSummaryRepository struct {
	db DBTX
}

// NewSyncSummaryRepository creates a new SyncSummaryRepository.
func NewSyncSummaryRepository(db DBTX) SyncSummaryRepository {
	return &syncSummaryRepository{db: db}
}

var _ SyncSummaryRepository = (*syncSummaryRepository)(nil)

func (r *syncSummaryRepository) Insert(ctx context.Context, s *models.SyncSummary) error {
	query := `
		INSERT INTO engine_metadata_sync_summaries (
			sources_total, tables_total, columns_total,
			sources_deleted, tables_deleted, columns_deleted,
			sources_upserted, tables_upserted, columns_upserted,
			task_documents, duration_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`

	err := r.db.QueryRow(ctx, query,
		s.SourcesTotal, s.TablesTotal, s.ColumnsTotal,
		s.SourcesDeleted, s.TablesDeleted, s.ColumnsDeleted,
		s.SourcesUpserted, s.TablesUpserted, s.ColumnsUpserted,
		s.TaskDocuments, s.DurationMs, s.SyncedAt,
	).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("failed to insert sync summary: %w", err)
	}
	return nil
}

func (r *syncSummaryRepository) Latest(ctx context.Context) (*models.SyncSummary, error) {
	query := `
		SELECT id, sources_total, tables_total, columns_total,
		       sources_deleted, tables_deleted, columns_deleted,
		       sources_upserted, tables_upserted, columns_upserted,
		       task_documents, duration_ms, created_at
		FROM engine_metadata_sync_summaries
		ORDER BY created_at DESC, id DESC
		LIMIT 1`

	var s models.SyncSummary
	err := r.db.QueryRow(ctx, query).Scan(
		&s.ID, &s.SourcesTotal, &s.TablesTotal, &s.ColumnsTotal,
		&s.SourcesDeleted, &s.TablesDeleted, &s.ColumnsDeleted,
		&s.SourcesUpserted, &s.TablesUpserted, &s.ColumnsUpserted,
		&s.TaskDocuments, &s.DurationMs, &s.SyncedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest sync summary: %w", err)
	}
	return &s, nil
}
