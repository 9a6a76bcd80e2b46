package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-sqlgen/pkg/models"
)

// CatalogRepository reads the relational metadata catalog.
// The catalog is owned by another layer; this repository never writes to it.
type CatalogRepository interface {
	ListSources(ctx context.Context) ([]models.DataSource, error)
	ListTables(ctx context.Context) ([]models.DataTable, error)
	ListColumns(ctx context.Context) ([]models.TableColumn, error)
	// Snapshot reads sources, tables and columns in one repeatable-read transaction.
	Snapshot(ctx context.Context) (*models.CatalogSnapshot, error)
}

// beginner is implemented by *pgxpool.Pool.
type beginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type catalogRepository struct {
	db DBTX
}

// NewCatalogRepository creates a new CatalogRepository.
func NewCatalogRepository(db DBTX) CatalogRepository {
	return &catalogRepository{db: db}
}

var _ CatalogRepository = (*catalogRepository)(nil)

const (
	sourceColumns = `id, name, type, description, host, port, database_name, username, created_at, updated_at`
	tableColumns  = `id, source_id, table_name, display_name, description, category, row_count, size_mb, created_at, updated_at`
)

func (r *catalogRepository) ListSources(ctx context.Context) ([]models.DataSource, error) {
	return listSources(ctx, r.db)
}

func (r *catalogRepository) ListTables(ctx context.Context) ([]models.DataTable, error) {
	return listTables(ctx, r.db)
}

func (r *catalogRepository) ListColumns(ctx context.Context) ([]models.TableColumn, error) {
	return listColumns(ctx, r.db)
}

func (r *catalogRepository) Snapshot(ctx context.Context) (*models.CatalogSnapshot, error) {
	q := r.db
	if b, ok := r.db.(beginner); ok {
		tx, err := b.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
		if err != nil {
			return nil, fmt.Errorf("failed to begin catalog snapshot: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }()
		q = tx
	}

	sources, err := listSources(ctx, q)
	if err != nil {
		return nil, err
	}
	tables, err := listTables(ctx, q)
	if err != nil {
		return nil, err
	}
	columns, err := listColumns(ctx, q)
	if err != nil {
		return nil, err
	}

	return &models.CatalogSnapshot{
		Sources: sources,
		Tables:  tables,
		Columns: columns,
	}, nil
}

func listSources(ctx context.Context, q DBTX) ([]models.DataSource, error) {
	rows, err := q.Query(ctx, `SELECT `+sourceColumns+` FROM engine_data_sources ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list data sources: %w", err)
	}
	return collect(rows, "data source", scanSource)
}

func listTables(ctx context.Context, q DBTX) ([]models.DataTable, error) {
	rows, err := q.Query(ctx, `SELECT `+tableColumns+` FROM engine_data_tables ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list data tables: %w", err)
	}
	return collect(rows, "data table", scanTable)
}

func listColumns(ctx context.Context, q DBTX) ([]models.TableColumn, error) {
	rows, err := q.Query(ctx, `
		SELECT c.id, c.table_id, t.table_name, t.display_name, c.column_name, c.display_name,
		       c.data_type, c.description, c.is_nullable, c.is_dimension, c.is_metric,
		       c.ordinal, c.created_at, c.updated_at
		FROM engine_table_columns c
		JOIN engine_data_tables t ON t.id = c.table_id
		ORDER BY c.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list table columns: %w", err)
	}
	return collect(rows, "table column", scanColumn)
}

// collect drains rows through a single row-to-entity function.
func collect[T any](rows pgx.Rows, what string, scan func(pgx.Row) (T, error)) ([]T, error) {
	defer rows.Close()

	var out []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", what, err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %ss: %w", what, err)
	}
	return out, nil
}

func scanSource(row pgx.Row) (models.DataSource, error) {
	var s models.DataSource
	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.Type,
		&s.Description,
		&s.Host,
		&s.Port,
		&s.DatabaseName,
		&s.Username,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	return s, err
}

func scanTable(row pgx.Row) (models.DataTable, error) {
	var t models.DataTable
	err := row.Scan(
		&t.ID,
		&t.SourceID,
		&t.TableName,
		&t.DisplayName,
		&t.Description,
		&t.Category,
		&t.RowCount,
		&t.SizeMB,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	return t, err
}

func scanColumn(row pgx.Row) (models.TableColumn, error) {
	var c models.TableColumn
	err := row.Scan(
		&c.ID,
		&c.TableID,
		&c.TableName,
		&c.TableDisplayName,
		&c.ColumnName,
		&c.DisplayName,
		&c.DataType,
		&c.Description,
		&c.IsNullable,
		&c.IsDimension,
		&c.IsMetric,
		&c.Ordinal,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}
