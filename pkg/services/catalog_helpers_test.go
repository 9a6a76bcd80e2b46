package services

import (
	"context"
	"sync"

	"github.com/ekaya-inc/ekaya-sqlgen/pkg/models"
	"github.com/ekaya-inc/ekaya-sqlgen/pkg/repositories"
)

// fakeCatalog is an in-memory CatalogRepository.
type fakeCatalog struct {
	mu   sync.Mutex
	snap models.CatalogSnapshot
	err  error
}

var _ repositories.CatalogRepository = (*fakeCatalog)(nil)

func (f *fakeCatalog) ListSources(context.Context) ([]models.DataSource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.DataSource(nil), f.snap.Sources...), f.err
}

func (f *fakeCatalog) ListTables(context.Context) ([]models.DataTable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.DataTable(nil), f.snap.Tables...), f.err
}

func (f *fakeCatalog) ListColumns(context.Context) ([]models.TableColumn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.TableColumn(nil), f.snap.Columns...), f.err
}

func (f *fakeCatalog) Snapshot(ctx context.Context) (*models.CatalogSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &models.CatalogSnapshot{
		Sources: append([]models.DataSource(nil), f.snap.Sources...),
		Tables:  append([]models.DataTable(nil), f.snap.Tables...),
		Columns: append([]models.TableColumn(nil), f.snap.Columns...),
	}, nil
}

// fakeSummaries records inserted summaries.
type fakeSummaries struct {
	mu    sync.Mutex
	rows  []*models.SyncSummary
	err   error
	calls int
}

var _ repositories.SyncSummaryRepository = (*fakeSummaries)(nil)

func (f *fakeSummaries) Insert(_ context.Context, s *models.SyncSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return f.err
	}
	s.ID = int64(len(f.rows) + 1)
	cp := *s
	f.rows = append(f.rows, &cp)
	return nil
}

func (f *fakeSummaries) Latest(context.Context) (*models.SyncSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if len(f.rows) == 0 {
		return nil, nil
	}
	cp := *f.rows[len(f.rows)-1]
	return &cp, nil
}

func (f *fakeSummaries) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// ordersCatalog is a small shop schema: one source, an orders table and a
// products table.
func ordersCatalog() *fakeCatalog {
	return &fakeCatalog{snap: models.CatalogSnapshot{
		Sources: []models.DataSource{
			{ID: 1, Name: "shop", Type: "mysql", Host: "db.local", Port: 3306, DatabaseName: "shop", Username: "reader"},
		},
		Tables: []models.DataTable{
			{ID: 10, SourceID: 1, TableName: "orders", DisplayName: "Orders", Description: "customer orders", Category: "sales"},
			{ID: 11, SourceID: 1, TableName: "products", DisplayName: "Products", Description: "product catalog", Category: "catalog"},
		},
		Columns: []models.TableColumn{
			{ID: 100, TableID: 10, TableName: "orders", ColumnName: "id", DataType: "bigint", Ordinal: 1},
			{ID: 101, TableID: 10, TableName: "orders", ColumnName: "order_date", DataType: "date", IsDimension: true, Ordinal: 2},
			{ID: 102, TableID: 10, TableName: "orders", ColumnName: "amount", DataType: "decimal", IsMetric: true, Ordinal: 3},
			{ID: 103, TableID: 10, TableName: "orders", ColumnName: "product_id", DataType: "bigint", Ordinal: 4},
			{ID: 110, TableID: 11, TableName: "products", ColumnName: "id", DataType: "bigint", Ordinal: 1},
			{ID: 111, TableID: 11, TableName: "products", ColumnName: "name", DataType: "varchar", IsDimension: true, Ordinal: 2},
			{ID: 112, TableID: 11, TableName: "products", ColumnName: "category", DataType: "varchar", IsDimension: true, Ordinal: 3},
			{ID: 113, TableID: 11, TableName: "products", ColumnName: "price", DataType: "decimal", IsMetric: true, Ordinal: 4},
		},
	}}
}
