package models

import (
	"strconv"
	"time"
)

// EntityType identifies which catalog table a metadata entity comes from.
type EntityType string

const (
	EntityTypeSource EntityType = "source"
	EntityTypeTable  EntityType = "table"
	EntityTypeColumn EntityType = "column"
)

// AllEntityTypes lists entity types in sync order (parents before children).
var AllEntityTypes = []EntityType{EntityTypeSource, EntityTypeTable, EntityTypeColumn}

// EntityID returns the vector index id for a catalog row: "{type}:{catalog_id}".
func EntityID(t EntityType, catalogID int64) string {
	return string(t) + ":" + strconv.FormatInt(catalogID, 10)
}

// DataSource is a registered analytic database in the metadata catalog.
type DataSource struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Type         string    `json:"type"`
	Description  string    `json:"description"`
	Host         string    `json:"host"`
	Port         int       `json:"port"`
	DatabaseName string    `json:"database_name"`
	Username     string    `json:"username"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DataTable is a table registered under a data source.
type DataTable struct {
	ID          int64     `json:"id"`
	SourceID    int64     `json:"data_source_id"`
	TableName   string    `json:"table_name"`
	DisplayName string    `json:"display_name"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	RowCount    int64     `json:"row_count"`
	SizeMB      float64   `json:"size_mb"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableColumn is a column of a registered table. TableName and
// TableDisplayName are denormalized from the parent row when read.
type TableColumn struct {
	ID               int64     `json:"id"`
	TableID          int64     `json:"table_id"`
	TableName        string    `json:"table_name"`
	TableDisplayName string    `json:"table_display_name"`
	ColumnName       string    `json:"column_name"`
	DisplayName      string    `json:"display_name"`
	DataType         string    `json:"data_type"`
	Description      string    `json:"description"`
	IsNullable       bool      `json:"is_nullable"`
	IsDimension      bool      `json:"is_dimension"`
	IsMetric         bool      `json:"is_metric"`
	Ordinal          int       `json:"column_order"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// CatalogSnapshot is the full state of the catalog read in one pass.
type CatalogSnapshot struct {
	Sources []DataSource
	Tables  []DataTable
	Columns []TableColumn
}
