package models

// MetadataHit is one nearest-neighbor result from the metadata partition of
// the vector index, with its structured tags decoded.
type MetadataHit struct {
	ID               string     `json:"id"`
	Text             string     `json:"text"`
	Type             EntityType `json:"type"`
	Source           string     `json:"source"`
	DataSourceID     int64      `json:"data_source_id,omitempty"`
	TableID          int64      `json:"table_id,omitempty"`
	TableName        string     `json:"table_name,omitempty"`
	TableDisplayName string     `json:"table_display_name,omitempty"`
	ColumnID         int64      `json:"column_id,omitempty"`
	ColumnName       string     `json:"column_name,omitempty"`
	DataType         string     `json:"data_type,omitempty"`
	IsDimension      bool       `json:"is_dimension,omitempty"`
	IsMetric         bool       `json:"is_metric,omitempty"`
	Distance         float64    `json:"distance"`
}

// ColumnMatch is a column kept by the keyword gate.
type ColumnMatch struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	IsDimension bool   `json:"is_dimension"`
	IsMetric    bool   `json:"is_metric"`
}

// TableMatch is a table with the columns that survived keyword filtering.
type TableMatch struct {
	TableName   string        `json:"table_name"`
	DisplayName string        `json:"display_name,omitempty"`
	Columns     []ColumnMatch `json:"columns"`
}
