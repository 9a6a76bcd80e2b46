package models

// SQLShape is a best-effort structural description of a SELECT statement,
// intended for display only.
type SQLShape struct {
	Tables        []string    `json:"tables"`
	SelectedTable string      `json:"selected_table"`
	Dimensions    []string    `json:"dimensions"`
	Metrics       []SQLMetric `json:"metrics"`
	Filters       []SQLFilter `json:"filters"`
	Sorts         []SQLSort   `json:"sorts"`
}

// SQLMetric is an aggregate projection.
type SQLMetric struct {
	Column      string `json:"column"`
	Aggregation string `json:"aggregation"`
	Alias       string `json:"alias"`
}

// SQLFilter is a simple column-operator-value predicate from the WHERE clause.
type SQLFilter struct {
	Column   string `json:"column"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

// SQLSort is an ORDER BY item.
type SQLSort struct {
	Column string `json:"column"`
	Order  string `json:"order"`
}
