package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-sqlgen/pkg/models"
)

func TestAnalyze_AggregateWithFilterAndSort(t *testing.T) {
	shape := Analyze("SELECT customer_id, SUM(amount) AS total FROM orders WHERE status = 'paid' ORDER BY total DESC")

	assert.Equal(t, "orders", shape.SelectedTable)
	assert.Equal(t, []string{"orders"}, shape.Tables)
	assert.Equal(t, []string{"customer_id"}, shape.Dimensions)
	assert.Equal(t, []models.SQLMetric{{Column: "amount", Aggregation: "sum", Alias: "total"}}, shape.Metrics)
	assert.Equal(t, []models.SQLFilter{{Column: "status", Operator: "=", Value: "paid"}}, shape.Filters)
	assert.Equal(t, []models.SQLSort{{Column: "total", Order: "desc"}}, shape.Sorts)
}

func TestAnalyze_Joins(t *testing.T) {
	shape := Analyze(`SELECT o.id, c.name FROM orders o JOIN customers c ON c.id = o.customer_id
		LEFT JOIN orders o2 ON o2.id = o.parent_id`)

	assert.Equal(t, "orders", shape.SelectedTable)
	assert.Equal(t, []string{"orders", "customers"}, shape.Tables)
	assert.Equal(t, []string{"id", "name"}, shape.Dimensions)
}

func TestAnalyze_GeneratedAliasesAndCountStar(t *testing.T) {
	shape := Analyze("SELECT COUNT(*), AVG(o.price), MAX(qty) AS top FROM orders o")

	require.Len(t, shape.Metrics, 3)
	assert.Equal(t, models.SQLMetric{Column: "*", Aggregation: "count", Alias: "count_all"}, shape.Metrics[0])
	assert.Equal(t, models.SQLMetric{Column: "o.price", Aggregation: "avg", Alias: "avg_o_price"}, shape.Metrics[1])
	assert.Equal(t, models.SQLMetric{Column: "qty", Aggregation: "max", Alias: "top"}, shape.Metrics[2])
	assert.Empty(t, shape.Dimensions)
}

func TestAnalyze_DimensionWrappers(t *testing.T) {
	shape := Analyze("SELECT DISTINCT region, COALESCE(o.city) AS city, IFNULL(brand) FROM products")

	assert.Equal(t, []string{"region", "city", "brand"}, shape.Dimensions)
}

func TestAnalyze_FiltersStopAtClauses(t *testing.T) {
	shape := Analyze(`SELECT category, COUNT(id) AS n FROM products
		WHERE price >= 10 AND name LIKE '%phone%' AND brand != "acme" AND DATE(created_at) >= '2024-01-01'
		GROUP BY category ORDER BY n DESC, category LIMIT 5`)

	assert.Equal(t, []models.SQLFilter{
		{Column: "price", Operator: ">=", Value: "10"},
		{Column: "name", Operator: "LIKE", Value: "%phone%"},
		{Column: "brand", Operator: "!=", Value: "acme"},
	}, shape.Filters)
	assert.Equal(t, []models.SQLSort{
		{Column: "n", Order: "desc"},
		{Column: "category", Order: "asc"},
	}, shape.Sorts)
}

func TestAnalyze_AndInsideParensIsNotSplit(t *testing.T) {
	shape := Analyze("SELECT id FROM t WHERE (a = 1 AND b = 2) AND c = 3")

	assert.Equal(t, []models.SQLFilter{{Column: "c", Operator: "=", Value: "3"}}, shape.Filters)
}

func TestAnalyze_Placeholder(t *testing.T) {
	shape := Analyze(models.PlaceholderSQL)

	assert.Empty(t, shape.SelectedTable)
	assert.Empty(t, shape.Tables)
	assert.Empty(t, shape.Metrics)
	assert.NotNil(t, shape.Dimensions)
}

func TestAnalyze_GarbageNeverPanics(t *testing.T) {
	for _, in := range []string{"", "   ", "FROM", "SELECT", "WHERE AND AND", "ORDER BY", "SELECT ( FROM"} {
		assert.NotPanics(t, func() { _ = Analyze(in) }, in)
	}
}
