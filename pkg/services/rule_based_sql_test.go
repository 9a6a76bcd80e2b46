package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlgen/pkg/models"
	"github.com/ekaya-inc/ekaya-sqlgen/pkg/vectorindex"
)

func newOfflineHeuristic(catalog *fakeCatalog) RuleBasedSQLGenerator {
	metadata := NewMetadataSearchService(vectorindex.NewStaticHandle("metadata", nil), zap.NewNop())
	if catalog == nil {
		return NewRuleBasedSQLGenerator(metadata, nil, nil, zap.NewNop())
	}
	return NewRuleBasedSQLGenerator(metadata, catalog, nil, zap.NewNop())
}

func singleTableCatalog(table string, cols ...models.TableColumn) *fakeCatalog {
	for i := range cols {
		cols[i].TableID = 1
		cols[i].TableName = table
		cols[i].ID = int64(i + 1)
	}
	return &fakeCatalog{snap: models.CatalogSnapshot{
		Tables:  []models.DataTable{{ID: 1, TableName: table}},
		Columns: cols,
	}}
}

func TestRuleBasedSQL_LastSevenDaysOrders(t *testing.T) {
	gen := newOfflineHeuristic(ordersCatalog())

	got := gen.Generate(context.Background(), "近7天订单")

	assert.Equal(t, "SELECT COUNT(*) AS order_count, SUM(amount) AS gmv FROM orders WHERE DATE(order_date) >= DATE_SUB(CURDATE(), INTERVAL 7 DAY)", got)
}

func TestRuleBasedSQL_DefaultsToThirtyDays(t *testing.T) {
	gen := newOfflineHeuristic(ordersCatalog())

	got := gen.Generate(context.Background(), "order totals this month")

	assert.Equal(t, "SELECT COUNT(*) AS order_count, SUM(amount) AS gmv FROM orders WHERE DATE(order_date) >= DATE_SUB(CURDATE(), INTERVAL 30 DAY)", got)
}

func TestRuleBasedSQL_DetailIntentPicksProductTable(t *testing.T) {
	gen := newOfflineHeuristic(ordersCatalog())

	assert.Equal(t, "SELECT id, name, category, price FROM products", gen.Generate(context.Background(), "商品列表"))
}

func TestRuleBasedSQL_DetailIntentFromStructuredMatches(t *testing.T) {
	metadata := NewMetadataSearchService(vectorindex.NewStaticHandle("metadata", indexedCatalog(t)), zap.NewNop())
	gen := NewRuleBasedSQLGenerator(metadata, nil, nil, zap.NewNop())

	assert.Equal(t, "SELECT id, name, category, price FROM products", gen.Generate(context.Background(), "products detail"))
}

func TestRuleBasedSQL_DetailFallsBackToDimensions(t *testing.T) {
	gen := newOfflineHeuristic(singleTableCatalog("sku_stock",
		models.TableColumn{ColumnName: "warehouse", IsDimension: true},
		models.TableColumn{ColumnName: "qty", IsMetric: true},
		models.TableColumn{ColumnName: "region", IsDimension: true},
	))

	assert.Equal(t, "SELECT warehouse, region FROM sku_stock", gen.Generate(context.Background(), "sku list"))
}

func TestRuleBasedSQL_DetailColumnsCappedAtFive(t *testing.T) {
	gen := newOfflineHeuristic(singleTableCatalog("products",
		models.TableColumn{ColumnName: "id"},
		models.TableColumn{ColumnName: "sku_id"},
		models.TableColumn{ColumnName: "name"},
		models.TableColumn{ColumnName: "short_name"},
		models.TableColumn{ColumnName: "category"},
		models.TableColumn{ColumnName: "brand"},
		models.TableColumn{ColumnName: "price"},
	))

	assert.Equal(t, "SELECT id, sku_id, name, short_name, category FROM products", gen.Generate(context.Background(), "product details"))
}

func TestRuleBasedSQL_TableWithDateAndAmountColumns(t *testing.T) {
	gen := newOfflineHeuristic(singleTableCatalog("sales_daily",
		models.TableColumn{ColumnName: "dt"},
		models.TableColumn{ColumnName: "gmv"},
	))

	assert.Equal(t, "SELECT COUNT(*) AS order_count, SUM(gmv) AS gmv FROM sales_daily WHERE DATE(dt) >= DATE_SUB(CURDATE(), INTERVAL 30 DAY)",
		gen.Generate(context.Background(), "sales summary"))
}

func TestRuleBasedSQL_OrderTableDefaultColumns(t *testing.T) {
	gen := newOfflineHeuristic(singleTableCatalog("order_log",
		models.TableColumn{ColumnName: "note"},
	))

	assert.Equal(t, "SELECT COUNT(*) AS order_count, SUM(amount) AS gmv FROM order_log WHERE DATE(created_at) >= DATE_SUB(CURDATE(), INTERVAL 30 DAY)",
		gen.Generate(context.Background(), "how are we doing"))
}

func TestRuleBasedSQL_NoApplicableShape(t *testing.T) {
	gen := newOfflineHeuristic(singleTableCatalog("users",
		models.TableColumn{ColumnName: "email"},
	))
	assert.Equal(t, "", gen.Generate(context.Background(), "who signed up"))

	assert.Equal(t, "", newOfflineHeuristic(nil).Generate(context.Background(), "近7天订单"))
}

type panickingMetadata struct{ MetadataSearchService }

func (panickingMetadata) StructuredMatches(context.Context, string, int) []models.TableMatch {
	panic("boom")
}

func TestRuleBasedSQL_PanicYieldsNoResult(t *testing.T) {
	gen := NewRuleBasedSQLGenerator(panickingMetadata{}, nil, nil, zap.NewNop())

	assert.Equal(t, "", gen.Generate(context.Background(), "近7天订单"))
}

func TestRuleBasedSQL_DetailColumnsMatchWholeNameParts(t *testing.T) {
	gen := newOfflineHeuristic(singleTableCatalog("products",
		models.TableColumn{ColumnName: "paid_flag"},
		models.TableColumn{ColumnName: "valid_until"},
		models.TableColumn{ColumnName: "product_id"},
		models.TableColumn{ColumnName: "product_name"},
		models.TableColumn{ColumnName: "nickname"},
	))

	assert.Equal(t, "SELECT product_id, product_name FROM products", gen.Generate(context.Background(), "product details"))
}

func TestHasNamePart(t *testing.T) {
	assert.True(t, hasNamePart("id", "id"))
	assert.True(t, hasNamePart("Product_ID", "id"))
	assert.True(t, hasNamePart("short_name", "name"))
	assert.False(t, hasNamePart("paid_flag", "id"))
	assert.False(t, hasNamePart("nickname", "name"))
}
