package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlgen/pkg/logging"
	"github.com/ekaya-inc/ekaya-sqlgen/pkg/models"
	"github.com/ekaya-inc/ekaya-sqlgen/pkg/repositories"
)

const (
	maxDetailColumns = 5

	defaultDateColumn   = "created_at"
	defaultAmountColumn = "amount"
)

// RuleBasedSQLGenerator builds simple SQL from keyword heuristics when the
// model is unavailable or unhelpful.
type RuleBasedSQLGenerator interface {
	// Generate returns a statement for query, or "" when no shape applies.
	// It never fails.
	Generate(ctx context.Context, query string) string
}

type ruleBasedSQLGenerator struct {
	metadata MetadataSearchService
	catalog  repositories.CatalogRepository
	keywords *KeywordTables
	logger   *zap.Logger
}

// NewRuleBasedSQLGenerator creates a heuristic generator. catalog may be nil.
func NewRuleBasedSQLGenerator(metadata MetadataSearchService, catalog repositories.CatalogRepository, keywords *KeywordTables, logger *zap.Logger) RuleBasedSQLGenerator {
	if keywords == nil {
		keywords = DefaultKeywordTables()
	}
	return &ruleBasedSQLGenerator{
		metadata: metadata,
		catalog:  catalog,
		keywords: keywords,
		logger:   logger.Named("rule-based-sql"),
	}
}

var _ RuleBasedSQLGenerator = (*ruleBasedSQLGenerator)(nil)

func (g *ruleBasedSQLGenerator) Generate(ctx context.Context, query string) (sql string) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("Heuristic SQL generation panicked", zap.Any("panic", r))
			sql = ""
		}
	}()

	matches := g.metadata.StructuredMatches(ctx, query, DefaultStructuredMatchTopK)
	if len(matches) == 0 {
		matches = g.scanCatalog(ctx)
	}
	if len(matches) == 0 {
		g.logger.Debug("No candidate tables for heuristic SQL", zap.String("query", logging.TruncateForLog(query)))
		return ""
	}

	lower := strings.ToLower(query)
	if containsAny(lower, g.keywords.DetailIntent) {
		if sql := g.detailSQL(matches); sql != "" {
			return sql
		}
	}
	return g.orderStatsSQL(lower, matches)
}

// scanCatalog lists every catalog table with all of its columns.
func (g *ruleBasedSQLGenerator) scanCatalog(ctx context.Context) []models.TableMatch {
	if g.catalog == nil {
		return nil
	}
	tables, err := g.catalog.ListTables(ctx)
	if err != nil {
		g.logger.Warn("Failed to list catalog tables", zap.String("error", logging.SanitizeError(err)))
		return nil
	}
	columns, err := g.catalog.ListColumns(ctx)
	if err != nil {
		g.logger.Warn("Failed to list catalog columns", zap.String("error", logging.SanitizeError(err)))
		return nil
	}

	byTable := make(map[int64][]models.ColumnMatch, len(tables))
	for _, c := range columns {
		byTable[c.TableID] = append(byTable[c.TableID], models.ColumnMatch{
			Name:        c.ColumnName,
			Type:        c.DataType,
			IsDimension: c.IsDimension,
			IsMetric:    c.IsMetric,
		})
	}

	matches := make([]models.TableMatch, 0, len(tables))
	for _, t := range tables {
		matches = append(matches, models.TableMatch{
			TableName:   t.TableName,
			DisplayName: t.DisplayName,
			Columns:     byTable[t.ID],
		})
	}
	return matches
}

// detailSQL selects descriptive columns from a product-like table.
func (g *ruleBasedSQLGenerator) detailSQL(matches []models.TableMatch) string {
	table := &matches[0]
	for i := range matches {
		if containsAny(strings.ToLower(matches[i].TableName), g.keywords.ProductTable) {
			table = &matches[i]
			break
		}
	}

	var cols []string
	seen := make(map[string]bool)
	for _, kw := range g.keywords.DetailColumns {
		for _, c := range table.Columns {
			if len(cols) >= maxDetailColumns {
				break
			}
			if !seen[c.Name] && hasNamePart(c.Name, kw) {
				cols = append(cols, c.Name)
				seen[c.Name] = true
			}
		}
	}
	if len(cols) == 0 {
		for _, c := range table.Columns {
			if len(cols) >= maxDetailColumns {
				break
			}
			if c.IsDimension {
				cols = append(cols, c.Name)
			}
		}
	}
	if len(cols) == 0 || table.TableName == "" {
		return ""
	}

	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), table.TableName)
}

// hasNamePart reports whether keyword is one of the underscore-separated
// parts of a column name, so "id" matches product_id but not paid_flag.
func hasNamePart(name, keyword string) bool {
	lower := strings.ToLower(name)
	if lower == keyword {
		return true
	}
	for _, part := range strings.Split(lower, "_") {
		if part == keyword {
			return true
		}
	}
	return false
}

// orderStatsSQL counts rows and sums an amount over a recent date window.
func (g *ruleBasedSQLGenerator) orderStatsSQL(lowerQuery string, matches []models.TableMatch) string {
	var table *models.TableMatch
	for i := range matches {
		if containsAny(strings.ToLower(matches[i].TableName), g.keywords.OrderTable) {
			table = &matches[i]
			break
		}
	}
	if table == nil {
		for i := range matches {
			if pickColumn(matches[i].Columns, g.keywords.DateColumn) != "" &&
				pickColumn(matches[i].Columns, g.keywords.AmountColumn) != "" {
				table = &matches[i]
				break
			}
		}
	}
	if table == nil || table.TableName == "" {
		return ""
	}

	dateCol := pickColumn(table.Columns, g.keywords.DateColumn)
	if dateCol == "" {
		dateCol = defaultDateColumn
	}
	amountCol := pickColumn(table.Columns, g.keywords.AmountColumn)
	if amountCol == "" {
		amountCol = defaultAmountColumn
	}

	days := 30
	if containsAny(lowerQuery, g.keywords.LastSevenDays) {
		days = 7
	}

	return fmt.Sprintf("SELECT COUNT(*) AS order_count, SUM(%s) AS gmv FROM %s WHERE DATE(%s) >= DATE_SUB(CURDATE(), INTERVAL %d DAY)",
		amountCol, table.TableName, dateCol, days)
}

// pickColumn returns the first column whose lowercased name contains any keyword.
func pickColumn(cols []models.ColumnMatch, keywords []string) string {
	for _, c := range cols {
		if containsAny(strings.ToLower(c.Name), keywords) {
			return c.Name
		}
	}
	return ""
}
