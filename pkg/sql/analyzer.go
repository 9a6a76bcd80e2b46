package sql

import (
	"regexp"
	"strings"

	"github.com/ekaya-inc/ekaya-sqlgen/pkg/models"
)

var (
	fromPattern   = regexp.MustCompile("(?i)\\bfrom\\s+([\\w.`\"]+)")
	joinPattern   = regexp.MustCompile("(?i)\\bjoin\\s+([\\w.`\"]+)")
	selectPattern = regexp.MustCompile(`(?is)\bselect\s+(.*?)\s+from\s`)
	wherePattern  = regexp.MustCompile(`(?is)\bwhere\s+(.*?)\s*(?:\bgroup\s+by\b|\bhaving\b|\border\s+by\b|\blimit\b|$)`)
	orderPattern  = regexp.MustCompile(`(?is)\border\s+by\s+(.*?)\s*(?:\blimit\b|\boffset\b|$)`)
	filterPattern = regexp.MustCompile(`(?is)^([\w.]+)\s*(!=|>=|<=|=|>|<|\blike\b)\s*(.+)$`)
	sortPattern   = regexp.MustCompile(`(?i)^([\w.]+)(?:\s+(asc|desc))?`)
	andKeyword    = regexp.MustCompile(`(?i)^\s+and\s+`)
)

// Analyze extracts a display-oriented shape from a SELECT statement: the
// primary table, joined tables, dimension and metric projections, simple
// WHERE predicates and ORDER BY items.
//
// It is best-effort and never fails. Fragments it does not recognize are
// left out of the result.
func Analyze(sqlText string) *models.SQLShape {
	shape := &models.SQLShape{
		Tables:     []string{},
		Dimensions: []string{},
		Metrics:    []models.SQLMetric{},
		Filters:    []models.SQLFilter{},
		Sorts:      []models.SQLSort{},
	}

	text := strings.TrimSpace(sqlText)
	if text == "" {
		return shape
	}

	if m := fromPattern.FindStringSubmatch(text); m != nil {
		shape.SelectedTable = unquoteIdent(m[1])
		shape.Tables = append(shape.Tables, shape.SelectedTable)
	}
	for _, m := range joinPattern.FindAllStringSubmatch(text, -1) {
		t := unquoteIdent(m[1])
		if !contains(shape.Tables, t) {
			shape.Tables = append(shape.Tables, t)
		}
	}

	if m := selectPattern.FindStringSubmatch(text); m != nil {
		dims, metrics := parseProjection(m[1])
		shape.Dimensions = append(shape.Dimensions, dims...)
		shape.Metrics = append(shape.Metrics, metrics...)
	}

	if m := wherePattern.FindStringSubmatch(text); m != nil {
		shape.Filters = append(shape.Filters, parseFilters(m[1])...)
	}

	if m := orderPattern.FindStringSubmatch(text); m != nil {
		shape.Sorts = append(shape.Sorts, parseSorts(m[1])...)
	}

	return shape
}

func parseFilters(where string) []models.SQLFilter {
	var filters []models.SQLFilter
	conds := splitTopLevel(where, func(rest string) int {
		if loc := andKeyword.FindStringIndex(rest); loc != nil {
			return loc[1]
		}
		return 0
	})
	for _, cond := range conds {
		m := filterPattern.FindStringSubmatch(strings.TrimSpace(cond))
		if m == nil {
			continue
		}
		filters = append(filters, models.SQLFilter{
			Column:   m[1],
			Operator: strings.ToUpper(m[2]),
			Value:    strings.Trim(strings.TrimSpace(m[3]), `'"`),
		})
	}
	return filters
}

func parseSorts(orderBy string) []models.SQLSort {
	var sorts []models.SQLSort
	for _, seg := range splitSelectColumns(orderBy) {
		m := sortPattern.FindStringSubmatch(strings.TrimSpace(seg))
		if m == nil {
			continue
		}
		order := strings.ToLower(m[2])
		if order == "" {
			order = "asc"
		}
		sorts = append(sorts, models.SQLSort{Column: m[1], Order: order})
	}
	return sorts
}

func unquoteIdent(s string) string {
	return strings.Trim(strings.TrimSpace(s), "`\"")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
