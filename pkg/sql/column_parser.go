package sql

import (
	"regexp"
	"strings"

	"github.com/ekaya-inc/ekaya-sqlgen/pkg/models"
)

var (
	aliasPattern     = regexp.MustCompile(`(?i)\s+as\s+(\w+)\s*$`)
	aggregatePattern = regexp.MustCompile(`(?i)^(sum|count|avg|min|max)\s*\(\s*(?:distinct\s+)?([\w.]+|\*)\s*\)`)
	qualifierPattern = regexp.MustCompile(`^\w+\.`)
	wrapperPattern   = regexp.MustCompile(`(?i)\b(?:distinct|coalesce|ifnull)\b\s*\((.*?)\)`)
	distinctPrefix   = regexp.MustCompile(`(?i)^distinct\s+`)
)

// parseProjection classifies each item of a SELECT list as a metric
// (a recognized aggregate) or a dimension.
//
// Examples:
//   - "SUM(amount) AS total" → metric {amount, sum, total}
//   - "COUNT(*)"             → metric {*, count, count_all}
//   - "o.customer_id"        → dimension "customer_id"
//   - "DISTINCT(o.region) AS r" → dimension "region"
func parseProjection(selectClause string) (dimensions []string, metrics []models.SQLMetric) {
	selectClause = distinctPrefix.ReplaceAllString(strings.TrimSpace(selectClause), "")

	for _, item := range splitSelectColumns(selectClause) {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		alias := ""
		if m := aliasPattern.FindStringSubmatch(item); m != nil {
			alias = m[1]
		}

		if m := aggregatePattern.FindStringSubmatch(item); m != nil {
			fn := strings.ToLower(m[1])
			col := m[2]
			if alias == "" {
				alias = fn + "_" + generatedAliasSuffix(col)
			}
			metrics = append(metrics, models.SQLMetric{Column: col, Aggregation: fn, Alias: alias})
			continue
		}

		if col := dimensionName(item); col != "" {
			dimensions = append(dimensions, col)
		}
	}
	return dimensions, metrics
}

func generatedAliasSuffix(col string) string {
	if col == "*" {
		return "all"
	}
	return strings.ReplaceAll(col, ".", "_")
}

// dimensionName strips a table qualifier, DISTINCT/COALESCE/IFNULL wrappers
// and a trailing alias from a projection item.
func dimensionName(item string) string {
	col := qualifierPattern.ReplaceAllString(item, "")
	col = wrapperPattern.ReplaceAllString(col, "$1")
	col = aliasPattern.ReplaceAllString(col, "")
	col = qualifierPattern.ReplaceAllString(strings.TrimSpace(col), "")
	return strings.Trim(strings.TrimSpace(col), "`\"")
}

// splitSelectColumns splits a SELECT column list by commas, respecting
// parentheses and quoted strings.
func splitSelectColumns(selectClause string) []string {
	return splitTopLevel(selectClause, func(rest string) int {
		if rest[0] == ',' {
			return 1
		}
		return 0
	})
}

// splitTopLevel cuts s wherever sep reports a separator of non-zero width
// outside parentheses and quotes. sep receives the remaining input.
func splitTopLevel(s string, sep func(rest string) int) []string {
	var parts []string
	var current strings.Builder
	depth := 0
	var quote byte

	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '\'' || ch == '"' || ch == '`':
			quote = ch
		case ch == '(':
			depth++
		case ch == ')':
			if depth > 0 {
				depth--
			}
		case depth == 0:
			if n := sep(s[i:]); n > 0 {
				parts = append(parts, current.String())
				current.Reset()
				i += n - 1
				continue
			}
		}
		current.WriteByte(ch)
	}

	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}
