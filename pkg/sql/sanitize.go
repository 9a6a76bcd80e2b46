package sql

import (
	"regexp"
	"strings"
)

var (
	leadingFence  = regexp.MustCompile("(?i)^```(?:sql|mysql|postgresql|postgres)?\\s*")
	trailingFence = regexp.MustCompile("```\\s*$")
	statementHead = regexp.MustCompile(`(?is)\b(SELECT|WITH|INSERT|UPDATE|DELETE)\b.*`)
)

// SanitizeCompletion extracts the SQL statement from raw model output.
//
// A leading code fence (with an optional SQL language tag) and a trailing fence are
// removed, any prose before the first statement keyword is dropped, and a
// trailing semicolon is stripped. Output without a recognizable keyword is
// returned as-is after fence removal; only empty output yields "".
//
// Example:
//
//	SanitizeCompletion("```sql\nSELECT a FROM t;\n```") // "SELECT a FROM t"
func SanitizeCompletion(raw string) string {
	cleaned := strings.TrimSpace(raw)
	cleaned = leadingFence.ReplaceAllString(cleaned, "")
	cleaned = trailingFence.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)

	if m := statementHead.FindString(cleaned); m != "" {
		cleaned = strings.TrimSpace(m)
	}

	return stripTrailingSemicolon(cleaned)
}
