// Package sql provides text-level helpers for generated SQL: completion
// sanitizing, statement validation, input screening and shape analysis.
package sql

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrMultipleStatements indicates the query contains multiple SQL statements.
	ErrMultipleStatements = errors.New("multiple SQL statements not allowed; only single statements are permitted")

	// ErrNotReadOnly indicates the statement does not start with SELECT or WITH.
	ErrNotReadOnly = errors.New("statement is not read-only")
)

var readOnlyPrefix = regexp.MustCompile(`(?i)^\s*(select|with)\b`)

// ValidationResult contains the normalized SQL and any validation errors.
type ValidationResult struct {
	NormalizedSQL string
	Error         error
}

// ValidateAndNormalize checks SQL for multiple statements and strips the trailing semicolon.
//
// The validation order is:
// 1. Strip trailing semicolon and whitespace (normalize)
// 2. Check for multiple statements (any remaining semicolons outside string literals)
func ValidateAndNormalize(sqlQuery string) ValidationResult {
	sqlQuery = strings.TrimSpace(sqlQuery)

	if sqlQuery == "" {
		return ValidationResult{NormalizedSQL: sqlQuery}
	}

	normalized := stripTrailingSemicolon(sqlQuery)

	if hasSemicolonOutsideStrings(normalized) {
		return ValidationResult{NormalizedSQL: normalized, Error: ErrMultipleStatements}
	}

	return ValidationResult{NormalizedSQL: normalized}
}

// ValidateReadOnly runs ValidateAndNormalize and additionally requires the
// statement to start with SELECT or WITH. The normalized text is returned
// even when validation fails.
func ValidateReadOnly(sqlQuery string) ValidationResult {
	result := ValidateAndNormalize(sqlQuery)
	if result.Error != nil || result.NormalizedSQL == "" {
		return result
	}
	if !readOnlyPrefix.MatchString(result.NormalizedSQL) {
		result.Error = ErrNotReadOnly
	}
	return result
}

// hasSemicolonOutsideStrings returns true if the SQL contains any semicolon
// outside of string literals.
func hasSemicolonOutsideStrings(sqlQuery string) bool {
	const (
		stateNormal = iota
		stateSingleQuote
		stateDoubleQuote
	)

	state := stateNormal
	prevChar := rune(0)

	for _, char := range sqlQuery {
		switch state {
		case stateNormal:
			switch char {
			case ';':
				return true
			case '\'':
				state = stateSingleQuote
			case '"':
				state = stateDoubleQuote
			}
		case stateSingleQuote:
			// Doubled quotes ('') exit and immediately re-enter.
			if char == '\'' && prevChar != '\\' {
				state = stateNormal
			}
		case stateDoubleQuote:
			if char == '"' && prevChar != '\\' {
				state = stateNormal
			}
		}
		prevChar = char
	}

	return false
}

// stripTrailingSemicolon removes a trailing semicolon and any whitespace around it.
func stripTrailingSemicolon(sqlQuery string) string {
	sqlQuery = strings.TrimRight(sqlQuery, " \t\n\r")

	if strings.HasSuffix(sqlQuery, ";") {
		sqlQuery = strings.TrimSuffix(sqlQuery, ";")
		sqlQuery = strings.TrimRight(sqlQuery, " \t\n\r")
	}

	return sqlQuery
}
