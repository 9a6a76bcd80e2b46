package logging

import (
	"regexp"
	"unicode/utf8"
)

const (
	// MaxQueryLogLength is the maximum number of runes of a query or prompt to log
	MaxQueryLogLength = 100
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
)

var (
	// Matches: password=xxx, pwd=xxx, pass=xxx (until next delimiter)
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// Bearer tokens, JWT shaped or opaque
	bearerPattern = regexp.MustCompile(`Bearer\s+[A-Za-z0-9\-_\.]+`)

	apiKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key|apikey|key)=[A-Za-z0-9-_]{20,}`)

	// Provider secret keys echoed back in error bodies (sk-..., sk-ant-...)
	providerKeyPattern = regexp.MustCompile(`sk-[A-Za-z0-9\-_]{16,}`)

	// user:pass@host format
	connStringPattern = regexp.MustCompile(`://[^:/\s]+:[^@\s]+@[^/\s]+`)
)

// SanitizeConnectionString removes sensitive data from connection strings.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}

	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)

	return sanitized
}

// SanitizeError sanitizes error messages that might contain sensitive data.
// Use this before logging or persisting any error from the database, the
// vector index or a model endpoint.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeText(err.Error())
}

// SanitizeText applies every redaction pattern to s.
func SanitizeText(s string) string {
	sanitized := passwordPattern.ReplaceAllString(s, "${1}="+RedactedText)
	sanitized = bearerPattern.ReplaceAllString(sanitized, "Bearer "+RedactedText)
	sanitized = apiKeyPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	sanitized = providerKeyPattern.ReplaceAllString(sanitized, RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)
	return sanitized
}

// SanitizeQuery truncates and sanitizes a SQL statement for logging.
func SanitizeQuery(query string) string {
	if query == "" {
		return ""
	}

	sanitized := TruncateForLog(query)
	sanitized = passwordPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	sanitized = apiKeyPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)

	return sanitized
}

// TruncateForLog shortens natural-language input to MaxQueryLogLength runes.
func TruncateForLog(s string) string {
	return TruncateString(s, MaxQueryLogLength)
}

// TruncateString truncates s to maxLen runes and adds an ellipsis if needed.
// Multi-byte characters are never split.
func TruncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen]) + "..."
}
