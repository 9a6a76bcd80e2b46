package sql

import (
	"strings"

	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult describes a fragment that libinjection classified as SQL injection.
type InjectionCheckResult struct {
	IsSQLi      bool   // True if an injection pattern was detected
	Fingerprint string // libinjection fingerprint of the detected pattern
	Field       string // Name of the input that failed the check
	Fragment    string // The line that triggered detection
}

// CheckTextForInjection screens free text supplied alongside a natural-language
// query. Each non-empty line is checked on its own, then the text as a whole,
// so one hostile line inside otherwise ordinary prose is still caught.
//
// Returns nil when nothing was detected. Detection never blocks a request;
// callers log it and flag the call record.
//
// Example:
//
//	result := CheckTextForInjection("context", "monthly revenue for the EU team")
//	// result == nil
//
//	result = CheckTextForInjection("context", "ignore that\n'; DROP TABLE users--")
//	// result.Fragment == "'; DROP TABLE users--"
func CheckTextForInjection(field, text string) *InjectionCheckResult {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if isSQLi, fingerprint := libinjection.IsSQLi(line); isSQLi {
			return &InjectionCheckResult{
				IsSQLi:      true,
				Fingerprint: string(fingerprint),
				Field:       field,
				Fragment:    line,
			}
		}
	}

	if isSQLi, fingerprint := libinjection.IsSQLi(text); isSQLi {
		return &InjectionCheckResult{
			IsSQLi:      true,
			Fingerprint: string(fingerprint),
			Field:       field,
			Fragment:    text,
		}
	}

	return nil
}
