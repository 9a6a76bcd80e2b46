package services

import (
	"strings"
	"unicode"
)

// RewriteQuery normalizes a retrieval query: whitespace is collapsed, Latin
// letters are lowercased (other scripts are left untouched) and terms from
// any matching synonym group are appended so lexically different phrasings
// retrieve the same documents.
func RewriteQuery(text string, synonyms []SynonymGroup) string {
	normalized := strings.Join(strings.Fields(text), " ")
	normalized = strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Latin, r) {
			return unicode.ToLower(r)
		}
		return r
	}, normalized)
	if normalized == "" {
		return ""
	}

	var extra []string
	seen := map[string]bool{}
	for _, group := range synonyms {
		if !containsAny(normalized, group.Terms) {
			continue
		}
		for _, term := range group.Terms {
			term = strings.ToLower(term)
			if term == "" || seen[term] || strings.Contains(normalized, term) {
				continue
			}
			seen[term] = true
			extra = append(extra, term)
		}
	}

	if len(extra) == 0 {
		return normalized
	}
	return normalized + " " + strings.Join(extra, " ")
}
