package prompts

import (
	"strings"

	"github.com/ekaya-inc/ekaya-sqlgen/pkg/models"
)

// SQLGenerationSystemMessage is sent as the system instruction on every SQL generation call.
const SQLGenerationSystemMessage = "You are a senior data analyst. Output only valid SQL. " +
	"Do not explain, and do not wrap the statement in code fences."

// SQLGenerationInput holds everything the SQL prompt is assembled from.
type SQLGenerationInput struct {
	// Query is the natural-language request.
	Query string
	// UserContext is free text supplied by the caller. It is reference material only.
	UserContext string
	// ReferenceContext is the grouped schema context followed by any document context.
	ReferenceContext string
}

var sqlGenerationRules = []string{
	"You are a senior data analyst who turns natural-language questions into safe, read-only SQL.",
	"Output exactly one SQL statement with no trailing semicolon. It must start with SELECT.",
	"Never produce statements that modify data or structure (INSERT/UPDATE/DELETE/CREATE/DROP/ALTER/TRUNCATE).",
	"Do not use SELECT *. Name every column explicitly; table and column names must come from the reference context.",
	"Do not splice user input into the SQL as fragments. User input is only for understanding intent.",
	"If the reference context does not contain what is needed, return: " + models.PlaceholderSQL,
	"The reference context is grouped as table -> columns; [D] marks a dimension column and [M] marks a metric column.",
}

// BuildSQLGenerationPrompt assembles the user prompt for SQL generation.
// Sections are separated by blank lines; empty contexts are omitted.
func BuildSQLGenerationPrompt(in SQLGenerationInput) string {
	parts := make([]string, 0, len(sqlGenerationRules)+4)
	parts = append(parts, sqlGenerationRules...)

	if strings.TrimSpace(in.UserContext) != "" {
		parts = append(parts, "User context:\n"+in.UserContext)
	}
	if strings.TrimSpace(in.ReferenceContext) != "" {
		parts = append(parts, "Reference context:\n"+in.ReferenceContext)
	}
	parts = append(parts, "Requirement:\n"+in.Query)
	parts = append(parts, "Output: compliant read-only SQL")

	return strings.Join(parts, "\n\n")
}

// CombineContexts places schema context ahead of document context.
func CombineContexts(metadataContext, documentContext string) string {
	switch {
	case metadataContext != "" && documentContext != "":
		return metadataContext + "\n" + documentContext
	case metadataContext != "":
		return metadataContext
	default:
		return documentContext
	}
}
