package services

import (
	"sort"
	"strconv"
	"strings"

	"github.com/jinzhu/inflection"

	"github.com/ekaya-inc/ekaya-sqlgen/pkg/models"
)

// TaskDocumentSource labels documents derived from the catalog.
const TaskDocumentSource = "metadata-doc"

// maxTaskDocumentColumns bounds the column lists in a table document.
const maxTaskDocumentColumns = 8

// BuildTaskDocuments derives natural-language documents from the catalog so
// that free-text retrieval can find tables by their likely uses: one per
// table and one per source.
func BuildTaskDocuments(snap *models.CatalogSnapshot, keywords *KeywordTables) []models.Document {
	if snap == nil {
		return nil
	}
	if keywords == nil {
		keywords = DefaultKeywordTables()
	}

	sourceNames := make(map[int64]string, len(snap.Sources))
	for _, s := range snap.Sources {
		sourceNames[s.ID] = s.Name
	}

	columnsByTable := make(map[int64][]models.TableColumn)
	for _, c := range snap.Columns {
		columnsByTable[c.TableID] = append(columnsByTable[c.TableID], c)
	}

	tableNames := make(map[string]string, len(snap.Tables))
	for _, t := range snap.Tables {
		tableNames[strings.ToLower(t.TableName)] = t.TableName
	}

	docs := make([]models.Document, 0, len(snap.Tables)+len(snap.Sources))
	for _, t := range snap.Tables {
		cols := columnsByTable[t.ID]
		sort.SliceStable(cols, func(i, j int) bool { return cols[i].Ordinal < cols[j].Ordinal })
		docs = append(docs, models.Document{
			ID:     "doc:table:" + strconv.FormatInt(t.ID, 10),
			Text:   tableDocumentText(t, sourceNames[t.SourceID], cols, tableNames, keywords),
			Source: TaskDocumentSource,
		})
	}

	for _, s := range snap.Sources {
		text := "Data source " + s.Name + ": type " + s.Type + ", database " + s.DatabaseName + "."
		if s.Description != "" {
			text += " " + s.Description
		}
		docs = append(docs, models.Document{
			ID:     "doc:source:" + strconv.FormatInt(s.ID, 10),
			Text:   text,
			Source: TaskDocumentSource,
		})
	}

	return docs
}

func tableDocumentText(t models.DataTable, source string, cols []models.TableColumn, tableNames map[string]string, keywords *KeywordTables) string {
	var common, dims, metrics, relations []string
	for _, c := range cols {
		name := strings.ToLower(c.ColumnName)
		if containsAny(name, keywords.TaskDocumentColumns) {
			common = append(common, c.ColumnName)
		}
		if c.IsDimension {
			dims = append(dims, c.ColumnName)
		}
		if c.IsMetric {
			metrics = append(metrics, c.ColumnName)
		}
		if target := guessForeignKeyTable(name, tableNames); target != "" && !strings.EqualFold(target, t.TableName) {
			relations = append(relations, c.ColumnName+" -> "+target)
		}
	}

	var b strings.Builder
	b.WriteString("Table ")
	b.WriteString(t.TableName)
	if t.DisplayName != "" {
		b.WriteString(" (" + t.DisplayName + ")")
	}
	if source != "" {
		b.WriteString(" in data source " + source)
	}
	b.WriteString(":")
	if t.Description != "" {
		b.WriteString(" " + t.Description + ";")
	}
	writeList(&b, "common columns", common)
	writeList(&b, "dimensions", dims)
	writeList(&b, "metrics", metrics)
	writeList(&b, "relations", relations)
	return strings.TrimSuffix(b.String(), ";")
}

func writeList(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString(" " + label + ": " + strings.Join(firstN(items, maxTaskDocumentColumns), ", ") + ";")
}

// guessForeignKeyTable maps a "{base}_id" column to a catalog table named
// base, base+"s" or the plural of base.
func guessForeignKeyTable(column string, tableNames map[string]string) string {
	base, ok := strings.CutSuffix(column, "_id")
	if !ok || base == "" {
		return ""
	}
	for _, candidate := range []string{base, base + "s", inflection.Plural(base)} {
		if name, ok := tableNames[candidate]; ok {
			return name
		}
	}
	return ""
}
