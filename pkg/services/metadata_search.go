package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlgen/pkg/logging"
	"github.com/ekaya-inc/ekaya-sqlgen/pkg/models"
	"github.com/ekaya-inc/ekaya-sqlgen/pkg/vectorindex"
)

// Default result sizes for metadata retrieval.
const (
	DefaultMetadataContextTopK = 12
	DefaultStructuredMatchTopK = 16
)

// MetadataSearchService retrieves schema metadata from the vector index.
// Retrieval failures are logged and treated as zero hits; no method returns an error.
type MetadataSearchService interface {
	// Query returns the nearest metadata entries to text.
	Query(ctx context.Context, text string, topK int) []models.MetadataHit

	// GroupedContext renders hits as "Table: name (display)" blocks with one
	// indented "- column: type [D][M]" line per column. When nothing groups,
	// it falls back to one "[type] text" line per hit.
	GroupedContext(ctx context.Context, text string, topK int) string

	// StructuredMatches returns tables and columns that share at least one
	// query token with their name or indexed text. Tables left without
	// columns are dropped. Order follows retrieval rank.
	StructuredMatches(ctx context.Context, text string, topK int) []models.TableMatch
}

type metadataSearchService struct {
	index  *vectorindex.Handle
	logger *zap.Logger
}

// NewMetadataSearchService creates a retriever over the metadata collection.
func NewMetadataSearchService(index *vectorindex.Handle, logger *zap.Logger) MetadataSearchService {
	return &metadataSearchService{
		index:  index,
		logger: logger.Named("metadata-search"),
	}
}

var _ MetadataSearchService = (*metadataSearchService)(nil)

func (s *metadataSearchService) Query(ctx context.Context, text string, topK int) []models.MetadataHit {
	store, err := s.index.Get(ctx)
	if err != nil {
		s.logger.Debug("Metadata index unavailable", zap.String("error", logging.SanitizeError(err)))
		return nil
	}

	raw, err := store.Query(ctx, text, topK, nil)
	if err != nil {
		s.logger.Warn("Metadata query failed",
			zap.String("query", logging.TruncateForLog(text)),
			zap.String("error", logging.SanitizeError(err)))
		return nil
	}

	hits := make([]models.MetadataHit, 0, len(raw))
	for _, h := range raw {
		hits = append(hits, decodeMetadataHit(h))
	}
	return hits
}

func (s *metadataSearchService) GroupedContext(ctx context.Context, text string, topK int) string {
	hits := s.Query(ctx, text, topK)

	groups := newTableGroups()
	for _, h := range hits {
		if h.Type == models.EntityTypeTable {
			g := groups.get(tableKey(h))
			g.DisplayName = h.TableDisplayName
		}
	}
	for _, h := range hits {
		if h.Type == models.EntityTypeColumn && h.TableName != "" {
			g := groups.get(h.TableName)
			g.Columns = append(g.Columns, columnMatch(h))
		}
	}

	var lines []string
	for _, g := range groups.ordered() {
		head := "Table: " + g.TableName
		if g.DisplayName != "" {
			head += " (" + g.DisplayName + ")"
		}
		lines = append(lines, head)
		for _, c := range g.Columns {
			lines = append(lines, "  - "+c.Name+": "+c.Type+columnFlags(c))
		}
	}

	out := strings.Join(lines, "\n")
	if out == "" {
		flat := make([]string, 0, len(hits))
		for _, h := range hits {
			flat = append(flat, "["+string(h.Type)+"] "+h.Text)
		}
		out = strings.Join(flat, "\n")
	}

	s.logger.Debug("Built grouped metadata context",
		zap.Int("hits", len(hits)),
		zap.Int("tables", len(groups.order)),
		zap.Int("length", len(out)))
	return out
}

func (s *metadataSearchService) StructuredMatches(ctx context.Context, text string, topK int) []models.TableMatch {
	hits := s.Query(ctx, text, topK)
	tokens := Tokenize(text)

	groups := newTableGroups()
	for _, h := range hits {
		if h.Type != models.EntityTypeTable {
			continue
		}
		name := tableKey(h)
		if !sharesToken(tokens, name, h.Text) {
			continue
		}
		groups.get(name).DisplayName = h.TableDisplayName
	}
	for _, h := range hits {
		if h.Type != models.EntityTypeColumn || h.TableName == "" || !groups.has(h.TableName) {
			continue
		}
		if !sharesToken(tokens, h.ColumnName, h.Text) {
			continue
		}
		g := groups.get(h.TableName)
		g.Columns = append(g.Columns, columnMatch(h))
	}

	var out []models.TableMatch
	for _, g := range groups.ordered() {
		if len(g.Columns) > 0 {
			out = append(out, *g)
		}
	}

	s.logger.Debug("Built structured matches",
		zap.Strings("tokens", firstN(tokens, 8)),
		zap.Int("tables", len(out)))
	return out
}

// tableGroups keeps tables in first-seen order.
type tableGroups struct {
	order  []string
	byName map[string]*models.TableMatch
}

func newTableGroups() *tableGroups {
	return &tableGroups{byName: make(map[string]*models.TableMatch)}
}

func (g *tableGroups) get(name string) *models.TableMatch {
	if t, ok := g.byName[name]; ok {
		return t
	}
	t := &models.TableMatch{TableName: name}
	g.byName[name] = t
	g.order = append(g.order, name)
	return t
}

func (g *tableGroups) has(name string) bool {
	_, ok := g.byName[name]
	return ok
}

func (g *tableGroups) ordered() []*models.TableMatch {
	out := make([]*models.TableMatch, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.byName[name])
	}
	return out
}

// tableKey falls back to the start of the indexed text for table hits without a name tag.
func tableKey(h models.MetadataHit) string {
	if h.TableName != "" {
		return h.TableName
	}
	r := []rune(h.Text)
	if len(r) > 64 {
		r = r[:64]
	}
	return string(r)
}

func columnMatch(h models.MetadataHit) models.ColumnMatch {
	return models.ColumnMatch{
		Name:        h.ColumnName,
		Type:        h.DataType,
		IsDimension: h.IsDimension,
		IsMetric:    h.IsMetric,
	}
}

func columnFlags(c models.ColumnMatch) string {
	flags := ""
	if c.IsDimension {
		flags += " [D]"
	}
	if c.IsMetric {
		flags += " [M]"
	}
	return flags
}

func firstN(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// decodeMetadataHit reads the structured tags written by the metadata sync.
func decodeMetadataHit(h vectorindex.Hit) models.MetadataHit {
	m := h.Metadata
	hit := models.MetadataHit{
		ID:               h.ID,
		Text:             h.Document,
		Type:             models.EntityType(tagString(m, "type")),
		Source:           tagString(m, "source"),
		DataSourceID:     tagInt64(m, "data_source_id"),
		TableID:          tagInt64(m, "table_id"),
		TableName:        tagString(m, "table_name"),
		TableDisplayName: tagString(m, "table_display_name"),
		ColumnID:         tagInt64(m, "column_id"),
		ColumnName:       tagString(m, "column_name"),
		DataType:         tagString(m, "data_type"),
		IsDimension:      tagBool(m, "is_dimension"),
		IsMetric:         tagBool(m, "is_metric"),
		Distance:         h.Distance,
	}
	if hit.Type == "" {
		hit.Type = "unknown"
	}
	if hit.Source == "" {
		hit.Source = "metadata"
	}
	if hit.Type == models.EntityTypeSource {
		hit.DataSourceID = tagInt64(m, "source_id")
	}
	if hit.Type == models.EntityTypeTable && hit.TableDisplayName == "" {
		hit.TableDisplayName = tagString(m, "display_name")
	}
	return hit
}

func tagString(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func tagInt64(m map[string]any, key string) int64 {
	switch v := m[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	}
	return 0
}

func tagBool(m map[string]any, key string) bool {
	switch v := m[key].(type) {
	case bool:
		return v
	case string:
		s := strings.ToLower(v)
		return s == "true" || s == "1"
	case float64:
		return v == 1
	case int:
		return v == 1
	case int64:
		return v == 1
	}
	return false
}
