package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlgen/pkg/logging"
	"github.com/ekaya-inc/ekaya-sqlgen/pkg/models"
	"github.com/ekaya-inc/ekaya-sqlgen/pkg/vectorindex"
)

// DefaultRAGTopK is the number of document chunks used for prompt context.
const DefaultRAGTopK = 4

// DocumentUpserter accepts documents for the retrieval store.
type DocumentUpserter interface {
	UpsertDocuments(ctx context.Context, docs []models.Document) ([]models.Document, error)
}

// RAGService stores free-text documents and retrieves them for prompts.
// The vector index is the primary store; a local file takes over when the
// index is unavailable.
type RAGService interface {
	DocumentUpserter

	// Search returns up to topK chunks ranked for text. It never fails;
	// an unusable store yields no chunks.
	Search(ctx context.Context, text string, topK int) []models.RetrievalChunk

	// Context returns relevance-gated chunks formatted one per line as
	// "[source:{label}] {text}". An empty string means no grounding is available.
	Context(ctx context.Context, text string, topK int) string

	// ContextFromChunks applies the relevance gate and formatting to chunks
	// already retrieved for text.
	ContextFromChunks(text string, chunks []models.RetrievalChunk) string
}

type ragService struct {
	index    *vectorindex.Handle
	fallback *FallbackDocumentStore
	synonyms []SynonymGroup
	logger   *zap.Logger
}

// NewRAGService creates a document retriever.
func NewRAGService(index *vectorindex.Handle, fallback *FallbackDocumentStore, keywords *KeywordTables, logger *zap.Logger) RAGService {
	if keywords == nil {
		keywords = DefaultKeywordTables()
	}
	return &ragService{
		index:    index,
		fallback: fallback,
		synonyms: keywords.Synonyms,
		logger:   logger.Named("rag"),
	}
}

var _ RAGService = (*ragService)(nil)

func (s *ragService) UpsertDocuments(ctx context.Context, docs []models.Document) ([]models.Document, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	store, err := s.index.Get(ctx)
	if err == nil {
		written := make([]models.Document, len(docs))
		entries := make([]vectorindex.Entry, len(docs))
		for i, d := range docs {
			if d.ID == "" {
				d.ID = "doc_" + uuid.NewString()
			}
			if d.Source == "" {
				d.Source = models.DocumentSourceUnknown
			}
			written[i] = d
			entries[i] = vectorindex.Entry{
				ID:       d.ID,
				Document: d.Text,
				Metadata: map[string]any{"source": d.Source},
			}
		}
		if err = store.Upsert(ctx, entries); err == nil {
			s.logger.Info("Upserted documents",
				zap.Int("count", len(written)),
				zap.Strings("ids_sample", documentIDs(written, 3)))
			return written, nil
		}
		s.logger.Warn("Document index upsert failed; writing to fallback store",
			zap.String("error", logging.SanitizeError(err)))
	}

	written, ferr := s.fallback.Upsert(docs)
	if ferr != nil {
		return nil, fmt.Errorf("failed to upsert documents: %w", ferr)
	}
	s.logger.Info("Upserted documents to fallback store",
		zap.Int("count", len(written)),
		zap.Strings("ids_sample", documentIDs(written, 3)))
	return written, nil
}

func (s *ragService) Search(ctx context.Context, text string, topK int) []models.RetrievalChunk {
	if topK <= 0 {
		topK = DefaultRAGTopK
	}
	query := RewriteQuery(text, s.synonyms)
	tokens := Tokenize(query)

	if store, err := s.index.Get(ctx); err == nil {
		chunks, err := s.hybridSearch(ctx, store, query, tokens, topK)
		if err != nil {
			s.logger.Warn("Document index query failed; using fallback store",
				zap.String("error", logging.SanitizeError(err)))
		} else if len(chunks) > 0 {
			return chunks
		} else {
			s.logger.Debug("Document index returned no hits; trying fallback store")
		}
	}

	return s.fallbackSearch(query, tokens, topK)
}

// hybridSearch over-fetches from the vector index and reorders by keyword
// density: token hits divided by document length in runes.
func (s *ragService) hybridSearch(ctx context.Context, store vectorindex.Store, query string, tokens []string, topK int) ([]models.RetrievalChunk, error) {
	hits, err := store.Query(ctx, query, 2*topK, nil)
	if err != nil {
		return nil, err
	}

	chunks := make([]models.RetrievalChunk, 0, len(hits))
	for _, h := range hits {
		source := tagString(h.Metadata, "source")
		if source == "" {
			source = models.DocumentSourceUnknown
		}
		chunks = append(chunks, models.RetrievalChunk{
			ID:     h.ID,
			Text:   h.Document,
			Source: source,
			Score:  keywordDensity(tokens, h.Document),
		})
	}
	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].Score > chunks[j].Score })
	if len(chunks) > topK {
		chunks = chunks[:topK]
	}
	return chunks, nil
}

// fallbackSearch scores each stored document with +10 per query token found
// in it plus the number of distinct characters it shares with the query.
// Ties keep store order.
func (s *ragService) fallbackSearch(query string, tokens []string, topK int) []models.RetrievalChunk {
	docs, err := s.fallback.Load()
	if err != nil {
		s.logger.Warn("Fallback store unreadable", zap.String("error", logging.SanitizeError(err)))
		return nil
	}
	if len(docs) == 0 {
		return nil
	}

	queryChars := charSet(query)
	chunks := make([]models.RetrievalChunk, 0, len(docs))
	for _, d := range docs {
		lower := strings.ToLower(d.Text)
		score := 0
		for _, tok := range tokens {
			if strings.Contains(lower, tok) {
				score += 10
			}
		}
		for r := range charSet(lower) {
			if queryChars[r] {
				score++
			}
		}
		source := d.Source
		if source == "" {
			source = models.DocumentSourceUnknown
		}
		chunks = append(chunks, models.RetrievalChunk{ID: d.ID, Text: d.Text, Source: source, Score: float64(score)})
	}

	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].Score > chunks[j].Score })
	if topK < 1 {
		topK = 1
	}
	if len(chunks) > topK {
		chunks = chunks[:topK]
	}

	s.logger.Debug("Fallback search",
		zap.Int("candidates", len(docs)),
		zap.Int("returned", len(chunks)))
	return chunks
}

func (s *ragService) Context(ctx context.Context, text string, topK int) string {
	return s.ContextFromChunks(text, s.Search(ctx, text, topK))
}

func (s *ragService) ContextFromChunks(text string, chunks []models.RetrievalChunk) string {
	tokens := Tokenize(RewriteQuery(text, s.synonyms))

	lines := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if !sharesToken(tokens, c.Text) {
			continue
		}
		lines = append(lines, "[source:"+c.Source+"] "+c.Text)
	}

	s.logger.Debug("Built document context",
		zap.Int("chunks", len(chunks)),
		zap.Int("kept", len(lines)))
	return strings.Join(lines, "\n")
}

func keywordDensity(tokens []string, doc string) float64 {
	n := utf8.RuneCountInString(doc)
	if n == 0 {
		return 0
	}
	lower := strings.ToLower(doc)
	hits := 0
	for _, tok := range tokens {
		hits += strings.Count(lower, tok)
	}
	return float64(hits) / float64(n)
}

func charSet(s string) map[rune]bool {
	set := make(map[rune]bool, len(s))
	for _, r := range s {
		set[r] = true
	}
	return set
}

func documentIDs(docs []models.Document, n int) []string {
	ids := make([]string, 0, n)
	for i := 0; i < len(docs) && i < n; i++ {
		ids = append(ids, docs[i].ID)
	}
	return ids
}
