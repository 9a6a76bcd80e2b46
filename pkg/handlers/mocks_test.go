package handlers

import (
	"context"
	"time"

	"github.com/ekaya-inc/ekaya-sqlgen/pkg/models"
	"github.com/ekaya-inc/ekaya-sqlgen/pkg/services"
)

type mockGenerator struct {
	lastRequest *models.SQLGenerationRequest
	result      *models.SQLGenerationResult
}

var _ services.SQLGenerationService = (*mockGenerator)(nil)

func (m *mockGenerator) GenerateSQL(_ context.Context, req *models.SQLGenerationRequest) *models.SQLGenerationResult {
	m.lastRequest = req
	if m.result != nil {
		return m.result
	}
	return &models.SQLGenerationResult{SQL: models.PlaceholderSQL, Strategy: models.StrategyPlaceholder}
}

type mockRAG struct {
	chunks      []models.RetrievalChunk
	upserted    []models.Document
	upsertErr   error
	lastTopK    int
	searchCalls int
}

var _ services.RAGService = (*mockRAG)(nil)

func (m *mockRAG) UpsertDocuments(_ context.Context, docs []models.Document) ([]models.Document, error) {
	if m.upsertErr != nil {
		return nil, m.upsertErr
	}
	out := make([]models.Document, len(docs))
	for i, d := range docs {
		if d.ID == "" {
			d.ID = "doc_generated"
		}
		out[i] = d
	}
	m.upserted = append(m.upserted, out...)
	return out, nil
}

func (m *mockRAG) Search(_ context.Context, _ string, topK int) []models.RetrievalChunk {
	m.searchCalls++
	m.lastTopK = topK
	return m.chunks
}

func (m *mockRAG) Context(ctx context.Context, text string, topK int) string {
	return m.ContextFromChunks(text, m.Search(ctx, text, topK))
}

func (m *mockRAG) ContextFromChunks(_ string, chunks []models.RetrievalChunk) string {
	out := ""
	for i, c := range chunks {
		if i > 0 {
			out += "\n"
		}
		out += "[source:" + c.Source + "] " + c.Text
	}
	return out
}

type mockSync struct {
	summary *models.SyncSummary
	err     error
	last    *models.SyncSummary
	lastErr error
	counts  map[string]int
}

var _ services.MetadataSyncService = (*mockSync)(nil)

func (m *mockSync) SyncAll(context.Context) (*models.SyncSummary, error) {
	return m.summary, m.err
}

func (m *mockSync) LastSyncSummary(context.Context) (*models.SyncSummary, error) {
	return m.last, m.lastErr
}

func (m *mockSync) IndexCountsByType(context.Context) map[string]int {
	return m.counts
}

func (m *mockSync) RunScheduler(ctx context.Context, _ time.Duration) <-chan struct{} {
	done := make(chan struct{})
	close(done)
	return done
}
