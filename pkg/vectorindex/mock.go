package vectorindex

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MockStore is an in-memory Store ranking by cosine distance.
// Used by tests and for local runs without the Postgres vector extension.
type MockStore struct {
	embedder Embedder

	// Err, when set, is returned by every operation.
	Err error

	mu      sync.RWMutex
	order   []string
	entries map[string]mockEntry
}

type mockEntry struct {
	Entry
	vec []float32
}

// NewMockStore creates an empty in-memory store.
func NewMockStore(embedder Embedder) *MockStore {
	return &MockStore{
		embedder: embedder,
		entries:  make(map[string]mockEntry),
	}
}

var _ Store = (*MockStore)(nil)

func (m *MockStore) Upsert(ctx context.Context, entries []Entry) error {
	if m.Err != nil {
		return m.Err
	}
	if len(entries) == 0 {
		return nil
	}
	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = e.Document
	}
	vecs, err := m.embedder.Embed(ctx, texts)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range entries {
		if _, exists := m.entries[e.ID]; !exists {
			m.order = append(m.order, e.ID)
		}
		meta := make(map[string]any, len(e.Metadata))
		for k, v := range e.Metadata {
			meta[k] = v
		}
		e.Metadata = meta
		m.entries[e.ID] = mockEntry{Entry: e, vec: vecs[i]}
	}
	return nil
}

func (m *MockStore) Query(ctx context.Context, text string, topK int, filter Filter) ([]Hit, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if topK <= 0 {
		return nil, nil
	}
	vecs, err := m.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var hits []Hit
	for _, id := range m.order {
		e := m.entries[id]
		if !filter.matches(e.Metadata) {
			continue
		}
		hits = append(hits, Hit{
			ID:       e.ID,
			Document: e.Document,
			Metadata: e.Metadata,
			Distance: cosineDistance(vecs[0], e.vec),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (m *MockStore) Delete(_ context.Context, ids []string) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := m.entries[id]; ok {
			drop[id] = true
			delete(m.entries, id)
		}
	}
	if len(drop) == 0 {
		return nil
	}
	kept := m.order[:0]
	for _, id := range m.order {
		if !drop[id] {
			kept = append(kept, id)
		}
	}
	m.order = kept
	return nil
}

func (m *MockStore) IDs(_ context.Context, filter Filter) ([]string, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for _, id := range m.order {
		if filter.matches(m.entries[id].Metadata) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MockStore) Count(ctx context.Context, filter Filter) (int, error) {
	ids, err := m.IDs(ctx, filter)
	return len(ids), err
}

// Get returns a stored entry by id.
func (m *MockStore) Get(id string) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	return e.Entry, ok
}

func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return 2
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
