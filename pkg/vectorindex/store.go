// Package vectorindex stores embedded text entries and answers nearest-neighbor
// queries with exact-match metadata filtering.
package vectorindex

import (
	"context"
)

// Entry is a document to upsert. IDs are unique within a collection.
type Entry struct {
	ID       string
	Document string
	Metadata map[string]any
}

// Hit is a query result. Smaller Distance means more similar.
type Hit struct {
	ID       string
	Document string
	Metadata map[string]any
	Distance float64
}

// Filter restricts queries to entries whose metadata contains every key/value pair.
// A nil or empty filter matches all entries.
type Filter map[string]any

// Store is one logical collection in the vector index.
// Writes are upserts or deletes by id, each atomic per entry.
type Store interface {
	Upsert(ctx context.Context, entries []Entry) error
	Query(ctx context.Context, text string, topK int, filter Filter) ([]Hit, error)
	Delete(ctx context.Context, ids []string) error
	IDs(ctx context.Context, filter Filter) ([]string, error)
	Count(ctx context.Context, filter Filter) (int, error)
}

// matches reports whether metadata satisfies the filter.
func (f Filter) matches(metadata map[string]any) bool {
	for k, want := range f {
		got, ok := metadata[k]
		if !ok || !sameValue(got, want) {
			return false
		}
	}
	return true
}

// sameValue compares tag values loosely across numeric types so that
// a filter built with int64 matches a value decoded from JSON as float64.
func sameValue(a, b any) bool {
	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	if aNum && bNum {
		return af == bf
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
