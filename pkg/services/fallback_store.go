package services

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sqlgen/pkg/models"
)

// FallbackDocumentStore keeps documents in a local JSON-lines file for when
// the vector index is unavailable. Every upsert rewrites the whole file, so
// it serves a single process at low write volume.
type FallbackDocumentStore struct {
	path   string
	logger *zap.Logger
	mu     sync.Mutex
}

// NewFallbackDocumentStore creates a store backed by the file at path.
// The file and its directory are created on first write.
func NewFallbackDocumentStore(path string, logger *zap.Logger) *FallbackDocumentStore {
	return &FallbackDocumentStore{
		path:   path,
		logger: logger.Named("fallback-store"),
	}
}

// Load returns all stored documents in file order. A missing file is an empty store.
// Malformed lines are skipped.
func (s *FallbackDocumentStore) Load() ([]models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Upsert replaces documents with matching ids and appends the rest.
// Documents without an id get "auto_{n}" where n is the store size plus one;
// an empty source becomes "unknown".
func (s *FallbackDocumentStore) Upsert(docs []models.Document) ([]models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, err := s.load()
	if err != nil {
		return nil, err
	}

	index := make(map[string]int, len(stored))
	for i, d := range stored {
		if d.ID != "" {
			index[d.ID] = i
		}
	}

	written := make([]models.Document, 0, len(docs))
	for _, d := range docs {
		if d.ID == "" {
			d.ID = "auto_" + strconv.Itoa(len(stored)+1)
		}
		if d.Source == "" {
			d.Source = models.DocumentSourceUnknown
		}
		if i, ok := index[d.ID]; ok {
			stored[i] = d
		} else {
			index[d.ID] = len(stored)
			stored = append(stored, d)
		}
		written = append(written, d)
	}

	if err := s.save(stored); err != nil {
		return nil, err
	}
	return written, nil
}

func (s *FallbackDocumentStore) load() ([]models.Document, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open fallback store: %w", err)
	}
	defer f.Close()

	var docs []models.Document
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var d models.Document
		if err := json.Unmarshal([]byte(line), &d); err != nil {
			s.logger.Debug("Skipping malformed fallback store line", zap.Error(err))
			continue
		}
		docs = append(docs, d)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read fallback store: %w", err)
	}
	return docs, nil
}

func (s *FallbackDocumentStore) save(docs []models.Document) error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create fallback store directory: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to write fallback store: %w", err)
	}

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, d := range docs {
		if err := enc.Encode(d); err != nil {
			_ = f.Close()
			return fmt.Errorf("failed to encode document %s: %w", d.ID, err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write fallback store: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write fallback store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace fallback store: %w", err)
	}
	return nil
}
