package vector

import (
	"context"
	"sort"
	"sync"

	"github.com/viterin/vek/vek32"
)

// MemoryIndex is a thread-safe in-memory implementation of Index.
// It's useful for:
// - Unit testing (no disk I/O)
// - Knowledge bases that are rebuilt from the graph on startup
type MemoryIndex struct {
	mu      sync.RWMutex
	records map[string]Record
	closed  bool
}

// NewMemoryIndex creates a new in-memory vector index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{records: make(map[string]Record)}
}

// Upsert creates or replaces records in one batched call.
func (m *MemoryIndex) Upsert(_ context.Context, records map[string]Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	for key, rec := range records {
		if key == "" {
			return ErrInvalidKey
		}
		m.records[key] = copyRecord(rec)
	}
	return nil
}

// Delete removes the given keys. Missing keys are ignored.
func (m *MemoryIndex) Delete(_ context.Context, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	for _, key := range keys {
		delete(m.records, key)
	}
	return nil
}

// Get returns a copy of the record under key.
func (m *MemoryIndex) Get(_ context.Context, key string) (Record, error) {
	if key == "" {
		return Record{}, ErrInvalidKey
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return Record{}, ErrClosed
	}

	rec, ok := m.records[key]
	if !ok {
		return Record{}, ErrNotFound
	}
	return copyRecord(rec), nil
}

// Query returns the k most similar embedded records, highest score first.
func (m *MemoryIndex) Query(_ context.Context, query []float32, k int) ([]Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	matches := scoreAll(m.records, query)
	if matches == nil {
		return nil, ErrNoVectors
	}
	return topK(matches, k), nil
}

// Len returns the number of resident records.
func (m *MemoryIndex) Len(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrClosed
	}
	return len(m.records), nil
}

// Finalize is a no-op checkpoint for the in-memory index.
func (m *MemoryIndex) Finalize(_ context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrClosed
	}
	return nil
}

// Close marks the index closed.
func (m *MemoryIndex) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

// scoreAll computes cosine similarity of the query against every embedded
// record. Returns nil when no record carries a compatible embedding.
func scoreAll(records map[string]Record, query []float32) []Match {
	var matches []Match
	for key, rec := range records {
		if len(rec.Vector) == 0 || len(rec.Vector) != len(query) {
			continue
		}
		matches = append(matches, Match{
			Key:    key,
			Record: copyRecord(rec),
			Score:  vek32.CosineSimilarity(query, rec.Vector),
		})
	}
	return matches
}

// topK sorts matches by descending score and truncates to k.
func topK(matches []Match, k int) []Match {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Key < matches[j].Key // stable order for ties
	})
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

// Verify MemoryIndex implements Index interface
var _ Index = (*MemoryIndex)(nil)
