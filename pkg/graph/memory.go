package graph

import (
	"context"
	"sync"
)

// edgeKey identifies a directed edge by its ordered endpoints.
type edgeKey struct {
	src string
	tgt string
}

// MemoryStore is a thread-safe in-memory implementation of Store.
// It's useful for:
// - Unit testing (no disk I/O)
// - Small knowledge bases that fit in RAM
// - Acting as the inner store behind a NamespacedStore in tests
type MemoryStore struct {
	mu    sync.RWMutex
	nodes map[string]Attrs
	edges map[edgeKey]Attrs

	// Adjacency indexes for cascade deletes
	outgoing map[string]map[edgeKey]struct{}
	incoming map[string]map[edgeKey]struct{}

	closed bool
}

// NewMemoryStore creates a new in-memory graph store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes:    make(map[string]Attrs),
		edges:    make(map[edgeKey]Attrs),
		outgoing: make(map[string]map[edgeKey]struct{}),
		incoming: make(map[string]map[edgeKey]struct{}),
	}
}

// HasNode reports whether a node exists.
func (m *MemoryStore) HasNode(_ context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrInvalidKey
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return false, ErrClosed
	}

	_, ok := m.nodes[key]
	return ok, nil
}

// GetNode returns a copy of the node's attributes.
func (m *MemoryStore) GetNode(_ context.Context, key string) (Attrs, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	attrs, ok := m.nodes[key]
	if !ok {
		return nil, ErrNotFound
	}

	return copyAttrs(attrs), nil
}

// UpsertNode creates or replaces a node. The attribute map is copied to
// prevent external mutation of stored state.
func (m *MemoryStore) UpsertNode(_ context.Context, key string, attrs Attrs) error {
	if key == "" {
		return ErrInvalidKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	m.nodes[key] = copyAttrs(attrs)
	return nil
}

// DeleteNodeCascade removes a node and all incident edges in both directions.
func (m *MemoryStore) DeleteNodeCascade(_ context.Context, key string) (Attrs, []RemovedEdge, error) {
	if key == "" {
		return nil, nil, ErrInvalidKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, nil, ErrClosed
	}

	attrs, ok := m.nodes[key]
	if !ok {
		return nil, nil, ErrNotFound
	}

	var removed []RemovedEdge
	for ek := range m.outgoing[key] {
		removed = append(removed, RemovedEdge{Src: ek.src, Tgt: ek.tgt, Attrs: copyAttrs(m.edges[ek])})
		m.removeEdgeLocked(ek)
	}
	for ek := range m.incoming[key] {
		// Self-loops were already removed via the outgoing index.
		if _, still := m.edges[ek]; !still {
			continue
		}
		removed = append(removed, RemovedEdge{Src: ek.src, Tgt: ek.tgt, Attrs: copyAttrs(m.edges[ek])})
		m.removeEdgeLocked(ek)
	}

	delete(m.nodes, key)
	delete(m.outgoing, key)
	delete(m.incoming, key)

	return copyAttrs(attrs), removed, nil
}

// removeEdgeLocked deletes an edge and its adjacency entries. Caller holds mu.
func (m *MemoryStore) removeEdgeLocked(ek edgeKey) {
	delete(m.edges, ek)
	if out := m.outgoing[ek.src]; out != nil {
		delete(out, ek)
	}
	if in := m.incoming[ek.tgt]; in != nil {
		delete(in, ek)
	}
}

// HasEdge reports whether a directed edge exists.
func (m *MemoryStore) HasEdge(_ context.Context, src, tgt string) (bool, error) {
	if src == "" || tgt == "" {
		return false, ErrInvalidKey
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return false, ErrClosed
	}

	_, ok := m.edges[edgeKey{src, tgt}]
	return ok, nil
}

// GetEdge returns a copy of the edge's attributes.
func (m *MemoryStore) GetEdge(_ context.Context, src, tgt string) (Attrs, error) {
	if src == "" || tgt == "" {
		return nil, ErrInvalidKey
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	attrs, ok := m.edges[edgeKey{src, tgt}]
	if !ok {
		return nil, ErrNotFound
	}

	return copyAttrs(attrs), nil
}

// UpsertEdge creates or replaces a directed edge. Both endpoints must exist.
func (m *MemoryStore) UpsertEdge(_ context.Context, src, tgt string, attrs Attrs) error {
	if src == "" || tgt == "" {
		return ErrInvalidKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	if _, ok := m.nodes[src]; !ok {
		return ErrNotFound
	}
	if _, ok := m.nodes[tgt]; !ok {
		return ErrNotFound
	}

	ek := edgeKey{src, tgt}
	m.edges[ek] = copyAttrs(attrs)

	if m.outgoing[src] == nil {
		m.outgoing[src] = make(map[edgeKey]struct{})
	}
	m.outgoing[src][ek] = struct{}{}

	if m.incoming[tgt] == nil {
		m.incoming[tgt] = make(map[edgeKey]struct{})
	}
	m.incoming[tgt][ek] = struct{}{}

	return nil
}

// NodeCount returns the number of nodes.
func (m *MemoryStore) NodeCount(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrClosed
	}

	return int64(len(m.nodes)), nil
}

// EdgeCount returns the number of edges.
func (m *MemoryStore) EdgeCount(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrClosed
	}

	return int64(len(m.edges)), nil
}

// Finalize is a no-op checkpoint for the in-memory store.
func (m *MemoryStore) Finalize(_ context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return ErrClosed
	}

	return nil
}

// Close marks the store closed. Subsequent operations return ErrClosed.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

// Verify MemoryStore implements Store interface
var _ Store = (*MemoryStore)(nil)
