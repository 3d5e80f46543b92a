// Package graph provides property-graph store implementations for Yggdrasil.
//
// The graph is the source of truth for the knowledge base: nodes are entities
// keyed by their normalized name, edges are directed relations keyed by the
// ordered (source, target) pair. Attributes are open string-keyed maps so
// callers can carry arbitrary fields alongside the well-known ones
// (description, entity_type, keywords, weight, source_id).
//
// Implementations:
//   - MemoryStore: RWMutex-guarded maps, deep-copied attributes. Testing and
//     small datasets.
//   - BadgerStore: persistent storage on BadgerDB with byte-prefixed keys and
//     transactional cascade deletes.
//   - NamespacedStore: wraps any Store with tenant key prefixing.
//
// Every implementation owns its internal concurrency control; callers never
// need an external lock.
package graph

import (
	"context"
	"errors"
)

// Errors returned by graph store operations.
var (
	// ErrNotFound is returned when a node or edge does not exist.
	ErrNotFound = errors.New("graph: not found")
	// ErrInvalidKey is returned for empty node keys.
	ErrInvalidKey = errors.New("graph: invalid key")
	// ErrClosed is returned on any operation after Close.
	ErrClosed = errors.New("graph: store closed")
)

// Attrs is an open attribute map attached to a node or edge.
type Attrs = map[string]any

// RemovedEdge describes an edge removed by a cascade delete, with enough
// information for the caller to clean up derived records (vector index
// entries keyed by edge content).
type RemovedEdge struct {
	Src   string
	Tgt   string
	Attrs Attrs
}

// Store is the graph contract the synchronization engine consumes.
//
// Get operations return ErrNotFound for missing records; Has operations
// report plain booleans. Upserts create or overwrite whole attribute maps;
// merge semantics live in the engine, not the store.
//
// Finalize is the durability checkpoint: once it returns, every write issued
// before it is flushed to whatever medium the implementation persists to. It
// is idempotent and safe to call after failed operations.
type Store interface {
	// HasNode reports whether a node exists under the given key.
	HasNode(ctx context.Context, key string) (bool, error)

	// GetNode returns the node's attributes, or ErrNotFound.
	GetNode(ctx context.Context, key string) (Attrs, error)

	// UpsertNode creates or replaces the node's attribute map.
	UpsertNode(ctx context.Context, key string, attrs Attrs) error

	// DeleteNodeCascade removes the node and every incident edge (either
	// direction). It returns the removed node's attributes and the removed
	// edges so derived records can be cleaned up. Returns ErrNotFound when
	// the node does not exist.
	DeleteNodeCascade(ctx context.Context, key string) (Attrs, []RemovedEdge, error)

	// HasEdge reports whether a directed edge exists from src to tgt.
	HasEdge(ctx context.Context, src, tgt string) (bool, error)

	// GetEdge returns the edge's attributes, or ErrNotFound.
	GetEdge(ctx context.Context, src, tgt string) (Attrs, error)

	// UpsertEdge creates or replaces the directed edge's attribute map.
	// Both endpoints must already exist as nodes.
	UpsertEdge(ctx context.Context, src, tgt string, attrs Attrs) error

	// NodeCount returns the number of nodes in the store.
	NodeCount(ctx context.Context) (int64, error)

	// EdgeCount returns the number of edges in the store.
	EdgeCount(ctx context.Context) (int64, error)

	// Finalize flushes pending writes to durable storage. Idempotent.
	Finalize(ctx context.Context) error

	// Close releases resources. Subsequent operations return ErrClosed.
	Close() error
}

// copyAttrs returns a shallow copy of an attribute map. Values are assumed to
// be scalars or treated as immutable by callers; the map itself is never
// shared between the store and its callers.
func copyAttrs(attrs Attrs) Attrs {
	if attrs == nil {
		return Attrs{}
	}
	out := make(Attrs, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
