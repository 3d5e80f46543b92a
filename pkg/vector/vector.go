// Package vector provides similarity-search index implementations for
// Yggdrasil.
//
// A vector index holds denormalized text projections of graph records, keyed
// by content hash (see pkg/ident). The graph is always the source of truth;
// index records are derived, best-effort, and rebuildable. The contract the
// synchronization engine relies on is deliberately small: upsert by key,
// delete by key, finalize.
//
// Records may carry a pre-computed embedding. Query runs brute-force cosine
// similarity over the resident set, appropriate for knowledge bases in the
// tens of thousands of records; ANN indexing is a store-implementation
// concern outside this contract.
package vector

import (
	"context"
	"errors"
)

// Errors returned by vector index operations.
var (
	// ErrNotFound is returned when a key has no record.
	ErrNotFound = errors.New("vector: not found")
	// ErrInvalidKey is returned for empty record keys.
	ErrInvalidKey = errors.New("vector: invalid key")
	// ErrClosed is returned on any operation after Close.
	ErrClosed = errors.New("vector: index closed")
	// ErrNoVectors is returned by Query when no record carries an embedding.
	ErrNoVectors = errors.New("vector: no embedded records to query")
)

// Record is the denormalized projection of a graph entity or relation.
type Record struct {
	// Content is the canonical text the key was hashed from.
	Content string `json:"content"`
	// Metadata carries back-references into the graph: "entity_name" for
	// entities, "src_id"/"tgt_id" for relations.
	Metadata map[string]string `json:"metadata,omitempty"`
	// Vector is the embedding of Content. May be nil when no embedder is
	// configured; such records are stored but unreachable via Query.
	Vector []float32 `json:"vector,omitempty"`
}

// Match is a single similarity query result.
type Match struct {
	Key    string
	Record Record
	Score  float32
}

// Index is the vector store contract the synchronization engine consumes.
//
// Upsert overwrites whole records by key; because keys are content hashes,
// re-upserting unchanged content is a no-op overwrite of the same key.
// Finalize is the durability checkpoint, idempotent and safe after failures.
type Index interface {
	// Upsert creates or replaces records in one batched call.
	Upsert(ctx context.Context, records map[string]Record) error

	// Delete removes the given keys. Missing keys are ignored.
	Delete(ctx context.Context, keys []string) error

	// Get returns the record stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (Record, error)

	// Query returns the k nearest records to the query vector by cosine
	// similarity, highest score first.
	Query(ctx context.Context, query []float32, k int) ([]Match, error)

	// Len returns the number of resident records.
	Len(ctx context.Context) (int, error)

	// Finalize flushes pending writes to durable storage. Idempotent.
	Finalize(ctx context.Context) error

	// Close releases resources. Subsequent operations return ErrClosed.
	Close() error
}

func copyRecord(r Record) Record {
	out := Record{Content: r.Content}
	if r.Metadata != nil {
		out.Metadata = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			out.Metadata[k] = v
		}
	}
	if r.Vector != nil {
		out.Vector = make([]float32, len(r.Vector))
		copy(out.Vector, r.Vector)
	}
	return out
}
