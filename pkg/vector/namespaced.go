// NamespacedIndex wraps any vector Index with automatic key prefixing,
// mirroring graph.NamespacedStore: multiple knowledge bases share one
// physical index while their content-hash keys never collide.
package vector

import (
	"context"
	"strings"
)

const namespaceSeparator = ":"

// NamespacedIndex is a namespaced view over a shared vector index.
type NamespacedIndex struct {
	inner     Index
	namespace string
}

// NewNamespacedIndex creates a namespaced view of a shared index.
func NewNamespacedIndex(inner Index, namespace string) *NamespacedIndex {
	return &NamespacedIndex{inner: inner, namespace: namespace}
}

// Namespace returns the knowledge-base namespace of this view.
func (n *NamespacedIndex) Namespace() string {
	return n.namespace
}

func (n *NamespacedIndex) prefix(key string) string {
	return n.namespace + namespaceSeparator + key
}

func (n *NamespacedIndex) unprefix(key string) string {
	p := n.namespace + namespaceSeparator
	if strings.HasPrefix(key, p) {
		return key[len(p):]
	}
	return key
}

// Upsert writes records into this namespace.
func (n *NamespacedIndex) Upsert(ctx context.Context, records map[string]Record) error {
	prefixed := make(map[string]Record, len(records))
	for key, rec := range records {
		if key == "" {
			return ErrInvalidKey
		}
		prefixed[n.prefix(key)] = rec
	}
	return n.inner.Upsert(ctx, prefixed)
}

// Delete removes keys from this namespace.
func (n *NamespacedIndex) Delete(ctx context.Context, keys []string) error {
	prefixed := make([]string, len(keys))
	for i, key := range keys {
		prefixed[i] = n.prefix(key)
	}
	return n.inner.Delete(ctx, prefixed)
}

// Get returns the record under key within this namespace.
func (n *NamespacedIndex) Get(ctx context.Context, key string) (Record, error) {
	if key == "" {
		return Record{}, ErrInvalidKey
	}
	return n.inner.Get(ctx, n.prefix(key))
}

// Query runs a similarity query restricted to this namespace.
func (n *NamespacedIndex) Query(ctx context.Context, query []float32, k int) ([]Match, error) {
	// The inner index scores everything; filter to this namespace before
	// truncating so k results survive the filter.
	matches, err := n.inner.Query(ctx, query, 0)
	if err != nil {
		return nil, err
	}
	p := n.namespace + namespaceSeparator
	var own []Match
	for _, m := range matches {
		if !strings.HasPrefix(m.Key, p) {
			continue
		}
		m.Key = n.unprefix(m.Key)
		own = append(own, m)
	}
	if own == nil {
		return nil, ErrNoVectors
	}
	if k > 0 && len(own) > k {
		own = own[:k]
	}
	return own, nil
}

// Len returns the record count of the underlying index.
//
// Note: counts are index-wide, not per-namespace, matching
// graph.NamespacedStore semantics.
func (n *NamespacedIndex) Len(ctx context.Context) (int, error) {
	return n.inner.Len(ctx)
}

// Finalize checkpoints the underlying index.
func (n *NamespacedIndex) Finalize(ctx context.Context) error {
	return n.inner.Finalize(ctx)
}

// Close closes the underlying index.
func (n *NamespacedIndex) Close() error {
	return n.inner.Close()
}

// Ensure NamespacedIndex implements Index interface
var _ Index = (*NamespacedIndex)(nil)
