// NamespacedStore wraps any graph Store with automatic key prefixing for
// knowledge-base isolation. Multiple logical knowledge bases (tenants) share
// a single physical store while maintaining complete data isolation.
//
// Key design:
//   - All node keys are prefixed with the namespace: `tenant_a:"PARIS"`
//   - Operations only see data in their own namespace
//
// Thread safety: delegates to the underlying store's guarantees.
package graph

import (
	"context"
	"strings"
)

// namespaceSeparator joins the namespace and the record key.
const namespaceSeparator = ":"

// NamespacedStore is a namespaced view over a shared graph store.
//
// Example:
//
//	inner, _ := graph.NewBadgerStore("./data")
//	tenantA := graph.NewNamespacedStore(inner, "tenant_a")
//
//	// Writes node `tenant_a:"PARIS"` into the shared store
//	tenantA.UpsertNode(ctx, `"PARIS"`, attrs)
type NamespacedStore struct {
	inner     Store
	namespace string
}

// NewNamespacedStore creates a namespaced view of a shared store.
func NewNamespacedStore(inner Store, namespace string) *NamespacedStore {
	return &NamespacedStore{inner: inner, namespace: namespace}
}

// Namespace returns the knowledge-base namespace of this view.
func (n *NamespacedStore) Namespace() string {
	return n.namespace
}

// Inner returns the underlying shared store.
func (n *NamespacedStore) Inner() Store {
	return n.inner
}

func (n *NamespacedStore) prefix(key string) string {
	return n.namespace + namespaceSeparator + key
}

func (n *NamespacedStore) unprefix(key string) string {
	p := n.namespace + namespaceSeparator
	if strings.HasPrefix(key, p) {
		return key[len(p):]
	}
	return key
}

// HasNode reports whether a node exists in this namespace.
func (n *NamespacedStore) HasNode(ctx context.Context, key string) (bool, error) {
	return n.inner.HasNode(ctx, n.prefix(key))
}

// GetNode returns the node's attributes within this namespace.
func (n *NamespacedStore) GetNode(ctx context.Context, key string) (Attrs, error) {
	return n.inner.GetNode(ctx, n.prefix(key))
}

// UpsertNode writes a node into this namespace.
func (n *NamespacedStore) UpsertNode(ctx context.Context, key string, attrs Attrs) error {
	return n.inner.UpsertNode(ctx, n.prefix(key), attrs)
}

// DeleteNodeCascade removes a node and incident edges within this namespace.
// Removed edge endpoints are reported unprefixed, as the caller supplied them.
func (n *NamespacedStore) DeleteNodeCascade(ctx context.Context, key string) (Attrs, []RemovedEdge, error) {
	attrs, removed, err := n.inner.DeleteNodeCascade(ctx, n.prefix(key))
	if err != nil {
		return nil, nil, err
	}
	for i := range removed {
		removed[i].Src = n.unprefix(removed[i].Src)
		removed[i].Tgt = n.unprefix(removed[i].Tgt)
	}
	return attrs, removed, nil
}

// HasEdge reports whether an edge exists in this namespace.
func (n *NamespacedStore) HasEdge(ctx context.Context, src, tgt string) (bool, error) {
	return n.inner.HasEdge(ctx, n.prefix(src), n.prefix(tgt))
}

// GetEdge returns the edge's attributes within this namespace.
func (n *NamespacedStore) GetEdge(ctx context.Context, src, tgt string) (Attrs, error) {
	return n.inner.GetEdge(ctx, n.prefix(src), n.prefix(tgt))
}

// UpsertEdge writes an edge into this namespace.
func (n *NamespacedStore) UpsertEdge(ctx context.Context, src, tgt string, attrs Attrs) error {
	return n.inner.UpsertEdge(ctx, n.prefix(src), n.prefix(tgt), attrs)
}

// NodeCount returns the node count of the underlying store.
//
// Note: counts are store-wide, not per-namespace; per-namespace counting
// would require a key scan and no engine operation needs it.
func (n *NamespacedStore) NodeCount(ctx context.Context) (int64, error) {
	return n.inner.NodeCount(ctx)
}

// EdgeCount returns the edge count of the underlying store.
func (n *NamespacedStore) EdgeCount(ctx context.Context) (int64, error) {
	return n.inner.EdgeCount(ctx)
}

// Finalize checkpoints the underlying store.
func (n *NamespacedStore) Finalize(ctx context.Context) error {
	return n.inner.Finalize(ctx)
}

// Close closes the underlying store. All namespaced views over the same
// store become unusable.
func (n *NamespacedStore) Close() error {
	return n.inner.Close()
}

// Ensure NamespacedStore implements Store interface
var _ Store = (*NamespacedStore)(nil)
