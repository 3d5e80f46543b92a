// Package yggdrasil implements the knowledge-base synchronization engine.
//
// A knowledge base lives in two representations at once: a labeled property
// graph (the source of truth) and per-record-class vector indexes holding
// denormalized text projections for similarity search. The two disagree on
// identity (the graph keys nodes by normalized name and edges by ordered
// name pairs, while the indexes key records by content hash) and on
// primitives: the graph supports lookup and mutation, the indexes only
// upsert-by-key and query. The engine's job is to make every insert, merge
// and cascading delete land coherently in both.
//
// Consistency model: best-effort dual write with idempotent retries, not
// two-phase commit. Writes within one operation are ordered
// (read-merge-write against the graph, then the derived vector write); a
// failure mid-operation never rolls back, but finalize still runs on every
// store that was written so durable state reflects a consistent prefix of
// the operation. Concurrent merge-updates to the same record race under
// last-writer-wins at field-merge granularity; this is an accepted
// trade-off, not a bug.
//
// The engine is a stateless orchestrator: it owns no records, holds no
// global lock, and takes its stores by explicit injection. Namespace
// isolation is layered underneath via graph.NamespacedStore and
// vector.NamespacedIndex.
package yggdrasil

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/orneryd/yggdrasil/pkg/embed"
	"github.com/orneryd/yggdrasil/pkg/graph"
	"github.com/orneryd/yggdrasil/pkg/vector"
)

// finalizer is the checkpoint operation every store exposes. Both
// graph.Store and vector.Index satisfy it.
type finalizer interface {
	Finalize(ctx context.Context) error
}

// Engine orchestrates multi-store knowledge-base mutations.
type Engine struct {
	graph     graph.Store
	entities  vector.Index
	relations vector.Index
	embedder  embed.Embedder
	log       *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithEmbedder attaches an embedder; vector records are then upserted with
// embeddings and similarity search becomes available. Without one, records
// are stored text-only.
func WithEmbedder(e embed.Embedder) Option {
	return func(eng *Engine) { eng.embedder = e }
}

// WithLogger sets the engine logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(eng *Engine) { eng.log = l }
}

// New creates a synchronization engine over a graph store and one vector
// index per record class. The stores are shared, long-lived resources; each
// is responsible for its own internal locking.
func New(g graph.Store, entities, relations vector.Index, opts ...Option) *Engine {
	eng := &Engine{
		graph:     g,
		entities:  entities,
		relations: relations,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(eng)
	}
	return eng
}

// finalizeAll checkpoints the given stores concurrently and waits for all of
// them. The group carries no derived context: one store's failure must not
// cancel the others' checkpoints, every touched store gets its flush
// attempted. Finalize is idempotent per the store contracts, so retrying a
// failed operation re-finalizes safely.
func (e *Engine) finalizeAll(ctx context.Context, stores ...finalizer) error {
	var g errgroup.Group
	for _, s := range stores {
		g.Go(func() error { return s.Finalize(ctx) })
	}
	return g.Wait()
}

// finish ends an operation: every touched store is finalized whether the
// operation succeeded or not, so no store is left with buffered-but-unflushed
// writes. A non-nil opErr takes precedence over a finalize failure; on the
// success path a finalize failure is the operation's result, because an
// operation is not observably complete until its checkpoints are.
func (e *Engine) finish(ctx context.Context, opErr error, touched ...finalizer) error {
	if len(touched) == 0 {
		return opErr
	}
	ferr := e.finalizeAll(ctx, touched...)
	if opErr != nil {
		if ferr != nil {
			e.log.Warn("finalize after failed operation", zap.Error(ferr))
		}
		return opErr
	}
	return ferr
}

// embedRecords computes embeddings for all records in one batched call and
// attaches them in place. No-op without an embedder.
func (e *Engine) embedRecords(ctx context.Context, records map[string]vector.Record) error {
	if e.embedder == nil || len(records) == 0 {
		return nil
	}

	keys := make([]string, 0, len(records))
	for k := range records {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	texts := make([]string, len(keys))
	for i, k := range keys {
		texts[i] = records[k].Content
	}

	vecs, err := e.embedder.Embed(ctx, texts)
	if err != nil {
		return err
	}
	for i, k := range keys {
		rec := records[k]
		rec.Vector = vecs[i]
		records[k] = rec
	}
	return nil
}

// overlay returns current overlaid by updates: incoming keys win, keys
// absent from updates keep their prior values. Shallow: nested structures
// are replaced wholesale, never merged.
func overlay(current, updates graph.Attrs) graph.Attrs {
	merged := make(graph.Attrs, len(current)+len(updates))
	for k, v := range current {
		merged[k] = v
	}
	for k, v := range updates {
		merged[k] = v
	}
	return merged
}

// attrString reads a string attribute, tolerating absence and non-string
// values.
func attrString(attrs graph.Attrs, key string) string {
	if attrs == nil {
		return ""
	}
	if s, ok := attrs[key].(string); ok {
		return s
	}
	return ""
}

// errorsIsNotFound reports whether err is the graph store's not-found
// sentinel.
func errorsIsNotFound(err error) bool {
	return errors.Is(err, graph.ErrNotFound)
}

// newOpID returns a correlation ID for one engine operation.
func newOpID() string {
	return uuid.NewString()
}
