// BadgerStore provides persistent graph storage using BadgerDB.
// It implements the Store interface with transactional cascade deletes.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// Key prefixes for BadgerDB storage organization.
// Using single-byte prefixes for efficiency.
const (
	prefixNode     = byte(0x01) // node:<key> -> JSON(Attrs)
	prefixEdge     = byte(0x02) // edge:<src> 0x00 <tgt> -> JSON(Attrs)
	prefixIncoming = byte(0x03) // incoming:<tgt> 0x00 <src> -> []byte{} (reverse adjacency)
)

// keySep separates key components. Entity keys are quoted, upper-cased names
// and never contain a NUL byte.
const keySep = byte(0x00)

// BadgerStore provides persistent graph storage using BadgerDB.
//
// Key structure:
//   - Nodes: 0x01 + key -> JSON(Attrs)
//   - Edges: 0x02 + src + 0x00 + tgt -> JSON(Attrs)
//   - Incoming index: 0x03 + tgt + 0x00 + src -> empty
//
// Outgoing edges are enumerated directly from the edge keyspace (edges are
// keyed source-first); the incoming index exists only for cascade deletes.
//
// Example:
//
//	store, err := graph.NewBadgerStore("/path/to/data")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer store.Close()
//
//	store.UpsertNode(ctx, `"PARIS"`, graph.Attrs{"description": "capital of France"})
type BadgerStore struct {
	db       *badger.DB
	mu       sync.RWMutex // guards closed
	closed   bool
	inMemory bool
}

// NewBadgerStore opens (or creates) a Badger-backed graph store at path.
// An empty path opens an in-memory instance, used for testing.
func NewBadgerStore(path string) (*BadgerStore, error) {
	inMemory := path == ""

	opts := badger.DefaultOptions(path).
		WithInMemory(inMemory).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", path, err)
	}

	return &BadgerStore{db: db, inMemory: inMemory}, nil
}

func nodeKey(key string) []byte {
	return append([]byte{prefixNode}, key...)
}

func edgeStoreKey(src, tgt string) []byte {
	k := make([]byte, 0, 1+len(src)+1+len(tgt))
	k = append(k, prefixEdge)
	k = append(k, src...)
	k = append(k, keySep)
	k = append(k, tgt...)
	return k
}

func incomingIndexKey(tgt, src string) []byte {
	k := make([]byte, 0, 1+len(tgt)+1+len(src))
	k = append(k, prefixIncoming)
	k = append(k, tgt...)
	k = append(k, keySep)
	k = append(k, src...)
	return k
}

// splitEdgeKey recovers (src, tgt) from an edge store key.
func splitEdgeKey(key []byte) (string, string) {
	rest := key[1:]
	i := bytes.IndexByte(rest, keySep)
	if i < 0 {
		return string(rest), ""
	}
	return string(rest[:i]), string(rest[i+1:])
}

func encodeAttrs(attrs Attrs) ([]byte, error) {
	if attrs == nil {
		attrs = Attrs{}
	}
	return json.Marshal(attrs)
}

func decodeAttrs(data []byte) (Attrs, error) {
	var attrs Attrs
	if err := json.Unmarshal(data, &attrs); err != nil {
		return nil, fmt.Errorf("decode attrs: %w", err)
	}
	if attrs == nil {
		attrs = Attrs{}
	}
	return attrs, nil
}

func (b *BadgerStore) isClosed() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.closed
}

// HasNode reports whether a node exists.
func (b *BadgerStore) HasNode(_ context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrInvalidKey
	}
	if b.isClosed() {
		return false, ErrClosed
	}

	var exists bool
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(nodeKey(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	})
	return exists, err
}

// GetNode returns the node's attributes, or ErrNotFound.
func (b *BadgerStore) GetNode(_ context.Context, key string) (Attrs, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}
	if b.isClosed() {
		return nil, ErrClosed
	}

	var attrs Attrs
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(nodeKey(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			attrs, err = decodeAttrs(val)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return attrs, nil
}

// UpsertNode creates or replaces a node.
func (b *BadgerStore) UpsertNode(_ context.Context, key string, attrs Attrs) error {
	if key == "" {
		return ErrInvalidKey
	}
	if b.isClosed() {
		return ErrClosed
	}

	data, err := encodeAttrs(attrs)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(nodeKey(key), data)
	})
}

// DeleteNodeCascade removes a node and every incident edge in one transaction.
func (b *BadgerStore) DeleteNodeCascade(_ context.Context, key string) (Attrs, []RemovedEdge, error) {
	if key == "" {
		return nil, nil, ErrInvalidKey
	}
	if b.isClosed() {
		return nil, nil, ErrClosed
	}

	var (
		nodeAttrs Attrs
		removed   []RemovedEdge
	)
	err := b.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(nodeKey(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if err := item.Value(func(val []byte) error {
			nodeAttrs, err = decodeAttrs(val)
			return err
		}); err != nil {
			return err
		}

		// Outgoing edges: scan the edge keyspace under this source. An empty
		// target leaves the prefix ending at the separator byte.
		edges, err := collectEdges(txn, edgeStoreKey(key, ""))
		if err != nil {
			return err
		}

		// Incoming edges: resolve through the reverse index.
		inPrefix := append([]byte{prefixIncoming}, key...)
		inPrefix = append(inPrefix, keySep)
		it := txn.NewIterator(badger.IteratorOptions{Prefix: inPrefix})
		var incomingSrcs []string
		for it.Rewind(); it.Valid(); it.Next() {
			k := it.Item().Key()
			incomingSrcs = append(incomingSrcs, string(k[len(inPrefix):]))
		}
		it.Close()

		for _, src := range incomingSrcs {
			if src == key {
				continue // self-loop already collected as outgoing
			}
			item, err := txn.Get(edgeStoreKey(src, key))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue // dangling index entry
			}
			if err != nil {
				return err
			}
			var attrs Attrs
			if err := item.Value(func(val []byte) error {
				attrs, err = decodeAttrs(val)
				return err
			}); err != nil {
				return err
			}
			edges = append(edges, RemovedEdge{Src: src, Tgt: key, Attrs: attrs})
		}

		for _, e := range edges {
			if err := txn.Delete(edgeStoreKey(e.Src, e.Tgt)); err != nil {
				return err
			}
			if err := txn.Delete(incomingIndexKey(e.Tgt, e.Src)); err != nil {
				return err
			}
		}

		removed = edges
		return txn.Delete(nodeKey(key))
	})
	if err != nil {
		return nil, nil, err
	}
	return nodeAttrs, removed, nil
}

// collectEdges reads all edges whose store key starts with prefix.
func collectEdges(txn *badger.Txn, prefix []byte) ([]RemovedEdge, error) {
	var out []RemovedEdge
	it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true})
	defer it.Close()
	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		src, tgt := splitEdgeKey(item.Key())
		var attrs Attrs
		if err := item.Value(func(val []byte) error {
			var err error
			attrs, err = decodeAttrs(val)
			return err
		}); err != nil {
			return nil, err
		}
		out = append(out, RemovedEdge{Src: src, Tgt: tgt, Attrs: attrs})
	}
	return out, nil
}

// HasEdge reports whether a directed edge exists.
func (b *BadgerStore) HasEdge(_ context.Context, src, tgt string) (bool, error) {
	if src == "" || tgt == "" {
		return false, ErrInvalidKey
	}
	if b.isClosed() {
		return false, ErrClosed
	}

	var exists bool
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(edgeStoreKey(src, tgt))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	})
	return exists, err
}

// GetEdge returns the edge's attributes, or ErrNotFound.
func (b *BadgerStore) GetEdge(_ context.Context, src, tgt string) (Attrs, error) {
	if src == "" || tgt == "" {
		return nil, ErrInvalidKey
	}
	if b.isClosed() {
		return nil, ErrClosed
	}

	var attrs Attrs
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(edgeStoreKey(src, tgt))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			attrs, err = decodeAttrs(val)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return attrs, nil
}

// UpsertEdge creates or replaces a directed edge. Both endpoints must exist.
func (b *BadgerStore) UpsertEdge(_ context.Context, src, tgt string, attrs Attrs) error {
	if src == "" || tgt == "" {
		return ErrInvalidKey
	}
	if b.isClosed() {
		return ErrClosed
	}

	data, err := encodeAttrs(attrs)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		for _, endpoint := range []string{src, tgt} {
			if _, err := txn.Get(nodeKey(endpoint)); errors.Is(err, badger.ErrKeyNotFound) {
				return ErrNotFound
			} else if err != nil {
				return err
			}
		}
		if err := txn.Set(edgeStoreKey(src, tgt), data); err != nil {
			return err
		}
		return txn.Set(incomingIndexKey(tgt, src), nil)
	})
}

// NodeCount returns the number of nodes.
func (b *BadgerStore) NodeCount(_ context.Context) (int64, error) {
	return b.countPrefix([]byte{prefixNode})
}

// EdgeCount returns the number of edges.
func (b *BadgerStore) EdgeCount(_ context.Context) (int64, error) {
	return b.countPrefix([]byte{prefixEdge})
}

func (b *BadgerStore) countPrefix(prefix []byte) (int64, error) {
	if b.isClosed() {
		return 0, ErrClosed
	}

	var count int64
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// Finalize fsyncs the value log. In-memory instances have no disk to sync to.
func (b *BadgerStore) Finalize(_ context.Context) error {
	if b.isClosed() {
		return ErrClosed
	}
	if b.inMemory {
		return nil
	}
	return b.db.Sync()
}

// Close shuts down the underlying BadgerDB.
func (b *BadgerStore) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	return b.db.Close()
}

// Verify BadgerStore implements Store interface
var _ Store = (*BadgerStore)(nil)
