// BadgerIndex provides persistent vector storage using BadgerDB.
//
// Records are persisted as JSON values and mirrored in a resident map so
// similarity queries never touch disk. The resident set is rebuilt from the
// keyspace on open.
package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// recordPrefix namespaces vector records inside the Badger keyspace.
const recordPrefix = byte(0x01)

// BadgerIndex is a persistent implementation of Index backed by BadgerDB.
//
// Example:
//
//	idx, err := vector.NewBadgerIndex("/path/to/entities")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer idx.Close()
type BadgerIndex struct {
	db       *badger.DB
	mu       sync.RWMutex // guards resident and closed
	resident map[string]Record
	closed   bool
	inMemory bool
}

// NewBadgerIndex opens (or creates) a Badger-backed vector index at path.
// An empty path opens an in-memory instance, used for testing.
func NewBadgerIndex(path string) (*BadgerIndex, error) {
	inMemory := path == ""

	opts := badger.DefaultOptions(path).
		WithInMemory(inMemory).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", path, err)
	}

	idx := &BadgerIndex{
		db:       db,
		resident: make(map[string]Record),
		inMemory: inMemory,
	}
	if err := idx.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return idx, nil
}

// load rebuilds the resident record set from the keyspace.
func (b *BadgerIndex) load() error {
	return b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{
			Prefix:         []byte{recordPrefix},
			PrefetchValues: true,
		})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.Key()[1:])
			if err := item.Value(func(val []byte) error {
				var rec Record
				if err := json.Unmarshal(val, &rec); err != nil {
					return fmt.Errorf("decode record %q: %w", key, err)
				}
				b.resident[key] = rec
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

func recordKey(key string) []byte {
	return append([]byte{recordPrefix}, key...)
}

// Upsert creates or replaces records in one batched write.
func (b *BadgerIndex) Upsert(_ context.Context, records map[string]Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()

	staged := make(map[string]Record, len(records))
	for key, rec := range records {
		if key == "" {
			return ErrInvalidKey
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("encode record %q: %w", key, err)
		}
		if err := wb.Set(recordKey(key), data); err != nil {
			return err
		}
		staged[key] = copyRecord(rec)
	}
	if err := wb.Flush(); err != nil {
		return err
	}

	// Mirror into the resident set only after the batch is committed.
	for key, rec := range staged {
		b.resident[key] = rec
	}
	return nil
}

// Delete removes the given keys. Missing keys are ignored.
func (b *BadgerIndex) Delete(_ context.Context, keys []string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := txn.Delete(recordKey(key)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, key := range keys {
		delete(b.resident, key)
	}
	return nil
}

// Get returns the record stored under key, or ErrNotFound.
func (b *BadgerIndex) Get(_ context.Context, key string) (Record, error) {
	if key == "" {
		return Record{}, ErrInvalidKey
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return Record{}, ErrClosed
	}

	rec, ok := b.resident[key]
	if !ok {
		return Record{}, ErrNotFound
	}
	return copyRecord(rec), nil
}

// Query returns the k most similar embedded records, highest score first.
func (b *BadgerIndex) Query(_ context.Context, query []float32, k int) ([]Match, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, ErrClosed
	}

	matches := scoreAll(b.resident, query)
	if matches == nil {
		return nil, ErrNoVectors
	}
	return topK(matches, k), nil
}

// Len returns the number of resident records.
func (b *BadgerIndex) Len(_ context.Context) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return 0, ErrClosed
	}
	return len(b.resident), nil
}

// Finalize fsyncs the value log. In-memory instances have no disk to sync to.
func (b *BadgerIndex) Finalize(_ context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}
	if b.inMemory {
		return nil
	}
	return b.db.Sync()
}

// Close shuts down the underlying BadgerDB.
func (b *BadgerIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.db.Close()
}

// Verify BadgerIndex implements Index interface
var _ Index = (*BadgerIndex)(nil)
