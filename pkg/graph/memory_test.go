package graph

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	require.NotNil(t, store)
	assert.NotNil(t, store.nodes)
	assert.NotNil(t, store.edges)
	assert.NotNil(t, store.outgoing)
	assert.NotNil(t, store.incoming)
	assert.False(t, store.closed)
}

func TestMemoryStore_Nodes(t *testing.T) {
	ctx := context.Background()

	t.Run("upsert and get", func(t *testing.T) {
		store := NewMemoryStore()
		err := store.UpsertNode(ctx, `"PARIS"`, Attrs{"description": "capital of France"})
		require.NoError(t, err)

		attrs, err := store.GetNode(ctx, `"PARIS"`)
		require.NoError(t, err)
		assert.Equal(t, "capital of France", attrs["description"])

		ok, err := store.HasNode(ctx, `"PARIS"`)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("get missing returns ErrNotFound", func(t *testing.T) {
		store := NewMemoryStore()
		_, err := store.GetNode(ctx, `"NOWHERE"`)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("empty key", func(t *testing.T) {
		store := NewMemoryStore()
		err := store.UpsertNode(ctx, "", Attrs{})
		assert.ErrorIs(t, err, ErrInvalidKey)
	})

	t.Run("upsert replaces whole attribute map", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.UpsertNode(ctx, `"A"`, Attrs{"x": 1, "y": 2}))
		require.NoError(t, store.UpsertNode(ctx, `"A"`, Attrs{"x": 3}))

		attrs, err := store.GetNode(ctx, `"A"`)
		require.NoError(t, err)
		assert.Equal(t, 3, attrs["x"])
		assert.NotContains(t, attrs, "y")
	})

	t.Run("returned attrs are a copy", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.UpsertNode(ctx, `"A"`, Attrs{"k": "original"}))

		got, err := store.GetNode(ctx, `"A"`)
		require.NoError(t, err)
		got["k"] = "mutated"

		again, err := store.GetNode(ctx, `"A"`)
		require.NoError(t, err)
		assert.Equal(t, "original", again["k"])
	})

	t.Run("closed store", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.Close())

		err := store.UpsertNode(ctx, `"A"`, Attrs{})
		assert.ErrorIs(t, err, ErrClosed)
		_, err = store.GetNode(ctx, `"A"`)
		assert.ErrorIs(t, err, ErrClosed)
	})
}

func TestMemoryStore_Edges(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T) *MemoryStore {
		t.Helper()
		store := NewMemoryStore()
		require.NoError(t, store.UpsertNode(ctx, `"A"`, Attrs{}))
		require.NoError(t, store.UpsertNode(ctx, `"B"`, Attrs{}))
		return store
	}

	t.Run("upsert and get", func(t *testing.T) {
		store := seed(t)
		err := store.UpsertEdge(ctx, `"A"`, `"B"`, Attrs{"weight": 2.0, "keywords": "links"})
		require.NoError(t, err)

		attrs, err := store.GetEdge(ctx, `"A"`, `"B"`)
		require.NoError(t, err)
		assert.Equal(t, 2.0, attrs["weight"])

		ok, err := store.HasEdge(ctx, `"A"`, `"B"`)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("edges are directed", func(t *testing.T) {
		store := seed(t)
		require.NoError(t, store.UpsertEdge(ctx, `"A"`, `"B"`, Attrs{}))

		ok, err := store.HasEdge(ctx, `"B"`, `"A"`)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("missing endpoint rejected", func(t *testing.T) {
		store := seed(t)
		err := store.UpsertEdge(ctx, `"A"`, `"C"`, Attrs{})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("get missing edge", func(t *testing.T) {
		store := seed(t)
		_, err := store.GetEdge(ctx, `"A"`, `"B"`)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMemoryStore_DeleteNodeCascade(t *testing.T) {
	ctx := context.Background()

	t.Run("removes node and incident edges both directions", func(t *testing.T) {
		store := NewMemoryStore()
		for _, k := range []string{`"A"`, `"B"`, `"C"`} {
			require.NoError(t, store.UpsertNode(ctx, k, Attrs{}))
		}
		require.NoError(t, store.UpsertEdge(ctx, `"A"`, `"B"`, Attrs{"keywords": "out"}))
		require.NoError(t, store.UpsertEdge(ctx, `"C"`, `"A"`, Attrs{"keywords": "in"}))
		require.NoError(t, store.UpsertEdge(ctx, `"B"`, `"C"`, Attrs{"keywords": "unrelated"}))

		_, removed, err := store.DeleteNodeCascade(ctx, `"A"`)
		require.NoError(t, err)
		require.Len(t, removed, 2)

		ok, err := store.HasNode(ctx, `"A"`)
		require.NoError(t, err)
		assert.False(t, ok)

		for _, pair := range [][2]string{{`"A"`, `"B"`}, {`"C"`, `"A"`}} {
			ok, err := store.HasEdge(ctx, pair[0], pair[1])
			require.NoError(t, err)
			assert.False(t, ok, "edge %v should be gone", pair)
		}

		// Unrelated edge survives
		ok, err = store.HasEdge(ctx, `"B"`, `"C"`)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("self-loop removed once", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.UpsertNode(ctx, `"A"`, Attrs{}))
		require.NoError(t, store.UpsertEdge(ctx, `"A"`, `"A"`, Attrs{}))

		_, removed, err := store.DeleteNodeCascade(ctx, `"A"`)
		require.NoError(t, err)
		assert.Len(t, removed, 1)
	})

	t.Run("missing node", func(t *testing.T) {
		store := NewMemoryStore()
		_, _, err := store.DeleteNodeCascade(ctx, `"A"`)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("returns node attrs and edge attrs", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.UpsertNode(ctx, `"A"`, Attrs{"description": "gone soon"}))
		require.NoError(t, store.UpsertNode(ctx, `"B"`, Attrs{}))
		require.NoError(t, store.UpsertEdge(ctx, `"A"`, `"B"`, Attrs{"keywords": "kw"}))

		attrs, removed, err := store.DeleteNodeCascade(ctx, `"A"`)
		require.NoError(t, err)
		assert.Equal(t, "gone soon", attrs["description"])
		require.Len(t, removed, 1)
		assert.Equal(t, `"A"`, removed[0].Src)
		assert.Equal(t, `"B"`, removed[0].Tgt)
		assert.Equal(t, "kw", removed[0].Attrs["keywords"])
	})
}

func TestMemoryStore_Counts(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	for i := 0; i < 3; i++ {
		require.NoError(t, store.UpsertNode(ctx, fmt.Sprintf(`"N%d"`, i), Attrs{}))
	}
	require.NoError(t, store.UpsertEdge(ctx, `"N0"`, `"N1"`, Attrs{}))

	nodes, err := store.NodeCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), nodes)

	edges, err := store.EdgeCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), edges)
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf(`"N%d"`, i)
			_ = store.UpsertNode(ctx, key, Attrs{"i": i})
			_, _ = store.GetNode(ctx, key)
			_, _ = store.HasNode(ctx, key)
		}(i)
	}
	wg.Wait()

	count, err := store.NodeCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(16), count)
}
