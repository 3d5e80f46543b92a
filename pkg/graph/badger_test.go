package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestBadger opens an in-memory BadgerStore and closes it with the test.
func newTestBadger(t *testing.T) *BadgerStore {
	t.Helper()
	store, err := NewBadgerStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestBadgerStore_NodeRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestBadger(t)

	require.NoError(t, store.UpsertNode(ctx, `"PARIS"`, Attrs{
		"description": "capital of France",
		"entity_type": "CITY",
		"weight":      1.5,
	}))

	ok, err := store.HasNode(ctx, `"PARIS"`)
	require.NoError(t, err)
	assert.True(t, ok)

	attrs, err := store.GetNode(ctx, `"PARIS"`)
	require.NoError(t, err)
	assert.Equal(t, "capital of France", attrs["description"])
	assert.Equal(t, "CITY", attrs["entity_type"])
	// JSON round-trips numbers as float64
	assert.Equal(t, 1.5, attrs["weight"])

	_, err = store.GetNode(ctx, `"MISSING"`)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBadgerStore_EdgeRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestBadger(t)

	require.NoError(t, store.UpsertNode(ctx, `"A"`, Attrs{}))
	require.NoError(t, store.UpsertNode(ctx, `"B"`, Attrs{}))

	t.Run("missing endpoint rejected", func(t *testing.T) {
		err := store.UpsertEdge(ctx, `"A"`, `"C"`, Attrs{})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("round trip", func(t *testing.T) {
		require.NoError(t, store.UpsertEdge(ctx, `"A"`, `"B"`, Attrs{
			"weight":    1.0,
			"keywords":  "connects",
			"source_id": "CUSTOM_RELATION",
		}))

		ok, err := store.HasEdge(ctx, `"A"`, `"B"`)
		require.NoError(t, err)
		assert.True(t, ok)

		attrs, err := store.GetEdge(ctx, `"A"`, `"B"`)
		require.NoError(t, err)
		assert.Equal(t, "connects", attrs["keywords"])
		assert.Equal(t, 1.0, attrs["weight"])
	})

	t.Run("directed", func(t *testing.T) {
		ok, err := store.HasEdge(ctx, `"B"`, `"A"`)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestBadgerStore_DeleteNodeCascade(t *testing.T) {
	ctx := context.Background()
	store := newTestBadger(t)

	for _, k := range []string{`"A"`, `"B"`, `"C"`} {
		require.NoError(t, store.UpsertNode(ctx, k, Attrs{"name": k}))
	}
	require.NoError(t, store.UpsertEdge(ctx, `"A"`, `"B"`, Attrs{"keywords": "out"}))
	require.NoError(t, store.UpsertEdge(ctx, `"C"`, `"A"`, Attrs{"keywords": "in"}))
	require.NoError(t, store.UpsertEdge(ctx, `"B"`, `"C"`, Attrs{"keywords": "unrelated"}))

	attrs, removed, err := store.DeleteNodeCascade(ctx, `"A"`)
	require.NoError(t, err)
	assert.Equal(t, `"A"`, attrs["name"])
	require.Len(t, removed, 2)

	pairs := map[[2]string]string{}
	for _, e := range removed {
		pairs[[2]string{e.Src, e.Tgt}] = e.Attrs["keywords"].(string)
	}
	assert.Equal(t, "out", pairs[[2]string{`"A"`, `"B"`}])
	assert.Equal(t, "in", pairs[[2]string{`"C"`, `"A"`}])

	ok, err := store.HasNode(ctx, `"A"`)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.HasEdge(ctx, `"B"`, `"C"`)
	require.NoError(t, err)
	assert.True(t, ok)

	edges, err := store.EdgeCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), edges)
}

func TestBadgerStore_Counts(t *testing.T) {
	ctx := context.Background()
	store := newTestBadger(t)

	require.NoError(t, store.UpsertNode(ctx, `"A"`, Attrs{}))
	require.NoError(t, store.UpsertNode(ctx, `"B"`, Attrs{}))
	require.NoError(t, store.UpsertEdge(ctx, `"A"`, `"B"`, Attrs{}))

	nodes, err := store.NodeCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), nodes)

	edges, err := store.EdgeCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), edges)
}

func TestBadgerStore_FinalizeAndClose(t *testing.T) {
	ctx := context.Background()
	store := newTestBadger(t)

	require.NoError(t, store.UpsertNode(ctx, `"A"`, Attrs{}))
	// Idempotent checkpoint
	require.NoError(t, store.Finalize(ctx))
	require.NoError(t, store.Finalize(ctx))

	require.NoError(t, store.Close())
	require.NoError(t, store.Close()) // double close is safe

	err := store.UpsertNode(ctx, `"B"`, Attrs{})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestBadgerStore_Persistence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewBadgerStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.UpsertNode(ctx, `"A"`, Attrs{"description": "survives restart"}))
	require.NoError(t, store.Finalize(ctx))
	require.NoError(t, store.Close())

	reopened, err := NewBadgerStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	attrs, err := reopened.GetNode(ctx, `"A"`)
	require.NoError(t, err)
	assert.Equal(t, "survives restart", attrs["description"])
}
