package vector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBadgerIndex(t *testing.T) *BadgerIndex {
	t.Helper()
	idx, err := NewBadgerIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestBadgerIndex_RoundTrip(t *testing.T) {
	ctx := context.Background()
	idx := newTestBadgerIndex(t)

	require.NoError(t, idx.Upsert(ctx, map[string]Record{
		"rel-123": {
			Content:  `borders"FRANCE""SPAIN"shared border`,
			Metadata: map[string]string{"src_id": `"FRANCE"`, "tgt_id": `"SPAIN"`},
			Vector:   []float32{0.1, 0.2},
		},
	}))

	rec, err := idx.Get(ctx, "rel-123")
	require.NoError(t, err)
	assert.Equal(t, `"FRANCE"`, rec.Metadata["src_id"])
	assert.Equal(t, []float32{0.1, 0.2}, rec.Vector)

	require.NoError(t, idx.Delete(ctx, []string{"rel-123"}))
	_, err = idx.Get(ctx, "rel-123")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBadgerIndex_Query(t *testing.T) {
	ctx := context.Background()
	idx := newTestBadgerIndex(t)

	require.NoError(t, idx.Upsert(ctx, map[string]Record{
		"a": {Content: "east", Vector: []float32{1, 0}},
		"b": {Content: "north", Vector: []float32{0, 1}},
	}))

	matches, err := idx.Query(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "a", matches[0].Key)
}

func TestBadgerIndex_PersistenceRebuildsResidentSet(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	idx, err := NewBadgerIndex(dir)
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(ctx, map[string]Record{
		"ent-x": {Content: "survives", Vector: []float32{1, 0}},
	}))
	require.NoError(t, idx.Finalize(ctx))
	require.NoError(t, idx.Close())

	reopened, err := NewBadgerIndex(dir)
	require.NoError(t, err)
	defer reopened.Close()

	n, err := reopened.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Query works off the rebuilt resident set
	matches, err := reopened.Query(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "ent-x", matches[0].Key)
	assert.Equal(t, "survives", matches[0].Record.Content)
}

func TestBadgerIndex_Closed(t *testing.T) {
	ctx := context.Background()
	idx := newTestBadgerIndex(t)

	require.NoError(t, idx.Close())
	require.NoError(t, idx.Close()) // double close is safe

	err := idx.Upsert(ctx, map[string]Record{"k": {}})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = idx.Query(ctx, []float32{1}, 1)
	assert.ErrorIs(t, err, ErrClosed)
}
