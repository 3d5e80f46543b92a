package vector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryIndex_UpsertGetDelete(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	t.Run("upsert and get", func(t *testing.T) {
		err := idx.Upsert(ctx, map[string]Record{
			"ent-abc": {Content: "PARIScapital of France", Metadata: map[string]string{"entity_name": "PARIS"}},
		})
		require.NoError(t, err)

		rec, err := idx.Get(ctx, "ent-abc")
		require.NoError(t, err)
		assert.Equal(t, "PARIScapital of France", rec.Content)
		assert.Equal(t, "PARIS", rec.Metadata["entity_name"])
	})

	t.Run("same key overwrites", func(t *testing.T) {
		err := idx.Upsert(ctx, map[string]Record{"ent-abc": {Content: "replaced"}})
		require.NoError(t, err)

		rec, err := idx.Get(ctx, "ent-abc")
		require.NoError(t, err)
		assert.Equal(t, "replaced", rec.Content)

		n, err := idx.Len(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, idx.Delete(ctx, []string{"ent-abc", "never-existed"}))
		_, err := idx.Get(ctx, "ent-abc")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("empty key rejected", func(t *testing.T) {
		err := idx.Upsert(ctx, map[string]Record{"": {}})
		assert.ErrorIs(t, err, ErrInvalidKey)
	})

	t.Run("closed", func(t *testing.T) {
		require.NoError(t, idx.Close())
		err := idx.Upsert(ctx, map[string]Record{"k": {}})
		assert.ErrorIs(t, err, ErrClosed)
	})
}

func TestMemoryIndex_Query(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	require.NoError(t, idx.Upsert(ctx, map[string]Record{
		"a": {Content: "east", Vector: []float32{1, 0, 0}},
		"b": {Content: "north", Vector: []float32{0, 1, 0}},
		"c": {Content: "northeast", Vector: []float32{1, 1, 0}},
		"d": {Content: "no embedding"},
	}))

	t.Run("top-k ordering", func(t *testing.T) {
		matches, err := idx.Query(ctx, []float32{1, 0, 0}, 2)
		require.NoError(t, err)
		require.Len(t, matches, 2)
		assert.Equal(t, "a", matches[0].Key)
		assert.InDelta(t, 1.0, matches[0].Score, 1e-6)
		assert.Equal(t, "c", matches[1].Key)
	})

	t.Run("k of zero returns all embedded records", func(t *testing.T) {
		matches, err := idx.Query(ctx, []float32{1, 0, 0}, 0)
		require.NoError(t, err)
		assert.Len(t, matches, 3) // "d" has no vector
	})

	t.Run("dimension mismatch records skipped", func(t *testing.T) {
		matches, err := idx.Query(ctx, []float32{1, 0}, 10)
		assert.ErrorIs(t, err, ErrNoVectors)
		assert.Nil(t, matches)
	})
}

func TestMemoryIndex_QueryEmpty(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	_, err := idx.Query(ctx, []float32{1, 0}, 5)
	assert.ErrorIs(t, err, ErrNoVectors)
}

func TestMemoryIndex_RecordsAreCopied(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex()

	vec := []float32{1, 2, 3}
	require.NoError(t, idx.Upsert(ctx, map[string]Record{"k": {Content: "c", Vector: vec}}))

	vec[0] = 99 // mutate the caller's slice

	rec, err := idx.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, float32(1), rec.Vector[0])
}
