package yggdrasil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/yggdrasil/pkg/config"
	"github.com/orneryd/yggdrasil/pkg/graph"
)

func TestOpen_Memory(t *testing.T) {
	ctx := context.Background()

	kb, err := Open(config.DefaultConfig(), nil)
	require.NoError(t, err)
	defer kb.Close()

	// The engine requires entities to pre-exist; seed through the graph view.
	require.NoError(t, kb.graphStore.UpsertNode(ctx, `default:"A"`, graph.Attrs{}))
	require.NoError(t, kb.graphStore.UpsertNode(ctx, `default:"B"`, graph.Attrs{}))

	result, err := kb.InsertCustomRelations(ctx, []RelationSpec{
		{SrcID: "A", TgtID: "B", Description: "d", Keywords: "k"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalAdded)

	matches, err := kb.SearchRelations(ctx, "k", 1)
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestOpen_Badger(t *testing.T) {
	ctx := context.Background()

	cfg := config.DefaultConfig()
	cfg.Storage.Engine = config.EngineBadger
	cfg.Storage.DataDir = t.TempDir()

	kb, err := Open(cfg, nil)
	require.NoError(t, err)
	defer kb.Close()

	require.NoError(t, kb.graphStore.UpsertNode(ctx, `default:"A"`, graph.Attrs{"description": "x"}))

	merged, err := kb.UpdateEntity(ctx, "A", graph.Attrs{"entity_type": "THING"})
	require.NoError(t, err)
	assert.Equal(t, "THING", merged["entity_type"])
}

func TestOpen_InvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Namespace = ""

	_, err := Open(cfg, nil)
	assert.Error(t, err)
}

func TestSeedEntity(t *testing.T) {
	ctx := context.Background()

	kb, err := Open(config.DefaultConfig(), nil)
	require.NoError(t, err)
	defer kb.Close()

	t.Run("creation applies boundary defaults", func(t *testing.T) {
		attrs, err := kb.SeedEntity(ctx, "Paris", graph.Attrs{})
		require.NoError(t, err)
		assert.Equal(t, DefaultEntityType, attrs["entity_type"])
		assert.Equal(t, DefaultDescription, attrs["description"])
	})

	t.Run("supplied attrs override defaults", func(t *testing.T) {
		attrs, err := kb.SeedEntity(ctx, "Berlin", graph.Attrs{"description": "city in germany"})
		require.NoError(t, err)
		assert.Equal(t, "city in germany", attrs["description"])
	})

	t.Run("seeding an existing entity merges", func(t *testing.T) {
		_, err := kb.SeedEntity(ctx, "Paris", graph.Attrs{"entity_type": "CITY"})
		require.NoError(t, err)

		attrs, err := kb.UpdateEntity(ctx, "Paris", graph.Attrs{})
		require.NoError(t, err)
		assert.Equal(t, "CITY", attrs["entity_type"])
		assert.Equal(t, DefaultDescription, attrs["description"], "merge keeps prior description")
	})
}

func TestOpen_NamespaceIsolation(t *testing.T) {
	ctx := context.Background()

	cfgA := config.DefaultConfig()
	cfgA.Namespace = "tenant_a"
	kbA, err := Open(cfgA, nil)
	require.NoError(t, err)
	defer kbA.Close()

	require.NoError(t, kbA.graphStore.UpsertNode(ctx, `tenant_a:"A"`, graph.Attrs{}))

	// A second KB over different physical stores but the same namespace key
	// shape never sees tenant_a's node.
	cfgB := config.DefaultConfig()
	cfgB.Namespace = "tenant_b"
	kbB, err := Open(cfgB, nil)
	require.NoError(t, err)
	defer kbB.Close()

	_, err = kbB.UpdateEntity(ctx, "A", graph.Attrs{"x": 1})
	assert.ErrorIs(t, err, ErrEntityNotFound)
}
