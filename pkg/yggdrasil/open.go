package yggdrasil

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/orneryd/yggdrasil/pkg/config"
	"github.com/orneryd/yggdrasil/pkg/embed"
	"github.com/orneryd/yggdrasil/pkg/graph"
	"github.com/orneryd/yggdrasil/pkg/vector"
)

// KB is an opened knowledge base: a synchronization engine bound to
// namespaced views over its backing stores, with their lifecycle attached.
//
// Example:
//
//	cfg := config.DefaultConfig()
//	kb, err := yggdrasil.Open(cfg, logger)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer kb.Close()
//
//	result, err := kb.InsertCustomRelations(ctx, specs)
type KB struct {
	*Engine

	graphStore graph.Store
	entities   vector.Index
	relations  vector.Index
}

// Open builds the stores described by cfg, wraps them in the configured
// namespace and returns an engine over them.
//
// Persistent layout under cfg.Storage.DataDir:
//
//	graph/     BadgerDB graph store
//	entities/  BadgerDB entity vector index
//	relations/ BadgerDB relation vector index
func Open(cfg *config.Config, logger *zap.Logger) (*KB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		graphStore graph.Store
		entities   vector.Index
		relations  vector.Index
		err        error
	)

	switch cfg.Storage.Engine {
	case config.EngineBadger:
		graphStore, err = graph.NewBadgerStore(filepath.Join(cfg.Storage.DataDir, "graph"))
		if err != nil {
			return nil, fmt.Errorf("open graph store: %w", err)
		}
		entities, err = vector.NewBadgerIndex(filepath.Join(cfg.Storage.DataDir, "entities"))
		if err != nil {
			_ = graphStore.Close()
			return nil, fmt.Errorf("open entity index: %w", err)
		}
		relations, err = vector.NewBadgerIndex(filepath.Join(cfg.Storage.DataDir, "relations"))
		if err != nil {
			_ = graphStore.Close()
			_ = entities.Close()
			return nil, fmt.Errorf("open relation index: %w", err)
		}
	default:
		graphStore = graph.NewMemoryStore()
		entities = vector.NewMemoryIndex()
		relations = vector.NewMemoryIndex()
	}

	// Record classes live in separate physical indexes; the namespace wrapper
	// adds tenant isolation on top.
	nsGraph := graph.NewNamespacedStore(graphStore, cfg.Namespace)
	nsEntities := vector.NewNamespacedIndex(entities, cfg.Namespace)
	nsRelations := vector.NewNamespacedIndex(relations, cfg.Namespace)

	opts := []Option{WithLogger(logger.Named("engine"))}
	embedder, err := buildEmbedder(cfg.Embedding)
	if err != nil {
		_ = graphStore.Close()
		_ = entities.Close()
		_ = relations.Close()
		return nil, err
	}
	if embedder != nil {
		opts = append(opts, WithEmbedder(embedder))
	}

	return &KB{
		Engine:     New(nsGraph, nsEntities, nsRelations, opts...),
		graphStore: graphStore,
		entities:   entities,
		relations:  relations,
	}, nil
}

// buildEmbedder constructs the embedder named by the config, or nil for
// "none".
func buildEmbedder(cfg config.EmbeddingConfig) (embed.Embedder, error) {
	switch cfg.Provider {
	case config.EmbedderNone:
		return nil, nil
	case config.EmbedderHash:
		return embed.NewHashEmbedder(cfg.Dimensions), nil
	case config.EmbedderOpenAI:
		return embed.NewOpenAIEmbedder(cfg.APIKey, cfg.Model, cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// SeedEntity creates an entity if it does not already exist, then merges the
// given attributes into it. This is the ingestion boundary: the engine's
// own operations require entities to pre-exist, and only here do the
// creation defaults apply (DefaultEntityType, DefaultDescription).
func (kb *KB) SeedEntity(ctx context.Context, name string, attrs graph.Attrs) (graph.Attrs, error) {
	key := NormalizeEntityName(name)

	exists, err := kb.Engine.graph.HasNode(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("check entity %s: %w", key, err)
	}
	if !exists {
		seed := graph.Attrs{
			"entity_type": DefaultEntityType,
			"description": DefaultDescription,
		}
		if err := kb.Engine.graph.UpsertNode(ctx, key, seed); err != nil {
			return nil, fmt.Errorf("create entity %s: %w", key, err)
		}
	}
	return kb.UpdateEntity(ctx, name, attrs)
}

// Close shuts down the underlying stores.
func (kb *KB) Close() error {
	var firstErr error
	for _, c := range []interface{ Close() error }{kb.graphStore, kb.entities, kb.relations} {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
