package yggdrasil

import (
	"context"
	"fmt"

	"github.com/orneryd/yggdrasil/pkg/vector"
)

// SearchEntities embeds the query text and returns the k most similar
// entity records. Requires an embedder; returns ErrNoEmbedder otherwise.
func (e *Engine) SearchEntities(ctx context.Context, query string, k int) ([]vector.Match, error) {
	return e.search(ctx, e.entities, query, k)
}

// SearchRelations embeds the query text and returns the k most similar
// relation records. Requires an embedder; returns ErrNoEmbedder otherwise.
func (e *Engine) SearchRelations(ctx context.Context, query string, k int) ([]vector.Match, error) {
	return e.search(ctx, e.relations, query, k)
}

func (e *Engine) search(ctx context.Context, idx vector.Index, query string, k int) ([]vector.Match, error) {
	if e.embedder == nil {
		return nil, ErrNoEmbedder
	}

	vecs, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := idx.Query(ctx, vecs[0], k)
	if err != nil {
		return nil, fmt.Errorf("similarity query: %w", err)
	}
	return matches, nil
}
