// Package embed defines the embedding contract used by the synchronization
// engine and ships two adapters: an OpenAI-backed embedder for real
// deployments and a deterministic hashing embedder for offline use and tests.
//
// The engine treats embeddings as optional: with no embedder configured,
// vector records are stored text-only and similarity queries are unavailable,
// but the dual-write synchronization semantics are unchanged.
package embed

import (
	"context"
	"errors"
)

// ErrEmptyInput is returned when Embed is called with no texts.
var ErrEmptyInput = errors.New("embed: empty input")

// Embedder converts texts into dense vectors.
type Embedder interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the width of produced vectors.
	Dimensions() int
}
