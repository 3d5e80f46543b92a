package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// HashEmbedder is a deterministic feature-hashing embedder.
//
// It maps whitespace-separated tokens into a fixed number of buckets with a
// signed FNV hash and L2-normalizes the result. The vectors carry no semantic
// meaning beyond token overlap, which is exactly enough for exercising the
// similarity plumbing without a model: identical texts embed identically, and
// texts sharing tokens score higher than disjoint ones.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder creates a hashing embedder producing vectors of the given
// width. Widths below 8 are raised to 8.
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims < 8 {
		dims = 8
	}
	return &HashEmbedder{dims: dims}
}

// Embed returns one normalized vector per text. Never fails on non-empty
// input.
func (h *HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyInput
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = h.embedOne(text)
	}
	return out, nil
}

func (h *HashEmbedder) embedOne(text string) []float32 {
	vec := make([]float32, h.dims)
	for _, token := range strings.Fields(strings.ToLower(text)) {
		hasher := fnv.New64a()
		hasher.Write([]byte(token))
		sum := hasher.Sum64()

		bucket := int(sum % uint64(h.dims))
		sign := float32(1)
		if (sum>>63)&1 == 1 {
			sign = -1
		}
		vec[bucket] += sign
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec
}

// Dimensions returns the vector width.
func (h *HashEmbedder) Dimensions() int {
	return h.dims
}

// Verify HashEmbedder implements Embedder interface
var _ Embedder = (*HashEmbedder)(nil)
