package provider

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"

	lru "github.com/hashicorp/golang-lru/v2"
)

// HashEmbedder is a deterministic, dependency-free Embedder used when no
// remote embedding model is configured: offline tests, local development,
// and degraded-mode operation. It hashes each alphanumeric token into one
// signed bucket of a fixed-width vector and L2-normalizes the result, so
// cosine similarity
// still rewards shared vocabulary between two texts even without a real
// embedding model backing it.
type HashEmbedder struct {
	dim int
}

// NewHashEmbedder builds a HashEmbedder of the given dimension.
func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = 256
	}
	return &HashEmbedder{dim: dim}
}

func (h *HashEmbedder) Dimension() int { return h.dim }

func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return h.embed(text), nil
}

func (h *HashEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = h.embed(t)
	}
	return out, nil
}

func (h *HashEmbedder) embed(text string) []float32 {
	vec := make([]float32, h.dim)
	tokens := tokenizeForHash(text)
	for _, tok := range tokens {
		sum := sha256.Sum256([]byte(tok))
		bucket := binary.BigEndian.Uint32(sum[:4]) % uint32(h.dim)
		sign := float32(1)
		if sum[4]%2 == 0 {
			sign = -1
		}
		vec[bucket] += sign
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

func tokenizeForHash(text string) []string {
	var tokens []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			tokens = append(tokens, string(cur))
			cur = cur[:0]
		}
	}
	for _, r := range text {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			cur = append(cur, r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}

// CachedEmbedder wraps an Embedder with an LRU cache keyed on input text,
// so repeated search queries and re-embedded session summaries skip the
// network/hash round trip entirely (scrypster-memento's go.mod surfaced
// hashicorp/golang-lru/v2 as the idiomatic choice for this shape; no
// source was retrievable from that repo, so the wiring here follows the
// library's own documented cache-aside pattern).
type CachedEmbedder struct {
	inner Embedder
	cache *lru.Cache[string, []float32]
}

// NewCachedEmbedder wraps inner with an LRU cache of the given size.
func NewCachedEmbedder(inner Embedder, size int) (*CachedEmbedder, error) {
	if size <= 0 {
		size = 1024
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("provider: new embedding cache: %w", err)
	}
	return &CachedEmbedder{inner: inner, cache: cache}, nil
}

func (c *CachedEmbedder) Dimension() int { return c.inner.Dimension() }

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		return v, nil
	}
	v, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, v)
	return v, nil
}

func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var miss []string
	var missIdx []int
	for i, t := range texts {
		if v, ok := c.cache.Get(t); ok {
			out[i] = v
			continue
		}
		miss = append(miss, t)
		missIdx = append(missIdx, i)
	}
	if len(miss) == 0 {
		return out, nil
	}
	embedded, err := c.inner.EmbedBatch(ctx, miss)
	if err != nil {
		return nil, err
	}
	for i, v := range embedded {
		out[missIdx[i]] = v
		c.cache.Add(miss[i], v)
	}
	return out, nil
}
