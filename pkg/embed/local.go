package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// Local is a deterministic, offline Embedder that hash-projects a bag of
// words into a fixed dimension. It stands in for a real embedding model
// so the rest of the retrieval pipeline is exercisable and testable
// without a network call or a loaded model.
//
// Local is eager at construction (no work happens until Embed is
// called, there is simply nothing to load) and is deterministic per
// instance: the same text always maps to the same vector.
type Local struct {
	dim int
}

// NewLocal returns a Local embedder producing vectors of the given
// dimension.
func NewLocal(dim int) *Local {
	if dim <= 0 {
		dim = 384
	}
	return &Local{dim: dim}
}

// Embed returns a deterministic embedding for text. Empty text is
// permitted and returns a zero vector of the configured dimension.
func (l *Local) Embed(_ context.Context, text string) ([]float32, error) {
	return l.vector(text), nil
}

// EmbedBatch embeds each text independently.
func (l *Local) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := l.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Dimension returns the configured output width.
func (l *Local) Dimension() int { return l.dim }

// vector hash-projects each word in text into a bucket of the output
// vector, accumulating sign-weighted hits, then L2-normalizes.
func (l *Local) vector(text string) []float32 {
	v := make([]float32, l.dim)
	words := strings.Fields(strings.ToLower(text))
	for _, w := range words {
		h := fnv.New64a()
		_, _ = h.Write([]byte(w))
		sum := h.Sum64()
		bucket := int(sum % uint64(l.dim))
		sign := float32(1)
		if (sum>>1)%2 == 0 {
			sign = -1
		}
		v[bucket] += sign
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	norm = math.Sqrt(norm)
	for i, x := range v {
		v[i] = float32(float64(x) / norm)
	}
	return v
}

var _ Embedder = (*Local)(nil)
