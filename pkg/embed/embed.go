// Package embed maps text to the fixed-width float32 vectors every
// stored Memory carries. The retrieval and ingestion pipelines share
// one Embedder instance per process, and its output width must match
// the dimension the vector index was built with; mixing widths is a
// configuration error, not something the store recovers from.
//
// Three implementations cover the deployment spectrum: OpenAI and
// DashScope call their respective embedding APIs, and Local is a
// deterministic offline stand-in used by tests and by the proxy when
// no API key is configured.
package embed

import (
	"context"
	"errors"
)

// Embedder converts text into dense float32 vectors of a fixed width.
type Embedder interface {
	// Embed returns the embedding for a single text. Deterministic per
	// instance: the same text maps to the same vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds multiple texts. Implementations split inputs
	// beyond their per-request limit into several calls transparently.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension is the width of every vector this instance produces.
	Dimension() int
}

// ErrEmptyInput is returned by the API-backed embedders when given no
// text to embed.
var ErrEmptyInput = errors.New("embed: empty input")
