// Package ingestion turns raw text into a stored Memory: route, embed,
// assign weight and tier, then hand off to Storage.
package ingestion

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/mnemohq/mnemo/pkg/embed"
	"github.com/mnemohq/mnemo/pkg/memstore"
	"github.com/mnemohq/mnemo/pkg/mnemo"
	"github.com/mnemohq/mnemo/pkg/router"
)

// minContentLength is the post-trim length below which text is filtered
// out rather than ingested.
const minContentLength = 10

// Ingestor turns raw text into stored Memories.
type Ingestor struct {
	router   *router.Router
	embedder embed.Embedder
	store    memstore.Store
}

// New builds an Ingestor.
func New(rt *router.Router, embedder embed.Embedder, store memstore.Store) *Ingestor {
	return &Ingestor{router: rt, embedder: embedder, store: store}
}

// Ingest filters, routes, embeds, and stores text as a new Memory. It
// returns (nil, nil) when text is filtered out, never an error for that
// case: too-short text is an expected input, not a failure.
func (i *Ingestor) Ingest(ctx context.Context, text string, source mnemo.Source, conversationID string) (*mnemo.Memory, error) {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < minContentLength {
		return nil, nil
	}

	out := i.router.Route(text)

	vec, err := i.embedder.Embed(ctx, text)
	if err != nil {
		return nil, mnemo.Wrap(mnemo.KindIngestion, "embed", err)
	}

	memType := mnemo.Semantic
	if source == mnemo.SourceConversation {
		memType = mnemo.Episodic
	}

	now := mnemo.NowMicro()
	entities := make([]string, 0, len(out.Entities))
	for _, e := range out.Entities {
		entities = append(entities, e.Text)
	}

	m := &mnemo.Memory{
		ID:             uuid.NewString(),
		Content:        text,
		Embedding:      vec,
		MemoryType:     memType,
		Source:         source,
		Tier:           mnemo.TierHot,
		Compression:    compressionHint(len(text)),
		Weight:         computeWeight(len(entities), out.EmotionalValence, source),
		CreatedAt:      now,
		LastAccessed:   now,
		AccessCount:    0,
		ConversationID: conversationID,
		Entities:       entities,
	}
	m.ClampWeight()

	if err := i.store.Insert(ctx, m); err != nil {
		return nil, mnemo.Wrap(mnemo.KindIngestion, "store", err)
	}
	return m, nil
}

// compressionHint is informational at ingest time; content is not
// pre-compressed.
func compressionHint(contentLen int) mnemo.Compression {
	switch {
	case contentLen < 100:
		return mnemo.CompressionFull
	case contentLen < 500:
		return mnemo.CompressionSummary
	case contentLen < 2000:
		return mnemo.CompressionKeywords
	default:
		return mnemo.CompressionHash
	}
}

// computeWeight assigns the initial weight: a 0.5 base plus bonuses for
// entity density, emotional charge, and source, clamped to [0.1, 1.0].
func computeWeight(entityCount int, valence float64, source mnemo.Source) float64 {
	sourceBonus := 0.0
	switch source {
	case mnemo.SourceManual:
		sourceBonus = 0.3
	case mnemo.SourceConversation:
		sourceBonus = 0.1
	}
	abs := valence
	if abs < 0 {
		abs = -abs
	}
	w := 0.5 + 0.05*float64(entityCount) + 0.2*abs + sourceBonus
	if w < 0.1 {
		w = 0.1
	}
	if w > 1.0 {
		w = 1.0
	}
	return w
}
