package retrieval

import (
	"context"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/mnemohq/mnemo/pkg/embed"
	"github.com/mnemohq/mnemo/pkg/memstore"
	"github.com/mnemohq/mnemo/pkg/mnemo"
	"github.com/mnemohq/mnemo/pkg/router"
	"github.com/mnemohq/mnemo/pkg/vecstore"
)

// Retriever runs the retrieval pipeline: ANN candidate search, then a
// weight-aware rerank.
type Retriever struct {
	store    memstore.Store
	embedder embed.Embedder
	router   *router.Router // optional; nil disables topic-boost and emotional-boost terms
	cfg      Config
	logger   *zap.Logger
}

// New builds a Retriever. router may be nil, in which case topic_boost
// and the emotional-boost term of calculate_effective_weight are treated
// as zero.
func New(store memstore.Store, embedder embed.Embedder, rt *router.Router, cfg Config, logger *zap.Logger) *Retriever {
	if cfg.CandidateMultiplier <= 0 {
		cfg.CandidateMultiplier = DefaultConfig.CandidateMultiplier
	}
	if cfg.WSim == 0 && cfg.WRerank == 0 {
		cfg.WSim, cfg.WRerank = DefaultConfig.WSim, DefaultConfig.WRerank
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{store: store, embedder: embedder, router: rt, cfg: cfg, logger: logger}
}

// Retrieve embeds query_text, then runs RetrieveEmbedded.
func (r *Retriever) Retrieve(ctx context.Context, queryText string, limit int, now mnemo.Micro) ([]mnemo.RetrievedMemory, error) {
	vec, err := r.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, mnemo.Wrap(mnemo.KindRetrieval, "embed query", err)
	}
	var queryEntities []string
	if r.router != nil {
		out := r.router.Route(queryText)
		for _, e := range out.Entities {
			queryEntities = append(queryEntities, strings.ToLower(e.Text))
		}
	}
	return r.RetrieveEmbedded(ctx, vec, queryEntities, limit, now)
}

// RetrieveEmbedded runs the two-stage ranking pipeline over a
// pre-embedded query.
func (r *Retriever) RetrieveEmbedded(ctx context.Context, queryEmbedding []float32, queryEntities []string, limit int, now mnemo.Micro) ([]mnemo.RetrievedMemory, error) {
	if limit <= 0 {
		limit = 10
	}
	candidateLimit := r.cfg.CandidateMultiplier * limit
	if candidateLimit < limit {
		candidateLimit = limit
	}

	candidates, err := r.store.Search(ctx, queryEmbedding, candidateLimit)
	if err != nil {
		return nil, mnemo.Wrap(mnemo.KindRetrieval, "search candidates", err)
	}

	results := make([]mnemo.RetrievedMemory, 0, len(candidates))
	for _, m := range candidates {
		sim := cosineSimilarity(queryEmbedding, m.Embedding)
		if r.cfg.RelevanceThreshold > 0 && sim < r.cfg.RelevanceThreshold {
			continue
		}
		ew := r.calculateEffectiveWeight(&m, now)
		base := sim*r.cfg.WSim + ew*r.cfg.WRerank

		final := base
		if r.cfg.Deterministic.Enabled {
			boost := topicBoost(queryEntities, m.Entities)
			final = quantize(base+r.cfg.Deterministic.TopicOverlapWeight*boost, r.cfg.Deterministic.DecimalPlaces)
		}

		results = append(results, mnemo.RetrievedMemory{
			Memory:          m,
			SimilarityScore: sim,
			EffectiveWeight: ew,
			FinalScore:      final,
		})
	}

	if r.cfg.Deterministic.Enabled {
		sortDeterministic(results)
	} else {
		sortNonDeterministic(results)
	}

	if len(results) > limit {
		results = results[:limit]
	}

	for _, res := range results {
		if err := r.store.UpdateAccess(ctx, res.Memory.ID, now); err != nil {
			r.logger.Warn("retrieval: update_access failed",
				zap.String("id", res.Memory.ID), zap.Error(err))
		}
	}

	return results, nil
}

// cosineSimilarity derives similarity from the store's distance metric
// and clamps into [-1,1].
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	sim := 1 - float64(vecstore.CosineDistance(a, b))
	if sim > 1 {
		sim = 1
	}
	if sim < -1 {
		sim = -1
	}
	return sim
}

// calculateEffectiveWeight scores m with the instance's weight config,
// parameterized on an explicit now for testability.
func (r *Retriever) calculateEffectiveWeight(m *mnemo.Memory, now mnemo.Micro) float64 {
	var valence float64
	if r.router != nil {
		valence = r.router.Valence(m.Content)
	}
	return CalculateEffectiveWeight(m, now, r.cfg.Weight, valence)
}

// CalculateEffectiveWeight is the time- and access-adjusted importance
// of m: weight scaled up by access frequency and emotional charge,
// decayed exponentially by age. It is a standalone function so other
// packages (pkg/eviction) can reuse the exact same computation
// without depending on a Retriever instance. valence is the caller's
// own emotional-content scan of m.Content (e.g. router.Router.Valence),
// or 0 to disable the emotional-boost term.
func CalculateEffectiveWeight(m *mnemo.Memory, now mnemo.Micro, cfg WeightConfig, valence float64) float64 {
	ageDays := now.Sub(m.CreatedAt).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}
	accessTerm := 1 + cfg.AccessMultiplier*math.Log(1+float64(m.AccessCount))
	decayTerm := math.Exp(-cfg.DecayRate * ageDays)
	emotionalBoost := cfg.EmotionalMultiplier * math.Abs(valence)

	w := m.Weight * accessTerm * decayTerm * (1 + emotionalBoost)
	if w < 0 {
		w = 0
	}
	return w
}

// topicBoost is |query_entities ∩ memory.entities| / max(1, |query_entities|),
// case-insensitive.
func topicBoost(queryEntities, memoryEntities []string) float64 {
	if len(queryEntities) == 0 {
		return 0
	}
	memSet := make(map[string]bool, len(memoryEntities))
	for _, e := range memoryEntities {
		memSet[strings.ToLower(e)] = true
	}
	overlap := 0
	for _, e := range queryEntities {
		if memSet[strings.ToLower(e)] {
			overlap++
		}
	}
	denom := len(queryEntities)
	if denom < 1 {
		denom = 1
	}
	return float64(overlap) / float64(denom)
}

// quantize rounds v to n decimal places (1..4), clamping n into range.
func quantize(v float64, n int) float64 {
	if n < 1 {
		n = 1
	}
	if n > 4 {
		n = 4
	}
	mult := math.Pow(10, float64(n))
	return math.Round(v*mult) / mult
}

// sortDeterministic orders by descending final_score using a total-order
// float comparison (NaN sorts last), tiebroken by older created_at then
// ascending id.
func sortDeterministic(results []mnemo.RetrievedMemory) {
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		cmp := totalOrderCompare(a.FinalScore, b.FinalScore)
		if cmp != 0 {
			return cmp > 0 // descending
		}
		if !a.Memory.CreatedAt.Equal(b.Memory.CreatedAt) {
			return a.Memory.CreatedAt.Before(b.Memory.CreatedAt)
		}
		return a.Memory.ID < b.Memory.ID
	})
}

// sortNonDeterministic orders by descending final_score with a plain
// partial comparison; ties keep their relative candidate order.
func sortNonDeterministic(results []mnemo.RetrievedMemory) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].FinalScore > results[j].FinalScore
	})
}

// totalOrderCompare returns -1, 0, or 1 comparing a and b with NaN
// always sorting last, regardless of sign.
func totalOrderCompare(a, b float64) int {
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	switch {
	case aNaN && bNaN:
		return 0
	case aNaN:
		return -1
	case bNaN:
		return 1
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
