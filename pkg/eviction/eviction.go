package eviction

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/mnemohq/mnemo/pkg/memstore"
	"github.com/mnemohq/mnemo/pkg/mnemo"
	"github.com/mnemohq/mnemo/pkg/retrieval"
	"github.com/mnemohq/mnemo/pkg/router"
)

// Evictor deletes the lowest-priority unprotected Memories in a tier
// once capacity pressure crosses a threshold, leaving a Tombstone
// behind for each deletion.
type Evictor struct {
	store  memstore.Store
	router *router.Router // optional; nil disables the emotional-boost term of priority
	cfg    Config
	logger *zap.Logger
}

// New builds an Evictor.
func New(store memstore.Store, rt *router.Router, cfg Config, logger *zap.Logger) *Evictor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evictor{store: store, router: rt, cfg: cfg, logger: logger}
}

// priority implements P(m) := effective_weight(m) + recency_bonus(m) +
// association_bonus(m), association_bonus fixed at 0 in v1.
func (e *Evictor) priority(m *mnemo.Memory, now mnemo.Micro) float64 {
	var valence float64
	if e.router != nil {
		valence = e.router.Valence(m.Content)
	}
	ew := retrieval.CalculateEffectiveWeight(m, now, e.cfg.Weight, valence)

	hoursSinceAccess := now.Sub(m.LastAccessed).Hours()
	if hoursSinceAccess < 0 {
		hoursSinceAccess = 0
	}
	recencyBonus := 0.3 / (1 + hoursSinceAccess/24)

	return ew + recencyBonus
}

// protected reports whether m is exempt from eviction: accessed within
// recent_access_hours, or weight at/above min_weight_protected.
func (e *Evictor) protected(m *mnemo.Memory, now mnemo.Micro) bool {
	if now.Sub(m.LastAccessed).Hours() <= e.cfg.RecentAccessHours {
		return true
	}
	return m.Weight >= e.cfg.MinWeightProtected
}

// EvictIfNeeded deletes the lowest-priority unprotected Memories in
// tier until the tier returns to its target occupancy, creating a
// Tombstone for each deletion. It is a no-op (returns an empty slice)
// when the tier's capacity status is Normal or Warning.
func (e *Evictor) EvictIfNeeded(ctx context.Context, tier mnemo.Tier, now mnemo.Micro) ([]string, error) {
	count, err := e.store.CountByTier(ctx, tier)
	if err != nil {
		return nil, mnemo.Wrap(mnemo.KindStorage, "evict: count_by_tier", err)
	}

	status := e.cfg.capacityStatus(count)
	if status == Normal || status == Warning {
		return nil, nil
	}

	memories, err := e.store.ListByTier(ctx, tier)
	if err != nil {
		return nil, mnemo.Wrap(mnemo.KindStorage, "evict: list_by_tier", err)
	}

	var candidates []mnemo.Memory
	for _, m := range memories {
		if !e.protected(&m, now) {
			candidates = append(candidates, m)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return e.priority(&candidates[i], now) < e.priority(&candidates[j], now)
	})

	target := e.cfg.targetCount(status)
	toEvict := count - target
	if toEvict > len(candidates) {
		toEvict = len(candidates)
	}
	if toEvict <= 0 {
		return nil, nil
	}

	reason := mnemo.ReasonLowWeight
	if status == AggressiveEvictionNeeded {
		reason = mnemo.ReasonStoragePressure
	}

	evicted := make([]string, 0, toEvict)
	for _, m := range candidates[:toEvict] {
		tomb := &mnemo.Tombstone{
			OriginalID:      m.ID,
			EvictedAt:       now,
			Topics:          m.Entities,
			Participants:    []string{},
			ApproximateDate: m.CreatedAt,
			Reason:          reason,
		}
		if err := e.store.InsertTombstone(ctx, tomb); err != nil {
			return evicted, mnemo.Wrap(mnemo.KindStorage, "evict: insert_tombstone", err)
		}
		if _, err := e.store.Delete(ctx, m.ID); err != nil {
			return evicted, mnemo.Wrap(mnemo.KindStorage, "evict: delete", err)
		}
		evicted = append(evicted, m.ID)
	}

	e.logger.Info("eviction: tier swept",
		zap.String("tier", string(tier)), zap.Int("count", count),
		zap.Int("evicted", len(evicted)), zap.Int("status", int(status)))

	return evicted, nil
}
