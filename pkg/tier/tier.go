package tier

import (
	"context"

	"github.com/mnemohq/mnemo/pkg/memstore"
	"github.com/mnemohq/mnemo/pkg/mnemo"
)

// Manager migrates Memories between tiers.
type Manager struct {
	store                  memstore.Store
	accessPromoteThreshold int64
}

// New builds a Manager. accessPromoteThreshold is the access_count
// CheckAndPromote compares against.
func New(store memstore.Store, accessPromoteThreshold int64) *Manager {
	return &Manager{store: store, accessPromoteThreshold: accessPromoteThreshold}
}

var promoteNext = map[mnemo.Tier]mnemo.Tier{
	mnemo.TierCold: mnemo.TierWarm,
	mnemo.TierWarm: mnemo.TierHot,
	mnemo.TierHot:  mnemo.TierHot,
}

var demoteNext = map[mnemo.Tier]mnemo.Tier{
	mnemo.TierHot:  mnemo.TierWarm,
	mnemo.TierWarm: mnemo.TierCold,
	mnemo.TierCold: mnemo.TierCold,
}

// Migrate validates that id currently sits in tier from, then moves it
// to tier to. Returns a config-kind error if the current tier does not
// match from.
func (mg *Manager) Migrate(ctx context.Context, id string, from, to mnemo.Tier) error {
	m, err := mg.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if m.Tier != from {
		return mnemo.Newf(mnemo.KindConfig, "tier: migrate: %q is in tier %s, not %s", id, m.Tier, from)
	}
	if from == to {
		return nil
	}
	return mg.store.UpdateTier(ctx, id, to)
}

// Promote moves id one step toward Hot (Cold->Warm->Hot), a no-op at
// Hot.
func (mg *Manager) Promote(ctx context.Context, id string) error {
	m, err := mg.store.Get(ctx, id)
	if err != nil {
		return err
	}
	next := promoteNext[m.Tier]
	if next == m.Tier {
		return nil
	}
	return mg.store.UpdateTier(ctx, id, next)
}

// Demote moves id one step toward Cold (Hot->Warm->Cold), a no-op at
// Cold.
func (mg *Manager) Demote(ctx context.Context, id string) error {
	m, err := mg.store.Get(ctx, id)
	if err != nil {
		return err
	}
	next := demoteNext[m.Tier]
	if next == m.Tier {
		return nil
	}
	return mg.store.UpdateTier(ctx, id, next)
}

// CheckAndPromote promotes id if its access_count has reached the
// configured threshold.
func (mg *Manager) CheckAndPromote(ctx context.Context, id string) error {
	m, err := mg.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if m.AccessCount < mg.accessPromoteThreshold {
		return nil
	}
	return mg.Promote(ctx, id)
}
