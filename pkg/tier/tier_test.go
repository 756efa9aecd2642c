package tier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mnemohq/mnemo/pkg/memstore"
	"github.com/mnemohq/mnemo/pkg/mnemo"
)

func insertAt(t *testing.T, store memstore.Store, id string, tr mnemo.Tier, accessCount int64) {
	t.Helper()
	now := mnemo.NowMicro()
	require.NoError(t, store.Insert(context.Background(), &mnemo.Memory{
		ID: id, Content: "x", MemoryType: mnemo.Semantic, Source: mnemo.SourceManual,
		Tier: tr, Compression: mnemo.CompressionFull, Weight: 0.5,
		CreatedAt: now, LastAccessed: now, AccessCount: accessCount,
	}))
}

func TestMigrate_RejectsWrongCurrentTier(t *testing.T) {
	store := memstore.NewMemory()
	defer store.Close()
	insertAt(t, store, "m1", mnemo.TierHot, 0)
	mgr := New(store, 5)

	err := mgr.Migrate(context.Background(), "m1", mnemo.TierCold, mnemo.TierWarm)
	require.Error(t, err)
}

func TestPromoteDemote_NoopsAtEnds(t *testing.T) {
	store := memstore.NewMemory()
	defer store.Close()
	insertAt(t, store, "hot", mnemo.TierHot, 0)
	insertAt(t, store, "cold", mnemo.TierCold, 0)
	mgr := New(store, 5)

	require.NoError(t, mgr.Promote(context.Background(), "hot"))
	m, _ := store.Get(context.Background(), "hot")
	require.Equal(t, mnemo.TierHot, m.Tier)

	require.NoError(t, mgr.Demote(context.Background(), "cold"))
	m, _ = store.Get(context.Background(), "cold")
	require.Equal(t, mnemo.TierCold, m.Tier)
}

func TestCheckAndPromote_PromotesPastThreshold(t *testing.T) {
	store := memstore.NewMemory()
	defer store.Close()
	insertAt(t, store, "m1", mnemo.TierWarm, 10)
	mgr := New(store, 5)

	require.NoError(t, mgr.CheckAndPromote(context.Background(), "m1"))
	m, _ := store.Get(context.Background(), "m1")
	require.Equal(t, mnemo.TierHot, m.Tier)
}

func TestCheckAndPromote_SkipsBelowThreshold(t *testing.T) {
	store := memstore.NewMemory()
	defer store.Close()
	insertAt(t, store, "m1", mnemo.TierWarm, 1)
	mgr := New(store, 5)

	require.NoError(t, mgr.CheckAndPromote(context.Background(), "m1"))
	m, _ := store.Get(context.Background(), "m1")
	require.Equal(t, mnemo.TierWarm, m.Tier)
}
