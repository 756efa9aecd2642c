package memstore

import (
	"context"

	"github.com/mnemohq/mnemo/pkg/mnemo"
)

// Filter narrows search and search_filtered. Predicates conjoin with AND;
// a zero-value field means "no constraint on this predicate".
type Filter struct {
	MemoryTypes    []mnemo.MemoryType
	MinWeight      float64
	CreatedAfter   mnemo.Micro
	ConversationID string
}

func (f Filter) matches(m *mnemo.Memory) bool {
	if len(f.MemoryTypes) > 0 {
		ok := false
		for _, t := range f.MemoryTypes {
			if m.MemoryType == t {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.MinWeight > 0 && m.Weight < f.MinWeight {
		return false
	}
	if !f.CreatedAfter.IsZero() && m.CreatedAt.Before(f.CreatedAfter) {
		return false
	}
	if f.ConversationID != "" && m.ConversationID != f.ConversationID {
		return false
	}
	return true
}

// Store is the contract every Storage backend implements.
type Store interface {
	Insert(ctx context.Context, m *mnemo.Memory) error
	InsertBatch(ctx context.Context, ms []*mnemo.Memory) error
	Get(ctx context.Context, id string) (*mnemo.Memory, error)
	Delete(ctx context.Context, id string) (bool, error)
	UpdateAccess(ctx context.Context, id string, now mnemo.Micro) error
	UpdateTier(ctx context.Context, id string, tier mnemo.Tier) error
	UpdateCompression(ctx context.Context, id string, content string, c mnemo.Compression) error

	Search(ctx context.Context, embedding []float32, limit int) ([]mnemo.Memory, error)
	SearchFiltered(ctx context.Context, embedding []float32, filter Filter, limit int) ([]mnemo.Memory, error)

	ListByTier(ctx context.Context, tier mnemo.Tier) ([]mnemo.Memory, error)
	CountByTier(ctx context.Context, tier mnemo.Tier) (int, error)
	TotalCount(ctx context.Context) (int, error)

	InsertTombstone(ctx context.Context, t *mnemo.Tombstone) error
	GetTombstone(ctx context.Context, originalID string) (*mnemo.Tombstone, error)
	SearchTombstonesByTopic(ctx context.Context, substring string) ([]mnemo.Tombstone, error)
	ListAllTombstones(ctx context.Context) ([]mnemo.Tombstone, error)

	Close() error
}
