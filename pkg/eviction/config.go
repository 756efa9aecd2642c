package eviction

import "github.com/mnemohq/mnemo/pkg/retrieval"

// Status classifies how close a tier is to its capacity limit.
type Status int

const (
	Normal Status = iota
	Warning
	EvictionNeeded
	AggressiveEvictionNeeded
)

// Config parameterizes Evictor.EvictIfNeeded.
type Config struct {
	MaxMemoriesPerTier int

	RecentAccessHours  float64 // default 24
	MinWeightProtected float64 // default 0.7

	WarningThreshold    float64 // default 0.70
	EvictionThreshold   float64 // default 0.80
	AggressiveThreshold float64 // default 0.95

	// EvictionTarget / AggressiveTarget are the fraction of capacity to
	// return to once eviction runs (default 0.75 / 0.70).
	EvictionTarget    float64
	AggressiveTarget  float64

	Weight retrieval.WeightConfig
}

// DefaultConfig is the production default set.
var DefaultConfig = Config{
	RecentAccessHours:   24,
	MinWeightProtected:  0.7,
	WarningThreshold:    0.70,
	EvictionThreshold:   0.80,
	AggressiveThreshold: 0.95,
	EvictionTarget:      0.75,
	AggressiveTarget:    0.70,
	Weight:              retrieval.DefaultWeightConfig,
}

// capacityStatus classifies count/max against cfg's thresholds.
func (cfg Config) capacityStatus(count int) Status {
	if cfg.MaxMemoriesPerTier <= 0 {
		return Normal
	}
	ratio := float64(count) / float64(cfg.MaxMemoriesPerTier)
	switch {
	case ratio >= cfg.AggressiveThreshold:
		return AggressiveEvictionNeeded
	case ratio >= cfg.EvictionThreshold:
		return EvictionNeeded
	case ratio >= cfg.WarningThreshold:
		return Warning
	default:
		return Normal
	}
}

// targetCount returns the count to evict down to for a given status.
func (cfg Config) targetCount(status Status) int {
	switch status {
	case AggressiveEvictionNeeded:
		return int(cfg.AggressiveTarget * float64(cfg.MaxMemoriesPerTier))
	case EvictionNeeded:
		return int(cfg.EvictionTarget * float64(cfg.MaxMemoriesPerTier))
	default:
		return cfg.MaxMemoriesPerTier
	}
}
