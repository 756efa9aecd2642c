package retrieval

// WeightConfig parameterizes calculate_effective_weight.
// Owner and association multipliers are accepted for forward
// compatibility but have no effect in v1.
type WeightConfig struct {
	AccessMultiplier      float64
	DecayRate             float64
	EmotionalMultiplier   float64
	OwnerMultiplier       float64
	AssociationMultiplier float64
}

// DefaultWeightConfig is the production default set.
var DefaultWeightConfig = WeightConfig{
	AccessMultiplier:    0.1,
	DecayRate:           0.01,
	EmotionalMultiplier: 0.1,
}

// DeterministicConfig controls the optional quantized, totally-ordered
// ranking mode.
type DeterministicConfig struct {
	Enabled            bool
	DecimalPlaces      int // 1..4
	TopicOverlapWeight float64
}

// Config parameterizes a Retriever.
type Config struct {
	// CandidateMultiplier sizes the ANN candidate set as
	// CandidateMultiplier * limit. Default 3.
	CandidateMultiplier int
	// WSim and WRerank weight similarity vs. effective weight in the
	// base score. Defaults 0.7 / 0.3.
	WSim    float64
	WRerank float64

	// RelevanceThreshold drops candidates whose cosine similarity falls
	// below it before reranking. 0 keeps everything.
	RelevanceThreshold float64

	Weight        WeightConfig
	Deterministic DeterministicConfig
}

// DefaultConfig is the production default set.
var DefaultConfig = Config{
	CandidateMultiplier: 3,
	WSim:                0.7,
	WRerank:             0.3,
	Weight:              DefaultWeightConfig,
}
