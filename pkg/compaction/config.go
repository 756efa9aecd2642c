package compaction

// Config parameterizes Compactor.Compact.
type Config struct {
	MinWeightToPreserve float64 // default 0.7
	SummaryAgeDays      int     // default 30
	KeywordsAgeDays     int     // default 90
	HashAgeDays         int     // 0 disables the Hash target
	SummarySentences    int     // number of leading sentences kept, default 2
	KeywordCount        int     // max keywords kept, default 10
	MinKeywordLen       int     // default 4
}

// DefaultConfig is the production default set.
var DefaultConfig = Config{
	MinWeightToPreserve: 0.7,
	SummaryAgeDays:      30,
	KeywordsAgeDays:     90,
	SummarySentences:    2,
	KeywordCount:        10,
	MinKeywordLen:       4,
}
