package compaction

import (
	"context"
	"sort"
	"strings"

	"github.com/orsinium-labs/stopwords"

	"github.com/mnemohq/mnemo/pkg/memstore"
	"github.com/mnemohq/mnemo/pkg/mnemo"
)

// archivalMarker replaces content at the Hash compression level.
const archivalMarker = "[mnemo: content archived]"

// Result reports what Compact did.
type Result struct {
	Compacted         int
	SkippedHighWeight int
	AlreadyCompressed int
	IDs               []string
}

// Compactor walks a tier and downgrades the content of memories that
// have aged past their compression level.
type Compactor struct {
	store memstore.Store
	cfg   Config
	stop  *stopwords.Stopwords
}

// New builds a Compactor.
func New(store memstore.Store, cfg Config) *Compactor {
	if cfg.SummarySentences <= 0 {
		cfg.SummarySentences = DefaultConfig.SummarySentences
	}
	if cfg.KeywordCount <= 0 {
		cfg.KeywordCount = DefaultConfig.KeywordCount
	}
	if cfg.MinKeywordLen <= 0 {
		cfg.MinKeywordLen = DefaultConfig.MinKeywordLen
	}
	if cfg.MinWeightToPreserve == 0 {
		cfg.MinWeightToPreserve = DefaultConfig.MinWeightToPreserve
	}
	if cfg.SummaryAgeDays == 0 {
		cfg.SummaryAgeDays = DefaultConfig.SummaryAgeDays
	}
	if cfg.KeywordsAgeDays == 0 {
		cfg.KeywordsAgeDays = DefaultConfig.KeywordsAgeDays
	}
	return &Compactor{store: store, cfg: cfg, stop: stopwords.MustGet("en")}
}

// Compact walks every Memory in tier and downgrades compression for
// those whose age has outrun their current level, skipping memories
// protected by weight or already at/past their target.
// Compact is idempotent: running it again on an already-compacted tier
// reports zero compacted.
func (c *Compactor) Compact(ctx context.Context, tier mnemo.Tier, now mnemo.Micro) (Result, error) {
	memories, err := c.store.ListByTier(ctx, tier)
	if err != nil {
		return Result{}, mnemo.Wrap(mnemo.KindStorage, "compact: list_by_tier", err)
	}

	var res Result
	for i := range memories {
		m := &memories[i]
		if m.Weight >= c.cfg.MinWeightToPreserve {
			res.SkippedHighWeight++
			continue
		}

		target, ok := c.targetFor(m, now)
		if !ok {
			continue
		}
		if target.Rank() <= m.Compression.Rank() {
			res.AlreadyCompressed++
			continue
		}

		newContent := c.render(m.Content, target)
		if err := c.store.UpdateCompression(ctx, m.ID, newContent, target); err != nil {
			return res, mnemo.Wrap(mnemo.KindStorage, "compact: update_compression", err)
		}
		res.Compacted++
		res.IDs = append(res.IDs, m.ID)
	}
	return res, nil
}

// targetFor returns the compression level the memory's age has earned,
// and whether it earned any target at all.
func (c *Compactor) targetFor(m *mnemo.Memory, now mnemo.Micro) (mnemo.Compression, bool) {
	ageDays := now.Sub(m.CreatedAt).Hours() / 24
	if c.cfg.HashAgeDays > 0 && ageDays >= float64(c.cfg.HashAgeDays) {
		return mnemo.CompressionHash, true
	}
	if ageDays >= float64(c.cfg.KeywordsAgeDays) {
		return mnemo.CompressionKeywords, true
	}
	if ageDays >= float64(c.cfg.SummaryAgeDays) {
		return mnemo.CompressionSummary, true
	}
	return "", false
}

func (c *Compactor) render(content string, target mnemo.Compression) string {
	switch target {
	case mnemo.CompressionSummary:
		return summarize(content, c.cfg.SummarySentences)
	case mnemo.CompressionKeywords:
		return strings.Join(c.keywords(content), " ")
	case mnemo.CompressionHash:
		return archivalMarker
	default:
		return content
	}
}

// summarize keeps the first n sentences, split on . ! or ?.
func summarize(content string, n int) string {
	sentences := splitSentences(content)
	if len(sentences) > n {
		sentences = sentences[:n]
	}
	return strings.Join(sentences, " ")
}

func splitSentences(content string) []string {
	var out []string
	start := 0
	for i, r := range content {
		if r == '.' || r == '!' || r == '?' {
			s := strings.TrimSpace(content[start : i+1])
			if s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if rest := strings.TrimSpace(content[start:]); rest != "" {
		out = append(out, rest)
	}
	return out
}

// keywords returns unique, lowercased, stopword-filtered words of at
// least MinKeywordLen characters, up to KeywordCount, ordered by
// descending frequency then alphabetically.
func (c *Compactor) keywords(content string) []string {
	counts := make(map[string]int)
	for _, w := range strings.Fields(strings.ToLower(content)) {
		w = strings.Trim(w, ".,!?;:\"'()[]{}")
		if len([]rune(w)) < c.cfg.MinKeywordLen {
			continue
		}
		if c.stop.Contains(w) {
			continue
		}
		counts[w]++
	}

	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > c.cfg.KeywordCount {
		words = words[:c.cfg.KeywordCount]
	}
	return words
}
