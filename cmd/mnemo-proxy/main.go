// Command mnemo-proxy runs the Mnemo HTTP proxy: a transparent passthrough
// that gives LLM clients persistent associative memory without client
// code changes. main loads config, builds the dependency graph by
// hand, starts an *http.Server in a goroutine, and shuts down
// gracefully on SIGINT/SIGTERM.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mnemohq/mnemo/pkg/compaction"
	"github.com/mnemohq/mnemo/pkg/embed"
	"github.com/mnemohq/mnemo/pkg/eviction"
	"github.com/mnemohq/mnemo/pkg/ingestion"
	"github.com/mnemohq/mnemo/pkg/memstore"
	"github.com/mnemohq/mnemo/pkg/mnemo"
	"github.com/mnemohq/mnemo/pkg/proxyserver"
	"github.com/mnemohq/mnemo/pkg/retrieval"
	"github.com/mnemohq/mnemo/pkg/router"
	"github.com/mnemohq/mnemo/pkg/tier"
)

// sweepInterval is how often the background goroutine runs eviction and
// compaction across all tiers.
const sweepInterval = 10 * time.Minute

func main() {
	logger, err := newLogger()
	if err != nil {
		log.Fatalf("mnemo-proxy: logger init: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	cfg, err := mnemo.LoadConfig()
	if err != nil {
		logger.Fatal("config load failed", zap.Error(err))
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("config invalid", zap.Error(err))
	}

	store, err := memstore.NewBadger(memstore.BadgerConfig{
		DataDir:   cfg.DataDir,
		Dimension: cfg.EmbeddingDimension,
	})
	if err != nil {
		logger.Fatal("store open failed", zap.Error(err))
	}
	defer store.Close()

	embedder := newEmbedder(cfg)

	rt, err := router.New()
	if err != nil {
		logger.Fatal("router init failed", zap.Error(err))
	}

	retriever := retrieval.New(store, embedder, rt, retrieval.Config{
		CandidateMultiplier: retrieval.DefaultConfig.CandidateMultiplier,
		WSim:                retrieval.DefaultConfig.WSim,
		WRerank:             retrieval.DefaultConfig.WRerank,
		RelevanceThreshold:  cfg.RelevanceThreshold,
		Weight: retrieval.WeightConfig{
			AccessMultiplier:    cfg.AccessMultiplier,
			DecayRate:           cfg.DecayRate,
			EmotionalMultiplier: cfg.EmotionalMultiplier,
		},
		Deterministic: retrieval.DeterministicConfig{
			Enabled:            cfg.DeterministicEnabled,
			DecimalPlaces:      cfg.DeterministicDecimals,
			TopicOverlapWeight: cfg.TopicOverlapWeight,
		},
	}, logger)

	ingestor := ingestion.New(rt, embedder, store)

	tierMgr := tier.New(store, cfg.AccessPromoteThreshold)

	evictor := eviction.New(store, rt, eviction.Config{
		MaxMemoriesPerTier:  cfg.MaxMemoriesPerTier,
		RecentAccessHours:   float64(cfg.RecentAccessHours),
		MinWeightProtected:  cfg.MinWeightProtected,
		WarningThreshold:    cfg.WarningThreshold,
		EvictionThreshold:   cfg.EvictionThreshold,
		AggressiveThreshold: cfg.AggressiveThreshold,
		EvictionTarget:      eviction.DefaultConfig.EvictionTarget,
		AggressiveTarget:    eviction.DefaultConfig.AggressiveTarget,
		Weight: retrieval.WeightConfig{
			AccessMultiplier:    cfg.AccessMultiplier,
			DecayRate:           cfg.DecayRate,
			EmotionalMultiplier: cfg.EmotionalMultiplier,
		},
	}, logger)

	compactor := compaction.New(store, compaction.Config{
		MinWeightToPreserve: cfg.MinWeightToPreserve,
		SummaryAgeDays:      cfg.SummaryAgeDays,
		KeywordsAgeDays:     cfg.KeywordsAgeDays,
		SummarySentences:    compaction.DefaultConfig.SummarySentences,
		KeywordCount:        compaction.DefaultConfig.KeywordCount,
		MinKeywordLen:       compaction.DefaultConfig.MinKeywordLen,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go runMaintenanceLoop(ctx, store, tierMgr, evictor, compactor, logger)

	srv := proxyserver.New(cfg, retriever, ingestor, &http.Client{Timeout: cfg.Timeout}, logger)

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      srv.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // streaming responses may run long
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("mnemo-proxy listening", zap.String("addr", cfg.ListenAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}

func newLogger() (*zap.Logger, error) {
	if os.Getenv("MNEMO_ENV") == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// newEmbedder picks a concrete Embedder based on which API key is
// present in the environment, falling back to the deterministic local
// embedder so the proxy still runs with no external dependency.
func newEmbedder(cfg *mnemo.Config) embed.Embedder {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return embed.NewOpenAI(key,
			embed.WithDimension(cfg.EmbeddingDimension),
			embed.WithBatchSize(cfg.EmbeddingBatchSize))
	}
	if key := os.Getenv("DASHSCOPE_API_KEY"); key != "" {
		return embed.NewDashScope(key,
			embed.WithDimension(cfg.EmbeddingDimension),
			embed.WithBatchSize(cfg.EmbeddingBatchSize))
	}
	return embed.NewLocal(cfg.EmbeddingDimension)
}

// runMaintenanceLoop periodically evicts and compacts every tier, then
// promotes eligible warm and cold memories. Retriever only updates
// access stats on read and never promotes, so this loop is the only
// place CheckAndPromote runs.
func runMaintenanceLoop(ctx context.Context, store memstore.Store, tierMgr *tier.Manager, evictor *eviction.Evictor, compactor *compaction.Compactor, logger *zap.Logger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	tiers := []mnemo.Tier{mnemo.TierHot, mnemo.TierWarm, mnemo.TierCold}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := mnemo.NowMicro()
			for _, t := range tiers {
				if _, err := evictor.EvictIfNeeded(ctx, t, now); err != nil {
					logger.Warn("eviction sweep failed", zap.String("tier", string(t)), zap.Error(err))
				}
				if _, err := compactor.Compact(ctx, t, now); err != nil {
					logger.Warn("compaction sweep failed", zap.String("tier", string(t)), zap.Error(err))
				}
			}
			promoteEligible(ctx, store, tierMgr, logger)
		}
	}
}

// promoteEligible checks warm and cold memories against the access-count
// promotion threshold. Hot memories have nowhere higher to
// promote to.
func promoteEligible(ctx context.Context, store memstore.Store, tierMgr *tier.Manager, logger *zap.Logger) {
	for _, t := range []mnemo.Tier{mnemo.TierWarm, mnemo.TierCold} {
		memories, err := store.ListByTier(ctx, t)
		if err != nil {
			logger.Warn("promotion sweep: list_by_tier failed", zap.String("tier", string(t)), zap.Error(err))
			continue
		}
		for _, m := range memories {
			if err := tierMgr.CheckAndPromote(ctx, m.ID); err != nil {
				logger.Warn("promotion failed", zap.String("id", m.ID), zap.Error(err))
			}
		}
	}
}
