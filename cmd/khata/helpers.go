package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/viper"

	"github.com/chitragupta/khata/internal/ai"
	"github.com/chitragupta/khata/internal/config"
	"github.com/chitragupta/khata/internal/engine"
	"github.com/chitragupta/khata/internal/patterns"
	"github.com/chitragupta/khata/internal/recurring"
	"github.com/chitragupta/khata/internal/rules"
	"github.com/chitragupta/khata/internal/storage"
)

// openStorage loads config, opens the database, and runs migrations.
// The caller owns Close on the returned storage.
func openStorage(ctx context.Context) (*storage.SQLiteStorage, *config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	db, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, cfg, nil
}

// buildEngine wires the full classification pipeline from config. The AI
// tier is only attached when an API key is configured.
func buildEngine(db *storage.SQLiteStorage, cfg *config.Config) (*engine.Engine, error) {
	ruleCfg := rules.DefaultConfig()
	ruleCfg.LargeAmount = cfg.Thresholds.LargeAmount
	ruleCfg.EMIMinAmount = cfg.Thresholds.EMIMinAmount
	ruleCfg.SmallAmount = cfg.Thresholds.SmallAmount
	ruleCfg.AmountTolerance = cfg.Thresholds.AmountTolerance

	detectorCfg := recurring.DefaultConfig()
	detectorCfg.AmountTolerance = cfg.Thresholds.AmountTolerance
	detectorCfg.AutoPayTolerance = cfg.Thresholds.AutoPayTolerance

	learnerCfg := patterns.DefaultConfig()
	learnerCfg.MinStoreConfidence = cfg.Thresholds.MinStoreConfidence
	learnerCfg.MinPersonConfidence = cfg.Thresholds.MinPersonConfidence

	usage := ai.NewUsageTracker(cfg.Quotas.AIDaily, cfg.Quotas.MerchantLookupDaily, 0)

	var client ai.Client
	if cfg.AI.APIKey != "" {
		var err error
		client, err = ai.NewOpenAIClient(ai.ClientConfig{
			APIKey:      cfg.AI.APIKey,
			Model:       cfg.AI.Model,
			BaseURL:     cfg.AI.BaseURL,
			Temperature: cfg.AI.Temperature,
			MaxTokens:   cfg.AI.MaxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create AI client: %w", err)
		}
	} else {
		slog.Info("No AI API key configured, AI fallback disabled")
	}

	cache := ai.NewResultCache(cfg.Cache.AIResultTTL, cfg.Cache.AIResultLimit)
	batcher := ai.NewBatcher(client, cache, usage, ai.DefaultBatcherConfig())

	engineCfg := engine.DefaultConfig()
	engineCfg.UPIOverrideConfidence = cfg.Thresholds.UPIOverride
	engineCfg.PersonOverrideConfidence = cfg.Thresholds.PersonOverride
	engineCfg.MerchantLookupMinConfidence = cfg.Thresholds.MerchantMinConfidence

	return engine.NewWithConfig(engine.Deps{
		Categories:   db,
		History:      db,
		Classifier:   rules.NewClassifier(db, ruleCfg),
		Learner:      patterns.NewLearner(db, learnerCfg),
		PatternCache: patterns.NewCache(cfg.Cache.PatternTTL),
		Detector:     recurring.NewDetector(db, detectorCfg),
		Batcher:      batcher,
		Usage:        usage,
	}, engineCfg), nil
}
