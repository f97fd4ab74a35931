// Package config provides configuration loading for the khata CLI.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/chitragupta/khata/internal/common"
)

// Config is the full application configuration, populated from viper after
// defaults, config file, environment, and flags have been merged.
type Config struct {
	Database   DatabaseConfig
	Logging    LoggingConfig
	AI         AIConfig
	Thresholds ThresholdConfig
	Quotas     QuotaConfig
	Cache      CacheConfig
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string
}

// LoggingConfig holds slog settings.
type LoggingConfig struct {
	Level  string
	Format string
}

// AIConfig holds the fallback provider settings.
type AIConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
}

// ThresholdConfig holds the tunable confidence floors and amount bounds.
type ThresholdConfig struct {
	LargeAmount           float64
	EMIMinAmount          float64
	SmallAmount           float64
	AmountTolerance       float64
	AutoPayTolerance      float64
	MinStoreConfidence    float64
	MinPersonConfidence   float64
	UPIOverride           float64
	PersonOverride        float64
	MerchantMinConfidence float64
}

// QuotaConfig holds the daily call budgets.
type QuotaConfig struct {
	AIDaily             int
	MerchantLookupDaily int
}

// CacheConfig holds cache sizing.
type CacheConfig struct {
	PatternTTL    time.Duration
	AIResultTTL   time.Duration
	AIResultLimit int
}

// SetDefaults registers every configuration default on the given viper
// instance. Called once before the config file and environment are read so
// unset keys resolve to the documented values.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "~/.local/share/khata/khata.db")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.base_url", "https://api.openai.com/v1")
	v.SetDefault("ai.temperature", 0.2)
	v.SetDefault("ai.max_tokens", 2000)

	v.SetDefault("thresholds.large_amount", 50000.0)
	v.SetDefault("thresholds.emi_min_amount", 5000.0)
	v.SetDefault("thresholds.small_amount", 10.0)
	v.SetDefault("thresholds.amount_tolerance", 0.10)
	v.SetDefault("thresholds.autopay_tolerance", 0.05)
	v.SetDefault("thresholds.min_store_confidence", 0.5)
	v.SetDefault("thresholds.min_person_confidence", 0.6)
	v.SetDefault("thresholds.upi_override_confidence", 0.85)
	v.SetDefault("thresholds.person_override_confidence", 0.90)
	v.SetDefault("thresholds.merchant_min_confidence", 0.8)

	v.SetDefault("quotas.ai_daily", 100)
	v.SetDefault("quotas.merchant_lookup_daily", 50)

	v.SetDefault("cache.pattern_ttl", 5*time.Minute)
	v.SetDefault("cache.ai_result_ttl", 24*time.Hour)
	v.SetDefault("cache.ai_result_limit", 1000)
}

// Load reads the merged configuration out of viper and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			Path: ExpandPath(v.GetString("database.path")),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
		AI: AIConfig{
			APIKey:      v.GetString("ai.api_key"),
			Model:       v.GetString("ai.model"),
			BaseURL:     v.GetString("ai.base_url"),
			Temperature: v.GetFloat64("ai.temperature"),
			MaxTokens:   v.GetInt("ai.max_tokens"),
		},
		Thresholds: ThresholdConfig{
			LargeAmount:           v.GetFloat64("thresholds.large_amount"),
			EMIMinAmount:          v.GetFloat64("thresholds.emi_min_amount"),
			SmallAmount:           v.GetFloat64("thresholds.small_amount"),
			AmountTolerance:       v.GetFloat64("thresholds.amount_tolerance"),
			AutoPayTolerance:      v.GetFloat64("thresholds.autopay_tolerance"),
			MinStoreConfidence:    v.GetFloat64("thresholds.min_store_confidence"),
			MinPersonConfidence:   v.GetFloat64("thresholds.min_person_confidence"),
			UPIOverride:           v.GetFloat64("thresholds.upi_override_confidence"),
			PersonOverride:        v.GetFloat64("thresholds.person_override_confidence"),
			MerchantMinConfidence: v.GetFloat64("thresholds.merchant_min_confidence"),
		},
		Quotas: QuotaConfig{
			AIDaily:             v.GetInt("quotas.ai_daily"),
			MerchantLookupDaily: v.GetInt("quotas.merchant_lookup_daily"),
		},
		Cache: CacheConfig{
			PatternTTL:    v.GetDuration("cache.pattern_ttl"),
			AIResultTTL:   v.GetDuration("cache.ai_result_ttl"),
			AIResultLimit: v.GetInt("cache.ai_result_limit"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path: %w", common.ErrMissingConfig)
	}
	if c.Thresholds.AmountTolerance < 0 || c.Thresholds.AmountTolerance > 1 {
		return fmt.Errorf("thresholds.amount_tolerance must be in [0, 1]: %w", common.ErrInvalidConfig)
	}
	if c.Thresholds.AutoPayTolerance < 0 || c.Thresholds.AutoPayTolerance > 1 {
		return fmt.Errorf("thresholds.autopay_tolerance must be in [0, 1]: %w", common.ErrInvalidConfig)
	}
	for key, floor := range map[string]float64{
		"thresholds.min_store_confidence":       c.Thresholds.MinStoreConfidence,
		"thresholds.min_person_confidence":      c.Thresholds.MinPersonConfidence,
		"thresholds.upi_override_confidence":    c.Thresholds.UPIOverride,
		"thresholds.person_override_confidence": c.Thresholds.PersonOverride,
		"thresholds.merchant_min_confidence":    c.Thresholds.MerchantMinConfidence,
	} {
		if floor < 0 || floor > 1 {
			return fmt.Errorf("%s must be in [0, 1]: %w", key, common.ErrInvalidConfig)
		}
	}
	if c.Quotas.AIDaily < 0 || c.Quotas.MerchantLookupDaily < 0 {
		return fmt.Errorf("quotas must be non-negative: %w", common.ErrInvalidConfig)
	}
	if c.Cache.AIResultLimit <= 0 {
		return fmt.Errorf("cache.ai_result_limit must be positive: %w", common.ErrInvalidConfig)
	}
	return nil
}
