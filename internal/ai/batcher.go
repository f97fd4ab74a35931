package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/chitragupta/khata/internal/common"
	"github.com/chitragupta/khata/internal/matcher"
	"github.com/chitragupta/khata/internal/model"
	"github.com/chitragupta/khata/internal/service"
)

// BatcherConfig holds the batching thresholds.
type BatcherConfig struct {
	Retry service.RetryOptions
	// MinBatch is the minimum number of uncategorized transactions (before
	// and after deduplication) worth spending provider quota on.
	MinBatch int
	// ChunkSize bounds each provider call.
	ChunkSize int
	// MinFraction is the minimum share of the original batch that must be
	// uncategorized before the provider is consulted.
	MinFraction float64
}

// DefaultBatcherConfig returns the default thresholds.
func DefaultBatcherConfig() BatcherConfig {
	return BatcherConfig{
		MinBatch:    5,
		ChunkSize:   50,
		MinFraction: 0.20,
		Retry: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Multiplier:   2.0,
		},
	}
}

// Leftover pairs a still-uncategorized transaction with its position in the
// original batch.
type Leftover struct {
	Txn   model.Transaction
	Index int
}

// Batcher runs the provider fallback: cache lookup, quota gate, usage
// thresholds, deduplication, chunking, sequential invocation, and result
// propagation. Failures degrade silently; the caller keeps its rule results
// for anything the batcher does not return.
type Batcher struct {
	client Client
	cache  *ResultCache
	usage  *UsageTracker
	cfg    BatcherConfig
}

// NewBatcher creates a batcher. client may be nil, which disables the
// provider tier entirely (cache lookups still work).
func NewBatcher(client Client, cache *ResultCache, usage *UsageTracker, cfg BatcherConfig) *Batcher {
	return &Batcher{client: client, cache: cache, usage: usage, cfg: cfg}
}

// Classify resolves leftovers via cache and provider, returning results
// keyed by original batch position. Positions absent from the map keep their
// rule-based fallback.
func (b *Batcher) Classify(ctx context.Context, userID string, leftovers []Leftover, catalog []model.Category, batchSize int) map[int]model.Result {
	results := make(map[int]model.Result)

	// Cache lookup first: cached results cost nothing and apply even when the
	// batch is too small for a provider call.
	var remaining []Leftover
	for _, l := range leftovers {
		if cached, ok := b.cache.Get(l.Txn); ok {
			results[l.Index] = cached
			continue
		}
		remaining = append(remaining, l)
	}

	if len(remaining) == 0 || b.client == nil {
		return results
	}

	if b.usage.AIExhausted(userID) {
		slog.Info("Keeping rule results", "user_id", userID, "error", common.ErrQuotaExhausted)
		return results
	}

	// Small or sparse leftovers are not worth provider quota.
	if len(remaining) < b.cfg.MinBatch || float64(len(remaining)) < b.cfg.MinFraction*float64(batchSize) {
		slog.Debug("Leftovers below provider thresholds",
			"remaining", len(remaining),
			"batch_size", batchSize)
		return results
	}

	groups, order := b.deduplicate(remaining)
	if len(order) < b.cfg.MinBatch {
		slog.Debug("Too few distinct transactions after deduplication", "distinct", len(order))
		return results
	}

	// Chunks carry a single direction each, so the prompt can present the
	// right slice of the catalog.
	byDirection := make(map[model.FinancialCategory][]string)
	for _, key := range order {
		direction := groups[key][0].Txn.FinancialCategory
		byDirection[direction] = append(byDirection[direction], key)
	}

	for direction, keys := range byDirection {
		directionCatalog := categoriesFor(catalog, direction)
		for start := 0; start < len(keys); start += b.cfg.ChunkSize {
			end := start + b.cfg.ChunkSize
			if end > len(keys) {
				end = len(keys)
			}
			if !b.classifyChunk(ctx, userID, keys[start:end], groups, directionCatalog, results) {
				return results
			}
		}
	}

	return results
}

// classifyChunk sends one provider call and propagates its suggestions.
// Returns false when the provider tier should stop for this batch (quota).
func (b *Batcher) classifyChunk(ctx context.Context, userID string, keys []string, groups map[string][]Leftover, catalog []model.Category, results map[int]model.Result) bool {
	if !b.usage.AllowAI(userID) {
		slog.Info("Daily provider quota reached mid-batch", "user_id", userID, "error", common.ErrQuotaExhausted)
		return false
	}

	txns := make([]model.Transaction, len(keys))
	for i, key := range keys {
		txns[i] = groups[key][0].Txn
	}

	prompt := BuildPrompt(catalog, txns)

	var content string
	err := common.WithRetry(ctx, func() error {
		var callErr error
		content, callErr = b.client.Complete(ctx, prompt)
		if callErr != nil {
			return &common.RetryableError{Err: callErr, Retryable: !errors.Is(callErr, common.ErrRateLimit)}
		}
		return nil
	}, b.cfg.Retry)
	if err != nil {
		if errors.Is(err, common.ErrRateLimit) {
			slog.Warn("Provider signaled quota exhaustion", "user_id", userID)
			return false
		}
		// This chunk falls back to rules; later chunks may still succeed.
		slog.Warn("Provider call failed, chunk falls back to rules", "error", err)
		return true
	}

	suggestions, err := ParseBatchResponse(content, len(txns))
	if err != nil {
		slog.Warn("Unparsable provider response, chunk falls back to rules", "error", err)
		return true
	}

	for _, s := range suggestions {
		category := matcher.Match(s.CategoryName, catalog)
		if category == nil {
			// Never invent a category id for an unmatched suggestion.
			slog.Debug("Discarding unmatched provider suggestion", "category", s.CategoryName)
			continue
		}

		id := category.ID
		result := model.Result{
			CategoryID:   &id,
			CategoryName: category.Name,
			Confidence:   s.Confidence,
			Source:       model.SourceAI,
			Reasoning:    s.Reasoning,
		}

		// Every duplicate of the sent transaction receives the same result.
		for _, l := range groups[keys[s.Index-1]] {
			results[l.Index] = result
			b.cache.Put(l.Txn, result)
		}
	}

	return true
}

// deduplicate collapses leftovers sharing a normalized (description, store,
// amount-rounded-to-10) key, keeping the mapping back to every original
// duplicate. order preserves first-seen sequence for deterministic chunking.
func (b *Batcher) deduplicate(leftovers []Leftover) (map[string][]Leftover, []string) {
	groups := make(map[string][]Leftover)
	var order []string

	for _, l := range leftovers {
		key := fmt.Sprintf("%s|%s|%d",
			normalize(l.Txn.Description),
			normalize(l.Txn.Store),
			int(math.Round(l.Txn.Amount/10)))
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], l)
	}

	return groups, order
}

// categoriesFor filters the catalog by transaction direction. System
// categories (transfers) are always included.
func categoriesFor(catalog []model.Category, direction model.FinancialCategory) []model.Category {
	var want model.CategoryType
	switch direction {
	case model.FinancialIncome:
		want = model.CategoryTypeIncome
	case model.FinancialExpense, model.FinancialInvestment:
		want = model.CategoryTypeExpense
	default:
		return catalog
	}

	filtered := make([]model.Category, 0, len(catalog))
	for _, cat := range catalog {
		if cat.Type == want || cat.Type == model.CategoryTypeSystem || cat.Type == "" {
			filtered = append(filtered, cat)
		}
	}
	if len(filtered) == 0 {
		return catalog
	}
	return filtered
}
