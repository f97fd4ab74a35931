package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chitragupta/khata/internal/common"
	"github.com/chitragupta/khata/internal/model"
	"github.com/chitragupta/khata/internal/service"
)

func testBatcherConfig() BatcherConfig {
	cfg := DefaultBatcherConfig()
	cfg.Retry = service.RetryOptions{
		MaxAttempts:  1,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
		Multiplier:   1,
	}
	return cfg
}

func batchCatalog() []model.Category {
	return []model.Category{
		{ID: 1, Name: "Groceries", Type: model.CategoryTypeExpense},
		{ID: 2, Name: "Shopping", Type: model.CategoryTypeExpense},
		{ID: 3, Name: "Salary", Type: model.CategoryTypeIncome},
		{ID: 4, Name: "Transfer", Type: model.CategoryTypeSystem},
	}
}

func expenseLeftovers(n int) []Leftover {
	leftovers := make([]Leftover, n)
	for i := 0; i < n; i++ {
		leftovers[i] = Leftover{
			Index: i,
			Txn: model.Transaction{
				Description:       fmt.Sprintf("unknown merchant %d", i),
				Amount:            float64(100 + i*100),
				FinancialCategory: model.FinancialExpense,
			},
		}
	}
	return leftovers
}

func suggestionArray(n int, category string) string {
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = fmt.Sprintf(`{"index":%d,"category":%q,"confidence":0.8,"reasoning":"looks right"}`, i+1, category)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func TestBatcher_ClassifiesLeftovers(t *testing.T) {
	client := &MockClient{Responses: []string{suggestionArray(5, "Shopping")}}
	b := NewBatcher(client, NewResultCache(0, 0), NewUsageTracker(0, 0, 0), testBatcherConfig())

	results := b.Classify(context.Background(), "user-1", expenseLeftovers(5), batchCatalog(), 10)

	require.Len(t, results, 5)
	assert.Equal(t, 1, client.CallCount())
	for i := 0; i < 5; i++ {
		res := results[i]
		assert.Equal(t, "Shopping", res.CategoryName)
		assert.Equal(t, model.SourceAI, res.Source)
		require.NotNil(t, res.CategoryID)
		assert.Equal(t, int64(2), *res.CategoryID)
	}
}

func TestBatcher_SkipsSmallBatches(t *testing.T) {
	client := &MockClient{}
	b := NewBatcher(client, NewResultCache(0, 0), NewUsageTracker(0, 0, 0), testBatcherConfig())

	results := b.Classify(context.Background(), "user-1", expenseLeftovers(4), batchCatalog(), 10)

	assert.Empty(t, results)
	assert.Zero(t, client.CallCount(), "below MinBatch the provider is never called")
}

func TestBatcher_SkipsSparseLeftovers(t *testing.T) {
	client := &MockClient{}
	b := NewBatcher(client, NewResultCache(0, 0), NewUsageTracker(0, 0, 0), testBatcherConfig())

	// 5 leftovers out of 100 is below the 20% floor.
	results := b.Classify(context.Background(), "user-1", expenseLeftovers(5), batchCatalog(), 100)

	assert.Empty(t, results)
	assert.Zero(t, client.CallCount())
}

func TestBatcher_CacheHitsSkipProvider(t *testing.T) {
	client := &MockClient{}
	cache := NewResultCache(0, 0)
	leftovers := expenseLeftovers(5)
	for _, l := range leftovers {
		cache.Put(l.Txn, aiResult("Groceries"))
	}

	b := NewBatcher(client, cache, NewUsageTracker(0, 0, 0), testBatcherConfig())
	results := b.Classify(context.Background(), "user-1", leftovers, batchCatalog(), 10)

	assert.Len(t, results, 5)
	assert.Zero(t, client.CallCount(), "fully cached batch never reaches the provider")
}

func TestBatcher_QuotaExhaustedKeepsRuleResults(t *testing.T) {
	client := &MockClient{}
	usage := NewUsageTracker(1, 0, time.Hour)
	usage.AllowAI("user-1") // spend the single call

	b := NewBatcher(client, NewResultCache(0, 0), usage, testBatcherConfig())
	results := b.Classify(context.Background(), "user-1", expenseLeftovers(5), batchCatalog(), 10)

	assert.Empty(t, results)
	assert.Zero(t, client.CallCount())
}

func TestBatcher_NilClientDisablesProvider(t *testing.T) {
	cache := NewResultCache(0, 0)
	leftovers := expenseLeftovers(5)
	cache.Put(leftovers[0].Txn, aiResult("Groceries"))

	b := NewBatcher(nil, cache, NewUsageTracker(0, 0, 0), testBatcherConfig())
	results := b.Classify(context.Background(), "user-1", leftovers, batchCatalog(), 10)

	assert.Len(t, results, 1, "cache lookups still work without a provider")
}

func TestBatcher_DuplicatesShareOneSuggestion(t *testing.T) {
	client := &MockClient{Responses: []string{suggestionArray(1, "Groceries")}}

	// Five copies of the same transaction deduplicate to one distinct key,
	// which is below MinBatch, so lower the floor for this test.
	cfg := testBatcherConfig()
	cfg.MinBatch = 1
	b := NewBatcher(client, NewResultCache(0, 0), NewUsageTracker(0, 0, 0), cfg)

	leftovers := make([]Leftover, 5)
	for i := range leftovers {
		leftovers[i] = Leftover{
			Index: i,
			Txn: model.Transaction{
				Description:       "DMart weekly shop",
				Store:             "DMart",
				Amount:            1500,
				FinancialCategory: model.FinancialExpense,
			},
		}
	}

	results := b.Classify(context.Background(), "user-1", leftovers, batchCatalog(), 5)

	require.Len(t, results, 5, "every duplicate receives the shared result")
	assert.Equal(t, 1, client.CallCount(), "one provider call for five duplicates")
	for i := 0; i < 5; i++ {
		assert.Equal(t, "Groceries", results[i].CategoryName)
	}
}

func TestBatcher_ProviderErrorFallsBackSilently(t *testing.T) {
	client := &MockClient{Err: errors.New("upstream down")}
	b := NewBatcher(client, NewResultCache(0, 0), NewUsageTracker(0, 0, 0), testBatcherConfig())

	results := b.Classify(context.Background(), "user-1", expenseLeftovers(5), batchCatalog(), 10)

	assert.Empty(t, results, "failed chunk keeps its rule results")
	assert.Equal(t, 1, client.CallCount())
}

func TestBatcher_RateLimitStopsBatch(t *testing.T) {
	client := &MockClient{Err: fmt.Errorf("provider: %w", common.ErrRateLimit)}
	cfg := testBatcherConfig()
	cfg.ChunkSize = 3 // force multiple chunks

	b := NewBatcher(client, NewResultCache(0, 0), NewUsageTracker(0, 0, 0), cfg)
	results := b.Classify(context.Background(), "user-1", expenseLeftovers(6), batchCatalog(), 10)

	assert.Empty(t, results)
	assert.Equal(t, 1, client.CallCount(), "rate limit stops the remaining chunks")
}

func TestBatcher_UnmatchedCategoryDiscarded(t *testing.T) {
	client := &MockClient{Responses: []string{suggestionArray(5, "Quantum Widgets")}}
	b := NewBatcher(client, NewResultCache(0, 0), NewUsageTracker(0, 0, 0), testBatcherConfig())

	results := b.Classify(context.Background(), "user-1", expenseLeftovers(5), batchCatalog(), 10)

	assert.Empty(t, results, "suggestions that match no catalog entry are dropped")
}

func TestBatcher_PromptUsesDirectionCatalog(t *testing.T) {
	client := &MockClient{Responses: []string{suggestionArray(5, "Shopping")}}
	b := NewBatcher(client, NewResultCache(0, 0), NewUsageTracker(0, 0, 0), testBatcherConfig())

	b.Classify(context.Background(), "user-1", expenseLeftovers(5), batchCatalog(), 10)

	require.Len(t, client.Prompts, 1)
	assert.Contains(t, client.Prompts[0], "Groceries")
	assert.Contains(t, client.Prompts[0], "Transfer", "system categories ride along")
	assert.NotContains(t, client.Prompts[0], "Salary", "income categories stay out of expense prompts")
}
