package ai

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chitragupta/khata/internal/model"
)

func aiResult(category string) model.Result {
	id := int64(1)
	return model.Result{
		CategoryID:   &id,
		CategoryName: category,
		Confidence:   0.8,
		Source:       model.SourceAI,
	}
}

func TestResultCache_ExactHit(t *testing.T) {
	cache := NewResultCache(0, 0)

	txn := model.Transaction{
		Description:       "Swiggy order",
		Store:             "Swiggy",
		Amount:            340,
		FinancialCategory: model.FinancialExpense,
	}
	cache.Put(txn, aiResult("Food & Dining"))

	got, ok := cache.Get(txn)
	require.True(t, ok)
	assert.Equal(t, "Food & Dining", got.CategoryName)
}

func TestResultCache_SimilarityHit(t *testing.T) {
	cache := NewResultCache(0, 0)

	cache.Put(model.Transaction{
		Description:       "Swiggy order",
		Store:             "Swiggy",
		Amount:            340,
		FinancialCategory: model.FinancialExpense,
	}, aiResult("Food & Dining"))

	// Same description and store, amount within 5%: 0.4 + 0.3 + 0.2 = 0.9.
	got, ok := cache.Get(model.Transaction{
		Description:       "Swiggy order",
		Store:             "Swiggy",
		Amount:            350,
		FinancialCategory: model.FinancialExpense,
	})
	require.True(t, ok)
	assert.Equal(t, "Food & Dining", got.CategoryName)
}

func TestResultCache_BelowThresholdMisses(t *testing.T) {
	cache := NewResultCache(0, 0)

	cache.Put(model.Transaction{
		Description:       "Swiggy order",
		Store:             "Swiggy",
		Amount:            340,
		FinancialCategory: model.FinancialExpense,
	}, aiResult("Food & Dining"))

	// Only the store matches (0.3): far below the 0.85 threshold.
	_, ok := cache.Get(model.Transaction{
		Description:       "completely different",
		Store:             "Swiggy",
		Amount:            9999,
		FinancialCategory: model.FinancialExpense,
	})
	assert.False(t, ok)
}

func TestResultCache_TTLExpiry(t *testing.T) {
	cache := NewResultCache(10*time.Millisecond, 0)

	txn := model.Transaction{Description: "order", Amount: 100, FinancialCategory: model.FinancialExpense}
	cache.Put(txn, aiResult("Shopping"))

	time.Sleep(20 * time.Millisecond)
	_, ok := cache.Get(txn)
	assert.False(t, ok)
}

func TestResultCache_EvictsOldestAtCap(t *testing.T) {
	cache := NewResultCache(0, 10)

	for i := 0; i < 11; i++ {
		cache.Put(model.Transaction{
			Description:       fmt.Sprintf("unique transaction %d", i),
			Amount:            float64(1000 + i*100),
			FinancialCategory: model.FinancialExpense,
		}, aiResult("Shopping"))
		time.Sleep(time.Millisecond)
	}

	assert.Equal(t, 10, cache.Size())

	// The first entry was the oldest and should be gone.
	_, ok := cache.Get(model.Transaction{
		Description:       "unique transaction 0",
		Amount:            1000,
		FinancialCategory: model.FinancialExpense,
	})
	assert.False(t, ok)

	_, ok = cache.Get(model.Transaction{
		Description:       "unique transaction 10",
		Amount:            2000,
		FinancialCategory: model.FinancialExpense,
	})
	assert.True(t, ok)
}
