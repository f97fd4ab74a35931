// Package service defines the interfaces for the engine's collaborators.
package service

import (
	"context"
	"time"

	"github.com/chitragupta/khata/internal/model"
)

// CategoryStore reads a user's category catalog (user-owned plus defaults).
type CategoryStore interface {
	// ListCategories returns the categories visible to the user for a
	// transaction direction. FinancialOther returns the full catalog.
	ListCategories(ctx context.Context, userID string, direction model.FinancialCategory) ([]model.Category, error)
	// GetCategoryByName resolves a single category by exact name.
	GetCategoryByName(ctx context.Context, userID, name string) (*model.Category, error)
}

// HistoryStore reads historical transactions for pattern mining and
// recurring-payment detection. All queries exclude soft-deleted rows and are
// read-only from the engine's perspective.
type HistoryStore interface {
	// CategorizedTransactions returns the user's already-categorized
	// transactions, newest first, up to limit.
	CategorizedTransactions(ctx context.Context, userID string, limit int) ([]model.HistoricalTransaction, error)
	// RecentExpenses returns the user's most recent expense transactions,
	// categorized or not, newest first, up to limit.
	RecentExpenses(ctx context.Context, userID string, limit int) ([]model.HistoricalTransaction, error)
	// IncomeNear returns income transactions within the given fractional
	// tolerance of amount, newest first.
	IncomeNear(ctx context.Context, userID string, amount, tolerance float64) ([]model.HistoricalTransaction, error)
}

// MerchantSuggestion is the result of an external merchant-name lookup.
type MerchantSuggestion struct {
	CategoryName string
	Source       string
	Confidence   float64
}

// MerchantLookup is an optional quota-gated collaborator that maps a merchant
// name to a category suggestion. Implementations return (nil, nil) when they
// have no opinion.
type MerchantLookup interface {
	Lookup(ctx context.Context, storeName, userID string) (*MerchantSuggestion, error)
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
