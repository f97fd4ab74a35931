package recurring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chitragupta/khata/internal/model"
)

type stubHistory struct {
	categorized []model.HistoricalTransaction
	expenses    []model.HistoricalTransaction
}

func (s *stubHistory) CategorizedTransactions(_ context.Context, _ string, _ int) ([]model.HistoricalTransaction, error) {
	return s.categorized, nil
}

func (s *stubHistory) RecentExpenses(_ context.Context, _ string, _ int) ([]model.HistoricalTransaction, error) {
	return s.expenses, nil
}

func (s *stubHistory) IncomeNear(_ context.Context, _ string, _, _ float64) ([]model.HistoricalTransaction, error) {
	return nil, nil
}

func monthlyExpenses(store string, amount float64, months int) []model.HistoricalTransaction {
	txns := make([]model.HistoricalTransaction, months)
	for i := 0; i < months; i++ {
		txns[i] = model.HistoricalTransaction{
			Date:              time.Date(2026, time.Month(i+1), 5, 0, 0, 0, 0, time.UTC),
			Description:       "payment",
			Store:             store,
			Amount:            amount,
			CategoryName:      "Entertainment",
			FinancialCategory: model.FinancialExpense,
		}
	}
	return txns
}

func TestDetector_AutoPayMonthly(t *testing.T) {
	history := &stubHistory{expenses: monthlyExpenses("Netflix", 649, 4)}
	d := NewDetector(history, DefaultConfig())

	analysis, err := d.Analyze(context.Background(), "user-1", nil)
	require.NoError(t, err)

	patterns := analysis.AutoPayPatterns()
	require.Len(t, patterns, 1)
	p := patterns[0]
	assert.Equal(t, "store:netflix", p.MerchantIdentifier)
	assert.Equal(t, "Netflix", p.Title)
	assert.Equal(t, model.FrequencyMonthly, p.Frequency)
	assert.Equal(t, "Entertainment", p.CategoryName)
	assert.Equal(t, 4, p.OccurrenceCount)
	assert.GreaterOrEqual(t, p.Confidence, 0.8)
	assert.LessOrEqual(t, p.Confidence, 0.95)
	assert.InDelta(t, 649, p.Amount, 0.001)
	assert.NotEmpty(t, p.ID)
}

func TestDetector_AutoPayExcludesDailyAndWeekly(t *testing.T) {
	daily := make([]model.HistoricalTransaction, 10)
	for i := range daily {
		daily[i] = model.HistoricalTransaction{
			Date:              time.Date(2026, 3, i+1, 0, 0, 0, 0, time.UTC),
			Store:             "Chai Point",
			Amount:            20,
			FinancialCategory: model.FinancialExpense,
		}
	}
	weekly := make([]model.HistoricalTransaction, 6)
	for i := range weekly {
		weekly[i] = model.HistoricalTransaction{
			Date:              time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i*7),
			Store:             "Weekend Market",
			Amount:            500,
			FinancialCategory: model.FinancialExpense,
		}
	}

	history := &stubHistory{expenses: append(daily, weekly...)}
	d := NewDetector(history, DefaultConfig())

	analysis, err := d.Analyze(context.Background(), "user-1", nil)
	require.NoError(t, err)
	assert.Empty(t, analysis.AutoPayPatterns())
}

func TestDetector_AutoPayPersonOnlyRequiresKeywords(t *testing.T) {
	toPerson := make([]model.HistoricalTransaction, 4)
	for i := range toPerson {
		toPerson[i] = model.HistoricalTransaction{
			Date:              time.Date(2026, time.Month(i+1), 10, 0, 0, 0, 0, time.UTC),
			Description:       "monthly transfer",
			PersonName:        "Ramesh Kumar",
			Amount:            3000,
			FinancialCategory: model.FinancialExpense,
		}
	}

	history := &stubHistory{expenses: toPerson}
	analysis, err := NewDetector(history, DefaultConfig()).Analyze(context.Background(), "user-1", nil)
	require.NoError(t, err)
	assert.Empty(t, analysis.AutoPayPatterns(), "person-keyed groups need subscription/EMI keywords")

	for i := range toPerson {
		toPerson[i].Description = "rent EMI to landlord"
	}
	analysis, err = NewDetector(history, DefaultConfig()).Analyze(context.Background(), "user-1", nil)
	require.NoError(t, err)
	assert.Len(t, analysis.AutoPayPatterns(), 1, "EMI keyword keeps the person-keyed group")
}

func TestDetector_BatchExtendsHistory(t *testing.T) {
	// Three months of history plus the current statement's occurrence.
	history := &stubHistory{expenses: monthlyExpenses("Netflix", 649, 3)}
	batch := []model.Transaction{{
		Date:              time.Date(2026, 4, 5, 0, 0, 0, 0, time.UTC),
		Description:       "payment",
		Store:             "Netflix",
		Amount:            649,
		FinancialCategory: model.FinancialExpense,
	}}

	analysis, err := NewDetector(history, DefaultConfig()).Analyze(context.Background(), "user-1", batch)
	require.NoError(t, err)

	patterns := analysis.AutoPayPatterns()
	require.Len(t, patterns, 1)
	assert.Equal(t, 4, patterns[0].OccurrenceCount)
}

func TestAnalysis_MatchAutoPay(t *testing.T) {
	history := &stubHistory{expenses: monthlyExpenses("Netflix", 649, 4)}
	analysis, err := NewDetector(history, DefaultConfig()).Analyze(context.Background(), "user-1", nil)
	require.NoError(t, err)

	tests := []struct {
		name string
		txn  model.Transaction
		want bool
	}{
		{
			name: "same merchant and amount",
			txn: model.Transaction{
				Store:             "Netflix",
				Amount:            649,
				FinancialCategory: model.FinancialExpense,
			},
			want: true,
		},
		{
			name: "amount within five percent",
			txn: model.Transaction{
				Store:             "Netflix",
				Amount:            665,
				FinancialCategory: model.FinancialExpense,
			},
			want: true,
		},
		{
			name: "amount too far off",
			txn: model.Transaction{
				Store:             "Netflix",
				Amount:            800,
				FinancialCategory: model.FinancialExpense,
			},
			want: false,
		},
		{
			name: "different merchant",
			txn: model.Transaction{
				Store:             "Spotify",
				Amount:            649,
				FinancialCategory: model.FinancialExpense,
			},
			want: false,
		},
		{
			name: "income never matches auto-pay",
			txn: model.Transaction{
				Store:             "Netflix",
				Amount:            649,
				FinancialCategory: model.FinancialIncome,
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := analysis.MatchAutoPay(tt.txn)
			if tt.want {
				assert.NotNil(t, got)
			} else {
				assert.Nil(t, got)
			}
		})
	}
}

func TestAnalysis_RecurringMatch(t *testing.T) {
	priors := make([]model.HistoricalTransaction, 3)
	for i := range priors {
		priors[i] = model.HistoricalTransaction{
			Date:              time.Date(2026, time.Month(i+1), 1, 0, 0, 0, 0, time.UTC),
			Description:       "NEFT credit",
			CategoryName:      "Salary",
			Amount:            52000,
			FinancialCategory: model.FinancialIncome,
		}
	}
	history := &stubHistory{categorized: priors}
	analysis, err := NewDetector(history, DefaultConfig()).Analyze(context.Background(), "user-1", nil)
	require.NoError(t, err)

	t.Run("day-consistent income matches at high confidence", func(t *testing.T) {
		got := analysis.RecurringMatch(model.Transaction{
			Date:              time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC),
			Amount:            52000,
			FinancialCategory: model.FinancialIncome,
		})
		require.NotNil(t, got)
		assert.Equal(t, "Salary", got.CategoryName)
		assert.InDelta(t, 0.95, got.Confidence, 0.001)
		assert.Equal(t, model.SourcePattern, got.Source)
	})

	t.Run("income on an inconsistent day does not match", func(t *testing.T) {
		got := analysis.RecurringMatch(model.Transaction{
			Date:              time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC),
			Amount:            52000,
			FinancialCategory: model.FinancialIncome,
		})
		assert.Nil(t, got)
	})

	t.Run("direction mismatch does not match", func(t *testing.T) {
		got := analysis.RecurringMatch(model.Transaction{
			Date:              time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
			Amount:            52000,
			FinancialCategory: model.FinancialExpense,
		})
		assert.Nil(t, got)
	})

	t.Run("amount outside tolerance does not match", func(t *testing.T) {
		got := analysis.RecurringMatch(model.Transaction{
			Date:              time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
			Amount:            70000,
			FinancialCategory: model.FinancialIncome,
		})
		assert.Nil(t, got)
	})
}

func TestAnalysis_RecurringMatch_IncomeExcludesCounterParties(t *testing.T) {
	priors := make([]model.HistoricalTransaction, 3)
	for i := range priors {
		priors[i] = model.HistoricalTransaction{
			Date:              time.Date(2026, time.Month(i+1), 1, 0, 0, 0, 0, time.UTC),
			PersonName:        "Suresh Patel",
			CategoryName:      "Transfer",
			Amount:            52000,
			FinancialCategory: model.FinancialIncome,
		}
	}
	history := &stubHistory{categorized: priors}
	analysis, err := NewDetector(history, DefaultConfig()).Analyze(context.Background(), "user-1", nil)
	require.NoError(t, err)

	got := analysis.RecurringMatch(model.Transaction{
		Date:              time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		Amount:            52000,
		FinancialCategory: model.FinancialIncome,
	})
	assert.Nil(t, got, "income priors with a counter-party identity are ignored")
}

func TestAnalysis_RecurringMatch_RequiresSameCategorySupport(t *testing.T) {
	// Two priors at the same amount but in different categories are not a
	// recurring pattern: the dominant category has only one occurrence.
	priors := []model.HistoricalTransaction{
		{
			Date:              time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
			CategoryName:      "Groceries",
			Amount:            500,
			FinancialCategory: model.FinancialExpense,
		},
		{
			Date:              time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC),
			CategoryName:      "Entertainment",
			Amount:            500,
			FinancialCategory: model.FinancialExpense,
		},
	}
	history := &stubHistory{categorized: priors}
	analysis, err := NewDetector(history, DefaultConfig()).Analyze(context.Background(), "user-1", nil)
	require.NoError(t, err)

	got := analysis.RecurringMatch(model.Transaction{
		Date:              time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Amount:            500,
		FinancialCategory: model.FinancialExpense,
	})
	assert.Nil(t, got)

	// A third prior tipping one category to two occurrences does match.
	priors = append(priors, model.HistoricalTransaction{
		Date:              time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		CategoryName:      "Entertainment",
		Amount:            500,
		FinancialCategory: model.FinancialExpense,
	})
	analysis, err = NewDetector(&stubHistory{categorized: priors}, DefaultConfig()).Analyze(context.Background(), "user-1", nil)
	require.NoError(t, err)

	got = analysis.RecurringMatch(model.Transaction{
		Date:              time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC),
		Amount:            500,
		FinancialCategory: model.FinancialExpense,
	})
	require.NotNil(t, got)
	assert.Equal(t, "Entertainment", got.CategoryName)
}

func TestMerchantIdentity(t *testing.T) {
	tests := []struct {
		name        string
		store       string
		upiID       string
		person      string
		description string
		want        string
	}{
		{name: "store wins", store: "Netflix", upiID: "netflix@icici", want: "store:netflix"},
		{name: "store is case-folded and collapsed", store: "  Big   Bazaar ", want: "store:big bazaar"},
		{name: "upi next", upiID: "Netflix@ICICI", want: "upi:netflix@icici"},
		{name: "person next", person: "Ramesh Kumar", want: "person:ramesh kumar"},
		{name: "keyworded description last", description: "Netflix subscription", want: "desc:netflix subscription"},
		{name: "plain description has no identity", description: "paid at counter", want: ""},
		{name: "all empty", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, merchantIdentity(tt.store, tt.upiID, tt.person, tt.description))
		})
	}
}

func TestWithinTolerance(t *testing.T) {
	assert.True(t, withinTolerance(100, 105, 0.05))
	assert.True(t, withinTolerance(105, 100, 0.05))
	assert.False(t, withinTolerance(100, 110, 0.05))
	assert.True(t, withinTolerance(0, 0, 0.05))
}

func TestDayOfMonthClose(t *testing.T) {
	assert.True(t, dayOfMonthClose(1, 30, 3), "month boundary wraps")
	assert.True(t, dayOfMonthClose(5, 7, 3))
	assert.False(t, dayOfMonthClose(5, 15, 3))
}
