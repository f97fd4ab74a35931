package rules

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chitragupta/khata/internal/model"
)

// stubHistory implements service.HistoryStore for salary verification.
type stubHistory struct {
	income []model.HistoricalTransaction
	err    error
}

func (s *stubHistory) CategorizedTransactions(_ context.Context, _ string, _ int) ([]model.HistoricalTransaction, error) {
	return nil, nil
}

func (s *stubHistory) RecentExpenses(_ context.Context, _ string, _ int) ([]model.HistoricalTransaction, error) {
	return nil, nil
}

func (s *stubHistory) IncomeNear(_ context.Context, _ string, _, _ float64) ([]model.HistoricalTransaction, error) {
	return s.income, s.err
}

func expense(desc, store string, amount float64) model.Transaction {
	return model.Transaction{
		Date:              time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		Description:       desc,
		Store:             store,
		Amount:            amount,
		FinancialCategory: model.FinancialExpense,
	}
}

func income(desc string, amount float64) model.Transaction {
	return model.Transaction{
		Date:              time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Description:       desc,
		Amount:            amount,
		FinancialCategory: model.FinancialIncome,
	}
}

func TestClassifier_Classify(t *testing.T) {
	ctx := context.Background()
	c := NewClassifier(nil, DefaultConfig())

	tests := []struct {
		name         string
		txn          model.Transaction
		wantCategory string
		wantMinConf  float64
	}{
		{
			name:         "round amount recharge",
			txn:          expense("Jio recharge", "", 100),
			wantCategory: "Utilities",
			wantMinConf:  0.85,
		},
		{
			name:         "non-round recharge is still a utility",
			txn:          expense("Jio recharge", "", 239),
			wantCategory: "Utilities",
			wantMinConf:  0.8,
		},
		{
			name:         "coffee shop is not a bank fee",
			txn:          expense("Payment", "Cafe Coffee Day", 340),
			wantCategory: "Food & Dining",
			wantMinConf:  0.8,
		},
		{
			name:         "tax payment",
			txn:          expense("Advance income tax payment", "", 25500),
			wantCategory: "Taxes",
			wantMinConf:  0.9,
		},
		{
			name:         "bank fee",
			txn:          expense("SMS charges for quarter", "", 59),
			wantCategory: "Fees & Charges",
			wantMinConf:  0.85,
		},
		{
			name:         "refund credit",
			txn:          income("Refund for cancelled order", 899),
			wantCategory: "Refund",
			wantMinConf:  0.8,
		},
		{
			name:         "cashback credit",
			txn:          income("Cashback reward", 45),
			wantCategory: "Income",
			wantMinConf:  0.85,
		},
		{
			name:         "home loan emi",
			txn:          expense("HDFC home loan EMI", "", 32000),
			wantCategory: "Housing",
			wantMinConf:  0.85,
		},
		{
			name:         "vehicle loan emi",
			txn:          expense("Car loan EMI debit", "", 14500),
			wantCategory: "Transportation",
			wantMinConf:  0.85,
		},
		{
			name:         "grocery merchant",
			txn:          expense("Payment", "Big Bazaar", 1240),
			wantCategory: "Groceries",
			wantMinConf:  0.8,
		},
		{
			name:         "food merchant",
			txn:          expense("UPI payment", "Biryani House", 340),
			wantCategory: "Food & Dining",
			wantMinConf:  0.8,
		},
		{
			name:         "transport merchant",
			txn:          expense("Trip payment", "Uber", 240),
			wantCategory: "Transportation",
			wantMinConf:  0.8,
		},
		{
			name:         "subscription service",
			txn:          expense("Netflix monthly", "", 649),
			wantCategory: "Entertainment",
			wantMinConf:  0.85,
		},
		{
			name:         "insurance premium",
			txn:          expense("LIC premium payment", "", 12000),
			wantCategory: "Insurance",
			wantMinConf:  0.85,
		},
		{
			name:         "rent payment",
			txn:          expense("Monthly house rent", "", 18000),
			wantCategory: "Housing",
			wantMinConf:  0.8,
		},
		{
			name:         "salary keywords",
			txn:          income("Salary credit for March", 45000),
			wantCategory: "Salary",
			wantMinConf:  0.85,
		},
		{
			name: "investment direction",
			txn: model.Transaction{
				Description:       "Mutual fund SIP",
				Amount:            5000,
				FinancialCategory: model.FinancialInvestment,
			},
			wantCategory: "Investment",
			wantMinConf:  0.8,
		},
		{
			name:         "tiny bare amount",
			txn:          expense("UPI", "", 5),
			wantCategory: "Miscellaneous",
			wantMinConf:  0.4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(ctx, "user-1", tt.txn)
			assert.Equal(t, tt.wantCategory, got.CategoryName)
			assert.GreaterOrEqual(t, got.Confidence, tt.wantMinConf)
			assert.Equal(t, model.SourceRule, got.Source)
		})
	}
}

func TestClassifier_NoRuleMatched(t *testing.T) {
	c := NewClassifier(nil, DefaultConfig())
	got := c.Classify(context.Background(), "user-1", expense("xyzzy", "", 777))
	assert.Empty(t, got.CategoryName)
	assert.Zero(t, got.Confidence)
}

func TestClassifier_LargeIncome(t *testing.T) {
	ctx := context.Background()

	t.Run("identified counter-party is a transfer", func(t *testing.T) {
		c := NewClassifier(nil, DefaultConfig())
		txn := income("IMPS credit", 120000)
		txn.PersonName = "Suresh Patel"
		got := c.Classify(ctx, "user-1", txn)
		assert.Equal(t, "Transfer", got.CategoryName)
		assert.InDelta(t, 0.85, got.Confidence, 0.001)
	})

	t.Run("verified salary gets high confidence", func(t *testing.T) {
		priors := make([]model.HistoricalTransaction, 3)
		for i := range priors {
			priors[i] = model.HistoricalTransaction{
				Date:              time.Date(2026, time.Month(i+1), 1, 0, 0, 0, 0, time.UTC),
				Description:       "NEFT credit",
				Amount:            52000,
				FinancialCategory: model.FinancialIncome,
			}
		}
		c := NewClassifier(&stubHistory{income: priors}, DefaultConfig())

		txn := income("NEFT credit from employer", 52000)
		txn.Date = time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
		got := c.Classify(ctx, "user-1", txn)
		assert.Equal(t, "Salary", got.CategoryName)
		assert.InDelta(t, 0.95, got.Confidence, 0.001)
	})

	t.Run("candidate's own stored row is not a prior", func(t *testing.T) {
		// A pending transaction is already a row in the store, so the amount
		// query returns it alongside the real priors. Two genuine priors plus
		// the candidate itself must not verify.
		priors := make([]model.HistoricalTransaction, 3)
		for i := range priors {
			priors[i] = model.HistoricalTransaction{
				Date:              time.Date(2026, time.Month(i+1), 1, 0, 0, 0, 0, time.UTC),
				Description:       "NEFT credit",
				Amount:            52000,
				FinancialCategory: model.FinancialIncome,
			}
		}
		c := NewClassifier(&stubHistory{income: priors}, DefaultConfig())

		txn := income("NEFT credit from employer", 52000)
		txn.Date = priors[2].Date
		got := c.Classify(ctx, "user-1", txn)
		assert.Equal(t, "Salary", got.CategoryName)
		assert.InDelta(t, 0.75, got.Confidence, 0.001, "two real priors are below the verification bar")
	})

	t.Run("personal priors disqualify salary", func(t *testing.T) {
		priors := []model.HistoricalTransaction{
			{
				Date:              time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
				Amount:            52000,
				PersonName:        "Suresh Patel",
				FinancialCategory: model.FinancialIncome,
			},
		}
		c := NewClassifier(&stubHistory{income: priors}, DefaultConfig())

		got := c.Classify(ctx, "user-1", income("NEFT credit", 52000))
		assert.Equal(t, "Salary", got.CategoryName)
		assert.InDelta(t, 0.75, got.Confidence, 0.001, "unverified transfer falls to the low-confidence path")
	})

	t.Run("month boundary days still count as consistent", func(t *testing.T) {
		// Paid on the 30th, 1st, 2nd: all within a 3-day window on a
		// 30-day cycle.
		days := []int{30, 1, 2}
		priors := make([]model.HistoricalTransaction, len(days))
		for i, d := range days {
			priors[i] = model.HistoricalTransaction{
				Date:              time.Date(2026, time.Month(i+1), d, 0, 0, 0, 0, time.UTC),
				Amount:            52000,
				FinancialCategory: model.FinancialIncome,
			}
		}
		c := NewClassifier(&stubHistory{income: priors}, DefaultConfig())

		got := c.Classify(ctx, "user-1", income("NEFT credit", 52000))
		assert.InDelta(t, 0.95, got.Confidence, 0.001)
	})
}

func TestClassifier_EMIPrecedenceOverRent(t *testing.T) {
	c := NewClassifier(nil, DefaultConfig())
	got := c.Classify(context.Background(), "user-1",
		expense("House rent loan EMI payment", "", 2000))
	assert.Equal(t, "Housing", got.CategoryName, "EMI cascade wins over the rent keyword")
}

func TestCommodityCategory(t *testing.T) {
	tests := []struct {
		commodity string
		want      string
		wantOK    bool
	}{
		{commodity: "milk", want: "Groceries", wantOK: true},
		{commodity: "dosa", want: "Food & Dining", wantOK: true},
		{commodity: "paracetamol", want: "Healthcare", wantOK: true},
		{commodity: "MILK", want: "Groceries", wantOK: true},
		{commodity: "laptop", wantOK: false},
		{commodity: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.commodity, func(t *testing.T) {
			got, ok := CommodityCategory(tt.commodity)
			require.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHasSubscriptionOrEMIKeywords(t *testing.T) {
	assert.True(t, HasSubscriptionOrEMIKeywords("Netflix payment"))
	assert.True(t, HasSubscriptionOrEMIKeywords("monthly EMI debit"))
	assert.False(t, HasSubscriptionOrEMIKeywords("vegetable market"))
}
