// Package rules implements the deterministic keyword/amount rule classifier.
// The rule set is data: an ordered list of named checks evaluated by a single
// first-match-wins interpreter, so each rule is independently testable.
package rules

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chitragupta/khata/internal/model"
	"github.com/chitragupta/khata/internal/service"
)

// Config holds the tunable thresholds of the rule classifier. The defaults
// are hand-tuned product values, not derived from data; they are deliberately
// configuration rather than constants.
type Config struct {
	// LargeAmount is the cutoff for the large-amount salary/transfer path.
	LargeAmount float64
	// EMIMinAmount is the minimum amount for the EMI keyword cascade.
	EMIMinAmount float64
	// SmallAmount is the cutoff below which bare transactions fall to
	// Miscellaneous.
	SmallAmount float64
	// AmountTolerance is the fractional band used when comparing amounts
	// against history.
	AmountTolerance float64
	// DayOfMonthWindow is the +/- day window for salary date consistency.
	DayOfMonthWindow int
	// SalaryMinMatches is how many amount-consistent income occurrences the
	// salary verification needs.
	SalaryMinMatches int
}

// DefaultConfig returns the default rule thresholds.
func DefaultConfig() Config {
	return Config{
		LargeAmount:      50000,
		EMIMinAmount:     5000,
		SmallAmount:      10,
		AmountTolerance:  0.10,
		DayOfMonthWindow: 3,
		SalaryMinMatches: 3,
	}
}

// roundAmounts is the canonical round-number set used by the recharge/bill
// heuristic.
var roundAmounts = map[float64]bool{
	100: true, 200: true, 300: true, 500: true, 1000: true, 1500: true,
	2000: true, 3000: true, 5000: true, 10000: true, 20000: true,
	25000: true, 30000: true, 50000: true,
}

// Classifier applies the ordered rule table to one transaction at a time. It
// touches no network or database except the salary-verification check, which
// reads income history.
type Classifier struct {
	history service.HistoryStore
	rules   []rule
	cfg     Config
}

// rule is one entry of the ordered rule table. check returns nil when the
// rule does not apply.
type rule struct {
	check func(ctx context.Context, c *Classifier, userID string, f *features) *model.Result
	name  string
}

// features caches the normalized views of a transaction the rules match on.
type features struct {
	txn       model.Transaction
	text      string // description + store + commodity, lower-cased
	desc      string
	store     string
	upi       string
	commodity string
	hasPerson bool
	hasUPI    bool
}

// NewClassifier creates a rule classifier. history may be nil, in which case
// the salary verification is skipped and large incomes get the lower
// confidence path.
func NewClassifier(history service.HistoryStore, cfg Config) *Classifier {
	c := &Classifier{history: history, cfg: cfg}
	c.rules = []rule{
		{name: "large-amount", check: checkLargeAmount},
		{name: "small-amount", check: checkSmallAmount},
		{name: "round-amount-bill", check: checkRoundAmountBill},
		{name: "upi-service", check: checkUPIService},
		{name: "taxes", check: checkTaxes},
		{name: "gifts-donations", check: checkGifts},
		{name: "cashback", check: checkCashback},
		{name: "bank-fees", check: checkFees},
		{name: "refunds", check: checkRefunds},
		{name: "emi", check: checkEMI},
		{name: "bank-transfer-income", check: checkBankTransferIncome},
		{name: "keyword-tables", check: checkKeywordTables},
	}
	return c
}

// Classify runs the rule table in order and returns the first match, or a
// zero-confidence null-category result when nothing applies. It never returns
// an error: data absence just means the corresponding rules skip.
func (c *Classifier) Classify(ctx context.Context, userID string, txn model.Transaction) model.Result {
	f := newFeatures(txn)

	for _, r := range c.rules {
		if result := r.check(ctx, c, userID, f); result != nil {
			slog.Debug("Rule matched",
				"rule", r.name,
				"category", result.CategoryName,
				"confidence", result.Confidence)
			result.Source = model.SourceRule
			return *result
		}
	}

	return model.Uncategorized("no rule matched")
}

// CommodityCategory maps a commodity token to its category, if the token is
// recognized. Commodity is the single most reliable signal, so callers give
// its result precedence over everything else.
func CommodityCategory(commodity string) (string, bool) {
	token := strings.ToLower(strings.TrimSpace(commodity))
	if token == "" {
		return "", false
	}
	switch {
	case containsAny(token, groceryCommodities):
		return "Groceries", true
	case containsAny(token, foodCommodities):
		return "Food & Dining", true
	case containsAny(token, healthcareCommodities):
		return "Healthcare", true
	}
	return "", false
}

// HasSubscriptionOrEMIKeywords reports whether the text mentions a known
// subscription service or loan installment. The recurring detector uses this
// to keep person-keyed groups and to boost auto-pay confidence.
func HasSubscriptionOrEMIKeywords(text string) bool {
	lower := strings.ToLower(text)
	return containsAny(lower, subscriptionKeywords) || containsAny(lower, emiKeywords)
}

func newFeatures(txn model.Transaction) *features {
	desc := strings.ToLower(txn.Description)
	store := strings.ToLower(txn.Store)
	commodity := strings.ToLower(txn.Commodity)
	return &features{
		txn:       txn,
		desc:      desc,
		store:     store,
		upi:       strings.ToLower(txn.UPIID),
		commodity: commodity,
		text:      strings.TrimSpace(desc + " " + store + " " + commodity),
		hasPerson: strings.TrimSpace(txn.PersonName) != "",
		hasUPI:    strings.TrimSpace(txn.UPIID) != "",
	}
}

func result(category string, confidence float64, reasoning string) *model.Result {
	return &model.Result{
		CategoryName: category,
		Confidence:   confidence,
		Reasoning:    reasoning,
	}
}

// checkLargeAmount handles the large-amount salary-vs-transfer path for
// income and the EMI/investment/property path for large expenses.
func checkLargeAmount(ctx context.Context, c *Classifier, userID string, f *features) *model.Result {
	if f.txn.Amount < c.cfg.LargeAmount {
		return nil
	}

	switch f.txn.FinancialCategory {
	case model.FinancialIncome:
		if f.hasPerson || f.hasUPI {
			return result("Transfer", 0.85, "large credit from an identified counter-party")
		}
		if c.verifySalary(ctx, userID, f.txn) {
			return result("Salary", 0.95, "large credit recurring monthly at a consistent date with no counter-party")
		}
		if containsAny(f.text, bankTransferKeywords) {
			return result("Salary", 0.75, "large bank transfer credit with no counter-party")
		}
		return result("Income", 0.6, "large unidentified credit")
	case model.FinancialExpense:
		if containsAny(f.text, emiKeywords) ||
			containsAny(f.text, homeLoanKeywords) ||
			containsAny(f.text, vehicleLoanKeywords) ||
			containsAny(f.text, creditCardKeywords) ||
			containsAny(f.text, personalLoanKeywords) ||
			containsAny(f.text, educationLoanKeywords) {
			return loanCategory(f.text, 0.9)
		}
		if containsAny(f.text, investmentExpenseKeywords) {
			return result("Investment", 0.85, "large debit with investment keywords")
		}
		if containsAny(f.text, propertyKeywords) {
			return result("Housing", 0.8, "large debit with property keywords")
		}
		return result("Shopping", 0.5, "large debit with no stronger signal")
	}
	return nil
}

// loanCategory maps loan-type keywords to their spending category. Unresolved
// EMI defaults to Housing, the most common large installment.
func loanCategory(text string, confidence float64) *model.Result {
	switch {
	case containsAny(text, homeLoanKeywords):
		return result("Housing", confidence, "home loan installment")
	case containsAny(text, vehicleLoanKeywords):
		return result("Transportation", confidence, "vehicle loan installment")
	case containsAny(text, creditCardKeywords), containsAny(text, personalLoanKeywords):
		return result("Debt Payment", confidence, "credit card or personal loan payment")
	case containsAny(text, educationLoanKeywords):
		return result("Education", confidence, "education loan installment")
	default:
		return result("Housing", confidence - 0.15, "unresolved loan installment")
	}
}

func checkSmallAmount(_ context.Context, c *Classifier, _ string, f *features) *model.Result {
	if f.txn.Amount < c.cfg.SmallAmount && f.commodity == "" && f.store == "" {
		return result("Miscellaneous", 0.4, "tiny amount with no merchant or commodity")
	}
	return nil
}

func checkRoundAmountBill(_ context.Context, _ *Classifier, _ string, f *features) *model.Result {
	if roundAmounts[f.txn.Amount] && containsAny(f.text, rechargeBillKeywords) {
		return result("Utilities", 0.85, "round amount with recharge/bill keywords")
	}
	return nil
}

func checkUPIService(_ context.Context, _ *Classifier, _ string, f *features) *model.Result {
	if f.upi == "" {
		return nil
	}
	if containsAny(f.upi, subscriptionKeywords) {
		return result("Entertainment", 0.85, "UPI handle of a known subscription service")
	}
	if containsAny(f.upi, paymentAppUPIHandles) && containsAny(f.desc, rechargeBillKeywords) {
		return result("Utilities", 0.8, "payment-app UPI with recharge/bill description")
	}
	return nil
}

func checkTaxes(_ context.Context, _ *Classifier, _ string, f *features) *model.Result {
	if containsAny(f.text, taxKeywords) {
		return result("Taxes", 0.9, fmt.Sprintf("tax keyword %q", firstMatch(f.text, taxKeywords)))
	}
	return nil
}

func checkGifts(_ context.Context, _ *Classifier, _ string, f *features) *model.Result {
	if !containsAny(f.text, giftKeywords) {
		return nil
	}
	if f.txn.FinancialCategory == model.FinancialIncome {
		return result("Gifts & Donations", 0.85, "gift received")
	}
	return result("Charity & Donations", 0.85, "gift or donation given")
}

func checkCashback(_ context.Context, _ *Classifier, _ string, f *features) *model.Result {
	if containsAny(f.text, cashbackKeywords) {
		return result("Income", 0.85, "cashback or reward credit")
	}
	return nil
}

func checkFees(_ context.Context, _ *Classifier, _ string, f *features) *model.Result {
	if containsAny(f.text, feeKeywords) {
		return result("Fees & Charges", 0.85, fmt.Sprintf("bank fee keyword %q", firstMatch(f.text, feeKeywords)))
	}
	return nil
}

func checkRefunds(_ context.Context, _ *Classifier, _ string, f *features) *model.Result {
	if containsAny(f.text, refundKeywords) {
		return result("Refund", 0.8, "refund or reversal")
	}
	return nil
}

func checkEMI(_ context.Context, c *Classifier, _ string, f *features) *model.Result {
	if f.txn.Amount >= c.cfg.EMIMinAmount && containsAny(f.text, emiKeywords) {
		return loanCategory(f.text, 0.85)
	}
	return nil
}

// checkBankTransferIncome handles NEFT/RTGS/IMPS credits below the
// large-amount cutoff, re-applying the salary verification.
func checkBankTransferIncome(ctx context.Context, c *Classifier, userID string, f *features) *model.Result {
	if f.txn.FinancialCategory != model.FinancialIncome || !containsAny(f.text, bankTransferKeywords) {
		return nil
	}
	if f.hasPerson || f.hasUPI {
		return result("Transfer", 0.7, "bank transfer from an identified counter-party")
	}
	if c.verifySalary(ctx, userID, f.txn) {
		return result("Salary", 0.95, "bank transfer recurring monthly at a consistent date")
	}
	return result("Salary", 0.75, "bank transfer credit with no counter-party")
}

// checkKeywordTables is the broad per-direction merchant keyword cascade. For
// expenses, EMI keywords take precedence over rent keywords when both are
// present.
func checkKeywordTables(_ context.Context, _ *Classifier, _ string, f *features) *model.Result {
	switch f.txn.FinancialCategory {
	case model.FinancialExpense:
		switch {
		case containsAny(f.text, emiKeywords):
			return loanCategory(f.text, 0.75)
		case containsAny(f.text, groceryMerchants):
			return result("Groceries", 0.8, fmt.Sprintf("grocery merchant %q", firstMatch(f.text, groceryMerchants)))
		case containsAny(f.text, foodMerchants):
			return result("Food & Dining", 0.8, fmt.Sprintf("food merchant %q", firstMatch(f.text, foodMerchants)))
		case containsAny(f.text, telecomUtilityKeywords), containsAny(f.text, rechargeBillKeywords):
			return result("Utilities", 0.8, "telecom or utility keywords")
		case containsAny(f.text, transportMerchants):
			return result("Transportation", 0.8, fmt.Sprintf("transport merchant %q", firstMatch(f.text, transportMerchants)))
		case containsAny(f.text, healthcareMerchants):
			return result("Healthcare", 0.8, "healthcare merchant")
		case containsAny(f.text, subscriptionKeywords):
			return result("Entertainment", 0.85, "subscription service")
		case containsAny(f.text, entertainmentKeywords):
			return result("Entertainment", 0.75, "entertainment merchant")
		case containsAny(f.text, educationMerchants):
			return result("Education", 0.8, "education merchant")
		case containsAny(f.text, insuranceKeywords):
			return result("Insurance", 0.85, "insurance premium")
		case containsAny(f.text, investmentExpenseKeywords):
			return result("Investment", 0.8, "investment purchase")
		case containsAny(f.text, rentKeywords):
			return result("Housing", 0.8, "rent payment")
		case containsAny(f.text, shoppingMerchants):
			return result("Shopping", 0.7, fmt.Sprintf("shopping merchant %q", firstMatch(f.text, shoppingMerchants)))
		}
	case model.FinancialIncome:
		switch {
		case containsAny(f.text, salaryKeywords):
			return result("Salary", 0.85, "salary keywords")
		case containsAny(f.text, investmentReturnKeywords):
			return result("Investment", 0.75, "investment return")
		}
	case model.FinancialInvestment:
		return result("Investment", 0.8, "investment-direction transaction")
	case model.FinancialTransfer:
		if f.hasPerson || f.hasUPI {
			return result("Transfer", 0.7, "transfer to an identified counter-party")
		}
	}
	return nil
}

// verifySalary checks history for a recurring income pattern near this
// amount: at least SalaryMinMatches occurrences within the amount tolerance,
// at least two on a consistent day of month, none carrying a person or UPI
// identity.
func (c *Classifier) verifySalary(ctx context.Context, userID string, txn model.Transaction) bool {
	if c.history == nil {
		return false
	}

	matches, err := c.history.IncomeNear(ctx, userID, txn.Amount, c.cfg.AmountTolerance)
	if err != nil {
		slog.Warn("Salary verification query failed", "error", err)
		return false
	}

	amountMatches := 0
	dayMatches := 0
	for _, m := range matches {
		if m.Deleted {
			continue
		}
		// Pending transactions are already stored, so the candidate shows up
		// in its own amount query. Only prior dates count as occurrences.
		if m.Date.Equal(txn.Date) {
			continue
		}
		if strings.TrimSpace(m.PersonName) != "" || strings.TrimSpace(m.UPIID) != "" {
			// Ad-hoc transfers from people disqualify the pattern.
			return false
		}
		amountMatches++
		if dayOfMonthConsistent(txn.Date.Day(), m.Date.Day(), c.cfg.DayOfMonthWindow) {
			dayMatches++
		}
	}

	return amountMatches >= c.cfg.SalaryMinMatches && dayMatches >= 2
}

// dayOfMonthConsistent compares days of month on a 30-day cycle, so the 30th
// and the 1st count as close (salaries paid at month boundaries drift across
// it).
func dayOfMonthConsistent(a, b, window int) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	if diff > 30-diff {
		diff = 30 - diff
	}
	return diff <= window
}
