// Package recurring detects recurring-amount income/expense patterns and
// monthly auto-pay charges from transaction history.
package recurring

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chitragupta/khata/internal/model"
	"github.com/chitragupta/khata/internal/rules"
	"github.com/chitragupta/khata/internal/service"
)

// Config holds the detector's tunable thresholds.
type Config struct {
	// AmountTolerance is the fractional band for recurring-amount matches.
	AmountTolerance float64
	// AutoPayTolerance is the fractional band for matching a transaction
	// against a detected auto-pay bucket.
	AutoPayTolerance float64
	// DayOfMonthWindow is the +/- day window for income date consistency.
	DayOfMonthWindow int
	// HistoryLimit caps how many historical transactions one batch reads.
	HistoryLimit int
	// MinConfidence is the floor for retained auto-pay patterns.
	MinConfidence float64
	// MinOccurrences is the minimum bucket size for any pattern.
	MinOccurrences int
}

// DefaultConfig returns the default detector thresholds.
func DefaultConfig() Config {
	return Config{
		AmountTolerance:  0.10,
		AutoPayTolerance: 0.05,
		DayOfMonthWindow: 3,
		HistoryLimit:     500,
		MinConfidence:    0.8,
		MinOccurrences:   2,
	}
}

// Gap bands in days. Daily and weekly cadences are excluded by construction;
// only monthly qualifies as auto-pay.
const (
	dailyGapMin   = 1.0
	dailyGapMax   = 3.0
	weeklyGapMin  = 5.0
	weeklyGapMax  = 12.0
	monthlyGapMin = 25.0
	monthlyGapMax = 35.0
)

// Detector runs both recurring analyses for one user.
type Detector struct {
	history service.HistoryStore
	cfg     Config
}

// NewDetector creates a detector backed by the given history store.
func NewDetector(history service.HistoryStore, cfg Config) *Detector {
	return &Detector{history: history, cfg: cfg}
}

// Analysis holds the per-batch recurring state shared by every transaction
// in a classification run.
type Analysis struct {
	amountBuckets map[int][]model.HistoricalTransaction
	autoPay       []model.AutoPayPattern
	cfg           Config
}

// Analyze loads history once and prepares both the recurring-amount buckets
// and the auto-pay patterns for a batch. The in-batch transactions
// participate in auto-pay grouping alongside history.
func (d *Detector) Analyze(ctx context.Context, userID string, batch []model.Transaction) (*Analysis, error) {
	categorized, err := d.history.CategorizedTransactions(ctx, userID, d.cfg.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load categorized history: %w", err)
	}

	expenses, err := d.history.RecentExpenses(ctx, userID, d.cfg.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent expenses: %w", err)
	}

	buckets := make(map[int][]model.HistoricalTransaction)
	for _, txn := range categorized {
		if txn.Deleted || txn.CategoryName == "" {
			continue
		}
		key := int(math.Round(txn.Amount / 100))
		buckets[key] = append(buckets[key], txn)
	}

	analysis := &Analysis{
		amountBuckets: buckets,
		autoPay:       d.detectAutoPay(expenses, batch),
		cfg:           d.cfg,
	}

	slog.Debug("Recurring analysis prepared",
		"user_id", userID,
		"amount_buckets", len(buckets),
		"autopay_patterns", len(analysis.autoPay))

	return analysis, nil
}

// AutoPayPatterns returns the auto-pay patterns detected for the batch.
func (a *Analysis) AutoPayPatterns() []model.AutoPayPattern {
	return a.autoPay
}

// RecurringMatch checks whether the transaction's amount and direction match
// at least two prior same-category occurrences. Income matches additionally
// require day-of-month consistency and the absence of any counter-party
// identity, so ad-hoc transfers are not mistaken for salary.
func (a *Analysis) RecurringMatch(txn model.Transaction) *model.Result {
	key := int(math.Round(txn.Amount / 100))

	var matches []model.HistoricalTransaction
	// The tolerance band can straddle a bucket boundary.
	for _, k := range []int{key - 1, key, key + 1} {
		for _, prior := range a.amountBuckets[k] {
			if prior.FinancialCategory != txn.FinancialCategory {
				continue
			}
			if !withinTolerance(prior.Amount, txn.Amount, a.cfg.AmountTolerance) {
				continue
			}
			if txn.FinancialCategory == model.FinancialIncome &&
				(strings.TrimSpace(prior.PersonName) != "" || strings.TrimSpace(prior.UPIID) != "") {
				continue
			}
			matches = append(matches, prior)
		}
	}

	if len(matches) < a.cfg.MinOccurrences {
		return nil
	}

	// The pattern must be backed by enough occurrences of a single category,
	// not just enough amount matches across different ones.
	category, categoryID, _ := dominantCategory(matches)
	if category == "" {
		return nil
	}
	var supporting []model.HistoricalTransaction
	for _, m := range matches {
		if m.CategoryName == category {
			supporting = append(supporting, m)
		}
	}
	if len(supporting) < a.cfg.MinOccurrences {
		return nil
	}

	dayConsistent := 0
	for _, m := range supporting {
		if dayOfMonthClose(txn.Date.Day(), m.Date.Day(), a.cfg.DayOfMonthWindow) {
			dayConsistent++
		}
	}

	if txn.FinancialCategory == model.FinancialIncome && dayConsistent < 2 {
		return nil
	}

	confidence := 0.8
	if dayConsistent >= 2 {
		confidence = 0.95
	}

	return &model.Result{
		CategoryID:   categoryID,
		CategoryName: category,
		Confidence:   confidence,
		Source:       model.SourcePattern,
		Reasoning:    fmt.Sprintf("amount recurs in %d prior %s transactions", len(supporting), strings.ToLower(string(txn.FinancialCategory))),
	}
}

// MatchAutoPay checks an expense transaction against the detected auto-pay
// buckets.
func (a *Analysis) MatchAutoPay(txn model.Transaction) *model.AutoPayPattern {
	if txn.FinancialCategory != model.FinancialExpense {
		return nil
	}

	identity := merchantIdentity(txn.Store, txn.UPIID, txn.PersonName, txn.Description)
	if identity == "" {
		return nil
	}

	for i := range a.autoPay {
		p := &a.autoPay[i]
		if p.MerchantIdentifier != identity {
			continue
		}
		if withinTolerance(p.Amount, txn.Amount, a.cfg.AutoPayTolerance) {
			return p
		}
	}
	return nil
}

// merchantGroup accumulates the transactions sharing one merchant identity
// and amount bucket.
type merchantGroup struct {
	identity   string
	title      string
	dates      []time.Time
	amounts    []float64
	categories []model.HistoricalTransaction
	personOnly bool
	keyworded  bool
}

// detectAutoPay groups expenses by merchant identity and amount bucket,
// measures inter-occurrence day gaps, and keeps only monthly cadences.
func (d *Detector) detectAutoPay(history []model.HistoricalTransaction, batch []model.Transaction) []model.AutoPayPattern {
	groups := make(map[string]*merchantGroup)

	add := func(h model.HistoricalTransaction) {
		if h.Deleted || h.FinancialCategory != model.FinancialExpense {
			return
		}
		identity := merchantIdentity(h.Store, h.UPIID, h.PersonName, h.Description)
		if identity == "" {
			return
		}
		bucket := int(math.Round(h.Amount / 10))
		key := fmt.Sprintf("%s#%d", identity, bucket)

		g, ok := groups[key]
		if !ok {
			g = &merchantGroup{
				identity:   identity,
				title:      groupTitle(h.Store, h.PersonName, h.Description),
				personOnly: strings.TrimSpace(h.Store) == "" && strings.TrimSpace(h.UPIID) == "",
			}
			groups[key] = g
		}
		g.dates = append(g.dates, h.Date)
		g.amounts = append(g.amounts, h.Amount)
		g.categories = append(g.categories, h)
		if rules.HasSubscriptionOrEMIKeywords(h.Description) {
			g.keyworded = true
		}
	}

	for _, h := range history {
		add(h)
	}
	for _, t := range batch {
		add(model.HistoricalTransaction{
			Date:              t.Date,
			Description:       t.Description,
			Store:             t.Store,
			PersonName:        t.PersonName,
			UPIID:             t.UPIID,
			Amount:            t.Amount,
			FinancialCategory: t.FinancialCategory,
		})
	}

	var patterns []model.AutoPayPattern
	for _, g := range groups {
		if len(g.dates) < d.cfg.MinOccurrences {
			continue
		}
		// Daily person-to-person payments are not auto-pay.
		if g.personOnly && !g.keyworded {
			continue
		}

		pattern, ok := d.evaluateGroup(g)
		if ok {
			patterns = append(patterns, pattern)
		}
	}

	// Stable output order: highest confidence first.
	sort.Slice(patterns, func(i, j int) bool {
		if patterns[i].Confidence != patterns[j].Confidence {
			return patterns[i].Confidence > patterns[j].Confidence
		}
		return patterns[i].MerchantIdentifier < patterns[j].MerchantIdentifier
	})

	return patterns
}

// evaluateGroup computes the gap statistics and confidence for one
// merchant/amount-bucket group.
func (d *Detector) evaluateGroup(g *merchantGroup) (model.AutoPayPattern, bool) {
	dates := make([]time.Time, len(g.dates))
	copy(dates, g.dates)
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	var gaps []float64
	for i := 1; i < len(dates); i++ {
		gaps = append(gaps, dates[i].Sub(dates[i-1]).Hours()/24)
	}
	if len(gaps) == 0 {
		return model.AutoPayPattern{}, false
	}

	var sum float64
	monthly := 0
	for _, gap := range gaps {
		sum += gap
		if gap >= monthlyGapMin && gap <= monthlyGapMax {
			monthly++
		}
	}
	meanGap := sum / float64(len(gaps))

	// Daily and weekly cadences are excluded outright, and anything outside
	// the monthly band does not qualify.
	if meanGap >= dailyGapMin && meanGap <= dailyGapMax {
		return model.AutoPayPattern{}, false
	}
	if meanGap >= weeklyGapMin && meanGap <= weeklyGapMax {
		return model.AutoPayPattern{}, false
	}
	if meanGap < monthlyGapMin || meanGap > monthlyGapMax {
		return model.AutoPayPattern{}, false
	}

	occurrences := len(g.dates)
	dayAccuracy := 1 - math.Abs(meanGap-30)/30
	confidence := 0.7 + 0.2*(float64(monthly)/float64(occurrences)) + 0.1*dayAccuracy
	if g.keyworded {
		confidence += 0.15
	}
	if confidence > 0.95 {
		confidence = 0.95
	}
	if confidence < d.cfg.MinConfidence {
		return model.AutoPayPattern{}, false
	}

	var amountSum float64
	for _, amount := range g.amounts {
		amountSum += amount
	}

	category, categoryID, _ := dominantCategory(g.categories)

	return model.AutoPayPattern{
		ID:                  uuid.NewString(),
		Title:               g.title,
		MerchantIdentifier:  g.identity,
		Amount:              amountSum / float64(len(g.amounts)),
		Frequency:           model.FrequencyMonthly,
		Confidence:          confidence,
		CategoryName:        category,
		CategoryID:          categoryID,
		LastTransactionDate: dates[len(dates)-1],
		OccurrenceCount:     occurrences,
	}, true
}

// merchantIdentity picks the strongest available merchant key: store, then
// UPI handle, then person, then a subscription/EMI keyword from the
// description.
func merchantIdentity(store, upiID, person, description string) string {
	if s := normalize(store); s != "" {
		return "store:" + s
	}
	if u := normalize(upiID); u != "" {
		return "upi:" + u
	}
	if p := normalize(person); p != "" {
		return "person:" + p
	}
	if rules.HasSubscriptionOrEMIKeywords(description) {
		return "desc:" + normalize(description)
	}
	return ""
}

// normalize lower-cases a value and collapses runs of whitespace, matching
// the key shape the pattern learner produces.
func normalize(value string) string {
	return strings.Join(strings.Fields(strings.ToLower(value)), " ")
}

func groupTitle(store, person, description string) string {
	if s := strings.TrimSpace(store); s != "" {
		return s
	}
	if p := strings.TrimSpace(person); p != "" {
		return p
	}
	return strings.TrimSpace(description)
}

// dominantCategory returns the most frequent category among the
// transactions and its occurrence count, ignoring uncategorized ones.
func dominantCategory(txns []model.HistoricalTransaction) (string, *int64, int) {
	counts := make(map[string]int)
	ids := make(map[string]*int64)
	for _, t := range txns {
		if t.CategoryName == "" {
			continue
		}
		counts[t.CategoryName]++
		ids[t.CategoryName] = t.CategoryID
	}

	var best string
	var bestCount int
	for name, n := range counts {
		if n > bestCount || (n == bestCount && name < best) {
			best = name
			bestCount = n
		}
	}
	return best, ids[best], bestCount
}

// withinTolerance reports whether two amounts are within the fractional band
// of the larger of the two. Recurring amounts drift slightly with taxes and
// rounding, so exact equality is never used.
func withinTolerance(a, b, fraction float64) bool {
	larger := math.Max(math.Abs(a), math.Abs(b))
	if larger == 0 {
		return true
	}
	return math.Abs(a-b) <= larger*fraction
}

// dayOfMonthClose compares days of month on a 30-day cycle so month-end
// salaries that drift across the boundary still count as consistent.
func dayOfMonthClose(a, b, window int) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	if diff > 30-diff {
		diff = 30 - diff
	}
	return diff <= window
}
