// Package engine implements the priority-ordered classification pipeline for
// categorizing transactions.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/chitragupta/khata/internal/ai"
	"github.com/chitragupta/khata/internal/model"
	"github.com/chitragupta/khata/internal/patterns"
	"github.com/chitragupta/khata/internal/recurring"
	"github.com/chitragupta/khata/internal/rules"
	"github.com/chitragupta/khata/internal/service"
)

// Config holds the pipeline's trust thresholds. Priority order encodes
// domain trust, not statistical confidence; these floors only control when a
// lower-priority identity may override a store pattern.
type Config struct {
	// CommodityConfidence is the fixed confidence of a commodity match, the
	// single most reliable signal.
	CommodityConfidence float64
	// FamilyConfidence is the fixed confidence of a shared-surname match.
	FamilyConfidence float64
	// UPIOverrideConfidence is the floor at which a UPI pattern overrides an
	// existing store pattern.
	UPIOverrideConfidence float64
	// PersonOverrideConfidence is the floor at which a person pattern
	// overrides an existing store pattern. Deliberately higher than the UPI
	// floor: person-name matching is the least trusted signal.
	PersonOverrideConfidence float64
	// MerchantLookupMinConfidence gates external merchant-lookup results.
	MerchantLookupMinConfidence float64
	// AutoPayBoost is added to a matched auto-pay pattern's confidence,
	// capped at 1.
	AutoPayBoost float64
}

// DefaultConfig returns the default pipeline thresholds.
func DefaultConfig() Config {
	return Config{
		CommodityConfidence:         0.95,
		FamilyConfidence:            0.95,
		UPIOverrideConfidence:       0.85,
		PersonOverrideConfidence:    0.90,
		MerchantLookupMinConfidence: 0.8,
		AutoPayBoost:                0.1,
	}
}

// Deps collects the engine's collaborators. Merchant and Batcher are
// optional; a nil value disables that tier.
type Deps struct {
	Categories   service.CategoryStore
	History      service.HistoryStore
	Merchant     service.MerchantLookup
	Classifier   *rules.Classifier
	Learner      *patterns.Learner
	PatternCache *patterns.Cache
	Detector     *recurring.Detector
	Batcher      *ai.Batcher
	Usage        *ai.UsageTracker
}

// Engine orchestrates the classification of transaction batches.
type Engine struct {
	deps   Deps
	stages []stage
	cfg    Config
}

// New creates a classification engine with default thresholds.
func New(deps Deps) *Engine {
	return NewWithConfig(deps, DefaultConfig())
}

// NewWithConfig creates a classification engine with custom thresholds.
func NewWithConfig(deps Deps, cfg Config) *Engine {
	e := &Engine{deps: deps, cfg: cfg}
	e.stages = []stage{
		{name: "commodity", run: e.stageCommodity},
		{name: "family", run: e.stageFamily},
		{name: "recurring-amount", run: e.stageRecurring},
		{name: "auto-pay", run: e.stageAutoPay},
		{name: "store-pattern", run: e.stageStorePattern},
		{name: "upi-pattern", run: e.stageUPIPattern},
		{name: "person-pattern", run: e.stagePersonPattern},
		{name: "rules", run: e.stageRules},
	}
	return e
}

// batchContext is the per-batch shared state every transaction classifies
// against: the catalog, the learned pattern tables, and the recurring
// analysis. It is computed once and never mutated during the batch.
type batchContext struct {
	catalog  []model.Category
	byName   map[string]model.Category
	patterns model.LoadedPatterns
	analysis *recurring.Analysis
	userID   string
}

// Classify categorizes a batch of transactions, returning one result per
// input in the same order. A single bad transaction yields a zero-confidence
// result, never an error; only caller-level faults (a blank userID, a failed
// catalog load) fail the batch.
func (e *Engine) Classify(ctx context.Context, userID string, txns []model.Transaction) ([]model.Result, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("userID is required")
	}
	if len(txns) == 0 {
		return []model.Result{}, nil
	}

	bc, err := e.prepare(ctx, userID, txns)
	if err != nil {
		return nil, err
	}

	slog.Info("Classifying batch",
		"user_id", userID,
		"transactions", len(txns),
		"categories", len(bc.catalog))

	results := make([]model.Result, len(txns))
	var leftovers []ai.Leftover

	for i, txn := range txns {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		results[i] = e.classifyOne(ctx, bc, txn)
		if results[i].CategoryName == "" {
			leftovers = append(leftovers, ai.Leftover{Index: i, Txn: txn})
		}
	}

	if e.deps.Batcher != nil && len(leftovers) > 0 {
		for idx, result := range e.deps.Batcher.Classify(ctx, userID, leftovers, bc.catalog, len(txns)) {
			results[idx] = result
		}
	}

	e.resolveCategories(bc, results)

	return results, nil
}

// DetectAutoPay analyzes the expense subset of a batch together with history
// and returns the detected recurring monthly charges. The engine does not
// persist these; the recurring-bill feature owns their storage.
func (e *Engine) DetectAutoPay(ctx context.Context, userID string, txns []model.Transaction) ([]model.AutoPayPattern, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("userID is required")
	}

	expenses := make([]model.Transaction, 0, len(txns))
	for _, txn := range txns {
		if txn.FinancialCategory == model.FinancialExpense {
			expenses = append(expenses, txn)
		}
	}

	analysis, err := e.deps.Detector.Analyze(ctx, userID, expenses)
	if err != nil {
		return nil, fmt.Errorf("auto-pay analysis failed: %w", err)
	}

	detected := analysis.AutoPayPatterns()

	// Best-effort catalog resolution for patterns carrying a category name.
	catalog, err := e.deps.Categories.ListCategories(ctx, userID, model.FinancialExpense)
	if err != nil {
		slog.Warn("Failed to load catalog for auto-pay resolution", "error", err)
		return detected, nil
	}
	byName := catalogIndex(catalog)
	for i := range detected {
		if detected[i].CategoryName == "" || detected[i].CategoryID != nil {
			continue
		}
		if cat, ok := byName[normalizeName(detected[i].CategoryName)]; ok {
			id := cat.ID
			detected[i].CategoryID = &id
			detected[i].CategoryName = cat.Name
		}
	}

	return detected, nil
}

// prepare loads the catalog and fans out the independent per-batch
// aggregates (pattern learning, recurring analysis) concurrently. Aggregate
// failures degrade to empty tables; a catalog failure fails the batch.
func (e *Engine) prepare(ctx context.Context, userID string, txns []model.Transaction) (*batchContext, error) {
	bc := &batchContext{userID: userID}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		if cached, ok := e.deps.PatternCache.Get(userID); ok {
			bc.patterns = cached
			return
		}
		learned, err := e.deps.Learner.Learn(ctx, userID)
		if err != nil {
			slog.Warn("Pattern learning failed, continuing without patterns", "error", err)
			return
		}
		e.deps.PatternCache.Set(userID, learned)
		bc.patterns = learned
	}()

	go func() {
		defer wg.Done()
		analysis, err := e.deps.Detector.Analyze(ctx, userID, txns)
		if err != nil {
			slog.Warn("Recurring analysis failed, continuing without it", "error", err)
			return
		}
		bc.analysis = analysis
	}()

	catalog, err := e.deps.Categories.ListCategories(ctx, userID, model.FinancialOther)
	wg.Wait()
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}

	bc.catalog = catalog
	bc.byName = catalogIndex(catalog)

	return bc, nil
}

// classifyOne runs the stage chain for a single transaction. The first stage
// returning a non-nil result wins; later stages are never consulted, even if
// they would report higher confidence.
func (e *Engine) classifyOne(ctx context.Context, bc *batchContext, txn model.Transaction) model.Result {
	if txn.FinancialCategory == "" || txn.Amount <= 0 {
		return model.Uncategorized("malformed transaction")
	}

	for _, s := range e.stages {
		if result := s.run(ctx, bc, txn); result != nil {
			slog.Debug("Stage produced category",
				"stage", s.name,
				"category", result.CategoryName,
				"confidence", result.Confidence)
			return *result
		}
	}

	return model.Uncategorized("no classifier matched")
}

// resolveCategories attaches catalog ids to every named result that lacks
// one. A name absent from the catalog keeps a nil id; the caller decides
// whether to create the category.
func (e *Engine) resolveCategories(bc *batchContext, results []model.Result) {
	for i := range results {
		if results[i].CategoryName == "" || results[i].CategoryID != nil {
			continue
		}
		if cat, ok := bc.byName[normalizeName(results[i].CategoryName)]; ok {
			id := cat.ID
			results[i].CategoryID = &id
			results[i].CategoryName = cat.Name
		}
	}
}

func catalogIndex(catalog []model.Category) map[string]model.Category {
	byName := make(map[string]model.Category, len(catalog))
	for _, cat := range catalog {
		byName[normalizeName(cat.Name)] = cat
	}
	return byName
}

func normalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
