package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chitragupta/khata/internal/model"
	"github.com/chitragupta/khata/internal/patterns"
	"github.com/chitragupta/khata/internal/rules"
)

// stage is one step of the priority chain. run returns nil when the stage
// has no opinion; the first non-nil result ends the chain.
type stage struct {
	run  func(ctx context.Context, bc *batchContext, txn model.Transaction) *model.Result
	name string
}

// stageCommodity maps a commodity token straight to its category. Commodity
// is considered the most reliable signal and overrides store and person
// text, so it runs first.
func (e *Engine) stageCommodity(_ context.Context, _ *batchContext, txn model.Transaction) *model.Result {
	if txn.FinancialCategory != model.FinancialExpense {
		return nil
	}
	category, ok := rules.CommodityCategory(txn.Commodity)
	if !ok {
		return nil
	}
	return &model.Result{
		CategoryName: category,
		Confidence:   e.cfg.CommodityConfidence,
		Source:       model.SourceRule,
		Reasoning:    fmt.Sprintf("commodity %q indicates %s", txn.Commodity, category),
	}
}

// stageFamily classifies transfers between people sharing a surname with the
// account holder. It must run before the pattern lookups, since family
// transfers would otherwise match generic person patterns.
func (e *Engine) stageFamily(_ context.Context, _ *batchContext, txn model.Transaction) *model.Result {
	surname := sharedSurname(txn.PersonName, txn.AccountHolderName)
	if surname == "" {
		return nil
	}
	return &model.Result{
		CategoryName: "Family",
		Confidence:   e.cfg.FamilyConfidence,
		Source:       model.SourceRule,
		Reasoning:    fmt.Sprintf("counter-party shares surname %q with account holder", surname),
	}
}

// stageRecurring uses the batch's recurring-amount analysis.
func (e *Engine) stageRecurring(_ context.Context, bc *batchContext, txn model.Transaction) *model.Result {
	if bc.analysis == nil {
		return nil
	}
	return bc.analysis.RecurringMatch(txn)
}

// stageAutoPay matches expenses against the batch's detected auto-pay
// buckets.
func (e *Engine) stageAutoPay(_ context.Context, bc *batchContext, txn model.Transaction) *model.Result {
	if bc.analysis == nil {
		return nil
	}
	pattern := bc.analysis.MatchAutoPay(txn)
	if pattern == nil || pattern.CategoryName == "" {
		return nil
	}

	confidence := pattern.Confidence + e.cfg.AutoPayBoost
	if confidence > 1 {
		confidence = 1
	}

	return &model.Result{
		CategoryID:   pattern.CategoryID,
		CategoryName: pattern.CategoryName,
		Confidence:   confidence,
		Source:       model.SourcePattern,
		Reasoning:    fmt.Sprintf("matches monthly auto-pay %q", pattern.Title),
	}
}

// stageStorePattern looks up the learned store pattern, deferring when a
// statistically very strong UPI or person pattern exists. With no learned
// pattern, the external merchant lookup is consulted under its own quota.
func (e *Engine) stageStorePattern(ctx context.Context, bc *batchContext, txn model.Transaction) *model.Result {
	if strings.TrimSpace(txn.Store) == "" {
		return nil
	}

	if store, ok := e.storePattern(bc, txn); ok {
		if upi, uok := e.upiPattern(bc, txn); uok && upi.Confidence >= e.cfg.UPIOverrideConfidence {
			return nil
		}
		if person, pok := e.personPattern(bc, txn); pok && person.Confidence >= e.cfg.PersonOverrideConfidence {
			return nil
		}
		return patternResult(store, "store seen before in categorized history")
	}

	if e.deps.Merchant == nil {
		return nil
	}
	if !e.deps.Usage.AllowMerchantLookup(bc.userID) {
		slog.Debug("Merchant lookup quota exhausted", "user_id", bc.userID)
		return nil
	}

	suggestion, err := e.deps.Merchant.Lookup(ctx, txn.Store, bc.userID)
	if err != nil {
		slog.Warn("Merchant lookup failed", "store", txn.Store, "error", err)
		return nil
	}
	if suggestion == nil || suggestion.Confidence < e.cfg.MerchantLookupMinConfidence {
		return nil
	}

	return &model.Result{
		CategoryName: suggestion.CategoryName,
		Confidence:   suggestion.Confidence,
		Source:       model.SourcePattern,
		Reasoning:    fmt.Sprintf("merchant lookup (%s)", suggestion.Source),
	}
}

// stageUPIPattern uses the learned UPI pattern. A UPI identity overrides a
// store pattern only when statistically very strong.
func (e *Engine) stageUPIPattern(_ context.Context, bc *batchContext, txn model.Transaction) *model.Result {
	upi, ok := e.upiPattern(bc, txn)
	if !ok {
		return nil
	}
	if _, hasStore := e.storePattern(bc, txn); hasStore && upi.Confidence < e.cfg.UPIOverrideConfidence {
		return nil
	}
	return patternResult(upi, "UPI handle seen before in categorized history")
}

// stagePersonPattern uses the learned person pattern, the least trusted
// identity: it never overrides a store pattern at ordinary confidence.
func (e *Engine) stagePersonPattern(_ context.Context, bc *batchContext, txn model.Transaction) *model.Result {
	person, ok := e.personPattern(bc, txn)
	if !ok {
		return nil
	}
	if _, hasStore := e.storePattern(bc, txn); hasStore && person.Confidence < e.cfg.PersonOverrideConfidence {
		return nil
	}
	return patternResult(person, "counter-party seen before in categorized history")
}

// stageRules is the deterministic keyword/amount fallback.
func (e *Engine) stageRules(ctx context.Context, bc *batchContext, txn model.Transaction) *model.Result {
	result := e.deps.Classifier.Classify(ctx, bc.userID, txn)
	if result.CategoryName == "" {
		return nil
	}
	return &result
}

func (e *Engine) storePattern(bc *batchContext, txn model.Transaction) (model.IdentityPattern, bool) {
	key := patterns.IdentityKey("store:", txn.Store)
	if key == "" {
		return model.IdentityPattern{}, false
	}
	p, ok := bc.patterns.Store[key]
	return p, ok
}

func (e *Engine) upiPattern(bc *batchContext, txn model.Transaction) (model.IdentityPattern, bool) {
	key := patterns.IdentityKey("upi:", txn.UPIID)
	if key == "" {
		return model.IdentityPattern{}, false
	}
	p, ok := bc.patterns.UPI[key]
	return p, ok
}

func (e *Engine) personPattern(bc *batchContext, txn model.Transaction) (model.IdentityPattern, bool) {
	person := txn.PersonName
	if strings.TrimSpace(person) == "" {
		person = patterns.UPILocalPart(txn.UPIID)
	}
	key := patterns.IdentityKey("person:", person)
	if key == "" {
		return model.IdentityPattern{}, false
	}
	p, ok := bc.patterns.Person[key]
	return p, ok
}

func patternResult(p model.IdentityPattern, reason string) *model.Result {
	return &model.Result{
		CategoryID:   p.CategoryID,
		CategoryName: p.CategoryName,
		Confidence:   p.Confidence,
		Source:       model.SourcePattern,
		Reasoning:    fmt.Sprintf("%s (%d of %d transactions)", reason, p.Occurrences, p.Total),
	}
}

// sharedSurname returns the surname two names share, or "". A surname is the
// last whitespace-delimited token; UPI-style strings without spaces fall back
// to the trailing alphabetic run ("amit.sharma" yields "sharma").
func sharedSurname(personName, accountHolderName string) string {
	a := extractSurname(personName)
	b := extractSurname(accountHolderName)
	if a == "" || len(a) < 3 {
		return ""
	}
	if a != b {
		return ""
	}
	return a
}

func extractSurname(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return ""
	}

	if fields := strings.Fields(name); len(fields) > 1 {
		return fields[len(fields)-1]
	}

	// No spaces: strip a UPI domain if present, then take the trailing
	// alphabetic run.
	if at := strings.Index(name, "@"); at > 0 {
		name = name[:at]
	}
	end := len(name)
	start := end
	for start > 0 {
		c := name[start-1]
		if c < 'a' || c > 'z' {
			break
		}
		start--
	}
	if start == end {
		return ""
	}
	return name[start:end]
}
