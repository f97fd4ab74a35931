// Package patterns mines a user's categorization history into identity
// pattern tables used by the classification pipeline.
package patterns

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/chitragupta/khata/internal/model"
	"github.com/chitragupta/khata/internal/service"
)

// Config holds the learner's tunable floors.
type Config struct {
	// HistoryLimit caps how many categorized transactions a single learn
	// pass reads.
	HistoryLimit int
	// MinStoreConfidence is the floor below which store and UPI patterns
	// are discarded.
	MinStoreConfidence float64
	// MinPersonConfidence is the floor for person patterns. Person names are
	// the least trusted identity, so the bar is higher.
	MinPersonConfidence float64
}

// DefaultConfig returns the default learner floors.
func DefaultConfig() Config {
	return Config{
		HistoryLimit:        1000,
		MinStoreConfidence:  0.5,
		MinPersonConfidence: 0.6,
	}
}

// Learner builds identity pattern tables from the history store. It never
// mutates history; it is purely a read/aggregate.
type Learner struct {
	history service.HistoryStore
	cfg     Config
}

// NewLearner creates a pattern learner backed by the given history store.
func NewLearner(history service.HistoryStore, cfg Config) *Learner {
	return &Learner{history: history, cfg: cfg}
}

// categoryCount tracks per-category occurrences for one identity key.
type categoryCount struct {
	byCategory map[string]int
	categoryID map[string]*int64
	total      int
}

// Learn mines the user's categorized, non-deleted transactions into three
// independent pattern tables keyed by store, UPI id, and counter-party
// person.
func (l *Learner) Learn(ctx context.Context, userID string) (model.LoadedPatterns, error) {
	history, err := l.history.CategorizedTransactions(ctx, userID, l.cfg.HistoryLimit)
	if err != nil {
		return model.LoadedPatterns{}, fmt.Errorf("failed to load categorized history: %w", err)
	}

	storeCounts := make(map[string]*categoryCount)
	upiCounts := make(map[string]*categoryCount)
	personCounts := make(map[string]*categoryCount)

	for _, txn := range history {
		if txn.Deleted || txn.CategoryName == "" {
			continue
		}

		if key := IdentityKey("store:", txn.Store); key != "" {
			count(storeCounts, key, txn)
		}
		if key := IdentityKey("upi:", txn.UPIID); key != "" {
			count(upiCounts, key, txn)
		}

		// Person identity falls back to the UPI handle's local part: many
		// statements carry "ramesh.kumar@okaxis" but no person field.
		person := txn.PersonName
		if person == "" {
			person = UPILocalPart(txn.UPIID)
		}
		if key := IdentityKey("person:", person); key != "" {
			count(personCounts, key, txn)
		}
	}

	loaded := model.LoadedPatterns{
		Store:  reduce(storeCounts, l.cfg.MinStoreConfidence),
		UPI:    reduce(upiCounts, l.cfg.MinStoreConfidence),
		Person: reduce(personCounts, l.cfg.MinPersonConfidence),
	}

	slog.Debug("Learned identity patterns",
		"user_id", userID,
		"store", len(loaded.Store),
		"upi", len(loaded.UPI),
		"person", len(loaded.Person))

	return loaded, nil
}

// IdentityKey builds a normalized, prefixed pattern key from a raw identity
// value. Empty values produce an empty key.
func IdentityKey(prefix, value string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(value)), " ")
	if normalized == "" {
		return ""
	}
	return prefix + normalized
}

// UPILocalPart returns the part of a UPI handle before '@', or "" when the
// value does not look like a UPI handle.
func UPILocalPart(upiID string) string {
	at := strings.Index(upiID, "@")
	if at <= 0 {
		return ""
	}
	return upiID[:at]
}

func count(counts map[string]*categoryCount, key string, txn model.HistoricalTransaction) {
	c, ok := counts[key]
	if !ok {
		c = &categoryCount{
			byCategory: make(map[string]int),
			categoryID: make(map[string]*int64),
		}
		counts[key] = c
	}
	c.byCategory[txn.CategoryName]++
	c.categoryID[txn.CategoryName] = txn.CategoryID
	c.total++
}

// reduce collapses raw counts into one pattern per identity key: the most
// frequent category, scored by Confidence, dropping anything below the floor.
func reduce(counts map[string]*categoryCount, floor float64) map[string]model.IdentityPattern {
	patterns := make(map[string]model.IdentityPattern, len(counts))

	for key, c := range counts {
		var topCategory string
		var topCount int
		for category, n := range c.byCategory {
			if n > topCount || (n == topCount && category < topCategory) {
				topCategory = category
				topCount = n
			}
		}

		confidence := Confidence(topCount, c.total)
		if confidence < floor {
			continue
		}

		patterns[key] = model.IdentityPattern{
			Key:          key,
			CategoryName: topCategory,
			CategoryID:   c.categoryID[topCategory],
			Occurrences:  topCount,
			Total:        c.total,
			Confidence:   confidence,
		}
	}

	return patterns
}

// Confidence blends purity (how often this identity maps to this category)
// with volume (how many times it has been seen), capped so a single
// occurrence cannot reach maximal confidence:
//
//	min(1, occurrences/total + min(0.3, log10(occurrences+1)/10))
func Confidence(occurrences, total int) float64 {
	if total == 0 {
		return 0
	}
	ratio := float64(occurrences) / float64(total)
	volume := math.Log10(float64(occurrences)+1) / 10
	if volume > 0.3 {
		volume = 0.3
	}
	confidence := ratio + volume
	if confidence > 1 {
		return 1
	}
	return confidence
}
