// Package matcher resolves free-text category names against a user's catalog.
package matcher

import (
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/chitragupta/khata/internal/model"
)

// aliases maps known phrasing variants to canonical catalog names. Keys are
// normalized (lower-case, collapsed whitespace).
var aliases = map[string]string{
	"food":              "Food & Dining",
	"dining":            "Food & Dining",
	"restaurants":       "Food & Dining",
	"eating out":        "Food & Dining",
	"grocery":           "Groceries",
	"supermarket":       "Groceries",
	"medical":           "Healthcare",
	"health":            "Healthcare",
	"pharmacy":          "Healthcare",
	"transport":         "Transportation",
	"travel":            "Transportation",
	"commute":           "Transportation",
	"fuel":              "Transportation",
	"bills":             "Utilities",
	"utility":           "Utilities",
	"recharge":          "Utilities",
	"rent":              "Housing",
	"house":             "Housing",
	"movies":            "Entertainment",
	"subscription":      "Entertainment",
	"subscriptions":     "Entertainment",
	"clothes":           "Shopping",
	"online shopping":   "Shopping",
	"e-commerce":        "Shopping",
	"salary":            "Salary",
	"wages":             "Salary",
	"emi":               "Debt Payment",
	"loan":              "Debt Payment",
	"loan payment":      "Debt Payment",
	"insurance premium": "Insurance",
	"mutual fund":       "Investment",
	"sip":               "Investment",
	"donation":          "Charity & Donations",
	"charity":           "Charity & Donations",
	"gift":              "Gifts & Donations",
	"fees":              "Fees & Charges",
	"bank charges":      "Fees & Charges",
	"misc":              "Miscellaneous",
	"other":             "Miscellaneous",
	"tax":               "Taxes",
	"school":            "Education",
	"tuition":           "Education",
}

// Match resolves a suggested category name against the catalog: exact
// case-insensitive match first, then the alias table, then edit-distance
// matching with adaptive thresholds. Returns nil if nothing matches closely
// enough.
func Match(suggested string, catalog []model.Category) *model.Category {
	name := normalize(suggested)
	if name == "" || len(catalog) == 0 {
		return nil
	}

	// Exact match
	for i := range catalog {
		if normalize(catalog[i].Name) == name {
			return &catalog[i]
		}
	}

	// Alias table
	if canonical, ok := aliases[name]; ok {
		target := normalize(canonical)
		for i := range catalog {
			if normalize(catalog[i].Name) == target {
				return &catalog[i]
			}
		}
	}

	// Edit distance with adaptive thresholds. A candidate is considered at
	// all only within max(3, 30% of length); the best candidate is accepted
	// only within max(2, 20% of length). Short names stay strict so "Tax"
	// cannot drift to "Taxi".
	considerLimit := maxInt(3, len(name)*30/100)
	acceptLimit := maxInt(2, len(name)*20/100)

	var best *model.Category
	bestDistance := considerLimit + 1
	for i := range catalog {
		d := levenshtein.ComputeDistance(name, normalize(catalog[i].Name))
		if d <= considerLimit && d < bestDistance {
			best = &catalog[i]
			bestDistance = d
		}
	}

	if best != nil && bestDistance <= acceptLimit {
		return best
	}
	return nil
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
