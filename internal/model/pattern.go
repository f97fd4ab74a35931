package model

import "time"

// IdentityPattern is the most-frequent historical category for one identity
// key (a store, UPI handle, or counter-party person), with a confidence that
// blends purity and volume.
type IdentityPattern struct {
	Key          string
	CategoryName string
	CategoryID   *int64
	Occurrences  int
	Total        int
	Confidence   float64
}

// LoadedPatterns holds the three independent pattern tables mined from a
// user's categorization history. Keys are prefixed ("store:", "upi:",
// "person:"), case-folded and whitespace-collapsed.
type LoadedPatterns struct {
	Store  map[string]IdentityPattern
	UPI    map[string]IdentityPattern
	Person map[string]IdentityPattern
}

// Frequency classifies the cadence of a recurring charge.
type Frequency string

const (
	// FrequencyDaily is a 1-3 day cadence.
	FrequencyDaily Frequency = "DAILY"
	// FrequencyWeekly is a 5-12 day cadence.
	FrequencyWeekly Frequency = "WEEKLY"
	// FrequencyMonthly is a 25-35 day cadence.
	FrequencyMonthly Frequency = "MONTHLY"
)

// AutoPayPattern is a detected recurring monthly charge to one merchant for a
// near-constant amount. The engine emits these; a separate recurring-bill
// feature owns their storage.
type AutoPayPattern struct {
	LastTransactionDate time.Time
	ID                  string
	Title               string
	MerchantIdentifier  string
	CategoryName        string
	Frequency           Frequency
	CategoryID          *int64
	Amount              float64
	Confidence          float64
	OccurrenceCount     int
}
