// Package model defines the core data structures for the khata engine.
package model

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
)

// FinancialCategory is the coarse direction of a transaction, distinct from
// the fine-grained spending category the engine assigns.
type FinancialCategory string

const (
	// FinancialIncome represents money coming in.
	FinancialIncome FinancialCategory = "INCOME"
	// FinancialExpense represents money going out.
	FinancialExpense FinancialCategory = "EXPENSE"
	// FinancialTransfer represents movement between own accounts or people.
	FinancialTransfer FinancialCategory = "TRANSFER"
	// FinancialInvestment represents investment buys and redemptions.
	FinancialInvestment FinancialCategory = "INVESTMENT"
	// FinancialOther represents anything the importer could not direction-tag.
	FinancialOther FinancialCategory = "OTHER"
)

// Transaction is a single bank-statement transaction to categorize. It has no
// identity beyond its position in the input batch and is never persisted by
// the engine.
type Transaction struct {
	Date              time.Time
	Description       string
	Store             string
	Commodity         string
	PersonName        string
	UPIID             string
	AccountHolderName string
	Amount            float64
	FinancialCategory FinancialCategory
}

// Fingerprint returns a stable structural hash over the
// classification-relevant fields. Field order is fixed here, so the
// fingerprint does not depend on any serialization library's key ordering.
func (t *Transaction) Fingerprint() string {
	data := fmt.Sprintf("%s|%s|%s|%s|%.2f|%s",
		strings.ToLower(strings.TrimSpace(t.Description)),
		strings.ToLower(strings.TrimSpace(t.Store)),
		strings.ToLower(strings.TrimSpace(t.PersonName)),
		strings.ToLower(strings.TrimSpace(t.UPIID)),
		t.Amount,
		t.FinancialCategory)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// HistoricalTransaction is a previously imported transaction read back from
// the history store. The engine only ever reads these.
type HistoricalTransaction struct {
	Date              time.Time
	Description       string
	Store             string
	Commodity         string
	PersonName        string
	UPIID             string
	CategoryName      string
	CategoryID        *int64
	Amount            float64
	FinancialCategory FinancialCategory
	Deleted           bool
}
