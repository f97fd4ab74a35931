package ai

import (
	"fmt"
	"strings"

	"github.com/chitragupta/khata/internal/model"
)

// BuildPrompt renders one chunk of transactions and the user's available
// category names into the provider prompt. Transactions are numbered from 1;
// the response must reference them by that index.
func BuildPrompt(categories []model.Category, txns []model.Transaction) string {
	var sb strings.Builder

	sb.WriteString("Categorize these bank transactions into the available categories.\n\n")

	sb.WriteString("Available categories:\n")
	for _, cat := range categories {
		sb.WriteString("- ")
		sb.WriteString(cat.Name)
		sb.WriteString("\n")
	}

	sb.WriteString("\nTransactions:\n")
	for i, txn := range txns {
		sb.WriteString(fmt.Sprintf("%d. %s", i+1, txn.Description))
		if txn.Store != "" {
			sb.WriteString(fmt.Sprintf(" | merchant: %s", txn.Store))
		}
		if txn.UPIID != "" {
			sb.WriteString(fmt.Sprintf(" | upi: %s", txn.UPIID))
		}
		if txn.PersonName != "" {
			sb.WriteString(fmt.Sprintf(" | person: %s", txn.PersonName))
		}
		sb.WriteString(fmt.Sprintf(" | amount: %.2f | direction: %s | date: %s\n",
			txn.Amount, txn.FinancialCategory, txn.Date.Format("2006-01-02")))
	}

	sb.WriteString(`
Respond with a JSON array, one object per transaction:
[{"index": 1, "category": "<category name>", "confidence": 0.0-1.0, "reasoning": "<short reason>"}]

Use only the category names listed above. Index is 1-based and must match the transaction numbering.`)

	return sb.String()
}
