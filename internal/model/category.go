package model

import "time"

// CategoryType indicates whether a catalog category applies to income,
// expense, or system-managed transactions (transfers).
type CategoryType string

const (
	// CategoryTypeIncome represents categories for income transactions.
	CategoryTypeIncome CategoryType = "income"
	// CategoryTypeExpense represents categories for expense transactions.
	CategoryTypeExpense CategoryType = "expense"
	// CategoryTypeSystem represents system-managed categories (e.g., transfers).
	CategoryTypeSystem CategoryType = "system"
)

// Category is one entry in a user's category catalog. Default categories have
// an empty UserID and are visible to every user alongside their own.
type Category struct {
	CreatedAt time.Time
	Name      string
	UserID    string
	Type      CategoryType
	ID        int64
	IsDefault bool
}
