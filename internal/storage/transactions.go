package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/chitragupta/khata/internal/model"
)

const historicalColumns = `
	t.date, t.description, COALESCE(t.store, ''), COALESCE(t.commodity, ''),
	COALESCE(t.person_name, ''), COALESCE(t.upi_id, ''),
	COALESCE(c.name, ''), t.category_id,
	t.amount, t.financial_category, t.deleted`

func scanHistorical(rows *sql.Rows) (model.HistoricalTransaction, error) {
	var txn model.HistoricalTransaction
	var direction string
	var categoryID sql.NullInt64
	err := rows.Scan(
		&txn.Date, &txn.Description, &txn.Store, &txn.Commodity,
		&txn.PersonName, &txn.UPIID,
		&txn.CategoryName, &categoryID,
		&txn.Amount, &direction, &txn.Deleted,
	)
	if err != nil {
		return txn, fmt.Errorf("failed to scan transaction: %w", err)
	}
	txn.FinancialCategory = model.FinancialCategory(direction)
	if categoryID.Valid {
		id := categoryID.Int64
		txn.CategoryID = &id
	}
	return txn, nil
}

// CategorizedTransactions returns the user's most recent transactions that
// carry a category assignment, newest first. Soft-deleted rows are excluded.
func (s *SQLiteStorage) CategorizedTransactions(ctx context.Context, userID string, limit int) ([]model.HistoricalTransaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, fmt.Errorf("userID cannot be empty")
	}
	if limit <= 0 {
		limit = 1000
	}

	query := `
		SELECT ` + historicalColumns + `
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = ? AND t.category_id IS NOT NULL AND t.deleted = 0
		ORDER BY t.date DESC
		LIMIT ?`

	return s.queryHistorical(ctx, query, userID, limit)
}

// RecentExpenses returns the user's most recent expense transactions,
// categorized or not, newest first.
func (s *SQLiteStorage) RecentExpenses(ctx context.Context, userID string, limit int) ([]model.HistoricalTransaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, fmt.Errorf("userID cannot be empty")
	}
	if limit <= 0 {
		limit = 500
	}

	query := `
		SELECT ` + historicalColumns + `
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = ? AND t.financial_category = ? AND t.deleted = 0
		ORDER BY t.date DESC
		LIMIT ?`

	return s.queryHistorical(ctx, query, userID, string(model.FinancialExpense), limit)
}

// IncomeNear returns income transactions whose amount is within tolerance
// (a fraction, e.g. 0.10 for 10%) of the given amount, newest first.
func (s *SQLiteStorage) IncomeNear(ctx context.Context, userID string, amount, tolerance float64) ([]model.HistoricalTransaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, fmt.Errorf("userID cannot be empty")
	}
	if amount <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}

	low := amount * (1 - tolerance)
	high := amount * (1 + tolerance)

	query := `
		SELECT ` + historicalColumns + `
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		WHERE t.user_id = ? AND t.financial_category = ?
			AND t.amount BETWEEN ? AND ? AND t.deleted = 0
		ORDER BY t.date DESC`

	return s.queryHistorical(ctx, query, userID, string(model.FinancialIncome), low, high)
}

func (s *SQLiteStorage) queryHistorical(ctx context.Context, query string, args ...any) ([]model.HistoricalTransaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txns []model.HistoricalTransaction
	for rows.Next() {
		txn, err := scanHistorical(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	slog.Debug("retrieved transactions", "count", len(txns))
	return txns, nil
}

// PendingTransaction is a stored transaction that has not been categorized
// yet, carrying the row ID needed to write the assignment back.
type PendingTransaction struct {
	Txn model.Transaction
	ID  int64
}

// PendingTransactions returns the user's uncategorized transactions, oldest
// first so classification sees them in statement order.
func (s *SQLiteStorage) PendingTransactions(ctx context.Context, userID string, limit int) ([]PendingTransaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, fmt.Errorf("userID cannot be empty")
	}
	if limit <= 0 {
		limit = 500
	}

	query := `
		SELECT id, date, description, COALESCE(store, ''), COALESCE(commodity, ''),
			COALESCE(person_name, ''), COALESCE(upi_id, ''), amount, financial_category
		FROM transactions
		WHERE user_id = ? AND category_id IS NULL AND deleted = 0
		ORDER BY date ASC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending transactions: %w", err)
	}
	defer rows.Close()

	var pending []PendingTransaction
	for rows.Next() {
		var p PendingTransaction
		var direction string
		err := rows.Scan(&p.ID, &p.Txn.Date, &p.Txn.Description, &p.Txn.Store,
			&p.Txn.Commodity, &p.Txn.PersonName, &p.Txn.UPIID, &p.Txn.Amount, &direction)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending transaction: %w", err)
		}
		p.Txn.FinancialCategory = model.FinancialCategory(direction)
		pending = append(pending, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending transactions: %w", err)
	}

	return pending, nil
}

// SaveTransactions inserts a batch of transactions for a user. Returns the
// number of rows inserted.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, userID string, txns []model.Transaction) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if userID == "" {
		return 0, fmt.Errorf("userID cannot be empty")
	}
	if len(txns) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transactions
			(user_id, date, description, store, commodity, person_name, upi_id, amount, financial_category)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, txn := range txns {
		_, err := stmt.ExecContext(ctx, userID, txn.Date, txn.Description,
			txn.Store, txn.Commodity, txn.PersonName, txn.UPIID,
			txn.Amount, string(txn.FinancialCategory))
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("failed to insert transaction %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit inserts: %w", err)
	}

	slog.Info("saved transactions", "user_id", userID, "count", len(txns))
	return len(txns), nil
}

// SetTransactionCategory writes a category assignment back to a stored
// transaction.
func (s *SQLiteStorage) SetTransactionCategory(ctx context.Context, id int64, categoryID int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET category_id = ? WHERE id = ?`, categoryID, id)
	if err != nil {
		return fmt.Errorf("failed to update transaction %d: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %d not found", id)
	}
	return nil
}
