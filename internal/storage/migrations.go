package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS categories (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id TEXT NOT NULL,
					name TEXT NOT NULL,
					type TEXT NOT NULL,
					is_default BOOLEAN DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(user_id, name)
				)`,
				`CREATE INDEX idx_categories_user ON categories(user_id)`,

				`CREATE TABLE IF NOT EXISTS transactions (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					user_id TEXT NOT NULL,
					date DATETIME NOT NULL,
					description TEXT NOT NULL,
					store TEXT,
					commodity TEXT,
					person_name TEXT,
					upi_id TEXT,
					amount REAL NOT NULL,
					financial_category TEXT NOT NULL,
					category_id INTEGER,
					deleted BOOLEAN DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (category_id) REFERENCES categories(id)
				)`,
				`CREATE INDEX idx_transactions_user_date ON transactions(user_id, date)`,
				`CREATE INDEX idx_transactions_category ON transactions(category_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Add amount lookup index for salary and recurring detection",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_transactions_user_amount ON transactions(user_id, amount)`)
			return err
		},
	},
	{
		Version:     3,
		Description: "Add index for uncategorized transaction scans",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_transactions_pending ON transactions(user_id, category_id) WHERE category_id IS NULL`)
			return err
		},
	},
}

// SchemaVersion returns the database's current schema version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	currentVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// defaultCategories are seeded for a user the first time the catalog is touched.
var defaultCategories = []struct {
	Name string
	Type string
}{
	{"Groceries", "expense"},
	{"Food & Dining", "expense"},
	{"Shopping", "expense"},
	{"Utilities", "expense"},
	{"Transportation", "expense"},
	{"Healthcare", "expense"},
	{"Entertainment", "expense"},
	{"Education", "expense"},
	{"Insurance", "expense"},
	{"Housing", "expense"},
	{"Debt Payment", "expense"},
	{"Fees & Charges", "expense"},
	{"Charity & Donations", "expense"},
	{"Taxes", "expense"},
	{"Miscellaneous", "expense"},
	{"Salary", "income"},
	{"Income", "income"},
	{"Gifts & Donations", "income"},
	{"Transfer", "system"},
	{"Family", "system"},
	{"Investment", "system"},
	{"Refund", "system"},
}

// SeedDefaultCategories inserts the default category set for a user.
// Existing categories with the same name are left untouched.
func (s *SQLiteStorage) SeedDefaultCategories(ctx context.Context, userID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if userID == "" {
		return fmt.Errorf("userID cannot be empty")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	for _, c := range defaultCategories {
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO categories (user_id, name, type, is_default) VALUES (?, ?, ?, 1)`,
			userID, c.Name, c.Type)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to seed category %q: %w", c.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit seed: %w", err)
	}

	s.invalidateCategoryCache()
	slog.Debug("Seeded default categories", "user_id", userID, "count", len(defaultCategories))
	return nil
}
