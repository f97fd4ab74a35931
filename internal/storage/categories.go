package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chitragupta/khata/internal/common"
	"github.com/chitragupta/khata/internal/model"
)

// ListCategories returns the user's categories filtered by transaction direction.
// Income transactions see income and system categories, expense and investment
// transactions see expense and system categories, anything else sees the full
// catalog.
func (s *SQLiteStorage) ListCategories(ctx context.Context, userID string, direction model.FinancialCategory) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, fmt.Errorf("userID cannot be empty")
	}

	cacheKey := userID + "|" + string(direction)
	if cached := s.cachedCategories(cacheKey); cached != nil {
		return cached, nil
	}

	query := `
		SELECT id, user_id, name, type, is_default, created_at
		FROM categories
		WHERE user_id = ?`

	args := []any{userID}
	switch direction {
	case model.FinancialIncome:
		query += ` AND type IN ('income', 'system')`
	case model.FinancialExpense, model.FinancialInvestment:
		query += ` AND type IN ('expense', 'system')`
	}
	query += ` ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var categories []model.Category
	for rows.Next() {
		var cat model.Category
		var catType string
		if err := rows.Scan(&cat.ID, &cat.UserID, &cat.Name, &catType, &cat.IsDefault, &cat.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		cat.Type = model.CategoryType(catType)
		categories = append(categories, cat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	s.cacheCategories(cacheKey, categories)
	slog.Debug("retrieved categories", "user_id", userID, "direction", direction, "count", len(categories))
	return categories, nil
}

func (s *SQLiteStorage) cachedCategories(key string) []model.Category {
	s.cacheMutex.RLock()
	defer s.cacheMutex.RUnlock()

	if time.Now().After(s.cacheExpiry) {
		return nil
	}
	return s.categoryCache[key]
}

func (s *SQLiteStorage) cacheCategories(key string, categories []model.Category) {
	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()

	if len(s.categoryCache) == 0 {
		s.cacheExpiry = time.Now().Add(5 * time.Minute)
	}
	s.categoryCache[key] = categories
}

func (s *SQLiteStorage) invalidateCategoryCache() {
	s.cacheMutex.Lock()
	defer s.cacheMutex.Unlock()

	s.categoryCache = make(map[string][]model.Category)
	s.cacheExpiry = time.Time{}
}

// GetCategoryByName returns a category by its name. The lookup is
// case-insensitive. Returns common.ErrNotFound when no category matches.
func (s *SQLiteStorage) GetCategoryByName(ctx context.Context, userID, name string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("category name cannot be empty")
	}

	query := `
		SELECT id, user_id, name, type, is_default, created_at
		FROM categories
		WHERE user_id = ? AND name = ? COLLATE NOCASE`

	var cat model.Category
	var catType string
	err := s.db.QueryRowContext(ctx, query, userID, name).Scan(
		&cat.ID, &cat.UserID, &cat.Name, &catType, &cat.IsDefault, &cat.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("category %q: %w", name, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query category: %w", err)
	}

	cat.Type = model.CategoryType(catType)
	return &cat, nil
}

// CreateCategory creates a new user category. Duplicate names return
// common.ErrDuplicateEntry.
func (s *SQLiteStorage) CreateCategory(ctx context.Context, userID, name string, catType model.CategoryType) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, fmt.Errorf("userID cannot be empty")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("category name cannot be empty")
	}
	switch catType {
	case model.CategoryTypeIncome, model.CategoryTypeExpense, model.CategoryTypeSystem:
	default:
		return nil, fmt.Errorf("invalid category type %q: %w", catType, common.ErrInvalidConfig)
	}

	now := time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO categories (user_id, name, type, is_default, created_at) VALUES (?, ?, ?, 0, ?)`,
		userID, name, string(catType), now)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, fmt.Errorf("category %q already exists: %w", name, common.ErrDuplicateEntry)
		}
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get category id: %w", err)
	}

	s.invalidateCategoryCache()
	slog.Info("created category", "user_id", userID, "name", name, "type", catType)
	return &model.Category{
		ID:        id,
		UserID:    userID,
		Name:      name,
		Type:      catType,
		CreatedAt: now,
	}, nil
}
