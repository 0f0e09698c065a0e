package repository

import (
	"context"
	"database/sql"
	"fmt"

	"plant-market/internal/domain"
)

// CategoryRepository reads the catalog's categories. Categories are not a
// table of their own; they are derived from the products listed under them.
type CategoryRepository interface {
	List(ctx context.Context) ([]*domain.Category, error)
}

type categoryRepository struct {
	db *sql.DB
}

// NewCategoryRepository creates a new instance of CategoryRepository
func NewCategoryRepository(db *sql.DB) CategoryRepository {
	return &categoryRepository{db: db}
}

// List returns every non-empty category with its product counts
func (r *categoryRepository) List(ctx context.Context) ([]*domain.Category, error) {
	query := `
		SELECT category, COUNT(*), COUNT(*) FILTER (WHERE stock > 0)
		FROM products
		WHERE category <> ''
		GROUP BY category
		ORDER BY category ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := []*domain.Category{}
	for rows.Next() {
		category := &domain.Category{}
		if err := rows.Scan(&category.Name, &category.ProductCount, &category.InStockCount); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, category)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	return categories, nil
}
