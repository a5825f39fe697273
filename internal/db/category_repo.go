package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/akorkmaz/civita/internal/models"
)

// CategoryRepo provides database operations for problem categories.
type CategoryRepo struct {
	db DBTX
}

// NewCategoryRepo creates a new CategoryRepo.
func NewCategoryRepo(db DBTX) *CategoryRepo {
	return &CategoryRepo{db: db}
}

// Create creates a new category.
func (r *CategoryRepo) Create(ctx context.Context, c *models.Category) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid category: %w", err)
	}

	now := NowUTC()
	query := `INSERT INTO categories (id, name, description, is_active, created_at) VALUES (?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, c.ID, c.Name, nullString(c.Description), boolToInt(c.IsActive), FormatTime(now))
	if err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}

	c.CreatedAt = now
	return nil
}

// GetByID retrieves a category by ID.
func (r *CategoryRepo) GetByID(ctx context.Context, id string) (*models.Category, error) {
	query := `SELECT id, name, description, is_active, created_at FROM categories WHERE id = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// List retrieves categories ordered by name. When activeOnly is true,
// inactive categories are omitted.
func (r *CategoryRepo) List(ctx context.Context, activeOnly bool) ([]*models.Category, error) {
	query := `SELECT id, name, description, is_active, created_at FROM categories`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var categories []*models.Category
	for rows.Next() {
		var c models.Category
		var desc sql.NullString
		var isActive int
		if err := rows.Scan(&c.ID, &c.Name, &desc, &isActive, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		c.Description = desc.String
		c.IsActive = isActive != 0
		categories = append(categories, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}
	return categories, nil
}

// Update updates a category.
func (r *CategoryRepo) Update(ctx context.Context, c *models.Category) error {
	query := `UPDATE categories SET name = ?, description = ?, is_active = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, c.Name, nullString(c.Description), boolToInt(c.IsActive), c.ID)
	if err != nil {
		return fmt.Errorf("failed to update category: %w", err)
	}
	return requireRowAffected(result, "category")
}

func (r *CategoryRepo) scanOne(row *sql.Row) (*models.Category, error) {
	var c models.Category
	var desc sql.NullString
	var isActive int

	err := row.Scan(&c.ID, &c.Name, &desc, &isActive, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan category: %w", err)
	}

	c.Description = desc.String
	c.IsActive = isActive != 0
	return &c, nil
}
