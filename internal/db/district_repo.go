package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/akorkmaz/civita/internal/models"
)

// DistrictRepo provides database operations for districts.
type DistrictRepo struct {
	db DBTX
}

// NewDistrictRepo creates a new DistrictRepo.
func NewDistrictRepo(db DBTX) *DistrictRepo {
	return &DistrictRepo{db: db}
}

// Create creates a new district.
func (r *DistrictRepo) Create(ctx context.Context, d *models.District) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if err := d.Validate(); err != nil {
		return fmt.Errorf("invalid district: %w", err)
	}

	query := `INSERT INTO districts (id, name, city) VALUES (?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, d.ID, d.Name, d.City); err != nil {
		return fmt.Errorf("failed to create district: %w", err)
	}
	return nil
}

// GetByID retrieves a district by ID.
func (r *DistrictRepo) GetByID(ctx context.Context, id string) (*models.District, error) {
	query := `SELECT id, name, city FROM districts WHERE id = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetByNameCity retrieves a district by its composite natural key.
func (r *DistrictRepo) GetByNameCity(ctx context.Context, name, city string) (*models.District, error) {
	query := `SELECT id, name, city FROM districts WHERE name = ? AND city = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, name, city))
}

// List retrieves districts, optionally restricted to a city, ordered by name.
func (r *DistrictRepo) List(ctx context.Context, city string) ([]*models.District, error) {
	query := `SELECT id, name, city FROM districts`
	args := []interface{}{}
	if city != "" {
		query += ` WHERE city = ?`
		args = append(args, city)
	}
	query += ` ORDER BY city, name`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list districts: %w", err)
	}
	defer rows.Close()

	var districts []*models.District
	for rows.Next() {
		var d models.District
		if err := rows.Scan(&d.ID, &d.Name, &d.City); err != nil {
			return nil, fmt.Errorf("failed to scan district: %w", err)
		}
		districts = append(districts, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating districts: %w", err)
	}
	return districts, nil
}

// Delete removes a district.
func (r *DistrictRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM districts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete district: %w", err)
	}
	return requireRowAffected(result, "district")
}

func (r *DistrictRepo) scanOne(row *sql.Row) (*models.District, error) {
	var d models.District
	err := row.Scan(&d.ID, &d.Name, &d.City)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan district: %w", err)
	}
	return &d, nil
}
