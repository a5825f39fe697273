package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/akorkmaz/civita/internal/models"
)

// TeamRepo provides database operations for teams and their routing joins.
type TeamRepo struct {
	db DBTX
}

// NewTeamRepo creates a new TeamRepo.
func NewTeamRepo(db DBTX) *TeamRepo {
	return &TeamRepo{db: db}
}

// Create creates a new team.
func (r *TeamRepo) Create(ctx context.Context, t *models.Team) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid team: %w", err)
	}

	now := NowUTC()
	query := `
		INSERT INTO teams (id, name, description, is_fallback, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.Name, nullString(t.Description), boolToInt(t.IsFallback),
		FormatTime(now), FormatTime(now),
	)
	if err != nil {
		return fmt.Errorf("failed to create team: %w", err)
	}

	t.CreatedAt = now
	t.UpdatedAt = now
	return nil
}

// GetByID retrieves a team by ID.
func (r *TeamRepo) GetByID(ctx context.Context, id string) (*models.Team, error) {
	query := `
		SELECT t.id, t.name, t.description, t.is_fallback, t.created_at, t.updated_at,
			(SELECT COUNT(*) FROM users u WHERE u.team_id = t.id AND u.deleted_at IS NULL)
		FROM teams t WHERE t.id = ?
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// List retrieves all teams ordered by name.
func (r *TeamRepo) List(ctx context.Context) ([]*models.Team, error) {
	query := `
		SELECT t.id, t.name, t.description, t.is_fallback, t.created_at, t.updated_at,
			(SELECT COUNT(*) FROM users u WHERE u.team_id = t.id AND u.deleted_at IS NULL)
		FROM teams t ORDER BY t.name
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	defer rows.Close()

	var teams []*models.Team
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		teams = append(teams, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating teams: %w", err)
	}
	return teams, nil
}

// Update updates a team's name and description.
func (r *TeamRepo) Update(ctx context.Context, t *models.Team) error {
	query := `UPDATE teams SET name = ?, description = ?, updated_at = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, t.Name, nullString(t.Description), FormatTime(NowUTC()), t.ID)
	if err != nil {
		return fmt.Errorf("failed to update team: %w", err)
	}
	return requireRowAffected(result, "team")
}

// Delete removes a team. Members must be detached first (see UserRepo.ClearTeam).
func (r *TeamRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM teams WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete team: %w", err)
	}
	return requireRowAffected(result, "team")
}

// GetFallback returns the designated fallback team, or nil if none is configured.
func (r *TeamRepo) GetFallback(ctx context.Context) (*models.Team, error) {
	query := `
		SELECT t.id, t.name, t.description, t.is_fallback, t.created_at, t.updated_at, 0
		FROM teams t WHERE t.is_fallback = 1 ORDER BY t.id LIMIT 1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query))
}

// SetCategories replaces the set of categories a team handles.
func (r *TeamRepo) SetCategories(ctx context.Context, teamID string, categoryIDs []string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM team_categories WHERE team_id = ?`, teamID); err != nil {
		return fmt.Errorf("failed to clear team categories: %w", err)
	}
	for _, cid := range categoryIDs {
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO team_categories (team_id, category_id) VALUES (?, ?)`, teamID, cid); err != nil {
			return fmt.Errorf("failed to add team category: %w", err)
		}
	}
	return nil
}

// SetDistricts replaces the set of districts a team covers.
func (r *TeamRepo) SetDistricts(ctx context.Context, teamID string, districtIDs []string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM team_districts WHERE team_id = ?`, teamID); err != nil {
		return fmt.Errorf("failed to clear team districts: %w", err)
	}
	for _, did := range districtIDs {
		if _, err := r.db.ExecContext(ctx,
			`INSERT INTO team_districts (team_id, district_id) VALUES (?, ?)`, teamID, did); err != nil {
			return fmt.Errorf("failed to add team district: %w", err)
		}
	}
	return nil
}

// CategoryIDs returns the category ids joined to a team.
func (r *TeamRepo) CategoryIDs(ctx context.Context, teamID string) ([]string, error) {
	return r.ids(ctx, `SELECT category_id FROM team_categories WHERE team_id = ? ORDER BY category_id`, teamID)
}

// DistrictIDs returns the district ids joined to a team.
func (r *TeamRepo) DistrictIDs(ctx context.Context, teamID string) ([]string, error) {
	return r.ids(ctx, `SELECT district_id FROM team_districts WHERE team_id = ? ORDER BY district_id`, teamID)
}

// Routing lookups. Each priority level tie-breaks on lowest team id so that
// routing is deterministic for a fixed seed.

// FindByCategoryAndDistrict returns a team joined to the category and to the
// district matching (districtName, city).
func (r *TeamRepo) FindByCategoryAndDistrict(ctx context.Context, categoryID, districtName, city string) (*models.Team, error) {
	query := `
		SELECT t.id, t.name, t.description, t.is_fallback, t.created_at, t.updated_at, 0
		FROM teams t
		JOIN team_categories tc ON tc.team_id = t.id AND tc.category_id = ?
		JOIN team_districts td ON td.team_id = t.id
		JOIN districts d ON d.id = td.district_id
		WHERE d.name = ? AND d.city = ?
		ORDER BY t.id LIMIT 1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, categoryID, districtName, city))
}

// FindByCategoryAndCity returns a team joined to the category and to any
// district in the given city.
func (r *TeamRepo) FindByCategoryAndCity(ctx context.Context, categoryID, city string) (*models.Team, error) {
	query := `
		SELECT t.id, t.name, t.description, t.is_fallback, t.created_at, t.updated_at, 0
		FROM teams t
		JOIN team_categories tc ON tc.team_id = t.id AND tc.category_id = ?
		JOIN team_districts td ON td.team_id = t.id
		JOIN districts d ON d.id = td.district_id
		WHERE d.city = ?
		ORDER BY t.id LIMIT 1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, categoryID, city))
}

// FindByCategory returns a team joined to the category, regardless of district.
func (r *TeamRepo) FindByCategory(ctx context.Context, categoryID string) (*models.Team, error) {
	query := `
		SELECT t.id, t.name, t.description, t.is_fallback, t.created_at, t.updated_at, 0
		FROM teams t
		JOIN team_categories tc ON tc.team_id = t.id AND tc.category_id = ?
		ORDER BY t.id LIMIT 1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, categoryID))
}

func (r *TeamRepo) ids(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ids: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *TeamRepo) scanOne(row *sql.Row) (*models.Team, error) {
	var t models.Team
	var desc sql.NullString
	var isFallback int

	err := row.Scan(&t.ID, &t.Name, &desc, &isFallback, &t.CreatedAt, &t.UpdatedAt, &t.MemberCount)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan team: %w", err)
	}

	t.Description = desc.String
	t.IsFallback = isFallback != 0
	return &t, nil
}

func scanTeam(rows *sql.Rows) (*models.Team, error) {
	var t models.Team
	var desc sql.NullString
	var isFallback int

	if err := rows.Scan(&t.ID, &t.Name, &desc, &isFallback, &t.CreatedAt, &t.UpdatedAt, &t.MemberCount); err != nil {
		return nil, fmt.Errorf("failed to scan team: %w", err)
	}

	t.Description = desc.String
	t.IsFallback = isFallback != 0
	return &t, nil
}
