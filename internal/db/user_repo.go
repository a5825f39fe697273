package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/akorkmaz/civita/internal/models"
)

// UserRepo provides database operations for users.
type UserRepo struct {
	db DBTX
}

// NewUserRepo creates a new UserRepo.
func NewUserRepo(db DBTX) *UserRepo {
	return &UserRepo{db: db}
}

// UserFilter defines filters for listing users.
type UserFilter struct {
	Role   *models.Role
	TeamID *string
	Limit  int
	Offset int
}

const userColumns = `u.id, u.phone, u.email, u.name, u.password_hash, u.role, u.team_id,
	u.is_verified, u.is_active, u.password_changed_at, u.created_at, u.updated_at, u.deleted_at`

// Create creates a new user.
func (r *UserRepo) Create(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if err := u.Validate(); err != nil {
		return fmt.Errorf("invalid user: %w", err)
	}

	now := NowUTC()
	query := `
		INSERT INTO users (id, phone, email, name, password_hash, role, team_id,
			is_verified, is_active, password_changed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		u.ID, u.Phone, u.Email, u.Name, u.PasswordHash, u.Role, nullStringPtr(u.TeamID),
		boolToInt(u.IsVerified), boolToInt(u.IsActive), nullTime(u.PasswordChangedAt),
		FormatTime(now), FormatTime(now),
	)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	u.CreatedAt = now
	u.UpdatedAt = now
	return nil
}

// GetByID retrieves a user by ID. Soft-deleted users are not returned.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u WHERE u.id = ? AND u.deleted_at IS NULL`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetByEmail retrieves a user by email. Soft-deleted users are not returned.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u WHERE u.email = ? AND u.deleted_at IS NULL`
	return r.scanOne(r.db.QueryRowContext(ctx, query, email))
}

// List retrieves users matching the given filter, newest first.
func (r *UserRepo) List(ctx context.Context, filter UserFilter) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users u WHERE u.deleted_at IS NULL`
	args := []interface{}{}

	if filter.Role != nil {
		query += " AND u.role = ?"
		args = append(args, *filter.Role)
	}
	if filter.TeamID != nil {
		query += " AND u.team_id = ?"
		args = append(args, *filter.TeamID)
	}

	query += " ORDER BY u.created_at DESC, u.id"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	return r.scanMany(rows)
}

// Count counts users matching the given filter.
func (r *UserRepo) Count(ctx context.Context, filter UserFilter) (int, error) {
	query := `SELECT COUNT(*) FROM users u WHERE u.deleted_at IS NULL`
	args := []interface{}{}

	if filter.Role != nil {
		query += " AND u.role = ?"
		args = append(args, *filter.Role)
	}
	if filter.TeamID != nil {
		query += " AND u.team_id = ?"
		args = append(args, *filter.TeamID)
	}

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// ListTeamSupport returns the active SUPPORT members of a team.
// This is the recipient set for team-facing notifications.
func (r *UserRepo) ListTeamSupport(ctx context.Context, teamID string) ([]*models.User, error) {
	role := models.RoleSupport
	return r.List(ctx, UserFilter{Role: &role, TeamID: &teamID})
}

// ListManagers returns all active managers.
func (r *UserRepo) ListManagers(ctx context.Context) ([]*models.User, error) {
	role := models.RoleManager
	return r.List(ctx, UserFilter{Role: &role})
}

// Update updates a user's mutable fields.
func (r *UserRepo) Update(ctx context.Context, u *models.User) error {
	query := `
		UPDATE users SET name = ?, role = ?, team_id = ?, is_verified = ?, is_active = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query,
		u.Name, u.Role, nullStringPtr(u.TeamID), boolToInt(u.IsVerified), boolToInt(u.IsActive),
		FormatTime(NowUTC()), u.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return requireRowAffected(result, "user")
}

// SetTeam assigns or clears a user's team.
func (r *UserRepo) SetTeam(ctx context.Context, userID string, teamID *string) error {
	query := `UPDATE users SET team_id = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, nullStringPtr(teamID), FormatTime(NowUTC()), userID)
	if err != nil {
		return fmt.Errorf("failed to set user team: %w", err)
	}
	return requireRowAffected(result, "user")
}

// ClearTeam detaches every member from a team. Run before team deletion.
func (r *UserRepo) ClearTeam(ctx context.Context, teamID string) error {
	query := `UPDATE users SET team_id = NULL, updated_at = ? WHERE team_id = ?`
	if _, err := r.db.ExecContext(ctx, query, FormatTime(NowUTC()), teamID); err != nil {
		return fmt.Errorf("failed to clear team members: %w", err)
	}
	return nil
}

// SoftDelete marks a user as deleted.
func (r *UserRepo) SoftDelete(ctx context.Context, id string) error {
	query := `UPDATE users SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`
	now := FormatTime(NowUTC())
	result, err := r.db.ExecContext(ctx, query, now, now, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return requireRowAffected(result, "user")
}

func (r *UserRepo) scanOne(row *sql.Row) (*models.User, error) {
	var u models.User
	var teamID sql.NullString
	var isVerified, isActive int
	var passwordChangedAt, deletedAt sql.NullTime

	err := row.Scan(
		&u.ID, &u.Phone, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &teamID,
		&isVerified, &isActive, &passwordChangedAt, &u.CreatedAt, &u.UpdatedAt, &deletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	applyUserNullables(&u, teamID, isVerified, isActive, passwordChangedAt, deletedAt)
	return &u, nil
}

func (r *UserRepo) scanMany(rows *sql.Rows) ([]*models.User, error) {
	var users []*models.User
	for rows.Next() {
		var u models.User
		var teamID sql.NullString
		var isVerified, isActive int
		var passwordChangedAt, deletedAt sql.NullTime

		err := rows.Scan(
			&u.ID, &u.Phone, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &teamID,
			&isVerified, &isActive, &passwordChangedAt, &u.CreatedAt, &u.UpdatedAt, &deletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}

		applyUserNullables(&u, teamID, isVerified, isActive, passwordChangedAt, deletedAt)
		users = append(users, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

func applyUserNullables(u *models.User, teamID sql.NullString, isVerified, isActive int, passwordChangedAt, deletedAt sql.NullTime) {
	if teamID.Valid {
		u.TeamID = &teamID.String
	}
	u.IsVerified = isVerified != 0
	u.IsActive = isActive != 0
	if passwordChangedAt.Valid {
		u.PasswordChangedAt = &passwordChangedAt.Time
	}
	if deletedAt.Valid {
		u.DeletedAt = &deletedAt.Time
	}
}

// requireRowAffected converts a zero-row write into a not-found error.
func requireRowAffected(result sql.Result, entity string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s not found", entity)
	}
	return nil
}
