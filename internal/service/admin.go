package service

import (
	"context"
	"database/sql"
	"strings"

	"go.uber.org/zap"

	"github.com/akorkmaz/civita/internal/apperr"
	"github.com/akorkmaz/civita/internal/db"
	"github.com/akorkmaz/civita/internal/models"
)

// AdminService covers the manager-only administration surface: teams with
// their routing bindings, categories, districts and user management.
type AdminService struct {
	d   *db.DB
	log *zap.Logger
}

// NewAdminService creates an AdminService.
func NewAdminService(d *db.DB, log *zap.Logger) *AdminService {
	return &AdminService{d: d, log: log}
}

// TeamInput carries team fields plus the routing bindings to apply.
type TeamInput struct {
	Name        string
	Description string
	CategoryIDs []string
	DistrictIDs []string
}

// CreateTeam creates a team and binds its categories and districts.
func (s *AdminService) CreateTeam(ctx context.Context, in TeamInput) (*models.Team, error) {
	team := &models.Team{Name: in.Name, Description: in.Description}
	err := s.d.WithTx(ctx, func(tx *sql.Tx) error {
		teams := db.NewTeamRepo(tx)
		if err := teams.Create(ctx, team); err != nil {
			if isUniqueViolation(err) {
				return apperr.Conflict("a team named %q already exists", in.Name)
			}
			return err
		}
		return s.bindTeam(ctx, tx, team.ID, in)
	})
	if err != nil {
		return nil, err
	}
	return team, nil
}

// UpdateTeam updates a team's fields and replaces its bindings.
func (s *AdminService) UpdateTeam(ctx context.Context, teamID string, in TeamInput) (*models.Team, error) {
	var team *models.Team
	err := s.d.WithTx(ctx, func(tx *sql.Tx) error {
		teams := db.NewTeamRepo(tx)
		var err error
		team, err = teams.GetByID(ctx, teamID)
		if err != nil {
			return err
		}
		if team == nil {
			return apperr.NotFound("team not found")
		}

		team.Name = in.Name
		team.Description = in.Description
		if err := teams.Update(ctx, team); err != nil {
			if isUniqueViolation(err) {
				return apperr.Conflict("a team named %q already exists", in.Name)
			}
			return err
		}
		return s.bindTeam(ctx, tx, teamID, in)
	})
	if err != nil {
		return nil, err
	}
	return team, nil
}

func (s *AdminService) bindTeam(ctx context.Context, tx *sql.Tx, teamID string, in TeamInput) error {
	teams := db.NewTeamRepo(tx)
	cats := db.NewCategoryRepo(tx)
	dists := db.NewDistrictRepo(tx)

	for _, id := range in.CategoryIDs {
		c, err := cats.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if c == nil {
			return apperr.NotFound("category %s not found", id)
		}
	}
	for _, id := range in.DistrictIDs {
		d, err := dists.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if d == nil {
			return apperr.NotFound("district %s not found", id)
		}
	}

	if err := teams.SetCategories(ctx, teamID, in.CategoryIDs); err != nil {
		return err
	}
	return teams.SetDistricts(ctx, teamID, in.DistrictIDs)
}

// DeleteTeam removes a team. Members are detached first; the fallback team
// cannot be deleted.
func (s *AdminService) DeleteTeam(ctx context.Context, teamID string) error {
	return s.d.WithTx(ctx, func(tx *sql.Tx) error {
		teams := db.NewTeamRepo(tx)
		team, err := teams.GetByID(ctx, teamID)
		if err != nil {
			return err
		}
		if team == nil {
			return apperr.NotFound("team not found")
		}
		if team.IsFallback {
			return apperr.BadRequest("the fallback team cannot be deleted")
		}
		if err := db.NewUserRepo(tx).ClearTeam(ctx, teamID); err != nil {
			return err
		}
		return teams.Delete(ctx, teamID)
	})
}

// GetTeam returns a team with its routing bindings.
func (s *AdminService) GetTeam(ctx context.Context, teamID string) (*models.Team, []string, []string, error) {
	teams := db.NewTeamRepo(s.d)
	team, err := teams.GetByID(ctx, teamID)
	if err != nil {
		return nil, nil, nil, err
	}
	if team == nil {
		return nil, nil, nil, apperr.NotFound("team not found")
	}
	categoryIDs, err := teams.CategoryIDs(ctx, teamID)
	if err != nil {
		return nil, nil, nil, err
	}
	districtIDs, err := teams.DistrictIDs(ctx, teamID)
	if err != nil {
		return nil, nil, nil, err
	}
	return team, categoryIDs, districtIDs, nil
}

// ListTeams returns all teams.
func (s *AdminService) ListTeams(ctx context.Context) ([]*models.Team, error) {
	return db.NewTeamRepo(s.d).List(ctx)
}

// SetUserTeam moves a user onto a team, or off any team when teamID is nil.
// Only staff accounts can belong to teams.
func (s *AdminService) SetUserTeam(ctx context.Context, userID string, teamID *string) error {
	return s.d.WithTx(ctx, func(tx *sql.Tx) error {
		users := db.NewUserRepo(tx)
		user, err := users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if user == nil {
			return apperr.NotFound("user not found")
		}
		if teamID != nil {
			if !user.Role.IsStaff() {
				return apperr.BadRequest("only support and manager accounts can join teams")
			}
			team, err := db.NewTeamRepo(tx).GetByID(ctx, *teamID)
			if err != nil {
				return err
			}
			if team == nil {
				return apperr.NotFound("team not found")
			}
		}
		return users.SetTeam(ctx, userID, teamID)
	})
}

// CreateCategory creates a problem category.
func (s *AdminService) CreateCategory(ctx context.Context, name, description string) (*models.Category, error) {
	c := &models.Category{Name: name, Description: description, IsActive: true}
	if err := db.NewCategoryRepo(s.d).Create(ctx, c); err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.Conflict("a category named %q already exists", name)
		}
		return nil, err
	}
	return c, nil
}

// UpdateCategory updates a category; deactivating it stops new reports.
func (s *AdminService) UpdateCategory(ctx context.Context, id, name, description string, isActive bool) (*models.Category, error) {
	repo := db.NewCategoryRepo(s.d)
	c, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperr.NotFound("category not found")
	}

	c.Name = name
	c.Description = description
	c.IsActive = isActive
	if err := repo.Update(ctx, c); err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.Conflict("a category named %q already exists", name)
		}
		return nil, err
	}
	return c, nil
}

// ListCategories returns categories; citizens get only active ones.
func (s *AdminService) ListCategories(ctx context.Context, activeOnly bool) ([]*models.Category, error) {
	return db.NewCategoryRepo(s.d).List(ctx, activeOnly)
}

// CreateDistrict creates a district.
func (s *AdminService) CreateDistrict(ctx context.Context, name, city string) (*models.District, error) {
	d := &models.District{Name: name, City: city}
	if err := db.NewDistrictRepo(s.d).Create(ctx, d); err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.Conflict("district %q already exists in %s", name, city)
		}
		return nil, err
	}
	return d, nil
}

// DeleteDistrict removes a district and its team bindings.
func (s *AdminService) DeleteDistrict(ctx context.Context, id string) error {
	err := db.NewDistrictRepo(s.d).Delete(ctx, id)
	if err != nil && strings.Contains(err.Error(), "not found") {
		return apperr.NotFound("district not found")
	}
	return err
}

// ListDistricts returns districts, optionally scoped to a city.
func (s *AdminService) ListDistricts(ctx context.Context, city string) ([]*models.District, error) {
	return db.NewDistrictRepo(s.d).List(ctx, city)
}

// UserListQuery filters the user list.
type UserListQuery struct {
	Role     *models.Role
	TeamID   *string
	Page     int
	PageSize int
}

// ListUsers returns users matching the query. The user list allows a larger
// page size than other lists.
func (s *AdminService) ListUsers(ctx context.Context, q UserListQuery) ([]*models.User, int, error) {
	filter := db.UserFilter{Role: q.Role, TeamID: q.TeamID}
	filter.Limit, filter.Offset = pageBounds(q.Page, q.PageSize, MaxUserPageSize)

	users := db.NewUserRepo(s.d)
	total, err := users.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	items, err := users.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// DeleteUser soft-deletes a user account.
func (s *AdminService) DeleteUser(ctx context.Context, userID string) error {
	err := db.NewUserRepo(s.d).SoftDelete(ctx, userID)
	if err != nil && strings.Contains(err.Error(), "not found") {
		return apperr.NotFound("user not found")
	}
	return err
}
