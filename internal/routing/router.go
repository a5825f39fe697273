// Package routing maps new tickets to the team responsible for them.
package routing

import (
	"context"
	"fmt"

	"github.com/akorkmaz/civita/internal/db"
	"github.com/akorkmaz/civita/internal/models"
)

// Router resolves which team handles a (category, district, city) combination.
//
// Resolution runs in priority order:
//  1. a team joined to the category and to the exact (district, city)
//  2. a team joined to the category and to any district in the city
//  3. a team joined to the category alone
//  4. the configured fallback team, if any
//
// Each level tie-breaks on lowest team id, so routing is deterministic for a
// fixed seed. A nil result means the ticket stays unassigned and surfaces to
// managers for manual assignment.
type Router struct {
	teams   *db.TeamRepo
	tickets *db.TicketRepo
}

// NewRouter creates a Router over the given database handle or transaction.
func NewRouter(dbtx db.DBTX) *Router {
	return &Router{
		teams:   db.NewTeamRepo(dbtx),
		tickets: db.NewTicketRepo(dbtx),
	}
}

// FindMatchingTeam resolves the team for a new ticket. districtName may be
// empty, in which case only city- and category-level matches apply.
func (r *Router) FindMatchingTeam(ctx context.Context, categoryID, districtName, city string) (*models.Team, error) {
	if districtName != "" {
		team, err := r.teams.FindByCategoryAndDistrict(ctx, categoryID, districtName, city)
		if err != nil {
			return nil, fmt.Errorf("district-level routing failed: %w", err)
		}
		if team != nil {
			return team, nil
		}
	}

	team, err := r.teams.FindByCategoryAndCity(ctx, categoryID, city)
	if err != nil {
		return nil, fmt.Errorf("city-level routing failed: %w", err)
	}
	if team != nil {
		return team, nil
	}

	team, err = r.teams.FindByCategory(ctx, categoryID)
	if err != nil {
		return nil, fmt.Errorf("category-level routing failed: %w", err)
	}
	if team != nil {
		return team, nil
	}

	team, err = r.teams.GetFallback(ctx)
	if err != nil {
		return nil, fmt.Errorf("fallback routing failed: %w", err)
	}
	return team, nil
}

// Workload returns how many tickets in active statuses are assigned to the
// team. Used by analytics, never by routing decisions.
func (r *Router) Workload(ctx context.Context, teamID string) (int, error) {
	return r.tickets.CountActiveByTeam(ctx, teamID)
}
