package service

import (
	"context"

	"github.com/akorkmaz/civita/internal/db"
	"github.com/akorkmaz/civita/internal/routing"
)

// AnalyticsService aggregates the reporting overview managers see.
type AnalyticsService struct {
	d *db.DB
}

// NewAnalyticsService creates an AnalyticsService.
func NewAnalyticsService(d *db.DB) *AnalyticsService {
	return &AnalyticsService{d: d}
}

// TeamStats is the per-team slice of the overview.
type TeamStats struct {
	TeamID        string   `json:"team_id"`
	Name          string   `json:"name"`
	TotalTickets  int      `json:"total_tickets"`
	ActiveTickets int      `json:"active_tickets"`
	AverageRating *float64 `json:"average_rating,omitempty"`
}

// Overview is the aggregate report.
type Overview struct {
	StatusCounts             map[string]int `json:"status_counts"`
	CategoryCounts           map[string]int `json:"category_counts"`
	DistrictCounts           map[string]int `json:"district_counts"`
	Teams                    []TeamStats    `json:"teams"`
	AverageResolutionSeconds float64        `json:"average_resolution_seconds"`
	AverageRating            float64        `json:"average_rating"`
}

// Overview computes ticket counts by status, category, district and team,
// team workloads, the mean resolution time and the mean feedback rating.
func (s *AnalyticsService) Overview(ctx context.Context) (*Overview, error) {
	analytics := db.NewAnalyticsRepo(s.d)

	o := &Overview{}
	var err error
	if o.StatusCounts, err = analytics.StatusCounts(ctx); err != nil {
		return nil, err
	}
	if o.CategoryCounts, err = analytics.CategoryCounts(ctx); err != nil {
		return nil, err
	}
	if o.DistrictCounts, err = analytics.DistrictCounts(ctx); err != nil {
		return nil, err
	}
	if o.AverageResolutionSeconds, err = analytics.AverageResolutionSeconds(ctx); err != nil {
		return nil, err
	}
	if o.AverageRating, err = analytics.AverageRating(ctx); err != nil {
		return nil, err
	}

	teams, err := db.NewTeamRepo(s.d).List(ctx)
	if err != nil {
		return nil, err
	}
	teamTotals, err := analytics.TeamCounts(ctx)
	if err != nil {
		return nil, err
	}
	teamRatings, err := db.NewFeedbackRepo(s.d).AverageRatingByTeam(ctx)
	if err != nil {
		return nil, err
	}

	router := routing.NewRouter(s.d)
	for _, team := range teams {
		active, err := router.Workload(ctx, team.ID)
		if err != nil {
			return nil, err
		}
		stats := TeamStats{
			TeamID:        team.ID,
			Name:          team.Name,
			TotalTickets:  teamTotals[team.Name],
			ActiveTickets: active,
		}
		if rating, ok := teamRatings[team.ID]; ok {
			stats.AverageRating = &rating
		}
		o.Teams = append(o.Teams, stats)
	}
	return o, nil
}
