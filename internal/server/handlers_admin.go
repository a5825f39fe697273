package server

import (
	"net/http"

	"github.com/akorkmaz/civita/internal/apperr"
	"github.com/akorkmaz/civita/internal/models"
	"github.com/akorkmaz/civita/internal/service"
)

type teamRequest struct {
	Name        string   `json:"name" validate:"required,min=2,max=100"`
	Description string   `json:"description" validate:"max=500"`
	CategoryIDs []string `json:"category_ids" validate:"omitempty,dive,uuid"`
	DistrictIDs []string `json:"district_ids" validate:"omitempty,dive,uuid"`
}

func (r teamRequest) input() service.TeamInput {
	return service.TeamInput{
		Name:        r.Name,
		Description: r.Description,
		CategoryIDs: r.CategoryIDs,
		DistrictIDs: r.DistrictIDs,
	}
}

func (s *Server) handleTeamCreate(w http.ResponseWriter, r *http.Request) {
	var req teamRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	team, err := s.admin.CreateTeam(r.Context(), req.input())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, team)
}

func (s *Server) handleTeamUpdate(w http.ResponseWriter, r *http.Request) {
	var req teamRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	team, err := s.admin.UpdateTeam(r.Context(), r.PathValue("id"), req.input())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, team)
}

func (s *Server) handleTeamGet(w http.ResponseWriter, r *http.Request) {
	team, categoryIDs, districtIDs, err := s.admin.GetTeam(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if categoryIDs == nil {
		categoryIDs = []string{}
	}
	if districtIDs == nil {
		districtIDs = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"team":         team,
		"category_ids": categoryIDs,
		"district_ids": districtIDs,
	})
}

func (s *Server) handleTeamList(w http.ResponseWriter, r *http.Request) {
	teams, err := s.admin.ListTeams(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if teams == nil {
		teams = []*models.Team{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"items": teams})
}

func (s *Server) handleTeamDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.admin.DeleteTeam(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type categoryRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Description string `json:"description" validate:"max=500"`
	IsActive    *bool  `json:"is_active"`
}

func (s *Server) handleCategoryCreate(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	category, err := s.admin.CreateCategory(r.Context(), req.Name, req.Description)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, category)
}

func (s *Server) handleCategoryUpdate(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	category, err := s.admin.UpdateCategory(r.Context(), r.PathValue("id"), req.Name, req.Description, isActive)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, category)
}

// handleCategoryList serves the reference list. Citizens see only categories
// still accepting reports.
func (s *Server) handleCategoryList(w http.ResponseWriter, r *http.Request) {
	activeOnly := !principal(r).IsStaff()
	categories, err := s.admin.ListCategories(r.Context(), activeOnly)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if categories == nil {
		categories = []*models.Category{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"items": categories})
}

type districtRequest struct {
	Name string `json:"name" validate:"required,min=2,max=100"`
	City string `json:"city" validate:"required,min=2,max=100"`
}

func (s *Server) handleDistrictCreate(w http.ResponseWriter, r *http.Request) {
	var req districtRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	district, err := s.admin.CreateDistrict(r.Context(), req.Name, req.City)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, district)
}

func (s *Server) handleDistrictDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.admin.DeleteDistrict(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDistrictList(w http.ResponseWriter, r *http.Request) {
	districts, err := s.admin.ListDistricts(r.Context(), r.URL.Query().Get("city"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if districts == nil {
		districts = []*models.District{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"items": districts})
}

func (s *Server) handleUserList(w http.ResponseWriter, r *http.Request) {
	var q service.UserListQuery
	var err error
	if q.Page, q.PageSize, err = pageParams(r); err != nil {
		s.writeError(w, err)
		return
	}
	if raw := r.URL.Query().Get("role"); raw != "" {
		role := models.Role(raw)
		if !role.IsValid() {
			s.writeError(w, apperr.Validation("invalid role: %s", raw))
			return
		}
		q.Role = &role
	}
	q.TeamID = queryStringPtr(r, "team_id")

	items, total, err := s.admin.ListUsers(r.Context(), q)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newPage(items, total, q.Page, q.PageSize, service.MaxUserPageSize))
}

type setUserTeamRequest struct {
	TeamID *string `json:"team_id" validate:"omitempty,uuid"`
}

func (s *Server) handleUserSetTeam(w http.ResponseWriter, r *http.Request) {
	var req setUserTeamRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.admin.SetUserTeam(r.Context(), r.PathValue("id"), req.TeamID); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"detail": "updated"})
}

func (s *Server) handleUserDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.admin.DeleteUser(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAnalyticsOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := s.analytics.Overview(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, overview)
}
