package server

import (
	"io"
	"net/http"

	"github.com/akorkmaz/civita/internal/apperr"
	"github.com/akorkmaz/civita/internal/models"
	"github.com/akorkmaz/civita/internal/service"
)

// maxPhotoBytes caps a single photo upload.
const maxPhotoBytes = 10 << 20

type createTicketRequest struct {
	Title       string  `json:"title" validate:"required,min=5,max=200"`
	Description string  `json:"description" validate:"required,min=10,max=5000"`
	CategoryID  string  `json:"category_id" validate:"required,uuid"`
	Latitude    float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude   float64 `json:"longitude" validate:"gte=-180,lte=180"`
	Address     string  `json:"address" validate:"max=500"`
	District    string  `json:"district" validate:"max=100"`
	City        string  `json:"city" validate:"max=100"`
}

func (s *Server) handleTicketCreate(w http.ResponseWriter, r *http.Request) {
	var req createTicketRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	ticket, err := s.tickets.Create(r.Context(), service.CreateTicketInput{
		Title:       req.Title,
		Description: req.Description,
		CategoryID:  req.CategoryID,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		Address:     req.Address,
		District:    req.District,
		City:        req.City,
	}, principal(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, ticket)
}

func (s *Server) ticketListQuery(r *http.Request) (service.ListQuery, error) {
	var q service.ListQuery
	var err error
	if q.Page, q.PageSize, err = pageParams(r); err != nil {
		return q, err
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := models.TicketStatus(raw)
		if !status.IsValid() {
			return q, apperr.Validation("invalid status: %s", raw)
		}
		q.Status = &status
	}
	q.CategoryID = queryStringPtr(r, "category_id")
	q.TeamID = queryStringPtr(r, "team_id")
	return q, nil
}

func (s *Server) handleTicketList(w http.ResponseWriter, r *http.Request) {
	q, err := s.ticketListQuery(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	items, total, err := s.tickets.ListAll(r.Context(), q)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newPage(items, total, q.Page, q.PageSize, service.MaxPageSize))
}

func (s *Server) handleTicketListMy(w http.ResponseWriter, r *http.Request) {
	q, err := s.ticketListQuery(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	items, total, err := s.tickets.ListMy(r.Context(), q, principal(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newPage(items, total, q.Page, q.PageSize, service.MaxPageSize))
}

func (s *Server) handleTicketListAssigned(w http.ResponseWriter, r *http.Request) {
	q, err := s.ticketListQuery(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	items, total, err := s.tickets.ListAssigned(r.Context(), q, principal(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newPage(items, total, q.Page, q.PageSize, service.MaxPageSize))
}

func (s *Server) handleTicketNearby(w http.ResponseWriter, r *http.Request) {
	lat, err := queryFloat(r, "latitude")
	if err != nil {
		s.writeError(w, err)
		return
	}
	lng, err := queryFloat(r, "longitude")
	if err != nil {
		s.writeError(w, err)
		return
	}
	radius, err := queryInt(r, "radius_meters", 0)
	if err != nil {
		s.writeError(w, err)
		return
	}

	items, err := s.tickets.Nearby(r.Context(), lat, lng, float64(radius), queryStringPtr(r, "category_id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if items == nil {
		items = []*models.Ticket{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleTicketDetail(w http.ResponseWriter, r *http.Request) {
	detail, err := s.tickets.Detail(r.Context(), r.PathValue("id"), principal(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, detail)
}

type updateTicketRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=5,max=200"`
	Description *string `json:"description" validate:"omitempty,min=10,max=5000"`
	CategoryID  *string `json:"category_id" validate:"omitempty,uuid"`
}

func (s *Server) handleTicketUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateTicketRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	ticket, err := s.tickets.Update(r.Context(), r.PathValue("id"), service.UpdateTicketInput{
		Title:       req.Title,
		Description: req.Description,
		CategoryID:  req.CategoryID,
	}, principal(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ticket)
}

func (s *Server) handleTicketDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.tickets.Delete(r.Context(), r.PathValue("id"), principal(r)); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type updateStatusRequest struct {
	Status  string `json:"status" validate:"required,oneof=NEW IN_PROGRESS RESOLVED CLOSED ESCALATED"`
	Comment string `json:"comment" validate:"max=1000"`
}

func (s *Server) handleTicketStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	ticket, err := s.tickets.UpdateStatus(r.Context(), r.PathValue("id"), models.TicketStatus(req.Status), req.Comment, principal(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ticket)
}

type assignTeamRequest struct {
	TeamID string `json:"team_id" validate:"required,uuid"`
}

func (s *Server) handleTicketAssign(w http.ResponseWriter, r *http.Request) {
	var req assignTeamRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	ticket, err := s.tickets.AssignTeam(r.Context(), r.PathValue("id"), req.TeamID, principal(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, ticket)
}

func (s *Server) handleTicketPhoto(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxPhotoBytes); err != nil {
		s.writeError(w, apperr.BadRequest("malformed multipart body"))
		return
	}
	file, header, err := r.FormFile("photo")
	if err != nil {
		s.writeError(w, apperr.Validation("photo file is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxPhotoBytes+1))
	if err != nil {
		s.writeError(w, apperr.BadRequest("failed to read upload"))
		return
	}
	if len(data) > maxPhotoBytes {
		s.writeError(w, apperr.Validation("photo exceeds the 10 MB limit"))
		return
	}

	photo, err := s.tickets.AddPhoto(r.Context(), r.PathValue("id"), data, header.Filename, header.Header.Get("Content-Type"), principal(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{
		"id":       photo.ID,
		"url":      photo.URL,
		"filename": photo.Filename,
	})
}

func (s *Server) handleTicketFollow(w http.ResponseWriter, r *http.Request) {
	if err := s.tickets.Follow(r.Context(), r.PathValue("id"), principal(r)); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"detail": "following"})
}

func (s *Server) handleTicketUnfollow(w http.ResponseWriter, r *http.Request) {
	if err := s.tickets.Unfollow(r.Context(), r.PathValue("id"), principal(r)); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
