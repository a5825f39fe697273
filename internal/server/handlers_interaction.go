package server

import (
	"net/http"

	"github.com/akorkmaz/civita/internal/apperr"
	"github.com/akorkmaz/civita/internal/models"
	"github.com/akorkmaz/civita/internal/service"
)

type createCommentRequest struct {
	Content    string `json:"content" validate:"required,min=1,max=2000"`
	IsInternal bool   `json:"is_internal"`
}

func (s *Server) handleCommentCreate(w http.ResponseWriter, r *http.Request) {
	var req createCommentRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	comment, err := s.comments.Add(r.Context(), r.PathValue("id"), req.Content, req.IsInternal, principal(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, comment)
}

func (s *Server) handleCommentList(w http.ResponseWriter, r *http.Request) {
	comments, err := s.comments.List(r.Context(), r.PathValue("id"), principal(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if comments == nil {
		comments = []*models.Comment{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"items": comments})
}

type createFeedbackRequest struct {
	Rating  int    `json:"rating" validate:"required,gte=1,lte=5"`
	Comment string `json:"comment" validate:"max=1000"`
}

func (s *Server) handleFeedbackCreate(w http.ResponseWriter, r *http.Request) {
	var req createFeedbackRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	feedback, err := s.feedback.Create(r.Context(), r.PathValue("id"), req.Rating, req.Comment, principal(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, feedback)
}

func (s *Server) handleFeedbackGet(w http.ResponseWriter, r *http.Request) {
	feedback, err := s.feedback.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, feedback)
}

type createEscalationRequest struct {
	TicketID string `json:"ticket_id" validate:"required,uuid"`
	Reason   string `json:"reason" validate:"required,min=5,max=1000"`
}

func (s *Server) handleEscalationCreate(w http.ResponseWriter, r *http.Request) {
	var req createEscalationRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	escalation, err := s.escalations.Create(r.Context(), req.TicketID, req.Reason, principal(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, escalation)
}

func (s *Server) handleEscalationList(w http.ResponseWriter, r *http.Request) {
	var q service.EscalationListQuery
	var err error
	if q.Page, q.PageSize, err = pageParams(r); err != nil {
		s.writeError(w, err)
		return
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := models.EscalationStatus(raw)
		if !status.IsValid() {
			s.writeError(w, apperr.Validation("invalid status: %s", raw))
			return
		}
		q.Status = &status
	}

	items, total, err := s.escalations.List(r.Context(), q, principal(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newPage(items, total, q.Page, q.PageSize, service.MaxPageSize))
}

type reviewEscalationRequest struct {
	Comment string `json:"comment" validate:"max=1000"`
}

func (s *Server) reviewEscalation(w http.ResponseWriter, r *http.Request, approve bool) {
	var req reviewEscalationRequest
	if r.ContentLength > 0 {
		if err := s.decodeJSON(r, &req); err != nil {
			s.writeError(w, err)
			return
		}
	}

	escalation, err := s.escalations.Review(r.Context(), r.PathValue("id"), approve, req.Comment, principal(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, escalation)
}

func (s *Server) handleEscalationApprove(w http.ResponseWriter, r *http.Request) {
	s.reviewEscalation(w, r, true)
}

func (s *Server) handleEscalationReject(w http.ResponseWriter, r *http.Request) {
	s.reviewEscalation(w, r, false)
}

func (s *Server) handleNotificationList(w http.ResponseWriter, r *http.Request) {
	pageNum, pageSize, err := pageParams(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	items, total, err := s.notifs.List(r.Context(), queryBool(r, "unread_only"), pageNum, pageSize, principal(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newPage(items, total, pageNum, pageSize, service.MaxPageSize))
}

func (s *Server) handleNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := s.notifs.MarkRead(r.Context(), r.PathValue("id"), principal(r)); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"detail": "read"})
}

func (s *Server) handleNotificationReadAll(w http.ResponseWriter, r *http.Request) {
	updated, err := s.notifs.MarkAllRead(r.Context(), principal(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"updated": updated})
}
