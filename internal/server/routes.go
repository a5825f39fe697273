package server

import (
	"net/http"

	"github.com/akorkmaz/civita/internal/models"
)

// setupRoutes registers the /api/v1 surface.
func (s *Server) setupRoutes() {
	r := s.router

	r.HandleFunc("GET /api/v1/health", s.handleHealth)

	// Tickets
	r.HandleFunc("POST /api/v1/tickets", s.withAuth(s.withRateLimit("ticket_create", s.handleTicketCreate)))
	r.HandleFunc("GET /api/v1/tickets", s.withStaff(s.handleTicketList))
	r.HandleFunc("GET /api/v1/tickets/my", s.withAuth(s.handleTicketListMy))
	r.HandleFunc("GET /api/v1/tickets/assigned", s.withStaff(s.handleTicketListAssigned))
	r.HandleFunc("GET /api/v1/tickets/nearby", s.withAuth(s.handleTicketNearby))
	r.HandleFunc("GET /api/v1/tickets/{id}", s.withAuth(s.handleTicketDetail))
	r.HandleFunc("PATCH /api/v1/tickets/{id}", s.withAuth(s.handleTicketUpdate))
	r.HandleFunc("DELETE /api/v1/tickets/{id}", s.withAuth(s.handleTicketDelete))
	r.HandleFunc("PATCH /api/v1/tickets/{id}/status", s.withStaff(s.handleTicketStatus))
	r.HandleFunc("PATCH /api/v1/tickets/{id}/assign", s.withManager(s.handleTicketAssign))
	r.HandleFunc("POST /api/v1/tickets/{id}/photos", s.withAuth(s.withRateLimit("photo_upload", s.handleTicketPhoto)))
	r.HandleFunc("POST /api/v1/tickets/{id}/follow", s.withAuth(s.handleTicketFollow))
	r.HandleFunc("DELETE /api/v1/tickets/{id}/follow", s.withAuth(s.handleTicketUnfollow))
	r.HandleFunc("GET /api/v1/tickets/{id}/comments", s.withAuth(s.handleCommentList))
	r.HandleFunc("POST /api/v1/tickets/{id}/comments", s.withAuth(s.handleCommentCreate))

	// Feedback
	r.HandleFunc("POST /api/v1/feedback/tickets/{id}", s.withAuth(s.handleFeedbackCreate))
	r.HandleFunc("GET /api/v1/feedback/tickets/{id}", s.withAuth(s.handleFeedbackGet))

	// Escalations
	r.HandleFunc("POST /api/v1/escalations", s.withRoles(s.handleEscalationCreate, models.RoleSupport))
	r.HandleFunc("GET /api/v1/escalations", s.withStaff(s.handleEscalationList))
	r.HandleFunc("PATCH /api/v1/escalations/{id}/approve", s.withManager(s.handleEscalationApprove))
	r.HandleFunc("PATCH /api/v1/escalations/{id}/reject", s.withManager(s.handleEscalationReject))

	// Notifications
	r.HandleFunc("GET /api/v1/notifications", s.withAuth(s.handleNotificationList))
	r.HandleFunc("PATCH /api/v1/notifications/{id}/read", s.withAuth(s.handleNotificationRead))
	r.HandleFunc("PATCH /api/v1/notifications/read-all", s.withAuth(s.handleNotificationReadAll))

	// Reference data
	r.HandleFunc("GET /api/v1/categories", s.withAuth(s.handleCategoryList))
	r.HandleFunc("GET /api/v1/districts", s.withAuth(s.handleDistrictList))

	// Admin
	r.HandleFunc("POST /api/v1/admin/teams", s.withManager(s.handleTeamCreate))
	r.HandleFunc("GET /api/v1/admin/teams", s.withManager(s.handleTeamList))
	r.HandleFunc("GET /api/v1/admin/teams/{id}", s.withManager(s.handleTeamGet))
	r.HandleFunc("PATCH /api/v1/admin/teams/{id}", s.withManager(s.handleTeamUpdate))
	r.HandleFunc("DELETE /api/v1/admin/teams/{id}", s.withManager(s.handleTeamDelete))
	r.HandleFunc("POST /api/v1/admin/categories", s.withManager(s.handleCategoryCreate))
	r.HandleFunc("PATCH /api/v1/admin/categories/{id}", s.withManager(s.handleCategoryUpdate))
	r.HandleFunc("POST /api/v1/admin/districts", s.withManager(s.handleDistrictCreate))
	r.HandleFunc("DELETE /api/v1/admin/districts/{id}", s.withManager(s.handleDistrictDelete))
	r.HandleFunc("GET /api/v1/admin/users", s.withManager(s.handleUserList))
	r.HandleFunc("PATCH /api/v1/admin/users/{id}/team", s.withManager(s.handleUserSetTeam))
	r.HandleFunc("DELETE /api/v1/admin/users/{id}", s.withManager(s.handleUserDelete))

	// Analytics
	r.HandleFunc("GET /api/v1/analytics/overview", s.withManager(s.handleAnalyticsOverview))

	// Uploaded photos served from disk under the issued URLs.
	r.Handle("GET /storage/", http.StripPrefix("/storage/", http.FileServer(http.Dir(s.store.Dir()))))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
