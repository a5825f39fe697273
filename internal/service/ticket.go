package service

import (
	"context"
	"database/sql"
	"sort"

	"go.uber.org/zap"

	"github.com/akorkmaz/civita/internal/apperr"
	"github.com/akorkmaz/civita/internal/auth"
	"github.com/akorkmaz/civita/internal/db"
	"github.com/akorkmaz/civita/internal/geo"
	"github.com/akorkmaz/civita/internal/models"
	"github.com/akorkmaz/civita/internal/notify"
	"github.com/akorkmaz/civita/internal/routing"
	"github.com/akorkmaz/civita/internal/state"
	"github.com/akorkmaz/civita/internal/storage"
)

// TicketService implements the ticket lifecycle: creation with automatic
// routing, role-gated edits, the status state machine, team assignment,
// photos, follower management and the nearby search.
type TicketService struct {
	d           *db.DB
	log         *zap.Logger
	machine     *state.Machine
	notifier    *notify.Engine
	store       storage.Client
	defaultCity string
}

// NewTicketService creates a TicketService.
func NewTicketService(d *db.DB, log *zap.Logger, notifier *notify.Engine, store storage.Client, defaultCity string) *TicketService {
	if defaultCity == "" {
		defaultCity = models.DefaultCity
	}
	return &TicketService{
		d:           d,
		log:         log,
		machine:     state.NewMachine(),
		notifier:    notifier,
		store:       store,
		defaultCity: defaultCity,
	}
}

// CreateTicketInput carries the validated fields of a creation request.
type CreateTicketInput struct {
	Title       string
	Description string
	CategoryID  string
	Latitude    float64
	Longitude   float64
	Address     string
	District    string
	City        string
}

// Create files a new ticket: the location is persisted, the ticket is routed
// to a team, the reporter becomes a follower and the first status log entry
// is written, all in one transaction.
func (s *TicketService) Create(ctx context.Context, in CreateTicketInput, p auth.Principal) (*models.Ticket, error) {
	if in.City == "" {
		in.City = s.defaultCity
	}

	var ticket *models.Ticket
	err := s.d.WithTx(ctx, func(tx *sql.Tx) error {
		category, err := db.NewCategoryRepo(tx).GetByID(ctx, in.CategoryID)
		if err != nil {
			return err
		}
		if category == nil {
			return apperr.NotFound("category not found")
		}
		if !category.IsActive {
			return apperr.BadRequest("category %q no longer accepts reports", category.Name)
		}

		tickets := db.NewTicketRepo(tx)
		loc := &models.Location{
			Latitude:  in.Latitude,
			Longitude: in.Longitude,
			Address:   in.Address,
			District:  in.District,
			City:      in.City,
		}
		if err := tickets.CreateLocation(ctx, loc); err != nil {
			return err
		}

		team, err := routing.NewRouter(tx).FindMatchingTeam(ctx, in.CategoryID, in.District, in.City)
		if err != nil {
			return err
		}

		ticket = &models.Ticket{
			Title:       in.Title,
			Description: in.Description,
			Status:      models.StatusNew,
			CategoryID:  in.CategoryID,
			LocationID:  loc.ID,
			ReporterID:  p.UserID,
		}
		if team != nil {
			ticket.TeamID = &team.ID
		}
		if err := tickets.Create(ctx, ticket); err != nil {
			return err
		}
		ticket.Category = category
		ticket.Location = loc

		if _, err := tickets.AddFollower(ctx, ticket.ID, p.UserID); err != nil {
			return err
		}
		return tickets.AddStatusLog(ctx, &models.StatusLog{
			TicketID:    ticket.ID,
			NewStatus:   models.StatusNew,
			ChangedByID: &p.UserID,
		})
	})
	if err != nil {
		return nil, err
	}

	s.notifier.TicketCreated(ctx, ticket)
	if ticket.TeamID != nil {
		s.notifier.NewTicketForTeam(ctx, ticket, *ticket.TeamID)
	}
	return ticket, nil
}

// UpdateTicketInput is a partial update. Nil fields stay untouched.
type UpdateTicketInput struct {
	Title       *string
	Description *string
	CategoryID  *string
}

// Update edits a ticket's title, description or category. Citizens may only
// edit their own ticket while it is still NEW; staff may edit any non-closed
// ticket. Routing is not recomputed on category change.
func (s *TicketService) Update(ctx context.Context, ticketID string, in UpdateTicketInput, p auth.Principal) (*models.Ticket, error) {
	var ticket *models.Ticket
	err := s.d.WithTx(ctx, func(tx *sql.Tx) error {
		tickets := db.NewTicketRepo(tx)
		var err error
		ticket, err = tickets.GetByID(ctx, ticketID)
		if err != nil {
			return err
		}
		if ticket == nil {
			return apperr.NotFound("ticket not found")
		}

		if ticket.Status == models.StatusClosed {
			return apperr.BadRequest("closed tickets cannot be edited")
		}
		if !p.IsStaff() {
			if ticket.ReporterID != p.UserID {
				return apperr.Forbidden("you can only edit your own tickets")
			}
			if ticket.Status != models.StatusNew {
				return apperr.Forbidden("tickets can only be edited while still NEW")
			}
		}

		if in.Title != nil {
			ticket.Title = *in.Title
		}
		if in.Description != nil {
			ticket.Description = *in.Description
		}
		if in.CategoryID != nil && *in.CategoryID != ticket.CategoryID {
			category, err := db.NewCategoryRepo(tx).GetByID(ctx, *in.CategoryID)
			if err != nil {
				return err
			}
			if category == nil {
				return apperr.NotFound("category not found")
			}
			if !category.IsActive {
				return apperr.BadRequest("category %q no longer accepts reports", category.Name)
			}
			ticket.CategoryID = *in.CategoryID
		}
		if err := ticket.Validate(); err != nil {
			return apperr.Validation("%v", err)
		}
		return tickets.Update(ctx, ticket)
	})
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

// Delete soft-deletes a ticket. Only the reporter may delete, and only while
// the ticket is still NEW.
func (s *TicketService) Delete(ctx context.Context, ticketID string, p auth.Principal) error {
	return s.d.WithTx(ctx, func(tx *sql.Tx) error {
		tickets := db.NewTicketRepo(tx)
		ticket, err := tickets.GetByID(ctx, ticketID)
		if err != nil {
			return err
		}
		if ticket == nil {
			return apperr.NotFound("ticket not found")
		}
		if ticket.ReporterID != p.UserID {
			return apperr.Forbidden("you can only delete your own tickets")
		}
		if ticket.Status != models.StatusNew {
			return apperr.Forbidden("tickets can only be deleted while still NEW")
		}
		return tickets.SoftDelete(ctx, ticketID)
	})
}

// UpdateStatus moves a ticket through the state machine. resolvedAt is set on
// the first entry into RESOLVED and never cleared afterwards.
func (s *TicketService) UpdateStatus(ctx context.Context, ticketID string, newStatus models.TicketStatus, comment string, p auth.Principal) (*models.Ticket, error) {
	var ticket *models.Ticket
	err := s.d.WithTx(ctx, func(tx *sql.Tx) error {
		tickets := db.NewTicketRepo(tx)
		var err error
		ticket, err = tickets.GetByID(ctx, ticketID)
		if err != nil {
			return err
		}
		if ticket == nil {
			return apperr.NotFound("ticket not found")
		}

		oldStatus := ticket.Status
		if err := s.machine.CanTransition(oldStatus, newStatus); err != nil {
			return err
		}
		if newStatus == models.StatusEscalated {
			return apperr.BadRequest("tickets enter ESCALATED only through an escalation request")
		}
		if oldStatus == models.StatusEscalated {
			pending, err := db.NewEscalationRepo(tx).HasPending(ctx, ticket.ID)
			if err != nil {
				return err
			}
			if pending {
				return apperr.Conflict("ticket has a pending escalation awaiting review")
			}
		}

		ticket.Status = newStatus
		if state.EntersResolved(oldStatus, newStatus) && ticket.ResolvedAt == nil {
			now := db.NowUTC()
			ticket.ResolvedAt = &now
		}
		if err := tickets.Update(ctx, ticket); err != nil {
			return err
		}
		return tickets.AddStatusLog(ctx, &models.StatusLog{
			TicketID:    ticket.ID,
			OldStatus:   &oldStatus,
			NewStatus:   newStatus,
			ChangedByID: &p.UserID,
			Comment:     comment,
		})
	})
	if err != nil {
		return nil, err
	}

	s.notifier.TicketStatusChanged(ctx, ticket, p.UserID)
	return ticket, nil
}

// AssignTeam sets the ticket's team manually. Manager-only (enforced at the
// HTTP layer). Assignment does not change the ticket's status.
func (s *TicketService) AssignTeam(ctx context.Context, ticketID, teamID string, p auth.Principal) (*models.Ticket, error) {
	var ticket *models.Ticket
	err := s.d.WithTx(ctx, func(tx *sql.Tx) error {
		team, err := db.NewTeamRepo(tx).GetByID(ctx, teamID)
		if err != nil {
			return err
		}
		if team == nil {
			return apperr.NotFound("team not found")
		}

		tickets := db.NewTicketRepo(tx)
		ticket, err = tickets.GetByID(ctx, ticketID)
		if err != nil {
			return err
		}
		if ticket == nil {
			return apperr.NotFound("ticket not found")
		}

		ticket.TeamID = &teamID
		return tickets.Update(ctx, ticket)
	})
	if err != nil {
		return nil, err
	}

	s.notifier.TicketAssigned(ctx, ticket, teamID)
	return ticket, nil
}

// ListQuery filters paginated ticket lists.
type ListQuery struct {
	Status     *models.TicketStatus
	CategoryID *string
	TeamID     *string
	Page       int
	PageSize   int
}

// ListAll returns tickets matching the query. Staff-only surface.
func (s *TicketService) ListAll(ctx context.Context, q ListQuery) ([]*models.Ticket, int, error) {
	filter := db.TicketFilter{Status: q.Status, CategoryID: q.CategoryID, TeamID: q.TeamID}
	return s.list(ctx, filter, q.Page, q.PageSize)
}

// ListMy returns the principal's own reports.
func (s *TicketService) ListMy(ctx context.Context, q ListQuery, p auth.Principal) ([]*models.Ticket, int, error) {
	filter := db.TicketFilter{Status: q.Status, CategoryID: q.CategoryID, ReporterID: &p.UserID}
	return s.list(ctx, filter, q.Page, q.PageSize)
}

// ListAssigned returns the tickets assigned to the principal's team. A
// support principal without a team sees an empty list.
func (s *TicketService) ListAssigned(ctx context.Context, q ListQuery, p auth.Principal) ([]*models.Ticket, int, error) {
	if p.TeamID == nil {
		return nil, 0, nil
	}
	filter := db.TicketFilter{Status: q.Status, CategoryID: q.CategoryID, TeamID: p.TeamID}
	return s.list(ctx, filter, q.Page, q.PageSize)
}

func (s *TicketService) list(ctx context.Context, filter db.TicketFilter, page, pageSize int) ([]*models.Ticket, int, error) {
	filter.Limit, filter.Offset = pageBounds(page, pageSize, MaxPageSize)

	tickets := db.NewTicketRepo(s.d)
	total, err := tickets.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	items, err := tickets.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// nearbyLimit caps the nearby search result set.
const nearbyLimit = 10

// Nearby returns up to ten active tickets within radiusMeters of the point,
// closest first. The radius is clamped to [100 m, 5 km], defaulting to 500 m.
func (s *TicketService) Nearby(ctx context.Context, lat, lng, radiusMeters float64, categoryID *string) ([]*models.Ticket, error) {
	if !geo.ValidLatitude(lat) || !geo.ValidLongitude(lng) {
		return nil, apperr.Validation("coordinates out of range")
	}
	radius := geo.ClampRadius(radiusMeters)

	box := geo.BoxAround(lat, lng, radius)
	candidates, err := db.NewTicketRepo(s.d).ListInBox(ctx, box, categoryID)
	if err != nil {
		return nil, err
	}

	var results []*models.Ticket
	for _, t := range candidates {
		if !t.Status.IsActive() {
			continue
		}
		dist := geo.Haversine(lat, lng, t.Location.Latitude, t.Location.Longitude)
		if dist > radius {
			continue
		}
		t.DistanceMeters = dist
		results = append(results, t)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].DistanceMeters != results[j].DistanceMeters {
			return results[i].DistanceMeters < results[j].DistanceMeters
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > nearbyLimit {
		results = results[:nearbyLimit]
	}
	return results, nil
}

// Follow subscribes the principal to a ticket. Re-following is a no-op.
func (s *TicketService) Follow(ctx context.Context, ticketID string, p auth.Principal) error {
	tickets := db.NewTicketRepo(s.d)
	ticket, err := tickets.GetByID(ctx, ticketID)
	if err != nil {
		return err
	}
	if ticket == nil {
		return apperr.NotFound("ticket not found")
	}

	added, err := tickets.AddFollower(ctx, ticketID, p.UserID)
	if err != nil {
		return err
	}
	if added && p.UserID != ticket.ReporterID {
		follower, err := db.NewUserRepo(s.d).GetByID(ctx, p.UserID)
		if err == nil && follower != nil {
			s.notifier.TicketFollowed(ctx, ticket, follower.ID, follower.Name)
		}
	}
	return nil
}

// Unfollow unsubscribes the principal. Unfollowing a ticket the user never
// followed is a no-op.
func (s *TicketService) Unfollow(ctx context.Context, ticketID string, p auth.Principal) error {
	tickets := db.NewTicketRepo(s.d)
	ticket, err := tickets.GetByID(ctx, ticketID)
	if err != nil {
		return err
	}
	if ticket == nil {
		return apperr.NotFound("ticket not found")
	}
	return tickets.RemoveFollower(ctx, ticketID, p.UserID)
}

// AddPhoto stores an uploaded photo and attaches it to the ticket. The
// reporter and staff may upload.
func (s *TicketService) AddPhoto(ctx context.Context, ticketID string, data []byte, filename, contentType string, p auth.Principal) (*models.TicketPhoto, error) {
	if !storage.AllowedContentType(contentType) {
		return nil, apperr.Validation("unsupported photo content type: %s", contentType)
	}

	tickets := db.NewTicketRepo(s.d)
	ticket, err := tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return nil, apperr.NotFound("ticket not found")
	}
	if !p.IsStaff() && ticket.ReporterID != p.UserID {
		return nil, apperr.Forbidden("you can only add photos to your own tickets")
	}

	key, err := s.store.Put(ctx, data, contentType, "tickets/"+ticketID)
	if err != nil {
		return nil, apperr.WrapInternal(err, "photo upload failed")
	}

	photo := &models.TicketPhoto{
		TicketID:    ticketID,
		ObjectKey:   key,
		Filename:    filename,
		ContentType: contentType,
	}
	if err := tickets.AddPhoto(ctx, photo); err != nil {
		return nil, err
	}
	photo.URL = s.store.PublicURL(key)
	return photo, nil
}
