package models

import (
	"fmt"
	"time"
)

// Title and description length bounds for tickets.
const (
	TitleMinLen       = 5
	TitleMaxLen       = 200
	DescriptionMinLen = 10
	DescriptionMaxLen = 5000
)

// DefaultCity is assumed when a report carries no city.
const DefaultCity = "Istanbul"

// Location is the georeferenced position of a report, owned one-to-one by
// its ticket. Coordinates are WGS 84 latitude and longitude in degrees.
type Location struct {
	ID        string    `json:"id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Address   string    `json:"address,omitempty"`
	District  string    `json:"district,omitempty"`
	City      string    `json:"city"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate validates the location fields.
func (l *Location) Validate() error {
	if l.Latitude < -90 || l.Latitude > 90 {
		return fmt.Errorf("latitude out of range: %f", l.Latitude)
	}
	if l.Longitude < -180 || l.Longitude > 180 {
		return fmt.Errorf("longitude out of range: %f", l.Longitude)
	}
	if l.City == "" {
		return fmt.Errorf("city cannot be empty")
	}
	return nil
}

// Ticket represents a citizen's report of a neighborhood problem.
type Ticket struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      TicketStatus `json:"status"`
	CategoryID  string       `json:"category_id"`
	LocationID  string       `json:"location_id"`
	ReporterID  string       `json:"reporter_id"`
	TeamID      *string      `json:"team_id,omitempty"`
	ResolvedAt  *time.Time   `json:"resolved_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	DeletedAt   *time.Time   `json:"-"`

	// Computed fields (populated by queries)
	Category *Category `json:"category,omitempty"`
	Location *Location `json:"location,omitempty"`
	Reporter *User     `json:"reporter,omitempty"`
	Team     *Team     `json:"team,omitempty"`

	// DistanceMeters is set by the nearby search only.
	DistanceMeters float64 `json:"distance_meters,omitempty"`
}

// Validate validates the ticket fields.
func (t *Ticket) Validate() error {
	if n := len([]rune(t.Title)); n < TitleMinLen || n > TitleMaxLen {
		return fmt.Errorf("title must be %d-%d characters", TitleMinLen, TitleMaxLen)
	}
	if n := len([]rune(t.Description)); n < DescriptionMinLen || n > DescriptionMaxLen {
		return fmt.Errorf("description must be %d-%d characters", DescriptionMinLen, DescriptionMaxLen)
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", t.Status)
	}
	if t.CategoryID == "" {
		return fmt.Errorf("category_id is required")
	}
	if t.ReporterID == "" {
		return fmt.Errorf("reporter_id is required")
	}
	return nil
}

// IsAssigned returns true if the ticket has been routed to a team.
func (t *Ticket) IsAssigned() bool {
	return t.TeamID != nil
}

// IsDeleted returns true if the ticket has been soft-deleted.
func (t *Ticket) IsDeleted() bool {
	return t.DeletedAt != nil
}

// StatusLog is the append-only audit trail of a ticket's status changes.
// The ticket's current status always equals the newest entry's NewStatus.
type StatusLog struct {
	ID          string       `json:"id"`
	TicketID    string       `json:"ticket_id"`
	OldStatus   *TicketStatus `json:"old_status,omitempty"`
	NewStatus   TicketStatus `json:"new_status"`
	ChangedByID *string      `json:"changed_by_id,omitempty"`
	Comment     string       `json:"comment,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`

	// Computed fields
	ChangedByName string `json:"changed_by_name,omitempty"`
}

// TicketFollower links a user to a ticket they want updates about.
// The reporter is added automatically at creation time.
type TicketFollower struct {
	TicketID   string    `json:"ticket_id"`
	UserID     string    `json:"user_id"`
	FollowedAt time.Time `json:"followed_at"`
}

// TicketPhoto is an uploaded photo attached to a ticket. The bytes live in
// object storage; the row records the key and display metadata.
type TicketPhoto struct {
	ID          string    `json:"id"`
	TicketID    string    `json:"ticket_id"`
	ObjectKey   string    `json:"-"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	CreatedAt   time.Time `json:"created_at"`

	// URL is issued from the object key at read time.
	URL string `json:"url,omitempty"`
}
