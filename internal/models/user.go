package models

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// phonePattern matches Turkish mobile numbers in E.164 form.
var phonePattern = regexp.MustCompile(`^\+90[0-9]{10}$`)

// User represents an account in the system. Citizens register themselves;
// support and manager accounts are created by a manager invite.
type User struct {
	ID                string     `json:"id"`
	Phone             string     `json:"phone"`
	Email             string     `json:"email"`
	Name              string     `json:"name"`
	PasswordHash      string     `json:"-"`
	Role              Role       `json:"role"`
	TeamID            *string    `json:"team_id,omitempty"`
	IsVerified        bool       `json:"is_verified"`
	IsActive          bool       `json:"is_active"`
	PasswordChangedAt *time.Time `json:"password_changed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	DeletedAt         *time.Time `json:"-"`
}

// Validate validates the user fields.
func (u *User) Validate() error {
	if !phonePattern.MatchString(u.Phone) {
		return fmt.Errorf("phone must match +90XXXXXXXXXX")
	}
	if !strings.Contains(u.Email, "@") {
		return fmt.Errorf("invalid email: %s", u.Email)
	}
	if u.Name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if !u.Role.IsValid() {
		return fmt.Errorf("invalid role: %s", u.Role)
	}
	return nil
}

// ValidPhone reports whether s is a well-formed Turkish E.164 number.
func ValidPhone(s string) bool {
	return phonePattern.MatchString(s)
}

// Team represents a group of support users. Tickets are assigned to teams,
// never to individual agents.
type Team struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	// IsFallback marks the installation's catch-all team. A fallback team
	// matches every category and district and cannot be deleted.
	IsFallback bool      `json:"is_fallback"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// Computed fields (populated by queries)
	MemberCount int `json:"member_count,omitempty"`
}

// Validate validates the team fields.
func (t *Team) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	return nil
}

// Category represents a problem category (pothole, lighting, waste, ...).
// Inactive categories reject new tickets.
type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Validate validates the category fields.
func (c *Category) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	return nil
}

// District represents an administrative district within a city.
// (name, city) is unique.
type District struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	City string `json:"city"`
}

// Validate validates the district fields.
func (d *District) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if d.City == "" {
		return fmt.Errorf("city cannot be empty")
	}
	return nil
}
