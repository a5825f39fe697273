// Package auth resolves bearer tokens into request principals.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/akorkmaz/civita/internal/apperr"
	"github.com/akorkmaz/civita/internal/models"
)

// Principal is the authenticated identity a request acts as. It is passed
// explicitly through service calls, never stored globally.
type Principal struct {
	UserID string
	Role   models.Role
	TeamID *string
}

// IsStaff returns true for support and manager principals.
func (p Principal) IsStaff() bool {
	return p.Role.IsStaff()
}

type claims struct {
	Role   string  `json:"role"`
	TeamID *string `json:"team_id,omitempty"`
	jwt.RegisteredClaims
}

// Tokens signs and parses the JWTs the HTTP layer accepts.
type Tokens struct {
	secret []byte
	ttl    time.Duration
}

// NewTokens creates a token codec with the given signing secret and lifetime.
func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl}
}

// Sign mints a token for a user.
func (t *Tokens) Sign(user *models.User) (string, error) {
	now := time.Now()
	c := claims{
		Role:   string(user.Role),
		TeamID: user.TeamID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Parse validates a token string and extracts its principal.
func (t *Tokens) Parse(tokenString string) (*Principal, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, apperr.Unauthorized("invalid or expired token")
	}

	role := models.Role(c.Role)
	if c.Subject == "" || !role.IsValid() {
		return nil, apperr.Unauthorized("malformed token claims")
	}

	return &Principal{UserID: c.Subject, Role: role, TeamID: c.TeamID}, nil
}
