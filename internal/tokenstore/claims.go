package tokenstore

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the fields the client reads out of an access token.
type Claims struct {
	Subject   string
	UserID    string
	ExpiresAt time.Time
}

func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

type accessClaims struct {
	jwt.RegisteredClaims
	UserID any `json:"user_id,omitempty"`
}

// InspectAccessToken decodes the token payload without verifying the
// signature. The result is only used for diagnostics; the backend remains the
// authority on validity.
func InspectAccessToken(token string) (Claims, error) {
	var c accessClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &c); err != nil {
		return Claims{}, fmt.Errorf("inspect access token: %w", err)
	}
	out := Claims{Subject: c.Subject}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	switch v := c.UserID.(type) {
	case string:
		out.UserID = v
	case float64:
		out.UserID = fmt.Sprintf("%.0f", v)
	}
	if out.UserID == "" {
		out.UserID = c.Subject
	}
	return out, nil
}
