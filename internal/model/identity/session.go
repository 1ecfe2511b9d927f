package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session is the revocable record issued alongside a bearer token. The token
// stays self-contained; the session exists so an explicit logout can cut the
// binding before the token's own expiry.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Token     string    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Expired reports whether the session's absolute expiry has strictly passed.
func (s Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Claims are the self-contained bearer token claims. Role and permissions are
// a snapshot at issuance; VerifyToken always re-reads the live user record.
type Claims struct {
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}
