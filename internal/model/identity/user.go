package identity

import "time"

// User models an authenticated actor. PermissionSet, PersonaAccess and
// SpendingLimit are denormalized copies of the assigned role's grants; they are
// only ever rewritten together as part of a role change.
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	PasswordHash  string    `json:"-"`
	Role          string    `json:"role"`
	PermissionSet []string  `json:"permissions"`
	PersonaAccess []string  `json:"personaAccess"`
	SpendingLimit float64   `json:"spendingLimit"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"createdAt"`
	LastLoginAt   time.Time `json:"lastLoginAt,omitzero"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Sanitized returns a copy safe to return or log: the credential hash is
// dropped and the grant slices are defensively copied.
func (u User) Sanitized() User {
	u.PasswordHash = ""
	u.PermissionSet = append([]string(nil), u.PermissionSet...)
	u.PersonaAccess = append([]string(nil), u.PersonaAccess...)
	return u
}

// HasPermission reports whether the user holds the wildcard or the exact token.
func (u User) HasPermission(permission string) bool {
	for _, p := range u.PermissionSet {
		if p == PermissionWildcard || p == permission {
			return true
		}
	}
	return false
}

// CanAccessPersona reports whether the user may address the persona.
func (u User) CanAccessPersona(personaID string) bool {
	for _, p := range u.PersonaAccess {
		if p == PersonaWildcard || p == personaID {
			return true
		}
	}
	return false
}

// RegisterProfile is the input to registration.
type RegisterProfile struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Name     string `json:"name" validate:"required"`
	Role     string `json:"role" validate:"required"`
}
