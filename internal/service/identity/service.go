// Package identity implements the identity and access store: user records,
// role grants, credential handling, session lifecycle and token verification.
package identity

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/virtualhq/agenthq/backend/internal/apperr"
	identitymodel "github.com/virtualhq/agenthq/backend/internal/model/identity"
	"github.com/virtualhq/agenthq/backend/pkg/logger"
)

// credentialMismatch is the single message for both unknown-user and
// bad-password failures so callers cannot enumerate accounts.
const credentialMismatch = "invalid credentials"

// Service owns the user, role and session maps. All exported operations take
// the single lock for the duration of their read-modify-write section only;
// bcrypt and JWT work happens outside it.
type Service struct {
	mu       sync.RWMutex
	users    map[string]identitymodel.User
	byEmail  map[string]string
	sessions map[string]identitymodel.Session
	roles    map[string]identitymodel.Role

	jwtSecret []byte
	tokenTTL  time.Duration
	now       func() time.Time
	validate  *validator.Validate
	log       zerolog.Logger
}

// AuthResult bundles what Authenticate returns to the transport layer.
type AuthResult struct {
	Token     string             `json:"token"`
	SessionID string             `json:"sessionId"`
	User      identitymodel.User `json:"user"`
}

// NewService seeds the role table and returns an empty store.
func NewService(roles []identitymodel.Role, jwtSecret string, tokenTTL time.Duration) *Service {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	roleTable := make(map[string]identitymodel.Role, len(roles))
	for _, r := range roles {
		roleTable[r.Name] = r
	}
	return &Service{
		users:     make(map[string]identitymodel.User),
		byEmail:   make(map[string]string),
		sessions:  make(map[string]identitymodel.Session),
		roles:     roleTable,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		now:       time.Now,
		validate:  validator.New(),
		log:       logger.Named("identity"),
	}
}

// Register creates a user with the role's grants copied onto the record and
// the credential stored only as a bcrypt hash. The returned view is sanitized.
func (s *Service) Register(_ context.Context, profile identitymodel.RegisterProfile) (identitymodel.User, error) {
	if err := s.validate.Struct(profile); err != nil {
		return identitymodel.User{}, fmt.Errorf("%w: %s", apperr.ErrValidation, err)
	}

	role, ok := s.roleByName(profile.Role)
	if !ok {
		return identitymodel.User{}, fmt.Errorf("%w: unknown role %q", apperr.ErrValidation, profile.Role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(profile.Password), bcrypt.DefaultCost)
	if err != nil {
		return identitymodel.User{}, fmt.Errorf("hash credential: %w", err)
	}

	email := strings.ToLower(strings.TrimSpace(profile.Email))
	now := s.now().UTC()
	user := identitymodel.User{
		ID:            uuid.NewString(),
		Email:         email,
		Name:          profile.Name,
		PasswordHash:  string(hash),
		Role:          role.Name,
		PermissionSet: append([]string(nil), role.Permissions...),
		PersonaAccess: append([]string(nil), role.PersonaAccess...),
		SpendingLimit: role.SpendingLimit,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	s.mu.Lock()
	if _, exists := s.byEmail[email]; exists {
		s.mu.Unlock()
		return identitymodel.User{}, fmt.Errorf("%w: email already registered", apperr.ErrDuplicate)
	}
	s.users[user.ID] = user
	s.byEmail[email] = user.ID
	s.mu.Unlock()

	s.log.Info().Str("user", user.ID).Str("role", user.Role).Msg("user registered")
	return user.Sanitized(), nil
}

// Authenticate checks the credential, stamps last-login, issues a signed
// 24-hour token and a matching session record. Expired sessions are swept
// opportunistically on the way through.
func (s *Service) Authenticate(_ context.Context, email, password string) (AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	s.mu.RLock()
	userID, ok := s.byEmail[email]
	var user identitymodel.User
	if ok {
		user = s.users[userID]
	}
	s.mu.RUnlock()

	if !ok || !user.Active {
		return AuthResult{}, fmt.Errorf("%w: %s", apperr.ErrAuth, credentialMismatch)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return AuthResult{}, fmt.Errorf("%w: %s", apperr.ErrAuth, credentialMismatch)
	}

	now := s.now().UTC()
	token, err := s.signToken(user, now)
	if err != nil {
		return AuthResult{}, fmt.Errorf("sign token: %w", err)
	}

	session := identitymodel.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Token:     token,
		CreatedAt: now,
		ExpiresAt: now.Add(s.tokenTTL),
	}

	s.mu.Lock()
	user = s.users[user.ID]
	user.LastLoginAt = now
	user.UpdatedAt = now
	s.users[user.ID] = user
	s.sessions[session.ID] = session
	s.sweepLocked(now)
	s.mu.Unlock()

	s.log.Info().Str("user", user.ID).Msg("user authenticated")
	return AuthResult{Token: token, SessionID: session.ID, User: user.Sanitized()}, nil
}

// Invalidate removes the session. Reports not-found for a session that was
// already removed; calling it twice is harmless.
func (s *Service) Invalidate(_ context.Context, sessionID string) error {
	s.mu.Lock()
	_, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: session %s", apperr.ErrNotFound, sessionID)
	}
	return nil
}

// VerifyToken checks signature and expiry, then returns the *current* user
// record rather than the stale claims snapshot.
func (s *Service) VerifyToken(_ context.Context, token string) (identitymodel.User, identitymodel.Claims, error) {
	var claims identitymodel.Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !parsed.Valid {
		return identitymodel.User{}, identitymodel.Claims{}, fmt.Errorf("%w: %s", apperr.ErrAuth, credentialMismatch)
	}

	s.mu.RLock()
	user, ok := s.users[claims.Subject]
	s.mu.RUnlock()

	if !ok || !user.Active {
		return identitymodel.User{}, identitymodel.Claims{}, fmt.Errorf("%w: %s", apperr.ErrAuth, credentialMismatch)
	}
	return user.Sanitized(), claims, nil
}

// HasPermission reports whether the user holds the wildcard or exact token.
// Unknown users hold nothing.
func (s *Service) HasPermission(userID, permission string) bool {
	s.mu.RLock()
	user, ok := s.users[userID]
	s.mu.RUnlock()
	return ok && user.HasPermission(permission)
}

// CanAccessPersona reports whether the user may address the persona.
func (s *Service) CanAccessPersona(userID, personaID string) bool {
	s.mu.RLock()
	user, ok := s.users[userID]
	s.mu.RUnlock()
	return ok && user.CanAccessPersona(personaID)
}

// UpdateRole atomically replaces the target's permission set, persona access
// and spending limit with the new role's grants. Requires the acting user to
// hold the wildcard permission.
func (s *Service) UpdateRole(_ context.Context, actingUserID, targetUserID, newRole string) (identitymodel.User, error) {
	role, ok := s.roleByName(newRole)
	if !ok {
		return identitymodel.User{}, fmt.Errorf("%w: unknown role %q", apperr.ErrValidation, newRole)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.actorHoldsWildcardLocked(actingUserID) {
		return identitymodel.User{}, fmt.Errorf("%w: role changes require administrator rights", apperr.ErrAuth)
	}

	user, ok := s.users[targetUserID]
	if !ok {
		return identitymodel.User{}, fmt.Errorf("%w: user %s", apperr.ErrNotFound, targetUserID)
	}
	user.Role = role.Name
	user.PermissionSet = append([]string(nil), role.Permissions...)
	user.PersonaAccess = append([]string(nil), role.PersonaAccess...)
	user.SpendingLimit = role.SpendingLimit
	user.UpdatedAt = s.now().UTC()
	s.users[targetUserID] = user

	s.log.Info().Str("actor", actingUserID).Str("user", targetUserID).Str("role", role.Name).Msg("role updated")
	return user.Sanitized(), nil
}

// Deactivate marks the target inactive and purges every session it owns.
func (s *Service) Deactivate(_ context.Context, actingUserID, targetUserID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.actorHoldsWildcardLocked(actingUserID) {
		return fmt.Errorf("%w: deactivation requires administrator rights", apperr.ErrAuth)
	}

	user, ok := s.users[targetUserID]
	if !ok {
		return fmt.Errorf("%w: user %s", apperr.ErrNotFound, targetUserID)
	}
	user.Active = false
	user.UpdatedAt = s.now().UTC()
	s.users[targetUserID] = user

	purged := 0
	for id, sess := range s.sessions {
		if sess.UserID == targetUserID {
			delete(s.sessions, id)
			purged++
		}
	}

	s.log.Info().Str("actor", actingUserID).Str("user", targetUserID).Int("sessionsPurged", purged).Msg("user deactivated")
	return nil
}

// SweepExpiredSessions removes sessions whose expiry has strictly passed and
// returns how many were dropped. Safe to call concurrently with any operation.
func (s *Service) SweepExpiredSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked(s.now().UTC())
}

// SessionCount reports the live session count. Intended for tests and metrics.
func (s *Service) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// actorHoldsWildcardLocked re-reads the acting user inside the caller's
// critical section, so a demotion or deactivation that lands between the
// caller's entry and the mutation still revokes the actor's rights.
func (s *Service) actorHoldsWildcardLocked(actingUserID string) bool {
	actor, ok := s.users[actingUserID]
	return ok && actor.Active && actor.HasPermission(identitymodel.PermissionWildcard)
}

func (s *Service) sweepLocked(now time.Time) int {
	swept := 0
	for id, sess := range s.sessions {
		if sess.Expired(now) {
			delete(s.sessions, id)
			swept++
		}
	}
	return swept
}

func (s *Service) roleByName(name string) (identitymodel.Role, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	role, ok := s.roles[name]
	return role, ok
}

func (s *Service) signToken(user identitymodel.User, now time.Time) (string, error) {
	claims := identitymodel.Claims{
		Email:       user.Email,
		Role:        user.Role,
		Permissions: append([]string(nil), user.PermissionSet...),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}
