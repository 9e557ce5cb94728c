package auth

import (
	"errors"
	"regexp"
	"time"
)

// usernamePattern allows alphanumerics, dots, hyphens and underscores.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)

// IsValidUsername checks if a username meets format requirements.
func IsValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

// Scope is the permission level a token carries.
type Scope string

const (
	// ScopeReader may list and read things and placements.
	ScopeReader Scope = "reader"

	// ScopeAdmin may do everything a reader can, plus dispatch commands.
	ScopeAdmin Scope = "admin"
)

// scopeRank orders scopes so that a higher rank implies every lower one.
var scopeRank = map[Scope]int{
	ScopeReader: 1,
	ScopeAdmin:  2,
}

// Allows reports whether s satisfies an operation requiring required.
// Unknown scopes allow nothing.
func (s Scope) Allows(required Scope) bool {
	have, ok := scopeRank[s]
	if !ok {
		return false
	}
	need, ok := scopeRank[required]
	if !ok {
		return false
	}
	return have >= need
}

// Valid reports whether s is a recognised scope.
func (s Scope) Valid() bool {
	_, ok := scopeRank[s]
	return ok
}

// ParseScope converts a string to a Scope.
func ParseScope(s string) (Scope, error) {
	scope := Scope(s)
	if !scope.Valid() {
		return "", ErrInvalidScope
	}
	return scope, nil
}

// User is a principal account that can authenticate.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"` // never serialised
	Scope        Scope     `json:"scope"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Principal is the identity a resolved token stands for.
type Principal struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Scope    Scope  `json:"scope"`
}

// Can reports whether the principal holds the required scope.
func (p *Principal) Can(required Scope) bool {
	return p != nil && p.Scope.Allows(required)
}

// Session is what a token store keeps for each issued token.
type Session struct {
	Principal Principal  `json:"principal"`
	IssuedAt  time.Time  `json:"issued_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the session has a lifetime that has passed.
func (s *Session) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}

// Token is an issued session credential.
type Token struct {
	Value     string     `json:"token"`
	Scope     Scope      `json:"scope"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Sentinel errors for auth operations.
var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrMissingToken       = errors.New("auth: missing token")
	ErrInvalidToken       = errors.New("auth: invalid token")
	ErrInvalidScope       = errors.New("auth: invalid scope")
	ErrInvalidUsername    = errors.New("auth: invalid username")
	ErrUserNotFound       = errors.New("auth: user not found")
	ErrUsernameExists     = errors.New("auth: username already exists")
	ErrSessionNotFound    = errors.New("auth: session not found")
)
