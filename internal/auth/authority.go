package auth

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Logger is the subset of logging.Logger the authority needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// UserLookup is the read side of the user store the authority needs.
type UserLookup interface {
	GetByUsername(ctx context.Context, username string) (*User, error)
}

// Authority issues and resolves opaque session tokens.
//
// Thread Safety:
//   - Safe for concurrent use; synchronisation lives in the TokenStore.
type Authority struct {
	users  UserLookup
	tokens TokenStore
	ttl    time.Duration
	now    func() time.Time
	logger Logger
}

// Option configures an Authority.
type Option func(*Authority)

// WithTTL bounds token lifetime. Zero (the default) means tokens live
// until revoked or until the store forgets them.
func WithTTL(ttl time.Duration) Option {
	return func(a *Authority) { a.ttl = ttl }
}

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(a *Authority) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithClock overrides time.Now. Tests use it to drive expiry.
func WithClock(now func() time.Time) Option {
	return func(a *Authority) { a.now = now }
}

// NewAuthority creates a token authority over the given user lookup and
// token store.
func NewAuthority(users UserLookup, tokens TokenStore, opts ...Option) *Authority {
	a := &Authority{
		users:  users,
		tokens: tokens,
		now:    time.Now,
		logger: noopLogger{},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Authenticate verifies username and password and issues a new token
// bound to the user's scope.
//
// Unknown users, inactive users and wrong passwords all return
// ErrInvalidCredentials, and no token is issued. Store failures are
// returned wrapped.
func (a *Authority) Authenticate(ctx context.Context, username, password string) (*Token, error) {
	user, err := a.users.GetByUsername(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		burnPasswordCheck(password)
		a.logger.Info("authentication failed", "username", username, "reason", "unknown_user")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verifying password: %w", err)
	}
	if !ok || !user.IsActive {
		a.logger.Info("authentication failed", "username", username, "reason", "bad_password_or_inactive")
		return nil, ErrInvalidCredentials
	}
	a.upgradeHash(ctx, user, password)

	raw, err := GenerateToken()
	if err != nil {
		return nil, err
	}

	now := a.now().UTC()
	session := Session{
		Principal: Principal{UserID: user.ID, Username: user.Username, Scope: user.Scope},
		IssuedAt:  now,
	}
	if a.ttl > 0 {
		exp := now.Add(a.ttl)
		session.ExpiresAt = &exp
	}

	if err := a.tokens.Put(ctx, HashToken(raw), session, a.ttl); err != nil {
		return nil, fmt.Errorf("storing token: %w", err)
	}

	a.logger.Info("token issued", "username", user.Username, "scope", user.Scope, "token", Prefix(raw))

	return &Token{Value: raw, Scope: user.Scope, ExpiresAt: session.ExpiresAt}, nil
}

// passwordRehasher is implemented by user stores that can replace a
// stored hash.
type passwordRehasher interface {
	SetPasswordHash(ctx context.Context, userID, hash string) error
}

// upgradeHash re-hashes a verified password stored with weaker Argon2id
// parameters. Failures are logged and never fail the login.
func (a *Authority) upgradeHash(ctx context.Context, user *User, password string) {
	store, ok := a.users.(passwordRehasher)
	if !ok || !NeedsRehash(user.PasswordHash) {
		return
	}
	hash, err := HashPassword(password)
	if err == nil {
		err = store.SetPasswordHash(ctx, user.ID, hash)
	}
	if err != nil {
		a.logger.Warn("password rehash failed", "username", user.Username, "error", err)
		return
	}
	a.logger.Info("password hash upgraded", "username", user.Username)
}

// Resolve returns the principal a token was issued to.
//
// An empty token returns ErrMissingToken. Malformed, unknown and expired
// tokens return ErrInvalidToken. Lookup is exact-match only.
func (a *Authority) Resolve(ctx context.Context, raw string) (*Principal, error) {
	if raw == "" {
		return nil, ErrMissingToken
	}
	if !wellFormed(raw) {
		return nil, ErrInvalidToken
	}

	hash := HashToken(raw)
	session, err := a.tokens.Get(ctx, hash)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("resolving token: %w", err)
	}

	if session.Expired(a.now()) {
		if _, err := a.tokens.Delete(ctx, hash); err != nil {
			a.logger.Warn("failed to drop expired token", "error", err)
		}
		return nil, ErrInvalidToken
	}

	p := session.Principal
	return &p, nil
}

// Revoke invalidates a token. Revoking an unknown token returns
// ErrInvalidToken so callers can tell a logout that did nothing.
func (a *Authority) Revoke(ctx context.Context, raw string) error {
	if raw == "" {
		return ErrMissingToken
	}
	if !wellFormed(raw) {
		return ErrInvalidToken
	}

	existed, err := a.tokens.Delete(ctx, HashToken(raw))
	if err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	if !existed {
		return ErrInvalidToken
	}

	a.logger.Debug("token revoked", "token", Prefix(raw))
	return nil
}
