package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UserStore persists principal accounts.
type UserStore interface {
	UserLookup
	Create(ctx context.Context, user *User) error
	List(ctx context.Context) ([]User, error)
	Count(ctx context.Context) (int, error)
	SetPasswordHash(ctx context.Context, userID, hash string) error
	SetActive(ctx context.Context, username string, active bool) error
}

// SQLiteUserRepository stores accounts in the users table.
type SQLiteUserRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewUserRepository creates a user repository over db.
func NewUserRepository(db *sql.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db, now: time.Now}
}

const selectUser = `SELECT id, username, display_name, password_hash, scope, is_active, created_at, updated_at FROM users`

// Create inserts user, generating an ID when it has none. The username
// and scope are validated first.
func (r *SQLiteUserRepository) Create(ctx context.Context, user *User) error {
	switch {
	case !IsValidUsername(user.Username):
		return ErrInvalidUsername
	case !user.Scope.Valid():
		return ErrInvalidScope
	}
	if user.ID == "" {
		user.ID = "usr-" + uuid.NewString()[:8]
	}
	user.CreatedAt = r.stamp()
	user.UpdatedAt = user.CreatedAt

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, username, display_name, password_hash, scope, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.DisplayName, user.PasswordHash,
		string(user.Scope), user.IsActive, formatTime(user.CreatedAt), formatTime(user.UpdatedAt),
	)
	switch {
	case err == nil:
		return nil
	case strings.Contains(err.Error(), "UNIQUE constraint failed"):
		return ErrUsernameExists
	default:
		return fmt.Errorf("inserting user %s: %w", user.Username, err)
	}
}

// GetByUsername returns the account named username or ErrUserNotFound.
func (r *SQLiteUserRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	return scanUser(r.db.QueryRowContext(ctx, selectUser+" WHERE username = ?", username))
}

// List returns every account, oldest first.
func (r *SQLiteUserRepository) List(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, selectUser+" ORDER BY created_at, rowid")
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, scanErr := scanUser(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// Count returns the number of accounts.
func (r *SQLiteUserRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return n, nil
}

// SetPasswordHash replaces the stored hash of the account with userID.
func (r *SQLiteUserRepository) SetPasswordHash(ctx context.Context, userID, hash string) error {
	return r.update(ctx, "password_hash = ?", "id = ?", hash, userID)
}

// SetActive enables or disables the account named username. Disabled
// accounts cannot authenticate; tokens already issued stay valid until
// revoked.
func (r *SQLiteUserRepository) SetActive(ctx context.Context, username string, active bool) error {
	return r.update(ctx, "is_active = ?", "username = ?", active, username)
}

func (r *SQLiteUserRepository) update(ctx context.Context, set, where string, value, key any) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET "+set+", updated_at = ? WHERE "+where,
		value, formatTime(r.stamp()), key)
	if err != nil {
		return fmt.Errorf("updating user %v: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n == 0 { //nolint:errcheck // sqlite always reports rows affected
		return ErrUserNotFound
	}
	return nil
}

// stamp is the current time at the second precision stored in the table.
func (r *SQLiteUserRepository) stamp() time.Time {
	return r.now().UTC().Truncate(time.Second)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*User, error) {
	var (
		u                    User
		scope                string
		createdAt, updatedAt string
	)
	err := s.Scan(&u.ID, &u.Username, &u.DisplayName, &u.PasswordHash,
		&scope, &u.IsActive, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user: %w", err)
	}

	u.Scope = Scope(scope)
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // written by formatTime
	u.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // written by formatTime
	return &u, nil
}
