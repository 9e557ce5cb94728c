package auth

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"strings"
)

// SeedAdminUsername is the account created on first boot.
const SeedAdminUsername = "admin"

// generatedPasswordEntropy is the number of random bytes behind a
// generated password.
const generatedPasswordEntropy = 15

// SeedAdmin creates an admin account with a random password when the user
// table is empty, logs the password once at warn and returns it. It
// returns "" when accounts already exist.
func SeedAdmin(ctx context.Context, users UserStore, logger Logger) (string, error) {
	if logger == nil {
		logger = noopLogger{}
	}

	switch n, err := users.Count(ctx); {
	case err != nil:
		return "", fmt.Errorf("checking user count: %w", err)
	case n > 0:
		logger.Debug("users exist, skipping admin seed", "count", n)
		return "", nil
	}

	password, err := GeneratePassword()
	if err != nil {
		return "", err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing seed password: %w", err)
	}

	if err := users.Create(ctx, &User{
		Username:     SeedAdminUsername,
		DisplayName:  "Gateway Administrator",
		PasswordHash: hash,
		Scope:        ScopeAdmin,
		IsActive:     true,
	}); err != nil {
		return "", fmt.Errorf("creating seed admin: %w", err)
	}

	logger.Warn("seed admin account created",
		"username", SeedAdminUsername,
		"password", password,
		"action_required", "store this password now, it is not shown again",
	)
	return password, nil
}

// GeneratePassword returns a random password in dash-separated groups of
// four, e.g. "k3qd-7mzp-...", so it can be copied from a log by hand.
func GeneratePassword() (string, error) {
	raw := make([]byte, generatedPasswordEntropy)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generating password: %w", err)
	}
	enc := strings.ToLower(base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw))

	groups := make([]string, 0, len(enc)/4)
	for len(enc) > 0 {
		n := min(4, len(enc))
		groups = append(groups, enc[:n])
		enc = enc[n:]
	}
	return strings.Join(groups, "-"), nil
}
