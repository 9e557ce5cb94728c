package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// TokenBytes is the amount of CSPRNG output behind each token (160 bits).
const TokenBytes = 20

// TokenLength is the length of the hex-encoded token string.
const TokenLength = TokenBytes * 2

// GenerateToken returns a new random token, hex encoded.
func GenerateToken() (string, error) {
	b := make([]byte, TokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashToken computes the SHA-256 hash of a raw token for storage.
// Stores only ever see hashes.
func HashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

// wellFormed reports whether raw could have been produced by GenerateToken.
func wellFormed(raw string) bool {
	if len(raw) != TokenLength {
		return false
	}
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Prefix returns the first eight characters of a token, for logs.
func Prefix(raw string) string {
	if len(raw) <= 8 {
		return raw
	}
	return raw[:8] + "..."
}
