package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
)

// ErrMalformedHash is returned for stored password hashes that are not
// Argon2id strings in PHC form.
var ErrMalformedHash = errors.New("auth: malformed password hash")

// argonHash is one Argon2id hash with the parameters it was computed with.
type argonHash struct {
	memory  uint32 // KiB
	time    uint32
	threads uint8
	salt    []byte
	key     []byte
}

// currentParams are applied to new hashes. Stored hashes weaker than
// these are upgraded on the next successful login.
var currentParams = argonHash{memory: 64 * 1024, time: 3, threads: 1}

const (
	saltLen = 16
	keyLen  = 32
)

var b64 = base64.RawStdEncoding

// HashPassword hashes password with Argon2id and returns the PHC string,
// e.g. $argon2id$v=19$m=65536,t=3,p=1$<salt>$<key>.
func HashPassword(password string) (string, error) {
	h := currentParams
	h.salt = make([]byte, saltLen)
	if _, err := rand.Read(h.salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}
	h.key = h.derive(password, keyLen)
	return h.String(), nil
}

// VerifyPassword reports whether password matches the PHC string encoded.
// A malformed hash is an error, not a mismatch.
func VerifyPassword(password, encoded string) (bool, error) {
	h, err := parseArgonHash(encoded)
	if err != nil {
		return false, err
	}
	candidate := h.derive(password, uint32(len(h.key))) //nolint:gosec // G115: key length is small
	return subtle.ConstantTimeCompare(h.key, candidate) == 1, nil
}

// NeedsRehash reports whether encoded was produced with parameters weaker
// than the ones HashPassword uses today. Malformed hashes need a rehash.
func NeedsRehash(encoded string) bool {
	h, err := parseArgonHash(encoded)
	if err != nil {
		return true
	}
	return h.memory < currentParams.memory ||
		h.time < currentParams.time ||
		len(h.key) < keyLen
}

func (h argonHash) derive(password string, n uint32) []byte {
	return argon2.IDKey([]byte(password), h.salt, h.time, h.memory, h.threads, n)
}

func (h argonHash) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.memory, h.time, h.threads,
		b64.EncodeToString(h.salt), b64.EncodeToString(h.key))
}

func parseArgonHash(encoded string) (argonHash, error) {
	var h argonHash

	// "", "argon2id", "v=19", "m=..,t=..,p=..", salt, key
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" {
		return h, ErrMalformedHash
	}
	if fields[1] != "argon2id" {
		return h, fmt.Errorf("%w: algorithm %q", ErrMalformedHash, fields[1])
	}
	if fields[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return h, fmt.Errorf("%w: version %q", ErrMalformedHash, fields[2])
	}
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &h.memory, &h.time, &h.threads); err != nil {
		return h, fmt.Errorf("%w: parameters: %v", ErrMalformedHash, err)
	}
	if h.time == 0 || h.threads == 0 {
		return h, fmt.Errorf("%w: zero cost parameter", ErrMalformedHash)
	}

	var err error
	if h.salt, err = b64.DecodeString(fields[4]); err != nil {
		return h, fmt.Errorf("%w: salt: %v", ErrMalformedHash, err)
	}
	if h.key, err = b64.DecodeString(fields[5]); err != nil || len(h.key) == 0 {
		return h, fmt.Errorf("%w: key", ErrMalformedHash)
	}
	return h, nil
}

var (
	decoyOnce sync.Once
	decoy     string
)

// burnPasswordCheck spends the same Argon2id work as a real verification
// so unknown usernames cannot be told apart by timing.
func burnPasswordCheck(password string) {
	decoyOnce.Do(func() {
		decoy, _ = HashPassword("graylogic-unknown-user") //nolint:errcheck // empty decoy skips the burn
	})
	if decoy != "" {
		VerifyPassword(password, decoy) //nolint:errcheck // only the cost matters
	}
}
