// Package auth issues and resolves the gateway's session tokens.
//
// Tokens are opaque: 20 bytes from crypto/rand, hex encoded. A token is
// bound to the principal that authenticated and to that principal's scope:
//
//   - reader may list and read things and placements
//   - admin may also dispatch commands
//
// Only SHA-256 hashes of tokens reach a TokenStore. The default
// MemoryTokenStore loses every session on restart; RedisTokenStore keeps
// them across restarts and enforces an optional TTL in Redis.
//
// Passwords are hashed with Argon2id in PHC string format.
package auth
