package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/redisstore"
)

// TokenStore holds sessions keyed by token hash.
type TokenStore interface {
	// Put stores a session. ttl of 0 means the store keeps it until
	// Delete (or restart, for in-memory stores).
	Put(ctx context.Context, tokenHash string, session Session, ttl time.Duration) error

	// Get returns ErrSessionNotFound when no session exists.
	Get(ctx context.Context, tokenHash string) (*Session, error)

	// Delete reports whether a session was removed.
	Delete(ctx context.Context, tokenHash string) (bool, error)
}

// MemoryTokenStore keeps sessions in process memory. Restarting the
// gateway invalidates every token.
type MemoryTokenStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewMemoryTokenStore creates an empty in-memory store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{sessions: make(map[string]Session)}
}

// Put implements TokenStore. Expiry is carried by the session itself.
func (s *MemoryTokenStore) Put(_ context.Context, tokenHash string, session Session, _ time.Duration) error {
	s.mu.Lock()
	s.sessions[tokenHash] = session
	s.mu.Unlock()
	return nil
}

// Get implements TokenStore.
func (s *MemoryTokenStore) Get(_ context.Context, tokenHash string) (*Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[tokenHash]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &session, nil
}

// Delete implements TokenStore.
func (s *MemoryTokenStore) Delete(_ context.Context, tokenHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[tokenHash]
	delete(s.sessions, tokenHash)
	return ok, nil
}

// Sweep removes sessions that expired at or before now and returns how
// many it removed. Sessions without an expiry are kept.
func (s *MemoryTokenStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for hash, session := range s.sessions {
		if session.Expired(now) {
			delete(s.sessions, hash)
			removed++
		}
	}
	return removed
}

// SweepLoop calls Sweep every interval until ctx is cancelled. The
// Authority already rejects expired sessions; this only reclaims memory.
func (s *MemoryTokenStore) SweepLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Sweep(now)
		}
	}
}

// Len returns the number of stored sessions, expired or not.
func (s *MemoryTokenStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// RedisTokenStore keeps sessions in Redis under graylogic:token:<hash>,
// so tokens survive a gateway restart. Redis TTLs enforce expiry.
type RedisTokenStore struct {
	client *redisstore.Client
}

// NewRedisTokenStore wraps a connected redisstore client.
func NewRedisTokenStore(client *redisstore.Client) *RedisTokenStore {
	return &RedisTokenStore{client: client}
}

func tokenKey(tokenHash string) string {
	return redisstore.Key("token", tokenHash)
}

// Put implements TokenStore.
func (s *RedisTokenStore) Put(ctx context.Context, tokenHash string, session Session, ttl time.Duration) error {
	if err := s.client.SetJSON(ctx, tokenKey(tokenHash), session, ttl); err != nil {
		return fmt.Errorf("storing session: %w", err)
	}
	return nil
}

// Get implements TokenStore.
func (s *RedisTokenStore) Get(ctx context.Context, tokenHash string) (*Session, error) {
	var session Session
	err := s.client.GetJSON(ctx, tokenKey(tokenHash), &session)
	if errors.Is(err, redisstore.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	return &session, nil
}

// Delete implements TokenStore.
func (s *RedisTokenStore) Delete(ctx context.Context, tokenHash string) (bool, error) {
	existed, err := s.client.Delete(ctx, tokenKey(tokenHash))
	if err != nil {
		return false, fmt.Errorf("deleting session: %w", err)
	}
	return existed, nil
}
