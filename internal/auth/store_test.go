package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/redisstore"
)

func newRedisTokenStore(t *testing.T) (*RedisTokenStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisstore.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisTokenStore(client), mr
}

func testSession() Session {
	return Session{
		Principal: Principal{UserID: "usr-1234abcd", Username: "alice", Scope: ScopeAdmin},
		IssuedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func exerciseTokenStore(t *testing.T, store TokenStore) {
	t.Helper()
	ctx := context.Background()
	hash := HashToken("0123456789abcdef0123456789abcdef01234567")

	if _, err := store.Get(ctx, hash); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Get() before Put error = %v, want ErrSessionNotFound", err)
	}

	if err := store.Put(ctx, hash, testSession(), 0); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := store.Get(ctx, hash)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Principal.Username != "alice" || got.Principal.Scope != ScopeAdmin {
		t.Errorf("Get() principal = %+v", got.Principal)
	}
	if got.ExpiresAt != nil {
		t.Errorf("ExpiresAt = %v, want nil", got.ExpiresAt)
	}

	existed, err := store.Delete(ctx, hash)
	if err != nil || !existed {
		t.Fatalf("Delete() = %v, %v; want true, nil", existed, err)
	}
	existed, err = store.Delete(ctx, hash)
	if err != nil || existed {
		t.Fatalf("second Delete() = %v, %v; want false, nil", existed, err)
	}

	if _, err := store.Get(ctx, hash); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Get() after Delete error = %v, want ErrSessionNotFound", err)
	}
}

func TestMemoryTokenStore(t *testing.T) {
	store := NewMemoryTokenStore()
	exerciseTokenStore(t, store)
	if store.Len() != 0 {
		t.Errorf("Len() = %d, want 0", store.Len())
	}
}

func sessionExpiringAt(at time.Time) Session {
	s := testSession()
	s.ExpiresAt = &at
	return s
}

func TestMemoryTokenStore_Sweep(t *testing.T) {
	store := NewMemoryTokenStore()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)

	sessions := map[string]Session{
		"expired":   sessionExpiringAt(now.Add(-time.Minute)),
		"boundary":  sessionExpiringAt(now),
		"live":      sessionExpiringAt(now.Add(time.Minute)),
		"no-expiry": testSession(),
	}
	for hash, s := range sessions {
		if err := store.Put(ctx, hash, s, time.Hour); err != nil {
			t.Fatal(err)
		}
	}

	if removed := store.Sweep(now); removed != 2 {
		t.Errorf("Sweep() removed %d, want 2", removed)
	}
	for hash, wantKept := range map[string]bool{"expired": false, "boundary": false, "live": true, "no-expiry": true} {
		_, err := store.Get(ctx, hash)
		if kept := err == nil; kept != wantKept {
			t.Errorf("%s kept = %v, want %v", hash, kept, wantKept)
		}
	}
	if removed := store.Sweep(now); removed != 0 {
		t.Errorf("second Sweep() removed %d, want 0", removed)
	}
}

func TestMemoryTokenStore_SweepLoop(t *testing.T) {
	store := NewMemoryTokenStore()
	ctx, cancel := context.WithCancel(context.Background())

	past := time.Now().Add(-time.Second)
	if err := store.Put(ctx, "stale", sessionExpiringAt(past), time.Millisecond); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		store.SweepLoop(ctx, 10*time.Millisecond)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for store.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("expired session was not swept")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SweepLoop did not return after cancellation")
	}
}

func TestRedisTokenStore(t *testing.T) {
	store, _ := newRedisTokenStore(t)
	exerciseTokenStore(t, store)
}

func TestRedisTokenStore_KeyUsesHashNotToken(t *testing.T) {
	store, mr := newRedisTokenStore(t)
	raw := "0123456789abcdef0123456789abcdef01234567"
	hash := HashToken(raw)

	if err := store.Put(context.Background(), hash, testSession(), 0); err != nil {
		t.Fatal(err)
	}

	if !mr.Exists("graylogic:token:" + hash) {
		t.Error("session should be stored under the token hash")
	}
	if mr.Exists("graylogic:token:" + raw) {
		t.Error("raw token must never be used as a key")
	}
}

func TestRedisTokenStore_TTLExpires(t *testing.T) {
	store, mr := newRedisTokenStore(t)
	ctx := context.Background()
	hash := HashToken("fedcba9876543210fedcba9876543210fedcba98")

	if err := store.Put(ctx, hash, testSession(), time.Minute); err != nil {
		t.Fatal(err)
	}
	if ttl := mr.TTL("graylogic:token:" + hash); ttl != time.Minute {
		t.Errorf("TTL = %v, want 1m", ttl)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := store.Get(ctx, hash); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get() after expiry error = %v, want ErrSessionNotFound", err)
	}
}
