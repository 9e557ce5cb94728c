package redisstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/nerrad567/gray-logic-gateway/internal/infrastructure/config"
)

type session struct {
	Username string `json:"username"`
	Scope    string `json:"scope"`
}

// setupTestClient creates a client connected to a miniredis instance.
func setupTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.NewMiniRedis()
	if err := mr.Start(); err != nil {
		t.Fatalf("starting miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func TestConnect(t *testing.T) {
	t.Run("connects to a live server", func(t *testing.T) {
		mr := miniredis.RunT(t)

		client, err := Connect(context.Background(), config.RedisConfig{Addr: mr.Addr()})
		if err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
		defer client.Close()

		if err := client.HealthCheck(context.Background()); err != nil {
			t.Errorf("HealthCheck() error = %v", err)
		}
	})

	t.Run("fails when nothing listens", func(t *testing.T) {
		_, err := Connect(context.Background(), config.RedisConfig{Addr: "127.0.0.1:1"})
		if !errors.Is(err, ErrConnectionFailed) {
			t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
		}
	})
}

func TestKey(t *testing.T) {
	tests := []struct {
		parts []string
		want  string
	}{
		{[]string{"token", "ab12"}, "graylogic:token:ab12"},
		{[]string{"x"}, "graylogic:x"},
	}
	for _, tt := range tests {
		if got := Key(tt.parts...); got != tt.want {
			t.Errorf("Key(%v) = %q, want %q", tt.parts, got, tt.want)
		}
	}
}

func TestSetGetJSON(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	key := Key("session", "1")
	want := session{Username: "alice", Scope: "admin"}
	if err := client.SetJSON(ctx, key, want, 0); err != nil {
		t.Fatalf("SetJSON() error = %v", err)
	}

	var got session
	if err := client.GetJSON(ctx, key, &got); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if got != want {
		t.Errorf("GetJSON() = %+v, want %+v", got, want)
	}
}

func TestGetJSON_NotFound(t *testing.T) {
	client, _ := setupTestClient(t)

	var got session
	err := client.GetJSON(context.Background(), Key("missing"), &got)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetJSON() error = %v, want ErrNotFound", err)
	}
}

func TestGetJSON_CorruptValue(t *testing.T) {
	client, mr := setupTestClient(t)
	if err := mr.Set(Key("bad"), "{not json"); err != nil {
		t.Fatal(err)
	}

	var got session
	err := client.GetJSON(context.Background(), Key("bad"), &got)
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("GetJSON() error = %v, want a decode error", err)
	}
}

func TestSetJSON_TTL(t *testing.T) {
	client, mr := setupTestClient(t)
	ctx := context.Background()

	key := Key("session", "ttl")
	if err := client.SetJSON(ctx, key, session{Username: "bob"}, time.Minute); err != nil {
		t.Fatalf("SetJSON() error = %v", err)
	}
	if ttl := mr.TTL(key); ttl != time.Minute {
		t.Errorf("TTL = %v, want 1m", ttl)
	}

	mr.FastForward(2 * time.Minute)

	var got session
	if err := client.GetJSON(ctx, key, &got); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetJSON() after expiry error = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	key := Key("session", "del")
	if err := client.SetJSON(ctx, key, session{Username: "carol"}, 0); err != nil {
		t.Fatal(err)
	}

	existed, err := client.Delete(ctx, key)
	if err != nil || !existed {
		t.Errorf("Delete() = %v, %v; want true, nil", existed, err)
	}

	existed, err = client.Delete(ctx, key)
	if err != nil || existed {
		t.Errorf("second Delete() = %v, %v; want false, nil", existed, err)
	}
}
