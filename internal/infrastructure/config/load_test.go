package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
site:
  id: "test-site"
database:
  path: "/tmp/test.db"
mqtt:
  broker:
    host: "broker.lan"
api:
  timeouts:
    write: 45
security:
  tokens:
    store: "memory"
    ttl_minutes: 120
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "test-site" {
		t.Errorf("Site.ID = %q, want test-site", cfg.Site.ID)
	}
	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want /tmp/test.db", cfg.Database.Path)
	}
	if cfg.MQTT.Broker.Host != "broker.lan" {
		t.Errorf("MQTT.Broker.Host = %q, want broker.lan", cfg.MQTT.Broker.Host)
	}
	if got := cfg.TokenTTL(); got != 2*time.Hour {
		t.Errorf("TokenTTL() = %v, want 2h", got)
	}

	// Keys absent from the file keep their defaults, siblings included.
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker.Port = %d, want default 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.API.Timeouts.Read != 30 || cfg.API.Timeouts.Write != 45 {
		t.Errorf("API.Timeouts = %+v, want read 30 write 45", cfg.API.Timeouts)
	}
	if !cfg.Platforms.Mock.Enabled {
		t.Error("Platforms.Mock.Enabled should default to true")
	}
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	path := writeFile(t, "database:\n  path: /from/file.db\n")
	t.Setenv("GRAYLOGIC_DATABASE_PATH", "/from/env.db")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != "/from/env.db" {
		t.Errorf("Database.Path = %q, want /from/env.db", cfg.Database.Path)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		if !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("Load() error = %v, want fs.ErrNotExist", err)
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := Load(writeFile(t, "invalid: [yaml: content"))
		if err == nil || !strings.Contains(err.Error(), "parsing config file") {
			t.Errorf("Load() error = %v, want a parse error", err)
		}
	})

	t.Run("validation", func(t *testing.T) {
		_, err := Load(writeFile(t, "site:\n  id: \"\"\n"))
		if err == nil || !strings.Contains(err.Error(), "site.id is required") {
			t.Errorf("Load() error = %v, want site.id failure", err)
		}
	})

	t.Run("unparseable env", func(t *testing.T) {
		t.Setenv("GRAYLOGIC_API_PORT", "eighty")
		_, err := Load(writeFile(t, "site:\n  id: s\n"))
		if err == nil || !strings.Contains(err.Error(), "eighty") {
			t.Errorf("Load() error = %v, want the bad value reported", err)
		}
	})
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("API.Port = %d, want 8080", cfg.API.Port)
	}
	if cfg.Security.Tokens.Store != TokenStoreMemory {
		t.Errorf("Security.Tokens.Store = %q, want %q", cfg.Security.Tokens.Store, TokenStoreMemory)
	}
	if cfg.TokenTTL() != 0 {
		t.Errorf("TokenTTL() = %v, want 0", cfg.TokenTTL())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestDurations(t *testing.T) {
	timeouts := APITimeoutConfig{Read: 30, Write: 45, Idle: 60}
	if got := timeouts.ReadTimeout(); got != 30*time.Second {
		t.Errorf("ReadTimeout() = %v", got)
	}
	if got := timeouts.WriteTimeout(); got != 45*time.Second {
		t.Errorf("WriteTimeout() = %v", got)
	}
	if got := timeouts.IdleTimeout(); got != time.Minute {
		t.Errorf("IdleTimeout() = %v", got)
	}

	ws := WebSocketConfig{PingInterval: 30, PongTimeout: 10}
	if ws.PingPeriod() != 30*time.Second || ws.WriteWait() != 10*time.Second {
		t.Errorf("PingPeriod() = %v, WriteWait() = %v", ws.PingPeriod(), ws.WriteWait())
	}
	if got := ws.ReadDeadline(); got != 40*time.Second {
		t.Errorf("ReadDeadline() = %v, want 40s", got)
	}
}
