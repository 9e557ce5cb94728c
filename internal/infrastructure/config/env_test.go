package config

import (
	"reflect"
	"strings"
	"testing"
)

func TestApplyEnvOverrides(t *testing.T) {
	env := map[string]string{
		"GRAYLOGIC_DATABASE_PATH":       "/custom/path.db",
		"GRAYLOGIC_MQTT_ENABLED":        "true",
		"GRAYLOGIC_MQTT_HOST":           "mqtt.example.com",
		"GRAYLOGIC_MQTT_PORT":           "8883",
		"GRAYLOGIC_MQTT_USERNAME":       "testuser",
		"GRAYLOGIC_MQTT_PASSWORD":       "testpass",
		"GRAYLOGIC_API_HOST":            "192.168.1.1",
		"GRAYLOGIC_API_PORT":            "9090",
		"GRAYLOGIC_INFLUXDB_URL":        "http://influx:8086",
		"GRAYLOGIC_INFLUXDB_TOKEN":      "secret-token",
		"GRAYLOGIC_REDIS_ADDR":          "redis.example.com:6379",
		"GRAYLOGIC_LOG_LEVEL":           "debug",
		"GRAYLOGIC_TOKEN_STORE":         "redis",
		"GRAYLOGIC_TOKEN_TTL_MINUTES":   "15",
		"GRAYLOGIC_SITE_ID":             "",
		"GRAYLOGIC_INFLUXDB_ENABLED":    "",
		"GRAYLOGIC_UNRELATED_SOMETHING": "ignored",
	}
	for k, v := range env {
		t.Setenv(k, v)
	}

	cfg := defaultConfig()
	applyEnvOverrides(cfg)

	if len(cfg.envErrs) != 0 {
		t.Fatalf("envErrs = %v, want none", cfg.envErrs)
	}

	checks := []struct {
		name      string
		got, want any
	}{
		{"Database.Path", cfg.Database.Path, "/custom/path.db"},
		{"MQTT.Enabled", cfg.MQTT.Enabled, true},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"MQTT.Broker.Port", cfg.MQTT.Broker.Port, 8883},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "testuser"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "testpass"},
		{"API.Host", cfg.API.Host, "192.168.1.1"},
		{"API.Port", cfg.API.Port, 9090},
		{"InfluxDB.URL", cfg.InfluxDB.URL, "http://influx:8086"},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "secret-token"},
		{"Redis.Addr", cfg.Redis.Addr, "redis.example.com:6379"},
		{"Logging.Level", cfg.Logging.Level, "debug"},
		{"Security.Tokens.Store", cfg.Security.Tokens.Store, TokenStoreRedis},
		{"Security.Tokens.TTLMinutes", cfg.Security.Tokens.TTLMinutes, 15},
		// Empty variables leave the default alone.
		{"Site.ID", cfg.Site.ID, "site-001"},
		{"InfluxDB.Enabled", cfg.InfluxDB.Enabled, false},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestApplyEnvOverrides_BadValues(t *testing.T) {
	t.Setenv("GRAYLOGIC_MQTT_PORT", "1883x")
	t.Setenv("GRAYLOGIC_INFLUXDB_ENABLED", "sometimes")
	t.Setenv("GRAYLOGIC_API_HOST", "10.0.0.2")

	cfg := defaultConfig()
	applyEnvOverrides(cfg)

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker.Port = %d, want default kept", cfg.MQTT.Broker.Port)
	}
	if cfg.API.Host != "10.0.0.2" {
		t.Errorf("API.Host = %q, valid overrides should still apply", cfg.API.Host)
	}
	if len(cfg.envErrs) != 1 {
		t.Fatalf("envErrs = %v, want one aggregated error", cfg.envErrs)
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() should report bad overrides")
	}
	for _, value := range []string{"1883x", "sometimes"} {
		if !strings.Contains(err.Error(), value) {
			t.Errorf("Validate() error %q does not mention %q", err, value)
		}
	}
}

func TestEnvTags_Unique(t *testing.T) {
	seen := map[string]string{}
	var walk func(typ reflect.Type, path string)
	walk = func(typ reflect.Type, path string) {
		for i := range typ.NumField() {
			f := typ.Field(i)
			if name, ok := f.Tag.Lookup("env"); ok {
				if prev, dup := seen[name]; dup {
					t.Errorf("%s%s is bound to both %s and %s", envPrefix, name, prev, path+f.Name)
				}
				seen[name] = path + f.Name
			}
			if f.Type.Kind() == reflect.Struct {
				walk(f.Type, path+f.Name+".")
			}
		}
	}
	walk(reflect.TypeOf(Config{}), "")

	if len(seen) < 15 {
		t.Errorf("found %d env bindings, want the full set", len(seen))
	}
}
