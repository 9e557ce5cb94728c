package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load builds the configuration in three layers: built-in defaults, the
// YAML file at path, then GRAYLOGIC_* environment variables. The result
// is validated before it is returned.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default is the built-in configuration with environment overrides
// applied. CLI subcommands use it when no config file exists yet; callers
// should still Validate the result.
func Default() *Config {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	return cfg
}

func defaultConfig() *Config {
	cfg := &Config{}

	cfg.Site = SiteConfig{ID: "site-001", Name: "Gray Logic", Timezone: "UTC"}
	cfg.Database = DatabaseConfig{Path: "./data/gateway.db", WALMode: true, BusyTimeout: 5}

	cfg.MQTT.Broker = MQTTBrokerConfig{Host: "localhost", Port: 1883, ClientID: "graylogic-gateway"}
	cfg.MQTT.QoS = 1
	cfg.MQTT.Reconnect = MQTTReconnectConfig{InitialDelay: 1, MaxDelay: 60}

	cfg.API.Host = "0.0.0.0"
	cfg.API.Port = 8080
	cfg.API.Timeouts = APITimeoutConfig{Read: 30, Write: 30, Idle: 60}
	cfg.API.DocsURL = "https://docs.graylogic.uk/gateway/errors"

	cfg.WebSocket = WebSocketConfig{Enabled: true, MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}

	cfg.InfluxDB.BatchSize = 100
	cfg.InfluxDB.FlushInterval = 10

	cfg.Redis.Addr = "localhost:6379"
	cfg.Logging = LoggingConfig{Level: "info", Format: "json", Output: "stdout"}

	cfg.Security.Tokens.Store = TokenStoreMemory
	cfg.Security.SeedAdmin = true

	cfg.Platforms.Mock.Enabled = true
	return cfg
}
