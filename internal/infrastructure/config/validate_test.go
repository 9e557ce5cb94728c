package config

import (
	"strings"
	"testing"
)

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Site:     SiteConfig{ID: "site-001"},
			Database: DatabaseConfig{Path: "/data/gateway.db"},
			MQTT:     MQTTConfig{QoS: 1},
			API:      APIConfig{Port: 8080},
			Redis:    RedisConfig{Addr: "localhost:6379"},
			Security: SecurityConfig{Tokens: TokenConfig{Store: TokenStoreMemory}},
		}
	}
	mqttPlatform := MQTTPlatformConfig{Enabled: true, Protocols: []string{"knx"}, ThingTypes: []string{"light"}}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string // "" means valid
	}{
		{"valid config", func(*Config) {}, ""},
		{"missing site ID", func(c *Config) { c.Site.ID = "" }, "site.id"},
		{"missing database path", func(c *Config) { c.Database.Path = "" }, "database.path is required"},
		{"negative busy timeout", func(c *Config) { c.Database.BusyTimeout = -1 }, "database.busy_timeout"},
		{"invalid QoS", func(c *Config) { c.MQTT.QoS = 3 }, "mqtt.qos"},
		{"mqtt without host", func(c *Config) { c.MQTT = MQTTConfig{Enabled: true, Broker: MQTTBrokerConfig{Port: 1883}} }, "mqtt.broker.host"},
		{"mqtt bad port", func(c *Config) { c.MQTT = MQTTConfig{Enabled: true, Broker: MQTTBrokerConfig{Host: "h"}} }, "mqtt.broker.port"},
		{"invalid port low", func(c *Config) { c.API.Port = 0 }, "api.port"},
		{"invalid port high", func(c *Config) { c.API.Port = 70000 }, "api.port"},
		{"tls without key", func(c *Config) { c.API.TLS = TLSConfig{Enabled: true, CertFile: "c.pem"} }, "api.tls"},
		{"negative timeout", func(c *Config) { c.API.Timeouts.Idle = -5 }, "api.timeouts"},
		{"websocket disabled with zero values", func(c *Config) { c.WebSocket.Enabled = false }, ""},
		{"websocket without ping", func(c *Config) {
			c.WebSocket = WebSocketConfig{Enabled: true, MaxMessageSize: 1024, PongTimeout: 5}
		}, "websocket.ping_interval"},
		{"influx without bucket", func(c *Config) {
			c.InfluxDB = InfluxDBConfig{Enabled: true, URL: "http://influx:8086", Org: "gl"}
		}, "influxdb.org and influxdb.bucket"},
		{"influx complete", func(c *Config) {
			c.InfluxDB = InfluxDBConfig{Enabled: true, URL: "http://influx:8086", Org: "gl", Bucket: "things"}
		}, ""},
		{"unknown log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"upper-case log level", func(c *Config) { c.Logging.Level = "WARN" }, ""},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"log to file", func(c *Config) { c.Logging.Output = "/var/log/gw.log" }, "logging.output"},
		{"redis token store", func(c *Config) { c.Security.Tokens.Store = TokenStoreRedis }, ""},
		{"redis token store without address", func(c *Config) {
			c.Security.Tokens.Store = TokenStoreRedis
			c.Redis.Addr = ""
		}, "redis.addr"},
		{"unknown token store", func(c *Config) { c.Security.Tokens.Store = "etcd" }, "security.tokens.store"},
		{"negative token TTL", func(c *Config) { c.Security.Tokens.TTLMinutes = -1 }, "ttl_minutes"},
		{"mqtt platform without mqtt", func(c *Config) { c.Platforms.MQTT = mqttPlatform }, "platforms.mqtt requires"},
		{"mqtt platform without protocols", func(c *Config) {
			c.MQTT = MQTTConfig{Enabled: true, Broker: MQTTBrokerConfig{Host: "h", Port: 1883}}
			c.Platforms.MQTT = MQTTPlatformConfig{Enabled: true, ThingTypes: []string{"light"}}
		}, "platforms.mqtt.protocols"},
		{"mqtt platform complete", func(c *Config) {
			c.MQTT = MQTTConfig{Enabled: true, QoS: 1, Broker: MQTTBrokerConfig{Host: "h", Port: 1883}}
			c.Platforms.MQTT = mqttPlatform
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			switch {
			case tt.wantErr == "" && err != nil:
				t.Errorf("Validate() error = %v, want nil", err)
			case tt.wantErr != "" && err == nil:
				t.Errorf("Validate() = nil, want error containing %q", tt.wantErr)
			case tt.wantErr != "" && !strings.Contains(err.Error(), tt.wantErr):
				t.Errorf("Validate() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateReportsEverything(t *testing.T) {
	err := (&Config{}).Validate()
	if err == nil {
		t.Fatal("empty config should not validate")
	}
	msg := err.Error()
	if !strings.HasPrefix(msg, "configuration errors: ") {
		t.Errorf("error = %q, want configuration errors prefix", msg)
	}
	for _, want := range []string{"site.id", "database.path", "api.port", "security.tokens.store"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q is missing %s", msg, want)
		}
	}
}
