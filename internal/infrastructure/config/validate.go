package config

import (
	"fmt"
	"slices"
	"strings"
)

var (
	logLevels  = []string{"debug", "info", "warn", "warning", "error"}
	logFormats = []string{"json", "text"}
	logOutputs = []string{"stdout", "stderr"}
)

// problems collects validation failures so they can be reported together.
type problems []string

func (p *problems) require(ok bool, format string, args ...any) {
	if !ok {
		*p = append(*p, fmt.Sprintf(format, args...))
	}
}

// Validate reports every problem with the configuration in one error.
// Empty logging fields are allowed and fall back to the logger's defaults.
func (c *Config) Validate() error {
	var p problems

	for _, err := range c.envErrs {
		p = append(p, err.Error())
	}

	p.require(c.Site.ID != "", "site.id is required")
	p.require(c.Database.Path != "", "database.path is required")
	p.require(c.Database.BusyTimeout >= 0, "database.busy_timeout must not be negative")

	p.require(c.MQTT.QoS >= 0 && c.MQTT.QoS <= 2, "mqtt.qos must be 0, 1, or 2")
	if c.MQTT.Enabled {
		p.require(c.MQTT.Broker.Host != "", "mqtt.broker.host is required when mqtt is enabled")
		p.require(validPort(c.MQTT.Broker.Port), "mqtt.broker.port must be between 1 and 65535")
	}

	p.require(validPort(c.API.Port), "api.port must be between 1 and 65535")
	if c.API.TLS.Enabled {
		p.require(c.API.TLS.CertFile != "" && c.API.TLS.KeyFile != "",
			"api.tls.cert_file and api.tls.key_file are required when tls is enabled")
	}
	t := c.API.Timeouts
	p.require(t.Read >= 0 && t.Write >= 0 && t.Idle >= 0, "api.timeouts must not be negative")

	if c.WebSocket.Enabled {
		ws := c.WebSocket
		p.require(ws.MaxMessageSize > 0, "websocket.max_message_size must be positive")
		p.require(ws.PingInterval > 0, "websocket.ping_interval must be positive")
		p.require(ws.PongTimeout > 0, "websocket.pong_timeout must be positive")
	}

	if c.InfluxDB.Enabled {
		p.require(c.InfluxDB.URL != "", "influxdb.url is required when influxdb is enabled")
		p.require(c.InfluxDB.Org != "" && c.InfluxDB.Bucket != "",
			"influxdb.org and influxdb.bucket are required when influxdb is enabled")
	}

	p.require(oneOfOrEmpty(c.Logging.Level, logLevels), "logging.level must be one of %s", strings.Join(logLevels, ", "))
	p.require(oneOfOrEmpty(c.Logging.Format, logFormats), "logging.format must be json or text")
	p.require(oneOfOrEmpty(c.Logging.Output, logOutputs), "logging.output must be stdout or stderr")

	switch c.Security.Tokens.Store {
	case TokenStoreMemory:
	case TokenStoreRedis:
		p.require(c.Redis.Addr != "", "redis.addr is required when security.tokens.store is redis")
	default:
		p = append(p, fmt.Sprintf("security.tokens.store must be %q or %q", TokenStoreMemory, TokenStoreRedis))
	}
	p.require(c.Security.Tokens.TTLMinutes >= 0, "security.tokens.ttl_minutes must not be negative")

	if pm := c.Platforms.MQTT; pm.Enabled {
		p.require(c.MQTT.Enabled, "platforms.mqtt requires mqtt.enabled")
		p.require(len(pm.Protocols) > 0, "platforms.mqtt.protocols must list at least one protocol")
		p.require(len(pm.ThingTypes) > 0, "platforms.mqtt.thing_types must list at least one thing type")
	}

	if len(p) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(p, "; "))
	}
	return nil
}

func validPort(port int) bool {
	return port >= 1 && port <= 65535
}

func oneOfOrEmpty(v string, allowed []string) bool {
	return v == "" || slices.Contains(allowed, strings.ToLower(v))
}
