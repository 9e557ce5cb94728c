package config

import "time"

// Token store backends.
const (
	TokenStoreMemory = "memory"
	TokenStoreRedis  = "redis"
)

// Config is the gateway configuration. It is read from YAML; fields with
// an env tag can be overridden from GRAYLOGIC_<tag> environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Redis     RedisConfig     `yaml:"redis"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
	Platforms PlatformsConfig `yaml:"platforms"`

	// envErrs holds overrides that could not be parsed. Validate reports them.
	envErrs []error
}

// SiteConfig identifies the installation.
type SiteConfig struct {
	ID       string `yaml:"id" env:"SITE_ID"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig locates the SQLite file. BusyTimeout is in seconds.
type DatabaseConfig struct {
	Path        string `yaml:"path" env:"DATABASE_PATH"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig configures the optional broker connection used by the MQTT
// platform.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled" env:"MQTT_ENABLED"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

type MQTTBrokerConfig struct {
	Host     string `yaml:"host" env:"MQTT_HOST"`
	Port     int    `yaml:"port" env:"MQTT_PORT"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

type MQTTAuthConfig struct {
	Username string `yaml:"username" env:"MQTT_USERNAME"`
	Password string `yaml:"password" env:"MQTT_PASSWORD"`
}

// MQTTReconnectConfig bounds the reconnect backoff, in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig configures the HTTP listener.
type APIConfig struct {
	Host     string           `yaml:"host" env:"API_HOST"`
	Port     int              `yaml:"port" env:"API_PORT"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
	// DocsURL is the base of the knowledge base linked from error responses.
	DocsURL string `yaml:"docs_url"`
}

type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig holds http.Server timeouts in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig lists what browsers on other origins may do. An empty
// AllowedOrigins admits every origin.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig tunes the /ws notification stream. Intervals are in
// seconds, MaxMessageSize in bytes.
type WebSocketConfig struct {
	Enabled        bool `yaml:"enabled"`
	MaxMessageSize int  `yaml:"max_message_size"`
	PingInterval   int  `yaml:"ping_interval"`
	PongTimeout    int  `yaml:"pong_timeout"`
}

// InfluxDBConfig configures telemetry export. FlushInterval is in seconds.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled" env:"INFLUXDB_ENABLED"`
	URL           string `yaml:"url" env:"INFLUXDB_URL"`
	Token         string `yaml:"token" env:"INFLUXDB_TOKEN"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// RedisConfig is only consulted when security.tokens.store is "redis".
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db"`
}

// LoggingConfig selects level (debug|info|warn|error), format (json|text)
// and output (stdout|stderr).
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
	Output string `yaml:"output"`
}

// SecurityConfig configures principals and tokens.
type SecurityConfig struct {
	Tokens TokenConfig `yaml:"tokens"`

	// SeedAdmin creates an admin account with a random password on first
	// boot when the users table is empty.
	SeedAdmin bool `yaml:"seed_admin"`
}

// TokenConfig controls session token issuance.
type TokenConfig struct {
	// Store is "memory" (default, lost on restart) or "redis".
	Store string `yaml:"store" env:"TOKEN_STORE"`

	// TTLMinutes bounds token lifetime. 0 means tokens live until restart
	// (memory store) or until revoked (redis store).
	TTLMinutes int `yaml:"ttl_minutes" env:"TOKEN_TTL_MINUTES"`
}

// PlatformsConfig selects which integrations register their builders.
type PlatformsConfig struct {
	Mock MockPlatformConfig `yaml:"mock"`
	MQTT MQTTPlatformConfig `yaml:"mqtt"`
}

// MockPlatformConfig configures the in-memory integration.
type MockPlatformConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MQTTPlatformConfig configures the MQTT bridge integration.
type MQTTPlatformConfig struct {
	Enabled bool `yaml:"enabled"`

	// Protocols lists the bridge protocols whose things are routed over MQTT
	// (e.g. "knx", "zigbee"). Each becomes a platform name in the registry.
	Protocols []string `yaml:"protocols"`

	// ThingTypes lists the thing types each bridge protocol supports.
	ThingTypes []string `yaml:"thing_types"`
}

// ReadTimeout is Read as a Duration.
func (t APITimeoutConfig) ReadTimeout() time.Duration { return seconds(t.Read) }

// WriteTimeout is Write as a Duration.
func (t APITimeoutConfig) WriteTimeout() time.Duration { return seconds(t.Write) }

// IdleTimeout is Idle as a Duration.
func (t APITimeoutConfig) IdleTimeout() time.Duration { return seconds(t.Idle) }

// PingPeriod is how often the server pings an idle client.
func (w WebSocketConfig) PingPeriod() time.Duration { return seconds(w.PingInterval) }

// WriteWait bounds a single frame write, pings included.
func (w WebSocketConfig) WriteWait() time.Duration { return seconds(w.PongTimeout) }

// ReadDeadline is how long a client may stay silent before it is dropped:
// one ping period plus the time allowed for the pong.
func (w WebSocketConfig) ReadDeadline() time.Duration {
	return seconds(w.PingInterval + w.PongTimeout)
}

// TokenTTL returns the configured token lifetime, or 0 for no expiry.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.Security.Tokens.TTLMinutes) * time.Minute
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
