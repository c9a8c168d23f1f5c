package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Heating types understood by the ViCare client. They decide which
// sub-components (burners, compressors) are enumerated for a device.
const (
	HeatingTypeGeneric  = "generic"
	HeatingTypeGas      = "gas"
	HeatingTypeHeatPump = "heatpump"
	HeatingTypeFuelCell = "fuelcell"
)

// Config is the root configuration structure for the ViCare bridge.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Vicare    VicareConfig    `yaml:"vicare"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SiteConfig names the installation this bridge serves.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// VicareConfig contains Viessmann cloud API settings.
type VicareConfig struct {
	ClientID string `yaml:"client_id"`

	// TokenFile holds the OAuth2 refresh token. It is provisioned once with
	// an authorization-code login and rewritten whenever the token rotates.
	TokenFile string `yaml:"token_file"`
	TokenURL  string `yaml:"token_url"`
	APIURL    string `yaml:"api_url"`

	HeatingType string `yaml:"heating_type"`

	// ScanInterval is the poll period in seconds.
	ScanInterval int `yaml:"scan_interval"`

	// CacheDuration is how long fetched features are reused, in seconds.
	// Zero means "same as scan_interval".
	CacheDuration int `yaml:"cache_duration"`

	// Timeout is the HTTP request timeout in seconds.
	Timeout int `yaml:"timeout"`

	// Debug surfaces unexpected poll faults to the caller instead of
	// only logging them.
	Debug bool `yaml:"debug"`
}

// BridgeConfig contains MQTT bridge behaviour settings.
type BridgeConfig struct {
	TopicPrefix     string `yaml:"topic_prefix"`
	DiscoveryPrefix string `yaml:"discovery_prefix"`
	Discovery       bool   `yaml:"discovery"`
	HealthInterval  int    `yaml:"health_interval"`
	PollConcurrency int    `yaml:"poll_concurrency"`
}

// DatabaseConfig locates the entity registry database.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig is the broker connection.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig is the broker address and client identity.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig holds broker credentials. Prefer VICARE_MQTT_PASSWORD.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig bounds the reconnect backoff, in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig is the local REST/WebSocket listener.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
	JWT      JWTConfig        `yaml:"jwt"`
}

// APITimeoutConfig holds http.Server timeouts in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig restricts browser origins. Empty lists allow everything.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// JWTConfig contains bearer token settings for command endpoints.
// An empty secret leaves command endpoints open (local development only).
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// WebSocketConfig tunes the state-change feed.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// InfluxDBConfig enables optional telemetry of polled values.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig selects log level, format and destination.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`

	// DedupTimeout is how long, in seconds, an identical fault message is
	// suppressed after it was first logged.
	DedupTimeout int `yaml:"dedup_timeout"`
}

// Load decodes the YAML file at path over the defaults, applies VICARE_*
// overrides (VICARE_CLIENT_ID, VICARE_DATABASE_PATH, ...) and validates
// the result.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig is the baseline the YAML file is decoded over.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "home",
			Name: "Home",
		},
		Vicare: VicareConfig{
			TokenFile:    "./data/vicare-token.json",
			TokenURL:     "https://iam.viessmann.com/idp/v3/token",
			APIURL:       "https://api.viessmann.com/iot/v1",
			HeatingType:  HeatingTypeGeneric,
			ScanInterval: 60,
			Timeout:      30,
		},
		Bridge: BridgeConfig{
			TopicPrefix:     "vicare",
			DiscoveryPrefix: "homeassistant",
			Discovery:       true,
			HealthInterval:  30,
			PollConcurrency: 4,
		},
		Database: DatabaseConfig{
			Path:        "./data/vicare.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "vicare-bridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:        "info",
			Format:       "json",
			Output:       "stdout",
			DedupTimeout: 8 * 60 * 60, //nolint:mnd // eight hours
		},
	}
}

// applyEnvOverrides lets VICARE_* variables win over the file.
// Environment variables follow the pattern: VICARE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// ViCare
	if v := os.Getenv("VICARE_CLIENT_ID"); v != "" {
		cfg.Vicare.ClientID = v
	}
	if v := os.Getenv("VICARE_TOKEN_FILE"); v != "" {
		cfg.Vicare.TokenFile = v
	}
	if v := os.Getenv("VICARE_HEATING_TYPE"); v != "" {
		cfg.Vicare.HeatingType = v
	}
	if v := os.Getenv("VICARE_SCAN_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Vicare.ScanInterval = n
		}
	}
	if v := os.Getenv("VICARE_DEBUG"); v != "" {
		cfg.Vicare.Debug = v == "1" || strings.EqualFold(v, "true")
	}

	// Database
	if v := os.Getenv("VICARE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("VICARE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("VICARE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("VICARE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("VICARE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("VICARE_JWT_SECRET"); v != "" {
		cfg.API.JWT.Secret = v
	}

	// InfluxDB
	if v := os.Getenv("VICARE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate reports every invalid setting in one error.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	// ViCare validation
	if c.Vicare.ClientID == "" {
		errs = append(errs, "vicare.client_id is required (set VICARE_CLIENT_ID environment variable)")
	}
	if c.Vicare.TokenFile == "" {
		errs = append(errs, "vicare.token_file is required")
	}
	if c.Vicare.APIURL == "" {
		errs = append(errs, "vicare.api_url is required")
	}
	switch c.Vicare.HeatingType {
	case HeatingTypeGeneric, HeatingTypeGas, HeatingTypeHeatPump, HeatingTypeFuelCell:
	default:
		errs = append(errs, fmt.Sprintf("vicare.heating_type %q must be one of generic, gas, heatpump, fuelcell", c.Vicare.HeatingType))
	}
	if c.Vicare.ScanInterval < 1 {
		errs = append(errs, "vicare.scan_interval must be at least 1 second")
	}
	if c.Vicare.CacheDuration < 0 {
		errs = append(errs, "vicare.cache_duration must not be negative")
	}

	// Bridge validation
	if c.Bridge.TopicPrefix == "" {
		errs = append(errs, "bridge.topic_prefix is required")
	}
	if strings.ContainsAny(c.Bridge.TopicPrefix, "+#") {
		errs = append(errs, "bridge.topic_prefix must not contain MQTT wildcards")
	}
	if c.Bridge.PollConcurrency < 1 {
		errs = append(errs, "bridge.poll_concurrency must be at least 1")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	const minJWTSecretLength = 32
	if c.API.JWT.Secret != "" && len(c.API.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "api.jwt.secret must be at least 32 characters")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// String returns a summary of the configuration with secrets redacted.
func (c *Config) String() string {
	return fmt.Sprintf("Config{site=%s, vicare={client_id=%s, heating_type=%s, scan_interval=%ds}, mqtt=%s:%d (password=%s), api=%s:%d (jwt=%s), influxdb=%t}",
		c.Site.ID,
		redact(c.Vicare.ClientID),
		c.Vicare.HeatingType,
		c.Vicare.ScanInterval,
		c.MQTT.Broker.Host, c.MQTT.Broker.Port,
		redact(c.MQTT.Auth.Password),
		c.API.Host, c.API.Port,
		redact(c.API.JWT.Secret),
		c.InfluxDB.Enabled,
	)
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}

// GetScanInterval returns the poll period as a Duration.
func (c *Config) GetScanInterval() time.Duration {
	return time.Duration(c.Vicare.ScanInterval) * time.Second
}

// GetCacheDuration returns how long fetched features are reused.
// It falls back to the scan interval when unset.
func (c *Config) GetCacheDuration() time.Duration {
	if c.Vicare.CacheDuration > 0 {
		return time.Duration(c.Vicare.CacheDuration) * time.Second
	}
	return c.GetScanInterval()
}

// GetVicareTimeout returns the vendor HTTP timeout as a Duration.
func (c *Config) GetVicareTimeout() time.Duration {
	return time.Duration(c.Vicare.Timeout) * time.Second
}

// GetDedupTimeout returns the log deduplication window as a Duration.
func (c *Config) GetDedupTimeout() time.Duration {
	return time.Duration(c.Logging.DedupTimeout) * time.Second
}

// ReadDuration is Read as a Duration.
func (t APITimeoutConfig) ReadDuration() time.Duration {
	return time.Duration(t.Read) * time.Second
}

// WriteDuration is Write as a Duration.
func (t APITimeoutConfig) WriteDuration() time.Duration {
	return time.Duration(t.Write) * time.Second
}

// IdleDuration is Idle as a Duration.
func (t APITimeoutConfig) IdleDuration() time.Duration {
	return time.Duration(t.Idle) * time.Second
}
