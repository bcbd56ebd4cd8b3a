package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the AC remote link.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device   DeviceConfig   `yaml:"device"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Database DatabaseConfig `yaml:"database"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
	Console  ConsoleConfig  `yaml:"console"`
}

// DeviceConfig describes the single device tracked by this process.
type DeviceConfig struct {
	// ID names the device in history records and metrics.
	ID string `yaml:"id"`

	// Topics are the device's MQTT channels.
	Topics DeviceTopicsConfig `yaml:"topics"`

	// ReadyTimeout is how long to wait for the device to publish "online"
	// after the broker session is established.
	// Default: 10s
	ReadyTimeout time.Duration `yaml:"ready_timeout"`

	// QoS is used for subscriptions and commands, 0 included. The last
	// will always uses at least QoS 1.
	// Default: 1
	QoS int `yaml:"qos"`

	// ConnectOnStart issues Connect as soon as the process is up.
	ConnectOnStart bool `yaml:"connect_on_start"`
}

// DeviceTopicsConfig names the command, status and ready channels.
type DeviceTopicsConfig struct {
	Command string `yaml:"command"`
	Status  string `yaml:"status"`
	Ready   string `yaml:"ready"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	KeepAlive int                 `yaml:"keep_alive"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
//
// Automatic reconnection only applies after an established session is lost;
// a failed Connect is reported and left to the host.
type MQTTReconnectConfig struct {
	Enabled  bool `yaml:"enabled"`
	MaxDelay int  `yaml:"max_delay"`
}

// DatabaseConfig contains SQLite settings for the link history.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
	// RetentionDays prunes history older than this at startup. 0 keeps everything.
	RetentionDays int `yaml:"retention_days"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// ConsoleConfig contains interactive console settings.
type ConsoleConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Prompt      string `yaml:"prompt"`
	HistoryFile string `yaml:"history_file"`
}

// Validation bounds.
const (
	minReadyTimeout = time.Second
	maxReadyTimeout = 5 * time.Minute

	// clientIDPrefix precedes the generated client ID when none is configured.
	clientIDPrefix = "acremote-"
)

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: ACREMOTE_SECTION_KEY
// For example: ACREMOTE_MQTT_HOST, ACREMOTE_DEVICE_ID
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Fill in generated values
	if cfg.MQTT.Broker.ClientID == "" {
		cfg.MQTT.Broker.ClientID = GenerateClientID()
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadEnvFile loads KEY=value pairs from a dotenv file into the process
// environment without overriding variables that are already set.
// A missing file is not an error.
//
// Parameters:
//   - path: Path to the .env file
//
// Returns:
//   - error: If the file exists but cannot be parsed
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading env file: %w", err)
	}
	return nil
}

// GenerateClientID returns a unique MQTT client identifier.
// Brokers drop the older session when two clients share an ID, which would
// fire this controller's last will.
func GenerateClientID() string {
	return clientIDPrefix + uuid.New().String()
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			ID: "ac-remote",
			Topics: DeviceTopicsConfig{
				Command: "ac/remote/command",
				Status:  "ac/remote/status",
				Ready:   "ac/remote/ready",
			},
			ReadyTimeout:   10 * time.Second,
			QoS:            1,
			ConnectOnStart: true,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "localhost",
				Port: 1883,
			},
			KeepAlive: 30,
			Reconnect: MQTTReconnectConfig{
				Enabled:  true,
				MaxDelay: 60,
			},
		},
		Database: DatabaseConfig{
			Enabled:       true,
			Path:          "./data/acremote.db",
			WALMode:       true,
			BusyTimeout:   5,
			RetentionDays: 30,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
		Console: ConsoleConfig{
			Enabled: true,
			Prompt:  "acremote> ",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: ACREMOTE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Device
	if v := os.Getenv("ACREMOTE_DEVICE_ID"); v != "" {
		cfg.Device.ID = v
	}
	if v := os.Getenv("ACREMOTE_DEVICE_READY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Device.ReadyTimeout = d
		}
	}

	// MQTT
	if v := os.Getenv("ACREMOTE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("ACREMOTE_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("ACREMOTE_MQTT_CLIENT_ID"); v != "" {
		cfg.MQTT.Broker.ClientID = v
	}
	if v := os.Getenv("ACREMOTE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("ACREMOTE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Database
	if v := os.Getenv("ACREMOTE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// InfluxDB
	if v := os.Getenv("ACREMOTE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("ACREMOTE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Device validation
	if c.Device.ID == "" {
		errs = append(errs, "device.id is required")
	}
	topics := c.Device.Topics
	if topics.Command == "" || topics.Status == "" || topics.Ready == "" {
		errs = append(errs, "device.topics.command, status and ready are required")
	} else if topics.Status == topics.Ready {
		errs = append(errs, "device.topics.status and device.topics.ready must differ")
	}
	for _, topic := range []string{topics.Command, topics.Ready} {
		if strings.ContainsAny(topic, "+#") {
			errs = append(errs, fmt.Sprintf("device topic %q must not contain wildcards", topic))
		}
	}
	if c.Device.ReadyTimeout < minReadyTimeout || c.Device.ReadyTimeout > maxReadyTimeout {
		errs = append(errs, fmt.Sprintf("device.ready_timeout must be between %v and %v", minReadyTimeout, maxReadyTimeout))
	}
	if c.Device.QoS < 0 || c.Device.QoS > 2 {
		errs = append(errs, "device.qos must be 0, 1, or 2")
	}

	// MQTT validation
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.KeepAlive < 0 {
		errs = append(errs, "mqtt.keep_alive must not be negative")
	}

	// Database validation
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when database is enabled")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" || c.InfluxDB.Org == "" {
			errs = append(errs, "influxdb.org and influxdb.bucket are required when influxdb is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetKeepAlive returns the MQTT keepalive interval as a Duration.
func (c *Config) GetKeepAlive() time.Duration {
	return time.Duration(c.MQTT.KeepAlive) * time.Second
}

// GetRetention returns the history retention period, or 0 to keep everything.
func (c *Config) GetRetention() time.Duration {
	return time.Duration(c.Database.RetentionDays) * 24 * time.Hour
}
