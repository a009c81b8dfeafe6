package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for VanTrack Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Cloud    CloudConfig    `yaml:"cloud"`
	Polling  PollingConfig  `yaml:"polling"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// CloudConfig contains telematics cloud account settings.
type CloudConfig struct {
	// BaseURL is the root URL of the telematics cloud API.
	BaseURL string `yaml:"base_url"`

	// Username is the account login.
	Username string `yaml:"username"`

	// Password is the account password. Prefer VANTRACK_CLOUD_PASSWORD
	// over storing it in the config file.
	Password string `yaml:"password"`

	// UserAgent overrides the User-Agent header on all cloud requests.
	UserAgent string `yaml:"user_agent"`

	// RequestTimeout is the per-request timeout in seconds.
	RequestTimeout int `yaml:"request_timeout"`
}

// PollingConfig contains change-feed polling settings.
type PollingConfig struct {
	// Interval is the delay between poll cycles in seconds.
	// Values below the service minimum are clamped; see MinPollInterval.
	Interval int `yaml:"interval"`

	// CommandTimeout is how long a confirmable command waits for the
	// change feed to report completion, in seconds.
	CommandTimeout int `yaml:"command_timeout"`
}

// DatabaseConfig contains SQLite database settings for the session cache.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
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
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig contains InfluxDB connection settings for the live-stats sink.
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

// MinPollInterval is the minimum allowed poll interval. The cloud service
// throttles accounts that poll faster than this.
const MinPollInterval = 10 * time.Second

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: VANTRACK_SECTION_KEY
// For example: VANTRACK_CLOUD_PASSWORD, VANTRACK_DATABASE_PATH
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
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

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Cloud: CloudConfig{
			BaseURL:        "https://api.vantrack.example",
			UserAgent:      "vantrack-core",
			RequestTimeout: 15,
		},
		Polling: PollingConfig{
			Interval:       30,
			CommandTimeout: 30,
		},
		Database: DatabaseConfig{
			Path:        "./data/vantrack.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "vantrack-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: VANTRACK_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Cloud
	if v := os.Getenv("VANTRACK_CLOUD_BASE_URL"); v != "" {
		cfg.Cloud.BaseURL = v
	}
	if v := os.Getenv("VANTRACK_CLOUD_USERNAME"); v != "" {
		cfg.Cloud.Username = v
	}
	if v := os.Getenv("VANTRACK_CLOUD_PASSWORD"); v != "" {
		cfg.Cloud.Password = v
	}

	// Database
	if v := os.Getenv("VANTRACK_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("VANTRACK_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("VANTRACK_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("VANTRACK_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("VANTRACK_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Cloud validation - credentials are required, the daemon cannot do
	// anything without an authenticated account.
	if c.Cloud.BaseURL == "" {
		errs = append(errs, "cloud.base_url is required")
	}
	if c.Cloud.Username == "" {
		errs = append(errs, "cloud.username is required (set VANTRACK_CLOUD_USERNAME environment variable)")
	}
	if c.Cloud.Password == "" {
		errs = append(errs, "cloud.password is required (set VANTRACK_CLOUD_PASSWORD environment variable)")
	}

	// Polling validation
	if c.Polling.Interval <= 0 {
		errs = append(errs, "polling.interval must be positive")
	}
	if c.Polling.CommandTimeout <= 0 {
		errs = append(errs, "polling.command_timeout must be positive")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// PollInterval returns the poll interval as a Duration, clamped to the
// service minimum.
func (c *Config) PollInterval() time.Duration {
	interval := time.Duration(c.Polling.Interval) * time.Second
	if interval < MinPollInterval {
		return MinPollInterval
	}
	return interval
}

// CommandTimeout returns the command confirmation timeout as a Duration.
func (c *Config) CommandTimeout() time.Duration {
	return time.Duration(c.Polling.CommandTimeout) * time.Second
}

// RequestTimeout returns the per-request cloud timeout as a Duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Cloud.RequestTimeout) * time.Second
}
