package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// State backends understood by the entity state store.
const (
	StateBackendFile   = "file"
	StateBackendSQLite = "sqlite"
)

// Config is the root configuration structure for the bridge.
// Values are loaded from an optional YAML file and overridden by environment
// variables. The variable names match the ones the bridge has always used
// (DEVICE_IP, MQTT_BROKER_HOST, ...) so existing deployments keep working.
type Config struct {
	Panel         PanelConfig         `yaml:"panel"`
	Polling       PollingConfig       `yaml:"polling"`
	State         StateConfig         `yaml:"state"`
	Database      DatabaseConfig      `yaml:"database"`
	MQTT          MQTTConfig          `yaml:"mqtt"`
	HomeAssistant HomeAssistantConfig `yaml:"homeassistant"`
	Site          SiteConfig          `yaml:"site"`
	Health        HealthConfig        `yaml:"health"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// PanelConfig contains the access-control panel connection settings.
type PanelConfig struct {
	Host     string `yaml:"host" env:"DEVICE_IP"`
	Port     int    `yaml:"port" env:"DEVICE_PORT"`
	Password string `yaml:"password" env:"DEVICE_PASSWORD"`
	Model    string `yaml:"model" env:"DEVICE_MODEL"`

	// Timeout bounds dial and each request/reply exchange, in seconds.
	Timeout int `yaml:"timeout" env:"DEVICE_TIMEOUT_SECONDS"`
}

// PollingConfig controls the real-time log polling job.
type PollingConfig struct {
	IntervalSeconds int `yaml:"interval_seconds" env:"POLLING_INTERVAL_SECONDS"`
}

// StateConfig selects where the entity state snapshot is kept.
type StateConfig struct {
	// Backend is "file" (JSON document) or "sqlite" (database.path).
	Backend string `yaml:"backend" env:"STATE_BACKEND"`
	Path    string `yaml:"path" env:"STATE_FILE_PATH"`
}

// DatabaseConfig contains SQLite database settings used by the sqlite state backend.
type DatabaseConfig struct {
	Path        string `yaml:"path" env:"DATABASE_PATH"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix" env:"MQTT_TOPIC_PREFIX"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host" env:"MQTT_BROKER_HOST"`
	Port     int    `yaml:"port" env:"MQTT_BROKER_PORT"`
	TLS      bool   `yaml:"tls" env:"MQTT_TLS"`
	ClientID string `yaml:"client_id" env:"MQTT_CLIENT_ID"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username" env:"MQTT_USERNAME"`
	Password string `yaml:"password" env:"MQTT_PASSWORD"`
}

// MQTTReconnectConfig contains MQTT reconnection settings, in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// HomeAssistantConfig contains MQTT discovery settings.
type HomeAssistantConfig struct {
	Discovery       bool   `yaml:"discovery" env:"HA_DISCOVERY_ENABLED"`
	DiscoveryPrefix string `yaml:"discovery_prefix" env:"HA_DISCOVERY_PREFIX"`

	// DeviceName may contain "{model}", replaced by the panel model.
	DeviceName   string `yaml:"device_name" env:"HA_DEVICE_NAME"`
	Manufacturer string `yaml:"manufacturer" env:"HA_DEVICE_MANUFACTURER"`
	SWVersion    string `yaml:"sw_version" env:"HA_DEVICE_SW_VERSION"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	// Timezone is an IANA zone name used to localise event timestamps.
	Timezone string `yaml:"timezone" env:"TIME_ZONE"`
}

// HealthConfig controls the periodic bridge health report.
type HealthConfig struct {
	IntervalSeconds int `yaml:"interval_seconds" env:"HEALTH_INTERVAL_SECONDS"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
	Output string `yaml:"output" env:"LOG_OUTPUT"`
}

// Load builds the configuration.
//
// The loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values, when path is not empty
//  3. Environment variables
//
// Parameters:
//   - path: Path to the YAML configuration file, or "" for defaults and env only
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If the file cannot be read or parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := ParseEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// ParseEnv applies environment variable overrides to target.
// Unset variables leave the existing field values untouched.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Panel: PanelConfig{
			Host:    "192.168.1.201",
			Port:    4370,
			Model:   "C3",
			Timeout: 10,
		},
		Polling: PollingConfig{
			IntervalSeconds: 60,
		},
		State: StateConfig{
			Backend: StateBackendFile,
			Path:    "./data/entity_states.json",
		},
		Database: DatabaseConfig{
			Path:        "./data/zktaccess.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "localhost",
				Port: 1883,
			},
			QoS:         1,
			TopicPrefix: "zkt_eco",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		HomeAssistant: HomeAssistantConfig{
			Discovery:       true,
			DiscoveryPrefix: "homeassistant",
			DeviceName:      "ZKTeco {model} Controller",
			Manufacturer:    "ZKTeco",
			SWVersion:       "zkt_mqtt_bridge_1.0",
		},
		Site: SiteConfig{
			Timezone: "UTC",
		},
		Health: HealthConfig{
			IntervalSeconds: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// Validate checks the configuration for errors.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []string

	if c.Panel.Host == "" {
		errs = append(errs, "panel.host is required (set DEVICE_IP)")
	}
	if c.Panel.Port < 1 || c.Panel.Port > 65535 {
		errs = append(errs, "panel.port must be between 1 and 65535")
	}
	if c.Panel.Model == "" {
		errs = append(errs, "panel.model is required")
	}
	if c.Panel.Timeout < 1 {
		errs = append(errs, "panel.timeout must be at least 1 second")
	}

	if c.Polling.IntervalSeconds < 1 {
		errs = append(errs, "polling.interval_seconds must be at least 1")
	}

	switch c.State.Backend {
	case StateBackendFile:
		if c.State.Path == "" {
			errs = append(errs, "state.path is required for the file backend")
		}
	case StateBackendSQLite:
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required for the sqlite backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("state.backend %q must be %q or %q",
			c.State.Backend, StateBackendFile, StateBackendSQLite))
	}

	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required (set MQTT_BROKER_HOST)")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.TopicPrefix == "" || strings.ContainsAny(c.MQTT.TopicPrefix, "+#") {
		errs = append(errs, "mqtt.topic_prefix must be a non-empty topic without wildcards")
	}

	if c.HomeAssistant.Discovery && c.HomeAssistant.DiscoveryPrefix == "" {
		errs = append(errs, "homeassistant.discovery_prefix is required when discovery is enabled")
	}

	if c.Site.Timezone == "" {
		errs = append(errs, "site.timezone is required")
	}
	if c.Health.IntervalSeconds < 0 {
		errs = append(errs, "health.interval_seconds must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetPollingInterval returns the polling period as a Duration.
func (c *Config) GetPollingInterval() time.Duration {
	return time.Duration(c.Polling.IntervalSeconds) * time.Second
}

// GetPanelTimeout returns the panel request timeout as a Duration.
func (c *Config) GetPanelTimeout() time.Duration {
	return time.Duration(c.Panel.Timeout) * time.Second
}

// GetHealthInterval returns the health report period. Zero disables reporting.
func (c *Config) GetHealthInterval() time.Duration {
	return time.Duration(c.Health.IntervalSeconds) * time.Second
}

// DeviceName returns the Home Assistant device name with the panel model substituted.
func (c *Config) DeviceName() string {
	return strings.ReplaceAll(c.HomeAssistant.DeviceName, "{model}", c.Panel.Model)
}

// String renders the configuration as YAML with secrets masked.
func (c Config) String() string {
	if c.Panel.Password != "" {
		c.Panel.Password = "***"
	}
	if c.MQTT.Auth.Password != "" {
		c.MQTT.Auth.Password = "***"
	}
	out, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return string(out)
}
