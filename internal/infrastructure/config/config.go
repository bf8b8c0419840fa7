package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Order Relay.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Trigger   TriggerConfig   `yaml:"trigger"`
	Security  SecurityConfig  `yaml:"security"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServiceConfig contains service identity information.
type ServiceConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains settings for the live order feed.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
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

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains optional telemetry sink settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// Trigger modes.
const (
	TriggerModeScript = "script"
	TriggerModeMQTT   = "mqtt"
	TriggerModeLog    = "log"
)

// TriggerConfig selects and configures the hardware trigger backend.
type TriggerConfig struct {
	// Mode is one of "script", "mqtt", or "log".
	Mode string `yaml:"mode"`

	// TimeoutSeconds bounds a single trigger invocation. A stuck trigger
	// is abandoned (and reported as a failure) after this long.
	TimeoutSeconds int `yaml:"timeout_seconds"`

	Script ScriptTriggerConfig `yaml:"script"`
	MQTT   MQTTTriggerConfig   `yaml:"mqtt"`
}

// ScriptTriggerConfig configures the script trigger backend.
type ScriptTriggerConfig struct {
	// Binary is the path to the executable to run per accepted order.
	Binary string `yaml:"binary"`

	// Args are fixed command-line arguments. The order payload is
	// delivered on stdin as JSON.
	Args []string `yaml:"args"`

	// WorkDir is the working directory for the process.
	// If empty, inherits from the relay process.
	WorkDir string `yaml:"work_dir"`
}

// MQTTTriggerConfig configures the MQTT trigger backend.
type MQTTTriggerConfig struct {
	// MachineID names the target machine in the command topic.
	MachineID string `yaml:"machine_id"`

	// WaitForAck makes Fire block until the machine acknowledges the
	// command (or the trigger timeout elapses).
	WaitForAck bool `yaml:"wait_for_ack"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	// APIKey is the shared secret that the cloud backend presents on
	// every request. Loaded at startup and immutable thereafter.
	APIKey    string          `yaml:"api_key"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig contains fixed-window rate limiting settings.
type RateLimitConfig struct {
	Enabled       bool `yaml:"enabled"`
	MaxRequests   int  `yaml:"max_requests"`
	WindowSeconds int  `yaml:"window_seconds"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: ORDERRELAY_SECTION_KEY
// (e.g. ORDERRELAY_API_PORT, ORDERRELAY_MQTT_HOST). The bare API_KEY and
// PORT variables set by hosting platforms are also honoured.
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
		Service: ServiceConfig{
			Name:        "order-relay",
			Environment: "development",
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 3000,
			Timeouts: APITimeoutConfig{
				Read:  15,
				Write: 15,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "order-relay",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Trigger: TriggerConfig{
			Mode:           TriggerModeLog,
			TimeoutSeconds: 10,
			MQTT: MQTTTriggerConfig{
				MachineID: "coffee-machine",
			},
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				Enabled:       true,
				MaxRequests:   10,
				WindowSeconds: 60,
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
// Environment variables follow the pattern: ORDERRELAY_SECTION_KEY.
// API_KEY and PORT (as set by hosting platforms) are honoured without prefix.
func applyEnvOverrides(cfg *Config) {
	// Shared secret - always set via environment in production.
	if v := os.Getenv("ORDERRELAY_API_KEY"); v != "" {
		cfg.Security.APIKey = v
	} else if v := os.Getenv("API_KEY"); v != "" {
		cfg.Security.APIKey = v
	}

	// Listen port - hosting platforms set PORT.
	if v := os.Getenv("ORDERRELAY_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	} else if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	if v := os.Getenv("ORDERRELAY_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("ORDERRELAY_ENVIRONMENT"); v != "" {
		cfg.Service.Environment = v
	}

	// MQTT
	if v := os.Getenv("ORDERRELAY_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("ORDERRELAY_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("ORDERRELAY_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("ORDERRELAY_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.API.TLS.Enabled && (c.API.TLS.CertFile == "" || c.API.TLS.KeyFile == "") {
		errs = append(errs, "api.tls.cert_file and api.tls.key_file are required when TLS is enabled")
	}

	// Security validation - the shared secret is REQUIRED.
	// The relay listens on an open port; an empty or short key would let
	// anyone on the network drive the machine.
	const minAPIKeyLength = 16
	if c.Security.APIKey == "" {
		errs = append(errs, "security.api_key is required (set the API_KEY environment variable)")
	} else if len(c.Security.APIKey) < minAPIKeyLength {
		errs = append(errs, "security.api_key must be at least 16 characters")
	}

	if c.Security.RateLimit.Enabled {
		if c.Security.RateLimit.MaxRequests < 1 {
			errs = append(errs, "security.rate_limit.max_requests must be positive")
		}
		if c.Security.RateLimit.WindowSeconds < 1 {
			errs = append(errs, "security.rate_limit.window_seconds must be positive")
		}
	}

	// Trigger validation
	switch c.Trigger.Mode {
	case TriggerModeScript:
		if c.Trigger.Script.Binary == "" {
			errs = append(errs, "trigger.script.binary is required in script mode")
		}
	case TriggerModeMQTT:
		if c.Trigger.MQTT.MachineID == "" {
			errs = append(errs, "trigger.mqtt.machine_id is required in mqtt mode")
		}
		if !c.MQTT.Enabled {
			errs = append(errs, "mqtt.enabled must be true when trigger.mode is mqtt")
		}
	case TriggerModeLog:
		// No further config required.
	default:
		errs = append(errs, fmt.Sprintf("trigger.mode must be one of script, mqtt, log (got %q)", c.Trigger.Mode))
	}
	if c.Trigger.TimeoutSeconds < 1 {
		errs = append(errs, "trigger.timeout_seconds must be positive")
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

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetTriggerTimeout returns the trigger invocation timeout as a Duration.
func (c *Config) GetTriggerTimeout() time.Duration {
	return time.Duration(c.Trigger.TimeoutSeconds) * time.Second
}

// GetRateLimitWindow returns the rate limit window as a Duration.
func (c *Config) GetRateLimitWindow() time.Duration {
	return time.Duration(c.Security.RateLimit.WindowSeconds) * time.Second
}
