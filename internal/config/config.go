// Package config loads the daemon configuration: hardware wiring, MQTT,
// storage and the optional telemetry mirror.
//
// Values come from compiled-in defaults, then the YAML file, then MOTION_*
// environment variables. Secrets (MQTT password, InfluxDB token) should be
// set through the environment.
//
// Node tuning parameters (thresholds, intervals) are not part of this file;
// they live in the persistent store and are edited through the AT command
// interface.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Node     NodeConfig     `yaml:"node"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	GPIO     GPIOConfig     `yaml:"gpio"`
	Sensors  SensorsConfig  `yaml:"sensors"`
	Store    StoreConfig    `yaml:"store"`
	HTTP     HTTPConfig     `yaml:"http"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// NodeConfig identifies the node.
type NodeConfig struct {
	ID string `yaml:"id"`
}

// MQTTConfig configures the publish transport.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"` // generated when empty
	Prefix   string `yaml:"prefix"`    // topic prefix, defaults to node/<id>
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	QoS      int    `yaml:"qos"`       // data publishes; lifecycle events always use 1
	WSBroker string `yaml:"ws_broker"` // websocket URL for the live status page, empty disables
}

// GPIOConfig maps the node's inputs and outputs to character device lines.
// A negative line disables that device.
type GPIOConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Chip       string `yaml:"chip"`
	PIRLine    int    `yaml:"pir_line"`
	ButtonLine int    `yaml:"button_line"`
	RelayLine  int    `yaml:"relay_line"`
}

// SensorsConfig points at the sysfs attributes of the analog sensors.
// An empty path disables the sensor.
type SensorsConfig struct {
	TemperaturePath string  `yaml:"temperature_path"`
	BatteryPath     string  `yaml:"battery_path"`
	BatteryScale    float64 `yaml:"battery_scale"` // raw units to volts
}

// StoreConfig locates the persistent configuration database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// HTTPConfig configures the status server. An empty address disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// InfluxDBConfig configures the optional telemetry mirror.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"` // milliseconds
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
	Output string `yaml:"output"` // stdout or stderr
}

// Load reads configuration from path. An empty path uses defaults and
// environment overrides only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns the compiled-in configuration.
func Default() *Config {
	return &Config{
		Node: NodeConfig{
			ID: "motion-detector",
		},
		MQTT: MQTTConfig{
			Broker: "tcp://localhost:1883",
			QoS:    0,
		},
		GPIO: GPIOConfig{
			Enabled:    true,
			Chip:       "gpiochip0",
			PIRLine:    17,
			ButtonLine: 27,
			RelayLine:  22,
		},
		Sensors: SensorsConfig{
			TemperaturePath: "/sys/class/hwmon/hwmon0/temp1_input",
			BatteryScale:    1e-6,
		},
		Store: StoreConfig{
			Path: "/var/lib/motion-detector/config.db",
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("MOTION_NODE_ID"); v != "" {
		cfg.Node.ID = v
	}

	if v := os.Getenv("MOTION_MQTT_BROKER"); v != "" {
		cfg.MQTT.Broker = v
	}
	if v := os.Getenv("MOTION_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Username = v
	}
	if v := os.Getenv("MOTION_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Password = v
	}

	if v := os.Getenv("MOTION_GPIO_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("MOTION_GPIO_ENABLED: %w", err)
		}
		cfg.GPIO.Enabled = b
	}

	if v := os.Getenv("MOTION_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}

	if v := os.Getenv("MOTION_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}

	if v := os.Getenv("MOTION_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("MOTION_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Node.ID == "" {
		errs = append(errs, "node.id is required")
	}

	if c.MQTT.Broker == "" {
		errs = append(errs, "mqtt.broker is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.GPIO.Enabled {
		if c.GPIO.Chip == "" {
			errs = append(errs, "gpio.chip is required when gpio is enabled")
		}
		seen := map[int]string{}
		for _, l := range []struct {
			name string
			line int
		}{
			{"pir_line", c.GPIO.PIRLine},
			{"button_line", c.GPIO.ButtonLine},
			{"relay_line", c.GPIO.RelayLine},
		} {
			if l.line < 0 {
				continue
			}
			if other, dup := seen[l.line]; dup {
				errs = append(errs, fmt.Sprintf("gpio.%s and gpio.%s share line %d", other, l.name, l.line))
				continue
			}
			seen[l.line] = l.name
		}
	}

	if c.Sensors.BatteryPath != "" && c.Sensors.BatteryScale <= 0 {
		errs = append(errs, "sensors.battery_scale must be positive")
	}

	if c.Store.Path == "" {
		errs = append(errs, "store.path is required")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.org and influxdb.bucket are required when influxdb is enabled")
		}
		if c.InfluxDB.BatchSize < 1 {
			errs = append(errs, "influxdb.batch_size must be positive")
		}
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		errs = append(errs, "logging.format must be json or text")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// TopicPrefix returns the MQTT topic prefix, derived from the node ID when
// not set explicitly.
func (c *Config) TopicPrefix() string {
	if c.MQTT.Prefix != "" {
		return strings.TrimSuffix(c.MQTT.Prefix, "/")
	}
	return "node/" + c.Node.ID
}

// FlushInterval returns the InfluxDB flush interval.
func (c *Config) FlushInterval() time.Duration {
	return time.Duration(c.InfluxDB.FlushInterval) * time.Millisecond
}

// Redacted returns a copy with secrets masked, suitable for printing.
func (c *Config) Redacted() *Config {
	out := *c
	if out.MQTT.Password != "" {
		out.MQTT.Password = "****"
	}
	if out.InfluxDB.Token != "" {
		out.InfluxDB.Token = "****"
	}
	return &out
}

// YAML renders the configuration as YAML.
func (c *Config) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}
