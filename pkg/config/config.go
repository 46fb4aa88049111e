// Package config loads ihs settings from defaults, a YAML file, IHS_*
// environment variables and command-line flags, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	goble "github.com/srg/ihslink/internal/device/go-ble"
	"github.com/srg/ihslink/internal/events"
	"github.com/srg/ihslink/internal/headset"
	"github.com/srg/ihslink/internal/sensor"
	"github.com/srg/ihslink/internal/session"
)

const (
	AppName        = "ihs"
	ConfigName     = "config"
	EnvPrefix      = "IHS"
	ConfigEnvVar   = "IHS_CONFIG"
	FormatTable    = "table"
	FormatJSON     = "json"
	DefaultFileExt = ".yaml"
)

// HeadsetConfig tunes the connection engine and the platform adapter.
type HeadsetConfig struct {
	AuthRetries         int           `mapstructure:"auth_retries" yaml:"auth_retries" default:"5"`
	AutoStart           bool          `mapstructure:"auto_start" yaml:"auto_start" default:"true"`
	AutoStartSensors    string        `mapstructure:"auto_start_sensors" yaml:"auto_start_sensors" default:"gyro,accelerometer,gps"`
	CalibrationAttempts int           `mapstructure:"calibration_attempts" yaml:"calibration_attempts" default:"5"`
	CalibrationDelay    time.Duration `mapstructure:"calibration_delay" yaml:"calibration_delay" default:"500ms"`
	ReadTimeout         time.Duration `mapstructure:"read_timeout" yaml:"read_timeout" default:"5s"`
	Reconnect           bool          `mapstructure:"reconnect" yaml:"reconnect" default:"true"`
	ReconnectMaxBackoff time.Duration `mapstructure:"reconnect_max_backoff" yaml:"reconnect_max_backoff" default:"30s"`
}

type EventsConfig struct {
	QueueSize        uint32 `mapstructure:"queue_size" yaml:"queue_size" default:"1024"`
	SubscriberBuffer int    `mapstructure:"subscriber_buffer" yaml:"subscriber_buffer" default:"256"`
}

// Config holds application configuration
type Config struct {
	LogLevel      string        `mapstructure:"log_level" yaml:"log_level" default:"panic"`
	ScanTimeout   time.Duration `mapstructure:"scan_timeout" yaml:"scan_timeout" default:"10s"`
	DeviceTimeout time.Duration `mapstructure:"device_timeout" yaml:"device_timeout" default:"30s"`
	OutputFormat  string        `mapstructure:"output_format" yaml:"output_format" default:"table"`

	Headset HeadsetConfig `mapstructure:"headset" yaml:"headset"`
	Events  EventsConfig  `mapstructure:"events" yaml:"events"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// flagKeys maps command-line flag names onto configuration keys.
var flagKeys = map[string]string{
	"log-level":      "log_level",
	"timeout":        "scan_timeout",
	"device-timeout": "device_timeout",
	"format":         "output_format",
	"auth-retries":   "headset.auth_retries",
	"reconnect":      "headset.reconnect",
}

// SearchPaths lists the directories searched for config.yaml when no file is given.
func SearchPaths() []string {
	paths := make([]string, 0, 3)
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", AppName))
	}
	return append(paths, filepath.Join("/etc", AppName), ".")
}

// DefaultPath is where `ihs config init` writes by default.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ConfigName + DefaultFileExt
	}
	return filepath.Join(home, ".config", AppName, ConfigName+DefaultFileExt)
}

// Load builds the effective configuration. path wins over IHS_CONFIG; with
// neither, a missing config file is not an error. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	if err := setDefaults(v); err != nil {
		return nil, err
	}

	if path == "" {
		path = os.Getenv(ConfigEnvVar)
	}
	explicit := path != ""
	if explicit {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		for _, p := range SearchPaths() {
			v.AddConfigPath(p)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so environment variables resolve for
// keys absent from the config file.
func setDefaults(v *viper.Viper) error {
	raw, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return err
	}
	var tree map[string]interface{}
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return err
	}
	var walk func(prefix string, m map[string]interface{})
	walk = func(prefix string, m map[string]interface{}) {
		for k, val := range m {
			key := prefix + k
			if sub, ok := val.(map[string]interface{}); ok {
				walk(key+".", sub)
				continue
			}
			v.SetDefault(key, val)
		}
	}
	walk("", tree)
	return nil
}

// Save writes cfg as YAML, creating parent directories.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects settings the application cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if c.OutputFormat != FormatTable && c.OutputFormat != FormatJSON {
		errs = append(errs, fmt.Errorf("output_format: unsupported format %q (want table or json)", c.OutputFormat))
	}
	if c.Headset.AuthRetries <= 0 {
		errs = append(errs, fmt.Errorf("headset.auth_retries: must be positive, got %d", c.Headset.AuthRetries))
	}
	if c.Headset.CalibrationAttempts <= 0 {
		errs = append(errs, fmt.Errorf("headset.calibration_attempts: must be positive, got %d", c.Headset.CalibrationAttempts))
	}
	if _, err := sensor.ParseSensors(c.Headset.AutoStartSensors); err != nil {
		errs = append(errs, fmt.Errorf("headset.auto_start_sensors: %w", err))
	}
	if c.Events.QueueSize > events.MaxQueueSize {
		errs = append(errs, fmt.Errorf("events.queue_size: at most %d", events.MaxQueueSize))
	}
	return errors.Join(errs...)
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.PanicLevel
	}
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	return logger
}

// SessionOptions maps the headset section onto session and engine options.
func (c *Config) SessionOptions() session.Options {
	mask, err := sensor.ParseSensors(c.Headset.AutoStartSensors)
	if err != nil {
		mask = headset.DefaultAutoStartSensors
	}
	opts := session.DefaultOptions()
	opts.AuthRetries = c.Headset.AuthRetries
	opts.ReadTimeout = c.Headset.ReadTimeout
	opts.Engine = headset.Options{
		AutoStart:           c.Headset.AutoStart,
		AutoStartSensors:    mask,
		CalibrationAttempts: c.Headset.CalibrationAttempts,
		CalibrationDelay:    c.Headset.CalibrationDelay,
	}
	return opts
}

// AdapterOptions maps timeouts and the reconnect policy onto the go-ble adapter.
func (c *Config) AdapterOptions() goble.Options {
	opts := goble.DefaultOptions()
	opts.ScanTimeout = c.ScanTimeout
	opts.ConnectTimeout = c.DeviceTimeout
	opts.ReadTimeout = c.Headset.ReadTimeout
	opts.Reconnect = c.Headset.Reconnect
	opts.ReconnectMaxBackoff = c.Headset.ReconnectMaxBackoff
	return opts
}

func (c *Config) BusOptions() events.Options {
	return events.Options{
		QueueSize:        c.Events.QueueSize,
		SubscriberBuffer: c.Events.SubscriberBuffer,
	}
}
