package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/srg/ihslink/internal/sensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate keeps the developer's own config files and IHS_* variables out of the test.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv(ConfigEnvVar, "")
	// Equivalent of t.Chdir (Go 1.24+) for the local Go 1.21 toolchain.
	{
		wd, err := os.Getwd()
		if err != nil {
			t.Fatal(err)
		}
		if err := os.Chdir(t.TempDir()); err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = os.Chdir(wd) })
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "panic", cfg.LogLevel)
	assert.Equal(t, 10*time.Second, cfg.ScanTimeout)
	assert.Equal(t, 30*time.Second, cfg.DeviceTimeout)
	assert.Equal(t, FormatTable, cfg.OutputFormat)

	assert.Equal(t, 5, cfg.Headset.AuthRetries)
	assert.True(t, cfg.Headset.AutoStart)
	assert.Equal(t, "gyro,accelerometer,gps", cfg.Headset.AutoStartSensors)
	assert.Equal(t, 5, cfg.Headset.CalibrationAttempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Headset.CalibrationDelay)
	assert.Equal(t, 5*time.Second, cfg.Headset.ReadTimeout)
	assert.True(t, cfg.Headset.Reconnect)
	assert.Equal(t, 30*time.Second, cfg.Headset.ReconnectMaxBackoff)
	assert.Equal(t, uint32(1024), cfg.Events.QueueSize)
	assert.Equal(t, 256, cfg.Events.SubscriberBuffer)

	assert.NoError(t, cfg.Validate(), "defaults MUST validate")
}

func TestLoadWithoutConfigFile(t *testing.T) {
	isolate(t)

	cfg, err := Load("", nil)
	require.NoError(t, err, "missing config file MUST fall back to defaults")
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadPrecedence(t *testing.T) {
	// GOAL: Verify flags override environment, environment overrides the file and the file overrides defaults
	//
	// TEST SCENARIO: File sets three keys, env overrides one, a changed flag overrides another

	isolate(t)
	path := filepath.Join(t.TempDir(), "ihs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
output_format: json
headset:
  auth_retries: 3
  calibration_delay: 250ms
`), 0o644))

	t.Setenv("IHS_HEADSET_AUTH_RETRIES", "7")
	t.Setenv("IHS_HEADSET_RECONNECT", "false")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "panic", "")
	flags.Duration("timeout", 10*time.Second, "")
	require.NoError(t, flags.Parse([]string{"--log-level", "warn"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel, "changed flag MUST win")
	assert.Equal(t, 10*time.Second, cfg.ScanTimeout, "unchanged flag MUST NOT override defaults")
	assert.Equal(t, FormatJSON, cfg.OutputFormat, "file MUST override defaults")
	assert.Equal(t, 7, cfg.Headset.AuthRetries, "environment MUST override the file")
	assert.False(t, cfg.Headset.Reconnect, "environment MUST reach keys absent from the file")
	assert.Equal(t, 250*time.Millisecond, cfg.Headset.CalibrationDelay)
	assert.True(t, cfg.Headset.AutoStart, "untouched keys MUST keep defaults")
}

func TestLoadFromEnvPath(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scan_timeout: 3s\n"), 0o644))
	t.Setenv(ConfigEnvVar, path)

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.ScanTimeout)
}

func TestLoadErrors(t *testing.T) {
	isolate(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err, "explicit missing file MUST fail")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output_format: xml\n"), 0o644))
	_, err = Load(path, nil)
	assert.ErrorContains(t, err, "output_format")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"bad format", func(c *Config) { c.OutputFormat = "csv" }, "output_format"},
		{"zero retries", func(c *Config) { c.Headset.AuthRetries = 0 }, "auth_retries"},
		{"zero calibration attempts", func(c *Config) { c.Headset.CalibrationAttempts = 0 }, "calibration_attempts"},
		{"unknown sensor", func(c *Config) { c.Headset.AutoStartSensors = "gyro,barometer" }, "barometer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.errMsg)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Headset.AutoStartSensors = "gyro,magnetometer"
	cfg.Headset.ReadTimeout = 2 * time.Second
	require.NoError(t, Save(cfg, path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "read_timeout: 2s", "durations MUST be written in human form")

	loaded, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level string
		want  logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"info", logrus.InfoLevel},
		{"error", logrus.ErrorLevel},
		{"", logrus.PanicLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := (&Config{LogLevel: tt.level}).NewLogger()
			assert.Equal(t, tt.want, logger.GetLevel())

			formatter, ok := logger.Formatter.(*logrus.TextFormatter)
			require.True(t, ok)
			assert.True(t, formatter.FullTimestamp)
			assert.Equal(t, time.RFC3339, formatter.TimestampFormat)
		})
	}
}

func TestComponentOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Headset.AutoStartSensors = "gyro,magnetometer"
	cfg.Headset.AuthRetries = 2
	cfg.Headset.Reconnect = false
	cfg.DeviceTimeout = 12 * time.Second

	s := cfg.SessionOptions()
	assert.Equal(t, 2, s.AuthRetries)
	assert.Equal(t, sensor.Gyro|sensor.Magnetometer, s.Engine.AutoStartSensors)
	assert.Equal(t, 500*time.Millisecond, s.Engine.CalibrationDelay)

	a := cfg.AdapterOptions()
	assert.False(t, a.Reconnect)
	assert.Equal(t, 12*time.Second, a.ConnectTimeout)
	assert.Equal(t, 30*time.Second, a.ReconnectMaxBackoff)

	b := cfg.BusOptions()
	assert.Equal(t, uint32(1024), b.QueueSize)
}
