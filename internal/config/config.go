// Package config loads process configuration for the huskylens tools from an
// optional file, HUSKY_* environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/banshee-data/huskylens/internal/huskylens"
	"github.com/banshee-data/huskylens/internal/serialport"
)

// EnvPrefix is prepended to every environment override, with dots in keys
// replaced by underscores: HUSKY_SERIAL_PORT, HUSKY_LOGGING_LEVEL.
const EnvPrefix = "HUSKY"

// Record kinds accepted by RecorderConfig.Kind.
const (
	KindBlocks = "blocks"
	KindArrows = "arrows"
)

// SerialConfig names the device and how to talk to it.
type SerialConfig struct {
	Port                   string `mapstructure:"port"`
	serialport.PortOptions `mapstructure:",squash"`
}

// LumberjackConfig configures the rolling log file. An empty Filename
// disables file output.
type LumberjackConfig struct {
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAgeDays int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// LoggingConfig selects the log level and output format.
type LoggingConfig struct {
	Level  string           `mapstructure:"level"`
	Format string           `mapstructure:"format"`
	File   LumberjackConfig `mapstructure:"file"`
}

// RecorderConfig drives the record command.
type RecorderConfig struct {
	Database  string        `mapstructure:"database"`
	Interval  time.Duration `mapstructure:"interval"`
	Kind      string        `mapstructure:"kind"`
	Learned   bool          `mapstructure:"learned"`
	Algorithm string        `mapstructure:"algorithm"`
}

// DebugConfig is the listen address for debug and metrics routes. Empty
// disables the listener.
type DebugConfig struct {
	Listen string `mapstructure:"listen"`
}

// Config is the root configuration.
type Config struct {
	Serial   SerialConfig   `mapstructure:"serial"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Recorder RecorderConfig `mapstructure:"recorder"`
	Debug    DebugConfig    `mapstructure:"debug"`
}

// FlagKeys maps command-line flag names onto config keys. Flags that were
// set on the command line override every other source.
var FlagKeys = map[string]string{
	"port":       "serial.port",
	"baud":       "serial.baudRate",
	"timeout":    "serial.readTimeout",
	"log-level":  "logging.level",
	"log-format": "logging.format",
	"db":         "recorder.database",
	"interval":   "recorder.interval",
	"kind":       "recorder.kind",
	"learned":    "recorder.learned",
	"algorithm":  "recorder.algorithm",
	"listen":     "debug.listen",
}

// Load reads configuration from path when given, otherwise from an optional
// huskylens.{yaml,toml,json} in the working directory or
// $HOME/.config/huskylens. Environment variables override file values and
// flags named in FlagKeys override both. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	return load(viper.New(), path, flags)
}

func load(v *viper.Viper, path string, flags *pflag.FlagSet) (*Config, error) {
	setDefaults(v)

	if flags != nil {
		for name, key := range FlagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("huskylens")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/huskylens")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("serial.port", "/dev/ttyUSB0")
	v.SetDefault("serial.baudRate", serialport.DefaultBaudRate)
	v.SetDefault("serial.dataBits", 8)
	v.SetDefault("serial.stopBits", 1)
	v.SetDefault("serial.parity", "N")
	v.SetDefault("serial.readTimeout", serialport.DefaultReadTimeout.String())

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file.filename", "")
	v.SetDefault("logging.file.maxSize", 10)
	v.SetDefault("logging.file.maxBackups", 3)
	v.SetDefault("logging.file.maxAge", 28)
	v.SetDefault("logging.file.compress", true)

	v.SetDefault("recorder.database", "huskylens.db")
	v.SetDefault("recorder.interval", "1s")
	v.SetDefault("recorder.kind", KindBlocks)
	v.SetDefault("recorder.learned", false)
	v.SetDefault("recorder.algorithm", "")

	v.SetDefault("debug.listen", "localhost:8081")
}

// Validate checks values that the loaders cannot type-check.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Serial.Port) == "" {
		return fmt.Errorf("serial.port is required")
	}
	opts, err := c.Serial.PortOptions.Normalize()
	if err != nil {
		return fmt.Errorf("serial: %w", err)
	}
	c.Serial.PortOptions = opts

	switch strings.ToLower(c.Logging.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q: expected console or json", c.Logging.Format)
	}

	switch c.Recorder.Kind {
	case KindBlocks, KindArrows:
	default:
		return fmt.Errorf("recorder.kind %q: expected %s or %s", c.Recorder.Kind, KindBlocks, KindArrows)
	}
	if c.Recorder.Interval <= 0 {
		return fmt.Errorf("recorder.interval must be positive, got %s", c.Recorder.Interval)
	}
	if c.Recorder.Algorithm != "" {
		if _, err := huskylens.ParseAlgorithm(c.Recorder.Algorithm); err != nil {
			return fmt.Errorf("recorder.algorithm: %w", err)
		}
	}
	return nil
}

// RecorderAlgorithm returns the configured algorithm, or false when the
// recorder should leave the device's current algorithm alone.
func (c *Config) RecorderAlgorithm() (huskylens.Algorithm, bool) {
	if c.Recorder.Algorithm == "" {
		return 0, false
	}
	alg, err := huskylens.ParseAlgorithm(c.Recorder.Algorithm)
	if err != nil {
		return 0, false
	}
	return alg, true
}
