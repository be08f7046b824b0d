// Package config provides Viper-based configuration loading for the relay
// server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// RelayConfig holds websocket listener and registry maintenance settings.
type RelayConfig struct {
	// Host is the bind address for the websocket listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the websocket listener. The PORT environment
	// variable overrides it.
	Port int `mapstructure:"port"`
	// ReadTimeout is how long a connection may stay silent (no frames, no
	// pongs) before its reads fail.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the per-frame write deadline.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// MaxMessageSize is the largest inbound frame accepted, in bytes.
	MaxMessageSize int64 `mapstructure:"max_message_size"`
	// SendBuffer is the per-connection outbound queue length. A full queue
	// counts as a failed send so one stalled client cannot block fan-out.
	SendBuffer int `mapstructure:"send_buffer"`
	// ReapInterval is how often the liveness reaper sweeps the registry.
	ReapInterval time.Duration `mapstructure:"reap_interval"`
	// IdleTimeout is the inactivity threshold after which a session is
	// reaped.
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
	// StatsInterval is how often the stats reporter emits population counts.
	StatsInterval time.Duration `mapstructure:"stats_interval"`
	// LocationsFile is an optional YAML location catalog path; empty means
	// the built-in catalog.
	LocationsFile string `mapstructure:"locations_file"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (r RelayConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// Config is the top-level application configuration.
type Config struct {
	Relay   RelayConfig   `mapstructure:"relay"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error
// describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateRelay(c.Relay); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateRelay(r RelayConfig) error {
	var errs []string
	if r.Port < 1 || r.Port > 65535 {
		errs = append(errs, fmt.Sprintf("relay.port must be 1-65535, got %d", r.Port))
	}
	if r.ReadTimeout <= 0 {
		errs = append(errs, "relay.read_timeout must be positive")
	}
	if r.WriteTimeout <= 0 {
		errs = append(errs, "relay.write_timeout must be positive")
	}
	if r.MaxMessageSize < 1 {
		errs = append(errs, fmt.Sprintf("relay.max_message_size must be >= 1, got %d", r.MaxMessageSize))
	}
	if r.SendBuffer < 1 {
		errs = append(errs, fmt.Sprintf("relay.send_buffer must be >= 1, got %d", r.SendBuffer))
	}
	if r.ReapInterval <= 0 {
		errs = append(errs, "relay.reap_interval must be positive")
	}
	if r.IdleTimeout <= 0 {
		errs = append(errs, "relay.idle_timeout must be positive")
	}
	if r.StatsInterval <= 0 {
		errs = append(errs, "relay.stats_interval must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path (optional), applies
// environment variable overrides, and validates the result.
//
// An empty path skips the config file and uses defaults plus environment
// overrides only. The bare PORT variable selects the listen port, matching
// the hosting platform's deployment convention.
//
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()

	// Environment variable overrides with RELAY_ prefix
	v.SetEnvPrefix("RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("relay.port", "PORT")

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("relay.host", "0.0.0.0")
	v.SetDefault("relay.port", 8080)
	v.SetDefault("relay.read_timeout", "60s")
	v.SetDefault("relay.write_timeout", "10s")
	v.SetDefault("relay.max_message_size", 16384)
	v.SetDefault("relay.send_buffer", 256)
	v.SetDefault("relay.reap_interval", "30s")
	v.SetDefault("relay.idle_timeout", "5m")
	v.SetDefault("relay.stats_interval", "60s")
	v.SetDefault("relay.locations_file", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}
