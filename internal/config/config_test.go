package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Relay.Port)
	assert.Equal(t, "0.0.0.0", cfg.Relay.Host)
	assert.Equal(t, 60*time.Second, cfg.Relay.ReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.Relay.WriteTimeout)
	assert.Equal(t, int64(16384), cfg.Relay.MaxMessageSize)
	assert.Equal(t, 256, cfg.Relay.SendBuffer)
	assert.Equal(t, 30*time.Second, cfg.Relay.ReapInterval)
	assert.Equal(t, 5*time.Minute, cfg.Relay.IdleTimeout)
	assert.Equal(t, 60*time.Second, cfg.Relay.StatsInterval)
	assert.Empty(t, cfg.Relay.LocationsFile)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_PortFromEnv(t *testing.T) {
	t.Setenv("PORT", "9191")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Relay.Port)
}

func TestLoad_PrefixedEnvOverride(t *testing.T) {
	t.Setenv("RELAY_LOGGING_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.yaml")
	data := []byte(`
relay:
  port: 9000
  idle_timeout: 2m
logging:
  level: warn
  format: console
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Relay.Port)
	assert.Equal(t, 2*time.Minute, cfg.Relay.IdleTimeout)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	// Unset keys keep their defaults.
	assert.Equal(t, 30*time.Second, cfg.Relay.ReapInterval)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := Load("does/not/exist.yaml")
	assert.Error(t, err)
}

func TestValidate_BadPort(t *testing.T) {
	cfg := validConfig()
	cfg.Relay.Port = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relay.port")
}

func TestValidate_BadDurations(t *testing.T) {
	cfg := validConfig()
	cfg.Relay.ReapInterval = 0
	cfg.Relay.IdleTimeout = -time.Second
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relay.reap_interval")
	assert.Contains(t, err.Error(), "relay.idle_timeout")
}

func TestValidate_BadLogging(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Level = "trace"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level")

	cfg = validConfig()
	cfg.Logging.Format = "xml"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.format")
}

func TestRelayConfig_Addr(t *testing.T) {
	r := RelayConfig{Host: "127.0.0.1", Port: 8080}
	assert.Equal(t, "127.0.0.1:8080", r.Addr())
}

func validConfig() Config {
	return Config{
		Relay: RelayConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			ReadTimeout:    time.Minute,
			WriteTimeout:   10 * time.Second,
			MaxMessageSize: 16384,
			SendBuffer:     256,
			ReapInterval:   30 * time.Second,
			IdleTimeout:    5 * time.Minute,
			StatsInterval:  time.Minute,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}
