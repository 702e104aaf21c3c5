package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8060", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	assert.Equal(t, 1500*time.Millisecond, cfg.Terminal.SettleDelay())

	assert.Equal(t, "ardupilot", cfg.Workflow.SourceDir)
	assert.Equal(t, "https://firmware.ardupilot.org", cfg.Workflow.FirmwareServer)

	assert.Equal(t, 100, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 200, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadOrDefault(t *testing.T) {
	cfg := LoadOrDefault()

	assert.NotNil(t, cfg)
	assert.Equal(t, "8060", cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":               "9000",
		"HOST":               "127.0.0.1",
		"LOG_LEVEL":          "debug",
		"LOG_DEV":            "true",
		"TERMINAL_SHELL":     "/bin/zsh",
		"TERMINAL_SETTLE_MS": "250",
		"SOURCE_DIR":         "/src/ardupilot",
		"FIRMWARE_SERVER":    "https://firmware.example.org",
		"PROFILES_PATH":      "/etc/devenv/profiles.yaml",
		"RATE_LIMIT_RPS":     "500",
		"RATE_LIMIT_BURST":   "1000",
		"RATE_LIMIT_ENABLED": "false",
	}
	for key, value := range envVars {
		require.NoError(t, os.Setenv(key, value))
		defer os.Unsetenv(key)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)

	assert.Equal(t, "/bin/zsh", cfg.Terminal.Shell)
	assert.Equal(t, 250*time.Millisecond, cfg.Terminal.SettleDelay())

	assert.Equal(t, "/src/ardupilot", cfg.Workflow.SourceDir)
	assert.Equal(t, "https://firmware.example.org", cfg.Workflow.FirmwareServer)
	assert.Equal(t, "/etc/devenv/profiles.yaml", cfg.Workflow.ProfilesPath)

	assert.Equal(t, 500, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 1000, cfg.RateLimit.Burst)
	assert.False(t, cfg.RateLimit.Enabled)
}
