// Package config loads devenv backend configuration from environment
// variables, with sensible defaults for local development.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	Terminal  TerminalConfig
	Workflow  WorkflowConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8060"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// TerminalConfig holds terminal substrate configuration.
type TerminalConfig struct {
	Shell         string `envconfig:"TERMINAL_SHELL" default:""`
	SettleDelayMs int    `envconfig:"TERMINAL_SETTLE_MS" default:"1500"`
}

// SettleDelay returns the settle delay as a duration.
func (c TerminalConfig) SettleDelay() time.Duration {
	return time.Duration(c.SettleDelayMs) * time.Millisecond
}

// WorkflowConfig holds firmware workflow configuration.
type WorkflowConfig struct {
	SourceDir      string `envconfig:"SOURCE_DIR" default:"ardupilot"`
	FirmwareServer string `envconfig:"FIRMWARE_SERVER" default:"https://firmware.ardupilot.org"`
	ProfilesPath   string `envconfig:"PROFILES_PATH" default:""`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns defaults.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8060",
			Host: "0.0.0.0",
		},
		Logging: LogConfig{
			Level: "info",
		},
		Terminal: TerminalConfig{
			SettleDelayMs: 1500,
		},
		Workflow: WorkflowConfig{
			SourceDir:      "ardupilot",
			FirmwareServer: "https://firmware.ardupilot.org",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
