// Parley - Realtime Chat Delivery Layer
// Copyright 2026 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/parleychat/parley

// Package config loads application configuration with koanf: struct defaults
// first, then an optional YAML file, then PARLEY_ environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/parley/config.yaml",
	"/etc/parley/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "PARLEY_CONFIG"

// envPrefix is the prefix for environment overrides, e.g.
// PARLEY_SERVER__PORT=8080 sets server.port.
const envPrefix = "PARLEY_"

// Config is the full application configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Database   DatabaseConfig   `koanf:"database"`
	Security   SecurityConfig   `koanf:"security"`
	Moderation ModerationConfig `koanf:"moderation"`
	Gateway    GatewayConfig    `koanf:"gateway"`
	Push       PushConfig       `koanf:"push"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig configures the badger document store.
type DatabaseConfig struct {
	Path string `koanf:"path"`

	// InMemory runs the store without disk persistence; used by tests.
	InMemory bool `koanf:"in_memory"`
}

// SecurityConfig holds credentials and REST limits.
type SecurityConfig struct {
	// JWTSecret verifies connection credentials. Required.
	JWTSecret string `koanf:"jwt_secret"`

	// MessageSecret derives the at-rest message encryption key. Required.
	MessageSecret string `koanf:"message_secret"`

	RateLimitReqs   int           `koanf:"rate_limit_requests"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// ModerationConfig holds the content blocklist.
type ModerationConfig struct {
	Blocklist []string `koanf:"blocklist"`
}

// GatewayConfig tunes per-connection websocket behavior.
type GatewayConfig struct {
	// EventsPerSecond / EventBurst rate-limit inbound events per connection.
	EventsPerSecond float64 `koanf:"events_per_second"`
	EventBurst      int     `koanf:"event_burst"`

	SendBuffer     int   `koanf:"send_buffer"`
	MaxMessageSize int64 `koanf:"max_message_size"`
}

// PushConfig tunes the notification dispatcher.
type PushConfig struct {
	Enabled     bool `koanf:"enabled"`
	QueueBuffer int  `koanf:"queue_buffer"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all defaults applied.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            4000,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Path:     "/data/parley",
			InMemory: false,
		},
		Security: SecurityConfig{
			JWTSecret:       "",
			MessageSecret:   "",
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Moderation: ModerationConfig{
			Blocklist: []string{},
		},
		Gateway: GatewayConfig{
			EventsPerSecond: 10,
			EventBurst:      20,
			SendBuffer:      256,
			MaxMessageSize:  512 * 1024,
		},
		Push: PushConfig{
			Enabled:     true,
			QueueBuffer: 256,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds the configuration: defaults, then the first config file found
// (or PARLEY_CONFIG), then environment overrides.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	// PARLEY_SECURITY__JWT_SECRET → security.jwt_secret
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, envPrefix)
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("config: load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// findConfigFile returns the config file to use, or "" when none exists.
func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		return path
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Validate checks required fields and sane limits.
func (c *Config) Validate() error {
	if c.Security.JWTSecret == "" {
		return errors.New("config: security.jwt_secret is required")
	}
	if len(c.Security.JWTSecret) < 32 {
		return errors.New("config: security.jwt_secret must be at least 32 characters")
	}
	if c.Security.MessageSecret == "" {
		return errors.New("config: security.message_secret is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	if c.Gateway.EventsPerSecond <= 0 {
		return errors.New("config: gateway.events_per_second must be positive")
	}
	if !c.Database.InMemory && c.Database.Path == "" {
		return errors.New("config: database.path is required")
	}
	return nil
}
