// Parley - Realtime Chat Delivery Layer
// Copyright 2026 Parley Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/parleychat/parley

package config

import (
	"os"
	"path/filepath"
	"testing"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Server.Port != 4000 {
		t.Errorf("default port = %d, want 4000", cfg.Server.Port)
	}
	if cfg.Gateway.EventsPerSecond != 10 {
		t.Errorf("default events/s = %v, want 10", cfg.Gateway.EventsPerSecond)
	}
	if cfg.Gateway.SendBuffer != 256 {
		t.Errorf("default send buffer = %d, want 256", cfg.Gateway.SendBuffer)
	}
	if !cfg.Push.Enabled {
		t.Error("push should default to enabled")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Security.JWTSecret = testSecret
		cfg.Security.MessageSecret = "message-secret"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing jwt secret", func(c *Config) { c.Security.JWTSecret = "" }, true},
		{"short jwt secret", func(c *Config) { c.Security.JWTSecret = "short" }, true},
		{"missing message secret", func(c *Config) { c.Security.MessageSecret = "" }, true},
		{"port too low", func(c *Config) { c.Server.Port = 0 }, true},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, true},
		{"zero event rate", func(c *Config) { c.Gateway.EventsPerSecond = 0 }, true},
		{"missing db path", func(c *Config) { c.Database.Path = "" }, true},
		{"in-memory without path", func(c *Config) { c.Database.Path = ""; c.Database.InMemory = true }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("PARLEY_SECURITY__JWT_SECRET", testSecret)
	t.Setenv("PARLEY_SECURITY__MESSAGE_SECRET", "env-message-secret")
	t.Setenv("PARLEY_SERVER__PORT", "5005")
	t.Setenv("PARLEY_DATABASE__IN_MEMORY", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 5005 {
		t.Errorf("port = %d, want 5005 from env", cfg.Server.Port)
	}
	if cfg.Security.MessageSecret != "env-message-secret" {
		t.Errorf("message secret not taken from env")
	}
	if cfg.Server.Addr() != "0.0.0.0:5005" {
		t.Errorf("Addr = %q", cfg.Server.Addr())
	}
}

func TestLoadWithConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 6001
security:
  jwt_secret: "` + testSecret + `"
  message_secret: "file-secret"
database:
  in_memory: true
moderation:
  blocklist:
    - badword
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 6001 {
		t.Errorf("port = %d, want 6001 from file", cfg.Server.Port)
	}
	if len(cfg.Moderation.Blocklist) != 1 || cfg.Moderation.Blocklist[0] != "badword" {
		t.Errorf("blocklist = %v", cfg.Moderation.Blocklist)
	}
}
