// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/urfave/cli/v3"
)

func TestIsLocalhost(t *testing.T) {
	tests := []struct {
		host     string
		expected bool
	}{
		{"", true},
		{"localhost", true},
		{"127.0.0.1", true},
		{"::1", true},
		{"app.localhost", true},
		{"example.com", false},
		{"192.168.1.1", false},
		{"localhost.com", false}, // not a real localhost
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsLocalhost(tt.host))
		})
	}
}

func TestBuildBaseURL(t *testing.T) {
	tests := []struct {
		name     string
		host     string
		port     int
		expected string
	}{
		{"localhost default port", "localhost", 80, "http://localhost"},
		{"localhost custom port", "localhost", 8080, "http://localhost:8080"},
		{"remote default port", "desk.example.com", 443, "https://desk.example.com"},
		{"remote custom port", "desk.example.com", 8443, "https://desk.example.com:8443"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Server: ServerConfig{Host: tt.host, Port: tt.port}}
			assert.Equal(t, tt.expected, buildBaseURL(cfg))
		})
	}
}

func TestSecureCookies(t *testing.T) {
	assert.True(t, (&Config{Server: ServerConfig{BaseURL: "https://desk.example.com"}}).SecureCookies())
	assert.False(t, (&Config{Server: ServerConfig{BaseURL: "http://localhost:8080"}}).SecureCookies())
}

func TestApplyRecoveryDefaults(t *testing.T) {
	t.Run("fills zero values", func(t *testing.T) {
		rc := RecoveryConfig{}

		applyRecoveryDefaults(&rc)

		assert.Equal(t, DefaultRecoveryConfig(), rc)
	})

	t.Run("keeps configured values", func(t *testing.T) {
		rc := RecoveryConfig{MaxAttempts: 7, CodeTTL: 5 * time.Minute}

		applyRecoveryDefaults(&rc)

		assert.Equal(t, 7, rc.MaxAttempts)
		assert.Equal(t, 5*time.Minute, rc.CodeTTL)
		assert.Equal(t, 3, rc.MaxIssuedPerWindow)
	})
}

func TestFlags(t *testing.T) {
	flags := Flags()

	flagNames := make(map[string]bool)
	for _, f := range flags {
		for _, name := range f.Names() {
			flagNames[name] = true
		}
	}

	assert.True(t, flagNames["host"], "should have host flag")
	assert.True(t, flagNames["database-dsn"], "should have database-dsn flag")
	assert.True(t, flagNames["redis-url"], "should have redis-url flag")
	assert.True(t, flagNames["smtp-host"], "should have smtp-host flag")
	assert.True(t, flagNames["session-hash-key"], "should have session-hash-key flag")
	assert.True(t, flagNames["recovery-max-attempts"], "should have recovery-max-attempts flag")
	assert.True(t, flagNames["public-rate-limit"], "should have public-rate-limit flag")
}

func TestNewFromCLI(t *testing.T) {
	app := &cli.Command{
		Name:  "test",
		Flags: Flags(),
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg := NewFromCLI(cmd)

			assert.Equal(t, "localhost", cfg.Server.Host)
			assert.Equal(t, 8080, cfg.Server.Port)
			assert.Equal(t, "http://localhost:8080", cfg.Server.BaseURL)
			assert.Equal(t, "info", cfg.Log.Level)
			assert.Empty(t, cfg.Redis.URL)
			assert.Equal(t, 587, cfg.SMTP.Port)
			assert.Equal(t, "_session", cfg.Session.CookieName)

			// Recovery policy defaults
			assert.Equal(t, 5, cfg.Recovery.MaxAttempts)
			assert.Equal(t, 10*time.Minute, cfg.Recovery.CodeTTL)
			assert.Equal(t, 3, cfg.Recovery.MaxIssuedPerWindow)
			assert.Equal(t, time.Hour, cfg.Recovery.IssuanceWindow)
			assert.Equal(t, time.Hour, cfg.Recovery.AdminTokenTTL)
			assert.Equal(t, 10, cfg.Recovery.PublicRateLimit)
			assert.Equal(t, time.Minute, cfg.Recovery.PublicRateWindow)

			return nil
		},
	}

	err := app.Run(context.Background(), []string{"test"})
	assert.NoError(t, err)
}

func TestNewFromCLI_WithCustomValues(t *testing.T) {
	app := &cli.Command{
		Name:  "test",
		Flags: Flags(),
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg := NewFromCLI(cmd)

			assert.Equal(t, "0.0.0.0", cfg.Server.Host)
			assert.Equal(t, "https://desk.example.com", cfg.Server.BaseURL)
			assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
			assert.Equal(t, 3, cfg.Recovery.MaxAttempts)
			assert.Equal(t, 15*time.Minute, cfg.Recovery.CodeTTL)

			return nil
		},
	}

	args := []string{
		"test",
		"--host", "0.0.0.0",
		"--base-url", "https://desk.example.com",
		"--redis-url", "redis://localhost:6379/0",
		"--recovery-max-attempts", "3",
		"--recovery-code-ttl", "15m",
	}
	err := app.Run(context.Background(), args)
	assert.NoError(t, err)
}
