// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"fmt"
	"strings"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

var configFile = altsrc.StringSourcer("config.toml")

type Config struct { //nolint:govet // fieldalignment not critical for config structs
	Server   ServerConfig
	Log      LogConfig
	Database DatabaseConfig
	Redis    RedisConfig
	SMTP     SMTPConfig
	Session  SessionConfig
	Recovery RecoveryConfig
}

type ServerConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host        string
	Port        int
	BaseURL     string
	MaxBodySize int // in MB
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

type DatabaseConfig struct {
	DSN string
}

// RedisConfig configures the optional Redis backend for rate limit counters.
// An empty URL selects the SQL backend.
type RedisConfig struct {
	URL string
}

// SMTPConfig configures outbound mail. An empty Host logs notifications instead of sending them.
type SMTPConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	TLS      bool
}

type SessionConfig struct { //nolint:govet // fieldalignment not critical
	CookieName string // Session cookie name
	MaxAge     int    // Session max age in seconds
	HashKey    string // 32-byte hex string for HMAC signing
	BlockKey   string // 32-byte hex string for AES encryption (optional)
}

// RecoveryConfig holds the account recovery policy.
type RecoveryConfig struct { //nolint:govet // fieldalignment not critical for config structs
	MaxAttempts        int
	CodeTTL            time.Duration
	MaxIssuedPerWindow int
	IssuanceWindow     time.Duration
	AdminTokenTTL      time.Duration
	InvitationTTL      time.Duration
	PublicRateLimit    int
	PublicRateWindow   time.Duration
	MinPasswordLength  int
}

const (
	defaultMaxAttempts        = 5
	defaultMaxIssuedPerWindow = 3
	defaultPublicRateLimit    = 10
	defaultMinPasswordLength  = 8
)

// DefaultRecoveryConfig returns the recovery policy used when nothing is configured.
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		MaxAttempts:        defaultMaxAttempts,
		CodeTTL:            10 * time.Minute,
		MaxIssuedPerWindow: defaultMaxIssuedPerWindow,
		IssuanceWindow:     time.Hour,
		AdminTokenTTL:      time.Hour,
		InvitationTTL:      7 * 24 * time.Hour,
		PublicRateLimit:    defaultPublicRateLimit,
		PublicRateWindow:   time.Minute,
		MinPasswordLength:  defaultMinPasswordLength,
	}
}

func NewFromCLI(cmd *cli.Command) *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:        cmd.String("host"),
			Port:        int(cmd.Int("port")),
			BaseURL:     cmd.String("base-url"),
			MaxBodySize: int(cmd.Int("max-body-size")),
		},
		Log: LogConfig{
			Level:  cmd.String("log-level"),
			Format: cmd.String("log-format"),
		},
		Database: DatabaseConfig{
			DSN: cmd.String("database-dsn"),
		},
		Redis: RedisConfig{
			URL: cmd.String("redis-url"),
		},
		SMTP: SMTPConfig{
			Host:     cmd.String("smtp-host"),
			Port:     int(cmd.Int("smtp-port")),
			Username: cmd.String("smtp-username"),
			Password: cmd.String("smtp-password"),
			From:     cmd.String("smtp-from"),
			FromName: cmd.String("smtp-from-name"),
			TLS:      cmd.Bool("smtp-tls"),
		},
		Session: SessionConfig{
			CookieName: cmd.String("session-cookie-name"),
			MaxAge:     int(cmd.Int("session-max-age")),
			HashKey:    cmd.String("session-hash-key"),
			BlockKey:   cmd.String("session-block-key"),
		},
		Recovery: RecoveryConfig{
			MaxAttempts:        int(cmd.Int("recovery-max-attempts")),
			CodeTTL:            cmd.Duration("recovery-code-ttl"),
			MaxIssuedPerWindow: int(cmd.Int("recovery-max-issued")),
			IssuanceWindow:     cmd.Duration("recovery-issuance-window"),
			AdminTokenTTL:      cmd.Duration("admin-token-ttl"),
			InvitationTTL:      cmd.Duration("invitation-ttl"),
			PublicRateLimit:    int(cmd.Int("public-rate-limit")),
			PublicRateWindow:   cmd.Duration("public-rate-window"),
			MinPasswordLength:  int(cmd.Int("min-password-length")),
		},
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = buildBaseURL(cfg)
	}

	applyRecoveryDefaults(&cfg.Recovery)

	return cfg
}

// applyRecoveryDefaults replaces non-positive policy values with the defaults.
func applyRecoveryDefaults(rc *RecoveryConfig) {
	def := DefaultRecoveryConfig()
	if rc.MaxAttempts <= 0 {
		rc.MaxAttempts = def.MaxAttempts
	}
	if rc.CodeTTL <= 0 {
		rc.CodeTTL = def.CodeTTL
	}
	if rc.MaxIssuedPerWindow <= 0 {
		rc.MaxIssuedPerWindow = def.MaxIssuedPerWindow
	}
	if rc.IssuanceWindow <= 0 {
		rc.IssuanceWindow = def.IssuanceWindow
	}
	if rc.AdminTokenTTL <= 0 {
		rc.AdminTokenTTL = def.AdminTokenTTL
	}
	if rc.InvitationTTL <= 0 {
		rc.InvitationTTL = def.InvitationTTL
	}
	if rc.PublicRateLimit <= 0 {
		rc.PublicRateLimit = def.PublicRateLimit
	}
	if rc.PublicRateWindow <= 0 {
		rc.PublicRateWindow = def.PublicRateWindow
	}
	if rc.MinPasswordLength <= 0 {
		rc.MinPasswordLength = def.MinPasswordLength
	}
}

func buildBaseURL(cfg *Config) string {
	host := cfg.Server.Host
	port := cfg.Server.Port

	scheme := "https"
	if IsLocalhost(host) {
		scheme = "http"
	}

	// Hide default ports in URL
	if (scheme == "http" && port == 80) || (scheme == "https" && port == 443) {
		return fmt.Sprintf("%s://%s", scheme, host)
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, port)
}

// IsLocalhost checks if the host is a localhost address.
func IsLocalhost(host string) bool {
	switch host {
	case "", "localhost", "127.0.0.1", "::1":
		return true
	}
	// Check for *.localhost subdomains (e.g., app.localhost)
	return strings.HasSuffix(host, ".localhost")
}

// SecureCookies reports whether cookies should carry the Secure flag.
func (c *Config) SecureCookies() bool {
	return strings.HasPrefix(c.Server.BaseURL, "https://")
}

func Flags() []cli.Flag {
	def := DefaultRecoveryConfig()
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "host",
			Value:   "localhost",
			Usage:   "Host to bind to",
			Sources: cli.NewValueSourceChain(cli.EnvVar("HOST"), toml.TOML("server.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   8080,
			Usage:   "Port to listen on",
			Sources: cli.NewValueSourceChain(cli.EnvVar("PORT"), toml.TOML("server.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "Base URL used in notification links",
			Sources: cli.NewValueSourceChain(cli.EnvVar("BASE_URL"), toml.TOML("server.base_url", configFile)),
		},
		&cli.IntFlag{
			Name:    "max-body-size",
			Value:   1,
			Usage:   "Maximum request body size in MB",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MAX_BODY_SIZE"), toml.TOML("server.max_body_size", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_LEVEL"), toml.TOML("log.level", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "text",
			Usage:   "Log format (text, json)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_FORMAT"), toml.TOML("log.format", configFile)),
		},
		&cli.StringFlag{
			Name:    "database-dsn",
			Value:   "./data/app.db",
			Usage:   "Database DSN",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DATABASE_DSN"), toml.TOML("database.dsn", configFile)),
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "Redis URL for rate limit counters (SQL counters when empty)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("REDIS_URL"), toml.TOML("redis.url", configFile)),
		},
		// SMTP flags
		&cli.StringFlag{
			Name:    "smtp-host",
			Usage:   "SMTP host (notifications are logged when empty)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_HOST"), toml.TOML("smtp.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Value:   587,
			Usage:   "SMTP port",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_PORT"), toml.TOML("smtp.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-username",
			Usage:   "SMTP username",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_USERNAME"), toml.TOML("smtp.username", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			Usage:   "SMTP password",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_PASSWORD"), toml.TOML("smtp.password", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-from",
			Usage:   "Sender address",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_FROM"), toml.TOML("smtp.from", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-from-name",
			Value:   "Helpdesk",
			Usage:   "Sender display name",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_FROM_NAME"), toml.TOML("smtp.from_name", configFile)),
		},
		&cli.BoolFlag{
			Name:    "smtp-tls",
			Value:   true,
			Usage:   "Require TLS for SMTP",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_TLS"), toml.TOML("smtp.tls", configFile)),
		},
		// Session flags
		&cli.StringFlag{
			Name:    "session-cookie-name",
			Value:   "_session",
			Usage:   "Session cookie name",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SESSION_COOKIE_NAME"), toml.TOML("session.cookie_name", configFile)),
		},
		&cli.IntFlag{
			Name:    "session-max-age",
			Value:   28800, // 8 hours in seconds
			Usage:   "Session max age in seconds",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SESSION_MAX_AGE"), toml.TOML("session.max_age", configFile)),
		},
		&cli.StringFlag{
			Name:    "session-hash-key",
			Usage:   "Session hash key (32-byte hex, auto-generated if empty in dev)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SESSION_HASH_KEY"), toml.TOML("session.hash_key", configFile)),
		},
		&cli.StringFlag{
			Name:    "session-block-key",
			Usage:   "Session block key for encryption (32-byte hex, optional)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SESSION_BLOCK_KEY"), toml.TOML("session.block_key", configFile)),
		},
		// Recovery policy flags
		&cli.IntFlag{
			Name:    "recovery-max-attempts",
			Value:   defaultMaxAttempts,
			Usage:   "Wrong code submissions before a recovery request locks",
			Sources: cli.NewValueSourceChain(cli.EnvVar("RECOVERY_MAX_ATTEMPTS"), toml.TOML("recovery.max_attempts", configFile)),
		},
		&cli.DurationFlag{
			Name:    "recovery-code-ttl",
			Value:   def.CodeTTL,
			Usage:   "Lifetime of a verification code",
			Sources: cli.NewValueSourceChain(cli.EnvVar("RECOVERY_CODE_TTL"), toml.TOML("recovery.code_ttl", configFile)),
		},
		&cli.IntFlag{
			Name:    "recovery-max-issued",
			Value:   defaultMaxIssuedPerWindow,
			Usage:   "Codes issued per identity within one issuance window",
			Sources: cli.NewValueSourceChain(cli.EnvVar("RECOVERY_MAX_ISSUED"), toml.TOML("recovery.max_issued_per_window", configFile)),
		},
		&cli.DurationFlag{
			Name:    "recovery-issuance-window",
			Value:   def.IssuanceWindow,
			Usage:   "Length of the code issuance window",
			Sources: cli.NewValueSourceChain(cli.EnvVar("RECOVERY_ISSUANCE_WINDOW"), toml.TOML("recovery.issuance_window", configFile)),
		},
		&cli.DurationFlag{
			Name:    "admin-token-ttl",
			Value:   def.AdminTokenTTL,
			Usage:   "Lifetime of administrator-issued reset tokens",
			Sources: cli.NewValueSourceChain(cli.EnvVar("ADMIN_TOKEN_TTL"), toml.TOML("recovery.admin_token_ttl", configFile)),
		},
		&cli.DurationFlag{
			Name:    "invitation-ttl",
			Value:   def.InvitationTTL,
			Usage:   "Lifetime of invitation links",
			Sources: cli.NewValueSourceChain(cli.EnvVar("INVITATION_TTL"), toml.TOML("recovery.invitation_ttl", configFile)),
		},
		&cli.IntFlag{
			Name:    "public-rate-limit",
			Value:   defaultPublicRateLimit,
			Usage:   "Requests per client on public recovery endpoints within one rate window",
			Sources: cli.NewValueSourceChain(cli.EnvVar("PUBLIC_RATE_LIMIT"), toml.TOML("ratelimit.limit", configFile)),
		},
		&cli.DurationFlag{
			Name:    "public-rate-window",
			Value:   def.PublicRateWindow,
			Usage:   "Rate window for public recovery endpoints",
			Sources: cli.NewValueSourceChain(cli.EnvVar("PUBLIC_RATE_WINDOW"), toml.TOML("ratelimit.window", configFile)),
		},
		&cli.IntFlag{
			Name:    "min-password-length",
			Value:   defaultMinPasswordLength,
			Usage:   "Minimum password length",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MIN_PASSWORD_LENGTH"), toml.TOML("auth.min_password_length", configFile)),
		},
	}
}
