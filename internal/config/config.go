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

var (
	configPath = "config.toml"
	configFile = altsrc.NewStringPtrSourcer(&configPath)
)

type Config struct { //nolint:govet // fieldalignment not critical for config structs
	Server   ServerConfig
	Log      LogConfig
	Database DatabaseConfig
	TLS      TLSConfig
	Auth     AuthConfig
	Session  SessionConfig
	SMTP     SMTPConfig
}

type ServerConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host           string
	Port           int
	BaseURL        string
	MaxBodySize    int // in MB
	RequestTimeout time.Duration
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

type DatabaseConfig struct {
	DSN string
}

type TLSConfig struct {
	Mode     string // off, manual, acme
	CertDir  string // ACME certificate cache
	Email    string // ACME email for Let's Encrypt
	CertFile string // Path to certificate file (manual mode)
	KeyFile  string // Path to private key file (manual mode)
}

// AuthConfig controls token lifetimes, code lifetimes and hashing.
type AuthConfig struct { //nolint:govet // fieldalignment not critical for config structs
	TokenSecret      string // hex, at least 32 bytes; generated when empty
	TokenIssuer      string
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	VerifyCodeTTL    time.Duration
	ResetCodeTTL     time.Duration
	CodeMaxAttempts  int
	BcryptCost       int
	PasswordLength   int // length of passwords generated by forgot-password
	OperationTimeout time.Duration
	JanitorInterval  time.Duration
}

type SessionConfig struct { //nolint:govet // fieldalignment not critical
	CookieName string // Refresh token cookie name
	HashKey    string // 32-byte hex string for HMAC signing
	BlockKey   string // 32-byte hex string for AES encryption (optional)
}

// SMTPConfig configures outgoing mail. An empty Host logs mails instead of sending them.
type SMTPConfig struct { //nolint:govet // fieldalignment not critical
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	TLS      bool
	Timeout  time.Duration
}

func NewFromCLI(cmd *cli.Command) *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:           cmd.String("host"),
			Port:           int(cmd.Int("port")),
			BaseURL:        cmd.String("base-url"),
			MaxBodySize:    int(cmd.Int("max-body-size")),
			RequestTimeout: cmd.Duration("request-timeout"),
		},
		Log: LogConfig{
			Level:  cmd.String("log-level"),
			Format: cmd.String("log-format"),
		},
		Database: DatabaseConfig{
			DSN: cmd.String("database-dsn"),
		},
		TLS: TLSConfig{
			Mode:     cmd.String("tls-mode"),
			CertDir:  cmd.String("tls-cert-dir"),
			Email:    cmd.String("tls-email"),
			CertFile: cmd.String("tls-cert-file"),
			KeyFile:  cmd.String("tls-key-file"),
		},
		Auth: AuthConfig{
			TokenSecret:      cmd.String("token-secret"),
			TokenIssuer:      cmd.String("token-issuer"),
			AccessTTL:        cmd.Duration("access-ttl"),
			RefreshTTL:       cmd.Duration("refresh-ttl"),
			VerifyCodeTTL:    cmd.Duration("verify-code-ttl"),
			ResetCodeTTL:     cmd.Duration("reset-code-ttl"),
			CodeMaxAttempts:  int(cmd.Int("code-max-attempts")),
			BcryptCost:       int(cmd.Int("bcrypt-cost")),
			PasswordLength:   int(cmd.Int("generated-password-length")),
			OperationTimeout: cmd.Duration("operation-timeout"),
			JanitorInterval:  cmd.Duration("janitor-interval"),
		},
		Session: SessionConfig{
			CookieName: cmd.String("refresh-cookie-name"),
			HashKey:    cmd.String("session-hash-key"),
			BlockKey:   cmd.String("session-block-key"),
		},
		SMTP: SMTPConfig{
			Host:     cmd.String("smtp-host"),
			Port:     int(cmd.Int("smtp-port")),
			Username: cmd.String("smtp-username"),
			Password: cmd.String("smtp-password"),
			From:     cmd.String("smtp-from"),
			FromName: cmd.String("smtp-from-name"),
			TLS:      cmd.Bool("smtp-tls"),
			Timeout:  cmd.Duration("smtp-timeout"),
		},
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = buildBaseURL(cfg)
	}

	return cfg
}

// SecureCookies reports whether cookies should carry the Secure flag.
func (c *Config) SecureCookies() bool {
	return strings.HasPrefix(c.Server.BaseURL, "https://")
}

func buildBaseURL(cfg *Config) string {
	host := cfg.Server.Host
	port := cfg.Server.Port
	mode := strings.ToLower(cfg.TLS.Mode)

	scheme := "http"
	if mode == "manual" || mode == "acme" {
		scheme = "https"
	}

	// ACME always serves on 443
	if mode == "acme" {
		return fmt.Sprintf("https://%s", host)
	}

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
	return strings.HasSuffix(host, ".localhost")
}

func src(env, key string) cli.ValueSourceChain {
	return cli.NewValueSourceChain(cli.EnvVar(env), toml.TOML(key, configFile))
}

func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Value:       "config.toml",
			Usage:       "Path to TOML configuration file",
			Destination: &configPath,
			Sources:     cli.EnvVars("CONFIG"),
		},
		&cli.StringFlag{
			Name:    "host",
			Value:   "localhost",
			Usage:   "Host to bind to",
			Sources: src("HOST", "server.host"),
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   8080,
			Usage:   "Port to listen on",
			Sources: src("PORT", "server.port"),
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "Base URL for the application",
			Sources: src("BASE_URL", "server.base_url"),
		},
		&cli.IntFlag{
			Name:    "max-body-size",
			Value:   1,
			Usage:   "Maximum request body size in MB",
			Sources: src("MAX_BODY_SIZE", "server.max_body_size"),
		},
		&cli.DurationFlag{
			Name:    "request-timeout",
			Value:   15 * time.Second,
			Usage:   "Upper bound for handling a single request",
			Sources: src("REQUEST_TIMEOUT", "server.request_timeout"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: src("LOG_LEVEL", "log.level"),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "text",
			Usage:   "Log format (text, json)",
			Sources: src("LOG_FORMAT", "log.format"),
		},
		&cli.StringFlag{
			Name:    "database-dsn",
			Value:   "./data/auth.db",
			Usage:   "Database DSN",
			Sources: src("DATABASE_DSN", "database.dsn"),
		},
		&cli.StringFlag{
			Name:    "tls-mode",
			Value:   "off",
			Usage:   "TLS mode (off, manual, acme)",
			Sources: src("TLS_MODE", "tls.mode"),
		},
		&cli.StringFlag{
			Name:    "tls-cert-dir",
			Value:   "./data/certs",
			Usage:   "Directory for the ACME certificate cache",
			Sources: src("TLS_CERT_DIR", "tls.cert_dir"),
		},
		&cli.StringFlag{
			Name:    "tls-email",
			Usage:   "Email for ACME/Let's Encrypt registration",
			Sources: src("TLS_EMAIL", "tls.email"),
		},
		&cli.StringFlag{
			Name:    "tls-cert-file",
			Usage:   "Path to TLS certificate file (manual mode)",
			Sources: src("TLS_CERT_FILE", "tls.cert_file"),
		},
		&cli.StringFlag{
			Name:    "tls-key-file",
			Usage:   "Path to TLS private key file (manual mode)",
			Sources: src("TLS_KEY_FILE", "tls.key_file"),
		},
		// Auth flags
		&cli.StringFlag{
			Name:    "token-secret",
			Usage:   "HMAC secret for signing tokens (hex, >= 32 bytes, auto-generated if empty in dev)",
			Sources: src("TOKEN_SECRET", "auth.token_secret"),
		},
		&cli.StringFlag{
			Name:    "token-issuer",
			Value:   "go-auth-service",
			Usage:   "Issuer claim for signed tokens",
			Sources: src("TOKEN_ISSUER", "auth.token_issuer"),
		},
		&cli.DurationFlag{
			Name:    "access-ttl",
			Value:   15 * time.Minute,
			Usage:   "Access token lifetime",
			Sources: src("ACCESS_TTL", "auth.access_ttl"),
		},
		&cli.DurationFlag{
			Name:    "refresh-ttl",
			Value:   7 * 24 * time.Hour,
			Usage:   "Refresh token and session lifetime",
			Sources: src("REFRESH_TTL", "auth.refresh_ttl"),
		},
		&cli.DurationFlag{
			Name:    "verify-code-ttl",
			Value:   15 * time.Minute,
			Usage:   "Lifetime of email verification codes",
			Sources: src("VERIFY_CODE_TTL", "auth.verify_code_ttl"),
		},
		&cli.DurationFlag{
			Name:    "reset-code-ttl",
			Value:   10 * time.Minute,
			Usage:   "Lifetime of password reset codes",
			Sources: src("RESET_CODE_TTL", "auth.reset_code_ttl"),
		},
		&cli.IntFlag{
			Name:    "code-max-attempts",
			Value:   5,
			Usage:   "Wrong guesses before a code is burned",
			Sources: src("CODE_MAX_ATTEMPTS", "auth.code_max_attempts"),
		},
		&cli.IntFlag{
			Name:    "bcrypt-cost",
			Value:   12,
			Usage:   "bcrypt cost factor",
			Sources: src("BCRYPT_COST", "auth.bcrypt_cost"),
		},
		&cli.IntFlag{
			Name:    "generated-password-length",
			Value:   16,
			Usage:   "Length of passwords issued by forgot-password",
			Sources: src("GENERATED_PASSWORD_LENGTH", "auth.generated_password_length"),
		},
		&cli.DurationFlag{
			Name:    "operation-timeout",
			Value:   10 * time.Second,
			Usage:   "Upper bound for a single auth operation (hashing, store, mail)",
			Sources: src("OPERATION_TIMEOUT", "auth.operation_timeout"),
		},
		&cli.DurationFlag{
			Name:    "janitor-interval",
			Value:   10 * time.Minute,
			Usage:   "How often expired codes and sessions are purged",
			Sources: src("JANITOR_INTERVAL", "auth.janitor_interval"),
		},
		// Session cookie flags
		&cli.StringFlag{
			Name:    "refresh-cookie-name",
			Value:   "_refresh",
			Usage:   "Refresh token cookie name",
			Sources: src("REFRESH_COOKIE_NAME", "session.cookie_name"),
		},
		&cli.StringFlag{
			Name:    "session-hash-key",
			Usage:   "Cookie hash key (32-byte hex, auto-generated if empty in dev)",
			Sources: src("SESSION_HASH_KEY", "session.hash_key"),
		},
		&cli.StringFlag{
			Name:    "session-block-key",
			Usage:   "Cookie block key for encryption (32-byte hex, optional)",
			Sources: src("SESSION_BLOCK_KEY", "session.block_key"),
		},
		// SMTP flags
		&cli.StringFlag{
			Name:    "smtp-host",
			Usage:   "SMTP host (empty logs mails instead of sending)",
			Sources: src("SMTP_HOST", "smtp.host"),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Value:   587,
			Usage:   "SMTP port",
			Sources: src("SMTP_PORT", "smtp.port"),
		},
		&cli.StringFlag{
			Name:    "smtp-username",
			Usage:   "SMTP username",
			Sources: src("SMTP_USERNAME", "smtp.username"),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			Usage:   "SMTP password",
			Sources: src("SMTP_PASSWORD", "smtp.password"),
		},
		&cli.StringFlag{
			Name:    "smtp-from",
			Value:   "noreply@localhost",
			Usage:   "Sender address",
			Sources: src("SMTP_FROM", "smtp.from"),
		},
		&cli.StringFlag{
			Name:    "smtp-from-name",
			Usage:   "Sender display name",
			Sources: src("SMTP_FROM_NAME", "smtp.from_name"),
		},
		&cli.BoolFlag{
			Name:    "smtp-tls",
			Value:   true,
			Usage:   "Require TLS for SMTP",
			Sources: src("SMTP_TLS", "smtp.tls"),
		},
		&cli.DurationFlag{
			Name:    "smtp-timeout",
			Value:   10 * time.Second,
			Usage:   "SMTP dial and send timeout",
			Sources: src("SMTP_TIMEOUT", "smtp.timeout"),
		},
	}
}
