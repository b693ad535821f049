// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads the server and CLI configuration from AGENCY_*
// environment variables.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// knownWeakSecrets contains example secrets that must never sign tokens.
var knownWeakSecrets = []string{
	"change-me-to-32-byte-secret-key!",
	"REPLACE_WITH_YOUR_OWN_SECRET_KEY!",
	"agency-token-secret-change-me-now",
}

// Media backends.
const (
	MediaBackendLocal = "local"
	MediaBackendS3    = "s3"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath     string `env:"AGENCY_DB_PATH" envDefault:"./data/agency.db"`
	ServerHost string `env:"AGENCY_SERVER_HOST" envDefault:"localhost"`
	ServerPort int    `env:"AGENCY_SERVER_PORT" envDefault:"8080"`
	Env        string `env:"AGENCY_ENV" envDefault:"development"`
	LogLevel   string `env:"AGENCY_LOG_LEVEL" envDefault:"info"`
	APIPrefix  string `env:"AGENCY_API_PREFIX" envDefault:"/api"`

	// Allowed browser origins for the public site and admin panel.
	CORSOrigins []string `env:"AGENCY_CORS_ORIGINS" envSeparator:","`

	// Bearer tokens
	TokenSecret string        `env:"AGENCY_TOKEN_SECRET,required"`
	TokenTTL    time.Duration `env:"AGENCY_TOKEN_TTL" envDefault:"24h"`
	TokenIssuer string        `env:"AGENCY_TOKEN_ISSUER" envDefault:"agency-cms"`

	// Cache configuration
	RedisURL     string `env:"AGENCY_REDIS_URL"`                         // Optional Redis URL for shared caching
	CachePrefix  string `env:"AGENCY_CACHE_PREFIX" envDefault:"agency:"` // Redis key prefix
	CacheTTL     int    `env:"AGENCY_CACHE_TTL" envDefault:"300"`        // Response cache TTL in seconds
	CacheMaxSize int    `env:"AGENCY_CACHE_MAX_SIZE" envDefault:"10000"` // Max memory cache entries

	// Media storage
	MediaBackend string `env:"AGENCY_MEDIA_BACKEND" envDefault:"local"`
	UploadsDir   string `env:"AGENCY_UPLOADS_DIR" envDefault:"./uploads"`
	MediaBaseURL string `env:"AGENCY_MEDIA_BASE_URL" envDefault:"/uploads"`
	S3Bucket     string `env:"AGENCY_S3_BUCKET"`
	S3Region     string `env:"AGENCY_S3_REGION" envDefault:"us-east-1"`
	S3Endpoint   string `env:"AGENCY_S3_ENDPOINT"` // MinIO and other S3-compatible stores
	S3AccessKey  string `env:"AGENCY_S3_ACCESS_KEY"`
	S3SecretKey  string `env:"AGENCY_S3_SECRET_KEY"`

	// GeoIP configuration
	GeoIPDBPath string `env:"AGENCY_GEOIP_DB_PATH"` // Path to GeoLite2-Country.mmdb file

	// Outbound webhooks
	WebhookURLs   []string `env:"AGENCY_WEBHOOK_URLS" envSeparator:","`
	WebhookSecret string   `env:"AGENCY_WEBHOOK_SECRET"`

	// Seeding configuration
	DoSeed            bool   `env:"AGENCY_DO_SEED" envDefault:"false"`
	SeedAdminEmail    string `env:"AGENCY_SEED_ADMIN_EMAIL" envDefault:"admin@example.com"`
	SeedAdminPassword string `env:"AGENCY_SEED_ADMIN_PASSWORD"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedisCache returns true if Redis caching is configured.
func (c Config) UseRedisCache() bool {
	return c.RedisURL != ""
}

// GeoIPEnabled returns true if GeoIP database is configured.
func (c Config) GeoIPEnabled() bool {
	return c.GeoIPDBPath != ""
}

// WebhooksEnabled returns true if at least one webhook target is configured.
func (c Config) WebhooksEnabled() bool {
	return len(c.WebhookURLs) > 0
}

// CacheTTLDuration returns CacheTTL as a duration.
func (c Config) CacheTTLDuration() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}

// SlogLevel maps LogLevel to a slog level. Unknown values fall back to info.
func (c Config) SlogLevel() slog.Level {
	return parseLevel(c.LogLevel)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// MinTokenSecretLength is the minimum length of the HS256 signing key.
const MinTokenSecretLength = 32

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ToolsConfig is the part of the configuration the operator CLI reads.
// It never signs tokens, so AGENCY_TOKEN_SECRET is not required.
type ToolsConfig struct {
	DBPath   string `env:"AGENCY_DB_PATH" envDefault:"./data/agency.db"`
	LogLevel string `env:"AGENCY_LOG_LEVEL" envDefault:"info"`

	// Set to invalidate the server's shared cache after writes.
	RedisURL    string `env:"AGENCY_REDIS_URL"`
	CachePrefix string `env:"AGENCY_CACHE_PREFIX" envDefault:"agency:"`

	SeedAdminEmail    string `env:"AGENCY_SEED_ADMIN_EMAIL" envDefault:"admin@example.com"`
	SeedAdminPassword string `env:"AGENCY_SEED_ADMIN_PASSWORD"`
}

// SlogLevel maps LogLevel to a slog level.
func (c ToolsConfig) SlogLevel() slog.Level {
	return parseLevel(c.LogLevel)
}

// LoadTools parses the CLI configuration from the environment.
func LoadTools() (*ToolsConfig, error) {
	cfg := &ToolsConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("AGENCY_DB_PATH must not be empty")
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.TokenSecret) < MinTokenSecretLength {
		return fmt.Errorf("AGENCY_TOKEN_SECRET must be at least %d bytes long, got %d bytes; "+
			"generate a secure secret with: openssl rand -base64 32",
			MinTokenSecretLength, len(c.TokenSecret))
	}

	for _, weak := range knownWeakSecrets {
		if c.TokenSecret == weak {
			return fmt.Errorf("AGENCY_TOKEN_SECRET is a known default value and must not be used; " +
				"generate a secure secret with: openssl rand -base64 32")
		}
	}

	if !hasMinimumEntropy(c.TokenSecret) {
		slog.Warn("AGENCY_TOKEN_SECRET has low character diversity; " +
			"consider generating a random secret with: openssl rand -base64 32")
	}

	if c.TokenTTL <= 0 {
		return fmt.Errorf("AGENCY_TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}

	if !strings.HasPrefix(c.APIPrefix, "/") {
		return fmt.Errorf("AGENCY_API_PREFIX must start with '/', got %q", c.APIPrefix)
	}
	c.APIPrefix = strings.TrimRight(c.APIPrefix, "/")

	switch c.MediaBackend {
	case MediaBackendLocal:
	case MediaBackendS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("AGENCY_S3_BUCKET is required when AGENCY_MEDIA_BACKEND=s3")
		}
	default:
		return fmt.Errorf("AGENCY_MEDIA_BACKEND must be %q or %q, got %q",
			MediaBackendLocal, MediaBackendS3, c.MediaBackend)
	}

	return nil
}

// hasMinimumEntropy checks that a secret contains at least 3 character classes
// (lowercase, uppercase, digits, special characters).
func hasMinimumEntropy(s string) bool {
	charTypes := 0
	if strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyz") {
		charTypes++
	}
	if strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		charTypes++
	}
	if strings.ContainsAny(s, "0123456789") {
		charTypes++
	}
	if strings.ContainsAny(s, "!@#$%^&*()-_=+[]{}|;:,.<>?/~`'\"\\") {
		charTypes++
	}
	return charTypes >= 3
}
