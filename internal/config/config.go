// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// knownWeakSecrets contains default/example secrets that must be rejected.
var knownWeakSecrets = []string{
	"change-me-to-32-byte-secret-key!",
	"REPLACE_WITH_YOUR_OWN_SECRET_KEY!",
}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	DBPath        string `env:"OCMS_DB_PATH" envDefault:"./data/redirects.db"`
	SessionSecret string `env:"OCMS_SESSION_SECRET,required"`
	ServerHost    string `env:"OCMS_SERVER_HOST" envDefault:"localhost"`
	ServerPort    int    `env:"OCMS_SERVER_PORT" envDefault:"8080"`
	Env           string `env:"OCMS_ENV" envDefault:"development"`
	LogLevel      string `env:"OCMS_LOG_LEVEL" envDefault:"info"`

	// Default site, created or marked on startup
	SiteDomain string `env:"OCMS_SITE_DOMAIN" envDefault:"localhost"`
	SiteName   string `env:"OCMS_SITE_NAME" envDefault:"Default site"`

	// Redirect resolution
	AdminPrefix string `env:"OCMS_ADMIN_PREFIX" envDefault:"/admin/"` // Never redirected to or from
	AppendSlash bool   `env:"OCMS_APPEND_SLASH" envDefault:"true"`    // Also try the path without its trailing slash

	// Cache configuration
	RedisURL     string `env:"OCMS_REDIS_URL"`                             // Optional Redis URL for distributed caching
	CachePrefix  string `env:"OCMS_CACHE_PREFIX" envDefault:"redirects:"` // Redis key prefix
	CacheTTL     int    `env:"OCMS_CACHE_TTL" envDefault:"3600"`           // Default cache TTL in seconds
	CacheMaxSize int    `env:"OCMS_CACHE_MAX_SIZE" envDefault:"10000"`     // Max memory cache entries

	// API and background work
	APIRateLimit        float64 `env:"OCMS_API_RATE_LIMIT" envDefault:"10"`       // Requests per second per API key
	EventRetentionDays  int     `env:"OCMS_EVENT_RETENTION_DAYS" envDefault:"90"` // 0 disables pruning
	WebhookWorkers      int     `env:"OCMS_WEBHOOK_WORKERS" envDefault:"4"`
	WebhookTimeoutSecs  int     `env:"OCMS_WEBHOOK_TIMEOUT" envDefault:"10"`
	RequestTimeoutSecs  int     `env:"OCMS_REQUEST_TIMEOUT" envDefault:"30"`
	ImportMaxUploadSize int64   `env:"OCMS_IMPORT_MAX_UPLOAD" envDefault:"10485760"`

	// Seeding configuration
	DoSeed bool `env:"OCMS_DO_SEED" envDefault:"false"` // Create the default admin user
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

// CacheTTLDuration returns CacheTTL as a time.Duration.
func (c Config) CacheTTLDuration() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}

// EventRetention returns how long events are kept, or 0 when pruning is off.
func (c Config) EventRetention() time.Duration {
	if c.EventRetentionDays <= 0 {
		return 0
	}
	return time.Duration(c.EventRetentionDays) * 24 * time.Hour
}

// MinSessionSecretLength is the minimum required length for the session secret.
const MinSessionSecretLength = 32

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if len(cfg.SessionSecret) < MinSessionSecretLength {
		return nil, fmt.Errorf("OCMS_SESSION_SECRET must be at least %d bytes long, got %d bytes; "+
			"generate a secure secret with: openssl rand -base64 32",
			MinSessionSecretLength, len(cfg.SessionSecret))
	}

	for _, weak := range knownWeakSecrets {
		if cfg.SessionSecret == weak {
			return nil, fmt.Errorf("OCMS_SESSION_SECRET is a known default value and must not be used; " +
				"generate a secure secret with: openssl rand -base64 32")
		}
	}

	prefix, err := normalizeAdminPrefix(cfg.AdminPrefix)
	if err != nil {
		return nil, err
	}
	cfg.AdminPrefix = prefix

	if !hasMinimumEntropy(cfg.SessionSecret) {
		slog.Warn("OCMS_SESSION_SECRET has low character diversity; " +
			"consider generating a random secret with: openssl rand -base64 32")
	}

	return cfg, nil
}

// normalizeAdminPrefix makes the prefix start and end with a slash.
func normalizeAdminPrefix(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" || p == "/" {
		return "", fmt.Errorf("OCMS_ADMIN_PREFIX must name a sub-path such as /admin/, got %q", p)
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p, nil
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
