// Package config provides centralized configuration management for the
// manifest compliance service. It loads configuration from environment
// variables with sensible defaults and validates all settings on startup to
// fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Upload       UploadConfig
	Rate         RateLimitConfig
	Security     SecurityConfig
	Logging      LoggingConfig
	Collaborator CollaboratorConfig
	Reference    ReferenceConfig
	Rules        RulesConfig
	Mapping      MappingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"120s"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 90s).
	// A fix loop can take up to five collaborator round trips.
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"90s"`
}

// DatabaseConfig holds database connection settings.
// The database is optional: without a URL, reports are not persisted and the
// reference lookup falls back to the built-in table.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"1"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// Enabled reports whether a database connection is configured.
func (c *DatabaseConfig) Enabled() bool {
	return c.URL != ""
}

// UploadConfig holds document intake settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed document size in bytes (default: 20MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"20971520"`

	// MaxConcurrent is the maximum number of documents processed in parallel (default: 8)
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"8"`

	// MaxWaitTime is how long to wait for a processing slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`

	// Timeout is the maximum duration for analyzing one document (default: 2m)
	Timeout time.Duration `env:"UPLOAD_TIMEOUT" default:"2m"`

	// ValidationWorkers bounds per-record rule evaluation within one document (default: 8)
	ValidationWorkers int `env:"UPLOAD_VALIDATION_WORKERS" default:"8"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// UploadLimit is requests per minute for document endpoints (default: 20)
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"20"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey gates /api routes behind X-API-Key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// CollaboratorConfig configures the generative collaborator used by the
// fix loop and report narratives.
type CollaboratorConfig struct {
	// Provider is openai or none (default: none)
	Provider string `env:"COLLAB_PROVIDER" default:"none"`

	Model   string `env:"COLLAB_MODEL" default:"gpt-4o-mini"`
	APIKey  string `env:"COLLAB_API_KEY" envAlt:"OPENAI_API_KEY"`
	BaseURL string `env:"COLLAB_BASE_URL"`

	// Timeout bounds each collaborator call (default: 8s)
	Timeout time.Duration `env:"COLLAB_TIMEOUT" default:"8s"`

	// MaxAttempts is the fix loop attempt ceiling (default: 5)
	MaxAttempts int `env:"COLLAB_MAX_ATTEMPTS" default:"5"`

	// Reasks is how many extra times a malformed response is re-requested (default: 2)
	Reasks int `env:"COLLAB_REASKS" default:"2"`
}

// Enabled reports whether a real collaborator is configured.
func (c *CollaboratorConfig) Enabled() bool {
	return c.Provider != "" && c.Provider != "none"
}

// ReferenceConfig configures the tariff code reference lookup.
type ReferenceConfig struct {
	// URL of an HTTP dictionary service; empty selects database or built-in table
	URL string `env:"REFERENCE_URL"`

	// Timeout bounds each lookup (default: 3s)
	Timeout time.Duration `env:"REFERENCE_TIMEOUT" default:"3s"`

	// CacheSize is the number of cached lookups (default: 1024)
	CacheSize int `env:"REFERENCE_CACHE_SIZE" default:"1024"`
}

// RulesConfig holds tunable validation rule settings.
type RulesConfig struct {
	// HSRangeEnabled turns on the chapter range heuristic (default: false)
	HSRangeEnabled bool `env:"RULES_HS_RANGE_ENABLED" default:"false"`
	HSRangeMin     int  `env:"RULES_HS_RANGE_MIN" default:"6000"`
	HSRangeMax     int  `env:"RULES_HS_RANGE_MAX" default:"8499"`

	// DutyTolerance is the accepted absolute difference in currency units (default: 0.01)
	DutyTolerance string `env:"RULES_DUTY_TOLERANCE" default:"0.01"`
}

// MappingConfig points at an optional YAML header pattern file.
type MappingConfig struct {
	PatternsFile string `env:"MAPPING_PATTERNS_FILE"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
