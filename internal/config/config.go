// Package config provides centralized configuration management for flightlog.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables; the import
// command lets flags override the Import section.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Import   ImportConfig
	Upload   UploadConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings for the unattended import API.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"2m"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RateLimit is the number of requests per minute allowed per client IP (default: 100)
	RateLimit int `env:"SERVER_RATE_LIMIT" default:"100"`
}

// SecurityConfig holds access control settings for the import API.
type SecurityConfig struct {
	// RequireAPIKey rejects API requests without a valid X-API-Key header.
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys lists the accepted keys, comma separated.
	APIKeys []string `env:"API_KEYS"`

	// TrustedProxies lists CIDRs whose X-Real-IP / X-Forwarded-For headers
	// are believed.
	TrustedProxies []string `env:"TRUSTED_PROXIES"`
}

// DatabaseConfig holds logbook database connection settings.
type DatabaseConfig struct {
	// URL is the connection string (required). For the sqlite driver this is
	// a file path or "file::memory:".
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// Driver selects the storage backend: postgres or sqlite (default: postgres)
	Driver string `env:"DB_DRIVER" default:"postgres"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// ImportConfig holds the defaults of a flight import run.
type ImportConfig struct {
	// Format is the registered CSV format key (default: startkladde-de)
	Format string `env:"IMPORT_FORMAT" default:"startkladde-de"`

	// FormatFile is an optional YAML file with additional format definitions.
	FormatFile string `env:"IMPORT_FORMAT_FILE"`

	Delimiter  string `env:"IMPORT_DELIMITER" default:","`
	Encoding   string `env:"IMPORT_ENCODING" default:"utf-8"`
	DateFormat string `env:"IMPORT_DATE_FORMAT" default:"%Y-%m-%d"`
	TimeFormat string `env:"IMPORT_TIME_FORMAT" default:"%H:%M"`

	// Timezone is the IANA zone the CSV times are written in (default: UTC)
	Timezone string `env:"IMPORT_TIMEZONE" default:"UTC"`

	// Mode is the conflict resolution mode: interactive, ignore or reject
	Mode string `env:"IMPORT_MODE" default:"interactive"`

	MergeTowflights bool `env:"IMPORT_MERGE_TOWFLIGHTS" default:"true"`

	// DisabledWarnings lists warning names that never invalidate a flight,
	// e.g. "missing-landing-location,missing-launch-method".
	DisabledWarnings []string `env:"IMPORT_DISABLED_WARNINGS"`

	AliasFile string `env:"IMPORT_ALIAS_FILE"`

	// Club restricts the import to flights with at least one club member on board.
	Club string `env:"IMPORT_CLUB"`

	PromptRetries int `env:"IMPORT_PROMPT_RETRIES" default:"10"`
}

// UploadConfig holds settings for files received over HTTP.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 10MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"10485760"`

	// MaxWaitTime is how long to wait for the import slot (default: 30s)
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`

	// Timeout is the maximum duration for a single import run (default: 5m)
	Timeout time.Duration `env:"UPLOAD_TIMEOUT" default:"5m"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
