// Package config provides centralized configuration management for the price importer.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Import   ImportConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 60s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"60s"`

	// WriteTimeout is the maximum duration for writing response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// UploadDir holds uploaded files while their import runs (default: OS temp dir)
	UploadDir string `env:"SERVER_UPLOAD_DIR"`

	// TrustedProxies are CIDRs whose X-Real-IP / X-Forwarded-For headers are honoured
	TrustedProxies []string `env:"SERVER_TRUSTED_PROXIES"`

	// APIKeys, when set, are required in X-API-Key on every /api request
	APIKeys []string `env:"SERVER_API_KEYS"`

	// RateLimit is requests per minute per client IP on the API. 0 disables it (default: 100)
	RateLimit int `env:"SERVER_RATE_LIMIT" default:"100"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" default:"10"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" default:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`

	// EnsureSchema creates missing tables on startup (default: true)
	EnsureSchema bool `env:"DB_ENSURE_SCHEMA" default:"true"`
}

// RedisConfig holds the optional sku lookup cache settings.
type RedisConfig struct {
	// Addr enables the cache when set, e.g. localhost:6379
	Addr string `env:"REDIS_ADDR"`

	Password string `env:"REDIS_PASSWORD"`

	DB int `env:"REDIS_DB" default:"0"`

	// TTL is how long a sku lookup stays cached (default: 10m)
	TTL time.Duration `env:"REDIS_TTL" default:"10m"`

	// Prefix namespaces cache keys (default: priceimport)
	Prefix string `env:"REDIS_PREFIX" default:"priceimport"`
}

// Enabled reports whether a Redis address is configured.
func (c *RedisConfig) Enabled() bool { return c.Addr != "" }

// ImportConfig holds price import settings.
type ImportConfig struct {
	// BunchSize is the number of rows pulled from the source per bunch (default: 500)
	BunchSize int `env:"IMPORT_BUNCH_SIZE" default:"500"`

	// Behavior is append, replace or delete (default: append)
	Behavior string `env:"IMPORT_BEHAVIOR" default:"append"`

	// Scoped requires a store_id column and writes store-level prices (default: true)
	Scoped bool `env:"IMPORT_SCOPED" default:"true"`

	// ValidationStrategy is skip-errors or stop-on-error (default: skip-errors)
	ValidationStrategy string `env:"IMPORT_VALIDATION_STRATEGY" default:"skip-errors"`

	// MaxErrors is the number of invalid rows tolerated before the run drops
	// the remaining rows. 0 disables the ceiling (default: 100)
	MaxErrors int `env:"IMPORT_MAX_ERRORS" default:"100"`

	// MaxErrorPercent terminates once invalid rows exceed this share. 0 disables it.
	MaxErrorPercent float64 `env:"IMPORT_MAX_ERROR_PERCENT" default:"0"`

	// MinRowsForPercent is how many rows must be seen before the percent ceiling applies (default: 100)
	MinRowsForPercent int `env:"IMPORT_MIN_ROWS_FOR_PERCENT" default:"100"`

	// MaxConcurrent is the maximum number of parallel imports (default: 2)
	MaxConcurrent int `env:"IMPORT_MAX_CONCURRENT" default:"2"`

	// MaxWaitTime is how long to wait for an import slot (default: 30s)
	MaxWaitTime time.Duration `env:"IMPORT_MAX_WAIT_TIME" default:"30s"`

	// Timeout is the maximum duration for a single import (default: 30m)
	Timeout time.Duration `env:"IMPORT_TIMEOUT" default:"30m"`

	// MaxFileSize is the maximum accepted upload in bytes (default: 100MB)
	MaxFileSize int64 `env:"IMPORT_MAX_FILE_SIZE" default:"104857600"`

	// WriteStyle is patch (scoped price update) or save (whole product) (default: patch)
	WriteStyle string `env:"IMPORT_WRITE_STYLE" default:"patch"`

	// Retention is how long finished runs stay queryable in memory (default: 1h)
	Retention time.Duration `env:"IMPORT_RETENTION" default:"1h"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error, critical (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
