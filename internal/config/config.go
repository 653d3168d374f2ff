package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Remote ticket store (the spreadsheet endpoint)
	Remote RemoteConfig

	// Desk behaviour shared by every workspace
	Desk DeskConfig

	// Snapshot cache and preference storage
	Cache CacheConfig

	// Redis backend for the cache
	Redis RedisConfig

	// Database configuration (sheet stub only)
	Database DatabaseConfig

	// Rate limiting configuration
	RateLimit RateLimitConfig

	// WebSocket configuration
	WebSocket WebSocketConfig

	// Logging configuration
	Logging LoggingConfig

	// Application metadata
	App AppConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     []string
}

// RemoteConfig points at the spreadsheet endpoint.
type RemoteConfig struct {
	URL     string
	Timeout time.Duration
}

// DeskConfig holds workspace timing and defaults.
type DeskConfig struct {
	FilterSwitchDelay     time.Duration
	SlowLoadAfter         time.Duration
	TechnicianName        string
	WorkspaceIdleTTL      time.Duration
	WorkspaceCleanupEvery time.Duration
	ClientCookieName      string
	ClientCookieMaxAge    time.Duration
	// StrictCreate reverts and reports a created ticket whose save failed,
	// instead of keeping it locally.
	StrictCreate bool
	// Timezone is the IANA zone createdAt and completedAt stamps are
	// written in.
	Timezone string
}

// Location resolves Timezone. Validate has already rejected unknown zones,
// so a failure here falls back to UTC.
func (d DeskConfig) Location() *time.Location {
	loc, err := time.LoadLocation(d.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// CacheConfig holds snapshot cache settings
type CacheConfig struct {
	Backend   string // memory, redis
	Key       string
	FilterKey string
	Duration  time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL             string
	MigrationsURL   string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	BurstSize         int
}

// WebSocketConfig holds WebSocket configuration
type WebSocketConfig struct {
	AllowedOrigins  []string
	ReadBufferSize  int
	WriteBufferSize int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string
	Version     string
	Environment string
}

// Load loads the desk configuration from environment variables and
// validates it.
func Load() (*Config, error) {
	cfg := load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadSheetStub loads the configuration used by the sheet stub, which
// needs a database instead of a remote endpoint.
func LoadSheetStub() (*Config, error) {
	cfg := load()
	if err := cfg.ValidateSheetStub(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func load() *Config {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	return &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", ":8080"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getDurationOrDefault("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			CORSOrigins:     getStringSliceOrDefault("CORS_ALLOWED_ORIGINS", []string{}),
		},
		Remote: RemoteConfig{
			URL:     os.Getenv("REMOTE_URL"),
			Timeout: getDurationOrDefault("REMOTE_TIMEOUT", 15*time.Second),
		},
		Desk: DeskConfig{
			FilterSwitchDelay:     getDurationOrDefault("FILTER_SWITCH_DELAY", 100*time.Millisecond),
			SlowLoadAfter:         getDurationOrDefault("SLOW_LOAD_AFTER", 8*time.Second),
			TechnicianName:        getEnvOrDefault("DEFAULT_TECHNICIAN_NAME", "ฟลุ๊ก ศรัณย์ภัทร"),
			WorkspaceIdleTTL:      getDurationOrDefault("WORKSPACE_IDLE_TTL", 30*time.Minute),
			WorkspaceCleanupEvery: getDurationOrDefault("WORKSPACE_CLEANUP_INTERVAL", time.Minute),
			ClientCookieName:      getEnvOrDefault("CLIENT_COOKIE_NAME", "repair_client"),
			ClientCookieMaxAge:    getDurationOrDefault("CLIENT_COOKIE_MAX_AGE", 365*24*time.Hour),
			StrictCreate:          getBoolOrDefault("STRICT_CREATE", false),
			Timezone:              getEnvOrDefault("DESK_TIMEZONE", "Asia/Bangkok"),
		},
		Cache: CacheConfig{
			Backend:   strings.ToLower(getEnvOrDefault("CACHE_BACKEND", "memory")),
			Key:       getEnvOrDefault("CACHE_KEY", "repair_cache"),
			FilterKey: getEnvOrDefault("FILTER_STORAGE_KEY", "status_filter"),
			Duration:  getDurationOrDefault("CACHE_DURATION", 10*time.Minute),
		},
		Redis: RedisConfig{
			Addr:      getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password:  os.Getenv("REDIS_PASSWORD"),
			DB:        getIntOrDefault("REDIS_DB", 0),
			KeyPrefix: getEnvOrDefault("REDIS_KEY_PREFIX", "repairdesk:"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MigrationsURL:   getEnvOrDefault("MIGRATIONS_URL", "file://migrations"),
			MaxOpenConns:    getIntOrDefault("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntOrDefault("DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: getDurationOrDefault("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getDurationOrDefault("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		RateLimit: RateLimitConfig{
			Enabled:           getBoolOrDefault("RATE_LIMIT_ENABLED", true),
			RequestsPerSecond: getFloatOrDefault("RATE_LIMIT_RPS", 10),
			BurstSize:         getIntOrDefault("RATE_LIMIT_BURST", 20),
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins:  getStringSliceOrDefault("WS_ALLOWED_ORIGINS", []string{}),
			ReadBufferSize:  getIntOrDefault("WS_READ_BUFFER_SIZE", 1024),
			WriteBufferSize: getIntOrDefault("WS_WRITE_BUFFER_SIZE", 1024),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
		App: AppConfig{
			Name:        getEnvOrDefault("APP_NAME", "repair-desk"),
			Version:     getEnvOrDefault("APP_VERSION", "dev"),
			Environment: getEnvOrDefault("APP_ENV", "development"),
		},
	}
}

// Validate validates the desk configuration
func (c *Config) Validate() error {
	var errs []string

	// Required fields
	if c.Remote.URL == "" {
		errs = append(errs, "REMOTE_URL is required")
	} else if u, err := url.Parse(c.Remote.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, "REMOTE_URL must be an absolute URL")
	}

	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, "REDIS_ADDR is required when CACHE_BACKEND=redis")
		}
	default:
		errs = append(errs, "CACHE_BACKEND must be memory or redis")
	}

	// Logical validations
	if c.Remote.Timeout <= 0 {
		errs = append(errs, "REMOTE_TIMEOUT must be positive")
	}
	if c.Cache.Duration <= 0 {
		errs = append(errs, "CACHE_DURATION must be positive")
	}
	if c.Cache.Key == "" || c.Cache.FilterKey == "" {
		errs = append(errs, "CACHE_KEY and FILTER_STORAGE_KEY cannot be empty")
	}
	if c.Desk.ClientCookieName == "" {
		errs = append(errs, "CLIENT_COOKIE_NAME cannot be empty")
	}
	if c.Desk.Timezone == "" {
		errs = append(errs, "DESK_TIMEZONE cannot be empty")
	} else if _, err := time.LoadLocation(c.Desk.Timezone); err != nil {
		errs = append(errs, fmt.Sprintf("DESK_TIMEZONE %q is not a known time zone", c.Desk.Timezone))
	}

	// Security validations
	if c.IsProduction() && len(c.WebSocket.AllowedOrigins) == 0 {
		errs = append(errs, "WS_ALLOWED_ORIGINS must be set in production")
	}

	return joinErrors(errs)
}

// ValidateSheetStub validates the settings the sheet stub needs.
func (c *Config) ValidateSheetStub() error {
	var errs []string

	if c.Database.URL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		errs = append(errs, "DB_MAX_IDLE_CONNS cannot be greater than DB_MAX_OPEN_CONNS")
	}

	return joinErrors(errs)
}

func joinErrors(errs []string) error {
	if len(errs) > 0 {
		return errors.New("configuration errors:\n  - " + strings.Join(errs, "\n  - "))
	}
	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// Helper functions

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getDurationOrDefault also accepts a bare integer as milliseconds, the unit
// the desk's timings were first expressed in.
func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// String returns a redacted string representation of the config (safe for logging)
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Server: %s, Remote: %s, Cache: %s/%s, DB: %s, RateLimit: %v, Environment: %s}",
		c.Server.Port,
		redactQuery(c.Remote.URL),
		c.Cache.Backend,
		c.Cache.Duration,
		redactURL(c.Database.URL),
		c.RateLimit.Enabled,
		c.App.Environment,
	)
}

// redactURL redacts sensitive parts of a database URL
func redactURL(url string) string {
	if url == "" {
		return ""
	}
	if idx := strings.Index(url, "@"); idx > 0 {
		return "[REDACTED]" + url[idx:]
	}
	return "[REDACTED]"
}

// redactQuery drops the query string, where script endpoints carry keys.
func redactQuery(raw string) string {
	if idx := strings.Index(raw, "?"); idx >= 0 {
		return raw[:idx] + "?[REDACTED]"
	}
	return raw
}
