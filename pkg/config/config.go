package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/helmsmanhq/helmsman/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Cache    CacheConfig
	License  LicenseConfig

	// Providers is the path to the authentication providers YAML
	// file. Empty disables external authentication.
	Providers string

	LogLevel observability.LogLevel
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	ConnLifetime time.Duration
}

// RedisConfig holds the shared role-membership cache settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// CacheConfig tunes the in-process role membership cache
type CacheConfig struct {
	Size int
	TTL  time.Duration
}

// LicenseConfig locates the installed license
type LicenseConfig struct {
	Path string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("HELMSMAN_HOST", "0.0.0.0"),
			Port:            getEnv("HELMSMAN_PORT", "8080"),
			ReadTimeout:     getEnvDuration("HELMSMAN_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("HELMSMAN_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("HELMSMAN_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("HELMSMAN_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("HELMSMAN_HEALTH_PORT", "9090"),
		},
		Database: DatabaseConfig{
			URL:          getEnv("HELMSMAN_POSTGRES_URL", ""),
			MaxOpenConns: getEnvInt("HELMSMAN_POSTGRES_MAX_CONNS", 25),
			MaxIdleConns: getEnvInt("HELMSMAN_POSTGRES_IDLE_CONNS", 5),
			ConnLifetime: getEnvDuration("HELMSMAN_POSTGRES_CONN_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getEnv("HELMSMAN_REDIS_ADDR", ""),
			Password: getEnv("HELMSMAN_REDIS_PASSWORD", ""),
			DB:       getEnvInt("HELMSMAN_REDIS_DB", 0),
		},
		Cache: CacheConfig{
			Size: getEnvInt("HELMSMAN_ROLE_CACHE_SIZE", 4096),
			TTL:  getEnvDuration("HELMSMAN_ROLE_CACHE_TTL", 30*time.Second),
		},
		License: LicenseConfig{
			Path: getEnv("HELMSMAN_LICENSE_PATH", ""),
		},
		Providers: getEnv("HELMSMAN_PROVIDERS_FILE", ""),
		LogLevel:  observability.ParseLevel(getEnv("HELMSMAN_LOG_LEVEL", "info")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration consistency
func (c *Config) Validate() error {
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("invalid server port %q", c.Server.Port)
	}
	if c.Database.URL == "" {
		return fmt.Errorf("HELMSMAN_POSTGRES_URL is required")
	}
	if c.Database.MaxOpenConns < c.Database.MaxIdleConns {
		return fmt.Errorf("max open connections (%d) must not be below idle connections (%d)",
			c.Database.MaxOpenConns, c.Database.MaxIdleConns)
	}
	if c.Cache.Size <= 0 {
		return fmt.Errorf("role cache size must be positive")
	}
	return nil
}

// Addr returns the host:port the API server binds
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
