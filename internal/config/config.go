package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config is the unified runtime configuration, loaded from environment
// variables with an optional .env file.
type Config struct {
	// Postgres
	PGHost     string
	PGPort     int
	PGDatabase string
	PGUser     string
	PGPassword string
	PGPoolSize int

	// Redis pub/sub channel for cross-process alert events. Empty disables
	// the external channel; in-process delivery still works.
	RedisURL string

	// Auth
	JWTSecret     string
	PasswordSalt  string
	AdminPassword string

	// Listeners
	TrapPort int
	HTTPPort int
	BindHost string

	// Poll ingestor
	PollWorkers      int
	PollTickInterval time.Duration

	// Shutdown
	ShutdownTimeout time.Duration

	// Logging
	LogLevel  string
	LogFormat string

	// CORS
	AllowedOrigins string
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present (it never overrides real env vars).
func Load() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("Loaded environment from .env file")
	}

	cfg := &Config{
		PGHost:           envString("PG_HOST", "localhost"),
		PGPort:           envInt("PG_PORT", 5432),
		PGDatabase:       envString("PG_DATABASE", "opsconductor"),
		PGUser:           envString("PG_USER", "opsconductor"),
		PGPassword:       envString("PG_PASSWORD", ""),
		PGPoolSize:       envInt("PG_POOL_SIZE", 20),
		RedisURL:         envString("REDIS_URL", ""),
		JWTSecret:        envString("JWT_SECRET", ""),
		PasswordSalt:     envString("PASSWORD_SALT", ""),
		AdminPassword:    envString("ADMIN_PASSWORD", ""),
		TrapPort:         envInt("TRAP_PORT", 162),
		HTTPPort:         envInt("HTTP_PORT", 5000),
		BindHost:         envString("BIND_HOST", "0.0.0.0"),
		PollWorkers:      envInt("POLL_WORKERS", 200),
		PollTickInterval: envDuration("POLL_TICK_INTERVAL", time.Minute),
		ShutdownTimeout:  envDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		LogLevel:         envString("LOG_LEVEL", "info"),
		LogFormat:        envString("LOG_FORMAT", "auto"),
		AllowedOrigins:   envString("ALLOWED_ORIGINS", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.PGDatabase == "" || c.PGUser == "" {
		return fmt.Errorf("PG_DATABASE and PG_USER are required")
	}
	if c.TrapPort < 0 || c.TrapPort > 65535 {
		return fmt.Errorf("TRAP_PORT out of range: %d", c.TrapPort)
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("HTTP_PORT out of range: %d", c.HTTPPort)
	}
	if c.PGPoolSize <= 0 {
		c.PGPoolSize = 20
	}
	if c.PollWorkers <= 0 {
		c.PollWorkers = 200
	}
	return nil
}

// PostgresDSN builds a pgx connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}

// TrapAddr is the UDP listen address for the trap ingestor.
func (c *Config) TrapAddr() string {
	return fmt.Sprintf("%s:%d", c.BindHost, c.TrapPort)
}

// HTTPAddr is the TCP listen address for the API server.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.BindHost, c.HTTPPort)
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("Invalid integer in environment, using default")
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		// Allow plain seconds for operator convenience.
		if n, nerr := strconv.Atoi(v); nerr == nil {
			return time.Duration(n) * time.Second
		}
		log.Warn().Str("key", key).Str("value", v).Msg("Invalid duration in environment, using default")
		return fallback
	}
	return d
}
