package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Policy        PolicyConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
	Auth          AuthConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// PolicyConfig holds trust policy document configuration
type PolicyConfig struct {
	// FilePath is the policy document on disk. Empty means start from
	// the built-in default policy.
	FilePath string

	// WatchFile reloads the policy when the file changes
	WatchFile bool
}

// AuditConfig holds audit trail storage configuration
type AuditConfig struct {
	// Backend selects the store: "file" or "postgres"
	Backend string

	// Dir is the audit directory for the file backend
	Dir string

	// DatabaseURL is the connection string for the postgres backend
	DatabaseURL string

	// Retention bounds how long records are kept; zero disables purging
	Retention     time.Duration
	PurgeInterval time.Duration
}

// MetricsConfig holds the metrics collector configuration
type MetricsConfig struct {
	BufferSize       int
	FastThresholdMs  float64
	SlowThresholdMs  float64
	RollingWindow    int
	AlertThresholdMs float64
	Retention        time.Duration
	PurgeInterval    time.Duration
}

// AuthConfig holds admin authentication configuration
type AuthConfig struct {
	// JWTSecret signs admin tokens. Empty disables admin auth, which is
	// only acceptable outside production.
	JWTSecret string
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or text
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	// Load .env if present; real env vars win.
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Policy: PolicyConfig{
			FilePath:  getEnv("POLICY_FILE", ""),
			WatchFile: getEnvAsBool("POLICY_WATCH", true),
		},
		Audit: AuditConfig{
			Backend:       getEnv("AUDIT_BACKEND", "file"),
			Dir:           getEnv("AUDIT_DIR", "audit"),
			DatabaseURL:   getEnv("DATABASE_URL", ""),
			Retention:     getEnvAsDuration("AUDIT_RETENTION", 90*24*time.Hour),
			PurgeInterval: getEnvAsDuration("AUDIT_PURGE_INTERVAL", time.Hour),
		},
		Metrics: MetricsConfig{
			BufferSize:       getEnvAsInt("METRICS_BUFFER_SIZE", 1024),
			FastThresholdMs:  getEnvAsFloat("METRICS_FAST_THRESHOLD_MS", 50),
			SlowThresholdMs:  getEnvAsFloat("METRICS_SLOW_THRESHOLD_MS", 100),
			RollingWindow:    getEnvAsInt("METRICS_ROLLING_WINDOW", 100),
			AlertThresholdMs: getEnvAsFloat("METRICS_ALERT_THRESHOLD_MS", 100),
			Retention:        getEnvAsDuration("METRICS_RETENTION", 7*24*time.Hour),
			PurgeInterval:    getEnvAsDuration("METRICS_PURGE_INTERVAL", time.Hour),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("ADMIN_JWT_SECRET", ""),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	switch c.Audit.Backend {
	case "file":
		if c.Audit.Dir == "" {
			return fmt.Errorf("audit directory is required for the file backend")
		}
	case "postgres":
		if c.Audit.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres audit backend")
		}
	default:
		return fmt.Errorf("unknown audit backend %q", c.Audit.Backend)
	}

	if c.Metrics.SlowThresholdMs < c.Metrics.FastThresholdMs {
		return fmt.Errorf("metrics slow threshold must not be below the fast threshold")
	}

	if c.IsProduction() && c.Auth.JWTSecret == "" {
		return fmt.Errorf("ADMIN_JWT_SECRET is required in production")
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
