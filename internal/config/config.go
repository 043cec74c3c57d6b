package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"
)

// ConfigError reports a missing or malformed environment variable.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Key, e.Reason)
}

type Config struct {
	DatabaseURL    string
	AdminToken     string
	APIPort        string
	FrontendOrigin string
	Location       *time.Location
	ChunkSize      int
	MaxUploadBytes int64
	WritePolicy    string

	PoolSize          int
	MaxOverflow       int
	PoolRecycle       time.Duration
	HealthCheckPeriod time.Duration

	LogLevel    string
	LogEncoding string
}

// New reads the process environment once. Business code receives the
// resulting struct and never looks at the environment itself.
func New() (*Config, error) {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		databaseURL = os.Getenv("DB_URL")
	}
	if databaseURL == "" {
		return nil, &ConfigError{Key: "DATABASE_URL", Reason: "environment variable is not set"}
	}

	cfg := &Config{
		DatabaseURL:       databaseURL,
		AdminToken:        os.Getenv("ADMIN_TOKEN"),
		APIPort:           getEnv("API_PORT", "8080"),
		FrontendOrigin:    getEnv("FRONTEND_ORIGIN", "*"),
		ChunkSize:         1000,
		MaxUploadBytes:    32 << 20,
		WritePolicy:       getEnv("WRITE_POLICY", "merge"),
		PoolSize:          5,
		MaxOverflow:       5,
		PoolRecycle:       30 * time.Minute,
		HealthCheckPeriod: time.Minute,
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogEncoding:       getEnv("LOG_ENCODING", "json"),
	}

	zone := getEnv("INGEST_TIMEZONE", "America/Lima")
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, &ConfigError{Key: "INGEST_TIMEZONE", Reason: fmt.Sprintf("unknown time zone '%s'", zone)}
	}
	cfg.Location = loc

	cfg.ChunkSize, err = getEnvAsInt("INGEST_CHUNK_SIZE", cfg.ChunkSize)
	if err != nil {
		return nil, err
	}
	if cfg.ChunkSize <= 0 {
		return nil, &ConfigError{Key: "INGEST_CHUNK_SIZE", Reason: "must be greater than zero"}
	}

	maxUpload, err := getEnvAsInt("MAX_UPLOAD_BYTES", int(cfg.MaxUploadBytes))
	if err != nil {
		return nil, err
	}
	cfg.MaxUploadBytes = int64(maxUpload)

	cfg.PoolSize, err = getEnvAsInt("DB_POOL_SIZE", cfg.PoolSize)
	if err != nil {
		return nil, err
	}

	cfg.MaxOverflow, err = getEnvAsInt("DB_MAX_OVERFLOW", cfg.MaxOverflow)
	if err != nil {
		return nil, err
	}

	cfg.PoolRecycle, err = getEnvAsDuration("DB_POOL_RECYCLE", cfg.PoolRecycle)
	if err != nil {
		return nil, err
	}

	cfg.HealthCheckPeriod, err = getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", cfg.HealthCheckPeriod)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// MaxConns is the hard ceiling of the connection pool: the steady pool plus
// the overflow allowed under load.
func (c *Config) MaxConns() int32 {
	return int32(c.PoolSize + c.MaxOverflow)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, &ConfigError{Key: key, Reason: fmt.Sprintf("expected an integer, got '%s'", valueStr)}
	}

	return value, nil
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return 0, &ConfigError{Key: key, Reason: fmt.Sprintf("expected a duration, got '%s'", valueStr)}
	}

	return value, nil
}
