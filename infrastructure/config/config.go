package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Change log backends
const (
	BackendMemory   = "memory"
	BackendDynamoDB = "dynamodb"
	BackendPostgres = "postgres"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string
	Environment   string

	// Registry configuration
	SourceName          string
	TimestampResolution time.Duration
	ReferenceTableFile  string

	// Change log configuration
	ChangeLogBackend  string
	ChangeLogSeedFile string
	AWSRegion         string
	ChangeLogTable    string
	LockTable         string
	EventBusName      string
	DatabaseURL       string
	MigrationsEnabled bool

	// Rebuild configuration
	RebuildInterval    time.Duration
	RebuildLockTTL     time.Duration
	RebuildConcurrency int
	RebuildTimeout     time.Duration
	RebuildRateLimit   int

	// Lambda configuration
	IsLambda           bool
	LambdaFunctionName string

	// Logging
	LogLevel string

	// Feature flags
	EnableMetrics bool
	EnableTracing bool
	EnableCORS    bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),

		SourceName:          strings.ToUpper(getEnv("SOURCE_NAME", "TEST")),
		TimestampResolution: getEnvDuration("TIMESTAMP_RESOLUTION", time.Second),
		ReferenceTableFile:  getEnv("REFERENCE_TABLE_FILE", ""),

		ChangeLogBackend:  strings.ToLower(getEnv("CHANGELOG_BACKEND", BackendMemory)),
		ChangeLogSeedFile: getEnv("CHANGELOG_SEED_FILE", ""),
		AWSRegion:         getEnv("AWS_REGION", "us-west-2"),
		ChangeLogTable:    getEnv("CHANGELOG_TABLE", "rnd-changelog"),
		LockTable:         getEnv("LOCK_TABLE", getEnv("CHANGELOG_TABLE", "rnd-changelog")),
		EventBusName:      getEnv("EVENT_BUS_NAME", ""),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		MigrationsEnabled: getEnvBool("MIGRATIONS_ENABLED", true),

		RebuildInterval:    getEnvDuration("REBUILD_INTERVAL", 15*time.Minute),
		RebuildLockTTL:     getEnvDuration("REBUILD_LOCK_TTL", 15*time.Minute),
		RebuildConcurrency: getEnvInt("REBUILD_CONCURRENCY", 8),
		RebuildTimeout:     getEnvDuration("REBUILD_TIMEOUT", 10*time.Minute),
		RebuildRateLimit:   getEnvInt("REBUILD_RATE_LIMIT", 6),

		// Lambda configuration
		IsLambda:           getEnvBool("IS_LAMBDA", false),
		LambdaFunctionName: getEnv("AWS_LAMBDA_FUNCTION_NAME", ""),

		// Logging and features
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		EnableMetrics: getEnvBool("ENABLE_METRICS", false),
		EnableTracing: getEnvBool("ENABLE_TRACING", false),
		EnableCORS:    getEnvBool("ENABLE_CORS", true),
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	if c.SourceName == "" {
		return fmt.Errorf("SOURCE_NAME is required")
	}
	if c.TimestampResolution <= 0 {
		return fmt.Errorf("TIMESTAMP_RESOLUTION must be positive")
	}
	if c.RebuildInterval < 0 {
		return fmt.Errorf("REBUILD_INTERVAL cannot be negative")
	}
	if c.RebuildRateLimit < 0 {
		return fmt.Errorf("REBUILD_RATE_LIMIT cannot be negative")
	}
	if c.RebuildConcurrency < 1 {
		return fmt.Errorf("REBUILD_CONCURRENCY must be at least 1")
	}

	switch c.ChangeLogBackend {
	case BackendMemory:
		if c.IsProduction() {
			return fmt.Errorf("CHANGELOG_BACKEND=memory is not allowed in production")
		}
	case BackendDynamoDB:
		if c.ChangeLogTable == "" {
			return fmt.Errorf("CHANGELOG_TABLE is required")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown CHANGELOG_BACKEND %q", c.ChangeLogBackend)
	}

	if c.IsProduction() && c.EventBusName == "" {
		return fmt.Errorf("EVENT_BUS_NAME is required")
	}

	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// NewLogger builds the zap logger for this environment at LOG_LEVEL
func (c *Config) NewLogger() (*zap.Logger, error) {
	var zapCfg zap.Config
	if c.IsProduction() {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration environment variable with a default value.
// Bare integers are read as seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
