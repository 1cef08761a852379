package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

var (
	ErrMissingDatabaseURL = errors.New("DATABASE_URL is required for the postgres storage driver")
	ErrUnknownStorage     = errors.New("STORAGE_DRIVER must be postgres or memory")
	ErrMissingRedisURL    = errors.New("REDIS_URL is required when rate limiting is enabled")
	ErrMissingBrokers     = errors.New("KAFKA_BROKERS is required when kafka is enabled")
	ErrInvalidRateLimit   = errors.New("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive")
)

// Config represents application configuration
type Config struct {
	Server      ServerConfig      `json:"server"`
	Database    DatabaseConfig    `json:"database"`
	Logging     LoggingConfig     `json:"logging"`
	Security    SecurityConfig    `json:"security"`
	Reservation ReservationConfig `json:"reservation"`
	Kafka       KafkaConfig       `json:"kafka"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Port            string        `json:"port"`
	Host            string        `json:"host"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	Environment     string        `json:"environment"`
}

// DatabaseConfig represents storage configuration
type DatabaseConfig struct {
	Driver          string        `json:"driver"`
	URL             string        `json:"-"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	ConnectTimeout  time.Duration `json:"connect_timeout"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"` // json, text
}

// SecurityConfig represents CORS and rate limit configuration
type SecurityConfig struct {
	CORSEnabled       bool          `json:"cors_enabled"`
	CORSOrigins       []string      `json:"cors_origins"`
	RedisURL          string        `json:"-"`
	RateLimitEnabled  bool          `json:"rate_limit_enabled"`
	RateLimitRequests int           `json:"rate_limit_requests"`
	RateLimitWindow   time.Duration `json:"rate_limit_window"`
}

// ReservationConfig tunes admission behaviour
type ReservationConfig struct {
	SerializeAdmission bool `json:"serialize_admission"`
	RecheckOnUpdate    bool `json:"recheck_on_update"`
}

// KafkaConfig represents event publishing configuration
type KafkaConfig struct {
	Enabled      bool          `json:"enabled"`
	Brokers      []string      `json:"brokers"`
	Topic        string        `json:"topic"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// Load reads an optional .env file, then environment variables over defaults
func Load() (*Config, error) {
	// .env is optional; real environment variables take precedence
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			Environment:     getEnv("ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			Driver:          strings.ToLower(getEnv("STORAGE_DRIVER", StorageDriverPostgres)),
			URL:             getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Minute),
			ConnectTimeout:  getEnvDuration("DB_CONNECT_TIMEOUT", 10*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Security: SecurityConfig{
			CORSEnabled:       getEnvBool("CORS_ENABLED", false),
			CORSOrigins:       getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			RedisURL:          getEnv("REDIS_URL", ""),
			RateLimitEnabled:  getEnvBool("RATE_LIMIT_ENABLED", false),
			RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 60),
			RateLimitWindow:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		Reservation: ReservationConfig{
			SerializeAdmission: getEnvBool("SERIALIZE_ADMISSION", true),
			RecheckOnUpdate:    getEnvBool("RECHECK_ON_UPDATE", false),
		},
		Kafka: KafkaConfig{
			Enabled:      getEnvBool("KAFKA_ENABLED", false),
			Brokers:      getEnvSlice("KAFKA_BROKERS", nil),
			Topic:        getEnv("KAFKA_TOPIC", "reservations.events"),
			WriteTimeout: getEnvDuration("KAFKA_WRITE_TIMEOUT", 5*time.Second),
		},
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	switch c.Database.Driver {
	case StorageDriverPostgres:
		if c.Database.URL == "" {
			return ErrMissingDatabaseURL
		}
	case StorageDriverMemory:
	default:
		return fmt.Errorf("%w: got %q", ErrUnknownStorage, c.Database.Driver)
	}

	if c.Security.RateLimitEnabled {
		if c.Security.RedisURL == "" {
			return ErrMissingRedisURL
		}
		if c.Security.RateLimitRequests <= 0 || c.Security.RateLimitWindow <= 0 {
			return ErrInvalidRateLimit
		}
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return ErrMissingBrokers
	}

	return nil
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// Helper functions for environment variables

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
