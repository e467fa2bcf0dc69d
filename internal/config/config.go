// Package config provides configuration management for the case scanner.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Fetcher  FetcherConfig
	Crawl    CrawlConfig
	Weekly   WeeklyConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP API server configuration
type ServerConfig struct {
	Host string
	Port string
}

// DatabaseConfig holds all storage backend configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// URL renders the configuration as a connection URL for the migration runner.
func (c *PostgresConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// ClickHouseConfig holds ClickHouse configuration for the observation history
type ClickHouseConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// RedisConfig holds Redis configuration for the crawl checkpoint store
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// FetcherConfig holds registry fetch configuration
type FetcherConfig struct {
	// BaseURL is the root of the public case lookup site.
	BaseURL string
	Timeout time.Duration
	// MaxRetries bounds transparent retries of transient transport failures
	// inside the fetcher. Parse failures and not-found are never retried.
	MaxRetries int
}

// CrawlConfig holds bulk (monthly) crawl configuration
type CrawlConfig struct {
	// StartYear and MaxYear are inclusive 2-digit year bounds for the walk.
	StartYear int
	MaxYear   int
	// StartNumber is the first identifier probed in each year segment.
	StartNumber int
	// MaxConsecutiveSkips ends a year segment once this many probes in a row
	// came back not-found or errored.
	MaxConsecutiveSkips int
	// BatchFlushAttempts is the attempt count (not record count) that
	// triggers a buffer flush.
	BatchFlushAttempts int
	// PolitenessDelay is the fixed pause between consecutive probes.
	PolitenessDelay time.Duration
	// Resume re-reads the Redis checkpoint and continues an interrupted run.
	Resume bool
}

// WeeklyConfig holds subscription re-check configuration
type WeeklyConfig struct {
	PolitenessDelay time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// .env file is optional - environment variables can be set directly
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	config := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnv("SERVER_PORT", "8080"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "case_scanner"),
				User:           getEnv("POSTGRES_USER", "scanner"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 20),
			},
			ClickHouse: ClickHouseConfig{
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "case_scanner"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 10),
			},
		},
		Fetcher: FetcherConfig{
			BaseURL:    getEnv("REGISTRY_BASE_URL", ""),
			Timeout:    getEnvAsDuration("REGISTRY_TIMEOUT", 30*time.Second),
			MaxRetries: getEnvAsInt("REGISTRY_MAX_RETRIES", 2),
		},
		Crawl: CrawlConfig{
			StartYear:           getEnvAsInt("CRAWL_START_YEAR", 15),
			MaxYear:             getEnvAsInt("CRAWL_MAX_YEAR", 26),
			StartNumber:         getEnvAsInt("CRAWL_START_NUMBER", 1),
			MaxConsecutiveSkips: getEnvAsInt("CRAWL_MAX_CONSECUTIVE_SKIPS", 300),
			BatchFlushAttempts:  getEnvAsInt("CRAWL_BATCH_FLUSH_ATTEMPTS", 250),
			PolitenessDelay:     getEnvAsDuration("CRAWL_POLITENESS_DELAY", 400*time.Millisecond),
			Resume:              getEnvAsBool("CRAWL_RESUME", true),
		},
		Weekly: WeeklyConfig{
			PolitenessDelay: getEnvAsDuration("WEEKLY_POLITENESS_DELAY", 400*time.Millisecond),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return config, nil
}

// ValidateCrawl checks the preconditions of a bulk crawl run. A violation is
// a fatal configuration error: the run must not start.
func (c *Config) ValidateCrawl() error {
	if c.Fetcher.BaseURL == "" {
		return fmt.Errorf("REGISTRY_BASE_URL is required")
	}
	if c.Crawl.StartYear < 0 || c.Crawl.StartYear > 99 || c.Crawl.MaxYear < 0 || c.Crawl.MaxYear > 99 {
		return fmt.Errorf("crawl years must be 2-digit values, got start=%d max=%d", c.Crawl.StartYear, c.Crawl.MaxYear)
	}
	if c.Crawl.StartYear > c.Crawl.MaxYear {
		return fmt.Errorf("CRAWL_START_YEAR (%d) exceeds CRAWL_MAX_YEAR (%d)", c.Crawl.StartYear, c.Crawl.MaxYear)
	}
	if c.Crawl.StartNumber < 1 {
		return fmt.Errorf("CRAWL_START_NUMBER must be positive, got %d", c.Crawl.StartNumber)
	}
	if c.Crawl.MaxConsecutiveSkips < 1 {
		return fmt.Errorf("CRAWL_MAX_CONSECUTIVE_SKIPS must be positive, got %d", c.Crawl.MaxConsecutiveSkips)
	}
	if c.Crawl.BatchFlushAttempts < 1 {
		return fmt.Errorf("CRAWL_BATCH_FLUSH_ATTEMPTS must be positive, got %d", c.Crawl.BatchFlushAttempts)
	}
	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool gets an environment variable as a boolean with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
