// Package config reads service settings from the environment. A .env file is
// picked up by the godotenv autoload import in each cmd.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jason-s-yu/matchledger/internal/rating"
	"github.com/sirupsen/logrus"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendBolt     = "bolt"
)

type RedisConfig struct {
	Addr      string
	DB        int
	Namespace string
}

type PostgresConfig struct {
	User     string
	Password string
	Host     string
	Port     string
	Database string
}

// ConnString builds the postgres:// URL pgx expects.
func (p PostgresConfig) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", p.User, p.Password, p.Host, p.Port, p.Database)
}

type Config struct {
	Port     string
	LogLevel logrus.Level

	StoreBackend string
	Redis        RedisConfig
	Postgres     PostgresConfig
	BoltPath     string

	// EventsQueue is the Redis list ledger events go to; empty disables publishing.
	EventsQueue         string
	HistorianBatchSize  int
	HistorianFlushDelay time.Duration

	SinglesK        float64
	SweepMultiplier float64

	TokenExpire time.Duration
	// Key files for signing session tokens; a fresh key pair is generated when empty.
	AuthPrivateKeyPath string
	AuthPublicKeyPath  string
}

// Load reads the environment and validates the result.
func Load() (*Config, error) {
	level, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	tokenExpire, err := parseExpire(os.Getenv("TOKEN_EXPIRE_TIME"))
	if err != nil {
		return nil, fmt.Errorf("TOKEN_EXPIRE_TIME: %w", err)
	}

	cfg := &Config{
		Port:         getEnv("PORT", "8080"),
		LogLevel:     level,
		StoreBackend: getEnv("STORE_BACKEND", BackendMemory),
		Redis: RedisConfig{
			Addr:      getEnv("REDIS_ADDR", "localhost:6379"),
			DB:        getEnvInt("REDIS_DB", 0),
			Namespace: getEnv("REDIS_NAMESPACE", "matchledger:"),
		},
		Postgres: PostgresConfig{
			User:     os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			Host:     getEnv("PG_HOST", "localhost"),
			Port:     getEnv("PG_PORT", "5432"),
			Database: os.Getenv("PG_DATABASE"),
		},
		BoltPath:            getEnv("BOLT_PATH", "matchledger.db"),
		EventsQueue:         os.Getenv("LEDGER_EVENTS_QUEUE"),
		HistorianBatchSize:  getEnvInt("HISTORIAN_BATCH_SIZE", 20),
		HistorianFlushDelay: time.Duration(getEnvInt("HISTORIAN_FLUSH_MS", 500)) * time.Millisecond,
		SinglesK:            getEnvFloat("RATING_K_1V1", rating.DefaultSinglesK),
		SweepMultiplier:     getEnvFloat("RATING_SWEEP_MULTIPLIER", rating.DefaultSweepMultiplier),
		TokenExpire:         tokenExpire,
		AuthPrivateKeyPath:  os.Getenv("AUTH_PRIVATE_KEY_PATH"),
		AuthPublicKeyPath:   os.Getenv("AUTH_PUBLIC_KEY_PATH"),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case BackendMemory, BackendRedis, BackendPostgres, BackendBolt:
	default:
		return fmt.Errorf("STORE_BACKEND: unknown backend %q", c.StoreBackend)
	}
	if c.SinglesK <= 0 {
		return fmt.Errorf("RATING_K_1V1 must be positive, got %v", c.SinglesK)
	}
	if c.SweepMultiplier < 1 {
		return fmt.Errorf("RATING_SWEEP_MULTIPLIER must be at least 1, got %v", c.SweepMultiplier)
	}
	if (c.AuthPrivateKeyPath == "") != (c.AuthPublicKeyPath == "") {
		return fmt.Errorf("AUTH_PRIVATE_KEY_PATH and AUTH_PUBLIC_KEY_PATH must be set together")
	}
	if c.HistorianBatchSize <= 0 {
		return fmt.Errorf("HISTORIAN_BATCH_SIZE must be positive, got %d", c.HistorianBatchSize)
	}
	return nil
}

// Calculator returns the rating calculator configured for this deployment.
func (c *Config) Calculator() rating.Calculator {
	return rating.Calculator{
		SinglesK:        c.SinglesK,
		SweepMultiplier: c.SweepMultiplier,
	}
}

// parseExpire accepts "never", "0", "" (no expiry) or a time.Duration.
func parseExpire(s string) (time.Duration, error) {
	if s == "never" || s == "0" || s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt is a helper to parse an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func getEnvFloat(key string, def float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return v
}
