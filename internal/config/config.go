package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Queue    QueueConfig
	Redis    RedisConfig
	Click    ClickConfig
	Payment  PaymentConfig
	Log      LogConfig
	Feed     FeedConfig
}

type AppConfig struct {
	Env           string
	Port          string
	PublicBaseURL string
}

type DatabaseConfig struct {
	URL      string // overrides the individual parts when set
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN builds the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

type QueueConfig struct {
	AMQPURL string // empty selects the in-memory queue
	Workers int
}

type RedisConfig struct {
	Addr     string // empty selects the in-memory deduper
	Password string
	DB       int
}

type ClickConfig struct {
	DedupeWindow time.Duration
}

type PaymentConfig struct {
	SuccessRate float64
	Delay       time.Duration
	MinTopUp    decimal.Decimal
	MaxTopUp    decimal.Decimal
}

type LogConfig struct {
	Level  string
	Format string
	Output string
}

type FeedConfig struct {
	Capacity int
}

// Load reads .env (when present) and then the process environment.
func Load() (*Config, error) {
	// .env is optional; OS variables win either way
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function so tests can inject values.
func FromEnv(getenv func(string) string) (*Config, error) {
	e := env{get: getenv}

	cfg := &Config{
		App: AppConfig{
			Env:           e.str("APP_ENV", "development"),
			Port:          e.str("HTTP_PORT", "8080"),
			PublicBaseURL: strings.TrimRight(e.str("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		},
		Database: DatabaseConfig{
			URL:      e.str("DATABASE_URL", ""),
			Host:     e.str("DB_HOST", "localhost"),
			Port:     e.str("DB_PORT", "5432"),
			User:     e.str("DB_USER", "postgres"),
			Password: e.str("DB_PASSWORD", ""),
			Name:     e.str("DB_NAME", "clickreward"),
			SSLMode:  e.str("DB_SSLMODE", "disable"),
		},
		Queue: QueueConfig{
			AMQPURL: e.str("AMQP_URL", ""),
			Workers: e.int("WORKER_CONCURRENCY", 4),
		},
		Redis: RedisConfig{
			Addr:     e.str("REDIS_ADDR", ""),
			Password: e.str("REDIS_PASSWORD", ""),
			DB:       e.int("REDIS_DB", 0),
		},
		Click: ClickConfig{
			DedupeWindow: e.duration("CLICK_DEDUPE_WINDOW", 24*time.Hour),
		},
		Payment: PaymentConfig{
			SuccessRate: e.float("PAYMENT_SUCCESS_RATE", 0.95),
			Delay:       e.duration("PAYMENT_DELAY", 1500*time.Millisecond),
			MinTopUp:    decimal.NewFromInt(1000),
			MaxTopUp:    decimal.NewFromInt(10000000),
		},
		Log: LogConfig{
			Level:  e.str("LOG_LEVEL", "info"),
			Format: e.str("LOG_FORMAT", "console"),
			Output: e.str("LOG_OUTPUT", "stdout"),
		},
		Feed: FeedConfig{
			Capacity: e.int("FEED_CAPACITY", 50),
		},
	}

	if len(e.errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(e.errs, "; "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that cannot be defaulted.
func (c *Config) Validate() error {
	if c.Payment.SuccessRate < 0 || c.Payment.SuccessRate > 1 {
		return fmt.Errorf("PAYMENT_SUCCESS_RATE must be between 0 and 1, got %v", c.Payment.SuccessRate)
	}
	if c.Click.DedupeWindow <= 0 {
		return fmt.Errorf("CLICK_DEDUPE_WINDOW must be positive")
	}
	if c.Queue.Workers <= 0 {
		return fmt.Errorf("WORKER_CONCURRENCY must be positive")
	}
	if c.Feed.Capacity <= 0 {
		return fmt.Errorf("FEED_CAPACITY must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

type env struct {
	get  func(string) string
	errs []string
}

func (e *env) str(key, def string) string {
	if v := strings.TrimSpace(e.get(key)); v != "" {
		return v
	}
	return def
}

func (e *env) int(key string, def int) int {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Sprintf("%s: %v", key, err))
		return def
	}
	return n
}

func (e *env) float(key string, def float64) float64 {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Sprintf("%s: %v", key, err))
		return def
	}
	return f
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(e.get(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Sprintf("%s: %v", key, err))
		return def
	}
	return d
}
