package app

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/kelseyhightower/envconfig"

	"github.com/backoffice/backoffice/internal/platform/cache"
	"github.com/backoffice/backoffice/internal/platform/db"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	JWTSecret          string `envconfig:"JWT_SECRET_KEY" required:"true"`
	JWTRefreshSecret   string `envconfig:"JWT_REFRESH_SECRET_KEY" required:"true"`
	JWTDuration        TTL    `envconfig:"JWT_DURATION" required:"true"`
	JWTRefreshDuration TTL    `envconfig:"JWT_REFRESH_TOKEN_TIME" required:"true"`

	RedisConfig

	DBHost            string `envconfig:"DB_HOST" required:"true"`
	DBPort            int    `envconfig:"DB_PORT" required:"true"`
	DBUser            string `envconfig:"DB_USER" required:"true"`
	DBPassword        string `envconfig:"DB_PASSWORD" required:"true"`
	DBName            string `envconfig:"DB_NAME" required:"true"`
	DBConnectionLimit int32  `envconfig:"DB_CONNECTION_LIMIT" required:"true"`
	DBSSLMode         string `envconfig:"DB_SSLMODE"`

	LoginRateLimit int `envconfig:"LOGIN_RATE_LIMIT" default:"10"`

	SMTPConfig
}

// RedisConfig locates the Redis instance shared by sessions and the task queue.
type RedisConfig struct {
	RedisHost       string `envconfig:"REDIS_HOST"`
	RedisPort       int    `envconfig:"REDIS_PORT"`
	RedisSocket     string `envconfig:"REDIS_SOCKET"`
	RedisPassword   string `envconfig:"REDIS_PASSWORD"`
	RedisDB         int    `envconfig:"REDIS_DB" default:"0"`
	RedisExpiration int    `envconfig:"REDIS_EXPIRATION" default:"0"`
}

// SMTPConfig addresses the relay used by notification jobs.
type SMTPConfig struct {
	SMTPHost string `envconfig:"SMTP_HOST" default:"127.0.0.1"`
	SMTPPort int    `envconfig:"SMTP_PORT" default:"1025"`
	SMTPFrom string `envconfig:"SMTP_FROM" default:"no-reply@backoffice.local"`
}

// WorkerConfig is the subset of settings the background worker needs.
// It never reads JWT or database variables.
type WorkerConfig struct {
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	LogFormat   string `envconfig:"LOG_FORMAT" default:"pretty"`
	MetricsAddr string `envconfig:"WORKER_METRICS_ADDR" default:":9091"`
	Concurrency int    `envconfig:"WORKER_CONCURRENCY" default:"10"`

	RedisConfig
	SMTPConfig
}

// TTL is a token lifetime. It accepts Go durations ("15m"), days ("7d") and bare seconds ("3600").
type TTL time.Duration

// Decode implements envconfig.Decoder.
func (t *TTL) Decode(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return errors.New("empty duration")
	}
	if days, ok := strings.CutSuffix(value, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return fmt.Errorf("invalid day count %q", value)
		}
		*t = TTL(time.Duration(n) * 24 * time.Hour)
		return nil
	}
	if n, err := strconv.Atoi(value); err == nil {
		*t = TTL(time.Duration(n) * time.Second)
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration %q", value)
	}
	*t = TTL(d)
	return nil
}

// Duration returns the TTL as a time.Duration.
func (t TTL) Duration() time.Duration { return time.Duration(t) }

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET_KEY must not be empty")
	}
	if c.JWTRefreshSecret == "" {
		return errors.New("JWT_REFRESH_SECRET_KEY must not be empty")
	}
	if c.JWTSecret == c.JWTRefreshSecret {
		return errors.New("JWT_SECRET_KEY and JWT_REFRESH_SECRET_KEY must differ")
	}
	if c.JWTDuration <= 0 {
		return errors.New("JWT_DURATION must be positive")
	}
	if c.JWTRefreshDuration <= 0 {
		return errors.New("JWT_REFRESH_TOKEN_TIME must be positive")
	}
	if err := c.RedisConfig.validate(); err != nil {
		return err
	}
	if c.DBConnectionLimit <= 0 {
		return errors.New("DB_CONNECTION_LIMIT must be positive")
	}
	if c.LoginRateLimit <= 0 {
		return errors.New("LOGIN_RATE_LIMIT must be positive")
	}
	return nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// LoadWorkerConfig reads the worker settings from environment variables.
func LoadWorkerConfig() (*WorkerConfig, error) {
	var cfg WorkerConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.RedisConfig.validate(); err != nil {
		return nil, err
	}
	if cfg.Concurrency <= 0 {
		return nil, errors.New("WORKER_CONCURRENCY must be positive")
	}
	return &cfg, nil
}

// IsProduction returns true when the worker runs in production.
func (c *WorkerConfig) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

func (c RedisConfig) validate() error {
	if c.RedisSocket == "" {
		if c.RedisHost == "" {
			return errors.New("REDIS_HOST is required unless REDIS_SOCKET is set")
		}
		if c.RedisPort <= 0 {
			return errors.New("REDIS_PORT is required unless REDIS_SOCKET is set")
		}
	}
	if c.RedisExpiration < 0 {
		return errors.New("REDIS_EXPIRATION must not be negative")
	}
	return nil
}

// SessionTTL is the lifetime of a stored session; zero means no expiry.
func (c RedisConfig) SessionTTL() time.Duration {
	return time.Duration(c.RedisExpiration) * time.Second
}

// DBOptions returns the relational store settings.
func (c *Config) DBOptions() db.Options {
	return db.Options{
		Host:            c.DBHost,
		Port:            c.DBPort,
		User:            c.DBUser,
		Password:        c.DBPassword,
		Name:            c.DBName,
		SSLMode:         c.DBSSLMode,
		ConnectionLimit: c.DBConnectionLimit,
	}
}

// RedisOptions returns the session cache settings.
func (c RedisConfig) RedisOptions() cache.Options {
	return cache.Options{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPassword,
		Socket:   c.RedisSocket,
		DB:       c.RedisDB,
	}
}

// QueueRedisOpt points the task queue at the same Redis as the session store.
func (c RedisConfig) QueueRedisOpt() asynq.RedisClientOpt {
	opts := c.RedisOptions().ClientOptions()
	return asynq.RedisClientOpt{
		Network:  opts.Network,
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}
}
