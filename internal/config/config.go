package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix is prepended to every variable name, e.g. TENDERSYNC_PORT.
const EnvPrefix = "TENDERSYNC"

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	IdentityURL     string `envconfig:"IDENTITY_URL"`
	IdentityAnonKey string `envconfig:"IDENTITY_ANON_KEY"`

	CPVMaxCodes       int           `envconfig:"CPV_MAX_CODES" default:"5"`
	CPVMinQueryLength int           `envconfig:"CPV_MIN_QUERY_LENGTH" default:"3"`
	CPVInlineLimit    int           `envconfig:"CPV_INLINE_LIMIT" default:"10"`
	CPVSearchLimit    int           `envconfig:"CPV_SEARCH_LIMIT" default:"20"`
	CPVSearchTimeout  time.Duration `envconfig:"CPV_SEARCH_TIMEOUT" default:"5s"`
	CPVCacheTTL       time.Duration `envconfig:"CPV_CACHE_TTL" default:"5m"`

	SessionCacheTTL time.Duration `envconfig:"SESSION_CACHE_TTL" default:"1m"`

	SearchLogRetention     time.Duration `envconfig:"SEARCH_LOG_RETENTION" default:"720h"`
	SearchLogPruneInterval time.Duration `envconfig:"SEARCH_LOG_PRUNE_INTERVAL" default:"1h"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"tendersync-datasets"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the CPV lookup limits and logging settings.
func (c *Config) Validate() error {
	var errs []error
	if c.CPVMaxCodes <= 0 {
		errs = append(errs, errors.New("CPV_MAX_CODES must be positive"))
	}
	if c.CPVMinQueryLength <= 0 {
		errs = append(errs, errors.New("CPV_MIN_QUERY_LENGTH must be positive"))
	}
	if c.CPVInlineLimit <= 0 {
		errs = append(errs, errors.New("CPV_INLINE_LIMIT must be positive"))
	}
	if c.CPVSearchLimit < c.CPVInlineLimit {
		errs = append(errs, errors.New("CPV_SEARCH_LIMIT must not be smaller than CPV_INLINE_LIMIT"))
	}
	if c.CPVSearchTimeout <= 0 {
		errs = append(errs, errors.New("CPV_SEARCH_TIMEOUT must be positive"))
	}
	if c.SearchLogRetention < 0 {
		errs = append(errs, errors.New("SEARCH_LOG_RETENTION must not be negative"))
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasIdentity() bool {
	return c.IdentityURL != "" && c.IdentityAnonKey != ""
}

// PrunesSearchLogs reports whether the retention worker should run.
func (c *Config) PrunesSearchLogs() bool {
	return c.SearchLogRetention > 0 && c.SearchLogPruneInterval > 0
}
