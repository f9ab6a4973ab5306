// Package config provides run configuration for the s3ready validator.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// RunConfig is the resolved, immutable configuration for a validation run.
// It is built once before any test is dispatched and never mutated afterwards.
type RunConfig struct {
	Endpoint EndpointConfig `mapstructure:"endpoint"`
	Run      RunSettings    `mapstructure:"run"`
	Retry    RetryConfig    `mapstructure:"retry"`
	Scoring  ScoringConfig  `mapstructure:"scoring"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// EndpointConfig holds the target S3 endpoint settings.
type EndpointConfig struct {
	URL       string `mapstructure:"url"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseTLS    bool   `mapstructure:"use_tls"`
	PathStyle bool   `mapstructure:"path_style"`
}

// RunSettings holds execution settings for a run.
type RunSettings struct {
	BucketPrefix string        `mapstructure:"bucket_prefix"`
	Concurrency  int           `mapstructure:"concurrency"`
	TestTimeout  time.Duration `mapstructure:"test_timeout"`
	OutputDir    string        `mapstructure:"output_dir"`
}

// RetryConfig bounds the backoff policy applied to transient errors.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// CategoryPolicy configures how one test category contributes to the verdict.
type CategoryPolicy struct {
	Weight        float64 `mapstructure:"weight"`
	RequiredRatio float64 `mapstructure:"required_ratio"`
	Critical      bool    `mapstructure:"critical"`
}

// ScoringConfig holds the readiness thresholds.
type ScoringConfig struct {
	GlobalThreshold float64                   `mapstructure:"global_threshold"`
	Categories      map[string]CategoryPolicy `mapstructure:"categories"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultConfig returns a RunConfig with default values.
func DefaultConfig() *RunConfig {
	return &RunConfig{
		Endpoint: EndpointConfig{
			URL:       "http://localhost:9000",
			Region:    "us-east-1",
			AccessKey: "minioadmin",
			SecretKey: "minioadmin",
			UseTLS:    false,
			PathStyle: true,
		},
		Run: RunSettings{
			BucketPrefix: "s3ready",
			Concurrency:  4,
			TestTimeout:  5 * time.Minute,
			OutputDir:    "",
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   500 * time.Millisecond,
			MaxDelay:    10 * time.Second,
		},
		Scoring: ScoringConfig{
			GlobalThreshold: 0.95,
			Categories: map[string]CategoryPolicy{
				"basic":       {Weight: 1.0, RequiredRatio: 1.0, Critical: true},
				"multipart":   {Weight: 1.0, RequiredRatio: 1.0, Critical: true},
				"versioning":  {Weight: 1.0, RequiredRatio: 0.8},
				"acl":         {Weight: 1.0, RequiredRatio: 0.9},
				"encryption":  {Weight: 1.0, RequiredRatio: 0.9},
				"lifecycle":   {Weight: 1.0, RequiredRatio: 0.9},
				"performance": {Weight: 1.0, RequiredRatio: 0.9},
				"stress":      {Weight: 1.0, RequiredRatio: 0.8},
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads configuration from environment variables and an optional config file.
func Load() (*RunConfig, error) {
	cfg := DefaultConfig()

	v := viper.New()
	setDefaults(v, cfg)

	v.SetEnvPrefix("S3READY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("s3ready")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.s3ready")

	if err := v.ReadInConfig(); err != nil {
		// Config file is optional
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile reads configuration from a specific file.
func LoadFromFile(path string) (*RunConfig, error) {
	cfg := DefaultConfig()

	v := viper.New()
	setDefaults(v, cfg)
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *RunConfig) {
	v.SetDefault("endpoint.url", cfg.Endpoint.URL)
	v.SetDefault("endpoint.region", cfg.Endpoint.Region)
	v.SetDefault("endpoint.access_key", cfg.Endpoint.AccessKey)
	v.SetDefault("endpoint.secret_key", cfg.Endpoint.SecretKey)
	v.SetDefault("endpoint.use_tls", cfg.Endpoint.UseTLS)
	v.SetDefault("endpoint.path_style", cfg.Endpoint.PathStyle)
	v.SetDefault("run.bucket_prefix", cfg.Run.BucketPrefix)
	v.SetDefault("run.concurrency", cfg.Run.Concurrency)
	v.SetDefault("run.test_timeout", cfg.Run.TestTimeout)
	v.SetDefault("run.output_dir", cfg.Run.OutputDir)
	v.SetDefault("retry.max_attempts", cfg.Retry.MaxAttempts)
	v.SetDefault("retry.base_delay", cfg.Retry.BaseDelay)
	v.SetDefault("retry.max_delay", cfg.Retry.MaxDelay)
	v.SetDefault("scoring.global_threshold", cfg.Scoring.GlobalThreshold)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
}

// Validate checks the configuration for values no run could proceed with.
func (c *RunConfig) Validate() error {
	if c.Endpoint.URL == "" {
		return fmt.Errorf("endpoint.url is required")
	}
	if c.Endpoint.AccessKey == "" || c.Endpoint.SecretKey == "" {
		return fmt.Errorf("endpoint credentials are required")
	}
	if c.Run.Concurrency < 1 {
		return fmt.Errorf("run.concurrency must be at least 1, got %d", c.Run.Concurrency)
	}
	if c.Run.TestTimeout <= 0 {
		return fmt.Errorf("run.test_timeout must be positive, got %s", c.Run.TestTimeout)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.BaseDelay <= 0 {
		return fmt.Errorf("retry.base_delay must be positive, got %s", c.Retry.BaseDelay)
	}
	if c.Scoring.GlobalThreshold < 0 || c.Scoring.GlobalThreshold > 1 {
		return fmt.Errorf("scoring.global_threshold must be within [0, 1], got %g", c.Scoring.GlobalThreshold)
	}
	for name, p := range c.Scoring.Categories {
		if p.Weight < 0 {
			return fmt.Errorf("scoring.categories.%s.weight must not be negative", name)
		}
		if p.RequiredRatio < 0 || p.RequiredRatio > 1 {
			return fmt.Errorf("scoring.categories.%s.required_ratio must be within [0, 1]", name)
		}
	}
	return nil
}
