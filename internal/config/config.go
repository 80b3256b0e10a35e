// Package config loads the storefront configuration from YAML with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Uploads   UploadConfig    `yaml:"uploads"`
	Payments  PaymentConfig   `yaml:"payments"`
	Blob      BlobConfig      `yaml:"blob"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Downloads DownloadConfig  `yaml:"downloads"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	BaseURL        string        `yaml:"base_url"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type UploadConfig struct {
	MaxSizeBytes      int64    `yaml:"max_size_bytes"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

type PaymentConfig struct {
	Provider      string        `yaml:"provider"` // "stripe" or "fake"
	StripeKey     string        `yaml:"stripe_key"`
	WebhookSecret string        `yaml:"webhook_secret"`
	SuccessURL    string        `yaml:"success_url"`
	CancelURL     string        `yaml:"cancel_url"`
	PendingMaxAge time.Duration `yaml:"pending_max_age"`
}

type BlobConfig struct {
	Backend     string `yaml:"backend"` // "fs" or "s3"
	FSDir       string `yaml:"fs_dir"`
	S3Bucket    string `yaml:"s3_bucket"`
	S3Region    string `yaml:"s3_region"`
	S3Endpoint  string `yaml:"s3_endpoint"`
	S3AccessKey string `yaml:"s3_access_key"`
	S3SecretKey string `yaml:"s3_secret_key"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type DownloadConfig struct {
	LinkTTL time.Duration `yaml:"link_ttl"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	Burst             int `yaml:"burst"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8080",
			BaseURL:        "http://localhost:8080",
			AllowedOrigins: []string{"*"},
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   60 * time.Second,
			IdleTimeout:    120 * time.Second,
		},
		Auth: AuthConfig{
			TokenTTL: 24 * time.Hour,
		},
		Uploads: UploadConfig{
			MaxSizeBytes:      512 << 20,
			AllowedExtensions: []string{".zip", ".tar.gz", ".tgz", ".pdf"},
		},
		Payments: PaymentConfig{
			Provider:      "fake",
			PendingMaxAge: time.Hour,
		},
		Blob: BlobConfig{
			Backend: "fs",
			FSDir:   "data/blobs",
		},
		Downloads: DownloadConfig{
			LinkTTL: 15 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 20,
			Burst:             40,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the configuration from path, applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads from path, falling back to defaults plus environment
// overrides when the file is absent.
func LoadOrDefault(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		cfg = Default()
		cfg.applyEnv()
	}
	return cfg
}

func (c *Config) applyEnv() {
	setString := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}

	setString(&c.Server.Addr, "STOREFRONT_ADDR")
	setString(&c.Server.BaseURL, "STOREFRONT_BASE_URL")
	setString(&c.Auth.JWTSecret, "STOREFRONT_JWT_SECRET")
	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setString(&c.Payments.Provider, "PAYMENT_PROVIDER")
	setString(&c.Payments.StripeKey, "STRIPE_SECRET_KEY")
	setString(&c.Payments.WebhookSecret, "STRIPE_WEBHOOK_SECRET")
	setString(&c.Blob.Backend, "BLOB_BACKEND")
	setString(&c.Blob.FSDir, "BLOB_FS_DIR")
	setString(&c.Blob.S3Bucket, "S3_BUCKET")
	setString(&c.Blob.S3Region, "S3_REGION")
	setString(&c.Blob.S3Endpoint, "S3_ENDPOINT")
	setString(&c.Blob.S3AccessKey, "S3_ACCESS_KEY")
	setString(&c.Blob.S3SecretKey, "S3_SECRET_KEY")
	setString(&c.Logging.Level, "LOG_LEVEL")

	if v := strings.TrimSpace(os.Getenv("UPLOAD_MAX_SIZE_BYTES")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			c.Uploads.MaxSizeBytes = n
		}
	}
}

// Validate checks invariants that would otherwise surface as runtime faults.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Uploads.MaxSizeBytes <= 0 {
		return fmt.Errorf("uploads.max_size_bytes must be positive")
	}
	if len(c.Uploads.AllowedExtensions) == 0 {
		return fmt.Errorf("uploads.allowed_extensions must not be empty")
	}
	switch c.Blob.Backend {
	case "fs":
		if c.Blob.FSDir == "" {
			return fmt.Errorf("blob.fs_dir is required for the fs backend")
		}
	case "s3":
		if c.Blob.S3Bucket == "" {
			return fmt.Errorf("blob.s3_bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("blob.backend must be fs or s3, got %q", c.Blob.Backend)
	}
	switch c.Payments.Provider {
	case "stripe":
		if c.Payments.StripeKey == "" {
			return fmt.Errorf("payments.stripe_key is required for the stripe provider")
		}
	case "fake":
	default:
		return fmt.Errorf("payments.provider must be stripe or fake, got %q", c.Payments.Provider)
	}
	if c.Downloads.LinkTTL <= 0 {
		return fmt.Errorf("downloads.link_ttl must be positive")
	}
	return nil
}
