package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadAppliesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  addr: ":9090"
  base_url: "https://files.example.com"
downloads:
  link_ttl: 5m
uploads:
  max_size_bytes: 1048576
  allowed_extensions: [".zip"]
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("STOREFRONT_ADDR", ":7070")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	// Environment wins over the file.
	if cfg.Server.Addr != ":7070" {
		t.Fatalf("env override lost: %q", cfg.Server.Addr)
	}
	if cfg.Server.BaseURL != "https://files.example.com" {
		t.Fatalf("file value lost: %q", cfg.Server.BaseURL)
	}
	if cfg.Downloads.LinkTTL != 5*time.Minute {
		t.Fatalf("link ttl: %v", cfg.Downloads.LinkTTL)
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("log level: %q", cfg.Logging.Level)
	}
	if cfg.Uploads.MaxSizeBytes != 1<<20 {
		t.Fatalf("max size: %d", cfg.Uploads.MaxSizeBytes)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load("/does/not/exist.yaml"); err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = "" }},
		{"zero upload limit", func(c *Config) { c.Uploads.MaxSizeBytes = 0 }},
		{"no extensions", func(c *Config) { c.Uploads.AllowedExtensions = nil }},
		{"unknown blob backend", func(c *Config) { c.Blob.Backend = "ftp" }},
		{"s3 without bucket", func(c *Config) { c.Blob.Backend = "s3"; c.Blob.S3Bucket = "" }},
		{"stripe without key", func(c *Config) { c.Payments.Provider = "stripe"; c.Payments.StripeKey = "" }},
		{"unknown provider", func(c *Config) { c.Payments.Provider = "paypal" }},
		{"zero link ttl", func(c *Config) { c.Downloads.LinkTTL = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation to fail")
			}
		})
	}
}
