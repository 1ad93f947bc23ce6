// Package config loads server configuration from SPLITTAT_* environment
// variables (and an optional .env file) and validates it.
//
// Keys map section-first: the first underscore after the prefix separates
// the section from the key, so SPLITTAT_AUTH_JWT_SECRET becomes
// auth.jwt_secret and SPLITTAT_SERVER_CORS_ALLOWED_ORIGINS becomes
// server.cors_allowed_origins. List values are comma separated.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	// Loads .env into the process environment before anything reads it.
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of every environment variable the server reads.
const EnvPrefix = "SPLITTAT_"

// Config is the root configuration object.
type Config struct {
	Server   ServerConfig   `koanf:"server" validate:"required"`
	Database DatabaseConfig `koanf:"database" validate:"required"`
	Auth     AuthConfig     `koanf:"auth" validate:"required"`
	Storage  StorageConfig  `koanf:"storage" validate:"required"`
	OCR      OCRConfig      `koanf:"ocr" validate:"required"`
	Worker   WorkerConfig   `koanf:"worker" validate:"required"`
	Log      LogConfig      `koanf:"log"`
}

type ServerConfig struct {
	Port                   string   `koanf:"port" validate:"required"`
	CORSAllowedOrigins     []string `koanf:"cors_allowed_origins"`
	ShutdownTimeoutSeconds int      `koanf:"shutdown_timeout_seconds" validate:"min=1"`
}

type DatabaseConfig struct {
	Path string `koanf:"path" validate:"required"`
}

// AuthConfig holds JWT signing settings. The secret has no default.
type AuthConfig struct {
	JWTSecret         string `koanf:"jwt_secret" validate:"required,min=16"`
	Issuer            string `koanf:"issuer" validate:"required"`
	Audience          string `koanf:"audience" validate:"required"`
	ExpirationMinutes int    `koanf:"expiration_minutes" validate:"min=1"`
}

// StorageConfig selects where uploaded receipt images go.
type StorageConfig struct {
	Backend     string `koanf:"backend" validate:"oneof=local gcs"`
	LocalDir    string `koanf:"local_dir" validate:"required_if=Backend local"`
	GCSBucket   string `koanf:"gcs_bucket" validate:"required_if=Backend gcs"`
	MaxUploadMB int    `koanf:"max_upload_mb" validate:"min=1,max=100"`
}

// OCRConfig selects the receipt extractor. "none" leaves receipts for manual entry.
type OCRConfig struct {
	Provider string `koanf:"provider" validate:"oneof=none gemini"`
	Model    string `koanf:"model"`
	APIKey   string `koanf:"api_key" validate:"required_if=Provider gemini"`
}

type WorkerConfig struct {
	Count      int `koanf:"count" validate:"min=1"`
	Buffer     int `koanf:"buffer" validate:"min=1"`
	MaxRetries int `koanf:"max_retries" validate:"min=0"`
}

type LogConfig struct {
	Level string `koanf:"level" validate:"omitempty,oneof=debug info warn error"`
}

// Default returns the configuration used for every key not set in the environment.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:                   "8080",
			CORSAllowedOrigins:     []string{"http://localhost:5173"},
			ShutdownTimeoutSeconds: 10,
		},
		Database: DatabaseConfig{Path: "data/splittat.db"},
		Auth: AuthConfig{
			Issuer:            "splittat",
			Audience:          "splittat-api",
			ExpirationMinutes: 60,
		},
		Storage: StorageConfig{
			Backend:     "local",
			LocalDir:    "data/uploads",
			MaxUploadMB: 10,
		},
		OCR: OCRConfig{
			Provider: "none",
			Model:    "gemini-2.5-flash",
		},
		Worker: WorkerConfig{
			Count:      2,
			Buffer:     100,
			MaxRetries: 3,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads the environment over Default and validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey maps SPLITTAT_AUTH_JWT_SECRET to auth.jwt_secret.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(key, "_", ".", 1)
}

// Validate checks the struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) TokenDuration() time.Duration {
	return time.Duration(c.Auth.ExpirationMinutes) * time.Minute
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}

// MaxUploadBytes is the upload size limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Storage.MaxUploadMB) << 20
}
