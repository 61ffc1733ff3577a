// Package config provides unified configuration loading for the image analyzer.
// Supports YAML files, .env files, and environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverDynamoDB = "dynamodb"
)

// Config holds all configuration for the image analyzer.
type Config struct {
	AppID         string              `yaml:"app_id"`
	Server        ServerConfig        `yaml:"server"`
	Gemini        GeminiConfig        `yaml:"gemini"`
	Webhook       WebhookConfig       `yaml:"webhook"`
	Store         StoreConfig         `yaml:"store"`
	Identity      IdentityConfig      `yaml:"identity"`
	UI            UIConfig            `yaml:"ui"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	MaxUploadBytes   int64         `yaml:"max_upload_bytes"`
}

// GeminiConfig holds generative-AI endpoint settings.
type GeminiConfig struct {
	BaseURL        string        `yaml:"base_url"`
	Model          string        `yaml:"model"`
	RequestTimeout time.Duration `yaml:"request_timeout"` // 0 disables the client timeout
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
}

// WebhookConfig holds webhook dispatcher settings.
type WebhookConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// StoreConfig holds configuration document store settings.
type StoreConfig struct {
	Driver       string         `yaml:"driver"`
	PollInterval time.Duration  `yaml:"poll_interval"`
	Redis        RedisConfig    `yaml:"redis"`
	SQL          SQLConfig      `yaml:"sql"`
	DynamoDB     DynamoDBConfig `yaml:"dynamodb"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
	Prefix   string `yaml:"prefix"`
}

// SQLConfig holds settings shared by the sqlite, postgres and mysql drivers.
type SQLConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// DynamoDBConfig holds DynamoDB-specific settings.
type DynamoDBConfig struct {
	Table    string `yaml:"table"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
}

// IdentityConfig selects how the session user is identified.
type IdentityConfig struct {
	// CustomToken, when set, is exchanged for the user ID; otherwise the
	// session signs in anonymously.
	CustomToken string `yaml:"custom_token"`
	// TokenSecret verifies HS256 custom tokens. The API rejects bearer
	// tokens when it is empty.
	TokenSecret string `yaml:"token_secret"`
	// TrustUserHeader lets the API take the user from X-User-ID. Only
	// enable it behind a gateway that authenticates callers and sets it.
	TrustUserHeader bool `yaml:"trust_user_header"`
	// UserID pins the CLI to a fixed identity across runs.
	UserID string `yaml:"user_id"`
	// CacheFile keeps the CLI's anonymous identity between runs. Empty
	// means the user config directory.
	CacheFile string `yaml:"cache_file"`
}

// UIConfig holds presentation timings.
type UIConfig struct {
	SavedDisplayDuration time.Duration `yaml:"saved_display_duration"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	ServiceName string `yaml:"service_name"`
}

// Load reads configuration from a YAML file and applies environment overrides.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // .env is optional

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults for development.
func DefaultConfig() *Config {
	return &Config{
		AppID: "default-app-id",
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8090,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     0,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 10 * time.Second,
			MaxUploadBytes:   20 << 20,
		},
		Gemini: GeminiConfig{
			BaseURL:        "https://generativelanguage.googleapis.com/v1beta",
			Model:          "gemini-2.5-flash-preview-05-20",
			MaxAttempts:    5,
			InitialBackoff: time.Second,
		},
		Webhook: WebhookConfig{
			Timeout: 30 * time.Second,
		},
		Store: StoreConfig{
			Driver:       DriverSQLite,
			PollInterval: 2 * time.Second,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				PoolSize: 10,
				Prefix:   "ia:",
			},
			SQL: SQLConfig{
				DSN:          "image-analyzer.db",
				MaxOpenConns: 1,
			},
			DynamoDB: DynamoDBConfig{
				Table:  "image-analyzer-configurations",
				Region: "us-east-1",
			},
		},
		UI: UIConfig{
			SavedDisplayDuration: 2 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			LogFormat:   "console",
			ServiceName: "image-analyzer",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.AppID == "" {
		return fmt.Errorf("app_id is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Gemini.BaseURL == "" || c.Gemini.Model == "" {
		return fmt.Errorf("gemini base_url and model are required")
	}
	if c.Gemini.MaxAttempts < 1 {
		return fmt.Errorf("gemini max_attempts must be at least 1")
	}
	if c.Gemini.InitialBackoff < 0 || c.Gemini.RequestTimeout < 0 {
		return fmt.Errorf("gemini durations must not be negative")
	}
	switch c.Store.Driver {
	case DriverMemory, DriverRedis, DriverSQLite, DriverPostgres, DriverMySQL:
	case DriverDynamoDB:
		if c.Store.DynamoDB.Table == "" {
			return fmt.Errorf("dynamodb table is required")
		}
	default:
		return fmt.Errorf("invalid store driver: %s", c.Store.Driver)
	}
	if c.Store.PollInterval <= 0 {
		return fmt.Errorf("store poll_interval must be positive")
	}
	if c.UI.SavedDisplayDuration < 0 {
		return fmt.Errorf("ui saved_display_duration must not be negative")
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("APP_ID"); v != "" {
		cfg.AppID = v
	}
	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("GEMINI_API_BASE_URL"); v != "" {
		cfg.Gemini.BaseURL = v
	}
	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		cfg.Gemini.Model = v
	}
	if v := os.Getenv("WEBHOOK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Webhook.Timeout = d
		}
	}
	if v := os.Getenv("STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Store.Driver = DriverRedis
		cfg.Store.Redis.Addr = strings.TrimPrefix(v, "redis://")
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		switch {
		case strings.HasPrefix(v, "sqlite:"):
			cfg.Store.Driver = DriverSQLite
			cfg.Store.SQL.DSN = strings.TrimPrefix(v, "sqlite:")
		case strings.HasPrefix(v, "postgres"):
			cfg.Store.Driver = DriverPostgres
			cfg.Store.SQL.DSN = v
		case strings.HasPrefix(v, "mysql://"):
			cfg.Store.Driver = DriverMySQL
			cfg.Store.SQL.DSN = strings.TrimPrefix(v, "mysql://")
		}
	}
	if v := os.Getenv("DYNAMODB_TABLE"); v != "" {
		cfg.Store.DynamoDB.Table = v
	}
	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.Store.DynamoDB.Region = v
	}
	if v := os.Getenv("DYNAMODB_ENDPOINT"); v != "" {
		cfg.Store.DynamoDB.Endpoint = v
	}
	if v := os.Getenv("IDENTITY_TOKEN"); v != "" {
		cfg.Identity.CustomToken = v
	}
	if v := os.Getenv("IDENTITY_USER_ID"); v != "" {
		cfg.Identity.UserID = v
	}
	if v := os.Getenv("IDENTITY_TOKEN_SECRET"); v != "" {
		cfg.Identity.TokenSecret = v
	}
	if v := os.Getenv("IDENTITY_TRUST_USER_HEADER"); v != "" {
		if trust, err := strconv.ParseBool(v); err == nil {
			cfg.Identity.TrustUserHeader = trust
		}
	}
	if v := os.Getenv("IDENTITY_CACHE_FILE"); v != "" {
		cfg.Identity.CacheFile = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}
