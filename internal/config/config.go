package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application settings.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Auth     AuthConfig
	Bluesky  BlueskyConfig
	Email    EmailConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  int
	WriteTimeout int
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds unified Redis connection settings.
// Supported modes: single, sentinel, cluster.
type RedisConfig struct {
	// Mode: Redis deployment mode ("single", "sentinel", "cluster"). Defaults to "single".
	Mode string `mapstructure:"mode"`

	// Addrs: list of Redis addresses (host:port), used for every mode.
	// For "single", the first address wins when non-empty.
	Addrs []string `mapstructure:"addrs"`

	// Addr: alternative single-mode address, used when Addrs is empty.
	Addr string `mapstructure:"addr"`

	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// MasterName: Redis master name (sentinel mode only).
	MasterName string `mapstructure:"master_name"`

	MaxRetries      int `mapstructure:"max_retries"`
	MinRetryBackoff int `mapstructure:"min_retry_backoff"`
	MaxRetryBackoff int `mapstructure:"max_retry_backoff"`
}

// JWTConfig holds session-token settings.
type JWTConfig struct {
	// Secret signs the HS256 session tokens.
	Secret string `mapstructure:"secret"`
	// SessionMaxAgeDays is the session token horizon. Defaults to 30.
	SessionMaxAgeDays int `mapstructure:"session_max_age_days"`
	// CleanupInterval controls the invalidation-cache sweep.
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// AuthConfig holds authentication flow settings.
type AuthConfig struct {
	// BaseURL is the public origin of the application, used by the redirect policy.
	BaseURL string `mapstructure:"base_url"`
	// TokenEncryptionKey encrypts provider access/refresh tokens at rest
	// (32 bytes, hex or raw).
	TokenEncryptionKey string `mapstructure:"token_encryption_key"`
	// AllowedOrigins is the CORS and WebSocket origin allowlist.
	// Defaults to BaseURL.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// BlueskyConfig holds settings for the Bluesky credential exchange.
type BlueskyConfig struct {
	// ServiceURL is the PDS endpoint. Defaults to https://bsky.social.
	ServiceURL string `mapstructure:"service_url"`
	// RequestsPerSecond throttles outbound calls to the PDS.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// EmailConfig holds transactional email settings.
type EmailConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	ResendAPIKey string `mapstructure:"resend_api_key"`
	From         string `mapstructure:"from"`
}

// PostgresConnectionString builds the PostgreSQL DSN.
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// Load reads configuration from the given file plus bound environment variables.
func Load(configPath string) (*Config, error) {
	vip := viper.New()

	// Bind environment variables explicitly, one per key.
	vip.BindEnv("database.host", "DATABASE_HOST")
	vip.BindEnv("database.port", "DATABASE_PORT")
	vip.BindEnv("database.user", "DATABASE_USER")
	vip.BindEnv("database.password", "DATABASE_PASSWORD")
	vip.BindEnv("database.dbname", "DATABASE_DBNAME")
	vip.BindEnv("database.sslmode", "DATABASE_SSLMODE")

	vip.BindEnv("redis.mode", "REDIS_MODE")
	vip.BindEnv("redis.addrs", "REDIS_ADDRS")
	vip.BindEnv("redis.addr", "REDIS_ADDR")
	vip.BindEnv("redis.password", "REDIS_PASSWORD")
	vip.BindEnv("redis.db", "REDIS_DB")
	vip.BindEnv("redis.master_name", "REDIS_MASTER_NAME")

	vip.BindEnv("jwt.secret", "JWT_SECRET")
	vip.BindEnv("jwt.session_max_age_days", "JWT_SESSION_MAX_AGE_DAYS")
	vip.BindEnv("jwt.cleanup_interval", "JWT_CLEANUP_INTERVAL")

	vip.BindEnv("auth.base_url", "AUTH_BASE_URL")
	vip.BindEnv("auth.token_encryption_key", "AUTH_TOKEN_ENCRYPTION_KEY")
	vip.BindEnv("auth.allowed_origins", "AUTH_ALLOWED_ORIGINS")

	vip.BindEnv("bluesky.service_url", "BLUESKY_SERVICE_URL")
	vip.BindEnv("bluesky.requests_per_second", "BLUESKY_REQUESTS_PER_SECOND")

	vip.BindEnv("email.enabled", "EMAIL_ENABLED")
	vip.BindEnv("email.resend_api_key", "RESEND_API_KEY")
	vip.BindEnv("email.from", "EMAIL_FROM")

	vip.BindEnv("server.port", "SERVER_PORT")

	if configPath != "" {
		vip.SetConfigFile(configPath)
		if err := vip.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				log.Printf("Config file '%s' not found, relying on environment variables/defaults.", configPath)
			} else {
				log.Printf("Warning: could not read config file '%s': %v", configPath, err)
			}
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Defaults.
	if cfg.JWT.SessionMaxAgeDays <= 0 {
		cfg.JWT.SessionMaxAgeDays = 30
	}
	if cfg.Bluesky.ServiceURL == "" {
		cfg.Bluesky.ServiceURL = "https://bsky.social"
	}
	if cfg.Bluesky.RequestsPerSecond <= 0 {
		cfg.Bluesky.RequestsPerSecond = 5
	}
	if cfg.Auth.BaseURL == "" {
		cfg.Auth.BaseURL = "http://localhost:3000"
	}
	if len(cfg.Auth.AllowedOrigins) == 0 {
		cfg.Auth.AllowedOrigins = []string{cfg.Auth.BaseURL}
	}

	if os.Getenv("GIN_MODE") != "release" {
		log.Printf("--- Loaded configuration ---")
		log.Printf("Database Host: %s", cfg.Database.Host)
		log.Printf("Database Name: %s", cfg.Database.DBName)
		log.Printf("Redis Addr: %s", cfg.Redis.Addr)
		log.Printf("Redis Mode: %s", cfg.Redis.Mode)
		log.Printf("Session Max Age Days: %d", cfg.JWT.SessionMaxAgeDays)
		log.Printf("Auth Base URL: %s", cfg.Auth.BaseURL)
		log.Printf("Bluesky Service: %s", cfg.Bluesky.ServiceURL)
		log.Printf("Email Enabled: %t", cfg.Email.Enabled)
		log.Printf("Server Port: %s", cfg.Server.Port)
		log.Printf("----------------------------")
	}

	// Required values.
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT secret is required in config (check JWT_SECRET env var)")
	}
	if cfg.Auth.TokenEncryptionKey == "" {
		return nil, fmt.Errorf("token encryption key is required in config (check AUTH_TOKEN_ENCRYPTION_KEY env var)")
	}
	if cfg.Database.Host == "" || cfg.Database.DBName == "" || cfg.Database.User == "" {
		return nil, fmt.Errorf("database configuration (host, dbname, user) is incomplete (check DATABASE_HOST, DATABASE_DBNAME, DATABASE_USER env vars)")
	}

	return &cfg, nil
}
