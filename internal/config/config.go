// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServerConfig holds all server-related settings
type ServerConfig struct {
	Port           int           `yaml:"port"`
	Host           string        `yaml:"host"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MetricsEnabled bool          `yaml:"metrics_enabled"`
}

// DatabaseConfig holds database configuration settings
type DatabaseConfig struct {
	Type             string        `yaml:"type"` // "mongo", "postgres" or "memory"
	URI              string        `yaml:"uri"`
	Name             string        `yaml:"name"`
	OperationTimeout time.Duration `yaml:"operation_timeout"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// RateLimitConfig bounds writes per authenticated user, or per client IP
// for anonymous calls.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
	// TrustedProxies lists IPs or CIDRs whose X-Forwarded-For is honoured.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

type ModerationConfig struct {
	// HideFlagged drops hidden messages from top-level listings.
	HideFlagged bool `yaml:"hide_flagged"`
}

type UploadsConfig struct {
	MaxBytes int64 `yaml:"max_bytes"`
}

// Config holds the complete application configuration
type Config struct {
	Server         *ServerConfig     `yaml:"server"`
	Database       *DatabaseConfig   `yaml:"database"`
	Auth           *AuthConfig       `yaml:"auth"`
	RateLimit      *RateLimitConfig  `yaml:"rate_limit"`
	Moderation     *ModerationConfig `yaml:"moderation"`
	Uploads        *UploadsConfig    `yaml:"uploads"`
	AllowedOrigins []string          `yaml:"allowed_origins"`
	LogLevel       string            `yaml:"log_level"`
	Debug          bool              `yaml:"debug"`
}

// DefaultServerConfig provides default server settings
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:           8080,
		Host:           "0.0.0.0",
		RequestTimeout: 8 * time.Second,
		MetricsEnabled: true,
	}
}

// DefaultDatabaseConfig provides default database settings
func DefaultDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		Type:             "mongo",
		URI:              "mongodb://localhost:27017",
		Name:             "rekindle",
		OperationTimeout: 5 * time.Second,
	}
}

// DefaultConfig returns a complete configuration with every section populated.
func DefaultConfig() *Config {
	return &Config{
		Server:         DefaultServerConfig(),
		Database:       DefaultDatabaseConfig(),
		Auth:           &AuthConfig{TokenTTL: 24 * time.Hour},
		RateLimit:      &RateLimitConfig{RPS: 5, Burst: 10},
		Moderation:     &ModerationConfig{},
		Uploads:        &UploadsConfig{MaxBytes: 10 << 20},
		AllowedOrigins: []string{"*"},
		LogLevel:       "info",
	}
}

// LoadConfig builds the configuration from defaults, an optional YAML file
// named by REKINDLE_CONFIG, and environment variables, in that order.
func LoadConfig() (*Config, error) {
	// Try to load .env file from the usual locations
	for _, location := range []string{".env", "../../.env", "../../../.env"} {
		if err := godotenv.Load(location); err == nil {
			break
		}
	}

	cfg := DefaultConfig()

	if path := os.Getenv("REKINDLE_CONFIG"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("config file not found: %s", path)
		}
		return err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if portStr := os.Getenv("PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			cfg.Server.Port = port
		}
	}
	if host := os.Getenv("HOST"); host != "" {
		cfg.Server.Host = host
	}
	if v := os.Getenv("METRICS_ENABLED"); v != "" {
		cfg.Server.MetricsEnabled = v == "true"
	}
	setDuration("REQUEST_TIMEOUT", &cfg.Server.RequestTimeout)

	if dbType := os.Getenv("DB_TYPE"); dbType != "" {
		cfg.Database.Type = strings.ToLower(dbType)
	}
	// DATABASE_URL is the conventional name on hosted platforms
	if uri := os.Getenv("DATABASE_URL"); uri != "" {
		cfg.Database.URI = uri
	}
	if uri := os.Getenv("MONGODB_URI"); uri != "" && cfg.Database.Type == "mongo" {
		cfg.Database.URI = uri
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		cfg.Database.Name = name
	}
	setDuration("DB_OPERATION_TIMEOUT", &cfg.Database.OperationTimeout)

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
	setDuration("TOKEN_TTL", &cfg.Auth.TokenTTL)

	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if rps, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimit.RPS = rps
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if burst, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.Burst = burst
		}
	}
	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		cfg.RateLimit.TrustedProxies = splitList(v)
	}

	if v := os.Getenv("HIDE_FLAGGED"); v != "" {
		cfg.Moderation.HideFlagged = v == "true"
	}
	if v := os.Getenv("UPLOAD_MAX_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Uploads.MaxBytes = n
		}
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = splitList(origins)
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		cfg.LogLevel = lvl
	}
	if debug := os.Getenv("DEBUG"); debug == "true" {
		cfg.Debug = true
	}
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "mongo", "postgres":
		if c.Database.URI == "" {
			return fmt.Errorf("database URI is required when DB_TYPE is %s", c.Database.Type)
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported DB_TYPE %q", c.Database.Type)
	}

	if c.Auth.JWTSecret == "" {
		if !c.Debug {
			return errors.New("JWT_SECRET environment variable is required")
		}
		c.Auth.JWTSecret = "rekindle-debug-secret"
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("token TTL must be positive")
	}
	if c.Server.RequestTimeout <= 0 {
		c.Server.RequestTimeout = DefaultServerConfig().RequestTimeout
	}
	if c.Database.OperationTimeout <= 0 {
		c.Database.OperationTimeout = DefaultDatabaseConfig().OperationTimeout
	}
	// A store call must be able to fail on its own deadline before the
	// handler gives up on the actor.
	if c.Server.RequestTimeout <= c.Database.OperationTimeout {
		return fmt.Errorf("request timeout %v must exceed database operation timeout %v",
			c.Server.RequestTimeout, c.Database.OperationTimeout)
	}
	return nil
}

// Addr returns host:port for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func setDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func splitList(v string) []string {
	var parts []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	return parts
}
