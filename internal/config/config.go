// Package config loads the console configuration.
//
// Values come from, in increasing precedence: struct defaults, the process
// environment (optionally seeded from a .env file) and an optional YAML file
// named by CONSOLE_CONFIG_FILE.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendProxy  = "proxy"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config is the full console configuration.
type Config struct {
	ListenAddr string `env:"CONSOLE_LISTEN_ADDR,default=:8080" yaml:"listen_addr"`

	Log    LogConfig    `yaml:"log"`
	Store  StoreConfig  `yaml:"store"`
	Verify VerifyConfig `yaml:"verify"`
	Auth   AuthConfig   `yaml:"auth"`
	HTTP   HTTPConfig   `yaml:"http"`
	Audit  AuditConfig  `yaml:"audit"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL,default=info" yaml:"level"`
	Format string `env:"LOG_FORMAT,default=json" yaml:"format"`
}

// StoreConfig selects and configures the key-value backend.
type StoreConfig struct {
	Backend      string        `env:"STORE_BACKEND,default=proxy" yaml:"backend"`
	ProxyURL     string        `env:"CANNY_PROXY_URL" yaml:"proxy_url"`
	ProxyAPIKey  string        `env:"CANNY_PROXY_API_KEY" yaml:"proxy_api_key"`
	ProxyTimeout time.Duration `env:"CANNY_PROXY_TIMEOUT,default=10s" yaml:"proxy_timeout"`
	RedisURL     string        `env:"REDIS_URL" yaml:"redis_url"`
}

// VerifyConfig is the write-verify read-back schedule.
type VerifyConfig struct {
	Attempts  int           `env:"VERIFY_ATTEMPTS,default=5" yaml:"attempts"`
	BaseDelay time.Duration `env:"VERIFY_BASE_DELAY,default=100ms" yaml:"base_delay"`
}

// AuthConfig configures staff authentication. An empty secret disables it.
type AuthConfig struct {
	JWTSecret string `env:"ADMIN_JWT_SECRET" yaml:"jwt_secret"`
}

type HTTPConfig struct {
	CORSAllowedOrigins string  `env:"CORS_ALLOWED_ORIGINS" yaml:"cors_allowed_origins"`
	RateLimitRPS       float64 `env:"RATE_LIMIT_RPS,default=20" yaml:"rate_limit_rps"`
	RateLimitBurst     int     `env:"RATE_LIMIT_BURST,default=40" yaml:"rate_limit_burst"`
}

// AuditConfig schedules the index drift audit. An empty schedule disables it.
type AuditConfig struct {
	Schedule string `env:"INDEX_AUDIT_SCHEDULE" yaml:"schedule"`
}

// AllowedOrigins splits the comma separated CORS origin list.
func (c HTTPConfig) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Load reads configuration from .env, the environment and the optional YAML
// file, then validates it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}

	if path := strings.TrimSpace(os.Getenv("CONSOLE_CONFIG_FILE")); path != "" {
		if err := cfg.MergeFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv decodes the environment into a Config without validating it.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	return &cfg, nil
}

// MergeFile overlays the YAML file at path onto c. Keys absent from the file
// keep their current values.
func (c *Config) MergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks backend requirements and bounds.
func (c *Config) Validate() error {
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))

	switch c.Store.Backend {
	case BackendProxy:
		if c.Store.ProxyURL == "" {
			return errors.New("CANNY_PROXY_URL is required for the proxy backend")
		}
		u, err := url.Parse(c.Store.ProxyURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("CANNY_PROXY_URL %q is not an absolute URL", c.Store.ProxyURL)
		}
		if c.Store.ProxyTimeout <= 0 {
			return errors.New("CANNY_PROXY_TIMEOUT must be positive")
		}
	case BackendRedis:
		if c.Store.RedisURL == "" {
			return errors.New("REDIS_URL is required for the redis backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend)
	}

	if c.Verify.Attempts < 1 || c.Verify.Attempts > 20 {
		return fmt.Errorf("VERIFY_ATTEMPTS must be between 1 and 20, got %d", c.Verify.Attempts)
	}
	if c.Verify.BaseDelay <= 0 || c.Verify.BaseDelay > 5*time.Second {
		return fmt.Errorf("VERIFY_BASE_DELAY must be in (0, 5s], got %s", c.Verify.BaseDelay)
	}
	if c.HTTP.RateLimitRPS < 0 || c.HTTP.RateLimitBurst < 0 {
		return errors.New("rate limit values must not be negative")
	}
	if c.ListenAddr == "" {
		return errors.New("CONSOLE_LISTEN_ADDR must not be empty")
	}
	return nil
}

// AuthEnabled reports whether staff JWT auth is configured.
func (c *Config) AuthEnabled() bool {
	return c.Auth.JWTSecret != ""
}
