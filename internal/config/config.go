// Package config builds the typed runtime configuration for the task API.
// Configuration is decoded from the environment exactly once at process
// start and handed to components by reference; nothing else in the codebase
// reads os.Getenv directly.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging"`

	// Debug relaxes validation and enables the in-memory store fallback.
	Debug bool `env:"DEBUG,default=false" yaml:"debug"`

	// AllowedHosts is the CORS origin allowlist. Empty means allow all,
	// which Validate only accepts in debug mode.
	AllowedHosts HostList `env:"ALLOWED_HOSTS" yaml:"allowed_hosts"`
}

// HostList is a comma-separated host list in the environment and a plain
// sequence in YAML.
type HostList []string

// Decode implements envdecode.Decoder.
func (h *HostList) Decode(repl string) error {
	*h = nil
	for _, part := range strings.Split(repl, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*h = append(*h, part)
		}
	}
	return nil
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string        `env:"SERVER_HOST,default=0.0.0.0" yaml:"host"`
	Port            int           `env:"SERVER_PORT,default=8080" yaml:"port"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT,default=15s" yaml:"read_timeout"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT,default=15s" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT,default=10s" yaml:"shutdown_timeout"`
}

// DatabaseConfig carries the Postgres connection parameters injected by the
// orchestrator or platform, plus pool tuning and the readiness-gate budget.
type DatabaseConfig struct {
	Host     string `env:"DB_HOST" yaml:"host"`
	Port     int    `env:"DB_PORT,default=5432" yaml:"port"`
	Name     string `env:"DB_NAME" yaml:"name"`
	User     string `env:"DB_USER" yaml:"user"`
	Password string `env:"DB_PASS" yaml:"password"`
	SSLMode  string `env:"DB_SSLMODE,default=disable" yaml:"sslmode"`

	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS,default=25" yaml:"max_open_conns"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS,default=5" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME,default=5m" yaml:"conn_max_lifetime"`

	// Readiness gate budget for the first connection. Mirrors the compose
	// health check so the managed-platform path gets the same guarantee
	// without an orchestrator-side probe.
	ReadyInterval time.Duration `env:"DB_READY_INTERVAL,default=3s" yaml:"ready_interval"`
	ReadyAttempts int           `env:"DB_READY_ATTEMPTS,default=10" yaml:"ready_attempts"`
}

// RedisConfig configures the optional authentication cache. An empty Addr
// disables caching entirely.
type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR" yaml:"addr"`
	Password string        `env:"REDIS_PASSWORD" yaml:"password"`
	DB       int           `env:"REDIS_DB,default=0" yaml:"db"`
	AuthTTL  time.Duration `env:"REDIS_AUTH_TTL,default=5m" yaml:"auth_ttl"`
}

// AuthConfig controls token issuance.
type AuthConfig struct {
	// SecretKey signs access and refresh tokens. Required outside debug.
	SecretKey  string        `env:"SECRET_KEY" yaml:"secret_key"`
	AccessTTL  time.Duration `env:"AUTH_ACCESS_TTL,default=15m" yaml:"access_ttl"`
	RefreshTTL time.Duration `env:"AUTH_REFRESH_TTL,default=168h" yaml:"refresh_ttl"`
}

// RateLimitConfig controls the per-client request limiter.
type RateLimitConfig struct {
	Enabled           bool `env:"RATE_LIMIT_ENABLED,default=true" yaml:"enabled"`
	RequestsPerSecond int  `env:"RATE_LIMIT_RPS,default=20" yaml:"requests_per_second"`
	Burst             int  `env:"RATE_LIMIT_BURST,default=40" yaml:"burst"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL,default=info" yaml:"level"`
	Format string `env:"LOG_FORMAT,default=json" yaml:"format"`
}

// Load decodes configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		// envdecode fails on structs with no matching variables at all;
		// StrictDecode is not used so optional sections stay optional.
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFile loads configuration from the environment, then applies overrides
// from a YAML file. Used when an operator prefers a config file over a large
// env block; the env contract stays authoritative for anything not in the
// file.
func LoadFile(path string) (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	hosts := c.AllowedHosts[:0]
	for _, h := range c.AllowedHosts {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}
	c.AllowedHosts = hosts
}

// Validate checks invariants that cannot be expressed as decode defaults.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Auth.SecretKey == "" && !c.Debug {
		return fmt.Errorf("SECRET_KEY is required")
	}
	if len(c.AllowedHosts) == 0 && !c.Debug {
		return fmt.Errorf("ALLOWED_HOSTS is required outside debug mode")
	}
	if c.Database.Host != "" {
		if c.Database.Name == "" || c.Database.User == "" {
			return fmt.Errorf("DB_NAME and DB_USER are required when DB_HOST is set")
		}
	} else if !c.Debug {
		return fmt.Errorf("DB_HOST is required outside debug mode")
	}
	if c.Database.ReadyAttempts < 1 {
		return fmt.Errorf("DB_READY_ATTEMPTS must be at least 1")
	}
	return nil
}

// HasDatabase reports whether a Postgres connection is configured. When
// false (debug only) the runtime falls back to the in-memory store.
func (c *Config) HasDatabase() bool {
	return c.Database.Host != ""
}

// DSN assembles the lib/pq connection string from the injected parameters.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.Name,
	}
	if d.User != "" {
		u.User = url.UserPassword(d.User, d.Password)
	}
	q := url.Values{}
	if d.SSLMode != "" {
		q.Set("sslmode", d.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the host:port the HTTP server binds.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
