// Package config loads service configuration from the environment, optionally
// seeded from a .env file and overlaid from a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the backend process.
type Config struct {
	App       AppConfig       `yaml:"app"`
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Engine    EngineConfig    `yaml:"engine"`
	Compute   ComputeConfig   `yaml:"compute"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Retention RetentionConfig `yaml:"retention"`
	Storage   StorageConfig   `yaml:"storage"`
}

// AppConfig identifies the application.
type AppConfig struct {
	Name   string `env:"APP_NAME,default=Advanced AI Backend" yaml:"name"`
	Debug  bool   `env:"DEBUG,default=false" yaml:"debug"`
	Prefix string `env:"API_PREFIX,default=/api/v1" yaml:"prefix"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host            string        `env:"API_HOST,default=0.0.0.0" yaml:"host"`
	Port            int           `env:"API_PORT,default=8000" yaml:"port"`
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT,default=15s" yaml:"read_timeout"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT,default=30s" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT,default=10s" yaml:"shutdown_timeout"`
	// CORSOrigins lists allowed origins. "*" allows any origin.
	CORSOrigins []string `env:"CORS_ORIGINS,default=*" yaml:"cors_origins"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `env:"LOG_LEVEL,default=INFO" yaml:"level"`
	Format string `env:"LOG_FORMAT,default=text" yaml:"format"`
	Output string `env:"LOG_OUTPUT,default=stdout" yaml:"output"`
}

// DatabaseConfig selects the persistence backend. An empty DSN means the
// in-memory store.
type DatabaseConfig struct {
	DSN             string        `env:"DATABASE_DSN" yaml:"dsn"`
	MaxOpenConns    int           `env:"DATABASE_MAX_OPEN_CONNS,default=10" yaml:"max_open_conns"`
	MaxIdleConns    int           `env:"DATABASE_MAX_IDLE_CONNS,default=5" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `env:"DATABASE_CONN_MAX_LIFETIME,default=30m" yaml:"conn_max_lifetime"`
}

// RedisConfig configures the optional Redis client used for distributed rate
// limiting and response caching. An empty Addr disables it.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" yaml:"addr"`
	Password string `env:"REDIS_PASSWORD" yaml:"password"`
	DB       int    `env:"REDIS_DB,default=0" yaml:"db"`
}

// AuthConfig configures optional bearer-token authentication on the API prefix.
type AuthConfig struct {
	Enabled           bool   `env:"AUTH_ENABLED,default=false" yaml:"enabled"`
	SecretKey         string `env:"SECRET_KEY,default=supersecretkey" yaml:"secret_key"`
	TokenExpiryMinute int    `env:"ACCESS_TOKEN_EXPIRE_MINUTES,default=10080" yaml:"token_expiry_minutes"`
}

// EngineConfig tunes the AI engine.
type EngineConfig struct {
	Model       string        `env:"AI_MODEL,default=gpt-3.5-turbo" yaml:"model"`
	Temperature float64       `env:"AI_TEMPERATURE,default=0.7" yaml:"temperature"`
	MaxTokens   int           `env:"AI_MAX_TOKENS,default=2000" yaml:"max_tokens"`
	CacheTTL    time.Duration `env:"AI_CACHE_TTL,default=5m" yaml:"cache_ttl"`
}

// ComputeConfig tunes the sandboxed code executor.
type ComputeConfig struct {
	Enabled       bool          `env:"ENABLE_CODE_EXECUTION,default=true" yaml:"enabled"`
	MaxScriptSize int           `env:"COMPUTE_MAX_SCRIPT_SIZE,default=65536" yaml:"max_script_size"`
	Timeout       time.Duration `env:"COMPUTE_TIMEOUT,default=5s" yaml:"timeout"`
}

// RateLimitConfig caps requests per client.
type RateLimitConfig struct {
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS,default=60" yaml:"requests_per_minute"`
}

// RetentionConfig controls pruning of stored runs and execution jobs.
type RetentionConfig struct {
	MaxAge   time.Duration `env:"RETENTION_MAX_AGE,default=720h" yaml:"max_age"`
	Schedule string        `env:"RETENTION_SCHEDULE,default=@hourly" yaml:"schedule"`
}

// StorageConfig names the scratch directory for file artifacts.
type StorageConfig struct {
	Path string `env:"STORAGE_PATH,default=/app/storage" yaml:"path"`
}

// Load builds the configuration from the process environment. A .env file in
// the working directory is applied first when present; if CONFIG_FILE names a
// YAML file it is overlaid on top of the decoded environment.
func Load() (*Config, error) {
	_ = godotenv.Load() // .env is optional

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := overlayFile(&cfg, path); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromPath reads configuration from a YAML file on top of built-in
// defaults, bypassing the environment. Used by tests and tooling.
func LoadFromPath(path string) (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode defaults: %w", err)
	}
	if err := overlayFile(&cfg, path); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func overlayFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// Validate rejects configurations the process cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.App.Prefix == "" || c.App.Prefix[0] != '/' {
		return fmt.Errorf("api prefix %q must start with /", c.App.Prefix)
	}
	if c.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("rate limit must be positive, got %d", c.RateLimit.RequestsPerMinute)
	}
	if c.Engine.Temperature < 0 || c.Engine.Temperature > 2 {
		return fmt.Errorf("engine temperature %.2f out of range [0, 2]", c.Engine.Temperature)
	}
	if c.Engine.MaxTokens <= 0 {
		return fmt.Errorf("engine max tokens must be positive, got %d", c.Engine.MaxTokens)
	}
	if c.Compute.MaxScriptSize <= 0 {
		return fmt.Errorf("compute max script size must be positive, got %d", c.Compute.MaxScriptSize)
	}
	if c.Compute.Timeout <= 0 {
		return fmt.Errorf("compute timeout must be positive, got %s", c.Compute.Timeout)
	}
	return nil
}
