package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultConnectionTimeout = 5 * time.Second
	DefaultQueryTimeout      = 10 * time.Second
	DefaultPoolSize          = 10
	DefaultServerPort        = "8080"
	DefaultRateLimit         = 60
)

type Config struct {
	Database      DatabaseConfig `yaml:"database"`
	Server        ServerConfig   `yaml:"server"`
	Log           LogConfig      `yaml:"log"`
	MigrationsDir string         `yaml:"migrations_dir"`
}

// DatabaseConfig describes the connection pool.
type DatabaseConfig struct {
	// Driver is "postgres" or "duckdb".
	Driver string `yaml:"driver"`
	// URL is a postgres connection string or a duckdb file path
	// (empty for an in-memory duckdb database).
	URL               string        `yaml:"url"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
	QueryTimeout      time.Duration `yaml:"query_timeout"`
	PoolSize          int32         `yaml:"pool_size"`
}

type ServerConfig struct {
	Host               string   `yaml:"host"`
	Port               string   `yaml:"port"`
	APIKey             string   `yaml:"api_key"`
	AllowedOrigins     []string `yaml:"allowed_origins"`
	RateLimitPerMinute int      `yaml:"rate_limit_per_minute"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:            "postgres",
			ConnectionTimeout: DefaultConnectionTimeout,
			QueryTimeout:      DefaultQueryTimeout,
			PoolSize:          DefaultPoolSize,
		},
		Server: ServerConfig{
			Port:               DefaultServerPort,
			RateLimitPerMinute: DefaultRateLimit,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is not empty) and finally environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// GetConfig returns the configuration based on environment variables only.
func GetConfig() (*Config, error) {
	return Load("")
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		c.Database.Driver = v
	}
	if v := os.Getenv("DATABASE_CONNECTION_TIMEOUT"); v != "" {
		d, err := parseMillis(v)
		if err != nil {
			return fmt.Errorf("DATABASE_CONNECTION_TIMEOUT: %w", err)
		}
		c.Database.ConnectionTimeout = d
	}
	if v := os.Getenv("DATABASE_QUERY_TIMEOUT"); v != "" {
		d, err := parseMillis(v)
		if err != nil {
			return fmt.Errorf("DATABASE_QUERY_TIMEOUT: %w", err)
		}
		c.Database.QueryTimeout = d
	}
	if v := os.Getenv("DATABASE_POOL_SIZE"); v != "" {
		n, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return fmt.Errorf("DATABASE_POOL_SIZE: %w", err)
		}
		c.Database.PoolSize = int32(n)
	}
	if v := os.Getenv("MIGRATIONS_DIR"); v != "" {
		c.MigrationsDir = v
	}

	if v := os.Getenv("HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("NICEPG_API_KEY"); v != "" {
		c.Server.APIKey = v
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("RATE_LIMIT_REQUESTS_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RATE_LIMIT_REQUESTS_PER_MINUTE: %w", err)
		}
		c.Server.RateLimitPerMinute = n
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
	return nil
}

// Validate rejects values the rest of the program cannot work with.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Database.Driver) {
	case "postgres", "postgresql", "pgx", "duckdb":
	default:
		return fmt.Errorf("unsupported database driver: %q", c.Database.Driver)
	}
	if c.Database.PoolSize <= 0 {
		return fmt.Errorf("database pool size must be positive, got %d", c.Database.PoolSize)
	}
	if c.Database.ConnectionTimeout < 0 || c.Database.QueryTimeout < 0 {
		return fmt.Errorf("database timeouts must not be negative")
	}
	if c.Server.RateLimitPerMinute < 0 {
		return fmt.Errorf("rate limit must not be negative, got %d", c.Server.RateLimitPerMinute)
	}
	return nil
}

// Addr is the listen address of the admin server.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// parseMillis accepts a bare number of milliseconds or a Go duration string.
func parseMillis(v string) (time.Duration, error) {
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(v)
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
