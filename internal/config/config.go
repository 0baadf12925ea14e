// Package config loads service configuration from an optional YAML file,
// an environment-specific dotenv file, and environment variable overrides,
// in that order of precedence (later wins).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/platformeng/demo-user-service/internal/database"
)

// Config holds all runtime settings for the service.
type Config struct {
	Environment string         `yaml:"environment"`
	Server      ServerConfig   `yaml:"server"`
	Database    DatabaseConfig `yaml:"database"`
	Auth        AuthConfig     `yaml:"auth"`
	RateLimit   RateLimit      `yaml:"rate_limit"`
	CORS        CORSConfig     `yaml:"cors"`
	LogLevel    string         `yaml:"log_level"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds the connection URI and pool settings.
type DatabaseConfig struct {
	URI              string        `yaml:"uri"`
	PoolSize         int           `yaml:"pool_size"`
	MaxOverflow      int           `yaml:"max_overflow"`
	AcquireTimeout   time.Duration `yaml:"acquire_timeout"`
	IdleRecycle      time.Duration `yaml:"idle_recycle"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
	RetryCount       int           `yaml:"retry_count"`
	RetryBackoff     time.Duration `yaml:"retry_backoff"`
}

// AuthConfig holds JWT settings. An empty secret disables verification.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// RateLimit holds per-caller rate limit settings.
type RateLimit struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	Burst             int `yaml:"burst"`
}

// CORSConfig holds allowed origins.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Default returns the configuration defaults.
func Default() *Config {
	return &Config{
		Environment: "dev",
		Server: ServerConfig{
			Addr:            ":8000",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			PoolSize:         database.DefaultPoolSize,
			MaxOverflow:      database.DefaultMaxOverflow,
			AcquireTimeout:   database.DefaultAcquireTimeout,
			IdleRecycle:      database.DefaultIdleRecycle,
			StatementTimeout: database.DefaultStatementTimeout,
			RetryCount:       database.DefaultRetryCount,
			RetryBackoff:     database.DefaultRetryBackoff,
		},
		RateLimit: RateLimit{
			RequestsPerSecond: 100,
			Burst:             200,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
		},
		LogLevel: "info",
	}
}

// Load builds the configuration. The YAML file at path is optional; the
// dotenv file for the active environment is loaded from envDir with a
// fallback to dev.env; environment variables override both.
func Load(path, envDir string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if env := os.Getenv("ENV"); env != "" {
		cfg.Environment = env
	}

	if envDir != "" {
		vars, err := readEnvFile(envDir, cfg.Environment)
		if err != nil {
			return nil, err
		}
		applyValues(cfg, func(key string) string { return vars[key] })
	}

	applyValues(cfg, os.Getenv)

	if cfg.Database.URI == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	return cfg, nil
}

// readEnvFile reads environments/<env>.env, falling back to dev.env when the
// named file does not exist. The file is parsed without mutating the process
// environment so real environment variables keep precedence.
func readEnvFile(envDir, env string) (map[string]string, error) {
	path := filepath.Join(envDir, env+".env")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fallback := filepath.Join(envDir, "dev.env")
		if _, err := os.Stat(fallback); os.IsNotExist(err) {
			return nil, fmt.Errorf("no env file found for %q: neither %s nor %s exists", env, path, fallback)
		}
		path = fallback
	}
	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return vars, nil
}

func applyValues(cfg *Config, get func(string) string) {
	setString(&cfg.Server.Addr, get, "SERVER_ADDR")
	setString(&cfg.Database.URI, get, "DATABASE_URL")
	setString(&cfg.Auth.JWTSecret, get, "JWT_SECRET")
	setString(&cfg.LogLevel, get, "LOG_LEVEL")

	setInt(&cfg.Database.PoolSize, get, "DB_POOL_SIZE")
	setInt(&cfg.Database.MaxOverflow, get, "DB_MAX_OVERFLOW")
	setInt(&cfg.Database.RetryCount, get, "DB_RETRY_COUNT")
	setInt(&cfg.RateLimit.RequestsPerSecond, get, "RATE_LIMIT_RPS")
	setInt(&cfg.RateLimit.Burst, get, "RATE_LIMIT_BURST")

	setSeconds(&cfg.Database.AcquireTimeout, get, "DB_ACQUIRE_TIMEOUT")
	setSeconds(&cfg.Database.IdleRecycle, get, "DB_IDLE_RECYCLE")
	setSeconds(&cfg.Database.StatementTimeout, get, "DB_STATEMENT_TIMEOUT")
	setSeconds(&cfg.Database.RetryBackoff, get, "DB_RETRY_BACKOFF")
}

func setString(dst *string, get func(string) string, key string) {
	if v := get(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, get func(string) string, key string) {
	if v := get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setSeconds(dst *time.Duration, get func(string) string, key string) {
	if v := get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = time.Duration(n) * time.Second
		}
	}
}

// PoolConfig converts the database section into pool settings.
func (c DatabaseConfig) PoolConfig() database.PoolConfig {
	return database.PoolConfig{
		PoolSize:         c.PoolSize,
		MaxOverflow:      c.MaxOverflow,
		AcquireTimeout:   c.AcquireTimeout,
		IdleRecycle:      c.IdleRecycle,
		StatementTimeout: c.StatementTimeout,
	}
}
