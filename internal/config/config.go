// Package config loads runtime configuration from SANCTIONCORE_* environment variables.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds process configuration. Zero values are replaced by defaults in Load.
type Config struct {
	Addr      string
	LogLevel  string
	LogFormat string

	CatalogPath string

	Storage StorageConfig
	Blob    BlobConfig
	Engine  EngineConfig
	HTTP    HTTPConfig
}

// StorageConfig selects and parameterises the sanction store.
//
//	SANCTIONCORE_STORAGE_DRIVER: memory|sqlite|postgres|redis (default sqlite)
//	SANCTIONCORE_SQLITE_PATH: sqlite file (default ./sanctioncore.db)
//	SANCTIONCORE_POSTGRES_DSN: postgres DSN when driver=postgres
//	SANCTIONCORE_REDIS_ADDR / _PASSWORD / _DB / _PREFIX: redis connection
type StorageConfig struct {
	Driver        string
	SQLitePath    string
	PostgresDSN   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// BlobConfig selects where sweep reports are archived.
//
//	SANCTIONCORE_BLOB_DRIVER: fs|s3|memory|none (default fs)
//	SANCTIONCORE_BLOB_FS_ROOT: directory root when driver=fs (default ./reports)
//	SANCTIONCORE_BLOB_S3_BUCKET / _REGION / _ENDPOINT / _PATH_STYLE: s3 target
type BlobConfig struct {
	Driver       string
	FSRoot       string
	S3Bucket     string
	S3Region     string
	S3Endpoint   string
	S3PathStyle  bool
	ReportPrefix string
}

// EngineConfig tunes the lifecycle engine.
type EngineConfig struct {
	BulkConcurrency     int
	MaxMutationAttempts int
	ReadAttempts        int
}

// HTTPConfig tunes the API server.
type HTTPConfig struct {
	RateLimitRPS   float64
	RateLimitBurst int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom reads configuration through getenv, which lets tests supply a map.
func LoadFrom(getenv func(string) string) (*Config, error) {
	env := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv("SANCTIONCORE_" + key)); v != "" {
			return v
		}
		return fallback
	}
	var errs []string
	intEnv := func(key string, fallback int) int {
		raw := env(key, "")
		if raw == "" {
			return fallback
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			errs = append(errs, fmt.Sprintf("SANCTIONCORE_%s: %v", key, err))
			return fallback
		}
		return n
	}
	floatEnv := func(key string, fallback float64) float64 {
		raw := env(key, "")
		if raw == "" {
			return fallback
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("SANCTIONCORE_%s: %v", key, err))
			return fallback
		}
		return f
	}
	durationEnv := func(key string, fallback time.Duration) time.Duration {
		raw := env(key, "")
		if raw == "" {
			return fallback
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			errs = append(errs, fmt.Sprintf("SANCTIONCORE_%s: %v", key, err))
			return fallback
		}
		return d
	}

	cfg := &Config{
		Addr:        env("ADDR", ":8080"),
		LogLevel:    env("LOG_LEVEL", "info"),
		LogFormat:   env("LOG_FORMAT", "json"),
		CatalogPath: env("CATALOG_PATH", ""),
		Storage: StorageConfig{
			Driver:        strings.ToLower(env("STORAGE_DRIVER", "sqlite")),
			SQLitePath:    env("SQLITE_PATH", "sanctioncore.db"),
			PostgresDSN:   env("POSTGRES_DSN", ""),
			RedisAddr:     env("REDIS_ADDR", "localhost:6379"),
			RedisPassword: env("REDIS_PASSWORD", ""),
			RedisDB:       intEnv("REDIS_DB", 0),
			RedisPrefix:   env("REDIS_PREFIX", "sanctioncore:"),
		},
		Blob: BlobConfig{
			Driver:       strings.ToLower(env("BLOB_DRIVER", "fs")),
			FSRoot:       env("BLOB_FS_ROOT", "./reports"),
			S3Bucket:     env("BLOB_S3_BUCKET", ""),
			S3Region:     env("BLOB_S3_REGION", "us-east-1"),
			S3Endpoint:   env("BLOB_S3_ENDPOINT", ""),
			S3PathStyle:  strings.EqualFold(env("BLOB_S3_PATH_STYLE", "false"), "true"),
			ReportPrefix: env("REPORT_PREFIX", "sweeps/"),
		},
		Engine: EngineConfig{
			BulkConcurrency:     intEnv("BULK_CONCURRENCY", 4),
			MaxMutationAttempts: intEnv("MAX_MUTATION_ATTEMPTS", 5),
			ReadAttempts:        intEnv("READ_ATTEMPTS", 3),
		},
		HTTP: HTTPConfig{
			RateLimitRPS:   floatEnv("RATE_LIMIT_RPS", 20),
			RateLimitBurst: intEnv("RATE_LIMIT_BURST", 40),
			ReadTimeout:    durationEnv("HTTP_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:   durationEnv("HTTP_WRITE_TIMEOUT", 30*time.Second),
		},
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects inconsistent settings.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory", "sqlite", "postgres", "redis":
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Blob.Driver {
	case "fs", "memory", "none":
	case "s3":
		if c.Blob.S3Bucket == "" {
			return fmt.Errorf("config: SANCTIONCORE_BLOB_S3_BUCKET required for s3 driver")
		}
	default:
		return fmt.Errorf("config: unknown blob driver %q", c.Blob.Driver)
	}
	if c.Engine.BulkConcurrency < 1 || c.Engine.MaxMutationAttempts < 1 || c.Engine.ReadAttempts < 1 {
		return fmt.Errorf("config: engine limits must be positive")
	}
	if c.HTTP.RateLimitRPS <= 0 || c.HTTP.RateLimitBurst < 1 {
		return fmt.Errorf("config: rate limit must be positive")
	}
	return nil
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// NewLogger builds the process logger described by LogLevel and LogFormat.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if strings.EqualFold(c.LogFormat, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
