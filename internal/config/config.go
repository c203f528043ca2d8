// Package config loads process configuration from TRAITFORGE_* environment
// variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"traitforge/internal/blob"
	"traitforge/internal/ledger"
	"traitforge/internal/traits"
)

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Config is the full runtime configuration.
type Config struct {
	BlobDriver  string `env:"TRAITFORGE_BLOB_DRIVER"    envDefault:"fs"`
	FSRoot      string `env:"TRAITFORGE_FS_ROOT"        envDefault:"./traits"`
	S3Bucket    string `env:"TRAITFORGE_S3_BUCKET"`
	S3Region    string `env:"TRAITFORGE_S3_REGION"      envDefault:"us-east-1"`
	S3Endpoint  string `env:"TRAITFORGE_S3_ENDPOINT"`
	S3Prefix    string `env:"TRAITFORGE_S3_PREFIX"`
	S3PathStyle bool   `env:"TRAITFORGE_S3_PATH_STYLE"`
	S3AccessKey string `env:"TRAITFORGE_S3_ACCESS_KEY_ID"`
	S3SecretKey string `env:"TRAITFORGE_S3_SECRET_ACCESS_KEY"`
	FSWatch     bool   `env:"TRAITFORGE_FS_WATCH"`

	CacheDriver string        `env:"TRAITFORGE_CACHE_DRIVER" envDefault:"memory"`
	RedisAddr   string        `env:"TRAITFORGE_REDIS_ADDR"   envDefault:"localhost:6379"`
	CacheTTL    time.Duration `env:"TRAITFORGE_CACHE_TTL"`

	FilenamePolicy string `env:"TRAITFORGE_FILENAME_POLICY" envDefault:"lenient"`
	RulesPath      string `env:"TRAITFORGE_RULES_PATH"`
	Concurrency    int    `env:"TRAITFORGE_RENDER_CONCURRENCY" envDefault:"4"`

	LedgerDriver string `env:"TRAITFORGE_LEDGER_DRIVER" envDefault:"none"`
	SQLitePath   string `env:"TRAITFORGE_SQLITE_PATH"   envDefault:"traitforge.db"`
	PostgresDSN  string `env:"TRAITFORGE_POSTGRES_DSN"`

	GrantSecret string `env:"TRAITFORGE_GRANT_SECRET"`
	HTTPAddr    string `env:"TRAITFORGE_HTTP_ADDR" envDefault:":8080"`

	LogLevel     string `env:"TRAITFORGE_LOG_LEVEL"  envDefault:"info"`
	LogFormat    string `env:"TRAITFORGE_LOG_FORMAT" envDefault:"json"`
	OTLPEndpoint string `env:"TRAITFORGE_OTLP_ENDPOINT"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects unknown drivers and out-of-range values.
func (c Config) Validate() error {
	switch c.BlobDriver {
	case "fs", "s3", "memory":
	default:
		return fmt.Errorf("unknown blob driver %q", c.BlobDriver)
	}
	switch c.CacheDriver {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown cache driver %q", c.CacheDriver)
	}
	switch c.LedgerDriver {
	case "none", "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown ledger driver %q", c.LedgerDriver)
	}
	if _, err := traits.ParsePolicy(c.FilenamePolicy); err != nil {
		return err
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("render concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache ttl must not be negative, got %s", c.CacheTTL)
	}
	return nil
}

// Policy returns the parsed filename policy.
func (c Config) Policy() traits.Policy {
	p, err := traits.ParsePolicy(c.FilenamePolicy)
	if err != nil {
		return traits.PolicyLenient
	}
	return p
}

// BlobOptions maps the blob settings onto the facade options.
func (c Config) BlobOptions() blob.Options {
	return blob.Options{
		Driver: c.BlobDriver,
		FSRoot: c.FSRoot,
		S3: blob.S3Config{
			Region:          c.S3Region,
			Bucket:          c.S3Bucket,
			Prefix:          c.S3Prefix,
			Endpoint:        c.S3Endpoint,
			AccessKeyID:     c.S3AccessKey,
			SecretAccessKey: c.S3SecretKey,
			PathStyle:       c.S3PathStyle,
		},
	}
}

// LedgerOptions maps the ledger settings onto the facade options.
func (c Config) LedgerOptions() ledger.Options {
	return ledger.Options{Driver: c.LedgerDriver, SQLitePath: c.SQLitePath, PostgresDSN: c.PostgresDSN}
}
