package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"go.uber.org/zap/zapcore"

	"github.com/MM25Zamanian/prismate/internal/cache"
	"github.com/MM25Zamanian/prismate/internal/service"
)

// Config holds all prismate settings. Values come from an optional YAML
// file; PRISMATE_* environment variables override them. The JWT secret is
// read from the environment only.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Schema   SchemaConfig   `yaml:"schema"`
	Cache    CacheConfig    `yaml:"cache"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`

	// Models holds per-model field mappings keyed by model name.
	Models map[string]service.ModelConfig `yaml:"models"`
}

type ServerConfig struct {
	Addr     string `yaml:"addr" env:"PRISMATE_ADDR" env-default:":8080"`
	Env      string `yaml:"env" env:"PRISMATE_ENV" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"PRISMATE_LOG_LEVEL" env-default:"info"`
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"PRISMATE_SHUTDOWN_TIMEOUT" env-default:"10s"`
	Metrics         bool          `yaml:"metrics" env:"PRISMATE_METRICS" env-default:"true"`
}

type SchemaConfig struct {
	// Path is a description file (.dsl, .json, .yaml) or a directory of them.
	Path       string `yaml:"path" env:"PRISMATE_SCHEMA" env-default:"schema"`
	EnumsDir   string `yaml:"enums_dir" env:"PRISMATE_ENUMS_DIR" env-default:""`
	UpdateMode string `yaml:"update_mode" env:"PRISMATE_UPDATE_MODE" env-default:"full"`
}

type CacheConfig struct {
	MaxSize int           `yaml:"max_size" env:"PRISMATE_CACHE_MAX_SIZE" env-default:"200"`
	TTL     time.Duration `yaml:"ttl" env:"PRISMATE_CACHE_TTL" env-default:"5m"`
}

type DatabaseConfig struct {
	// URL selects the PostgreSQL delegate; empty uses the in-memory one.
	URL         string `yaml:"url" env:"PRISMATE_DB_URL" env-default:""`
	AutoMigrate bool   `yaml:"auto_migrate" env:"PRISMATE_AUTO_MIGRATE" env-default:"false"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"-" env:"PRISMATE_JWT_SECRET"`
}

// Load reads path (if it exists) and applies environment overrides. An
// empty path reads the environment only.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := cleanenv.ReadConfig(path, cfg); err != nil {
				return nil, fmt.Errorf("read %s: %w", path, err)
			}
			return cfg, cfg.validate()
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
	}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	var errs []error
	if _, err := service.ParseUpdateMode(c.Schema.UpdateMode); err != nil {
		errs = append(errs, fmt.Errorf("schema.update_mode: %w", err))
	}
	if _, err := zapcore.ParseLevel(c.Server.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("server.log_level: %w", err))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, errors.New("cache.ttl must not be negative"))
	}
	if strings.TrimSpace(c.Schema.Path) == "" {
		errs = append(errs, errors.New("schema.path is required"))
	}
	return errors.Join(errs...)
}

// ServiceOptions converts the configuration into service options.
func (c *Config) ServiceOptions() service.Options {
	opts := service.DefaultOptions()
	cc := cache.Config{MaxSize: c.Cache.MaxSize, TTL: c.Cache.TTL}
	opts.Validators = cc
	opts.Definitions = cc
	opts.UpdateMode, _ = service.ParseUpdateMode(c.Schema.UpdateMode)
	opts.Models = c.Models
	return opts
}

// IsProduction reports whether logs should be JSON encoded.
func (c *Config) IsProduction() bool {
	switch strings.ToLower(c.Server.Env) {
	case "prod", "production":
		return true
	}
	return false
}
