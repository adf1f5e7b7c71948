package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// PostgresConfig locates the optional API key table.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// Enabled reports whether a Postgres host was configured.
func (p PostgresConfig) Enabled() bool { return p.Host != "" }

// RenderConfig bounds certificate inputs and picks the encoding strategy.
type RenderConfig struct {
	MaxNameLength  int     `yaml:"max_name_length"`
	MaxOffset      float64 `yaml:"max_offset"`
	MaxUploadBytes int     `yaml:"max_upload_bytes"`
	MaxDimension   int     `yaml:"max_dimension"`
	MaxPixels      int64   `yaml:"max_pixels"`
	SpoolToDisk    bool    `yaml:"spool_to_disk"`
	SpoolDir       string  `yaml:"spool_dir"`
}

// Config is the full service configuration, loaded from YAML.
type Config struct {
	Server struct {
		Host        string `yaml:"host"`
		Port        string `yaml:"port"`
		Prefork     bool   `yaml:"prefork"`
		BodyLimitMB int    `yaml:"body_limit_mb"`
	} `yaml:"server"`

	Logger struct {
		File       string `yaml:"file"`
		Level      string `yaml:"level"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logger"`

	Render RenderConfig `yaml:"render"`

	RateLimiter struct {
		Interval          time.Duration `yaml:"interval"`
		UserLimit         int           `yaml:"user_limit"`
		EnableUserLimiter bool          `yaml:"enable_user_limiter"`
	} `yaml:"rate_limiter"`

	Cache struct {
		RedisHost   string `yaml:"redis_host"`
		RateLimitDB int    `yaml:"redis_rate_db"`
	} `yaml:"cache"`

	Auth struct {
		Required       bool           `yaml:"required"`
		ReloadInterval time.Duration  `yaml:"reload_interval"`
		Postgres       PostgresConfig `yaml:"postgres"`
	} `yaml:"auth"`
}

// AppConfig holds the configuration loaded by LoadConfig.
var AppConfig = DefaultConfig()

var configMu sync.RWMutex

// DefaultConfig returns the configuration used for fields the file omits.
func DefaultConfig() Config {
	var cfg Config
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = ":8080"
	cfg.Server.BodyLimitMB = 12
	cfg.Logger.Level = "info"
	cfg.Logger.MaxSizeMB = 50
	cfg.Logger.MaxBackups = 3
	cfg.Logger.MaxAgeDays = 14
	cfg.Render = RenderConfig{
		MaxNameLength:  100,
		MaxOffset:      5000,
		MaxUploadBytes: 10 << 20,
		MaxDimension:   16384,
		MaxPixels:      64 << 20,
	}
	cfg.RateLimiter.Interval = time.Minute
	cfg.Auth.ReloadInterval = time.Minute
	return cfg
}

// LoadConfig reads the file named by CONFIG_PATH (default config.yaml),
// stores it in AppConfig and returns it.
func LoadConfig() Config {
	cfg := Load()
	configMu.Lock()
	AppConfig = cfg
	configMu.Unlock()
	return cfg
}

// GetConfig returns the configuration stored by LoadConfig.
func GetConfig() Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return AppConfig
}

// Load reads the file named by CONFIG_PATH without touching AppConfig.
func Load() Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	return LoadFrom(path)
}

// LoadFrom reads path over DefaultConfig and applies environment overrides.
// A missing file yields the defaults. It panics on unreadable YAML or invalid
// values, since the service cannot start safely with either.
func LoadFrom(path string) Config {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		panic(fmt.Sprintf("config: read %s: %v", path, err))
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			panic(fmt.Sprintf("config: parse %s: %v", path, err))
		}
	}

	if v := os.Getenv("REDIS_HOST"); v != "" {
		cfg.Cache.RedisHost = v
	}
	if v := os.Getenv("CERT_SPOOL_DIR"); v != "" {
		cfg.Render.SpoolDir = v
	}

	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("config: %s: %v", path, err))
	}
	return cfg
}

// Validate rejects values the service cannot run with.
func (c Config) Validate() error {
	r := c.Render
	switch {
	case r.MaxNameLength <= 0:
		return errors.New("render.max_name_length must be positive")
	case r.MaxOffset <= 0:
		return errors.New("render.max_offset must be positive")
	case r.MaxUploadBytes <= 0:
		return errors.New("render.max_upload_bytes must be positive")
	case r.MaxDimension <= 0:
		return errors.New("render.max_dimension must be positive")
	case r.MaxPixels <= 0:
		return errors.New("render.max_pixels must be positive")
	case c.Server.BodyLimitMB <= 0:
		return errors.New("server.body_limit_mb must be positive")
	case int64(c.Server.BodyLimitMB)<<20 < int64(r.MaxUploadBytes):
		return errors.New("server.body_limit_mb must cover render.max_upload_bytes")
	case c.RateLimiter.UserLimit < 0:
		return errors.New("rate_limiter.user_limit must not be negative")
	case c.RateLimiter.Interval <= 0:
		return errors.New("rate_limiter.interval must be positive")
	case c.Auth.Required && !c.Auth.Postgres.Enabled():
		return errors.New("auth.required needs auth.postgres.host")
	case c.Auth.Postgres.Enabled() && c.Auth.ReloadInterval <= 0:
		return errors.New("auth.reload_interval must be positive")
	}
	return nil
}
