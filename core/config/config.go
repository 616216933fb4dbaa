// Package config loads the service configuration from YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dataask/dataask/core/infrastructure/delivery"
	"github.com/dataask/dataask/core/infrastructure/storage/mongo"
)

const (
	DefaultPort         = "8000"
	DefaultDatabasePath = "dataask.sqlite"
	DefaultRunTimeout   = 10 * time.Minute
	DefaultMetadataTTL  = 5 * time.Minute
)

// Lock backends for the scheduler run guard.
const (
	LockMemory = "memory"
	LockRedis  = "redis"
)

// Config is the full service configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Gateway    GatewayConfig    `yaml:"gateway"`
	SMTP       delivery.Config  `yaml:"smtp"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Redis      RedisConfig      `yaml:"redis"`
	History    mongo.Config     `yaml:"history"`
	Encryption EncryptionConfig `yaml:"encryption"`
	Log        LogConfig        `yaml:"log"`
}

type ServerConfig struct {
	Port        string          `yaml:"port"`
	CORSOrigins []string        `yaml:"cors_origins"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig enables the redis request limiter when Requests > 0.
type RateLimitConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type GatewayConfig struct {
	URL         string        `yaml:"url"`
	Timeout     time.Duration `yaml:"timeout"`
	MetadataTTL time.Duration `yaml:"metadata_ttl"`
	Direct      DirectConfig  `yaml:"direct"`
}

// DirectConfig routes the listed dialects to in-process drivers.
type DirectConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Dialects []string `yaml:"dialects"`
}

type SchedulerConfig struct {
	Enabled    *bool         `yaml:"enabled"`
	RunTimeout time.Duration `yaml:"run_timeout"`
	Lock       LockConfig    `yaml:"lock"`
}

// IsEnabled reports whether the scheduler runs; it defaults to on.
func (s SchedulerConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

type LockConfig struct {
	Backend string        `yaml:"backend"`
	TTL     time.Duration `yaml:"ttl"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type EncryptionConfig struct {
	Key  string `yaml:"key"`
	Salt string `yaml:"salt"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Tags  string `yaml:"tags"`
}

// Load reads path, expands {{ env.NAME }} placeholders and applies defaults.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config: %w", err)
	}
	cfg, err := Parse(content)
	if err != nil {
		return nil, err
	}
	if cfg.Database.Path != "" && !filepath.IsAbs(cfg.Database.Path) {
		cfg.Database.Path = filepath.Join(filepath.Dir(path), cfg.Database.Path)
	}
	return cfg, nil
}

// Parse decodes YAML content into a Config with defaults applied.
func Parse(content []byte) (*Config, error) {
	expanded, err := SubstituteEnvVars(string(content))
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = DefaultPort
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"*"}
	}
	if c.Server.RateLimit.Requests > 0 && c.Server.RateLimit.Window == 0 {
		c.Server.RateLimit.Window = time.Minute
	}
	if c.Database.Path == "" {
		c.Database.Path = DefaultDatabasePath
	}
	if c.Gateway.MetadataTTL == 0 {
		c.Gateway.MetadataTTL = DefaultMetadataTTL
	}
	if c.Scheduler.RunTimeout == 0 {
		c.Scheduler.RunTimeout = DefaultRunTimeout
	}
	if c.Scheduler.Lock.Backend == "" {
		c.Scheduler.Lock.Backend = LockMemory
	}
	if c.Scheduler.Lock.TTL == 0 {
		c.Scheduler.Lock.TTL = c.Scheduler.RunTimeout + time.Minute
	}
}

// Validate checks the cross-section constraints.
func (c *Config) Validate() error {
	var problems []string
	switch c.Scheduler.Lock.Backend {
	case LockMemory:
	case LockRedis:
		if c.Redis.Addr == "" {
			problems = append(problems, "scheduler.lock.backend 'redis' requires redis.addr")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown scheduler.lock.backend '%s'", c.Scheduler.Lock.Backend))
	}
	if c.Server.RateLimit.Requests > 0 && c.Redis.Addr == "" {
		problems = append(problems, "server.rate_limit requires redis.addr")
	}
	if c.Gateway.URL == "" && !c.Gateway.Direct.Enabled {
		problems = append(problems, "gateway.url is required unless gateway.direct is enabled")
	}
	if c.Encryption.Key == "" {
		problems = append(problems, "encryption.key is required")
	}
	if err := c.SMTP.Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("config error: %s", strings.Join(problems, "; "))
	}
	return nil
}
