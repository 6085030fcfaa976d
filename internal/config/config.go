// Package config loads server, storage, notification and logging settings
// from defaults, an optional YAML file, a .env file and APPRAISAL_* variables.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "APPRAISAL"

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

// RedisConfig enables pub/sub fan-out when Addr is set.
type RedisConfig struct {
	Addr          string `mapstructure:"addr"`
	Password      string `mapstructure:"password"`
	DB            int    `mapstructure:"db"`
	ChannelPrefix string `mapstructure:"channel_prefix"`
}

type NotifyConfig struct {
	QueueSize   int           `mapstructure:"queue_size"`
	Workers     int           `mapstructure:"workers"`
	SendTimeout time.Duration `mapstructure:"send_timeout"`
	Breaker     BreakerConfig `mapstructure:"breaker"`
	Retry       RetryConfig   `mapstructure:"retry"`
}

type BreakerConfig struct {
	MaxRequests         uint32        `mapstructure:"max_requests"`
	Interval            time.Duration `mapstructure:"interval"`
	Timeout             time.Duration `mapstructure:"timeout"`
	ConsecutiveFailures uint32        `mapstructure:"consecutive_failures"`
}

type RetryConfig struct {
	MaxRetries      int           `mapstructure:"max_retries"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.max_conn_lifetime", time.Hour)

	v.SetDefault("storage.driver", DriverPostgres)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel_prefix", "appraisal")

	v.SetDefault("notify.queue_size", 256)
	v.SetDefault("notify.workers", 2)
	v.SetDefault("notify.send_timeout", 5*time.Second)
	v.SetDefault("notify.breaker.max_requests", 1)
	v.SetDefault("notify.breaker.interval", time.Minute)
	v.SetDefault("notify.breaker.timeout", 30*time.Second)
	v.SetDefault("notify.breaker.consecutive_failures", 5)
	v.SetDefault("notify.retry.max_retries", 2)
	v.SetDefault("notify.retry.initial_interval", 50*time.Millisecond)
	v.SetDefault("notify.retry.max_interval", time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configuration. path may be empty; a missing .env is ignored.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// DATABASE_URL is the conventional name; honor it when ours is unset.
	_ = v.BindEnv("database.url", envPrefix+"_DATABASE_URL", "DATABASE_URL")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings that have no safe fallback.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for the postgres driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("storage.driver %q: must be postgres or memory", c.Storage.Driver)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format %q: must be text or json", c.Log.Format)
	}
	return nil
}

// Logger builds the slog logger described by c.
func (c LogConfig) Logger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return level, fmt.Errorf("log.level %q: %w", s, err)
	}
	return level, nil
}
