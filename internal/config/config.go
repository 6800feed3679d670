package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

const envPrefix = "AGENTTREE"

type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Runtime RuntimeConfig `mapstructure:"runtime"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Notify  NotifyConfig  `mapstructure:"notify"`
	Agents  *AgentConfig  `mapstructure:"agents"`
}

type AppConfig struct {
	Name    string `mapstructure:"name" validate:"required"`
	Version string `mapstructure:"version"`
}

type RuntimeConfig struct {
	TickMaxIdle    time.Duration `mapstructure:"tick_max_idle" validate:"gt=0"`
	RefreshGrace   time.Duration `mapstructure:"refresh_grace" validate:"gt=0"`
	FailureBackoff time.Duration `mapstructure:"failure_backoff" validate:"gt=0"`
	RefreshTimeout time.Duration `mapstructure:"refresh_timeout" validate:"gt=0"`
	Workers        int           `mapstructure:"workers" validate:"min=1,max=1024"`
	AgentsFile     string        `mapstructure:"agents_file"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	Path    string `mapstructure:"path" validate:"startswith=/"`
}

type NotifyConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Enabled  bool    `mapstructure:"enabled"`
	Addr     string  `mapstructure:"addr"`
	Password string  `mapstructure:"password"`
	DB       int     `mapstructure:"db" validate:"min=0"`
	Channel  string  `mapstructure:"channel" validate:"required"`
	Buffer   int     `mapstructure:"buffer" validate:"min=1"`
	Rate     float64 `mapstructure:"rate" validate:"min=0"`
	Burst    int     `mapstructure:"burst" validate:"min=0"`
}

// Load reads the YAML file at path, or configs/config.yaml when path is
// empty, applies AGENTTREE_* environment overrides and validates the result.
// A missing default file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			slog.Warn("config file not found, using defaults")
		} else {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	slog.Debug("configuration loaded", "file", v.ConfigFileUsed())
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	// app defaults
	v.SetDefault("app.name", "agenttree")
	v.SetDefault("app.version", "dev")

	// runtime defaults
	v.SetDefault("runtime.tick_max_idle", "1m")
	v.SetDefault("runtime.refresh_grace", "5s")
	v.SetDefault("runtime.failure_backoff", "5m")
	v.SetDefault("runtime.refresh_timeout", "30s")
	v.SetDefault("runtime.workers", 8)
	v.SetDefault("runtime.agents_file", "")

	// logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// metrics defaults
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("metrics.path", "/metrics")

	// redis notification defaults
	v.SetDefault("notify.redis.enabled", false)
	v.SetDefault("notify.redis.addr", "localhost:6379")
	v.SetDefault("notify.redis.password", "")
	v.SetDefault("notify.redis.db", 0)
	v.SetDefault("notify.redis.channel", "agenttree:transitions")
	v.SetDefault("notify.redis.buffer", 256)
	v.SetDefault("notify.redis.rate", 0)
	v.SetDefault("notify.redis.burst", 10)
}

func validateConfig(cfg *Config) error {
	if err := validateStruct(cfg); err != nil {
		return err
	}

	if cfg.Metrics.Enabled {
		if _, _, err := net.SplitHostPort(cfg.Metrics.Addr); err != nil {
			return fmt.Errorf("invalid metrics address %q: %w", cfg.Metrics.Addr, err)
		}
	}

	if cfg.Notify.Redis.Enabled && cfg.Notify.Redis.Addr == "" {
		return errors.New("notify.redis.addr is required when redis notifications are enabled")
	}

	if cfg.Agents != nil && cfg.Runtime.AgentsFile != "" {
		return errors.New("agents and runtime.agents_file are mutually exclusive")
	}

	return nil
}

// GetRedisOptions returns the client options for the notification channel.
func (r *RedisConfig) GetRedisOptions() *redis.Options {
	return &redis.Options{
		Addr:            r.Addr,
		Password:        r.Password,
		DB:              r.DB,
		DisableIdentity: true,
	}
}
