// Package config loads application configuration from the environment via
// viper so main stays lean.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// RedisConfig tunes the optional redis connection. An empty URL disables it.
type RedisConfig struct {
	URL          string        `mapstructure:"redis_url"`
	PoolSize     int           `mapstructure:"redis_pool_size"`
	MinIdleConns int           `mapstructure:"redis_min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"redis_dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"redis_read_timeout"`
	WriteTimeout time.Duration `mapstructure:"redis_write_timeout"`
}

// Config is the full server configuration.
type Config struct {
	Addr     string `mapstructure:"addr"`
	LogLevel string `mapstructure:"log_level"`

	// DatabaseDSN selects the postgres wallet store. Empty means in-memory.
	DatabaseDSN string `mapstructure:"database_dsn"`

	Redis RedisConfig `mapstructure:",squash"`

	// SignerURL is the signing backend that exchanges events for green cards.
	SignerURL string `mapstructure:"signer_url"`
	// ConfigURL is the remote configuration endpoint. Empty keeps the
	// built-in defaults.
	ConfigURL string `mapstructure:"config_url"`

	JWTSigningKey string `mapstructure:"jwt_signing_key"`

	// AppVersion is compared against the remote config's recommended
	// version for the update banner.
	AppVersion string `mapstructure:"app_version"`

	// SweepInterval paces the background expiry sweep.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	// ExchangeTimeout bounds one credential refresh exchange.
	ExchangeTimeout time.Duration `mapstructure:"exchange_timeout"`
	// EventGroupGracePeriod delays event-group expiry past the configured
	// expiry date.
	EventGroupGracePeriod time.Duration `mapstructure:"event_group_grace_period"`
}

// Load reads configuration from GREENWALLET_* environment variables.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("greenwallet")
	v.AutomaticEnv()

	v.SetDefault("addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("redis_pool_size", 10)
	v.SetDefault("redis_min_idle_conns", 2)
	v.SetDefault("redis_dial_timeout", 5*time.Second)
	v.SetDefault("redis_read_timeout", 3*time.Second)
	v.SetDefault("redis_write_timeout", 3*time.Second)
	v.SetDefault("sweep_interval", time.Hour)
	v.SetDefault("exchange_timeout", 30*time.Second)
	v.SetDefault("event_group_grace_period", time.Duration(0))
	v.SetDefault("jwt_signing_key", "dev-secret-key-change-in-production")

	// AutomaticEnv only resolves keys viper already knows; explicit binds
	// make unset defaults like database_dsn visible from the environment.
	for _, key := range []string{
		"addr", "log_level", "database_dsn", "redis_url", "redis_pool_size",
		"redis_min_idle_conns", "redis_dial_timeout", "redis_read_timeout",
		"redis_write_timeout", "signer_url", "config_url", "jwt_signing_key",
		"app_version", "sweep_interval", "exchange_timeout",
		"event_group_grace_period",
	} {
		if err := v.BindEnv(key); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unable to decode config: %w", err)
	}
	return cfg, nil
}
