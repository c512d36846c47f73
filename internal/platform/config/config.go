// Package config loads process configuration from the environment and an
// optional YAML file.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full process configuration.
type Config struct {
	Server           Server                 `mapstructure:"server"`
	Redis            RedisConfig            `mapstructure:"redis"`
	TransportMapping TransportMappingConfig `mapstructure:"transport_mapping"`
	Backend          BackendConfig          `mapstructure:"backend"`
	Log              LogConfig              `mapstructure:"log"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr              string        `mapstructure:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

// RedisConfig configures the transfer store connection. An empty URL selects
// the in-memory store.
type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// TransportMappingConfig bounds the lifetime of transfer state and the date
// shift defaults applied when a request leaves them out.
type TransportMappingConfig struct {
	TTL                 time.Duration `mapstructure:"ttl"`
	DefaultMaxDateShift time.Duration `mapstructure:"default_max_date_shift"`
	DefaultPreserve     string        `mapstructure:"default_preserve"`
}

// BackendConfig selects and configures the pseudonymization backend.
type BackendConfig struct {
	Type               string        `mapstructure:"type"`
	BaseURL            string        `mapstructure:"base_url"`
	Timeout            time.Duration `mapstructure:"timeout"`
	Concurrency        int           `mapstructure:"concurrency"`
	EnticiResourceType string        `mapstructure:"entici_resource_type"`
	EnticiProject      string        `mapstructure:"entici_project"`

	// BreakerThreshold consecutive outages open the circuit for
	// BreakerCooldown. Zero disables the breaker.
	BreakerThreshold int           `mapstructure:"breaker_threshold"`
	BreakerCooldown  time.Duration `mapstructure:"breaker_cooldown"`
}

// LogConfig selects level and output format ("json" or "text").
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var backendTypes = []string{"gpas", "vfps", "entici"}

var defaults = map[string]any{
	"server.addr":                              ":8080",
	"server.read_header_timeout":               5 * time.Second,
	"server.shutdown_timeout":                  10 * time.Second,
	"redis.url":                                "",
	"redis.pool_size":                          10,
	"redis.min_idle_conns":                     2,
	"redis.dial_timeout":                       5 * time.Second,
	"redis.read_timeout":                       3 * time.Second,
	"redis.write_timeout":                      3 * time.Second,
	"transport_mapping.ttl":                    10 * time.Minute,
	"transport_mapping.default_max_date_shift": 14 * 24 * time.Hour,
	"transport_mapping.default_preserve":       "NONE",
	"backend.type":                             "gpas",
	"backend.base_url":                         "",
	"backend.timeout":                          10 * time.Second,
	"backend.concurrency":                      4,
	"backend.entici_resource_type":             "Patient",
	"backend.entici_project":                   "",
	"backend.breaker_threshold":                5,
	"backend.breaker_cooldown":                 30 * time.Second,
	"log.level":                                "info",
	"log.format":                               "json",
}

// Load reads configuration from the environment, layered over the YAML file
// at path when path is non-empty. Keys map to environment variables by
// upper-casing and replacing dots, so redis.url is read from REDIS_URL.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.TransportMapping.TTL <= 0 {
		return fmt.Errorf("transport_mapping.ttl must be positive, got %s", c.TransportMapping.TTL)
	}
	if c.TransportMapping.DefaultMaxDateShift < 0 {
		return fmt.Errorf("transport_mapping.default_max_date_shift must not be negative")
	}
	if c.Backend.Concurrency < 1 {
		return fmt.Errorf("backend.concurrency must be at least 1, got %d", c.Backend.Concurrency)
	}
	if c.Backend.BreakerThreshold < 0 {
		return fmt.Errorf("backend.breaker_threshold must not be negative")
	}
	if !slices.Contains(backendTypes, strings.ToLower(c.Backend.Type)) {
		return fmt.Errorf("backend.type must be one of %s, got %q", strings.Join(backendTypes, ", "), c.Backend.Type)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text, got %q", c.Log.Format)
	}
	return nil
}

// UsesMemoryStore reports whether no Redis URL was configured.
func (c *Config) UsesMemoryStore() bool {
	return c.Redis.URL == ""
}
