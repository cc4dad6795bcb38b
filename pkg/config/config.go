package config

import (
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds all the configuration for the application
// The structure tags (mapstructure) tell Viper which YAML field maps to which Go struct field.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

// StorageConfig selects and parameterizes the record store backend.
type StorageConfig struct {
	Driver        string `mapstructure:"driver"` // memory, redis or postgres
	Address       string `mapstructure:"address"`
	Password      string `mapstructure:"password"`
	DB            int    `mapstructure:"db"`
	DSN           string `mapstructure:"dsn"`
	RetentionDays int    `mapstructure:"retention_days"`
}

type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"requests_per_second"`
	Burst   int     `mapstructure:"burst"`
}

// Store wraps configuration with thread-safe access and hot-reload updates.
type Store struct {
	mu  sync.RWMutex
	cfg *Config
}

func (s *Store) Get() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cfg == nil {
		return nil
	}
	cpy := *s.cfg
	return &cpy
}

func (s *Store) set(cfg *Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

func newViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("server.port", ":8080")
	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.address", "localhost:6379")
	v.SetDefault("storage.password", "")
	v.SetDefault("storage.db", 0)
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.retention_days", 30)
	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.requests_per_second", 100)
	v.SetDefault("ratelimit.burst", 200)

	v.AddConfigPath("./configs")
	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("COURIER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// LoadAndWatch loads the config and watches for on-disk changes. A missing
// config file is fine: defaults plus COURIER_* environment variables apply.
func LoadAndWatch() (*Store, error) {
	v := newViper()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	store := &Store{}
	if err := refresh(v, store); err != nil {
		return nil, err
	}

	if v.ConfigFileUsed() != "" {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			if err := refresh(v, store); err != nil {
				log.Printf("[CONFIG] reload failed: %v", err)
			} else {
				log.Printf("[CONFIG] reloaded from %s", e.Name)
			}
		})
	}

	return store, nil
}

// Load reads the configuration once, without watching. The admin CLI uses
// it; the server wants LoadAndWatch.
func Load() (*Config, error) {
	v := newViper()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func refresh(v *viper.Viper, store *Store) error {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return err
	}
	store.set(&cfg)
	return nil
}
