// Package config loads the fedsql configuration from file and
// environment via viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/fedsql/fedsql/internal/engine"
	"github.com/fedsql/fedsql/internal/log"
)

// Config represents the complete fedsql configuration.
type Config struct {
	Engine  EngineConfig   `mapstructure:"engine"`
	Logging log.Config     `mapstructure:"logging"`
	Sources []SourceConfig `mapstructure:"sources"`
}

// EngineConfig represents engine-specific configuration.
type EngineConfig struct {
	DefaultSource      string        `mapstructure:"default_source"`
	MaxParallelFetches int           `mapstructure:"max_parallel_fetches"`
	FetchTimeout       time.Duration `mapstructure:"fetch_timeout"`
	QueryTimeout       time.Duration `mapstructure:"query_timeout"`
	CacheEnabled       bool          `mapstructure:"cache_enabled"`
	CacheTTL           time.Duration `mapstructure:"cache_ttl"`
	CacheSize          int           `mapstructure:"cache_size"`
	StreamBatchSize    int           `mapstructure:"stream_batch_size"`
}

// SourceConfig declares one data source. Kind selects the driver;
// the connection fields it reads depend on the kind:
//
//	memory    Tables (seed data), no connection
//	postgres  DSN
//	sqlite    DSN (file path)
//	mongo     DSN (connection URI) and Database
//	redis     DSN (host:port) and DB
type SourceConfig struct {
	Name     string      `mapstructure:"name"`
	Kind     string      `mapstructure:"kind"`
	DSN      string      `mapstructure:"dsn"`
	Database string      `mapstructure:"database"`
	DB       int         `mapstructure:"db"`
	Tables   []SeedTable `mapstructure:"tables"`
}

// SeedTable is in-config seed data for a memory source.
type SeedTable struct {
	Table   string  `mapstructure:"table"`
	Columns []string `mapstructure:"columns"`
	Rows    [][]any `mapstructure:"rows"`
}

// DefaultConfig returns a configuration with sensible defaults and no
// sources.
func DefaultConfig() *Config {
	def := engine.DefaultConfig()
	return &Config{
		Engine: EngineConfig{
			MaxParallelFetches: def.MaxParallelFetches,
			FetchTimeout:       def.FetchTimeout,
			QueryTimeout:       def.QueryTimeout,
			CacheEnabled:       def.CacheEnabled,
			CacheTTL:           def.CacheTTL,
			CacheSize:          def.CacheSize,
			StreamBatchSize:    def.StreamBatchSize,
		},
		Logging: log.DefaultConfig(),
	}
}

// Load reads configuration from the given file, falling back to
// fedsql.yaml in the working directory, with FEDSQL_* environment
// variables overriding either.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("fedsql")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.fedsql")
	}

	v.SetEnvPrefix("FEDSQL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// A missing default config file is fine; an explicit path is not.
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := DefaultConfig()
	v.SetDefault("engine.max_parallel_fetches", def.Engine.MaxParallelFetches)
	v.SetDefault("engine.fetch_timeout", def.Engine.FetchTimeout)
	v.SetDefault("engine.query_timeout", def.Engine.QueryTimeout)
	v.SetDefault("engine.cache_enabled", def.Engine.CacheEnabled)
	v.SetDefault("engine.cache_ttl", def.Engine.CacheTTL)
	v.SetDefault("engine.cache_size", def.Engine.CacheSize)
	v.SetDefault("engine.stream_batch_size", def.Engine.StreamBatchSize)
	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.format", def.Logging.Format)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Engine.MaxParallelFetches < 1 {
		return fmt.Errorf("max parallel fetches must be at least 1")
	}
	if c.Engine.CacheSize < 0 {
		return fmt.Errorf("cache size cannot be negative")
	}
	if c.Engine.StreamBatchSize < 1 {
		return fmt.Errorf("stream batch size must be at least 1")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	seen := make(map[string]bool, len(c.Sources))
	for i := range c.Sources {
		src := &c.Sources[i]
		if src.Name == "" {
			return fmt.Errorf("source %d: name is required", i)
		}
		if seen[src.Name] {
			return fmt.Errorf("duplicate source name: %s", src.Name)
		}
		seen[src.Name] = true
		if err := src.validate(); err != nil {
			return fmt.Errorf("source %s: %w", src.Name, err)
		}
	}

	if c.Engine.DefaultSource != "" && !seen[c.Engine.DefaultSource] {
		return fmt.Errorf("default source %s is not declared", c.Engine.DefaultSource)
	}
	return nil
}

func (s *SourceConfig) validate() error {
	switch strings.ToLower(s.Kind) {
	case "memory":
		for _, t := range s.Tables {
			if t.Table == "" {
				return fmt.Errorf("seed table name is required")
			}
			if len(t.Columns) == 0 {
				return fmt.Errorf("seed table %s: columns are required", t.Table)
			}
			for i, row := range t.Rows {
				if len(row) != len(t.Columns) {
					return fmt.Errorf("seed table %s: row %d has %d values, want %d",
						t.Table, i+1, len(row), len(t.Columns))
				}
			}
		}
	case "postgres", "sqlite":
		if s.DSN == "" {
			return fmt.Errorf("dsn is required for kind %s", s.Kind)
		}
	case "mongo":
		if s.DSN == "" {
			return fmt.Errorf("dsn is required for kind mongo")
		}
		if s.Database == "" {
			return fmt.Errorf("database is required for kind mongo")
		}
	case "redis":
		if s.DSN == "" {
			return fmt.Errorf("dsn is required for kind redis")
		}
	default:
		return fmt.Errorf("unknown source kind: %s", s.Kind)
	}
	return nil
}

// ToEngineConfig converts to engine.Config.
func (c *Config) ToEngineConfig() engine.Config {
	return engine.Config{
		DefaultSource:      c.Engine.DefaultSource,
		MaxParallelFetches: c.Engine.MaxParallelFetches,
		FetchTimeout:       c.Engine.FetchTimeout,
		QueryTimeout:       c.Engine.QueryTimeout,
		CacheEnabled:       c.Engine.CacheEnabled,
		CacheTTL:           c.Engine.CacheTTL,
		CacheSize:          c.Engine.CacheSize,
		StreamBatchSize:    c.Engine.StreamBatchSize,
	}
}
