// Package config loads runtime settings from defaults, an optional YAML file,
// a .env file and CODSTATS_* environment variables, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/pable/codstats/internal/aggregator"
	"github.com/pable/codstats/internal/normalize"
)

const (
	defaultLogLevel  = "info"
	defaultLogFormat = "console"
	defaultCacheSize = 64
	defaultDBPath    = ":memory:"
	defaultAPIAddr   = "127.0.0.1:8080"
)

// Config is the runtime configuration.
type Config struct {
	LogLevel          string   `mapstructure:"log-level"`
	LogFormat         string   `mapstructure:"log-format"`
	Timezone          string   `mapstructure:"timezone"`
	ExcludedGameTypes []string `mapstructure:"excluded-game-types"`
	HistogramBins     int      `mapstructure:"histogram-bins"`
	CacheSize         int      `mapstructure:"cache-size"`
	DBPath            string   `mapstructure:"db-path"`
	APIAddr           string   `mapstructure:"api-addr"`
	FetchToken        string   `mapstructure:"fetch-token"`
	ConfigPath        string   `mapstructure:"-"`
}

// Location resolves Timezone; empty means the process's local zone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// DefaultPath is ~/.config/codstats/config.yml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yml"
	}
	return filepath.Join(home, ".config", "codstats", "config.yml")
}

// Load reads configuration. A missing config file is not an error; an
// unreadable or malformed one is.
func Load(configPath string) (Config, error) {
	var cfg Config

	// .env only seeds the environment; its absence is normal.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("CODSTATS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("log-level", defaultLogLevel)
	v.SetDefault("log-format", defaultLogFormat)
	v.SetDefault("timezone", "")
	v.SetDefault("excluded-game-types", normalize.DefaultExclusions)
	v.SetDefault("histogram-bins", aggregator.DefaultBins)
	v.SetDefault("cache-size", defaultCacheSize)
	v.SetDefault("db-path", defaultDBPath)
	v.SetDefault("api-addr", defaultAPIAddr)
	v.SetDefault("fetch-token", "")

	path := configPath
	if path == "" {
		path = DefaultPath()
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || (!errors.As(err, &notFound) && !os.IsNotExist(err)) {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	cfg.ConfigPath = path
	if cfg.HistogramBins <= 0 {
		cfg.HistogramBins = aggregator.DefaultBins
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaultCacheSize
	}
	return cfg, nil
}
