// Package config loads tinyGems settings from defaults, a YAML file, a .env
// file and TG_-prefixed environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tinygems/tinygems/internal/logging"
	"github.com/tinygems/tinygems/internal/match"
	"github.com/tinygems/tinygems/internal/provider"
	"github.com/tinygems/tinygems/internal/webhook"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig      `yaml:"server"`
	Database  DatabaseConfig    `yaml:"database"`
	Logging   logging.Config    `yaml:"logging"`
	Search    SearchConfig      `yaml:"search"`
	Cache     CacheConfig       `yaml:"cache"`
	Platforms PlatformsConfig   `yaml:"platforms"`
	Webhooks  []webhook.Webhook `yaml:"webhooks"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port     int    `yaml:"port"`
	BasePath string `yaml:"base_path"`
}

// DatabaseConfig holds SQLite settings. A zero OptimizeInterval disables
// scheduled optimization.
type DatabaseConfig struct {
	Path             string        `yaml:"path"`
	BackupDir        string        `yaml:"backup_dir"`
	BackupRetention  int           `yaml:"backup_retention"`
	OptimizeInterval time.Duration `yaml:"optimize_interval"`
}

// SearchConfig bounds per-platform searches.
type SearchConfig struct {
	PlatformTimeout time.Duration `yaml:"platform_timeout"`
	MaxCandidates   int           `yaml:"max_candidates"`
	// Weights are the candidate scoring bonuses for secondary signals.
	Weights match.Weights `yaml:"weights"`
}

// CacheConfig holds the Redis search cache settings. An empty RedisAddr
// disables the cache.
type CacheConfig struct {
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	TTL           time.Duration `yaml:"ttl"`
}

// PlatformsConfig holds per-platform credentials.
type PlatformsConfig struct {
	Spotify struct {
		ClientID     string `yaml:"client_id"`
		ClientSecret string `yaml:"client_secret"`
	} `yaml:"spotify"`
	SoundCloud struct {
		ClientID string `yaml:"client_id"`
	} `yaml:"soundcloud"`
	YouTube struct {
		APIKey string `yaml:"api_key"`
	} `yaml:"youtube"`
	Tidal struct {
		ClientID     string `yaml:"client_id"`
		ClientSecret string `yaml:"client_secret"`
		CountryCode  string `yaml:"country_code"`
	} `yaml:"tidal"`
	Bandcamp struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"bandcamp"`
	AppleMusic struct {
		Enabled bool   `yaml:"enabled"`
		Country string `yaml:"country"`
	} `yaml:"apple_music"`
}

// Enabled reports whether p has the credentials (or, for key-less
// platforms, the enabled flag) its adapter needs.
func (p PlatformsConfig) Enabled(pl provider.Platform) bool {
	switch pl {
	case provider.Spotify:
		return p.Spotify.ClientID != "" && p.Spotify.ClientSecret != ""
	case provider.SoundCloud:
		return p.SoundCloud.ClientID != ""
	case provider.YouTube:
		return p.YouTube.APIKey != ""
	case provider.Tidal:
		return p.Tidal.ClientID != "" && p.Tidal.ClientSecret != ""
	case provider.Bandcamp:
		return p.Bandcamp.Enabled
	case provider.AppleMusic:
		return p.AppleMusic.Enabled
	}
	return false
}

// Default returns a Config with sensible defaults. The key-less platforms
// are enabled; the others need credentials.
func Default() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:     8080,
			BasePath: "/",
		},
		Database: DatabaseConfig{
			Path:             "data/tinygems.db",
			BackupDir:        "data/backups",
			BackupRetention:  7,
			OptimizeInterval: 24 * time.Hour,
		},
		Logging: logging.DefaultConfig(),
		Search: SearchConfig{
			PlatformTimeout: provider.DefaultPlatformTimeout,
			MaxCandidates:   5,
			Weights:         match.DefaultWeights(),
		},
		Cache: CacheConfig{
			TTL: 15 * time.Minute,
		},
	}
	cfg.Platforms.Tidal.CountryCode = "US"
	cfg.Platforms.Bandcamp.Enabled = true
	cfg.Platforms.AppleMusic.Enabled = true
	cfg.Platforms.AppleMusic.Country = "us"
	return cfg
}

// Load reads config from a YAML file (if it exists), then a .env file in
// the working directory, then environment variables. Variables already set
// in the environment win over .env entries.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}

// envSetter applies one environment variable to the config.
type envSetter struct {
	name string
	set  func(c *Config, v string) error
}

func str(dst func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error { *dst(c) = v; return nil }
}

func integer(dst func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst(c) = n
		return nil
	}
}

func duration(dst func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*dst(c) = d
		return nil
	}
}

func boolean(dst func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*dst(c) = b
		return nil
	}
}

var envSetters = []envSetter{
	{"TG_PORT", integer(func(c *Config) *int { return &c.Server.Port })},
	{"TG_BASE_PATH", str(func(c *Config) *string { return &c.Server.BasePath })},
	{"TG_DB_PATH", str(func(c *Config) *string { return &c.Database.Path })},
	{"TG_BACKUP_DIR", str(func(c *Config) *string { return &c.Database.BackupDir })},
	{"TG_BACKUP_RETENTION", integer(func(c *Config) *int { return &c.Database.BackupRetention })},
	{"TG_LOG_LEVEL", str(func(c *Config) *string { return &c.Logging.Level })},
	{"TG_LOG_FORMAT", str(func(c *Config) *string { return &c.Logging.Format })},
	{"TG_LOG_FILE", str(func(c *Config) *string { return &c.Logging.FilePath })},
	{"TG_SEARCH_TIMEOUT", duration(func(c *Config) *time.Duration { return &c.Search.PlatformTimeout })},
	{"TG_MAX_CANDIDATES", integer(func(c *Config) *int { return &c.Search.MaxCandidates })},
	{"TG_REDIS_ADDR", str(func(c *Config) *string { return &c.Cache.RedisAddr })},
	{"TG_REDIS_PASSWORD", str(func(c *Config) *string { return &c.Cache.RedisPassword })},
	{"TG_REDIS_DB", integer(func(c *Config) *int { return &c.Cache.RedisDB })},
	{"TG_CACHE_TTL", duration(func(c *Config) *time.Duration { return &c.Cache.TTL })},
	{"TG_SPOTIFY_CLIENT_ID", str(func(c *Config) *string { return &c.Platforms.Spotify.ClientID })},
	{"TG_SPOTIFY_CLIENT_SECRET", str(func(c *Config) *string { return &c.Platforms.Spotify.ClientSecret })},
	{"TG_SOUNDCLOUD_CLIENT_ID", str(func(c *Config) *string { return &c.Platforms.SoundCloud.ClientID })},
	{"TG_YOUTUBE_API_KEY", str(func(c *Config) *string { return &c.Platforms.YouTube.APIKey })},
	{"TG_TIDAL_CLIENT_ID", str(func(c *Config) *string { return &c.Platforms.Tidal.ClientID })},
	{"TG_TIDAL_CLIENT_SECRET", str(func(c *Config) *string { return &c.Platforms.Tidal.ClientSecret })},
	{"TG_TIDAL_COUNTRY", str(func(c *Config) *string { return &c.Platforms.Tidal.CountryCode })},
	{"TG_BANDCAMP_ENABLED", boolean(func(c *Config) *bool { return &c.Platforms.Bandcamp.Enabled })},
	{"TG_APPLE_MUSIC_ENABLED", boolean(func(c *Config) *bool { return &c.Platforms.AppleMusic.Enabled })},
	{"TG_APPLE_MUSIC_COUNTRY", str(func(c *Config) *string { return &c.Platforms.AppleMusic.Country })},
}

func (c *Config) loadFromEnv() error {
	var errs []error
	for _, s := range envSetters {
		v, ok := os.LookupEnv(s.name)
		if !ok || v == "" {
			continue
		}
		if err := s.set(c, v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Database.BackupRetention < 1 {
		return fmt.Errorf("database backup_retention must be at least 1, got %d", c.Database.BackupRetention)
	}
	if c.Database.OptimizeInterval < 0 {
		return fmt.Errorf("database optimize_interval must not be negative, got %s", c.Database.OptimizeInterval)
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if c.Search.PlatformTimeout <= 0 {
		return fmt.Errorf("search platform_timeout must be positive, got %s", c.Search.PlatformTimeout)
	}
	if c.Search.MaxCandidates < 1 {
		return fmt.Errorf("search max_candidates must be at least 1, got %d", c.Search.MaxCandidates)
	}
	w := c.Search.Weights
	for name, v := range map[string]float64{
		"genre":            w.Genre,
		"location_exact":   w.LocationExact,
		"location_partial": w.LocationPartial,
		"reciprocal_link":  w.ReciprocalLink,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("search weights %s must be within [0,1], got %g", name, v)
		}
	}
	if c.Cache.RedisAddr != "" && c.Cache.TTL <= 0 {
		return fmt.Errorf("cache ttl must be positive, got %s", c.Cache.TTL)
	}
	for _, w := range c.Webhooks {
		if err := w.Validate(); err != nil {
			return err
		}
	}
	c.Server.BasePath = strings.TrimRight(c.Server.BasePath, "/")
	return nil
}
