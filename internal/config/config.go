package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
// It is read-only after Load() returns and thread-safe for concurrent reads.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Annotation AnnotationConfig `yaml:"annotation"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Sync       SyncConfig       `yaml:"sync"`
	Auth       AuthConfig       `yaml:"auth"`
	Log        LogConfig        `yaml:"log"`
	Timezone   string           `yaml:"timezone"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig contains database settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AnnotationConfig contains annotation generator settings.
// An empty APIKey disables annotation generation.
type AnnotationConfig struct {
	APIKey    string   `yaml:"-"` // env-only, never in YAML
	Model     string   `yaml:"model"`
	Timeout   Duration `yaml:"timeout"`
	QueueSize int      `yaml:"queue_size"`
	Workers   int      `yaml:"workers"`
}

// IngestConfig contains health platform adapter settings.
// An empty BaseURL disables device ingestion.
type IngestConfig struct {
	BaseURL string   `yaml:"base_url"`
	Token   string   `yaml:"-"` // env-only, never in YAML
	Timeout Duration `yaml:"timeout"`
}

// SyncConfig contains periodic device sync settings.
type SyncConfig struct {
	Interval     Duration `yaml:"interval"`
	LookbackDays int      `yaml:"lookback_days"`
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	APIKey string `yaml:"-"` // env-only, never in YAML
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Location returns the configured time zone used to bucket samples into
// calendar dates.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// AnnotationEnabled reports whether an annotation generator is configured.
func (c *Config) AnnotationEnabled() bool {
	return c.Annotation.APIKey != ""
}

// IngestEnabled reports whether a device ingestion endpoint is configured.
func (c *Config) IngestEnabled() bool {
	return c.Ingest.BaseURL != ""
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load loads configuration with precedence: defaults → YAML file → env vars.
// Returns an immutable Config suitable for concurrent read access.
func Load() (*Config, error) {
	cfg := newDefaults()

	configPath := getEnv("HEALTHSYNC_CONFIG_PATH", "config/healthsync.yaml")

	// Load YAML file if it exists (missing file is not an error)
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a specific path.
// Used by tests and callers that pick the file themselves.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	// File must exist for this function
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newDefaults returns a Config with all default values.
func newDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Database: DatabaseConfig{
			Path: "data/healthsync.db",
		},
		Annotation: AnnotationConfig{
			Model:     "gpt-4o-mini",
			Timeout:   Duration(60 * time.Second),
			QueueSize: 64,
			Workers:   1,
		},
		Ingest: IngestConfig{
			Timeout: Duration(30 * time.Second),
		},
		Sync: SyncConfig{
			Interval:     Duration(1 * time.Hour),
			LookbackDays: 2,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Timezone: "UTC",
	}
}

// loadYAMLFile loads configuration from a YAML file if it exists.
// Missing file is not an error; we just use defaults.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty env vars override config values.
func applyEnvOverrides(cfg *Config) {
	// Server
	if v := os.Getenv("HEALTHSYNC_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("HEALTHSYNC_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = Duration(d)
		}
	}
	if v := os.Getenv("HEALTHSYNC_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = Duration(d)
		}
	}
	if v := os.Getenv("HEALTHSYNC_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ShutdownTimeout = Duration(d)
		}
	}

	// Database
	if v := os.Getenv("HEALTHSYNC_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Annotation (OPENAI_API_KEY is industry convention)
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Annotation.APIKey = v
	}
	if v := os.Getenv("HEALTHSYNC_ANNOTATION_MODEL"); v != "" {
		cfg.Annotation.Model = v
	}
	if v := os.Getenv("HEALTHSYNC_ANNOTATION_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Annotation.Timeout = Duration(d)
		}
	}

	// Ingest
	if v := os.Getenv("HEALTHSYNC_INGEST_URL"); v != "" {
		cfg.Ingest.BaseURL = v
	}
	if v := os.Getenv("HEALTHSYNC_INGEST_TOKEN"); v != "" {
		cfg.Ingest.Token = v
	}

	// Sync
	if v := os.Getenv("HEALTHSYNC_SYNC_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Sync.Interval = Duration(d)
		}
	}
	if v := os.Getenv("HEALTHSYNC_SYNC_LOOKBACK_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sync.LookbackDays = n
		}
	}

	// Auth
	if v := os.Getenv("HEALTHSYNC_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}

	// Log
	if v := os.Getenv("HEALTHSYNC_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("HEALTHSYNC_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}

	if v := os.Getenv("HEALTHSYNC_TIMEZONE"); v != "" {
		cfg.Timezone = v
	}
}

// validate checks that configuration values are usable.
// In dev mode (HEALTHSYNC_DEV_MODE=true), API key validation is skipped.
// A missing OpenAI key is never an error; annotation is simply disabled.
func (c *Config) validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	if c.Sync.LookbackDays < 0 {
		return errors.New("sync.lookback_days must not be negative")
	}
	if c.Sync.Interval <= 0 {
		return errors.New("sync.interval must be positive")
	}
	if c.Annotation.QueueSize < 1 {
		return errors.New("annotation.queue_size must be at least 1")
	}
	if c.Annotation.Workers < 1 {
		return errors.New("annotation.workers must be at least 1")
	}

	if os.Getenv("HEALTHSYNC_DEV_MODE") == "true" {
		return nil
	}

	if c.Auth.APIKey == "" {
		return errors.New("HEALTHSYNC_API_KEY is required")
	}
	return nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
