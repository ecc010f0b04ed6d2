package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/ligustah/fetchq/internal/progress"
)

// Config defines configuration for the fetchq CLI.
type Config struct {
	DownloadDir  string        `yaml:"download_dir" default:"downloads"`
	MaxParallel  int           `yaml:"max_parallel" default:"5"`
	TickInterval time.Duration `yaml:"tick_interval" default:"100ms"`
	ChunkSize    ByteSize      `yaml:"chunk_size" default:"2097152"`
	Override     bool          `yaml:"override"`
	Progress     bool          `yaml:"progress"`
	// RecordsURL is a gocloud.dev/blob bucket URL for task records. Empty
	// keeps each record next to its target file.
	RecordsURL string       `yaml:"records_url"`
	Retry      RetryConfig  `yaml:"retry"`
	HTTP       HTTPConfig   `yaml:"http"`
	Log        LogConfig    `yaml:"log"`
	Tasks      []TaskConfig `yaml:"tasks"`
}

// RetryConfig defines retry behavior. A negative Attempts disables retries;
// a zero Backoff retries at once.
type RetryConfig struct {
	Attempts   int           `yaml:"attempts" default:"5"`
	Backoff    time.Duration `yaml:"backoff" default:"1s"`
	MaxBackoff time.Duration `yaml:"max_backoff" default:"30s"`
}

// HTTPConfig tunes the HTTP client.
type HTTPConfig struct {
	Timeout             time.Duration `yaml:"timeout"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host" default:"16"`
}

// LogConfig selects log level and output format (console or json).
type LogConfig struct {
	Level  string `yaml:"level" default:"info"`
	Format string `yaml:"format" default:"console"`
}

// TaskConfig is a download listed in the configuration file.
type TaskConfig struct {
	URL       string `yaml:"url"`
	Directory string `yaml:"directory"`
	FileName  string `yaml:"file_name"`
}

// ByteSize is a byte count that unmarshals from strings such as "2MiB".
type ByteSize int64

// UnmarshalYAML implements yaml.Unmarshaler.
func (b *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	n, err := progress.ParseBytes(s)
	if err != nil {
		return err
	}
	*b = ByteSize(n)
	return nil
}

// Default returns a Config with sensible defaults.
func Default() Config {
	var cfg Config
	defaults.MustSet(&cfg)
	return cfg
}

// LoadFromFile loads configuration from a YAML file. Fields missing from the
// file keep their defaults.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	// Defaults go in first so an explicit zero in the file survives.
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the FETCHQ_ prefix.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("FETCHQ_DOWNLOAD_DIR"); v != "" {
		c.DownloadDir = v
	}
	if v := os.Getenv("FETCHQ_MAX_PARALLEL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse FETCHQ_MAX_PARALLEL: %w", err)
		}
		c.MaxParallel = n
	}
	if v := os.Getenv("FETCHQ_TICK_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse FETCHQ_TICK_INTERVAL: %w", err)
		}
		c.TickInterval = d
	}
	if v := os.Getenv("FETCHQ_CHUNK_SIZE"); v != "" {
		size, err := progress.ParseBytes(v)
		if err != nil {
			return fmt.Errorf("parse FETCHQ_CHUNK_SIZE: %w", err)
		}
		c.ChunkSize = ByteSize(size)
	}
	if v := os.Getenv("FETCHQ_OVERRIDE"); v != "" {
		c.Override = v == "true" || v == "1"
	}
	if v := os.Getenv("FETCHQ_PROGRESS"); v != "" {
		c.Progress = v == "true" || v == "1"
	}
	if v := os.Getenv("FETCHQ_RECORDS_URL"); v != "" {
		c.RecordsURL = v
	}
	if v := os.Getenv("FETCHQ_RETRY_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse FETCHQ_RETRY_ATTEMPTS: %w", err)
		}
		c.Retry.Attempts = n
	}
	if v := os.Getenv("FETCHQ_RETRY_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse FETCHQ_RETRY_BACKOFF: %w", err)
		}
		c.Retry.Backoff = d
	}
	if v := os.Getenv("FETCHQ_RETRY_MAX_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse FETCHQ_RETRY_MAX_BACKOFF: %w", err)
		}
		c.Retry.MaxBackoff = d
	}
	if v := os.Getenv("FETCHQ_HTTP_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse FETCHQ_HTTP_TIMEOUT: %w", err)
		}
		c.HTTP.Timeout = d
	}
	if v := os.Getenv("FETCHQ_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("FETCHQ_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.MaxParallel <= 0 {
		return errors.New("config: max_parallel must be positive")
	}
	if c.TickInterval <= 0 {
		return errors.New("config: tick_interval must be positive")
	}
	if c.ChunkSize <= 0 {
		return errors.New("config: chunk_size must be positive")
	}
	if c.Retry.Backoff < 0 || c.Retry.MaxBackoff < 0 {
		return errors.New("config: retry backoff must not be negative")
	}
	if c.HTTP.Timeout < 0 {
		return errors.New("config: http.timeout must not be negative")
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: log.level: %w", err)
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		return fmt.Errorf("config: log.format must be console or json, got %q", c.Log.Format)
	}
	for i, t := range c.Tasks {
		if t.URL == "" {
			return fmt.Errorf("config: tasks[%d]: url is required", i)
		}
	}
	return nil
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored; tasks are appended.
func (c Config) Merge(override Config) Config {
	if override.DownloadDir != "" {
		c.DownloadDir = override.DownloadDir
	}
	if override.MaxParallel != 0 {
		c.MaxParallel = override.MaxParallel
	}
	if override.TickInterval != 0 {
		c.TickInterval = override.TickInterval
	}
	if override.ChunkSize != 0 {
		c.ChunkSize = override.ChunkSize
	}
	if override.Override {
		c.Override = override.Override
	}
	if override.Progress {
		c.Progress = override.Progress
	}
	if override.RecordsURL != "" {
		c.RecordsURL = override.RecordsURL
	}
	if override.Retry.Attempts != 0 {
		c.Retry.Attempts = override.Retry.Attempts
	}
	if override.Retry.Backoff != 0 {
		c.Retry.Backoff = override.Retry.Backoff
	}
	if override.Retry.MaxBackoff != 0 {
		c.Retry.MaxBackoff = override.Retry.MaxBackoff
	}
	if override.HTTP.Timeout != 0 {
		c.HTTP.Timeout = override.HTTP.Timeout
	}
	if override.HTTP.MaxIdleConnsPerHost != 0 {
		c.HTTP.MaxIdleConnsPerHost = override.HTTP.MaxIdleConnsPerHost
	}
	if override.Log.Level != "" {
		c.Log.Level = override.Log.Level
	}
	if override.Log.Format != "" {
		c.Log.Format = override.Log.Format
	}
	c.Tasks = append(c.Tasks, override.Tasks...)
	return c
}
