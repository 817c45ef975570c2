// Package config loads triadic settings from YAML and the environment.
//
// Precedence, lowest first: Default(), the YAML file, TRIAD_* environment
// variables, then command-line flags applied by the caller.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Sink kinds.
const (
	SinkSQLite = "sqlite"
	SinkBadger = "badger"
)

// Environment variables read by ApplyEnv.
const (
	EnvDB        = "TRIAD_DB"
	EnvSink      = "TRIAD_SINK"
	EnvBadgerDir = "TRIAD_BADGER_DIR"
	EnvEager     = "TRIAD_EAGER"
	EnvLogLevel  = "TRIAD_LOG_LEVEL"
	EnvLogFormat = "TRIAD_LOG_FORMAT"
)

// Config is the full triadic configuration.
type Config struct {
	Database Database `yaml:"database" json:"database"`
	Sink     Sink     `yaml:"sink" json:"sink"`
	Stream   Stream   `yaml:"stream" json:"stream"`
	Run      Run      `yaml:"run" json:"run"`
	Log      Log      `yaml:"log" json:"log"`
}

// Database locates the SQLite event store.
type Database struct {
	Path string `yaml:"path" json:"path"`
}

// Sink selects where motifs are written.
type Sink struct {
	// Kind is "sqlite" (same database as the events) or "badger".
	Kind string `yaml:"kind" json:"kind"`

	// BadgerDir is the Badger data directory; required for kind badger.
	BadgerDir string `yaml:"badger_dir,omitempty" json:"badger_dir,omitempty"`
}

// Stream configures the event source.
type Stream struct {
	// Eager loads the whole event log into memory once.
	Eager bool `yaml:"eager" json:"eager"`
}

// Run bounds a detection run.
type Run struct {
	StopAfter     int `yaml:"stop_after" json:"stop_after"`
	ProgressEvery int `yaml:"progress_every" json:"progress_every"`
}

// Log configures the slog handler.
type Log struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Database: Database{Path: "triad.db"},
		Sink:     Sink{Kind: SinkSQLite},
		Run:      Run{ProgressEvery: 1000},
		Log:      Log{Level: "info", Format: "text"},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from TRIAD_* environment variables.
func (c *Config) ApplyEnv() error {
	c.Database.Path = envOr(EnvDB, c.Database.Path)
	c.Sink.Kind = envOr(EnvSink, c.Sink.Kind)
	c.Sink.BadgerDir = envOr(EnvBadgerDir, c.Sink.BadgerDir)
	c.Log.Level = envOr(EnvLogLevel, c.Log.Level)
	c.Log.Format = envOr(EnvLogFormat, c.Log.Format)
	if v := os.Getenv(EnvEager); v != "" {
		eager, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvEager, err)
		}
		c.Stream.Eager = eager
	}
	return nil
}

// Validate checks field values and cross-field requirements.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	switch c.Sink.Kind {
	case SinkSQLite:
	case SinkBadger:
		if c.Sink.BadgerDir == "" {
			errs = append(errs, errors.New("sink.badger_dir is required for the badger sink"))
		}
	default:
		errs = append(errs, fmt.Errorf("sink.kind %q: want %s or %s", c.Sink.Kind, SinkSQLite, SinkBadger))
	}
	if c.Run.StopAfter < 0 {
		errs = append(errs, fmt.Errorf("run.stop_after %d: must not be negative", c.Run.StopAfter))
	}
	if c.Run.ProgressEvery < 0 {
		errs = append(errs, fmt.Errorf("run.progress_every %d: must not be negative", c.Run.ProgressEvery))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q: want text or json", c.Log.Format))
	}
	return errors.Join(errs...)
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("log.level %q: %w", s, err)
	}
	return l, nil
}

// YAML renders the configuration.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
