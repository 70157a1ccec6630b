// Package config loads chainstate settings from YAML or TOML files with
// CHAINSTATE_* environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"chainstate/internal/blob"
	"chainstate/internal/compiler"
	"chainstate/internal/logging"
	"chainstate/pkg/chainerr"
)

// FileNames are searched, in order, by FindConfigFile.
var FileNames = []string{"chainstate.yaml", "chainstate.yml", "chainstate.toml"}

// Config is the full process configuration.
type Config struct {
	Listen   string         `yaml:"listen" toml:"listen"`
	Autosave AutosaveConfig `yaml:"autosave" toml:"autosave"`
	Blob     blob.Config    `yaml:"blob" toml:"blob"`
	Log      logging.Config `yaml:"log" toml:"log"`
	Compiler CompilerConfig `yaml:"compiler" toml:"compiler"`
	Metrics  MetricsConfig  `yaml:"metrics" toml:"metrics"`
}

// AutosaveConfig controls debounced chain saves.
type AutosaveConfig struct {
	Enabled      bool    `yaml:"enabled" toml:"enabled"`
	DelaySeconds float64 `yaml:"delay_seconds" toml:"delay_seconds"`
}

// Delay returns the configured quiescence period.
func (a AutosaveConfig) Delay() time.Duration {
	return time.Duration(a.DelaySeconds * float64(time.Second))
}

// CompilerConfig enables the source watcher when Roots is non-empty.
type CompilerConfig struct {
	Roots      []string `yaml:"roots" toml:"roots"`
	Extensions []string `yaml:"extensions" toml:"extensions"`
	DebounceMS int      `yaml:"debounce_ms" toml:"debounce_ms"`
}

// Watcher converts the section for compiler.NewWatcher.
func (c CompilerConfig) Watcher() compiler.WatcherConfig {
	return compiler.WatcherConfig{
		Roots:      c.Roots,
		Extensions: c.Extensions,
		Debounce:   time.Duration(c.DebounceMS) * time.Millisecond,
	}
}

// MetricsConfig selects the persistence metrics exporters.
type MetricsConfig struct {
	Prometheus bool   `yaml:"prometheus" toml:"prometheus"`
	Expvar     bool   `yaml:"expvar" toml:"expvar"`
	Namespace  string `yaml:"namespace" toml:"namespace"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Listen:   "127.0.0.1:7545",
		Autosave: AutosaveConfig{Enabled: true, DelaySeconds: 30},
		Blob:     blob.Config{Driver: blob.DriverFilesystem, Root: "./.chainstate"},
		Log:      logging.Config{Level: "info", Format: "text"},
		Metrics:  MetricsConfig{Prometheus: true, Namespace: "chainstate"},
	}
}

// Load reads path over the defaults and applies environment overrides. An
// empty path yields defaults plus environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decode(path, data, &cfg); err != nil {
			return Config{}, chainerr.Wrap(err, chainerr.CodeInvalidInput, fmt.Sprintf("parse %s", filepath.Base(path))).
				WithDetail("path", path)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, cfg)
	case ".toml":
		return toml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
}

// Environment overrides:
//
//	CHAINSTATE_LISTEN: HTTP listen address
//	CHAINSTATE_AUTOSAVE_ENABLED: true|false
//	CHAINSTATE_AUTOSAVE_DELAY: seconds
//	CHAINSTATE_LOG_FORMAT: text|json
//
// CHAINSTATE_LOG_LEVEL is read by the logging package and CHAINSTATE_BLOB_*
// by blob.Open.
func applyEnv(cfg *Config) error {
	if v := os.Getenv("CHAINSTATE_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("CHAINSTATE_AUTOSAVE_ENABLED"); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return chainerr.InvalidInput("CHAINSTATE_AUTOSAVE_ENABLED must be a boolean").WithDetail("value", v)
		}
		cfg.Autosave.Enabled = on
	}
	if v := os.Getenv("CHAINSTATE_AUTOSAVE_DELAY"); v != "" {
		secs, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return chainerr.InvalidInput("CHAINSTATE_AUTOSAVE_DELAY must be a number of seconds").WithDetail("value", v)
		}
		cfg.Autosave.DelaySeconds = secs
	}
	if v := os.Getenv("CHAINSTATE_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	return nil
}

// Validate checks the configuration for values no component can run with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Listen) == "" {
		return chainerr.InvalidInput("listen address is required")
	}
	if c.Autosave.DelaySeconds <= 0 {
		return chainerr.InvalidInput("autosave delay must be positive").
			WithDetail("delay_seconds", c.Autosave.DelaySeconds)
	}
	switch c.Blob.Driver {
	case "", blob.DriverFilesystem, blob.DriverS3, blob.DriverMemory, blob.DriverSQLite, blob.DriverPostgres:
	default:
		return chainerr.InvalidInput(fmt.Sprintf("unknown blob driver %q", c.Blob.Driver))
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return chainerr.InvalidInput(fmt.Sprintf("unknown log format %q", c.Log.Format))
	}
	if c.Compiler.DebounceMS < 0 {
		return chainerr.InvalidInput("compiler debounce must not be negative")
	}
	return nil
}

// FindConfigFile walks up from dir looking for one of FileNames. It returns
// "" without error when none exists.
func FindConfigFile(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		for _, name := range FileNames {
			candidate := filepath.Join(abs, name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, nil
			}
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", nil
		}
		abs = parent
	}
}
