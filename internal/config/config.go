// Package config provides configuration management for savekeep using Viper.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/thoreinstein/savekeep/internal/errors"
	"github.com/thoreinstein/savekeep/internal/paths"
	"github.com/thoreinstein/savekeep/pkg/fileutil"
)

// AppName is the application name used for config file naming.
const AppName = paths.AppName

// ConfigDirEnv overrides the directory searched for config.yaml.
const ConfigDirEnv = "SAVEKEEP_CONFIG_DIR"

// Path comparison policies for the path_case key.
const (
	PathCaseSensitive   = "sensitive"
	PathCaseInsensitive = "insensitive"
)

// Defaults.
const (
	DefaultRetention   = 10
	DefaultConcurrency = 4
	DefaultServeAddr   = "127.0.0.1:7474"
)

// Config represents the top-level configuration structure.
type Config struct {
	Version          int           `mapstructure:"version" yaml:"version" json:"version" toml:"version"`
	StoreDir         string        `mapstructure:"store_dir" yaml:"store_dir" json:"store_dir" toml:"store_dir"`
	Retention        int           `mapstructure:"retention" yaml:"retention" json:"retention" toml:"retention"`
	PathCase         string        `mapstructure:"path_case" yaml:"path_case" json:"path_case" toml:"path_case"`
	PreRestoreBackup bool          `mapstructure:"pre_restore_backup" yaml:"pre_restore_backup" json:"pre_restore_backup" toml:"pre_restore_backup"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout" yaml:"operation_timeout" json:"operation_timeout" toml:"operation_timeout"`
	Journal          bool          `mapstructure:"journal" yaml:"journal" json:"journal" toml:"journal"`
	Concurrency      int           `mapstructure:"concurrency" yaml:"concurrency" json:"concurrency" toml:"concurrency"`
	Serve            ServeConfig   `mapstructure:"serve" yaml:"serve" json:"serve" toml:"serve"`
}

// ServeConfig holds settings for the HTTP API.
type ServeConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr" json:"addr" toml:"addr"`
}

// FoldCase reports whether path and name comparisons ignore case.
func (c *Config) FoldCase() bool {
	return c.PathCase == PathCaseInsensitive
}

// Keys lists every configuration key in display order.
var Keys = []string{
	"version",
	"store_dir",
	"retention",
	"path_case",
	"pre_restore_backup",
	"operation_timeout",
	"journal",
	"concurrency",
	"serve.addr",
}

// Default returns the built-in configuration with the store under dir.
func Default(storeDir string) *Config {
	return &Config{
		Version:          1,
		StoreDir:         storeDir,
		Retention:        DefaultRetention,
		PathCase:         PathCaseSensitive,
		PreRestoreBackup: true,
		Journal:          true,
		Concurrency:      DefaultConcurrency,
		Serve:            ServeConfig{Addr: DefaultServeAddr},
	}
}

// Init resets Viper and installs savekeep's defaults.
// Call this once at application startup before accessing config values.
func Init() {
	viper.Reset()

	// Config file settings
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Search paths (in order of precedence)
	if dir := os.Getenv(ConfigDirEnv); dir != "" {
		viper.AddConfigPath(dir)
	}
	viper.AddConfigPath(".") // Current directory
	viper.AddConfigPath(paths.ConfigDir())

	// Environment variable support; serve.addr reads SAVEKEEP_SERVE_ADDR
	viper.SetEnvPrefix("SAVEKEEP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("version", 1)
	viper.SetDefault("store_dir", paths.DefaultStoreDir())
	viper.SetDefault("retention", DefaultRetention)
	viper.SetDefault("path_case", PathCaseSensitive)
	viper.SetDefault("pre_restore_backup", true)
	viper.SetDefault("operation_timeout", "0s")
	viper.SetDefault("journal", true)
	viper.SetDefault("concurrency", DefaultConcurrency)
	viper.SetDefault("serve.addr", DefaultServeAddr)
}

// Load reads the configuration file.
// If path is provided, it reads from that specific file.
// If path is empty, it searches in the default locations.
// Returns the loaded configuration or default values if no file is found (when path is empty).
func Load(path string) (*Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound) && path == "":
			// Implicit load without a file uses defaults
		case path != "" && errors.Is(err, os.ErrNotExist):
			return nil, errors.Wrapf(err, "config file not found at %s", path)
		default:
			return nil, errors.Wrap(err, "reading config file")
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshaling config")
	}
	cfg.StoreDir = expandHome(cfg.StoreDir)

	if errs := Validate(&cfg); len(errs) > 0 {
		return nil, errors.Mark(errors.Wrap(errs[0], "validating config"), errors.ErrInvalidConfig)
	}

	return &cfg, nil
}

// FilePath returns the config file Viper read, or the default location
// for writes when none was read.
func FilePath() string {
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	if dir := os.Getenv(ConfigDirEnv); dir != "" {
		return filepath.Join(dir, "config.yaml")
	}
	return filepath.Join(paths.ConfigDir(), "config.yaml")
}

// Set validates and stores one key, then writes the whole configuration
// to FilePath atomically.
func Set(key, value string) error {
	if !isKey(key) {
		return errors.WithDetailf(errors.Newf("unknown config key %q", key),
			"valid keys: %s", strings.Join(Keys, ", "))
	}

	previous := viper.Get(key)
	viper.Set(key, value)

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		viper.Set(key, previous)
		return errors.Mark(errors.Wrapf(err, "invalid value for %s", key), errors.ErrInvalidConfig)
	}
	if errs := Validate(&cfg); len(errs) > 0 {
		viper.Set(key, previous)
		return errors.Mark(errors.Wrap(errs[0], "validating config"), errors.ErrInvalidConfig)
	}

	path := FilePath()
	if err := paths.EnsureDir(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "creating config directory")
	}
	if err := fileutil.AtomicWriteYAML(path, cfg.Map()); err != nil {
		return errors.Wrap(err, "writing config file")
	}
	return nil
}

// Map renders cfg in file form; durations are written as strings.
func (c *Config) Map() map[string]any {
	return map[string]any{
		"version":            c.Version,
		"store_dir":          c.StoreDir,
		"retention":          c.Retention,
		"path_case":          c.PathCase,
		"pre_restore_backup": c.PreRestoreBackup,
		"operation_timeout":  c.OperationTimeout.String(),
		"journal":            c.Journal,
		"concurrency":        c.Concurrency,
		"serve": map[string]any{
			"addr": c.Serve.Addr,
		},
	}
}

func isKey(key string) bool {
	for _, k := range Keys {
		if k == key {
			return true
		}
	}
	return false
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := paths.ResolveHome(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
