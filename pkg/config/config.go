package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/tailscale/hujson"
)

// FileName is the default config file name, looked up in the working directory.
const FileName = ".taskcard.json"

var (
	ErrFileNotFound = errors.New("config file not found")
	ErrInvalid      = errors.New("invalid config")
)

// Config holds all configuration options.
type Config struct {
	DBPath   string `json:"db_path"`
	LogPath  string `json:"log_path"`
	LogLevel string `json:"log_level"`
	// RefreshInterval is how often the open card is reloaded from the db, as a Go duration.
	// "0" disables polling.
	RefreshInterval string `json:"refresh_interval"`
	ExportPath      string `json:"export_path,omitempty"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		DBPath:          "taskcard.sqlite",
		LogPath:         "taskcard.log",
		LogLevel:        "info",
		RefreshInterval: "5s",
	}
}

// Load builds the configuration with the following precedence (highest wins):
// defaults, the config file, then overrides. configPath names an explicit file that must
// exist; when empty, FileName in workDir is read if present. The path of the loaded file is
// returned, or "" when none was read.
func Load(workDir, configPath string, overrides Config) (Config, string, error) {
	cfg := Default()

	path := configPath
	mustExist := path != ""

	if path == "" {
		path = FileName
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(workDir, path)
	}

	fileCfg, loaded, err := loadFile(path, mustExist)
	if err != nil {
		return Config{}, "", err
	}

	if !loaded {
		path = ""
	}

	cfg = merge(merge(cfg, fileCfg), overrides)

	if err := cfg.Validate(); err != nil {
		return Config{}, "", err
	}

	return cfg, path, nil
}

func loadFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is intentionally user-controlled
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return Config{}, false, nil
		}

		if os.IsNotExist(err) {
			return Config{}, false, fmt.Errorf("%w: %s: %w", ErrFileNotFound, path, err)
		}

		return Config{}, false, fmt.Errorf("error reading config %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrInvalid, path, err)
	}

	return cfg, true, nil
}

// Parse reads a JSONC (JSON with comments and trailing commas) config document.
func Parse(data []byte) (Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}

	return cfg, nil
}

func merge(base, overlay Config) Config {
	if overlay.DBPath != "" {
		base.DBPath = overlay.DBPath
	}

	if overlay.LogPath != "" {
		base.LogPath = overlay.LogPath
	}

	if overlay.LogLevel != "" {
		base.LogLevel = overlay.LogLevel
	}

	if overlay.RefreshInterval != "" {
		base.RefreshInterval = overlay.RefreshInterval
	}

	if overlay.ExportPath != "" {
		base.ExportPath = overlay.ExportPath
	}

	return base
}

// Validate checks that every option holds a usable value.
func (c Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("%w: db_path cannot be empty", ErrInvalid)
	}

	if c.LogPath == "" {
		return fmt.Errorf("%w: log_path cannot be empty", ErrInvalid)
	}

	if _, err := c.Level(); err != nil {
		return err
	}

	if _, err := c.Refresh(); err != nil {
		return err
	}

	return nil
}

// Level returns the configured log level.
func (c Config) Level() (zerolog.Level, error) {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("%w: log_level: %w", ErrInvalid, err)
	}

	return level, nil
}

// Refresh returns the polling interval; zero means polling is off.
func (c Config) Refresh() (time.Duration, error) {
	interval, err := time.ParseDuration(c.RefreshInterval)
	if err != nil {
		return 0, fmt.Errorf("%w: refresh_interval: %w", ErrInvalid, err)
	}

	if interval < 0 {
		return 0, fmt.Errorf("%w: refresh_interval cannot be negative", ErrInvalid)
	}

	return interval, nil
}
