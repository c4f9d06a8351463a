// Package config handles loading and resolving aasun configuration.
// Resolution order (first non-empty value wins):
//  1. CLI flag --host
//  2. Environment variables AASUN_HOST and AASUN_DB_PATH
//  3. config.json in the current working directory
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultConfigFile  = "config.json"
	DefaultFormat      = "table"
	DefaultBaseURL     = "http://aasun.local/"
	DefaultTimeout     = 10 * time.Second
	DefaultConcurrency = 1
	DefaultRate        = 2.0
	DefaultInterval    = 5 * time.Minute
	EnvHost            = "AASUN_HOST"
	EnvDBPath          = "AASUN_DB_PATH"
)

// File is the on-disk representation of config.json.
type File struct {
	BaseURL       string  `json:"base_url"`
	DefaultFormat string  `json:"default_format"`
	Timeout       string  `json:"timeout"`
	Concurrency   int     `json:"concurrency"`
	Rate          float64 `json:"rate"`
	WatchInterval string  `json:"watch_interval"`
	DBPath        string  `json:"db_path"`
}

// Config is the fully-resolved runtime configuration.
// All callers use this struct; the File is only read during loading.
type Config struct {
	BaseURL       string
	Format        string
	Timeout       time.Duration
	Concurrency   int
	Rate          float64
	WatchInterval time.Duration
	DBPath        string
	ConfigPath    string // path of the config.json that was loaded (empty if none found)

	// Runtime overrides set from CLI flags after Load()
	Quiet   bool
	Verbose bool
	Debug   bool
}

// Load resolves configuration from all sources.
// flagHost is the value of --host (empty string if not set).
func Load(flagHost string) (*Config, error) {
	cfg := &Config{
		BaseURL:       DefaultBaseURL,
		Format:        DefaultFormat,
		Timeout:       DefaultTimeout,
		Concurrency:   DefaultConcurrency,
		Rate:          DefaultRate,
		WatchInterval: DefaultInterval,
	}

	// Layer 1: config.json (lowest priority). A malformed file is an error;
	// a missing one is not.
	f, path, err := loadFile()
	switch {
	case err == nil:
		applyFile(cfg, f, path)
	case !errors.Is(err, os.ErrNotExist):
		return nil, err
	}

	// Layer 2: environment
	if v := os.Getenv(EnvHost); v != "" {
		cfg.BaseURL = NormaliseHost(v)
	}
	if v := os.Getenv(EnvDBPath); v != "" {
		cfg.DBPath = v
	}

	// Layer 3: CLI flag (highest priority)
	if flagHost != "" {
		cfg.BaseURL = NormaliseHost(flagHost)
	}

	if cfg.DBPath == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			cfg.DBPath = filepath.Join(home, ".aasun", "aasun.db")
		}
	}

	return cfg, nil
}

// NormaliseHost turns a bare host ("192.168.1.20", "aasun.local:8080") into a
// base URL with a trailing slash. Full URLs are kept as given.
func NormaliseHost(h string) string {
	h = strings.TrimSpace(h)
	if h == "" {
		return h
	}
	if !strings.Contains(h, "://") {
		h = "http://" + h
	}
	if !strings.HasSuffix(h, "/") {
		h += "/"
	}
	return h
}

// Validate returns an error if the device URL is unusable.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || c.BaseURL == "" {
		return fmt.Errorf("invalid device URL %q", c.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("device URL %q: scheme must be http or https", c.BaseURL)
	}
	if u.Host == "" {
		return errors.New(
			"device host not set.\n\n" +
				"Set it one of these ways:\n" +
				"  1. CLI flag:        aasun --host 192.168.1.20 ...\n" +
				"  2. Environment:     export AASUN_HOST=192.168.1.20\n" +
				"  3. config.json:     {\"base_url\": \"http://192.168.1.20/\"}",
		)
	}
	if c.Rate <= 0 {
		return fmt.Errorf("rate must be positive, got %g", c.Rate)
	}
	return nil
}

// loadFile attempts to read config.json from the current working directory.
// The returned error wraps os.ErrNotExist when there is no file.
func loadFile() (*File, string, error) {
	path, err := filepath.Abs(DefaultConfigFile)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("config.json not found at %s: %w", path, os.ErrNotExist)
		}
		return nil, "", fmt.Errorf("reading config.json: %w", err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, "", fmt.Errorf("parsing config.json: %w", err)
	}
	return &f, path, nil
}

// applyFile copies values from a parsed File into cfg,
// skipping any fields that are zero/empty.
func applyFile(cfg *Config, f *File, path string) {
	cfg.ConfigPath = path
	if f.BaseURL != "" {
		cfg.BaseURL = NormaliseHost(f.BaseURL)
	}
	if f.DefaultFormat != "" {
		cfg.Format = f.DefaultFormat
	}
	if f.Timeout != "" {
		if d, err := time.ParseDuration(f.Timeout); err == nil {
			cfg.Timeout = d
		}
	}
	if f.Concurrency > 0 {
		cfg.Concurrency = f.Concurrency
	}
	if f.Rate > 0 {
		cfg.Rate = f.Rate
	}
	if f.WatchInterval != "" {
		if d, err := time.ParseDuration(f.WatchInterval); err == nil && d > 0 {
			cfg.WatchInterval = d
		}
	}
	if f.DBPath != "" {
		cfg.DBPath = f.DBPath
	}
}

// Template returns a File populated with sensible defaults, suitable for
// writing an initial config.json via `aasun config init`.
func Template() File {
	return File{
		BaseURL:       DefaultBaseURL,
		DefaultFormat: DefaultFormat,
		Timeout:       DefaultTimeout.String(),
		Concurrency:   DefaultConcurrency,
		Rate:          DefaultRate,
		WatchInterval: DefaultInterval.String(),
	}
}

// WriteFile serialises a File to the given path.
func WriteFile(path string, f File) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0600)
}
