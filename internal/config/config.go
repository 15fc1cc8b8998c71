// Package config provides configuration loading for the kioku CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug  bool         `yaml:"debug"`
	Store  StoreConfig  `yaml:"store"`
	Search SearchConfig `yaml:"search"`
	Lock   LockConfig   `yaml:"lock"`
	Auth   AuthConfig   `yaml:"auth"`
}

// StoreConfig holds the store file location and its schema.
type StoreConfig struct {
	Path          string `yaml:"path"`
	EmbeddingSize int    `yaml:"embedding_size"`
	MaxDocuments  int    `yaml:"max_documents"`
}

// SearchConfig holds search settings.
type SearchConfig struct {
	DefaultK int `yaml:"default_k"`
}

// LockConfig holds the lock acquisition policy.
type LockConfig struct {
	Attempts       int `yaml:"attempts"`
	InitialDelayMS int `yaml:"initial_delay_ms"`
	MaxDelayMS     int `yaml:"max_delay_ms"`
	StaleAfterSecs int `yaml:"stale_after_secs"`
}

// InitialDelay returns the first retry delay as a duration.
func (l LockConfig) InitialDelay() time.Duration {
	return time.Duration(l.InitialDelayMS) * time.Millisecond
}

// MaxDelay returns the retry delay ceiling as a duration.
func (l LockConfig) MaxDelay() time.Duration {
	return time.Duration(l.MaxDelayMS) * time.Millisecond
}

// StaleAfter returns the lock staleness window as a duration.
func (l LockConfig) StaleAfter() time.Duration {
	return time.Duration(l.StaleAfterSecs) * time.Second
}

// AuthConfig restricts where store files may live. An empty list allows any
// path.
type AuthConfig struct {
	AllowedDirs []string `yaml:"allowed_dirs"`
}

// Load reads and parses the config file at path, applies defaults and
// environment overrides, and expands paths. Returns an error if the file
// cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	ApplyEnv(&cfg)

	configDir := filepath.Dir(path)
	cfg.Store.Path = expandPath(cfg.Store.Path, configDir)
	for i := range cfg.Auth.AllowedDirs {
		cfg.Auth.AllowedDirs[i] = expandPath(cfg.Auth.AllowedDirs[i], configDir)
	}

	return &cfg, nil
}

// Save writes the config to path. Used for persisting the configured store
// location and schema between invocations.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ApplyEnv overrides cfg with environment values: KIOKU_STORE replaces the
// store path, KIOKU_ALLOWED_DIRS (separated like $PATH) replaces the
// allowlist, and KIOKU_DEBUG toggles debug logging.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv("KIOKU_STORE"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("KIOKU_ALLOWED_DIRS"); v != "" {
		cfg.Auth.AllowedDirs = filepath.SplitList(v)
	}
	if v := os.Getenv("KIOKU_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Debug = b
		}
	}
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
