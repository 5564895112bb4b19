// Package config loads the server's configuration from layered sources:
// hardcoded defaults, a YAML file, environment variables, and finally CLI
// flags (applied by cmd/ahnlich-db after Load).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete ahnlich-db server configuration.
type Config struct {
	Host                  string `yaml:"host" json:"host"`
	Port                  int    `yaml:"port" json:"port"`
	EnablePersistence     bool   `yaml:"enable_persistence" json:"enable_persistence"`
	PersistLocation       string `yaml:"persist_location" json:"persist_location"`
	PersistenceIntervalMS int    `yaml:"persistence_interval_ms" json:"persistence_interval_ms"`
	MaximumClients        uint64 `yaml:"maximum_clients" json:"maximum_clients"`
	AllocatorSize         uint64 `yaml:"allocator_size" json:"allocator_size"`
	ThreadpoolSize        int    `yaml:"threadpool_size" json:"threadpool_size"`
	LogLevel              string `yaml:"log_level" json:"log_level"`
}

// PersistenceInterval returns PersistenceIntervalMS as a time.Duration.
func (c *Config) PersistenceInterval() time.Duration {
	return time.Duration(c.PersistenceIntervalMS) * time.Millisecond
}

// NewConfig returns a Config populated with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Host:                  "127.0.0.1",
		Port:                  1369,
		EnablePersistence:     false,
		PersistLocation:       defaultPersistLocation(),
		PersistenceIntervalMS: 300_000,
		MaximumClients:        1000,
		AllocatorSize:         1 << 30,
		ThreadpoolSize:        runtime.NumCPU(),
		LogLevel:              "info",
	}
}

func defaultPersistLocation() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".ahnlich", "db.snapshot")
	}
	return filepath.Join(home, ".ahnlich", "db.snapshot")
}

// GetUserConfigPath returns the XDG-resolved path to the user/global config
// file: $XDG_CONFIG_HOME/ahnlich/db.yaml, or ~/.config/ahnlich/db.yaml.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ahnlich", "db.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "ahnlich", "db.yaml")
	}
	return filepath.Join(home, ".config", "ahnlich", "db.yaml")
}

// GetUserConfigDir returns the directory containing the user config file.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists reports whether the user/global config file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

func loadUserConfig() (*Config, error) {
	path := GetUserConfigPath()
	if !fileExists(path) {
		return nil, nil
	}
	cfg := NewConfig()
	if err := cfg.loadYAML(path); err != nil {
		return nil, fmt.Errorf("load user config from %s: %w", path, err)
	}
	return cfg, nil
}

// Load builds a Config by applying, in increasing order of precedence:
//  1. hardcoded defaults
//  2. the user/global config file (~/.config/ahnlich/db.yaml)
//  3. a project-local config file (dir/ahnlich-db.yaml or .yml)
//  4. AHNLICH_DB_* environment variables
//
// CLI flags, if any are set, are applied by the caller after Load returns
// and take final precedence.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{"ahnlich-db.yaml", "ahnlich-db.yml"} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	c.mergeWith(&parsed)
	return nil
}

// mergeWith overlays other's non-zero-valued fields onto c.
func (c *Config) mergeWith(other *Config) {
	if other.Host != "" {
		c.Host = other.Host
	}
	if other.Port != 0 {
		c.Port = other.Port
	}
	if other.PersistLocation != "" {
		c.PersistLocation = other.PersistLocation
	}
	if other.PersistenceIntervalMS != 0 {
		c.PersistenceIntervalMS = other.PersistenceIntervalMS
	}
	if other.MaximumClients != 0 {
		c.MaximumClients = other.MaximumClients
	}
	if other.AllocatorSize != 0 {
		c.AllocatorSize = other.AllocatorSize
	}
	if other.ThreadpoolSize != 0 {
		c.ThreadpoolSize = other.ThreadpoolSize
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	// EnablePersistence is boolean; merge only when the overlay also set a
	// persistence-related field, otherwise a YAML file omitting the key
	// would silently flip an already-enabled default back off.
	if other.PersistLocation != "" || other.PersistenceIntervalMS != 0 {
		c.EnablePersistence = other.EnablePersistence
	}
}

// applyEnvOverrides applies AHNLICH_DB_* overrides, the highest-precedence
// source short of CLI flags.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("AHNLICH_DB_HOST"); v != "" {
		c.Host = v
	}
	if v := os.Getenv("AHNLICH_DB_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Port = p
		}
	}
	if v := os.Getenv("AHNLICH_DB_ENABLE_PERSISTENCE"); v != "" {
		c.EnablePersistence = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("AHNLICH_DB_PERSIST_LOCATION"); v != "" {
		c.PersistLocation = v
	}
	if v := os.Getenv("AHNLICH_DB_PERSISTENCE_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.PersistenceIntervalMS = n
		}
	}
	if v := os.Getenv("AHNLICH_DB_MAXIMUM_CLIENTS"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			c.MaximumClients = n
		}
	}
	if v := os.Getenv("AHNLICH_DB_ALLOCATOR_SIZE"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			c.AllocatorSize = n
		}
	}
	if v := os.Getenv("AHNLICH_DB_THREADPOOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.ThreadpoolSize = n
		}
	}
	if v := os.Getenv("AHNLICH_DB_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Validate rejects configurations that would fail to bind, allocate, or
// serve correctly.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got %d", c.Port)
	}
	if c.MaximumClients == 0 {
		return fmt.Errorf("maximum_clients must be positive, got %d", c.MaximumClients)
	}
	if c.AllocatorSize == 0 {
		return fmt.Errorf("allocator_size must be positive, got %d", c.AllocatorSize)
	}
	if c.ThreadpoolSize <= 0 {
		return fmt.Errorf("threadpool_size must be positive, got %d", c.ThreadpoolSize)
	}
	if c.EnablePersistence && c.PersistenceIntervalMS <= 0 {
		return fmt.Errorf("persistence_interval_ms must be positive when persistence is enabled, got %d", c.PersistenceIntervalMS)
	}
	if c.EnablePersistence && c.PersistLocation == "" {
		return fmt.Errorf("persist_location must be set when persistence is enabled")
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.LogLevel)
	}
	return nil
}

// WriteYAML persists the configuration to path, for `ahnlich-db config init`
// style bootstrapping.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
