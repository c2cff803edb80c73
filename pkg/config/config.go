// Package config loads and saves td3pattern settings as YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPortName is the name the TD-3 registers its USB MIDI ports under
const DefaultPortName = "TD-3"

// Config is the main configuration structure
type Config struct {
	InPort     string        `yaml:"in_port"`
	OutPort    string        `yaml:"out_port"`
	Timeout    time.Duration `yaml:"timeout"`
	ServerPort int           `yaml:"server_port"`
	DebugLog   string        `yaml:"debug_log,omitempty"` // empty disables tracing
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		InPort:     DefaultPortName,
		OutPort:    DefaultPortName,
		Timeout:    5 * time.Second,
		ServerPort: 8080,
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "td3pattern"), nil
}

// DefaultPath returns the full path to config.yaml
func DefaultPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the config at path, or returns defaults if it does not exist.
// Keys missing from the file keep their default values.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to path, creating its directory
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate checks that the values are usable
func (c *Config) Validate() error {
	if c.InPort == "" || c.OutPort == "" {
		return fmt.Errorf("port names must not be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("server_port out of range: %d", c.ServerPort)
	}
	return nil
}
