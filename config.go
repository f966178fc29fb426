package rbe

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config is the on-disk configuration for an RBE deployment: the CRS
// size and variant, plus logging. Grounded on the teacher's own
// load/default/save/validate config shape, repurposed for RBE's
// parameters instead of an auction's.
type Config struct {
	N         int  `json:"n"`
	Efficient bool `json:"efficient"`

	LogLevel string `json:"log_level"`
	LogFile  string `json:"log_file"`
}

// DefaultConfig returns sane defaults for a small efficient-variant
// deployment.
func DefaultConfig() *Config {
	return &Config{
		N:         1024,
		Efficient: true,
		LogLevel:  "info",
		LogFile:   "",
	}
}

// LoadConfig loads configuration from configPath, writing out the
// default config if the file does not exist yet.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); err == nil {
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("rbe: open config file: %w", err)
		}
		defer f.Close()

		var cfg Config
		if err := json.NewDecoder(f).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("rbe: decode config file: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return &cfg, nil
	}

	cfg := DefaultConfig()
	if err := SaveConfig(cfg, configPath); err != nil {
		return nil, fmt.Errorf("rbe: save default config: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to configPath as indented JSON.
func SaveConfig(cfg *Config, configPath string) error {
	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("rbe: create config directory: %w", err)
		}
	}

	f, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("rbe: create config file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("rbe: encode config: %w", err)
	}
	return nil
}

// Validate checks that the configuration describes a usable deployment.
func (c *Config) Validate() error {
	if c.N <= 0 {
		return fmt.Errorf("rbe: n must be positive")
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error", "fatal":
	default:
		return fmt.Errorf("rbe: unrecognized log_level %q", c.LogLevel)
	}
	return nil
}
