// Package config loads and saves ubpfvm's TOML configuration file,
// following the same per-OS path convention the rest of the toolchain
// expects (SPEC_FULL.md §4.10).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

// Config is ubpfvm's on-disk configuration.
type Config struct {
	VM struct {
		StackSize       int  `toml:"stack_size"`
		MaxInstructions uint64 `toml:"max_instructions"` // 0 = unlimited
		BoundsCheck     bool `toml:"bounds_check"`
	} `toml:"vm"`

	JIT struct {
		Enabled        bool   `toml:"enabled"`
		DivByZeroPolicy string `toml:"div_by_zero_policy"` // currently only "sentinel" is implemented
	} `toml:"jit"`

	Debug struct {
		HistorySize   int  `toml:"history_size"`
		ShowRegisters bool `toml:"show_registers"`
	} `toml:"debug"`
}

// DefaultConfig returns ubpfvm's built-in defaults (SPEC_FULL.md §4.6/§4.10).
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.VM.StackSize = 4096
	cfg.VM.MaxInstructions = 1_000_000
	cfg.VM.BoundsCheck = true

	cfg.JIT.Enabled = false
	cfg.JIT.DivByZeroPolicy = "sentinel"

	cfg.Debug.HistorySize = 1000
	cfg.Debug.ShowRegisters = true

	return cfg
}

// GetConfigPath returns the platform-specific config file path.
func GetConfigPath() string {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		configDir = filepath.Join(configDir, "ubpfvm")

	case "darwin", "linux":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.toml"
		}
		configDir = filepath.Join(homeDir, ".config", "ubpfvm")

	default:
		return "config.toml"
	}

	if err := os.MkdirAll(configDir, 0750); err != nil {
		return "config.toml"
	}

	return filepath.Join(configDir, "config.toml")
}

// GetLogPath returns the platform-specific log directory path.
func GetLogPath() string {
	var logDir string

	switch runtime.GOOS {
	case "windows":
		logDir = os.Getenv("APPDATA")
		if logDir == "" {
			logDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		logDir = filepath.Join(logDir, "ubpfvm", "logs")

	case "darwin", "linux":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "logs"
		}
		logDir = filepath.Join(homeDir, ".local", "share", "ubpfvm", "logs")

	default:
		return "logs"
	}

	if err := os.MkdirAll(logDir, 0750); err != nil {
		return "logs"
	}

	return logDir
}

// Load loads configuration from the default config file.
func Load() (*Config, error) {
	return LoadFrom(GetConfigPath())
}

// LoadFrom loads configuration from the specified file, falling back to
// defaults when the file does not yet exist.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Save saves configuration to the default config file.
func (c *Config) Save() error {
	return c.SaveTo(GetConfigPath())
}

// SaveTo saves configuration to the specified file.
func (c *Config) SaveTo(path string) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path) // #nosec G304 -- user config file path
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close config file: %w", closeErr)
		}
	}()

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}
