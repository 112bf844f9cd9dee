package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.VM.StackSize != 4096 {
		t.Errorf("Expected StackSize=4096, got %d", cfg.VM.StackSize)
	}
	if cfg.VM.MaxInstructions != 1_000_000 {
		t.Errorf("Expected MaxInstructions=1000000, got %d", cfg.VM.MaxInstructions)
	}
	if !cfg.VM.BoundsCheck {
		t.Error("Expected BoundsCheck=true")
	}

	if cfg.JIT.Enabled {
		t.Error("Expected JIT.Enabled=false by default")
	}
	if cfg.JIT.DivByZeroPolicy != "sentinel" {
		t.Errorf("Expected DivByZeroPolicy=sentinel, got %s", cfg.JIT.DivByZeroPolicy)
	}

	if cfg.Debug.HistorySize != 1000 {
		t.Errorf("Expected HistorySize=1000, got %d", cfg.Debug.HistorySize)
	}
}

func TestGetConfigPath(t *testing.T) {
	path := GetConfigPath()

	if path == "" {
		t.Error("GetConfigPath returned empty string")
	}
	if filepath.Base(path) != "config.toml" {
		t.Errorf("Expected path to end with config.toml, got %s", path)
	}

	switch runtime.GOOS {
	case "windows":
		if !filepath.IsAbs(path) && path != "config.toml" {
			t.Errorf("Expected absolute path on Windows, got %s", path)
		}
	case "darwin", "linux":
		dir := filepath.Dir(path)
		if filepath.Base(dir) != "ubpfvm" && path != "config.toml" {
			t.Errorf("Expected path in ubpfvm directory or fallback, got %s", path)
		}
	}
}

func TestGetLogPath(t *testing.T) {
	path := GetLogPath()

	if path == "" {
		t.Error("GetLogPath returned empty string")
	}

	switch runtime.GOOS {
	case "windows":
		if !filepath.IsAbs(path) && path != "logs" {
			t.Errorf("Expected absolute path on Windows, got %s", path)
		}
	case "darwin", "linux":
		if filepath.Base(path) != "logs" {
			t.Errorf("Expected path to end with logs, got %s", path)
		}
	}
}

func TestSaveAndLoad(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "test_config.toml")

	cfg := DefaultConfig()
	cfg.VM.MaxInstructions = 5_000_000
	cfg.VM.BoundsCheck = false
	cfg.JIT.Enabled = true
	cfg.Debug.HistorySize = 500

	if err := cfg.SaveTo(configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Fatal("Config file was not created")
	}

	loaded, err := LoadFrom(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if loaded.VM.MaxInstructions != 5_000_000 {
		t.Errorf("Expected MaxInstructions=5000000, got %d", loaded.VM.MaxInstructions)
	}
	if loaded.VM.BoundsCheck {
		t.Error("Expected BoundsCheck=false")
	}
	if !loaded.JIT.Enabled {
		t.Error("Expected JIT.Enabled=true")
	}
	if loaded.Debug.HistorySize != 500 {
		t.Errorf("Expected HistorySize=500, got %d", loaded.Debug.HistorySize)
	}
}

func TestLoadNonExistent(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "nonexistent.toml")

	cfg, err := LoadFrom(configPath)
	if err != nil {
		t.Fatalf("LoadFrom should not error on non-existent file: %v", err)
	}

	if cfg.VM.MaxInstructions != 1_000_000 {
		t.Error("Expected default config when file doesn't exist")
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "invalid.toml")

	invalidTOML := `
[vm]
max_instructions = "not a number"  # Invalid: should be uint64
`
	if err := os.WriteFile(configPath, []byte(invalidTOML), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	_, err := LoadFrom(configPath)
	if err == nil {
		t.Error("Expected error when loading invalid TOML")
	}
}

func TestSaveCreatesDirectory(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "subdir1", "subdir2", "config.toml")

	cfg := DefaultConfig()
	if err := cfg.SaveTo(configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("Config file was not created")
	}

	dir := filepath.Dir(configPath)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		t.Error("Parent directories were not created")
	}
}
