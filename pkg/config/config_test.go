package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_DefaultConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "INFO"

engine:
  concurrency: 8
  read_buffer_size: 64Ki
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default output 'stdout', got %q", cfg.Logging.Output)
	}
	if cfg.Engine.Concurrency != 8 {
		t.Errorf("Expected concurrency 8, got %d", cfg.Engine.Concurrency)
	}
	if cfg.Engine.ReadBufferSize.Uint64() != 64*1024 {
		t.Errorf("Expected read buffer size 64Ki, got %v", cfg.Engine.ReadBufferSize)
	}
	if cfg.Engine.ControlFD != 3 {
		t.Errorf("Expected default control fd 3, got %d", cfg.Engine.ControlFD)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	// Loading with no config file returns the built-in defaults rather than
	// an error; environment variables are not consulted in that case.
	tmpDir := t.TempDir()
	nonExistentPath := filepath.Join(tmpDir, "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("Expected no error when loading default config, got: %v", err)
	}
	if cfg == nil {
		t.Fatal("Expected default config to be returned")
	}
	if cfg.Engine.Concurrency != 12 {
		t.Errorf("Expected default concurrency 12, got %d", cfg.Engine.Concurrency)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	configContent := `
logging:
  level: INFO
  invalid yaml here [[[
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Expected error with invalid YAML, got nil")
	}
}

func TestLoad_TOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	configContent := `
[logging]
level = "WARN"
format = "json"

[engine]
concurrency = 6
control_fd = 4
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load TOML config: %v", err)
	}

	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected level 'WARN', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected format 'json', got %q", cfg.Logging.Format)
	}
	if cfg.Engine.Concurrency != 6 {
		t.Errorf("Expected concurrency 6, got %d", cfg.Engine.Concurrency)
	}
	if cfg.Engine.ControlFD != 4 {
		t.Errorf("Expected control fd 4, got %d", cfg.Engine.ControlFD)
	}
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Metrics.ListenAddr != "127.0.0.1:9111" {
		t.Errorf("Expected default metrics addr, got %q", cfg.Metrics.ListenAddr)
	}
	if cfg.Engine.Concurrency != 12 {
		t.Errorf("Expected default concurrency 12, got %d", cfg.Engine.Concurrency)
	}
}

func TestGetDefaultConfigPath(t *testing.T) {
	path := GetDefaultConfigPath()

	if !filepath.IsAbs(path) {
		t.Errorf("Expected absolute path, got %q", path)
	}
	if filepath.Base(path) != "config.yaml" {
		t.Errorf("Expected filename 'config.yaml', got %q", filepath.Base(path))
	}
}

func TestGetConfigDir(t *testing.T) {
	dir := GetConfigDir()

	if filepath.Base(dir) != "rrdpworker" {
		t.Errorf("Expected directory name 'rrdpworker', got %q", filepath.Base(dir))
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	_ = os.Setenv("RRDPWORKER_LOGGING_LEVEL", "ERROR")
	_ = os.Setenv("RRDPWORKER_ENGINE_CONCURRENCY", "20")
	defer func() {
		_ = os.Unsetenv("RRDPWORKER_LOGGING_LEVEL")
		_ = os.Unsetenv("RRDPWORKER_ENGINE_CONCURRENCY")
	}()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "INFO"

engine:
  concurrency: 12
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "ERROR" {
		t.Errorf("Expected level 'ERROR' from env var, got %q", cfg.Logging.Level)
	}
	if cfg.Engine.Concurrency != 20 {
		t.Errorf("Expected concurrency 20 from env var, got %d", cfg.Engine.Concurrency)
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "nested", "config.yaml")

	cfg := GetDefaultConfig()
	cfg.Logging.Level = "DEBUG"
	cfg.Engine.Concurrency = 5

	if err := SaveConfig(cfg, configPath); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load saved config: %v", err)
	}
	if loaded.Logging.Level != "DEBUG" {
		t.Errorf("Expected saved level 'DEBUG', got %q", loaded.Logging.Level)
	}
	if loaded.Engine.Concurrency != 5 {
		t.Errorf("Expected saved concurrency 5, got %d", loaded.Engine.Concurrency)
	}
}

func TestMustLoad_MissingFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "missing.yaml")

	_, err := MustLoad(configPath)
	if err == nil {
		t.Fatal("Expected error for missing explicit config file")
	}
}
