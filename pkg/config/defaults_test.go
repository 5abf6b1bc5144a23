package config

import (
	"testing"

	"github.com/marmos91/rrdpworker/internal/bytesize"
)

func TestApplyDefaults_Logging(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default log output 'stdout', got %q", cfg.Logging.Output)
	}
}

func TestApplyDefaults_Telemetry(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Telemetry.Endpoint != "localhost:4317" {
		t.Errorf("Expected default telemetry endpoint, got %q", cfg.Telemetry.Endpoint)
	}
	if cfg.Telemetry.SampleRate != 1.0 {
		t.Errorf("Expected default sample rate 1.0, got %v", cfg.Telemetry.SampleRate)
	}
	if cfg.Telemetry.Profiling.Endpoint != "http://localhost:4040" {
		t.Errorf("Expected default profiling endpoint, got %q", cfg.Telemetry.Profiling.Endpoint)
	}
	if len(cfg.Telemetry.Profiling.ProfileTypes) == 0 {
		t.Error("Expected default profile types to be populated")
	}
}

func TestApplyDefaults_Metrics(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Metrics.ListenAddr != "127.0.0.1:9111" {
		t.Errorf("Expected default metrics listen addr, got %q", cfg.Metrics.ListenAddr)
	}
}

func TestApplyDefaults_Engine(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Engine.ControlFD != 3 {
		t.Errorf("Expected default control fd 3, got %d", cfg.Engine.ControlFD)
	}
	if cfg.Engine.Concurrency != 12 {
		t.Errorf("Expected default concurrency 12, got %d", cfg.Engine.Concurrency)
	}
	if cfg.Engine.ReadBufferSize != 32*bytesize.KiB {
		t.Errorf("Expected default read buffer size 32KiB, got %v", cfg.Engine.ReadBufferSize)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{
			Level:  "DEBUG",
			Format: "json",
			Output: "/var/log/rrdpworker.log",
		},
		Engine: EngineConfig{
			ControlFD:      5,
			Concurrency:    4,
			ReadBufferSize: 64 * bytesize.KiB,
		},
	}

	ApplyDefaults(cfg)

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected explicit level 'DEBUG' to be preserved, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected explicit format 'json' to be preserved, got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "/var/log/rrdpworker.log" {
		t.Errorf("Expected explicit output to be preserved, got %q", cfg.Logging.Output)
	}
	if cfg.Engine.ControlFD != 5 {
		t.Errorf("Expected explicit control fd 5 to be preserved, got %d", cfg.Engine.ControlFD)
	}
	if cfg.Engine.Concurrency != 4 {
		t.Errorf("Expected explicit concurrency 4 to be preserved, got %d", cfg.Engine.Concurrency)
	}
	if cfg.Engine.ReadBufferSize != 64*bytesize.KiB {
		t.Errorf("Expected explicit read buffer size to be preserved, got %v", cfg.Engine.ReadBufferSize)
	}
}

func TestGetDefaultConfig_IsValid(t *testing.T) {
	cfg := GetDefaultConfig()

	if err := Validate(cfg); err != nil {
		t.Errorf("Default config should be valid, got error: %v", err)
	}
}

func TestGetDefaultConfig_HasRequiredFields(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.Logging.Level == "" {
		t.Error("Default config missing logging level")
	}
	if cfg.Metrics.ListenAddr == "" {
		t.Error("Default config missing metrics listen addr")
	}
	if cfg.Engine.Concurrency == 0 {
		t.Error("Default config missing engine concurrency")
	}
	if cfg.Engine.ReadBufferSize == 0 {
		t.Error("Default config missing engine read buffer size")
	}
}
