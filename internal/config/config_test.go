package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	// Server defaults
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Expected default host '0.0.0.0', got %q", cfg.Server.Host)
	}

	// Storage defaults
	if cfg.Storage.Type != "memory" {
		t.Errorf("Expected default storage type 'memory', got %q", cfg.Storage.Type)
	}

	// Gateway defaults
	if cfg.Gateway.CallTimeout != 30*time.Second {
		t.Errorf("Expected default call timeout 30s, got %v", cfg.Gateway.CallTimeout)
	}
	if cfg.Gateway.UserAgent != "go-gateway/"+Version {
		t.Errorf("Unexpected default user agent %q", cfg.Gateway.UserAgent)
	}
	if cfg.Gateway.MaxResponseBytes != 10<<20 {
		t.Errorf("Expected default max response 10MiB, got %d", cfg.Gateway.MaxResponseBytes)
	}

	// Tracing defaults
	if cfg.Tracing.MaxCalls != 1000 {
		t.Errorf("Expected default max calls 1000, got %d", cfg.Tracing.MaxCalls)
	}

	// Logging defaults
	if cfg.Logging.Level != "info" {
		t.Errorf("Expected default log level 'info', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected default log format 'json', got %q", cfg.Logging.Format)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected defaults to validate, got %v", err)
	}
}

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  port: 9090
  host: localhost
  readTimeout: 5s
storage:
  type: file
  path: /tmp/data
gateway:
  connectTimeout: 2s
  callTimeout: 1m
  userAgent: integration-bot/2
  manifest: ./manifest.yaml
tracing:
  maxCalls: 500
logging:
  level: debug
  format: text
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "localhost" {
		t.Errorf("Expected host 'localhost', got %q", cfg.Server.Host)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("Expected read timeout 5s, got %v", cfg.Server.ReadTimeout)
	}
	if cfg.Storage.Type != "file" || cfg.Storage.Path != "/tmp/data" {
		t.Errorf("Unexpected storage config %+v", cfg.Storage)
	}
	if cfg.Gateway.ConnectTimeout != 2*time.Second {
		t.Errorf("Expected connect timeout 2s, got %v", cfg.Gateway.ConnectTimeout)
	}
	if cfg.Gateway.CallTimeout != time.Minute {
		t.Errorf("Expected call timeout 1m, got %v", cfg.Gateway.CallTimeout)
	}
	if cfg.Gateway.UserAgent != "integration-bot/2" {
		t.Errorf("Expected user agent override, got %q", cfg.Gateway.UserAgent)
	}
	if cfg.Gateway.Manifest != "./manifest.yaml" {
		t.Errorf("Expected manifest path, got %q", cfg.Gateway.Manifest)
	}
	if cfg.Tracing.MaxCalls != 500 {
		t.Errorf("Expected max calls 500, got %d", cfg.Tracing.MaxCalls)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("Unexpected logging config %+v", cfg.Logging)
	}
}

func TestLoad_PartialConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	// Only override server port
	if err := os.WriteFile(configPath, []byte("server:\n  port: 3000\n"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != 3000 {
		t.Errorf("Expected port 3000, got %d", cfg.Server.Port)
	}

	// Verify defaults are preserved
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Expected default host '0.0.0.0', got %q", cfg.Server.Host)
	}
	if cfg.Gateway.ReadTimeout != 30*time.Second {
		t.Errorf("Expected default gateway read timeout, got %v", cfg.Gateway.ReadTimeout)
	}
}

func TestLoad_NonExistentFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Expected error for non-existent file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configPath, []byte("server:\n  port: [invalid yaml\n"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("Expected error for invalid YAML")
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configPath, []byte(""), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	// Should have defaults
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Server.Port)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"file storage", func(c *Config) { c.Storage.Type = "file" }, ""},
		{"port too low", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"unknown storage", func(c *Config) { c.Storage.Type = "redis" }, "storage.type"},
		{"file storage without path", func(c *Config) { c.Storage.Type = "file"; c.Storage.Path = " " }, "storage.path"},
		{"negative timeout", func(c *Config) { c.Gateway.CallTimeout = -time.Second }, "gateway.callTimeout"},
		{"negative max response", func(c *Config) { c.Gateway.MaxResponseBytes = -1 }, "gateway.maxResponseBytes"},
		{"negative max calls", func(c *Config) { c.Tracing.MaxCalls = -1 }, "tracing.maxCalls"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = -1
	cfg.Logging.Level = "loud"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Expected validation error")
	}
	for _, want := range []string{"server.port", "logging.level"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Expected error to mention %s, got %v", want, err)
		}
	}
}

func TestAddress(t *testing.T) {
	cfg := Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 9000
	if got := cfg.Address(); got != "127.0.0.1:9000" {
		t.Errorf("Expected 127.0.0.1:9000, got %q", got)
	}
}
