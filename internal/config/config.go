package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`
	Gateway GatewayConfig `yaml:"gateway" mapstructure:"gateway"`
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port" mapstructure:"port"`
	Host         string        `yaml:"host" mapstructure:"host"`
	ReadTimeout  time.Duration `yaml:"readTimeout" mapstructure:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout" mapstructure:"writeTimeout"`
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Type string `yaml:"type" mapstructure:"type"` // "memory" or "file"
	Path string `yaml:"path" mapstructure:"path"` // Path for file storage
}

// GatewayConfig holds the outbound call settings
type GatewayConfig struct {
	ConnectTimeout   time.Duration `yaml:"connectTimeout" mapstructure:"connectTimeout"`
	ReadTimeout      time.Duration `yaml:"readTimeout" mapstructure:"readTimeout"` // until response headers
	CallTimeout      time.Duration `yaml:"callTimeout" mapstructure:"callTimeout"` // whole call
	MaxResponseBytes int64         `yaml:"maxResponseBytes" mapstructure:"maxResponseBytes"`
	UserAgent        string        `yaml:"userAgent" mapstructure:"userAgent"`
	Manifest         string        `yaml:"manifest" mapstructure:"manifest"` // bootstrap manifest, optional
}

// TracingConfig holds call log configuration
type TracingConfig struct {
	MaxCalls int `yaml:"maxCalls" mapstructure:"maxCalls"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Version is reported in the default User-Agent and by the CLI.
const Version = "0.1.0"

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Storage: StorageConfig{
			Type: "memory",
			Path: "./data",
		},
		Gateway: GatewayConfig{
			ConnectTimeout:   10 * time.Second,
			ReadTimeout:      30 * time.Second,
			CallTimeout:      30 * time.Second,
			MaxResponseBytes: 10 << 20,
			UserAgent:        "go-gateway/" + Version,
		},
		Tracing: TracingConfig{
			MaxCalls: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration from a YAML file over the defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return cfg, nil
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port))
	}

	switch c.Storage.Type {
	case "memory":
	case "file":
		if strings.TrimSpace(c.Storage.Path) == "" {
			errs = append(errs, errors.New("storage.path is required for file storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.type must be memory or file, got %q", c.Storage.Type))
	}

	for name, d := range map[string]time.Duration{
		"server.readTimeout":     c.Server.ReadTimeout,
		"server.writeTimeout":    c.Server.WriteTimeout,
		"gateway.connectTimeout": c.Gateway.ConnectTimeout,
		"gateway.readTimeout":    c.Gateway.ReadTimeout,
		"gateway.callTimeout":    c.Gateway.CallTimeout,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative, got %s", name, d))
		}
	}
	if c.Gateway.MaxResponseBytes < 0 {
		errs = append(errs, fmt.Errorf("gateway.maxResponseBytes must not be negative, got %d", c.Gateway.MaxResponseBytes))
	}
	if c.Tracing.MaxCalls < 0 {
		errs = append(errs, fmt.Errorf("tracing.maxCalls must not be negative, got %d", c.Tracing.MaxCalls))
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// Address returns host:port for the HTTP listener
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
