package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/prasenjit/go-gateway/internal/config"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:     "go-gateway",
		Short:   "go-gateway - call APIs described by OpenAPI documents",
		Version: config.Version,
		Long: `go-gateway registers API description documents, extracts their endpoints
and schemas, and performs authenticated calls against the described APIs
through an admin API or under a mount path.`,
		SilenceUsage: true,
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: ./config.yaml)")

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(inspectCmd)
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			cwd = "."
		}

		// Search config in current directory
		viper.AddConfigPath(cwd)
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// GOGATEWAY_SERVER_PORT overrides server.port
	viper.SetEnvPrefix("GOGATEWAY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults(config.Default())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	} else if cfgFile != "" {
		fmt.Fprintln(os.Stderr, "Warning: could not read config file:", err)
	}
}

// setDefaults registers every setting so environment overrides apply even
// when no config file mentions the key
func setDefaults(d *config.Config) {
	// Server defaults
	viper.SetDefault("server.port", d.Server.Port)
	viper.SetDefault("server.host", d.Server.Host)
	viper.SetDefault("server.readTimeout", d.Server.ReadTimeout)
	viper.SetDefault("server.writeTimeout", d.Server.WriteTimeout)

	// Storage defaults
	viper.SetDefault("storage.type", d.Storage.Type)
	viper.SetDefault("storage.path", d.Storage.Path)

	// Gateway defaults
	viper.SetDefault("gateway.connectTimeout", d.Gateway.ConnectTimeout)
	viper.SetDefault("gateway.readTimeout", d.Gateway.ReadTimeout)
	viper.SetDefault("gateway.callTimeout", d.Gateway.CallTimeout)
	viper.SetDefault("gateway.maxResponseBytes", d.Gateway.MaxResponseBytes)
	viper.SetDefault("gateway.userAgent", d.Gateway.UserAgent)
	viper.SetDefault("gateway.manifest", d.Gateway.Manifest)

	// Tracing defaults
	viper.SetDefault("tracing.maxCalls", d.Tracing.MaxCalls)

	// Logging defaults
	viper.SetDefault("logging.level", d.Logging.Level)
	viper.SetDefault("logging.format", d.Logging.Format)
}

// loadConfig decodes the merged viper settings
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger from the logging section
func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
