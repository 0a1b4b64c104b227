package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/prasenjit/go-gateway/internal/api"
	"github.com/prasenjit/go-gateway/internal/auth"
	"github.com/prasenjit/go-gateway/internal/config"
	"github.com/prasenjit/go-gateway/internal/credential"
	"github.com/prasenjit/go-gateway/internal/gateway"
	"github.com/prasenjit/go-gateway/internal/manifest"
	"github.com/prasenjit/go-gateway/internal/protocol"
	"github.com/prasenjit/go-gateway/internal/registry"
	"github.com/prasenjit/go-gateway/internal/storage"
	"github.com/prasenjit/go-gateway/internal/tracing"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway server",
	Long: `Starts the gateway server.

The server will:
  - Restore registered specifications and auth configs from storage
  - Apply the bootstrap manifest, if one is configured
  - Expose the Admin API at /_api/
  - Dispatch requests under each specification's mount path

Configuration is loaded from config.yaml in the current directory,
or specify a custom config file with the --config flag.`,
	RunE: runServe,
}

var (
	portFlag     int
	manifestFlag string
)

func init() {
	serveCmd.Flags().IntVarP(&portFlag, "port", "p", 0, "Override server port")
	serveCmd.Flags().StringVarP(&manifestFlag, "manifest", "m", "", "Bootstrap manifest to apply at startup")

	// Bind flags to viper
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("gateway.manifest", serveCmd.Flags().Lookup("manifest"))
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, store, err := buildGateway(cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := g.Load(ctx); err != nil {
		return fmt.Errorf("failed to restore state: %w", err)
	}

	if cfg.Gateway.Manifest != "" {
		if err := applyManifest(ctx, g, cfg.Gateway.Manifest, logger); err != nil {
			return err
		}
	}

	specs, endpoints := g.Counts()
	logger.Info("gateway ready", "specs", specs, "endpoints", endpoints)

	router := api.NewRouter(g, logger.With("component", "api"))
	server := &http.Server{
		Addr:         cfg.Address(),
		Handler:      router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting go-gateway server", "addr", server.Addr, "version", config.Version)
		logger.Info("admin API available", "url", fmt.Sprintf("http://%s/_api/", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
	return nil
}

// buildGateway wires storage, the registry and the gateway from cfg
func buildGateway(cfg *config.Config, logger *slog.Logger) (*gateway.Gateway, storage.Storage, error) {
	storagePath := cfg.Storage.Path
	if cfg.Storage.Type == "file" && !filepath.IsAbs(storagePath) {
		if abs, err := filepath.Abs(storagePath); err == nil {
			storagePath = abs
		}
		logger.Info("using data directory", "path", storagePath)
	}

	store, err := storage.New(cfg.Storage.Type, storagePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Token requests share the outbound call budget
	tokens := auth.NewOAuth2Tokens(&http.Client{Timeout: cfg.Gateway.CallTimeout})

	reg := registry.NewDefault(registry.Options{
		Logger: logger,
		HTTP: protocol.Config{
			ConnectTimeout:   cfg.Gateway.ConnectTimeout,
			ReadTimeout:      cfg.Gateway.ReadTimeout,
			MaxResponseBytes: cfg.Gateway.MaxResponseBytes,
			UserAgent:        cfg.Gateway.UserAgent,
		},
		Auth:        auth.NewApplier(credential.NewEngine(), tokens, logger.With("component", "auth")),
		CallTimeout: cfg.Gateway.CallTimeout,
	})

	g, err := gateway.New(gateway.Options{
		Logger:   logger,
		Registry: reg,
		Storage:  store,
		Calls:    tracing.NewService(cfg.Tracing.MaxCalls),
		Tokens:   tokens,
	})
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return g, store, nil
}

// applyManifest registers what the manifest declares. A manifest that cannot
// be read stops startup; entries that fail are logged and skipped.
func applyManifest(ctx context.Context, g *gateway.Gateway, path string, logger *slog.Logger) error {
	m, err := manifest.Load(path)
	if err != nil {
		return fmt.Errorf("failed to load manifest: %w", err)
	}

	res, err := m.Apply(ctx, g, logger.With("component", "manifest"))
	if err != nil {
		logger.Warn("manifest applied with errors", "path", path, "error", err)
	}
	if res != nil {
		logger.Info("manifest applied",
			"path", path,
			"registered", len(res.Registered),
			"unchanged", len(res.Unchanged),
			"authConfigs", res.AuthConfigs,
		)
	}
	return nil
}
