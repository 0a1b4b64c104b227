package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/prasenjit/go-gateway/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize go-gateway with default configuration and directory structure",
	Long: `Creates the default configuration file (config.yaml), a data directory for
file storage and an empty bootstrap manifest.

If config.yaml already exists, it will not be overwritten unless --force is used.`,
	RunE: runInit,
}

var (
	initForce bool
	initPath  string
)

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite existing config file")
	initCmd.Flags().StringVarP(&initPath, "path", "p", ".", "Path where to initialize (default: current directory)")
}

const manifestTemplate = `# Specifications registered at startup. Files are relative to this manifest.
#
# specifications:
#   - name: petstore
#     file: specs/petstore.yaml
#     baseUrl: https://petstore.example.com/v1
#     mountPath: /petstore
#     auth:
#       - type: bearer
#         config:
#           token: "{{env.PETSTORE_TOKEN}}"
specifications: []
`

func runInit(cmd *cobra.Command, args []string) error {
	absPath, err := filepath.Abs(initPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	configFile := filepath.Join(absPath, "config.yaml")
	manifestFile := filepath.Join(absPath, "manifest.yaml")
	dataDir := filepath.Join(absPath, "data")
	out := cmd.OutOrStdout()

	if _, err := os.Stat(configFile); err == nil && !initForce {
		return fmt.Errorf("config.yaml already exists. Use --force to overwrite")
	}

	for _, dir := range []string{dataDir, filepath.Join(absPath, "specs")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		fmt.Fprintf(out, "Created directory: %s\n", dir)
	}

	cfg := config.Default()
	cfg.Storage.Type = "file"
	cfg.Storage.Path = "./data"
	cfg.Gateway.Manifest = "./manifest.yaml"

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to generate config: %w", err)
	}

	header := "# go-gateway configuration\n# Every key can be overridden by GOGATEWAY_<SECTION>_<KEY>, e.g. GOGATEWAY_SERVER_PORT.\n\n"
	if err := os.WriteFile(configFile, []byte(header+string(data)), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	fmt.Fprintf(out, "Created config file: %s\n", configFile)

	// An existing manifest is kept even with --force
	if _, err := os.Stat(manifestFile); os.IsNotExist(err) {
		if err := os.WriteFile(manifestFile, []byte(manifestTemplate), 0644); err != nil {
			return fmt.Errorf("failed to write manifest: %w", err)
		}
		fmt.Fprintf(out, "Created manifest: %s\n", manifestFile)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Initialization complete! You can now start the server with:")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  cd %s\n", absPath)
	fmt.Fprintln(out, "  go-gateway serve")
	fmt.Fprintln(out)

	return nil
}
