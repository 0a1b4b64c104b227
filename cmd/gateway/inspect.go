package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/prasenjit/go-gateway/internal/auth"
	"github.com/prasenjit/go-gateway/internal/config"
	"github.com/prasenjit/go-gateway/internal/credential"
	"github.com/prasenjit/go-gateway/internal/gateway"
	"github.com/prasenjit/go-gateway/internal/models"
	"github.com/prasenjit/go-gateway/internal/protocol"
	"github.com/prasenjit/go-gateway/internal/registry"
	"github.com/prasenjit/go-gateway/internal/storage"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Inspect a document without running the server",
	Long: `Parses a local API description document and prints what the gateway would
derive from it, as JSON on stdout.`,
}

var (
	inspectFormat  string
	inspectBaseURL string
)

func init() {
	inspectCmd.PersistentFlags().StringVar(&inspectFormat, "format", "", "document format (default: detect)")
	inspectCmd.PersistentFlags().StringVar(&inspectBaseURL, "base-url", "", "base URL overriding the document's servers")

	inspectCmd.AddCommand(&cobra.Command{
		Use:   "endpoints <file>",
		Short: "List the endpoints of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, spec, err := inspectRegister(cmd, args[0])
			if err != nil {
				return err
			}
			endpoints, err := g.ListEndpoints(spec.ID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), endpoints)
		},
	})

	inspectCmd.AddCommand(&cobra.Command{
		Use:   "dtos <file>",
		Short: "Print the DTOs compiled from a document's schemas",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, spec, err := inspectRegister(cmd, args[0])
			if err != nil {
				return err
			}
			dtos, err := g.GenerateDTOs(spec.ID)
			if dtos != nil {
				if perr := printJSON(cmd.OutOrStdout(), dtos); perr != nil {
					return perr
				}
			}
			return err
		},
	})

	inspectCmd.AddCommand(&cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a document and print every problem found",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := inspectGateway()
			if err != nil {
				return err
			}
			in, err := readDocument(args[0])
			if err != nil {
				return err
			}
			report, err := g.ValidateContent(cmd.Context(), in)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if !report.IsValid {
				return fmt.Errorf("%s: %d errors", args[0], len(report.Errors))
			}
			return nil
		},
	})
}

// inspectGateway returns a throwaway gateway over memory storage
func inspectGateway() (*gateway.Gateway, error) {
	d := config.Default()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	reg := registry.NewDefault(registry.Options{
		Logger: logger,
		HTTP: protocol.Config{
			ConnectTimeout:   d.Gateway.ConnectTimeout,
			ReadTimeout:      d.Gateway.ReadTimeout,
			MaxResponseBytes: d.Gateway.MaxResponseBytes,
			UserAgent:        d.Gateway.UserAgent,
		},
		Auth:        auth.NewApplier(credential.NewEngine(), nil, logger),
		CallTimeout: d.Gateway.CallTimeout,
	})
	return gateway.New(gateway.Options{
		Logger:   logger,
		Registry: reg,
		Storage:  storage.NewMemoryStorage(),
	})
}

func inspectRegister(cmd *cobra.Command, path string) (*gateway.Gateway, *models.Specification, error) {
	g, err := inspectGateway()
	if err != nil {
		return nil, nil, err
	}
	in, err := readDocument(path)
	if err != nil {
		return nil, nil, err
	}
	spec, err := g.RegisterSpecification(cmd.Context(), in)
	if err != nil {
		return nil, nil, err
	}
	return g, spec, nil
}

// readDocument names the document after its file
func readDocument(path string) (models.SpecificationInput, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return models.SpecificationInput{}, err
	}
	base := filepath.Base(path)
	return models.SpecificationInput{
		Name:       strings.TrimSuffix(base, filepath.Ext(base)),
		Content:    string(content),
		FormatType: inspectFormat,
		BaseURL:    inspectBaseURL,
	}, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
