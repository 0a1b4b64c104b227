// Package manifest loads the declarative bootstrap manifest: specifications
// to register at startup and the auth configs that go with them.
package manifest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/prasenjit/go-gateway/internal/models"
)

// Manifest is the parsed bootstrap file
type Manifest struct {
	Defaults       Defaults        `koanf:"defaults"`
	Specifications []Specification `koanf:"specifications"`

	dir string // directory the manifest was read from
}

// Defaults fill fields an entry leaves empty
type Defaults struct {
	FormatType string `koanf:"formatType"`
	Encoding   string `koanf:"encoding"`
	Priority   int    `koanf:"priority"`
}

// Specification is one document to register
type Specification struct {
	Name       string `koanf:"name"`
	File       string `koanf:"file"` // relative to the manifest
	FormatType string `koanf:"formatType"`
	Encoding   string `koanf:"encoding"`
	BaseURL    string `koanf:"baseUrl"`
	MountPath  string `koanf:"mountPath"`
	Auth       []Auth `koanf:"auth"`
}

// Auth is one auth config of a specification. Endpoint is empty for the
// whole specification, "METHOD /template" or an operationId otherwise.
type Auth struct {
	Type     string            `koanf:"type"`
	Endpoint string            `koanf:"endpoint"`
	Required bool              `koanf:"required"`
	Priority *int              `koanf:"priority"`
	Config   map[string]string `koanf:"config"`
}

// Load reads a manifest file over the built-in defaults
func Load(path string) (*Manifest, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]any{
		"defaults.formatType": "openapi",
		"defaults.encoding":   "",
		"defaults.priority":   0,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("loading manifest defaults: %w", err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}

	var m Manifest
	if err := k.Unmarshal("", &m); err != nil {
		return nil, fmt.Errorf("unmarshaling manifest: %w", err)
	}
	m.dir = filepath.Dir(path)

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate reports every incomplete entry at once
func (m *Manifest) Validate() error {
	var errs []error
	seen := make(map[string]bool)
	for i, s := range m.Specifications {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("specifications[%d]: name is required", i))
		} else if seen[s.Name] {
			errs = append(errs, fmt.Errorf("specifications[%d]: duplicate name %q", i, s.Name))
		}
		seen[s.Name] = true
		if s.File == "" {
			errs = append(errs, fmt.Errorf("specifications[%d]: file is required", i))
		}
		for j, a := range s.Auth {
			if a.Type == "" {
				errs = append(errs, fmt.Errorf("specifications[%d].auth[%d]: type is required", i, j))
			}
		}
	}
	return errors.Join(errs...)
}

// Target is what a manifest is applied to
type Target interface {
	RegisterSpecification(ctx context.Context, in models.SpecificationInput) (*models.Specification, error)
	ListSpecifications() []models.SpecificationSummary
	GetSpecification(id string) (*models.Specification, error)
	ListEndpoints(specID string) ([]models.Endpoint, error)
	UpsertAuthConfig(in models.AuthConfigInput) (*models.AuthConfig, error)
}

// Result summarizes an Apply run
type Result struct {
	Registered  []string // names registered as a new version
	Unchanged   []string // names whose active version already matched
	AuthConfigs int
}

// Apply registers every specification and upserts its auth configs. An
// entry whose active version already has the same content, base URL and
// mount path is not registered again, so restarting over persistent storage
// does not pile up versions. Failing entries do not stop the others; every
// failure is returned.
func (m *Manifest) Apply(ctx context.Context, target Target, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	res := &Result{}
	var errs []error
	for _, entry := range m.Specifications {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := m.applyOne(ctx, target, entry, res, logger); err != nil {
			errs = append(errs, fmt.Errorf("manifest entry %q: %w", entry.Name, err))
		}
	}
	return res, errors.Join(errs...)
}

func (m *Manifest) applyOne(ctx context.Context, target Target, entry Specification, res *Result, logger *slog.Logger) error {
	content, err := os.ReadFile(m.resolve(entry.File))
	if err != nil {
		return err
	}

	in := models.SpecificationInput{
		Name:       entry.Name,
		Content:    string(content),
		FormatType: firstNonEmpty(entry.FormatType, m.Defaults.FormatType),
		Encoding:   firstNonEmpty(entry.Encoding, m.Defaults.Encoding),
		BaseURL:    entry.BaseURL,
		MountPath:  entry.MountPath,
	}

	spec := activeMatching(target, in)
	if spec == nil {
		if spec, err = target.RegisterSpecification(ctx, in); err != nil {
			return err
		}
		res.Registered = append(res.Registered, entry.Name)
	} else {
		res.Unchanged = append(res.Unchanged, entry.Name)
		logger.Debug("manifest specification unchanged", "name", entry.Name, "spec", spec.ID)
	}

	var errs []error
	for i, a := range entry.Auth {
		input := models.AuthConfigInput{
			SpecID:   spec.ID,
			AuthType: a.Type,
			Config:   a.Config,
			Required: a.Required,
			Priority: m.Defaults.Priority,
		}
		if a.Priority != nil {
			input.Priority = *a.Priority
		}
		if a.Endpoint != "" {
			id, err := findEndpoint(target, spec.ID, a.Endpoint)
			if err != nil {
				errs = append(errs, fmt.Errorf("auth[%d]: %w", i, err))
				continue
			}
			input.EndpointID = id
		}
		if _, err := target.UpsertAuthConfig(input); err != nil {
			errs = append(errs, fmt.Errorf("auth[%d]: %w", i, err))
			continue
		}
		res.AuthConfigs++
	}
	return errors.Join(errs...)
}

func (m *Manifest) resolve(path string) string {
	if filepath.IsAbs(path) || m.dir == "" {
		return path
	}
	return filepath.Join(m.dir, path)
}

// activeMatching returns the active version of in.Name when registering in
// again would change nothing.
func activeMatching(target Target, in models.SpecificationInput) *models.Specification {
	for _, s := range target.ListSpecifications() {
		if s.Name != in.Name || s.Status != models.SpecStatusActive {
			continue
		}
		spec, err := target.GetSpecification(s.ID)
		if err != nil {
			return nil
		}
		sameMount := in.MountPath == "" || strings.Trim(in.MountPath, "/") == strings.Trim(spec.MountPath, "/")
		if spec.Content == in.Content && spec.BaseURL == strings.TrimSpace(in.BaseURL) && sameMount {
			return spec
		}
		return nil
	}
	return nil
}

// findEndpoint resolves "METHOD /template" or an operationId.
func findEndpoint(target Target, specID, selector string) (string, error) {
	endpoints, err := target.ListEndpoints(specID)
	if err != nil {
		return "", err
	}
	method, template, hasMethod := strings.Cut(strings.TrimSpace(selector), " ")
	for _, e := range endpoints {
		if hasMethod && strings.EqualFold(e.Method, method) && e.Path == strings.TrimSpace(template) {
			return e.ID, nil
		}
		if !hasMethod && e.OperationID == selector {
			return e.ID, nil
		}
	}
	return "", fmt.Errorf("no endpoint matches %q", selector)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
