package gateway

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/prasenjit/go-gateway/internal/document"
	"github.com/prasenjit/go-gateway/internal/gwerrors"
	"github.com/prasenjit/go-gateway/internal/models"
	"github.com/prasenjit/go-gateway/internal/proxy"
)

// RegisterSpecification parses and stores a new specification version.
// Registering a name that already exists creates the next version and marks
// the previous active one superseded; older content is never rewritten.
// A new version without a mount path takes over the mount of the version it
// supersedes.
func (g *Gateway) RegisterSpecification(ctx context.Context, in models.SpecificationInput) (*models.Specification, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, &gwerrors.ValidationError{Path: "name", Message: "name is required"}
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, &gwerrors.ParseError{Path: "#", Message: "content is empty"}
	}

	format, root, err := g.decode(in.Content, in.FormatType, in.Encoding)
	if err != nil {
		return nil, err
	}

	now := g.now()
	spec := &models.Specification{
		ID:         uuid.New().String(),
		Name:       name,
		FormatType: format,
		Encoding:   encodingOf(in.Content, in.Encoding),
		Content:    in.Content,
		BaseURL:    strings.TrimSpace(in.BaseURL),
		Status:     models.SpecStatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if strings.TrimSpace(in.MountPath) != "" {
		spec.MountPath = proxy.NormalizeMountPath(in.MountPath)
	}

	snap, err := g.buildFrom(spec, root)
	if err != nil {
		return nil, err
	}
	spec.Title = snap.model.Info.Title
	spec.APIVersion = snap.model.Info.Version
	spec.DocumentVersion = snap.model.DocumentVersion
	spec.Description = snap.model.Info.Description

	lock := g.lockFor(name)
	lock.Lock()
	defer lock.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	previous, err := g.store.GetSpecsByName(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load previous versions: %w", err)
	}
	spec.Version = 1
	var superseded []*models.Specification
	for _, p := range previous {
		spec.Version = max(spec.Version, p.Version+1)
		if p.Status == models.SpecStatusActive {
			superseded = append(superseded, p)
			if spec.MountPath == "" {
				spec.MountPath = p.MountPath
			}
		}
	}

	if err := g.store.CreateSpec(spec); err != nil {
		return nil, fmt.Errorf("failed to store specification: %w", err)
	}
	for _, p := range superseded {
		p.Status = models.SpecStatusSuperseded
		p.UpdatedAt = now
		if err := g.store.UpdateSpec(p); err != nil {
			return nil, fmt.Errorf("failed to supersede version %d: %w", p.Version, err)
		}
		g.restate(p)
		g.mounts.Unmount(p.ID)
	}

	g.publish(snap)
	if spec.MountPath != "" {
		g.mounts.Mount(spec.MountPath, spec.ID)
	}

	g.logger.Info("registered specification",
		"spec", spec.ID,
		"name", spec.Name,
		"version", spec.Version,
		"endpoints", len(snap.endpoints),
		"mount", spec.MountPath,
	)
	return cloneSpec(spec), nil
}

// ValidateContent validates a document without registering it.
func (g *Gateway) ValidateContent(ctx context.Context, in models.SpecificationInput) (*models.ValidationReport, error) {
	format, root, err := g.decode(in.Content, in.FormatType, in.Encoding)
	if err != nil {
		report := models.NewValidationReport("")
		report.AddError("decoder", "#", err.Error())
		return report, nil
	}
	p, err := g.registry.Parsers.Create(format)
	if err != nil {
		return nil, err
	}
	return p.Validate(ctx, root, strings.TrimSpace(in.BaseURL)), nil
}

// decode turns content into a tree. Without a format hint every registered
// specification format is asked to recognize the document.
func (g *Gateway) decode(content, formatHint, encoding string) (string, *document.Node, error) {
	formatHint = strings.ToLower(strings.TrimSpace(formatHint))
	if formatHint != "" {
		format, err := g.registry.Specifications.Create(formatHint)
		if err != nil {
			return "", nil, err
		}
		root, err := format.Decode([]byte(content), encoding)
		if err != nil {
			return "", nil, err
		}
		return formatHint, root, nil
	}

	root, err := document.Decode([]byte(content), encoding)
	if err != nil {
		return "", nil, err
	}
	key, ok := g.registry.Detect(root)
	if !ok {
		return "", nil, &gwerrors.ParseError{Path: "#", Message: "document format not recognized"}
	}
	return key, root, nil
}

func encodingOf(content, hint string) string {
	if hint != "" {
		return strings.ToLower(hint)
	}
	trimmed := bytes.TrimLeft([]byte(content), " \t\r\n\ufeff")
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return document.EncodingJSON
	}
	return document.EncodingYAML
}

// restate republishes the snapshot of spec with its updated metadata.
func (g *Gateway) restate(spec *models.Specification) {
	g.mu.Lock()
	defer g.mu.Unlock()

	old, ok := g.snapshots[spec.ID]
	if !ok {
		return
	}
	next := *old
	next.spec = cloneSpec(spec)
	g.snapshots[spec.ID] = &next
}

// GetSpecification returns one specification version
func (g *Gateway) GetSpecification(id string) (*models.Specification, error) {
	snap, err := g.snapshot(id)
	if err != nil {
		return nil, err
	}
	return cloneSpec(snap.spec), nil
}

// ListSpecifications returns every loaded version, ordered by name and
// version
func (g *Gateway) ListSpecifications() []models.SpecificationSummary {
	g.mu.RLock()
	result := make([]models.SpecificationSummary, 0, len(g.snapshots))
	for _, snap := range g.snapshots {
		result = append(result, snap.spec.Summary(len(snap.endpoints)))
	}
	g.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].Version < result[j].Version
	})
	return result
}

// DeleteSpecification removes one version together with its auth configs,
// call logs and statistics.
func (g *Gateway) DeleteSpecification(id string) error {
	snap, err := g.snapshot(id)
	if err != nil {
		return err
	}

	lock := g.lockFor(snap.spec.Name)
	lock.Lock()
	defer lock.Unlock()

	if snap, err = g.snapshot(id); err != nil {
		return err
	}
	if err := g.store.DeleteAuthConfigsBySpec(id); err != nil {
		return fmt.Errorf("failed to delete auth configs: %w", err)
	}
	if err := g.store.DeleteSpec(id); err != nil {
		return err
	}

	g.unpublish(id)
	g.mounts.Unmount(id)
	g.calls.ClearCallsBySpec(id)
	g.stats.Forget(id)
	if g.tokens != nil {
		for _, c := range snap.auth {
			g.tokens.Forget(c.ID)
		}
	}

	g.logger.Info("deleted specification", "spec", id, "name", snap.spec.Name, "version", snap.spec.Version)
	return nil
}

// ListEndpoints returns the endpoints of a specification in declaration
// order
func (g *Gateway) ListEndpoints(specID string) ([]models.Endpoint, error) {
	snap, err := g.snapshot(specID)
	if err != nil {
		return nil, err
	}
	return slices.Clone(snap.endpoints), nil
}

// GetEndpoint returns one endpoint by ID
func (g *Gateway) GetEndpoint(endpointID string) (*models.Endpoint, error) {
	snap, err := g.snapshotOfEndpoint(endpointID)
	if err != nil {
		return nil, err
	}
	ep, _ := snap.routes.Endpoint(endpointID)
	out := *ep
	return &out, nil
}

// Routes returns the templates of a specification per method
func (g *Gateway) Routes(specID string) (map[string][]string, error) {
	snap, err := g.snapshot(specID)
	if err != nil {
		return nil, err
	}
	return snap.routes.Routes(), nil
}

// GenerateDTOs compiles the DTOs of a specification. The result is derived
// from the stored content on every call.
func (g *Gateway) GenerateDTOs(specID string) ([]models.DTO, error) {
	snap, err := g.snapshot(specID)
	if err != nil {
		return nil, err
	}
	return snap.parser.GenerateDTOs(snap.model)
}

// Validate checks a registered specification and collects every problem.
func (g *Gateway) Validate(ctx context.Context, specID string) (*models.ValidationReport, error) {
	snap, err := g.snapshot(specID)
	if err != nil {
		return nil, err
	}
	report := snap.parser.Validate(ctx, snap.model.Root, snap.spec.BaseURL)
	report.SpecID = specID
	return report, nil
}

func cloneSpec(spec *models.Specification) *models.Specification {
	c := *spec
	return &c
}
