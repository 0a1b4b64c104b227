// Package parser builds the Specification Model of an OpenAPI document and
// extracts its endpoints.
package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/prasenjit/go-gateway/internal/document"
	"github.com/prasenjit/go-gateway/internal/gwerrors"
	"github.com/prasenjit/go-gateway/internal/models"
	"github.com/prasenjit/go-gateway/internal/schema"
)

// FormatOpenAPI is the registry key of this parser.
const FormatOpenAPI = "openapi"

// Info is the document's info object
type Info struct {
	Title       string `json:"title"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
}

// Server is one entry of servers, with variable defaults collected
type Server struct {
	URL         string            `json:"url"`
	Description string            `json:"description,omitempty"`
	Variables   map[string]string `json:"variables,omitempty"`
}

// Model is the in-memory representation of a parsed document. It is never
// modified after Parse returns, so it can be shared between calls.
type Model struct {
	Root            *document.Node
	DocumentVersion string // value of "openapi", or "swagger" for 2.0 documents
	Info            Info
	Servers         []Server
	Components      []schema.Component
}

// Swagger reports whether the document uses the 2.0 layout.
func (m *Model) Swagger() bool {
	return strings.HasPrefix(m.DocumentVersion, "2.")
}

// Parser handles OpenAPI specification parsing
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a new OpenAPI parser
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// Parse validates the structure of a decoded document and builds its Model.
// A document without info fails with *gwerrors.MissingInfoError; any other
// structural problem fails with *gwerrors.ParseError.
func (p *Parser) Parse(root *document.Node) (*Model, error) {
	problems := Check(root)
	if len(problems) > 0 {
		for _, err := range problems {
			if errors.Is(err, gwerrors.ErrMissingInfo) {
				return nil, err
			}
		}
		return nil, problems[0]
	}

	info, _ := root.Get("info")
	m := &Model{
		Root:            root,
		DocumentVersion: versionOf(root),
		Info: Info{
			Title:       info.ScalarAt("title"),
			Version:     info.ScalarAt("version"),
			Description: info.StringAt("description"),
		},
	}

	if m.Swagger() {
		m.Servers = swaggerServers(root)
		m.Components = schema.ComponentsAt(root, "definitions")
	} else {
		m.Servers = servers(root)
		m.Components = schema.Components(root)
	}

	p.logger.Debug("parsed document",
		"title", m.Info.Title,
		"version", m.DocumentVersion,
		"components", len(m.Components),
	)
	return m, nil
}

// Check collects every structural problem of a decoded document. An empty
// result means Parse will succeed.
func Check(root *document.Node) []error {
	if root == nil || root.Kind != document.Object {
		return []error{&gwerrors.ParseError{Path: "#", Message: "document root must be an object"}}
	}

	var problems []error
	if versionOf(root) == "" {
		problems = append(problems, &gwerrors.ParseError{
			Path:    "#/openapi",
			Message: "missing version identifier",
		})
	}

	info, ok := root.Get("info")
	switch {
	case !ok:
		problems = append(problems, &gwerrors.MissingInfoError{})
	case info.Kind != document.Object:
		problems = append(problems, &gwerrors.ParseError{Path: "#/info", Message: "info must be an object"})
	default:
		for _, key := range []string{"title", "version"} {
			if info.ScalarAt(key) == "" {
				problems = append(problems, &gwerrors.ParseError{
					Path:    document.Pointer("info", key),
					Message: fmt.Sprintf("info.%s is required", key),
				})
			}
		}
	}

	paths, ok := root.Get("paths")
	switch {
	case !ok:
		problems = append(problems, &gwerrors.ParseError{Path: "#/paths", Message: "paths is required"})
	case paths.Kind != document.Object:
		problems = append(problems, &gwerrors.ParseError{Path: "#/paths", Message: "paths must be an object"})
	}
	return problems
}

func versionOf(root *document.Node) string {
	if v := root.ScalarAt("openapi"); v != "" {
		return v
	}
	return root.ScalarAt("swagger")
}

func servers(root *document.Node) []Server {
	list, ok := root.Get("servers")
	if !ok || list.Kind != document.Array {
		return nil
	}

	out := make([]Server, 0, len(list.Items))
	for _, item := range list.Items {
		if item.Kind != document.Object {
			continue
		}
		s := Server{
			URL:         item.StringAt("url"),
			Description: item.StringAt("description"),
		}
		if vars, ok := item.Get("variables"); ok && vars.Kind == document.Object {
			s.Variables = make(map[string]string)
			for _, v := range vars.Fields() {
				s.Variables[v.Key] = v.Value.ScalarAt("default")
			}
		}
		out = append(out, s)
	}
	return out
}

// swaggerServers derives a server list from host, basePath and schemes.
func swaggerServers(root *document.Node) []Server {
	host := root.StringAt("host")
	basePath := root.StringAt("basePath")
	if host == "" && basePath == "" {
		return nil
	}
	if host == "" {
		return []Server{{URL: basePath}}
	}

	scheme := "https"
	if schemes, ok := root.Get("schemes"); ok && schemes.Kind == document.Array && len(schemes.Items) > 0 {
		scheme = schemes.Items[0].Text()
	}
	return []Server{{URL: scheme + "://" + host + basePath}}
}

// GenerateDTOs compiles the model's component schemas into DTOs.
func (p *Parser) GenerateDTOs(m *Model) ([]models.DTO, error) {
	dtos, err := schema.CompileAll(m.Root, m.Components)
	if err != nil {
		p.logger.Debug("dto compilation reported problems", "error", err)
	}
	return dtos, err
}
