package parser

import (
	"context"
	"errors"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/prasenjit/go-gateway/internal/document"
	"github.com/prasenjit/go-gateway/internal/gwerrors"
	"github.com/prasenjit/go-gateway/internal/models"
	"github.com/prasenjit/go-gateway/internal/schema"
)

// Finding sources used in validation reports.
const (
	SourceParser    = "parser"
	SourceServers   = "servers"
	SourceEndpoints = "endpoints"
	SourceCompiler  = "compiler"
	SourceLint      = "lint"
)

// Validate checks a decoded document and collects every problem instead of
// stopping at the first. Structural problems, unresolvable servers, path
// parameter mismatches and DTO compile problems are errors; everything else
// is a warning.
func (p *Parser) Validate(ctx context.Context, root *document.Node, baseURL string) *models.ValidationReport {
	report := models.NewValidationReport("")

	for _, err := range Check(root) {
		report.AddError(SourceParser, errorPath(err), err.Error())
	}
	if !report.IsValid {
		return report
	}

	m, err := p.Parse(root)
	if err != nil {
		report.AddError(SourceParser, errorPath(err), err.Error())
		return report
	}

	w := &walker{model: m, report: report}
	w.walk()

	if _, err := m.BaseURL(baseURL); err != nil {
		report.AddError(SourceServers, errorPath(err), err.Error())
	}

	if _, err := schema.CompileAll(root, m.Components); err != nil {
		var compileErr *gwerrors.CompileError
		if errors.As(err, &compileErr) {
			for _, problem := range compileErr.Problems {
				report.AddError(SourceCompiler, errorPath(problem), problem.Error())
			}
		} else {
			report.AddError(SourceCompiler, "", err.Error())
		}
	}

	for _, finding := range Lint(ctx, m) {
		report.AddWarning(SourceLint, "", finding)
	}

	p.logger.Debug("validated document",
		"title", m.Info.Title,
		"errors", len(report.Errors),
		"warnings", len(report.Warnings),
	)
	return report
}

// Lint runs the kin-openapi conformance checks on a 3.x document and returns
// their findings as text. Lint never fails; a document it cannot load yields
// a single finding.
func Lint(ctx context.Context, m *Model) []string {
	if m.Swagger() {
		return nil
	}

	data, err := m.Root.MarshalJSON()
	if err != nil {
		return []string{fmt.Sprintf("document could not be serialized for linting: %v", err)}
	}

	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = false
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return []string{fmt.Sprintf("document could not be loaded for linting: %v", err)}
	}

	err = doc.Validate(ctx)
	if err == nil {
		return nil
	}

	var multi openapi3.MultiError
	if errors.As(err, &multi) {
		out := make([]string, 0, len(multi))
		for _, e := range multi {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}

// errorPath extracts the JSON pointer carried by a typed error.
func errorPath(err error) string {
	var parseErr *gwerrors.ParseError
	if errors.As(err, &parseErr) {
		return parseErr.Path
	}
	var validationErr *gwerrors.ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Path
	}
	var fieldErr *gwerrors.FieldError
	if errors.As(err, &fieldErr) {
		return fieldErr.Pointer
	}
	if errors.Is(err, gwerrors.ErrMissingInfo) {
		return "#/info"
	}
	return ""
}
