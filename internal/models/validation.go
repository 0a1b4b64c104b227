package models

// ValidationIssue is one problem found by validate
type ValidationIssue struct {
	Path    string `json:"path,omitempty"` // JSON pointer
	Source  string `json:"source"`         // parser, compiler, endpoints, lint
	Message string `json:"message"`
}

// ValidationReport collects every problem found in a specification
type ValidationReport struct {
	SpecID   string            `json:"specId,omitempty"`
	IsValid  bool              `json:"isValid"`
	Errors   []ValidationIssue `json:"errors"`
	Warnings []ValidationIssue `json:"warnings"`
}

// NewValidationReport returns an empty, valid report
func NewValidationReport(specID string) *ValidationReport {
	return &ValidationReport{
		SpecID:   specID,
		IsValid:  true,
		Errors:   make([]ValidationIssue, 0),
		Warnings: make([]ValidationIssue, 0),
	}
}

// AddError records an error and marks the report invalid
func (r *ValidationReport) AddError(source, path, message string) {
	r.Errors = append(r.Errors, ValidationIssue{Path: path, Source: source, Message: message})
	r.IsValid = false
}

// AddWarning records a non-fatal finding
func (r *ValidationReport) AddWarning(source, path, message string) {
	r.Warnings = append(r.Warnings, ValidationIssue{Path: path, Source: source, Message: message})
}
