package models

import (
	"time"
)

// SpecStatus is the lifecycle state of one specification version
type SpecStatus string

const (
	SpecStatusActive     SpecStatus = "active"
	SpecStatusSuperseded SpecStatus = "superseded"
)

// Specification is one registered version of an API description document.
// Content is never rewritten after registration; a re-registration of the
// same name creates a new Specification with the next Version.
type Specification struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	FormatType      string     `json:"formatType"`      // registry key, e.g. "openapi"
	Encoding        string     `json:"encoding"`        // "json" or "yaml" as registered
	Version         int        `json:"version"`         // registration version, starts at 1
	Title           string     `json:"title"`           // info.title
	APIVersion      string     `json:"apiVersion"`      // info.version
	DocumentVersion string     `json:"documentVersion"` // openapi / swagger field
	Description     string     `json:"description"`
	Content         string     `json:"content"`             // raw document as registered
	BaseURL         string     `json:"baseUrl,omitempty"`   // overrides the document's servers
	MountPath       string     `json:"mountPath,omitempty"` // prefix for live traffic
	Status          SpecStatus `json:"status"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// SpecificationInput is the input of registerSpecification
type SpecificationInput struct {
	Name       string `json:"name" binding:"required"`
	Content    string `json:"content"`
	FormatType string `json:"formatType"`
	Encoding   string `json:"encoding"`
	BaseURL    string `json:"baseUrl"`
	MountPath  string `json:"mountPath"`
}

// SpecificationSummary is a lightweight version for listings
type SpecificationSummary struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	FormatType    string     `json:"formatType"`
	Version       int        `json:"version"`
	Title         string     `json:"title"`
	APIVersion    string     `json:"apiVersion"`
	BaseURL       string     `json:"baseUrl,omitempty"`
	MountPath     string     `json:"mountPath,omitempty"`
	Status        SpecStatus `json:"status"`
	EndpointCount int        `json:"endpointCount"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// Summary returns the listing view of s
func (s *Specification) Summary(endpointCount int) SpecificationSummary {
	return SpecificationSummary{
		ID:            s.ID,
		Name:          s.Name,
		FormatType:    s.FormatType,
		Version:       s.Version,
		Title:         s.Title,
		APIVersion:    s.APIVersion,
		BaseURL:       s.BaseURL,
		MountPath:     s.MountPath,
		Status:        s.Status,
		EndpointCount: endpointCount,
		CreatedAt:     s.CreatedAt,
	}
}
