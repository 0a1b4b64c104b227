package models

// Parameter locations
const (
	InPath   = "path"
	InQuery  = "query"
	InHeader = "header"
	InCookie = "cookie"
)

// Endpoint is one (path template, method) pair of a specification
type Endpoint struct {
	ID          string               `json:"id"`
	SpecID      string               `json:"specId"`
	Method      string               `json:"method"` // upper case
	Path        string               `json:"path"`   // template, e.g. /pets/{petId}
	OperationID string               `json:"operationId"`
	Summary     string               `json:"summary,omitempty"`
	Description string               `json:"description,omitempty"`
	Tags        []string             `json:"tags,omitempty"`
	Deprecated  bool                 `json:"deprecated,omitempty"`
	Parameters  []Parameter          `json:"parameters"`
	RequestBody *RequestBody         `json:"requestBody,omitempty"`
	Responses   []ResponseDescriptor `json:"responses"`
	Pointer     string               `json:"pointer"` // JSON pointer of the operation object
}

// Parameter describes one declared input of an endpoint
type Parameter struct {
	Name        string `json:"name"`
	In          string `json:"in"`
	Required    bool   `json:"required"`
	Type        string `json:"type,omitempty"`   // inline scalar type, if declared
	Schema      string `json:"schema,omitempty"` // JSON pointer, resolved lazily
	Description string `json:"description,omitempty"`
}

// RequestBody describes the declared request body
type RequestBody struct {
	Required     bool     `json:"required"`
	ContentTypes []string `json:"contentTypes"`
	Schema       string   `json:"schema,omitempty"` // JSON pointer of the first media type's schema
}

// ResponseDescriptor describes one declared response
type ResponseDescriptor struct {
	Status       string   `json:"status"` // "200", "4XX", "default"
	Description  string   `json:"description,omitempty"`
	ContentTypes []string `json:"contentTypes,omitempty"`
	Schema       string   `json:"schema,omitempty"`
}

// FindParameter returns the parameter declared with name and location
func (e *Endpoint) FindParameter(name, in string) (Parameter, bool) {
	for _, p := range e.Parameters {
		if p.Name == name && p.In == in {
			return p, true
		}
	}
	return Parameter{}, false
}
