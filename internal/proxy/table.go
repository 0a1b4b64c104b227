package proxy

import (
	"strings"

	"github.com/prasenjit/go-gateway/internal/gwerrors"
	"github.com/prasenjit/go-gateway/internal/models"
)

// Table routes calls to the endpoints of one specification version. It is
// built once per version and only read afterwards.
type Table struct {
	routes []route
	byID   map[string]int
}

// route represents a registered route
type route struct {
	endpoint *models.Endpoint
	template Template
}

// NewTable compiles the templates of endpoints, keeping declaration order.
func NewTable(endpoints []models.Endpoint) *Table {
	t := &Table{
		routes: make([]route, 0, len(endpoints)),
		byID:   make(map[string]int, len(endpoints)),
	}
	for i := range endpoints {
		e := &endpoints[i]
		t.byID[e.ID] = len(t.routes)
		t.routes = append(t.routes, route{endpoint: e, template: Compile(e.Path)})
	}
	return t
}

// Len returns the number of routes.
func (t *Table) Len() int { return len(t.routes) }

// Endpoint returns the endpoint with the given ID.
func (t *Table) Endpoint(id string) (*models.Endpoint, bool) {
	i, ok := t.byID[id]
	if !ok {
		return nil, false
	}
	return t.routes[i].endpoint, true
}

// Lookup finds an endpoint by its exact template and method.
func (t *Table) Lookup(method, template string) (*models.Endpoint, bool) {
	method = strings.ToUpper(method)
	for _, r := range t.routes {
		if r.endpoint.Method == method && r.template.String() == template {
			return r.endpoint, true
		}
	}
	return nil, false
}

// Resolve matches a concrete path and method against the routes in
// declaration order; the first full match wins. A path that only matches
// under other methods fails with UnknownEndpoint, a path that matches no
// template at all with PathMismatch.
func (t *Table) Resolve(method, path string) (*models.Endpoint, map[string]string, error) {
	method = strings.ToUpper(method)
	otherMethod := false
	for _, r := range t.routes {
		params, ok := r.template.Match(path)
		if !ok {
			continue
		}
		if r.endpoint.Method == method {
			return r.endpoint, params, nil
		}
		otherMethod = true
	}

	if otherMethod {
		return nil, nil, &gwerrors.DispatchError{Kind: gwerrors.UnknownEndpoint, Method: method, Path: path}
	}
	return nil, nil, &gwerrors.DispatchError{Kind: gwerrors.PathMismatch, Method: method, Path: path}
}

// Routes returns the templates per method, for diagnostics.
func (t *Table) Routes() map[string][]string {
	result := make(map[string][]string)
	for _, r := range t.routes {
		result[r.endpoint.Method] = append(result[r.endpoint.Method], r.template.String())
	}
	return result
}
