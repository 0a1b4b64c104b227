package parser

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/prasenjit/go-gateway/internal/document"
	"github.com/prasenjit/go-gateway/internal/models"
	"github.com/prasenjit/go-gateway/internal/schema"
)

// Methods lists the operation keys of a path item, in the order they are
// most commonly declared.
var Methods = []string{"get", "put", "post", "delete", "options", "head", "patch", "trace"}

// Swagger 2.0 parameter locations that describe the request body.
const (
	inBody     = "body"
	inFormData = "formData"
)

const formContentType = "application/x-www-form-urlencoded"

// ExtractEndpoints walks every path item and emits one Endpoint per HTTP
// verb key, in declaration order. Path items or operations that cannot be
// read are skipped; Validate reports them.
func (p *Parser) ExtractEndpoints(m *Model, specID string) []models.Endpoint {
	w := &walker{model: m, specID: specID}
	return w.walk()
}

// EndpointID generates a deterministic endpoint ID based on spec, method and
// path, so IDs stay stable when endpoints are re-extracted from stored
// content.
func EndpointID(specID, method, path string) string {
	data := fmt.Sprintf("%s:%s:%s", specID, strings.ToUpper(method), path)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:16])
}

func isMethod(key string) bool {
	key = strings.ToLower(key)
	for _, m := range Methods {
		if m == key {
			return true
		}
	}
	return false
}

// walker extracts endpoints and, when report is set, records findings on
// the way.
type walker struct {
	model  *Model
	specID string
	report *models.ValidationReport

	operationIDs map[string]string // operationId -> first pointer
}

func (w *walker) walk() []models.Endpoint {
	out := make([]models.Endpoint, 0)
	paths, ok := w.model.Root.Get("paths")
	if !ok {
		return out
	}
	w.operationIDs = make(map[string]string)

	for _, entry := range paths.Fields() {
		template := entry.Key
		item, ptr, ok := w.deref(entry.Value, document.Pointer("paths", template))
		if !ok {
			continue
		}
		if item.Kind != document.Object {
			w.errorf(ptr, "path item must be an object")
			continue
		}
		if !strings.HasPrefix(template, "/") {
			w.warnf(ptr, "path %q does not start with /", template)
		}

		shared := w.parameters(item, ptr)
		for _, op := range item.Fields() {
			if !isMethod(op.Key) {
				continue
			}
			opPtr := document.Join(ptr, op.Key)
			if op.Value.Kind != document.Object {
				w.errorf(opPtr, "operation must be an object")
				continue
			}
			out = append(out, w.endpoint(template, strings.ToUpper(op.Key), op.Value, opPtr, shared))
		}
	}
	return out
}

func (w *walker) endpoint(template, method string, op *document.Node, ptr string, shared []models.Parameter) models.Endpoint {
	e := models.Endpoint{
		ID:          EndpointID(w.specID, method, template),
		SpecID:      w.specID,
		Method:      method,
		Path:        template,
		OperationID: op.StringAt("operationId"),
		Summary:     op.StringAt("summary"),
		Description: op.StringAt("description"),
		Deprecated:  op.BoolAt("deprecated"),
		Parameters:  make([]models.Parameter, 0),
		Responses:   make([]models.ResponseDescriptor, 0),
		Pointer:     ptr,
	}
	if e.OperationID == "" {
		e.OperationID = fmt.Sprintf("%s_%s", strings.ToLower(method), sanitizePath(template))
	} else if first, dup := w.operationIDs[e.OperationID]; dup {
		w.warnf(ptr, "operationId %q is already used at %s", e.OperationID, first)
	} else {
		w.operationIDs[e.OperationID] = ptr
	}

	if tags, ok := op.Get("tags"); ok && tags.Kind == document.Array {
		for _, t := range tags.Items {
			e.Tags = append(e.Tags, t.Text())
		}
	}

	params := mergeParameters(shared, w.parameters(op, ptr))
	var form []models.Parameter
	for _, param := range params {
		switch param.In {
		case inBody:
			e.RequestBody = &models.RequestBody{
				Required:     param.Required,
				ContentTypes: w.mediaTypes(op, "consumes"),
				Schema:       param.Schema,
			}
		case inFormData:
			form = append(form, param)
		default:
			e.Parameters = append(e.Parameters, param)
		}
	}
	if len(form) > 0 && e.RequestBody == nil {
		e.RequestBody = &models.RequestBody{ContentTypes: []string{formContentType}}
		for _, f := range form {
			e.RequestBody.Required = e.RequestBody.Required || f.Required
		}
	}
	if body, ok := op.Get("requestBody"); ok {
		e.RequestBody = w.requestBody(body, document.Join(ptr, "requestBody"))
	}

	e.Responses = w.responses(op, ptr)
	if len(e.Responses) == 0 {
		w.warnf(ptr, "operation %s %s declares no responses", method, template)
	}

	w.checkPathParameters(&e)
	return e
}

// parameters reads the parameters list of a path item or operation.
func (w *walker) parameters(n *document.Node, ptr string) []models.Parameter {
	list, ok := n.Get("parameters")
	if !ok || list.Kind != document.Array {
		return nil
	}

	out := make([]models.Parameter, 0, len(list.Items))
	for i, raw := range list.Items {
		p, pptr, ok := w.deref(raw, document.Join(ptr, "parameters", strconv.Itoa(i)))
		if !ok {
			continue
		}
		name, in := p.StringAt("name"), p.StringAt("in")
		if name == "" || in == "" {
			w.errorf(pptr, "parameter needs both name and in")
			continue
		}

		param := models.Parameter{
			Name:        name,
			In:          in,
			Required:    p.BoolAt("required") || in == models.InPath,
			Description: p.StringAt("description"),
		}
		if s, ok := p.Get("schema"); ok {
			param.Schema, param.Type = w.schemaType(s, document.Join(pptr, "schema"))
		} else if t := p.StringAt("type"); t != "" {
			param.Type = t
		}
		out = append(out, param)
	}
	return out
}

// mergeParameters overlays operation-level parameters on path-level ones,
// keyed by (name, in). An override keeps the path-level position.
func mergeParameters(shared, own []models.Parameter) []models.Parameter {
	out := make([]models.Parameter, 0, len(shared)+len(own))
	index := make(map[string]int)
	for _, list := range [][]models.Parameter{shared, own} {
		for _, p := range list {
			key := p.In + "\x00" + p.Name
			if i, ok := index[key]; ok {
				out[i] = p
				continue
			}
			index[key] = len(out)
			out = append(out, p)
		}
	}
	return out
}

// schemaType returns the pointer of a schema, following a $ref without
// expanding it, and its scalar type when it has one.
func (w *walker) schemaType(s *document.Node, ptr string) (string, string) {
	pointer := ptr
	target := s
	if ref, ok := s.Ref(); ok {
		pointer = document.Canonical(ref)
		resolved, _, err := document.Chase(ref, w.model.Root)
		if err != nil {
			w.errorf(ptr, "%v", err)
			return pointer, ""
		}
		target = resolved
	}

	n := schema.From(target, pointer)
	switch n.Kind {
	case schema.KindScalar:
		return pointer, n.Type
	case schema.KindArray:
		return pointer, "array"
	}
	return pointer, ""
}

func (w *walker) requestBody(raw *document.Node, ptr string) *models.RequestBody {
	body, bptr, ok := w.deref(raw, ptr)
	if !ok {
		return nil
	}
	rb := &models.RequestBody{Required: body.BoolAt("required")}
	rb.ContentTypes, rb.Schema = w.content(body, bptr)
	return rb
}

func (w *walker) responses(op *document.Node, ptr string) []models.ResponseDescriptor {
	out := make([]models.ResponseDescriptor, 0)
	list, ok := op.Get("responses")
	if !ok || list.Kind != document.Object {
		return out
	}

	for _, m := range list.Fields() {
		resp, rptr, ok := w.deref(m.Value, document.Join(ptr, "responses", m.Key))
		if !ok {
			continue
		}
		d := models.ResponseDescriptor{
			Status:      m.Key,
			Description: resp.StringAt("description"),
		}
		if s, ok := resp.Get("schema"); ok {
			d.ContentTypes = w.mediaTypes(op, "produces")
			d.Schema, _ = w.schemaType(s, document.Join(rptr, "schema"))
		} else {
			d.ContentTypes, d.Schema = w.content(resp, rptr)
		}
		out = append(out, d)
	}
	return out
}

// content reads a content map and returns its media types and the schema
// pointer of the first media type that has one.
func (w *walker) content(n *document.Node, ptr string) ([]string, string) {
	types := make([]string, 0)
	c, ok := n.Get("content")
	if !ok || c.Kind != document.Object {
		return types, ""
	}

	var pointer string
	for _, m := range c.Fields() {
		types = append(types, m.Key)
		if pointer != "" {
			continue
		}
		if s, ok := m.Value.Get("schema"); ok {
			pointer, _ = w.schemaType(s, document.Join(ptr, "content", m.Key, "schema"))
		}
	}
	return types, pointer
}

// mediaTypes reads a 2.0 consumes/produces list from the operation, falling
// back to the document level and then to JSON.
func (w *walker) mediaTypes(op *document.Node, key string) []string {
	for _, n := range []*document.Node{op, w.model.Root} {
		list, ok := n.Get(key)
		if !ok || list.Kind != document.Array || len(list.Items) == 0 {
			continue
		}
		out := make([]string, 0, len(list.Items))
		for _, item := range list.Items {
			out = append(out, item.Text())
		}
		return out
	}
	return []string{"application/json"}
}

// checkPathParameters compares the placeholders of the template with the
// declared path parameters.
func (w *walker) checkPathParameters(e *models.Endpoint) {
	if w.report == nil {
		return
	}
	placeholders := TemplateParams(e.Path)
	for _, name := range placeholders {
		if _, ok := e.FindParameter(name, models.InPath); !ok {
			w.errorf(e.Pointer, "path parameter {%s} of %s is not declared", name, e.Path)
		}
	}
	for _, p := range e.Parameters {
		if p.In != models.InPath {
			continue
		}
		found := false
		for _, name := range placeholders {
			if name == p.Name {
				found = true
				break
			}
		}
		if !found {
			w.warnf(e.Pointer, "declared path parameter %q does not appear in %s", p.Name, e.Path)
		}
	}
}

// deref follows a $ref on n. Failures are recorded and reported as !ok.
func (w *walker) deref(n *document.Node, ptr string) (*document.Node, string, bool) {
	ref, ok := n.Ref()
	if !ok {
		return n, ptr, true
	}
	target, last, err := document.Chase(ref, w.model.Root)
	if err != nil {
		w.errorf(ptr, "%v", err)
		return nil, ptr, false
	}
	return target, document.Canonical(last), true
}

func (w *walker) errorf(ptr, format string, args ...any) {
	if w.report != nil {
		w.report.AddError("endpoints", ptr, fmt.Sprintf(format, args...))
	}
}

func (w *walker) warnf(ptr, format string, args ...any) {
	if w.report != nil {
		w.report.AddWarning("endpoints", ptr, fmt.Sprintf(format, args...))
	}
}

// TemplateParams returns the placeholder names of a path template in order.
func TemplateParams(template string) []string {
	var out []string
	for {
		start := strings.IndexByte(template, '{')
		if start < 0 {
			return out
		}
		end := strings.IndexByte(template[start:], '}')
		if end < 0 {
			return out
		}
		out = append(out, template[start+1:start+end])
		template = template[start+end+1:]
	}
}

// sanitizePath converts a path to a valid identifier
func sanitizePath(pathPattern string) string {
	result := strings.ReplaceAll(pathPattern, "{", "")
	result = strings.ReplaceAll(result, "}", "")
	result = strings.ReplaceAll(result, "/", "_")
	result = strings.TrimPrefix(result, "_")
	result = strings.TrimSuffix(result, "_")
	return result
}
