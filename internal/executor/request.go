package executor

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/prasenjit/go-gateway/internal/gwerrors"
	"github.com/prasenjit/go-gateway/internal/models"
	"github.com/prasenjit/go-gateway/internal/protocol"
)

const (
	contentTypeJSON = "application/json"
	contentTypeForm = "application/x-www-form-urlencoded"
)

// inBody is the location reported for a missing request body.
const inBody = "body"

// checkInputs verifies that every required declared parameter is present
// and that provided values parse as their declared scalar type.
func checkInputs(ep *models.Endpoint, pathParams map[string]string, in models.CallRequest) error {
	for _, p := range ep.Parameters {
		value, ok := lookup(p, pathParams, in)
		if !ok {
			if p.Required || p.In == models.InPath {
				return &gwerrors.DispatchError{
					Kind: gwerrors.MissingParameter, Endpoint: ep.ID, Param: p.Name, In: p.In,
				}
			}
			continue
		}
		if msg := checkType(p.Type, value); msg != "" {
			return &gwerrors.DispatchError{
				Kind: gwerrors.InvalidParameter, Endpoint: ep.ID, Param: p.Name, In: p.In, Message: msg,
			}
		}
	}

	if ep.RequestBody != nil && ep.RequestBody.Required && len(in.Body) == 0 {
		return &gwerrors.DispatchError{
			Kind: gwerrors.MissingParameter, Endpoint: ep.ID, Param: inBody, In: inBody,
		}
	}
	return nil
}

func lookup(p models.Parameter, pathParams map[string]string, in models.CallRequest) (string, bool) {
	var v string
	var ok bool
	switch p.In {
	case models.InPath:
		v, ok = pathParams[p.Name]
	case models.InQuery:
		v, ok = in.QueryParams[p.Name]
	case models.InHeader:
		v, ok = headerValue(in.Headers, p.Name)
	case models.InCookie:
		v, ok = in.Cookies[p.Name]
	}
	return v, ok && v != ""
}

// checkType returns a problem description, or "" when value fits typ.
// Only scalar types are checked.
func checkType(typ, value string) string {
	switch typ {
	case "integer":
		if _, err := strconv.ParseInt(value, 10, 64); err != nil {
			return "expected integer, got " + strconv.Quote(value)
		}
	case "number":
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return "expected number, got " + strconv.Quote(value)
		}
	case "boolean":
		if _, err := strconv.ParseBool(value); err != nil {
			return "expected boolean, got " + strconv.Quote(value)
		}
	}
	return ""
}

// buildRequest fills a request skeleton: substituted path, query, headers,
// cookies and the encoded body.
func buildRequest(ep *models.Endpoint, baseURL string, pathParams map[string]string, in models.CallRequest) (*protocol.Request, error) {
	if baseURL == "" {
		return nil, &gwerrors.ValidationError{Path: "#/servers", Message: "specification has no base URL"}
	}

	req := protocol.NewRequest(ep.Method, baseURL, substitute(ep.Path, pathParams))
	for k, v := range in.QueryParams {
		req.Query.Set(k, v)
	}
	for k, v := range in.Headers {
		req.Header.Set(k, v)
	}
	for k, v := range in.Cookies {
		req.SetCookie(k, v)
	}

	if len(in.Body) > 0 {
		ct := req.Header.Get("Content-Type")
		if ct == "" {
			ct = defaultContentType(ep, in.Body)
			if ct != "" {
				req.Header.Set("Content-Type", ct)
			}
		}
		req.Body = encodeBody(ct, in.Body)
	}
	return req, nil
}

// substitute replaces each {name} in template with its escaped value.
func substitute(template string, params map[string]string) string {
	if !strings.Contains(template, "{") {
		return template
	}
	var b strings.Builder
	rest := template
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			break
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			break
		}
		b.WriteString(rest[:open])
		name := rest[open+1 : open+end]
		if v, ok := params[name]; ok {
			b.WriteString(url.PathEscape(v))
		} else {
			b.WriteString(rest[open : open+end+1])
		}
		rest = rest[open+end+1:]
	}
	b.WriteString(rest)
	return b.String()
}

// defaultContentType picks the Content-Type of a body the caller did not
// label. A form is used only when it is the sole declared media type.
func defaultContentType(ep *models.Endpoint, body []byte) string {
	if rb := ep.RequestBody; rb != nil && len(rb.ContentTypes) > 0 {
		if len(rb.ContentTypes) == 1 && rb.ContentTypes[0] == contentTypeForm {
			return contentTypeForm
		}
		for _, ct := range rb.ContentTypes {
			if isJSON(ct) {
				return ct
			}
		}
		return rb.ContentTypes[0]
	}
	if gjson.ValidBytes(body) {
		return contentTypeJSON
	}
	return ""
}

// encodeBody turns the caller's JSON body into wire bytes for ct. JSON
// content types get the raw JSON, forms get an encoded object, and
// anything else gets a JSON string unquoted.
func encodeBody(ct string, body []byte) []byte {
	if !gjson.ValidBytes(body) {
		return body
	}
	parsed := gjson.ParseBytes(body)
	switch {
	case isJSON(ct):
		return body
	case strings.HasPrefix(ct, contentTypeForm) && parsed.IsObject():
		form := url.Values{}
		parsed.ForEach(func(key, value gjson.Result) bool {
			if value.IsArray() {
				for _, item := range value.Array() {
					form.Add(key.String(), item.String())
				}
				return true
			}
			form.Set(key.String(), value.String())
			return true
		})
		return []byte(form.Encode())
	case parsed.Type == gjson.String:
		return []byte(parsed.String())
	}
	return body
}

func isJSON(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "/json") || strings.Contains(ct, "+json")
}

func headerValue(headers map[string]string, name string) (string, bool) {
	if v, ok := headers[name]; ok {
		return v, true
	}
	for k, v := range headers {
		if http.CanonicalHeaderKey(k) == http.CanonicalHeaderKey(name) {
			return v, true
		}
	}
	return "", false
}
