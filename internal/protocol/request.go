// Package protocol builds and executes wire-level requests. An Adapter is
// registered per URL scheme; the HTTP adapter serves both http and https.
package protocol

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// Registry keys of the bundled adapters.
const (
	SchemeHTTP  = "http"
	SchemeHTTPS = "https"
)

// Request is the protocol-neutral skeleton of one outbound call. The
// executor fills it in, auth strategies add credentials, and an Adapter
// sends it.
type Request struct {
	Method  string
	BaseURL string // scheme://host[/prefix], no trailing slash
	Path    string // substituted and escaped path
	Query   url.Values
	Header  http.Header
	Cookies []*http.Cookie
	Body    []byte
}

// NewRequest returns an empty request skeleton
func NewRequest(method, baseURL, path string) *Request {
	return &Request{
		Method:  strings.ToUpper(method),
		BaseURL: strings.TrimRight(baseURL, "/"),
		Path:    path,
		Query:   url.Values{},
		Header:  http.Header{},
	}
}

// URL returns the full target URL with the encoded query string
func (r *Request) URL() string {
	var b strings.Builder
	b.WriteString(r.BaseURL)
	if r.Path != "" && !strings.HasPrefix(r.Path, "/") {
		b.WriteByte('/')
	}
	b.WriteString(r.Path)
	if len(r.Query) > 0 {
		b.WriteByte('?')
		b.WriteString(r.Query.Encode())
	}
	return b.String()
}

// Scheme returns the URL scheme of the base URL, lower-cased
func (r *Request) Scheme() string {
	scheme, _, ok := strings.Cut(r.BaseURL, "://")
	if !ok {
		return ""
	}
	return strings.ToLower(scheme)
}

// SetCookie adds or replaces a cookie by name
func (r *Request) SetCookie(name, value string) {
	for _, c := range r.Cookies {
		if c.Name == name {
			c.Value = value
			return
		}
	}
	r.Cookies = append(r.Cookies, &http.Cookie{Name: name, Value: value})
}

// Response is what an Adapter got back from the upstream.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Truncated  bool // Body was cut at the configured limit
}

// Adapter sends a request over one wire protocol. Network failures are
// returned as *NetworkError; an upstream error status is not an error.
type Adapter interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}
