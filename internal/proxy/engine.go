package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/tidwall/gjson"

	"github.com/prasenjit/go-gateway/internal/gwerrors"
	"github.com/prasenjit/go-gateway/internal/models"
)

// Caller performs a call addressed by concrete path against one
// specification.
type Caller interface {
	CallByPath(ctx context.Context, specID string, req models.CallByPathRequest) (*models.CallResult, error)
}

// maxInboundBody bounds the request body read from live traffic.
const maxInboundBody = 10 << 20

// hopHeaders are never forwarded in either direction.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// Engine serves live traffic for specifications registered with a mount
// path. A request under a mount is dispatched to that specification by its
// remaining path.
type Engine struct {
	caller Caller
	logger *slog.Logger
	mu     sync.RWMutex
	mounts []mount // longest prefix first
}

type mount struct {
	prefix string
	specID string
}

// NewEngine creates a new proxy engine
func NewEngine(caller Caller, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{caller: caller, logger: logger}
}

// NormalizeMountPath returns p with a leading slash and without a trailing
// one. The empty string and "/" both normalize to "/".
func NormalizeMountPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = "/"
		}
	}
	return p
}

// Mount routes traffic under prefix to specID, replacing any previous mount
// of the same prefix or the same specification.
func (e *Engine) Mount(prefix, specID string) {
	prefix = NormalizeMountPath(prefix)

	e.mu.Lock()
	defer e.mu.Unlock()

	kept := e.mounts[:0]
	for _, m := range e.mounts {
		if m.prefix != prefix && m.specID != specID {
			kept = append(kept, m)
		}
	}
	e.mounts = append(kept, mount{prefix: prefix, specID: specID})
	sort.SliceStable(e.mounts, func(i, j int) bool {
		return len(e.mounts[i].prefix) > len(e.mounts[j].prefix)
	})
}

// Unmount removes the mount of specID. It reports whether one existed.
func (e *Engine) Unmount(specID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, m := range e.mounts {
		if m.specID == specID {
			e.mounts = append(e.mounts[:i], e.mounts[i+1:]...)
			return true
		}
	}
	return false
}

// Mounts returns the current prefix to specification map.
func (e *Engine) Mounts() map[string]string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	result := make(map[string]string, len(e.mounts))
	for _, m := range e.mounts {
		result[m.prefix] = m.specID
	}
	return result
}

// Match finds the mount with the longest prefix covering path and returns
// the path relative to it. A prefix only matches on a segment boundary.
func (e *Engine) Match(path string) (specID, rest string, ok bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, m := range e.mounts {
		if m.prefix == "/" {
			return m.specID, path, true
		}
		if path == m.prefix {
			return m.specID, "/", true
		}
		if strings.HasPrefix(path, m.prefix+"/") {
			return m.specID, path[len(m.prefix):], true
		}
	}
	return "", "", false
}

// Handler returns an http.Handler for the proxy engine
func (e *Engine) Handler() http.Handler {
	return http.HandlerFunc(e.ServeHTTP)
}

// ServeHTTP handles incoming requests
func (e *Engine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// The remaining path stays escaped; path parameters are unescaped once
	// when the route template binds them.
	specID, rest, ok := e.Match(r.URL.EscapedPath())
	if !ok {
		writeError(w, http.StatusNotFound, "PathMismatch", "no specification is mounted at "+r.URL.Path)
		return
	}

	var body []byte
	if r.Body != nil {
		b, err := io.ReadAll(io.LimitReader(r.Body, maxInboundBody+1))
		if err != nil {
			writeError(w, http.StatusBadRequest, "InvalidBody", err.Error())
			return
		}
		if len(b) > maxInboundBody {
			writeError(w, http.StatusRequestEntityTooLarge, "RequestTooLarge",
				fmt.Sprintf("request body exceeds %d bytes", maxInboundBody))
			return
		}
		body = b
	}

	req := models.CallByPathRequest{
		Path:   rest,
		Method: r.Method,
		CallRequest: models.CallRequest{
			QueryParams: firstValues(r.URL.Query()),
			Headers:     forwardHeaders(r.Header),
			Cookies:     cookies(r),
			Body:        rawBody(body),
		},
	}

	result, err := e.caller.CallByPath(r.Context(), specID, req)
	if err != nil {
		kind := gwerrors.Kind(err)
		e.logger.Debug("live call rejected", "spec", specID, "path", rest, "kind", kind, "error", err)
		writeError(w, gwerrors.HTTPStatus(err), kind, err.Error())
		return
	}
	writeResult(w, result)
}

// writeResult writes the upstream response back to the client. A call that
// never got an answer is reported as a gateway error.
func writeResult(w http.ResponseWriter, result *models.CallResult) {
	if !result.Success {
		status := http.StatusBadGateway
		kind, msg := models.ErrorKindNetwork, "upstream call failed"
		if result.Error != nil {
			kind, msg = result.Error.Kind, result.Error.Message
			if kind == models.ErrorKindTimeout {
				status = http.StatusGatewayTimeout
			}
		}
		writeError(w, status, kind, msg)
		return
	}

	for key, value := range result.ResponseHeaders {
		if isHop(key) || strings.EqualFold(key, "Content-Length") {
			continue
		}
		w.Header().Set(key, value)
	}
	w.WriteHeader(result.StatusCode)
	w.Write(responseBytes(result))
}

// responseBytes undoes the JSON-string wrapping of non-JSON bodies.
func responseBytes(result *models.CallResult) []byte {
	if len(result.ResponseBody) == 0 {
		return nil
	}
	parsed := gjson.ParseBytes(result.ResponseBody)
	if parsed.Type == gjson.String && !isJSONContentType(headerValue(result.ResponseHeaders, "Content-Type")) {
		return []byte(parsed.String())
	}
	return result.ResponseBody
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg, "kind": kind})
}

// rawBody turns inbound bytes into the JSON form CallRequest.Body expects:
// JSON stays as is, anything else becomes a JSON string.
func rawBody(body []byte) json.RawMessage {
	if len(body) == 0 {
		return nil
	}
	if gjson.ValidBytes(body) {
		return json.RawMessage(body)
	}
	b, err := json.Marshal(string(body))
	if err != nil {
		return nil
	}
	return b
}

func firstValues(values map[string][]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	result := make(map[string]string, len(values))
	for key, v := range values {
		if len(v) > 0 {
			result[key] = v[0]
		}
	}
	return result
}

// forwardHeaders keeps end-to-end headers. Cookies travel separately, and
// Accept-Encoding is left to the outbound transport.
func forwardHeaders(h http.Header) map[string]string {
	result := make(map[string]string, len(h))
	for key, values := range h {
		if len(values) == 0 || isHop(key) {
			continue
		}
		switch http.CanonicalHeaderKey(key) {
		case "Host", "Content-Length", "Cookie", "Accept-Encoding":
			continue
		}
		result[key] = values[0]
	}
	return result
}

func cookies(r *http.Request) map[string]string {
	cs := r.Cookies()
	if len(cs) == 0 {
		return nil
	}
	result := make(map[string]string, len(cs))
	for _, c := range cs {
		result[c.Name] = c.Value
	}
	return result
}

func isHop(key string) bool {
	for _, h := range hopHeaders {
		if strings.EqualFold(h, key) {
			return true
		}
	}
	return false
}

func headerValue(headers map[string]string, key string) string {
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

func isJSONContentType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "/json") || strings.Contains(ct, "+json")
}
