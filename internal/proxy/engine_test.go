package proxy

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prasenjit/go-gateway/internal/gwerrors"
	"github.com/prasenjit/go-gateway/internal/models"
)

type fakeCaller struct {
	specID string
	req    models.CallByPathRequest
	result *models.CallResult
	err    error
}

func (f *fakeCaller) CallByPath(ctx context.Context, specID string, req models.CallByPathRequest) (*models.CallResult, error) {
	f.specID = specID
	f.req = req
	return f.result, f.err
}

func TestNormalizeMountPath(t *testing.T) {
	tests := map[string]string{
		"":          "/",
		"/":         "/",
		"api":       "/api",
		"/api/":     "/api",
		" /api/v1 ": "/api/v1",
		"///":       "/",
	}
	for in, want := range tests {
		if got := NormalizeMountPath(in); got != want {
			t.Errorf("NormalizeMountPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestEngineMatch(t *testing.T) {
	engine := NewEngine(&fakeCaller{}, nil)
	engine.Mount("/api", "spec-a")
	engine.Mount("/api/v2/", "spec-b")

	tests := []struct {
		path   string
		specID string
		rest   string
		ok     bool
	}{
		{path: "/api/pets", specID: "spec-a", rest: "/pets", ok: true},
		{path: "/api", specID: "spec-a", rest: "/", ok: true},
		{path: "/api/v2/pets/1", specID: "spec-b", rest: "/pets/1", ok: true},
		{path: "/apix/pets", ok: false},
		{path: "/other", ok: false},
	}
	for _, tt := range tests {
		specID, rest, ok := engine.Match(tt.path)
		if ok != tt.ok || specID != tt.specID || rest != tt.rest {
			t.Errorf("Match(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.path, specID, rest, ok, tt.specID, tt.rest, tt.ok)
		}
	}

	// Remounting a specification moves it.
	engine.Mount("/v1", "spec-a")
	if _, _, ok := engine.Match("/api/pets"); ok {
		t.Error("Expected old mount to be replaced")
	}
	if len(engine.Mounts()) != 2 {
		t.Errorf("Expected 2 mounts, got %v", engine.Mounts())
	}

	if !engine.Unmount("spec-b") {
		t.Error("Expected spec-b to be unmounted")
	}
	if engine.Unmount("spec-b") {
		t.Error("Expected second unmount to report false")
	}
}

func TestServeHTTPForwardsCall(t *testing.T) {
	caller := &fakeCaller{result: &models.CallResult{
		Success:         true,
		StatusCode:      http.StatusCreated,
		ResponseHeaders: map[string]string{"Content-Type": "application/json", "X-Upstream": "yes", "Connection": "close"},
		ResponseBody:    json.RawMessage(`{"id":7}`),
	}}
	engine := NewEngine(caller, nil)
	engine.Mount("/petstore", "spec-1")

	req := httptest.NewRequest(http.MethodPost, "/petstore/pets?limit=5&limit=6", strings.NewReader(`{"name":"rex"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Connection", "keep-alive")
	req.AddCookie(&http.Cookie{Name: "session", Value: "abc"})
	w := httptest.NewRecorder()

	engine.ServeHTTP(w, req)

	if caller.specID != "spec-1" {
		t.Errorf("Expected spec-1, got %s", caller.specID)
	}
	if caller.req.Path != "/pets" || caller.req.Method != http.MethodPost {
		t.Errorf("Unexpected call %s %s", caller.req.Method, caller.req.Path)
	}
	if caller.req.QueryParams["limit"] != "5" {
		t.Errorf("Expected first query value, got %v", caller.req.QueryParams)
	}
	if caller.req.Headers["Content-Type"] != "application/json" {
		t.Errorf("Expected content type forwarded, got %v", caller.req.Headers)
	}
	if _, ok := caller.req.Headers["Connection"]; ok {
		t.Error("Hop-by-hop header must not be forwarded")
	}
	if _, ok := caller.req.Headers["Cookie"]; ok {
		t.Error("Cookie header must travel as cookies")
	}
	if caller.req.Cookies["session"] != "abc" {
		t.Errorf("Expected cookie forwarded, got %v", caller.req.Cookies)
	}
	if string(caller.req.Body) != `{"name":"rex"}` {
		t.Errorf("Unexpected body %s", caller.req.Body)
	}

	if w.Code != http.StatusCreated {
		t.Errorf("Expected 201, got %d", w.Code)
	}
	if w.Header().Get("X-Upstream") != "yes" {
		t.Error("Expected upstream header in response")
	}
	if w.Header().Get("Connection") != "" {
		t.Error("Hop-by-hop header must not be returned")
	}
	if w.Body.String() != `{"id":7}` {
		t.Errorf("Unexpected response body %s", w.Body.String())
	}
}

func TestServeHTTPKeepsPathEscaping(t *testing.T) {
	tests := []struct {
		target string
		rest   string
		name   string
	}{
		{target: "/api/files/a%2Fb", rest: "/files/a%2Fb", name: "a/b"},
		{target: "/api/files/100%2541", rest: "/files/100%2541", name: "100%41"},
		{target: "/api/files/plain", rest: "/files/plain", name: "plain"},
	}

	tmpl := Compile("/files/{name}")
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			caller := &fakeCaller{result: &models.CallResult{Success: true, StatusCode: http.StatusOK}}
			engine := NewEngine(caller, nil)
			engine.Mount("/api", "spec-1")

			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.target, nil))

			if caller.req.Path != tt.rest {
				t.Fatalf("Expected path %s forwarded, got %s", tt.rest, caller.req.Path)
			}
			params, ok := tmpl.Match(caller.req.Path)
			if !ok {
				t.Fatalf("Expected %s to match the template", caller.req.Path)
			}
			if params["name"] != tt.name {
				t.Errorf("Expected name %q, got %q", tt.name, params["name"])
			}
		})
	}
}

func TestServeHTTPRejectsOversizedBody(t *testing.T) {
	caller := &fakeCaller{result: &models.CallResult{Success: true, StatusCode: http.StatusOK}}
	engine := NewEngine(caller, nil)
	engine.Mount("/api", "spec-1")

	body := strings.Repeat("x", maxInboundBody+1)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader(body)))

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("Expected 413, got %d", w.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid error body: %v", err)
	}
	if resp["kind"] != "RequestTooLarge" || resp["error"] == "" {
		t.Errorf("Unexpected error body %v", resp)
	}
	if caller.specID != "" {
		t.Error("Oversized body must not reach the specification")
	}

	// Exactly at the limit still goes through
	body = strings.Repeat("x", maxInboundBody)
	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader(body)))
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 at the limit, got %d", w.Code)
	}
	if caller.specID != "spec-1" {
		t.Error("Expected body at the limit to be forwarded")
	}
}

func TestServeHTTPTextBodies(t *testing.T) {
	caller := &fakeCaller{result: &models.CallResult{
		Success:         true,
		StatusCode:      http.StatusOK,
		ResponseHeaders: map[string]string{"Content-Type": "text/plain"},
		ResponseBody:    json.RawMessage(`"pong"`),
	}}
	engine := NewEngine(caller, nil)
	engine.Mount("/", "spec-1")

	req := httptest.NewRequest(http.MethodPut, "/ping", strings.NewReader("hello"))
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)

	if string(caller.req.Body) != `"hello"` {
		t.Errorf("Expected text body as JSON string, got %s", caller.req.Body)
	}
	body, _ := io.ReadAll(w.Result().Body)
	if string(body) != "pong" {
		t.Errorf("Expected unwrapped text response, got %s", body)
	}
}

func TestServeHTTPErrors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		caller *fakeCaller
		status int
		kind   string
	}{
		{
			name:   "not mounted",
			path:   "/nowhere",
			caller: &fakeCaller{},
			status: http.StatusNotFound,
			kind:   "PathMismatch",
		},
		{
			name:   "dispatch error",
			path:   "/api/owners",
			caller: &fakeCaller{err: &gwerrors.DispatchError{Kind: gwerrors.PathMismatch, Path: "/owners"}},
			status: http.StatusNotFound,
			kind:   "PathMismatch",
		},
		{
			name: "missing parameter",
			path: "/api/pets",
			caller: &fakeCaller{err: &gwerrors.DispatchError{
				Kind: gwerrors.MissingParameter, Param: "limit", In: "query",
			}},
			status: http.StatusBadRequest,
			kind:   "MissingParameter",
		},
		{
			name: "upstream timeout",
			path: "/api/pets",
			caller: &fakeCaller{result: &models.CallResult{
				Error: &models.CallError{Kind: models.ErrorKindTimeout, Message: "deadline exceeded"},
			}},
			status: http.StatusGatewayTimeout,
			kind:   models.ErrorKindTimeout,
		},
		{
			name: "connection refused",
			path: "/api/pets",
			caller: &fakeCaller{result: &models.CallResult{
				Error: &models.CallError{Kind: models.ErrorKindConnectionRefused, Message: "refused"},
			}},
			status: http.StatusBadGateway,
			kind:   models.ErrorKindConnectionRefused,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewEngine(tt.caller, nil)
			engine.Mount("/api", "spec-1")

			w := httptest.NewRecorder()
			engine.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if w.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, w.Code)
			}
			var body map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("Invalid error body: %v", err)
			}
			if body["kind"] != tt.kind {
				t.Errorf("Expected kind %s, got %s", tt.kind, body["kind"])
			}
		})
	}
}
