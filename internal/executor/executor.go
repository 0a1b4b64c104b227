// Package executor turns a resolved endpoint and caller inputs into one
// outbound call and normalizes what comes back.
package executor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/prasenjit/go-gateway/internal/auth"
	"github.com/prasenjit/go-gateway/internal/credential"
	"github.com/prasenjit/go-gateway/internal/gwerrors"
	"github.com/prasenjit/go-gateway/internal/models"
	"github.com/prasenjit/go-gateway/internal/protocol"
	"github.com/prasenjit/go-gateway/internal/proxy"
)

// DefaultCallTimeout bounds a whole call when no timeout is configured.
const DefaultCallTimeout = 30 * time.Second

// ProtocolSource hands out the adapter registered for a URL scheme.
type ProtocolSource interface {
	Protocol(scheme string) (protocol.Adapter, error)
}

// Target is the published snapshot of one specification version a call
// runs against.
type Target struct {
	Spec        *models.Specification
	Routes      *proxy.Table
	BaseURL     string
	AuthConfigs []models.AuthConfig // candidates; filtered per endpoint
}

// Selector picks the endpoint of a call: an explicit endpoint ID, a
// (method, template) pair, or a concrete path resolved through the route
// table.
type Selector struct {
	EndpointID string
	Method     string
	Template   string
	Path       string
}

// Options configures an executor
type Options struct {
	Logger      *slog.Logger
	Credentials *credential.Engine
	CallTimeout time.Duration
}

// OpenAPI executes calls against endpoints extracted from OpenAPI documents
type OpenAPI struct {
	protocols ProtocolSource
	auth      *auth.Applier
	creds     *credential.Engine
	logger    *slog.Logger
	timeout   time.Duration
	now       func() time.Time
}

// New creates an executor. applier may be nil, in which case auth configs
// are ignored.
func New(protocols ProtocolSource, applier *auth.Applier, opts Options) *OpenAPI {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Credentials == nil {
		opts.Credentials = credential.NewEngine()
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	return &OpenAPI{
		protocols: protocols,
		auth:      applier,
		creds:     opts.Credentials,
		logger:    opts.Logger,
		timeout:   opts.CallTimeout,
		now:       time.Now,
	}
}

// Execute performs one call. Dispatch, auth and protocol problems are
// returned as errors before anything is sent. Once a request has been
// issued the outcome is always a CallResult: network failures yield
// Success false, and any upstream status, 4xx and 5xx included, yields
// Success true.
func (x *OpenAPI) Execute(ctx context.Context, t *Target, sel Selector, in models.CallRequest) (*models.CallResult, error) {
	ep, bound, err := resolve(t.Routes, sel)
	if err != nil {
		return nil, err
	}

	pathParams := merge(in.PathParams, bound)
	if err := checkInputs(ep, pathParams, in); err != nil {
		return nil, err
	}

	req, err := buildRequest(ep, t.BaseURL, pathParams, in)
	if err != nil {
		return nil, err
	}

	var applied *auth.Result
	if x.auth != nil {
		cctx := &credential.Context{
			PathParams:  pathParams,
			QueryParams: in.QueryParams,
			Headers:     in.Headers,
			Body:        string(in.Body),
		}
		applied, err = x.auth.Apply(ctx, configsFor(t, ep), req, cctx)
		if err != nil {
			return nil, err
		}
	}

	adapter, err := x.protocols.Protocol(req.Scheme())
	if err != nil {
		return nil, err
	}

	result := &models.CallResult{
		ID:         uuid.NewString(),
		SpecID:     ep.SpecID,
		EndpointID: ep.ID,
		Method:     req.Method,
		StartedAt:  x.now(),
	}
	if applied != nil {
		result.Warnings = append(result.Warnings, applied.Warnings...)
	}
	describeRequest(result, req, applied)

	callCtx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	resp, err := adapter.Do(callCtx, req)
	result.DurationMs = float64(time.Since(result.StartedAt).Microseconds()) / 1000
	if err != nil {
		kind := protocol.Classify(err)
		var netErr *protocol.NetworkError
		if errors.As(err, &netErr) {
			kind = netErr.Kind
		}
		result.Error = &models.CallError{Kind: kind, Message: err.Error()}
		x.logger.Warn("upstream call failed",
			"spec", ep.SpecID, "endpoint", ep.ID, "method", req.Method, "path", req.Path, "kind", kind)
		return result, nil
	}

	describeResponse(result, resp)
	x.logger.Debug("upstream call completed",
		"spec", ep.SpecID, "endpoint", ep.ID, "method", req.Method, "path", req.Path,
		"status", resp.StatusCode, "duration", result.DurationMs)
	return result, nil
}

// resolve finds the endpoint a selector names and the path parameters bound
// by matching, if any.
func resolve(routes *proxy.Table, sel Selector) (*models.Endpoint, map[string]string, error) {
	switch {
	case sel.EndpointID != "":
		ep, ok := routes.Endpoint(sel.EndpointID)
		if !ok {
			return nil, nil, &gwerrors.DispatchError{Kind: gwerrors.UnknownEndpoint, Endpoint: sel.EndpointID}
		}
		return ep, nil, nil
	case sel.Template != "":
		ep, ok := routes.Lookup(sel.Method, sel.Template)
		if !ok {
			return nil, nil, &gwerrors.DispatchError{Kind: gwerrors.UnknownEndpoint, Method: sel.Method, Path: sel.Template}
		}
		return ep, nil, nil
	}
	return routes.Resolve(sel.Method, sel.Path)
}

// configsFor keeps the auth configs in scope for ep.
func configsFor(t *Target, ep *models.Endpoint) []models.AuthConfig {
	var out []models.AuthConfig
	for _, c := range t.AuthConfigs {
		if c.AppliesTo(ep.SpecID, ep.ID) {
			out = append(out, c)
		}
	}
	return out
}

// merge overlays bound on top of given. Neither input is modified.
func merge(given, bound map[string]string) map[string]string {
	out := make(map[string]string, len(given)+len(bound))
	for k, v := range given {
		out[k] = v
	}
	for k, v := range bound {
		out[k] = v
	}
	return out
}
