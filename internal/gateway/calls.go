package gateway

import (
	"context"
	"strings"

	"github.com/prasenjit/go-gateway/internal/executor"
	"github.com/prasenjit/go-gateway/internal/gwerrors"
	"github.com/prasenjit/go-gateway/internal/models"
)

// CallByPath calls the endpoint of specID matching req.Path and req.Method.
// A concrete path is matched against the endpoint templates; a path that
// is itself a template ("/pets/{petId}") selects that endpoint directly and
// takes its path parameters from req.PathParams.
func (g *Gateway) CallByPath(ctx context.Context, specID string, req models.CallByPathRequest) (*models.CallResult, error) {
	snap, err := g.snapshot(specID)
	if err != nil {
		return nil, err
	}

	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		return nil, &gwerrors.DispatchError{Kind: gwerrors.MissingParameter, Param: "method", In: "request"}
	}

	sel := executor.Selector{Method: method, Path: req.Path}
	if strings.Contains(req.Path, "{") {
		sel = executor.Selector{Method: method, Template: req.Path}
	}
	return g.call(ctx, snap, sel, req.CallRequest)
}

// CallByEndpoint calls one endpoint by ID. Path parameters come from
// req.PathParams.
func (g *Gateway) CallByEndpoint(ctx context.Context, endpointID string, req models.CallRequest) (*models.CallResult, error) {
	snap, err := g.snapshotOfEndpoint(endpointID)
	if err != nil {
		return nil, err
	}
	return g.call(ctx, snap, executor.Selector{EndpointID: endpointID}, req)
}

// call runs one call against a published snapshot and records its outcome.
// Calls rejected before anything was sent are returned as errors and not
// recorded.
func (g *Gateway) call(ctx context.Context, snap *snapshot, sel executor.Selector, in models.CallRequest) (*models.CallResult, error) {
	target := &executor.Target{
		Spec:        snap.spec,
		Routes:      snap.routes,
		BaseURL:     snap.baseURL,
		AuthConfigs: snap.auth,
	}

	result, err := snap.executor.Execute(ctx, target, sel, in)
	if err != nil {
		g.logger.Debug("call rejected",
			"spec", snap.spec.ID,
			"endpoint", sel.EndpointID,
			"method", sel.Method,
			"path", sel.Path+sel.Template,
			"kind", gwerrors.Kind(err),
			"error", err,
		)
		return nil, err
	}

	ep, _ := snap.routes.Endpoint(result.EndpointID)
	if ep != nil {
		g.stats.Record(ep, result)
	}
	g.calls.RecordCall(models.NewCallLog(snap.spec, ep, result))
	return result, nil
}
