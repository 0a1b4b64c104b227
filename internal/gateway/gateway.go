// Package gateway ties the registry, storage and call plumbing together
// behind the operations exposed to collaborators: registering
// specifications, inspecting them, managing auth configs and making calls.
//
// Every registered specification version is published as an immutable
// snapshot. Calls only read snapshots; admin writes build a new snapshot
// and swap it in under a per-specification lock.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prasenjit/go-gateway/internal/auth"
	"github.com/prasenjit/go-gateway/internal/document"
	"github.com/prasenjit/go-gateway/internal/gwerrors"
	"github.com/prasenjit/go-gateway/internal/models"
	"github.com/prasenjit/go-gateway/internal/parser"
	"github.com/prasenjit/go-gateway/internal/proxy"
	"github.com/prasenjit/go-gateway/internal/registry"
	"github.com/prasenjit/go-gateway/internal/stats"
	"github.com/prasenjit/go-gateway/internal/storage"
	"github.com/prasenjit/go-gateway/internal/tracing"
)

// TokenCache drops cached oauth2 tokens of an auth config.
type TokenCache interface {
	Forget(configID string)
}

// Options configures a Gateway. Registry and Storage are required.
type Options struct {
	Logger   *slog.Logger
	Registry *registry.Registry
	Storage  storage.Storage
	Stats    *stats.Collector
	Calls    *tracing.Service
	Tokens   TokenCache
}

// Gateway implements the collaborator-facing operations
type Gateway struct {
	registry *registry.Registry
	store    storage.Storage
	stats    *stats.Collector
	calls    *tracing.Service
	tokens   TokenCache
	mounts   *proxy.Engine
	logger   *slog.Logger

	mu        sync.RWMutex
	snapshots map[string]*snapshot // specID -> published snapshot
	endpoints map[string]string    // endpointID -> specID

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex // spec name -> writer lock

	seq atomic.Int64 // auth config insertion sequence
	now func() time.Time
}

// snapshot is the published, read-only state of one specification version.
type snapshot struct {
	spec      *models.Specification
	model     *parser.Model
	parser    registry.Parser
	executor  registry.Executor
	endpoints []models.Endpoint
	routes    *proxy.Table
	baseURL   string
	auth      []models.AuthConfig // sorted by priority, then sequence
}

// New creates a gateway. Call Load to restore previously stored state.
func New(opts Options) (*Gateway, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("gateway: registry is required")
	}
	if opts.Storage == nil {
		return nil, fmt.Errorf("gateway: storage is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Stats == nil {
		opts.Stats = stats.NewCollector()
	}
	if opts.Calls == nil {
		opts.Calls = tracing.NewService(0)
	}

	g := &Gateway{
		registry:  opts.Registry,
		store:     opts.Storage,
		stats:     opts.Stats,
		calls:     opts.Calls,
		tokens:    opts.Tokens,
		logger:    opts.Logger,
		snapshots: make(map[string]*snapshot),
		endpoints: make(map[string]string),
		locks:     make(map[string]*sync.Mutex),
		now:       time.Now,
	}
	g.mounts = proxy.NewEngine(g, opts.Logger.With("component", "mounts"))
	return g, nil
}

// Registry returns the strategy table the gateway dispatches through.
func (g *Gateway) Registry() *registry.Registry { return g.registry }

// Stats returns the call statistics collector.
func (g *Gateway) Stats() *stats.Collector { return g.stats }

// Calls returns the call log.
func (g *Gateway) Calls() *tracing.Service { return g.calls }

// Mounts returns the handler serving live traffic under mount paths.
func (g *Gateway) Mounts() http.Handler { return g.mounts }

// MountTable returns the current mount prefix to specification map.
func (g *Gateway) MountTable() map[string]string { return g.mounts.Mounts() }

// Load rebuilds snapshots from storage. Specifications that no longer parse
// are skipped with a warning so one bad document cannot keep the gateway
// from starting.
func (g *Gateway) Load(ctx context.Context) error {
	specs, err := g.store.GetAllSpecs()
	if err != nil {
		return fmt.Errorf("failed to load specifications: %w", err)
	}
	cfgs, err := g.store.GetAllAuthConfigs()
	if err != nil {
		return fmt.Errorf("failed to load auth configs: %w", err)
	}

	var maxSeq int64
	bySpec := make(map[string][]models.AuthConfig)
	for _, c := range cfgs {
		bySpec[c.SpecID] = append(bySpec[c.SpecID], *c)
		maxSeq = max(maxSeq, c.Sequence)
	}
	g.seq.Store(maxSeq)

	loaded := 0
	for _, spec := range specs {
		if err := ctx.Err(); err != nil {
			return err
		}
		snap, err := g.build(spec)
		if err != nil {
			g.logger.Warn("skipping stored specification", "spec", spec.ID, "name", spec.Name, "error", err)
			continue
		}
		snap.auth = auth.Sort(bySpec[spec.ID])
		g.publish(snap)
		if spec.Status == models.SpecStatusActive && spec.MountPath != "" {
			g.mounts.Mount(spec.MountPath, spec.ID)
		}
		loaded++
	}

	g.logger.Info("loaded specifications", "count", loaded, "authConfigs", len(cfgs))
	return nil
}

// build parses stored content into a snapshot. It does not publish it.
func (g *Gateway) build(spec *models.Specification) (*snapshot, error) {
	format, err := g.registry.Specifications.Create(spec.FormatType)
	if err != nil {
		return nil, err
	}
	root, err := format.Decode([]byte(spec.Content), spec.Encoding)
	if err != nil {
		return nil, err
	}
	return g.buildFrom(spec, root)
}

func (g *Gateway) buildFrom(spec *models.Specification, root *document.Node) (*snapshot, error) {
	p, err := g.registry.Parsers.Create(spec.FormatType)
	if err != nil {
		return nil, err
	}
	x, err := g.registry.Executors.Create(spec.FormatType)
	if err != nil {
		return nil, err
	}
	model, err := p.Parse(root)
	if err != nil {
		return nil, err
	}

	endpoints := p.ExtractEndpoints(model, spec.ID)
	snap := &snapshot{
		spec:      spec,
		model:     model,
		parser:    p,
		executor:  x,
		endpoints: endpoints,
		routes:    proxy.NewTable(endpoints),
	}

	// An unusable base URL still registers; calls fail until it is fixed and
	// validate reports why.
	if base, err := model.BaseURL(spec.BaseURL); err == nil {
		snap.baseURL = base
	} else {
		g.logger.Warn("specification has no usable base URL", "spec", spec.ID, "error", err)
	}
	return snap, nil
}

// publish makes snap visible to readers, replacing any previous snapshot of
// the same specification version.
func (g *Gateway) publish(snap *snapshot) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if old, ok := g.snapshots[snap.spec.ID]; ok {
		for _, e := range old.endpoints {
			delete(g.endpoints, e.ID)
		}
	}
	g.snapshots[snap.spec.ID] = snap
	for _, e := range snap.endpoints {
		g.endpoints[e.ID] = snap.spec.ID
	}
}

func (g *Gateway) unpublish(specID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if old, ok := g.snapshots[specID]; ok {
		for _, e := range old.endpoints {
			delete(g.endpoints, e.ID)
		}
		delete(g.snapshots, specID)
	}
}

func (g *Gateway) snapshot(specID string) (*snapshot, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	snap, ok := g.snapshots[specID]
	if !ok {
		return nil, &gwerrors.NotFoundError{Entity: "specification", ID: specID}
	}
	return snap, nil
}

func (g *Gateway) snapshotOfEndpoint(endpointID string) (*snapshot, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	specID, ok := g.endpoints[endpointID]
	if !ok {
		return nil, &gwerrors.DispatchError{Kind: gwerrors.UnknownEndpoint, Endpoint: endpointID}
	}
	return g.snapshots[specID], nil
}

// lockFor returns the writer lock of a specification name.
func (g *Gateway) lockFor(name string) *sync.Mutex {
	g.locksMu.Lock()
	defer g.locksMu.Unlock()

	l, ok := g.locks[name]
	if !ok {
		l = &sync.Mutex{}
		g.locks[name] = l
	}
	return l
}

// Counts returns the number of active specifications and of their endpoints.
func (g *Gateway) Counts() (activeSpecs, endpoints int) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, snap := range g.snapshots {
		if snap.spec.Status == models.SpecStatusActive {
			activeSpecs++
			endpoints += len(snap.endpoints)
		}
	}
	return activeSpecs, endpoints
}
