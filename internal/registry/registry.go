package registry

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/prasenjit/go-gateway/internal/auth"
	"github.com/prasenjit/go-gateway/internal/document"
	"github.com/prasenjit/go-gateway/internal/executor"
	"github.com/prasenjit/go-gateway/internal/models"
	"github.com/prasenjit/go-gateway/internal/parser"
	"github.com/prasenjit/go-gateway/internal/protocol"
)

// Specification recognizes and decodes one description format.
type Specification interface {
	Decode(content []byte, encoding string) (*document.Node, error)
	Detect(root *document.Node) bool
}

// Parser builds the Specification Model of a decoded document.
type Parser interface {
	Parse(root *document.Node) (*parser.Model, error)
	ExtractEndpoints(m *parser.Model, specID string) []models.Endpoint
	GenerateDTOs(m *parser.Model) ([]models.DTO, error)
	Validate(ctx context.Context, root *document.Node, baseURL string) *models.ValidationReport
}

// Executor performs calls against the endpoints of one format.
type Executor interface {
	Execute(ctx context.Context, t *executor.Target, sel executor.Selector, in models.CallRequest) (*models.CallResult, error)
}

// Registry is the strategy table consulted by the gateway. Specifications,
// Parsers and Executors are keyed by format type, Protocols by URL scheme.
type Registry struct {
	mu sync.RWMutex

	Specifications *Namespace[Specification]
	Parsers        *Namespace[Parser]
	Executors      *Namespace[Executor]
	Protocols      *Namespace[protocol.Adapter]

	adapterMu sync.Mutex
	adapters  map[string]protocol.Adapter
}

// New returns an empty registry.
func New() *Registry {
	r := &Registry{adapters: make(map[string]protocol.Adapter)}
	r.Specifications = newNamespace[Specification]("specifications", r)
	r.Parsers = newNamespace[Parser]("parsers", r)
	r.Executors = newNamespace[Executor]("executors", r)
	r.Protocols = newNamespace[protocol.Adapter]("protocols", r)
	r.Protocols.onChange = r.resetAdapters
	return r
}

// Options configures the bundled implementations
type Options struct {
	Logger      *slog.Logger
	HTTP        protocol.Config
	Auth        *auth.Applier
	CallTimeout time.Duration
}

// NewDefault returns a registry with the OpenAPI format and the http and
// https protocols registered.
func NewDefault(opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	r := New()
	RegisterOpenAPI(r, opts)
	RegisterHTTP(r, opts.HTTP)
	return r
}

// RegisterOpenAPI registers the OpenAPI specification format, parser and
// executor under parser.FormatOpenAPI.
func RegisterOpenAPI(r *Registry, opts Options) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r.Specifications.Register(parser.FormatOpenAPI, func(*Registry) (Specification, error) {
		return parser.Format{}, nil
	})
	r.Parsers.Register(parser.FormatOpenAPI, func(*Registry) (Parser, error) {
		return parser.NewParser(logger.With("component", "parser")), nil
	})
	r.Executors.Register(parser.FormatOpenAPI, func(owner *Registry) (Executor, error) {
		return executor.New(owner, opts.Auth, executor.Options{
			Logger:      logger.With("component", "executor"),
			CallTimeout: opts.CallTimeout,
		}), nil
	})
}

// RegisterHTTP registers one shared HTTP adapter for both http and https.
func RegisterHTTP(r *Registry, cfg protocol.Config) {
	var once sync.Once
	var adapter *protocol.HTTP
	factory := func(*Registry) (protocol.Adapter, error) {
		once.Do(func() { adapter = protocol.NewHTTP(cfg) })
		return adapter, nil
	}
	r.Protocols.Register(protocol.SchemeHTTP, factory)
	r.Protocols.Register(protocol.SchemeHTTPS, factory)
}

// Protocol returns the adapter for scheme, creating it on first use. The
// instance is reused until the protocols namespace changes.
func (r *Registry) Protocol(scheme string) (protocol.Adapter, error) {
	r.adapterMu.Lock()
	defer r.adapterMu.Unlock()

	if a, ok := r.adapters[scheme]; ok {
		return a, nil
	}
	a, err := r.Protocols.Create(scheme)
	if err != nil {
		return nil, err
	}
	r.adapters[scheme] = a
	return a, nil
}

func (r *Registry) resetAdapters() {
	r.adapterMu.Lock()
	r.adapters = make(map[string]protocol.Adapter)
	r.adapterMu.Unlock()
}

// Detect returns the first specification format, in registration order,
// that recognizes root.
func (r *Registry) Detect(root *document.Node) (string, bool) {
	for _, key := range r.Specifications.List() {
		spec, err := r.Specifications.Create(key)
		if err != nil {
			continue
		}
		if spec.Detect(root) {
			return key, true
		}
	}
	return "", false
}

// NamespaceSummary describes one namespace
type NamespaceSummary struct {
	Count int      `json:"count"`
	Keys  []string `json:"keys"`
}

// Summary is the diagnostic view of a registry
type Summary struct {
	Specifications NamespaceSummary `json:"specifications"`
	Parsers        NamespaceSummary `json:"parsers"`
	Executors      NamespaceSummary `json:"executors"`
	Protocols      NamespaceSummary `json:"protocols"`
	Complete       []string         `json:"complete"` // formats with a specification, parser and executor
}

// Summary reports registered keys and counts per namespace.
func (r *Registry) Summary() Summary {
	s := Summary{
		Specifications: summarize(r.Specifications),
		Parsers:        summarize(r.Parsers),
		Executors:      summarize(r.Executors),
		Protocols:      summarize(r.Protocols),
		Complete:       []string{},
	}
	for _, key := range s.Specifications.Keys {
		if slices.Contains(s.Parsers.Keys, key) && slices.Contains(s.Executors.Keys, key) {
			s.Complete = append(s.Complete, key)
		}
	}
	return s
}

func summarize[T any](n *Namespace[T]) NamespaceSummary {
	keys := n.List()
	if keys == nil {
		keys = []string{}
	}
	return NamespaceSummary{Count: len(keys), Keys: keys}
}
