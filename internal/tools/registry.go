package tools

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/klubi/relay/internal/apperrors"
)

// DefaultCacheSize is the number of resolved tools kept by a Registry unless
// WithCacheSize says otherwise.
const DefaultCacheSize = 64

var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*:[a-z][a-z0-9_]*$`)

// Loader produces a tool on demand. It runs on first resolution and again
// whenever the cached instance has been evicted.
type Loader func() (Tool, error)

// Static returns a Loader for an already-built tool.
func Static(t Tool) Loader {
	return func() (Tool, error) { return t, nil }
}

// Registry maps tool names to loaders and caches resolved tools.
type Registry struct {
	mu      sync.RWMutex
	loaders map[string]Loader

	cache  *lru.Cache[string, Tool] // nil when caching is disabled
	group  singleflight.Group
	logger *zap.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithCacheSize bounds the resolved-tool cache. Zero disables caching so that
// every resolution runs the loader.
func WithCacheSize(n int) Option {
	return func(r *Registry) {
		if n <= 0 {
			r.cache = nil
			return
		}
		c, err := lru.New[string, Tool](n)
		if err != nil {
			panic(fmt.Sprintf("tools: cache size %d: %v", n, err))
		}
		r.cache = c
	}
}

// WithLogger sets the registry logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		loaders: make(map[string]Loader),
		logger:  zap.NewNop(),
	}
	WithCacheSize(DefaultCacheSize)(r)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a loader under name. Names must be "domain:action" and unique.
func (r *Registry) Register(name string, loader Loader) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("invalid tool name %q: expected domain:action", name)
	}
	if loader == nil {
		return fmt.Errorf("tool %q: nil loader", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.loaders[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	r.loaders[name] = loader
	return nil
}

// Add registers built tools under their own names.
func (r *Registry) Add(ts ...Tool) error {
	for _, t := range ts {
		if err := r.Register(t.Name(), Static(t)); err != nil {
			return err
		}
	}
	return nil
}

// Merge copies every loader of the given registries into r. A name present in
// more than one place is an error and leaves r partially merged.
func (r *Registry) Merge(others ...*Registry) error {
	for _, o := range others {
		o.mu.RLock()
		names := make([]string, 0, len(o.loaders))
		for name := range o.loaders {
			names = append(names, name)
		}
		sort.Strings(names)
		loaders := make([]Loader, len(names))
		for i, name := range names {
			loaders[i] = o.loaders[name]
		}
		o.mu.RUnlock()

		for i, name := range names {
			if err := r.Register(name, loaders[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.loaders[name]
	return ok
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.loaders)
}

// Names returns all registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.loaders))
	for name := range r.loaders {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Resolve returns the tool registered under name. Concurrent resolutions of
// the same name share one loader call.
func (r *Registry) Resolve(name string) (Tool, error) {
	if r.cache != nil {
		if t, ok := r.cache.Get(name); ok {
			return t, nil
		}
	}

	r.mu.RLock()
	loader, ok := r.loaders[name]
	r.mu.RUnlock()
	if !ok {
		return nil, NotFound(name)
	}

	v, err, _ := r.group.Do(name, func() (interface{}, error) {
		t, err := loader()
		if err != nil {
			return nil, apperrors.NewToolError(name, fmt.Sprintf("loading tool %s: %v", name, err), err)
		}
		if t.Name() != name {
			return nil, apperrors.NewToolError(name,
				fmt.Sprintf("loader for %s returned tool %s", name, t.Name()), nil)
		}
		if r.cache != nil {
			r.cache.Add(name, t)
		}
		r.logger.Debug("tool resolved", zap.String("tool", name))
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Tool), nil
}

// Describe returns the descriptor of the named tool.
func (r *Registry) Describe(name string) (Descriptor, error) {
	t, err := r.Resolve(name)
	if err != nil {
		return Descriptor{}, err
	}
	return Describe(t), nil
}

// DescribeAll returns descriptors for every tool in name order.
func (r *Registry) DescribeAll() ([]Descriptor, error) {
	names := r.Names()
	out := make([]Descriptor, 0, len(names))
	for _, name := range names {
		d, err := r.Describe(name)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// Invoke resolves name and executes it with input, which may be a struct, a
// map or raw JSON.
func (r *Registry) Invoke(ctx context.Context, name string, input interface{}) (interface{}, error) {
	t, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}
	raw, err := Marshal(input)
	if err != nil {
		return nil, apperrors.NewValidationError(name, nil, err)
	}
	return t.Execute(ctx, raw)
}

// NotFound is the error returned for an unregistered tool name.
func NotFound(name string) error {
	err := apperrors.NewToolError(name, fmt.Sprintf("Tool not found: %s", name), nil)
	err.Code = apperrors.CodeToolNotFound
	err.StatusCode = 404
	return err
}
