package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	fluxmcp "github.com/converged-computing/flux-mcp-server"
)

// Registry maps cluster names to connected handles. Registration is
// all-or-nothing: a handle that fails its initial connect is closed and
// never stored.
type Registry struct {
	gate   fluxmcp.AuthGate
	dialer Dialer
	remote RemoteDialer
	logger *slog.Logger

	mu        sync.RWMutex
	factories map[string]Factory
	handles   map[string]Handle
}

// RegistryOption configures the Registry.
type RegistryOption func(*Registry)

// WithGate sets the auth gate shared by all handles.
func WithGate(gate fluxmcp.AuthGate) RegistryOption {
	return func(r *Registry) {
		if gate != nil {
			r.gate = gate
		}
	}
}

// WithDialer sets the dialer local handles use.
func WithDialer(dialer Dialer) RegistryOption {
	return func(r *Registry) { r.dialer = dialer }
}

// WithRemoteDialer sets the dialer remote handles use to reach a peer
// server. Typically wired with the client package's dialer.
func WithRemoteDialer(dial RemoteDialer) RegistryOption {
	return func(r *Registry) { r.remote = dial }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = logger }
}

// WithFactory registers a handle factory under a type tag, replacing
// any existing factory for that tag.
func WithFactory(typeTag string, factory Factory) RegistryOption {
	return func(r *Registry) { r.factories[typeTag] = factory }
}

// NewRegistry builds a registry with the built-in "local" and "remote"
// factories.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		gate:    fluxmcp.AllowAll{},
		logger:  slog.Default(),
		handles: make(map[string]Handle),
		factories: map[string]Factory{
			TypeLocal:  NewLocalHandle,
			TypeRemote: NewRemoteHandle,
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register builds, connects, and stores a handle for the named cluster.
// The name must be unused and the type tag known; a handle that fails
// to connect is closed and nothing is stored.
func (r *Registry) Register(ctx context.Context, name, typeTag string, cfg map[string]string) error {
	r.mu.Lock()
	if _, exists := r.handles[name]; exists {
		r.mu.Unlock()
		return fmt.Errorf("cluster: register %q: %w", name, fluxmcp.ErrClusterExists)
	}
	factory, ok := r.factories[typeTag]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("cluster: register %q type %q: %w", name, typeTag, fluxmcp.ErrUnknownClusterType)
	}

	handle, err := factory(name, cfg, Deps{Gate: r.gate, Dialer: r.dialer, Remote: r.remote})
	if err != nil {
		return err
	}

	// Connect outside the lock; dials can be slow.
	if err := handle.Connect(ctx); err != nil {
		_ = handle.Close()
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handles[name]; exists {
		// Lost the race to a concurrent Register for the same name.
		_ = handle.Close()
		return fmt.Errorf("cluster: register %q: %w", name, fluxmcp.ErrClusterExists)
	}
	r.handles[name] = handle

	r.logger.Info("cluster registered", "cluster", name, "type", typeTag)
	return nil
}

// Remove closes and forgets the named cluster. It reports whether the
// cluster was registered.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	handle, ok := r.handles[name]
	delete(r.handles, name)
	r.mu.Unlock()

	if !ok {
		return false
	}
	if err := handle.Close(); err != nil {
		r.logger.Warn("cluster close failed", "cluster", name, "error", err)
	}

	r.logger.Info("cluster removed", "cluster", name)
	return true
}

// Handle returns the handle for the named cluster.
func (r *Registry) Handle(name string) (Handle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handle, ok := r.handles[name]
	if !ok {
		return nil, fmt.Errorf("cluster: %q: %w", name, fluxmcp.ErrClusterNotFound)
	}
	return handle, nil
}

// List describes all registered clusters, sorted by name.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.handles))
	for name, handle := range r.handles {
		infos = append(infos, Info{Name: name, Type: handle.Type(), Config: handle.Config()})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Close removes every cluster. Used at shutdown.
func (r *Registry) Close() {
	r.mu.Lock()
	handles := r.handles
	r.handles = make(map[string]Handle)
	r.mu.Unlock()

	for name, handle := range handles {
		if err := handle.Close(); err != nil {
			r.logger.Warn("cluster close failed", "cluster", name, "error", err)
		}
	}
}
