package generation

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Factory builds a provider from its settings.
type Factory func(cfg ProviderConfig, logger *slog.Logger) (Provider, error)

// Registry maps provider names to factories. Providers are constructed on
// every Select so that each queue run sees the settings of that run.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	logger    *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		logger:    logger,
	}
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Select builds the provider called name.
func (r *Registry) Select(name string, cfg ProviderConfig) (Provider, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return f(cfg, r.logger.With("component", "provider", "provider", name))
}
