// Package source supplies canonical topology graphs to mounted views.
package source

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/kubilitics/kubilitics-topology/internal/models"
)

// ErrUnknownLayout is returned when no provider is registered under a name.
var ErrUnknownLayout = errors.New("unknown layout")

// Provider generates the canonical graph for a layout kind. Positions are
// assigned by the provider and treated as opaque downstream.
type Provider interface {
	Name() string
	GenerateLayout(ctx context.Context, scope models.Scope) (models.Graph, error)
}

// Registry maps layout names to providers. Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates a registry holding providers.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: map[string]Provider{}}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds or replaces a provider.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns the provider for name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLayout, name)
	}
	return p, nil
}

// Names returns registered layout names sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
