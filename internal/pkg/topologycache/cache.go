// Package topologycache caches canonical graphs per (layout, scope) with TTL
// and a size bound, so remounting a view does not rebuild its graph.
package topologycache

import (
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/kubilitics/kubilitics-topology/internal/models"
	"github.com/kubilitics/kubilitics-topology/internal/pkg/metrics"
)

// Cache holds canonical graphs by (layout, scope). Thread-safe.
type Cache struct {
	lru *expirable.LRU[string, models.Graph]
}

// New returns a cache bounded to size entries with the given TTL. If ttl <= 0
// or size <= 0, Get always misses (cache disabled).
func New(size int, ttl time.Duration) *Cache {
	if ttl <= 0 || size <= 0 {
		return &Cache{}
	}
	return &Cache{lru: expirable.NewLRU[string, models.Graph](size, nil, ttl)}
}

func key(layout string, scope models.Scope) string {
	return layout + "|" + scope.Key()
}

// Get returns a copy of the cached graph. Records hit/miss.
func (c *Cache) Get(layout string, scope models.Scope) (models.Graph, bool) {
	if c.lru == nil {
		metrics.TopologyCacheMissesTotal.Inc()
		return models.Graph{}, false
	}
	g, ok := c.lru.Get(key(layout, scope))
	if !ok {
		metrics.TopologyCacheMissesTotal.Inc()
		return models.Graph{}, false
	}
	metrics.TopologyCacheHitsTotal.Inc()
	return g.Clone(), true
}

// Set stores a copy of graph for the given layout and scope.
func (c *Cache) Set(layout string, scope models.Scope, graph models.Graph) {
	if c.lru == nil {
		return
	}
	c.lru.Add(key(layout, scope), graph.Clone())
}

// InvalidateLayout removes all cached entries for the layout (any scope).
func (c *Cache) InvalidateLayout(layout string) {
	if c.lru == nil {
		return
	}
	prefix := layout + "|"
	for _, k := range c.lru.Keys() {
		if strings.HasPrefix(k, prefix) {
			c.lru.Remove(k)
		}
	}
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	if c.lru == nil {
		return 0
	}
	return c.lru.Len()
}
