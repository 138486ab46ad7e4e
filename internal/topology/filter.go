package topology

import (
	"sort"
	"strings"

	"github.com/kubilitics/kubilitics-topology/internal/models"
)

// Filter key prefixes understood by ParseFilter.
const (
	NamespacePrefix = "ns:"
	AppPrefix       = "app:"
)

// Filter is a parsed filter key. The concrete type decides how it combines
// with other active filters: namespace filters AND together, app filters OR
// together, unknown filters have no effect.
type Filter interface {
	Key() string
	isFilter()
}

// NamespaceFilter restricts nodes by namespace. Only "default" has an effect:
// it hides every node whose id or label mentions "system".
type NamespaceFilter struct {
	Value string
}

func (f NamespaceFilter) Key() string { return NamespacePrefix + f.Value }
func (NamespaceFilter) isFilter()     {}

// Allows reports whether node passes the filter.
func (f NamespaceFilter) Allows(node models.TopologyNode) bool {
	if f.Value != "default" {
		return true
	}
	return !strings.Contains(node.ID, "system") && !strings.Contains(node.Label, "system")
}

// AppFilter matches nodes whose label or sublabel contains Value.
type AppFilter struct {
	Value string
}

func (f AppFilter) Key() string { return AppPrefix + f.Value }
func (AppFilter) isFilter()     {}

// Matches reports whether node's label or sublabel contains the app value.
func (f AppFilter) Matches(node models.TopologyNode) bool {
	return strings.Contains(node.Label, f.Value) || strings.Contains(node.SubLabel, f.Value)
}

// UnknownFilter is a key with no recognised prefix. It is kept in the active
// set so the UI can show and untoggle it, but never hides anything.
type UnknownFilter struct {
	Raw string
}

func (f UnknownFilter) Key() string { return f.Raw }
func (UnknownFilter) isFilter()     {}

// ParseFilter maps a filter key to its variant.
func ParseFilter(key string) Filter {
	switch {
	case strings.HasPrefix(key, NamespacePrefix):
		return NamespaceFilter{Value: strings.TrimPrefix(key, NamespacePrefix)}
	case strings.HasPrefix(key, AppPrefix):
		return AppFilter{Value: strings.TrimPrefix(key, AppPrefix)}
	default:
		return UnknownFilter{Raw: key}
	}
}

// appExempt reports whether a node type is always kept by app filters.
func appExempt(t models.NodeType) bool {
	return t == models.NodeTypeNode || t == models.NodeTypeNamespace || t == models.NodeTypeExternal
}

// FilterSet is an unordered set of active filter keys. The zero value is an
// empty set ready to use.
type FilterSet struct {
	keys map[string]Filter
}

// NewFilterSet builds a set from keys. Repeated keys collapse.
func NewFilterSet(keys ...string) FilterSet {
	var s FilterSet
	for _, k := range keys {
		s.Add(k)
	}
	return s
}

// Add inserts key into the set.
func (s *FilterSet) Add(key string) {
	if s.keys == nil {
		s.keys = map[string]Filter{}
	}
	s.keys[key] = ParseFilter(key)
}

// Toggle adds key if absent and removes it otherwise. It returns true when
// the key is active afterwards.
func (s *FilterSet) Toggle(key string) bool {
	if s.Has(key) {
		delete(s.keys, key)
		return false
	}
	s.Add(key)
	return true
}

// Has reports whether key is active.
func (s FilterSet) Has(key string) bool {
	_, ok := s.keys[key]
	return ok
}

// Len returns the number of active keys.
func (s FilterSet) Len() int { return len(s.keys) }

// Keys returns the active keys sorted.
func (s FilterSet) Keys() []string {
	out := make([]string, 0, len(s.keys))
	for k := range s.keys {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy of s.
func (s FilterSet) Clone() FilterSet {
	return NewFilterSet(s.Keys()...)
}

// ApplyFilters returns the visible subgraph of g under filters. The input is
// not modified and canonical order is preserved. A node is visible when every
// namespace filter allows it and, if any app filter is active, at least one
// app filter matches it or its type is exempt. An edge is visible when both
// endpoints are.
func ApplyFilters(g models.Graph, filters FilterSet) models.Graph {
	if filters.Len() == 0 {
		return g.Clone()
	}

	var nsFilters []NamespaceFilter
	var appFilters []AppFilter
	for _, f := range filters.keys {
		switch v := f.(type) {
		case NamespaceFilter:
			nsFilters = append(nsFilters, v)
		case AppFilter:
			appFilters = append(appFilters, v)
		}
	}

	visible := func(node models.TopologyNode) bool {
		for _, f := range nsFilters {
			if !f.Allows(node) {
				return false
			}
		}
		if len(appFilters) == 0 || appExempt(node.Type) {
			return true
		}
		for _, f := range appFilters {
			if f.Matches(node) {
				return true
			}
		}
		return false
	}

	out := models.Graph{
		Nodes: []models.TopologyNode{},
		Edges: []models.TopologyEdge{},
	}
	kept := make(map[string]struct{}, len(g.Nodes))
	for _, node := range g.Nodes {
		if visible(node) {
			kept[node.ID] = struct{}{}
			out.Nodes = append(out.Nodes, node)
		}
	}
	for _, edge := range g.Edges {
		_, srcOK := kept[edge.Source]
		_, tgtOK := kept[edge.Target]
		if srcOK && tgtOK {
			out.Edges = append(out.Edges, edge)
		}
	}
	return out.Clone()
}
