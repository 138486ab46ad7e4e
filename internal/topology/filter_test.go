package topology

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFilter(t *testing.T) {
	assert.Equal(t, NamespaceFilter{Value: "default"}, ParseFilter("ns:default"))
	assert.Equal(t, AppFilter{Value: "web"}, ParseFilter("app:web"))
	assert.Equal(t, UnknownFilter{Raw: "team:core"}, ParseFilter("team:core"))
	assert.Equal(t, "app:web", ParseFilter("app:web").Key())
}

func TestFilterSet_Toggle(t *testing.T) {
	var s FilterSet
	assert.True(t, s.Toggle("app:web"))
	assert.True(t, s.Toggle("ns:default"))
	assert.Equal(t, []string{"app:web", "ns:default"}, s.Keys())
	assert.False(t, s.Toggle("app:web"))
	assert.Equal(t, []string{"ns:default"}, s.Keys())
	assert.Equal(t, 1, s.Len())

	clone := s.Clone()
	clone.Toggle("app:x")
	assert.Equal(t, 1, s.Len())
}

func TestApplyFilters_EmptyIsIdentity(t *testing.T) {
	g := clusterGraph()
	visible := ApplyFilters(g, FilterSet{})
	assert.Equal(t, ids(g.Nodes), ids(visible.Nodes))
	assert.Equal(t, edgeIDs(g.Edges), edgeIDs(visible.Edges))
}

func TestApplyFilters(t *testing.T) {
	g := clusterGraph()

	tests := []struct {
		name  string
		keys  []string
		nodes []string
		edges []string
	}{
		{
			name:  "ns default hides system",
			keys:  []string{"ns:default"},
			nodes: []string{"node-a", "ns-default", "wl-frontend", "pod-frontend-1", "svc-api", "ext-stripe"},
			edges: []string{"node-a--ns-default", "ns-default--wl-frontend", "wl-frontend--pod-frontend-1", "pod-frontend-1--svc-api", "svc-api--ext-stripe"},
		},
		{
			name:  "other namespace values do nothing",
			keys:  []string{"ns:payments"},
			nodes: ids(g.Nodes),
			edges: edgeIDs(g.Edges),
		},
		{
			name:  "app filter keeps infrastructure",
			keys:  []string{"app:web"},
			nodes: []string{"node-a", "ns-default", "ns-system", "wl-frontend", "pod-frontend-1", "ext-stripe"},
			edges: []string{"node-a--ns-default", "node-a--ns-system", "ns-default--wl-frontend", "wl-frontend--pod-frontend-1"},
		},
		{
			name:  "app filters are OR combined",
			keys:  []string{"app:web", "app:backend"},
			nodes: []string{"node-a", "ns-default", "ns-system", "wl-frontend", "pod-frontend-1", "svc-api", "ext-stripe"},
			edges: []string{"node-a--ns-default", "node-a--ns-system", "ns-default--wl-frontend", "wl-frontend--pod-frontend-1", "pod-frontend-1--svc-api", "svc-api--ext-stripe"},
		},
		{
			name:  "app matches label substring",
			keys:  []string{"app:core"},
			nodes: []string{"node-a", "ns-default", "ns-system", "pod-coredns-system", "ext-stripe"},
			edges: []string{"node-a--ns-default", "node-a--ns-system", "ns-system--pod-coredns-system"},
		},
		{
			name:  "namespace and app are AND combined",
			keys:  []string{"ns:default", "app:dns"},
			nodes: []string{"node-a", "ns-default", "ext-stripe"},
			edges: []string{"node-a--ns-default"},
		},
		{
			name:  "unknown keys have no effect",
			keys:  []string{"team:core", "nsdefault"},
			nodes: ids(g.Nodes),
			edges: edgeIDs(g.Edges),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			visible := ApplyFilters(g, NewFilterSet(tt.keys...))
			assert.Equal(t, tt.nodes, ids(visible.Nodes))
			assert.Equal(t, tt.edges, edgeIDs(visible.Edges))
		})
	}
}

func TestApplyFilters_Idempotent(t *testing.T) {
	g := clusterGraph()
	set := NewFilterSet("ns:default", "app:web", "app:backend")
	once := ApplyFilters(g, set)
	twice := ApplyFilters(g, set)
	assert.Equal(t, ids(once.Nodes), ids(twice.Nodes))
	assert.Equal(t, edgeIDs(once.Edges), edgeIDs(twice.Edges))

	// filtering the visible subgraph again changes nothing
	again := ApplyFilters(once, set)
	assert.Equal(t, ids(once.Nodes), ids(again.Nodes))
	assert.Equal(t, edgeIDs(once.Edges), edgeIDs(again.Edges))
}

func TestApplyFilters_OrderIndependent(t *testing.T) {
	g := clusterGraph()
	a := ApplyFilters(g, NewFilterSet("app:backend", "ns:default", "app:web"))
	b := ApplyFilters(g, NewFilterSet("app:web", "app:backend", "ns:default"))
	assert.Equal(t, ids(a.Nodes), ids(b.Nodes))
	assert.Equal(t, edgeIDs(a.Edges), edgeIDs(b.Edges))
}

func TestApplyFilters_DoesNotMutateInput(t *testing.T) {
	g := clusterGraph()
	before := Fingerprint(g)
	visible := ApplyFilters(g, NewFilterSet("ns:default"))
	visible.Nodes[0].Label = "mutated"
	assert.Equal(t, before, Fingerprint(g))
	assert.Equal(t, "ip-10-0-1-12", g.Nodes[0].Label)
}

func TestApplyFilters_EdgesNeedBothEndpoints(t *testing.T) {
	g := clusterGraph()
	visible := ApplyFilters(g, NewFilterSet("ns:default"))
	set := nodeSet(visible)
	for _, e := range visible.Edges {
		assert.Contains(t, set, e.Source)
		assert.Contains(t, set, e.Target)
	}
}
