package topologycache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubilitics/kubilitics-topology/internal/models"
)

func graph(ids ...string) models.Graph {
	g := models.Graph{}
	for _, id := range ids {
		g.Nodes = append(g.Nodes, models.TopologyNode{ID: id, Type: models.NodeTypePod, Label: id})
	}
	return g
}

func TestCache_GetSet(t *testing.T) {
	c := New(10, time.Minute)
	scope := models.Scope{Kind: models.ScopePod, ID: "pod-1"}

	_, ok := c.Get("stack", scope)
	assert.False(t, ok)

	c.Set("stack", scope, graph("pod-1", "pod-2"))
	g, ok := c.Get("stack", scope)
	require.True(t, ok)
	assert.Len(t, g.Nodes, 2)

	// returned graph is a copy
	g.Nodes[0].Label = "changed"
	again, _ := c.Get("stack", scope)
	assert.Equal(t, "pod-1", again.Nodes[0].Label)

	_, ok = c.Get("star", scope)
	assert.False(t, ok)
}

func TestCache_Expiry(t *testing.T) {
	c := New(10, 20*time.Millisecond)
	scope := models.Scope{Kind: models.ScopeGlobal}
	c.Set("stack", scope, graph("a"))
	time.Sleep(60 * time.Millisecond)
	_, ok := c.Get("stack", scope)
	assert.False(t, ok)
}

func TestCache_SizeBound(t *testing.T) {
	c := New(2, time.Minute)
	c.Set("stack", models.Scope{Kind: models.ScopePod, ID: "1"}, graph("a"))
	c.Set("stack", models.Scope{Kind: models.ScopePod, ID: "2"}, graph("b"))
	c.Set("stack", models.Scope{Kind: models.ScopePod, ID: "3"}, graph("c"))
	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("stack", models.Scope{Kind: models.ScopePod, ID: "1"})
	assert.False(t, ok)
}

func TestCache_InvalidateLayout(t *testing.T) {
	c := New(10, time.Minute)
	c.Set("stack", models.Scope{Kind: models.ScopeGlobal}, graph("a"))
	c.Set("stack", models.Scope{Kind: models.ScopePod, ID: "x"}, graph("a"))
	c.Set("star", models.Scope{Kind: models.ScopeGlobal}, graph("a"))

	c.InvalidateLayout("stack")
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get("star", models.Scope{Kind: models.ScopeGlobal})
	assert.True(t, ok)
}

func TestCache_Disabled(t *testing.T) {
	c := New(10, 0)
	c.Set("stack", models.Scope{Kind: models.ScopeGlobal}, graph("a"))
	_, ok := c.Get("stack", models.Scope{Kind: models.ScopeGlobal})
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCache_LabelIsPartOfKey(t *testing.T) {
	c := New(10, time.Minute)
	system := models.Scope{Kind: models.ScopeNamespace, Label: "kube-system"}
	c.Set("cluster", system, graph("ns-kube-system"))

	_, ok := c.Get("cluster", models.Scope{Kind: models.ScopeNamespace, Label: "default"})
	assert.False(t, ok)
	g, ok := c.Get("cluster", system)
	require.True(t, ok)
	assert.Equal(t, "ns-kube-system", g.Nodes[0].ID)
}
