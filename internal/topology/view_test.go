package topology

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubilitics/kubilitics-topology/internal/models"
)

func viewNodeIDs(nodes []models.ViewNode) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

func litNodes(vm models.ViewModel) []string {
	var out []string
	for _, n := range vm.Nodes {
		if n.Visual.Opacity == 1 {
			out = append(out, n.ID)
		}
	}
	return out
}

func TestView_EndToEndScenario(t *testing.T) {
	v := NewView("v1", "stack")
	vm, err := v.Mount(models.Scope{Kind: models.ScopeGlobal}, scenarioGraph())
	require.NoError(t, err)
	assert.Nil(t, vm.Selection)
	assert.Empty(t, vm.ActiveFilters)

	vm = v.NodeClick("pod-1")
	require.NotNil(t, vm.Selection)
	assert.Equal(t, "pod-1", *vm.Selection)
	assert.ElementsMatch(t, []string{"node-1", "pod-1", "svc-1", "pod-2"}, litNodes(vm))
	assert.Equal(t, models.RelatedCounts{
		models.NodeTypeNode:    1,
		models.NodeTypePod:     2,
		models.NodeTypeService: 1,
	}, vm.RelatedCounts)
	require.NotNil(t, vm.Detail)
	assert.Equal(t, "checkout-7f9c", vm.Detail.Label)
	assert.Equal(t, "v1", vm.ViewID)
	assert.Equal(t, uint64(2), vm.Revision)
}

func TestView_FilterInvalidatesSelection(t *testing.T) {
	v := NewView("v1", "stack")
	_, err := v.Mount(models.Scope{Kind: models.ScopeGlobal}, clusterGraph())
	require.NoError(t, err)

	vm := v.NodeClick("pod-coredns-system")
	require.NotNil(t, vm.Selection)

	vm = v.ToggleFilter("ns:default")
	assert.Nil(t, vm.Selection)
	assert.Nil(t, vm.Detail)
	assert.Empty(t, vm.RelatedCounts)
	assert.NotContains(t, viewNodeIDs(vm.Nodes), "pod-coredns-system")
	for _, n := range vm.Nodes {
		assert.Equal(t, models.NodeVisualState{Opacity: 1}, n.Visual, n.ID)
	}
	for _, e := range vm.Edges {
		assert.True(t, e.Visual.Animated)
		assert.Equal(t, 0.6, e.Visual.StrokeOpacity)
	}

	// untoggling does not bring the old selection back
	vm = v.ToggleFilter("ns:default")
	assert.Nil(t, vm.Selection)
	assert.Len(t, vm.Nodes, 8)
}

func TestView_FilterRecomputesHighlight(t *testing.T) {
	v := NewView("v1", "stack")
	_, err := v.Mount(models.Scope{Kind: models.ScopeGlobal}, clusterGraph())
	require.NoError(t, err)

	vm := v.NodeClick("node-a")
	assert.Contains(t, litNodes(vm), "pod-coredns-system")

	vm = v.ToggleFilter("ns:default")
	require.NotNil(t, vm.Selection)
	assert.Equal(t, "node-a", *vm.Selection)
	assert.NotContains(t, litNodes(vm), "ns-system")
	assert.Equal(t, 1, vm.RelatedCounts[models.NodeTypeNamespace])
}

func TestView_ClickHiddenNodeResets(t *testing.T) {
	v := NewView("v1", "stack")
	_, err := v.Mount(models.Scope{Kind: models.ScopeGlobal}, clusterGraph())
	require.NoError(t, err)
	v.ToggleFilter("ns:default")
	v.NodeClick("svc-api")

	vm := v.NodeClick("pod-coredns-system")
	assert.Nil(t, vm.Selection)
	assert.Len(t, litNodes(vm), len(vm.Nodes))
}

func TestView_MountFocusesScopeTarget(t *testing.T) {
	v := NewView("v1", "star")
	vm, err := v.Mount(models.Scope{Kind: models.ScopePod, ID: "does-not-exist"}, clusterGraph())
	require.NoError(t, err)
	require.NotNil(t, vm.Selection)
	assert.Equal(t, "pod-frontend-1", *vm.Selection)
	require.NotNil(t, vm.Focus)
	assert.Equal(t, "pod-frontend-1", vm.Focus.NodeID)
	assert.Equal(t, models.ScopePod, vm.Scope.Kind)

	// scope miss fits the view
	vm, err = v.Mount(models.Scope{Kind: models.ScopeGlobal}, clusterGraph())
	require.NoError(t, err)
	assert.Nil(t, vm.Selection)
	assert.Nil(t, vm.Focus)
}

func TestView_MountRejectsDuplicates(t *testing.T) {
	v := NewView("v1", "stack")
	_, err := v.Mount(models.Scope{Kind: models.ScopeGlobal}, scenarioGraph())
	require.NoError(t, err)

	dup := scenarioGraph()
	dup.Nodes = append(dup.Nodes, dup.Nodes[0])
	_, err = v.Mount(models.Scope{Kind: models.ScopeGlobal}, dup)
	assert.ErrorIs(t, err, ErrDuplicateNodeID)
	assert.Len(t, v.Canonical().Nodes, 5)
}

func TestView_ReportsDroppedEdges(t *testing.T) {
	g := scenarioGraph()
	g.Edges = append(g.Edges, models.TopologyEdge{ID: "x", Source: "pod-1", Target: "gone"})
	v := NewView("v1", "stack")
	vm, err := v.Mount(models.Scope{Kind: models.ScopeGlobal}, g)
	require.NoError(t, err)
	assert.Equal(t, 1, vm.DroppedEdges)
	assert.Len(t, vm.Edges, 3)
}

func TestView_ConcurrentEventsAreSerialized(t *testing.T) {
	v := NewView("v1", "stack")
	_, err := v.Mount(models.Scope{Kind: models.ScopeGlobal}, clusterGraph())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(3)
		go func() { defer wg.Done(); v.ToggleFilter("ns:default") }()
		go func() { defer wg.Done(); v.NodeClick("pod-coredns-system") }()
		go func() { defer wg.Done(); v.PaneClick() }()
	}
	wg.Wait()

	vm := v.Current()
	assert.Equal(t, uint64(151), vm.Revision)
	if vm.Selection != nil {
		assert.Contains(t, viewNodeIDs(vm.Nodes), *vm.Selection)
	}
}

func TestProject_Pure(t *testing.T) {
	g := clusterGraph()
	state := ViewState{
		Scope:     models.Scope{Kind: models.ScopeGlobal},
		Filters:   NewFilterSet("ns:default"),
		Selection: "pod-coredns-system",
	}
	vm, next := Project(g, state)
	assert.Nil(t, vm.Selection)
	assert.Empty(t, next.Selection)
	assert.Equal(t, "pod-coredns-system", state.Selection)
	assert.Equal(t, []string{"ns:default"}, vm.ActiveFilters)

	state.Selection = "svc-api"
	a, _ := Project(g, state)
	b, _ := Project(g, state)
	assert.Equal(t, a, b)
	assert.Equal(t, Fingerprint(g), a.Fingerprint)
}
