package topology

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubilitics/kubilitics-topology/internal/models"
)

func TestGraphStore_LoadAndSnapshot(t *testing.T) {
	store := NewGraphStore()
	require.NoError(t, store.Load(scenarioGraph()))

	snap := store.Snapshot()
	assert.Equal(t, ids(scenarioGraph().Nodes), ids(snap.Nodes))
	assert.Len(t, snap.Edges, 3)

	n, ok := store.Node("svc-1")
	require.True(t, ok)
	assert.Equal(t, models.NodeTypeService, n.Type)

	_, ok = store.Node("missing")
	assert.False(t, ok)
}

func TestGraphStore_SnapshotIsACopy(t *testing.T) {
	store := NewGraphStore()
	g := clusterGraph()
	require.NoError(t, store.Load(g))

	// mutating the input after load must not leak into the store
	g.Nodes[0].Label = "changed"
	g.Nodes[0].Position.X = 999

	snap := store.Snapshot()
	assert.Equal(t, "ip-10-0-1-12", snap.Nodes[0].Label)
	assert.Equal(t, float64(0), snap.Nodes[0].Position.X)

	snap.Nodes[1].Label = "changed"
	assert.Equal(t, "default", store.Snapshot().Nodes[1].Label)
}

func TestGraphStore_DuplicateNodeID(t *testing.T) {
	store := NewGraphStore()
	require.NoError(t, store.Load(scenarioGraph()))

	bad := models.Graph{Nodes: []models.TopologyNode{
		node("a", models.NodeTypePod, "a"),
		node("a", models.NodeTypeService, "a again"),
	}}
	err := store.Load(bad)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateNodeID))
	assert.Contains(t, err.Error(), "a")

	// previous graph survives a rejected load
	assert.Len(t, store.Snapshot().Nodes, 5)
}

func TestGraphStore_DropsDanglingEdges(t *testing.T) {
	g := scenarioGraph()
	g.Edges = append(g.Edges,
		models.TopologyEdge{ID: "ghost-src", Source: "nope", Target: "pod-1"},
		models.TopologyEdge{ID: "ghost-tgt", Source: "pod-1", Target: "nope"},
	)
	store := NewGraphStore()
	require.NoError(t, store.Load(g))

	assert.Equal(t, []string{"node-1--pod-1", "pod-1--svc-1", "pod-2--svc-1"}, edgeIDs(store.Snapshot().Edges))
	assert.Equal(t, []string{"ghost-src", "ghost-tgt"}, edgeIDs(store.Dropped()))
}

func TestGraphStore_NodesByType(t *testing.T) {
	store := NewGraphStore()
	require.NoError(t, store.Load(scenarioGraph()))
	assert.Equal(t, []string{"pod-1", "pod-2"}, ids(store.NodesByType(models.NodeTypePod)))
	assert.Empty(t, store.NodesByType(models.NodeTypeExternal))
}

func TestFingerprint(t *testing.T) {
	g := scenarioGraph()
	fp := Fingerprint(g)
	assert.Len(t, fp, 64)

	reordered := g.Clone()
	reordered.Nodes[0], reordered.Nodes[4] = reordered.Nodes[4], reordered.Nodes[0]
	reordered.Edges[0], reordered.Edges[2] = reordered.Edges[2], reordered.Edges[0]
	assert.Equal(t, fp, Fingerprint(reordered))

	changed := g.Clone()
	changed.Edges = changed.Edges[:2]
	assert.NotEqual(t, fp, Fingerprint(changed))
}
