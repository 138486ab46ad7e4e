package topology

import "github.com/kubilitics/kubilitics-topology/internal/models"

func node(id string, t models.NodeType, label string) models.TopologyNode {
	return models.TopologyNode{ID: id, Type: t, Label: label}
}

func edge(src, tgt string) models.TopologyEdge {
	return models.TopologyEdge{ID: src + "--" + tgt, Source: src, Target: tgt}
}

// scenarioGraph is the small stack used across tests:
// node-1 - pod-1 - svc-1 - pod-2, with ns-default standing alone.
func scenarioGraph() models.Graph {
	return models.Graph{
		Nodes: []models.TopologyNode{
			node("ns-default", models.NodeTypeNamespace, "default"),
			node("node-1", models.NodeTypeNode, "worker-1"),
			node("pod-1", models.NodeTypePod, "checkout-7f9c"),
			node("pod-2", models.NodeTypePod, "payments-5d2a"),
			node("svc-1", models.NodeTypeService, "payments-svc"),
		},
		Edges: []models.TopologyEdge{
			edge("node-1", "pod-1"),
			edge("pod-1", "svc-1"),
			edge("pod-2", "svc-1"),
		},
	}
}

// clusterGraph mixes system and app workloads across two namespaces.
func clusterGraph() models.Graph {
	pos := func(x, y float64) *models.Position { return &models.Position{X: x, Y: y} }
	nodes := []models.TopologyNode{
		{ID: "node-a", Type: models.NodeTypeNode, Label: "ip-10-0-1-12", Position: pos(0, 0)},
		{ID: "ns-default", Type: models.NodeTypeNamespace, Label: "default", Position: pos(0, 100)},
		{ID: "ns-system", Type: models.NodeTypeNamespace, Label: "kube-system", Position: pos(200, 100)},
		{ID: "wl-frontend", Type: models.NodeTypeWorkload, Label: "frontend", SubLabel: "web", Position: pos(0, 200)},
		{ID: "pod-frontend-1", Type: models.NodeTypePod, Label: "frontend-1", SubLabel: "web", Position: pos(0, 300)},
		{ID: "pod-coredns-system", Type: models.NodeTypePod, Label: "coredns", SubLabel: "dns", Position: pos(200, 300)},
		{ID: "svc-api", Type: models.NodeTypeService, Label: "api", SubLabel: "backend", Position: pos(100, 400)},
		{ID: "ext-stripe", Type: models.NodeTypeExternal, Label: "stripe.com", Position: pos(100, 500)},
	}
	return models.Graph{
		Nodes: nodes,
		Edges: []models.TopologyEdge{
			edge("node-a", "ns-default"),
			edge("node-a", "ns-system"),
			edge("ns-default", "wl-frontend"),
			edge("wl-frontend", "pod-frontend-1"),
			edge("ns-system", "pod-coredns-system"),
			edge("pod-frontend-1", "svc-api"),
			edge("svc-api", "ext-stripe"),
		},
	}
}

func ids(nodes []models.TopologyNode) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

func edgeIDs(edges []models.TopologyEdge) []string {
	out := make([]string, len(edges))
	for i, e := range edges {
		out[i] = e.ID
	}
	return out
}
