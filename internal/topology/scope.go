package topology

import (
	"strings"

	"github.com/kubilitics/kubilitics-topology/internal/models"
)

// Canonical namespace node ids used by namespace scope resolution.
const (
	SystemNamespaceID  = "ns-system"
	DefaultNamespaceID = "ns-default"
)

// ResolveScope picks the node that should receive initial focus for scope.
// Rules are tried in a fixed order and the first match wins; ok is false
// when nothing matches, in which case the caller fits the whole view.
func ResolveScope(scope models.Scope, g models.Graph) (string, bool) {
	switch scope.Kind {
	case models.ScopeNode:
		return resolveNode(scope, g)
	case models.ScopeNamespace:
		nsID := DefaultNamespaceID
		if strings.Contains(scope.Label, "system") {
			nsID = SystemNamespaceID
		}
		return findNode(g, func(n models.TopologyNode) bool { return n.ID == nsID })
	case models.ScopeCluster:
		return findNode(g, func(n models.TopologyNode) bool { return n.Type == models.NodeTypeNode })
	case models.ScopePod:
		return resolvePod(scope, g)
	default:
		return "", false
	}
}

func resolveNode(scope models.Scope, g models.Graph) (string, bool) {
	if scope.ID != "" {
		if id, ok := findNode(g, func(n models.TopologyNode) bool { return n.ID == scope.ID }); ok {
			return id, true
		}
		if id, ok := findNode(g, func(n models.TopologyNode) bool { return strings.Contains(n.ID, scope.ID) }); ok {
			return id, true
		}
	}
	if scope.Label == "" {
		return "", false
	}
	return findNode(g, func(n models.TopologyNode) bool {
		return n.Type == models.NodeTypeNode && n.Label == scope.Label
	})
}

func resolvePod(scope models.Scope, g models.Graph) (string, bool) {
	if scope.ID != "" {
		if id, ok := findNode(g, func(n models.TopologyNode) bool { return n.ID == scope.ID }); ok {
			return id, true
		}
	}
	if scope.Label != "" {
		if id, ok := findNode(g, func(n models.TopologyNode) bool {
			return n.Type == models.NodeTypePod && n.Label == scope.Label
		}); ok {
			return id, true
		}
	}
	// any pod is better than none
	return findNode(g, func(n models.TopologyNode) bool { return n.Type == models.NodeTypePod })
}

func findNode(g models.Graph, match func(models.TopologyNode) bool) (string, bool) {
	for _, node := range g.Nodes {
		if match(node) {
			return node.ID, true
		}
	}
	return "", false
}
