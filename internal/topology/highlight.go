package topology

import "github.com/kubilitics/kubilitics-topology/internal/models"

// Stroke colors for edge visual states.
const (
	HighlightColor = "#3b82f6"
	NeutralColor   = "#94a3b8"
	IdleColor      = "#64748b"
)

const (
	dimmedNodeOpacity  = 0.2
	idleEdgeOpacity    = 0.6
	dimmedEdgeOpacity  = 0.1
	relatedEdgeWidth   = 3
	defaultEdgeWidth   = 1
	relatedEdgeOpacity = 1
	relatedNodeOpacity = 1
)

// HighlightResult is the dependency closure of a selected node. When Valid is
// false the selection was empty or not visible and every element is in its
// idle state.
type HighlightResult struct {
	Selected     string
	Valid        bool
	RelatedNodes map[string]struct{}
	RelatedEdges map[string]struct{}
	Counts       models.RelatedCounts
}

// Highlight computes the connected component of selected within visible,
// treating edges as undirected. Only visible edges are traversed and edges
// with an endpoint outside visible are ignored.
func Highlight(visible models.Graph, selected string) HighlightResult {
	res := HighlightResult{
		Selected:     selected,
		RelatedNodes: map[string]struct{}{},
		RelatedEdges: map[string]struct{}{},
		Counts:       models.RelatedCounts{},
	}
	present := nodeSet(visible)
	if _, ok := present[selected]; selected == "" || !ok {
		res.Selected = ""
		return res
	}
	res.Valid = true

	type hop struct {
		edgeID string
		peer   string
	}
	adjacency := make(map[string][]hop, len(visible.Nodes))
	for _, edge := range visible.Edges {
		_, srcOK := present[edge.Source]
		_, tgtOK := present[edge.Target]
		if !srcOK || !tgtOK {
			continue
		}
		adjacency[edge.Source] = append(adjacency[edge.Source], hop{edge.ID, edge.Target})
		adjacency[edge.Target] = append(adjacency[edge.Target], hop{edge.ID, edge.Source})
	}

	res.RelatedNodes[selected] = struct{}{}
	queue := []string{selected}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, h := range adjacency[current] {
			res.RelatedEdges[h.edgeID] = struct{}{}
			if _, seen := res.RelatedNodes[h.peer]; seen {
				continue
			}
			res.RelatedNodes[h.peer] = struct{}{}
			queue = append(queue, h.peer)
		}
	}

	for _, node := range visible.Nodes {
		if _, ok := res.RelatedNodes[node.ID]; ok {
			res.Counts[node.Type]++
		}
	}
	return res
}

// Annotate attaches visual state from res to every node and edge of visible.
func Annotate(visible models.Graph, res HighlightResult) ([]models.ViewNode, []models.ViewEdge) {
	nodes := make([]models.ViewNode, 0, len(visible.Nodes))
	for _, node := range visible.Nodes {
		state := models.NodeVisualState{Opacity: relatedNodeOpacity}
		if res.Valid {
			if _, ok := res.RelatedNodes[node.ID]; !ok {
				state = models.NodeVisualState{Opacity: dimmedNodeOpacity, Grayscale: true}
			}
		}
		nodes = append(nodes, models.ViewNode{TopologyNode: node, Visual: state})
	}

	edges := make([]models.ViewEdge, 0, len(visible.Edges))
	for _, edge := range visible.Edges {
		var state models.EdgeVisualState
		switch _, related := res.RelatedEdges[edge.ID]; {
		case !res.Valid:
			state = models.EdgeVisualState{
				Animated:      true,
				StrokeOpacity: idleEdgeOpacity,
				StrokeWidth:   defaultEdgeWidth,
				StrokeColor:   IdleColor,
			}
		case related:
			state = models.EdgeVisualState{
				Animated:      true,
				StrokeOpacity: relatedEdgeOpacity,
				StrokeWidth:   relatedEdgeWidth,
				StrokeColor:   HighlightColor,
			}
		default:
			state = models.EdgeVisualState{
				StrokeOpacity: dimmedEdgeOpacity,
				StrokeWidth:   defaultEdgeWidth,
				StrokeColor:   NeutralColor,
			}
		}
		edges = append(edges, models.ViewEdge{TopologyEdge: edge, Visual: state})
	}
	return nodes, edges
}
