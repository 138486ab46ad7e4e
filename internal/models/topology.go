package models

import "time"

// NodeType is the infrastructure kind of a topology node.
type NodeType string

const (
	NodeTypeNode      NodeType = "node"
	NodeTypeWorkload  NodeType = "workload"
	NodeTypePod       NodeType = "pod"
	NodeTypeNamespace NodeType = "namespace"
	NodeTypeService   NodeType = "service"
	NodeTypeExternal  NodeType = "external"
)

// NodeTypes lists every known node type in display order.
var NodeTypes = []NodeType{
	NodeTypeNode,
	NodeTypeNamespace,
	NodeTypeWorkload,
	NodeTypePod,
	NodeTypeService,
	NodeTypeExternal,
}

// Valid reports whether t is one of the known node types.
func (t NodeType) Valid() bool {
	for _, known := range NodeTypes {
		if t == known {
			return true
		}
	}
	return false
}

// TopologyNode represents a node in the topology graph
type TopologyNode struct {
	ID        string                 `json:"id"`
	Type      NodeType               `json:"type"`
	Label     string                 `json:"label"`
	SubLabel  string                 `json:"subLabel,omitempty"` // app name, image or host detail
	Namespace string                 `json:"namespace,omitempty"`
	Status    string                 `json:"status,omitempty"` // Running, Pending, Failed, etc.
	Position  *Position              `json:"position,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// TopologyEdge represents an observed call between nodes. Direction is kept
// for rendering only; dependency traversal treats edges as undirected.
type TopologyEdge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label,omitempty"`
}

// Position represents node coordinates assigned by the layout provider
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Graph is a node/edge collection.
type Graph struct {
	Nodes []TopologyNode `json:"nodes"`
	Edges []TopologyEdge `json:"edges"`
}

// Clone returns a deep copy of g. Metadata maps are copied one level deep.
func (g Graph) Clone() Graph {
	out := Graph{
		Nodes: make([]TopologyNode, len(g.Nodes)),
		Edges: make([]TopologyEdge, len(g.Edges)),
	}
	for i, n := range g.Nodes {
		if n.Position != nil {
			p := *n.Position
			n.Position = &p
		}
		if n.Metadata != nil {
			md := make(map[string]interface{}, len(n.Metadata))
			for k, v := range n.Metadata {
				md[k] = v
			}
			n.Metadata = md
		}
		out.Nodes[i] = n
	}
	copy(out.Edges, g.Edges)
	return out
}

// NodeVisualState is the derived render state of a node.
type NodeVisualState struct {
	Opacity   float64 `json:"opacity"`
	Grayscale bool    `json:"grayscale"`
}

// EdgeVisualState is the derived render state of an edge.
type EdgeVisualState struct {
	Animated      bool    `json:"animated"`
	StrokeOpacity float64 `json:"strokeOpacity"`
	StrokeWidth   float64 `json:"strokeWidth"`
	StrokeColor   string  `json:"strokeColor"`
}

// ViewNode is a visible node annotated with its visual state.
type ViewNode struct {
	TopologyNode
	Visual NodeVisualState `json:"visualState"`
}

// ViewEdge is a visible edge annotated with its visual state.
type ViewEdge struct {
	TopologyEdge
	Visual EdgeVisualState `json:"visualState"`
}

// RelatedCounts tallies node types inside a dependency closure.
type RelatedCounts map[NodeType]int

// FocusRequest asks the renderer to center the camera on a node.
// A request with a higher Seq supersedes any earlier one.
type FocusRequest struct {
	NodeID   string   `json:"nodeId"`
	Position Position `json:"position"`
	Seq      uint64   `json:"seq"`
}

// ViewModel is everything a renderer needs to draw one mounted view.
type ViewModel struct {
	ViewID        string        `json:"viewId,omitempty"`
	Layout        string        `json:"layout,omitempty"`
	Scope         Scope         `json:"scope"`
	Nodes         []ViewNode    `json:"nodes"`
	Edges         []ViewEdge    `json:"edges"`
	ActiveFilters []string      `json:"activeFilters"`
	Selection     *string       `json:"selection"`
	RelatedCounts RelatedCounts `json:"relatedCounts"`
	Focus         *FocusRequest `json:"focus,omitempty"`
	Detail        *TopologyNode `json:"detail"`
	Fingerprint   string        `json:"fingerprint"`
	DroppedEdges  int           `json:"droppedEdges"`
	Revision      uint64        `json:"revision"`
}

// TopologySnapshot stores a canonical graph for history
type TopologySnapshot struct {
	ID          string    `json:"id" db:"id"`
	Layout      string    `json:"layout" db:"layout"`
	ScopeKind   string    `json:"scope_kind" db:"scope_kind"`
	ScopeID     string    `json:"scope_id" db:"scope_id"`
	ScopeLabel  string    `json:"scope_label,omitempty" db:"scope_label"`
	Fingerprint string    `json:"fingerprint" db:"fingerprint"`
	NodeCount   int       `json:"node_count" db:"node_count"`
	EdgeCount   int       `json:"edge_count" db:"edge_count"`
	Data        string    `json:"data,omitempty" db:"data"` // JSON serialized Graph
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
