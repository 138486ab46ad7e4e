package topology

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/kubilitics/kubilitics-topology/internal/models"
)

// ErrDuplicateNodeID is returned by Load when two nodes share an id.
var ErrDuplicateNodeID = errors.New("duplicate node id")

// GraphStore holds the canonical graph for the current scope. The stored
// graph is replaced wholesale and never mutated in place, so a reader that
// took a Snapshot keeps a consistent view.
type GraphStore struct {
	mu      sync.RWMutex
	graph   models.Graph
	index   map[string]int // node id -> position in graph.Nodes
	dropped []models.TopologyEdge
}

// NewGraphStore creates an empty store.
func NewGraphStore() *GraphStore {
	return &GraphStore{index: map[string]int{}}
}

// Load replaces the canonical graph. Edges whose endpoints are missing are
// dropped and reported by Dropped. Duplicate node ids reject the whole graph
// and leave the previous one in place.
func (s *GraphStore) Load(g models.Graph) error {
	index := make(map[string]int, len(g.Nodes))
	for i, node := range g.Nodes {
		if _, exists := index[node.ID]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateNodeID, node.ID)
		}
		index[node.ID] = i
	}

	clean := g.Clone()
	edges := clean.Edges[:0]
	var dropped []models.TopologyEdge
	for _, edge := range clean.Edges {
		_, srcOK := index[edge.Source]
		_, tgtOK := index[edge.Target]
		if !srcOK || !tgtOK {
			dropped = append(dropped, edge)
			continue
		}
		edges = append(edges, edge)
	}
	clean.Edges = edges

	s.mu.Lock()
	defer s.mu.Unlock()
	s.graph = clean
	s.index = index
	s.dropped = dropped
	return nil
}

// Snapshot returns a copy of the canonical graph.
func (s *GraphStore) Snapshot() models.Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.graph.Clone()
}

// Node retrieves a node by ID
func (s *GraphStore) Node(id string) (models.TopologyNode, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return models.TopologyNode{}, false
	}
	return s.graph.Nodes[i], true
}

// Dropped returns the dangling edges discarded by the last Load.
func (s *GraphStore) Dropped() []models.TopologyEdge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.TopologyEdge, len(s.dropped))
	copy(out, s.dropped)
	return out
}

// NodesByType returns all canonical nodes of a given type.
func (s *GraphStore) NodesByType(t models.NodeType) []models.TopologyNode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []models.TopologyNode
	for _, node := range s.graph.Nodes {
		if node.Type == t {
			result = append(result, node)
		}
	}
	return result
}

// Fingerprint returns a deterministic hash of the graph structure. Node and
// edge order does not affect the result.
func Fingerprint(g models.Graph) string {
	sortedNodes := make([]string, len(g.Nodes))
	for i, node := range g.Nodes {
		sortedNodes[i] = fmt.Sprintf("%s:%s:%s:%s", node.ID, node.Type, node.Label, node.SubLabel)
	}
	sort.Strings(sortedNodes)

	sortedEdges := make([]string, len(g.Edges))
	for i, edge := range g.Edges {
		sortedEdges[i] = fmt.Sprintf("%s:%s->%s", edge.ID, edge.Source, edge.Target)
	}
	sort.Strings(sortedEdges)

	data := struct {
		Nodes []string
		Edges []string
	}{
		Nodes: sortedNodes,
		Edges: sortedEdges,
	}

	jsonData, _ := json.Marshal(data)
	hash := sha256.Sum256(jsonData)
	return fmt.Sprintf("%x", hash)
}

// nodeSet returns the ids of g's nodes.
func nodeSet(g models.Graph) map[string]struct{} {
	set := make(map[string]struct{}, len(g.Nodes))
	for _, node := range g.Nodes {
		set[node.ID] = struct{}{}
	}
	return set
}
