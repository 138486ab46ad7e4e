package models

// ScopeKind is the granularity a view is focused at.
type ScopeKind string

const (
	ScopeGlobal    ScopeKind = "global"
	ScopeNamespace ScopeKind = "namespace"
	ScopeCluster   ScopeKind = "cluster"
	ScopePod       ScopeKind = "pod"
	ScopeNode      ScopeKind = "node"
)

// Valid reports whether k is a known scope kind.
func (k ScopeKind) Valid() bool {
	switch k {
	case ScopeGlobal, ScopeNamespace, ScopeCluster, ScopePod, ScopeNode:
		return true
	}
	return false
}

// Scope identifies what a view was mounted for. ID and Label are matched
// leniently against the canonical graph to pick an initial focus.
type Scope struct {
	Kind  ScopeKind `json:"kind"`
	ID    string    `json:"id,omitempty"`
	Label string    `json:"label,omitempty"`
}

// Key identifies the scope for caching and snapshot lookup. Label is part of
// it because providers may narrow the graph by label (a namespace name).
func (s Scope) Key() string {
	return string(s.Kind) + "|" + s.ID + "|" + s.Label
}
