package topology

import (
	"sync/atomic"

	"github.com/kubilitics/kubilitics-topology/internal/models"
)

// SelectionState is the state of the selection machine.
type SelectionState string

const (
	StateIdle    SelectionState = "idle"
	StateFocused SelectionState = "focused"
)

// StateOf returns the machine state for a selection id.
func StateOf(selected string) SelectionState {
	if selected == "" {
		return StateIdle
	}
	return StateFocused
}

// SelectionEvent is an input to the selection machine.
type SelectionEvent interface {
	isSelectionEvent()
}

// NodeClick selects a node.
type NodeClick struct {
	NodeID string
}

// PaneClick clears the selection.
type PaneClick struct{}

// FiltersChanged asks the machine to revalidate the selection against a new
// visible graph.
type FiltersChanged struct{}

func (NodeClick) isSelectionEvent()      {}
func (PaneClick) isSelectionEvent()      {}
func (FiltersChanged) isSelectionEvent() {}

// Transition is the outcome of one selection event. Detail and Focus are set
// only when the event enters the focused state.
type Transition struct {
	From      SelectionState
	To        SelectionState
	Selected  string
	Highlight HighlightResult
	Detail    *models.TopologyNode
	Focus     *models.FocusRequest
}

// SelectionController drives Idle/Focused transitions. Every transition
// recomputes the highlight from the visible graph it is given.
type SelectionController struct {
	focusSeq atomic.Uint64
}

// NewSelectionController creates a controller.
func NewSelectionController() *SelectionController {
	return &SelectionController{}
}

// Handle applies ev to the current selection. Clicking a node that is not in
// visible resets to idle.
func (c *SelectionController) Handle(current string, visible models.Graph, ev SelectionEvent) Transition {
	t := Transition{From: StateOf(current)}

	next := current
	switch e := ev.(type) {
	case NodeClick:
		next = e.NodeID
	case PaneClick:
		next = ""
	case FiltersChanged:
	}

	t.Highlight = Highlight(visible, next)
	t.Selected = t.Highlight.Selected
	t.To = StateOf(t.Selected)

	if click, ok := ev.(NodeClick); ok && t.Highlight.Valid {
		node := findByID(visible, click.NodeID)
		t.Detail = &node
		if node.Position != nil {
			t.Focus = &models.FocusRequest{
				NodeID:   node.ID,
				Position: *node.Position,
				Seq:      c.focusSeq.Add(1),
			}
		}
	}
	return t
}

func findByID(g models.Graph, id string) models.TopologyNode {
	for _, node := range g.Nodes {
		if node.ID == id {
			return node
		}
	}
	return models.TopologyNode{}
}
