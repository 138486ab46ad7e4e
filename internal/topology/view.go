package topology

import (
	"sync"

	"github.com/kubilitics/kubilitics-topology/internal/models"
)

// ViewState is all mutable input of a mounted view.
type ViewState struct {
	Scope     models.Scope
	Filters   FilterSet
	Selection string
}

// Project derives the view model for canonical under state. It is pure: the
// returned state has the selection cleared when the selected node is not
// visible under the active filters.
func Project(canonical models.Graph, state ViewState) (models.ViewModel, ViewState) {
	visible := ApplyFilters(canonical, state.Filters)
	hl := Highlight(visible, state.Selection)
	state.Selection = hl.Selected
	return build(canonical, visible, state, hl), state
}

func build(canonical, visible models.Graph, state ViewState, hl HighlightResult) models.ViewModel {
	nodes, edges := Annotate(visible, hl)
	vm := models.ViewModel{
		Scope:         state.Scope,
		Nodes:         nodes,
		Edges:         edges,
		ActiveFilters: state.Filters.Keys(),
		RelatedCounts: hl.Counts,
		Fingerprint:   Fingerprint(canonical),
	}
	if hl.Valid {
		sel := hl.Selected
		vm.Selection = &sel
		detail := findByID(visible, sel)
		vm.Detail = &detail
	}
	return vm
}

// View is one mounted topology view. Events are serialized so filter and
// selection changes apply in the order they arrive, and a click is always
// evaluated against the filters active when it is handled.
type View struct {
	ID     string
	Layout string

	mu       sync.Mutex
	store    *GraphStore
	state    ViewState
	ctrl     *SelectionController
	revision uint64
	last     models.ViewModel
}

// NewView creates an empty, unmounted view.
func NewView(id, layout string) *View {
	return &View{
		ID:     id,
		Layout: layout,
		store:  NewGraphStore(),
		ctrl:   NewSelectionController(),
	}
}

// Mount loads the canonical graph for scope and focuses the node the scope
// resolves to, if any. Active filters survive a remount.
func (v *View) Mount(scope models.Scope, g models.Graph) (models.ViewModel, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.store.Load(g); err != nil {
		return models.ViewModel{}, err
	}
	v.state.Scope = scope
	v.state.Selection = ""

	var ev SelectionEvent = PaneClick{}
	if target, ok := ResolveScope(scope, v.store.Snapshot()); ok {
		ev = NodeClick{NodeID: target}
	}
	return v.apply(ev), nil
}

// ToggleFilter flips key in the active filter set.
func (v *View) ToggleFilter(key string) models.ViewModel {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state.Filters = v.state.Filters.Clone()
	v.state.Filters.Toggle(key)
	return v.apply(FiltersChanged{})
}

// NodeClick selects id. A hidden or unknown id resets the selection.
func (v *View) NodeClick(id string) models.ViewModel {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.apply(NodeClick{NodeID: id})
}

// PaneClick clears the selection.
func (v *View) PaneClick() models.ViewModel {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.apply(PaneClick{})
}

// Current returns the last projected view model.
func (v *View) Current() models.ViewModel {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.last
}

// State returns a copy of the view state.
func (v *View) State() ViewState {
	v.mu.Lock()
	defer v.mu.Unlock()
	st := v.state
	st.Filters = st.Filters.Clone()
	return st
}

// Canonical returns the mounted canonical graph.
func (v *View) Canonical() models.Graph {
	return v.store.Snapshot()
}

// apply must be called with v.mu held.
func (v *View) apply(ev SelectionEvent) models.ViewModel {
	canonical := v.store.Snapshot()
	visible := ApplyFilters(canonical, v.state.Filters)
	t := v.ctrl.Handle(v.state.Selection, visible, ev)
	v.state.Selection = t.Selected

	vm := build(canonical, visible, v.state, t.Highlight)
	vm.ViewID = v.ID
	vm.Layout = v.Layout
	vm.Focus = t.Focus
	vm.DroppedEdges = len(v.store.Dropped())
	v.revision++
	vm.Revision = v.revision
	v.last = vm
	return vm
}
