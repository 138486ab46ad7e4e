package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/kubilitics/kubilitics-topology/internal/models"
	"github.com/kubilitics/kubilitics-topology/internal/source"
	"github.com/kubilitics/kubilitics-topology/internal/topology"
)

type viewOptions struct {
	layout   string
	fixture  string
	scope    string
	id       string
	label    string
	filters  []string
	selectID string
	output   string
}

func newViewCmd(a *app) *cobra.Command {
	o := &viewOptions{}
	cmd := &cobra.Command{
		Use:   "view",
		Short: "Mount a layout and print the projected view",
		Long: `Mount a layout for a scope, toggle filters in order, optionally select a
node, and print the resulting view model.

Examples:

  # Dependencies of pod-1 in a fixture
  topoctl view --fixture demo.yaml --select pod-1 -o json

  # Default namespace only, app filter, focused on a pod
  topoctl view --layout stack --scope pod --id pod-frontend-1 --filter ns:default --filter app:web`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			vm, err := a.runView(cmd.Context(), o)
			if err != nil {
				return err
			}
			return writeView(a.stdout, vm, o.output)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.layout, "layout", "stack", "registered layout to mount")
	f.StringVar(&o.fixture, "fixture", "", "layout fixture file; overrides --layout")
	f.StringVar(&o.scope, "scope", string(models.ScopeGlobal), "scope kind: global, namespace, cluster, pod or node")
	f.StringVar(&o.id, "id", "", "scope target id")
	f.StringVar(&o.label, "label", "", "scope target label")
	f.StringArrayVar(&o.filters, "filter", nil, "filter key to toggle, e.g. ns:default or app:web (repeatable)")
	f.StringVar(&o.selectID, "select", "", "node id to select after filtering")
	f.StringVarP(&o.output, "output", "o", "summary", "output format: summary, json or yaml")
	return cmd
}

func (a *app) runView(ctx context.Context, o *viewOptions) (models.ViewModel, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	scope := models.Scope{Kind: models.ScopeKind(o.scope), ID: o.id, Label: o.label}
	if !scope.Kind.Valid() {
		return models.ViewModel{}, fmt.Errorf("unknown scope %q", o.scope)
	}

	var provider source.Provider
	if o.fixture != "" {
		f, err := source.LoadFile(o.fixture)
		if err != nil {
			return models.ViewModel{}, err
		}
		provider = source.NewFixtureProvider(f)
	} else {
		r, err := a.registry()
		if err != nil {
			return models.ViewModel{}, err
		}
		if provider, err = r.Get(o.layout); err != nil {
			return models.ViewModel{}, err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	g, err := provider.GenerateLayout(ctx, scope)
	if err != nil {
		return models.ViewModel{}, fmt.Errorf("generate %s layout: %w", provider.Name(), err)
	}

	view := topology.NewView("topoctl", provider.Name())
	vm, err := view.Mount(scope, g)
	if err != nil {
		return models.ViewModel{}, err
	}
	for _, key := range o.filters {
		vm = view.ToggleFilter(key)
	}
	if o.selectID != "" {
		vm = view.NodeClick(o.selectID)
		if vm.Selection == nil {
			return vm, fmt.Errorf("node %q is not visible", o.selectID)
		}
	}
	return vm, nil
}

func writeView(w io.Writer, vm models.ViewModel, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(vm)
	case "yaml", "yml":
		data, err := yaml.Marshal(vm)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	case "summary", "":
		writeSummary(w, vm)
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want summary, json or yaml)", format)
	}
}

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	relatedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(topology.HighlightColor))
	dimStyle     = lipgloss.NewStyle().Faint(true)
)

func writeSummary(w io.Writer, vm models.ViewModel) {
	scope := string(vm.Scope.Kind)
	if target := vm.Scope.ID + vm.Scope.Label; target != "" {
		scope += "/" + target
	}
	fmt.Fprintf(w, "%s %s  %s %s  %s %s\n",
		headerStyle.Render("Layout:"), vm.Layout,
		headerStyle.Render("Scope:"), scope,
		headerStyle.Render("Nodes:"), fmt.Sprintf("%d visible, %d edges", len(vm.Nodes), len(vm.Edges)))
	if len(vm.ActiveFilters) > 0 {
		fmt.Fprintf(w, "%s %s\n", headerStyle.Render("Filters:"), strings.Join(vm.ActiveFilters, ", "))
	}
	if vm.DroppedEdges > 0 {
		fmt.Fprintf(w, "%s %d dangling edges dropped\n", headerStyle.Render("Warning:"), vm.DroppedEdges)
	}
	if vm.Selection == nil {
		fmt.Fprintf(w, "%s none\n", headerStyle.Render("Selected:"))
	} else {
		fmt.Fprintf(w, "%s %s  related: %s\n", headerStyle.Render("Selected:"), *vm.Selection, formatCounts(vm.RelatedCounts))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render("NODES"))
	for _, n := range vm.Nodes {
		line := fmt.Sprintf("  %-28s %-10s %s", n.ID, n.Type, n.Label)
		if vm.Selection != nil && !n.Visual.Grayscale {
			line = relatedStyle.Render(line)
		} else if n.Visual.Grayscale {
			line = dimStyle.Render(line)
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render("EDGES"))
	for _, e := range vm.Edges {
		line := fmt.Sprintf("  %s -> %s", e.Source, e.Target)
		if e.Label != "" {
			line += " (" + e.Label + ")"
		}
		if vm.Selection != nil && e.Visual.StrokeColor == topology.HighlightColor {
			line = relatedStyle.Render(line)
		} else if vm.Selection != nil {
			line = dimStyle.Render(line)
		}
		fmt.Fprintln(w, line)
	}
}

func formatCounts(c models.RelatedCounts) string {
	if len(c) == 0 {
		return "none"
	}
	keys := make([]string, 0, len(c))
	for t := range c {
		keys = append(keys, string(t))
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, c[models.NodeType(k)]))
	}
	return strings.Join(parts, " ")
}
