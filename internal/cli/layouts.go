package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kubilitics/kubilitics-topology/internal/source"
)

func newLayoutsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "layouts",
		Short: "List available layouts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := a.registry()
			if err != nil {
				return err
			}
			for _, name := range r.Names() {
				p, _ := r.Get(name)
				if d, ok := p.(interface{ Description() string }); ok && d.Description() != "" {
					fmt.Fprintf(a.stdout, "%s\t%s\n", name, d.Description())
					continue
				}
				fmt.Fprintln(a.stdout, name)
			}
			return nil
		},
	}
}

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE...",
		Short: "Check layout fixture files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			failed := 0
			for _, path := range args {
				f, err := source.LoadFile(path)
				if err != nil {
					fmt.Fprintf(a.stderr, "%s: %v\n", path, err)
					failed++
					continue
				}
				fmt.Fprintf(a.stdout, "%s: ok (%s, %d nodes, %d edges)\n", path, f.Name, len(f.Nodes), len(f.Edges))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d fixtures invalid", failed, len(args))
			}
			return nil
		},
	}
}
