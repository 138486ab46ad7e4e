// Package cli implements topoctl, an offline driver for topology views.
package cli

import (
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
)

type app struct {
	kubeconfig  string
	kubeContext string
	timeout     time.Duration

	stdout io.Writer
	stderr io.Writer
}

// NewRootCommand returns topoctl bound to the process stdio.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWithIO(os.Stdout, os.Stderr)
}

// NewRootCommandWithIO returns topoctl writing to out and errOut.
func NewRootCommandWithIO(out, errOut io.Writer) *cobra.Command {
	a := &app{stdout: out, stderr: errOut}

	cmd := &cobra.Command{
		Use:           "topoctl",
		Short:         "Inspect topology views without a server",
		Long:          "topoctl mounts a layout, applies filters and a selection, and prints the resulting view model.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	cmd.PersistentFlags().StringVar(&a.kubeconfig, "kubeconfig", "", "path to the kubeconfig file (enables the cluster layout)")
	cmd.PersistentFlags().StringVar(&a.kubeContext, "context", "", "kubeconfig context for the cluster layout")
	cmd.PersistentFlags().DurationVar(&a.timeout, "timeout", 30*time.Second, "timeout for cluster discovery")

	cmd.AddCommand(
		newViewCmd(a),
		newLayoutsCmd(a),
		newValidateCmd(a),
	)
	return cmd
}
