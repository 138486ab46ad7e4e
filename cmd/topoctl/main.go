package main

import (
	"fmt"
	"os"

	"github.com/kubilitics/kubilitics-topology/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "topoctl:", err)
		os.Exit(1)
	}
}
