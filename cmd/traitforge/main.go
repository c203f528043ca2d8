// Command traitforge renders, inspects and serves procedurally generated
// character tokens.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "traitforge",
		Short: "Layered character token generator",
		Long: `traitforge composes character portraits from a tree of trait images,
deterministically from a token number, a guild, a gender and a seed.
Configuration is read from TRAITFORGE_* environment variables.`,
		SilenceUsage: true,
	}
	root.AddCommand(
		newRenderCmd(),
		newAttributesCmd(),
		newImportCmd(),
		newServeCmd(),
		newGrantCmd(),
		newVerifyCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
