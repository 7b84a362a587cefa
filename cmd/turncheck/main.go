// Command turncheck validates stored or exported chat turns offline and mints API tokens.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "turncheck",
		Short:        "Offline tools for ragchat conversations",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newTokenCmd())
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
