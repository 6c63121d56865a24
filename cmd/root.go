// Package cmd implements the certrag command line interface.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Execute builds the command tree and runs it; main defers here.
func Execute() {
	root := &cobra.Command{
		Use:          "certrag",
		Short:        "Retrieval augmented study assistant for certification material",
		SilenceUsage: true,
	}
	root.AddCommand(
		serveCMD(),
		askCMD(),
		searchCMD(),
		examCMD(),
		indexCMD(),
		corpusCMD(),
		evalCMD(),
		tokenCMD(),
	)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
