package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd is the base command for the wordtally binary.
var rootCmd = &cobra.Command{
	Use:   "wordtally",
	Short: "Word-count API backend",
	Long:  `wordtally serves the authenticated word-counter API and its supporting workers.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
