package main

import "github.com/spf13/cobra"

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "interviewctl",
		Short:        "Run system design interviews from the terminal",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newAnalyzeCmd(),
	)

	return rootCmd
}
