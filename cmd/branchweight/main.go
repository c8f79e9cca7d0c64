// Package main provides the entry point for the branchweight CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/branchweight/cmd/branchweight/commands"
	"github.com/Sumatoshi-tech/branchweight/pkg/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "branchweight",
		Short: "Branch object accounting for git repositories",
		Long: `Branchweight measures how much on-disk object storage each branch
holds hostage: for every branch not merged into the default branch it
reports the total, unique and shared size of the objects reachable only
from that branch.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewAnalyzeCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "branchweight %s (commit: %s, built: %s)\n",
				version.Version, version.Commit, version.Date)
		},
	}
}
