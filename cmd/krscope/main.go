// Package main provides the krscope CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "krscope",
		Short: "Score and explain KR-impact decision graphs",
		Long: `krscope scores decision graphs of outcomes, problems and actions by their
expected key-result impact, and explains which nodes moved a score between two
versions of a graph.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("config", "", "Path to config file (default: discover .krscope/config.yaml)")

	rootCmd.AddCommand(
		newScoreCmd(),
		newExplainCmd(),
		newLintCmd(),
		newTraceCmd(),
		newPathCmd(),
	)

	return rootCmd
}
