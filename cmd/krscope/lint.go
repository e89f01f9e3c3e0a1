package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/krscope/krscope/pkg/graph"
	"github.com/krscope/krscope/pkg/graphquery"
	"github.com/krscope/krscope/pkg/surface"
)

func newLintCmd() *cobra.Command {
	var outputFmt string

	cmd := &cobra.Command{
		Use:   "lint <graph>",
		Short: "Check a decision graph for structural problems",
		Long: `Reports dangling edges, unknown node types and edge kinds, unusable KR impacts
and feedback loops. Exits non-zero when any error-severity issue is found.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			r, err := renderer(outputFmt, cfg)
			if err != nil {
				return err
			}
			return runLint(cmd.OutOrStdout(), args[0], r)
		},
	}

	cmd.Flags().StringVar(&outputFmt, "output", "", "Output format: text, json or markdown (default from config)")

	return cmd
}

func runLint(out io.Writer, graphPath string, r surface.Renderer) error {
	g, err := graph.LoadGraph(graphPath)
	if err != nil {
		return err
	}

	issues := append(graph.Lint(g), graphquery.CycleIssues(g)...)
	graph.SortIssues(issues)
	if issues == nil {
		issues = []graph.Issue{}
	}

	report := &surface.Report{
		Graph:  g,
		Issues: issues,
		Cycles: graphquery.StronglyConnected(g),
	}
	if err := r.Render(out, report); err != nil {
		return fmt.Errorf("rendering: %w", err)
	}

	if graph.HasErrors(issues) {
		n := 0
		for _, is := range issues {
			if is.Severity == graph.SeverityError {
				n++
			}
		}
		return fmt.Errorf("lint found %d error(s) in %s", n, graphPath)
	}
	return nil
}
