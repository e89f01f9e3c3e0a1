package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/krscope/krscope/pkg/graph"
	"github.com/krscope/krscope/pkg/scoring"
	"github.com/krscope/krscope/pkg/surface"
)

func newScoreCmd() *cobra.Command {
	var (
		outputFmt string
		save      bool
		maxNodes  int
	)

	cmd := &cobra.Command{
		Use:   "score <graph>",
		Short: "Score every node of a decision graph",
		Long: `Computes each node's own KR impact, propagates it along the graph's edges to a
fixed point, and prints per-node scores with the scenario score.`,
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
			if tr, ok := r.(*surface.TerminalRenderer); ok {
				tr.MaxNodes = maxNodes
			}
			return runScore(cmd.OutOrStdout(), scoreOpts{
				graphPath: args[0],
				engine:    scoring.NewEngine(cfg.EngineOptions()...),
				renderer:  r,
				save:      save,
			})
		},
	}

	cmd.Flags().StringVar(&outputFmt, "output", "", "Output format: text, json or markdown (default from config)")
	cmd.Flags().BoolVar(&save, "save", false, "Save the result for later use with explain --baseline")
	cmd.Flags().IntVar(&maxNodes, "max-nodes", 0, "Limit the text node table (0 shows all)")

	return cmd
}

type scoreOpts struct {
	graphPath string
	engine    *scoring.Engine
	renderer  surface.Renderer
	save      bool
}

func runScore(out io.Writer, opts scoreOpts) error {
	g, err := graph.LoadGraph(opts.graphPath)
	if err != nil {
		return err
	}

	result := opts.engine.Score(g)
	if !result.Diagnostics.Converged {
		fmt.Fprintf(os.Stderr, "Warning: scores did not converge after %d iterations\n", result.Diagnostics.Iterations)
	}

	if opts.save {
		path, err := saveScoreResult(opts.graphPath, result)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Score saved: %s\n", path)
	}

	if err := opts.renderer.Render(out, &surface.Report{Graph: g, Result: result}); err != nil {
		return fmt.Errorf("rendering: %w", err)
	}
	return nil
}
