package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/krscope/krscope/pkg/explain"
	"github.com/krscope/krscope/pkg/graph"
	"github.com/krscope/krscope/pkg/scoring"
	"github.com/krscope/krscope/pkg/surface"
)

func newExplainCmd() *cobra.Command {
	var (
		outputFmt string
		baseline  string
		top       int
		changed   bool
	)

	cmd := &cobra.Command{
		Use:   "explain <before> <after> | explain --baseline <result> <after>",
		Short: "Explain which nodes moved the score between two graphs",
		Long: `Scores both graphs and ranks the nodes of the after graph by how much their
score changed, with the reasons for each change and the structural delta.
With --baseline the before side is a result saved by score --save.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if baseline != "" {
				return cobra.ExactArgs(1)(cmd, args)
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			r, err := renderer(outputFmt, cfg)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("top") {
				top = cfg.Output.Top
			}

			opts := explainOpts{
				baseline: baseline,
				engine:   scoring.NewEngine(cfg.EngineOptions()...),
				renderer: r,
				top:      top,
				changed:  changed,
			}
			if baseline != "" {
				opts.afterPath = args[0]
			} else {
				opts.beforePath, opts.afterPath = args[0], args[1]
			}
			return runExplain(cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&outputFmt, "output", "", "Output format: text, json or markdown (default from config)")
	cmd.Flags().StringVar(&baseline, "baseline", "", "Saved score result to compare against instead of a before graph")
	cmd.Flags().IntVar(&top, "top", 10, "Number of contributors to show (0 shows all)")
	cmd.Flags().BoolVar(&changed, "changed", false, "Only show nodes whose score or reasons changed")

	return cmd
}

type explainOpts struct {
	beforePath string
	afterPath  string
	baseline   string
	engine     *scoring.Engine
	renderer   surface.Renderer
	top        int
	changed    bool
}

func runExplain(out io.Writer, opts explainOpts) error {
	if opts.top < 0 {
		return errors.New("--top must not be negative")
	}

	after, err := graph.LoadGraph(opts.afterPath)
	if err != nil {
		return fmt.Errorf("after graph: %w", err)
	}
	afterResult := opts.engine.Score(after)

	var (
		beforeResult *scoring.ScoreResult
		delta        *graph.Delta
	)
	if opts.baseline != "" {
		beforeResult, err = loadScoreResult(opts.baseline)
		if err != nil {
			return err
		}
	} else {
		before, err := graph.LoadGraph(opts.beforePath)
		if err != nil {
			return fmt.Errorf("before graph: %w", err)
		}
		beforeResult = opts.engine.Score(before)
		delta = graph.ComputeDelta(before, after)
	}

	fmt.Fprintf(os.Stderr, "Scenario score: %.1f -> %.1f\n", beforeResult.ScenarioScore, afterResult.ScenarioScore)

	contributors := explain.TopContributors(beforeResult, afterResult, after)
	if opts.changed {
		contributors = explain.Changed(contributors)
	}

	report := &surface.Report{
		Graph:        after,
		Contributors: explain.Top(contributors, opts.top),
		Delta:        delta,
	}
	if err := opts.renderer.Render(out, report); err != nil {
		return fmt.Errorf("rendering: %w", err)
	}
	return nil
}
