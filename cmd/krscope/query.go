package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/krscope/krscope/pkg/graph"
	"github.com/krscope/krscope/pkg/graphquery"
)

func newTraceCmd() *cobra.Command {
	var (
		direction string
		depth     int
		maxNodes  int
		format    string
	)

	cmd := &cobra.Command{
		Use:   "trace <graph> <node>",
		Short: "Extract the neighbourhood of a node as a graph document",
		Long: `Walks the graph from a node and writes the induced subgraph. Upstream follows
edges backwards to the nodes that feed the node's score; downstream follows
them forwards to the nodes it feeds.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(cmd.OutOrStdout(), traceOpts{
				graphPath: args[0],
				node:      args[1],
				direction: graphquery.Direction(direction),
				depth:     depth,
				maxNodes:  maxNodes,
				format:    graph.Format(format),
			})
		},
	}

	cmd.Flags().StringVar(&direction, "direction", string(graphquery.DirectionUpstream), "upstream, downstream or both")
	cmd.Flags().IntVar(&depth, "depth", 0, "Maximum hops (0 is unbounded)")
	cmd.Flags().IntVar(&maxNodes, "max-nodes", 0, "Stop once this many nodes are collected (0 is unbounded)")
	cmd.Flags().StringVar(&format, "format", string(graph.FormatYAML), "Document format: json or yaml")

	return cmd
}

type traceOpts struct {
	graphPath string
	node      string
	direction graphquery.Direction
	depth     int
	maxNodes  int
	format    graph.Format
}

func runTrace(out io.Writer, opts traceOpts) error {
	switch opts.direction {
	case graphquery.DirectionUpstream, graphquery.DirectionDownstream, graphquery.DirectionBoth:
	default:
		return fmt.Errorf("unknown direction %q", opts.direction)
	}

	g, err := graph.LoadGraph(opts.graphPath)
	if err != nil {
		return err
	}
	if !g.HasNode(opts.node) {
		return fmt.Errorf("node %s not found in %s", opts.node, opts.graphPath)
	}

	sub := graphquery.Neighbourhood(g, opts.node, opts.depth, opts.direction, opts.maxNodes)
	data, err := graph.Encode(sub.Graph(), opts.format)
	if err != nil {
		return err
	}
	if sub.Truncated {
		fmt.Fprintf(os.Stderr, "Warning: trace stopped at %d nodes\n", len(sub.Nodes))
	}
	_, err = out.Write(data)
	return err
}

func newPathCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "path <graph> <from> <to>",
		Short: "Show the shortest influence path between two nodes",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPath(cmd.OutOrStdout(), args[0], args[1], args[2], asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the path as JSON")

	return cmd
}

func runPath(out io.Writer, graphPath, from, to string, asJSON bool) error {
	g, err := graph.LoadGraph(graphPath)
	if err != nil {
		return err
	}

	p := graphquery.ShortestPath(g, from, to)
	if p == nil {
		return fmt.Errorf("no path from %s to %s", from, to)
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	}

	steps := make([]string, len(p.Path))
	for i, id := range p.Path {
		steps[i] = id
		if n := g.Nodes[id]; n != nil && n.Title != "" {
			steps[i] = fmt.Sprintf("%s (%s)", id, n.Title)
		}
	}
	fmt.Fprintln(out, strings.Join(steps, "\n  -> "))
	for _, e := range p.Edges {
		fmt.Fprintf(out, "  %s: %s -%s-> %s\n", e.ID, e.From, e.Kind, e.To)
	}
	return nil
}
