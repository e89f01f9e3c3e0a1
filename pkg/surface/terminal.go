package surface

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/krscope/krscope/pkg/graph"
	"github.com/krscope/krscope/pkg/scoring"
)

// TerminalRenderer renders a Report as colored terminal output.
type TerminalRenderer struct {
	// MaxNodes caps the node table; 0 shows every node.
	MaxNodes int
}

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
)

func scoreColor(score float64) string {
	if noColor() {
		return ""
	}
	switch {
	case score >= 66:
		return colorGreen
	case score >= 33:
		return colorYellow
	default:
		return colorRed
	}
}

func deltaColor(delta float64) string {
	switch {
	case delta > 0:
		return colorGreen
	case delta < 0:
		return colorRed
	default:
		return ""
	}
}

func noColor() bool {
	_, ok := os.LookupEnv("NO_COLOR")
	return ok
}

func bold(s string) string {
	if noColor() {
		return s
	}
	return colorBold + s + colorReset
}

func dim(s string) string {
	if noColor() {
		return s
	}
	return colorDim + s + colorReset
}

func colored(s, color string) string {
	if noColor() || color == "" {
		return s
	}
	return color + s + colorReset
}

func (r *TerminalRenderer) Render(w io.Writer, report *Report) error {
	if res := report.Result; res != nil {
		r.renderScore(w, report.Graph, res)
	}

	if report.Contributors != nil {
		if len(report.Contributors) == 0 {
			fmt.Fprintln(w, "No score changes.")
			fmt.Fprintln(w)
		} else {
			fmt.Fprintln(w, "Top contributors:")
			for _, c := range report.Contributors {
				fmt.Fprintf(w, "  (%s) %s %s",
					colored(signed(c.Delta), deltaColor(c.Delta)), bold(c.Title), dim("["+string(c.Type)+"]"))
				if len(c.Reasons) > 0 {
					fmt.Fprintf(w, " - %s", strings.Join(c.Reasons, ", "))
				}
				fmt.Fprintln(w)
				fmt.Fprintf(w, "         %s\n", dim(fmt.Sprintf("%.1f -> %.1f", c.BeforeTotal, c.Total)))
			}
			fmt.Fprintln(w)
		}
	}

	if d := report.Delta; d != nil {
		fmt.Fprintf(w, "Graph changes: %d added nodes / %d removed nodes / %d changed nodes / %d added edges / %d removed edges\n",
			d.Stats.AddedNodeCount, d.Stats.RemovedNodeCount, d.Stats.ChangedNodeCount, d.Stats.AddedEdgeCount, d.Stats.RemovedEdgeCount)
		for _, nc := range d.ChangedNodes {
			fmt.Fprintf(w, "  ~ %s %s\n", title(report.Graph, nc.ID), dim("("+strings.Join(nc.Fields, ", ")+")"))
		}
		fmt.Fprintln(w)
	}

	if report.Issues != nil {
		if len(report.Issues) == 0 {
			fmt.Fprintln(w, "No issues.")
		} else {
			fmt.Fprintln(w, "Issues:")
			for _, is := range report.Issues {
				color := colorYellow
				if is.Severity == graph.SeverityError {
					color = colorRed
				}
				fmt.Fprintf(w, "  %s %s %s\n", colored("●", color), bold(is.Code), dim(is.Subject))
				for _, line := range wrapText(is.Message, 70) {
					fmt.Fprintf(w, "    %s\n", line)
				}
			}
		}
		fmt.Fprintln(w)
	}

	if len(report.Cycles) > 0 {
		fmt.Fprintln(w, "Feedback loops:")
		for _, c := range report.Cycles {
			names := make([]string, len(c))
			for i, id := range c {
				names[i] = title(report.Graph, id)
			}
			fmt.Fprintf(w, "  ↻ %s\n", strings.Join(names, ", "))
		}
		fmt.Fprintln(w)
	}

	return nil
}

func (r *TerminalRenderer) renderScore(w io.Writer, g *graph.Graph, res *scoring.ScoreResult) {
	fmt.Fprintf(w, "%s\n",
		bold(fmt.Sprintf("krscope: Scenario score %s",
			colored(fmt.Sprintf("%.1f", res.ScenarioScore), scoreColor(res.ScenarioScore)))))

	diag := res.Diagnostics
	if diag.Converged {
		fmt.Fprintf(w, "%s\n", dim(fmt.Sprintf("Converged after %d iterations", diag.Iterations)))
	} else {
		fmt.Fprintf(w, "%s\n", colored(fmt.Sprintf("Did not converge after %d iterations (max delta %.2g); showing last iterate",
			diag.Iterations, diag.MaxDelta), colorYellow))
	}
	if n := len(diag.IgnoredEdges); n > 0 {
		fmt.Fprintf(w, "%s\n", dim(fmt.Sprintf("Ignored %d dangling edges: %s", n, strings.Join(diag.IgnoredEdges, ", "))))
	}
	if diag.NormalizedImpacts > 0 {
		fmt.Fprintf(w, "%s\n", dim(fmt.Sprintf("Counted %d unusable KR impacts as zero", diag.NormalizedImpacts)))
	}
	fmt.Fprintln(w)

	ids := rankNodes(res)
	if len(ids) == 0 {
		fmt.Fprintln(w, "No nodes.")
		fmt.Fprintln(w)
		return
	}

	fmt.Fprintln(w, "Nodes:")
	shown := ids
	if r.MaxNodes > 0 && len(shown) > r.MaxNodes {
		shown = shown[:r.MaxNodes]
	}
	for _, id := range shown {
		total := res.Total(id)
		ex := res.Explain[id]
		typ := ""
		if g != nil && g.Nodes[id] != nil {
			typ = string(g.Nodes[id].Type)
		}
		fmt.Fprintf(w, "  %s  %s %s\n", colored(fmt.Sprintf("%5.1f", total), scoreColor(total)), bold(title(g, id)), dim("["+typ+"]"))
		fmt.Fprintf(w, "         %s\n", dim(fmt.Sprintf("own %.1f, propagated %s", ex.Own, signed(ex.FromChildren))))
	}
	if len(shown) < len(ids) {
		fmt.Fprintf(w, "  %s\n", dim(fmt.Sprintf("... and %d more", len(ids)-len(shown))))
	}
	fmt.Fprintln(w)
}

// rankNodes orders scored nodes by total descending, then ID.
func rankNodes(res *scoring.ScoreResult) []string {
	ids := make([]string, 0, len(res.PerNode))
	for id := range res.PerNode {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := res.Total(ids[i]), res.Total(ids[j])
		if a != b {
			return a > b
		}
		return ids[i] < ids[j]
	})
	return ids
}

// wrapText wraps a string at the given width, returning lines.
func wrapText(s string, width int) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	current := words[0]

	for _, word := range words[1:] {
		if len(current)+1+len(word) > width {
			lines = append(lines, current)
			current = word
		} else {
			current += " " + word
		}
	}
	lines = append(lines, current)
	return lines
}
