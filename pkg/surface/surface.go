// Package surface defines output rendering for krscope results.
// Implementations handle different output targets: terminal, Markdown, JSON.
package surface

import (
	"fmt"
	"io"

	"github.com/krscope/krscope/pkg/explain"
	"github.com/krscope/krscope/pkg/graph"
	"github.com/krscope/krscope/pkg/scoring"
)

// Report bundles everything a command may want to show about a graph.
// Only Graph is required; empty sections are skipped by every renderer.
type Report struct {
	Graph        *graph.Graph          `json:"-"`
	Result       *scoring.ScoreResult  `json:"score,omitempty"`
	Contributors []explain.Contributor `json:"contributors,omitempty"`
	Delta        *graph.Delta          `json:"delta,omitempty"`
	Issues       []graph.Issue         `json:"issues,omitempty"`
	Cycles       [][]string            `json:"cycles,omitempty"`
}

// Renderer produces formatted output from a Report.
type Renderer interface {
	// Render writes the formatted report to the writer.
	Render(w io.Writer, report *Report) error
}

// Output formats accepted by ForFormat.
const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

// ForFormat returns the renderer for a format name; "" means text.
func ForFormat(format string) (Renderer, error) {
	switch format {
	case "", FormatText:
		return &TerminalRenderer{}, nil
	case FormatJSON:
		return &JSONRenderer{}, nil
	case FormatMarkdown:
		return &MarkdownRenderer{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want %s, %s or %s)", format, FormatText, FormatJSON, FormatMarkdown)
	}
}

// title returns the display title of a node, falling back to its ID.
func title(g *graph.Graph, id string) string {
	if g != nil {
		if n, ok := g.Nodes[id]; ok && n != nil && n.Title != "" {
			return n.Title
		}
	}
	return id
}

func signed(f float64) string {
	if f > 0 {
		return fmt.Sprintf("+%.1f", f)
	}
	return fmt.Sprintf("%.1f", f)
}
