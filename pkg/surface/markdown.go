package surface

import (
	"fmt"
	"io"
	"strings"

	"github.com/krscope/krscope/pkg/graph"
)

// MarkdownRenderer produces a Markdown summary suitable for pull request
// comments and CI job summaries.
type MarkdownRenderer struct{}

func (r *MarkdownRenderer) Render(w io.Writer, report *Report) error {
	_, err := io.WriteString(w, buildMarkdownSummary(report))
	return err
}

func buildMarkdownSummary(report *Report) string {
	var sb strings.Builder

	if res := report.Result; res != nil {
		sb.WriteString(fmt.Sprintf("## krscope: Scenario score %.1f\n\n", res.ScenarioScore))
		if !res.Diagnostics.Converged {
			sb.WriteString(fmt.Sprintf("> :warning: Scores did not converge after %d iterations (max delta %.2g).\n\n",
				res.Diagnostics.Iterations, res.Diagnostics.MaxDelta))
		}

		sb.WriteString("| Node | Type | Score | Own | Propagated |\n|------|------|-------|-----|------------|\n")
		for _, id := range rankNodes(res) {
			typ := ""
			if n := report.Graph; n != nil && n.Nodes[id] != nil {
				typ = string(n.Nodes[id].Type)
			}
			ex := res.Explain[id]
			sb.WriteString(fmt.Sprintf("| %s | %s | %.1f | %.1f | %s |\n",
				escapeCell(title(report.Graph, id)), typ, res.Total(id), ex.Own, signed(ex.FromChildren)))
		}
		sb.WriteString("\n")
	}

	if report.Contributors != nil {
		sb.WriteString("### Score Δ\n\n")
		if len(report.Contributors) == 0 {
			sb.WriteString("No score changes.\n")
		}
		for _, c := range report.Contributors {
			sb.WriteString(fmt.Sprintf("- **%s** (%s) %.1f → %.1f", escapeInline(c.Title), signed(c.Delta), c.BeforeTotal, c.Total))
			if len(c.Reasons) > 0 {
				sb.WriteString(": " + strings.Join(c.Reasons, ", "))
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	if d := report.Delta; d != nil && !d.Empty() {
		sb.WriteString("### Graph changes\n\n")
		sb.WriteString("| Change | Count |\n|--------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Added Nodes | %d |\n", d.Stats.AddedNodeCount))
		sb.WriteString(fmt.Sprintf("| Removed Nodes | %d |\n", d.Stats.RemovedNodeCount))
		sb.WriteString(fmt.Sprintf("| Changed Nodes | %d |\n", d.Stats.ChangedNodeCount))
		sb.WriteString(fmt.Sprintf("| Added Edges | %d |\n", d.Stats.AddedEdgeCount))
		sb.WriteString(fmt.Sprintf("| Removed Edges | %d |\n", d.Stats.RemovedEdgeCount))
		sb.WriteString("\n")
	}

	if len(report.Issues) > 0 {
		sb.WriteString("### Issues\n\n")
		const maxIssues = 20
		for i, is := range report.Issues {
			if i == maxIssues {
				sb.WriteString(fmt.Sprintf("_... and %d more issues_\n", len(report.Issues)-maxIssues))
				break
			}
			sb.WriteString(fmt.Sprintf("- %s `%s` %s\n", severityIcon(is.Severity), is.Code, is.Message))
		}
		sb.WriteString("\n")
	}

	if len(report.Cycles) > 0 {
		sb.WriteString("### Feedback loops\n\n")
		for _, c := range report.Cycles {
			sb.WriteString("- " + strings.Join(c, " ↔ ") + "\n")
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func severityIcon(sev graph.Severity) string {
	switch sev {
	case graph.SeverityError:
		return ":red_circle:"
	default:
		return ":yellow_circle:"
	}
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

var inlineEscaper = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "`", "\\`",
	"[", `\[`, "]", `\]`, "<", `\<`, ">", `\>`, "\n", " ",
)

// escapeInline neutralizes markdown emphasis, links and HTML in free text.
func escapeInline(s string) string {
	return inlineEscaper.Replace(s)
}
