package graph

import (
	"fmt"
	"math"
	"sort"
)

// Severity grades a lint issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue codes.
const (
	IssueDanglingEdge      = "dangling_edge"
	IssueIDMismatch        = "id_mismatch"
	IssueNilNode           = "nil_node"
	IssueInvalidImpact     = "invalid_impact"
	IssueUnknownNodeType   = "unknown_node_type"
	IssueUnknownEdgeKind   = "unknown_edge_kind"
	IssueSelfLoop          = "self_loop"
	IssueUnsupportedSchema = "unsupported_schema"
	IssueCycle             = "cycle"
)

// Issue is a non-fatal finding about a graph document. Scoring never
// depends on lint; the engine normalizes the same conditions silently.
type Issue struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Subject  string   `json:"subject,omitempty"` // node or edge ID
	Message  string   `json:"message"`
}

// HasErrors reports whether any issue has error severity.
func HasErrors(issues []Issue) bool {
	for _, is := range issues {
		if is.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Lint checks a graph for structurally odd input.
func Lint(g *Graph) []Issue {
	if g == nil {
		return nil
	}

	var issues []Issue
	add := func(sev Severity, code, subject, format string, args ...any) {
		issues = append(issues, Issue{Severity: sev, Code: code, Subject: subject, Message: fmt.Sprintf(format, args...)})
	}

	if g.SchemaVersion > CurrentSchemaVersion {
		add(SeverityError, IssueUnsupportedSchema, "", "schema version %d is newer than supported version %d", g.SchemaVersion, CurrentSchemaVersion)
	}

	for _, id := range g.NodeIDs() {
		n := g.Nodes[id]
		if n == nil {
			add(SeverityError, IssueNilNode, id, "node %s has no body", id)
			continue
		}
		if n.ID != id {
			add(SeverityError, IssueIDMismatch, id, "node keyed %s declares id %s", id, n.ID)
		}
		if !n.Type.Known() {
			add(SeverityWarning, IssueUnknownNodeType, id, "node %s has unknown type %q", id, n.Type)
		}
		for i, imp := range n.KRImpacts {
			if reason := impactProblem(imp); reason != "" {
				add(SeverityWarning, IssueInvalidImpact, id, "node %s impact #%d (%s): %s; counted as zero", id, i, imp.KRID, reason)
			}
		}
	}

	for _, id := range g.EdgeIDs() {
		e := g.Edges[id]
		if e.ID != id {
			add(SeverityError, IssueIDMismatch, id, "edge keyed %s declares id %s", id, e.ID)
		}
		if !g.HasNode(e.From) {
			add(SeverityError, IssueDanglingEdge, id, "edge %s references missing source %s", id, e.From)
		}
		if !g.HasNode(e.To) {
			add(SeverityError, IssueDanglingEdge, id, "edge %s references missing target %s", id, e.To)
		}
		if !e.Kind.Known() {
			add(SeverityWarning, IssueUnknownEdgeKind, id, "edge %s has unknown kind %q; it carries no weight", id, e.Kind)
		}
		if e.From == e.To && e.From != "" {
			add(SeverityWarning, IssueSelfLoop, id, "edge %s loops on %s", id, e.From)
		}
	}

	SortIssues(issues)
	return issues
}

// SortIssues orders issues by severity (errors first), code, subject, message.
func SortIssues(issues []Issue) {
	sort.SliceStable(issues, func(i, j int) bool {
		a, b := issues[i], issues[j]
		if a.Severity != b.Severity {
			return a.Severity == SeverityError
		}
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		if a.Subject != b.Subject {
			return a.Subject < b.Subject
		}
		return a.Message < b.Message
	})
}

func impactProblem(imp KRImpact) string {
	switch {
	case math.IsNaN(imp.DeltaP50) || math.IsInf(imp.DeltaP50, 0):
		return "non-finite delta_p50"
	case math.IsNaN(imp.Confidence) || math.IsInf(imp.Confidence, 0):
		return "non-finite confidence"
	case imp.Confidence < 0 || imp.Confidence > 1:
		return fmt.Sprintf("confidence %g outside [0,1]", imp.Confidence)
	}
	return ""
}
