// Package integrity checks graph documents for consistency before they are
// saved. Checks only report; repairs are done by fixers, and only when asked.
package integrity

import (
	"fmt"
	"strings"

	"github.com/nvandessel/corpus-graph/internal/models"
)

// Severity grades an issue. Only errors make a document invalid.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one problem found by a check.
type Issue struct {
	Check    string   `json:"check"`
	Severity Severity `json:"severity"`
	NodeID   string   `json:"node_id,omitempty"`
	Edge     string   `json:"edge,omitempty"`
	Message  string   `json:"message"`
}

// String returns a human-readable description of the issue.
func (i Issue) String() string {
	return fmt.Sprintf("[%s] %s: %s", i.Severity, i.Check, i.Message)
}

// Result is the outcome of validating a graph document.
type Result struct {
	Valid       bool     `json:"valid"`
	OrphanEdges []string `json:"orphan_edges"`
	Issues      []Issue  `json:"issues,omitempty"`
}

// Errors returns the number of error-severity issues.
func (r Result) Errors() int {
	n := 0
	for _, is := range r.Issues {
		if is.Severity == SeverityError {
			n++
		}
	}
	return n
}

// Summary renders the result on one line.
func (r Result) Summary() string {
	if r.Valid && len(r.Issues) == 0 {
		return "graph is valid"
	}
	var parts []string
	if len(r.OrphanEdges) > 0 {
		parts = append(parts, fmt.Sprintf("%d orphan edge(s)", len(r.OrphanEdges)))
	}
	if other := r.Errors() - len(r.OrphanEdges); other > 0 {
		parts = append(parts, fmt.Sprintf("%d other error(s)", other))
	}
	if warn := len(r.Issues) - r.Errors(); warn > 0 {
		parts = append(parts, fmt.Sprintf("%d warning(s)", warn))
	}
	state := "invalid"
	if r.Valid {
		state = "valid"
	}
	return fmt.Sprintf("graph is %s: %s", state, strings.Join(parts, ", "))
}

// Validate checks referential integrity: every edge's source and target must
// be a node of doc. Violations are listed, never repaired.
func Validate(doc *models.GraphDocument) Result {
	issues := orphanCheck{}.Run(doc, nil)
	return newResult(issues)
}

func newResult(issues []Issue) Result {
	r := Result{Valid: true, OrphanEdges: []string{}, Issues: issues}
	for _, is := range issues {
		if is.Severity == SeverityError {
			r.Valid = false
		}
		if is.Check == CheckOrphanEdges {
			r.OrphanEdges = append(r.OrphanEdges, is.Message)
		}
	}
	return r
}
