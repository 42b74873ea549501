package integrity

import (
	"errors"
	"fmt"
	"maps"

	"github.com/nvandessel/corpus-graph/internal/graphindex"
	"github.com/nvandessel/corpus-graph/internal/models"
)

// Fixer names.
const (
	FixPruneOrphanEdges = "prune-orphan-edges"
	FixDedupeEdges      = "dedupe-edges"
	FixRecountMetadata  = "recount-metadata"
)

// Fixer repairs one class of problem in place.
type Fixer interface {
	Name() string
	Fix(doc *models.GraphDocument) (FixResult, error)
}

// FixResult reports what a fixer changed.
type FixResult struct {
	Fixer   string   `json:"fixer"`
	Changed int      `json:"changed"`
	Details []string `json:"details,omitempty"`
}

// Registry holds the checks run by Run and the fixers run by Fix, in
// registration order.
type Registry struct {
	checks []Check
	fixers []Fixer
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// DefaultRegistry returns a registry with every built-in check and fixer.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(orphanCheck{})
	r.Register(duplicateEdgeCheck{})
	r.Register(duplicateNodeCheck{})
	r.Register(selfLoopCheck{})
	r.Register(metadataCheck{})
	r.Register(adjacencyCheck{})

	r.RegisterFixer(pruneOrphansFixer{})
	r.RegisterFixer(dedupeEdgesFixer{})
	r.RegisterFixer(recountFixer{})
	return r
}

// Register adds a check. A check with the same name replaces the earlier one.
func (r *Registry) Register(c Check) {
	for i, existing := range r.checks {
		if existing.Name() == c.Name() {
			r.checks[i] = c
			return
		}
	}
	r.checks = append(r.checks, c)
}

// RegisterFixer adds a fixer. A fixer with the same name replaces the earlier one.
func (r *Registry) RegisterFixer(f Fixer) {
	for i, existing := range r.fixers {
		if existing.Name() == f.Name() {
			r.fixers[i] = f
			return
		}
	}
	r.fixers = append(r.fixers, f)
}

// Checks returns the registered check names.
func (r *Registry) Checks() []string {
	names := make([]string, len(r.checks))
	for i, c := range r.checks {
		names[i] = c.Name()
	}
	return names
}

// Fixers returns the registered fixer names.
func (r *Registry) Fixers() []string {
	names := make([]string, len(r.fixers))
	for i, f := range r.fixers {
		names[i] = f.Name()
	}
	return names
}

// Run executes every check against doc and adj (adj may be nil) and
// collects the issues. It never modifies its inputs.
func (r *Registry) Run(doc *models.GraphDocument, adj *models.AdjacencyIndex) Result {
	var issues []Issue
	for _, c := range r.checks {
		issues = append(issues, c.Run(doc, adj)...)
	}
	return newResult(issues)
}

// Fix runs every fixer against doc in order. It stops at the first fixer
// that fails; results of the fixers that ran are still returned.
func (r *Registry) Fix(doc *models.GraphDocument) ([]FixResult, error) {
	if doc == nil {
		return nil, errors.New("no graph document to fix")
	}
	results := make([]FixResult, 0, len(r.fixers))
	for _, f := range r.fixers {
		res, err := f.Fix(doc)
		if err != nil {
			return results, fmt.Errorf("fixer %s failed: %w", f.Name(), err)
		}
		res.Fixer = f.Name()
		results = append(results, res)
	}
	return results, nil
}

// pruneOrphansFixer drops edges with a missing endpoint.
type pruneOrphansFixer struct{}

func (pruneOrphansFixer) Name() string { return FixPruneOrphanEdges }

func (pruneOrphansFixer) Fix(doc *models.GraphDocument) (FixResult, error) {
	ids := doc.NodeIDs()
	var res FixResult
	kept := doc.Edges[:0]
	for _, e := range doc.Edges {
		if ids[e.Source] && ids[e.Target] {
			kept = append(kept, e)
			continue
		}
		res.Changed++
		res.Details = append(res.Details, "removed "+e.String())
	}
	doc.Edges = kept
	return res, nil
}

// dedupeEdgesFixer keeps the first edge of every identity.
type dedupeEdgesFixer struct{}

func (dedupeEdgesFixer) Name() string { return FixDedupeEdges }

func (dedupeEdgesFixer) Fix(doc *models.GraphDocument) (FixResult, error) {
	seen := make(map[string]bool, len(doc.Edges))
	var res FixResult
	kept := doc.Edges[:0]
	for _, e := range doc.Edges {
		if seen[e.Key()] {
			res.Changed++
			res.Details = append(res.Details, "removed duplicate "+e.String())
			continue
		}
		seen[e.Key()] = true
		kept = append(kept, e)
	}
	doc.Edges = kept
	return res, nil
}

// recountFixer recomputes the document metadata.
type recountFixer struct{}

func (recountFixer) Name() string { return FixRecountMetadata }

func (recountFixer) Fix(doc *models.GraphDocument) (FixResult, error) {
	next := graphindex.ComputeMetadata(doc)
	prev := doc.Metadata
	doc.Metadata = next

	if prev.NodeCount == next.NodeCount && prev.EdgeCount == next.EdgeCount &&
		maps.Equal(prev.RelationCounts, next.RelationCounts) {
		return FixResult{}, nil
	}
	return FixResult{
		Changed: 1,
		Details: []string{fmt.Sprintf("metadata recounted: %d nodes, %d edges", next.NodeCount, next.EdgeCount)},
	}, nil
}
