// Package relations derives typed edges between corpus nodes from shared
// concepts, category history and enrichment links. Extraction is a pure
// function of its input.
package relations

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nvandessel/corpus-graph/internal/models"
	"github.com/nvandessel/corpus-graph/internal/tagging"
)

// DefaultSupersedeConfidence is the confidence a newer node must exceed to
// supersede an older node in the same category.
const DefaultSupersedeConfidence = 0.8

// Options configures extraction.
type Options struct {
	// Vocabulary used to compute concepts. Nil means tagging.DefaultVocabulary().
	Vocabulary *tagging.Vocabulary

	// SupersedeConfidence is the exclusive lower bound on the newer node's
	// confidence for a supersedes edge.
	SupersedeConfidence float64
}

// DefaultOptions returns the standard extraction options.
func DefaultOptions() Options {
	return Options{
		Vocabulary:          tagging.DefaultVocabulary(),
		SupersedeConfidence: DefaultSupersedeConfidence,
	}
}

// Warning is a non-fatal problem found during extraction.
type Warning struct {
	NodeID  string `json:"node_id"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.NodeID, w.Message)
}

// Result is the output of Extract.
type Result struct {
	// Edges in deterministic order: relatedTo, then supersedes, then enriches.
	Edges    []models.Edge
	Warnings []Warning

	// Concepts holds the concepts computed for each node id.
	Concepts map[string][]string
}

// Extract derives every edge implied by nodes. Stored concepts on the input
// are ignored and recomputed from category and title. When two nodes share
// an id, the first one wins.
func Extract(nodes []models.Node, opts Options) Result {
	if opts.Vocabulary == nil {
		opts.Vocabulary = tagging.DefaultVocabulary()
	}

	unique := dedupeNodes(nodes)
	res := Result{Concepts: make(map[string][]string, len(unique))}
	for _, n := range unique {
		res.Concepts[n.ID] = opts.Vocabulary.Concepts(n.Category, n.Title)
	}

	res.Edges = append(res.Edges, relatedEdges(unique, res.Concepts)...)
	res.Edges = append(res.Edges, supersedeEdges(unique, opts.SupersedeConfidence)...)

	enriches, warnings := enrichEdges(unique)
	res.Edges = append(res.Edges, enriches...)
	res.Warnings = append(res.Warnings, warnings...)

	return res
}

func dedupeNodes(nodes []models.Node) []models.Node {
	seen := make(map[string]bool, len(nodes))
	out := make([]models.Node, 0, len(nodes))
	for _, n := range nodes {
		if n.ID == "" || seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		out = append(out, n)
	}
	return out
}

// relatedEdges emits one relatedTo edge per unordered pair of nodes that
// share at least one concept. The source is the node earlier in input order
// and the reason names the first shared concept in first-seen order.
func relatedEdges(nodes []models.Node, concepts map[string][]string) []models.Edge {
	var order []string
	members := make(map[string][]string)
	for _, n := range nodes {
		for _, c := range concepts[n.ID] {
			if _, ok := members[c]; !ok {
				order = append(order, c)
			}
			members[c] = append(members[c], n.ID)
		}
	}

	var edges []models.Edge
	seen := make(map[string]bool)
	for _, c := range order {
		ids := members[c]
		if len(ids) < 2 {
			continue
		}
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				e := models.Edge{
					Source:   ids[i],
					Target:   ids[j],
					Relation: models.RelationRelatedTo,
					Reason:   "shared concept: " + c,
				}
				if seen[e.Key()] {
					continue
				}
				seen[e.Key()] = true
				edges = append(edges, e)
			}
		}
	}
	return edges
}

// supersedeEdges walks nodes newest first. A node with confidence above the
// threshold supersedes the first strictly older node in the same non-empty
// category, then stops.
func supersedeEdges(nodes []models.Node, threshold float64) []models.Edge {
	sorted := make([]models.Node, len(nodes))
	copy(sorted, nodes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	var edges []models.Edge
	for i, newer := range sorted {
		category := normalizeCategory(newer.Category)
		if category == "" || newer.Confidence <= threshold {
			continue
		}
		for _, older := range sorted[i+1:] {
			if !older.CreatedAt.Before(newer.CreatedAt) {
				continue
			}
			if normalizeCategory(older.Category) != category {
				continue
			}
			edges = append(edges, models.Edge{
				Source:   newer.ID,
				Target:   older.ID,
				Relation: models.RelationSupersedes,
				Reason:   fmt.Sprintf("newer %s in category %s", strings.ToLower(string(newer.Type)), category),
			})
			break
		}
	}
	return edges
}

// enrichEdges links each enrichment to its source node. A source outside the
// node set yields a warning instead of an edge.
func enrichEdges(nodes []models.Node) ([]models.Edge, []Warning) {
	ids := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		ids[n.ID] = true
	}

	var edges []models.Edge
	var warnings []Warning
	for _, n := range nodes {
		if n.Type != models.NodeTypeEnrichment {
			continue
		}
		switch {
		case n.Source == "":
			warnings = append(warnings, Warning{NodeID: n.ID, Message: "enrichment has no source node"})
		case !ids[n.Source]:
			warnings = append(warnings, Warning{NodeID: n.ID, Message: fmt.Sprintf("source node %s not found", n.Source)})
		default:
			edges = append(edges, models.Edge{
				Source:   n.ID,
				Target:   n.Source,
				Relation: models.RelationEnriches,
				Reason:   "enrichment of " + n.Source,
			})
		}
	}
	return edges, warnings
}

func normalizeCategory(c string) string {
	return strings.ToLower(strings.TrimSpace(c))
}
