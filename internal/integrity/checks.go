package integrity

import (
	"fmt"
	"maps"
	"slices"

	"github.com/nvandessel/corpus-graph/internal/models"
)

// Check names.
const (
	CheckOrphanEdges          = "orphan-edges"
	CheckDuplicateEdges       = "duplicate-edges"
	CheckDuplicateNodes       = "duplicate-nodes"
	CheckSelfLoops            = "self-loops"
	CheckMetadataCounts       = "metadata-counts"
	CheckAdjacencyConsistency = "adjacency-consistency"
)

// Check inspects a graph document and, when one is supplied, its adjacency
// index. adj may be nil.
type Check interface {
	Name() string
	Run(doc *models.GraphDocument, adj *models.AdjacencyIndex) []Issue
}

// orphanCheck reports edges with a missing endpoint.
type orphanCheck struct{}

func (orphanCheck) Name() string { return CheckOrphanEdges }

func (orphanCheck) Run(doc *models.GraphDocument, _ *models.AdjacencyIndex) []Issue {
	if doc == nil {
		return nil
	}
	ids := doc.NodeIDs()
	var issues []Issue
	for _, e := range doc.Edges {
		var missing []string
		if !ids[e.Source] {
			missing = append(missing, "source "+e.Source)
		}
		if !ids[e.Target] {
			missing = append(missing, "target "+e.Target)
		}
		if len(missing) == 0 {
			continue
		}
		msg := e.String() + ": missing " + missing[0]
		if len(missing) > 1 {
			msg += " and " + missing[1]
		}
		issues = append(issues, Issue{
			Check:    CheckOrphanEdges,
			Severity: SeverityError,
			Edge:     e.Key(),
			Message:  msg,
		})
	}
	return issues
}

// duplicateEdgeCheck reports edges sharing an identity.
type duplicateEdgeCheck struct{}

func (duplicateEdgeCheck) Name() string { return CheckDuplicateEdges }

func (duplicateEdgeCheck) Run(doc *models.GraphDocument, _ *models.AdjacencyIndex) []Issue {
	if doc == nil {
		return nil
	}
	seen := make(map[string]bool, len(doc.Edges))
	var issues []Issue
	for _, e := range doc.Edges {
		k := e.Key()
		if seen[k] {
			issues = append(issues, Issue{
				Check:    CheckDuplicateEdges,
				Severity: SeverityError,
				Edge:     k,
				Message:  "duplicate edge " + e.String(),
			})
			continue
		}
		seen[k] = true
	}
	return issues
}

// duplicateNodeCheck reports node ids listed more than once.
type duplicateNodeCheck struct{}

func (duplicateNodeCheck) Name() string { return CheckDuplicateNodes }

func (duplicateNodeCheck) Run(doc *models.GraphDocument, _ *models.AdjacencyIndex) []Issue {
	if doc == nil {
		return nil
	}
	seen := make(map[string]bool, len(doc.Nodes))
	var issues []Issue
	for _, n := range doc.Nodes {
		if seen[n.ID] {
			issues = append(issues, Issue{
				Check:    CheckDuplicateNodes,
				Severity: SeverityError,
				NodeID:   n.ID,
				Message:  "duplicate node " + n.ID,
			})
			continue
		}
		seen[n.ID] = true
	}
	return issues
}

// selfLoopCheck warns about edges from a node to itself.
type selfLoopCheck struct{}

func (selfLoopCheck) Name() string { return CheckSelfLoops }

func (selfLoopCheck) Run(doc *models.GraphDocument, _ *models.AdjacencyIndex) []Issue {
	if doc == nil {
		return nil
	}
	var issues []Issue
	for _, e := range doc.Edges {
		if e.Source == e.Target {
			issues = append(issues, Issue{
				Check:    CheckSelfLoops,
				Severity: SeverityWarning,
				NodeID:   e.Source,
				Edge:     e.Key(),
				Message:  "self loop " + e.String(),
			})
		}
	}
	return issues
}

// metadataCheck compares the stored counts with the document contents.
type metadataCheck struct{}

func (metadataCheck) Name() string { return CheckMetadataCounts }

func (metadataCheck) Run(doc *models.GraphDocument, _ *models.AdjacencyIndex) []Issue {
	if doc == nil {
		return nil
	}
	var issues []Issue
	add := func(msg string) {
		issues = append(issues, Issue{Check: CheckMetadataCounts, Severity: SeverityError, Message: msg})
	}

	if doc.Metadata.NodeCount != len(doc.Nodes) {
		add(fmt.Sprintf("node_count is %d but document has %d nodes", doc.Metadata.NodeCount, len(doc.Nodes)))
	}
	if doc.Metadata.EdgeCount != len(doc.Edges) {
		add(fmt.Sprintf("edge_count is %d but document has %d edges", doc.Metadata.EdgeCount, len(doc.Edges)))
	}
	if doc.Metadata.RelationCounts != nil {
		actual := relationCounts(doc.Edges)
		for _, rel := range sortedRelations(actual, doc.Metadata.RelationCounts) {
			if got, want := doc.Metadata.RelationCounts[rel], actual[rel]; got != want {
				add(fmt.Sprintf("relation_counts[%s] is %d but document has %d", rel, got, want))
			}
		}
	}
	return issues
}

// adjacencyCheck verifies the adjacency index describes the same node and
// edge set as the document. It is skipped when no index is supplied.
type adjacencyCheck struct{}

func (adjacencyCheck) Name() string { return CheckAdjacencyConsistency }

func (adjacencyCheck) Run(doc *models.GraphDocument, adj *models.AdjacencyIndex) []Issue {
	if doc == nil || adj == nil {
		return nil
	}
	var issues []Issue
	add := func(nodeID, msg string) {
		issues = append(issues, Issue{Check: CheckAdjacencyConsistency, Severity: SeverityError, NodeID: nodeID, Message: msg})
	}

	ids := doc.NodeIDs()
	if len(adj.Adjacency) != len(ids) {
		add("", fmt.Sprintf("adjacency has %d entries but graph has %d nodes", len(adj.Adjacency), len(ids)))
	}
	for _, n := range doc.Nodes {
		if _, ok := adj.Adjacency[n.ID]; !ok {
			add(n.ID, "node "+n.ID+" missing from adjacency")
		}
	}
	for _, id := range slices.Sorted(maps.Keys(adj.Adjacency)) {
		if !ids[id] {
			add(id, "adjacency entry "+id+" is not a graph node")
		}
	}

	// Edge multisets: from the document (resolvable edges only), from the
	// outgoing side and from the incoming side of the index.
	want := make(map[string]int)
	for _, e := range doc.Edges {
		if ids[e.Source] && ids[e.Target] {
			want[edgeTriple(e.Source, e.Relation, e.Target)]++
		}
	}
	outgoing := make(map[string]int)
	incoming := make(map[string]int)
	for id, entry := range adj.Adjacency {
		for rel, targets := range entry.Outgoing {
			for _, t := range targets {
				outgoing[edgeTriple(id, rel, t)]++
			}
		}
		for rev, sources := range entry.Incoming {
			rel := models.ReverseRelation(rev)
			for _, s := range sources {
				incoming[edgeTriple(s, rel, id)]++
			}
		}
	}

	for _, k := range diffKeys(want, outgoing) {
		add("", fmt.Sprintf("outgoing edges disagree with graph for %s (graph %d, adjacency %d)", k, want[k], outgoing[k]))
	}
	for _, k := range diffKeys(want, incoming) {
		add("", fmt.Sprintf("incoming edges disagree with graph for %s (graph %d, adjacency %d)", k, want[k], incoming[k]))
	}
	return issues
}

func edgeTriple(src string, rel models.Relation, tgt string) string {
	return src + " -[" + string(rel) + "]-> " + tgt
}

// diffKeys returns the sorted keys whose counts differ between a and b.
func diffKeys(a, b map[string]int) []string {
	var out []string
	for k, n := range a {
		if b[k] != n {
			out = append(out, k)
		}
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out
}

func relationCounts(edges []models.Edge) map[models.Relation]int {
	counts := make(map[models.Relation]int)
	for _, e := range edges {
		counts[e.Relation]++
	}
	return counts
}

func sortedRelations(a, b map[models.Relation]int) []models.Relation {
	set := make(map[models.Relation]bool, len(a)+len(b))
	for r := range a {
		set[r] = true
	}
	for r := range b {
		set[r] = true
	}
	return slices.Sorted(maps.Keys(set))
}
