// Package graphindex materializes the graph document and its adjacency
// index from a node set and an edge list.
package graphindex

import (
	"slices"
	"time"

	"github.com/nvandessel/corpus-graph/internal/models"
)

// BuildInfo stamps a rebuilt document.
type BuildInfo struct {
	GeneratedBy string
	Now         time.Time
	BuildID     string
}

// Rebuild builds a graph document from nodes and edges. Nodes are deduplicated
// by id (first wins) and edges by identity, so calling it twice on the same
// input yields the same counts. Edges are kept even when an endpoint is
// missing; integrity validation reports those.
func Rebuild(nodes []models.Node, edges []models.Edge, info BuildInfo) *models.GraphDocument {
	now := info.Now
	if now.IsZero() {
		now = time.Now()
	}

	doc := &models.GraphDocument{
		Version:     models.GraphSchemaVersion,
		GeneratedBy: info.GeneratedBy,
		UpdatedAt:   now.UTC(),
		BuildID:     info.BuildID,
		Nodes:       make([]models.NodeSummary, 0, len(nodes)),
		Edges:       make([]models.Edge, 0, len(edges)),
	}

	seenNodes := make(map[string]bool, len(nodes))
	for i := range nodes {
		if seenNodes[nodes[i].ID] {
			continue
		}
		seenNodes[nodes[i].ID] = true
		doc.Nodes = append(doc.Nodes, nodes[i].Summarize())
	}

	seenEdges := make(map[string]bool, len(edges))
	for _, e := range edges {
		if seenEdges[e.Key()] {
			continue
		}
		seenEdges[e.Key()] = true
		doc.Edges = append(doc.Edges, e)
	}

	doc.Metadata = ComputeMetadata(doc)
	return doc
}

// ComputeMetadata recounts nodes, edges and per-relation totals.
// RelationTypes is always the full list of relations the extractor produces.
func ComputeMetadata(doc *models.GraphDocument) models.GraphMetadata {
	counts := make(map[models.Relation]int)
	for _, e := range doc.Edges {
		counts[e.Relation]++
	}
	return models.GraphMetadata{
		NodeCount:      len(doc.Nodes),
		EdgeCount:      len(doc.Edges),
		RelationTypes:  slices.Clone(models.Relations),
		RelationCounts: counts,
	}
}

// BuildAdjacency derives the adjacency index from a graph document. Every
// node gets an entry with empty outgoing and incoming maps. Edges whose
// endpoints are not in the document are skipped, so the index always has
// exactly one entry per node.
func BuildAdjacency(doc *models.GraphDocument) *models.AdjacencyIndex {
	adj := &models.AdjacencyIndex{
		Version:   models.GraphSchemaVersion,
		UpdatedAt: doc.UpdatedAt,
		Adjacency: make(map[string]models.AdjacencyEntry, len(doc.Nodes)),
	}

	for _, n := range doc.Nodes {
		adj.Adjacency[n.ID] = models.AdjacencyEntry{
			Outgoing: make(map[models.Relation][]string),
			Incoming: make(map[models.Relation][]string),
		}
	}

	indexed := 0
	for _, e := range doc.Edges {
		src, okSrc := adj.Adjacency[e.Source]
		tgt, okTgt := adj.Adjacency[e.Target]
		if !okSrc || !okTgt {
			continue
		}
		src.Outgoing[e.Relation] = append(src.Outgoing[e.Relation], e.Target)
		rev := models.ReverseRelation(e.Relation)
		tgt.Incoming[rev] = append(tgt.Incoming[rev], e.Source)
		indexed++
	}

	adj.Metadata = models.AdjacencyMetadata{
		NodeCount:      len(adj.Adjacency),
		EdgeCount:      indexed,
		GraphUpdatedAt: doc.UpdatedAt,
		BuildID:        doc.BuildID,
	}
	return adj
}

// Neighbors returns the ids adjacent to id through rel. Directed relations
// follow outgoing edges; their reverse labels (supersededBy, enrichedBy)
// follow incoming ones. relatedTo is the union of both directions. An empty
// rel returns every neighbor. Results are deduplicated and keep index order.
func Neighbors(adj *models.AdjacencyIndex, id string, rel models.Relation) []string {
	if adj == nil {
		return nil
	}
	entry, ok := adj.Adjacency[id]
	if !ok {
		return nil
	}

	var out []string
	seen := make(map[string]bool)
	add := func(ids []string) {
		for _, n := range ids {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}

	switch rel {
	case "":
		for _, r := range sortedRelations(entry.Outgoing) {
			add(entry.Outgoing[r])
		}
		for _, r := range sortedRelations(entry.Incoming) {
			add(entry.Incoming[r])
		}
	case models.RelationRelatedTo:
		add(entry.Outgoing[rel])
		add(entry.Incoming[rel])
	case models.RelationSupersededBy, models.RelationEnrichedBy:
		add(entry.Incoming[rel])
	default:
		add(entry.Outgoing[rel])
	}
	return out
}

func sortedRelations(m map[models.Relation][]string) []models.Relation {
	rels := make([]models.Relation, 0, len(m))
	for r := range m {
		rels = append(rels, r)
	}
	slices.Sort(rels)
	return rels
}

// NodesFromDocument reconstructs the extractor inputs from a document's node
// summaries, in document order.
func NodesFromDocument(doc *models.GraphDocument) []models.Node {
	if doc == nil {
		return nil
	}
	nodes := make([]models.Node, 0, len(doc.Nodes))
	for _, s := range doc.Nodes {
		nodes = append(nodes, s.ToNode())
	}
	return nodes
}

// Patch returns the node set for an incremental rebuild: the document's
// nodes with upserts replacing same-id entries, new ids added, and removals
// dropped. The result is in models.CompareListing order, the order a full
// rebuild reads nodes in, so both paths derive the same edges.
func Patch(doc *models.GraphDocument, upserts []models.Node, removals []string) []models.Node {
	removed := make(map[string]bool, len(removals))
	for _, id := range removals {
		removed[id] = true
	}
	pending := make(map[string]int, len(upserts))
	for i, n := range upserts {
		if _, dup := pending[n.ID]; !dup {
			pending[n.ID] = i
		}
	}

	var out []models.Node
	for _, n := range NodesFromDocument(doc) {
		if removed[n.ID] {
			continue
		}
		if i, ok := pending[n.ID]; ok {
			out = append(out, upserts[i])
			delete(pending, n.ID)
			continue
		}
		out = append(out, n)
	}
	for i, n := range upserts {
		if removed[n.ID] {
			continue
		}
		if j, ok := pending[n.ID]; ok && j == i {
			out = append(out, n)
			delete(pending, n.ID)
		}
	}
	slices.SortStableFunc(out, models.CompareListing)
	return out
}
