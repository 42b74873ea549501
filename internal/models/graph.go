package models

import "time"

// GraphSchemaVersion is the fixed schema version of the graph and adjacency
// documents. It changes only when the document layout changes.
const GraphSchemaVersion = "1.0"

// NodeSummary is the per-node record kept in the graph document. It carries
// every field the relation extractor needs so incremental rebuilds can run
// from the document alone.
type NodeSummary struct {
	ID         string    `json:"id"`
	Type       NodeType  `json:"type"`
	Title      string    `json:"title"`
	Status     string    `json:"status,omitempty"`
	Category   string    `json:"category,omitempty"`
	Confidence float64   `json:"confidence"`
	Concepts   []string  `json:"concepts,omitempty"`
	Source     string    `json:"source,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	DecayScore float64   `json:"decay_score"`
}

// ToNode expands a summary back into a Node with the extractor-relevant fields set.
func (s NodeSummary) ToNode() Node {
	concepts := make([]string, len(s.Concepts))
	copy(concepts, s.Concepts)
	return Node{
		ID:         s.ID,
		Type:       s.Type,
		Title:      s.Title,
		Status:     s.Status,
		Category:   s.Category,
		Confidence: s.Confidence,
		Concepts:   concepts,
		Source:     s.Source,
		CreatedAt:  s.CreatedAt,
		Decay:      DecayMetadata{DecayScore: s.DecayScore},
	}
}

// GraphMetadata summarizes a graph document.
type GraphMetadata struct {
	NodeCount      int              `json:"node_count"`
	EdgeCount      int              `json:"edge_count"`
	RelationTypes  []Relation       `json:"relation_types"`
	RelationCounts map[Relation]int `json:"relation_counts,omitempty"`
}

// GraphDocument is the materialized snapshot of nodes and edges. It is owned
// by the graph index and is rebuilt or patched, never edited by hand.
type GraphDocument struct {
	Version     string        `json:"version"`
	GeneratedBy string        `json:"generated_by"`
	UpdatedAt   time.Time     `json:"updated_at"`
	BuildID     string        `json:"build_id,omitempty"`
	Nodes       []NodeSummary `json:"nodes"`
	Edges       []Edge        `json:"edges"`
	Metadata    GraphMetadata `json:"metadata"`
}

// NodeIDs returns the set of node ids in the document.
func (d *GraphDocument) NodeIDs() map[string]bool {
	ids := make(map[string]bool, len(d.Nodes))
	for _, n := range d.Nodes {
		ids[n.ID] = true
	}
	return ids
}

// AdjacencyEntry holds the edges touching one node, grouped by relation.
type AdjacencyEntry struct {
	Outgoing map[Relation][]string `json:"outgoing"`
	Incoming map[Relation][]string `json:"incoming"`
}

// AdjacencyMetadata summarizes an adjacency index and ties it to the graph
// document it was derived from.
type AdjacencyMetadata struct {
	NodeCount      int       `json:"node_count"`
	EdgeCount      int       `json:"edge_count"`
	GraphUpdatedAt time.Time `json:"graph_updated_at"`
	BuildID        string    `json:"build_id,omitempty"`
}

// AdjacencyIndex is a disposable cache derived from a GraphDocument.
type AdjacencyIndex struct {
	Version   string                    `json:"version"`
	UpdatedAt time.Time                 `json:"updated_at"`
	Adjacency map[string]AdjacencyEntry `json:"adjacency"`
	Metadata  AdjacencyMetadata         `json:"metadata"`
}

// DecayIndex caches the latest decay scores and the time they were computed.
// LastUpdated drives the recalculation gate.
type DecayIndex struct {
	Version     string                   `json:"version"`
	LastUpdated time.Time                `json:"last_updated"`
	Scores      map[string]DecayMetadata `json:"scores"`
}
