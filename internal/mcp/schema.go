package mcp

import (
	"github.com/nvandessel/corpus-graph/internal/engine"
	"github.com/nvandessel/corpus-graph/internal/integrity"
	"github.com/nvandessel/corpus-graph/internal/models"
	"github.com/nvandessel/corpus-graph/internal/relations"
	"github.com/nvandessel/corpus-graph/internal/similarity"
	"github.com/nvandessel/corpus-graph/internal/visualization"
)

// RelatedInput defines the input for corpus_related tool.
type RelatedInput struct {
	Query         string   `json:"query" jsonschema:"Free-text description of the work to find related documents for"`
	MinSimilarity *float64 `json:"min_similarity,omitempty" jsonschema:"Minimum similarity score (0.0-1.0), defaults to the configured threshold"`
	TopK          *int     `json:"top_k,omitempty" jsonschema:"Maximum number of matches to return"`
	IncludeNodes  *bool    `json:"include_nodes,omitempty" jsonschema:"Also search corpus nodes, not only the reference catalog"`
}

// RelatedOutput defines the output for corpus_related tool.
type RelatedOutput struct {
	Matches []similarity.Match `json:"matches" jsonschema:"Matches ordered by descending score"`
	Count   int                `json:"count" jsonschema:"Number of matches"`
}

// GetInput defines the input for corpus_get tool.
type GetInput struct {
	ID string `json:"id" jsonschema:"Node id, e.g. DEC-001"`
}

// GetOutput defines the output for corpus_get tool.
type GetOutput struct {
	Node      models.Node         `json:"node" jsonschema:"The stored node"`
	Neighbors map[string][]string `json:"neighbors,omitempty" jsonschema:"Adjacent node ids keyed by relation"`
}

// NeighborsInput defines the input for corpus_neighbors tool.
type NeighborsInput struct {
	ID       string `json:"id" jsonschema:"Node id to look up"`
	Relation string `json:"relation,omitempty" jsonschema:"Relation to follow (relatedTo, supersedes, supersededBy, enriches, enrichedBy); empty follows all"`
}

// NeighborsOutput defines the output for corpus_neighbors tool.
type NeighborsOutput struct {
	ID        string   `json:"id"`
	Relation  string   `json:"relation,omitempty"`
	Neighbors []string `json:"neighbors" jsonschema:"Adjacent node ids"`
	Count     int      `json:"count"`
}

// RankInput defines the input for corpus_rank tool.
type RankInput struct {
	Top int `json:"top,omitempty" jsonschema:"Number of nodes to return; 0 returns all"`
}

// RankOutput defines the output for corpus_rank tool.
type RankOutput struct {
	Nodes []engine.RankedNode `json:"nodes" jsonschema:"Nodes ordered by PageRank score"`
	Count int                 `json:"count"`
}

// GraphInput defines the input for corpus_graph tool.
type GraphInput struct {
	Format string `json:"format,omitempty" jsonschema:"Output format: json (default), dot or html"`
}

// GraphOutput defines the output for corpus_graph tool.
type GraphOutput struct {
	Format    string               `json:"format"`
	Graph     *visualization.Graph `json:"graph,omitempty" jsonschema:"Structured graph, set for the json format"`
	Content   string               `json:"content,omitempty" jsonschema:"Rendered text, set for the dot and html formats"`
	NodeCount int                  `json:"node_count"`
	EdgeCount int                  `json:"edge_count"`
}

// ValidateInput defines the input for corpus_validate tool.
type ValidateInput struct{}

// ValidateOutput defines the output for corpus_validate tool.
type ValidateOutput struct {
	Valid       bool              `json:"valid"`
	ErrorCount  int               `json:"error_count"`
	OrphanEdges []string          `json:"orphan_edges"`
	Issues      []integrity.Issue `json:"issues,omitempty"`
	Message     string            `json:"message"`
}

// FixInput defines the input for corpus_fix tool.
type FixInput struct{}

// FixOutput defines the output for corpus_fix tool.
type FixOutput struct {
	Fixes   []integrity.FixResult `json:"fixes"`
	Valid   bool                  `json:"valid"`
	Written bool                  `json:"written" jsonschema:"Whether the repaired graph was saved"`
	Message string                `json:"message"`
}

// RebuildInput defines the input for corpus_rebuild tool.
type RebuildInput struct {
	IDs []string `json:"ids,omitempty" jsonschema:"Node ids to update incrementally; empty rebuilds the whole graph"`
}

// RebuildOutput defines the output for corpus_rebuild tool.
type RebuildOutput struct {
	BuildID     string                  `json:"build_id"`
	Incremental bool                    `json:"incremental"`
	Nodes       int                     `json:"nodes"`
	Edges       int                     `json:"edges"`
	Relations   map[models.Relation]int `json:"relations,omitempty"`
	Skipped     int                     `json:"skipped"`
	Warnings    []relations.Warning     `json:"warnings,omitempty"`
	Valid       bool                    `json:"valid"`
	Written     bool                    `json:"written"`
	Message     string                  `json:"message"`
}

// DecayInput defines the input for corpus_decay tool.
type DecayInput struct {
	Force bool `json:"force,omitempty" jsonschema:"Recalculate even when scores are newer than the recalculation interval"`
}

// DecayOutput defines the output for corpus_decay tool.
type DecayOutput struct {
	Ran      bool           `json:"ran" jsonschema:"Whether a recalculation happened"`
	Scored   int            `json:"scored"`
	Skipped  int            `json:"skipped"`
	ByStatus map[string]int `json:"by_status"`
	Warnings []string       `json:"warnings,omitempty"`
}

// RefreshInput defines the input for corpus_refresh tool.
type RefreshInput struct {
	ID string `json:"id" jsonschema:"Node id to mark as reviewed"`
}

// RefreshOutput defines the output for corpus_refresh tool.
type RefreshOutput struct {
	ID          string             `json:"id"`
	DecayScore  float64            `json:"decay_score"`
	DecayStatus models.DecayStatus `json:"decay_status"`
}

// EnrichInput defines the input for corpus_enrich tool.
type EnrichInput struct {
	EnrichmentID string  `json:"enrichment_id" jsonschema:"Id of the enrichment node"`
	CorpusNode   string  `json:"corpus_node" jsonschema:"Id of the node being enriched"`
	Version      string  `json:"version,omitempty" jsonschema:"Version of the enrichment workflow"`
	Similarity   float64 `json:"similarity,omitempty" jsonschema:"Similarity between the research and the node (0.0-1.0)"`
}

// EnrichOutput defines the output for corpus_enrich tool.
type EnrichOutput struct {
	EnrichmentID string `json:"enrichment_id"`
	CorpusNode   string `json:"corpus_node"`
	Created      bool   `json:"created" jsonschema:"False when the enrichment already existed"`
	BuildID      string `json:"build_id"`
	Message      string `json:"message"`
}

// BackupInput defines the input for corpus_backup tool.
type BackupInput struct {
	OutputPath string `json:"output_path,omitempty" jsonschema:"Backup file path; defaults to a timestamped file in the corpus backups directory"`
}

// BackupOutput defines the output for corpus_backup tool.
type BackupOutput struct {
	Path      string `json:"path"`
	NodeCount int    `json:"node_count"`
	EdgeCount int    `json:"edge_count"`
	Checksum  string `json:"checksum"`
	Rotated   int    `json:"rotated" jsonschema:"Number of old backups removed by rotation"`
	Message   string `json:"message"`
}

// RestoreInput defines the input for corpus_restore tool.
type RestoreInput struct {
	InputPath string `json:"input_path" jsonschema:"Backup file to restore"`
	Mode      string `json:"mode,omitempty" jsonschema:"merge (default) skips existing nodes; replace removes every node first"`
}

// RestoreOutput defines the output for corpus_restore tool.
type RestoreOutput struct {
	NodesRestored int    `json:"nodes_restored"`
	NodesSkipped  int    `json:"nodes_skipped"`
	NodesRemoved  int    `json:"nodes_removed"`
	BuildID       string `json:"build_id"`
	Message       string `json:"message"`
}
